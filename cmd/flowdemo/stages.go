package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/kbukum/flowkit/flow"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/stream"
)

// pair is the value flowing from the sources into the arithmetic stages.
type pair [2]any

// asPair accepts pairs from the generators and two-element JSON arrays
// from the webhook.
func asPair(v any) (pair, bool) {
	switch p := v.(type) {
	case pair:
		return p, true
	case []any:
		if len(p) == 2 {
			return pair{p[0], p[1]}, true
		}
	}
	return pair{}, false
}

func newRand(seed int) *rand.Rand {
	s := uint64(seed)
	if seed == 0 {
		s = rand.Uint64()
	}
	return rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))
}

// numberPairs emits pairs of random integers in [1, limit] forever.
func numberPairs(rng *rand.Rand, limit int) flow.Stage {
	return flow.Generate(func(context.Context) (any, error) {
		return pair{rng.IntN(limit) + 1, rng.IntN(limit) + 1}, nil
	})
}

// wordPairs emits pairs of random lowercase words forever.
func wordPairs(rng *rand.Rand, length int) flow.Stage {
	word := func() string {
		b := make([]byte, length)
		for i := range b {
			b[i] = byte('a' + rng.IntN(26))
		}
		return string(b)
	}
	return flow.Generate(func(context.Context) (any, error) {
		return pair{word(), word()}, nil
	})
}

// binary applies op to each pair. A result goes to "success"; a pair op
// cannot combine, or a value that is not a pair, goes to "failure".
func binary(op func(a, b any) (any, bool)) flow.Stage {
	return flow.StageFunc(func(_ context.Context, in flow.Input) (flow.Sequence, error) {
		p, ok := asPair(in.Value())
		if !ok {
			return stream.Of(flow.Failure(in.Value())), nil
		}
		if out, ok := op(p[0], p[1]); ok {
			return stream.Of(flow.Success(out)), nil
		}
		return stream.Of(flow.Failure(p)), nil
	})
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// add sums numbers and concatenates strings.
func add(a, b any) (any, bool) {
	if x, ok := a.(int); ok {
		if y, ok := b.(int); ok {
			return x + y, true
		}
	}
	if x, ok := a.(string); ok {
		if y, ok := b.(string); ok {
			return x + y, true
		}
	}
	x, okA := number(a)
	y, okB := number(b)
	if okA && okB {
		return x + y, true
	}
	return nil, false
}

// subtract only works on numbers.
func subtract(a, b any) (any, bool) {
	if x, ok := a.(int); ok {
		if y, ok := b.(int); ok {
			return x - y, true
		}
	}
	x, okA := number(a)
	y, okB := number(b)
	if okA && okB {
		return x - y, true
	}
	return nil, false
}

func printResult(w io.Writer) flow.Stage {
	return flow.Sink(func(_ context.Context, v any) error {
		_, err := fmt.Fprintf(w, "the result is %v\n", v)
		return err
	})
}

// logFailure logs pairs that verb could not be applied to.
func logFailure(verb string, log *logger.Logger) flow.Stage {
	return flow.Sink(func(_ context.Context, v any) error {
		if p, ok := asPair(v); ok {
			log.Error(fmt.Sprintf("could not %s %v and %v", verb, p[0], p[1]), logger.Fields("operation", verb))
			return nil
		}
		log.Error(fmt.Sprintf("could not %s %v", verb, v), logger.Fields("operation", verb))
		return nil
	})
}
