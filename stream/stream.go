package stream

import (
	"context"
	"iter"
	"sync"
)

// Iterator provides pull-based sequential access to a stream of values.
type Iterator[T any] interface {
	// Next returns the next value. Returns (zero, false, nil) when exhausted.
	Next(ctx context.Context) (T, bool, error)
	// Close releases any resources held by the iterator. Safe to call twice.
	Close() error
}

// --- Constructors ---

// Empty returns an iterator that is exhausted immediately.
func Empty[T any]() Iterator[T] {
	return &sliceIter[T]{}
}

// Of returns an iterator over the given values.
func Of[T any](values ...T) Iterator[T] {
	return &sliceIter[T]{items: values}
}

// FromSlice returns an iterator over items. The slice is not copied.
func FromSlice[T any](items []T) Iterator[T] {
	return &sliceIter[T]{items: items}
}

// FromFunc wraps a next-function. closer, if non-nil, runs once on Close.
func FromFunc[T any](next func(ctx context.Context) (T, bool, error), closer func() error) Iterator[T] {
	return &funcIter[T]{next: next, closer: closer}
}

// FromSeq adapts a range-over-func sequence. The sequence is resumed one
// value per Next call; Close stops it.
func FromSeq[T any](seq iter.Seq[T]) Iterator[T] {
	next, stop := iter.Pull(seq)
	return &seqIter[T]{
		next: func() (T, error, bool) {
			v, ok := next()
			return v, nil, ok
		},
		stop: stop,
	}
}

// FromSeq2 adapts a sequence of (value, error) pairs. The first non-nil
// error is returned from Next and ends the stream.
func FromSeq2[T any](seq iter.Seq2[T, error]) Iterator[T] {
	next, stop := iter.Pull2(seq)
	return &seqIter[T]{next: next, stop: stop}
}

// FromChannel reads from ch until it is closed. Next blocks until a value
// arrives or ctx is done.
func FromChannel[T any](ch <-chan T) Iterator[T] {
	return &chanIter[T]{ch: ch}
}

// --- Terminals ---

// Collect pulls every value and closes the iterator.
func Collect[T any](ctx context.Context, it Iterator[T]) ([]T, error) {
	defer it.Close()
	var result []T
	for {
		val, ok, err := it.Next(ctx)
		if err != nil {
			return result, err
		}
		if !ok {
			return result, nil
		}
		result = append(result, val)
	}
}

// Drain pulls every value, hands it to sink and closes the iterator.
func Drain[T any](ctx context.Context, it Iterator[T], sink func(context.Context, T) error) error {
	defer it.Close()
	for {
		val, ok, err := it.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := sink(ctx, val); err != nil {
			return err
		}
	}
}

// --- Internal iterators ---

type sliceIter[T any] struct {
	items []T
	index int
}

func (it *sliceIter[T]) Next(_ context.Context) (T, bool, error) {
	if it.index >= len(it.items) {
		var zero T
		return zero, false, nil
	}
	val := it.items[it.index]
	it.index++
	return val, true, nil
}

func (it *sliceIter[T]) Close() error { return nil }

type funcIter[T any] struct {
	next   func(ctx context.Context) (T, bool, error)
	closer func() error
	once   sync.Once
	done   bool
}

func (it *funcIter[T]) Next(ctx context.Context) (T, bool, error) {
	if it.done {
		var zero T
		return zero, false, nil
	}
	val, ok, err := it.next(ctx)
	if err != nil || !ok {
		it.done = true
	}
	return val, ok, err
}

func (it *funcIter[T]) Close() error {
	var err error
	it.once.Do(func() {
		it.done = true
		if it.closer != nil {
			err = it.closer()
		}
	})
	return err
}

type seqIter[T any] struct {
	next func() (T, error, bool)
	stop func()
	done bool
}

func (it *seqIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if it.done {
		return zero, false, nil
	}
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}
	val, err, ok := it.next()
	if !ok {
		it.done = true
		return zero, false, nil
	}
	if err != nil {
		it.done = true
		it.stop()
		return zero, false, err
	}
	return val, true, nil
}

func (it *seqIter[T]) Close() error {
	it.done = true
	it.stop()
	return nil
}

type chanIter[T any] struct {
	ch <-chan T
}

func (it *chanIter[T]) Next(ctx context.Context) (T, bool, error) {
	select {
	case v, open := <-it.ch:
		return v, open, nil
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	}
}

func (it *chanIter[T]) Close() error { return nil }
