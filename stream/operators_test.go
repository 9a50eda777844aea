package stream

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"testing"
)

type closeCounter[T any] struct {
	Iterator[T]
	closed int
	err    error
}

func (c *closeCounter[T]) Close() error {
	c.closed++
	return c.err
}

func TestMap(t *testing.T) {
	it := Map(Of(1, 2, 3), func(_ context.Context, n int) (string, error) {
		return strconv.Itoa(n * 2), nil
	})
	got, err := Collect(context.Background(), it)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, []string{"2", "4", "6"}) {
		t.Errorf("got %v", got)
	}
}

func TestMap_Error(t *testing.T) {
	it := Map(Of(1, 2, 3), func(_ context.Context, n int) (int, error) {
		if n == 2 {
			return 0, errors.New("bad value")
		}
		return n, nil
	})
	got, err := Collect(context.Background(), it)
	if err == nil {
		t.Fatal("expected error")
	}
	if !slices.Equal(got, []int{1}) {
		t.Errorf("expected [1] before error, got %v", got)
	}
}

func TestFilter(t *testing.T) {
	it := Filter(Of(1, 2, 3, 4, 5, 6), func(n int) bool { return n%2 == 0 })
	got, _ := Collect(context.Background(), it)
	if !slices.Equal(got, []int{2, 4, 6}) {
		t.Errorf("got %v", got)
	}
}

func TestTake(t *testing.T) {
	pulls := 0
	src := FromFunc(func(context.Context) (int, bool, error) {
		pulls++
		return pulls, true, nil
	}, nil)

	got, err := Collect(context.Background(), Take(src, 3))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, []int{1, 2, 3}) {
		t.Errorf("got %v", got)
	}
	if pulls != 3 {
		t.Errorf("expected 3 pulls from an infinite source, got %d", pulls)
	}
}

func TestTap(t *testing.T) {
	var tapped []string
	it := Tap(Of("a", "b"), func(_ context.Context, s string) error {
		tapped = append(tapped, s)
		return nil
	})
	got, _ := Collect(context.Background(), it)
	if !slices.Equal(got, tapped) {
		t.Errorf("expected tap to see every value, got %v vs %v", tapped, got)
	}
}

func TestConcat(t *testing.T) {
	a := &closeCounter[int]{Iterator: Of(1, 2)}
	b := &closeCounter[int]{Iterator: Of(3), err: errors.New("close failed")}

	it := Concat[int](a, Empty[int](), b)
	got, err := Collect(context.Background(), it)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, []int{1, 2, 3}) {
		t.Errorf("got %v", got)
	}
	if a.closed != 1 || b.closed != 1 {
		t.Errorf("expected every input closed once, got %d and %d", a.closed, b.closed)
	}
	if err := it.Close(); err == nil {
		t.Error("expected close error to surface")
	}
}

func TestOperatorsCloseSource(t *testing.T) {
	tests := []struct {
		name string
		wrap func(Iterator[int]) Iterator[int]
	}{
		{"map", func(it Iterator[int]) Iterator[int] {
			return Map(it, func(_ context.Context, n int) (int, error) { return n, nil })
		}},
		{"filter", func(it Iterator[int]) Iterator[int] { return Filter(it, func(int) bool { return true }) }},
		{"take", func(it Iterator[int]) Iterator[int] { return Take(it, 1) }},
		{"tap", func(it Iterator[int]) Iterator[int] {
			return Tap(it, func(context.Context, int) error { return nil })
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &closeCounter[int]{Iterator: Of(1)}
			_ = tt.wrap(src).Close()
			if src.closed != 1 {
				t.Errorf("expected source closed once, got %d", src.closed)
			}
		})
	}
}
