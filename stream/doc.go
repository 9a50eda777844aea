// Package stream provides pull-based iterators and the operators used to
// build them.
//
// An Iterator is lazy: nothing happens until Next is called, and every call
// produces at most one value. The ok flag separates "a value was produced"
// from "the stream is exhausted", so zero values travel like any other.
//
// # Constructors
//
//   - Empty, Of, FromSlice: finite in-memory streams
//   - FromFunc: wrap a next-function
//   - FromSeq, FromSeq2: adapt range-over-func generators through iter.Pull
//   - FromChannel: block on a channel until it is closed or ctx is done
//
// # Operators
//
//   - Map, Filter, Take, Tap, Concat
//
// # Terminals
//
//   - Collect, Drain
//
// # Usage
//
//	src := stream.FromSlice([]string{"foo", "bar"})
//	upper := stream.Map(src, func(_ context.Context, s string) (string, error) {
//	    return strings.ToUpper(s), nil
//	})
//	values, err := stream.Collect(ctx, upper)
package stream
