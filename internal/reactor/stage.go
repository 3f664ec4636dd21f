package reactor

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
)

// Stage is a transform hook over one of the pipeline's streams.
//
// A stage reads from in and writes to out until in is closed or ctx is done.
// The runtime owns out and closes it when the stage returns. Stages may drop,
// reshape, delay or merge values, but they run outside per-action isolation:
// a returned error (other than ctx cancellation) or a panic is a fatal fault
// that shuts the reactor down and reaches the FaultHandler.
type Stage[T any] func(ctx context.Context, in <-chan T, out chan<- T) error

// Receive reads the next value from in, giving up when ctx is done.
// ok is false when in is closed (err nil) or ctx is done (err is ctx.Err()).
// The mutation stream is never closed while the reactor is active, so stages
// must receive through ctx rather than ranging over in.
func Receive[T any](ctx context.Context, in <-chan T) (v T, ok bool, err error) {
	select {
	case v, ok = <-in:
		return v, ok, nil
	case <-ctx.Done():
		return v, false, ctx.Err()
	}
}

// MapStage applies fn to every value.
func MapStage[T any](fn func(T) T) Stage[T] {
	return func(ctx context.Context, in <-chan T, out chan<- T) error {
		for {
			v, ok, err := Receive(ctx, in)
			if !ok {
				return err
			}
			select {
			case out <- fn(v):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// FilterStage forwards only values for which keep returns true.
func FilterStage[T any](keep func(T) bool) Stage[T] {
	return func(ctx context.Context, in <-chan T, out chan<- T) error {
		for {
			v, ok, err := Receive(ctx, in)
			if !ok {
				return err
			}
			if !keep(v) {
				continue
			}
			select {
			case out <- v:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// MergeStage forwards the pipeline's own values together with values read
// from external sources. Order between sources is arrival order. The stage
// ends when in is closed; closed sources are simply dropped from the merge.
func MergeStage[T any](sources ...<-chan T) Stage[T] {
	return func(ctx context.Context, in <-chan T, out chan<- T) error {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		var wg sync.WaitGroup
		forward := func(src <-chan T) {
			defer wg.Done()
			for {
				select {
				case v, ok := <-src:
					if !ok {
						return
					}
					select {
					case out <- v:
					case <-ctx.Done():
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}

		for _, src := range sources {
			wg.Add(1)
			go forward(src)
		}

		err := func() error {
			for {
				v, ok, err := Receive(ctx, in)
				if !ok {
					return err
				}
				select {
				case out <- v:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}()

		cancel()
		wg.Wait()
		return err
	}
}

// Chain composes stages left to right.
func Chain[T any](stages ...Stage[T]) Stage[T] {
	return func(ctx context.Context, in <-chan T, out chan<- T) error {
		if len(stages) == 0 {
			return MapStage(func(v T) T { return v })(ctx, in, out)
		}

		ctx, cancel := context.WithCancelCause(ctx)
		defer cancel(nil)

		var wg sync.WaitGroup
		errs := make([]error, len(stages))
		cur := in
		for i, st := range stages {
			last := i == len(stages)-1
			var pipe chan T
			next := out
			if !last {
				pipe = make(chan T)
				next = pipe
			}
			wg.Add(1)
			go func(i int, st Stage[T], src <-chan T, dst chan<- T, last bool) {
				defer wg.Done()
				if !last {
					defer close(dst)
				}
				defer func() {
					if v := recover(); v != nil {
						errs[i] = newPanicError(ErrCodeStageFault, "", "", v, debug.Stack())
						cancel(errs[i])
					}
				}()
				if err := st(ctx, src, dst); err != nil && !isCancellation(ctx, err) {
					errs[i] = err
					cancel(err)
				}
			}(i, st, cur, next, last)
			cur = pipe
		}

		wg.Wait()
		return errors.Join(errs...)
	}
}

// runStage runs st between in and out, closing out when it returns, and
// converts failures into fatal stage faults.
func runStage[T any](ctx context.Context, reactorID, name string, st Stage[T], in <-chan T, out chan<- T) (err error) {
	defer close(out)
	defer func() {
		if v := recover(); v != nil {
			err = newPanicError(ErrCodeStageFault, reactorID, name, v, debug.Stack())
		}
	}()

	if err := st(ctx, in, out); err != nil && !isCancellation(ctx, err) {
		return newStageFault(reactorID, name, err)
	}
	return nil
}

// isCancellation reports whether err is the result of ctx being cancelled.
func isCancellation(ctx context.Context, err error) bool {
	if ctx.Err() == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Cause(ctx))
}
