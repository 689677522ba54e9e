package scan

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/alitto/pond/v2"
)

// ProgressFunc receives the number of finished tasks and the batch size.
type ProgressFunc func(done, total int)

type progressKey struct{}

// WithProgress attaches a progress reporter to ctx. Scans started with the
// returned context report through it.
func WithProgress(ctx context.Context, fn ProgressFunc) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

func progressFrom(ctx context.Context) ProgressFunc {
	fn, _ := ctx.Value(progressKey{}).(ProgressFunc)
	return fn
}

// Schedule runs fn for every height with at most limit calls in flight and
// returns the results in input order. The first error stops the batch: tasks
// that have not started are skipped and the error is returned with no results.
func Schedule[T any](ctx context.Context, limit int, heights []uint64, fn func(ctx context.Context, h uint64) (T, error)) ([]T, error) {
	if len(heights) == 0 {
		return []T{}, nil
	}
	if limit < 1 {
		limit = 1
	}
	if limit > len(heights) {
		limit = len(heights)
	}

	pool := pond.NewPool(limit)
	defer pool.StopAndWait()

	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	progress := progressFrom(ctx)
	total := len(heights)
	results := make([]T, total)
	var done atomic.Int64

	for i, height := range heights {
		i, h := i, height
		group.SubmitErr(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			out, err := fn(groupCtx, h)
			if err != nil {
				return fmt.Errorf("block %d: %w", h, err)
			}
			results[i] = out
			if progress != nil {
				progress(int(done.Add(1)), total)
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Heights returns the consecutive heights [from, to).
func Heights(from, to uint64) []uint64 {
	if to <= from {
		return nil
	}
	out := make([]uint64, 0, to-from)
	for h := from; h < to; h++ {
		out = append(out, h)
	}
	return out
}
