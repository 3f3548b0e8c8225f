package gleval

import (
	"context"
	"runtime"

	"github.com/soypat/geometry/ms3"
	"golang.org/x/sync/errgroup"
)

// minChunk is the smallest amount of positions handed to a single worker.
const minChunk = 1024

// EvaluateParallel evaluates s over pos storing results in dist, splitting the
// work between workers goroutines. workers<=0 uses GOMAXPROCS. s must be safe for
// concurrent use. Cancellation of ctx is checked between chunks.
func EvaluateParallel(ctx context.Context, s SDF3, pos []ms3.Vec, dist []float32, workers int, userData any) error {
	if len(pos) != len(dist) {
		return errMismatchBufferLength
	} else if len(pos) == 0 {
		return errEmptyBuffers
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	chunk := max(minChunk, (len(pos)+workers-1)/workers)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < len(pos); start += chunk {
		start := start
		end := min(start+chunk, len(pos))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return s.Evaluate(pos[start:end], dist[start:end], userData)
		})
	}
	return g.Wait()
}
