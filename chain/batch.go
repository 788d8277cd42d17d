package chain

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// VerifyAll verifies inputs concurrently with at most workers runs in
// flight. Results are returned in input order. Runs that have not started
// when ctx ends fail with ReasonCanceled.
func (v *Verifier) VerifyAll(ctx context.Context, inputs []Input, workers int) []*Result {
	if workers <= 0 {
		workers = 1
	}
	results := make([]*Result, len(inputs))

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i, in := range inputs {
		g.Go(func() error {
			results[i] = v.Verify(ctx, in)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
