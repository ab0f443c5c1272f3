package sig

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Request bundles one verification job for BatchVerify.
type Request struct {
	Message   []byte
	Signature Signature
	PublicKey PublicKey
}

// Result is the outcome of one Request, aligned by index with the input.
type Result struct {
	OK  bool
	Err error
}

// BatchVerify runs independent verifications concurrently, capping
// outstanding work to GOMAXPROCS so PQ verification (CPU-heavy) cannot
// starve the sequencer's own timers (§9 "Concurrency of signature
// verification").
func BatchVerify(ctx context.Context, reqs []Request) []Result {
	results := make([]Result, len(reqs))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			ok, err := Verify(req.Message, req.Signature, req.PublicKey)
			results[i] = Result{OK: ok, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
