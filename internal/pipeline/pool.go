package pipeline

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/instant-apply/internal/types"
)

// queueDepth bounds attempts waiting for a worker. Accepted attempts are
// already persisted as created, so the queue only smooths bursts; it
// never decides admission.
const queueDepth = 256

// Pool runs attempts concurrently, bounded so a batch of applications
// does not open an unbounded number of browser sessions. Attempts are
// handed off through a queue so callers never wait on a free worker.
type Pool struct {
	runner *Runner
	group  *errgroup.Group
	ctx    context.Context
	queue  chan *types.ApplicationAttempt
}

// NewPool creates a pool over ctx and starts its workers. workers bounds
// concurrently running attempts; values below one are treated as one.
func NewPool(ctx context.Context, runner *Runner, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	group, groupCtx := errgroup.WithContext(ctx)
	p := &Pool{
		runner: runner,
		group:  group,
		ctx:    groupCtx,
		queue:  make(chan *types.ApplicationAttempt, queueDepth),
	}
	for i := 0; i < workers; i++ {
		group.Go(p.work)
	}
	return p
}

func (p *Pool) work() error {
	for {
		select {
		case <-p.ctx.Done():
			return nil
		case attempt, ok := <-p.queue:
			if !ok {
				return nil
			}
			if err := p.runner.RunAttempt(p.ctx, attempt); err != nil {
				log.Printf("[PIPELINE] attempt %s failed: %v", attempt.ID, err)
			}
		}
	}
}

// Submit enqueues an attempt for the next free worker and returns
// without waiting for one. A failed attempt does not cancel the others:
// failures are per-attempt outcomes already recorded in the ledger, not
// pool errors.
func (p *Pool) Submit(attempt *types.ApplicationAttempt) {
	select {
	case p.queue <- attempt:
	case <-p.ctx.Done():
		log.Printf("[PIPELINE] pool shut down; attempt %s not scheduled", attempt.ID)
	}
}

// Wait closes the queue and blocks until every enqueued attempt has
// finished. No Submit may follow.
func (p *Pool) Wait() error {
	close(p.queue)
	return p.group.Wait()
}
