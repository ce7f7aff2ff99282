package services

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/cipherdrop/internal/logging"
)

// Reaper runs cleanup work after a response has been written. Jobs are
// detached from the request context so a client hanging up does not cancel
// them, and each job is bounded by timeout.
type Reaper struct {
	log     logging.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewReaper(log logging.Logger, timeout time.Duration) *Reaper {
	return &Reaper{log: log, timeout: timeout}
}

// Go schedules fn. Failures are logged under name and never returned to
// the caller.
func (r *Reaper) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			r.log.Error(ctx, "cleanup failed", "job", name, "error", err)
		}
	}()
}

// Wait blocks until every scheduled job has finished.
func (r *Reaper) Wait() {
	r.wg.Wait()
}
