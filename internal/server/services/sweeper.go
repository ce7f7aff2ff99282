package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cipherdrop/internal/logging"
	"github.com/dmitrijs2005/cipherdrop/internal/server/repositories/repomanager"
)

const sweepBatch = 500

// SweepStats counts what one sweep did.
type SweepStats struct {
	SharesExpired   int
	RequestsExpired int
	Purged          int64
}

// Sweeper closes expired shares and requests nobody accesses again, and
// purges tombstones older than retention. Lazy expiry on access does not
// depend on it.
type Sweeper struct {
	shares    *ShareService
	requests  *RequestService
	repos     repomanager.RepositoryManager
	log       logging.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
}

func NewSweeper(shares *ShareService, requests *RequestService, repos repomanager.RepositoryManager,
	log logging.Logger, interval, retention time.Duration) *Sweeper {
	return &Sweeper{
		shares:    shares,
		requests:  requests,
		repos:     repos,
		log:       log,
		interval:  interval,
		retention: retention,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps every interval until ctx is done. A non-positive interval
// disables the sweeper and Run returns immediately.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.log.Info(ctx, "sweeper disabled")
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			stats, err := s.SweepOnce(ctx)
			if err != nil {
				s.log.Error(ctx, "sweep failed", "error", err)
				continue
			}
			s.log.Info(ctx, "sweep done",
				"shares_expired", stats.SharesExpired,
				"requests_expired", stats.RequestsExpired,
				"tombstones_purged", stats.Purged)
		}
	}
}

func (s *Sweeper) SweepOnce(ctx context.Context) (SweepStats, error) {
	var stats SweepStats
	var err error

	if stats.SharesExpired, err = s.shares.expireShares(ctx, sweepBatch); err != nil {
		return stats, err
	}
	if stats.RequestsExpired, err = s.requests.expireRequests(ctx, sweepBatch); err != nil {
		return stats, err
	}

	before := s.now().Add(-s.retention)
	n, err := s.repos.Shares(s.repos.Conn()).PurgeTombstones(ctx, before)
	if err != nil {
		return stats, fmt.Errorf("purge share tombstones: %w", err)
	}
	stats.Purged += n

	n, err = s.repos.Requests(s.repos.Conn()).PurgeTombstones(ctx, before)
	if err != nil {
		return stats, fmt.Errorf("purge request tombstones: %w", err)
	}
	stats.Purged += n

	return stats, nil
}
