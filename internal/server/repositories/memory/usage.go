package memory

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cipherdrop/internal/common"
	"github.com/dmitrijs2005/cipherdrop/internal/server/models"
)

type usageRepo struct {
	s *store
}

func (r *usageRepo) Reserve(_ context.Context, userID string, n, limit int64) error {
	if n < 0 {
		return common.Invalid("negative reservation")
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.usage[userID]
	if !ok {
		u = &models.Usage{UserID: userID}
	}
	if u.StorageUsed+n > limit {
		return common.ErrQuotaExceeded
	}
	u.StorageUsed += n
	u.UpdatedAt = time.Now().UTC()
	r.s.usage[userID] = u
	return nil
}

func (r *usageRepo) Release(_ context.Context, userID string, n int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.usage[userID]
	if !ok {
		return nil
	}
	u.StorageUsed = max(u.StorageUsed-n, 0)
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *usageRepo) Get(_ context.Context, userID string) (*models.Usage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.usage[userID]
	if !ok {
		return &models.Usage{UserID: userID}, nil
	}
	c := *u
	return &c, nil
}
