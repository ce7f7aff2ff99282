package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/cipherdrop/internal/common"
	"github.com/dmitrijs2005/cipherdrop/internal/server/models"
)

type shareRepo struct {
	s *store
}

func copyShare(s *models.Share) *models.Share {
	c := *s
	c.ContentNonce = append([]byte(nil), s.ContentNonce...)
	if s.ClosedAt != nil {
		t := *s.ClosedAt
		c.ClosedAt = &t
	}
	return &c
}

func (r *shareRepo) Create(_ context.Context, share *models.Share) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.shares[share.ID]; ok {
		return fmt.Errorf("db error: duplicate share id %q", share.ID)
	}
	r.s.shares[share.ID] = copyShare(share)
	return nil
}

func (r *shareRepo) Get(_ context.Context, id string) (*models.Share, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	s, ok := r.s.shares[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return copyShare(s), nil
}

func (r *shareRepo) MarkTerminal(_ context.Context, id string, status models.ShareStatus, now time.Time) (string, bool, error) {
	if status == models.ShareActive {
		return "", false, fmt.Errorf("invalid terminal status %q", status)
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	s, ok := r.s.shares[id]
	if !ok || s.Status != models.ShareActive {
		return "", false, nil
	}
	path := s.StoragePath
	closed := now
	*s = models.Share{
		ID:               s.ID,
		Status:           status,
		ExpiresAt:        s.ExpiresAt,
		DeleteOnDownload: s.DeleteOnDownload,
		CreatedAt:        s.CreatedAt,
		ClosedAt:         &closed,
	}
	return path, true, nil
}

func (r *shareRepo) ListExpired(_ context.Context, now time.Time, limit int) ([]*models.Share, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var result []*models.Share
	for _, s := range r.s.shares {
		if s.Status == models.ShareActive && s.ExpiresAt.Before(now) {
			result = append(result, copyShare(s))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ExpiresAt.Before(result[j].ExpiresAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *shareRepo) PurgeTombstones(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, s := range r.s.shares {
		if s.Status != models.ShareActive && s.ClosedAt != nil && s.ClosedAt.Before(before) {
			delete(r.s.shares, id)
			n++
		}
	}
	return n, nil
}
