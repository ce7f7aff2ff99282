package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/cipherdrop/internal/common"
	"github.com/dmitrijs2005/cipherdrop/internal/server/models"
)

type requestRepo struct {
	s *store
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyRequest(r *models.Request) *models.Request {
	c := *r
	if r.KeyWrap != nil {
		kw := *r.KeyWrap
		c.KeyWrap = &kw
	}
	if r.File != nil {
		f := *r.File
		f.IV = append([]byte(nil), r.File.IV...)
		c.File = &f
	}
	c.FulfilledAt = copyTime(r.FulfilledAt)
	c.DownloadedAt = copyTime(r.DownloadedAt)
	c.ClosedAt = copyTime(r.ClosedAt)
	return &c
}

func (r *requestRepo) Create(_ context.Context, req *models.Request) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.requests[req.ID]; ok {
		return fmt.Errorf("db error: duplicate request id %q", req.ID)
	}
	r.s.requests[req.ID] = copyRequest(req)
	return nil
}

func (r *requestRepo) Get(_ context.Context, id string) (*models.Request, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	req, ok := r.s.requests[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return copyRequest(req), nil
}

func (r *requestRepo) Fulfill(_ context.Context, id, storagePath string, file models.FileMetadata, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	req, ok := r.s.requests[id]
	if !ok || req.Status != models.RequestPending || req.ExpiresAt.Before(now) {
		return false, nil
	}
	f := file
	f.IV = append([]byte(nil), file.IV...)
	fulfilled := now
	req.Status = models.RequestFulfilled
	req.StoragePath = storagePath
	req.File = &f
	req.FulfilledAt = &fulfilled
	return true, nil
}

func (r *requestRepo) MarkDownloaded(_ context.Context, id string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	req, ok := r.s.requests[id]
	if !ok || !req.HasFile() {
		return common.ErrorNotFound
	}
	at := now
	req.Status = models.RequestDownloaded
	req.DownloadedAt = &at
	return nil
}

func (r *requestRepo) MarkTerminal(_ context.Context, id string, status models.RequestStatus, now time.Time) (string, bool, error) {
	if status != models.RequestExpired && status != models.RequestDeleted {
		return "", false, fmt.Errorf("invalid terminal status %q", status)
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	req, ok := r.s.requests[id]
	if !ok || req.Terminal() {
		return "", false, nil
	}
	path := req.StoragePath
	closed := now
	*req = models.Request{
		ID:               req.ID,
		Status:           status,
		ExpiresAt:        req.ExpiresAt,
		DeleteOnDownload: req.DeleteOnDownload,
		FulfilledAt:      req.FulfilledAt,
		DownloadedAt:     req.DownloadedAt,
		CreatedAt:        req.CreatedAt,
		ClosedAt:         &closed,
	}
	return path, true, nil
}

func (r *requestRepo) ListExpired(_ context.Context, now time.Time, limit int) ([]*models.Request, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var result []*models.Request
	for _, req := range r.s.requests {
		if !req.Terminal() && req.ExpiresAt.Before(now) {
			result = append(result, copyRequest(req))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ExpiresAt.Before(result[j].ExpiresAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *requestRepo) PurgeTombstones(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, req := range r.s.requests {
		if req.Terminal() && req.ClosedAt != nil && req.ClosedAt.Before(before) {
			delete(r.s.requests, id)
			n++
		}
	}
	return n, nil
}
