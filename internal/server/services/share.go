// Package services orchestrates the blob store, the metadata repositories
// and the lifecycle rules behind each HTTP operation. It never sees keys or
// plaintext for shares and requests.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/cipherdrop/internal/common"
	"github.com/dmitrijs2005/cipherdrop/internal/logging"
	"github.com/dmitrijs2005/cipherdrop/internal/server/blobstore"
	"github.com/dmitrijs2005/cipherdrop/internal/server/lifecycle"
	"github.com/dmitrijs2005/cipherdrop/internal/server/models"
	"github.com/dmitrijs2005/cipherdrop/internal/server/repositories/repomanager"
)

// CreateShareInput is an uploaded share. Body holds Size bytes of ciphertext.
type CreateShareInput struct {
	Body             io.ReadSeeker
	Size             int64
	ContentNonce     []byte
	ExpiresIn        time.Duration
	DeleteOnDownload bool
	OriginalName     string
	MimeType         string
}

type ShareService struct {
	repos     repomanager.RepositoryManager
	blobs     blobstore.Store
	reaper    *Reaper
	log       logging.Logger
	maxBytes  int64
	maxExpiry time.Duration
	now       func() time.Time
}

func NewShareService(repos repomanager.RepositoryManager, blobs blobstore.Store, reaper *Reaper,
	log logging.Logger, maxBytes int64, maxExpiry time.Duration) *ShareService {
	return &ShareService{
		repos:     repos,
		blobs:     blobs,
		reaper:    reaper,
		log:       log,
		maxBytes:  maxBytes,
		maxExpiry: maxExpiry,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// MaxBytes is the largest share body accepted.
func (s *ShareService) MaxBytes() int64 { return s.maxBytes }

// MaxExpiry is the longest lifetime a share may be created with.
func (s *ShareService) MaxExpiry() time.Duration { return s.maxExpiry }

func (s *ShareService) Create(ctx context.Context, in CreateShareInput) (*models.Share, error) {
	if in.Body == nil || in.Size <= 0 {
		return nil, common.ErrNoFile
	}
	if in.Size > s.maxBytes {
		return nil, common.ErrFileTooLarge
	}
	if len(in.ContentNonce) != common.NonceSize {
		return nil, common.Invalid("iv must be 12 bytes")
	}
	if in.ExpiresIn <= 0 || in.ExpiresIn > s.maxExpiry {
		return nil, common.Invalid(fmt.Sprintf("expiration must be positive and at most %s", s.maxExpiry))
	}

	now := s.now()
	share := &models.Share{
		ID:               uuid.NewString(),
		Status:           models.ShareActive,
		StoragePath:      blobstore.SharePath(),
		ExpiresAt:        now.Add(in.ExpiresIn),
		DeleteOnDownload: in.DeleteOnDownload,
		ContentNonce:     in.ContentNonce,
		OriginalName:     in.OriginalName,
		MimeType:         in.MimeType,
		Size:             in.Size,
		CreatedAt:        now,
	}

	if err := s.blobs.Put(ctx, share.StoragePath, in.Body, in.Size, "application/octet-stream"); err != nil {
		return nil, fmt.Errorf("store share blob: %w", err)
	}

	if err := s.repos.Shares(s.repos.Conn()).Create(ctx, share); err != nil {
		s.compensate(ctx, share.StoragePath)
		return nil, fmt.Errorf("create share record: %w", err)
	}

	s.log.Info(ctx, "share created", "id", share.ID, "size", share.Size, "delete_on_download", share.DeleteOnDownload)
	return share, nil
}

// Meta returns the share record without serving its ciphertext.
func (s *ShareService) Meta(ctx context.Context, id string) (*models.Share, error) {
	rec, err := s.evaluate(ctx, id, lifecycle.AccessMeta)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Preview serves the ciphertext without ever consuming the share.
func (s *ShareService) Preview(ctx context.Context, id string) (*Blob, error) {
	rec, err := s.evaluate(ctx, id, lifecycle.AccessPreview)
	if err != nil {
		return nil, err
	}
	return s.open(ctx, rec, rec.StoragePath, nil)
}

// Download serves the ciphertext. A delete-on-download share is closed
// after its blob has been opened and before the body is read, so at most
// one download ever gets the bytes and a storage failure leaves the share
// intact. The blob is removed after the body has been streamed.
func (s *ShareService) Download(ctx context.Context, id string) (*Blob, error) {
	rec, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	d := lifecycle.EvaluateShare(rec, lifecycle.AccessDownload, s.now())
	if err := s.apply(ctx, rec, d); err != nil {
		return nil, err
	}
	b, err := s.open(ctx, rec, rec.StoragePath, nil)
	if err != nil || !d.Consume {
		return b, err
	}

	path, ok, err := s.repos.Shares(s.repos.Conn()).MarkTerminal(ctx, id, models.ShareConsumed, s.now())
	if err != nil {
		_ = b.Body.Close()
		return nil, fmt.Errorf("consume share: %w", err)
	}
	if !ok {
		_ = b.Body.Close()
		// Lost the race against another download or the sweeper.
		if _, err := s.evaluate(ctx, id, lifecycle.AccessDownload); err != nil {
			return nil, err
		}
		return nil, common.ErrAlreadyDownloaded
	}

	s.log.Info(ctx, "share consumed", "id", id)
	b.after = func() {
		s.reaper.Go(ctx, "delete consumed share "+id, func(ctx context.Context) error {
			return s.blobs.Delete(ctx, path)
		})
	}
	return b, nil
}

func (s *ShareService) get(ctx context.Context, id string) (*models.Share, error) {
	rec, err := s.repos.Shares(s.repos.Conn()).Get(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get share: %w", err)
	}
	return rec, nil
}

func (s *ShareService) evaluate(ctx context.Context, id string, access lifecycle.Access) (*models.Share, error) {
	rec, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	d := lifecycle.EvaluateShare(rec, access, s.now())
	if err := s.apply(ctx, rec, d); err != nil {
		return nil, err
	}
	return rec, nil
}

// apply carries out the side effects of a refusing decision and returns
// its error.
func (s *ShareService) apply(ctx context.Context, rec *models.Share, d lifecycle.Decision) error {
	if d.Expire {
		s.expire(ctx, rec.ID)
	}
	return d.Err
}

func (s *ShareService) expire(ctx context.Context, id string) {
	path, ok, err := s.repos.Shares(s.repos.Conn()).MarkTerminal(ctx, id, models.ShareExpired, s.now())
	if err != nil {
		s.log.Error(ctx, "expire share", "id", id, "error", err)
		return
	}
	if !ok || path == "" {
		return
	}
	s.log.Info(ctx, "share expired", "id", id)
	s.reaper.Go(ctx, "delete expired share "+id, func(ctx context.Context) error {
		return s.blobs.Delete(ctx, path)
	})
}

func (s *ShareService) open(ctx context.Context, rec *models.Share, path string, after func()) (*Blob, error) {
	body, err := s.blobs.Get(ctx, path)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			if rec.DeleteOnDownload {
				return nil, common.ErrAlreadyDownloaded
			}
			return nil, common.ErrFileNotFound
		}
		return nil, fmt.Errorf("read share blob: %w", err)
	}
	return &Blob{
		Body:         body,
		Size:         rec.Size,
		ContentNonce: rec.ContentNonce,
		Name:         rec.OriginalName,
		MimeType:     rec.MimeType,
		after:        after,
	}, nil
}

// compensate removes a blob whose metadata write failed. It runs inline,
// detached from cancellation, and only logs its own failure.
func (s *ShareService) compensate(ctx context.Context, path string) {
	compensate(ctx, s.blobs, s.log, path)
}

func compensate(ctx context.Context, blobs blobstore.Store, log logging.Logger, path string) {
	if err := blobs.Delete(context.WithoutCancel(ctx), path); err != nil {
		log.Error(ctx, "orphaned blob", "path", path, "error", err)
	}
}

// expireShares closes up to limit shares whose expiry has passed and
// returns how many were closed.
func (s *ShareService) expireShares(ctx context.Context, limit int) (int, error) {
	expired, err := s.repos.Shares(s.repos.Conn()).ListExpired(ctx, s.now(), limit)
	if err != nil {
		return 0, fmt.Errorf("list expired shares: %w", err)
	}
	for _, rec := range expired {
		path, ok, err := s.repos.Shares(s.repos.Conn()).MarkTerminal(ctx, rec.ID, models.ShareExpired, s.now())
		if err != nil {
			return 0, fmt.Errorf("expire share %s: %w", rec.ID, err)
		}
		if ok && path != "" {
			if err := s.blobs.Delete(ctx, path); err != nil {
				s.log.Error(ctx, "delete expired share blob", "id", rec.ID, "error", err)
			}
		}
	}
	return len(expired), nil
}
