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

// wrappedKeySize is a content key sealed with GCM: key plus tag.
const wrappedKeySize = common.ContentKeySize + 16

type CreateRequestInput struct {
	DeleteOnDownload bool
	// KeyWrap is optional password-wrapped key material the requester
	// wants to recover from another device.
	KeyWrap *models.KeyWrap
}

// FulfillInput is the uploader's ciphertext for a pending request.
type FulfillInput struct {
	Body io.ReadSeeker
	Size int64
	IV   []byte
	Name string
	Type string
}

type RequestService struct {
	repos    repomanager.RepositoryManager
	blobs    blobstore.Store
	reaper   *Reaper
	log      logging.Logger
	maxBytes int64
	ttl      time.Duration
	now      func() time.Time
}

func NewRequestService(repos repomanager.RepositoryManager, blobs blobstore.Store, reaper *Reaper,
	log logging.Logger, maxBytes int64, ttl time.Duration) *RequestService {
	return &RequestService{
		repos:    repos,
		blobs:    blobs,
		reaper:   reaper,
		log:      log,
		maxBytes: maxBytes,
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *RequestService) MaxBytes() int64 { return s.maxBytes }

func (s *RequestService) Create(ctx context.Context, in CreateRequestInput) (*models.Request, error) {
	if w := in.KeyWrap; w != nil {
		if len(w.EncryptedKey) != wrappedKeySize || len(w.Salt) != common.SaltSize || len(w.WrapIV) != common.NonceSize {
			return nil, common.ErrMalformedKeyMaterial
		}
	}

	now := s.now()
	req := &models.Request{
		ID:               uuid.NewString(),
		Status:           models.RequestPending,
		ExpiresAt:        now.Add(s.ttl),
		DeleteOnDownload: in.DeleteOnDownload,
		KeyWrap:          in.KeyWrap,
		CreatedAt:        now,
	}
	if err := s.repos.Requests(s.repos.Conn()).Create(ctx, req); err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	s.log.Info(ctx, "request created", "id", req.ID, "expires_at", req.ExpiresAt)
	return req, nil
}

// Upload fulfils a pending request. Only the first successful upload wins;
// later ones get ErrAlreadyFulfilled and their blob is discarded.
func (s *RequestService) Upload(ctx context.Context, id string, in FulfillInput) error {
	rec, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := lifecycle.EvaluateRequestUpload(rec, s.now()); err != nil {
		if errors.Is(err, common.ErrExpired) && !rec.Terminal() {
			s.expire(ctx, id)
		}
		return err
	}

	if in.Body == nil || in.Size <= 0 {
		return common.ErrNoFile
	}
	if in.Size > s.maxBytes {
		return common.ErrFileTooLarge
	}
	if len(in.IV) != common.NonceSize {
		return common.Invalid("iv must be 12 bytes")
	}

	path := blobstore.RequestPath(id)
	if err := s.blobs.Put(ctx, path, in.Body, in.Size, "application/octet-stream"); err != nil {
		return fmt.Errorf("store request blob: %w", err)
	}

	file := models.FileMetadata{Name: in.Name, Type: in.Type, Size: in.Size, IV: in.IV}
	ok, err := s.repos.Requests(s.repos.Conn()).Fulfill(ctx, id, path, file, s.now())
	if err != nil {
		compensate(ctx, s.blobs, s.log, path)
		return fmt.Errorf("fulfill request: %w", err)
	}
	if !ok {
		compensate(ctx, s.blobs, s.log, path)
		rec, err := s.get(ctx, id)
		if err != nil {
			return err
		}
		if err := lifecycle.EvaluateRequestUpload(rec, s.now()); err != nil {
			return err
		}
		return common.ErrAlreadyFulfilled
	}

	s.log.Info(ctx, "request fulfilled", "id", id, "size", in.Size)
	return nil
}

// Status returns the request as seen now, expiring it first if its time
// has passed.
func (s *RequestService) Status(ctx context.Context, id string) (*models.Request, error) {
	rec, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	d := lifecycle.EvaluateRequestStatus(rec, s.now())
	if d.Err != nil {
		return nil, d.Err
	}
	if d.Expire {
		s.expire(ctx, id)
		if rec, err = s.get(ctx, id); err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, common.ErrFileNotFound
		}
	}
	return rec, nil
}

func (s *RequestService) Download(ctx context.Context, id string) (*Blob, error) {
	rec, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	d := lifecycle.EvaluateRequestDownload(rec, s.now())
	if d.Expire {
		s.expire(ctx, id)
	}
	if d.Err != nil {
		return nil, d.Err
	}

	if !d.Consume {
		return s.open(ctx, rec, rec.StoragePath, func() {
			s.reaper.Go(ctx, "mark request downloaded "+id, func(ctx context.Context) error {
				return s.repos.Requests(s.repos.Conn()).MarkDownloaded(ctx, id, s.now())
			})
		})
	}

	// The blob is opened before the request is closed, so a storage failure
	// leaves it downloadable.
	b, err := s.open(ctx, rec, rec.StoragePath, nil)
	if err != nil {
		return nil, err
	}
	path, ok, err := s.repos.Requests(s.repos.Conn()).MarkTerminal(ctx, id, models.RequestDeleted, s.now())
	if err != nil {
		_ = b.Body.Close()
		return nil, fmt.Errorf("consume request: %w", err)
	}
	if !ok {
		_ = b.Body.Close()
		return nil, common.ErrAlreadyDownloaded
	}
	s.log.Info(ctx, "request consumed", "id", id)
	b.after = func() {
		s.reaper.Go(ctx, "delete consumed request "+id, func(ctx context.Context) error {
			return s.blobs.Delete(ctx, path)
		})
	}
	return b, nil
}

func (s *RequestService) get(ctx context.Context, id string) (*models.Request, error) {
	rec, err := s.repos.Requests(s.repos.Conn()).Get(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	return rec, nil
}

func (s *RequestService) expire(ctx context.Context, id string) {
	path, ok, err := s.repos.Requests(s.repos.Conn()).MarkTerminal(ctx, id, models.RequestExpired, s.now())
	if err != nil {
		s.log.Error(ctx, "expire request", "id", id, "error", err)
		return
	}
	if !ok {
		return
	}
	s.log.Info(ctx, "request expired", "id", id)
	if path == "" {
		return
	}
	s.reaper.Go(ctx, "delete expired request "+id, func(ctx context.Context) error {
		return s.blobs.Delete(ctx, path)
	})
}

func (s *RequestService) open(ctx context.Context, rec *models.Request, path string, after func()) (*Blob, error) {
	body, err := s.blobs.Get(ctx, path)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			if rec.DeleteOnDownload {
				return nil, common.ErrAlreadyDownloaded
			}
			return nil, common.ErrFileNotFound
		}
		return nil, fmt.Errorf("read request blob: %w", err)
	}

	b := &Blob{Body: body, after: after}
	if rec.File != nil {
		b.Size = rec.File.Size
		b.ContentNonce = rec.File.IV
		b.Name = rec.File.Name
		b.MimeType = rec.File.Type
	}
	return b, nil
}

func (s *RequestService) expireRequests(ctx context.Context, limit int) (int, error) {
	expired, err := s.repos.Requests(s.repos.Conn()).ListExpired(ctx, s.now(), limit)
	if err != nil {
		return 0, fmt.Errorf("list expired requests: %w", err)
	}
	for _, rec := range expired {
		path, ok, err := s.repos.Requests(s.repos.Conn()).MarkTerminal(ctx, rec.ID, models.RequestExpired, s.now())
		if err != nil {
			return 0, fmt.Errorf("expire request %s: %w", rec.ID, err)
		}
		if ok && path != "" {
			if err := s.blobs.Delete(ctx, path); err != nil {
				s.log.Error(ctx, "delete expired request blob", "id", rec.ID, "error", err)
			}
		}
	}
	return len(expired), nil
}
