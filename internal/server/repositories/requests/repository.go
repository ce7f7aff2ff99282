// Package requests persists file request records.
package requests

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cipherdrop/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, req *models.Request) error

	// Get returns common.ErrorNotFound for unknown ids.
	Get(ctx context.Context, id string) (*models.Request, error)

	// Fulfill attaches an uploaded file to a pending, unexpired request.
	// It reports ok=false without changing anything otherwise, which makes
	// fulfillment at-most-once under concurrency.
	Fulfill(ctx context.Context, id, storagePath string, file models.FileMetadata, now time.Time) (ok bool, err error)

	MarkDownloaded(ctx context.Context, id string, now time.Time) error

	// MarkTerminal moves a non-terminal request to expired or deleted and
	// returns the storage path it had (empty for pending requests).
	MarkTerminal(ctx context.Context, id string, status models.RequestStatus, now time.Time) (storagePath string, ok bool, err error)

	ListExpired(ctx context.Context, now time.Time, limit int) ([]*models.Request, error)
	PurgeTombstones(ctx context.Context, before time.Time) (int64, error)
}
