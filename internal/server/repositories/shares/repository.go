// Package shares persists share records.
package shares

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cipherdrop/internal/server/models"
)

// Repository stores share records.
//
// Get returns common.ErrorNotFound for ids that never existed; tombstoned
// shares are returned with their terminal status.
type Repository interface {
	Create(ctx context.Context, share *models.Share) error
	Get(ctx context.Context, id string) (*models.Share, error)

	// MarkTerminal moves an active share to status (consumed or expired),
	// clears its descriptive fields and returns the storage path it had.
	// ok is false when the share was not active, in which case nothing
	// changes and the caller must not touch the blob.
	MarkTerminal(ctx context.Context, id string, status models.ShareStatus, now time.Time) (storagePath string, ok bool, err error)

	ListExpired(ctx context.Context, now time.Time, limit int) ([]*models.Share, error)
	PurgeTombstones(ctx context.Context, before time.Time) (int64, error)
}
