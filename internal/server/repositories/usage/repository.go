// Package usage tracks how many drive bytes each user occupies.
package usage

import (
	"context"

	"github.com/dmitrijs2005/cipherdrop/internal/server/models"
)

type Repository interface {
	// Reserve adds n bytes to the user's total unless that would exceed
	// limit, in which case common.ErrQuotaExceeded is returned and nothing
	// changes.
	Reserve(ctx context.Context, userID string, n, limit int64) error
	// Release subtracts n bytes, never going below zero.
	Release(ctx context.Context, userID string, n int64) error
	// Get returns a zero Usage for users that never stored anything.
	Get(ctx context.Context, userID string) (*models.Usage, error)
}
