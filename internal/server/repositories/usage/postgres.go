package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/cipherdrop/internal/common"
	"github.com/dmitrijs2005/cipherdrop/internal/dbx"
	"github.com/dmitrijs2005/cipherdrop/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Reserve(ctx context.Context, userID string, n, limit int64) error {
	if n < 0 {
		return common.Invalid("negative reservation")
	}
	if n > limit {
		return common.ErrQuotaExceeded
	}

	// The conditional upsert checks and increments in one statement.
	query := `INSERT INTO drive_usage (user_id, storage_used, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE
			SET storage_used = drive_usage.storage_used + EXCLUDED.storage_used, updated_at = now()
			WHERE drive_usage.storage_used + EXCLUDED.storage_used <= $3`

	res, err := r.db.ExecContext(ctx, query, userID, n, limit)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := dbx.RowsAffected(res)
	if err != nil {
		return err
	}
	if affected == 0 {
		return common.ErrQuotaExceeded
	}
	return nil
}

func (r *PostgresRepository) Release(ctx context.Context, userID string, n int64) error {
	query := `UPDATE drive_usage SET storage_used = GREATEST(storage_used - $2, 0), updated_at = now()
		WHERE user_id=$1`

	if _, err := r.db.ExecContext(ctx, query, userID, n); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID string) (*models.Usage, error) {
	query := `SELECT user_id, storage_used, updated_at FROM drive_usage WHERE user_id=$1`

	u := &models.Usage{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&u.UserID, &u.StorageUsed, &u.UpdatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return &models.Usage{UserID: userID}, nil
	case err != nil:
		return nil, fmt.Errorf("failed to select usage: %w", err)
	}
	return u, nil
}
