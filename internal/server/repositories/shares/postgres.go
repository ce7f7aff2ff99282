package shares

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cipherdrop/internal/common"
	"github.com/dmitrijs2005/cipherdrop/internal/dbx"
	"github.com/dmitrijs2005/cipherdrop/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const shareColumns = `id, status, storage_path, expires_at, delete_on_download, content_nonce,
	original_name, mime_type, size, created_at, closed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShare(row rowScanner) (*models.Share, error) {
	var (
		s        models.Share
		status   string
		closedAt sql.NullTime
	)
	if err := row.Scan(&s.ID, &status, &s.StoragePath, &s.ExpiresAt, &s.DeleteOnDownload, &s.ContentNonce,
		&s.OriginalName, &s.MimeType, &s.Size, &s.CreatedAt, &closedAt); err != nil {
		return nil, err
	}
	s.Status = models.ShareStatus(status)
	if closedAt.Valid {
		t := closedAt.Time
		s.ClosedAt = &t
	}
	return &s, nil
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.Share) error {
	query := `INSERT INTO shares (id, status, storage_path, expires_at, delete_on_download, content_nonce,
		original_name, mime_type, size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query, s.ID, string(s.Status), s.StoragePath, s.ExpiresAt, s.DeleteOnDownload,
		s.ContentNonce, s.OriginalName, s.MimeType, s.Size, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Share, error) {
	query := `SELECT ` + shareColumns + ` FROM shares WHERE id=$1`

	s, err := scanShare(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select share: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) MarkTerminal(ctx context.Context, id string, status models.ShareStatus, now time.Time) (string, bool, error) {
	if status == models.ShareActive {
		return "", false, fmt.Errorf("invalid terminal status %q", status)
	}

	// old.storage_path is read under the row lock taken by FOR UPDATE, so two
	// concurrent callers cannot both observe the share as active.
	query := `UPDATE shares s SET status=$2, storage_path='', original_name='', mime_type='', size=0,
			content_nonce=NULL, closed_at=$3
		FROM (SELECT id, storage_path FROM shares WHERE id=$1 AND status='active' FOR UPDATE) old
		WHERE s.id = old.id
		RETURNING old.storage_path`

	var path string
	err := r.db.QueryRowContext(ctx, query, id, string(status), now).Scan(&path)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("db error: %w", err)
	}
	return path, true, nil
}

func (r *PostgresRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*models.Share, error) {
	query := `SELECT ` + shareColumns + ` FROM shares
		WHERE status='active' AND expires_at < $1
		ORDER BY expires_at
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select expired shares: %w", err)
	}
	defer rows.Close()

	var result []*models.Share
	for rows.Next() {
		s, err := scanShare(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) PurgeTombstones(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM shares WHERE status <> 'active' AND closed_at < $1`

	res, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffected(res)
}
