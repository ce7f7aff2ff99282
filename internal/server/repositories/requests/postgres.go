package requests

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

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const requestColumns = `id, status, expires_at, delete_on_download, wrapped_key, wrap_salt, wrap_iv,
	storage_path, file_name, file_type, file_size, file_iv, fulfilled_at, downloaded_at, created_at, closed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.Request, error) {
	var (
		r                                   models.Request
		status                              string
		wrapped, salt, wrapIV               []byte
		fileName, fileType                  string
		fileSize                            int64
		fileIV                              []byte
		fulfilledAt, downloadedAt, closedAt sql.NullTime
	)
	if err := row.Scan(&r.ID, &status, &r.ExpiresAt, &r.DeleteOnDownload, &wrapped, &salt, &wrapIV,
		&r.StoragePath, &fileName, &fileType, &fileSize, &fileIV, &fulfilledAt, &downloadedAt, &r.CreatedAt, &closedAt); err != nil {
		return nil, err
	}

	r.Status = models.RequestStatus(status)
	if len(wrapped) > 0 {
		r.KeyWrap = &models.KeyWrap{EncryptedKey: wrapped, Salt: salt, WrapIV: wrapIV}
	}
	if r.HasFile() {
		r.File = &models.FileMetadata{Name: fileName, Type: fileType, Size: fileSize, IV: fileIV}
	}
	r.FulfilledAt = nullTime(fulfilledAt)
	r.DownloadedAt = nullTime(downloadedAt)
	r.ClosedAt = nullTime(closedAt)
	return &r, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func (r *PostgresRepository) Create(ctx context.Context, req *models.Request) error {
	var wrapped, salt, wrapIV []byte
	if req.KeyWrap != nil {
		wrapped, salt, wrapIV = req.KeyWrap.EncryptedKey, req.KeyWrap.Salt, req.KeyWrap.WrapIV
	}

	query := `INSERT INTO requests (id, status, expires_at, delete_on_download, wrapped_key, wrap_salt, wrap_iv, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query, req.ID, string(req.Status), req.ExpiresAt, req.DeleteOnDownload,
		wrapped, salt, wrapIV, req.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id=$1`

	req, err := scanRequest(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select request: %w", err)
	}
	return req, nil
}

func (r *PostgresRepository) Fulfill(ctx context.Context, id, storagePath string, file models.FileMetadata, now time.Time) (bool, error) {
	query := `UPDATE requests SET status='fulfilled', storage_path=$2, file_name=$3, file_type=$4, file_size=$5,
			file_iv=$6, fulfilled_at=$7
		WHERE id=$1 AND status='pending' AND expires_at >= $7`

	res, err := r.db.ExecContext(ctx, query, id, storagePath, file.Name, file.Type, file.Size, file.IV, now)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := dbx.RowsAffected(res)
	if err != nil {
		return false, err
	}
	switch n {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("unexpected rows affected: %d", n)
	}
}

func (r *PostgresRepository) MarkDownloaded(ctx context.Context, id string, now time.Time) error {
	query := `UPDATE requests SET status='downloaded', downloaded_at=$2
		WHERE id=$1 AND status IN ('fulfilled', 'downloaded')`

	res, err := r.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := dbx.RowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) MarkTerminal(ctx context.Context, id string, status models.RequestStatus, now time.Time) (string, bool, error) {
	if status != models.RequestExpired && status != models.RequestDeleted {
		return "", false, fmt.Errorf("invalid terminal status %q", status)
	}

	query := `UPDATE requests q SET status=$2, storage_path='', file_name='', file_type='', file_size=0,
			file_iv=NULL, wrapped_key=NULL, wrap_salt=NULL, wrap_iv=NULL, closed_at=$3
		FROM (SELECT id, storage_path FROM requests
			WHERE id=$1 AND status IN ('pending', 'fulfilled', 'downloaded') FOR UPDATE) old
		WHERE q.id = old.id
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

func (r *PostgresRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests
		WHERE status IN ('pending', 'fulfilled', 'downloaded') AND expires_at < $1
		ORDER BY expires_at
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select expired requests: %w", err)
	}
	defer rows.Close()

	var result []*models.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) PurgeTombstones(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM requests WHERE status IN ('expired', 'deleted') AND closed_at < $1`

	res, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffected(res)
}
