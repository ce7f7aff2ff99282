package drivefiles

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

const fileColumns = `id, user_id, folder_id, original_name, mime_type, size, storage_path,
	encryption_key, encryption_iv, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (*models.DriveFile, error) {
	var f models.DriveFile
	if err := row.Scan(&f.ID, &f.UserID, &f.FolderID, &f.OriginalName, &f.MimeType, &f.Size, &f.StoragePath,
		&f.EncryptionKey, &f.EncryptionIV, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

// Insert relies on the unique (user_id, folder_id, original_name) index:
// a conflicting row makes the insert a no-op instead of an error.
func (r *PostgresRepository) Insert(ctx context.Context, f *models.DriveFile) error {
	query := `INSERT INTO drive_files (id, user_id, folder_id, original_name, mime_type, size, storage_path,
			encryption_key, encryption_iv, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (user_id, folder_id, original_name) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query, f.ID, f.UserID, f.FolderID, f.OriginalName, f.MimeType, f.Size,
		f.StoragePath, f.EncryptionKey, f.EncryptionIV, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := dbx.RowsAffected(res)
	if err != nil {
		return err
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrNameTaken
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

func (r *PostgresRepository) Get(ctx context.Context, userID, id string) (*models.DriveFile, error) {
	query := `SELECT ` + fileColumns + ` FROM drive_files WHERE id=$1 AND user_id=$2`

	f, err := scanFile(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select drive file: %w", err)
	}
	return f, nil
}

func (r *PostgresRepository) List(ctx context.Context, userID, folderID string) ([]*models.DriveFile, error) {
	query := `SELECT ` + fileColumns + ` FROM drive_files
		WHERE user_id=$1 AND folder_id=$2
		ORDER BY original_name`

	rows, err := r.db.QueryContext(ctx, query, userID, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to select drive files: %w", err)
	}
	defer rows.Close()

	var result []*models.DriveFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Rename(ctx context.Context, userID, id, newName, folderID string) error {
	query := `UPDATE drive_files SET original_name=$3, folder_id=$4, updated_at=$5 WHERE id=$1 AND user_id=$2`

	res, err := r.db.ExecContext(ctx, query, id, userID, newName, folderID, time.Now().UTC())
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrNameTaken
		}
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

func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) error {
	query := `DELETE FROM drive_files WHERE id=$1 AND user_id=$2`

	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete drive file: %w", err)
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
