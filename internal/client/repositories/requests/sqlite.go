// Package requests keeps the key material of file requests this client
// created, so the requester can decrypt the upload later.
package requests

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/cipherdrop/internal/client/migrations"
	"github.com/dmitrijs2005/cipherdrop/internal/dbx"
)

// Request is one locally remembered request. ContentKey never leaves this
// machine except inside the fulfill link.
type Request struct {
	ID               string
	Server           string
	ContentKey       []byte
	ContentNonce     []byte
	DeleteOnDownload bool
	ExpiresAt        time.Time
	CreatedAt        time.Time
}

type Repository interface {
	Save(ctx context.Context, r *Request) error
	// Get returns (nil, nil) when id is unknown.
	Get(ctx context.Context, id string) (*Request, error)
	List(ctx context.Context) ([]*Request, error)
	Delete(ctx context.Context, id string) error
	// DeleteExpired drops records that expired before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// RunMigrations applies the embedded client schema.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate client db: %w", err)
	}
	return nil
}

// Open opens the SQLite database at dsn and migrates it.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, req *Request) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO requests (id, server, content_key, content_nonce, delete_on_download, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			server = excluded.server,
			content_key = excluded.content_key,
			content_nonce = excluded.content_nonce,
			delete_on_download = excluded.delete_on_download,
			expires_at = excluded.expires_at
	`, req.ID, req.Server, req.ContentKey, req.ContentNonce, req.DeleteOnDownload,
		req.ExpiresAt.Unix(), req.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save request[%s]: %w", req.ID, err)
	}
	return nil
}

const selectColumns = `SELECT id, server, content_key, content_nonce, delete_on_download, expires_at, created_at FROM requests`

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(s scanner) (*Request, error) {
	var (
		req                Request
		expires, createdAt int64
	)
	if err := s.Scan(&req.ID, &req.Server, &req.ContentKey, &req.ContentNonce, &req.DeleteOnDownload, &expires, &createdAt); err != nil {
		return nil, err
	}
	req.ExpiresAt = time.Unix(expires, 0).UTC()
	req.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &req, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Request, error) {
	req, err := scanRequest(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request[%s]: %w", id, err)
	}
	return req, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*Request, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+` ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var result []*Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request row: %w", err)
		}
		result = append(result, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate request rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM requests WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete request[%s]: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM requests WHERE expires_at < ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired requests: %w", err)
	}
	return dbx.RowsAffected(res)
}
