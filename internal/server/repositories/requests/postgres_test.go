package requests

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/cipherdrop/internal/common"
	"github.com/dmitrijs2005/cipherdrop/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

var cols = []string{"id", "status", "expires_at", "delete_on_download", "wrapped_key", "wrap_salt", "wrap_iv",
	"storage_path", "file_name", "file_type", "file_size", "file_iv", "fulfilled_at", "downloaded_at", "created_at", "closed_at"}

func TestCreate_WithKeyWrap(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+requests\b`).
		WithArgs("r1", "pending", now.Add(24*time.Hour), true, []byte("wk"), []byte("salt"), []byte("wiv"), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &models.Request{
		ID: "r1", Status: models.RequestPending, ExpiresAt: now.Add(24 * time.Hour), DeleteOnDownload: true,
		KeyWrap:   &models.KeyWrap{EncryptedKey: []byte("wk"), Salt: []byte("salt"), WrapIV: []byte("wiv")},
		CreatedAt: now,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_WithoutKeyWrap(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(`INSERT\s+INTO\s+requests`).
		WithArgs("r1", "pending", now, false, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), &models.Request{
		ID: "r1", Status: models.RequestPending, ExpiresAt: now, CreatedAt: now,
	}))
}

func TestGet_Pending(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)FROM\s+requests\s+WHERE\s+id=\$1`).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("r1", "pending", now, false, nil, nil, nil, "", "", "", int64(0), nil, nil, nil, now, nil))

	req, err := repo.Get(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, req.Status)
	assert.Nil(t, req.File)
	assert.Nil(t, req.KeyWrap)
	assert.Nil(t, req.FulfilledAt)
}

func TestGet_Fulfilled(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`FROM\s+requests`).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("r1", "fulfilled", now, false, []byte("wk"), []byte("s"), []byte("w"),
				"requests/r1", "a.bin", "application/octet-stream", int64(42), []byte("iv"), now, nil, now, nil))

	req, err := repo.Get(context.Background(), "r1")
	require.NoError(t, err)
	require.NotNil(t, req.File)
	assert.Equal(t, "a.bin", req.File.Name)
	assert.Equal(t, int64(42), req.File.Size)
	require.NotNil(t, req.KeyWrap)
	assert.Equal(t, []byte("wk"), req.KeyWrap.EncryptedKey)
	require.NotNil(t, req.FulfilledAt)
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+requests`).WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "x")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestFulfill(t *testing.T) {
	q := `(?s)^UPDATE\s+requests\s+SET\s+status='fulfilled'.*WHERE\s+id=\$1\s+AND\s+status='pending'\s+AND\s+expires_at\s+>=\s+\$7`
	now := time.Now()
	meta := models.FileMetadata{Name: "a.bin", Type: "application/octet-stream", Size: 42, IV: []byte("iv")}

	tests := []struct {
		name    string
		result  driverResult
		wantOK  bool
		wantErr bool
	}{
		{"first upload wins", driverResult{rows: 1}, true, false},
		{"not pending", driverResult{rows: 0}, false, false},
		{"db error", driverResult{err: errors.New("boom")}, false, true},
		{"too many rows", driverResult{rows: 2}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			exp := mock.ExpectExec(q).WithArgs("r1", "requests/r1", "a.bin", "application/octet-stream", int64(42), []byte("iv"), now)
			if tt.result.err != nil {
				exp.WillReturnError(tt.result.err)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(0, tt.result.rows))
			}

			ok, err := repo.Fulfill(context.Background(), "r1", "requests/r1", meta, now)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

type driverResult struct {
	rows int64
	err  error
}

func TestMarkDownloaded(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	q := `UPDATE\s+requests\s+SET\s+status='downloaded'`
	mock.ExpectExec(q).WithArgs("r1", now).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("r2", now).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.MarkDownloaded(context.Background(), "r1", now))
	assert.ErrorIs(t, repo.MarkDownloaded(context.Background(), "r2", now), common.ErrorNotFound)
}

func TestMarkTerminal(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	q := `(?s)^UPDATE\s+requests\s+q\s+SET\s+status=\$2.*FOR\s+UPDATE\).*RETURNING\s+old\.storage_path`
	mock.ExpectQuery(q).WithArgs("r1", "deleted", now).
		WillReturnRows(sqlmock.NewRows([]string{"storage_path"}).AddRow("requests/r1"))
	mock.ExpectQuery(q).WithArgs("r1", "expired", now).WillReturnError(sql.ErrNoRows)

	path, ok, err := repo.MarkTerminal(context.Background(), "r1", models.RequestDeleted, now)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "requests/r1", path)

	_, ok, err = repo.MarkTerminal(context.Background(), "r1", models.RequestExpired, now)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = repo.MarkTerminal(context.Background(), "r1", models.RequestFulfilled, now)
	assert.Error(t, err)
}

func TestListExpiredAndPurge(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)FROM\s+requests\s+WHERE\s+status\s+IN.*expires_at\s+<\s+\$1`).
		WithArgs(now, 10).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("r1", "pending", now, false, nil, nil, nil, "", "", "", int64(0), nil, nil, nil, now, nil))
	mock.ExpectExec(`DELETE\s+FROM\s+requests\s+WHERE\s+status\s+IN\s+\('expired',\s*'deleted'\)`).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 4))

	got, err := repo.ListExpired(context.Background(), now, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)

	n, err := repo.PurgeTombstones(context.Background(), now)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
}
