package drivefiles

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/cipherdrop/internal/common"
	"github.com/dmitrijs2005/cipherdrop/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

var cols = []string{"id", "user_id", "folder_id", "original_name", "mime_type", "size", "storage_path",
	"encryption_key", "encryption_iv", "created_at", "updated_at"}

func sample(now time.Time) *models.DriveFile {
	return &models.DriveFile{
		ID: "f1", UserID: "u1", FolderID: "", OriginalName: "notes.txt", MimeType: "text/plain", Size: 10,
		StoragePath: "users/u1/2026/10/14/f1", EncryptionKey: []byte("k"), EncryptionIV: []byte("iv"), CreatedAt: now,
	}
}

func TestInsert(t *testing.T) {
	q := `(?s)^INSERT\s+INTO\s+drive_files\b.*ON\s+CONFLICT\s+\(user_id,\s*folder_id,\s*original_name\)\s+DO\s+NOTHING`
	now := time.Now()

	t.Run("inserted", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()

		mock.ExpectExec(q).
			WithArgs("f1", "u1", "", "notes.txt", "text/plain", int64(10), "users/u1/2026/10/14/f1", []byte("k"), []byte("iv"), now).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Insert(context.Background(), sample(now)))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("name taken", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()

		mock.ExpectExec(q).WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Insert(context.Background(), sample(now))
		assert.ErrorIs(t, err, common.ErrNameTaken)
		assert.Equal(t, common.KindConflict, common.KindOf(err))
	})

	t.Run("db error", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()

		mock.ExpectExec(q).WillReturnError(errors.New("db down"))

		assert.ErrorContains(t, repo.Insert(context.Background(), sample(now)), "db error: db down")
	})
}

func TestGet(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	q := `FROM\s+drive_files\s+WHERE\s+id=\$1\s+AND\s+user_id=\$2`
	mock.ExpectQuery(q).WithArgs("f1", "u1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("f1", "u1", "", "notes.txt", "text/plain", int64(10), "p", []byte("k"), []byte("iv"), now, now))
	mock.ExpectQuery(q).WithArgs("f1", "u2").WillReturnError(sql.ErrNoRows)

	f, err := repo.Get(context.Background(), "u1", "f1")
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", f.OriginalName)
	assert.Equal(t, []byte("k"), f.EncryptionKey)

	_, err = repo.Get(context.Background(), "u2", "f1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestList(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)FROM\s+drive_files\s+WHERE\s+user_id=\$1\s+AND\s+folder_id=\$2.*ORDER\s+BY\s+original_name`).
		WithArgs("u1", "docs").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("f1", "u1", "docs", "a.txt", "text/plain", int64(1), "p1", []byte("k"), []byte("iv"), now, now).
			AddRow("f2", "u1", "docs", "b.txt", "text/plain", int64(2), "p2", []byte("k"), []byte("iv"), now, now))

	got, err := repo.List(context.Background(), "u1", "docs")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b.txt", got[1].OriginalName)
}

func TestRename(t *testing.T) {
	q := `UPDATE\s+drive_files\s+SET\s+original_name=\$3,\s*folder_id=\$4`

	tests := []struct {
		name    string
		setup   func(sqlmock.Sqlmock)
		wantErr error
	}{
		{"renamed", func(m sqlmock.Sqlmock) {
			m.ExpectExec(q).WithArgs("f1", "u1", "new.txt", "", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
		}, nil},
		{"collision", func(m sqlmock.Sqlmock) {
			m.ExpectExec(q).WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "drive_files_name_uidx"})
		}, common.ErrNameTaken},
		{"missing", func(m sqlmock.Sqlmock) {
			m.ExpectExec(q).WillReturnResult(sqlmock.NewResult(0, 0))
		}, common.ErrorNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()
			tt.setup(mock)

			err := repo.Rename(context.Background(), "u1", "f1", "new.txt", "")
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `DELETE\s+FROM\s+drive_files\s+WHERE\s+id=\$1\s+AND\s+user_id=\$2`
	mock.ExpectExec(q).WithArgs("f1", "u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("f1", "u1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q).WithArgs("f1", "u1").WillReturnError(errors.New("boom"))

	require.NoError(t, repo.Delete(context.Background(), "u1", "f1"))
	assert.ErrorIs(t, repo.Delete(context.Background(), "u1", "f1"), common.ErrorNotFound)
	assert.ErrorContains(t, repo.Delete(context.Background(), "u1", "f1"), "failed to delete drive file")
}
