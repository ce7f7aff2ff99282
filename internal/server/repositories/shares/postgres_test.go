package shares

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
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

var cols = []string{"id", "status", "storage_path", "expires_at", "delete_on_download", "content_nonce",
	"original_name", "mime_type", "size", "created_at", "closed_at"}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+shares\b`).
		WithArgs("s1", "active", "shares/2026/10/14/s1", now.Add(time.Hour), true, []byte("nonce"),
			"report.pdf", "application/pdf", int64(500), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &models.Share{
		ID: "s1", Status: models.ShareActive, StoragePath: "shares/2026/10/14/s1",
		ExpiresAt: now.Add(time.Hour), DeleteOnDownload: true, ContentNonce: []byte("nonce"),
		OriginalName: "report.pdf", MimeType: "application/pdf", Size: 500, CreatedAt: now,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT\s+INTO\s+shares`).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &models.Share{ID: "s1", Status: models.ShareActive})
	require.Error(t, err)
	assert.Regexp(t, regexp.MustCompile(`db error: .*db down`), err.Error())
}

func TestGet_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*status.*FROM\s+shares\s+WHERE\s+id=\$1`).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("s1", "active", "p", now, false, []byte("n"), "a.txt", "text/plain", int64(3), now, nil))

	s, err := repo.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, models.ShareActive, s.Status)
	assert.Equal(t, "a.txt", s.OriginalName)
	assert.Nil(t, s.ClosedAt)
	assert.False(t, s.Terminal())
}

func TestGet_Tombstone(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`FROM\s+shares\s+WHERE\s+id=\$1`).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("s1", "consumed", "", now, true, nil, "", "", int64(0), now, now))

	s, err := repo.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, s.Terminal())
	require.NotNil(t, s.ClosedAt)
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+shares`).WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMarkTerminal(t *testing.T) {
	q := `(?s)^UPDATE\s+shares\s+s\s+SET\s+status=\$2.*FOR\s+UPDATE\).*RETURNING\s+old\.storage_path`
	now := time.Now()

	t.Run("active share is closed", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()

		mock.ExpectQuery(q).WithArgs("s1", "consumed", now).
			WillReturnRows(sqlmock.NewRows([]string{"storage_path"}).AddRow("shares/x"))

		path, ok, err := repo.MarkTerminal(context.Background(), "s1", models.ShareConsumed, now)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "shares/x", path)
	})

	t.Run("already closed", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()

		mock.ExpectQuery(q).WithArgs("s1", "expired", now).WillReturnError(sql.ErrNoRows)

		_, ok, err := repo.MarkTerminal(context.Background(), "s1", models.ShareExpired, now)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("db error", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()

		mock.ExpectQuery(q).WillReturnError(errors.New("conn reset"))

		_, _, err := repo.MarkTerminal(context.Background(), "s1", models.ShareExpired, now)
		assert.ErrorContains(t, err, "conn reset")
	})

	t.Run("active is not terminal", func(t *testing.T) {
		repo, _, db := newRepoWithMock(t)
		defer db.Close()

		_, _, err := repo.MarkTerminal(context.Background(), "s1", models.ShareActive, now)
		assert.Error(t, err)
	})
}

func TestListExpired(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)FROM\s+shares\s+WHERE\s+status='active'\s+AND\s+expires_at\s+<\s+\$1.*LIMIT\s+\$2`).
		WithArgs(now, 50).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("a", "active", "p1", now.Add(-time.Hour), false, []byte("n"), "a", "", int64(1), now, nil).
			AddRow("b", "active", "p2", now.Add(-time.Minute), true, []byte("n"), "b", "", int64(2), now, nil))

	got, err := repo.ListExpired(context.Background(), now, 50)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p2", got[1].StoragePath)
}

func TestListExpired_ScanError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+shares`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a"))

	_, err := repo.ListExpired(context.Background(), time.Now(), 10)
	assert.Error(t, err)
}

func TestPurgeTombstones(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	before := time.Now()
	mock.ExpectExec(`DELETE\s+FROM\s+shares\s+WHERE\s+status\s+<>\s+'active'\s+AND\s+closed_at\s+<\s+\$1`).
		WithArgs(before).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.PurgeTombstones(context.Background(), before)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}
