package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/dmitrijs2005/cipherdrop/internal/dbx"
	"github.com/dmitrijs2005/cipherdrop/internal/logging"
	"github.com/dmitrijs2005/cipherdrop/internal/server/blobstore"
	"github.com/dmitrijs2005/cipherdrop/internal/server/models"
	"github.com/dmitrijs2005/cipherdrop/internal/server/repositories/memory"
	"github.com/dmitrijs2005/cipherdrop/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cipherdrop/internal/server/repositories/requests"
	"github.com/dmitrijs2005/cipherdrop/internal/server/repositories/shares"
)

var errBoom = errors.New("boom")

// clock is a settable time source shared by the services under test.
type clock struct{ t time.Time }

func newClock() *clock {
	return &clock{t: time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func nonce() []byte { return bytes.Repeat([]byte{7}, 12) }

func body(n int) (*bytes.Reader, int64) {
	return bytes.NewReader(bytes.Repeat([]byte{0xab}, n)), int64(n)
}

type env struct {
	repos    repomanager.RepositoryManager
	blobs    *blobstore.MemoryStore
	reaper   *Reaper
	clock    *clock
	shares   *ShareService
	requests *RequestService
	drive    *DriveService
}

func newEnv(t *testing.T) *env {
	return newEnvWith(t, memory.NewManager(), nil)
}

// newEnvWith builds services over repos. wrap, when set, decorates the
// memory blob store the services use.
func newEnvWith(t *testing.T, repos repomanager.RepositoryManager, wrap func(blobstore.Store) blobstore.Store) *env {
	t.Helper()
	mem := blobstore.NewMemoryStore()
	var store blobstore.Store = mem
	if wrap != nil {
		store = wrap(mem)
	}
	log := logging.Nop()
	r := NewReaper(log, time.Second)
	c := newClock()

	e := &env{
		repos:    repos,
		blobs:    mem,
		reaper:   r,
		clock:    c,
		shares:   NewShareService(repos, store, r, log, 1<<20, 24*time.Hour),
		requests: NewRequestService(repos, store, r, log, 1<<20, 24*time.Hour),
		drive:    NewDriveService(repos, store, log, 1<<20, 4096),
	}
	e.shares.now = c.now
	e.requests.now = c.now
	e.drive.now = c.now
	return e
}

func readAll(t *testing.T, b *Blob) []byte {
	t.Helper()
	data, err := io.ReadAll(b)
	if err != nil {
		t.Fatalf("read blob: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("close blob: %v", err)
	}
	return data
}

// failingManager replaces individual repositories of an embedded manager.
type failingManager struct {
	repomanager.RepositoryManager
	shares   shares.Repository
	requests requests.Repository
}

func (m *failingManager) Shares(db dbx.DBTX) shares.Repository {
	if m.shares != nil {
		return m.shares
	}
	return m.RepositoryManager.Shares(db)
}

func (m *failingManager) Requests(db dbx.DBTX) requests.Repository {
	if m.requests != nil {
		return m.requests
	}
	return m.RepositoryManager.Requests(db)
}

type failingShares struct {
	shares.Repository
}

func (f *failingShares) Create(context.Context, *models.Share) error { return errBoom }

type failingFulfill struct {
	requests.Repository
}

func (f *failingFulfill) Fulfill(context.Context, string, string, models.FileMetadata, time.Time) (bool, error) {
	return false, errBoom
}

// flakyStore fails selected operations and delegates the rest.
type flakyStore struct {
	blobstore.Store
	getErr    error
	deleteErr error
	deletes   int
}

func (f *flakyStore) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.Store.Get(ctx, path)
}

func (f *flakyStore) Delete(ctx context.Context, path string) error {
	f.deletes++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.Store.Delete(ctx, path)
}
