package services

import (
	"context"
	"database/sql"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/cipherdrop/internal/client/api"
	"github.com/dmitrijs2005/cipherdrop/internal/client/repositories/requests"
	"github.com/dmitrijs2005/cipherdrop/internal/logging"
	"github.com/dmitrijs2005/cipherdrop/internal/server/auth"
	"github.com/dmitrijs2005/cipherdrop/internal/server/blobstore"
	"github.com/dmitrijs2005/cipherdrop/internal/server/httpapi"
	"github.com/dmitrijs2005/cipherdrop/internal/server/repositories/memory"
	srvservices "github.com/dmitrijs2005/cipherdrop/internal/server/services"
)

const testSecret = "client-test-secret"

// stack is a client wired to an in-process server backed by memory stores.
type stack struct {
	url    string
	client *api.Client
	blobs  *blobstore.MemoryStore
	reaper *srvservices.Reaper
	db     *sql.DB
}

func newStack(t *testing.T) *stack {
	t.Helper()
	log := logging.Nop()
	repos := memory.NewManager()
	blobs := blobstore.NewMemoryStore()
	reaper := srvservices.NewReaper(log, time.Second)

	srv := httpapi.NewServer(":0", log,
		srvservices.NewShareService(repos, blobs, reaper, log, 1<<20, 24*time.Hour),
		srvservices.NewRequestService(repos, blobs, reaper, log, 1<<20, 24*time.Hour),
		srvservices.NewDriveService(repos, blobs, log, 2<<20, 1<<20),
		testSecret)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	tok, err := auth.GenerateToken("alice", []byte(testSecret), time.Hour)
	require.NoError(t, err)

	db, err := requests.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	c := api.New(ts.URL, api.WithToken(tok), api.WithRetries(0))
	return &stack{url: ts.URL, client: c, blobs: blobs, reaper: reaper, db: db}
}

func (s *stack) newRequests() *Requests {
	return NewRequests(s.client, requests.NewSQLiteRepository(s.db), logging.Nop())
}

// otherMachine is a Requests service with an empty local store.
func (s *stack) otherMachine(t *testing.T) *Requests {
	t.Helper()
	db, err := requests.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRequests(s.client, requests.NewSQLiteRepository(db), logging.Nop())
}

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}
