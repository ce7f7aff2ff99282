// Package memory is an in-process implementation of the metadata store,
// used for development (-d memory) and service tests. It mirrors the
// conditional semantics of the PostgreSQL repositories.
package memory

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/cipherdrop/internal/dbx"
	"github.com/dmitrijs2005/cipherdrop/internal/server/models"
	"github.com/dmitrijs2005/cipherdrop/internal/server/repositories/drivefiles"
	"github.com/dmitrijs2005/cipherdrop/internal/server/repositories/requests"
	"github.com/dmitrijs2005/cipherdrop/internal/server/repositories/shares"
	"github.com/dmitrijs2005/cipherdrop/internal/server/repositories/usage"
)

type store struct {
	mu         sync.Mutex
	shares     map[string]*models.Share
	requests   map[string]*models.Request
	driveFiles map[string]*models.DriveFile
	usage      map[string]*models.Usage
}

// Manager vends repositories over one shared in-memory store. The DBTX
// arguments are ignored.
//
// WithTx serializes callbacks against each other but does not roll back:
// a callback that fails halfway leaves its earlier writes in place.
type Manager struct {
	txMu sync.Mutex
	s    *store
}

func NewManager() *Manager {
	return &Manager{s: &store{
		shares:     map[string]*models.Share{},
		requests:   map[string]*models.Request{},
		driveFiles: map[string]*models.DriveFile{},
		usage:      map[string]*models.Usage{},
	}}
}

func (m *Manager) RunMigrations(context.Context) error { return nil }

func (m *Manager) Conn() dbx.DBTX { return nil }

func (m *Manager) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(ctx, nil)
}

func (m *Manager) Close() error { return nil }

func (m *Manager) Shares(dbx.DBTX) shares.Repository { return &shareRepo{s: m.s} }

func (m *Manager) Requests(dbx.DBTX) requests.Repository { return &requestRepo{s: m.s} }

func (m *Manager) DriveFiles(dbx.DBTX) drivefiles.Repository { return &driveFileRepo{s: m.s} }

func (m *Manager) Usage(dbx.DBTX) usage.Repository { return &usageRepo{s: m.s} }
