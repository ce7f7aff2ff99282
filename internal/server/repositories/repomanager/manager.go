// Package repomanager wires the metadata repositories to a database handle
// and owns schema migrations.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/cipherdrop/internal/dbx"
	"github.com/dmitrijs2005/cipherdrop/internal/server/repositories/drivefiles"
	"github.com/dmitrijs2005/cipherdrop/internal/server/repositories/requests"
	"github.com/dmitrijs2005/cipherdrop/internal/server/repositories/shares"
	"github.com/dmitrijs2005/cipherdrop/internal/server/repositories/usage"
)

// RepositoryManager vends repositories bound to a DBTX. Pass Conn() for
// single statements, or the handle given to a WithTx callback to run
// several repository calls atomically.
type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Conn() dbx.DBTX
	WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error
	Close() error

	Shares(db dbx.DBTX) shares.Repository
	Requests(db dbx.DBTX) requests.Repository
	DriveFiles(db dbx.DBTX) drivefiles.Repository
	Usage(db dbx.DBTX) usage.Repository
}
