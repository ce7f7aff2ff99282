// Package server wires configuration, storage backends and services into a
// running cipherdrop HTTP server with an optional background sweeper.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/cipherdrop/internal/logging"
	"github.com/dmitrijs2005/cipherdrop/internal/server/blobstore"
	"github.com/dmitrijs2005/cipherdrop/internal/server/config"
	"github.com/dmitrijs2005/cipherdrop/internal/server/httpapi"
	"github.com/dmitrijs2005/cipherdrop/internal/server/repositories/memory"
	"github.com/dmitrijs2005/cipherdrop/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cipherdrop/internal/server/services"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	closeLog func()
	repos    repomanager.RepositoryManager
	reaper   *services.Reaper
	http     *httpapi.Server
	sweeper  *services.Sweeper
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, closeLog, err := logging.New(c.LogBackend, os.Stdout)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	repos, err := openRepositories(ctx, c)
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("db init error: %w", err)
	}

	blobs, err := openBlobStore(ctx, c)
	if err != nil {
		_ = repos.Close()
		closeLog()
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	reaper := services.NewReaper(logger.With("module", "reaper"), c.CleanupTimeout)
	shares := services.NewShareService(repos, blobs, reaper, logger.With("module", "shares"), c.ShareMaxBytes, c.ShareMaxExpiry)
	requests := services.NewRequestService(repos, blobs, reaper, logger.With("module", "requests"), c.ShareMaxBytes, c.RequestTTL)
	drive := services.NewDriveService(repos, blobs, logger.With("module", "drive"), c.DriveMaxBytes, c.DriveQuotaBytes)
	drive.LimitMemory(c.DriveMemoryBytes)

	return &App{
		config:   c,
		logger:   logger,
		closeLog: closeLog,
		repos:    repos,
		reaper:   reaper,
		http:     httpapi.NewServer(c.HTTPAddr, logger, shares, requests, drive, c.SecretKey),
		sweeper:  services.NewSweeper(shares, requests, repos, logger.With("module", "sweeper"), c.SweepInterval, c.TombstoneRetention),
	}, nil
}

func openRepositories(ctx context.Context, c *config.Config) (repomanager.RepositoryManager, error) {
	if c.DatabaseDSN == config.DSNMemory {
		return memory.NewManager(), nil
	}
	m, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	if err := m.RunMigrations(ctx); err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return m, nil
}

func openBlobStore(ctx context.Context, c *config.Config) (blobstore.Store, error) {
	switch c.StorageBackend {
	case config.StorageMemory:
		return blobstore.NewMemoryStore(), nil
	case config.StorageAzure:
		return blobstore.NewAzureStore(ctx, c.AzureConnectionString, c.AzureContainer)
	case config.StorageS3, "":
		return blobstore.NewS3Store(ctx, blobstore.S3Options{
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			Region:       c.S3Region,
			Bucket:       c.S3Bucket,
			BaseEndpoint: c.S3BaseEndpoint,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
}

// Run serves until SIGINT/SIGTERM or a component failure, then waits for
// pending cleanup jobs and releases resources.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...", "storage", app.config.StorageBackend, "sweep_interval", app.config.SweepInterval)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.http.Run(ctx) })
	g.Go(func() error { return app.sweeper.Run(ctx) })

	err := g.Wait()

	app.reaper.Wait()
	if cerr := app.repos.Close(); cerr != nil {
		app.logger.Error(ctx, "close repositories", "error", cerr)
	}
	app.logger.Info(ctx, "Stopped")
	app.closeLog()
	return err
}
