// Package httpapi exposes the share, request and drive services over HTTP.
// Handlers only move opaque bytes; they never encrypt or decrypt share and
// request content.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/cipherdrop/internal/logging"
	"github.com/dmitrijs2005/cipherdrop/internal/server/services"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	address   string
	shares    *services.ShareService
	requests  *services.RequestService
	drive     *services.DriveService
	logger    logging.Logger
	jwtSecret []byte
}

func NewServer(addr string, l logging.Logger, shares *services.ShareService, requests *services.RequestService,
	drive *services.DriveService, secretKey string) *Server {
	return &Server{
		address:   addr,
		logger:    l.With("module", "http_server"),
		shares:    shares,
		requests:  requests,
		drive:     drive,
		jwtSecret: []byte(secretKey),
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.withLogging)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/share", func(r chi.Router) {
		r.Post("/upload", s.createShare)
		r.Get("/{id}/meta", s.shareMeta)
		r.Get("/{id}", s.previewShare)
		r.Get("/{id}/download", s.downloadShare)
	})

	r.Route("/request", func(r chi.Router) {
		r.Post("/create", s.createRequest)
		r.Post("/{id}/upload", s.fulfillRequest)
		r.Get("/{id}/status", s.requestStatus)
		r.Get("/{id}/download", s.downloadRequest)
	})

	r.Route("/drive", func(r chi.Router) {
		r.Use(s.withAuth)
		r.Post("/upload", s.driveUpload)
		r.Get("/files", s.driveList)
		r.Get("/files/{id}/download", s.driveDownload)
		r.Delete("/files/{id}", s.driveDelete)
		r.Patch("/files/{id}", s.drivePatch)
	})

	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", l.Addr().String())
		errCh <- srv.Serve(l)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
