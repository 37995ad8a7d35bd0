// Package server is the campman development backend: an HTTP REST server that
// provides the authentication, campaign, image, user, and activity log
// resources the console talks to. It exists so the console can be run and
// tested without the production service.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dekarrin/campman/internal/logging"
	"github.com/dekarrin/campman/server/api"
	"github.com/dekarrin/campman/server/dao"
	"github.com/dekarrin/campman/server/serr"
	"github.com/dekarrin/campman/server/service"
)

// PruneInterval is how often ServeForever removes expired activity log
// entries.
const PruneInterval = time.Hour

// Server is an HTTP REST server that provides the campman backend resources.
// The zero-value of a Server should not be used directly; call New() to get
// one ready for use.
type Server struct {
	router http.Handler
	db     dao.Store
	svc    service.Service
	log    *slog.Logger
}

// New creates a new Server from the given config. cfg is filled with defaults
// and validated before use.
func New(cfg Config) (Server, error) {
	cfg = cfg.FillDefaults()
	if err := cfg.Validate(); err != nil {
		return Server{}, fmt.Errorf("config: %w", err)
	}

	db, err := cfg.DB.Connect()
	if err != nil {
		return Server{}, err
	}

	s := Server{
		db:  db,
		log: logging.OrDiscard(cfg.Logger),
		svc: service.Service{
			DB:           db,
			Now:          cfg.Now,
			BcryptCost:   cfg.BcryptCost,
			LogRetention: cfg.LogRetention(),
			ExportLimit:  cfg.ExportMaxRecords,
		},
	}

	s.router = newRouter(api.API{
		Backend:     s.svc,
		UnauthDelay: cfg.UnauthDelay(),
		Secret:      cfg.TokenSecret,
		Logger:      s.log,
	})

	return s, nil
}

// Handler returns the handler that serves every route of the server.
func (s Server) Handler() http.Handler {
	return s.router
}

// Service returns the service layer the server calls into.
func (s Server) Service() service.Service {
	return s.svc
}

// Close releases the server's persistence.
func (s Server) Close() error {
	return s.db.Close()
}

// EnsureAdmin creates an admin user with the given email and password if no
// user with that email exists yet. If password is empty, the admin must set
// one on first login. Returns whether a user was created.
func (s Server) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	_, err := s.svc.CreateUser(ctx, email, password, true)
	if err != nil {
		if errors.Is(err, serr.ErrAlreadyExists) {
			return false, nil
		}
		return false, err
	}
	s.log.Info("created admin user", "email", email)
	return true, nil
}

// ServeForever begins listening on the given address and port for HTTP REST
// client requests and blocks until ctx is cancelled or the listener fails. If
// address is kept as "", it will default to "localhost". If port is less than
// 1, it will default to 8080.
//
// While serving, activity log entries past their retention are removed once
// every PruneInterval.
func (s Server) ServeForever(ctx context.Context, address string, port int) error {
	if address == "" {
		address = "localhost"
	}
	if port < 1 {
		port = 8080
	}

	listenAddress := fmt.Sprintf("%s:%d", address, port)
	httpSrv := &http.Server{
		Addr:              listenAddress,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.pruneLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "address", listenAddress)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s Server) pruneLoop(ctx context.Context) {
	s.prune(ctx)

	ticker := time.NewTicker(PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.prune(ctx)
		}
	}
}

func (s Server) prune(ctx context.Context) {
	n, err := s.svc.PruneLogs(ctx)
	if err != nil {
		s.log.Error("could not prune activity log", "error", err)
		return
	}
	if n > 0 {
		s.log.Info("pruned activity log", "removed", n)
	}
}
