// Package server wires the focusd service together: storage, auth, the
// realtime tracking endpoint, the sessions API, and lifecycle management.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	"github.com/focusup/focusd/pkg/api"
	"github.com/focusup/focusd/pkg/auth"
	"github.com/focusup/focusd/pkg/config"
	"github.com/focusup/focusd/pkg/database/migrate"
	"github.com/focusup/focusd/pkg/health"
	"github.com/focusup/focusd/pkg/realtime"
	"github.com/focusup/focusd/pkg/session"
	sessionpg "github.com/focusup/focusd/pkg/session/postgres"
	"github.com/focusup/focusd/pkg/user"
	userpg "github.com/focusup/focusd/pkg/user/postgres"
)

// Version is set at build time.
var Version = "dev"

// Server is the assembled focusd service.
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *sql.DB
	sessions session.Store
	users    user.Store
	hub      *realtime.Hub
	checker  *health.Checker
	handler  http.Handler
}

// New builds a Server from cfg. With a database URL configured it opens
// Postgres (optionally running migrations); otherwise it falls back to the
// in-memory stores.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	verifier, err := auth.NewVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		hub:     realtime.NewHub(),
		checker: health.NewChecker(),
	}

	if cfg.Database.URL != "" {
		db, err := sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

		if err := db.Ping(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("pinging database: %w", err)
		}
		if cfg.Database.AutoMigrate {
			if err := migrate.Run(db); err != nil {
				_ = db.Close()
				return nil, err
			}
		}

		s.db = db
		s.sessions = sessionpg.New(db)
		s.users = userpg.New(db)
	} else {
		logger.Warn("no database configured, using in-memory stores")
		s.sessions = session.NewMemoryStore()
		s.users = user.NewMemoryStore()
	}

	service := session.NewService(s.sessions, s.users, logger)

	wsHandler := realtime.NewHandler(realtime.Config{
		Store:         s.sessions,
		Service:       service,
		Verifier:      verifier,
		Hub:           s.hub,
		Logger:        logger,
		TickInterval:  cfg.Tracking.TickInterval,
		IdleThreshold: cfg.Tracking.IdleThreshold,
	})
	apiHandler := api.NewHandler(service, auth.Middleware(verifier), logger)

	mux := http.NewServeMux()
	mux.Handle("/ws/sessions", wsHandler)
	mux.Handle("/api/sessions", apiHandler)
	mux.Handle("/api/sessions/", apiHandler)
	mux.HandleFunc("GET /healthz", health.LivenessHandler())
	mux.HandleFunc("GET /readyz", s.checker.ReadinessHandler())

	s.handler = mux
	return s, nil
}

// Handler returns the root HTTP handler. Exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Hub returns the live connection registry.
func (s *Server) Hub() *realtime.Hub {
	return s.hub
}

// Run serves HTTP until ctx is cancelled, then drains: readiness flips to
// draining, live trackers are cancelled, in-flight requests get the
// shutdown timeout, and the database is closed.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Server.Address,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.cfg.Server.Address, "version", Version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	s.checker.SetReady()

	select {
	case err := <-errCh:
		s.close()
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	s.checker.SetDraining()
	s.hub.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	err := httpServer.Shutdown(shutdownCtx)

	s.close()
	if err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

func (s *Server) close() {
	_ = s.sessions.Close()
	_ = s.users.Close()
	if s.db != nil {
		_ = s.db.Close()
	}
}
