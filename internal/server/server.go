// Package server exposes the game registry over HTTP.
//
// Every endpoint answers JSON. Failures carry {"error": "..."} with a status
// derived from the registry error: 404 for an unknown game or player, 409
// for a full or not yet started game, 503 when the server holds too many
// games and 400 for malformed parameters.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/jcharra/Entris/internal/config"
	"github.com/jcharra/Entris/internal/multiplayer"
	"github.com/jcharra/Entris/internal/protocol"
)

// Config holds the HTTP layer settings.
type Config struct {
	Addr           string
	RequestTimeout time.Duration
	WatchInterval  time.Duration
	Defaults       config.NewGameConfig
}

// ConfigFrom maps the server section of the config file.
func ConfigFrom(sc config.ServerConfig) Config {
	return Config{
		Addr:           sc.Addr,
		RequestTimeout: sc.RequestTimeout,
		WatchInterval:  sc.WatchInterval,
		Defaults:       sc.Defaults,
	}
}

// Server bundles router and registry.
type Server struct {
	r      *chi.Mux
	reg    *multiplayer.Registry
	cfg    Config
	logger *log.Logger
}

// New constructs a Server, installs middleware, and registers routes.
func New(reg *multiplayer.Registry, cfg Config, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.WatchInterval <= 0 {
		cfg.WatchInterval = time.Second
	}
	if cfg.Defaults.Size == 0 {
		cfg.Defaults.Size = 2
	}
	if cfg.Defaults.Dimensions == "" {
		cfg.Defaults.Dimensions = "20x25"
	}

	s := &Server{r: chi.NewRouter(), reg: reg, cfg: cfg, logger: logger}

	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(s.requestLogger)
	s.r.Use(chimw.Recoverer)

	s.r.Get(protocol.PathHealth, s.handleHealth)

	// The watch stream outlives the request timeout.
	s.r.Get(protocol.PathWatch, s.handleWatch)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
		r.Use(jsonContentType)

		r.Post(protocol.PathNew, s.handleNew)
		r.Get(protocol.PathRegister, s.handleRegister)
		r.Get(protocol.PathStatus, s.handleStatus)
		r.Get(protocol.PathReceive, s.handleReceive)
		r.Post(protocol.PathSendLines, s.handleSendLines)
		r.Get(protocol.PathGetParts, s.handleGetParts)
		r.Post(protocol.PathUnregister, s.handleUnregister)
		r.Get(protocol.PathList, s.handleList)
	})

	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, protocol.ErrorResponse{Error: "not found: " + r.URL.Path})
	})
	s.r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, protocol.ErrorResponse{Error: "method not allowed"})
	})

	return s
}

// Handler exposes the router (useful for tests).
func (s *Server) Handler() http.Handler { return s.r }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// requestLogger logs one line per request with its status and duration.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"took", time.Since(start),
			"id", chimw.GetReqID(r.Context()),
		)
	})
}

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// badRequest marks a parameter error.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

// statusFor maps registry and parameter errors to HTTP status codes.
func statusFor(err error) int {
	var br badRequest
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest
	case errors.Is(err, multiplayer.ErrGameNotFound), errors.Is(err, multiplayer.ErrPlayerNotFound):
		return http.StatusNotFound
	case errors.Is(err, multiplayer.ErrGameFull), errors.Is(err, multiplayer.ErrNotStarted):
		return http.StatusConflict
	case errors.Is(err, multiplayer.ErrServerFull):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage is the text put on the wire for err.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, multiplayer.ErrServerFull):
		return protocol.MsgServerFull
	case errors.Is(err, multiplayer.ErrGameFull):
		return protocol.MsgGameFull
	case errors.Is(err, multiplayer.ErrGameNotFound):
		return protocol.MsgGameNotFound
	case errors.Is(err, multiplayer.ErrPlayerNotFound):
		return protocol.MsgPlayerNotFound
	case errors.Is(err, multiplayer.ErrNotStarted):
		return protocol.MsgNotStarted
	default:
		return err.Error()
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, protocol.ErrorResponse{Error: errorMessage(err)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "games": s.reg.Count()})
}
