package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sundayezeilo/tinylink/internal/config"
	"github.com/sundayezeilo/tinylink/internal/httpx"
	"github.com/sundayezeilo/tinylink/internal/links"
	"github.com/sundayezeilo/tinylink/web"
)

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	Version string `json:"version"`
}

// Server represents the HTTP server with all dependencies.
type Server struct {
	config  *config.Config
	logger  *slog.Logger
	handler *links.Handler
	server  *http.Server
}

// New creates a new Server instance.
func New(cfg *config.Config, logger *slog.Logger, handler *links.Handler) *Server {
	return &Server{
		config:  cfg,
		logger:  logger,
		handler: handler,
	}
}

// Handler returns the routed handler wrapped in middleware.
func (s *Server) Handler() http.Handler {
	return s.applyMiddleware(s.setupRoutes())
}

// Start starts the HTTP server and blocks until ctx is cancelled or a
// shutdown signal arrives.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Server.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the server on ln until ctx is cancelled or a shutdown signal arrives.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(s.logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server",
			"addr", ln.Addr().String(),
			"env", s.config.App.Environment,
		)
		serverErrors <- s.server.Serve(ln)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		s.logger.Info("received shutdown signal", "signal", sig.String())

	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	s.logger.Info("server stopped gracefully")
	return nil
}

// setupRoutes configures all HTTP routes. More specific patterns win, so
// the reserved prefixes never reach the redirect handler.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.healthCheckHandler)

	mux.HandleFunc("POST /api/links", s.handler.CreateLink)
	mux.HandleFunc("GET /api/links", s.handler.ListLinks)
	mux.HandleFunc("GET /api/links/{code}", s.handler.GetLink)
	mux.HandleFunc("DELETE /api/links/{code}", s.handler.DeleteLink)
	mux.HandleFunc("GET /api/links/{code}/qr", s.handler.QRCode)
	mux.HandleFunc("/api/", s.apiNotFound)

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(web.Static())))
	mux.HandleFunc("GET /{$}", s.pageHandler("index.html"))
	mux.HandleFunc("GET /code/{code}", s.pageHandler("code.html"))

	mux.HandleFunc("GET /{code}", s.handler.Redirect)

	return mux
}

// applyMiddleware wraps the handler with middleware in the correct order.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	return httpx.Chain(
		httpx.Recovery(s.logger), // Outermost: catch panics
		httpx.RequestID,
		httpx.Logger(s.logger),
		httpx.CORS(s.config.Server.CORSOrigins),
	)(handler)
}

func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, HealthResponse{
		OK:      true,
		Version: s.config.App.Version,
	})
}

func (s *Server) apiNotFound(w http.ResponseWriter, r *http.Request) {
	httpx.WriteError(w, http.StatusNotFound, "not_found", "Not found")
}

func (s *Server) pageHandler(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := web.Page(name)
		if err != nil {
			s.logger.ErrorContext(r.Context(), "failed to read page", "page", name, "error", err)
			httpx.WriteText(w, http.StatusInternalServerError, "Server error")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(page)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	s.logger.Info("shutting down server")

	if err := s.server.Shutdown(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("shutdown timeout exceeded, forcing close")
			return s.server.Close()
		}
		return err
	}

	return nil
}
