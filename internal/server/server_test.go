package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sundayezeilo/tinylink/internal/config"
	"github.com/sundayezeilo/tinylink/internal/db/migrations"
	"github.com/sundayezeilo/tinylink/internal/links"
)

/***************
 * Helpers
 ***************/

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            "0",
			BaseURL:         "http://tiny.test",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    5 * time.Second,
			IdleTimeout:     5 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		App: config.AppConfig{
			Environment: "test",
			LogLevel:    "error",
			Version:     "9.9.9",
		},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	db, err := links.OpenSQLite("file:" + filepath.Join(t.TempDir(), "server.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := migrations.Up(context.Background(), db, migrations.SQLite); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	db.SetMaxOpenConns(1)

	cfg := testConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := links.NewHandler(links.HandlerConfig{
		Service: links.NewService(links.NewSQLiteStore(db, nil), nil),
		Logger:  logger,
		BaseURL: cfg.Server.BaseURL,
	})
	return New(cfg, logger, handler)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

/***************
 * Routes
 ***************/

func TestHealthz(t *testing.T) {
	h := newTestServer(t).Handler()

	rec := get(t, h, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.OK || body.Version != "9.9.9" {
		t.Errorf("body = %+v", body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header not set")
	}
}

func TestPages(t *testing.T) {
	h := newTestServer(t).Handler()

	tests := []struct {
		path     string
		wantType string
		contains string
	}{
		{"/", "text/html", "createForm"},
		{"/code/abc123", "text/html", "details"},
		{"/static/app.js", "javascript", "view=counters"},
		{"/static/code.js", "javascript", "/qr"},
		{"/static/style.css", "text/css", "body"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := get(t, h, tt.path)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, tt.wantType) {
				t.Errorf("Content-Type = %q, want %q", ct, tt.wantType)
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("body does not contain %q", tt.contains)
			}
		})
	}

	if rec := get(t, h, "/static/missing.js"); rec.Code != http.StatusNotFound {
		t.Errorf("missing asset status = %d, want 404", rec.Code)
	}
}

func TestReservedPrefixesDoNotRedirect(t *testing.T) {
	h := newTestServer(t).Handler()

	for _, path := range []string{"/api", "/healthz", "/code", "/static"} {
		rec := get(t, h, path)
		if rec.Code == http.StatusFound {
			t.Errorf("GET %s redirected to %q", path, rec.Header().Get("Location"))
		}
	}

	rec := get(t, h, "/api/nothing/here")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown API path status = %d, want 404", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("unknown API path Content-Type = %q", ct)
	}
}

func TestCreateAndRedirectThroughServer(t *testing.T) {
	h := newTestServer(t).Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/links", strings.NewReader(`{"url":"https://example.com","code":"srv123"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = get(t, h, "/srv123")
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "https://example.com" {
		t.Errorf("redirect = %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/links", nil)
	req.Header.Set("Origin", "http://dashboard.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("Access-Control-Allow-Origin not set")
	}
}

/***************
 * Lifecycle
 ***************/

func TestServe_StopsOnContextCancel(t *testing.T) {
	srv := newTestServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	var resp *http.Response
	for range 50 {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("server never became ready: %v", err)
	}
	_ = resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}

func TestShutdown_BeforeStart(t *testing.T) {
	if err := newTestServer(t).Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
