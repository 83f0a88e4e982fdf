package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newAPI(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", srv.Client())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_List(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/links" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		writeJSON(w, http.StatusOK, []map[string]any{{
			"code": "abc123", "url": "https://example.com", "clicks": 2,
			"created_at": created, "last_clicked": nil, "short_url": "http://tiny.test/abc123",
		}})
	})

	links, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("len = %d", len(links))
	}
	l := links[0]
	if l.Code != "abc123" || l.Clicks != 2 || l.LastClicked != nil || !l.CreatedAt.Equal(created) {
		t.Errorf("link = %+v", l)
	}
}

func TestClient_Counters(t *testing.T) {
	c := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("view") != "counters" {
			t.Errorf("view = %q, want counters", r.URL.Query().Get("view"))
		}
		writeJSON(w, http.StatusOK, []Counter{{Code: "abc123", Clicks: 7}})
	})

	counters, err := c.Counters(context.Background())
	if err != nil {
		t.Fatalf("Counters() error = %v", err)
	}
	if len(counters) != 1 || counters[0].Clicks != 7 {
		t.Errorf("counters = %+v", counters)
	}
}

func TestClient_Create(t *testing.T) {
	c := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["url"] != "https://example.com" || body["code"] != "ABC123" {
			t.Errorf("body = %v", body)
		}
		writeJSON(w, http.StatusCreated, Link{Code: body["code"], URL: body["url"]})
	})

	l, err := c.Create(context.Background(), "https://example.com", "ABC123")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if l.Code != "ABC123" {
		t.Errorf("code = %q", l.Code)
	}
}

func TestClient_CreateOmitsEmptyCode(t *testing.T) {
	c := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["code"]; ok {
			t.Errorf("body has code: %v", body)
		}
		writeJSON(w, http.StatusCreated, Link{Code: "gen123"})
	})

	if _, err := c.Create(context.Background(), "https://example.com", ""); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
}

func TestClient_APIErrors(t *testing.T) {
	c := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/links/taken1":
			writeJSON(w, http.StatusConflict, map[string]string{"error": "Code already exists.", "code": "conflict"})
		case "/api/links/broken":
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream down\n"))
		default:
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found", "code": "not_found"})
		}
	})

	_, err := c.Get(context.Background(), "taken1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusConflict || apiErr.Message != "Code already exists." || apiErr.Code != "conflict" {
		t.Errorf("apiErr = %+v", apiErr)
	}

	err = c.Delete(context.Background(), "nosuch")
	if !IsNotFound(err) {
		t.Errorf("Delete() err = %v, want not found", err)
	}

	_, err = c.Get(context.Background(), "broken")
	if !errors.As(err, &apiErr) || apiErr.Message != "upstream down" {
		t.Errorf("plain-text error = %v", err)
	}
}

func TestClient_DeleteSuccess(t *testing.T) {
	c := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/api/links/abc123" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	if err := c.Delete(context.Background(), "abc123"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
}

func TestNewClient_DefaultTimeout(t *testing.T) {
	c := NewClient("http://localhost:3000", nil)
	if c.http.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", c.http.Timeout, DefaultTimeout)
	}
	if c.baseURL != "http://localhost:3000" {
		t.Errorf("baseURL = %q", c.baseURL)
	}
}
