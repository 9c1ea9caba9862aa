package cmd

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rubiojr/carefinder/pkg/config"
	"github.com/rubiojr/carefinder/pkg/executor"
	"github.com/rubiojr/carefinder/pkg/provider"
	"github.com/rubiojr/carefinder/pkg/session"
	"github.com/rubiojr/carefinder/pkg/storage"
	"github.com/rubiojr/carefinder/pkg/tiering"
)

// writeConfig writes a config file keeping all state under dir.
func writeConfig(t *testing.T, dir, extra string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	content := fmt.Sprintf("storage_dir = %q\n\n[search]\nfreshness = \"1m\"\n%s", dir, extra)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func setupTestWebServer(t *testing.T) (*WebServer, http.Handler) {
	t.Helper()
	dir := t.TempDir()
	cfg, store, err := openStore(writeConfig(t, dir, ""))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	_, err = store.UpsertProviders([]provider.Provider{
		{ID: "p1", Name: "Maple Leaf Montessori", Type: "Centre", Region: "Toronto", Price: "$1,950/month"},
		{ID: "p2", Name: "Little Acorns", Type: "Home", Region: "Toronto", Price: "$1,200/month"},
		{ID: "p3", Name: "Sunny Days Nursery", Type: "Nursery School", Region: "York"},
	})
	if err != nil {
		t.Fatalf("seeding store: %v", err)
	}

	ws, err := newWebServer(cfg, store)
	if err != nil {
		t.Fatalf("creating web server: %v", err)
	}
	return ws, ws.Handler()
}

func TestWebRoutes(t *testing.T) {
	_, h := setupTestWebServer(t)

	tests := []struct {
		name         string
		target       string
		user         string
		wantCode     int
		wantLocation string
		wantBody     string
	}{
		{name: "home redirects", target: "/", wantCode: http.StatusFound, wantLocation: "/search"},
		{name: "search page", target: "/search?region=Toronto", user: "ana", wantCode: http.StatusOK, wantBody: "Little Acorns"},
		{name: "health", target: "/health", wantCode: http.StatusOK, wantBody: `"status":"ok"`},
		{name: "api search", target: "/api/search?region=York", wantCode: http.StatusOK, wantBody: "Sunny Days Nursery"},
		{name: "static asset", target: "/static/style.css", wantCode: http.StatusOK},
		{name: "return after sign in", target: "/auth/return", wantCode: http.StatusSeeOther, wantLocation: "/search"},
		{name: "unknown page", target: "/nope", wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.user != "" {
				r.Header.Set(tiering.UserHeader, tt.user)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)

			if w.Code != tt.wantCode {
				t.Fatalf("Expected %d, got %d", tt.wantCode, w.Code)
			}
			if tt.wantLocation != "" && w.Header().Get("Location") != tt.wantLocation {
				t.Errorf("Expected Location %q, got %q", tt.wantLocation, w.Header().Get("Location"))
			}
			if tt.wantBody != "" && !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("Expected body to contain %q", tt.wantBody)
			}
		})
	}
}

func TestWebCompression(t *testing.T) {
	_, h := setupTestWebServer(t)

	r := httptest.NewRequest(http.MethodGet, "/static/session.js", nil)
	r.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if enc := w.Header().Get("Content-Encoding"); enc != "gzip" {
		t.Errorf("Expected gzip encoding, got %q", enc)
	}
}

func TestWebSessionSocket(t *testing.T) {
	ws, h := setupTestWebServer(t)
	ts := httptest.NewServer(h)
	defer ts.Close()

	u, _ := url.Parse(ts.URL)
	u.Scheme = "ws"
	u.Path = "/api/session/ws"
	u.RawQuery = url.Values{"url": {"/search?region=Toronto"}}.Encode()

	header := http.Header{}
	header.Set("Accept-Encoding", "gzip")
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if err := conn.SetReadDeadline(deadline); err != nil {
			t.Fatal(err)
		}
		var m session.Message
		if err := conn.ReadJSON(&m); err != nil {
			t.Fatalf("read ws: %v", err)
		}
		if m.Type == session.MsgResults && !m.Loading && m.Page != nil {
			if m.Page.Total != 2 {
				t.Errorf("Expected 2 Toronto providers, got %d", m.Page.Total)
			}
			break
		}
	}

	for ws.hub.Size() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("session never joined the hub")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNewSearcherUsesRemoteWhenConfigured(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.LoadConfig(writeConfig(t, dir, "remote_url = \"http://127.0.0.1:1/api/search\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	store, err := storage.OpenDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	s, err := newSearcher(cfg, store)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*executor.HTTPSearcher); !ok {
		t.Fatalf("Expected a remote searcher, got %T", s)
	}
	if _, err := s.Search(context.Background(), url.Values{}); err == nil {
		t.Error("Expected the unreachable remote endpoint to fail")
	}
}
