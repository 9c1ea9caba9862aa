package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if !strings.HasSuffix(cfg.StorageDir, "carefinder") {
		t.Errorf("Unexpected storage dir %q", cfg.StorageDir)
	}
	if cfg.Search.Debounce.Duration != 500*time.Millisecond {
		t.Errorf("Expected 500ms debounce, got %v", cfg.Search.Debounce)
	}
	if cfg.Search.Freshness.Duration != 5*time.Minute {
		t.Errorf("Expected 5m freshness, got %v", cfg.Search.Freshness)
	}
	if cfg.Search.LoginPath != "/login" {
		t.Errorf("Expected /login, got %q", cfg.Search.LoginPath)
	}
	if cfg.Addr() != "localhost:8080" {
		t.Errorf("Expected localhost:8080, got %q", cfg.Addr())
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
storage_dir = "` + filepath.ToSlash(dir) + `"

[search]
debounce = "250ms"
freshness = "1m"
remote_url = "https://directory.example/api/search"
fallback_dataset = "providers.yaml"

[web]
port = "9090"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Search.Debounce.Duration != 250*time.Millisecond || cfg.Search.Freshness.Duration != time.Minute {
		t.Errorf("Unexpected durations: %+v", cfg.Search)
	}
	if cfg.Search.RemoteURL != "https://directory.example/api/search" {
		t.Errorf("Unexpected remote url %q", cfg.Search.RemoteURL)
	}
	if cfg.FallbackPath() != filepath.Join(dir, "providers.yaml") {
		t.Errorf("Expected fallback path inside storage dir, got %q", cfg.FallbackPath())
	}
	if cfg.Addr() != "localhost:9090" {
		t.Errorf("Expected localhost:9090, got %q", cfg.Addr())
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad duration", "[search]\ndebounce = \"soon\"\n"},
		{"bad remote url", "[search]\nremote_url = \"ftp://x\"\n"},
		{"relative login path", "[search]\nlogin_path = \"login\"\n"},
		{"feed without path", "[[catalog.feeds]]\nname = \"toronto\"\n"},
		{"duplicate feed", "[[catalog.feeds]]\nname = \"a\"\npath = \"a.json\"\n[[catalog.feeds]]\nname = \"a\"\npath = \"b.json\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "config.toml")
			content := "storage_dir = \"" + filepath.ToSlash(dir) + "\"\n" + tt.content
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadConfig(path); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestSaveTemplateConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf", "config.toml")

	cfg := &Config{StorageDir: filepath.Join(dir, "data")}
	if err := cfg.SaveTemplateConfig(path); err != nil {
		t.Fatalf("SaveTemplateConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Template does not load: %v", err)
	}
	if loaded.StorageDir != cfg.StorageDir {
		t.Errorf("Expected storage dir %q, got %q", cfg.StorageDir, loaded.StorageDir)
	}
	if loaded.Search.Debounce.Duration != 500*time.Millisecond {
		t.Errorf("Expected template debounce, got %v", loaded.Search.Debounce)
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := &Config{StorageDir: dir}
	cfg.applyDefaults()
	cfg.Search.Freshness = Duration{2 * time.Minute}
	if err := cfg.SaveConfig(path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Search.Freshness.Duration != 2*time.Minute {
		t.Errorf("Expected 2m freshness, got %v", loaded.Search.Freshness)
	}
}

func TestLoadCatalogFeeds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
storage_dir = "` + filepath.ToSlash(dir) + `"

[catalog]
optimize_interval = "6h"

[[catalog.feeds]]
name = "toronto"
path = "feeds/toronto.yaml.zst"
interval = "30m"

[[catalog.feeds]]
name = "york"
path = "/srv/feeds/york.json"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Catalog.OptimizeInterval.Duration != 6*time.Hour {
		t.Errorf("Expected 6h optimize interval, got %v", cfg.Catalog.OptimizeInterval)
	}
	if len(cfg.Catalog.Feeds) != 2 {
		t.Fatalf("Expected 2 feeds, got %d", len(cfg.Catalog.Feeds))
	}

	toronto, york := cfg.Catalog.Feeds[0], cfg.Catalog.Feeds[1]
	if toronto.Interval.Duration != 30*time.Minute || york.Interval.Duration != 0 {
		t.Errorf("Unexpected intervals: %v, %v", toronto.Interval, york.Interval)
	}
	if got := cfg.FeedPath(toronto); got != filepath.Join(dir, "feeds", "toronto.yaml.zst") {
		t.Errorf("Expected feed path inside storage dir, got %q", got)
	}
	if got := cfg.FeedPath(york); got != "/srv/feeds/york.json" {
		t.Errorf("Expected absolute feed path unchanged, got %q", got)
	}
}
