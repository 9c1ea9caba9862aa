package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rubiojr/carefinder/pkg/realtime"
)

func TestImportProviders(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "")
	feed := filepath.Join(dir, "toronto.json")
	if err := os.WriteFile(feed, []byte(`[{"id":"t1","name":"Little Oaks","region":"Toronto"}]`), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := importProviders(path, []string{feed}, true); err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if err := importProviders(path, []string{feed}, false); err != nil {
		t.Fatalf("import: %v", err)
	}
	if err := importProviders(path, []string{filepath.Join(dir, "missing.json")}, false); err == nil {
		t.Error("Expected a missing file to fail")
	}

	_, store, err := openStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if _, err := store.GetProvider("t1"); err != nil {
		t.Errorf("Expected imported provider: %v", err)
	}
}

func TestSyncFeeds(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "feeds"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "feeds", "york.yaml"), []byte("- id: y1\n  name: Acorns\n  region: York\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	path := writeConfig(t, dir, `
[[catalog.feeds]]
name = "york"
path = "feeds/york.yaml"

[[catalog.feeds]]
name = "broken"
path = "feeds/missing.yaml"
`)

	if err := syncFeeds(context.Background(), path, []string{"york"}); err != nil {
		t.Fatalf("syncing york: %v", err)
	}
	if err := syncFeeds(context.Background(), path, nil); err == nil {
		t.Error("Expected the broken feed to fail the sync")
	}

	_, store, err := openStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	stats, err := store.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Providers != 1 {
		t.Errorf("Expected 1 provider, got %d", stats.Providers)
	}
}

func TestCatalogChangedNotifies(t *testing.T) {
	rl, _, hub, _ := newTestReloader(t)
	_, events := hub.Register()

	rl.catalogChanged("feed:york")

	select {
	case ev := <-events:
		if ev.Type != realtime.EventCatalogUpdated || ev.Source != "feed:york" {
			t.Errorf("Unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected a broadcast")
	}
}
