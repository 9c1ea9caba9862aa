package cmd

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rubiojr/carefinder/pkg/config"
	"github.com/rubiojr/carefinder/pkg/executor"
	"github.com/rubiojr/carefinder/pkg/query"
	"github.com/rubiojr/carefinder/pkg/realtime"
)

const fallbackDoc = `[{"id":"f1","name":"Offline Oaks","region":"York"}]`

func newTestReloader(t *testing.T) (*reloader, *executor.Cache, *realtime.Hub, string) {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "fallback.json"), []byte(fallbackDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	path := writeConfig(t, dir, "fallback_dataset = \"fallback.json\"\n")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	failing := executor.SearcherFunc(func(ctx context.Context, params url.Values) (*executor.Response, error) {
		return nil, errors.New("connection refused")
	})
	cache := executor.NewCache(failing)
	hub := realtime.NewHub(0)
	return newReloader(path, cfg, cache, hub), cache, hub, dir
}

func TestReloadSwapsFallbackAndNotifies(t *testing.T) {
	rl, cache, hub, _ := newTestReloader(t)
	_, events := hub.Register()

	if res := cache.Fetch(context.Background(), query.Default(), 15); res.Err == nil {
		t.Fatal("Expected an error before the fallback is loaded")
	}

	if err := rl.reload(realtime.EventConfigReloaded, "test"); err != nil {
		t.Fatalf("reload: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Type != realtime.EventConfigReloaded || ev.Source != "test" {
			t.Errorf("Unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected a broadcast")
	}

	res := cache.Fetch(context.Background(), query.Default().Apply(query.SetRegion("York")), 15)
	if res.Err != nil || !res.Fallback {
		t.Fatalf("Expected a fallback result, got %+v", res)
	}
	if len(res.Response.Items) != 1 || res.Response.Items[0].Name != "Offline Oaks" {
		t.Errorf("Unexpected fallback items %+v", res.Response.Items)
	}
}

func TestReloadKeepsStateOnBadConfig(t *testing.T) {
	rl, _, hub, _ := newTestReloader(t)
	_, events := hub.Register()

	if err := os.WriteFile(rl.configPath, []byte("storage_dir = ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := rl.reload(realtime.EventConfigReloaded, "test"); err == nil {
		t.Fatal("Expected an error for a broken config")
	}
	select {
	case ev := <-events:
		t.Errorf("Nothing should be broadcast, got %+v", ev)
	default:
	}
}

func TestWatchReloadsOnDatasetChange(t *testing.T) {
	rl, _, hub, dir := newTestReloader(t)
	_, events := hub.Register()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rl.watch(ctx)

	// The watcher starts asynchronously, keep touching the file until it
	// notices.
	deadline := time.After(10 * time.Second)
	tick := time.NewTicker(300 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case ev := <-events:
			if ev.Type != realtime.EventCatalogUpdated {
				t.Errorf("Expected %s, got %s", realtime.EventCatalogUpdated, ev.Type)
			}
			return
		case <-tick.C:
			if err := os.WriteFile(filepath.Join(dir, "fallback.json"), []byte(fallbackDoc), 0o644); err != nil {
				t.Fatal(err)
			}
		case <-deadline:
			t.Fatal("Expected the dataset change to trigger a reload")
		}
	}
}

func TestFormatNumber(t *testing.T) {
	tests := map[int]string{
		12:      "12",
		1500:    "1.5K",
		2500000: "2.5M",
	}
	for n, want := range tests {
		if got := formatNumber(n); got != want {
			t.Errorf("formatNumber(%d) = %q, want %q", n, got, want)
		}
	}
}
