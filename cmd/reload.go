package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rubiojr/carefinder/pkg/config"
	"github.com/rubiojr/carefinder/pkg/executor"
	"github.com/rubiojr/carefinder/pkg/realtime"
)

// reloader applies configuration and fallback dataset changes to a running
// server and tells live sessions to refetch.
type reloader struct {
	configPath string
	cache      *executor.Cache
	hub        *realtime.Hub

	mu  sync.Mutex
	cfg *config.Config
}

func newReloader(configPath string, cfg *config.Config, cache *executor.Cache, hub *realtime.Hub) *reloader {
	return &reloader{configPath: configPath, cfg: cfg, cache: cache, hub: hub}
}

// reload rereads the configuration and the fallback dataset, drops cached
// pages and broadcasts eventType. The listen address, storage dir and remote
// endpoint only change on restart.
func (r *reloader) reload(eventType, source string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	newCfg, err := config.LoadConfig(r.configPath)
	if err != nil {
		return fmt.Errorf("loading new config: %w", err)
	}

	fb, err := loadFallback(newCfg)
	if err != nil {
		return fmt.Errorf("loading fallback dataset: %w", err)
	}

	if newCfg.Search.RemoteURL != r.cfg.Search.RemoteURL || newCfg.StorageDir != r.cfg.StorageDir {
		log.Printf("Warning: storage_dir and remote_url changes need a restart")
	}

	r.cache.SetFreshness(newCfg.Search.Freshness.Duration)
	r.cache.SetFallback(fb)
	r.cache.Purge()
	r.cfg = newCfg

	r.hub.Broadcast(realtime.NewEvent(eventType, source))
	log.Printf("Configuration reloaded (%s), %d live sessions notified", source, r.hub.Size())
	return nil
}

// catalogChanged drops cached pages after the provider index changed and
// tells live sessions to refetch.
func (r *reloader) catalogChanged(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Purge()
	r.hub.Broadcast(realtime.NewEvent(realtime.EventCatalogUpdated, source))
}

// paths returns the files whose changes trigger a reload.
func (r *reloader) paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	paths := []string{r.configPath}
	if fb := r.cfg.FallbackPath(); fb != "" {
		paths = append(paths, fb)
	}
	return paths
}

// watch reloads whenever the config file or the fallback dataset changes
// until ctx is done.
func (r *reloader) watch(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("Warning: failed to create config file watcher: %v", err)
		return
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			log.Printf("Warning: failed to close config file watcher: %v", err)
		}
	}()

	for _, path := range r.paths() {
		if err := watcher.Add(path); err != nil {
			log.Printf("Warning: failed to watch %s: %v", path, err)
		} else {
			log.Printf("Watching for changes: %s", path)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			// React to write, create, rename, and remove events (editors often use atomic writes)
			if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove)) {
				continue
			}
			log.Printf("File changed: %s (event: %s), reloading...", event.Name, event.Op.String())

			if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				// Small delay to ensure the new file is fully written
				time.Sleep(200 * time.Millisecond)

				if _, err := os.Stat(event.Name); os.IsNotExist(err) {
					log.Printf("%s was removed and not replaced, skipping reload", event.Name)
					continue
				}
				if err := watcher.Add(event.Name); err != nil {
					log.Printf("Warning: failed to re-add %s to watcher after rename/remove: %v", event.Name, err)
				}
			} else {
				time.Sleep(100 * time.Millisecond)
			}

			eventType := realtime.EventConfigReloaded
			if filepath.Clean(event.Name) != filepath.Clean(r.configPath) {
				eventType = realtime.EventCatalogUpdated
			}
			if err := r.reload(eventType, filepath.Base(event.Name)); err != nil {
				log.Printf("Failed to reload after file change: %v", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("File watcher error: %v", err)
		}
	}
}
