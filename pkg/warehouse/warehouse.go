// Package warehouse keeps the provider index in step with the configured
// catalog feeds. Each feed is a provider dataset file that is re-imported on
// its own interval; the index is optimized on a separate schedule.
package warehouse

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rubiojr/carefinder/pkg/provider"
)

// DefaultInterval is used for feeds added without an explicit interval.
const DefaultInterval = 30 * time.Minute

// Catalog is the provider index the warehouse writes into.
type Catalog interface {
	UpsertProviders(providers []provider.Provider) (int, error)
	Optimize() error
}

type Config struct {
	OptimizeInterval time.Duration
	// OnChange is called after a feed sync wrote at least one provider.
	OnChange func(source string)
}

// Feed is a provider dataset file imported on a schedule. Interval 0 means
// the feed is only imported by SyncOnce.
type Feed struct {
	Name     string
	Path     string
	Interval time.Duration
}

// SyncResult reports one feed import.
type SyncResult struct {
	Feed     string
	Imported int
	Err      error
}

type Warehouse struct {
	config         Config
	catalog        Catalog
	feeds          map[string]Feed
	feedTickers    map[string]*time.Ticker
	optimizeTicker *time.Ticker
	stopCh         chan struct{}
	ctx            context.Context
	ctxCancel      context.CancelFunc
	mu             sync.RWMutex
	wg             sync.WaitGroup
	running        bool
}

func NewWarehouse(config Config, catalog Catalog) *Warehouse {
	return &Warehouse{
		config:      config,
		catalog:     catalog,
		feeds:       make(map[string]Feed),
		feedTickers: make(map[string]*time.Ticker),
		stopCh:      make(chan struct{}),
	}
}

// AddFeed registers a feed. If the warehouse is running and the feed has an
// interval, its scheduler starts right away.
func (w *Warehouse) AddFeed(feed Feed) error {
	if feed.Name == "" {
		return fmt.Errorf("feed name is required")
	}
	if feed.Path == "" {
		return fmt.Errorf("feed %s: path is required", feed.Name)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.feeds[feed.Name]; exists {
		return fmt.Errorf("feed %s already registered", feed.Name)
	}
	w.feeds[feed.Name] = feed

	if w.running && feed.Interval > 0 {
		w.startFeedLocked(feed)
	} else if feed.Interval == 0 {
		log.Printf("Feed %s configured with interval 0 (manual sync only)", feed.Name)
	}
	return nil
}

// RemoveFeed stops and forgets a feed.
func (w *Warehouse) RemoveFeed(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.feeds[name]; !exists {
		return fmt.Errorf("feed %s not found", name)
	}
	if ticker, exists := w.feedTickers[name]; exists {
		ticker.Stop()
		delete(w.feedTickers, name)
	}
	delete(w.feeds, name)
	log.Printf("Removed feed: %s", name)
	return nil
}

// Feeds returns the registered feeds.
func (w *Warehouse) Feeds() []Feed {
	w.mu.RLock()
	defer w.mu.RUnlock()
	feeds := make([]Feed, 0, len(w.feeds))
	for _, f := range w.feeds {
		feeds = append(feeds, f)
	}
	return feeds
}

func (w *Warehouse) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("warehouse is already running")
	}
	if len(w.feeds) == 0 && w.config.OptimizeInterval <= 0 {
		return fmt.Errorf("no feeds or optimize interval configured")
	}

	w.ctx, w.ctxCancel = context.WithCancel(ctx)
	w.running = true

	log.Printf("Starting warehouse with %d feeds:", len(w.feeds))
	for _, feed := range w.feeds {
		if feed.Interval == 0 {
			log.Printf("  - %s: manual (%s)", feed.Name, feed.Path)
			continue
		}
		log.Printf("  - %s: every %v (%s)", feed.Name, feed.Interval, feed.Path)
		w.startFeedLocked(feed)
	}

	if w.config.OptimizeInterval > 0 {
		w.optimizeTicker = time.NewTicker(w.config.OptimizeInterval)
		w.wg.Add(1)
		go w.runOptimization(w.ctx)
	}

	scheduled := w.scheduledLocked()
	if len(scheduled) > 0 {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for _, res := range w.syncFeeds(w.ctx, scheduled) {
				if res.Err != nil {
					log.Printf("Initial sync failed for feed %s: %v", res.Feed, res.Err)
				}
			}
		}()
	}

	log.Printf("Warehouse started with %d feeds, optimize interval: %v",
		len(w.feeds), w.config.OptimizeInterval)
	return nil
}

func (w *Warehouse) startFeedLocked(feed Feed) {
	ticker := time.NewTicker(feed.Interval)
	w.feedTickers[feed.Name] = ticker
	w.wg.Add(1)
	go w.runFeed(w.ctx, feed.Name, ticker)
}

func (w *Warehouse) scheduledLocked() []Feed {
	var feeds []Feed
	for _, f := range w.feeds {
		if f.Interval > 0 {
			feeds = append(feeds, f)
		}
	}
	return feeds
}

func (w *Warehouse) runFeed(ctx context.Context, name string, ticker *time.Ticker) {
	defer w.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.mu.RLock()
			feed, ok := w.feeds[name]
			w.mu.RUnlock()
			if !ok {
				return
			}
			log.Printf("Running scheduled sync for feed: %s", name)
			if res := w.syncFeed(feed); res.Err != nil {
				log.Printf("Scheduled sync failed for feed %s: %v", name, res.Err)
			}
		}
	}
}

func (w *Warehouse) runOptimization(ctx context.Context) {
	defer w.wg.Done()
	defer w.optimizeTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-w.optimizeTicker.C:
			log.Println("Running database optimization")
			if err := w.catalog.Optimize(); err != nil {
				log.Printf("Database optimization failed: %v", err)
			}
		}
	}
}

// syncFeed imports one feed into the catalog.
func (w *Warehouse) syncFeed(feed Feed) SyncResult {
	res := SyncResult{Feed: feed.Name}

	providers, err := provider.LoadFile(feed.Path)
	if err != nil {
		res.Err = fmt.Errorf("loading %s: %w", feed.Path, err)
		return res
	}

	n, err := w.catalog.UpsertProviders(providers)
	if err != nil {
		res.Err = fmt.Errorf("importing %s: %w", feed.Path, err)
		return res
	}
	res.Imported = n
	log.Printf("Feed %s: imported %d providers", feed.Name, n)

	if n > 0 && w.config.OnChange != nil {
		w.config.OnChange("feed:" + feed.Name)
	}
	return res
}

// syncFeeds loads the feeds concurrently. Results come back in feed order.
func (w *Warehouse) syncFeeds(ctx context.Context, feeds []Feed) []SyncResult {
	results := make([]SyncResult, len(feeds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, feed := range feeds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = SyncResult{Feed: feed.Name, Err: err}
				return nil
			}
			results[i] = w.syncFeed(feed)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (w *Warehouse) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}

	log.Printf("Stopping warehouse...")
	if w.ctxCancel != nil {
		w.ctxCancel()
	}
	close(w.stopCh)
	for _, ticker := range w.feedTickers {
		ticker.Stop()
	}
	w.running = false
	w.mu.Unlock()

	w.wg.Wait()
	log.Printf("Warehouse stopped")
}

func (w *Warehouse) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// SyncOnce imports the named feeds, or every registered feed when none are
// named, and returns once all of them finished.
func (w *Warehouse) SyncOnce(ctx context.Context, names ...string) ([]SyncResult, error) {
	w.mu.RLock()
	var feeds []Feed
	if len(names) == 0 {
		for _, f := range w.feeds {
			feeds = append(feeds, f)
		}
	} else {
		for _, name := range names {
			f, ok := w.feeds[name]
			if !ok {
				w.mu.RUnlock()
				return nil, fmt.Errorf("feed %s not found", name)
			}
			feeds = append(feeds, f)
		}
	}
	w.mu.RUnlock()

	if len(feeds) == 0 {
		return nil, fmt.Errorf("no feeds configured")
	}
	return w.syncFeeds(ctx, feeds), nil
}
