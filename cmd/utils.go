package cmd

import (
	"fmt"

	"github.com/rubiojr/carefinder/pkg/config"
	"github.com/rubiojr/carefinder/pkg/executor"
	"github.com/rubiojr/carefinder/pkg/storage"
	"github.com/rubiojr/carefinder/pkg/warehouse"
)

// openStore loads the configuration and opens the provider database.
func openStore(configPath string) (*config.Config, *storage.Store, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	store, err := storage.OpenDir(cfg.StorageDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening storage: %w", err)
	}
	return cfg, store, nil
}

// newSearcher returns the remote search API when one is configured and the
// local index otherwise.
func newSearcher(cfg *config.Config, store *storage.Store) (executor.Searcher, error) {
	if cfg.Search.RemoteURL == "" {
		return store.Searcher(), nil
	}
	s, err := executor.NewHTTPSearcher(cfg.Search.RemoteURL, cfg.Search.APIToken)
	if err != nil {
		return nil, fmt.Errorf("creating remote searcher: %w", err)
	}
	return s, nil
}

// loadFallback returns the configured fallback dataset, or the bundled one.
func loadFallback(cfg *config.Config) (*executor.Fallback, error) {
	if path := cfg.FallbackPath(); path != "" {
		return executor.LoadFallback(path)
	}
	return executor.BundledFallback()
}

// newWarehouse registers the configured catalog feeds against store.
// onChange may be nil.
func newWarehouse(cfg *config.Config, store *storage.Store, onChange func(source string)) (*warehouse.Warehouse, error) {
	wh := warehouse.NewWarehouse(warehouse.Config{
		OptimizeInterval: cfg.Catalog.OptimizeInterval.Duration,
		OnChange:         onChange,
	}, store)
	for _, f := range cfg.Catalog.Feeds {
		err := wh.AddFeed(warehouse.Feed{
			Name:     f.Name,
			Path:     cfg.FeedPath(f),
			Interval: f.Interval.Duration,
		})
		if err != nil {
			return nil, fmt.Errorf("adding catalog feed: %w", err)
		}
	}
	return wh, nil
}
