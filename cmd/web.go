package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rubiojr/carefinder/pkg/api"
	"github.com/rubiojr/carefinder/pkg/config"
	"github.com/rubiojr/carefinder/pkg/executor"
	"github.com/rubiojr/carefinder/pkg/realtime"
	"github.com/rubiojr/carefinder/pkg/render"
	"github.com/rubiojr/carefinder/pkg/storage"
	"github.com/rubiojr/carefinder/pkg/web"
	"github.com/urfave/cli/v3"
)

// WebCommand creates the web command with both API and UI
func WebCommand() *cli.Command {
	return &cli.Command{
		Name:  "web",
		Usage: "Start web server with both API endpoints and HTML interface",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "port",
				Usage: "Port to listen on (overrides the config file)",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to bind to (overrides the config file)",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return startWebServer(ctx, c.String("config"), c.String("host"), c.String("port"))
		},
	}
}

// WebServer holds the server configuration and dependencies
type WebServer struct {
	config    *config.Config
	store     *storage.Store
	cache     *executor.Cache
	hub       *realtime.Hub
	apiServer *api.Server
	search    *web.Handler
}

// newWebServer wires the search pipeline shared by the page handler and
// the live sessions.
func newWebServer(cfg *config.Config, store *storage.Store) (*WebServer, error) {
	searcher, err := newSearcher(cfg, store)
	if err != nil {
		return nil, err
	}

	opts := []executor.Option{executor.WithFreshness(cfg.Search.Freshness.Duration)}
	fb, err := loadFallback(cfg)
	if err != nil {
		log.Printf("Warning: search fallback disabled: %v", err)
	} else {
		opts = append(opts, executor.WithFallback(fb))
	}
	cache := executor.NewCache(searcher, opts...)
	hub := realtime.NewHub(0)

	apiServer := api.NewServer(store, cache,
		api.WithHub(hub),
		api.WithLoginPath(cfg.Search.LoginPath),
		api.WithDebounce(cfg.Search.Debounce.Duration),
	)

	search := web.NewHandler(web.Options{
		Cache:     cache,
		Renderer:  render.New(render.GetGlobalRegistry()),
		Snapshots: store.Snapshots,
		Returns:   store,
		LoginPath: cfg.Search.LoginPath,
	})

	return &WebServer{
		config:    cfg,
		store:     store,
		cache:     cache,
		hub:       hub,
		apiServer: apiServer,
		search:    search,
	}, nil
}

// Handler returns the full route table. Everything but the session socket
// is gzip compressed.
func (s *WebServer) Handler() http.Handler {
	mux := http.NewServeMux()

	// API routes
	s.apiServer.RegisterRoutes(mux)

	// Web UI routes
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/search", http.StatusFound)
	})
	mux.Handle("GET /search", s.search)
	mux.Handle("GET /auth/return", web.ReturnHandler(s.store, ""))

	// Static assets
	mux.Handle("GET /static/", http.FileServerFS(web.StaticFS))

	root := http.NewServeMux()
	root.HandleFunc("GET /api/session/ws", s.apiServer.HandleSessionWS)
	root.Handle("/", gzhttp.GzipHandler(mux))

	return api.CorsMiddleware(root)
}

// startWebServer starts the web server with both API and UI
func startWebServer(ctx context.Context, configPath, host, port string) error {
	cfg, store, err := openStore(configPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Printf("Warning: failed to close store: %v\n", err)
		}
	}()

	if host != "" {
		cfg.Web.Host = host
	}
	if port != "" {
		cfg.Web.Port = port
	}

	webServer, err := newWebServer(cfg, store)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:    cfg.Addr(),
		Handler: webServer.Handler(),
	}

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	rl := newReloader(configPath, cfg, webServer.cache, webServer.hub)
	go rl.watch(watchCtx)

	if len(cfg.Catalog.Feeds) > 0 || cfg.Catalog.OptimizeInterval.Duration > 0 {
		wh, err := newWarehouse(cfg, store, rl.catalogChanged)
		if err != nil {
			return err
		}
		if err := wh.Start(watchCtx); err != nil {
			return fmt.Errorf("starting catalog warehouse: %w", err)
		}
		defer wh.Stop()
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting web server on http://%s", cfg.Addr())
		log.Printf("Available endpoints:")
		log.Printf("  Web UI:")
		log.Printf("    GET /search - Provider search")
		log.Printf("  API:")
		log.Printf("    GET /api/search - Remote search API over the local index")
		log.Printf("    GET /api/providers/{id} - Provider details")
		log.Printf("    GET|PUT|DELETE /api/favorites, /api/compare - Member lists")
		log.Printf("    GET|PUT /api/recent - Recently viewed providers")
		log.Printf("    GET|POST /api/contacts - Contact log")
		log.Printf("    GET /api/session/ws - Live search session")
		log.Printf("    GET /api/stats - Directory statistics")
		log.Printf("    GET /health - Health check")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// SIGHUP reloads the configuration and drops cached result pages, for
	// example after an import.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range sigCh {
		if sig == syscall.SIGHUP {
			log.Println("Received SIGHUP, reloading configuration...")
			if err := rl.reload(realtime.EventCatalogUpdated, "SIGHUP"); err != nil {
				log.Printf("Failed to reload configuration: %v", err)
			}
			continue
		}
		break
	}

	log.Println("Shutting down web server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}
