// Package api is the JSON and WebSocket surface of carefinder: the search
// endpoint backing remote queries, provider lookups, the per user lists, and
// live search sessions.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rubiojr/carefinder/pkg/debounce"
	"github.com/rubiojr/carefinder/pkg/executor"
	"github.com/rubiojr/carefinder/pkg/log"
	"github.com/rubiojr/carefinder/pkg/realtime"
	"github.com/rubiojr/carefinder/pkg/storage"
	"github.com/rubiojr/carefinder/pkg/tiering"
)

var logger = log.ForComponent("api")

type Server struct {
	store     *storage.Store
	searcher  executor.Searcher
	cache     *executor.Cache
	hub       *realtime.Hub
	loginPath string
	debounce  time.Duration
	upgrader  websocket.Upgrader
}

type Option func(*Server)

// WithSearcher answers /api/search from s instead of the local index.
func WithSearcher(s executor.Searcher) Option {
	return func(srv *Server) { srv.searcher = s }
}

// WithHub makes live sessions refetch when the hub announces a change.
func WithHub(h *realtime.Hub) Option {
	return func(srv *Server) { srv.hub = h }
}

func WithLoginPath(p string) Option {
	return func(srv *Server) { srv.loginPath = p }
}

func WithDebounce(d time.Duration) Option {
	return func(srv *Server) { srv.debounce = d }
}

// NewServer creates the API server. cache backs live sessions; when nil,
// sessions search the store directly.
func NewServer(store *storage.Store, cache *executor.Cache, opts ...Option) *Server {
	s := &Server{
		store:     store,
		cache:     cache,
		loginPath: tiering.DefaultLoginPath,
		debounce:  debounce.DefaultDelay,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.searcher == nil && store != nil {
		s.searcher = store.Searcher()
	}
	if s.cache == nil {
		s.cache = executor.NewCache(s.searcher)
	}
	return s
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("encoding JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, error, message string) {
	response := ErrorResponse{
		Error:   error,
		Message: message,
	}
	s.writeJSON(w, status, response)
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+tiering.UserHeader)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
