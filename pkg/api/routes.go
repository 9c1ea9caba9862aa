package api

import (
	"net/http"

	"github.com/rubiojr/carefinder/pkg/storage"
	"github.com/rubiojr/carefinder/pkg/tiering"
)

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/search", s.HandleSearch)
	mux.HandleFunc("GET /api/providers/{id}", s.HandleProvider)

	favorites := s.listHandlers(storage.ListFavorites, tiering.ActionAddFavorite)
	mux.HandleFunc("GET /api/favorites", favorites.list)
	mux.HandleFunc("PUT /api/favorites/{id}", favorites.add)
	mux.HandleFunc("DELETE /api/favorites/{id}", favorites.remove)

	compare := s.listHandlers(storage.ListCompare, tiering.ActionCompare)
	mux.HandleFunc("GET /api/compare", compare.list)
	mux.HandleFunc("PUT /api/compare/{id}", compare.add)
	mux.HandleFunc("DELETE /api/compare/{id}", compare.remove)

	mux.HandleFunc("GET /api/recent", s.HandleRecent)
	mux.HandleFunc("PUT /api/recent/{id}", s.HandleRecordView)

	mux.HandleFunc("GET /api/contacts", s.HandleContacts)
	mux.HandleFunc("POST /api/contacts/{id}", s.HandleLogContact)

	mux.HandleFunc("GET /api/session/ws", s.HandleSessionWS)
	mux.HandleFunc("GET /api/stats", s.HandleStats)
	mux.HandleFunc("GET /health", s.HandleHealth)
}
