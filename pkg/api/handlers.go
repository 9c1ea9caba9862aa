package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rubiojr/carefinder/pkg/executor"
	"github.com/rubiojr/carefinder/pkg/session"
	"github.com/rubiojr/carefinder/pkg/storage"
	"github.com/rubiojr/carefinder/pkg/tiering"
	"github.com/rubiojr/carefinder/pkg/version"
)

// HandleSearch serves the remote search API over the configured searcher.
func (s *Server) HandleSearch(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	if _, err := executor.ParseFilter(params); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid search parameters", err.Error())
		return
	}

	resp, err := s.searcher.Search(r.Context(), params)
	if err != nil {
		logger.Errorf("search failed: %v", err)
		s.writeJSON(w, http.StatusInternalServerError, executor.Envelope{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, resp.Envelope())
}

func (s *Server) HandleProvider(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p, err := s.store.GetProvider(id)
	if errors.Is(err, storage.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Provider not found", fmt.Sprintf("Provider '%s' does not exist", id))
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to get provider", err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, p)
}

// gate answers a gated action for a guest with the sign-in location and
// stores where to come back to. It reports whether the caller may proceed.
func (s *Server) gate(w http.ResponseWriter, r *http.Request, action tiering.Action) (string, bool) {
	auth := tiering.AuthFromRequest(r)
	d, ok := tiering.Decide(auth)
	if !ok {
		s.writeError(w, http.StatusServiceUnavailable, "Authentication pending", "Try again once signed in")
		return "", false
	}

	redirect := d.Gate(action, s.loginPath, returnTarget(r))
	if redirect == nil {
		return auth.User, true
	}

	key := tiering.SessionKey(w, r)
	if err := redirect.Persist(s.store, key); err != nil {
		logger.Warnf("%v", err)
	}
	s.writeJSON(w, http.StatusUnauthorized, RedirectResponse{
		Redirect: redirect.Location,
		Action:   action,
	})
	return "", false
}

// returnTarget is the page the request came from, limited to local paths.
func returnTarget(r *http.Request) string {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path == "" || !strings.HasPrefix(ref.Path, "/") {
		return session.DefaultBasePath
	}
	if ref.RawQuery == "" {
		return ref.Path
	}
	return ref.Path + "?" + ref.RawQuery
}

type listHandlers struct {
	s      *Server
	name   string
	action tiering.Action
}

func (s *Server) listHandlers(name string, action tiering.Action) listHandlers {
	return listHandlers{s: s, name: name, action: action}
}

func (h listHandlers) list(w http.ResponseWriter, r *http.Request) {
	user := tiering.AuthFromRequest(r).User
	ids := []string{}
	if user != "" {
		var err error
		ids, err = h.s.store.List(h.name, user)
		if err != nil {
			h.s.writeError(w, http.StatusInternalServerError, "Failed to get list", err.Error())
			return
		}
	}

	h.s.writeJSON(w, http.StatusOK, ListResponse{List: h.name, IDs: ids, Count: len(ids)})
}

func (h listHandlers) add(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, h.s.store.AddToList)
}

func (h listHandlers) remove(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, h.s.store.RemoveFromList)
}

func (h listHandlers) change(w http.ResponseWriter, r *http.Request, apply func(list, userID, providerID string) error) {
	user, ok := h.s.gate(w, r, h.action)
	if !ok {
		return
	}
	if err := apply(h.name, user, r.PathValue("id")); err != nil {
		h.s.writeError(w, http.StatusInternalServerError, "Failed to update list", err.Error())
		return
	}
	h.list(w, r)
}

// viewer keys recently viewed providers: the member id, or the browser
// session for guests.
func viewer(w http.ResponseWriter, r *http.Request) string {
	if user := tiering.AuthFromRequest(r).User; user != "" {
		return user
	}
	return "session:" + tiering.SessionKey(w, r)
}

func (s *Server) HandleRecent(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.RecentlyViewed(viewer(w, r))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to get recently viewed", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, ListResponse{List: "recent", IDs: ids, Count: len(ids)})
}

func (s *Server) HandleRecordView(w http.ResponseWriter, r *http.Request) {
	key := viewer(w, r)
	if err := s.store.RecordView(key, r.PathValue("id")); err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to record view", err.Error())
		return
	}

	ids, err := s.store.RecentlyViewed(key)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to get recently viewed", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, ListResponse{List: "recent", IDs: ids, Count: len(ids)})
}

func (s *Server) HandleContacts(w http.ResponseWriter, r *http.Request) {
	contacts := []storage.Contact{}
	if user := tiering.AuthFromRequest(r).User; user != "" {
		var err error
		contacts, err = s.store.Contacts(user)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "Failed to get contacts", err.Error())
			return
		}
	}
	s.writeJSON(w, http.StatusOK, ContactsResponse{Contacts: contacts, Count: len(contacts)})
}

func (s *Server) HandleLogContact(w http.ResponseWriter, r *http.Request) {
	user, ok := s.gate(w, r, tiering.ActionLogContact)
	if !ok {
		return
	}

	var req ContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if req.Method == "" {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", "method is required")
		return
	}

	contact, err := s.store.LogContact(user, r.PathValue("id"), req.Method, req.Note)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to log contact", err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, contact)
}

func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to get stats", err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   version.APIVersion(),
	}

	s.writeJSON(w, http.StatusOK, health)
}
