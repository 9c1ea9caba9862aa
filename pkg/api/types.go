package api

import (
	"time"

	"github.com/rubiojr/carefinder/pkg/storage"
	"github.com/rubiojr/carefinder/pkg/tiering"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// RedirectResponse answers a gated request from a guest.
type RedirectResponse struct {
	Redirect string         `json:"redirect"`
	Action   tiering.Action `json:"action"`
}

type ListResponse struct {
	List  string   `json:"list"`
	IDs   []string `json:"ids"`
	Count int      `json:"count"`
}

type ContactRequest struct {
	Method string `json:"method"`
	Note   string `json:"note,omitempty"`
}

type ContactsResponse struct {
	Contacts []storage.Contact `json:"contacts"`
	Count    int               `json:"count"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// ClientEvent is a message from a live search page.
type ClientEvent struct {
	Type string `json:"type"`

	// keystroke
	Text string `json:"text,omitempty"`
	// navigate
	URL string `json:"url,omitempty"`
	// page
	Page int `json:"page,omitempty"`
	// auth
	Loading bool `json:"loading,omitempty"`
	// mutate
	Mutations []MutationRequest `json:"mutations,omitempty"`
}

// MutationRequest names a search field by its URL parameter and the new
// value. Toggle flips Value in a multi valued field instead of replacing it.
type MutationRequest struct {
	Field  string   `json:"field"`
	Value  string   `json:"value,omitempty"`
	Values []string `json:"values,omitempty"`
	Order  string   `json:"order,omitempty"`
	On     bool     `json:"on,omitempty"`
	Toggle bool     `json:"toggle,omitempty"`
	Page   int      `json:"page,omitempty"`
}
