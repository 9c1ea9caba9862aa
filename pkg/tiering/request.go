package tiering

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	// UserHeader is set by the authenticating proxy in front of carefinder.
	// A missing or empty header means a guest.
	UserHeader = "X-Carefinder-User"

	// SessionCookie identifies the browser session for snapshots and return
	// targets. It is not an authentication credential.
	SessionCookie = "carefinder_session"
)

// AuthFromRequest reads the settled auth signal of an HTTP request.
func AuthFromRequest(r *http.Request) AuthSignal {
	return AuthSignal{User: strings.TrimSpace(r.Header.Get(UserHeader))}
}

// SessionKey returns the browser session id, issuing a new session cookie
// when the request carries none.
func SessionKey(w http.ResponseWriter, r *http.Request) string {
	return SessionKeyHeader(r, w.Header())
}

// SessionKeyHeader is SessionKey for responses whose headers are written
// elsewhere, such as a WebSocket upgrade. A new cookie is added to h.
func SessionKeyHeader(r *http.Request, h http.Header) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	c := &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	h.Add("Set-Cookie", c.String())
	return id
}
