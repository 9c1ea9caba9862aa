// Package tiering decides what a visitor may see and do based on whether they
// are signed in. Every guest check in carefinder goes through Decide and the
// returned Decision, so page size, the hidden results banner and the sign-in
// redirect stay consistent across the web page, the API and live sessions.
package tiering

import (
	"fmt"
	"net/url"
)

const (
	GuestPageSize  = 4
	MemberPageSize = 15

	// DefaultLoginPath is the authentication entry point guests are sent to.
	DefaultLoginPath = "/login"

	// ReturnParam carries the URL to come back to after signing in.
	ReturnParam = "returnTo"
)

// AuthSignal is what the authentication collaborator tells us about the
// visitor. User is empty for guests.
type AuthSignal struct {
	User      string `json:"user,omitempty"`
	IsLoading bool   `json:"isLoading,omitempty"`
}

// Guest reports a settled, anonymous visitor.
func (a AuthSignal) Guest() bool {
	return a.User == "" && !a.IsLoading
}

// Pending reports that the signal is not settled yet. Nothing page size
// sensitive should be rendered or fetched while pending.
func (a AuthSignal) Pending() bool {
	return a.User == "" && a.IsLoading
}

// Decision is derived from an AuthSignal and never stored.
type Decision struct {
	PageSize int  `json:"pageSize"`
	IsGuest  bool `json:"isGuest"`
}

// Decide maps the auth signal to a decision. ok is false while the signal is
// pending.
func Decide(a AuthSignal) (d Decision, ok bool) {
	if a.Pending() {
		return Decision{}, false
	}
	if a.Guest() {
		return Decision{PageSize: GuestPageSize, IsGuest: true}, true
	}
	return Decision{PageSize: MemberPageSize}, true
}

// Banner describes the "more results are hidden" state shown to guests.
type Banner struct {
	Show   bool   `json:"show"`
	Shown  int    `json:"shown"`
	Total  int    `json:"total"`
	Hidden int    `json:"hidden"`
	Text   string `json:"text,omitempty"`
}

// Banner computes the hidden results banner for a server reported total.
// Members never get one; guests get one once total exceeds the page size.
func (d Decision) Banner(total int) Banner {
	shown := min(total, d.PageSize)
	b := Banner{Shown: shown, Total: total}
	if !d.IsGuest || total <= d.PageSize {
		return b
	}
	b.Show = true
	b.Hidden = total - shown
	b.Text = fmt.Sprintf("Showing %d of %d, sign up to see all", shown, total)
	return b
}

// AllowsAllResults reports whether the single big page feed (used by the map)
// may be queried. Guests could otherwise page around their limit through it.
func (d Decision) AllowsAllResults() bool {
	return !d.IsGuest && d.PageSize > 0
}

// Action is something a visitor attempts that may be gated.
type Action string

const (
	ActionChangePage  Action = "change_page"
	ActionAddFavorite Action = "add_favorite"
	ActionCompare     Action = "compare"
	ActionLogContact  Action = "log_contact"
	ActionMapView     Action = "map_view"
	ActionSearch      Action = "search"
)

// Gated reports whether guests must sign in before performing a.
func (a Action) Gated() bool {
	switch a {
	case ActionChangePage, ActionAddFavorite, ActionCompare, ActionLogContact, ActionMapView:
		return true
	}
	return false
}

// Redirect sends a guest to sign in and brings them back to ReturnTo.
type Redirect struct {
	Action   Action `json:"action"`
	Location string `json:"location"`
	ReturnTo string `json:"returnTo"`
}

// ReturnStore durably keeps the return target, since the query parameter may
// be lost across intermediate redirects.
type ReturnStore interface {
	SaveReturnTarget(key, target string) error
}

// Gate checks whether the decision allows action. It returns nil when the
// action may proceed and a Redirect otherwise. returnTo is the full current
// search URL.
func (d Decision) Gate(action Action, loginPath, returnTo string) *Redirect {
	if !d.IsGuest || !action.Gated() {
		return nil
	}
	return &Redirect{
		Action:   action,
		Location: LoginURL(loginPath, returnTo),
		ReturnTo: returnTo,
	}
}

// LoginURL is the sign-in location that comes back to returnTo.
func LoginURL(loginPath, returnTo string) string {
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}
	return loginPath + "?" + url.Values{ReturnParam: {returnTo}}.Encode()
}

// Persist saves the redirect target in store under key (typically the browser
// session id). A nil redirect or store is a no-op.
func (r *Redirect) Persist(store ReturnStore, key string) error {
	if r == nil || store == nil {
		return nil
	}
	if err := store.SaveReturnTarget(key, r.ReturnTo); err != nil {
		return fmt.Errorf("saving return target: %w", err)
	}
	return nil
}
