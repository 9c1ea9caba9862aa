// Package syncctl keeps the in-memory search state and its URL projection in
// agreement.
//
// There are two directions of travel. Internal changes (the user toggles a
// filter, commits a search term, picks a page) go through Apply, which settles
// the new state and replaces the URL without adding a history entry. External
// changes (back/forward, a pasted link, the echo of our own replace) arrive
// through Navigated and overwrite the state without ever writing the URL back.
// Keeping the two directions apart is what makes settling idempotent.
package syncctl

import (
	"net/url"

	"github.com/rubiojr/carefinder/pkg/log"
	"github.com/rubiojr/carefinder/pkg/query"
)

var logger = log.ForComponent("syncctl")

// Location is the browser address bar as seen by the controller.
type Location interface {
	// Params returns the current query parameters.
	Params() url.Values
	// Replace swaps the current query without adding a history entry.
	Replace(params url.Values)
	// Navigate moves to params as a new location. Only used to restore a
	// last search snapshot.
	Navigate(params url.Values)
}

type State int

const (
	Uninitialized State = iota
	Ready
)

func (s State) String() string {
	if s == Ready {
		return "ready"
	}
	return "uninitialized"
}

// Controller is owned by a single session loop and is not safe for
// concurrent use.
type Controller struct {
	loc       Location
	snapshots SnapshotStore

	state State
	spec  query.Spec
	reset *query.ResetPolicy

	// lastKnownRegion is nil until the first region is observed.
	lastKnownRegion *string

	// selfUpdating is set while our own Replace has not echoed back yet.
	selfUpdating bool
	pending      url.Values

	// redirected makes the snapshot redirect happen at most once.
	redirected bool
}

// New creates a controller. snapshots may be nil.
func New(loc Location, snapshots SnapshotStore) *Controller {
	return &Controller{
		loc:       loc,
		snapshots: snapshots,
		spec:      query.Default(),
		reset:     query.NewResetPolicy(),
	}
}

func (c *Controller) State() State {
	return c.state
}

// Spec returns the current settled search state.
func (c *Controller) Spec() query.Spec {
	return c.spec
}

// SelfUpdating reports whether a URL write of ours is awaiting its echo.
func (c *Controller) SelfUpdating() bool {
	return c.selfUpdating
}

// Start initializes the controller from the current URL. When the URL is bare
// and a last search snapshot exists the controller navigates to it instead
// and stays uninitialized until that navigation arrives through Navigated.
// It returns true once the controller is ready.
func (c *Controller) Start() bool {
	if c.state == Ready {
		return true
	}

	params := c.loc.Params()
	if len(params) == 0 && !c.redirected {
		if target, ok := c.consumeSnapshot(); ok {
			c.redirected = true
			logger.Debugf("restoring last search %s", target.Encode())
			c.loc.Navigate(target)
			return false
		}
	}

	c.seed(params)
	return true
}

// Apply runs a batch of user mutations, settles the result and projects it
// onto the URL. The URL is written only when it actually changes.
func (c *Controller) Apply(muts ...query.Mutation) query.Spec {
	if c.state != Ready {
		logger.Debugf("ignoring %d mutations before start", len(muts))
		return c.spec
	}

	prev := c.spec
	next := prev.Apply(muts...)

	// Switching between two regions drops a ward that belongs to the old
	// one, unless the same batch picked a new ward.
	if c.lastKnownRegion != nil && *c.lastKnownRegion != "" &&
		next.Region != "" && next.Region != *c.lastKnownRegion && next.Ward == prev.Ward {
		next.Ward = ""
	}
	c.rememberRegion(next.Region)

	next = c.reset.Settle(next)
	c.spec = next

	params := query.Encode(next)
	if !query.ParamsEqual(params, c.loc.Params()) {
		c.selfUpdating = true
		c.pending = params
		c.loc.Replace(params)
	}
	c.saveSnapshot(params)

	return next
}

// Navigated handles a URL change the controller did not initiate, or the echo
// of one it did. It reports whether the search state changed. External
// navigation never writes the URL and never resets the page.
func (c *Controller) Navigated(params url.Values) (query.Spec, bool) {
	if c.selfUpdating && query.ParamsEqual(params, c.pending) {
		c.selfUpdating = false
		c.pending = nil
		return c.spec, false
	}
	c.selfUpdating = false
	c.pending = nil

	if c.state != Ready {
		c.seed(params)
		return c.spec, true
	}

	next := query.Decode(params)
	if next.Equal(c.spec) {
		return c.spec, false
	}

	logger.Debugf("external navigation changed %v", c.spec.DiffFields(next))
	c.spec = next
	c.reset.Prime(next)
	c.rememberRegion(next.Region)
	c.saveSnapshot(query.Encode(next))
	return next, true
}

// seed adopts params as the initial state. The ward found in the URL is kept
// and the page is taken as is.
func (c *Controller) seed(params url.Values) {
	c.spec = query.Decode(params)
	c.rememberRegion(c.spec.Region)
	c.reset.Prime(c.spec)
	c.state = Ready
}

func (c *Controller) rememberRegion(region string) {
	c.lastKnownRegion = &region
}

func (c *Controller) consumeSnapshot() (url.Values, bool) {
	if c.snapshots == nil {
		return nil, false
	}
	raw, ok, err := c.snapshots.LoadSnapshot()
	if err != nil {
		logger.Warnf("loading last search: %v", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if err := c.snapshots.ClearSnapshot(); err != nil {
		logger.Warnf("clearing last search: %v", err)
	}

	params := query.Encode(query.DecodeQuery(raw))
	if len(params) == 0 {
		return nil, false
	}
	return params, true
}

func (c *Controller) saveSnapshot(params url.Values) {
	if c.snapshots == nil {
		return
	}
	if err := c.snapshots.SaveSnapshot(params.Encode()); err != nil {
		logger.Warnf("saving last search: %v", err)
	}
}
