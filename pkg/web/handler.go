// Package web serves the server rendered search page. Each request goes
// through the same pipeline as a live session: decode the URL, decide the
// tier, run the search, post-process and render.
package web

import (
	"net/http"
	"net/url"

	"github.com/a-h/templ"

	"github.com/rubiojr/carefinder/pkg/executor"
	"github.com/rubiojr/carefinder/pkg/log"
	"github.com/rubiojr/carefinder/pkg/query"
	"github.com/rubiojr/carefinder/pkg/render"
	"github.com/rubiojr/carefinder/pkg/results"
	"github.com/rubiojr/carefinder/pkg/session"
	"github.com/rubiojr/carefinder/pkg/syncctl"
	"github.com/rubiojr/carefinder/pkg/tiering"
	"github.com/rubiojr/carefinder/pkg/version"
)

var logger = log.ForComponent("web")

// SnapshotSource returns the last search store of a browser session. user is
// empty for guests.
type SnapshotSource func(sessionKey, user string) syncctl.SnapshotStore

type Options struct {
	Cache     *executor.Cache
	Renderer  *render.Service
	Snapshots SnapshotSource
	Returns   tiering.ReturnStore
	LoginPath string
	BasePath  string
}

type Handler struct {
	cache     *executor.Cache
	renderer  *render.Service
	snapshots SnapshotSource
	returns   tiering.ReturnStore
	loginPath string
	basePath  string
	page      func(PageData) templ.Component
}

func NewHandler(opts Options) *Handler {
	h := &Handler{
		cache:     opts.Cache,
		renderer:  opts.Renderer,
		snapshots: opts.Snapshots,
		returns:   opts.Returns,
		loginPath: opts.LoginPath,
		basePath:  opts.BasePath,
		page:      SearchPage,
	}
	if h.cache == nil {
		h.cache = executor.NewCache(nil)
	}
	if h.renderer == nil {
		h.renderer = render.New(render.GetGlobalRegistry())
	}
	if h.loginPath == "" {
		h.loginPath = tiering.DefaultLoginPath
	}
	if h.basePath == "" {
		h.basePath = session.DefaultBasePath
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := tiering.SessionKey(w, r)
	auth := tiering.AuthFromRequest(r)
	// Requests always carry a settled signal: no header means a guest.
	d, _ := tiering.Decide(auth)

	var snapshots syncctl.SnapshotStore
	if h.snapshots != nil {
		snapshots = h.snapshots(key, auth.User)
	}

	// Only a bare URL restores the last search. A submitted form with every
	// field cleared is a deliberate empty search.
	loc := &requestLocation{params: r.URL.Query()}
	restore := snapshots
	if r.URL.RawQuery != "" {
		restore = nil
	}
	ctl := syncctl.New(loc, restore)
	if !ctl.Start() {
		http.Redirect(w, r, query.Path(h.basePath, query.Decode(loc.navigated)), http.StatusFound)
		return
	}

	spec := ctl.Spec()
	current := query.Path(h.basePath, spec)
	if snapshots != nil {
		if err := snapshots.SaveSnapshot(query.Encode(spec).Encode()); err != nil {
			logger.Warnf("saving last search: %v", err)
		}
	}

	if d.IsGuest && spec.Page > 1 {
		redirect := d.Gate(tiering.ActionChangePage, h.loginPath, current)
		if err := redirect.Persist(h.returns, key); err != nil {
			logger.Warnf("%v", err)
		}
		http.Redirect(w, r, redirect.Location, http.StatusSeeOther)
		return
	}

	data := PageData{
		Title:      "Find child care - carefinder",
		Version:    version.APIVersion(),
		BasePath:   h.basePath,
		URL:        current,
		SignInURL:  tiering.LoginURL(h.loginPath, current),
		Spec:       spec,
		Decision:   d,
		PriceBands: priceBandOptions(spec.PriceBand),
		SortKeys:   sortKeyOptions(spec.SortKey),
		SortOrders: sortOrderOptions(spec.SortOrder),
	}

	res := h.cache.Fetch(r.Context(), spec, d.PageSize)
	if res.Err != nil {
		logger.Errorf("search %s: %v", current, res.Err)
		data.Error = "We could not load providers right now."
	} else {
		data.Page = results.Process(res.Response.Items, res.Response.TotalCount, spec, d)
		data.Cards = h.renderer.RenderAll(data.Page.Items)
		data.Fallback = res.Fallback
		if !d.IsGuest {
			h.paginate(&data, spec, res.Response.TotalPages)
		}
	}

	// templ buffers the page, a failed render never reaches the client.
	templ.Handler(h.page(data), templ.WithErrorHandler(func(r *http.Request, err error) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Errorf("rendering search page: %v", err)
			http.Error(w, "Template error", http.StatusInternalServerError)
		})
	})).ServeHTTP(w, r)
}

func (h *Handler) paginate(data *PageData, spec query.Spec, totalPages int) {
	data.TotalPages = totalPages
	if spec.Page > 1 {
		data.PrevURL = query.Path(h.basePath, spec.Apply(query.SetPage(spec.Page-1)))
	}
	if spec.Page < totalPages {
		data.NextURL = query.Path(h.basePath, spec.Apply(query.SetPage(spec.Page+1)))
	}
}

// requestLocation is the address bar of a single page request. A snapshot
// restore becomes an HTTP redirect.
type requestLocation struct {
	params    url.Values
	navigated url.Values
}

func (l *requestLocation) Params() url.Values {
	return l.params
}

func (l *requestLocation) Replace(params url.Values) {
	l.params = params
}

func (l *requestLocation) Navigate(params url.Values) {
	l.navigated = params
}
