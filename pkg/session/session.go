// Package session runs one live search page: the debounced search box, the
// URL sync controller, the tier decision and the result executor, joined by a
// single event loop. All state changes happen on the loop goroutine, so the
// components it owns need no locking of their own.
package session

import (
	"context"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/rubiojr/carefinder/pkg/debounce"
	"github.com/rubiojr/carefinder/pkg/executor"
	"github.com/rubiojr/carefinder/pkg/log"
	"github.com/rubiojr/carefinder/pkg/provider"
	"github.com/rubiojr/carefinder/pkg/query"
	"github.com/rubiojr/carefinder/pkg/results"
	"github.com/rubiojr/carefinder/pkg/syncctl"
	"github.com/rubiojr/carefinder/pkg/tiering"
)

var logger = log.ForComponent("session")

// DefaultBasePath is the path of the search page.
const DefaultBasePath = "/search"

// Message types sent to the client.
const (
	MsgInput      = "input"
	MsgReplaceURL = "replace_url"
	MsgNavigate   = "navigate"
	MsgResults    = "results"
	MsgMap        = "map"
	MsgRedirect   = "redirect"
	MsgError      = "error"
)

// Message is an update for the client rendering the session.
type Message struct {
	Type        string              `json:"type"`
	URL         string              `json:"url,omitempty"`
	Input       string              `json:"input,omitempty"`
	Page        *results.Page       `json:"page,omitempty"`
	Loading     bool                `json:"loading,omitempty"`
	Placeholder bool                `json:"placeholder,omitempty"`
	Fallback    bool                `json:"fallback,omitempty"`
	Providers   []provider.Provider `json:"providers,omitempty"`
	Redirect    *tiering.Redirect   `json:"redirect,omitempty"`
	Error       string              `json:"error,omitempty"`
	Retry       bool                `json:"retry,omitempty"`
}

// Config wires a session to its collaborators.
type Config struct {
	// ID identifies the browser session. A random id is used when empty.
	ID string

	Cache     *executor.Cache
	Snapshots syncctl.SnapshotStore
	Returns   tiering.ReturnStore

	Auth      tiering.AuthSignal
	Debounce  time.Duration
	LoginPath string
	BasePath  string

	// Clock drives the debounce timer. Real time when nil.
	Clock debounce.Clock
}

// Session is safe for concurrent use. Every exported method only queues an
// event for the loop.
type Session struct {
	id       string
	cfg      Config
	sink     func(Message)
	events   chan event
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	location *location

	// Owned by the loop goroutine.
	ctl    *syncctl.Controller
	buffer *debounce.Buffer
	exec   *executor.Executor
	auth   tiering.AuthSignal
}

// New starts a session for the page at rawURL. sink receives every message
// from the loop goroutine, one at a time.
func New(rawURL string, cfg Config, sink func(Message)) *Session {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.BasePath == "" {
		cfg.BasePath = DefaultBasePath
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = tiering.DefaultLoginPath
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = debounce.DefaultDelay
	}
	if cfg.Cache == nil {
		cfg.Cache = executor.NewCache(nil)
	}
	if sink == nil {
		sink = func(Message) {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:     cfg.ID,
		cfg:    cfg,
		sink:   sink,
		events: make(chan event, 64),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		exec:   executor.New(cfg.Cache),
		auth:   cfg.Auth,
	}
	s.location = &location{
		base:   cfg.BasePath,
		params: query.ParseParams(rawURL),
		emit:   s.emit,
	}
	s.ctl = syncctl.New(s.location, cfg.Snapshots)

	opts := []debounce.Option{}
	if cfg.Clock != nil {
		opts = append(opts, debounce.WithClock(cfg.Clock))
	}
	s.buffer = debounce.New(cfg.Debounce, func(text string) {
		s.post(commitEvent{text: text})
	}, opts...)

	go s.loop()
	s.post(startEvent{})
	return s
}

func (s *Session) ID() string {
	return s.id
}

// Keystroke reports the raw content of the search box.
func (s *Session) Keystroke(raw string) {
	s.post(keystrokeEvent{raw: raw})
}

// Mutate applies a batch of filter changes as one settle.
func (s *Session) Mutate(muts ...query.Mutation) {
	s.post(mutateEvent{muts: muts})
}

// ChangePage moves to page. Guests are sent to sign in instead.
func (s *Session) ChangePage(page int) {
	s.post(pageEvent{page: page})
}

// Navigate reports a URL change the session did not make itself, such as
// back/forward, or the echo of a replace_url message.
func (s *Session) Navigate(rawURL string) {
	s.post(navigateEvent{params: query.ParseParams(rawURL)})
}

// SetAuth updates the authentication signal.
func (s *Session) SetAuth(a tiering.AuthSignal) {
	s.post(authEvent{auth: a})
}

// Retry refetches the current results after an error.
func (s *Session) Retry() {
	s.post(retryEvent{})
}

// Map requests every located provider matching the current search.
func (s *Session) Map() {
	s.post(mapEvent{})
}

// Close stops the debounce timer, cancels in-flight requests and waits for
// the loop to exit. Events posted afterwards are discarded.
func (s *Session) Close() {
	s.cancel()
	<-s.done
}

// Done is closed once the session loop exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) post(ev event) {
	select {
	case <-s.ctx.Done():
		return
	default:
	}
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

func (s *Session) loop() {
	defer close(s.done)
	defer func() {
		s.buffer.Stop()
		s.exec.Close()
	}()

	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.events:
			ev.handle(s)
		}
	}
}

func (s *Session) emit(m Message) {
	if s.ctx.Err() != nil {
		return
	}
	s.sink(m)
}

// currentURL is the path of the page as the client shows it.
func (s *Session) currentURL() string {
	return s.location.path()
}

func (s *Session) decision() (tiering.Decision, bool) {
	return tiering.Decide(s.auth)
}

func (s *Session) redirect(action tiering.Action) bool {
	d, ok := s.decision()
	if !ok {
		return false
	}
	r := d.Gate(action, s.cfg.LoginPath, s.currentURL())
	if r == nil {
		return false
	}
	if err := r.Persist(s.cfg.Returns, s.id); err != nil {
		logger.Warnf("%v", err)
	}
	s.emit(Message{Type: MsgRedirect, URL: r.Location, Redirect: r})
	return true
}

// refresh brings the result list in line with the settled spec and the
// current tier. Nothing is fetched while the auth signal is pending.
func (s *Session) refresh() {
	if s.ctl.State() != syncctl.Ready {
		return
	}
	d, ok := s.decision()
	if !ok {
		return
	}

	spec := s.ctl.Spec()
	if d.IsGuest && spec.Page > 1 {
		s.redirect(tiering.ActionChangePage)
		return
	}

	key := executor.CacheKey(spec, d.PageSize)
	if st := s.exec.State(); st.Key == key && st.Err == nil && (st.Loading || st.Response != nil) {
		// Only the sort changed, or nothing did.
		s.render(st)
		return
	}

	st := s.exec.Query(spec, d.PageSize, func(st executor.State) {
		s.post(fetchedEvent{state: st})
	})
	s.render(st)
}

func (s *Session) render(st executor.State) {
	if st.Err != nil {
		s.emit(Message{Type: MsgError, URL: s.currentURL(), Error: st.Err.Error(), Retry: true})
		return
	}
	d, ok := s.decision()
	if !ok {
		return
	}

	m := Message{
		Type:        MsgResults,
		URL:         s.currentURL(),
		Loading:     st.Loading,
		Placeholder: st.Placeholder,
		Fallback:    st.Fallback,
	}
	if st.Response != nil {
		page := results.Process(st.Response.Items, st.Response.TotalCount, s.ctl.Spec(), d)
		m.Page = &page
	}
	s.emit(m)
}

// location is the session's view of the client address bar.
type location struct {
	base   string
	params url.Values
	emit   func(Message)
}

func (l *location) Params() url.Values {
	return l.params
}

func (l *location) Replace(params url.Values) {
	l.params = params
	l.emit(Message{Type: MsgReplaceURL, URL: l.path()})
}

func (l *location) Navigate(params url.Values) {
	l.params = params
	l.emit(Message{Type: MsgNavigate, URL: l.path()})
}

func (l *location) path() string {
	if enc := l.params.Encode(); enc != "" {
		return l.base + "?" + enc
	}
	return l.base
}
