// Package executor runs provider searches against the search API. It caches
// pages for a freshness window, coalesces identical concurrent requests and
// falls back to a static dataset when the API cannot be reached.
//
// A Cache is shared by everything in the process. An Executor sits on top of
// it for a single search session and adds what a live result list needs:
// the previous page stays visible while the next one loads, and results for a
// query the user already moved away from are dropped.
package executor

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rubiojr/carefinder/pkg/log"
	"github.com/rubiojr/carefinder/pkg/provider"
	"github.com/rubiojr/carefinder/pkg/query"
	"github.com/rubiojr/carefinder/pkg/tiering"
)

var logger = log.ForComponent("executor")

const (
	DefaultFreshness = 5 * time.Minute
	DefaultTimeout   = 30 * time.Second
)

var (
	// ErrUnavailable means neither the search API nor the fallback dataset
	// could answer. Retrying may help.
	ErrUnavailable = errors.New("search unavailable")

	// ErrGuestAllResults is returned when a guest asks for the map feed.
	ErrGuestAllResults = errors.New("all results are only available to members")
)

// Result is the outcome of a single cache lookup or fetch.
type Result struct {
	Response *Response
	Fallback bool
	Err      error
}

type entry struct {
	resp    *Response
	fetched time.Time
}

type Cache struct {
	searcher Searcher
	group    singleflight.Group
	now      func() time.Time
	timeout  time.Duration

	mu        sync.RWMutex
	entries   map[string]entry
	freshness time.Duration
	fallback  *Fallback
}

type Option func(*Cache)

func WithFreshness(d time.Duration) Option {
	return func(c *Cache) { c.freshness = d }
}

func WithFallback(f *Fallback) Option {
	return func(c *Cache) { c.fallback = f }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Cache) { c.timeout = d }
}

// WithNow replaces the clock used to judge freshness.
func WithNow(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a cache in front of searcher. A nil searcher answers
// every request from the fallback dataset.
func NewCache(searcher Searcher, opts ...Option) *Cache {
	c := &Cache{
		searcher:  searcher,
		now:       time.Now,
		timeout:   DefaultTimeout,
		entries:   make(map[string]entry),
		freshness: DefaultFreshness,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetFreshness changes the freshness window of cached pages.
func (c *Cache) SetFreshness(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.freshness = d
}

// SetFallback swaps the fallback dataset.
func (c *Cache) SetFallback(f *Fallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fallback = f
}

// Purge drops every cached page.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Fresh returns the cached response for key if it is still within the
// freshness window.
func (c *Cache) Fresh(key string) (*Response, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.fetched) >= c.freshness {
		return nil, false
	}
	return e.resp, true
}

func (c *Cache) store(key string, resp *Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{resp: resp, fetched: c.now()}
}

func (c *Cache) currentFallback() *Fallback {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fallback
}

// Get answers params from the cache, or from the search API when the cached
// page is missing or stale. bypass skips the cache lookup. Identical
// concurrent requests share one API call, which keeps running when a single
// caller gives up on it.
func (c *Cache) Get(ctx context.Context, params url.Values, bypass bool) Result {
	key := params.Encode()
	if !bypass {
		if resp, ok := c.Fresh(key); ok {
			return Result{Response: resp}
		}
	}

	if c.searcher == nil {
		return c.fromFallback(params, errors.New("no search backend configured"))
	}

	ch := c.group.DoChan(key, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		logger.Debugf("searching %s", key)
		resp, err := c.searcher.Search(rctx, params)
		if err != nil {
			return nil, err
		}
		c.store(key, resp)
		return resp, nil
	})

	select {
	case <-ctx.Done():
		return Result{Err: ctx.Err()}
	case r := <-ch:
		if r.Err != nil {
			return c.fromFallback(params, r.Err)
		}
		return Result{Response: r.Val.(*Response)}
	}
}

func (c *Cache) fromFallback(params url.Values, cause error) Result {
	fb := c.currentFallback()
	if fb == nil {
		logger.Errorf("search failed and no fallback dataset is loaded: %v", cause)
		return Result{Err: fmt.Errorf("%w: %v", ErrUnavailable, cause)}
	}

	logger.Warnf("search failed, answering from the fallback dataset: %v", cause)
	resp, err := fb.Search(params)
	if err != nil {
		return Result{Err: fmt.Errorf("%w: %v", ErrUnavailable, err)}
	}
	return Result{Response: resp, Fallback: true}
}

// Fetch runs a one off search for spec. Use an Executor for live result
// lists.
func (c *Cache) Fetch(ctx context.Context, spec query.Spec, pageSize int) Result {
	return c.Get(ctx, RemoteParams(spec, pageSize), false)
}

// FetchAll returns every provider matching spec in one page, keeping only
// providers that can be placed on a map. Guests are refused.
func (c *Cache) FetchAll(ctx context.Context, spec query.Spec, d tiering.Decision) Result {
	if !d.AllowsAllResults() {
		return Result{Err: ErrGuestAllResults}
	}

	spec.Page = 1
	res := c.Get(ctx, RemoteParams(spec, AllResultsLimit), false)
	if res.Err != nil {
		return res
	}

	located := make([]provider.Provider, 0, len(res.Response.Items))
	for _, p := range res.Response.Items {
		if p.HasCoordinates() {
			located = append(located, p)
		}
	}
	resp := *res.Response
	resp.Items = located
	res.Response = &resp
	return res
}
