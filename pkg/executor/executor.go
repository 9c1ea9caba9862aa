package executor

import (
	"context"
	"errors"
	"sync"

	"github.com/rubiojr/carefinder/pkg/query"
)

// ErrClosed is reported by an Executor after Close.
var ErrClosed = errors.New("executor closed")

// State is what a result list renders.
type State struct {
	Key      string     `json:"-"`
	Spec     query.Spec `json:"spec"`
	PageSize int        `json:"pageSize"`
	Response *Response  `json:"-"`

	// Loading is set while the page for Key is being fetched.
	Loading bool `json:"loading"`
	// Placeholder is set when Response belongs to an earlier query and is
	// only kept on screen until the new page arrives.
	Placeholder bool `json:"placeholder"`
	// Fallback is set when Response came from the static dataset.
	Fallback bool `json:"fallback"`

	Err error `json:"-"`
}

// Executor drives the result list of one search session. Only the latest
// query's completion is ever delivered.
type Executor struct {
	cache *Cache

	mu     sync.Mutex
	gen    uint64
	state  State
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
}

func New(cache *Cache) *Executor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Executor{cache: cache, ctx: ctx, cancel: cancel}
}

// State returns the latest state.
func (e *Executor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Query starts showing the results for spec at pageSize. The returned state
// is what to render right away: either a fresh cached page, or the previous
// page as a placeholder while the new one loads. In the latter case done is
// called from another goroutine with the final state, unless a later Query
// superseded this one or the executor was closed.
func (e *Executor) Query(spec query.Spec, pageSize int, done func(State)) State {
	return e.run(spec, pageSize, false, done)
}

// Retry fetches the current query again, skipping the cache.
func (e *Executor) Retry(done func(State)) State {
	st := e.State()
	if st.PageSize == 0 {
		return st
	}
	return e.run(st.Spec, st.PageSize, true, done)
}

func (e *Executor) run(spec query.Spec, pageSize int, bypass bool, done func(State)) State {
	params := RemoteParams(spec, pageSize)
	key := params.Encode()

	e.mu.Lock()
	if e.closed {
		st := e.state
		st.Err = ErrClosed
		e.mu.Unlock()
		return st
	}

	e.gen++
	gen := e.gen

	if !bypass {
		if resp, ok := e.cache.Fresh(key); ok {
			e.state = State{Key: key, Spec: spec, PageSize: pageSize, Response: resp}
			st := e.state
			e.mu.Unlock()
			return st
		}
	}

	prev := e.state
	e.state = State{
		Key:         key,
		Spec:        spec,
		PageSize:    pageSize,
		Response:    prev.Response,
		Loading:     true,
		Placeholder: prev.Response != nil,
		Fallback:    prev.Response != nil && prev.Fallback,
	}
	st := e.state
	ctx := e.ctx
	e.mu.Unlock()

	go func() {
		res := e.cache.Get(ctx, params, bypass)

		e.mu.Lock()
		if gen != e.gen || e.closed {
			e.mu.Unlock()
			logger.Debugf("dropping stale result for %s", key)
			return
		}
		next := State{
			Key:      key,
			Spec:     spec,
			PageSize: pageSize,
			Response: res.Response,
			Fallback: res.Fallback,
			Err:      res.Err,
		}
		e.state = next
		e.mu.Unlock()

		if done != nil {
			done(next)
		}
	}()

	return st
}

// Close cancels in-flight requests. Completions arriving afterwards are
// dropped.
func (e *Executor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.cancel()
}
