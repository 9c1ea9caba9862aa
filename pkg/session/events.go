package session

import (
	"net/url"

	"github.com/rubiojr/carefinder/pkg/executor"
	"github.com/rubiojr/carefinder/pkg/query"
	"github.com/rubiojr/carefinder/pkg/syncctl"
	"github.com/rubiojr/carefinder/pkg/tiering"
)

// event is an input of the session loop. handle runs on the loop goroutine.
type event interface {
	handle(s *Session)
}

type startEvent struct{}

func (startEvent) handle(s *Session) {
	if !s.ctl.Start() {
		// Redirected to the last search, wait for the navigation.
		return
	}
	s.buffer.Reset(s.ctl.Spec().Text)
	s.refresh()
}

type keystrokeEvent struct{ raw string }

func (e keystrokeEvent) handle(s *Session) {
	s.buffer.Type(e.raw)
}

type commitEvent struct{ text string }

func (e commitEvent) handle(s *Session) {
	// A navigation may have reset the box after the timer fired.
	if e.text != s.buffer.Committed() {
		return
	}
	s.ctl.Apply(query.SetText(e.text))
	s.refresh()
}

type mutateEvent struct{ muts []query.Mutation }

func (e mutateEvent) handle(s *Session) {
	// A batch that moves to another page is gated like a page event.
	cur := s.ctl.Spec()
	if next := cur.Apply(e.muts...); next.Page > 1 && next.Page != cur.Page {
		if s.redirect(tiering.ActionChangePage) {
			return
		}
	}
	s.ctl.Apply(e.muts...)
	s.refresh()
}

type pageEvent struct{ page int }

func (e pageEvent) handle(s *Session) {
	if s.redirect(tiering.ActionChangePage) {
		return
	}
	s.ctl.Apply(query.SetPage(e.page))
	s.refresh()
}

type navigateEvent struct{ params url.Values }

func (e navigateEvent) handle(s *Session) {
	wasReady := s.ctl.State() == syncctl.Ready
	s.location.params = e.params

	spec, changed := s.ctl.Navigated(e.params)
	if !changed && wasReady {
		return
	}
	if spec.Text != s.buffer.Raw() {
		s.buffer.Reset(spec.Text)
		s.emit(Message{Type: MsgInput, Input: spec.Text})
	}
	s.refresh()
}

type authEvent struct{ auth tiering.AuthSignal }

func (e authEvent) handle(s *Session) {
	if e.auth == s.auth {
		return
	}
	s.auth = e.auth
	s.refresh()
}

type retryEvent struct{}

func (retryEvent) handle(s *Session) {
	st := s.exec.Retry(func(st executor.State) {
		s.post(fetchedEvent{state: st})
	})
	s.render(st)
}

type fetchedEvent struct{ state executor.State }

func (e fetchedEvent) handle(s *Session) {
	if e.state.Key != s.exec.State().Key {
		return
	}
	s.render(e.state)
}

type mapEvent struct{}

func (mapEvent) handle(s *Session) {
	if s.ctl.State() != syncctl.Ready {
		return
	}
	if s.redirect(tiering.ActionMapView) {
		return
	}
	d, ok := s.decision()
	if !ok {
		return
	}

	spec := s.ctl.Spec()
	go func() {
		res := s.cfg.Cache.FetchAll(s.ctx, spec, d)
		s.post(mapResultEvent{result: res})
	}()
}

type mapResultEvent struct{ result executor.Result }

func (e mapResultEvent) handle(s *Session) {
	if e.result.Err != nil {
		s.emit(Message{Type: MsgError, Error: e.result.Err.Error(), Retry: true})
		return
	}
	s.emit(Message{Type: MsgMap, Providers: e.result.Response.Items, Fallback: e.result.Fallback})
}
