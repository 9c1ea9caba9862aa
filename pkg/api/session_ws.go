package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rubiojr/carefinder/pkg/query"
	"github.com/rubiojr/carefinder/pkg/session"
	"github.com/rubiojr/carefinder/pkg/tiering"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	pongWait   = pingPeriod + 15*time.Second
)

// Client event types.
const (
	EventKeystroke = "keystroke"
	EventMutate    = "mutate"
	EventPage      = "page"
	EventNavigate  = "navigate"
	EventAuth      = "auth"
	EventRetry     = "retry"
	EventMap       = "map"
)

// HandleSessionWS runs a live search session for the page given in the url
// query parameter. The session lives as long as the connection.
func (s *Server) HandleSessionWS(w http.ResponseWriter, r *http.Request) {
	header := http.Header{}
	key := tiering.SessionKeyHeader(r, header)
	user := tiering.AuthFromRequest(r).User

	pageURL := r.URL.Query().Get("url")
	if pageURL == "" {
		pageURL = session.DefaultBasePath
	}

	conn, err := s.upgrader.Upgrade(w, r, header)
	if err != nil {
		logger.Errorf("websocket upgrade failed: %v", err)
		return
	}

	out := make(chan session.Message, 32)
	done := make(chan struct{})

	sess := session.New(pageURL, session.Config{
		ID:        key,
		Cache:     s.cache,
		Snapshots: s.store.Snapshots(key, user),
		Returns:   s.store,
		Auth:      tiering.AuthSignal{User: user},
		Debounce:  s.debounce,
		LoginPath: s.loginPath,
	}, func(m session.Message) {
		select {
		case out <- m:
		case <-done:
		}
	})

	logger.Debugf("session %s connected (user=%q)", key, user)

	go s.writeLoop(conn, out, done)

	if s.hub != nil {
		id, events := s.hub.Register()
		defer s.hub.Unregister(id)
		go func() {
			for {
				select {
				case ev := <-events:
					logger.Debugf("session %s: %s from %s, refetching", key, ev.Type, ev.Source)
					sess.Retry()
				case <-sess.Done():
					return
				}
			}
		}()
	}

	s.readLoop(conn, sess, user)

	close(done)
	sess.Close()
	if err := conn.Close(); err != nil {
		logger.Debugf("closing websocket: %v", err)
	}
	logger.Debugf("session %s disconnected", key)
}

func (s *Server) writeLoop(conn *websocket.Conn, out <-chan session.Message, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case m := <-out:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteJSON(m); err != nil {
				logger.Debugf("websocket write: %v", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (s *Server) readLoop(conn *websocket.Conn, sess *session.Session, user string) {
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var ev ClientEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warnf("websocket read: %v", err)
			}
			return
		}
		if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			return
		}

		switch ev.Type {
		case EventKeystroke:
			sess.Keystroke(ev.Text)
		case EventMutate:
			muts, err := Mutations(ev.Mutations)
			if err != nil {
				logger.Warnf("session %s: %v", sess.ID(), err)
				continue
			}
			sess.Mutate(muts...)
		case EventPage:
			sess.ChangePage(ev.Page)
		case EventNavigate:
			sess.Navigate(ev.URL)
		case EventAuth:
			// The identity comes from the connection, the client only
			// reports whether its sign-in is still settling.
			sess.SetAuth(tiering.AuthSignal{User: user, IsLoading: ev.Loading})
		case EventRetry:
			sess.Retry()
		case EventMap:
			sess.Map()
		default:
			logger.Warnf("session %s: unknown event %q", sess.ID(), ev.Type)
		}
	}
}

// Mutations maps client mutation requests onto query mutations. Fields are
// named by their URL parameter, plus "sort" and "clear".
func Mutations(reqs []MutationRequest) ([]query.Mutation, error) {
	muts := make([]query.Mutation, 0, len(reqs))
	for _, req := range reqs {
		m, err := mutation(req)
		if err != nil {
			return nil, err
		}
		muts = append(muts, m)
	}
	return muts, nil
}

func mutation(req MutationRequest) (query.Mutation, error) {
	switch req.Field {
	case query.ParamText:
		return query.SetText(req.Value), nil
	case query.ParamRegion:
		return query.SetRegion(req.Value), nil
	case query.ParamWard:
		return query.SetWard(req.Value), nil
	case query.ParamPriceRange:
		return query.SetPriceBand(query.ParsePriceBand(req.Value)), nil
	case query.ParamTypes:
		if req.Toggle {
			return query.ToggleType(req.Value), nil
		}
		return query.SetTypes(req.Values...), nil
	case query.ParamAgeRange:
		if req.Toggle {
			return query.ToggleAgeRange(req.Value), nil
		}
		return query.SetAgeRanges(req.Values...), nil
	case query.ParamProgramAges:
		if req.Toggle {
			return query.ToggleProgramAge(req.Value), nil
		}
		return query.SetProgramAges(req.Values...), nil
	case query.ParamAvailability:
		return query.SetAvailability(req.Value), nil
	case query.ParamCWELCC:
		return query.SetCWELCCOnly(req.On), nil
	case query.ParamSubsidy:
		return query.SetSubsidyOnly(req.On), nil
	case "sort", query.ParamSortBy:
		return query.SetSort(query.ParseSortKey(req.Value), query.ParseSortOrder(req.Order)), nil
	case query.ParamPage:
		page := req.Page
		if page == 0 && req.Value != "" {
			n, err := strconv.Atoi(req.Value)
			if err != nil {
				return nil, fmt.Errorf("invalid page %q: %w", req.Value, err)
			}
			page = n
		}
		return query.SetPage(page), nil
	case "clear":
		return query.ClearFilters(), nil
	}
	return nil, fmt.Errorf("unknown mutation field %q", req.Field)
}
