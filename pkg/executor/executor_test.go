package executor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rubiojr/carefinder/pkg/provider"
	"github.com/rubiojr/carefinder/pkg/query"
	"github.com/rubiojr/carefinder/pkg/tiering"
)

// countingSearcher answers every request with one provider named after the
// requested page and counts calls.
type countingSearcher struct {
	calls atomic.Int32
	gate  chan struct{}
	err   error
}

func (s *countingSearcher) Search(ctx context.Context, params url.Values) (*Response, error) {
	s.calls.Add(1)
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return &Response{
		Items:       []provider.Provider{{Name: "page " + params.Get(query.ParamPage) + " " + params.Get(query.ParamText)}},
		CurrentPage: 1,
		TotalPages:  1,
		TotalCount:  1,
	}, nil
}

func TestRemoteParamsMemberScenario(t *testing.T) {
	spec := query.DecodeQuery("page=2").Apply(query.SetPriceBand(query.PriceHigh))
	spec.Page = 1

	p := RemoteParams(spec, tiering.MemberPageSize)
	if p.Get(ParamPriceMin) != "1801" {
		t.Fatalf("expected priceMin=1801, got %q", p.Get(ParamPriceMin))
	}
	if _, ok := p[ParamPriceMax]; ok {
		t.Fatal("the high band has no upper bound")
	}
	if p.Get(query.ParamPage) != "1" || p.Get(ParamLimit) != "15" {
		t.Fatalf("unexpected paging %v", p)
	}

	low := RemoteParams(query.Default().Apply(query.SetPriceBand(query.PriceLow)), 4)
	if low.Get(ParamPriceMax) != "1200" || low.Get(ParamPriceMin) != "" {
		t.Fatalf("unexpected low band %v", low)
	}
}

func TestCacheKeyIgnoresSort(t *testing.T) {
	a := query.DecodeQuery("region=Toronto&sortBy=price&sortOrder=desc")
	b := query.DecodeQuery("region=Toronto")
	if CacheKey(a, 4) != CacheKey(b, 4) {
		t.Fatal("sort must not be part of the cache key")
	}
	if CacheKey(b, 4) == CacheKey(b, 15) {
		t.Fatal("page size must be part of the cache key")
	}
	if CacheKey(b, 4) == CacheKey(b.Apply(query.SetPage(2)), 4) {
		t.Fatal("page must be part of the cache key")
	}
}

func TestTypesPattern(t *testing.T) {
	if got := TypesPattern(query.NewSet("Home", "Centre")); got != `^(?:Centre|Home)$` {
		t.Fatalf("unexpected pattern %q", got)
	}
	if got := TypesPattern(query.NewSet("A.B")); got != `^(?:A\.B)$` {
		t.Fatalf("unexpected pattern %q", got)
	}
}

func TestFilterMatch(t *testing.T) {
	p := provider.Provider{
		Region: "Toronto", Ward: "Ward 4", Type: "Home", Price: "$1,100",
		AgeRanges: []string{"Infant", "Toddler"}, Vacancies: []string{"Infant"}, CWELCC: true,
	}

	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{"empty", "", true},
		{"region", "region=toronto", true},
		{"other region", "region=Ottawa", false},
		{"ward", "region=Toronto&ward=Ward+4", true},
		{"price in band", "priceMax=1200", true},
		{"price out of band", "priceMin=1801", false},
		{"type", "types=" + url.QueryEscape(`^(?:Centre|Home)$`), true},
		{"type mismatch", "types=" + url.QueryEscape(`^(?:Centre)$`), false},
		{"age range", "ageRange=Toddler,Preschool", true},
		{"vacancy required", "ageRange=Infant&availability=yes", true},
		{"no vacancy in range", "ageRange=Toddler&availability=yes", false},
		{"availability not required", "ageRange=Toddler&availability=no", true},
		{"cwelcc", "cwelcc=true", true},
		{"subsidy", "subsidy=true", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseFilter(query.ParseParams(tt.query))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got := f.Match(p); got != tt.want {
				t.Fatalf("Match = %v, want %v", got, tt.want)
			}
		})
	}

	unpriced := provider.Provider{Price: "call"}
	f, _ := ParseFilter(url.Values{ParamPriceMax: {"1200"}})
	if f.Match(unpriced) {
		t.Fatal("unpublished prices must not match a price filter")
	}

	if _, err := ParseFilter(url.Values{query.ParamTypes: {"(("}}); err == nil {
		t.Fatal("expected an error for a broken types pattern")
	}
}

func TestCacheServesFreshPages(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	s := &countingSearcher{}
	c := NewCache(s, WithNow(func() time.Time { return now }))
	spec := query.DecodeQuery("region=Toronto")

	for range 3 {
		if res := c.Fetch(context.Background(), spec, 4); res.Err != nil {
			t.Fatalf("fetch: %v", res.Err)
		}
	}
	if s.calls.Load() != 1 {
		t.Fatalf("expected one request, got %d", s.calls.Load())
	}

	// Sorting is client side and shares the page.
	c.Fetch(context.Background(), spec.Apply(query.SetSort(query.SortRating, query.Desc)), 4)
	if s.calls.Load() != 1 {
		t.Fatalf("sort change issued a request")
	}

	now = now.Add(DefaultFreshness)
	c.Fetch(context.Background(), spec, 4)
	if s.calls.Load() != 2 {
		t.Fatalf("expected a refetch after the freshness window, got %d", s.calls.Load())
	}
}

func TestCacheCoalescesConcurrentRequests(t *testing.T) {
	s := &countingSearcher{gate: make(chan struct{})}
	c := NewCache(s)
	params := RemoteParams(query.Default(), 15)

	var wg sync.WaitGroup
	results := make([]Result, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.Get(context.Background(), params, false)
		}()
	}

	// Let every caller join the in-flight request before releasing it.
	deadline := time.Now().Add(2 * time.Second)
	for s.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(s.gate)
	wg.Wait()

	if s.calls.Load() != 1 {
		t.Fatalf("expected one request, got %d", s.calls.Load())
	}
	for _, r := range results {
		if r.Err != nil || r.Response == nil {
			t.Fatalf("unexpected result %+v", r)
		}
	}
}

func TestCacheFallsBack(t *testing.T) {
	fb, err := BundledFallback()
	if err != nil {
		t.Fatalf("bundled dataset: %v", err)
	}
	s := &countingSearcher{err: errors.New("connection refused")}
	c := NewCache(s, WithFallback(fb))

	res := c.Fetch(context.Background(), query.DecodeQuery("region=Toronto"), 4)
	if res.Err != nil {
		t.Fatalf("expected fallback, got %v", res.Err)
	}
	if !res.Fallback {
		t.Fatal("expected the fallback flag")
	}
	if res.Response.TotalCount != 8 || len(res.Response.Items) != 4 || res.Response.TotalPages != 2 {
		t.Fatalf("unexpected fallback page %+v", res.Response)
	}
	for _, p := range res.Response.Items {
		if p.Region != "Toronto" {
			t.Fatalf("fallback ignored the region filter: %+v", p)
		}
	}

	// Fallback pages are not cached: the next call tries the API again.
	c.Fetch(context.Background(), query.DecodeQuery("region=Toronto"), 4)
	if s.calls.Load() != 2 {
		t.Fatalf("expected the API to be retried, got %d calls", s.calls.Load())
	}
}

func TestCacheUnavailable(t *testing.T) {
	c := NewCache(&countingSearcher{err: errors.New("timeout")})
	res := c.Fetch(context.Background(), query.Default(), 15)
	if !errors.Is(res.Err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", res.Err)
	}
}

func TestFetchAll(t *testing.T) {
	fb, _ := BundledFallback()
	c := NewCache(nil, WithFallback(fb))
	guest, _ := tiering.Decide(tiering.AuthSignal{})
	member, _ := tiering.Decide(tiering.AuthSignal{User: "u1"})

	if res := c.FetchAll(context.Background(), query.Default(), guest); !errors.Is(res.Err, ErrGuestAllResults) {
		t.Fatalf("expected guests to be refused, got %v", res.Err)
	}

	res := c.FetchAll(context.Background(), query.DecodeQuery("region=York&page=3"), member)
	if res.Err != nil {
		t.Fatalf("fetch all: %v", res.Err)
	}
	if len(res.Response.Items) != 3 {
		t.Fatalf("expected providers without coordinates dropped, got %d", len(res.Response.Items))
	}
}

func TestFallbackFuzzyText(t *testing.T) {
	fb, _ := BundledFallback()
	resp, err := fb.Search(RemoteParams(query.Default().Apply(query.SetText("Montessori")), 15))
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(resp.Items) == 0 || !strings.Contains(resp.Items[0].Name, "Montessori") {
		t.Fatalf("unexpected fuzzy results %+v", resp.Items)
	}
}

func TestPaginatePastAddressablePages(t *testing.T) {
	fb, err := BundledFallback()
	if err != nil {
		t.Fatalf("bundled fallback: %v", err)
	}

	pages := []string{"2305843009213693953", "9223372036854775807"}
	for _, page := range pages {
		t.Run(page, func(t *testing.T) {
			resp, err := fb.Search(RemoteParams(query.DecodeQuery("page="+page), 4))
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if len(resp.Items) != 0 {
				t.Errorf("Expected an empty page, got %d items", len(resp.Items))
			}
			if resp.TotalCount == 0 {
				t.Error("Expected the total to still count every match")
			}
		})
	}
}

func TestFilterOffset(t *testing.T) {
	tests := []struct {
		name string
		f    Filter
		want int
	}{
		{"first page", Filter{Page: 1, Limit: 15}, 0},
		{"third page", Filter{Page: 3, Limit: 4}, 8},
		{"zero limit", Filter{Page: 2}, 1},
		{"overflow", Filter{Page: 2305843009213693953, Limit: 4}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.f.Offset(); got != tt.want {
				t.Errorf("Offset() = %d, want %d", got, tt.want)
			}
		})
	}
}

func waitState(t *testing.T, ch <-chan State) State {
	t.Helper()
	select {
	case st := <-ch:
		return st
	case <-time.After(2 * time.Second):
		t.Fatal("no completion")
	}
	return State{}
}

func TestExecutorKeepsPlaceholder(t *testing.T) {
	s := &countingSearcher{}
	e := New(NewCache(s))
	defer e.Close()

	done := make(chan State, 4)
	st := e.Query(query.Default(), 15, func(s State) { done <- s })
	if !st.Loading || st.Placeholder || st.Response != nil {
		t.Fatalf("unexpected first state %+v", st)
	}
	first := waitState(t, done)
	if first.Loading || first.Response == nil {
		t.Fatalf("unexpected completion %+v", first)
	}

	s.gate = make(chan struct{})
	st = e.Query(query.Default().Apply(query.SetText("oak")), 15, func(s State) { done <- s })
	if !st.Loading || !st.Placeholder || st.Response != first.Response {
		t.Fatalf("expected previous results as placeholder, got %+v", st)
	}
	close(s.gate)
	second := waitState(t, done)
	if second.Placeholder || second.Response.Items[0].Name != "page 1 oak" {
		t.Fatalf("unexpected completion %+v", second)
	}
}

func TestExecutorFreshHitIsImmediate(t *testing.T) {
	s := &countingSearcher{}
	cache := NewCache(s)
	cache.Fetch(context.Background(), query.Default(), 15)

	e := New(cache)
	defer e.Close()
	st := e.Query(query.Default(), 15, func(State) { t.Error("fresh hits complete synchronously") })
	if st.Loading || st.Response == nil {
		t.Fatalf("expected a cached page, got %+v", st)
	}
	if s.calls.Load() != 1 {
		t.Fatalf("unexpected request count %d", s.calls.Load())
	}
}

// routedSearcher blocks requests for one text term until released.
type routedSearcher struct {
	slowText string
	release  chan struct{}
}

func (s *routedSearcher) Search(ctx context.Context, params url.Values) (*Response, error) {
	if params.Get(query.ParamText) == s.slowText {
		<-s.release
	}
	return &Response{Items: []provider.Provider{{Name: params.Get(query.ParamText)}}, TotalCount: 1}, nil
}

func TestExecutorDropsStaleResults(t *testing.T) {
	s := &routedSearcher{slowText: "slow", release: make(chan struct{})}
	e := New(NewCache(s))
	defer e.Close()

	stale := make(chan State, 1)
	e.Query(query.Default().Apply(query.SetText("slow")), 15, func(s State) { stale <- s })

	latest := make(chan State, 1)
	e.Query(query.Default().Apply(query.SetText("fast")), 15, func(s State) { latest <- s })
	got := waitState(t, latest)
	if got.Response.Items[0].Name != "fast" {
		t.Fatalf("unexpected latest result %+v", got)
	}

	close(s.release)
	select {
	case st := <-stale:
		t.Fatalf("stale result delivered: %+v", st)
	case <-time.After(100 * time.Millisecond):
	}
	if e.State().Response.Items[0].Name != "fast" {
		t.Fatal("stale result overwrote the state")
	}
}

func TestExecutorErrorAndRetry(t *testing.T) {
	s := &countingSearcher{err: errors.New("down")}
	e := New(NewCache(s))
	defer e.Close()

	done := make(chan State, 2)
	e.Query(query.Default(), 4, func(s State) { done <- s })
	st := waitState(t, done)
	if !errors.Is(st.Err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", st.Err)
	}

	s.err = nil
	e.Retry(func(s State) { done <- s })
	st = waitState(t, done)
	if st.Err != nil || st.Response == nil {
		t.Fatalf("retry failed: %+v", st)
	}
}

func TestExecutorClose(t *testing.T) {
	s := &countingSearcher{gate: make(chan struct{})}
	e := New(NewCache(s))

	done := make(chan State, 1)
	e.Query(query.Default(), 15, func(s State) { done <- s })
	e.Close()
	close(s.gate)

	select {
	case st := <-done:
		t.Fatalf("completion after close: %+v", st)
	case <-time.After(100 * time.Millisecond):
	}
	if st := e.Query(query.Default(), 15, nil); !errors.Is(st.Err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", st.Err)
	}
}

func TestHTTPSearcher(t *testing.T) {
	var gotAuth, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		resp := &Response{
			Items:       []provider.Provider{{ID: "p1", Name: "Little Oaks"}},
			CurrentPage: 1, TotalPages: 3, TotalCount: 37,
		}
		if err := json.NewEncoder(w).Encode(resp.Envelope()); err != nil {
			t.Errorf("encode: %v", err)
		}
	}))
	defer srv.Close()

	s, err := NewHTTPSearcher(srv.URL+"/api/search", "secret")
	if err != nil {
		t.Fatalf("new searcher: %v", err)
	}
	params := RemoteParams(query.DecodeQuery("region=Toronto"), 4)
	resp, err := s.Search(context.Background(), params)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("unexpected authorization header %q", gotAuth)
	}
	if !query.ParamsEqual(query.ParseParams(gotQuery), params) {
		t.Fatalf("unexpected query %q", gotQuery)
	}
	if resp.TotalCount != 37 || len(resp.Items) != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestHTTPSearcherErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get(query.ParamPage) == "2" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(Envelope{Success: false, Error: "bad types"})
	}))
	defer srv.Close()

	s, _ := NewHTTPSearcher(srv.URL, "")
	if _, err := s.Search(context.Background(), url.Values{query.ParamPage: {"2"}}); err == nil {
		t.Fatal("expected a status error")
	}
	if _, err := s.Search(context.Background(), url.Values{}); err == nil || !strings.Contains(err.Error(), "bad types") {
		t.Fatalf("expected the API error, got %v", err)
	}
	if _, err := NewHTTPSearcher("not a url", ""); err == nil {
		t.Fatal("expected an invalid endpoint error")
	}
}
