package syncctl

import (
	"errors"
	"net/url"
	"testing"

	"github.com/rubiojr/carefinder/pkg/query"
)

type fakeLocation struct {
	params    url.Values
	replaces  []url.Values
	navigates []url.Values
}

func newLocation(raw string) *fakeLocation {
	return &fakeLocation{params: query.ParseParams(raw)}
}

func (l *fakeLocation) Params() url.Values { return l.params }

func (l *fakeLocation) Replace(p url.Values) {
	l.params = p
	l.replaces = append(l.replaces, p)
}

func (l *fakeLocation) Navigate(p url.Values) {
	l.params = p
	l.navigates = append(l.navigates, p)
}

func TestStartDoesNotRewriteRestoredLink(t *testing.T) {
	loc := newLocation("region=Toronto&ward=Ward%2010&page=3&sortBy=price")
	c := New(loc, nil)

	if !c.Start() {
		t.Fatal("expected ready")
	}
	if c.State() != Ready {
		t.Fatalf("unexpected state %s", c.State())
	}
	s := c.Spec()
	if s.Region != "Toronto" || s.Ward != "Ward 10" || s.Page != 3 || s.SortKey != query.SortPrice {
		t.Fatalf("unexpected spec %+v", s)
	}
	if len(loc.replaces) != 0 {
		t.Fatalf("start must not write the URL, got %v", loc.replaces)
	}
}

func TestSettleIsIdempotent(t *testing.T) {
	loc := newLocation("region=Toronto&page=2&types=Centre")
	c := New(loc, nil)
	c.Start()

	before := c.Spec()
	c.Apply()
	c.Apply()
	if len(loc.replaces) != 0 {
		t.Fatalf("settling an unchanged spec wrote the URL: %v", loc.replaces)
	}

	if _, changed := c.Navigated(loc.Params()); changed {
		t.Fatal("navigating to the current URL reported a change")
	}
	if !c.Spec().Equal(before) {
		t.Fatalf("spec drifted: %+v vs %+v", c.Spec(), before)
	}
}

func TestRegionSwitchClearsWard(t *testing.T) {
	loc := newLocation("region=Toronto&ward=Ward%2010")
	c := New(loc, nil)
	c.Start()

	s := c.Apply(query.SetRegion("Ottawa"))
	if s.Region != "Ottawa" || s.Ward != "" {
		t.Fatalf("expected ward cleared, got %+v", s)
	}
	if got := loc.Params().Encode(); got != "region=Ottawa" {
		t.Fatalf("unexpected URL %q", got)
	}

	s = c.Apply(query.SetRegion("York"), query.SetWard("Markham"))
	if s.Ward != "Markham" {
		t.Fatalf("a ward picked with the new region must survive, got %+v", s)
	}

	s = c.Apply(query.SetWard("Vaughan"))
	if s.Region != "York" || s.Ward != "Vaughan" {
		t.Fatalf("unexpected spec %+v", s)
	}
}

func TestFirstRegionKeepsWard(t *testing.T) {
	loc := newLocation("")
	c := New(loc, nil)
	c.Start()

	s := c.Apply(query.SetRegion("Toronto"), query.SetWard("Ward 3"))
	if s.Ward != "Ward 3" {
		t.Fatalf("expected ward kept when no previous region, got %+v", s)
	}
}

func TestFilterChangeResetsPage(t *testing.T) {
	loc := newLocation("page=2")
	c := New(loc, nil)
	c.Start()

	s := c.Apply(query.SetPriceBand(query.PriceHigh))
	if s.Page != 1 {
		t.Fatalf("expected page 1, got %d", s.Page)
	}
	if got := loc.Params().Encode(); got != "priceRange=high" {
		t.Fatalf("unexpected URL %q", got)
	}
	if len(loc.replaces) != 1 {
		t.Fatalf("expected one history neutral write, got %d", len(loc.replaces))
	}
	if len(loc.navigates) != 0 {
		t.Fatal("internal changes must not add history entries")
	}

	s = c.Apply(query.SetPage(3))
	if s.Page != 3 {
		t.Fatalf("changing only the page must not reset, got %d", s.Page)
	}
}

func TestEchoIsIgnored(t *testing.T) {
	loc := newLocation("")
	c := New(loc, nil)
	c.Start()

	c.Apply(query.SetText("forest school"))
	if !c.SelfUpdating() {
		t.Fatal("expected a pending self update")
	}

	echo := query.ParseParams("?q=forest+school")
	if _, changed := c.Navigated(echo); changed {
		t.Fatal("echo of our own write reported a change")
	}
	if c.SelfUpdating() {
		t.Fatal("self update flag must clear once the echo arrives")
	}
}

func TestExternalNavigationRestoresWithoutWriting(t *testing.T) {
	loc := newLocation("region=Toronto&page=4")
	c := New(loc, nil)
	c.Start()

	c.Apply(query.SetPriceBand(query.PriceLow))
	writes := len(loc.replaces)

	// Back button to the original link.
	back := query.ParseParams("region=Toronto&page=4")
	s, changed := c.Navigated(back)
	if !changed {
		t.Fatal("expected a change")
	}
	if s.PriceBand != query.PriceAny || s.Page != 4 {
		t.Fatalf("external navigation must overwrite fields and keep the page, got %+v", s)
	}
	if len(loc.replaces) != writes {
		t.Fatal("external navigation wrote the URL")
	}

	// The restored state is the new baseline: paging does not reset.
	if s := c.Apply(query.SetPage(5)); s.Page != 5 {
		t.Fatalf("unexpected page %d", s.Page)
	}
}

func TestExternalNavigationUpdatesRegionBaseline(t *testing.T) {
	loc := newLocation("region=Toronto")
	c := New(loc, nil)
	c.Start()

	c.Navigated(query.ParseParams("region=York&ward=Markham"))
	s := c.Apply(query.SetCWELCCOnly(true))
	if s.Ward != "Markham" {
		t.Fatalf("ward restored by navigation was cleared: %+v", s)
	}
}

func TestApplyBeforeStartIsIgnored(t *testing.T) {
	loc := newLocation("")
	c := New(loc, nil)
	s := c.Apply(query.SetText("x"))
	if s.Text != "" || len(loc.replaces) != 0 {
		t.Fatalf("mutation applied before start: %+v", s)
	}
}

func TestSnapshotRedirect(t *testing.T) {
	session := &MemorySnapshot{}
	durable := &MemorySnapshot{}
	session.SaveSnapshot("region=Toronto&sortBy=rating")
	durable.SaveSnapshot("region=Ottawa")

	loc := newLocation("")
	c := New(loc, Layered{Session: session, Durable: durable})

	if c.Start() {
		t.Fatal("expected a redirect instead of ready")
	}
	if len(loc.navigates) != 1 || loc.navigates[0].Get("region") != "Toronto" {
		t.Fatalf("session snapshot must win, got %v", loc.navigates)
	}
	if _, ok, _ := session.LoadSnapshot(); ok {
		t.Fatal("session snapshot not consumed")
	}
	if _, ok, _ := durable.LoadSnapshot(); ok {
		t.Fatal("durable snapshot not consumed")
	}

	s, changed := c.Navigated(loc.Params())
	if !changed || c.State() != Ready || s.SortKey != query.SortRating {
		t.Fatalf("unexpected state after redirect %s %+v", c.State(), s)
	}
}

func TestSnapshotRedirectHappensOnce(t *testing.T) {
	snap := &MemorySnapshot{}
	snap.SaveSnapshot("region=Toronto")

	loc := newLocation("")
	c := New(loc, snap)
	c.Start()

	// The navigation never arrived and the user is still on a bare URL.
	loc.params = url.Values{}
	snap.SaveSnapshot("region=York")
	if !c.Start() {
		t.Fatal("second start must not redirect again")
	}
	if len(loc.navigates) != 1 {
		t.Fatalf("expected a single redirect, got %d", len(loc.navigates))
	}
}

func TestDefaultValuedLinkIsNotBare(t *testing.T) {
	snap := &MemorySnapshot{}
	snap.SaveSnapshot("region=Toronto")

	loc := newLocation("sortBy=name&page=1")
	c := New(loc, snap)
	if !c.Start() {
		t.Fatal("a link carrying parameters must not be redirected")
	}
	if len(loc.navigates) != 0 {
		t.Fatalf("unexpected redirect %v", loc.navigates)
	}
	if _, ok, _ := snap.LoadSnapshot(); !ok {
		t.Fatal("snapshot must be kept for a later bare visit")
	}
}

func TestDurableSnapshotIsFallback(t *testing.T) {
	durable := &MemorySnapshot{}
	durable.SaveSnapshot("q=montessori")

	loc := newLocation("")
	c := New(loc, Layered{Session: &MemorySnapshot{}, Durable: durable})
	c.Start()
	if len(loc.navigates) != 1 || loc.navigates[0].Get("q") != "montessori" {
		t.Fatalf("expected durable fallback, got %v", loc.navigates)
	}
}

func TestSettleSavesSnapshot(t *testing.T) {
	snap := &MemorySnapshot{}
	loc := newLocation("region=Toronto")
	c := New(loc, snap)
	c.Start()

	c.Apply(query.SetSort(query.SortPrice, query.Desc))
	raw, ok, _ := snap.LoadSnapshot()
	if !ok {
		t.Fatal("expected a snapshot")
	}
	if !query.ParamsEqual(query.ParseParams(raw), query.ParseParams("region=Toronto&sortBy=price&sortOrder=desc")) {
		t.Fatalf("unexpected snapshot %q", raw)
	}
}

type brokenSnapshot struct{}

func (brokenSnapshot) LoadSnapshot() (string, bool, error) { return "", false, errors.New("boom") }
func (brokenSnapshot) SaveSnapshot(string) error            { return errors.New("boom") }
func (brokenSnapshot) ClearSnapshot() error                 { return errors.New("boom") }

func TestSnapshotErrorsDoNotEscape(t *testing.T) {
	loc := newLocation("")
	c := New(loc, brokenSnapshot{})
	if !c.Start() {
		t.Fatal("a failing snapshot store must not block start")
	}
	c.Apply(query.SetText("x"))
	if c.Spec().Text != "x" {
		t.Fatal("mutation lost")
	}
}

func TestLayeredFallsThroughErrors(t *testing.T) {
	durable := &MemorySnapshot{}
	durable.SaveSnapshot("q=a")
	raw, ok, err := Layered{Session: brokenSnapshot{}, Durable: durable}.LoadSnapshot()
	if err != nil || !ok || raw != "q=a" {
		t.Fatalf("unexpected load %q %v %v", raw, ok, err)
	}
}
