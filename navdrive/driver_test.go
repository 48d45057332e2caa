package navdrive

import (
	"context"
	"database/sql"
	"net/http/httptest"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/softnav/demosite"
	"github.com/hazyhaar/softnav/session"
	"github.com/hazyhaar/softnav/visitlog"
)

func newTestDriver(t *testing.T, cfg Config) (*Driver, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(demosite.Router())
	t.Cleanup(srv.Close)

	d, err := Open(context.Background(), srv.URL+"/", cfg)
	if err != nil {
		t.Fatal(err)
	}
	return d, srv
}

func TestOpenRendersStartPage(t *testing.T) {
	d, srv := newTestDriver(t, Config{})

	cur := d.Current()
	if cur == nil {
		t.Fatal("no current snapshot")
	}
	if cur.Title != "Home" {
		t.Fatalf("title: %q", cur.Title)
	}
	if got := d.Session().Location().RequestURL(); got != srv.URL+"/" {
		t.Fatalf("location: %q", got)
	}
	if d.History().Len() != 1 {
		t.Fatalf("history len: %d", d.History().Len())
	}
}

func TestClickWalkAdvancesHistory(t *testing.T) {
	d, srv := newTestDriver(t, Config{})

	if !d.ClickLink("/about") {
		t.Fatal("about click not intercepted")
	}
	if d.Current().Title != "About" {
		t.Fatalf("after click: %q", d.Current().Title)
	}
	if !d.ClickLink("/team") {
		t.Fatal("team click not intercepted")
	}
	if d.Current().Title != "Team" {
		t.Fatalf("after click: %q", d.Current().Title)
	}

	if d.History().Len() != 3 {
		t.Fatalf("history len: %d", d.History().Len())
	}
	top, ok := d.History().Top()
	if !ok || top.Location.RequestURL() != srv.URL+"/team" {
		t.Fatalf("history top: %+v", top)
	}
}

func TestBackRestoresSnapshotAndScroll(t *testing.T) {
	d, _ := newTestDriver(t, Config{})

	d.ScrollTo(session.Position{X: 0, Y: 640})
	if !d.ClickLink("/about") {
		t.Fatal("click not intercepted")
	}
	if got := d.Scroll(); got.Y != 0 {
		t.Fatalf("fresh page should scroll to top, got %+v", got)
	}

	if err := d.Back(); err != nil {
		t.Fatal(err)
	}

	if d.Current().Title != "Home" {
		t.Fatalf("after back: %q", d.Current().Title)
	}
	if got := d.Scroll(); got.Y != 640 {
		t.Fatalf("scroll not restored: %+v", got)
	}

	if err := d.Forward(); err != nil {
		t.Fatal(err)
	}
	if d.Current().Title != "About" {
		t.Fatalf("after forward: %q", d.Current().Title)
	}
}

func TestRestoreVisitServedFromCache(t *testing.T) {
	d, _ := newTestDriver(t, Config{})

	if !d.ClickLink("/about") {
		t.Fatal("click not intercepted")
	}

	var timings []map[string]any
	d.Session().Hooks().OnLoad(func(ev session.LoadEvent) {
		m := map[string]any{}
		for k := range ev.Timing {
			m[k] = struct{}{}
		}
		timings = append(timings, m)
	})

	if err := d.Back(); err != nil {
		t.Fatal(err)
	}
	if len(timings) != 1 {
		t.Fatalf("load fired %d times", len(timings))
	}
	if _, ok := timings[0]["cache"]; !ok {
		t.Fatalf("restore visit did not hit the cache: %v", timings[0])
	}
}

func TestReplaceActionLinkReplacesHistory(t *testing.T) {
	d, srv := newTestDriver(t, Config{})

	if !d.ClickLink("/profile") {
		t.Fatal("profile click not intercepted")
	}
	if d.History().Len() != 1 {
		t.Fatalf("replace grew history: %d", d.History().Len())
	}
	top, _ := d.History().Top()
	if top.Location.RequestURL() != srv.URL+"/profile" {
		t.Fatalf("history top: %q", top.Location.RequestURL())
	}
}

func TestOptedOutLinkIsNotIntercepted(t *testing.T) {
	d, _ := newTestDriver(t, Config{})

	if d.ClickLink("/legacy") {
		t.Fatal("opted-out link was intercepted")
	}
	if d.Current().Title != "Home" {
		t.Fatalf("page changed: %q", d.Current().Title)
	}
	if _, ok := d.LastRawNavigation(); ok {
		t.Fatal("opted-out click must not raw-navigate")
	}
}

func TestExternalLinkIsNotIntercepted(t *testing.T) {
	d, _ := newTestDriver(t, Config{})

	if d.ClickLink("https://external.example/elsewhere") {
		t.Fatal("cross-origin link was intercepted")
	}
	if d.Current().Title != "Home" {
		t.Fatalf("page changed: %q", d.Current().Title)
	}
}

func TestNonHTMLVisitFallsBackToRawNavigation(t *testing.T) {
	d, srv := newTestDriver(t, Config{})

	// The .pdf extension fails the visitability check before any fetch.
	if err := d.Visit(srv.URL + "/report.pdf"); err != nil {
		t.Fatal(err)
	}
	raw, ok := d.LastRawNavigation()
	if !ok {
		t.Fatal("expected raw navigation")
	}
	if !strings.HasSuffix(raw.Path(), "/report.pdf") {
		t.Fatalf("raw navigation target: %q", raw.String())
	}
	if d.History().Len() != 1 {
		t.Fatalf("raw navigation touched history: %d", d.History().Len())
	}
}

func TestRedirectReplacesHistoryWithFinalLocation(t *testing.T) {
	d, srv := newTestDriver(t, Config{})

	if err := d.Visit(srv.URL + "/moved"); err != nil {
		t.Fatal(err)
	}
	if d.Current().Title != "About" {
		t.Fatalf("after redirect: %q", d.Current().Title)
	}
	top, _ := d.History().Top()
	if top.Location.RequestURL() != srv.URL+"/about" {
		t.Fatalf("history should hold the final location, got %q", top.Location.RequestURL())
	}
	if got := d.Session().Location().RequestURL(); got != srv.URL+"/about" {
		t.Fatalf("session location: %q", got)
	}
	if d.History().Len() != 2 {
		t.Fatalf("history len: %d", d.History().Len())
	}
}

func TestFormSubmitVisitsAction(t *testing.T) {
	d, _ := newTestDriver(t, Config{})

	form := &session.AttrElement{TagVal: "form"}
	if !d.Session().HandleFormSubmit(form, "/search") {
		t.Fatal("submission not taken over")
	}

	if d.Current().Title != "Search results" {
		t.Fatalf("after submit: %q", d.Current().Title)
	}
	if d.History().Len() != 2 {
		t.Fatalf("history len: %d", d.History().Len())
	}
}

func TestDisableThenPopInvalidatesPage(t *testing.T) {
	d, _ := newTestDriver(t, Config{})

	if !d.ClickLink("/about") {
		t.Fatal("click not intercepted")
	}
	d.Session().Disable()

	if err := d.Back(); err != nil {
		t.Fatal(err)
	}
	if !d.Invalidated() {
		t.Fatal("pop on a disabled session must invalidate the page")
	}
	if d.Current().Title != "About" {
		t.Fatalf("disabled session still rendered: %q", d.Current().Title)
	}
}

func TestBeforeVisitVetoLeavesPageUntouched(t *testing.T) {
	d, _ := newTestDriver(t, Config{})

	d.Session().Hooks().OnBeforeVisit(func(session.VisitEvent) bool { return false })

	// The click itself is intercepted; the visit is vetoed afterwards.
	if !d.ClickLink("/about") {
		t.Fatal("click not intercepted")
	}
	if d.Current().Title != "Home" {
		t.Fatalf("vetoed visit rendered: %q", d.Current().Title)
	}
	if d.History().Len() != 1 {
		t.Fatalf("vetoed visit touched history: %d", d.History().Len())
	}
}

func TestHookOrderThroughRealDriver(t *testing.T) {
	d, _ := newTestDriver(t, Config{})

	var order []string
	h := d.Session().Hooks()
	h.OnClick(func(session.ClickEvent) bool { order = append(order, "click"); return true })
	h.OnBeforeVisit(func(session.VisitEvent) bool { order = append(order, "before-visit"); return true })
	h.OnVisit(func(session.VisitEvent) { order = append(order, "visit") })
	h.OnBeforeCache(func() { order = append(order, "before-cache") })
	h.OnBeforeRender(func(session.RenderEvent) { order = append(order, "before-render") })
	h.OnRender(func() { order = append(order, "render") })
	h.OnLoad(func(session.LoadEvent) { order = append(order, "load") })

	if !d.ClickLink("/about") {
		t.Fatal("click not intercepted")
	}

	want := []string{"click", "before-visit", "visit", "before-cache", "before-render", "render", "load"}
	if len(order) != len(want) {
		t.Fatalf("hook firings: %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("hook order: got %v, want %v", order, want)
		}
	}
}

func TestVisitLogRecordsDrive(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store := visitlog.NewStore(db, nil)
	if err := store.Init(); err != nil {
		t.Fatal(err)
	}

	d, srv := newTestDriver(t, Config{Log: store})

	if !d.ClickLink("/about") {
		t.Fatal("click not intercepted")
	}
	if err := d.Back(); err != nil {
		t.Fatal(err)
	}
	store.Close()

	entries, err := store.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("logged %d visits", len(entries))
	}
	if entries[0].Action != "restore" {
		t.Fatalf("newest action: %q", entries[0].Action)
	}
	if entries[1].Action != "advance" || entries[1].URL != srv.URL+"/about" {
		t.Fatalf("advance entry: %+v", entries[1])
	}
	if entries[1].Referrer != srv.URL+"/" {
		t.Fatalf("referrer: %q", entries[1].Referrer)
	}
}
