package domdrive

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/softnav/fetch"
	"github.com/hazyhaar/softnav/location"
	"github.com/hazyhaar/softnav/render"
	"github.com/hazyhaar/softnav/session"
	"github.com/hazyhaar/softnav/visitlog"
)

//go:embed observer.js
var observerJS string

const bindingName = "__softnav_intent"

// Config configures a Driver.
type Config struct {
	// Root bounds visitability. Defaults to the origin root of the
	// start location.
	Root location.Location

	// Fetcher acquires page bodies out of band; the browser never
	// reloads for an intercepted visit. Default: fetch.New().
	Fetcher *fetch.Fetcher

	// Renderer parses fetched bodies. Default: render.New().
	Renderer *render.Renderer

	// CacheSize bounds the snapshot cache. Default: 10.
	CacheSize int

	// Log, when set, records every realized visit.
	Log *visitlog.Store

	// NavigateTimeout bounds raw navigations. Default: 30s.
	NavigateTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Fetcher == nil {
		c.Fetcher = fetch.New()
	}
	if c.Renderer == nil {
		c.Renderer = render.New()
	}
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Driver is the live-Chrome adapter. Create one with Open.
type Driver struct {
	page     *rod.Page
	session  *session.Session
	history  *BrowserHistory
	fetcher  *fetch.Fetcher
	renderer *render.Renderer
	cache    *render.Cache
	log      *visitlog.Store
	logger   *slog.Logger
	navTO    time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	current     *render.Snapshot
	invalidated bool
}

// Open creates a stealth tab, navigates it to startURL, installs the
// intent binding, and begins a soft navigation session on the page.
func Open(ctx context.Context, mgr *Manager, startURL string, cfg Config) (*Driver, error) {
	cfg.defaults()

	start, err := location.Parse(startURL)
	if err != nil {
		return nil, err
	}

	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("domdrive: manager not started")
	}
	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("domdrive: create tab: %w", err)
	}

	navCtx, cancelNav := context.WithTimeout(ctx, cfg.NavigateTimeout)
	defer cancelNav()
	if err := page.Context(navCtx).Navigate(startURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("domdrive: navigate %s: %w", startURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		cfg.Logger.Warn("domdrive: wait load timeout", "url", startURL, "error", err)
	}

	dctx, cancel := context.WithCancel(ctx)
	d := &Driver{
		page:     page,
		fetcher:  cfg.Fetcher,
		renderer: cfg.Renderer,
		cache:    render.NewCache(cfg.CacheSize),
		log:      cfg.Log,
		logger:   cfg.Logger,
		navTO:    cfg.NavigateTimeout,
		ctx:      dctx,
		cancel:   cancel,
	}
	d.history = newBrowserHistory(page, cfg.Logger)
	d.session = session.New(session.Config{
		StartLocation: start,
		Root:          cfg.Root,
		History:       d.history,
		Adapter:       d,
		Logger:        cfg.Logger,
	})

	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(page); err != nil {
		cfg.Logger.Warn("domdrive: addBinding failed (may already exist)", "error", err)
	}
	go d.listenIntents()

	if err := d.injectObserver(); err != nil {
		page.Close()
		cancel()
		return nil, err
	}

	if snap, err := d.snapshotPage(start); err == nil {
		d.current = snap
	} else {
		cfg.Logger.Warn("domdrive: initial snapshot failed", "error", err)
	}

	d.session.Start()
	return d, nil
}

// Session returns the orchestrating session, e.g. to register hooks.
func (d *Driver) Session() *session.Session { return d.session }

// Visit requests a soft navigation.
func (d *Driver) Visit(raw string) error {
	return d.session.Visit(raw, session.VisitOptions{})
}

// Invalidated reports whether the page had to be hard-reloaded.
func (d *Driver) Invalidated() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.invalidated
}

// Close stops intent dispatch and closes the tab.
func (d *Driver) Close() error {
	d.cancel()
	d.session.Stop()
	return d.page.Close()
}

func (d *Driver) injectObserver() error {
	if _, err := d.page.Eval(observerJS); err != nil {
		return fmt.Errorf("domdrive: inject observer: %w", err)
	}
	return nil
}

// intent is one message from the injected script.
type intent struct {
	Kind          string       `json:"kind"`
	Href          string       `json:"href"`
	Action        string       `json:"action"`
	URL           string       `json:"url"`
	RestorationID string       `json:"restoration_id"`
	X             float64      `json:"x"`
	Y             float64      `json:"y"`
	Chain         []intentNode `json:"chain"`
}

type intentNode struct {
	Tag   string            `json:"tag"`
	Attrs map[string]string `json:"attrs"`
}

// elementFromChain rebuilds the serialized ancestor chain as an Element
// the link policy can walk. The chain arrives innermost first.
func elementFromChain(chain []intentNode) *session.AttrElement {
	var outer *session.AttrElement
	for i := len(chain) - 1; i >= 0; i-- {
		outer = &session.AttrElement{
			Attrs:  chain[i].Attrs,
			Up:     outer,
			TagVal: chain[i].Tag,
		}
	}
	return outer
}

// listenIntents receives binding calls from the injected script; a
// dedicated EachEvent goroutine per page delivers them in order.
func (d *Driver) listenIntents() {
	d.page.Context(d.ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		var in intent
		if err := json.Unmarshal([]byte(e.Payload), &in); err != nil {
			d.logger.Warn("domdrive: parse intent payload", "error", err)
			return
		}
		d.dispatch(in)
	})()
}

func (d *Driver) dispatch(in intent) {
	// A typed nil *AttrElement must not reach the Element interface.
	var el session.Element
	if e := elementFromChain(in.Chain); e != nil {
		el = e
	}

	switch in.Kind {
	case "click":
		if d.session.HandleLinkClick(el, in.Href) {
			return
		}
		// The script suppressed the default; perform it ourselves.
		if loc, err := location.Resolve(d.session.Location(), in.Href); err == nil {
			d.RawNavigate(loc)
		}
	case "submit":
		if d.session.HandleFormSubmit(el, in.Action) {
			return
		}
		if loc, err := location.Resolve(d.session.Location(), in.Action); err == nil {
			d.RawNavigate(loc)
		}
	case "scroll":
		d.session.ScrollPositionChanged(session.Position{X: in.X, Y: in.Y})
	case "pop":
		d.history.handlePop(in.URL, in.RestorationID)
	case "ready":
		d.session.PageBecameInteractive()
	default:
		d.logger.Debug("domdrive: unknown intent", "kind", in.Kind)
	}
}

// snapshotPage captures the live document for the restoration cache.
func (d *Driver) snapshotPage(loc location.Location) (*render.Snapshot, error) {
	res, err := d.page.Eval(`() => JSON.stringify({title: document.title, body: document.body.innerHTML})`)
	if err != nil {
		return nil, fmt.Errorf("domdrive: snapshot page: %w", err)
	}
	var doc struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	if err := json.Unmarshal([]byte(res.Value.Str()), &doc); err != nil {
		return nil, fmt.Errorf("domdrive: snapshot page: %w", err)
	}
	return &render.Snapshot{
		Location: loc,
		Title:    doc.Title,
		BodyHTML: []byte(doc.Body),
		TakenAt:  time.Now(),
	}, nil
}

// splice replaces the document title and body in place. Listeners on
// document and window survive; per-node listeners in the old body do not.
func (d *Driver) splice(snap *render.Snapshot) error {
	_, err := d.page.Eval(`(title, body) => {
		document.title = title;
		document.body.innerHTML = body;
	}`, snap.Title, string(snap.BodyHTML))
	if err != nil {
		return fmt.Errorf("domdrive: splice: %w", err)
	}
	return nil
}

func (d *Driver) scrollTo(pos session.Position) {
	if _, err := d.page.Eval(`(x, y) => window.scrollTo(x, y)`, pos.X, pos.Y); err != nil {
		d.logger.Warn("domdrive: scroll restore failed", "error", err)
	}
}

// --- session.Adapter ---

// VisitProposed routes an intercepted visit straight back into the session.
func (d *Driver) VisitProposed(loc location.Location, action session.Action) {
	d.session.StartVisitToLocation(loc, action, "")
}

// VisitStarted realizes the visit: cache the outgoing page, fetch or
// restore out of band, change history, splice into the live document.
func (d *Driver) VisitStarted(v *session.Visit) {
	d.realize(v)
}

// RawNavigate performs a full browser navigation. The observer script is
// gone after the load and is re-injected; the binding itself survives
// navigation.
func (d *Driver) RawNavigate(loc location.Location) {
	d.logger.Info("domdrive: raw navigation", "url", loc.String())

	navCtx, cancel := context.WithTimeout(d.ctx, d.navTO)
	defer cancel()
	if err := d.page.Context(navCtx).Navigate(loc.String()); err != nil {
		d.logger.Error("domdrive: raw navigation failed", "url", loc.String(), "error", err)
		return
	}
	if err := d.page.Context(navCtx).WaitLoad(); err != nil {
		d.logger.Warn("domdrive: wait load timeout", "url", loc.String(), "error", err)
	}
	if err := d.injectObserver(); err != nil {
		d.logger.Error("domdrive: observer re-injection failed", "error", err)
	}
}

// PageInvalidated hard-reloads the page; the in-memory view can no longer
// be trusted.
func (d *Driver) PageInvalidated() {
	d.mu.Lock()
	d.invalidated = true
	d.mu.Unlock()
	d.logger.Warn("domdrive: page invalidated, reloading")

	if err := d.page.Reload(); err != nil {
		d.logger.Error("domdrive: reload failed", "error", err)
	}
}

// ClearSnapshotCache implements session.SnapshotCacher.
func (d *Driver) ClearSnapshotCache() {
	d.cache.Clear()
}

// SubmitForm implements session.FormSubmitHandler by visiting the form's
// action as an advance.
func (d *Driver) SubmitForm(form session.Element, action location.Location) {
	d.session.VisitLocation(action, session.VisitOptions{Action: session.ActionAdvance})
}

func (d *Driver) realize(v *session.Visit) {
	d.mu.Lock()
	cur := d.current
	d.mu.Unlock()
	if cur != nil {
		d.session.NotifyBeforeCache()
		if snap, err := d.snapshotPage(cur.Location); err == nil {
			d.cache.Put(snap)
		} else {
			d.cache.Put(cur)
		}
	}

	var snap *render.Snapshot
	redirectedTo := location.Location{}

	if v.Action == session.ActionRestore {
		if cached, ok := d.cache.Get(v.Location); ok {
			snap = cached
			v.RecordMetric("cache", 0)
		}
	}

	if snap == nil {
		res, err := d.fetcher.Fetch(v.Context(), v.Location)
		if err != nil {
			if !v.Canceled() {
				d.logger.Error("domdrive: fetch failed", "url", v.Location.String(), "error", err)
				v.Cancel()
			}
			d.record(v)
			return
		}
		v.RecordMetric("fetch", res.Duration)

		if !res.IsHTML() {
			v.Cancel()
			d.RawNavigate(res.Location)
			d.record(v)
			return
		}
		if res.Redirected {
			redirectedTo = res.Location
		}

		renderStart := time.Now()
		snap, err = d.renderer.Snapshot(res.Location, res.Body)
		if err != nil {
			d.logger.Error("domdrive: render failed", "url", v.Location.String(), "error", err)
			v.Cancel()
			d.record(v)
			return
		}
		v.RecordMetric("render", time.Since(renderStart))
	}

	if v.Canceled() {
		d.record(v)
		return
	}

	v.ChangeHistory()
	if !redirectedTo.IsZero() {
		d.session.ReplaceHistory(redirectedTo, v.RestorationID)
	}

	d.session.NotifyBeforeRender(snap.BodyHTML)
	if err := d.splice(snap); err != nil {
		d.logger.Error("domdrive: splice failed", "url", v.Location.String(), "error", err)
		v.Cancel()
		d.record(v)
		return
	}
	d.mu.Lock()
	d.current = snap
	d.mu.Unlock()
	if v.RestorationData != nil && v.RestorationData.ScrollPosition != nil {
		d.scrollTo(*v.RestorationData.ScrollPosition)
	} else {
		d.scrollTo(session.Position{})
	}
	d.session.NotifyRender()

	v.Complete()
	d.session.PageBecameInteractive()
	d.record(v)
}

func (d *Driver) record(v *session.Visit) {
	if d.log == nil {
		return
	}
	d.log.RecordAsync(&visitlog.Entry{
		VisitID:       v.ID,
		URL:           v.Location.RequestURL(),
		Action:        string(v.Action),
		RestorationID: v.RestorationID,
		Referrer:      v.Referrer.RequestURL(),
		DurationUs:    v.Duration().Microseconds(),
		Canceled:      v.Canceled(),
		Timestamp:     time.Now().UnixMicro(),
	})
}
