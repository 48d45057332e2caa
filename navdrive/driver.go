// Package navdrive realizes soft visits over plain HTTP, with no browser:
// it fetches pages, renders them into snapshots, keeps the in-memory
// history stack, and simulates the viewport state (scroll position) that
// restoration data preserves. It is the adapter used by tests, the CLI,
// and embedders that drive navigation headlessly.
package navdrive

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/softnav/fetch"
	"github.com/hazyhaar/softnav/history"
	"github.com/hazyhaar/softnav/location"
	"github.com/hazyhaar/softnav/render"
	"github.com/hazyhaar/softnav/session"
	"github.com/hazyhaar/softnav/visitlog"
)

// Config configures a Driver.
type Config struct {
	// Root bounds visitability. Defaults to the origin root of the
	// start location.
	Root location.Location

	// Fetcher acquires pages. Default: fetch.New().
	Fetcher *fetch.Fetcher

	// Renderer parses them. Default: render.New().
	Renderer *render.Renderer

	// CacheSize bounds the snapshot cache. Default: 10.
	CacheSize int

	// Log, when set, records every realized visit.
	Log *visitlog.Store

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Fetcher == nil {
		c.Fetcher = fetch.New()
	}
	if c.Renderer == nil {
		c.Renderer = render.New()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Driver is the HTTP adapter. Create one with Open.
type Driver struct {
	session  *session.Session
	history  *history.Memory
	fetcher  *fetch.Fetcher
	renderer *render.Renderer
	cache    *render.Cache
	log      *visitlog.Store
	logger   *slog.Logger

	mu            sync.Mutex
	current       *render.Snapshot
	scroll        session.Position
	invalidated   bool
	lastRaw       location.Location
	progressDelay time.Duration
}

// Open fetches the start page and begins a soft navigation session on it.
func Open(ctx context.Context, startURL string, cfg Config) (*Driver, error) {
	cfg.defaults()

	start, err := location.Parse(startURL)
	if err != nil {
		return nil, err
	}
	res, err := cfg.Fetcher.Fetch(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("navdrive: open %s: %w", startURL, err)
	}
	if !res.IsHTML() {
		return nil, fmt.Errorf("navdrive: %s is not an HTML document (%s)", startURL, res.ContentType)
	}
	snap, err := cfg.Renderer.Snapshot(res.Location, res.Body)
	if err != nil {
		return nil, fmt.Errorf("navdrive: open %s: %w", startURL, err)
	}

	d := &Driver{
		history:  history.NewMemory(cfg.Logger),
		fetcher:  cfg.Fetcher,
		renderer: cfg.Renderer,
		cache:    render.NewCache(cfg.CacheSize),
		log:      cfg.Log,
		logger:   cfg.Logger,
		current:  snap,
	}
	d.session = session.New(session.Config{
		StartLocation: res.Location,
		Root:          cfg.Root,
		History:       d.history,
		Adapter:       d,
		Logger:        cfg.Logger,
	})
	d.session.Start()
	return d, nil
}

// Session returns the orchestrating session, e.g. to register hooks.
func (d *Driver) Session() *session.Session { return d.session }

// History returns the in-memory history stack.
func (d *Driver) History() *history.Memory { return d.history }

// Current returns the currently rendered snapshot.
func (d *Driver) Current() *render.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// Scroll returns the simulated viewport scroll position.
func (d *Driver) Scroll() session.Position {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scroll
}

// ScrollTo moves the simulated viewport and reports it to the session,
// which saves it on the current restoration record.
func (d *Driver) ScrollTo(pos session.Position) {
	d.mu.Lock()
	d.scroll = pos
	d.mu.Unlock()
	d.session.ScrollPositionChanged(pos)
}

// Invalidated reports whether the page was invalidated; the embedder
// should tear the driver down and Open anew.
func (d *Driver) Invalidated() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.invalidated
}

// LastRawNavigation returns the most recent location that escaped soft
// navigation, if any.
func (d *Driver) LastRawNavigation() (location.Location, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastRaw, !d.lastRaw.IsZero()
}

// Visit requests a soft navigation, like typing a URL with interception.
func (d *Driver) Visit(raw string) error {
	return d.session.Visit(raw, session.VisitOptions{})
}

// ClickLink simulates clicking the link with the given href on the
// current page. It reports whether the click was intercepted as a soft
// visit; false for unknown hrefs, opted-out links, and non-visitable
// targets.
func (d *Driver) ClickLink(href string) bool {
	cur := d.Current()
	if cur == nil {
		return false
	}
	for _, l := range cur.Links {
		if l.Href == href {
			return d.session.HandleLinkClick(l.Chain, l.Href)
		}
	}
	d.logger.Debug("navdrive: no such link on page", "href", href)
	return false
}

// Back travels one history entry back, producing a restore visit.
func (d *Driver) Back() error { return d.history.TravelBack() }

// Forward travels one history entry forward, producing a restore visit.
func (d *Driver) Forward() error { return d.history.TravelForward() }

// --- session.Adapter ---

// VisitProposed routes an intercepted visit straight back into the
// session; this driver has no competing realization strategy.
func (d *Driver) VisitProposed(loc location.Location, action session.Action) {
	d.session.StartVisitToLocation(loc, action, "")
}

// VisitStarted realizes the visit synchronously: cache the outgoing page,
// fetch or restore, change history, splice, report timing.
func (d *Driver) VisitStarted(v *session.Visit) {
	d.realize(v)
}

// RawNavigate handles a location that escaped soft navigation. The
// document conceptually unloads; the driver records the escape and stops
// vouching for the session.
func (d *Driver) RawNavigate(loc location.Location) {
	d.mu.Lock()
	d.lastRaw = loc
	d.mu.Unlock()
	d.logger.Info("navdrive: raw navigation", "url", loc.String())
}

// PageInvalidated marks the driver stale.
func (d *Driver) PageInvalidated() {
	d.mu.Lock()
	d.invalidated = true
	d.mu.Unlock()
	d.logger.Warn("navdrive: page invalidated")
}

// ClearSnapshotCache implements session.SnapshotCacher.
func (d *Driver) ClearSnapshotCache() {
	d.cache.Clear()
}

// SetProgressBarDelay implements session.ProgressReporter.
func (d *Driver) SetProgressBarDelay(delay time.Duration) {
	d.mu.Lock()
	d.progressDelay = delay
	d.mu.Unlock()
}

// SubmitForm implements session.FormSubmitHandler by visiting the form's
// action as an advance. Method and payload handling stay with the server.
func (d *Driver) SubmitForm(form session.Element, action location.Location) {
	d.session.VisitLocation(action, session.VisitOptions{Action: session.ActionAdvance})
}

func (d *Driver) realize(v *session.Visit) {
	// Snapshot the outgoing page before anything replaces it.
	if cur := d.Current(); cur != nil {
		d.session.NotifyBeforeCache()
		d.cache.Put(cur)
	}

	var snap *render.Snapshot
	redirectedTo := location.Location{}

	// Restore visits prefer the cached snapshot; a cache miss refetches.
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
				d.logger.Error("navdrive: fetch failed", "url", v.Location.String(), "error", err)
				v.Cancel()
			}
			d.record(v)
			return
		}
		v.RecordMetric("fetch", res.Duration)

		if !res.IsHTML() {
			// The URL looked like a document but the server disagreed.
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
			d.logger.Error("navdrive: render failed", "url", v.Location.String(), "error", err)
			v.Cancel()
			d.record(v)
			return
		}
		v.RecordMetric("render", time.Since(renderStart))
	}

	// A supersession during fetch/render abandons the splice.
	if v.Canceled() {
		d.record(v)
		return
	}

	v.ChangeHistory()
	if !redirectedTo.IsZero() {
		// History reflects where the server actually sent us.
		d.session.ReplaceHistory(redirectedTo, v.RestorationID)
	}

	d.session.NotifyBeforeRender(snap.BodyHTML)
	d.mu.Lock()
	d.current = snap
	if v.RestorationData != nil && v.RestorationData.ScrollPosition != nil {
		d.scroll = *v.RestorationData.ScrollPosition
	} else {
		d.scroll = session.Position{}
	}
	d.mu.Unlock()
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
