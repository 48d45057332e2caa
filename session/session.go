// Package session implements the softnav orchestration core: it decides
// whether a candidate navigation is intercepted, serializes concurrent
// navigation attempts into a single active Visit, keeps the mirrored
// location and restoration identifier in lock-step with the history stack,
// owns the per-entry restoration data, and fires the application hook
// protocol at every phase boundary.
//
// The session keeps three sources of truth coherent: its own mirrored
// current location, the history synchronizer's stack, and the restoration
// data map keyed by opaque identifiers. Every mutation of one goes through
// the session so the three never diverge.
//
// A Session is driven from a single event loop (an adapter's callback
// goroutine); its internal locking protects the mirrors, not reentrancy.
// Collaborator callbacks (adapter, hooks) are always invoked with no locks
// held.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/softnav/idgen"
	"github.com/hazyhaar/softnav/location"
)

// Adapter realizes proposed visits. The session decides whether and what to
// visit; the adapter decides how: fetch, render, splice. It is also the
// escape hatch for navigations the session refuses to intercept.
type Adapter interface {
	// VisitProposed delegates the decision of how to realize an
	// intercepted visit. The usual implementation calls back into
	// Session.StartVisitToLocation.
	VisitProposed(loc location.Location, action Action)

	// VisitStarted hands the adapter a freshly started Visit to realize.
	// The adapter drives fetch/render and reports back on the Visit.
	VisitStarted(v *Visit)

	// RawNavigate performs a full, non-intercepted navigation. Called for
	// non-visitable locations and when the session is unsupported.
	RawNavigate(loc location.Location)

	// PageInvalidated signals that the in-memory view no longer matches
	// the document and must be hard-reloaded.
	PageInvalidated()
}

// HistorySynchronizer is the contract the session consumes to keep the
// native history stack in step with its own location mirror.
type HistorySynchronizer interface {
	SetPopHandler(fn func(loc location.Location, restorationID string))
	Start()
	Stop()
	Push(loc location.Location, restorationID string)
	Replace(loc location.Location, restorationID string)
}

// SnapshotCacher is optionally implemented by adapters that cache rendered
// snapshots. ClearCache forwards to it.
type SnapshotCacher interface {
	ClearSnapshotCache()
}

// ProgressReporter is optionally implemented by adapters that display a
// progress indicator during slow visits.
type ProgressReporter interface {
	SetProgressBarDelay(d time.Duration)
}

// Config seeds a Session.
type Config struct {
	// StartLocation is the location of the currently rendered page.
	StartLocation location.Location

	// Root bounds visitability: only HTML locations under Root are
	// intercepted. Defaults to the origin root of StartLocation.
	Root location.Location

	// History is the synchronizer wrapping the native history stack.
	History HistorySynchronizer

	// Adapter realizes visits. A session without both History and
	// Adapter is unsupported and degrades to raw navigation.
	Adapter Adapter

	// IDs generates restoration identifiers. Default: idgen.Restoration.
	IDs idgen.Generator

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.IDs == nil {
		c.IDs = idgen.Restoration
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Root.IsZero() && !c.StartLocation.IsZero() {
		if root, err := location.Resolve(c.StartLocation, "/"); err == nil {
			c.Root = root
		}
	}
}

// Session is the navigation orchestrator. Create one per document session
// with New, then Start it.
type Session struct {
	adapter Adapter
	history HistorySynchronizer
	hooks   *Hooks
	ids     idgen.Generator
	logger  *slog.Logger
	root    location.Location

	mu               sync.Mutex
	location         location.Location
	restorationID    string
	restorations     restorationMap
	currentVisit     *Visit
	lastRendered     location.Location
	started          bool
	enabled          bool
	progressBarDelay time.Duration
}

// New creates a Session. Call Start to begin intercepting navigation.
func New(cfg Config) *Session {
	cfg.defaults()
	s := &Session{
		adapter:      cfg.Adapter,
		history:      cfg.History,
		hooks:        newHooks(),
		ids:          cfg.IDs,
		logger:       cfg.Logger,
		root:         cfg.Root,
		location:     cfg.StartLocation,
		lastRendered: cfg.StartLocation,
		restorations: make(restorationMap),
	}
	if s.history != nil {
		s.history.SetPopHandler(s.historyPopped)
	}
	return s
}

// Supported reports whether the session can intercept navigation at all.
// An unsupported session degrades every attempt to a raw full navigation.
func (s *Session) Supported() bool {
	return s.history != nil && s.adapter != nil
}

// Hooks returns the application hook registry.
func (s *Session) Hooks() *Hooks { return s.hooks }

// Location returns the mirrored current location.
func (s *Session) Location() location.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.location
}

// RestorationID returns the identifier of the current history entry.
func (s *Session) RestorationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restorationID
}

// CurrentVisit returns the active visit, or nil.
func (s *Session) CurrentVisit() *Visit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentVisit
}

// Start wires history tracking and captures the current location as a
// fresh history entry with a new restoration identifier. Idempotent
// while started; re-enabling a disabled session takes Stop then Start.
func (s *Session) Start() {
	if !s.Supported() {
		s.logger.Warn("session: unsupported, navigation will not be intercepted")
		return
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.enabled = true
	start := s.location
	s.mu.Unlock()

	s.history.Start()
	id := s.ids()
	s.ReplaceHistory(start, id)
	s.logger.Info("session: started", "url", start.String(), "restoration_id", id)
}

// Stop unwires history tracking. It does not cancel an in-flight visit;
// visits are only canceled by supersession.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	s.history.Stop()
	s.logger.Info("session: stopped")
}

// Disable stops honoring popped-history navigation. While disabled, a
// back/forward navigation is surfaced as PageInvalidated instead of a
// restore visit.
func (s *Session) Disable() {
	s.mu.Lock()
	s.enabled = false
	s.mu.Unlock()
}

// Started reports whether the session is intercepting navigation.
func (s *Session) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Enabled reports whether popped-history navigation is honored.
func (s *Session) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// SetProgressBarDelay configures how long a visit may run before a
// progress indicator appears, for adapters that show one.
func (s *Session) SetProgressBarDelay(d time.Duration) {
	s.mu.Lock()
	s.progressBarDelay = d
	s.mu.Unlock()
	if pr, ok := s.adapter.(ProgressReporter); ok {
		pr.SetProgressBarDelay(d)
	}
}

// ProgressBarDelay returns the configured delay.
func (s *Session) ProgressBarDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressBarDelay
}

// ClearCache forwards to the adapter's snapshot cache, if it keeps one.
func (s *Session) ClearCache() {
	if sc, ok := s.adapter.(SnapshotCacher); ok {
		sc.ClearSnapshotCache()
	}
}

// VisitOptions tunes a Visit call.
type VisitOptions struct {
	// Action defaults to ActionAdvance.
	Action Action
}

// Visit requests navigation to a candidate location. Relative candidates
// resolve against the current location. Non-visitable locations (outside
// the root, or not HTML) bypass interception entirely via RawNavigate.
// A vetoed before-visit hook aborts with no further effect.
func (s *Session) Visit(raw string, opts VisitOptions) error {
	candidate, err := location.Resolve(s.Location(), raw)
	if err != nil {
		return err
	}
	s.VisitLocation(candidate, opts)
	return nil
}

// VisitLocation is Visit for an already-resolved Location.
func (s *Session) VisitLocation(loc location.Location, opts VisitOptions) {
	if !s.Supported() {
		if s.adapter != nil {
			s.adapter.RawNavigate(loc)
		}
		return
	}
	if !s.locationVisitable(loc) {
		s.logger.Debug("session: location not visitable, raw navigation", "url", loc.String())
		s.adapter.RawNavigate(loc)
		return
	}
	if !s.hooks.fireBeforeVisit(VisitEvent{Location: loc, Action: opts.Action.orDefault()}) {
		s.logger.Debug("session: visit vetoed", "url", loc.String())
		return
	}
	s.adapter.VisitProposed(loc, opts.Action.orDefault())
}

// StartVisitToLocation is the entry point for adapter-proposed visits and
// history-driven restores. An empty restorationID means the visit gets a
// fresh identifier (advance/replace); restores pass the historical one.
func (s *Session) StartVisitToLocation(loc location.Location, action Action, restorationID string) {
	if !s.Supported() {
		if s.adapter != nil {
			s.adapter.RawNavigate(loc)
		}
		return
	}
	if restorationID == "" {
		restorationID = s.ids()
	}
	data := s.RestorationData(restorationID)
	s.startVisit(loc, action, visitSeed{
		restorationID:   restorationID,
		restorationData: data.clone(),
	})
}

// visitSeed carries the construction inputs for a Visit.
type visitSeed struct {
	restorationID   string
	restorationData *RestorationData
	historyChanged  bool
}

// startVisit enforces the single-flight invariant: cancel the current
// visit, construct the replacement, start it, then fire the visit hook.
func (s *Session) startVisit(loc location.Location, action Action, seed visitSeed) {
	s.mu.Lock()
	prev := s.currentVisit
	referrer := s.location
	s.mu.Unlock()

	if prev != nil {
		prev.Cancel()
	}

	v := newVisit(s, loc, action, seed, referrer)

	s.mu.Lock()
	s.currentVisit = v
	s.mu.Unlock()

	v.start()
	s.hooks.fireVisit(VisitEvent{Location: loc, Action: action})

	// A visit hook may itself navigate; if this visit was already
	// superseded the adapter never sees it.
	if v.Canceled() {
		return
	}
	s.adapter.VisitStarted(v)
}

// PushHistory records a new history entry and moves the session's
// location/restoration mirror with it. Called by the Visit once it has
// decided how the navigation is reflected in history.
func (s *Session) PushHistory(loc location.Location, restorationID string) {
	s.mu.Lock()
	s.location = loc
	s.restorationID = restorationID
	s.mu.Unlock()
	s.history.Push(loc, restorationID)
}

// ReplaceHistory is PushHistory for the current entry.
func (s *Session) ReplaceHistory(loc location.Location, restorationID string) {
	s.mu.Lock()
	s.location = loc
	s.restorationID = restorationID
	s.mu.Unlock()
	s.history.Replace(loc, restorationID)
}

// historyPopped handles a native back/forward navigation detected by the
// synchronizer. Enabled: mirror the popped entry and start a restore visit
// whose history entry already exists. Disabled: the in-memory view can no
// longer be trusted, report PageInvalidated.
func (s *Session) historyPopped(loc location.Location, restorationID string) {
	s.mu.Lock()
	if !s.enabled {
		s.mu.Unlock()
		s.logger.Warn("session: history popped while disabled", "url", loc.String())
		s.adapter.PageInvalidated()
		return
	}
	s.location = loc
	s.restorationID = restorationID
	s.mu.Unlock()

	data := s.RestorationData(restorationID)
	s.startVisit(loc, ActionRestore, visitSeed{
		restorationID:   restorationID,
		restorationData: data.clone(),
		historyChanged:  true,
	})
}

// locationVisitable is the interception policy: under the root and an
// HTML resource.
func (s *Session) locationVisitable(loc location.Location) bool {
	return loc.IsPrefixedBy(s.root) && loc.IsHTML()
}

// --- observer-facing delegate methods ---

// ScrollPositionChanged overwrites the scroll position of the current
// restoration record. It never creates records for other identifiers.
func (s *Session) ScrollPositionChanged(pos Position) {
	d := s.CurrentRestorationData()
	d.ScrollPosition = &pos
}

// PageBecameInteractive marks the rendered location and fires the load
// hook with the current visit's timing. Interactive, not full load, is the
// authoritative readiness signal.
func (s *Session) PageBecameInteractive() {
	s.mu.Lock()
	s.lastRendered = s.location
	v := s.currentVisit
	s.mu.Unlock()

	var timing map[string]time.Duration
	if v != nil {
		timing = v.TimingMetrics()
	}
	s.hooks.fireLoad(LoadEvent{Timing: timing})
}

// PageLoaded is intentionally a no-op: readiness is driven by
// PageBecameInteractive.
func (s *Session) PageLoaded() {}

// PageInvalidated forwards an externally detected invalidation.
func (s *Session) PageInvalidated() {
	if s.adapter != nil {
		s.adapter.PageInvalidated()
	}
}

// NotifyBeforeCache fires the before-cache hook. Called by the adapter
// immediately before it snapshots the outgoing page.
func (s *Session) NotifyBeforeCache() {
	s.hooks.fireBeforeCache()
}

// NotifyBeforeRender fires the before-render hook with the incoming body.
func (s *Session) NotifyBeforeRender(newBody []byte) {
	s.hooks.fireBeforeRender(RenderEvent{NewBody: newBody})
}

// NotifyRender fires the render hook. Called after the body is spliced.
func (s *Session) NotifyRender() {
	s.hooks.fireRender()
}
