package session

import (
	"sync"
	"time"

	"github.com/hazyhaar/softnav/location"
)

// The hook registry is the sole extension mechanism for host application
// code. Hooks fire synchronously in a fixed order across a visit:
//
//	click → before-visit → visit → (fetch/render) →
//	before-cache → before-render → render → load
//
// Click and before-visit are cancelable: every registered hook runs, and
// the phase is vetoed if any of them returns false.

// ClickEvent accompanies an intercepted link click, before policy decides.
type ClickEvent struct {
	Target   Element
	Location location.Location
}

// VisitEvent accompanies before-visit and visit.
type VisitEvent struct {
	Location location.Location
	Action   Action
}

// RenderEvent accompanies before-render with the incoming body.
type RenderEvent struct {
	NewBody []byte
}

// LoadEvent accompanies load with the visit's timing metrics.
type LoadEvent struct {
	Timing map[string]time.Duration
}

// Hooks is the typed hook registry. Registration is safe for concurrent
// use; firing happens on the session's event loop.
type Hooks struct {
	mu           sync.Mutex
	click        []func(ClickEvent) bool
	beforeVisit  []func(VisitEvent) bool
	visit        []func(VisitEvent)
	beforeCache  []func()
	beforeRender []func(RenderEvent)
	render       []func()
	load         []func(LoadEvent)
}

func newHooks() *Hooks { return &Hooks{} }

// OnClick registers a cancelable hook fired when a link is clicked,
// before policy decides. Returning false suppresses interception of that
// click; the browser's default handling still applies.
func (h *Hooks) OnClick(fn func(ClickEvent) bool) {
	h.mu.Lock()
	h.click = append(h.click, fn)
	h.mu.Unlock()
}

// OnBeforeVisit registers a cancelable hook fired before a visit
// proceeds. Returning false aborts the visit entirely: no history change,
// no Visit created.
func (h *Hooks) OnBeforeVisit(fn func(VisitEvent) bool) {
	h.mu.Lock()
	h.beforeVisit = append(h.beforeVisit, fn)
	h.mu.Unlock()
}

// OnVisit registers a hook fired immediately after a visit starts.
func (h *Hooks) OnVisit(fn func(VisitEvent)) {
	h.mu.Lock()
	h.visit = append(h.visit, fn)
	h.mu.Unlock()
}

// OnBeforeCache registers a hook fired immediately before the outgoing
// page is snapshotted.
func (h *Hooks) OnBeforeCache(fn func()) {
	h.mu.Lock()
	h.beforeCache = append(h.beforeCache, fn)
	h.mu.Unlock()
}

// OnBeforeRender registers a hook fired immediately before new content
// replaces the document body.
func (h *Hooks) OnBeforeRender(fn func(RenderEvent)) {
	h.mu.Lock()
	h.beforeRender = append(h.beforeRender, fn)
	h.mu.Unlock()
}

// OnRender registers a hook fired immediately after replacement.
func (h *Hooks) OnRender(fn func()) {
	h.mu.Lock()
	h.render = append(h.render, fn)
	h.mu.Unlock()
}

// OnLoad registers a hook fired once the new page becomes interactive.
func (h *Hooks) OnLoad(fn func(LoadEvent)) {
	h.mu.Lock()
	h.load = append(h.load, fn)
	h.mu.Unlock()
}

func (h *Hooks) fireClick(ev ClickEvent) bool {
	h.mu.Lock()
	fns := append([]func(ClickEvent) bool(nil), h.click...)
	h.mu.Unlock()
	ok := true
	for _, fn := range fns {
		if !fn(ev) {
			ok = false
		}
	}
	return ok
}

func (h *Hooks) fireBeforeVisit(ev VisitEvent) bool {
	h.mu.Lock()
	fns := append([]func(VisitEvent) bool(nil), h.beforeVisit...)
	h.mu.Unlock()
	ok := true
	for _, fn := range fns {
		if !fn(ev) {
			ok = false
		}
	}
	return ok
}

func (h *Hooks) fireVisit(ev VisitEvent) {
	h.mu.Lock()
	fns := append([]func(VisitEvent){}, h.visit...)
	h.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (h *Hooks) fireBeforeCache() {
	h.mu.Lock()
	fns := append([]func(){}, h.beforeCache...)
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (h *Hooks) fireBeforeRender(ev RenderEvent) {
	h.mu.Lock()
	fns := append([]func(RenderEvent){}, h.beforeRender...)
	h.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (h *Hooks) fireRender() {
	h.mu.Lock()
	fns := append([]func(){}, h.render...)
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (h *Hooks) fireLoad(ev LoadEvent) {
	h.mu.Lock()
	fns := append([]func(LoadEvent){}, h.load...)
	h.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}
