package domdrive

import (
	"log/slog"
	"sync"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/softnav/location"
)

// BrowserHistory mirrors session history into the page's native stack via
// pushState/replaceState. Popstate events travel the other way: the
// injected script reports them through the binding and the driver feeds
// them to handlePop.
type BrowserHistory struct {
	page   *rod.Page
	logger *slog.Logger

	mu      sync.Mutex
	onPop   func(loc location.Location, restorationID string)
	started bool
}

func newBrowserHistory(page *rod.Page, logger *slog.Logger) *BrowserHistory {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrowserHistory{page: page, logger: logger}
}

// SetPopHandler registers the pop callback. Must be set before Start.
func (h *BrowserHistory) SetPopHandler(fn func(loc location.Location, restorationID string)) {
	h.mu.Lock()
	h.onPop = fn
	h.mu.Unlock()
}

// Start begins delivering popstate events to the handler.
func (h *BrowserHistory) Start() {
	h.mu.Lock()
	h.started = true
	h.mu.Unlock()
}

// Stop suspends pop delivery. The native stack keeps moving regardless.
func (h *BrowserHistory) Stop() {
	h.mu.Lock()
	h.started = false
	h.mu.Unlock()
}

// Push records a new native history entry tagged with the restoration
// identifier.
func (h *BrowserHistory) Push(loc location.Location, restorationID string) {
	_, err := h.page.Eval(`(url, id) => history.pushState({softnav: id}, "", url)`,
		loc.String(), restorationID)
	if err != nil {
		h.logger.Error("domdrive: pushState failed", "url", loc.String(), "error", err)
	}
}

// Replace rewrites the current native entry.
func (h *BrowserHistory) Replace(loc location.Location, restorationID string) {
	_, err := h.page.Eval(`(url, id) => history.replaceState({softnav: id}, "", url)`,
		loc.String(), restorationID)
	if err != nil {
		h.logger.Error("domdrive: replaceState failed", "url", loc.String(), "error", err)
	}
}

// handlePop forwards a reported popstate to the handler. Entries without a
// restoration identifier were not written by this session (e.g. fragment
// jumps) and are ignored.
func (h *BrowserHistory) handlePop(rawURL, restorationID string) {
	if restorationID == "" {
		h.logger.Debug("domdrive: pop without restoration state ignored", "url", rawURL)
		return
	}
	loc, err := location.Parse(rawURL)
	if err != nil {
		h.logger.Warn("domdrive: unparseable popped url", "url", rawURL, "error", err)
		return
	}

	h.mu.Lock()
	fn := h.onPop
	started := h.started
	h.mu.Unlock()

	if !started || fn == nil {
		return
	}
	fn(loc, restorationID)
}
