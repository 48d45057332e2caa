// Package history provides the in-memory history stack used by softnav
// drivers and tests. It implements the synchronizer contract the session
// consumes: push/replace of (location, restoration identifier) pairs, and
// pop notification when the user travels back or forward.
//
// Memory models a native history stack faithfully enough for headless use:
// pushing truncates any forward entries, replacing swaps the current entry,
// and travel moves the cursor and synthesizes a pop. Pops are only delivered
// while the stack is started, mirroring an unregistered popstate listener.
package history

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/hazyhaar/softnav/location"
)

// Entry is one history entry: a location and the opaque identifier
// correlating it with saved UI state.
type Entry struct {
	Location      location.Location
	RestorationID string
}

// PopHandler receives back/forward navigations.
type PopHandler = func(loc location.Location, restorationID string)

// Memory is an in-memory history stack. Safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
	index   int // cursor into entries; -1 when empty
	started bool
	onPop   PopHandler
	logger  *slog.Logger
}

// NewMemory creates an empty history stack.
func NewMemory(logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{index: -1, logger: logger}
}

// SetPopHandler registers the handler invoked on back/forward travel.
func (m *Memory) SetPopHandler(fn PopHandler) {
	m.mu.Lock()
	m.onPop = fn
	m.mu.Unlock()
}

// Start enables pop delivery.
func (m *Memory) Start() {
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
}

// Stop disables pop delivery. Entries and cursor are retained.
func (m *Memory) Stop() {
	m.mu.Lock()
	m.started = false
	m.mu.Unlock()
}

// Push appends a new entry after the cursor, discarding any forward
// entries, and moves the cursor to it.
func (m *Memory) Push(loc location.Location, restorationID string) {
	m.mu.Lock()
	m.entries = append(m.entries[:m.index+1], Entry{Location: loc, RestorationID: restorationID})
	m.index = len(m.entries) - 1
	m.mu.Unlock()
}

// Replace swaps the entry at the cursor. On an empty stack it behaves
// like Push, which matches replaceState on a fresh document.
func (m *Memory) Replace(loc location.Location, restorationID string) {
	m.mu.Lock()
	if m.index < 0 {
		m.entries = append(m.entries, Entry{Location: loc, RestorationID: restorationID})
		m.index = 0
	} else {
		m.entries[m.index] = Entry{Location: loc, RestorationID: restorationID}
	}
	m.mu.Unlock()
}

// Top returns the entry at the cursor.
func (m *Memory) Top() (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index < 0 {
		return Entry{}, false
	}
	return m.entries[m.index], true
}

// Len returns the number of entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Entries returns a copy of the stack, oldest first.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// TravelBack moves the cursor one entry back and delivers a pop.
func (m *Memory) TravelBack() error {
	return m.travel(-1)
}

// TravelForward moves the cursor one entry forward and delivers a pop.
func (m *Memory) TravelForward() error {
	return m.travel(+1)
}

func (m *Memory) travel(delta int) error {
	m.mu.Lock()
	next := m.index + delta
	if next < 0 || next >= len(m.entries) {
		m.mu.Unlock()
		return fmt.Errorf("history: no entry at offset %+d", delta)
	}
	m.index = next
	entry := m.entries[next]
	notify := m.started
	onPop := m.onPop
	m.mu.Unlock()

	if notify && onPop != nil {
		onPop(entry.Location, entry.RestorationID)
	} else {
		m.logger.Debug("history: travel without pop delivery",
			"url", entry.Location.String(), "started", notify)
	}
	return nil
}
