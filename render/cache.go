package render

import (
	"sync"
	"time"

	"github.com/hazyhaar/softnav/location"
)

// Snapshot is a cached rendered page, keyed by its request URL. Restore
// visits prefer a snapshot over refetching.
type Snapshot struct {
	Location location.Location
	Title    string
	BodyHTML []byte
	Links    []Link
	TakenAt  time.Time
}

// Snapshot builds a Snapshot from a raw document.
func (r *Renderer) Snapshot(loc location.Location, body []byte) (*Snapshot, error) {
	doc, err := r.Parse(body)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Location: loc,
		Title:    doc.Title,
		BodyHTML: doc.BodyHTML,
		Links:    doc.Links,
		TakenAt:  time.Now(),
	}, nil
}

// Cache holds the most recent snapshots, evicting the oldest beyond its
// capacity. Safe for concurrent use.
type Cache struct {
	mu    sync.Mutex
	max   int
	order []string
	snaps map[string]*Snapshot
}

// NewCache creates a snapshot cache. size <= 0 selects the default of 10.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = 10
	}
	return &Cache{max: size, snaps: make(map[string]*Snapshot)}
}

// Put stores a snapshot, replacing any existing one for the same URL and
// evicting the oldest entry when full.
func (c *Cache) Put(s *Snapshot) {
	key := s.Location.RequestURL()
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.snaps[key]; exists {
		c.snaps[key] = s
		c.touch(key)
		return
	}
	if len(c.order) >= c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.snaps, oldest)
	}
	c.order = append(c.order, key)
	c.snaps[key] = s
}

// Get returns the snapshot for a location, if cached.
func (c *Cache) Get(loc location.Location) (*Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.snaps[loc.RequestURL()]
	return s, ok
}

// Clear drops every snapshot.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.order = nil
	c.snaps = make(map[string]*Snapshot)
	c.mu.Unlock()
}

// Len returns the number of cached snapshots.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.snaps)
}

func (c *Cache) touch(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(append(c.order[:i:i], c.order[i+1:]...), key)
			return
		}
	}
}
