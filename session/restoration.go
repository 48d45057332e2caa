package session

// Position is a scroll offset in CSS pixels.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// RestorationData is the per-history-entry UI state restored on a
// back/forward visit. Extensible; scroll position is the only field the
// core maintains itself.
type RestorationData struct {
	ScrollPosition *Position `json:"scroll_position,omitempty"`
}

// clone returns an independent copy so a Visit keeps the data it captured
// at creation even if the live record mutates afterwards.
func (d *RestorationData) clone() *RestorationData {
	if d == nil {
		return &RestorationData{}
	}
	out := &RestorationData{}
	if d.ScrollPosition != nil {
		pos := *d.ScrollPosition
		out.ScrollPosition = &pos
	}
	return out
}

// restorationMap holds one record per restoration identifier. Entries are
// created lazily on first access and never deleted during the session
// lifetime.
type restorationMap map[string]*RestorationData

// getOrCreate returns the record for id, creating an empty one on first
// reference. Note that this mutates the map: identifiers are generated
// before any restorable state exists, so the first read is the insert.
func (m restorationMap) getOrCreate(id string) *RestorationData {
	if d, ok := m[id]; ok {
		return d
	}
	d := &RestorationData{}
	m[id] = d
	return d
}

// RestorationData returns the live record for id, creating it on first
// reference. Callers share the returned pointer; mutate it in place.
func (s *Session) RestorationData(id string) *RestorationData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restorations.getOrCreate(id)
}

// CurrentRestorationData returns the record keyed by the session's own
// current restoration identifier.
func (s *Session) CurrentRestorationData() *RestorationData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restorations.getOrCreate(s.restorationID)
}
