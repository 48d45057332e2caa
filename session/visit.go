package session

import (
	"context"
	"time"

	"github.com/hazyhaar/softnav/idgen"
	"github.com/hazyhaar/softnav/location"
)

// Action is how a visit is reflected in history.
type Action string

const (
	// ActionAdvance pushes a new history entry.
	ActionAdvance Action = "advance"
	// ActionReplace replaces the current history entry.
	ActionReplace Action = "replace"
	// ActionRestore reflects an already-occurred history pop.
	ActionRestore Action = "restore"
)

// ParseAction maps a string to a recognized Action. Anything outside the
// recognized vocabulary is rejected.
func ParseAction(s string) (Action, bool) {
	switch Action(s) {
	case ActionAdvance, ActionReplace, ActionRestore:
		return Action(s), true
	}
	return "", false
}

func (a Action) orDefault() Action {
	if a == "" {
		return ActionAdvance
	}
	return a
}

type visitState int

const (
	visitCreated visitState = iota
	visitStarted
	visitCanceled
	visitCompleted
)

// Visit is one navigation attempt. The session creates, starts, and (on
// supersession) cancels it; the adapter realizes it and reports back.
// At most one Visit is current at any time.
type Visit struct {
	ID             string
	Location       location.Location
	Action         Action
	RestorationID  string
	HistoryChanged bool
	Referrer       location.Location

	// RestorationData is the visit's own copy, captured at creation.
	// Later mutation of the live store record does not affect it.
	RestorationData *RestorationData

	session *Session
	ctx     context.Context
	cancel  context.CancelFunc

	state       visitState
	startedAt   time.Time
	completedAt time.Time
	metrics     map[string]time.Duration
}

var visitIDs = idgen.Prefixed("vis_", idgen.UUIDv7())

func newVisit(s *Session, loc location.Location, action Action, seed visitSeed, referrer location.Location) *Visit {
	ctx, cancel := context.WithCancel(context.Background())
	return &Visit{
		ID:              visitIDs(),
		Location:        loc,
		Action:          action.orDefault(),
		RestorationID:   seed.restorationID,
		RestorationData: seed.restorationData,
		HistoryChanged:  seed.historyChanged,
		Referrer:        referrer,
		session:         s,
		ctx:             ctx,
		cancel:          cancel,
		metrics:         make(map[string]time.Duration),
	}
}

// Context is canceled when the visit is superseded. Adapters thread it
// through their fetch so abandoned work unwinds promptly.
func (v *Visit) Context() context.Context { return v.ctx }

// start marks the visit as running. Session-internal; the session fires
// the visit hook and hands the visit to the adapter right after.
func (v *Visit) start() {
	v.session.mu.Lock()
	if v.state == visitCreated {
		v.state = visitStarted
		v.startedAt = time.Now()
	}
	v.session.mu.Unlock()
}

// Cancel is the advisory supersession signal: best-effort, idempotent, and
// without effect on an already-completed visit. The session does not wait
// for the adapter's abandoned work to unwind.
func (v *Visit) Cancel() {
	v.session.mu.Lock()
	if v.state == visitCompleted {
		v.session.mu.Unlock()
		return
	}
	already := v.state == visitCanceled
	v.state = visitCanceled
	v.session.mu.Unlock()

	v.cancel()
	if !already {
		v.session.logger.Debug("visit: canceled", "id", v.ID, "url", v.Location.String())
	}
}

// Canceled reports whether the visit was superseded.
func (v *Visit) Canceled() bool {
	v.session.mu.Lock()
	defer v.session.mu.Unlock()
	return v.state == visitCanceled
}

// Completed reports whether the visit finished and reported back.
func (v *Visit) Completed() bool {
	v.session.mu.Lock()
	defer v.session.mu.Unlock()
	return v.state == visitCompleted
}

// ChangeHistory reflects the visit in history per its action: advance
// pushes, replace replaces, restore does nothing (the native entry already
// exists). Idempotent; the adapter calls it once it commits to rendering.
func (v *Visit) ChangeHistory() {
	v.session.mu.Lock()
	if v.HistoryChanged {
		v.session.mu.Unlock()
		return
	}
	v.HistoryChanged = true
	v.session.mu.Unlock()

	switch v.Action {
	case ActionAdvance:
		v.session.PushHistory(v.Location, v.RestorationID)
	case ActionReplace:
		v.session.ReplaceHistory(v.Location, v.RestorationID)
	case ActionRestore:
		// The pop already moved history; only the mirror was updated.
	}
}

// RecordMetric stores a named duration (e.g. "fetch", "render").
func (v *Visit) RecordMetric(name string, d time.Duration) {
	v.session.mu.Lock()
	v.metrics[name] = d
	v.session.mu.Unlock()
}

// Complete finalizes the visit. A canceled visit's late completion is a
// no-op: its report must not be processed as if it were still current.
func (v *Visit) Complete() {
	v.session.mu.Lock()
	if v.state != visitStarted {
		v.session.mu.Unlock()
		return
	}
	v.state = visitCompleted
	v.completedAt = time.Now()
	v.metrics["visit"] = v.completedAt.Sub(v.startedAt)
	v.session.mu.Unlock()

	v.session.logger.Debug("visit: completed",
		"id", v.ID, "url", v.Location.String(), "action", string(v.Action),
		"duration", v.metrics["visit"])
}

// TimingMetrics returns a copy of the recorded metrics.
func (v *Visit) TimingMetrics() map[string]time.Duration {
	v.session.mu.Lock()
	defer v.session.mu.Unlock()
	out := make(map[string]time.Duration, len(v.metrics))
	for k, d := range v.metrics {
		out[k] = d
	}
	return out
}

// Duration returns wall time from start to completion, or zero while
// in flight.
func (v *Visit) Duration() time.Duration {
	v.session.mu.Lock()
	defer v.session.mu.Unlock()
	if v.completedAt.IsZero() {
		return 0
	}
	return v.completedAt.Sub(v.startedAt)
}
