// Package visitlog persists completed (and superseded) visits to SQLite
// asynchronously, so drivers can record every navigation without adding
// latency to the visit path.
package visitlog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Schema for the visits table. Call Store.Init() or apply manually.
const Schema = `
CREATE TABLE IF NOT EXISTS visits (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	visit_id TEXT NOT NULL,
	url TEXT NOT NULL,
	action TEXT NOT NULL,
	restoration_id TEXT,
	referrer TEXT,
	duration_us INTEGER NOT NULL,
	canceled INTEGER NOT NULL DEFAULT 0,
	timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_visits_ts ON visits(timestamp);
CREATE INDEX IF NOT EXISTS idx_visits_url ON visits(url);
`

// Entry is one recorded visit.
type Entry struct {
	VisitID       string
	URL           string
	Action        string
	RestorationID string
	Referrer      string
	DurationUs    int64
	Canceled      bool
	Timestamp     int64
}

// Store persists visit entries asynchronously in batches.
type Store struct {
	db     *sql.DB
	ch     chan *Entry
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewStore creates a visit log backed by the given database connection.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		db:     db,
		ch:     make(chan *Entry, 1024),
		done:   make(chan struct{}),
		logger: logger,
	}
	go s.flushLoop()
	return s
}

// Init creates the visits table if it doesn't exist.
func (s *Store) Init() error {
	_, err := s.db.Exec(Schema)
	return err
}

// RecordAsync queues an entry for persistence. Non-blocking; drops if the
// buffer is full or the store is closed, so the visit path never backs up
// on the log.
func (s *Store) RecordAsync(e *Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.logger.Warn("visitlog: store closed, dropping entry", "url", e.URL)
		return
	}
	select {
	case s.ch <- e:
	default:
		s.logger.Warn("visitlog: buffer full, dropping entry", "url", e.URL)
	}
}

// Close drains the buffer and stops the flush goroutine.
func (s *Store) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.ch)
		<-s.done
	})
	return nil
}

func (s *Store) flushLoop() {
	defer close(s.done)

	batch := make([]*Entry, 0, 64)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-s.ch:
			if !ok {
				s.flushBatch(batch)
				return
			}
			batch = append(batch, e)
			if len(batch) >= 64 {
				s.flushBatch(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.flushBatch(batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *Store) flushBatch(batch []*Entry) {
	if len(batch) == 0 {
		return
	}
	tx, err := s.db.Begin()
	if err != nil {
		s.logger.Error("visitlog: begin flush", "error", err)
		return
	}
	stmt, err := tx.Prepare(`
		INSERT INTO visits (visit_id, url, action, restoration_id, referrer, duration_us, canceled, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		s.logger.Error("visitlog: prepare flush", "error", err)
		return
	}
	for _, e := range batch {
		canceled := 0
		if e.Canceled {
			canceled = 1
		}
		if _, err := stmt.Exec(e.VisitID, e.URL, e.Action, e.RestorationID,
			e.Referrer, e.DurationUs, canceled, e.Timestamp); err != nil {
			s.logger.Error("visitlog: insert", "error", err)
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		s.logger.Error("visitlog: commit flush", "error", err)
	}
}

// Recent returns the n most recent entries, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT visit_id, url, action, restoration_id, referrer, duration_us, canceled, timestamp
		FROM visits ORDER BY timestamp DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("visitlog: recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var canceled int
		if err := rows.Scan(&e.VisitID, &e.URL, &e.Action, &e.RestorationID,
			&e.Referrer, &e.DurationUs, &canceled, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("visitlog: scan: %w", err)
		}
		e.Canceled = canceled != 0
		out = append(out, e)
	}
	return out, rows.Err()
}
