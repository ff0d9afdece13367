// Package store persists hazard events and VTEC records as single JSON
// objects on disk, one file per logical store, each guarded by an adjacent
// advisory lock file. Writes go through temp-file+rename under the lock; a
// revision counter in the file detects writers that bypassed it.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/hazard-services/internal/domain"
	"github.com/couchcryptid/hazard-services/internal/observability"
)

// Filter is an AND of set-membership predicates over a fixed key set. A nil
// slice matches everything for that key.
type Filter struct {
	PhenSigs []string
	SiteIDs  []string
	Statuses []domain.Status
}

func (f Filter) matches(e *domain.Event) bool {
	if f.PhenSigs != nil && !containsString(f.PhenSigs, e.PhenSig()) {
		return false
	}
	if f.SiteIDs != nil && !containsString(f.SiteIDs, e.SiteID) {
		return false
	}
	if f.Statuses != nil {
		found := false
		for _, s := range f.Statuses {
			if s == e.Status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// EventStore is the per-site persistent event collection. The on-disk object
// maps eventID to its version history, latest first. All observe-then-mutate
// sequences run under the store's file lock.
type EventStore struct {
	path    string
	lock    *FileLock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// stored histories: eventID -> versions, head is current.
type eventHistories map[string][]*domain.Event

// NewEventStore opens (or will create on first write) the store at path. The
// lock file sits next to the store file.
func NewEventStore(path string, logger *slog.Logger, metrics *observability.Metrics) *EventStore {
	lock := NewFileLock(path+".lock", logger)
	if metrics != nil {
		lock.onHold = func(d time.Duration) {
			metrics.LockHoldDuration.Observe(d.Seconds())
		}
	}
	return &EventStore{
		path:    path,
		lock:    lock,
		logger:  logger,
		metrics: metrics,
	}
}

// Lock acquires the store's advisory lock. Every caller that observes and
// then mutates must hold it across the whole sequence.
func (s *EventStore) Lock(ctx context.Context) error {
	return s.lock.Acquire(ctx)
}

// Unlock releases the advisory lock.
func (s *EventStore) Unlock() {
	s.lock.Release()
}

// WithLock runs fn with the lock held, releasing on every exit path.
func (s *EventStore) WithLock(ctx context.Context, fn func() error) error {
	if err := s.Lock(ctx); err != nil {
		return err
	}
	defer s.Unlock()
	return fn()
}

// GetByFilter returns the current version of every event matching filter,
// keyed by eventID. Results are deep copies.
func (s *EventStore) GetByFilter(filter Filter) (map[string]*domain.Event, error) {
	histories, _, err := s.read()
	if err != nil {
		return nil, err
	}

	out := make(map[string]*domain.Event)
	for id, versions := range histories {
		if len(versions) == 0 {
			continue
		}
		head := versions[0]
		if filter.matches(head) {
			out[id] = head.Copy()
		}
	}
	return out, nil
}

// GetByEventID returns the event's version history, latest first. A missing
// id returns an empty list, not an error.
func (s *EventStore) GetByEventID(id string) ([]*domain.Event, error) {
	histories, _, err := s.read()
	if err != nil {
		return nil, err
	}

	versions := histories[id]
	out := make([]*domain.Event, len(versions))
	for i, v := range versions {
		out[i] = v.Copy()
	}
	return out, nil
}

// CreateEvent assigns a fresh opaque eventID to the template, stamps creation
// time, and persists it as a single-version history.
func (s *EventStore) CreateEvent(template *domain.Event) (*domain.Event, error) {
	if err := template.Validate(); err != nil {
		return nil, err
	}

	e := template.Copy()
	e.EventID = uuid.NewString()
	if e.CreationTime == 0 {
		e.CreationTime = domain.Now()
	}
	if e.Status == "" {
		e.Status = domain.StatusPending
	}

	if err := s.StoreEvents([]*domain.Event{e}); err != nil {
		return nil, err
	}
	return e.Copy(), nil
}

// StoreEvents is replace-or-insert by eventID: any existing history for the
// given ids is removed, then the new records are written, grouped by id in
// input order (first occurrence becomes the history head).
func (s *EventStore) StoreEvents(events []*domain.Event) error {
	for _, e := range events {
		if e.EventID == "" {
			return fmt.Errorf("%w: event without id", domain.ErrInvalidInput)
		}
		if err := e.Validate(); err != nil {
			return err
		}
	}

	histories, revision, err := s.read()
	if err != nil {
		return err
	}

	incoming := make(eventHistories)
	var order []string
	for _, e := range events {
		if _, seen := incoming[e.EventID]; !seen {
			order = append(order, e.EventID)
		}
		incoming[e.EventID] = append(incoming[e.EventID], e.Copy())
	}
	for _, id := range order {
		histories[id] = incoming[id]
	}

	return s.write(histories, revision)
}

// RemoveEvents deletes the full history of each event.
func (s *EventStore) RemoveEvents(events []*domain.Event) error {
	histories, revision, err := s.read()
	if err != nil {
		return err
	}
	for _, e := range events {
		delete(histories, e.EventID)
	}
	return s.write(histories, revision)
}

// SweepElapsed moves issued or ending events whose end time plus purgeWindow
// has passed to elapsed. Returns the ids it changed.
func (s *EventStore) SweepElapsed(purgeWindow time.Duration) ([]string, error) {
	histories, revision, err := s.read()
	if err != nil {
		return nil, err
	}

	now := domain.Now()
	var swept []string
	for id, versions := range histories {
		if len(versions) == 0 {
			continue
		}
		head := versions[0]
		if head.Status != domain.StatusIssued && head.Status != domain.StatusEnding {
			continue
		}
		if head.EndTime == 0 || now <= head.EndTime+purgeWindow.Milliseconds() {
			continue
		}
		next := head.Copy()
		next.Status = domain.StatusElapsed
		histories[id] = append([]*domain.Event{next}, versions...)
		swept = append(swept, id)
	}

	if len(swept) == 0 {
		return nil, nil
	}
	sort.Strings(swept)
	if err := s.write(histories, revision); err != nil {
		return nil, err
	}
	s.logger.Info("swept elapsed events", "count", len(swept))
	return swept, nil
}

func (s *EventStore) read() (eventHistories, int64, error) {
	histories := make(eventHistories)
	revision, err := readFile(s.path, &histories)
	if err != nil {
		return nil, 0, err
	}
	if s.metrics != nil {
		s.metrics.StoreReads.WithLabelValues("event").Inc()
	}
	return histories, revision, nil
}

func (s *EventStore) write(histories eventHistories, revision int64) error {
	err := writeFile(s.path, histories, revision)
	if s.metrics != nil {
		switch {
		case err == nil:
			s.metrics.StoreWrites.WithLabelValues("event").Inc()
		case errors.Is(err, domain.ErrStoreConflict):
			s.metrics.StoreConflicts.WithLabelValues("event").Inc()
		}
	}
	return err
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
