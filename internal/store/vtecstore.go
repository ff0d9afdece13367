package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/couchcryptid/hazard-services/internal/domain"
	"github.com/couchcryptid/hazard-services/internal/observability"
)

// VTECStore persists coded records for one namespace (operational, practice,
// or test). Namespaces are disjoint files, so practice and test sessions can
// never collide with operational etns. The on-disk object maps the composite
// key office.phen.sig.etn to the record's action history, latest first.
type VTECStore struct {
	path    string
	mode    domain.Mode
	lock    *FileLock
	logger  *slog.Logger
	metrics *observability.Metrics
}

type vtecHistories map[string][]*domain.VTECRecord

// NewVTECStore opens the store for mode in dir. File naming follows the
// namespace: vtec.operational.json, vtec.practice.json, vtec.test.json.
func NewVTECStore(dir string, mode domain.Mode, logger *slog.Logger, metrics *observability.Metrics) *VTECStore {
	path := filepath.Join(dir, fmt.Sprintf("vtec.%s.json", mode))
	lock := NewFileLock(path+".lock", logger)
	if metrics != nil {
		lock.onHold = func(d time.Duration) {
			metrics.LockHoldDuration.Observe(d.Seconds())
		}
	}
	return &VTECStore{
		path:    path,
		mode:    mode,
		lock:    lock,
		logger:  logger,
		metrics: metrics,
	}
}

// Mode returns the namespace this store serves.
func (s *VTECStore) Mode() domain.Mode { return s.mode }

// Lock acquires the store's advisory lock.
func (s *VTECStore) Lock(ctx context.Context) error {
	return s.lock.Acquire(ctx)
}

// Unlock releases the advisory lock.
func (s *VTECStore) Unlock() {
	s.lock.Release()
}

// WithLock runs fn with the lock held.
func (s *VTECStore) WithLock(ctx context.Context, fn func() error) error {
	if err := s.Lock(ctx); err != nil {
		return err
	}
	defer s.Unlock()
	return fn()
}

// ActiveRecords returns the latest record of every etn issued by office whose
// action is non-terminal, in canonical order (phen, sig, etn ascending).
func (s *VTECStore) ActiveRecords(office string) ([]*domain.VTECRecord, error) {
	histories, _, err := s.read()
	if err != nil {
		return nil, err
	}

	var out []*domain.VTECRecord
	for _, versions := range histories {
		if len(versions) == 0 {
			continue
		}
		head := versions[0]
		if head.Office != office || head.Action.Terminal() {
			continue
		}
		out = append(out, head.Copy())
	}
	sortRecords(out)
	return out, nil
}

// RecordsByKey returns the action history for one office.phen.sig.etn key,
// latest first.
func (s *VTECStore) RecordsByKey(key string) ([]*domain.VTECRecord, error) {
	histories, _, err := s.read()
	if err != nil {
		return nil, err
	}
	versions := histories[key]
	out := make([]*domain.VTECRecord, len(versions))
	for i, r := range versions {
		out[i] = r.Copy()
	}
	return out, nil
}

// AllRecords returns every key's full action history, latest first, keyed
// by office.phen.sig.etn. Used by offline integrity checks.
func (s *VTECStore) AllRecords() (map[string][]*domain.VTECRecord, error) {
	histories, _, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]*domain.VTECRecord, len(histories))
	for key, versions := range histories {
		dup := make([]*domain.VTECRecord, len(versions))
		for i, r := range versions {
			dup[i] = r.Copy()
		}
		out[key] = dup
	}
	return out, nil
}

// MaxETN returns the highest etn issued for (office, phen, sig) in the
// calendar year containing issueTime, or 0 when none exists. ETN sequences
// restart each year.
func (s *VTECStore) MaxETN(office, phen, sig string, issueTime int64) (int, error) {
	histories, _, err := s.read()
	if err != nil {
		return 0, err
	}

	year := domain.ToTime(issueTime).Year()
	max := 0
	for _, versions := range histories {
		if len(versions) == 0 {
			continue
		}
		head := versions[0]
		if head.Office != office || head.Phenomenon != phen || head.Significance != sig {
			continue
		}
		if domain.ToTime(head.IssueTime).Year() != year {
			continue
		}
		if head.ETN > max {
			max = head.ETN
		}
	}
	return max, nil
}

// AppendRecords prepends each record to its key's history. The write is
// all-or-nothing: a transition that fails validation rejects the whole batch.
func (s *VTECStore) AppendRecords(records []*domain.VTECRecord) error {
	histories, revision, err := s.read()
	if err != nil {
		return err
	}

	for _, r := range records {
		if r.Mode != s.mode {
			return fmt.Errorf("%w: record %s is %s, store is %s",
				domain.ErrInvalidInput, r.Key(), r.Mode, s.mode)
		}
		key := r.Key()
		if versions := histories[key]; len(versions) > 0 && versions[0].Action.Terminal() {
			return fmt.Errorf("%w: etn %s is closed by %s",
				domain.ErrIllegalTransition, key, versions[0].Action)
		}
		histories[key] = append([]*domain.VTECRecord{r.Copy()}, histories[key]...)
	}

	return s.write(histories, revision)
}

func (s *VTECStore) read() (vtecHistories, int64, error) {
	histories := make(vtecHistories)
	revision, err := readFile(s.path, &histories)
	if err != nil {
		return nil, 0, err
	}
	if s.metrics != nil {
		s.metrics.StoreReads.WithLabelValues("vtec").Inc()
	}
	return histories, revision, nil
}

func (s *VTECStore) write(histories vtecHistories, revision int64) error {
	err := writeFile(s.path, histories, revision)
	if s.metrics != nil {
		switch {
		case err == nil:
			s.metrics.StoreWrites.WithLabelValues("vtec").Inc()
		case errors.Is(err, domain.ErrStoreConflict):
			s.metrics.StoreConflicts.WithLabelValues("vtec").Inc()
		}
	}
	return err
}

// sortRecords orders records canonically: phen, sig, etn, then first zone,
// all ascending.
func sortRecords(records []*domain.VTECRecord) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Phenomenon != b.Phenomenon {
			return a.Phenomenon < b.Phenomenon
		}
		if a.Significance != b.Significance {
			return a.Significance < b.Significance
		}
		if a.ETN != b.ETN {
			return a.ETN < b.ETN
		}
		return firstZone(a) < firstZone(b)
	})
}

func firstZone(r *domain.VTECRecord) string {
	if len(r.UGCZones) > 0 {
		return r.UGCZones[0]
	}
	return r.PointID
}
