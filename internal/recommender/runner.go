package recommender

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/couchcryptid/hazard-services/internal/domain"
	"github.com/couchcryptid/hazard-services/internal/observability"
	"github.com/couchcryptid/hazard-services/internal/store"
)

// Runner executes recommenders against an event store. The store lock is
// held only for the snapshot and for the merge write, never across compute,
// so a slow recommender cannot starve interactive edits.
type Runner struct {
	registry *Registry
	events   *store.EventStore
	logger   *slog.Logger
	metrics  *observability.Metrics
}

func NewRunner(registry *Registry, events *store.EventStore, logger *slog.Logger, metrics *observability.Metrics) *Runner {
	return &Runner{
		registry: registry,
		events:   events,
		logger:   logger,
		metrics:  metrics,
	}
}

// Outcome reports what a run changed.
type Outcome struct {
	Saved   []*domain.Event // events written (new or updated versions)
	Deleted []string        // event ids removed
	Blocked []string        // operator messages for locked events left untouched
	Message string          // recommender's own note
}

// Run snapshots the store, computes the named recommender with the lock
// released, then reacquires the lock and merges. A context cancellation
// during compute abandons the run with nothing written.
func (r *Runner) Run(ctx context.Context, name string, in Inputs) (*Outcome, error) {
	rec, err := r.registry.Get(name)
	if err != nil {
		return nil, err
	}

	snapshot, err := r.snapshot(ctx, in.SiteID)
	if err != nil {
		return nil, err
	}
	in.CurrentEvents = snapshot

	started := time.Now()
	result, err := rec.Recommend(ctx, in)
	if r.metrics != nil {
		r.metrics.RecommenderDuration.WithLabelValues(name).Observe(time.Since(started).Seconds())
	}
	if err != nil {
		if ctx.Err() != nil {
			r.count(name, "cancelled")
			return nil, ctx.Err()
		}
		r.count(name, "failed")
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrRecommenderFailed, name, err)
	}
	if err := ctx.Err(); err != nil {
		r.count(name, "cancelled")
		return nil, err
	}

	var outcome *Outcome
	err = r.events.WithLock(ctx, func() error {
		// Reconcile against the live set, not the snapshot; a forecaster
		// may have edited while we computed.
		current, err := r.currentLocked(in.SiteID)
		if err != nil {
			return err
		}
		outcome, err = r.merge(current, result.Events)
		return err
	})
	if err != nil {
		r.count(name, "failed")
		return nil, err
	}

	outcome.Message = result.Message
	r.count(name, "merged")
	r.logger.Info("recommender merged",
		"recommender", name,
		"saved", len(outcome.Saved),
		"deleted", len(outcome.Deleted),
		"blocked", len(outcome.Blocked))
	return outcome, nil
}

func (r *Runner) snapshot(ctx context.Context, siteID string) ([]*domain.Event, error) {
	var events []*domain.Event
	err := r.events.WithLock(ctx, func() error {
		var err error
		events, err = r.currentLocked(siteID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *Runner) currentLocked(siteID string) ([]*domain.Event, error) {
	byID, err := r.events.GetByFilter(store.Filter{SiteIDs: []string{siteID}})
	if err != nil {
		return nil, err
	}
	events := make([]*domain.Event, 0, len(byID))
	for _, e := range byID {
		events = append(events, e)
	}
	sortByID(events)
	return events, nil
}

// merge reconciles the recommended set with the current set. Matching is by
// external id. Issued locked events block; a classification change on an
// issued event ends it and issues a replacement; everything else updates in
// place honoring the per-facet automation flags. Current recommender-owned
// events absent from the proposal are deleted while still potential or
// pending.
func (r *Runner) merge(current, recommended []*domain.Event) (*Outcome, error) {
	byExternal := make(map[string]*domain.Event)
	for _, e := range current {
		if e.Status == domain.StatusDeleted || e.Status == domain.StatusElapsed {
			continue
		}
		if id := ExternalID(e); id != "" {
			byExternal[id] = e
		}
	}

	outcome := &Outcome{}
	var toStore []*domain.Event
	var toRemove []*domain.Event
	claimed := make(map[string]bool)

	for _, prop := range recommended {
		id := ExternalID(prop)
		if id == "" {
			return nil, fmt.Errorf("%w: recommended event %s.%s has no external identity",
				domain.ErrInvalidInput, prop.Phenomenon, prop.Significance)
		}
		claimed[id] = true

		match := byExternal[id]
		switch {
		case match == nil:
			created, err := r.events.CreateEvent(prop)
			if err != nil {
				return nil, err
			}
			outcome.Saved = append(outcome.Saved, created)

		case match.Status == domain.StatusIssued && match.Attributes.Bool(domain.AttrLocked):
			outcome.Blocked = append(outcome.Blocked, fmt.Sprintf(
				"event %s (%s) is locked; recommendation not applied",
				match.EventID, match.HazardType()))

		case match.Status == domain.StatusIssued && match.PhenSig() != prop.PhenSig():
			// Classification changed under an issued hazard: end the
			// current event and issue the proposal as its replacement.
			ending := match.Copy()
			ending.Status = domain.StatusEnding
			saved, err := r.saveVersion(ending)
			if err != nil {
				return nil, err
			}
			toStore = append(toStore, saved...)
			outcome.Saved = append(outcome.Saved, ending)

			created, err := r.events.CreateEvent(prop)
			if err != nil {
				return nil, err
			}
			outcome.Saved = append(outcome.Saved, created)

		default:
			updated := applyProposal(match, prop)
			saved, err := r.saveVersion(updated)
			if err != nil {
				return nil, err
			}
			toStore = append(toStore, saved...)
			outcome.Saved = append(outcome.Saved, updated)
		}
	}

	for _, e := range current {
		id := ExternalID(e)
		if id == "" || claimed[id] {
			continue
		}
		if e.Status == domain.StatusPotential || e.Status == domain.StatusPending {
			toRemove = append(toRemove, e)
			outcome.Deleted = append(outcome.Deleted, e.EventID)
		}
	}

	if len(toStore) > 0 {
		if err := r.events.StoreEvents(toStore); err != nil {
			return nil, err
		}
	}
	if len(toRemove) > 0 {
		if err := r.events.RemoveEvents(toRemove); err != nil {
			return nil, err
		}
	}
	return outcome, nil
}

// saveVersion prepends the new version to the event's stored history.
func (r *Runner) saveVersion(e *domain.Event) ([]*domain.Event, error) {
	history, err := r.events.GetByEventID(e.EventID)
	if err != nil {
		return nil, err
	}
	return append([]*domain.Event{e.Copy()}, history...), nil
}

// applyProposal folds a recommendation into an existing event. Geometry,
// motion, and probabilistic trend facets only move when their automation
// flag is still set; a forecaster's manual override clears the flag and the
// facet then sticks.
func applyProposal(match, prop *domain.Event) *domain.Event {
	updated := match.Copy()

	updated.StartTime = prop.StartTime
	updated.EndTime = prop.EndTime

	if match.Attributes.Bool(domain.AttrGeometryAutomated) || !match.Attributes.Has(domain.AttrGeometryAutomated) {
		if prop.Geometry != nil {
			g := prop.Geometry.Copy()
			updated.Geometry = &g
		}
	}

	motionOK := match.Attributes.Bool(domain.AttrMotionAutomated) || !match.Attributes.Has(domain.AttrMotionAutomated)
	trendOK := match.Attributes.Bool(domain.AttrProbTrendAutomated) || !match.Attributes.Has(domain.AttrProbTrendAutomated)

	if updated.Attributes == nil {
		updated.Attributes = domain.AttrMap{}
	}
	for key, val := range prop.Attributes {
		switch key {
		case "motionDirection", "motionSpeed":
			if !motionOK {
				continue
			}
		case "probTrend":
			if !trendOK {
				continue
			}
		case domain.AttrLocked, domain.AttrGeometryAutomated,
			domain.AttrMotionAutomated, domain.AttrProbTrendAutomated:
			// Reconciliation never flips forecaster-owned flags.
			continue
		}
		updated.Attributes.Set(key, val)
	}
	return updated
}

func (r *Runner) count(name, outcome string) {
	if r.metrics != nil {
		r.metrics.RecommenderRuns.WithLabelValues(name, outcome).Inc()
	}
}

func sortByID(events []*domain.Event) {
	sort.Slice(events, func(i, j int) bool {
		return events[i].EventID < events[j].EventID
	})
}
