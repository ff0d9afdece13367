// Package pipeline orchestrates the product cycle: proposed events are
// coded by the VTEC engine, grouped into products, planned, rendered, and
// handed to dissemination.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	adapterhttp "github.com/couchcryptid/hazard-services/internal/adapter/http"
	"github.com/couchcryptid/hazard-services/internal/bridge"
	"github.com/couchcryptid/hazard-services/internal/domain"
	"github.com/couchcryptid/hazard-services/internal/observability"
	"github.com/couchcryptid/hazard-services/internal/product"
	"github.com/couchcryptid/hazard-services/internal/segment"
	"github.com/couchcryptid/hazard-services/internal/store"
	"github.com/couchcryptid/hazard-services/internal/vtec"
)

// Disseminator publishes a cycle's issued products.
type Disseminator interface {
	Publish(ctx context.Context, products []product.Issuance) error
}

// Options bound the cycle loop.
type Options struct {
	SiteID        string
	CycleInterval time.Duration
	SweepInterval time.Duration
	PurgeWindow   time.Duration
}

// Pipeline runs product cycles against one session's stores.
type Pipeline struct {
	opts    Options
	bridge  *bridge.Bridge
	engine  *vtec.Engine
	dissem  Disseminator // nil disables dissemination
	logger  *slog.Logger
	metrics *observability.Metrics

	ready     atomic.Bool
	cycles    atomic.Int64
	lastCycle atomic.Int64

	mu      sync.Mutex
	lastErr string
}

func New(opts Options, b *bridge.Bridge, engine *vtec.Engine, d Disseminator, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		opts:    opts,
		bridge:  b,
		engine:  engine,
		dissem:  d,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once the stores have been read cleanly at
// least once, whether or not a cycle has issued anything.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no successful store read yet")
	}
	return nil
}

// Status summarizes the session for the admin server.
func (p *Pipeline) Status() adapterhttp.Status {
	p.mu.Lock()
	lastErr := p.lastErr
	p.mu.Unlock()
	return adapterhttp.Status{
		SiteID:        p.opts.SiteID,
		Mode:          string(p.bridge.Mode()),
		CyclesRun:     p.cycles.Load(),
		LastCycleTime: p.lastCycle.Load(),
		LastError:     lastErr,
	}
}

// CycleResult reports what one cycle produced.
type CycleResult struct {
	Records   []*domain.VTECRecord
	Products  []*product.Product
	Issuances []product.Issuance
}

// Run executes cycles until the context is cancelled. Transient store
// errors back off exponentially from 200ms to 5s; anything else is logged
// and retried on the next tick.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started",
		"site", p.opts.SiteID,
		"cycle_interval", p.opts.CycleInterval,
		"sweep_interval", p.opts.SweepInterval)

	backoff := 200 * time.Millisecond
	const maxBackoff = 5 * time.Second

	cycleTick := time.NewTicker(p.opts.CycleInterval)
	defer cycleTick.Stop()
	sweepTick := time.NewTicker(p.opts.SweepInterval)
	defer sweepTick.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil

		case <-sweepTick.C:
			if _, err := p.bridge.Events().SweepElapsed(p.opts.PurgeWindow); err != nil {
				p.logger.Error("elapsed sweep failed", "error", err)
			}

		case <-cycleTick.C:
			_, err := p.RunCycle(ctx)
			switch {
			case err == nil:
				backoff = 200 * time.Millisecond
			case ctx.Err() != nil:
				return nil
			case transient(err):
				p.logger.Warn("cycle hit transient store error, backing off",
					"error", err, "backoff", backoff)
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return nil
				}
				if backoff *= 2; backoff > maxBackoff {
					backoff = maxBackoff
				}
			default:
				p.logger.Error("cycle failed", "error", err)
			}
		}
	}
}

// RunCycle performs one product cycle. A cycle with no proposed or ending
// events is a no-op. Coding, status advancement, and dissemination happen
// in that order; the engine's own lock makes the coded records atomic.
func (p *Pipeline) RunCycle(ctx context.Context) (*CycleResult, error) {
	if p.metrics != nil {
		p.metrics.CycleRunning.Set(1)
		defer p.metrics.CycleRunning.Set(0)
	}
	start := time.Now()

	result, err := p.cycle(ctx)

	p.mu.Lock()
	if err != nil {
		p.lastErr = err.Error()
	} else {
		p.lastErr = ""
	}
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if p.metrics != nil && result != nil && len(result.Records) > 0 {
		p.metrics.CycleDuration.Observe(time.Since(start).Seconds())
	}
	p.cycles.Add(1)
	p.lastCycle.Store(domain.Now())
	return result, nil
}

func (p *Pipeline) cycle(ctx context.Context) (*CycleResult, error) {
	events := p.bridge.Events()

	var desired map[string]*domain.Event
	err := events.WithLock(ctx, func() error {
		var err error
		desired, err = events.GetByFilter(store.Filter{
			SiteIDs: []string{p.opts.SiteID},
			Statuses: []domain.Status{
				domain.StatusProposed,
				domain.StatusIssued,
				domain.StatusEnding,
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	p.ready.Store(true)

	if !hasWork(desired) {
		return &CycleResult{}, nil
	}

	proposed := make([]*domain.Event, 0, len(desired))
	for _, ev := range desired {
		proposed = append(proposed, ev)
	}

	area, point := segment.Build(proposed)
	p.logger.Debug("cycle segmentation",
		"area_segments", len(area), "point_segments", len(point))

	records, err := p.engine.Run(ctx, p.opts.SiteID, proposed)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &CycleResult{}, nil
	}

	if err := p.resolveDeparted(ctx, desired, records); err != nil {
		return nil, err
	}

	products, err := product.Group(desired, records, p.policy())
	if err != nil {
		return nil, err
	}

	issueTime := records[0].IssueTime
	issuances := make([]product.Issuance, len(products))
	for i, prod := range products {
		issuances[i] = product.NewIssuance(prod, p.opts.SiteID, p.bridge.Mode(), issueTime)
	}

	if err := p.advanceStatuses(ctx, desired, issueTime); err != nil {
		return nil, err
	}

	if p.dissem != nil {
		if err := p.dissem.Publish(ctx, issuances); err != nil {
			return nil, err
		}
	}

	p.logger.Info("cycle complete",
		"records", len(records),
		"products", len(products))
	return &CycleResult{Records: records, Products: products, Issuances: issuances}, nil
}

// resolveDeparted backfills events the desired set no longer carries. The
// coder terminates hazards whose events left the active statuses (swept to
// elapsed, or deleted by a forecaster), so their CAN and EXP records name
// events outside the cycle's read. The head version still renders the
// closing segment.
func (p *Pipeline) resolveDeparted(ctx context.Context, desired map[string]*domain.Event, records []*domain.VTECRecord) error {
	events := p.bridge.Events()
	return events.WithLock(ctx, func() error {
		for _, rec := range records {
			if rec.EventID == "" || desired[rec.EventID] != nil {
				continue
			}
			versions, err := events.GetByEventID(rec.EventID)
			if err != nil {
				return err
			}
			if len(versions) > 0 {
				desired[rec.EventID] = versions[0]
			}
		}
		return nil
	})
}

// policy reads the grouping knobs from the bridge, falling back to the
// defaults when no settings file is configured.
func (p *Pipeline) policy() product.Policy {
	settings, err := p.bridge.Settings()
	if err != nil {
		return product.DefaultPolicy()
	}
	return product.Policy{ForceSingleSegmentArealFLW: settings.SingleSegmentArealFLW}
}

// advanceStatuses moves each coded event forward: proposed becomes issued,
// ending becomes ended. Each advance is stored as a new version.
func (p *Pipeline) advanceStatuses(ctx context.Context, desired map[string]*domain.Event, issueTime int64) error {
	events := p.bridge.Events()
	return events.WithLock(ctx, func() error {
		var versions []*domain.Event
		for _, ev := range desired {
			var next domain.Status
			switch ev.Status {
			case domain.StatusProposed:
				next = domain.StatusIssued
			case domain.StatusEnding:
				next = domain.StatusEnded
			default:
				continue
			}

			history, err := events.GetByEventID(ev.EventID)
			if err != nil {
				return err
			}
			advanced := ev.Copy()
			advanced.Status = next
			if advanced.IssueTime == 0 {
				advanced.IssueTime = issueTime
			}
			versions = append(versions, append([]*domain.Event{advanced}, history...)...)
		}
		if len(versions) == 0 {
			return nil
		}
		return events.StoreEvents(versions)
	})
}

func hasWork(desired map[string]*domain.Event) bool {
	for _, ev := range desired {
		if ev.Status == domain.StatusProposed || ev.Status == domain.StatusEnding {
			return true
		}
	}
	return false
}

func transient(err error) bool {
	return errors.Is(err, domain.ErrStoreUnavailable) || errors.Is(err, domain.ErrStoreConflict)
}
