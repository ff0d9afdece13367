// Package recommender runs hazard recommenders and folds their output into
// the event store. A recommender is a pure-ish analysis step: given the
// current event set and its inputs it proposes an event set, and the runner
// reconciles that proposal with what forecasters have already touched.
package recommender

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/couchcryptid/hazard-services/internal/domain"
)

// Inputs carries everything a recommender may consult. Recommenders treat
// all of it as read-only.
type Inputs struct {
	SiteID string
	Mode   domain.Mode

	// CurrentEvents is a snapshot of the store taken before compute.
	CurrentEvents []*domain.Event

	// SessionAttributes are durable per-session settings.
	SessionAttributes domain.AttrMap
	// DialogInputs are the values the forecaster entered for this run.
	DialogInputs domain.AttrMap
	// SpatialInputs is an optional freehand geometry drawn for this run.
	SpatialInputs *domain.Geometry
}

// Result is a recommender's proposal.
type Result struct {
	// Events is the full recommended set. Each event must carry a stable
	// external identity attribute so reruns reconcile instead of duplicate.
	Events []*domain.Event
	// Message is an operator-facing note, empty when there is nothing to say.
	Message string
}

// Recommender computes a hazard proposal. Implementations must honor ctx
// cancellation; long computations are abandoned, never merged.
type Recommender interface {
	Name() string
	Recommend(ctx context.Context, in Inputs) (*Result, error)
}

// Registry maps recommender names to implementations.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Recommender
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Recommender)}
}

// Register adds r under its own name. Re-registering a name replaces the
// previous implementation.
func (reg *Registry) Register(r Recommender) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.byName[r.Name()] = r
}

// Get returns the named recommender or an error naming it.
func (reg *Registry) Get(name string) (Recommender, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown recommender %q", domain.ErrInvalidInput, name)
	}
	return r, nil
}

// Names returns the registered names, sorted.
func (reg *Registry) Names() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	names := make([]string, 0, len(reg.byName))
	for name := range reg.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExternalID returns the event's stable recommender identity: the
// probabilistic object id when present, else the burn scar name, else the
// gauge id for point hazards. Empty means the event has no recommender
// identity and the runner will not reconcile it.
func ExternalID(e *domain.Event) string {
	if id := e.Attributes.String(domain.AttrProbObjectID); id != "" {
		return id
	}
	if name := e.Attributes.String(domain.AttrBurnScarName); name != "" {
		return name
	}
	return e.PointID
}
