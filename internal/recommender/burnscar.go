package recommender

import (
	"context"
	"fmt"
	"time"

	"github.com/couchcryptid/hazard-services/internal/domain"
)

// Burn scar flash flood threats use the debris-flow immediate cause and a
// short default duration.
const (
	burnScarDefaultDuration = 6 * time.Hour
	burnScarImmediateCause  = "MC"
)

// BurnScar recommends a flash flood warning for rain over a named burn
// scar. The burn scar name is the stable identity, so rerunning with the
// same scar updates the existing event instead of stacking duplicates.
type BurnScar struct{}

func NewBurnScar() *BurnScar { return &BurnScar{} }

func (b *BurnScar) Name() string { return "burnscar" }

// Recommend produces one FF.W BurnScar event from the dialog inputs and the
// drawn threat polygon.
func (b *BurnScar) Recommend(_ context.Context, in Inputs) (*Result, error) {
	scarName := in.DialogInputs.String(domain.AttrBurnScarName)
	if scarName == "" {
		return nil, fmt.Errorf("%w: burn scar name is required", domain.ErrInvalidInput)
	}
	if in.SpatialInputs == nil || len(in.SpatialInputs.Rings) == 0 {
		return nil, fmt.Errorf("%w: a threat polygon is required", domain.ErrInvalidInput)
	}

	now := domain.Now()
	duration := burnScarDefaultDuration
	if hours := in.DialogInputs.Int64("durationHours"); hours > 0 {
		duration = time.Duration(hours) * time.Hour
	}

	threat := in.SpatialInputs.Copy()
	event := &domain.Event{
		SiteID:       in.SiteID,
		Phenomenon:   "FF",
		Significance: "W",
		SubType:      "BurnScar",
		Status:       domain.StatusPotential,
		StartTime:    now,
		EndTime:      now + duration.Milliseconds(),
		GeoType:      domain.GeoTypeArea,
		Geometry:     &threat,
		Attributes: domain.AttrMap{
			domain.AttrBurnScarName:   scarName,
			domain.AttrImmediateCause: burnScarImmediateCause,
			domain.AttrFloodSeverity:  "0",
		},
	}
	if cta := in.DialogInputs.StringSlice(domain.AttrCTA); len(cta) > 0 {
		event.Attributes.Set(domain.AttrCTA, cta)
	}

	return &Result{
		Events:  []*domain.Event{event},
		Message: fmt.Sprintf("flash flood threat for the %s burn scar", scarName),
	}, nil
}
