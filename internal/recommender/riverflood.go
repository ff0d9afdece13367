package recommender

import (
	"context"
	"fmt"
	"strings"

	"github.com/couchcryptid/hazard-services/internal/domain"
)

// GaugeForecast is one river gauge's stage outlook. Stages are in gauge
// datum feet; times are epoch milliseconds, zero when the transition is not
// forecast.
type GaugeForecast struct {
	PointID    string
	StreamName string
	Location   domain.Coord

	ActionStage   float64
	FloodStage    float64
	ModerateStage float64
	MajorStage    float64

	ObservedStage float64
	CrestStage    float64

	RiseAbove int64
	CrestTime int64
	FallBelow int64
}

// ForecastProvider supplies the stage forecasts for a site's gauges.
type ForecastProvider interface {
	Forecasts(ctx context.Context, siteID string) ([]GaugeForecast, error)
}

// InundationProvider maps a gauge to its inundation polygon. A nil geometry
// with nil error means no mapping exists for that gauge.
type InundationProvider interface {
	Inundation(ctx context.Context, pointID string) (*domain.Geometry, error)
}

// RiverFlood recommends point hazards from river gauge forecasts: FL.W when
// the crest reaches flood stage, FL.Y between action and flood stage, and
// HY.S for gauges the dialog asks to keep visible below action stage.
type RiverFlood struct {
	forecasts  ForecastProvider
	inundation InundationProvider
}

func NewRiverFlood(forecasts ForecastProvider, inundation InundationProvider) *RiverFlood {
	return &RiverFlood{forecasts: forecasts, inundation: inundation}
}

func (r *RiverFlood) Name() string { return "riverflood" }

func (r *RiverFlood) Recommend(ctx context.Context, in Inputs) (*Result, error) {
	forecasts, err := r.forecasts.Forecasts(ctx, in.SiteID)
	if err != nil {
		return nil, fmt.Errorf("fetching gauge forecasts: %w", err)
	}
	includeNonFlood := in.DialogInputs.Bool("includeNonFloodPoints")

	var events []*domain.Event
	var unmapped []string
	for _, fc := range forecasts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		phen, sig := classify(fc, includeNonFlood)
		if phen == "" {
			continue
		}

		event := &domain.Event{
			SiteID:       in.SiteID,
			Phenomenon:   phen,
			Significance: sig,
			Status:       domain.StatusPotential,
			StartTime:    startTime(fc),
			EndTime:      fc.FallBelow,
			GeoType:      domain.GeoTypePoint,
			PointID:      fc.PointID,
			Attributes: domain.AttrMap{
				domain.AttrStreamName:     fc.StreamName,
				domain.AttrImmediateCause: "ER",
				domain.AttrFloodSeverity:  severity(fc, sig),
				domain.AttrRiseAbove:      fc.RiseAbove,
				domain.AttrCrest:          fc.CrestTime,
				domain.AttrFallBelow:      fc.FallBelow,
			},
		}

		event.Geometry = r.geometryFor(ctx, fc, &unmapped)
		events = append(events, event)
	}

	var message string
	if len(unmapped) > 0 {
		message = fmt.Sprintf(
			"no inundation mapping for %s; point geometry used",
			strings.Join(unmapped, ", "))
	}
	return &Result{Events: events, Message: message}, nil
}

// geometryFor prefers the gauge's inundation polygon and degrades to the
// bare gauge location when no mapping is available or the lookup fails.
func (r *RiverFlood) geometryFor(ctx context.Context, fc GaugeForecast, unmapped *[]string) *domain.Geometry {
	if r.inundation != nil {
		geom, err := r.inundation.Inundation(ctx, fc.PointID)
		if err == nil && geom != nil && len(geom.Rings) > 0 {
			dup := geom.Copy()
			return &dup
		}
		*unmapped = append(*unmapped, fc.PointID)
	}
	return &domain.Geometry{Kind: domain.GeometryPoint, Point: fc.Location}
}

func classify(fc GaugeForecast, includeNonFlood bool) (string, string) {
	crest := fc.CrestStage
	if fc.ObservedStage > crest {
		crest = fc.ObservedStage
	}
	switch {
	case fc.FloodStage > 0 && crest >= fc.FloodStage:
		return "FL", "W"
	case fc.ActionStage > 0 && crest >= fc.ActionStage:
		return "FL", "Y"
	case includeNonFlood:
		return "HY", "S"
	default:
		return "", ""
	}
}

// severity maps the crest to the VTEC flood severity field. Advisories and
// statements carry N; warnings carry 1 through 3 by category.
func severity(fc GaugeForecast, sig string) string {
	if sig != "W" {
		return "N"
	}
	crest := fc.CrestStage
	if fc.ObservedStage > crest {
		crest = fc.ObservedStage
	}
	switch {
	case fc.MajorStage > 0 && crest >= fc.MajorStage:
		return "3"
	case fc.ModerateStage > 0 && crest >= fc.ModerateStage:
		return "2"
	default:
		return "1"
	}
}

func startTime(fc GaugeForecast) int64 {
	if fc.RiseAbove > 0 {
		return fc.RiseAbove
	}
	return domain.Now()
}
