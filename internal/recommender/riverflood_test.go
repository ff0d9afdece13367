package recommender

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hazard-services/internal/domain"
)

type fakeForecasts []GaugeForecast

func (f fakeForecasts) Forecasts(_ context.Context, _ string) ([]GaugeForecast, error) {
	return f, nil
}

type fakeInundation map[string]*domain.Geometry

func (f fakeInundation) Inundation(_ context.Context, pointID string) (*domain.Geometry, error) {
	return f[pointID], nil
}

func gauge(pointID, stream string, crest float64) GaugeForecast {
	return GaugeForecast{
		PointID:       pointID,
		StreamName:    stream,
		Location:      domain.Coord{-92.4, 42.5},
		ActionStage:   10,
		FloodStage:    12,
		ModerateStage: 15,
		MajorStage:    18,
		ObservedStage: 8,
		CrestStage:    crest,
		RiseAbove:     1358380800000,
		CrestTime:     1358424000000,
		FallBelow:     1358478000000,
	}
}

func inundationPolygon() *domain.Geometry {
	return &domain.Geometry{
		Kind:  domain.GeometryPolygon,
		Rings: []domain.Ring{{{-92.5, 42.4}, {-92.5, 42.6}, {-92.3, 42.6}, {-92.5, 42.4}}},
	}
}

func TestRiverFloodClassification(t *testing.T) {
	cases := []struct {
		name     string
		crest    float64
		dialog   domain.AttrMap
		wantPhen string
		wantSig  string
		wantSev  string
		skip     bool
	}{
		{name: "major flood", crest: 19, wantPhen: "FL", wantSig: "W", wantSev: "3"},
		{name: "moderate flood", crest: 16, wantPhen: "FL", wantSig: "W", wantSev: "2"},
		{name: "minor flood", crest: 12.5, wantPhen: "FL", wantSig: "W", wantSev: "1"},
		{name: "above action stage", crest: 11, wantPhen: "FL", wantSig: "Y", wantSev: "N"},
		{name: "below action skipped", crest: 9, skip: true},
		{
			name: "below action kept visible", crest: 9,
			dialog:   domain.AttrMap{"includeNonFloodPoints": true},
			wantPhen: "HY", wantSig: "S", wantSev: "N",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRiverFlood(fakeForecasts{gauge("KSCM6", "Cedar River", tc.crest)},
				fakeInundation{"KSCM6": inundationPolygon()})

			result, err := r.Recommend(context.Background(), Inputs{
				SiteID:       "KTBW",
				DialogInputs: tc.dialog,
			})
			require.NoError(t, err)

			if tc.skip {
				assert.Empty(t, result.Events)
				return
			}
			require.Len(t, result.Events, 1)
			ev := result.Events[0]
			assert.Equal(t, tc.wantPhen, ev.Phenomenon)
			assert.Equal(t, tc.wantSig, ev.Significance)
			assert.Equal(t, tc.wantSev, ev.Attributes.String(domain.AttrFloodSeverity))
			assert.Equal(t, "KSCM6", ev.PointID)
			assert.Equal(t, domain.GeoTypePoint, ev.GeoType)
		})
	}
}

func TestRiverFloodUsesInundationPolygon(t *testing.T) {
	r := NewRiverFlood(fakeForecasts{gauge("KSCM6", "Cedar River", 13)},
		fakeInundation{"KSCM6": inundationPolygon()})

	result, err := r.Recommend(context.Background(), Inputs{SiteID: "KTBW"})
	require.NoError(t, err)
	require.Len(t, result.Events, 1)
	assert.Equal(t, domain.GeometryPolygon, result.Events[0].Geometry.Kind)
	assert.Empty(t, result.Message)
}

func TestRiverFloodDegradesWithoutInundation(t *testing.T) {
	r := NewRiverFlood(fakeForecasts{
		gauge("KSCM6", "Cedar River", 13),
		gauge("CEDI4", "Cedar River", 13),
	}, fakeInundation{"KSCM6": inundationPolygon()})

	result, err := r.Recommend(context.Background(), Inputs{SiteID: "KTBW"})
	require.NoError(t, err)
	require.Len(t, result.Events, 2)

	assert.Equal(t, domain.GeometryPolygon, result.Events[0].Geometry.Kind)
	assert.Equal(t, domain.GeometryPoint, result.Events[1].Geometry.Kind)
	assert.Contains(t, result.Message, "CEDI4")

	// The gauge event still carries the full hydro attribute set.
	attrs := result.Events[1].Attributes
	assert.Equal(t, "Cedar River", attrs.String(domain.AttrStreamName))
	assert.Equal(t, "ER", attrs.String(domain.AttrImmediateCause))
	assert.Equal(t, int64(1358424000000), attrs.Int64(domain.AttrCrest))
}

func TestRiverFloodObservedAboveForecastCrest(t *testing.T) {
	fc := gauge("KSCM6", "Cedar River", 11)
	fc.ObservedStage = 13

	r := NewRiverFlood(fakeForecasts{fc}, nil)
	result, err := r.Recommend(context.Background(), Inputs{SiteID: "KTBW"})
	require.NoError(t, err)
	require.Len(t, result.Events, 1)
	assert.Equal(t, "FL.W", result.Events[0].PhenSig())
}
