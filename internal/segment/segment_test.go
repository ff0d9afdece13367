package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hazard-services/internal/domain"
)

func areaEvent(id string, zones ...string) *domain.Event {
	return &domain.Event{
		EventID:      id,
		SiteID:       "KTBW",
		Phenomenon:   "FA",
		Significance: "W",
		GeoType:      domain.GeoTypeArea,
		Attributes:   domain.AttrMap{domain.AttrUGCs: zones},
	}
}

func pointEvent(id, gauge string) *domain.Event {
	return &domain.Event{
		EventID:      id,
		SiteID:       "KTBW",
		Phenomenon:   "FL",
		Significance: "W",
		GeoType:      domain.GeoTypePoint,
		PointID:      gauge,
	}
}

func TestBuildArea_SingleEvent(t *testing.T) {
	segs := BuildArea([]*domain.Event{areaEvent("a", "FLC057", "FLC101")})
	require.Len(t, segs, 1)
	assert.Equal(t, []string{"FLC057", "FLC101"}, segs[0].UGCs)
	assert.Equal(t, []string{"a"}, segs[0].EventIDs)
}

func TestBuildArea_OverlapSplitsZones(t *testing.T) {
	// a covers 057+101, b covers 101+115: three memberships.
	segs := BuildArea([]*domain.Event{
		areaEvent("a", "FLC057", "FLC101"),
		areaEvent("b", "FLC101", "FLC115"),
	})
	require.Len(t, segs, 3)

	assert.Equal(t, []string{"FLC057"}, segs[0].UGCs)
	assert.Equal(t, []string{"a"}, segs[0].EventIDs)

	assert.Equal(t, []string{"FLC101"}, segs[1].UGCs)
	assert.Equal(t, []string{"a", "b"}, segs[1].EventIDs)

	assert.Equal(t, []string{"FLC115"}, segs[2].UGCs)
	assert.Equal(t, []string{"b"}, segs[2].EventIDs)
}

func TestBuildArea_IdenticalMembershipMerges(t *testing.T) {
	// Both zones carry both events: one maximal segment.
	segs := BuildArea([]*domain.Event{
		areaEvent("a", "FLC057", "FLC101"),
		areaEvent("b", "FLC057", "FLC101"),
	})
	require.Len(t, segs, 1)
	assert.Equal(t, []string{"FLC057", "FLC101"}, segs[0].UGCs)
	assert.Equal(t, []string{"a", "b"}, segs[0].EventIDs)
}

func TestBuildArea_PartitionsZones(t *testing.T) {
	events := []*domain.Event{
		areaEvent("a", "FLC057", "FLC101", "FLC115"),
		areaEvent("b", "FLC101"),
		areaEvent("c", "FLC115", "FLC171"),
	}
	segs := BuildArea(events)

	seen := map[string]int{}
	for _, s := range segs {
		for _, z := range s.UGCs {
			seen[z]++
		}
	}
	for zone, n := range seen {
		assert.Equal(t, 1, n, "zone %s must appear in exactly one segment", zone)
	}
	assert.Len(t, seen, 4)
}

func TestBuildPoint_NoAggregation(t *testing.T) {
	segs := BuildPoint([]*domain.Event{
		pointEvent("a", "KSCM6"),
		pointEvent("b", "KSCM6"), // same gauge, separate segment
		pointEvent("c", "PIEF1"),
	})
	require.Len(t, segs, 3)
	assert.Equal(t, []string{"KSCM6"}, segs[0].UGCs)
	assert.Equal(t, []string{"a"}, segs[0].EventIDs)
	assert.Equal(t, []string{"b"}, segs[1].EventIDs)
	assert.Equal(t, []string{"PIEF1"}, segs[2].UGCs)
}

func TestBuild_SeparatesGeoTypes(t *testing.T) {
	area, point := Build([]*domain.Event{
		areaEvent("a", "FLC057"),
		pointEvent("b", "KSCM6"),
	})
	require.Len(t, area, 1)
	require.Len(t, point, 1)
	assert.Equal(t, []string{"a"}, area[0].EventIDs)
	assert.Equal(t, []string{"b"}, point[0].EventIDs)
}
