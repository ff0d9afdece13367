// Package segment decomposes an event set into per-geography segments: the
// maximal groups of zones that share identical event membership. Segments
// partition the union of all zones, and within a segment every event applies
// to every zone.
package segment

import (
	"sort"
	"strings"

	"github.com/couchcryptid/hazard-services/internal/domain"
)

// Segment is a (zone set, event set) tuple. Both sets are kept sorted so
// segment identity is stable across invocations.
type Segment struct {
	UGCs     []string
	EventIDs []string
}

// key identifies the event membership a zone belongs to.
func membershipKey(eventIDs []string) string {
	return strings.Join(eventIDs, "\x00")
}

// BuildArea computes segments for zone-based hazards. Each zone lands in
// exactly one segment; zones with identical event membership merge.
func BuildArea(events []*domain.Event) []Segment {
	zoneEvents := make(map[string][]string)
	for _, ev := range sortedByID(events) {
		if ev.GeoType == domain.GeoTypePoint {
			continue
		}
		for _, zone := range ev.UGCs() {
			zoneEvents[zone] = append(zoneEvents[zone], ev.EventID)
		}
	}

	groups := make(map[string]*Segment)
	for zone, ids := range zoneEvents {
		key := membershipKey(ids)
		seg := groups[key]
		if seg == nil {
			seg = &Segment{EventIDs: ids}
			groups[key] = seg
		}
		seg.UGCs = append(seg.UGCs, zone)
	}

	out := make([]Segment, 0, len(groups))
	for _, seg := range groups {
		sort.Strings(seg.UGCs)
		out = append(out, *seg)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UGCs[0] < out[j].UGCs[0]
	})
	return out
}

// BuildPoint computes segments for gauge-point hazards: one segment per
// event with the gauge id as the sole geography, no aggregation.
func BuildPoint(events []*domain.Event) []Segment {
	var out []Segment
	for _, ev := range sortedByID(events) {
		if ev.GeoType != domain.GeoTypePoint {
			continue
		}
		out = append(out, Segment{
			UGCs:     []string{ev.PointID},
			EventIDs: []string{ev.EventID},
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UGCs[0] != out[j].UGCs[0] {
			return out[i].UGCs[0] < out[j].UGCs[0]
		}
		return out[i].EventIDs[0] < out[j].EventIDs[0]
	})
	return out
}

// Build runs both decompositions. Area and point segments are computed
// independently; the grouper routes them separately.
func Build(events []*domain.Event) (area, point []Segment) {
	return BuildArea(events), BuildPoint(events)
}

func sortedByID(events []*domain.Event) []*domain.Event {
	out := make([]*domain.Event, len(events))
	copy(out, events)
	sort.Slice(out, func(i, j int) bool { return out[i].EventID < out[j].EventID })
	return out
}
