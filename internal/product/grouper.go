// Package product bundles coded segments into named products and plans the
// ordered parts tree a formatter walks to emit each one.
package product

import (
	"fmt"
	"sort"
	"strings"

	"github.com/couchcryptid/hazard-services/internal/domain"
)

// Segment is one geography's slice of a product: its zone (or gauge) set,
// the events in force there, and the coded records to render.
type Segment struct {
	UGCs    []string
	Events  []*domain.Event
	Records []*domain.VTECRecord
}

// streamName returns the stream attribute of the segment's first event, used
// for HY.S distribution.
func (s *Segment) streamName() string {
	for _, ev := range s.Events {
		if name := ev.Attributes.String(domain.AttrStreamName); name != "" {
			return name
		}
	}
	return ""
}

// Product is a named bundle of segments issued together.
type Product struct {
	ProductID   string // FFW, FFS, FLW, FLS, FFA, ESF, SIGMET, AIRMET
	ProductName string
	GeoType     domain.GeoType
	ETN         int // set when the grouping rule keys by etn
	Segments    []Segment
	Parts       []Part
}

var productNames = map[string]string{
	"FFW":    "Flash Flood Warning",
	"FFS":    "Flash Flood Statement",
	"FLW":    "Flood Warning",
	"FLS":    "Flood Statement",
	"FFA":    "Flood Watch",
	"ESF":    "Hydrologic Outlook",
	"SIGMET": "Convective SIGMET",
	"AIRMET": "AIRMET",
}

// Policy holds the overridable grouping knobs.
type Policy struct {
	// ForceSingleSegmentArealFLW keeps the one-segment-per-FLW default.
	// The directive permits multi-segment areal flood warnings; sites that
	// want them clear this.
	ForceSingleSegmentArealFLW bool
}

// DefaultPolicy returns the operational defaults.
func DefaultPolicy() Policy {
	return Policy{ForceSingleSegmentArealFLW: true}
}

// Attribute keys consulted for aviation routing.
const (
	AttrConvectiveDomain = "convectiveDomain" // East, Central, or West
	AttrAviationZone     = "aviationZone"
)

// Group assigns coded records to products per the product routing rules.
// events maps eventID to event so each record finds its subject.
func Group(events map[string]*domain.Event, records []*domain.VTECRecord, policy Policy) ([]*Product, error) {
	type bucket struct {
		product  *Product
		segments map[string]*Segment // by zone-set key
		order    []string
	}
	buckets := make(map[string]*bucket)
	var bucketOrder []string

	var hydroStatements []Segment

	for _, rec := range records {
		ev := events[rec.EventID]
		if ev == nil && rec.EventID != "" && !rec.Action.Terminal() {
			// A terminal record may close an event already purged from
			// the active set; it renders from the record alone.
			return nil, fmt.Errorf("%w: record %s names unknown event %s",
				domain.ErrInvalidInput, rec.Key(), rec.EventID)
		}

		seg := segmentFor(rec, ev)

		// HY.S statements are distributed onto point products afterwards.
		if rec.Phenomenon == "HY" && rec.Significance == "S" {
			hydroStatements = append(hydroStatements, seg)
			continue
		}

		pil, key, etn := route(rec, ev, policy)
		if pil == "" {
			continue
		}

		b := buckets[key]
		if b == nil {
			b = &bucket{
				product: &Product{
					ProductID:   pil,
					ProductName: productNames[pil],
					GeoType:     geoTypeOf(rec),
					ETN:         etn,
				},
				segments: make(map[string]*Segment),
			}
			buckets[key] = b
			bucketOrder = append(bucketOrder, key)
		}

		zoneKey := strings.Join(seg.UGCs, "-")
		if existing := b.segments[zoneKey]; existing != nil {
			existing.Records = append(existing.Records, rec)
			existing.Events = appendEvent(existing.Events, ev)
		} else {
			b.segments[zoneKey] = &seg
			b.order = append(b.order, zoneKey)
		}
	}

	sort.Strings(bucketOrder)
	products := make([]*Product, 0, len(buckets))
	for _, key := range bucketOrder {
		b := buckets[key]
		sort.Strings(b.order)
		for _, zoneKey := range b.order {
			b.product.Segments = append(b.product.Segments, *b.segments[zoneKey])
		}
		products = append(products, b.product)
	}

	products = distributeHydroStatements(products, hydroStatements)

	for _, p := range products {
		p.Parts = Plan(p)
	}
	return products, nil
}

// route maps one coded record to (product id, bucket key, product etn).
// The bucket key embeds the product id, so keys sort into product order.
func route(rec *domain.VTECRecord, ev *domain.Event, policy Policy) (string, string, int) {
	followUp := rec.Action != domain.ActionNew
	point := rec.PointID != ""

	// Aviation routing is attribute-driven: each convective domain or
	// aviation zone issues its own sequence.
	if ev != nil {
		if dom := ev.Attributes.String(AttrConvectiveDomain); dom != "" {
			return "SIGMET", "SIGMET/" + dom, 0
		}
		if zone := ev.Attributes.String(AttrAviationZone); zone != "" {
			return "AIRMET", "AIRMET/" + zone, 0
		}
	}

	phenSig := rec.PhenSig()
	switch {
	case phenSig == "FF.W":
		if followUp {
			// Statements on one etn share an FFS.
			return "FFS", fmt.Sprintf("FFS/%04d", rec.ETN), rec.ETN
		}
		// One segment per FFW.
		return "FFW", fmt.Sprintf("FFW/%04d", rec.ETN), rec.ETN

	case rec.Significance == "A":
		// Watches are one segmented product with all contributors.
		return "FFA", "FFA", 0

	case phenSig == "HY.O":
		return "ESF", "ESF", 0

	case point:
		switch {
		case rec.Significance == "Y":
			return "FLS", "FLS/point-advisory", 0
		case followUp:
			return "FLS", "FLS/point-statement", 0
		default:
			// Initial point warnings share one FLW, which may carry
			// multiple points.
			return "FLW", "FLW/point", 0
		}

	case rec.Significance == "Y":
		// Advisories group by etn and action family; initial issuances
		// and follow-ups never share a product.
		family := "fol"
		if rec.Action == domain.ActionNew || rec.Action == domain.ActionExt {
			family = "new"
		}
		return "FLS", fmt.Sprintf("FLS/%04d/%s", rec.ETN, family), rec.ETN

	case followUp:
		// Areal warning follow-ups group into an FLS keyed by etn.
		return "FLS", fmt.Sprintf("FLS/%04d", rec.ETN), rec.ETN

	default:
		if policy.ForceSingleSegmentArealFLW {
			return "FLW", fmt.Sprintf("FLW/%04d", rec.ETN), rec.ETN
		}
		return "FLW", "FLW", 0
	}
}

// distributeHydroStatements attaches each HY.S segment to every point
// product that shares its stream. Distribution is independent: a statement
// appears on each matching product. Unmatched statements form their own
// statement product.
func distributeHydroStatements(products []*Product, statements []Segment) []*Product {
	if len(statements) == 0 {
		return products
	}

	var orphans []Segment
	for _, st := range statements {
		stream := st.streamName()
		attached := false
		for _, p := range products {
			if p.GeoType != domain.GeoTypePoint {
				continue
			}
			for _, seg := range p.Segments {
				if stream != "" && seg.streamName() == stream {
					p.Segments = append(p.Segments, st)
					attached = true
					break
				}
			}
		}
		if !attached {
			orphans = append(orphans, st)
		}
	}

	if len(orphans) > 0 {
		products = append(products, &Product{
			ProductID:   "FLS",
			ProductName: productNames["FLS"],
			GeoType:     domain.GeoTypePoint,
			Segments:    orphans,
		})
	}
	return products
}

func segmentFor(rec *domain.VTECRecord, ev *domain.Event) Segment {
	zones := rec.UGCZones
	if len(zones) == 0 && rec.PointID != "" {
		zones = []string{rec.PointID}
	}
	seg := Segment{
		UGCs:    append([]string(nil), zones...),
		Records: []*domain.VTECRecord{rec},
	}
	if ev != nil {
		seg.Events = []*domain.Event{ev}
	}
	return seg
}

func geoTypeOf(rec *domain.VTECRecord) domain.GeoType {
	if rec.PointID != "" {
		return domain.GeoTypePoint
	}
	return domain.GeoTypeArea
}

func appendEvent(events []*domain.Event, ev *domain.Event) []*domain.Event {
	if ev == nil {
		return events
	}
	for _, e := range events {
		if e.EventID == ev.EventID {
			return events
		}
	}
	return append(events, ev)
}
