package product

import "github.com/couchcryptid/hazard-services/internal/domain"

// Part is one node of a product's parts plan. A leaf has an empty Subs and
// names a text part the formatter renders. An internal node ("segments",
// "sections") holds one child plan per segment or section, in order.
type Part struct {
	Name string   `json:"name"`
	Subs [][]Part `json:"subs,omitempty"`
}

func leaf(name string) Part { return Part{Name: name} }

// Plan builds the ordered parts tree for a product. The plan names every
// part a formatter must render and nothing else; the same product content
// always plans the same tree.
func Plan(p *Product) []Part {
	plan := []Part{
		leaf("wmoHeader"),
		leaf("CR"),
		leaf("productHeader"),
		leaf("CR"),
	}

	if nonTerminalOnly(p) {
		plan = append(plan, leaf("overviewSynopsis"))
	}
	if easActivation(p) {
		plan = append(plan, leaf("easMessage"))
	}

	segs := make([][]Part, 0, len(p.Segments))
	for i := range p.Segments {
		if p.GeoType == domain.GeoTypePoint {
			segs = append(segs, planPointSegment(p, &p.Segments[i]))
		} else {
			segs = append(segs, planAreaSegment(p, &p.Segments[i]))
		}
	}
	plan = append(plan, Part{Name: "segments", Subs: segs})
	plan = append(plan, leaf("initials"))
	return plan
}

func planAreaSegment(p *Product, seg *Segment) []Part {
	plan := []Part{
		leaf("setUp_segment"),
		leaf("ugcHeader"),
		leaf("vtecRecords"),
		leaf("areaList"),
	}
	if p.ProductID == "FFA" {
		plan = append(plan, leaf("cityList"))
	}
	plan = append(plan, leaf("issuanceTimeDate"), leaf("CR"))

	if areaSummaryHeadlines(p, seg) {
		plan = append(plan, leaf("summaryHeadlines"))
	}

	sections := make([][]Part, 0, len(seg.Records))
	for _, rec := range seg.Records {
		sections = append(sections, planAreaSection(p, rec))
	}
	plan = append(plan, Part{Name: "sections", Subs: sections})

	if p.ProductID == "FLW" || p.ProductID == "FLS" {
		plan = append(plan, leaf("polygonText"))
	}
	plan = append(plan, leaf("endSegment"))
	return plan
}

// planAreaSection branches on the record's action and hazard. Terminal
// actions close with an ending synopsis; actionable initial issuances carry
// the full bullet set; continuations restate only the basis.
func planAreaSection(p *Product, rec *domain.VTECRecord) []Part {
	if rec.Action.Terminal() {
		return []Part{
			leaf("attribution"),
			leaf("endingSynopsis"),
		}
	}

	var plan []Part
	initial := rec.Action == domain.ActionNew || rec.Action == domain.ActionExt ||
		rec.Action == domain.ActionExa || rec.Action == domain.ActionExb
	switch {
	case initial:
		plan = []Part{
			leaf("attribution"),
			leaf("firstBullet"),
			leaf("timeBullet"),
			leaf("basisBullet"),
			leaf("impactsBullet"),
		}
	default:
		// A continuation restates the basis without repeating the
		// attribution line.
		plan = []Part{
			leaf("basisBullet"),
		}
	}

	if rec.Phenomenon == "FA" {
		plan = append(plan, leaf("locationsAffected"), leaf("additionalComments"))
	}
	plan = append(plan, leaf("callsToAction_sectionLevel"), leaf("endSection"))
	return plan
}

func planPointSegment(p *Product, seg *Segment) []Part {
	plan := []Part{
		leaf("setUp_segment"),
		leaf("ugcHeader"),
		leaf("vtecRecords"),
		leaf("issuanceTimeDate"),
		leaf("CR"),
	}

	sections := make([][]Part, 0, len(seg.Records))
	for _, rec := range seg.Records {
		sections = append(sections, planPointSection(rec))
	}
	plan = append(plan, Part{Name: "sections", Subs: sections})
	plan = append(plan, leaf("endSegment"))
	return plan
}

// planPointSection plans one river gauge's bullets. Stage bullets appear on
// every branch; flood stage, category, and impacts only while the hazard is
// live, with advisories skipping category and impacts.
func planPointSection(rec *domain.VTECRecord) []Part {
	if rec.Action.Terminal() {
		return []Part{
			leaf("attribution_point"),
			leaf("observedStageBullet"),
			leaf("recentActivityBullet"),
			leaf("forecastStageBullet"),
			leaf("endSection"),
		}
	}

	plan := []Part{
		leaf("attribution_point"),
		leaf("firstBullet"),
		leaf("timeBullet"),
		leaf("observedStageBullet"),
		leaf("floodStageBullet"),
	}
	if rec.Significance != "Y" {
		plan = append(plan, leaf("floodCategoryBullet"), leaf("pointImpactsBullet"))
	}
	plan = append(plan, leaf("forecastStageBullet"))
	if rec.PhenSig() == "FL.W" {
		plan = append(plan, leaf("floodHistoryBullet"))
	}
	plan = append(plan, leaf("callsToAction_sectionLevel"), leaf("endSection"))
	return plan
}

// easActivation reports whether any record in the product triggers EAS:
// an initiating action on a flood phenomenon at warning or watch level.
func easActivation(p *Product) bool {
	for i := range p.Segments {
		for _, rec := range p.Segments[i].Records {
			switch rec.Action {
			case domain.ActionNew, domain.ActionExa, domain.ActionExb, domain.ActionExt:
			default:
				continue
			}
			switch rec.Phenomenon {
			case "FF", "FA", "FL":
			default:
				continue
			}
			if rec.Significance != "Y" {
				return true
			}
		}
	}
	return false
}

func nonTerminalOnly(p *Product) bool {
	any := false
	for i := range p.Segments {
		for _, rec := range p.Segments[i].Records {
			any = true
			if rec.Action.Terminal() {
				return false
			}
		}
	}
	return any
}

func areaSummaryHeadlines(p *Product, seg *Segment) bool {
	if p.ProductID == "FFA" {
		return true
	}
	if p.ProductID != "FLW" && p.ProductID != "FLS" {
		return false
	}
	for _, rec := range seg.Records {
		switch rec.Action {
		case domain.ActionNew, domain.ActionExt:
		default:
			return true
		}
	}
	return false
}
