// Package vtec computes action-coded records for hazard events: the state
// machine that assigns NEW/CON/EXT/EXA/EXB/CAN/EXP/UPG/ROU segments and
// event tracking numbers given a proposed event set and the prior coded
// record set for a site.
package vtec

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

// expWindow is how far before an end time an expiration may be coded.
const expWindow = 30 * time.Minute

// ETNSource yields the highest etn already issued for a sequence, so NEW
// allocations continue it.
type ETNSource interface {
	MaxETN(office, phen, sig string, issueTime int64) (int, error)
}

// MapETNSource is an in-memory ETNSource for pure invocations and tests,
// keyed by office.phen.sig.
type MapETNSource map[string]int

// MaxETN implements ETNSource.
func (m MapETNSource) MaxETN(office, phen, sig string, _ int64) (int, error) {
	return m[office+"."+phen+"."+sig], nil
}

// Input is one engine invocation: the operator's proposed event set against
// the site's prior active coded records, at one instant.
type Input struct {
	Office    string
	Mode      domain.Mode
	IssueTime int64 // uniform across every record of the invocation
	Proposed  []*domain.Event
	Prior     []*domain.VTECRecord // active (non-terminal) records only
}

// decision is the per-zone outcome before grouping into records.
type decision struct {
	phen, sig string
	etn       int // 0 until assigned for NEW
	action    domain.Action
	zone      string
	start     int64
	end       int64
	ev        *domain.Event       // nil for terminations of absent events
	prior     *domain.VTECRecord  // nil for NEW
	newEvent  int                 // allocation slot for NEW decisions
}

// tracker aggregates the prior active records of one etn.
type tracker struct {
	phen, sig string
	etn       int
	eventID   string
	zones     map[string]bool
	start     int64
	end       int64
	latest    *domain.VTECRecord
}

// Merge is the pure coding step. For identical inputs the output is
// identical, in canonical order (phen, sig, etn, zone ascending). It is
// all-or-nothing: any illegal transition fails the whole invocation.
func Merge(in Input, etns ETNSource) ([]*domain.VTECRecord, error) {
	if in.Office == "" {
		return nil, fmt.Errorf("%w: office is required", domain.ErrInvalidInput)
	}
	issueTime := in.IssueTime
	if issueTime == 0 {
		issueTime = domain.Now()
	}
	mode := in.Mode
	if mode == "" {
		mode = domain.ModeOperational
	}

	trackers, byEvent, byZone, err := indexPrior(in.Prior)
	if err != nil {
		return nil, err
	}

	var decisions []*decision
	claimed := make(map[*tracker]bool)
	newSlots := 0

	// Statements (sig S) are routine-coded and never tracked.
	for _, ev := range sortedEvents(in.Proposed) {
		if err := ev.Validate(); err != nil {
			return nil, err
		}
		if ev.SiteID != in.Office {
			return nil, fmt.Errorf("%w: event %s is for site %s, engine invoked for %s",
				domain.ErrInvalidInput, ev.EventID, ev.SiteID, in.Office)
		}

		if ev.Significance == "S" {
			for _, zone := range ev.UGCs() {
				decisions = append(decisions, &decision{
					phen: ev.Phenomenon, sig: ev.Significance,
					action: domain.ActionRou, zone: zone,
					start: ev.StartTime, end: ev.EndTime, ev: ev,
				})
			}
			continue
		}

		tr := matchTracker(ev, byEvent, byZone)
		if tr != nil {
			claimed[tr] = true
		}

		if ev.Status == domain.StatusEnding || ev.Status == domain.StatusEnded {
			if tr == nil {
				// Nothing on the books to terminate.
				continue
			}
			decisions = append(decisions, terminate(tr, issueTime)...)
			continue
		}

		if tr == nil {
			slot := newSlots
			newSlots++
			for _, zone := range ev.UGCs() {
				decisions = append(decisions, &decision{
					phen: ev.Phenomenon, sig: ev.Significance,
					action: domain.ActionNew, zone: zone,
					start: ev.StartTime, end: ev.EndTime,
					ev: ev, newEvent: slot,
				})
			}
			continue
		}

		decisions = append(decisions, continueEvent(ev, tr, issueTime)...)
	}

	// Prior active records not covered by any proposal terminate.
	for _, tr := range trackers {
		if !claimed[tr] {
			decisions = append(decisions, terminate(tr, issueTime)...)
		}
	}

	reclassifyUpgrades(decisions)

	records, err := buildRecords(decisions, in.Office, mode, issueTime, etns)
	if err != nil {
		return nil, err
	}
	canonicalSort(records)
	return records, nil
}

// indexPrior groups active records by etn and builds the zone index.
func indexPrior(prior []*domain.VTECRecord) ([]*tracker, map[string]*tracker, map[string]*tracker, error) {
	byKey := make(map[string]*tracker)
	var trackers []*tracker
	byEvent := make(map[string]*tracker)
	byZone := make(map[string]*tracker)

	for _, r := range prior {
		if r.Action.Terminal() {
			return nil, nil, nil, fmt.Errorf("%w: prior record %s is terminal (%s)",
				domain.ErrIllegalTransition, r.Key(), r.Action)
		}
		key := r.Key()
		tr := byKey[key]
		if tr == nil {
			tr = &tracker{
				phen: r.Phenomenon, sig: r.Significance, etn: r.ETN,
				eventID: r.EventID, zones: make(map[string]bool),
				start: r.StartTime, end: r.EndTime, latest: r,
			}
			byKey[key] = tr
			trackers = append(trackers, tr)
		}
		if r.IssueTime > tr.latest.IssueTime {
			tr.latest = r
			tr.start = r.StartTime
			tr.end = r.EndTime
		}
		for _, z := range zonesOf(r) {
			tr.zones[z] = true
			byZone[r.PhenSig()+"|"+z] = tr
		}
		if r.EventID != "" {
			byEvent[r.EventID] = tr
		}
	}

	// Deterministic iteration order for the termination pass.
	sort.Slice(trackers, func(i, j int) bool {
		a, b := trackers[i], trackers[j]
		if a.phen != b.phen {
			return a.phen < b.phen
		}
		if a.sig != b.sig {
			return a.sig < b.sig
		}
		return a.etn < b.etn
	})
	return trackers, byEvent, byZone, nil
}

// matchTracker finds the prior etn a proposal continues: by event identity
// first, then by zone overlap within the same phen.sig.
func matchTracker(ev *domain.Event, byEvent, byZone map[string]*tracker) *tracker {
	if tr, ok := byEvent[ev.EventID]; ok && tr.phen == ev.Phenomenon && tr.sig == ev.Significance {
		return tr
	}
	for _, zone := range ev.UGCs() {
		if tr, ok := byZone[ev.PhenSig()+"|"+zone]; ok {
			return tr
		}
	}
	return nil
}

// continueEvent codes an ongoing event: CON/EXT for retained zones, EXA/EXB
// for added zones, CAN/EXP for dropped zones.
func continueEvent(ev *domain.Event, tr *tracker, issueTime int64) []*decision {
	timesChanged := ev.StartTime != tr.start || ev.EndTime != tr.end

	contAction := domain.ActionCon
	addAction := domain.ActionExa
	if timesChanged {
		contAction = domain.ActionExt
		addAction = domain.ActionExb
	}

	proposed := make(map[string]bool)
	var out []*decision
	for _, zone := range ev.UGCs() {
		proposed[zone] = true
		action := addAction
		if tr.zones[zone] {
			action = contAction
		}
		out = append(out, &decision{
			phen: ev.Phenomenon, sig: ev.Significance, etn: tr.etn,
			action: action, zone: zone,
			start: ev.StartTime, end: ev.EndTime,
			ev: ev, prior: tr.latest,
		})
	}

	// Zones dropped from the event terminate individually.
	dropAction := terminalAction(tr.end, issueTime)
	for zone := range tr.zones {
		if !proposed[zone] {
			out = append(out, &decision{
				phen: tr.phen, sig: tr.sig, etn: tr.etn,
				action: dropAction, zone: zone,
				start: tr.start, end: tr.end,
				ev: ev, prior: tr.latest,
			})
		}
	}
	return out
}

// terminate codes every zone of a prior etn as CAN, or EXP once the end time
// has arrived.
func terminate(tr *tracker, issueTime int64) []*decision {
	action := terminalAction(tr.end, issueTime)
	var out []*decision
	for zone := range tr.zones {
		out = append(out, &decision{
			phen: tr.phen, sig: tr.sig, etn: tr.etn,
			action: action, zone: zone,
			start: tr.start, end: tr.end, prior: tr.latest,
		})
	}
	return out
}

// terminalAction picks CAN before the end time, EXP at or after it. EXP may
// be coded up to 30 minutes early.
func terminalAction(endTime, issueTime int64) domain.Action {
	if endTime != 0 && issueTime >= endTime-expWindow.Milliseconds() {
		return domain.ActionExp
	}
	return domain.ActionCan
}

// reclassifyUpgrades turns a CAN into UPG when, in the same zone, a
// higher-priority hazard begins exactly as the terminated one ends.
func reclassifyUpgrades(decisions []*decision) {
	newByZone := make(map[string][]*decision)
	for _, d := range decisions {
		if d.action == domain.ActionNew {
			newByZone[d.zone] = append(newByZone[d.zone], d)
		}
	}
	for _, d := range decisions {
		if d.action != domain.ActionCan {
			continue
		}
		for _, n := range newByZone[d.zone] {
			if n.start == d.end && upgrades(n.phen+"."+n.sig, d.phen+"."+d.sig) {
				d.action = domain.ActionUpg
				break
			}
		}
	}
}

// buildRecords groups zone decisions into records and assigns etns. Zones of
// one etn that share an action and time window form one record.
func buildRecords(decisions []*decision, office string, mode domain.Mode, issueTime int64, etns ETNSource) ([]*domain.VTECRecord, error) {
	// Allocate etns for NEW events in canonical order, one per event,
	// continuing each (phen, sig) sequence past its maximum.
	newEtns, err := allocateETNs(decisions, office, issueTime, etns)
	if err != nil {
		return nil, err
	}

	type groupKey struct {
		phen, sig string
		etn       int
		action    domain.Action
		start     int64
		end       int64
	}
	groups := make(map[groupKey]*domain.VTECRecord)
	var order []groupKey

	for _, d := range decisions {
		etn := d.etn
		if d.action == domain.ActionNew {
			etn = newEtns[d.newEvent]
		}
		key := groupKey{d.phen, d.sig, etn, d.action, d.start, d.end}
		rec := groups[key]
		if rec == nil {
			rec = &domain.VTECRecord{
				Office:       office,
				Phenomenon:   d.phen,
				Significance: d.sig,
				ETN:          etn,
				Action:       d.action,
				Mode:         mode,
				StartTime:    d.start,
				EndTime:      d.end,
				IssueTime:    issueTime,
			}
			populateDetail(rec, d)
			groups[key] = rec
			order = append(order, key)
		}
		if rec.PointID == "" || rec.PointID != d.zone {
			rec.UGCZones = append(rec.UGCZones, d.zone)
		}
	}

	out := make([]*domain.VTECRecord, 0, len(order))
	for _, key := range order {
		rec := groups[key]
		sort.Strings(rec.UGCZones)
		rec.UGCZones = dedupe(rec.UGCZones)
		out = append(out, rec)
	}
	return out, nil
}

// populateDetail carries event identity and hydrologic fields onto the
// record, falling back to the prior record for terminations of absent
// events.
func populateDetail(rec *domain.VTECRecord, d *decision) {
	if d.ev != nil {
		rec.EventID = d.ev.EventID
		if d.ev.GeoType == domain.GeoTypePoint {
			rec.PointID = d.ev.PointID
			attrs := d.ev.Attributes
			rec.FloodSeverity = attrs.String(domain.AttrFloodSeverity)
			rec.ImmediateCause = attrs.String(domain.AttrImmediateCause)
			rec.FloodRecord = attrs.String(domain.AttrFloodRecord)
			rec.RiseAbove = attrs.Int64(domain.AttrRiseAbove)
			rec.Crest = attrs.Int64(domain.AttrCrest)
			rec.FallBelow = attrs.Int64(domain.AttrFallBelow)
		}
		return
	}
	if d.prior != nil {
		rec.EventID = d.prior.EventID
		rec.PointID = d.prior.PointID
		rec.FloodSeverity = d.prior.FloodSeverity
		rec.ImmediateCause = d.prior.ImmediateCause
		rec.FloodRecord = d.prior.FloodRecord
		rec.RiseAbove = d.prior.RiseAbove
		rec.Crest = d.prior.Crest
		rec.FallBelow = d.prior.FallBelow
	}
}

// allocateETNs assigns fresh etns to NEW events: slots in canonical decision
// order, maxExisting+1 onward per (phen, sig).
func allocateETNs(decisions []*decision, office string, issueTime int64, etns ETNSource) (map[int]int, error) {
	type slotInfo struct {
		slot      int
		phen, sig string
		firstZone string
	}
	seen := make(map[int]*slotInfo)
	var slots []*slotInfo
	for _, d := range decisions {
		if d.action != domain.ActionNew {
			continue
		}
		info := seen[d.newEvent]
		if info == nil {
			info = &slotInfo{slot: d.newEvent, phen: d.phen, sig: d.sig, firstZone: d.zone}
			seen[d.newEvent] = info
			slots = append(slots, info)
		}
		if d.zone < info.firstZone {
			info.firstZone = d.zone
		}
	}

	sort.Slice(slots, func(i, j int) bool {
		a, b := slots[i], slots[j]
		if a.phen != b.phen {
			return a.phen < b.phen
		}
		if a.sig != b.sig {
			return a.sig < b.sig
		}
		return a.firstZone < b.firstZone
	})

	next := make(map[string]int)
	assigned := make(map[int]int, len(slots))
	for _, info := range slots {
		seq := info.phen + "." + info.sig
		if _, ok := next[seq]; !ok {
			max, err := etns.MaxETN(office, info.phen, info.sig, issueTime)
			if err != nil {
				return nil, err
			}
			next[seq] = max
		}
		next[seq]++
		assigned[info.slot] = next[seq]
	}
	return assigned, nil
}

func zonesOf(r *domain.VTECRecord) []string {
	if len(r.UGCZones) > 0 {
		return r.UGCZones
	}
	if r.PointID != "" {
		return []string{r.PointID}
	}
	return nil
}

func sortedEvents(events []*domain.Event) []*domain.Event {
	out := make([]*domain.Event, len(events))
	copy(out, events)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Phenomenon != b.Phenomenon {
			return a.Phenomenon < b.Phenomenon
		}
		if a.Significance != b.Significance {
			return a.Significance < b.Significance
		}
		return a.EventID < b.EventID
	})
	return out
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}

func canonicalSort(records []*domain.VTECRecord) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Phenomenon != b.Phenomenon {
			return a.Phenomenon < b.Phenomenon
		}
		if a.Significance != b.Significance {
			return a.Significance < b.Significance
		}
		if a.ETN != b.ETN {
			return a.ETN < b.ETN
		}
		return recordZone(a) < recordZone(b)
	})
}

func recordZone(r *domain.VTECRecord) string {
	if len(r.UGCZones) > 0 {
		return r.UGCZones[0]
	}
	return r.PointID
}

// Engine binds the pure merge to a namespace's VTEC store: it reads the
// prior active set, merges, and appends under the store's lock.
type Engine struct {
	store   *store.VTECStore
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewEngine creates an engine over the given namespace store.
func NewEngine(vs *store.VTECStore, logger *slog.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{store: vs, logger: logger, metrics: metrics}
}

// Run codes the proposed events for office and persists the outcome. The
// issue time is uniform across the invocation's records.
func (e *Engine) Run(ctx context.Context, office string, proposed []*domain.Event) ([]*domain.VTECRecord, error) {
	if e.metrics != nil {
		e.metrics.EngineInvocations.Inc()
	}

	var records []*domain.VTECRecord
	err := e.store.WithLock(ctx, func() error {
		prior, err := e.store.ActiveRecords(office)
		if err != nil {
			return err
		}

		records, err = Merge(Input{
			Office:    office,
			Mode:      e.store.Mode(),
			IssueTime: domain.Now(),
			Proposed:  proposed,
			Prior:     prior,
		}, e.store)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return e.store.AppendRecords(persistable(records))
	})
	if err != nil {
		if e.metrics != nil {
			e.metrics.EngineFailures.Inc()
		}
		return nil, fmt.Errorf("vtec engine for %s: %w", office, err)
	}

	if e.metrics != nil {
		for _, r := range records {
			e.metrics.RecordsCoded.WithLabelValues(string(r.Action)).Inc()
		}
	}
	e.logger.Info("vtec merge complete", "office", office,
		"proposed", len(proposed), "records", len(records))
	return records, nil
}

// persistable filters out routine records: ROU carries no active-hazard
// semantics and is never tracked against an etn.
func persistable(records []*domain.VTECRecord) []*domain.VTECRecord {
	out := make([]*domain.VTECRecord, 0, len(records))
	for _, r := range records {
		if r.Action == domain.ActionRou {
			continue
		}
		out = append(out, r)
	}
	return out
}
