package domain

import "fmt"

// Action is a VTEC action code.
type Action string

const (
	ActionNew Action = "NEW" // first issuance for this etn in this zone
	ActionCon Action = "CON" // continue with no material change
	ActionExt Action = "EXT" // start or end time extended
	ActionExa Action = "EXA" // zones added to an existing event
	ActionExb Action = "EXB" // zones added and times changed
	ActionUpg Action = "UPG" // replaced by a higher-priority hazard
	ActionCan Action = "CAN" // cancelled before end time
	ActionExp Action = "EXP" // end time reached
	ActionRou Action = "ROU" // routine, no active-hazard semantics
)

// Terminal reports whether the action closes its etn forever.
func (a Action) Terminal() bool {
	return a == ActionCan || a == ActionExp || a == ActionUpg
}

// Mode selects the record namespace. The three namespaces are disjoint; a
// session writes into exactly one, so practice and test runs never collide
// with operational etns.
type Mode string

const (
	ModeOperational  Mode = "operational"
	ModePractice     Mode = "practice"
	ModeTest         Mode = "test"
	ModeExperimental Mode = "experimental"
)

// ProductClass returns the single-letter VTEC product-class field for the mode.
func (m Mode) ProductClass() string {
	switch m {
	case ModeTest, ModePractice:
		return "T"
	case ModeExperimental:
		return "E"
	default:
		return "O"
	}
}

// VTECRecord is the persisted outcome of one coding decision for one
// (event, zone set). Times are epoch milliseconds UTC; zero start or end time
// renders as the all-zero wire time.
type VTECRecord struct {
	Office       string `json:"office"` // four-character issuing office
	Phenomenon   string `json:"phen"`
	Significance string `json:"sig"`
	ETN          int    `json:"etn"`

	Action    Action `json:"act"`
	Mode      Mode   `json:"mode"`
	StartTime int64  `json:"start_time"`
	EndTime   int64  `json:"end_time"`
	IssueTime int64  `json:"issue_time"`

	EventID  string   `json:"event_id,omitempty"`
	PIL      string   `json:"pil,omitempty"` // product identifier letters, e.g. FLW
	UGCZones []string `json:"ugc_zones,omitempty"`
	PointID  string   `json:"point_id,omitempty"` // point hazards only

	// Hydrologic fields for the /POINTID.SEV.CAU..../ line.
	FloodSeverity  string `json:"flood_severity,omitempty"` // N, 0, 1, 2, 3
	ImmediateCause string `json:"immediate_cause,omitempty"`
	RiseAbove      int64  `json:"rise_above,omitempty"`
	Crest          int64  `json:"crest,omitempty"`
	FallBelow      int64  `json:"fall_below,omitempty"`
	FloodRecord    string `json:"flood_record,omitempty"` // NO, NR, UU, OO
}

// PhenSig returns the phen.sig pair.
func (r *VTECRecord) PhenSig() string {
	return r.Phenomenon + "." + r.Significance
}

// Key identifies the record within its mode's store.
func (r *VTECRecord) Key() string {
	return fmt.Sprintf("%s.%s.%s.%04d", r.Office, r.Phenomenon, r.Significance, r.ETN)
}

// Active reports whether the record still tracks a live hazard: non-terminal
// action and end time not yet past (a zero end time means until further
// notice and is always active).
func (r *VTECRecord) Active(nowMillis int64) bool {
	if r.Action.Terminal() {
		return false
	}
	if r.EndTime == 0 {
		return true
	}
	return r.EndTime > nowMillis
}

// CoversZone reports whether zone is in the record's zone set.
func (r *VTECRecord) CoversZone(zone string) bool {
	for _, z := range r.UGCZones {
		if z == zone {
			return true
		}
	}
	return false
}

// Copy returns a copy with its own zone slice.
func (r *VTECRecord) Copy() *VTECRecord {
	dup := *r
	if r.UGCZones != nil {
		dup.UGCZones = make([]string, len(r.UGCZones))
		copy(dup.UGCZones, r.UGCZones)
	}
	return &dup
}
