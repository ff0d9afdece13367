package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Status is the lifecycle state of a hazard event. Transitions are monotonic
// except that pending and proposed may cycle while the operator reviews.
type Status string

const (
	StatusPotential Status = "potential"
	StatusPending   Status = "pending"
	StatusProposed  Status = "proposed"
	StatusIssued    Status = "issued"
	StatusEnding    Status = "ending"
	StatusEnded     Status = "ended"
	StatusElapsed   Status = "elapsed"
	StatusDeleted   Status = "deleted"
)

// Terminal reports whether no further lifecycle transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusEnded || s == StatusElapsed || s == StatusDeleted
}

// statusRank orders the monotonic portion of the lifecycle.
var statusRank = map[Status]int{
	StatusPotential: 0,
	StatusPending:   1,
	StatusProposed:  1, // pending<->proposed may cycle
	StatusIssued:    2,
	StatusEnding:    3,
	StatusEnded:     4,
	StatusElapsed:   4,
	StatusDeleted:   4,
}

// CanTransition reports whether moving from s to next respects status
// monotonicity. ended/elapsed/deleted admit no exit.
func (s Status) CanTransition(next Status) bool {
	if s.Terminal() {
		return false
	}
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to >= from
}

// GeoType distinguishes zone-based hazards from gauge-point hazards.
type GeoType string

const (
	GeoTypeArea  GeoType = "area"
	GeoTypePoint GeoType = "point"
)

// Well-known attribute keys. The attribute bag is open; these are the keys
// the core itself reads or writes.
const (
	AttrUGCs               = "ugcs"
	AttrPointID            = "pointID"
	AttrStreamName         = "streamName"
	AttrImmediateCause     = "immediateCause"
	AttrFloodSeverity      = "floodSeverity"
	AttrFloodRecord        = "floodRecord"
	AttrHydrologicCause    = "hydrologicCause"
	AttrRiseAbove          = "riseAbove"
	AttrCrest              = "crest"
	AttrFallBelow          = "fallBelow"
	AttrCTA                = "cta"
	AttrETNs               = "etns"
	AttrVTECCodes          = "vtecCodes"
	AttrPILs               = "pils"
	AttrLocked             = "locked"
	AttrBurnScarName       = "burnScarName"
	AttrProbObjectID       = "probObjectID"
	AttrGeometryAutomated  = "geometryAutomated"
	AttrMotionAutomated    = "motionAutomated"
	AttrProbTrendAutomated = "probTrendAutomated"
)

// Event is the unit of hazard bookkeeping.
type Event struct {
	EventID string `json:"event_id"`
	SiteID  string `json:"site_id"` // four-character office identifier, e.g. KTBW

	Phenomenon   string `json:"phen"` // two-character code, e.g. FF, FL, FA
	Significance string `json:"sig"`  // one character: W, A, Y, S
	SubType      string `json:"sub_type,omitempty"`

	Status Status `json:"status"`

	// Times in epoch milliseconds UTC. Zero means unset.
	CreationTime   int64 `json:"creation_time"`
	IssueTime      int64 `json:"issue_time,omitempty"`
	StartTime      int64 `json:"start_time"`
	EndTime        int64 `json:"end_time"`
	ExpirationTime int64 `json:"expiration_time,omitempty"`

	GeoType  GeoType   `json:"geo_type"`
	Geometry *Geometry `json:"geometry,omitempty"`
	PointID  string    `json:"point_id,omitempty"` // gauge identifier for point hazards

	Attributes AttrMap `json:"attributes,omitempty"`
}

// HazardType returns phen.sig or phen.sig.subType.
func (e *Event) HazardType() string {
	ht := e.Phenomenon + "." + e.Significance
	if e.SubType != "" {
		ht += "." + e.SubType
	}
	return ht
}

// PhenSig returns the phen.sig pair without the subtype.
func (e *Event) PhenSig() string {
	return e.Phenomenon + "." + e.Significance
}

// UGCs returns the event's zone codes, sorted, from the attribute bag. Point
// hazards without explicit zones return the pointID as the sole geography.
func (e *Event) UGCs() []string {
	zones := e.Attributes.StringSlice(AttrUGCs)
	if len(zones) == 0 && e.GeoType == GeoTypePoint && e.PointID != "" {
		return []string{e.PointID}
	}
	sorted := make([]string, len(zones))
	copy(sorted, zones)
	sort.Strings(sorted)
	return sorted
}

// Validate checks the event invariants that hold independent of store state.
func (e *Event) Validate() error {
	if e.SiteID == "" || len(e.SiteID) != 4 {
		return fmt.Errorf("%w: site id %q must be four characters", ErrInvalidInput, e.SiteID)
	}
	if len(e.Phenomenon) != 2 {
		return fmt.Errorf("%w: phenomenon %q must be two characters", ErrInvalidInput, e.Phenomenon)
	}
	if !strings.Contains("WAYS", e.Significance) || len(e.Significance) != 1 {
		return fmt.Errorf("%w: significance %q must be one of W, A, Y, S", ErrInvalidInput, e.Significance)
	}
	if e.EndTime != 0 && e.StartTime > e.EndTime {
		return fmt.Errorf("%w: start time %d after end time %d", ErrInvalidInput, e.StartTime, e.EndTime)
	}
	if e.GeoType == GeoTypePoint && e.PointID == "" {
		return fmt.Errorf("%w: point hazard requires a point id", ErrInvalidInput)
	}
	return nil
}

// Copy returns a deep copy so callers can mutate without aliasing the store.
func (e *Event) Copy() *Event {
	dup := *e
	dup.Attributes = e.Attributes.Copy()
	if e.Geometry != nil {
		g := e.Geometry.Copy()
		dup.Geometry = &g
	}
	return &dup
}

// ToTime converts epoch milliseconds to a UTC time.Time.
func ToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// ToMillis converts a time.Time to epoch milliseconds.
func ToMillis(t time.Time) int64 {
	return t.UnixMilli()
}
