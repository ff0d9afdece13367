package vtec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hazard-services/internal/domain"
)

var (
	t0  = time.Date(2013, time.January, 17, 0, 0, 0, 0, time.UTC)  // start
	t1  = time.Date(2013, time.January, 18, 3, 0, 0, 0, time.UTC)  // end
	ms0 = domain.ToMillis(t0)
	ms1 = domain.ToMillis(t1)
)

func pointEvent(id, gauge string) *domain.Event {
	return &domain.Event{
		EventID:      id,
		SiteID:       "KTBW",
		Phenomenon:   "FL",
		Significance: "W",
		Status:       domain.StatusProposed,
		StartTime:    ms0,
		EndTime:      ms1,
		GeoType:      domain.GeoTypePoint,
		PointID:      gauge,
		Attributes: domain.AttrMap{
			domain.AttrFloodSeverity:  "1",
			domain.AttrImmediateCause: "ER",
			domain.AttrFloodRecord:    "NO",
			domain.AttrRiseAbove:      ms0,
			domain.AttrCrest:          ms0,
			domain.AttrFallBelow:      domain.ToMillis(t0.Add(12 * time.Hour)),
		},
	}
}

func areaEvent(id, phen, sig string, zones ...string) *domain.Event {
	return &domain.Event{
		EventID:      id,
		SiteID:       "KTBW",
		Phenomenon:   phen,
		Significance: sig,
		Status:       domain.StatusProposed,
		StartTime:    ms0,
		EndTime:      ms1,
		GeoType:      domain.GeoTypeArea,
		Attributes:   domain.AttrMap{domain.AttrUGCs: zones},
	}
}

func merge(t *testing.T, in Input) []*domain.VTECRecord {
	t.Helper()
	records, err := Merge(in, MapETNSource{})
	require.NoError(t, err)
	return records
}

// First FL.W issuance for a gauge gets NEW and etn 0001.
func TestMerge_FirstIssuance(t *testing.T) {
	records := merge(t, Input{
		Office:    "KTBW",
		IssueTime: ms0,
		Proposed:  []*domain.Event{pointEvent("evt-1", "KSCM6")},
	})

	require.Len(t, records, 1)
	r := records[0]
	assert.Equal(t, domain.ActionNew, r.Action)
	assert.Equal(t, 1, r.ETN)

	assert.Equal(t, "/O.NEW.KTBW.FL.W.0001.130117T0000Z-130118T0300Z/", EncodeLine(r))
	assert.Equal(t, "/KSCM6.1.ER.130117T0000Z.130117T0000Z.130117T1200Z.NO/", EncodeHydroLine(r))
}

func TestMerge_EmptyPriorAllNew_ETNsSequencePerPhenSig(t *testing.T) {
	records := merge(t, Input{
		Office:    "KTBW",
		IssueTime: ms0,
		Proposed: []*domain.Event{
			pointEvent("evt-a", "KSCM6"),
			pointEvent("evt-b", "PIEF1"),
			areaEvent("evt-c", "FF", "W", "FLC057"),
		},
	})

	require.Len(t, records, 3)
	for _, r := range records {
		assert.Equal(t, domain.ActionNew, r.Action)
	}
	// Canonical order: FF.W first, then FL.W by zone; etns 1,2,... per phensig.
	assert.Equal(t, "KTBW.FF.W.0001", records[0].Key())
	assert.Equal(t, "KTBW.FL.W.0001", records[1].Key())
	assert.Equal(t, "KTBW.FL.W.0002", records[2].Key())
	assert.Equal(t, "KSCM6", records[1].PointID)
	assert.Equal(t, "PIEF1", records[2].PointID)
}

// Unchanged event set at a later time yields all CON preserving etns.
func TestMerge_UnchangedReissueIsCON(t *testing.T) {
	ev := pointEvent("evt-1", "KSCM6")
	first := merge(t, Input{Office: "KTBW", IssueTime: ms0, Proposed: []*domain.Event{ev}})

	later := domain.ToMillis(t0.Add(time.Hour))
	second := merge(t, Input{
		Office:    "KTBW",
		IssueTime: later,
		Proposed:  []*domain.Event{ev},
		Prior:     first,
	})

	require.Len(t, second, 1)
	assert.Equal(t, domain.ActionCon, second[0].Action)
	assert.Equal(t, first[0].ETN, second[0].ETN)
	// Once underway, the start field renders as the all-zero time.
	assert.Equal(t, "/O.CON.KTBW.FL.W.0001.000000T0000Z-130118T0300Z/", EncodeLine(second[0]))
}

// Crest adjustment without a start or end change is still CON.
func TestMerge_AttributeChangeOnlyIsCON(t *testing.T) {
	ev := pointEvent("evt-1", "KSCM6")
	first := merge(t, Input{Office: "KTBW", IssueTime: ms0, Proposed: []*domain.Event{ev}})

	revised := pointEvent("evt-1", "KSCM6")
	revised.Attributes[domain.AttrCrest] = domain.ToMillis(t0.Add(2 * time.Hour))

	second := merge(t, Input{
		Office:    "KTBW",
		IssueTime: domain.ToMillis(t0.Add(time.Hour)),
		Proposed:  []*domain.Event{revised},
		Prior:     first,
	})

	require.Len(t, second, 1)
	assert.Equal(t, domain.ActionCon, second[0].Action)
	assert.Equal(t, "/KSCM6.1.ER.130117T0000Z.130117T0200Z.130117T1200Z.NO/", EncodeHydroLine(second[0]))
}

func TestMerge_TimeChangeIsEXT(t *testing.T) {
	ev := pointEvent("evt-1", "KSCM6")
	first := merge(t, Input{Office: "KTBW", IssueTime: ms0, Proposed: []*domain.Event{ev}})

	extended := pointEvent("evt-1", "KSCM6")
	extended.EndTime = domain.ToMillis(t1.Add(6 * time.Hour))

	second := merge(t, Input{
		Office:    "KTBW",
		IssueTime: domain.ToMillis(t0.Add(time.Hour)),
		Proposed:  []*domain.Event{extended},
		Prior:     first,
	})

	require.Len(t, second, 1)
	assert.Equal(t, domain.ActionExt, second[0].Action)
	assert.Equal(t, 1, second[0].ETN)
}

// An operator cancel well before the end time codes CAN, not EXP.
func TestMerge_CancelBeforeEnd(t *testing.T) {
	ev := pointEvent("evt-1", "KSCM6")
	first := merge(t, Input{Office: "KTBW", IssueTime: ms0, Proposed: []*domain.Event{ev}})

	ending := pointEvent("evt-1", "KSCM6")
	ending.Status = domain.StatusEnding

	cancelAt := domain.ToMillis(time.Date(2013, time.January, 18, 0, 0, 0, 0, time.UTC))
	second := merge(t, Input{
		Office:    "KTBW",
		IssueTime: cancelAt,
		Proposed:  []*domain.Event{ending},
		Prior:     first,
	})

	require.Len(t, second, 1)
	assert.Equal(t, domain.ActionCan, second[0].Action)
	assert.Equal(t, "/O.CAN.KTBW.FL.W.0001.000000T0000Z-130118T0300Z/", EncodeLine(second[0]))
}

// An event absent from the proposal terminates; past end time codes EXP.
func TestMerge_AbsentEventExpiresAfterEnd(t *testing.T) {
	ev := pointEvent("evt-1", "KSCM6")
	first := merge(t, Input{Office: "KTBW", IssueTime: ms0, Proposed: []*domain.Event{ev}})

	after := domain.ToMillis(t1.Add(time.Minute))
	second := merge(t, Input{Office: "KTBW", IssueTime: after, Prior: first})

	require.Len(t, second, 1)
	assert.Equal(t, domain.ActionExp, second[0].Action)
	assert.Equal(t, 1, second[0].ETN)
}

func TestMerge_EXPWithinHalfHourOfEnd(t *testing.T) {
	ev := pointEvent("evt-1", "KSCM6")
	first := merge(t, Input{Office: "KTBW", IssueTime: ms0, Proposed: []*domain.Event{ev}})

	nearEnd := domain.ToMillis(t1.Add(-15 * time.Minute))
	second := merge(t, Input{Office: "KTBW", IssueTime: nearEnd, Prior: first})
	require.Len(t, second, 1)
	assert.Equal(t, domain.ActionExp, second[0].Action)

	wellBefore := domain.ToMillis(t1.Add(-2 * time.Hour))
	third := merge(t, Input{Office: "KTBW", IssueTime: wellBefore, Prior: first})
	require.Len(t, third, 1)
	assert.Equal(t, domain.ActionCan, third[0].Action)
}

// Two concurrent point events advance independently: one cancels while
// the other extends, each keeping its own etn.
func TestMerge_MixedCancelAndExtend(t *testing.T) {
	a := pointEvent("evt-a", "KSCM6")
	b := pointEvent("evt-b", "PIEF1")
	first := merge(t, Input{Office: "KTBW", IssueTime: ms0, Proposed: []*domain.Event{a, b}})
	require.Len(t, first, 2)

	cancelled := pointEvent("evt-a", "KSCM6")
	cancelled.Status = domain.StatusEnding
	extended := pointEvent("evt-b", "PIEF1")
	extended.EndTime = domain.ToMillis(t1.Add(6 * time.Hour))

	second := merge(t, Input{
		Office:    "KTBW",
		IssueTime: domain.ToMillis(t0.Add(2 * time.Hour)),
		Proposed:  []*domain.Event{cancelled, extended},
		Prior:     first,
	})

	require.Len(t, second, 2)
	assert.Equal(t, domain.ActionCan, second[0].Action)
	assert.Equal(t, "KSCM6", second[0].PointID)
	assert.Equal(t, domain.ActionExt, second[1].Action)
	assert.Equal(t, "PIEF1", second[1].PointID)
	assert.Equal(t, first[1].ETN, second[1].ETN)
}

// Replacing an advisory with a warning codes UPG on the old line and NEW
// on the replacement.
func TestMerge_AdvisoryToWarningUpgrade(t *testing.T) {
	advisory := areaEvent("evt-y", "FL", "Y", "FLC057")
	first := merge(t, Input{Office: "KTBW", IssueTime: ms0, Proposed: []*domain.Event{advisory}})
	require.Len(t, first, 1)

	warning := areaEvent("evt-w", "FL", "W", "FLC057")
	warning.StartTime = ms1 // begins exactly as the advisory ends

	second := merge(t, Input{
		Office:    "KTBW",
		IssueTime: domain.ToMillis(t0.Add(time.Hour)),
		Proposed:  []*domain.Event{warning},
		Prior:     first,
	})

	require.Len(t, second, 2)
	// Canonical order: FL.W before FL.Y.
	assert.Equal(t, domain.ActionNew, second[0].Action)
	assert.Equal(t, "FL.W", second[0].PhenSig())
	assert.Equal(t, domain.ActionUpg, second[1].Action)
	assert.Equal(t, "FL.Y", second[1].PhenSig())
}

func TestMerge_ZoneAddIsEXA_WithTimeChangeEXB(t *testing.T) {
	ev := areaEvent("evt-1", "FA", "W", "FLC057")
	first := merge(t, Input{Office: "KTBW", IssueTime: ms0, Proposed: []*domain.Event{ev}})

	// Add a zone, times unchanged: retained zone CON, new zone EXA.
	grown := areaEvent("evt-1", "FA", "W", "FLC057", "FLC101")
	second := merge(t, Input{
		Office:    "KTBW",
		IssueTime: domain.ToMillis(t0.Add(time.Hour)),
		Proposed:  []*domain.Event{grown},
		Prior:     first,
	})
	require.Len(t, second, 2)
	actions := map[string]domain.Action{}
	for _, r := range second {
		actions[r.UGCZones[0]] = r.Action
	}
	assert.Equal(t, domain.ActionCon, actions["FLC057"])
	assert.Equal(t, domain.ActionExa, actions["FLC101"])

	// Add a zone and extend: EXT + EXB.
	grownLonger := areaEvent("evt-1", "FA", "W", "FLC057", "FLC101")
	grownLonger.EndTime = domain.ToMillis(t1.Add(3 * time.Hour))
	third := merge(t, Input{
		Office:    "KTBW",
		IssueTime: domain.ToMillis(t0.Add(time.Hour)),
		Proposed:  []*domain.Event{grownLonger},
		Prior:     first,
	})
	require.Len(t, third, 2)
	actions = map[string]domain.Action{}
	for _, r := range third {
		actions[r.UGCZones[0]] = r.Action
	}
	assert.Equal(t, domain.ActionExt, actions["FLC057"])
	assert.Equal(t, domain.ActionExb, actions["FLC101"])
}

func TestMerge_ZoneDropCancelsJustThatZone(t *testing.T) {
	ev := areaEvent("evt-1", "FA", "W", "FLC057", "FLC101")
	first := merge(t, Input{Office: "KTBW", IssueTime: ms0, Proposed: []*domain.Event{ev}})
	require.Len(t, first, 1)
	assert.Equal(t, []string{"FLC057", "FLC101"}, first[0].UGCZones)

	shrunk := areaEvent("evt-1", "FA", "W", "FLC057")
	second := merge(t, Input{
		Office:    "KTBW",
		IssueTime: domain.ToMillis(t0.Add(time.Hour)),
		Proposed:  []*domain.Event{shrunk},
		Prior:     first,
	})
	require.Len(t, second, 2)
	actions := map[string]domain.Action{}
	for _, r := range second {
		actions[r.UGCZones[0]] = r.Action
	}
	assert.Equal(t, domain.ActionCon, actions["FLC057"])
	assert.Equal(t, domain.ActionCan, actions["FLC101"])
}

func TestMerge_HYSGetsROU(t *testing.T) {
	hys := pointEvent("evt-s", "KSCM6")
	hys.Phenomenon = "HY"
	hys.Significance = "S"

	records := merge(t, Input{Office: "KTBW", IssueTime: ms0, Proposed: []*domain.Event{hys}})
	require.Len(t, records, 1)
	assert.Equal(t, domain.ActionRou, records[0].Action)
	assert.Equal(t, 0, records[0].ETN)
}

func TestMerge_TerminalPriorRejected(t *testing.T) {
	terminal := &domain.VTECRecord{
		Office: "KTBW", Phenomenon: "FL", Significance: "W", ETN: 1,
		Action: domain.ActionCan, Mode: domain.ModeOperational,
		StartTime: ms0, EndTime: ms1, IssueTime: ms0, PointID: "KSCM6",
	}
	_, err := Merge(Input{Office: "KTBW", IssueTime: ms0, Prior: []*domain.VTECRecord{terminal}}, MapETNSource{})
	require.ErrorIs(t, err, domain.ErrIllegalTransition)
}

func TestMerge_ETNContinuesFromSource(t *testing.T) {
	records, err := Merge(Input{
		Office:    "KTBW",
		IssueTime: ms0,
		Proposed:  []*domain.Event{pointEvent("evt-1", "KSCM6")},
	}, MapETNSource{"KTBW.FL.W": 41})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 42, records[0].ETN)
}

func TestMerge_Deterministic(t *testing.T) {
	in := Input{
		Office:    "KTBW",
		IssueTime: ms0,
		Proposed: []*domain.Event{
			areaEvent("evt-c", "FF", "W", "FLC057"),
			pointEvent("evt-b", "PIEF1"),
			pointEvent("evt-a", "KSCM6"),
		},
	}

	first := merge(t, in)
	for i := 0; i < 5; i++ {
		again := merge(t, in)
		require.Len(t, again, len(first))
		for j := range first {
			assert.Equal(t, first[j].Key(), again[j].Key())
			assert.Equal(t, first[j].Action, again[j].Action)
		}
	}
}

func TestMerge_WrongSiteRejected(t *testing.T) {
	ev := pointEvent("evt-1", "KSCM6")
	_, err := Merge(Input{Office: "KMLB", IssueTime: ms0, Proposed: []*domain.Event{ev}}, MapETNSource{})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}
