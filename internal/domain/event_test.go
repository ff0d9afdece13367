package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_HazardType(t *testing.T) {
	e := &Event{Phenomenon: "FF", Significance: "W"}
	assert.Equal(t, "FF.W", e.HazardType())

	e.SubType = "BurnScar"
	assert.Equal(t, "FF.W.BurnScar", e.HazardType())
	assert.Equal(t, "FF.W", e.PhenSig())
}

func TestEvent_Validate(t *testing.T) {
	valid := Event{
		SiteID:       "KTBW",
		Phenomenon:   "FL",
		Significance: "W",
		StartTime:    1000,
		EndTime:      2000,
		GeoType:      GeoTypePoint,
		PointID:      "KSCM6",
	}

	tests := []struct {
		name    string
		mutate  func(*Event)
		wantErr bool
	}{
		{name: "valid point event", mutate: func(*Event) {}},
		{name: "bad site", mutate: func(e *Event) { e.SiteID = "TBW" }, wantErr: true},
		{name: "bad phen", mutate: func(e *Event) { e.Phenomenon = "FLW" }, wantErr: true},
		{name: "bad sig", mutate: func(e *Event) { e.Significance = "X" }, wantErr: true},
		{name: "start after end", mutate: func(e *Event) { e.StartTime = 3000 }, wantErr: true},
		{name: "point without gauge", mutate: func(e *Event) { e.PointID = "" }, wantErr: true},
		{name: "open end time", mutate: func(e *Event) { e.EndTime = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid
			tt.mutate(&e)
			err := e.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestStatus_Transitions(t *testing.T) {
	assert.True(t, StatusPending.CanTransition(StatusProposed))
	assert.True(t, StatusProposed.CanTransition(StatusPending)) // review cycle
	assert.True(t, StatusProposed.CanTransition(StatusIssued))
	assert.True(t, StatusIssued.CanTransition(StatusEnding))
	assert.True(t, StatusEnding.CanTransition(StatusEnded))
	assert.False(t, StatusEnded.CanTransition(StatusIssued))
	assert.False(t, StatusElapsed.CanTransition(StatusPending))
	assert.False(t, StatusIssued.CanTransition(StatusProposed))
}

func TestEvent_Copy_DoesNotAlias(t *testing.T) {
	e := &Event{
		EventID: "abc",
		Attributes: AttrMap{
			AttrUGCs: []string{"FLC057"},
			"nested": map[string]any{"k": "v"},
		},
		Geometry: &Geometry{Kind: GeometryPolygon, Rings: []Ring{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}},
	}

	dup := e.Copy()
	dup.Attributes[AttrUGCs].([]string)[0] = "FLC101"
	dup.Attributes["nested"].(map[string]any)["k"] = "changed"
	dup.Geometry.Rings[0][0] = Coord{9, 9}

	assert.Equal(t, "FLC057", e.Attributes.StringSlice(AttrUGCs)[0])
	assert.Equal(t, "v", e.Attributes["nested"].(map[string]any)["k"])
	assert.Equal(t, Coord{0, 0}, e.Geometry.Rings[0][0])
}

func TestAttrMap_Accessors(t *testing.T) {
	m := AttrMap{
		"s":    "text",
		"b":    true,
		"i":    int64(42),
		"f":    3.5,
		"list": []any{"a", "b", 7},
	}

	assert.Equal(t, "text", m.String("s"))
	assert.True(t, m.Bool("b"))
	assert.Equal(t, int64(42), m.Int64("i"))
	assert.Equal(t, int64(3), m.Int64("f")) // json numbers arrive as float64
	assert.Equal(t, 3.5, m.Float64("f"))
	assert.Equal(t, []string{"a", "b"}, m.StringSlice("list"))
	assert.Empty(t, m.String("missing"))
}

func TestEvent_JSONRoundTrip(t *testing.T) {
	e := &Event{
		EventID:      "evt-1",
		SiteID:       "KTBW",
		Phenomenon:   "FL",
		Significance: "W",
		Status:       StatusIssued,
		StartTime:    1358380800000,
		EndTime:      1358478000000,
		GeoType:      GeoTypePoint,
		PointID:      "KSCM6",
		Attributes:   AttrMap{AttrImmediateCause: "ER", AttrFloodSeverity: "1"},
	}

	data, err := json.Marshal(e)
	require.NoError(t, err)

	var back Event
	require.NoError(t, json.Unmarshal(data, &back))
	if diff := cmp.Diff(e, &back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestVTECRecord_Active(t *testing.T) {
	r := &VTECRecord{Action: ActionCon, EndTime: 1000}
	assert.True(t, r.Active(500))
	assert.False(t, r.Active(1000))

	r.EndTime = 0 // until further notice
	assert.True(t, r.Active(1<<60))

	r.Action = ActionCan
	assert.False(t, r.Active(0))
}

func TestAction_Terminal(t *testing.T) {
	for _, a := range []Action{ActionCan, ActionExp, ActionUpg} {
		assert.True(t, a.Terminal(), string(a))
	}
	for _, a := range []Action{ActionNew, ActionCon, ActionExt, ActionExa, ActionExb, ActionRou} {
		assert.False(t, a.Terminal(), string(a))
	}
}

func TestMode_ProductClass(t *testing.T) {
	assert.Equal(t, "O", ModeOperational.ProductClass())
	assert.Equal(t, "T", ModePractice.ProductClass())
	assert.Equal(t, "T", ModeTest.ProductClass())
	assert.Equal(t, "E", ModeExperimental.ProductClass())
}
