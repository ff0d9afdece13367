package product

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hazard-services/internal/domain"
)

func TestRenderPointWarningSkeleton(t *testing.T) {
	r := pointRec("FL", "W", 1, domain.ActionNew, "KSCM6", "e1")
	events := map[string]*domain.Event{"e1": pointEvent("e1", "KSCM6", "Cedar River")}

	products, err := Group(events, []*domain.VTECRecord{r}, DefaultPolicy())
	require.NoError(t, err)
	require.Len(t, products, 1)

	text := NewRenderer("KTBW", r.IssueTime).Render(products[0])

	assert.Contains(t, text, "FLWTBW")
	assert.Contains(t, text, "FLOOD WARNING")
	assert.Contains(t, text, "National Weather Service TBW")
	assert.Contains(t, text, "KSCM6-180300-")
	assert.Contains(t, text, "/O.NEW.KTBW.FL.W.0001.130117T0000Z-130118T0300Z/")
	assert.Contains(t, text, "/KSCM6.")
	assert.Contains(t, text, "$$")
}

func TestRenderAreaSegmentsInOrder(t *testing.T) {
	records := []*domain.VTECRecord{
		rec("FF", "W", 1, domain.ActionCon, "FLC017"),
		rec("FF", "W", 1, domain.ActionCan, "FLC053"),
	}
	products, err := Group(nil, records, DefaultPolicy())
	require.NoError(t, err)
	require.Len(t, products, 1)

	text := NewRenderer("KTBW", records[0].IssueTime).Render(products[0])

	conAt := strings.Index(text, "/O.CON.KTBW.FF.W.0001.")
	canAt := strings.Index(text, "/O.CAN.KTBW.FF.W.0001.")
	require.GreaterOrEqual(t, conAt, 0)
	require.GreaterOrEqual(t, canAt, 0)
	assert.Less(t, conAt, canAt)

	assert.Contains(t, text, "FLC017-180300-")
	assert.Equal(t, 2, strings.Count(text, "$$"))
}

func TestRenderUntilFurtherNoticeUsesPurge(t *testing.T) {
	r := rec("FA", "W", 3, domain.ActionNew, "FLC017")
	r.EndTime = 0
	products, err := Group(nil, []*domain.VTECRecord{r}, DefaultPolicy())
	require.NoError(t, err)

	text := NewRenderer("KTBW", r.IssueTime).Render(products[0])

	// Issuance 2013-01-17 00:00Z plus the one-hour default purge.
	assert.Contains(t, text, "FLC017-170100-")
	assert.Contains(t, text, "000000T0000Z/")
}
