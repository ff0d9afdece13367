package ugc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var purge = time.Date(2013, time.January, 17, 18, 0, 0, 0, time.UTC)

func TestHeader_SingleZone(t *testing.T) {
	got := Header([]string{"FLC057"}, purge)
	assert.Equal(t, "FLC057-171800-", got)
}

func TestHeader_ConsecutiveRange(t *testing.T) {
	got := Header([]string{"FLZ052", "FLZ053", "FLZ054", "FLZ057"}, purge)
	assert.Equal(t, "FLZ052>054-057-171800-", got)
}

func TestHeader_MixedStates(t *testing.T) {
	got := Header([]string{"FLC057", "GAC101", "FLC053", "GAC102"}, purge)
	// Sorted: FLC053, FLC057, GAC101, GAC102.
	assert.Equal(t, "FLC053-057-GAC101>102-171800-", got)
}

func TestHeader_DropsDuplicates(t *testing.T) {
	got := Header([]string{"FLC057", "FLC057"}, purge)
	assert.Equal(t, "FLC057-171800-", got)
}

func TestHeader_GaugeIDVerbatim(t *testing.T) {
	// Point products carry gauge ids in the geography slot; they pass
	// through uncompacted.
	got := Header([]string{"KSCM6"}, purge)
	assert.Equal(t, "KSCM6-171800-", got)
}

func TestHeader_Empty(t *testing.T) {
	assert.Empty(t, Header(nil, purge))
}

func TestExpand_RoundTrip(t *testing.T) {
	codes := []string{"FLC053", "FLC057", "FLZ052", "FLZ053", "FLZ054", "GAC101"}
	header := Header(codes, purge)

	got, err := Expand("FLC053-057-FLZ052>054-GAC101-")
	require.NoError(t, err)
	assert.Equal(t, codes, got)

	// Header output minus the purge time expands to the same set.
	body := header[:len(header)-len("171800-")]
	got, err = Expand(body)
	require.NoError(t, err)
	assert.Equal(t, codes, got)
}

func TestExpand_Errors(t *testing.T) {
	_, err := Expand("057-")
	require.Error(t, err, "bare number without prefix")

	_, err = Expand("FLZ054>052-")
	require.Error(t, err, "inverted range")
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("FLC057"))
	assert.True(t, Valid("FLZ149"))
	assert.False(t, Valid("KSCM6"))
	assert.False(t, Valid("FLX057"))
	assert.False(t, Valid("flc057"))
}
