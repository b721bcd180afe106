package gazetteer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmbeddedTable(t *testing.T) {
	g, err := Load()
	require.NoError(t, err)

	entry, ok := g.MatchCity("Heavy shelling reported in Baghdad overnight")
	require.True(t, ok)
	assert.Equal(t, "Iraq", entry.Country)
}

func TestMatchCity_NoMatch(t *testing.T) {
	g, err := Load()
	require.NoError(t, err)
	_, ok := g.MatchCity("a quiet town council meeting")
	assert.False(t, ok)
}

func TestCentroid_CaseInsensitive(t *testing.T) {
	g, err := Load()
	require.NoError(t, err)
	entry, ok := g.Centroid("LIBYA")
	require.True(t, ok)
	assert.InDelta(t, 26.3351, entry.Lat, 0.001)
}

func TestCentroid_Unknown(t *testing.T) {
	g, err := Load()
	require.NoError(t, err)
	_, ok := g.Centroid("Nowhereland")
	assert.False(t, ok)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("cities: [unterminated"))
	assert.Error(t, err)
}
