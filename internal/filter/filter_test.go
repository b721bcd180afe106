package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threatfeed/internal/domain/entity"
)

func testFilter(t *testing.T) *Filter {
	t.Helper()
	cfg := Config{
		BaseKeywords: []string{"bombing", "ambush"},
		Cooccurrence: []CooccurrenceRule{
			{Rule: "attack+civilian", TokenA: "attack", TokenB: "civilian"},
		},
	}
	f, err := New(cfg)
	require.NoError(t, err)
	return f
}

func TestMatch_EmptyText(t *testing.T) {
	f := testFilter(t)
	match, ok := f.Match("")
	assert.False(t, ok)
	assert.Nil(t, match)
}

func TestMatch_BaseKeyword(t *testing.T) {
	f := testFilter(t)
	match, ok := f.Match("Roadside bombing kills three near checkpoint")
	require.True(t, ok)
	assert.Equal(t, entity.MatchTypeBase, match.MatchType)
	assert.Equal(t, "bombing", match.Keyword)
}

func TestMatch_BaseKeywordIsDiacriticAndCaseInsensitive(t *testing.T) {
	f := testFilter(t)
	match, ok := f.Match("Emboscada en la frontera: AMBÚSH reported")
	require.True(t, ok)
	assert.Equal(t, "ambush", match.Keyword)
}

func TestMatch_BaseWinsOverCooccurrence(t *testing.T) {
	f := testFilter(t)
	match, ok := f.Match("A bombing followed an attack on civilian convoy")
	require.True(t, ok)
	assert.Equal(t, entity.MatchTypeBase, match.MatchType)
}

func TestMatch_Cooccurrence_WithinWindow(t *testing.T) {
	f := testFilter(t)
	match, ok := f.Match("officials say the attack near the border killed several civilian bystanders today")
	require.True(t, ok)
	assert.Equal(t, entity.MatchTypeCooccurrence, match.MatchType)
	assert.Equal(t, "attack+civilian", match.Rule)
}

func TestMatch_Cooccurrence_OutsideWindow(t *testing.T) {
	f := testFilter(t)
	padding := ""
	for i := 0; i < 20; i++ {
		padding += "filler "
	}
	match, ok := f.Match("attack " + padding + "civilian")
	assert.False(t, ok)
	assert.Nil(t, match)
}

func TestMatch_Cooccurrence_ReverseOrder(t *testing.T) {
	f := testFilter(t)
	match, ok := f.Match("civilian bus struck in an attack near the capital")
	require.True(t, ok)
	assert.Equal(t, entity.MatchTypeCooccurrence, match.MatchType)
}

func TestMatch_NoMatch(t *testing.T) {
	f := testFilter(t)
	match, ok := f.Match("local council approves new park budget")
	assert.False(t, ok)
	assert.Nil(t, match)
}

func TestMatch_WordBoundary(t *testing.T) {
	f := testFilter(t)
	// "bombing" embedded inside a longer token ("embombingxyz") must not
	// fire; proves the \b word boundaries work.
	match, ok := f.Match("embombingxyz should not match")
	assert.False(t, ok)
	assert.Nil(t, match)
}

func TestMatch_StrictModeDisablesCooccurrence(t *testing.T) {
	cfg := Config{
		BaseKeywords: []string{"bombing"},
		Cooccurrence: []CooccurrenceRule{
			{Rule: "attack+civilian", TokenA: "attack", TokenB: "civilian"},
		},
		StrictMode: true,
	}
	f, err := New(cfg)
	require.NoError(t, err)

	match, ok := f.Match("officials say the attack near the border killed several civilian bystanders today")
	assert.False(t, ok)
	assert.Nil(t, match)
}

func TestMatch_CustomWindowSizeNarrowsCooccurrence(t *testing.T) {
	cfg := Config{
		Cooccurrence: []CooccurrenceRule{
			{Rule: "attack+civilian", TokenA: "attack", TokenB: "civilian"},
		},
		WindowSize: 2,
	}
	f, err := New(cfg)
	require.NoError(t, err)

	match, ok := f.Match("attack near the civilian convoy")
	assert.False(t, ok)
	assert.Nil(t, match)
}

func TestNew_CompilesDefaultEmbeddedTable(t *testing.T) {
	cfg, err := LoadDefaultConfig()
	require.NoError(t, err)
	require.NotEmpty(t, cfg.BaseKeywords)

	f, err := New(cfg)
	require.NoError(t, err)

	match, ok := f.Match("a roadside bombing killed two soldiers")
	assert.True(t, ok)
	assert.NotNil(t, match)
}
