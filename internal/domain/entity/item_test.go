package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUID_Deterministic(t *testing.T) {
	a := UUID("Title", "https://example.com/a")
	b := UUID("Title", "https://example.com/a")
	assert.Equal(t, a, b)
}

func TestUUID_TitleTruncationChangesID(t *testing.T) {
	full := UUID("Attack on convoy near border", "https://example.com/a")
	truncated := UUID("Attack on convoy near bord", "https://example.com/a")
	assert.NotEqual(t, full, truncated, "truncated titles are a distinct entry by design, see DESIGN.md")
}

func TestContentHash_Deterministic(t *testing.T) {
	h1 := ContentHash("Title", "https://example.com/a")
	h2 := ContentHash("Title", "https://example.com/a")
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 32)
}

func TestNewRawItem(t *testing.T) {
	now := time.Now()
	e := Entry{
		SourceID:    7,
		Title:       "Checkpoint closed",
		Link:        "https://example.com/x",
		Summary:     "Border checkpoint closed after incident",
		PublishedAt: now,
		FetchedAt:   now,
	}
	item := NewRawItem(e)
	require.Equal(t, UUID(e.Title, e.Link), item.UUID)
	assert.Equal(t, ContentHash(e.Title, e.Link), item.ContentHash)
	assert.Equal(t, e.SourceID, item.SourceID)
	assert.Equal(t, e.Summary, item.Summary)
	assert.Equal(t, []string{}, item.Tags)
}

func TestNewRawItem_TagsFromKWMatch(t *testing.T) {
	e := Entry{
		Title:   "Checkpoint closed",
		Link:    "https://example.com/x",
		KWMatch: &KWMatch{Keyword: "checkpoint", MatchType: MatchTypeBase},
	}
	item := NewRawItem(e)
	assert.Equal(t, []string{"checkpoint"}, item.Tags)
}

func TestEnrichedAlert_HasLocation(t *testing.T) {
	lat, lon := 34.0, -6.8

	cases := []struct {
		name  string
		alert EnrichedAlert
		want  bool
	}{
		{"coords present", EnrichedAlert{Lat: &lat, Lon: &lon}, true},
		{"country present", EnrichedAlert{Country: "Morocco"}, true},
		{"neither present", EnrichedAlert{}, false},
		{"blank country only", EnrichedAlert{Country: "   "}, false},
		{"lat without lon", EnrichedAlert{Lat: &lat}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.alert.HasLocation())
		})
	}
}

func TestEnrichedAlert_ScoreInRange(t *testing.T) {
	cases := []struct {
		name  string
		alert EnrichedAlert
		want  bool
	}{
		{"in range", EnrichedAlert{Score: 75, Confidence: 0.8}, true},
		{"boundary low", EnrichedAlert{Score: 0, Confidence: 0}, true},
		{"boundary high", EnrichedAlert{Score: 100, Confidence: 1}, true},
		{"score too high", EnrichedAlert{Score: 500, Confidence: 0.5}, false},
		{"score negative", EnrichedAlert{Score: -1, Confidence: 0.5}, false},
		{"confidence too high", EnrichedAlert{Score: 50, Confidence: 2}, false},
		{"confidence negative", EnrichedAlert{Score: 50, Confidence: -0.1}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.alert.ScoreInRange())
		})
	}
}
