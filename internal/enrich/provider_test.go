package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAssessment_PlainJSON(t *testing.T) {
	reply := `{"category":"violence","subcategory":"bombing","threat_label":"high","score":85,"confidence":0.9,"reasoning":"explosive device detonated"}`

	a, err := parseAssessment(reply)

	require.NoError(t, err)
	assert.Equal(t, "high", a.ThreatLabel)
	assert.Equal(t, 85.0, a.Score)
}

func TestParseAssessment_WrappedInProseAndCodeFence(t *testing.T) {
	reply := "Here is my assessment:\n```json\n" +
		`{"category":"crime","subcategory":"robbery","threat_label":"medium","score":40,"confidence":0.6,"reasoning":"armed robbery reported"}` +
		"\n```\nLet me know if you need more."

	a, err := parseAssessment(reply)

	require.NoError(t, err)
	assert.Equal(t, "medium", a.ThreatLabel)
}

func TestParseAssessment_NoJSONObject(t *testing.T) {
	_, err := parseAssessment("I cannot answer that.")
	assert.Error(t, err)
}

func TestParseAssessment_MissingThreatLabel(t *testing.T) {
	_, err := parseAssessment(`{"category":"crime"}`)
	assert.Error(t, err)
}

func TestParseAssessment_InvalidJSON(t *testing.T) {
	_, err := parseAssessment(`{"category": "crime",}`)
	assert.Error(t, err)
}
