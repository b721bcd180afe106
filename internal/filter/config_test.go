package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultConfig(t *testing.T) {
	cfg, err := LoadDefaultConfig()
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.BaseKeywords)
	assert.NotEmpty(t, cfg.Cooccurrence)
}

func TestParseConfig_Invalid(t *testing.T) {
	_, err := ParseConfig([]byte("base_keywords: [unterminated"))
	assert.Error(t, err)
}

func TestParseConfig_Valid(t *testing.T) {
	data := []byte(`
base_keywords:
  - "siege"
cooccurrence_rules:
  - rule: "strike+target"
    token_a: "strike"
    token_b: "target"
`)
	cfg, err := ParseConfig(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"siege"}, cfg.BaseKeywords)
	require.Len(t, cfg.Cooccurrence, 1)
	assert.Equal(t, "strike+target", cfg.Cooccurrence[0].Rule)
}
