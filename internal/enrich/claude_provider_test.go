package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewClaudeProvider_DefaultsModel(t *testing.T) {
	p := NewClaudeProvider("test-key", "")
	assert.Equal(t, "claude", p.Name())
	assert.NotEmpty(t, p.model)
}

func TestNewClaudeProvider_RespectsExplicitModel(t *testing.T) {
	p := NewClaudeProvider("test-key", "claude-3-opus")
	assert.Equal(t, "claude-3-opus", p.model)
}
