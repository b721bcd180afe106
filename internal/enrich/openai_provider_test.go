package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewOpenAIProvider_DefaultsModel(t *testing.T) {
	p := NewOpenAIProvider("test-key", "")
	assert.Equal(t, "openai", p.Name())
	assert.Equal(t, "gpt-4o-mini", p.model)
}

func TestNewOpenAIProvider_RespectsExplicitModel(t *testing.T) {
	p := NewOpenAIProvider("test-key", "gpt-4o")
	assert.Equal(t, "gpt-4o", p.model)
}
