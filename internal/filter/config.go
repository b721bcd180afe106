package filter

import (
	_ "embed"

	"gopkg.in/yaml.v3"
)

//go:embed keywords/threat_keywords.yaml
var defaultKeywordsYAML []byte

// CooccurrenceRule pairs two tokens that, appearing within the sliding
// window in either order, count as a match even though neither token alone
// is specific enough to be a base keyword.
type CooccurrenceRule struct {
	Rule   string `yaml:"rule"`
	TokenA string `yaml:"token_a"`
	TokenB string `yaml:"token_b"`
}

// Config is the loaded keyword table: an ordered base-keyword list (first
// match wins, in list order) and a co-occurrence rule table. StrictMode and
// WindowSize are runtime knobs, not part of the YAML table, and are left
// zero by LoadDefaultConfig/ParseConfig — callers set them from
// pipeline.Settings before calling New.
type Config struct {
	BaseKeywords []string           `yaml:"base_keywords"`
	Cooccurrence []CooccurrenceRule `yaml:"cooccurrence_rules"`

	// StrictMode, when true, disables the co-occurrence tier entirely so
	// only exact base-keyword matches count (spec.md's filter_strict knob).
	StrictMode bool `yaml:"-"`

	// WindowSize overrides the co-occurrence sliding-window width in
	// tokens. Zero falls back to the package default of 15.
	WindowSize int `yaml:"-"`
}

// LoadDefaultConfig parses the keyword table embedded in the binary at
// build time, matching the teacher's embed-then-parse pattern for static
// seed/config data (see internal/infra/db/migrate.go's seedSourcesSQL).
func LoadDefaultConfig() (Config, error) {
	return ParseConfig(defaultKeywordsYAML)
}

// ParseConfig parses a keyword table from YAML bytes, for callers that load
// an operator-supplied table from disk instead of the embedded default.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
