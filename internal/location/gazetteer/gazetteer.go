// Package gazetteer loads the curated city/country tables the Location
// Resolver uses for deterministic extraction and country-centroid fallback.
package gazetteer

import (
	_ "embed"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed gazetteer.yaml
var embeddedYAML []byte

// CityEntry is one high-confidence city the deterministic extraction step
// can recognize by name.
type CityEntry struct {
	City    string  `yaml:"city"`
	Country string  `yaml:"country"`
	Region  string  `yaml:"region"`
	Lat     float64 `yaml:"lat"`
	Lon     float64 `yaml:"lon"`
}

// CountryEntry is a country's centroid, used both as a country-only
// deterministic match and as the last-resort centroid fallback.
type CountryEntry struct {
	Country string  `yaml:"country"`
	Region  string  `yaml:"region"`
	Lat     float64 `yaml:"lat"`
	Lon     float64 `yaml:"lon"`
}

type table struct {
	Cities    []CityEntry    `yaml:"cities"`
	Countries []CountryEntry `yaml:"countries"`
}

// Gazetteer is the compiled, read-only lookup table. Safe for concurrent use.
type Gazetteer struct {
	cityRegexes []*regexp.Regexp
	cities      []CityEntry
	countries   map[string]CountryEntry
}

// Load parses the embedded gazetteer and compiles a word-boundary regex per
// city name, matching the Content Filter's compile-once idiom
// (internal/filter.New).
func Load() (*Gazetteer, error) {
	return Parse(embeddedYAML)
}

// Parse builds a Gazetteer from YAML bytes, for operator-supplied tables.
func Parse(data []byte) (*Gazetteer, error) {
	var t table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, err
	}

	g := &Gazetteer{
		countries: make(map[string]CountryEntry, len(t.Countries)),
	}
	for _, c := range t.Cities {
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(c.City) + `\b`)
		if err != nil {
			return nil, err
		}
		g.cityRegexes = append(g.cityRegexes, re)
		g.cities = append(g.cities, c)
	}
	for _, c := range t.Countries {
		g.countries[strings.ToLower(c.Country)] = c
	}
	return g, nil
}

// MatchCity returns the first city gazetteer entry found in text, in table
// order.
func (g *Gazetteer) MatchCity(text string) (CityEntry, bool) {
	for i, re := range g.cityRegexes {
		if re.MatchString(text) {
			return g.cities[i], true
		}
	}
	return CityEntry{}, false
}

// Centroid returns the country's centroid coordinates, case-insensitive.
func (g *Gazetteer) Centroid(country string) (CountryEntry, bool) {
	c, ok := g.countries[strings.ToLower(strings.TrimSpace(country))]
	return c, ok
}
