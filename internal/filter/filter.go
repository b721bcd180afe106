// Package filter implements the Content Filter (C2): a pure function of an
// entry's normalized text against an immutable, load-once keyword table.
package filter

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"threatfeed/internal/domain/entity"
)

// Filter holds compiled keyword and co-occurrence matchers. It is immutable
// after New and safe for concurrent use, matching the teacher's
// load-once-at-startup global tables (see internal/infra/db/migrate.go's
// embedded seed data for the same "parsed once, read-only thereafter" idiom).
type Filter struct {
	baseKeywords []string
	baseRegexes  []*regexp.Regexp
	cooccurrence []compiledRule
	caser        cases.Caser
	fold         transform.Transformer
	strictMode   bool
	windowSize   int
}

type compiledRule struct {
	rule   string
	tokenA string
	tokenB string
}

// defaultWindowSize is the sliding-window width (in tokens) within which
// two co-occurrence tokens must both appear, in either order, to count as
// a match, used when Config.WindowSize is zero.
const defaultWindowSize = 15

// New compiles cfg's keyword and co-occurrence tables into a ready-to-use
// Filter. Compilation happens once; Match is then a pure, allocation-light
// read path.
func New(cfg Config) (*Filter, error) {
	windowSize := cfg.WindowSize
	if windowSize <= 0 {
		windowSize = defaultWindowSize
	}

	f := &Filter{
		baseKeywords: make([]string, 0, len(cfg.BaseKeywords)),
		baseRegexes:  make([]*regexp.Regexp, 0, len(cfg.BaseKeywords)),
		caser:        cases.Fold(),
		fold:         transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		strictMode:   cfg.StrictMode,
		windowSize:   windowSize,
	}

	for _, kw := range cfg.BaseKeywords {
		normalized := f.normalize(kw)
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(normalized) + `\b`)
		if err != nil {
			return nil, fmt.Errorf("filter: compiling keyword %q: %w", kw, err)
		}
		f.baseKeywords = append(f.baseKeywords, kw)
		f.baseRegexes = append(f.baseRegexes, re)
	}

	for _, rule := range cfg.Cooccurrence {
		f.cooccurrence = append(f.cooccurrence, compiledRule{
			rule:   rule.Rule,
			tokenA: f.normalize(rule.TokenA),
			tokenB: f.normalize(rule.TokenB),
		})
	}

	return f, nil
}

// normalize folds diacritics and case so that "Ataque", "ATAQUE", and
// "ataqué" all compare equal.
func (f *Filter) normalize(s string) string {
	folded, _, err := transform.String(f.fold, s)
	if err != nil {
		folded = s
	}
	return f.caser.String(folded)
}

// Match runs the base tier then the co-occurrence tier against textBlob,
// returning the first match (base before co-occurrence; within a tier,
// table order) or (nil, false) when nothing matches. Empty text never
// matches. Match is a pure function of textBlob and the table built at
// New time.
func (f *Filter) Match(textBlob string) (*entity.KWMatch, bool) {
	if strings.TrimSpace(textBlob) == "" {
		return nil, false
	}
	normalized := f.normalize(textBlob)

	for i, re := range f.baseRegexes {
		if re.MatchString(normalized) {
			return &entity.KWMatch{
				Keyword:   f.baseKeywords[i],
				MatchType: entity.MatchTypeBase,
			}, true
		}
	}

	if f.strictMode {
		return nil, false
	}

	tokens := strings.Fields(normalized)
	for _, rule := range f.cooccurrence {
		if cooccurs(tokens, rule.tokenA, rule.tokenB, f.windowSize) {
			return &entity.KWMatch{
				Keyword:   rule.tokenA + " " + rule.tokenB,
				MatchType: entity.MatchTypeCooccurrence,
				Rule:      rule.rule,
			}, true
		}
	}

	return nil, false
}

// cooccurs reports whether tokenA and tokenB (in either order) both appear
// among tokens within a sliding window of the given size.
func cooccurs(tokens []string, tokenA, tokenB string, window int) bool {
	var lastA, lastB = -1, -1
	for i, tok := range tokens {
		if tok == tokenA {
			lastA = i
		}
		if tok == tokenB {
			lastB = i
		}
		if lastA >= 0 && lastB >= 0 && abs(lastA-lastB) <= window {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
