// Package entity defines the core domain entities and validation logic for the
// ingestion pipeline: the in-flight Entry, the persisted RawItem, and the
// persisted EnrichedAlert, along with their invariants and domain-specific
// errors.
package entity

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"
)

// Entry is the in-flight representation of a feed item as it moves through
// the pipeline, before any persistence decision has been made. It carries no
// storage tags because it never round-trips through a repository directly —
// it is filtered, resolved, deduplicated and enriched before becoming a
// RawItem/EnrichedAlert pair.
type Entry struct {
	SourceID    int64
	FeedURL     string
	Title       string
	Link        string
	Summary     string
	TextBlob    string // normalized title+summary used by the content filter
	PublishedAt time.Time
	FetchedAt   time.Time

	// KWMatch is set by the Content Filter; nil means no keyword matched.
	KWMatch *KWMatch

	// Location is set by the Location Resolver once a strategy in the
	// cascade produces a result (including the "unknown" terminal case).
	Location *Location
}

// MatchType distinguishes a direct keyword hit from a co-occurrence match
// requiring two tokens within the sliding window.
type MatchType string

const (
	MatchTypeBase         MatchType = "base"
	MatchTypeCooccurrence MatchType = "cooccurrence"
)

// KWMatch is the Content Filter's verdict on an Entry's text_blob.
type KWMatch struct {
	Keyword   string
	MatchType MatchType
	Rule      string // co-occurrence pair identifier; empty for base matches
}

// Confidence levels the Location Resolver attaches to its result, used for
// tie-breaking when more than one strategy could apply.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceNone   Confidence = "none"
)

// Location is the Location Resolver's output for one Entry.
type Location struct {
	City       string
	Country    string
	Region     string
	Lat        *float64
	Lon        *float64
	Method     LocationMethod
	Confidence Confidence
}

// UUID is the deterministic identifier for an Entry/RawItem, defined as
// sha1(title + "|" + link). Two entries with the same title and link always
// collide on this id; a title truncated at ingestion time intentionally
// produces a distinct id from its untruncated counterpart (see DESIGN.md).
func UUID(title, link string) string {
	h := sha1.New()
	h.Write([]byte(title))
	h.Write([]byte("|"))
	h.Write([]byte(link))
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash is the exact-duplicate fingerprint used for the raw_items
// unique index: md5(title+link), independent of UUID so the two can evolve
// separately (UUID is pipeline identity, ContentHash is storage dedup key).
func ContentHash(title, link string) string {
	sum := md5.Sum([]byte(title + link))
	return hex.EncodeToString(sum[:])
}

// RawItem is the persisted, unfiltered record of every feed entry that
// survived fetch, regardless of whether it matched the content filter. It is
// the audit trail for "what did we see" independent of "what did we alert on".
type RawItem struct {
	UUID        string
	SourceID    int64
	Title       string
	Link        string
	Summary     string
	ContentHash string
	// Tags holds at most one element: the matched keyword when KWMatch is
	// non-nil on the source Entry, empty otherwise (invariant 3).
	Tags        []string
	PublishedAt time.Time
	FetchedAt   time.Time
	CreatedAt   time.Time
}

// NewRawItem builds a RawItem from an Entry, computing its UUID and
// ContentHash from the (title, link) pair and deriving Tags from KWMatch.
func NewRawItem(e Entry) RawItem {
	tags := []string{}
	if e.KWMatch != nil {
		tags = []string{e.KWMatch.Keyword}
	}
	return RawItem{
		UUID:        UUID(e.Title, e.Link),
		SourceID:    e.SourceID,
		Title:       e.Title,
		Link:        e.Link,
		Summary:     e.Summary,
		ContentHash: ContentHash(e.Title, e.Link),
		Tags:        tags,
		PublishedAt: e.PublishedAt,
		FetchedAt:   e.FetchedAt,
	}
}

// LocationMethod records which stage of the Location Resolver cascade
// produced an EnrichedAlert's location, for observability and tie-breaking.
type LocationMethod string

const (
	LocationMethodCache         LocationMethod = "cache"
	LocationMethodDeterministic LocationMethod = "deterministic"
	LocationMethodLLMBatch      LocationMethod = "llm_batch"
	LocationMethodCentroid      LocationMethod = "country_centroid"
	LocationMethodUnknown       LocationMethod = "unknown"
)

// EnrichedAlert is the persisted output of a fully-processed entry: it
// carries the resolved location, the matched keyword/tag, and the LLM threat
// assessment. Invariant: Lat and Lon must both be present, or Country must be
// non-empty — an EnrichedAlert is never stored with neither.
type EnrichedAlert struct {
	UUID           string
	SourceID       int64
	Title          string
	Link           string
	Summary        string
	Tags           []string
	Lat            *float64
	Lon            *float64
	Country        string
	LocationMethod LocationMethod
	Category       string
	Subcategory    string
	ThreatLabel    string
	Score          float64
	Confidence     float64
	Reasoning      string
	Embedding      []float32
	PublishedAt    time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasLocation reports whether the alert satisfies the location invariant:
// coordinates present together, or a non-empty country, never neither.
func (a *EnrichedAlert) HasLocation() bool {
	if a.Lat != nil && a.Lon != nil {
		return true
	}
	if a.Lat == nil && a.Lon == nil {
		return strings.TrimSpace(a.Country) != ""
	}
	return false
}

// ScoreInRange reports whether Score and Confidence satisfy invariant 6's
// bounds: score in [0, 100], confidence in [0, 1].
func (a *EnrichedAlert) ScoreInRange() bool {
	return a.Score >= 0 && a.Score <= 100 && a.Confidence >= 0 && a.Confidence <= 1
}
