// Package location implements the Location Resolver (C3): a cascade of
// strategies sharing one shrinking time budget, from in-memory cache
// through deterministic gazetteer extraction, LLM batch resolution, and
// country-centroid fallback, down to "unknown".
package location

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"threatfeed/internal/domain/entity"
	"threatfeed/internal/location/batchqueue"
	"threatfeed/internal/location/gazetteer"
	"threatfeed/internal/observability/metrics"
)

// Config sets the Resolver's total cascade budget and per-step nominal
// budgets, per spec.md §6.
type Config struct {
	TotalTimeout     time.Duration
	CacheTimeout     time.Duration
	DeterministicTTL time.Duration
	ReverseTimeout   time.Duration
}

// DefaultConfig matches spec.md's documented defaults.
func DefaultConfig() Config {
	return Config{
		TotalTimeout:     10 * time.Second,
		CacheTimeout:     1 * time.Second,
		DeterministicTTL: 5 * time.Second,
		ReverseTimeout:   3 * time.Second,
	}
}

// Cache is the exact (text_blob → Location) lookup the Resolver consults
// first, avoiding repeat gazetteer/LLM work for republished or duplicate
// text. An in-memory implementation is provided by NewMemoryCache; a
// database-backed one can satisfy the same interface.
type Cache interface {
	Get(ctx context.Context, key string) (entity.Location, bool, error)
	Set(ctx context.Context, key string, loc entity.Location) error
}

// ambiguitySignals are words that, per spec.md §4.3 step 3, indicate a
// single deterministic city/country guess would be unreliable even if one
// was found, and the entry should be deferred to the LLM batch instead.
var ambiguitySignals = []string{"multiple", "across", "throughout", "several countries", "region-wide"}

// Resolver runs the location cascade for one entry at a time. It holds no
// per-entry state; Cache and the Batch Queue are the only shared state,
// and both are safe for concurrent use.
type Resolver struct {
	cfg        Config
	cache      Cache
	gazetteer  *gazetteer.Gazetteer
	batchQueue *batchqueue.Queue
}

func New(cfg Config, cache Cache, gaz *gazetteer.Gazetteer, queue *batchqueue.Queue) *Resolver {
	return &Resolver{cfg: cfg, cache: cache, gazetteer: gaz, batchQueue: queue}
}

// Resolve runs the cascade for one entry, returning its final Location.
// Resolve returns no error: "no location found", an exhausted budget and a
// cancelled ctx all end in the method=unknown Location unless an earlier
// step already produced one.
func (r *Resolver) Resolve(ctx context.Context, entry entity.Entry) entity.Location {
	deadline := time.Now().Add(r.cfg.TotalTimeout)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	if loc, ok := r.tryCache(ctx, entry, remaining(deadline)); ok {
		return finalize(loc)
	}

	detLoc, detOK := r.tryDeterministic(ctx, entry, remaining(deadline))
	if detOK && !isAmbiguous(entry.TextBlob) {
		r.cacheSet(ctx, entry, detLoc)
		return finalize(detLoc)
	}

	if r.batchQueue != nil {
		if loc, ok := r.tryBatch(ctx, entry, remaining(deadline)); ok {
			r.cacheSet(ctx, entry, loc)
			return finalize(loc)
		}
	}

	// Fall through to centroid using whatever partial country information
	// the deterministic step found, even if it wasn't confident enough to
	// return outright (e.g. a country-only match with an ambiguity signal).
	country := detLoc.Country
	if loc, ok := r.tryCentroid(country); ok {
		return finalize(loc)
	}

	return finalize(entity.Location{Method: entity.LocationMethodUnknown, Confidence: entity.ConfidenceNone})
}

func remaining(deadline time.Time) time.Duration {
	d := time.Until(deadline)
	if d < 0 {
		return 0
	}
	return d
}

func (r *Resolver) tryCache(ctx context.Context, entry entity.Entry, budget time.Duration) (entity.Location, bool) {
	if r.cache == nil || budget <= 0 {
		return entity.Location{}, false
	}
	stepCtx, cancel := context.WithTimeout(ctx, min(budget, r.cfg.CacheTimeout))
	defer cancel()

	loc, ok, err := r.cache.Get(stepCtx, cacheKey(entry))
	if err != nil {
		slog.Warn("location cache lookup failed", "error", err)
		return entity.Location{}, false
	}
	if ok {
		loc.Method = entity.LocationMethodCache
	}
	return loc, ok
}

func (r *Resolver) tryDeterministic(ctx context.Context, entry entity.Entry, budget time.Duration) (entity.Location, bool) {
	if r.gazetteer == nil || budget <= 0 {
		return entity.Location{}, false
	}
	_, cancel := context.WithTimeout(ctx, min(budget, r.cfg.DeterministicTTL))
	defer cancel()

	if city, ok := r.gazetteer.MatchCity(entry.TextBlob); ok {
		lat, lon := city.Lat, city.Lon
		return entity.Location{
			City: city.City, Country: city.Country, Region: city.Region,
			Lat: &lat, Lon: &lon,
			Method: entity.LocationMethodDeterministic, Confidence: entity.ConfidenceHigh,
		}, true
	}
	if country, ok := r.gazetteer.Centroid(extractCountryTag(entry)); ok {
		return entity.Location{
			Country: country.Country, Region: country.Region,
			Method: entity.LocationMethodDeterministic, Confidence: entity.ConfidenceMedium,
		}, true
	}
	return entity.Location{}, false
}

func (r *Resolver) tryBatch(ctx context.Context, entry entity.Entry, budget time.Duration) (entity.Location, bool) {
	if budget <= 0 {
		return entity.Location{}, false
	}
	resultCh := r.batchQueue.Enqueue(ctx, entry)
	select {
	case loc, ok := <-resultCh:
		if !ok {
			return entity.Location{}, false
		}
		if loc.Method == entity.LocationMethodUnknown {
			return loc, false
		}
		return loc, true
	case <-time.After(budget):
		slog.Warn("location batch resolution exceeded remaining budget", "link", entry.Link)
		return entity.Location{}, false
	case <-ctx.Done():
		return entity.Location{}, false
	}
}

func (r *Resolver) tryCentroid(country string) (entity.Location, bool) {
	if r.gazetteer == nil || strings.TrimSpace(country) == "" {
		return entity.Location{}, false
	}
	c, ok := r.gazetteer.Centroid(country)
	if !ok {
		return entity.Location{}, false
	}
	lat, lon := c.Lat, c.Lon
	return entity.Location{
		Country: c.Country, Region: c.Region,
		Lat: &lat, Lon: &lon,
		Method: entity.LocationMethodCentroid, Confidence: entity.ConfidenceLow,
	}, true
}

func (r *Resolver) cacheSet(ctx context.Context, entry entity.Entry, loc entity.Location) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, cacheKey(entry), loc); err != nil {
		slog.Warn("location cache write failed", "error", err)
	}
}

func cacheKey(entry entity.Entry) string { return entry.TextBlob }

func isAmbiguous(textBlob string) bool {
	lower := strings.ToLower(textBlob)
	for _, signal := range ambiguitySignals {
		if strings.Contains(lower, signal) {
			return true
		}
	}
	return false
}

// extractCountryTag looks for a "country:X" feed tag convention in the
// entry's summary, a lightweight stand-in for structured feed metadata the
// Fetcher doesn't currently carry through.
func extractCountryTag(entry entity.Entry) string {
	const prefix = "country:"
	for _, field := range []string{entry.Summary, entry.Title} {
		if idx := strings.Index(strings.ToLower(field), prefix); idx >= 0 {
			rest := field[idx+len(prefix):]
			end := strings.IndexAny(rest, " ,;\n")
			if end < 0 {
				end = len(rest)
			}
			return strings.TrimSpace(rest[:end])
		}
	}
	return ""
}

func finalize(loc entity.Location) entity.Location {
	metrics.RecordLocationMethod(string(loc.Method))
	return loc
}
