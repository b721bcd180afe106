// Package feed fans out over the source catalogue and parses each feed
// into Entry values. It deliberately carries no retry logic: spec.md calls
// for a skipped, logged feed on failure rather than an in-cycle retry — the
// next scheduled cycle is the retry. Compare this to the teacher's
// internal/infra/scraper/rss.go, which wraps retry.WithBackoff and a
// circuit breaker around the same gofeed call; both are dropped here on
// purpose (see DESIGN.md).
package feed

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"threatfeed/internal/domain/entity"
	"threatfeed/internal/observability/metrics"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"log/slog"
)

// Fetcher fetches and parses every active source in the catalogue,
// bounded by a global concurrency limit and a per-host limit.
type Fetcher struct {
	client *http.Client
	config Config
}

// New creates a Fetcher with the given HTTP client and configuration.
func New(client *http.Client, cfg Config) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{client: client, config: cfg}
}

// hostSemaphores hands out a per-host buffered channel semaphore, lazily
// created and shared across the whole FetchAll call.
type hostSemaphores struct {
	mu    sync.Mutex
	sems  map[string]chan struct{}
	limit int
}

func newHostSemaphores(limit int) *hostSemaphores {
	return &hostSemaphores{sems: make(map[string]chan struct{}), limit: limit}
}

func (h *hostSemaphores) forHost(host string) chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	sem, ok := h.sems[host]
	if !ok {
		sem = make(chan struct{}, h.limit)
		h.sems[host] = sem
	}
	return sem
}

// FetchAll fetches every given source concurrently, respecting the global
// and per-host concurrency bounds, and streams parsed entries onto the
// returned channel. The channel is closed once every source has been
// attempted. Per-feed errors are logged and skipped; the returned error is
// always nil.
func (f *Fetcher) FetchAll(ctx context.Context, sources []*entity.Source) (<-chan entity.Entry, error) {
	out := make(chan entity.Entry)
	hostSems := newHostSemaphores(f.config.PerHostConcurrency)
	globalSem := make(chan struct{}, f.config.MaxConcurrency)
	cutoff := time.Now().AddDate(0, 0, -f.config.CutoffDays)

	eg, egCtx := errgroup.WithContext(ctx)

	go func() {
		defer close(out)
		for _, src := range sources {
			src := src
			globalSem <- struct{}{}

			hostSem := hostSems.forHost(hostOf(src.FeedURL))
			hostSem <- struct{}{}

			eg.Go(func() error {
				defer func() { <-globalSem }()
				defer func() { <-hostSem }()
				f.fetchOne(egCtx, src, cutoff, out)
				return nil
			})
		}
		_ = eg.Wait()
	}()

	return out, nil
}

// fetchOne fetches and parses a single source, sending each surviving
// entry onto out. It never returns an error to the caller: all failures
// (transport, parse, per-entry) are logged and the feed is skipped.
func (f *Fetcher) fetchOne(ctx context.Context, src *entity.Source, cutoff time.Time, out chan<- entity.Entry) {
	fetchCtx, cancel := context.WithTimeout(ctx, f.config.FetchTimeout)
	defer cancel()

	start := time.Now()
	parsed, err := f.parse(fetchCtx, src.FeedURL)
	duration := time.Since(start)

	if err != nil {
		slog.Warn("feed fetch failed, skipping until next cycle",
			slog.Int64("source_id", src.ID),
			slog.String("feed_url", src.FeedURL),
			slog.Duration("duration", duration),
			slog.Any("error", err))
		metrics.RecordFeedFetchError(src.ID)
		return
	}

	now := time.Now()
	emitted := 0
	for _, item := range parsed.Items {
		publishedAt := now
		if item.PublishedParsed != nil {
			publishedAt = *item.PublishedParsed
		}
		if publishedAt.Before(cutoff) {
			continue
		}

		summary := item.Description
		if summary == "" {
			summary = item.Content
		}

		entry := entity.Entry{
			SourceID:    src.ID,
			FeedURL:     src.FeedURL,
			Title:       item.Title,
			Link:        item.Link,
			Summary:     summary,
			PublishedAt: publishedAt,
			FetchedAt:   now,
		}

		select {
		case out <- entry:
			emitted++
		case <-ctx.Done():
			return
		}
	}

	metrics.RecordFeedFetchSuccess(src.ID, emitted, duration)
}

// parse performs the gofeed HTTP fetch + parse without any retry wrapper.
func (f *Fetcher) parse(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	fp := gofeed.NewParser()
	fp.Client = f.client
	fp.UserAgent = "threatfeed-ingest/1.0"
	return fp.ParseURLWithContext(feedURL, ctx)
}

// hostOf extracts the host for per-host semaphore keying; an unparseable
// URL gets its own bucket rather than sharing with every other failure.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
