package repository

import (
	"context"
	"time"

	"threatfeed/internal/domain/entity"
)

// SourceRepository backs the feed catalogue: which feeds are active, and
// when each was last crawled (surfaced for operational visibility; the Feed
// Fetcher's cutoff uses each entry's published time, not this value).
type SourceRepository interface {
	Get(ctx context.Context, id int64) (*entity.Source, error)
	ListActive(ctx context.Context) ([]*entity.Source, error)
	TouchCrawledAt(ctx context.Context, id int64, t time.Time) error
}
