package repository

import (
	"context"

	"threatfeed/internal/domain/entity"
)

// RawItemRepository persists every entry that survived fetch, independent of
// whether it matched the content filter — the audit trail behind the
// enrichment pipeline.
type RawItemRepository interface {
	// SaveBatch inserts items idempotently: a row whose content_hash already
	// exists is silently skipped (ON CONFLICT DO NOTHING), not treated as an
	// error. Returns the number of rows actually inserted.
	SaveBatch(ctx context.Context, items []entity.RawItem) (inserted int, err error)
	// ExistsByContentHashBatch resolves exact-duplicate membership for a
	// batch of content hashes in one round trip, avoiding an N+1 query
	// before the pipeline decides which entries to carry forward.
	ExistsByContentHashBatch(ctx context.Context, hashes []string) (map[string]bool, error)
	Get(ctx context.Context, uuid string) (*entity.RawItem, error)
}
