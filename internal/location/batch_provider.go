package location

import (
	"context"

	"threatfeed/internal/domain/entity"
)

// BatchProvider resolves a whole batch of deferred entries to locations in
// a single LLM call, per spec.md §4.3 step 4. Implementations are expected
// to wrap the call in a Rate Limiter and Circuit Breaker themselves, the
// same way enrich.Provider implementations do for the Enricher's chain —
// the Batch Queue only treats a non-nil error as "retry or finalize
// unknown"; it has no opinion on what produced it.
type BatchProvider interface {
	Name() string
	ResolveBatch(ctx context.Context, entries []entity.Entry) ([]entity.Location, error)
}
