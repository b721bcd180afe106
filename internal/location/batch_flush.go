package location

import (
	"context"
	"fmt"

	"threatfeed/internal/domain/entity"
	"threatfeed/internal/location/batchqueue"
)

// NewLLMFlush adapts a BatchProvider into the batchqueue.FlushFunc the
// Batch Queue calls on every size/age trigger. It stamps every location the
// provider returns with method=llm_batch (the provider itself only knows
// city/country/region/confidence, not which resolver stage produced them),
// and fails the whole flush if the provider returns fewer locations than
// entries, since a partial reply can't be safely matched back to entries
// by position.
func NewLLMFlush(provider BatchProvider) batchqueue.FlushFunc {
	return func(ctx context.Context, entries []entity.Entry) ([]entity.Location, error) {
		locations, err := provider.ResolveBatch(ctx, entries)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", provider.Name(), err)
		}
		if len(locations) != len(entries) {
			return nil, fmt.Errorf("%s: returned %d locations for %d entries", provider.Name(), len(locations), len(entries))
		}
		for i := range locations {
			locations[i].Method = entity.LocationMethodLLMBatch
			if locations[i].Confidence == "" {
				locations[i].Confidence = entity.ConfidenceMedium
			}
		}
		return locations, nil
	}
}
