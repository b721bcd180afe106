package location

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threatfeed/internal/domain/entity"
)

func TestParseBatchLocations_PlainArray(t *testing.T) {
	reply := `[{"city":"Kyiv","country":"Ukraine","region":"Eastern Europe","confidence":"high"},` +
		`{"city":"","country":"Mali","region":"West Africa","confidence":"medium"}]`

	locs, err := parseBatchLocations(reply)

	require.NoError(t, err)
	require.Len(t, locs, 2)
	assert.Equal(t, "Kyiv", locs[0].City)
	assert.Equal(t, entity.ConfidenceHigh, locs[0].Confidence)
	assert.Equal(t, "Mali", locs[1].Country)
	assert.Equal(t, entity.ConfidenceMedium, locs[1].Confidence)
}

func TestParseBatchLocations_WrappedInProse(t *testing.T) {
	reply := "Here are the results:\n```json\n" +
		`[{"city":"Lagos","country":"Nigeria","region":"West Africa","confidence":"high"}]` +
		"\n```\nDone."

	locs, err := parseBatchLocations(reply)

	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, "Lagos", locs[0].City)
}

func TestParseBatchLocations_InvalidConfidenceFallsBackToNone(t *testing.T) {
	reply := `[{"city":"Paris","country":"France","region":"Europe","confidence":"very sure"}]`

	locs, err := parseBatchLocations(reply)

	require.NoError(t, err)
	assert.Equal(t, entity.ConfidenceNone, locs[0].Confidence)
}

func TestParseBatchLocations_NoArrayFound(t *testing.T) {
	_, err := parseBatchLocations("I cannot determine the locations.")
	assert.Error(t, err)
}

type fakeBatchProvider struct {
	locs []entity.Location
	err  error
}

func (f *fakeBatchProvider) Name() string { return "fake" }
func (f *fakeBatchProvider) ResolveBatch(ctx context.Context, entries []entity.Entry) ([]entity.Location, error) {
	return f.locs, f.err
}

func TestNewLLMFlush_StampsMethodAndDefaultsConfidence(t *testing.T) {
	provider := &fakeBatchProvider{locs: []entity.Location{{City: "Kyiv", Country: "Ukraine"}}}
	flush := NewLLMFlush(provider)

	entries := []entity.Entry{{Title: "shelling reported", Link: "http://a"}}
	locs, err := flush(context.Background(), entries)

	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, entity.LocationMethodLLMBatch, locs[0].Method)
	assert.Equal(t, entity.ConfidenceMedium, locs[0].Confidence)
}

func TestNewLLMFlush_PropagatesProviderError(t *testing.T) {
	provider := &fakeBatchProvider{err: errors.New("provider down")}
	flush := NewLLMFlush(provider)

	_, err := flush(context.Background(), []entity.Entry{{Title: "x"}})
	assert.Error(t, err)
}

func TestNewLLMFlush_MismatchedCountIsAnError(t *testing.T) {
	provider := &fakeBatchProvider{locs: []entity.Location{}}
	flush := NewLLMFlush(provider)

	_, err := flush(context.Background(), []entity.Entry{{Title: "x"}, {Title: "y"}})
	assert.Error(t, err)
}

func TestNewOpenAILocationProvider_DefaultsModel(t *testing.T) {
	p := NewOpenAILocationProvider("test-key", "")
	assert.Equal(t, "gpt-4o-mini", p.model)
	assert.Equal(t, "openai-location", p.Name())
}
