package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfront/internal/cache"
	"shopfront/internal/catalog"
)

func sampleCatalogWithReviews() *catalog.MemoryCatalog {
	return &catalog.MemoryCatalog{
		Products: []catalog.Product{{ID: "p1", Name: "Widget Pro", Price: 49.99}},
		Reviews: []catalog.Review{
			{ProductID: "p1", Rating: 5, Text: "Great widget", Sentiment: catalog.SentimentPositive},
			{ProductID: "p1", Rating: 1, Text: "Broke fast", Sentiment: catalog.SentimentNegative},
		},
	}
}

func TestReviewAgentCacheHitShortCircuitsLLM(t *testing.T) {
	cache.Reset()
	t.Cleanup(cache.Reset)
	reviewCache := cache.Handle("review-test", cache.Namespace{KeyPrefix: "review_summary:", MaxEntries: 100})

	// Seed the cache directly so the first call never touches the LLM.
	reviewCache.Set(context.Background(), "p1", []byte(`{"summary":"cached summary"}`), time.Hour)

	a := &ReviewAgent{}
	deps := &Deps{
		Catalog:     sampleCatalogWithReviews(),
		LLM:         canned{err: assertUnreachable{}},
		ReviewCache: reviewCache,
	}
	resp := a.Process(context.Background(), "reviews for widget pro", Context{
		Deps:            deps,
		StructuredHints: map[string]any{"product_id": "p1"},
	})

	require.True(t, resp.Success)
	assert.Equal(t, true, resp.Data["cached"])
	assert.Equal(t, "cached summary", resp.Data["summary"])
}

// assertUnreachable is an error type used to fail a test loudly if the LLM
// is invoked when a cache hit should have short-circuited it.
type assertUnreachable struct{}

func (assertUnreachable) Error() string { return "LLM should not have been called: cache hit expected" }

func TestReviewAgentMissingDeps(t *testing.T) {
	a := &ReviewAgent{}
	resp := a.Process(context.Background(), "reviews", Context{})
	assert.False(t, resp.Success)
}

func TestReviewSamplesToolCapsAndTruncates(t *testing.T) {
	cat := &catalog.MemoryCatalog{}
	for i := 0; i < 15; i++ {
		cat.Reviews = append(cat.Reviews, catalog.Review{
			ProductID: "p1",
			Sentiment: catalog.SentimentPositive,
			Text:      longText(),
		})
	}
	tool := &reviewSamplesTool{catalog: cat}
	out, err := tool.Call(context.Background(), []byte(`{"product_id":"p1"}`))
	require.NoError(t, err)

	result := out.(map[string]any)
	positives := result["positive"].([]string)
	assert.LessOrEqual(t, len(positives), maxPositiveSamples)
	for _, text := range positives {
		assert.LessOrEqual(t, len(text), sampleTruncateLen)
	}
}

func longText() string {
	b := make([]byte, 500)
	for i := range b {
		b[i] = 'x'
	}
	return string(b)
}
