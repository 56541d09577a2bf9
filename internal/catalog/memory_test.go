package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		Products: []Product{
			{ID: "p1", Name: "Budget Phone", Category: "phones", Price: 199, Rating: 4.1},
			{ID: "p2", Name: "Flagship Phone", Category: "phones", Price: 999, Rating: 4.8},
			{ID: "p3", Name: "Wireless Earbuds", Category: "audio", Price: 79, Rating: 4.3},
		},
		Reviews: []Review{
			{ProductID: "p1", Rating: 5, Sentiment: SentimentPositive, Text: "great"},
			{ProductID: "p1", Rating: 2, Sentiment: SentimentNegative, Text: "meh"},
		},
		Policies: []Policy{
			{PolicyType: "returns", Description: "30 day returns", Conditions: "unused"},
		},
	}
}

func TestSearchProductsFiltersByPriceAndCategory(t *testing.T) {
	c := sampleCatalog()
	out, err := c.SearchProducts(context.Background(), ProductFilter{Category: "phones", MaxPrice: 500})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "p1", out[0].ID)
}

func TestSearchProductsEmptyCatalogReturnsEmpty(t *testing.T) {
	c := &MemoryCatalog{}
	out, err := c.SearchProducts(context.Background(), ProductFilter{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestFindProductByNameFuzzyResolve(t *testing.T) {
	c := sampleCatalog()
	p, ok, err := c.FindProductByName(context.Background(), "flagship")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "p2", p.ID)
}

func TestReviewStatsAggregatesCorrectly(t *testing.T) {
	c := sampleCatalog()
	stats, err := c.ReviewStats(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalReviews)
	assert.Equal(t, 1, stats.PositiveCount)
	assert.Equal(t, 1, stats.NegativeCount)
	assert.InDelta(t, 3.5, stats.AverageRating, 0.001)
}

func TestReviewStatsEmptyProduct(t *testing.T) {
	c := sampleCatalog()
	stats, err := c.ReviewStats(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalReviews)
}

func TestPolicyRowCount(t *testing.T) {
	c := sampleCatalog()
	n, err := c.PolicyRowCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
