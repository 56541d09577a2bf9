package vectorindex

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfront/internal/catalog"
)

func samplePolicies() []catalog.Policy {
	return []catalog.Policy{
		{PolicyType: "returns", Description: "30 day returns", Conditions: "unused, original packaging"},
		{PolicyType: "shipping", Description: "free shipping over $50", Conditions: "domestic only"},
	}
}

func TestBuildAndSearchReturnsScoredDescending(t *testing.T) {
	ctx := context.Background()
	embedder := NewDeterministic(32, 1)
	idx := New(32)
	require.NoError(t, idx.Build(ctx, samplePolicies(), embedder))

	results, err := idx.Search(ctx, "what is your return policy", 3, embedder)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, float32(-1.0))
		assert.LessOrEqual(t, r.Score, float32(1.0))
	}
}

func TestSearchEmptyIndexReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	embedder := NewDeterministic(32, 1)
	idx := New(32)
	require.NoError(t, idx.Build(ctx, nil, embedder))

	results, err := idx.Search(ctx, "anything", 3, embedder)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSaveLoadRoundTripYieldsIdenticalSearch(t *testing.T) {
	ctx := context.Background()
	embedder := NewDeterministic(32, 1)
	policies := samplePolicies()

	idx := New(32)
	require.NoError(t, idx.Build(ctx, policies, embedder))

	dir := t.TempDir()
	require.NoError(t, idx.Save(dir))

	loaded, ok, err := Load(dir, policies)
	require.NoError(t, err)
	require.True(t, ok)

	want, err := idx.Search(ctx, "return policy", 2, embedder)
	require.NoError(t, err)
	got, err := loaded.Search(ctx, "return policy", 2, embedder)
	require.NoError(t, err)
	require.Equal(t, len(want), len(got))
	for i := range want {
		assert.Equal(t, want[i].PolicyType, got[i].PolicyType)
		assert.InDelta(t, want[i].Score, got[i].Score, 1e-5)
	}
}

func TestLoadDetectsRowCountMismatch(t *testing.T) {
	ctx := context.Background()
	embedder := NewDeterministic(32, 1)
	policies := samplePolicies()

	idx := New(32)
	require.NoError(t, idx.Build(ctx, policies, embedder))
	dir := t.TempDir()
	require.NoError(t, idx.Save(dir))

	_, ok, err := Load(dir, policies[:1])
	require.NoError(t, err)
	assert.False(t, ok, "row count mismatch must force a rebuild")
}

func TestLoadDetectsContentHashMismatch(t *testing.T) {
	ctx := context.Background()
	embedder := NewDeterministic(32, 1)
	policies := samplePolicies()

	idx := New(32)
	require.NoError(t, idx.Build(ctx, policies, embedder))
	dir := t.TempDir()
	require.NoError(t, idx.Save(dir))

	changed := append([]catalog.Policy{}, policies...)
	changed[0].Description = "60 day returns now"
	_, ok, err := Load(dir, changed)
	require.NoError(t, err)
	assert.False(t, ok, "content change without row-count change must still force a rebuild")
}

func TestLoadMissingSnapshotIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	_, ok, err := Load(dir, samplePolicies())
	require.NoError(t, err)
	assert.False(t, ok)
	_, statErr := os.Stat(dir)
	assert.NoError(t, statErr)
}
