package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shopfront/internal/catalog"
	"shopfront/internal/tools"
)

const reviewName = "review"

const reviewCacheTTL = time.Hour

var reviewSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"summary":        map[string]any{"type": "string"},
		"pros":           map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"cons":           map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"overall_rating": map[string]any{"type": "number"},
	},
	"required": []string{"summary", "pros", "cons"},
}

const reviewSystemPrompt = `You summarize customer reviews for a single product. Use find_product to
resolve the product the shopper means, get_review_stats for the rating
breakdown, and get_review_samples to read a handful of actual review texts.
Then call submit_result with a short summary, a list of pros, and a list of
cons drawn only from what the tools returned.`

// ReviewAgent answers "what do people think of X" style queries, with a
// per-product cache that short-circuits the LLM entirely on a hit.
type ReviewAgent struct{}

func (a *ReviewAgent) Name() string { return reviewName }

func (a *ReviewAgent) Process(ctx context.Context, query string, rc Context) Response {
	if rc.Deps == nil {
		return Fail(reviewName, ErrDependenciesMissing)
	}

	productID, _ := rc.StructuredHints["product_id"].(string)
	if productID == "" {
		// Resolve eagerly so the cache key is by product_id, not free text.
		if name, ok := rc.StructuredHints["product_name"].(string); ok && name != "" {
			if p, found, err := rc.Deps.Catalog.FindProductByName(ctx, name); err == nil && found {
				productID = p.ID
			}
		}
	}

	if productID != "" && rc.Deps.ReviewCache != nil {
		if cached, ok := rc.Deps.ReviewCache.Get(ctx, productID); ok {
			var data map[string]any
			if err := json.Unmarshal(cached, &data); err == nil {
				data["cached"] = true
				return Response{Success: true, Data: data}
			}
		}
	}

	registry := tools.NewRegistry()
	registry.Register(&findProductTool{catalog: rc.Deps.Catalog})
	registry.Register(&reviewStatsTool{catalog: rc.Deps.Catalog})
	registry.Register(&reviewSamplesTool{catalog: rc.Deps.Catalog})

	raw, err := RunToolLoop(ctx, rc.Deps.LLM, rc.Deps.Model, reviewSystemPrompt, query, registry, reviewSchema, rc.Deps.MaxTurns)
	if err != nil {
		return Fail(reviewName, err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Fail(reviewName, fmt.Errorf("malformed output: %w", err))
	}

	stats, statErr := rc.Deps.Catalog.ReviewStats(ctx, productID)
	if statErr == nil {
		parsed["total_reviews"] = stats.TotalReviews
		parsed["average_rating"] = stats.AverageRating
	}
	parsed["cached"] = false

	if productID != "" && rc.Deps.ReviewCache != nil {
		if b, err := json.Marshal(parsed); err == nil {
			rc.Deps.ReviewCache.Set(ctx, productID, b, reviewCacheTTL)
		}
	}

	return Response{Success: true, Data: parsed}
}

// --- tools ---

type findProductTool struct{ catalog catalog.Catalog }

func (t *findProductTool) Name() string { return "find_product" }

func (t *findProductTool) JSONSchema() map[string]any {
	return map[string]any{
		"description": "Fuzzy-resolve a shopper's free-text product reference to a catalog product_id.",
		"parameters": map[string]any{
			"type":       "object",
			"properties": map[string]any{"name": map[string]any{"type": "string"}},
			"required":   []string{"name"},
		},
	}
}

func (t *findProductTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var args struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	p, ok, err := t.catalog.FindProductByName(ctx, args.Name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]any{"found": false}, nil
	}
	return map[string]any{"found": true, "product_id": p.ID, "name": p.Name}, nil
}

type reviewStatsTool struct{ catalog catalog.Catalog }

func (t *reviewStatsTool) Name() string { return "get_review_stats" }

func (t *reviewStatsTool) JSONSchema() map[string]any {
	return map[string]any{
		"description": "Fetch the rating/sentiment aggregate for a product's reviews.",
		"parameters": map[string]any{
			"type":       "object",
			"properties": map[string]any{"product_id": map[string]any{"type": "string"}},
			"required":   []string{"product_id"},
		},
	}
}

func (t *reviewStatsTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var args struct {
		ProductID string `json:"product_id"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	stats, err := t.catalog.ReviewStats(ctx, args.ProductID)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// reviewSamplesTool returns a capped mix of review texts: at most 10
// positive, 10 negative, 5 neutral, each truncated to 200 characters.
type reviewSamplesTool struct{ catalog catalog.Catalog }

func (t *reviewSamplesTool) Name() string { return "get_review_samples" }

func (t *reviewSamplesTool) JSONSchema() map[string]any {
	return map[string]any{
		"description": "Fetch a capped sample of review texts for a product, split by sentiment.",
		"parameters": map[string]any{
			"type":       "object",
			"properties": map[string]any{"product_id": map[string]any{"type": "string"}},
			"required":   []string{"product_id"},
		},
	}
}

const (
	maxPositiveSamples = 10
	maxNegativeSamples = 10
	maxNeutralSamples  = 5
	sampleTruncateLen  = 200
)

func (t *reviewSamplesTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var args struct {
		ProductID string `json:"product_id"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	positives, err := t.catalog.ReviewSamples(ctx, args.ProductID, catalog.SentimentPositive, maxPositiveSamples)
	if err != nil {
		return nil, err
	}
	negatives, err := t.catalog.ReviewSamples(ctx, args.ProductID, catalog.SentimentNegative, maxNegativeSamples)
	if err != nil {
		return nil, err
	}
	neutrals, err := t.catalog.ReviewSamples(ctx, args.ProductID, catalog.SentimentNeutral, maxNeutralSamples)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"positive": truncateTexts(positives),
		"negative": truncateTexts(negatives),
		"neutral":  truncateTexts(neutrals),
	}, nil
}

func truncateTexts(reviews []catalog.Review) []string {
	out := make([]string, len(reviews))
	for i, r := range reviews {
		text := r.Text
		if runes := []rune(text); len(runes) > sampleTruncateLen {
			text = string(runes[:sampleTruncateLen])
		}
		out[i] = text
	}
	return out
}
