package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"shopfront/internal/catalog"
	"shopfront/internal/tools"
)

const recommendationName = "recommendation"

var recommendationSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"items": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"product_id": map[string]any{"type": "string"},
					"relevance":  map[string]any{"type": "number"},
					"reason":     map[string]any{"type": "string"},
				},
				"required": []string{"product_id", "relevance", "reason"},
			},
		},
	},
	"required": []string{"items"},
}

const recommendationSystemPrompt = `You are a product recommendation assistant for an online store. Use the
available tools to search the catalog and inspect product details, then call
submit_result with a list of recommended product IDs, each with a relevance
score in [0,1] and a one-sentence reason. Only recommend product IDs you
retrieved through a tool call.`

type recommendedItem struct {
	ProductID string  `json:"product_id"`
	Relevance float64 `json:"relevance"`
	Reason    string  `json:"reason"`
}

// RecommendationAgent answers "what should I buy" style queries.
type RecommendationAgent struct{}

func (a *RecommendationAgent) Name() string { return recommendationName }

func (a *RecommendationAgent) Process(ctx context.Context, query string, rc Context) Response {
	if rc.Deps == nil {
		return Fail(recommendationName, ErrDependenciesMissing)
	}

	if rc.CompareMode {
		return a.compare(ctx, query, rc)
	}

	registry := tools.NewRegistry()
	registry.Register(&searchProductsTool{catalog: rc.Deps.Catalog, hints: rc.StructuredHints})
	registry.Register(&getProductDetailsTool{catalog: rc.Deps.Catalog})
	registry.Register(&getCategoriesTool{catalog: rc.Deps.Catalog})

	raw, err := RunToolLoop(ctx, rc.Deps.LLM, rc.Deps.Model, recommendationSystemPrompt, query, registry, recommendationSchema, rc.Deps.MaxTurns)
	if err != nil {
		return Fail(recommendationName, err)
	}

	var parsed struct {
		Items []recommendedItem `json:"items"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Fail(recommendationName, fmt.Errorf("malformed output: %w", err))
	}

	items := hydrateItems(ctx, rc.Deps.Catalog, parsed.Items)
	return Response{
		Success: true,
		Data: map[string]any{
			"items":       items,
			"total_found": len(items),
		},
	}
}

// compare resolves each explicitly named product instead of running a fresh
// filtered search (decision for the "comparison" intent's output shape).
func (a *RecommendationAgent) compare(ctx context.Context, query string, rc Context) Response {
	names, _ := rc.StructuredHints["requested_names"].([]string)
	var requested []map[string]any
	for _, name := range names {
		p, ok, err := rc.Deps.Catalog.FindProductByName(ctx, name)
		if err != nil || !ok {
			continue
		}
		requested = append(requested, productToMap(p))
	}
	return Response{
		Success: true,
		Data: map[string]any{
			"compare_mode": true,
			"requested":    requested,
		},
	}
}

func hydrateItems(ctx context.Context, cat catalog.Catalog, items []recommendedItem) []map[string]any {
	sort.Slice(items, func(i, j int) bool { return items[i].Relevance > items[j].Relevance })
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		p, ok, err := cat.GetProduct(ctx, it.ProductID)
		if err != nil || !ok {
			continue // drop hallucinated IDs
		}
		m := productToMap(p)
		m["relevance"] = it.Relevance
		m["reason"] = it.Reason
		out = append(out, m)
	}
	return out
}

func productToMap(p catalog.Product) map[string]any {
	return map[string]any{
		"id":          p.ID,
		"name":        p.Name,
		"description": p.Description,
		"price":       p.Price,
		"brand":       p.Brand,
		"category":    p.Category,
		"stock":       p.Stock,
		"rating":      p.Rating,
		"image_url":   p.ImageURL,
	}
}

// --- tools ---

type searchProductsTool struct {
	catalog catalog.Catalog
	hints   map[string]any
}

func (t *searchProductsTool) Name() string { return "search_products_by_filters" }

func (t *searchProductsTool) JSONSchema() map[string]any {
	return map[string]any{
		"description": "Search the product catalog by category, brand, and price range.",
		"parameters": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"category":  map[string]any{"type": "string"},
				"brand":     map[string]any{"type": "string"},
				"min_price": map[string]any{"type": "number"},
				"max_price": map[string]any{"type": "number"},
				"query":     map[string]any{"type": "string"},
				"limit":     map[string]any{"type": "integer"},
			},
		},
	}
}

func (t *searchProductsTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var args catalog.ProductFilter
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
	}
	if args.Limit <= 0 {
		args.Limit = 10
	}
	if cat, ok := t.hints["category"].(string); ok && args.Category == "" {
		args.Category = cat
	}
	products, err := t.catalog.SearchProducts(ctx, args)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, len(products))
	for i, p := range products {
		out[i] = productToMap(p)
	}
	return map[string]any{"products": out}, nil
}

type getProductDetailsTool struct{ catalog catalog.Catalog }

func (t *getProductDetailsTool) Name() string { return "get_product_details" }

func (t *getProductDetailsTool) JSONSchema() map[string]any {
	return map[string]any{
		"description": "Fetch full details for a single product by ID.",
		"parameters": map[string]any{
			"type":       "object",
			"properties": map[string]any{"product_id": map[string]any{"type": "string"}},
			"required":   []string{"product_id"},
		},
	}
}

func (t *getProductDetailsTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var args struct {
		ProductID string `json:"product_id"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	p, ok, err := t.catalog.GetProduct(ctx, args.ProductID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]any{"found": false}, nil
	}
	m := productToMap(p)
	m["found"] = true
	return m, nil
}

type getCategoriesTool struct{ catalog catalog.Catalog }

func (t *getCategoriesTool) Name() string { return "get_categories" }

func (t *getCategoriesTool) JSONSchema() map[string]any {
	return map[string]any{
		"description": "List all distinct product categories in the catalog.",
		"parameters":  map[string]any{"type": "object", "properties": map[string]any{}},
	}
}

func (t *getCategoriesTool) Call(ctx context.Context, _ json.RawMessage) (any, error) {
	cats, err := t.catalog.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"categories": cats}, nil
}
