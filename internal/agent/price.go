package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"

	"shopfront/internal/catalog"
	"shopfront/internal/tools"
)

const priceName = "price"

const priceCacheTTL = time.Hour

// competitorSources is the fixed set of mock competitor names and the
// [low, high) fractional offset range (e.g. -0.15 = 15% below) their
// deterministic price is drawn from, relative to the catalog's base price.
var competitorSources = []struct {
	name     string
	lowPct   float64
	highPct  float64
}{
	{"MegaMart", -0.15, 0.05},
	{"ValueBasket", -0.20, 0.00},
	{"PrimeGoods", -0.05, 0.10},
	{"QuickShop", -0.10, 0.08},
}

var priceSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"summary":   map[string]any{"type": "string"},
		"best_deal": map[string]any{"type": "string"},
	},
	"required": []string{"summary", "best_deal"},
}

const priceSystemPrompt = `You compare a product's price across competitor sources. Use
search_products_by_name to resolve the product, then get_competitor_prices
to fetch each source's price. Call submit_result with a one-paragraph
side-by-side summary and the name of the single best_deal source.`

// PriceAgent answers "where's this cheapest" style queries. Competitor
// prices are a deterministic pure function of (product_id, source,
// base_price) so the mock is reproducible without a live feed, and the
// per-product result is cached for an hour.
type PriceAgent struct{}

func (a *PriceAgent) Name() string { return priceName }

func (a *PriceAgent) Process(ctx context.Context, query string, rc Context) Response {
	if rc.Deps == nil {
		return Fail(priceName, ErrDependenciesMissing)
	}

	productID, _ := rc.StructuredHints["product_id"].(string)
	if productID == "" {
		if name, ok := rc.StructuredHints["product_name"].(string); ok && name != "" {
			if p, found, err := rc.Deps.Catalog.FindProductByName(ctx, name); err == nil && found {
				productID = p.ID
			}
		}
	}

	if productID != "" && rc.Deps.PriceCache != nil {
		if cached, ok := rc.Deps.PriceCache.Get(ctx, productID); ok {
			var data map[string]any
			if err := json.Unmarshal(cached, &data); err == nil {
				data["cached"] = true
				return Response{Success: true, Data: data}
			}
		}
	}

	registry := tools.NewRegistry()
	priceTool := &competitorPricesTool{catalog: rc.Deps.Catalog}
	registry.Register(&searchProductsByNameTool{catalog: rc.Deps.Catalog})
	registry.Register(priceTool)

	raw, err := RunToolLoop(ctx, rc.Deps.LLM, rc.Deps.Model, priceSystemPrompt, query, registry, priceSchema, rc.Deps.MaxTurns)
	if err != nil {
		return Fail(priceName, err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Fail(priceName, fmt.Errorf("malformed output: %w", err))
	}
	parsed["cached"] = false

	if quote := priceTool.lastQuote; quote != nil {
		parsed["prices"] = quote.Prices
		parsed["best_source"] = quote.BestSource
		parsed["best_price"] = quote.BestPrice
		parsed["savings_pct"] = quote.SavingsPct
		if productID == "" {
			productID = quote.ProductID
		}
	}

	if productID != "" && rc.Deps.PriceCache != nil {
		if b, err := json.Marshal(parsed); err == nil {
			rc.Deps.PriceCache.Set(ctx, productID, b, priceCacheTTL)
		}
	}

	return Response{Success: true, Data: parsed}
}

// --- tools ---

type searchProductsByNameTool struct{ catalog catalog.Catalog }

func (t *searchProductsByNameTool) Name() string { return "search_products_by_name" }

func (t *searchProductsByNameTool) JSONSchema() map[string]any {
	return map[string]any{
		"description": "Resolve a shopper's free-text product reference to a catalog product.",
		"parameters": map[string]any{
			"type":       "object",
			"properties": map[string]any{"name": map[string]any{"type": "string"}},
			"required":   []string{"name"},
		},
	}
}

func (t *searchProductsByNameTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
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
	return map[string]any{"found": true, "product_id": p.ID, "name": p.Name, "price": p.Price}, nil
}

// PriceQuote mirrors spec.md's PriceQuote data model.
type PriceQuote struct {
	ProductID  string             `json:"product_id"`
	Prices     map[string]float64 `json:"prices"`
	BestSource string             `json:"best_source"`
	BestPrice  float64            `json:"best_price"`
	SavingsPct float64            `json:"savings_pct"`
	CachedAt   int64              `json:"cached_at"`
}

type competitorPricesTool struct {
	catalog   catalog.Catalog
	lastQuote *PriceQuote
}

func (t *competitorPricesTool) Name() string { return "get_competitor_prices" }

func (t *competitorPricesTool) JSONSchema() map[string]any {
	return map[string]any{
		"description": "Fetch deterministic mock competitor prices for a product_id.",
		"parameters": map[string]any{
			"type":       "object",
			"properties": map[string]any{"product_id": map[string]any{"type": "string"}},
			"required":   []string{"product_id"},
		},
	}
}

func (t *competitorPricesTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
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

	quote := computeQuote(p.ID, p.Price)
	quote.CachedAt = time.Now().Unix()
	t.lastQuote = &quote
	return quote, nil
}

// computeQuote derives every source's price deterministically from
// hash(product_id || source), so repeated calls for the same product always
// return identical prices without a live upstream feed.
func computeQuote(productID string, basePrice float64) PriceQuote {
	prices := make(map[string]float64, len(competitorSources))
	var bestSource string
	bestPrice := -1.0
	for _, src := range competitorSources {
		offset := stableUnitInterval(productID, src.name)
		pct := src.lowPct + offset*(src.highPct-src.lowPct)
		price := round99(basePrice * (1 + pct))
		prices[src.name] = price
		if bestPrice < 0 || price < bestPrice {
			bestPrice = price
			bestSource = src.name
		}
	}
	savings := 0.0
	if basePrice > 0 {
		savings = (basePrice - bestPrice) / basePrice * 100
		if savings < 0 {
			savings = 0
		}
		if savings > 100 {
			savings = 100
		}
	}
	return PriceQuote{
		ProductID:  productID,
		Prices:     prices,
		BestSource: bestSource,
		BestPrice:  bestPrice,
		SavingsPct: savings,
	}
}

// stableUnitInterval maps hash(productID || source) into [0, 1).
func stableUnitInterval(productID, source string) float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(productID))
	_, _ = h.Write([]byte("\x00"))
	_, _ = h.Write([]byte(source))
	return float64(h.Sum64()%10000) / 10000
}

// round99 applies the ".99" retail convention: it drops the cents and sets
// them to .99 within the same whole dollar (103.40 becomes 103.99).
func round99(price float64) float64 {
	if price < 0 {
		price = 0
	}
	whole := float64(int64(price))
	return whole + 0.99
}
