package catalog

import (
	"context"
	"sort"
	"strings"
)

// MemoryCatalog is an in-memory Catalog implementation, used in tests and as
// a zero-dependency fallback.
type MemoryCatalog struct {
	Products []Product
	Reviews  []Review
	Policies []Policy
}

// Ping always succeeds: the in-memory catalog has no backend to lose.
func (m *MemoryCatalog) Ping(_ context.Context) error { return nil }

func (m *MemoryCatalog) SearchProducts(_ context.Context, filter ProductFilter) ([]Product, error) {
	var out []Product
	for _, p := range m.Products {
		if filter.Category != "" && !strings.EqualFold(p.Category, filter.Category) {
			continue
		}
		if filter.Brand != "" && !strings.EqualFold(p.Brand, filter.Brand) {
			continue
		}
		if filter.MinPrice > 0 && p.Price < filter.MinPrice {
			continue
		}
		if filter.MaxPrice > 0 && p.Price > filter.MaxPrice {
			continue
		}
		if filter.Query != "" &&
			!strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Query)) &&
			!strings.Contains(strings.ToLower(p.Description), strings.ToLower(filter.Query)) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MemoryCatalog) GetProduct(_ context.Context, productID string) (Product, bool, error) {
	for _, p := range m.Products {
		if p.ID == productID {
			return p, true, nil
		}
	}
	return Product{}, false, nil
}

func (m *MemoryCatalog) ListCategories(_ context.Context) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, p := range m.Products {
		if p.Category != "" && !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryCatalog) FindProductByName(_ context.Context, name string) (Product, bool, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	var best Product
	found := false
	for _, p := range m.Products {
		if strings.Contains(strings.ToLower(p.Name), name) {
			if !found || len(p.Name) < len(best.Name) {
				best = p
				found = true
			}
		}
	}
	return best, found, nil
}

func (m *MemoryCatalog) ReviewStats(_ context.Context, productID string) (ReviewStats, error) {
	var stats ReviewStats
	var ratingSum int
	for _, r := range m.Reviews {
		if r.ProductID != productID {
			continue
		}
		stats.TotalReviews++
		ratingSum += r.Rating
		switch r.Sentiment {
		case SentimentPositive:
			stats.PositiveCount++
		case SentimentNegative:
			stats.NegativeCount++
		default:
			stats.NeutralCount++
		}
	}
	if stats.TotalReviews > 0 {
		stats.AverageRating = float64(ratingSum) / float64(stats.TotalReviews)
	}
	return stats, nil
}

func (m *MemoryCatalog) ReviewSamples(_ context.Context, productID string, sentiment Sentiment, limit int) ([]Review, error) {
	var out []Review
	for _, r := range m.Reviews {
		if r.ProductID != productID || r.Sentiment != sentiment {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryCatalog) ListPolicies(_ context.Context) ([]Policy, error) {
	return m.Policies, nil
}

func (m *MemoryCatalog) PolicyRowCount(_ context.Context) (int, error) {
	return len(m.Policies), nil
}
