// Package catalog defines the read-only product/review/policy collaborator.
// Ingestion and CRUD are explicitly out of scope; this package only reads.
package catalog

import (
	"context"
	"time"
)

// Product is a single catalog row.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       float64
	Brand       string
	Category    string
	Stock       int
	Rating      float64
	ImageURL    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Sentiment is the closed set of review sentiment labels.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Review is a single review row.
type Review struct {
	ProductID string
	Rating    int
	Text      string
	Date      time.Time
	Sentiment Sentiment
}

// Policy is a single policy row.
type Policy struct {
	PolicyType  string
	Description string
	Conditions  string
	Timeframe   string
}

// ProductFilter narrows a product search. Zero values mean "no constraint".
type ProductFilter struct {
	Category string
	Brand    string
	MinPrice float64
	MaxPrice float64
	Query    string
	Limit    int
}

// ReviewStats is a fast aggregate over a product's reviews.
type ReviewStats struct {
	TotalReviews    int
	AverageRating   float64
	PositiveCount   int
	NegativeCount   int
	NeutralCount    int
}

// Catalog is the read-only collaborator interface every agent's tools are
// built on.
type Catalog interface {
	// Ping reports whether the catalog backend is currently reachable,
	// used by the health endpoint's readiness detail.
	Ping(ctx context.Context) error

	SearchProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
	GetProduct(ctx context.Context, productID string) (Product, bool, error)
	ListCategories(ctx context.Context) ([]string, error)
	FindProductByName(ctx context.Context, name string) (Product, bool, error)

	ReviewStats(ctx context.Context, productID string) (ReviewStats, error)
	ReviewSamples(ctx context.Context, productID string, sentiment Sentiment, limit int) ([]Review, error)

	ListPolicies(ctx context.Context) ([]Policy, error)
	PolicyRowCount(ctx context.Context) (int, error)
}
