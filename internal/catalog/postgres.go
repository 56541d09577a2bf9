package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// OpenPool dials a Postgres connection pool for the catalog database.
func OpenPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("catalog: ping pool: %w", err)
	}
	return pool, nil
}

// PostgresCatalog is the production Catalog implementation, reading from a
// relational schema owned by an external ingestion pipeline.
type PostgresCatalog struct {
	pool *pgxpool.Pool
}

// NewPostgresCatalog wraps an already-opened pool.
func NewPostgresCatalog(pool *pgxpool.Pool) *PostgresCatalog {
	return &PostgresCatalog{pool: pool}
}

// Ping reports whether the underlying connection pool is currently
// reachable, used by the health endpoint's readiness detail.
func (c *PostgresCatalog) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

func (c *PostgresCatalog) SearchProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.Category != "" {
		add("lower(category) = lower($%d)", filter.Category)
	}
	if filter.Brand != "" {
		add("lower(brand) = lower($%d)", filter.Brand)
	}
	if filter.MinPrice > 0 {
		add("price >= $%d", filter.MinPrice)
	}
	if filter.MaxPrice > 0 {
		add("price <= $%d", filter.MaxPrice)
	}
	if filter.Query != "" {
		add("(name ILIKE '%%' || $%d || '%%' OR description ILIKE '%%' || $%d || '%%')", filter.Query)
		args = append(args, filter.Query)
		clauses[len(clauses)-1] = fmt.Sprintf("(name ILIKE '%%' || $%d || '%%' OR description ILIKE '%%' || $%d || '%%')", len(args)-1, len(args))
	}

	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT id, name, description, price, brand, category, stock, rating, image_url, created_at, updated_at
		FROM products %s ORDER BY rating DESC LIMIT %d`, where, limit)

	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: search products: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Brand, &p.Category,
			&p.Stock, &p.Rating, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("catalog: scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (c *PostgresCatalog) GetProduct(ctx context.Context, productID string) (Product, bool, error) {
	var p Product
	err := c.pool.QueryRow(ctx, `SELECT id, name, description, price, brand, category, stock, rating, image_url, created_at, updated_at
		FROM products WHERE id = $1`, productID).
		Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Brand, &p.Category, &p.Stock, &p.Rating, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return Product{}, false, nil
		}
		return Product{}, false, fmt.Errorf("catalog: get product: %w", err)
	}
	return p, true, nil
}

func (c *PostgresCatalog) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := c.pool.Query(ctx, `SELECT DISTINCT category FROM products WHERE category <> '' ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list categories: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var cat string
		if err := rows.Scan(&cat); err != nil {
			return nil, err
		}
		out = append(out, cat)
	}
	return out, rows.Err()
}

func (c *PostgresCatalog) FindProductByName(ctx context.Context, name string) (Product, bool, error) {
	var p Product
	err := c.pool.QueryRow(ctx, `SELECT id, name, description, price, brand, category, stock, rating, image_url, created_at, updated_at
		FROM products WHERE name ILIKE '%' || $1 || '%' ORDER BY length(name) ASC LIMIT 1`, name).
		Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Brand, &p.Category, &p.Stock, &p.Rating, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return Product{}, false, nil
		}
		return Product{}, false, fmt.Errorf("catalog: find product by name: %w", err)
	}
	return p, true, nil
}

func (c *PostgresCatalog) ReviewStats(ctx context.Context, productID string) (ReviewStats, error) {
	var stats ReviewStats
	err := c.pool.QueryRow(ctx, `SELECT
			count(*),
			coalesce(avg(rating), 0),
			count(*) FILTER (WHERE sentiment = 'positive'),
			count(*) FILTER (WHERE sentiment = 'negative'),
			count(*) FILTER (WHERE sentiment = 'neutral')
		FROM reviews WHERE product_id = $1`, productID).
		Scan(&stats.TotalReviews, &stats.AverageRating, &stats.PositiveCount, &stats.NegativeCount, &stats.NeutralCount)
	if err != nil {
		return ReviewStats{}, fmt.Errorf("catalog: review stats: %w", err)
	}
	return stats, nil
}

func (c *PostgresCatalog) ReviewSamples(ctx context.Context, productID string, sentiment Sentiment, limit int) ([]Review, error) {
	rows, err := c.pool.Query(ctx, `SELECT product_id, rating, text, date, sentiment FROM reviews
		WHERE product_id = $1 AND sentiment = $2 ORDER BY date DESC LIMIT $3`, productID, string(sentiment), limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: review samples: %w", err)
	}
	defer rows.Close()
	var out []Review
	for rows.Next() {
		var r Review
		var sentimentStr string
		if err := rows.Scan(&r.ProductID, &r.Rating, &r.Text, &r.Date, &sentimentStr); err != nil {
			return nil, err
		}
		r.Sentiment = Sentiment(sentimentStr)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (c *PostgresCatalog) ListPolicies(ctx context.Context) ([]Policy, error) {
	rows, err := c.pool.Query(ctx, `SELECT policy_type, description, conditions, timeframe FROM policies`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list policies: %w", err)
	}
	defer rows.Close()
	var out []Policy
	for rows.Next() {
		var p Policy
		if err := rows.Scan(&p.PolicyType, &p.Description, &p.Conditions, &p.Timeframe); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (c *PostgresCatalog) PolicyRowCount(ctx context.Context) (int, error) {
	var n int
	if err := c.pool.QueryRow(ctx, `SELECT count(*) FROM policies`).Scan(&n); err != nil {
		return 0, fmt.Errorf("catalog: policy row count: %w", err)
	}
	return n, nil
}
