package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for the catalog.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Pool exposes the underlying pool for ledger calls outside a transaction.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

const productColumns = `id, reference, name, composition, width_meters, gram_weight, active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Reference, &p.Name, &p.Composition, &p.WidthMeters, &p.GramWeight, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, err
	}
	return p, nil
}

// CreateProduct inserts a product.
func (r *Repository) CreateProduct(ctx context.Context, p Product) (Product, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO products (reference, name, composition, width_meters, gram_weight, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		p.Reference, p.Name, p.Composition, p.WidthMeters, p.GramWeight, p.Active,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Product{}, ErrReferenceTaken
		}
		return Product{}, err
	}
	return p, nil
}

// UpdateProduct persists mutable fields.
func (r *Repository) UpdateProduct(ctx context.Context, p Product) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE products SET reference=$2, name=$3, composition=$4, width_meters=$5, gram_weight=$6, active=$7, updated_at=NOW()
		WHERE id=$1`,
		p.ID, p.Reference, p.Name, p.Composition, p.WidthMeters, p.GramWeight, p.Active)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrReferenceTaken
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// GetProduct fetches a product by ID.
func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
}

// ListFilters narrows product listings.
type ListFilters struct {
	Search     string
	ActiveOnly bool
}

// ListProducts returns products with total count.
func (r *Repository) ListProducts(ctx context.Context, limit, offset int, filters ListFilters) ([]Product, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		where += fmt.Sprintf(` AND (name ILIKE $%d OR reference ILIKE $%d)`, len(args), len(args))
	}
	if filters.ActiveOnly {
		where += ` AND active`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products`+where+
		fmt.Sprintf(` ORDER BY name ASC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// CreateColor inserts a colorway for a product.
func (r *Repository) CreateColor(ctx context.Context, c Color) (Color, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO colors (product_id, name, hex, active, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at`,
		c.ProductID, c.Name, c.Hex, c.Active,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Color{}, ErrProductNotFound
		}
		return Color{}, err
	}
	return c, nil
}

// UpdateColor persists name/hex/active.
func (r *Repository) UpdateColor(ctx context.Context, c Color) error {
	tag, err := r.pool.Exec(ctx, `UPDATE colors SET name=$2, hex=$3, active=$4 WHERE id=$1`,
		c.ID, c.Name, c.Hex, c.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrColorNotFound
	}
	return nil
}

// GetColor fetches a colorway by ID.
func (r *Repository) GetColor(ctx context.Context, id int64) (Color, error) {
	var c Color
	err := r.pool.QueryRow(ctx, `SELECT id, product_id, name, hex, active, created_at FROM colors WHERE id=$1`, id).
		Scan(&c.ID, &c.ProductID, &c.Name, &c.Hex, &c.Active, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Color{}, ErrColorNotFound
		}
		return Color{}, err
	}
	return c, nil
}

// ListColors returns all colorways of a product.
func (r *Repository) ListColors(ctx context.Context, productID int64) ([]Color, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, name, hex, active, created_at FROM colors WHERE product_id=$1 ORDER BY name ASC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Color
	for rows.Next() {
		var c Color
		if err := rows.Scan(&c.ID, &c.ProductID, &c.Name, &c.Hex, &c.Active, &c.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// ProductColorExists verifies that the color belongs to the product and
// both are active. Used by quotation and order validation.
func (r *Repository) ProductColorExists(ctx context.Context, productID, colorID int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM colors c
			JOIN products p ON p.id = c.product_id
			WHERE c.id=$2 AND p.id=$1 AND c.active AND p.active
		)`, productID, colorID).Scan(&ok)
	return ok, err
}
