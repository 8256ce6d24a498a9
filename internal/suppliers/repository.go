package suppliers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for suppliers.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const supplierColumns = `id, name, cnpj, email, whatsapp, contact, active, created_at, updated_at`

func scanSupplier(row pgx.Row) (Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.Name, &s.CNPJ, &s.Email, &s.WhatsApp, &s.Contact, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Supplier{}, ErrNotFound
		}
		return Supplier{}, err
	}
	return s, nil
}

// Create inserts a supplier.
func (r *Repository) Create(ctx context.Context, s Supplier) (Supplier, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO suppliers (name, cnpj, email, whatsapp, contact, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		s.Name, s.CNPJ, s.Email, s.WhatsApp, s.Contact, s.Active,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Supplier{}, ErrCNPJTaken
		}
		return Supplier{}, err
	}
	return s, nil
}

// Update persists mutable fields.
func (r *Repository) Update(ctx context.Context, s Supplier) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE suppliers SET name=$2, cnpj=$3, email=$4, whatsapp=$5, contact=$6, active=$7, updated_at=NOW()
		WHERE id=$1`,
		s.ID, s.Name, s.CNPJ, s.Email, s.WhatsApp, s.Contact, s.Active)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrCNPJTaken
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Get fetches a supplier by ID.
func (r *Repository) Get(ctx context.Context, id int64) (Supplier, error) {
	return scanSupplier(r.pool.QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id=$1`, id))
}

// ListActive returns every active supplier ordered by ID. Quotation open
// depends on this ordering being stable.
func (r *Repository) ListActive(ctx context.Context) ([]Supplier, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE active ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

// List returns suppliers with total count.
func (r *Repository) List(ctx context.Context, limit, offset int, search string) ([]Supplier, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if search != "" {
		args = append(args, "%"+search+"%")
		where += fmt.Sprintf(` AND (name ILIKE $%d OR cnpj ILIKE $%d)`, len(args), len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM suppliers`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, `SELECT `+supplierColumns+` FROM suppliers`+where+
		fmt.Sprintf(` ORDER BY name ASC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
