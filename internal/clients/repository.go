package clients

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for clients.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const clientColumns = `id, company_name, trade_name, cnpj, email, whatsapp, address, active, created_at, updated_at`

func scanClient(row pgx.Row) (Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.CompanyName, &c.TradeName, &c.CNPJ, &c.Email, &c.WhatsApp, &c.Address, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, ErrNotFound
		}
		return Client{}, err
	}
	return c, nil
}

// Create inserts a client.
func (r *Repository) Create(ctx context.Context, c Client) (Client, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO clients (company_name, trade_name, cnpj, email, whatsapp, address, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		c.CompanyName, c.TradeName, c.CNPJ, c.Email, c.WhatsApp, c.Address, c.Active,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Client{}, ErrCNPJTaken
		}
		return Client{}, err
	}
	return c, nil
}

// Update persists mutable fields.
func (r *Repository) Update(ctx context.Context, c Client) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE clients SET company_name=$2, trade_name=$3, cnpj=$4, email=$5, whatsapp=$6, address=$7, active=$8, updated_at=NOW()
		WHERE id=$1`,
		c.ID, c.CompanyName, c.TradeName, c.CNPJ, c.Email, c.WhatsApp, c.Address, c.Active)
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

// Get fetches a client by ID.
func (r *Repository) Get(ctx context.Context, id int64) (Client, error) {
	return scanClient(r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id=$1`, id))
}

// List returns clients with total count.
func (r *Repository) List(ctx context.Context, limit, offset int, search string) ([]Client, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if search != "" {
		args = append(args, "%"+search+"%")
		where += fmt.Sprintf(` AND (company_name ILIKE $%d OR trade_name ILIKE $%d OR cnpj ILIKE $%d)`, len(args), len(args), len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM clients`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, `SELECT `+clientColumns+` FROM clients`+where+
		fmt.Sprintf(` ORDER BY company_name ASC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
