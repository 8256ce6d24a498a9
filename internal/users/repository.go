package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for users.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, name, email, password_hash, role, store_id, client_id, active, created_at, updated_at, last_login_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.StoreID, &u.ClientID, &u.Active, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

// Create inserts a user and returns it with the generated ID.
func (r *Repository) Create(ctx context.Context, u User) (User, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash, role, store_id, client_id, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		u.Name, u.Email, u.PasswordHash, u.Role, u.StoreID, u.ClientID, u.Active,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}
	return u, nil
}

// Update persists mutable profile fields.
func (r *Repository) Update(ctx context.Context, u User) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET name=$2, email=$3, role=$4, store_id=$5, client_id=$6, updated_at=NOW()
		WHERE id=$1`,
		u.ID, u.Name, u.Email, u.Role, u.StoreID, u.ClientID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEmailTaken
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetActive toggles the account flag.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET active=$2, updated_at=NOW() WHERE id=$1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPassword replaces the stored hash.
func (r *Repository) SetPassword(ctx context.Context, id int64, hash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLogin stamps the last successful login.
func (r *Repository) TouchLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login_at=$2 WHERE id=$1`, id, at)
	return err
}

// GetByID fetches a user by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
}

// GetByEmail fetches a user by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email)=LOWER($1)`, email))
}

// ListFilters narrows List results.
type ListFilters struct {
	Role   string
	Search string
}

// List returns users with a total count for pagination.
func (r *Repository) List(ctx context.Context, limit, offset int, filters ListFilters) ([]User, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filters.Role != "" {
		args = append(args, filters.Role)
		where += fmt.Sprintf(` AND role = $%d`, len(args))
	}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		where += fmt.Sprintf(` AND (name ILIKE $%d OR email ILIKE $%d)`, len(args), len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users`+where+
		fmt.Sprintf(` ORDER BY name ASC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
