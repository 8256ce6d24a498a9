package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tramatex-erp/tramatex-erp/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	AllocateNumber(ctx context.Context) (string, error)
	CreateOrder(ctx context.Context, o Order) (int64, error)
	InsertItem(ctx context.Context, item Item) (int64, error)
	// Transition performs the status check-and-set. The assignments are
	// extra column updates applied alongside the status flip; zero rows
	// affected means the order moved concurrently.
	Transition(ctx context.Context, id int64, from, to Status, assignments map[string]any) (bool, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	if err := fn(ctx, &txRepo{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const orderColumns = `id, number, client_id, status, delivery_address, payment_method, total,
	justification, tracking_code, carrier, delivery_lead_days, estimated_arrival,
	created_by, approved_at, paid_at, shipped_at, delivered_at, cancelled_at, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.Number, &o.ClientID, &o.Status, &o.DeliveryAddress, &o.PaymentMethod,
		&o.Total, &o.Justification, &o.TrackingCode, &o.Carrier, &o.DeliveryLeadDays,
		&o.EstimatedArrival, &o.CreatedBy, &o.ApprovedAt, &o.PaidAt, &o.ShippedAt,
		&o.DeliveredAt, &o.CancelledAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	return o, nil
}

// Get returns the order header and its items.
func (r *Repository) Get(ctx context.Context, id int64) (Order, []Item, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if err != nil {
		return Order{}, nil, err
	}
	items, err := r.listItems(ctx, id)
	if err != nil {
		return Order{}, nil, err
	}
	return o, items, nil
}

func (r *Repository) listItems(ctx context.Context, orderID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, product_id, color_id, quantity, unit_price
		FROM order_items WHERE order_id=$1 ORDER BY id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ColorID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListFilters narrows order listings.
type ListFilters struct {
	Status   string
	ClientID int64
	Search   string
}

// List returns orders with total count, newest first.
func (r *Repository) List(ctx context.Context, limit, offset int, filters ListFilters) ([]Order, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filters.Status != "" {
		args = append(args, filters.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filters.ClientID > 0 {
		args = append(args, filters.ClientID)
		where += fmt.Sprintf(` AND client_id = $%d`, len(args))
	}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		where += fmt.Sprintf(` AND number ILIKE $%d`, len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders`+where+
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Transactional operations

func (tx *txRepo) AllocateNumber(ctx context.Context) (string, error) {
	return shared.NextDocumentNumber(ctx, tx.tx, shared.DocPrefixOrder)
}

func (tx *txRepo) CreateOrder(ctx context.Context, o Order) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `
		INSERT INTO orders (number, client_id, status, delivery_address, payment_method, total, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id`,
		o.Number, o.ClientID, o.Status, o.DeliveryAddress, o.PaymentMethod, o.Total, o.CreatedBy).Scan(&id)
	return id, err
}

func (tx *txRepo) InsertItem(ctx context.Context, item Item) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `
		INSERT INTO order_items (order_id, product_id, color_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		item.OrderID, item.ProductID, item.ColorID, item.Quantity, item.UnitPrice).Scan(&id)
	return id, err
}

// allowed assignment columns, keeping the dynamic SET list closed.
var transitionColumns = map[string]bool{
	"justification":      true,
	"tracking_code":      true,
	"carrier":            true,
	"delivery_lead_days": true,
	"estimated_arrival":  true,
	"approved_at":        true,
	"paid_at":            true,
	"shipped_at":         true,
	"delivered_at":       true,
	"cancelled_at":       true,
}

func (tx *txRepo) Transition(ctx context.Context, id int64, from, to Status, assignments map[string]any) (bool, error) {
	set := `status=$3, updated_at=NOW()`
	args := []any{id, from, to}
	for col, val := range assignments {
		if !transitionColumns[col] {
			return false, fmt.Errorf("orders: unknown transition column %q", col)
		}
		args = append(args, val)
		set += fmt.Sprintf(", %s=$%d", col, len(args))
	}
	tag, err := tx.tx.Exec(ctx, `UPDATE orders SET `+set+` WHERE id=$1 AND status=$2`, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
