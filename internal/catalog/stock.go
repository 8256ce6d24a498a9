package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx so ledger mutations can
// join the caller's transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// StockLedger maintains per product/color/location balances plus a
// movement journal. All writes go through Adjust or Deduct.
type StockLedger struct{}

// NewStockLedger constructs the ledger.
func NewStockLedger() *StockLedger {
	return &StockLedger{}
}

// Adjust applies a signed delta and journals the movement. The balance may
// go negative here: reconciliation divergences are authoritative counts.
func (l *StockLedger) Adjust(ctx context.Context, q Querier, m StockMovement) error {
	if m.Delta.IsZero() {
		return nil
	}
	if _, err := q.Exec(ctx, `
		INSERT INTO stock_balances (product_id, color_id, location_id, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (product_id, color_id, location_id)
		DO UPDATE SET quantity = stock_balances.quantity + EXCLUDED.quantity`,
		m.ProductID, m.ColorID, m.LocationID, m.Delta); err != nil {
		return fmt.Errorf("catalog: adjust balance: %w", err)
	}
	return l.journal(ctx, q, m)
}

// Deduct removes quantity from a balance, failing with
// ErrInsufficientStock when the balance would go negative.
func (l *StockLedger) Deduct(ctx context.Context, q Querier, m StockMovement) error {
	if !m.Delta.IsPositive() {
		return fmt.Errorf("catalog: deduct requires positive quantity")
	}
	tag, err := q.Exec(ctx, `
		UPDATE stock_balances
		SET quantity = quantity - $4
		WHERE product_id=$1 AND color_id=$2 AND location_id=$3 AND quantity >= $4`,
		m.ProductID, m.ColorID, m.LocationID, m.Delta)
	if err != nil {
		return fmt.Errorf("catalog: deduct balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientStock
	}
	m.Delta = m.Delta.Neg()
	return l.journal(ctx, q, m)
}

// Balance returns the current quantity, zero when no row exists yet.
func (l *StockLedger) Balance(ctx context.Context, q Querier, productID, colorID, locationID int64) (decimal.Decimal, error) {
	var qty decimal.Decimal
	err := q.QueryRow(ctx, `
		SELECT quantity FROM stock_balances
		WHERE product_id=$1 AND color_id=$2 AND location_id=$3`,
		productID, colorID, locationID).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return qty, nil
}

// Movements lists journal entries for a product/color, newest first.
func (l *StockLedger) Movements(ctx context.Context, q Querier, productID, colorID int64, limit int) ([]StockMovement, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := q.Query(ctx, `
		SELECT id, product_id, color_id, location_id, delta, reason, ref_type, ref_id, actor_id, created_at
		FROM stock_movements
		WHERE product_id=$1 AND color_id=$2
		ORDER BY created_at DESC
		LIMIT $3`, productID, colorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []StockMovement
	for rows.Next() {
		var m StockMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.ColorID, &m.LocationID, &m.Delta, &m.Reason, &m.RefType, &m.RefID, &m.ActorID, &m.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

func (l *StockLedger) journal(ctx context.Context, q Querier, m StockMovement) error {
	_, err := q.Exec(ctx, `
		INSERT INTO stock_movements (product_id, color_id, location_id, delta, reason, ref_type, ref_id, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`,
		m.ProductID, m.ColorID, m.LocationID, m.Delta, m.Reason, m.RefType, m.RefID, m.ActorID)
	if err != nil {
		return fmt.Errorf("catalog: journal movement: %w", err)
	}
	return nil
}
