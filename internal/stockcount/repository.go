package stockcount

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tramatex-erp/tramatex-erp/internal/catalog"
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

// TxRepository exposes transactional operations. Querier hands the open
// transaction to the stock ledger so finalization stays atomic.
type TxRepository interface {
	Querier() catalog.Querier
	AllocateNumber(ctx context.Context) (string, error)
	CreateSession(ctx context.Context, s Session) (int64, error)
	InsertItem(ctx context.Context, item Item) (int64, error)
	UpdateItemCount(ctx context.Context, itemID int64, counted, divergence decimal.Decimal) error
	DeleteItem(ctx context.Context, itemID int64) error
	FinalizeSession(ctx context.Context, id int64, at time.Time) (bool, error)
	CancelSession(ctx context.Context, id int64, reason string, at time.Time) (bool, error)
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

const sessionColumns = `id, number, type, status, responsible_id, notes, cancel_reason, finalized_at, cancelled_at, created_at, updated_at`

func scanSession(row pgx.Row) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.Number, &s.Type, &s.Status, &s.ResponsibleID, &s.Notes,
		&s.CancelReason, &s.FinalizedAt, &s.CancelledAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	return s, nil
}

// Get returns the session header and its items.
func (r *Repository) Get(ctx context.Context, id int64) (Session, []Item, error) {
	s, err := scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM stock_count_sessions WHERE id=$1`, id))
	if err != nil {
		return Session{}, nil, err
	}
	items, err := r.ListItems(ctx, id)
	if err != nil {
		return Session{}, nil, err
	}
	return s, items, nil
}

const itemColumns = `id, session_id, product_id, color_id, system_qty, counted_qty, divergence, batch_label, notes, ocr_payload, created_at, updated_at`

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.SessionID, &it.ProductID, &it.ColorID, &it.SystemQty,
		&it.CountedQty, &it.Divergence, &it.BatchLabel, &it.Notes, &it.OCRPayload,
		&it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, err
	}
	return it, nil
}

// GetItem returns one session item.
func (r *Repository) GetItem(ctx context.Context, itemID int64) (Item, error) {
	return scanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM stock_count_items WHERE id=$1`, itemID))
}

// ListItems returns the items of a session in insertion order.
func (r *Repository) ListItems(ctx context.Context, sessionID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM stock_count_items WHERE session_id=$1 ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListFilters narrows session listings.
type ListFilters struct {
	Status string
	Type   string
}

// List returns sessions with total count, newest first.
func (r *Repository) List(ctx context.Context, limit, offset int, filters ListFilters) ([]Session, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filters.Status != "" {
		args = append(args, filters.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filters.Type != "" {
		args = append(args, filters.Type)
		where += fmt.Sprintf(` AND type = $%d`, len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stock_count_sessions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, `SELECT `+sessionColumns+` FROM stock_count_sessions`+where+
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

// Transactional operations

func (tx *txRepo) Querier() catalog.Querier {
	return tx.tx
}

func (tx *txRepo) AllocateNumber(ctx context.Context) (string, error) {
	return shared.NextDocumentNumber(ctx, tx.tx, shared.DocPrefixStockCount)
}

func (tx *txRepo) CreateSession(ctx context.Context, s Session) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `
		INSERT INTO stock_count_sessions (number, type, status, responsible_id, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id`,
		s.Number, s.Type, s.Status, s.ResponsibleID, s.Notes).Scan(&id)
	return id, err
}

func (tx *txRepo) InsertItem(ctx context.Context, item Item) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `
		INSERT INTO stock_count_items (session_id, product_id, color_id, system_qty, counted_qty, divergence, batch_label, notes, ocr_payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING id`,
		item.SessionID, item.ProductID, item.ColorID, item.SystemQty, item.CountedQty,
		item.Divergence, item.BatchLabel, item.Notes, item.OCRPayload).Scan(&id)
	return id, err
}

func (tx *txRepo) UpdateItemCount(ctx context.Context, itemID int64, counted, divergence decimal.Decimal) error {
	tag, err := tx.tx.Exec(ctx, `
		UPDATE stock_count_items SET counted_qty=$2, divergence=$3, updated_at=NOW() WHERE id=$1`,
		itemID, counted, divergence)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (tx *txRepo) DeleteItem(ctx context.Context, itemID int64) error {
	tag, err := tx.tx.Exec(ctx, `DELETE FROM stock_count_items WHERE id=$1`, itemID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (tx *txRepo) FinalizeSession(ctx context.Context, id int64, at time.Time) (bool, error) {
	tag, err := tx.tx.Exec(ctx, `
		UPDATE stock_count_sessions SET status=$3, finalized_at=$4, updated_at=NOW()
		WHERE id=$1 AND status=$2`,
		id, StatusInProgress, StatusFinalized, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (tx *txRepo) CancelSession(ctx context.Context, id int64, reason string, at time.Time) (bool, error) {
	tag, err := tx.tx.Exec(ctx, `
		UPDATE stock_count_sessions SET status=$3, cancel_reason=$4, cancelled_at=$5, updated_at=NOW()
		WHERE id=$1 AND status=$2`,
		id, StatusInProgress, StatusCancelled, reason, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
