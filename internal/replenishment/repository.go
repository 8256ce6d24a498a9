package replenishment

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
// transaction to the stock ledger so fulfilment deductions stay atomic
// with the status flip.
type TxRepository interface {
	Querier() catalog.Querier
	AllocateNumber(ctx context.Context) (string, error)
	CreateRequest(ctx context.Context, req Request) (int64, error)
	InsertItem(ctx context.Context, item Item) (int64, error)
	SetItemApproved(ctx context.Context, itemID int64, qty decimal.Decimal) error
	SetItemFulfilled(ctx context.Context, itemID int64, qty decimal.Decimal) error
	Decide(ctx context.Context, id int64, to Status, deciderID int64, justification string, at time.Time) (bool, error)
	Fulfil(ctx context.Context, id int64, from, to Status, at time.Time) (bool, error)
	MarkShipped(ctx context.Context, id int64, from Status, at time.Time) (bool, error)
	Cancel(ctx context.Context, id int64, at time.Time) (bool, error)
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

const requestColumns = `id, number, store_id, status, requested_by, notes, justification,
	decided_by, decided_at, fulfilled_at, shipped_at, cancelled_at, created_at, updated_at`

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	err := row.Scan(&req.ID, &req.Number, &req.StoreID, &req.Status, &req.RequestedBy,
		&req.Notes, &req.Justification, &req.DecidedBy, &req.DecidedAt, &req.FulfilledAt,
		&req.ShippedAt, &req.CancelledAt, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, err
	}
	return req, nil
}

// Get returns the request header and its items.
func (r *Repository) Get(ctx context.Context, id int64) (Request, []Item, error) {
	req, err := scanRequest(r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM replenishment_requests WHERE id=$1`, id))
	if err != nil {
		return Request{}, nil, err
	}
	items, err := r.listItems(ctx, id)
	if err != nil {
		return Request{}, nil, err
	}
	return req, items, nil
}

func (r *Repository) listItems(ctx context.Context, requestID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, request_id, product_id, color_id, requested_qty, approved_qty, fulfilled_qty
		FROM replenishment_items WHERE request_id=$1 ORDER BY id ASC`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.RequestID, &it.ProductID, &it.ColorID,
			&it.RequestedQty, &it.ApprovedQty, &it.FulfilledQty); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListFilters narrows request listings.
type ListFilters struct {
	Status  string
	StoreID int64
}

// List returns requests with total count, newest first.
func (r *Repository) List(ctx context.Context, limit, offset int, filters ListFilters) ([]Request, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filters.Status != "" {
		args = append(args, filters.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filters.StoreID > 0 {
		args = append(args, filters.StoreID)
		where += fmt.Sprintf(` AND store_id = $%d`, len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM replenishment_requests`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, `SELECT `+requestColumns+` FROM replenishment_requests`+where+
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var requests []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return requests, total, nil
}

// Transactional operations

func (tx *txRepo) Querier() catalog.Querier {
	return tx.tx
}

func (tx *txRepo) AllocateNumber(ctx context.Context) (string, error) {
	return shared.NextDocumentNumber(ctx, tx.tx, shared.DocPrefixReplenishment)
}

func (tx *txRepo) CreateRequest(ctx context.Context, req Request) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `
		INSERT INTO replenishment_requests (number, store_id, status, requested_by, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id`,
		req.Number, req.StoreID, req.Status, req.RequestedBy, req.Notes).Scan(&id)
	return id, err
}

func (tx *txRepo) InsertItem(ctx context.Context, item Item) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `
		INSERT INTO replenishment_items (request_id, product_id, color_id, requested_qty)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		item.RequestID, item.ProductID, item.ColorID, item.RequestedQty).Scan(&id)
	return id, err
}

func (tx *txRepo) SetItemApproved(ctx context.Context, itemID int64, qty decimal.Decimal) error {
	_, err := tx.tx.Exec(ctx, `UPDATE replenishment_items SET approved_qty=$2 WHERE id=$1`, itemID, qty)
	return err
}

func (tx *txRepo) SetItemFulfilled(ctx context.Context, itemID int64, qty decimal.Decimal) error {
	_, err := tx.tx.Exec(ctx, `UPDATE replenishment_items SET fulfilled_qty=$2 WHERE id=$1`, itemID, qty)
	return err
}

func (tx *txRepo) Decide(ctx context.Context, id int64, to Status, deciderID int64, justification string, at time.Time) (bool, error) {
	tag, err := tx.tx.Exec(ctx, `
		UPDATE replenishment_requests
		SET status=$3, decided_by=$4, justification=$5, decided_at=$6, updated_at=NOW()
		WHERE id=$1 AND status=$2`,
		id, StatusPending, to, deciderID, justification, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (tx *txRepo) Fulfil(ctx context.Context, id int64, from, to Status, at time.Time) (bool, error) {
	tag, err := tx.tx.Exec(ctx, `
		UPDATE replenishment_requests SET status=$3, fulfilled_at=$4, updated_at=NOW()
		WHERE id=$1 AND status=$2`,
		id, from, to, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (tx *txRepo) MarkShipped(ctx context.Context, id int64, from Status, at time.Time) (bool, error) {
	tag, err := tx.tx.Exec(ctx, `
		UPDATE replenishment_requests SET status=$3, shipped_at=$4, updated_at=NOW()
		WHERE id=$1 AND status=$2`,
		id, from, StatusShipped, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (tx *txRepo) Cancel(ctx context.Context, id int64, at time.Time) (bool, error) {
	tag, err := tx.tx.Exec(ctx, `
		UPDATE replenishment_requests SET status=$3, cancelled_at=$4, updated_at=NOW()
		WHERE id=$1 AND status=$2`,
		id, StatusPending, StatusCancelled, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
