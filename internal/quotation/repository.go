package quotation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

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
	CreateQuotation(ctx context.Context, q Quotation) (int64, error)
	InsertItem(ctx context.Context, item Item) (int64, error)
	CreateToken(ctx context.Context, token SupplierToken) error
	CloseQuotation(ctx context.Context, id int64, at time.Time) (bool, error)
	ApproveQuotation(ctx context.Context, id, supplierID, actorID int64, at time.Time) (bool, error)
	CancelQuotation(ctx context.Context, id int64, from Status, at time.Time) (bool, error)
	ReplaceSupplierResponses(ctx context.Context, quotationID, supplierID int64, responses []Response) error
	MarkTokenAnswered(ctx context.Context, tokenID int64, at time.Time) error
	InsertPriceHistory(ctx context.Context, productID, colorID, supplierID int64, price decimal.Decimal, quotationID int64) error
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

const quotationColumns = `id, number, status, deadline, notes, created_by, chosen_supplier_id, approved_by, approved_at, closed_at, cancelled_at, created_at, updated_at`

func scanQuotation(row pgx.Row) (Quotation, error) {
	var q Quotation
	err := row.Scan(&q.ID, &q.Number, &q.Status, &q.Deadline, &q.Notes, &q.CreatedBy,
		&q.ChosenSupplierID, &q.ApprovedBy, &q.ApprovedAt, &q.ClosedAt, &q.CancelledAt,
		&q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quotation{}, ErrNotFound
		}
		return Quotation{}, err
	}
	return q, nil
}

// Get returns the quotation header and its items.
func (r *Repository) Get(ctx context.Context, id int64) (Quotation, []Item, error) {
	q, err := scanQuotation(r.pool.QueryRow(ctx, `SELECT `+quotationColumns+` FROM quotations WHERE id=$1`, id))
	if err != nil {
		return Quotation{}, nil, err
	}
	items, err := r.listItems(ctx, id)
	if err != nil {
		return Quotation{}, nil, err
	}
	return q, items, nil
}

func (r *Repository) listItems(ctx context.Context, quotationID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, quotation_id, product_id, color_id, quantity, notes
		FROM quotation_items WHERE quotation_id=$1 ORDER BY id ASC`, quotationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.QuotationID, &it.ProductID, &it.ColorID, &it.Quantity, &it.Notes); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListFilters narrows quotation listings.
type ListFilters struct {
	Status string
	Search string
}

// List returns quotations with total count, newest first.
func (r *Repository) List(ctx context.Context, limit, offset int, filters ListFilters) ([]Quotation, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filters.Status != "" {
		args = append(args, filters.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		where += fmt.Sprintf(` AND number ILIKE $%d`, len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM quotations`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, `SELECT `+quotationColumns+` FROM quotations`+where+
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Quotation
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, q)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// GetTokenRecord resolves a supplier token.
func (r *Repository) GetTokenRecord(ctx context.Context, token string) (SupplierToken, error) {
	var t SupplierToken
	err := r.pool.QueryRow(ctx, `
		SELECT id, quotation_id, supplier_id, token, answered_at, created_at
		FROM quotation_tokens WHERE token=$1`, token).
		Scan(&t.ID, &t.QuotationID, &t.SupplierID, &t.Token, &t.AnsweredAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SupplierToken{}, ErrTokenNotFound
		}
		return SupplierToken{}, err
	}
	return t, nil
}

// ListTokens returns every supplier token of a quotation.
func (r *Repository) ListTokens(ctx context.Context, quotationID int64) ([]SupplierToken, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, quotation_id, supplier_id, token, answered_at, created_at
		FROM quotation_tokens WHERE quotation_id=$1 ORDER BY supplier_id ASC`, quotationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []SupplierToken
	for rows.Next() {
		var t SupplierToken
		if err := rows.Scan(&t.ID, &t.QuotationID, &t.SupplierID, &t.Token, &t.AnsweredAt, &t.CreatedAt); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

const responseColumns = `id, quotation_id, item_id, supplier_id, unit_price, lead_time_days, historical_price, notes, created_at`

func (r *Repository) queryResponses(ctx context.Context, sql string, args ...any) ([]Response, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var responses []Response
	for rows.Next() {
		var resp Response
		if err := rows.Scan(&resp.ID, &resp.QuotationID, &resp.ItemID, &resp.SupplierID,
			&resp.UnitPrice, &resp.LeadTimeDays, &resp.HistoricalPrice, &resp.Notes, &resp.CreatedAt); err != nil {
			return nil, err
		}
		responses = append(responses, resp)
	}
	return responses, rows.Err()
}

// ListResponses returns all responses of a quotation.
func (r *Repository) ListResponses(ctx context.Context, quotationID int64) ([]Response, error) {
	return r.queryResponses(ctx, `SELECT `+responseColumns+` FROM quotation_responses WHERE quotation_id=$1 ORDER BY supplier_id, item_id`, quotationID)
}

// ListSupplierResponses returns one supplier's responses.
func (r *Repository) ListSupplierResponses(ctx context.Context, quotationID, supplierID int64) ([]Response, error) {
	return r.queryResponses(ctx, `SELECT `+responseColumns+` FROM quotation_responses WHERE quotation_id=$1 AND supplier_id=$2 ORDER BY item_id`, quotationID, supplierID)
}

// CountResponses counts all responses of a quotation.
func (r *Repository) CountResponses(ctx context.Context, quotationID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM quotation_responses WHERE quotation_id=$1`, quotationID).Scan(&n)
	return n, err
}

// CountSupplierResponses counts one supplier's responses.
func (r *Repository) CountSupplierResponses(ctx context.Context, quotationID, supplierID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM quotation_responses WHERE quotation_id=$1 AND supplier_id=$2`, quotationID, supplierID).Scan(&n)
	return n, err
}

// LastPaidPrice returns the most recent approved price for the
// product/color/supplier triple, nil when there is no history.
func (r *Repository) LastPaidPrice(ctx context.Context, productID, colorID, supplierID int64) (*decimal.Decimal, error) {
	var price decimal.Decimal
	err := r.pool.QueryRow(ctx, `
		SELECT unit_price FROM price_history
		WHERE product_id=$1 AND color_id=$2 AND supplier_id=$3
		ORDER BY recorded_at DESC LIMIT 1`, productID, colorID, supplierID).Scan(&price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &price, nil
}

// Transactional operations

func (tx *txRepo) AllocateNumber(ctx context.Context) (string, error) {
	return shared.NextDocumentNumber(ctx, tx.tx, shared.DocPrefixQuotation)
}

func (tx *txRepo) CreateQuotation(ctx context.Context, q Quotation) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `
		INSERT INTO quotations (number, status, deadline, notes, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id`,
		q.Number, q.Status, q.Deadline, q.Notes, q.CreatedBy).Scan(&id)
	return id, err
}

func (tx *txRepo) InsertItem(ctx context.Context, item Item) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `
		INSERT INTO quotation_items (quotation_id, product_id, color_id, quantity, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		item.QuotationID, item.ProductID, item.ColorID, item.Quantity, item.Notes).Scan(&id)
	return id, err
}

func (tx *txRepo) CreateToken(ctx context.Context, token SupplierToken) error {
	_, err := tx.tx.Exec(ctx, `
		INSERT INTO quotation_tokens (quotation_id, supplier_id, token, created_at)
		VALUES ($1, $2, $3, NOW())`,
		token.QuotationID, token.SupplierID, token.Token)
	return err
}

// CloseQuotation flips ABERTA to FECHADA. The WHERE status guard makes the
// transition a lost-update safe check-and-set.
func (tx *txRepo) CloseQuotation(ctx context.Context, id int64, at time.Time) (bool, error) {
	tag, err := tx.tx.Exec(ctx, `
		UPDATE quotations SET status=$3, closed_at=$4, updated_at=NOW()
		WHERE id=$1 AND status=$2`,
		id, StatusOpen, StatusClosed, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (tx *txRepo) ApproveQuotation(ctx context.Context, id, supplierID, actorID int64, at time.Time) (bool, error) {
	tag, err := tx.tx.Exec(ctx, `
		UPDATE quotations
		SET status=$3, chosen_supplier_id=$4, approved_by=$5, approved_at=$6, updated_at=NOW()
		WHERE id=$1 AND status=$2`,
		id, StatusClosed, StatusApproved, supplierID, actorID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (tx *txRepo) CancelQuotation(ctx context.Context, id int64, from Status, at time.Time) (bool, error) {
	tag, err := tx.tx.Exec(ctx, `
		UPDATE quotations SET status=$3, cancelled_at=$4, updated_at=NOW()
		WHERE id=$1 AND status=$2`,
		id, from, StatusCancelled, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (tx *txRepo) ReplaceSupplierResponses(ctx context.Context, quotationID, supplierID int64, responses []Response) error {
	if _, err := tx.tx.Exec(ctx, `
		DELETE FROM quotation_responses WHERE quotation_id=$1 AND supplier_id=$2`,
		quotationID, supplierID); err != nil {
		return err
	}
	for _, resp := range responses {
		if _, err := tx.tx.Exec(ctx, `
			INSERT INTO quotation_responses (quotation_id, item_id, supplier_id, unit_price, lead_time_days, historical_price, notes, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`,
			quotationID, resp.ItemID, supplierID, resp.UnitPrice, resp.LeadTimeDays, resp.HistoricalPrice, resp.Notes); err != nil {
			return err
		}
	}
	return nil
}

func (tx *txRepo) MarkTokenAnswered(ctx context.Context, tokenID int64, at time.Time) error {
	_, err := tx.tx.Exec(ctx, `UPDATE quotation_tokens SET answered_at=$2 WHERE id=$1`, tokenID, at)
	return err
}

func (tx *txRepo) InsertPriceHistory(ctx context.Context, productID, colorID, supplierID int64, price decimal.Decimal, quotationID int64) error {
	_, err := tx.tx.Exec(ctx, `
		INSERT INTO price_history (product_id, color_id, supplier_id, unit_price, quotation_id, recorded_at)
		VALUES ($1, $2, $3, $4, $5, NOW())`,
		productID, colorID, supplierID, price, quotationID)
	return err
}
