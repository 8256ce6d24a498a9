package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Document number prefixes used across the workflows.
const (
	DocPrefixQuotation     = "COT"
	DocPrefixOrder         = "B2B"
	DocPrefixStockCount    = "INV"
	DocPrefixReplenishment = "REQ"
)

// RowQuerier is satisfied by *pgxpool.Pool and pgx.Tx.
type RowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NextDocumentNumber allocates the next sequential document number for the
// given prefix within the current year, e.g. COT-2026-0042. The sequence row
// is bumped with an upsert so allocation stays correct inside the caller's
// transaction.
func NextDocumentNumber(ctx context.Context, q RowQuerier, prefix string) (string, error) {
	year := time.Now().Year()
	var n int64
	err := q.QueryRow(ctx, `
		INSERT INTO document_sequences (prefix, year, last_value)
		VALUES ($1, $2, 1)
		ON CONFLICT (prefix, year)
		DO UPDATE SET last_value = document_sequences.last_value + 1
		RETURNING last_value`, prefix, year).Scan(&n)
	if err != nil {
		return "", fmt.Errorf("shared: allocate %s number: %w", prefix, err)
	}
	return FormatDocumentNumber(prefix, year, n), nil
}

// FormatDocumentNumber renders PREFIX-YYYY-NNNN with zero padding.
func FormatDocumentNumber(prefix string, year int, n int64) string {
	return fmt.Sprintf("%s-%d-%04d", prefix, year, n)
}
