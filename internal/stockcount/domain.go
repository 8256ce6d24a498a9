// Package stockcount implements inventory reconciliation sessions: a
// bounded physical count whose per-item divergences (counted − system)
// are applied to the stock ledger atomically on finalization.
package stockcount

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tramatex-erp/tramatex-erp/internal/shared"
)

// SessionType distinguishes a full inventory from a spot check.
type SessionType string

const (
	TypeInventory SessionType = "INVENTARIO"
	TypeSpotCheck SessionType = "CONFERENCIA_PONTUAL"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusInProgress Status = "EM_ANDAMENTO"
	StatusFinalized  Status = "FINALIZADO"
	StatusCancelled  Status = "CANCELADO"
)

// Session is one counting exercise.
type Session struct {
	ID            int64       `json:"id"`
	Number        string      `json:"numero"`
	Type          SessionType `json:"tipo"`
	Status        Status      `json:"status"`
	ResponsibleID int64       `json:"responsavel_id"`
	Notes         string      `json:"observacoes,omitempty"`
	CancelReason  string      `json:"motivo_cancelamento,omitempty"`
	FinalizedAt   *time.Time  `json:"finalizado_em,omitempty"`
	CancelledAt   *time.Time  `json:"cancelado_em,omitempty"`
	CreatedAt     time.Time   `json:"criado_em"`
	UpdatedAt     time.Time   `json:"atualizado_em"`
}

// Item is one counted product/color line. SystemQty is snapshotted from
// the ledger when the line is added; Divergence = CountedQty − SystemQty.
type Item struct {
	ID         int64           `json:"id"`
	SessionID  int64           `json:"inventario_id"`
	ProductID  int64           `json:"produto_id"`
	ColorID    int64           `json:"cor_id"`
	SystemQty  decimal.Decimal `json:"quantidade_sistema"`
	CountedQty decimal.Decimal `json:"quantidade_contada"`
	Divergence decimal.Decimal `json:"divergencia"`
	BatchLabel string          `json:"lote,omitempty"`
	Notes      string          `json:"observacoes,omitempty"`
	OCRPayload string          `json:"ocr_payload,omitempty"`
	CreatedAt  time.Time       `json:"criado_em"`
	UpdatedAt  time.Time       `json:"atualizado_em"`
}

var (
	// ErrNotFound indicates a missing session.
	ErrNotFound = shared.NotFoundf("inventário não encontrado")
	// ErrItemNotFound indicates a missing session item.
	ErrItemNotFound = shared.NotFoundf("item do inventário não encontrado")
	// ErrNotInProgress occurs when mutating a frozen session.
	ErrNotInProgress = shared.Conflictf("inventário não está em andamento")
	// ErrNoItems occurs when finalizing an empty session.
	ErrNoItems = shared.Conflictf("inventário não possui itens contados")
	// ErrReasonRequired occurs when cancelling without a reason.
	ErrReasonRequired = shared.Validationf("motivo do cancelamento é obrigatório")
)
