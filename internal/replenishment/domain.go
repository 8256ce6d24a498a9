// Package replenishment implements store restock requests: a store asks
// the distribution center for product quantities, the CD decides per
// item, fulfils from its own stock and ships.
package replenishment

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tramatex-erp/tramatex-erp/internal/shared"
)

// Status is the request lifecycle state.
type Status string

const (
	StatusPending            Status = "PENDENTE"
	StatusApproved           Status = "APROVADA"
	StatusPartiallyApproved  Status = "APROVADA_PARCIAL"
	StatusRefused            Status = "RECUSADA"
	StatusFulfilled          Status = "ATENDIDA"
	StatusPartiallyFulfilled Status = "ATENDIDA_PARCIAL"
	StatusShipped            Status = "ENVIADA"
	StatusCancelled          Status = "CANCELADA"
)

// Request is the restock request header.
type Request struct {
	ID            int64      `json:"id"`
	Number        string     `json:"numero"`
	StoreID       int64      `json:"loja_id"`
	Status        Status     `json:"status"`
	RequestedBy   int64      `json:"solicitado_por"`
	Notes         string     `json:"observacoes,omitempty"`
	Justification string     `json:"justificativa,omitempty"`
	DecidedBy     *int64     `json:"decidido_por,omitempty"`
	DecidedAt     *time.Time `json:"decidido_em,omitempty"`
	FulfilledAt   *time.Time `json:"atendido_em,omitempty"`
	ShippedAt     *time.Time `json:"enviado_em,omitempty"`
	CancelledAt   *time.Time `json:"cancelado_em,omitempty"`
	CreatedAt     time.Time  `json:"criado_em"`
	UpdatedAt     time.Time  `json:"atualizado_em"`
}

// Item is one requested product/color line. ApprovedQty is nil until the
// CD decides; FulfilledQty is nil until fulfilment.
type Item struct {
	ID           int64            `json:"id"`
	RequestID    int64            `json:"requisicao_id"`
	ProductID    int64            `json:"produto_id"`
	ColorID      int64            `json:"cor_id"`
	RequestedQty decimal.Decimal  `json:"quantidade_solicitada"`
	ApprovedQty  *decimal.Decimal `json:"quantidade_aprovada,omitempty"`
	FulfilledQty *decimal.Decimal `json:"quantidade_atendida,omitempty"`
}

var (
	// ErrNotFound indicates a missing request.
	ErrNotFound = shared.NotFoundf("requisição não encontrada")
	// ErrInvalidState occurs when an action violates the status workflow.
	ErrInvalidState = shared.Conflictf("transição de status inválida para a requisição")
	// ErrJustificationRequired occurs on full refusal without a reason.
	ErrJustificationRequired = shared.Validationf("justificativa é obrigatória para recusar a requisição")
	// ErrOverApproved occurs when fulfilment exceeds the approved quantity.
	ErrOverApproved = shared.Validationf("quantidade atendida não pode exceder a aprovada")
)
