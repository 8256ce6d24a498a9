// Package orders implements the B2B wholesale order pipeline: a business
// client places an order that walks through approval, payment,
// separation, shipping and delivery, with refusal and cancellation exits.
package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tramatex-erp/tramatex-erp/internal/shared"
)

// Status is the order lifecycle state.
type Status string

const (
	StatusPending         Status = "PENDENTE"
	StatusAwaitingPayment Status = "AGUARDANDO_PAGAMENTO"
	StatusPaid            Status = "PAGO"
	StatusSeparation      Status = "EM_SEPARACAO"
	StatusShipped         Status = "ENVIADO"
	StatusDelivered       Status = "ENTREGUE"
	StatusRefused         Status = "RECUSADO"
	StatusCancelled       Status = "CANCELADO"

	// StatusApproved survives only on rows written before approval was
	// collapsed into AGUARDANDO_PAGAMENTO. New transitions never produce it.
	StatusApproved Status = "APROVADO"
)

// RollUnitMeters is the fixed increment fabric is sold in. B2B order
// quantities must be positive multiples of it.
const RollUnitMeters = 60

// MinimumOrderTotal is the smallest accepted order value, in BRL.
var MinimumOrderTotal = decimal.NewFromInt(500)

// DefaultDeliveryLeadDays is stamped on approval when the client has no
// negotiated lead time.
const DefaultDeliveryLeadDays = 15

// Order is the B2B order header.
type Order struct {
	ID               int64           `json:"id"`
	Number           string          `json:"numero"`
	ClientID         int64           `json:"cliente_id"`
	Status           Status          `json:"status"`
	DeliveryAddress  string          `json:"endereco_entrega"`
	PaymentMethod    string          `json:"forma_pagamento"`
	Total            decimal.Decimal `json:"valor_total"`
	Justification    string          `json:"justificativa,omitempty"`
	TrackingCode     string          `json:"codigo_rastreio,omitempty"`
	Carrier          string          `json:"transportadora,omitempty"`
	DeliveryLeadDays int             `json:"prazo_entrega_dias,omitempty"`
	EstimatedArrival *time.Time      `json:"previsao_entrega,omitempty"`
	CreatedBy        int64           `json:"criado_por"`
	ApprovedAt       *time.Time      `json:"aprovado_em,omitempty"`
	PaidAt           *time.Time      `json:"pago_em,omitempty"`
	ShippedAt        *time.Time      `json:"enviado_em,omitempty"`
	DeliveredAt      *time.Time      `json:"entregue_em,omitempty"`
	CancelledAt      *time.Time      `json:"cancelado_em,omitempty"`
	CreatedAt        time.Time       `json:"criado_em"`
	UpdatedAt        time.Time       `json:"atualizado_em"`
}

// Item is one order line. Unit price is frozen at creation.
type Item struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"pedido_id"`
	ProductID int64           `json:"produto_id"`
	ColorID   int64           `json:"cor_id"`
	Quantity  decimal.Decimal `json:"quantidade"`
	UnitPrice decimal.Decimal `json:"preco_unitario"`
}

// Subtotal is unit price × quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(i.Quantity)
}

// Event names sent through the client notifier.
const (
	EventApproved         = "pedido.aprovado"
	EventRefused          = "pedido.recusado"
	EventPaymentConfirmed = "pedido.pagamento_confirmado"
	EventShipped          = "pedido.enviado"
	EventDelivered        = "pedido.entregue"
	EventCancelled        = "pedido.cancelado"
)

var (
	// ErrNotFound indicates a missing order.
	ErrNotFound = shared.NotFoundf("pedido não encontrado")
	// ErrInvalidTransition occurs on any move outside the status graph.
	ErrInvalidTransition = shared.Conflictf("transição de status inválida para o pedido")
	// ErrJustificationRequired occurs on refuse/cancel without a reason.
	ErrJustificationRequired = shared.Validationf("justificativa é obrigatória")
	// ErrBelowMinimum occurs when the order total is under the B2B floor.
	ErrBelowMinimum = shared.Validationf("valor mínimo do pedido é R$ 500,00")
	// ErrNotRollMultiple occurs when a quantity breaks the roll unit.
	ErrNotRollMultiple = shared.Validationf("quantidade deve ser múltiplo positivo de 60 metros")
)

// transitions maps each action to its required current status.
var transitions = map[string]Status{
	"aprovar":             StatusPending,
	"recusar":             StatusPending,
	"confirmar_pagamento": StatusAwaitingPayment,
	"separar":             StatusPaid,
	"enviar":              StatusSeparation,
	"entregar":            StatusShipped,
}

// cancellable statuses: every non-terminal state before delivery.
var cancellable = map[Status]bool{
	StatusPending:         true,
	StatusAwaitingPayment: true,
	StatusPaid:            true,
	StatusSeparation:      true,
	StatusShipped:         true,
}
