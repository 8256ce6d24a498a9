// Package quotation implements the RFQ lifecycle: a buyer opens a
// quotation for fabric items, suppliers answer through tokenized public
// links, and the buyer closes, compares and approves a winner.
package quotation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tramatex-erp/tramatex-erp/internal/shared"
)

// Status is the quotation lifecycle state.
type Status string

const (
	StatusOpen      Status = "ABERTA"
	StatusClosed    Status = "FECHADA"
	StatusApproved  Status = "APROVADA"
	StatusCancelled Status = "CANCELADA"
)

// Quotation is the RFQ header.
type Quotation struct {
	ID               int64      `json:"id"`
	Number           string     `json:"numero"`
	Status           Status     `json:"status"`
	Deadline         time.Time  `json:"prazo_resposta"`
	Notes            string     `json:"observacoes,omitempty"`
	CreatedBy        int64      `json:"criado_por"`
	ChosenSupplierID *int64     `json:"fornecedor_escolhido_id,omitempty"`
	ApprovedBy       *int64     `json:"aprovado_por,omitempty"`
	ApprovedAt       *time.Time `json:"aprovado_em,omitempty"`
	ClosedAt         *time.Time `json:"fechado_em,omitempty"`
	CancelledAt      *time.Time `json:"cancelado_em,omitempty"`
	CreatedAt        time.Time  `json:"criado_em"`
	UpdatedAt        time.Time  `json:"atualizado_em"`
}

// Item is one product/color line the buyer wants priced.
type Item struct {
	ID          int64           `json:"id"`
	QuotationID int64           `json:"cotacao_id"`
	ProductID   int64           `json:"produto_id"`
	ColorID     int64           `json:"cor_id"`
	Quantity    decimal.Decimal `json:"quantidade"`
	Notes       string          `json:"observacoes,omitempty"`
}

// SupplierToken addresses one supplier's response link. One token per
// active supplier is minted when the quotation opens.
type SupplierToken struct {
	ID          int64      `json:"id"`
	QuotationID int64      `json:"cotacao_id"`
	SupplierID  int64      `json:"fornecedor_id"`
	Token       string     `json:"token"`
	AnsweredAt  *time.Time `json:"respondido_em,omitempty"`
	CreatedAt   time.Time  `json:"criado_em"`
}

// Response is a supplier's answer for one item. Resubmitting replaces the
// supplier's own previous answers.
type Response struct {
	ID              int64            `json:"id"`
	QuotationID     int64            `json:"cotacao_id"`
	ItemID          int64            `json:"item_id"`
	SupplierID      int64            `json:"fornecedor_id"`
	UnitPrice       decimal.Decimal  `json:"preco_unitario"`
	LeadTimeDays    int              `json:"prazo_entrega_dias"`
	HistoricalPrice *decimal.Decimal `json:"preco_historico,omitempty"`
	Notes           string           `json:"observacoes,omitempty"`
	CreatedAt       time.Time        `json:"criado_em"`
}

// SupplierLink pairs a supplier with its response URL, returned on open.
type SupplierLink struct {
	SupplierID   int64  `json:"fornecedor_id"`
	SupplierName string `json:"fornecedor_nome"`
	Token        string `json:"token"`
	URL          string `json:"url"`
	WhatsAppURL  string `json:"whatsapp_url,omitempty"`
}

var (
	// ErrNotFound indicates a missing quotation.
	ErrNotFound = shared.NotFoundf("cotação não encontrada")
	// ErrTokenNotFound indicates an unknown response token.
	ErrTokenNotFound = shared.NotFoundf("link de cotação inválido")
	// ErrInvalidState occurs when an action violates the status workflow.
	ErrInvalidState = shared.Conflictf("transição de status inválida para a cotação")
	// ErrDeadlinePassed occurs when a supplier answers after the deadline.
	ErrDeadlinePassed = shared.Conflictf("prazo de resposta da cotação expirado")
	// ErrNoResponses occurs when closing a quotation nobody answered.
	ErrNoResponses = shared.Conflictf("cotação não possui respostas de fornecedores")
	// ErrSupplierNotAnswered occurs when approving a silent supplier.
	ErrSupplierNotAnswered = shared.Validationf("fornecedor não respondeu a esta cotação")
)
