// Package catalog holds the fabric masterdata: products, colors and the
// stock ledger shared by the workflow modules.
package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tramatex-erp/tramatex-erp/internal/shared"
)

// Product represents a fabric article sold by the meter.
type Product struct {
	ID          int64           `json:"id"`
	Reference   string          `json:"referencia"`
	Name        string          `json:"nome"`
	Composition string          `json:"composicao,omitempty"`
	WidthMeters decimal.Decimal `json:"largura_metros"`
	GramWeight  decimal.Decimal `json:"gramatura"`
	Active      bool            `json:"ativo"`
	CreatedAt   time.Time       `json:"criado_em"`
	UpdatedAt   time.Time       `json:"atualizado_em"`
}

// Color is a product colorway. The canonical schema is a single name/hex
// pair; legacy payload aliases are normalized at the HTTP boundary.
type Color struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"produto_id"`
	Name      string    `json:"nome"`
	Hex       string    `json:"hex"`
	Active    bool      `json:"ativo"`
	CreatedAt time.Time `json:"criado_em"`
}

// Stock locations. The CD (distribution center) is where quotations and
// replenishment operate; stores hold their own balances.
type Location struct {
	ID   int64  `json:"id"`
	Name string `json:"nome"`
	Type string `json:"tipo"` // CD | LOJA
}

// LocationCD is the fixed ID of the distribution center.
const LocationCD int64 = 1

// StockMovement is one journal entry against a balance.
type StockMovement struct {
	ID         int64           `json:"id"`
	ProductID  int64           `json:"produto_id"`
	ColorID    int64           `json:"cor_id"`
	LocationID int64           `json:"local_id"`
	Delta      decimal.Decimal `json:"delta"`
	Reason     string          `json:"motivo"`
	RefType    string          `json:"ref_tipo,omitempty"`
	RefID      int64           `json:"ref_id,omitempty"`
	ActorID    int64           `json:"usuario_id"`
	CreatedAt  time.Time       `json:"criado_em"`
}

// StockBalance is the current quantity for a product/color at a location.
type StockBalance struct {
	ProductID  int64           `json:"produto_id"`
	ColorID    int64           `json:"cor_id"`
	LocationID int64           `json:"local_id"`
	Quantity   decimal.Decimal `json:"quantidade"`
}

var (
	// ErrProductNotFound indicates a missing product.
	ErrProductNotFound = shared.NotFoundf("produto não encontrado")
	// ErrColorNotFound indicates a missing color.
	ErrColorNotFound = shared.NotFoundf("cor não encontrada")
	// ErrReferenceTaken indicates a duplicate product reference.
	ErrReferenceTaken = shared.Conflictf("referência de produto já cadastrada")
	// ErrInsufficientStock indicates a deduction below zero.
	ErrInsufficientStock = shared.Conflictf("estoque insuficiente")
)
