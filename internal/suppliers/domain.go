// Package suppliers manages fabric supplier masterdata.
package suppliers

import (
	"time"

	"github.com/tramatex-erp/tramatex-erp/internal/shared"
)

// Supplier represents a fabric supplier that answers quotations.
type Supplier struct {
	ID        int64     `json:"id"`
	Name      string    `json:"nome"`
	CNPJ      string    `json:"cnpj"`
	Email     string    `json:"email,omitempty"`
	WhatsApp  string    `json:"whatsapp,omitempty"`
	Contact   string    `json:"contato,omitempty"`
	Active    bool      `json:"ativo"`
	CreatedAt time.Time `json:"criado_em"`
	UpdatedAt time.Time `json:"atualizado_em"`
}

var (
	// ErrNotFound indicates a missing supplier.
	ErrNotFound = shared.NotFoundf("fornecedor não encontrado")
	// ErrCNPJTaken indicates a duplicate CNPJ.
	ErrCNPJTaken = shared.Conflictf("CNPJ já cadastrado")
)
