// Package clients manages B2B client masterdata.
package clients

import (
	"time"

	"github.com/tramatex-erp/tramatex-erp/internal/shared"
)

// Client represents a wholesale (B2B) customer.
type Client struct {
	ID          int64     `json:"id"`
	CompanyName string    `json:"razao_social"`
	TradeName   string    `json:"nome_fantasia,omitempty"`
	CNPJ        string    `json:"cnpj"`
	Email       string    `json:"email,omitempty"`
	WhatsApp    string    `json:"whatsapp,omitempty"`
	Address     string    `json:"endereco,omitempty"`
	Active      bool      `json:"ativo"`
	CreatedAt   time.Time `json:"criado_em"`
	UpdatedAt   time.Time `json:"atualizado_em"`
}

var (
	// ErrNotFound indicates a missing client.
	ErrNotFound = shared.NotFoundf("cliente não encontrado")
	// ErrCNPJTaken indicates a duplicate CNPJ.
	ErrCNPJTaken = shared.Conflictf("CNPJ já cadastrado")
)
