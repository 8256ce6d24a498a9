package users

import (
	"time"

	"github.com/tramatex-erp/tramatex-erp/internal/shared"
)

// User represents an application account. CLIENTE_B2B users carry the
// client ID they act for; LOJA users carry their store ID.
type User struct {
	ID           int64      `json:"id"`
	Name         string     `json:"nome"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"perfil"`
	StoreID      *int64     `json:"loja_id,omitempty"`
	ClientID     *int64     `json:"cliente_id,omitempty"`
	Active       bool       `json:"ativo"`
	CreatedAt    time.Time  `json:"criado_em"`
	UpdatedAt    time.Time  `json:"atualizado_em"`
	LastLoginAt  *time.Time `json:"ultimo_login,omitempty"`
}

var (
	// ErrNotFound indicates a missing user.
	ErrNotFound = shared.NotFoundf("usuário não encontrado")
	// ErrEmailTaken indicates a duplicate email.
	ErrEmailTaken = shared.Conflictf("e-mail já cadastrado")
)
