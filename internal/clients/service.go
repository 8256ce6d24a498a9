package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tramatex-erp/tramatex-erp/internal/shared"
)

// RepositoryPort defines client persistence operations.
type RepositoryPort interface {
	Create(ctx context.Context, c Client) (Client, error)
	Update(ctx context.Context, c Client) error
	Get(ctx context.Context, id int64) (Client, error)
	List(ctx context.Context, limit, offset int, search string) ([]Client, int, error)
}

// AuditPort records client mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles client business logic.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// Input carries client payloads.
type Input struct {
	CompanyName string
	TradeName   string
	CNPJ        string
	Email       string
	WhatsApp    string
	Address     string
	Active      *bool
}

// Create validates and inserts a client.
func (s *Service) Create(ctx context.Context, input Input) (Client, error) {
	input.CompanyName = strings.TrimSpace(input.CompanyName)
	input.CNPJ = onlyDigits(input.CNPJ)
	if input.CompanyName == "" {
		return Client{}, shared.Validationf("razão social é obrigatória")
	}
	if len(input.CNPJ) != 14 {
		return Client{}, shared.Validationf("CNPJ deve ter 14 dígitos")
	}
	created, err := s.repo.Create(ctx, Client{
		CompanyName: input.CompanyName,
		TradeName:   strings.TrimSpace(input.TradeName),
		CNPJ:        input.CNPJ,
		Email:       strings.TrimSpace(input.Email),
		WhatsApp:    onlyDigits(input.WhatsApp),
		Address:     strings.TrimSpace(input.Address),
		Active:      true,
	})
	if err != nil {
		return Client{}, err
	}
	s.recordAudit(ctx, "CLIENT_CREATE", created.ID, map[string]any{"razao_social": created.CompanyName})
	return created, nil
}

// Update applies changes to an existing client.
func (s *Service) Update(ctx context.Context, id int64, input Input) (Client, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Client{}, err
	}
	if name := strings.TrimSpace(input.CompanyName); name != "" {
		current.CompanyName = name
	}
	if input.TradeName != "" {
		current.TradeName = strings.TrimSpace(input.TradeName)
	}
	if input.CNPJ != "" {
		cnpj := onlyDigits(input.CNPJ)
		if len(cnpj) != 14 {
			return Client{}, shared.Validationf("CNPJ deve ter 14 dígitos")
		}
		current.CNPJ = cnpj
	}
	if input.Email != "" {
		current.Email = strings.TrimSpace(input.Email)
	}
	if input.WhatsApp != "" {
		current.WhatsApp = onlyDigits(input.WhatsApp)
	}
	if input.Address != "" {
		current.Address = strings.TrimSpace(input.Address)
	}
	if input.Active != nil {
		current.Active = *input.Active
	}
	if err := s.repo.Update(ctx, current); err != nil {
		return Client{}, err
	}
	s.recordAudit(ctx, "CLIENT_UPDATE", id, nil)
	return current, nil
}

// Get returns a client by ID.
func (s *Service) Get(ctx context.Context, id int64) (Client, error) {
	return s.repo.Get(ctx, id)
}

// Exists reports whether an active client is registered under the ID.
func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	client, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return client.Active, nil
}

// List returns paginated clients.
func (s *Service) List(ctx context.Context, limit, offset int, search string) ([]Client, int, error) {
	return s.repo.List(ctx, limit, offset, search)
}

func (s *Service) recordAudit(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "clients",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
	})
}

func onlyDigits(v string) string {
	var b strings.Builder
	for _, c := range v {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	return b.String()
}
