package suppliers

import (
	"context"
	"fmt"
	"strings"

	"github.com/tramatex-erp/tramatex-erp/internal/shared"
)

// RepositoryPort defines supplier persistence operations.
type RepositoryPort interface {
	Create(ctx context.Context, s Supplier) (Supplier, error)
	Update(ctx context.Context, s Supplier) error
	Get(ctx context.Context, id int64) (Supplier, error)
	ListActive(ctx context.Context) ([]Supplier, error)
	List(ctx context.Context, limit, offset int, search string) ([]Supplier, int, error)
}

// AuditPort records supplier mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles supplier business logic.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// Input carries supplier payloads.
type Input struct {
	Name     string
	CNPJ     string
	Email    string
	WhatsApp string
	Contact  string
	Active   *bool
}

// Create validates and inserts a supplier.
func (s *Service) Create(ctx context.Context, input Input) (Supplier, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.CNPJ = onlyDigits(input.CNPJ)
	if input.Name == "" {
		return Supplier{}, shared.Validationf("nome do fornecedor é obrigatório")
	}
	if len(input.CNPJ) != 14 {
		return Supplier{}, shared.Validationf("CNPJ deve ter 14 dígitos")
	}
	created, err := s.repo.Create(ctx, Supplier{
		Name:     input.Name,
		CNPJ:     input.CNPJ,
		Email:    strings.TrimSpace(input.Email),
		WhatsApp: onlyDigits(input.WhatsApp),
		Contact:  strings.TrimSpace(input.Contact),
		Active:   true,
	})
	if err != nil {
		return Supplier{}, err
	}
	s.recordAudit(ctx, "SUPPLIER_CREATE", created.ID, map[string]any{"nome": created.Name})
	return created, nil
}

// Update applies changes to an existing supplier.
func (s *Service) Update(ctx context.Context, id int64, input Input) (Supplier, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Supplier{}, err
	}
	if name := strings.TrimSpace(input.Name); name != "" {
		current.Name = name
	}
	if input.CNPJ != "" {
		cnpj := onlyDigits(input.CNPJ)
		if len(cnpj) != 14 {
			return Supplier{}, shared.Validationf("CNPJ deve ter 14 dígitos")
		}
		current.CNPJ = cnpj
	}
	if input.Email != "" {
		current.Email = strings.TrimSpace(input.Email)
	}
	if input.WhatsApp != "" {
		current.WhatsApp = onlyDigits(input.WhatsApp)
	}
	if input.Contact != "" {
		current.Contact = strings.TrimSpace(input.Contact)
	}
	if input.Active != nil {
		current.Active = *input.Active
	}
	if err := s.repo.Update(ctx, current); err != nil {
		return Supplier{}, err
	}
	s.recordAudit(ctx, "SUPPLIER_UPDATE", id, nil)
	return current, nil
}

// Get returns a supplier by ID.
func (s *Service) Get(ctx context.Context, id int64) (Supplier, error) {
	return s.repo.Get(ctx, id)
}

// ListActive returns active suppliers ordered by ID.
func (s *Service) ListActive(ctx context.Context) ([]Supplier, error) {
	return s.repo.ListActive(ctx)
}

// List returns paginated suppliers.
func (s *Service) List(ctx context.Context, limit, offset int, search string) ([]Supplier, int, error) {
	return s.repo.List(ctx, limit, offset, search)
}

func (s *Service) recordAudit(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "suppliers",
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
