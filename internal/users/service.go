package users

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tramatex-erp/tramatex-erp/internal/rbac"
	"github.com/tramatex-erp/tramatex-erp/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	Create(ctx context.Context, u User) (User, error)
	Update(ctx context.Context, u User) error
	SetActive(ctx context.Context, id int64, active bool) error
	SetPassword(ctx context.Context, id int64, hash string) error
	TouchLogin(ctx context.Context, id int64, at time.Time) error
	GetByID(ctx context.Context, id int64) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context, limit, offset int, filters ListFilters) ([]User, int, error)
}

// AuditPort records account mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles user account business logic.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// CreateInput carries new-account data.
type CreateInput struct {
	Name     string
	Email    string
	Password string
	Role     string
	StoreID  *int64
	ClientID *int64
}

// Create registers a new account with a bcrypt hashed password.
func (s *Service) Create(ctx context.Context, input CreateInput) (User, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.Name == "" || input.Email == "" {
		return User{}, shared.Validationf("nome e e-mail são obrigatórios")
	}
	if len(input.Password) < 8 {
		return User{}, shared.Validationf("senha deve ter no mínimo 8 caracteres")
	}
	role := rbac.NormalizeRole(input.Role)
	if !rbac.KnownRole(role) {
		return User{}, shared.Validationf("perfil desconhecido: %s", input.Role)
	}
	if role == rbac.RoleStore && input.StoreID == nil {
		return User{}, shared.Validationf("usuário de loja requer loja vinculada")
	}
	if role == rbac.RoleB2BClient && input.ClientID == nil {
		return User{}, shared.Validationf("usuário B2B requer cliente vinculado")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	created, err := s.repo.Create(ctx, User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: string(hash),
		Role:         role,
		StoreID:      input.StoreID,
		ClientID:     input.ClientID,
		Active:       true,
	})
	if err != nil {
		return User{}, err
	}
	s.recordAudit(ctx, "USER_CREATE", created.ID, map[string]any{"email": created.Email, "role": created.Role})
	return created, nil
}

// UpdateInput carries profile updates.
type UpdateInput struct {
	Name     string
	Email    string
	Role     string
	StoreID  *int64
	ClientID *int64
}

// Update changes profile fields of an existing account.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (User, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if name := strings.TrimSpace(input.Name); name != "" {
		current.Name = name
	}
	if email := strings.ToLower(strings.TrimSpace(input.Email)); email != "" {
		current.Email = email
	}
	if input.Role != "" {
		role := rbac.NormalizeRole(input.Role)
		if !rbac.KnownRole(role) {
			return User{}, shared.Validationf("perfil desconhecido: %s", input.Role)
		}
		current.Role = role
	}
	if input.StoreID != nil {
		current.StoreID = input.StoreID
	}
	if input.ClientID != nil {
		current.ClientID = input.ClientID
	}
	if err := s.repo.Update(ctx, current); err != nil {
		return User{}, err
	}
	s.recordAudit(ctx, "USER_UPDATE", id, map[string]any{"email": current.Email})
	return current, nil
}

// ChangePassword replaces the account password.
func (s *Service) ChangePassword(ctx context.Context, id int64, password string) error {
	if len(password) < 8 {
		return shared.Validationf("senha deve ter no mínimo 8 caracteres")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.SetPassword(ctx, id, string(hash)); err != nil {
		return err
	}
	s.recordAudit(ctx, "USER_PASSWORD", id, nil)
	return nil
}

// Deactivate disables the account without deleting history.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return err
	}
	s.recordAudit(ctx, "USER_DEACTIVATE", id, nil)
	return nil
}

// Activate re-enables a disabled account.
func (s *Service) Activate(ctx context.Context, id int64) error {
	if err := s.repo.SetActive(ctx, id, true); err != nil {
		return err
	}
	s.recordAudit(ctx, "USER_ACTIVATE", id, nil)
	return nil
}

// Get returns a user by ID.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns users matching the filters.
func (s *Service) List(ctx context.Context, limit, offset int, filters ListFilters) ([]User, int, error) {
	return s.repo.List(ctx, limit, offset, filters)
}

func (s *Service) recordAudit(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "users",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
	})
}
