// Package auth implements login/logout against the users directory.
package auth

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tramatex-erp/tramatex-erp/internal/shared"
	"github.com/tramatex-erp/tramatex-erp/internal/users"
)

// UserDirectory exposes the user lookups required for authentication.
type UserDirectory interface {
	GetByEmail(ctx context.Context, email string) (users.User, error)
	GetByID(ctx context.Context, id int64) (users.User, error)
	TouchLogin(ctx context.Context, id int64, at time.Time) error
}

// Service wraps authentication business rules.
type Service struct {
	directory UserDirectory
}

// NewService constructs a new Service.
func NewService(directory UserDirectory) *Service {
	return &Service{directory: directory}
}

// Authenticate validates email/password credentials. Every failure mode
// collapses into ErrInvalidCredentials so callers cannot probe accounts.
func (s *Service) Authenticate(ctx context.Context, email, password string) (users.User, error) {
	user, err := s.directory.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return users.User{}, shared.ErrInvalidCredentials
		}
		return users.User{}, err
	}
	if !user.Active {
		return users.User{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return users.User{}, shared.ErrInvalidCredentials
	}
	_ = s.directory.TouchLogin(ctx, user.ID, time.Now())
	return user, nil
}

// CurrentUser loads the account behind an authenticated session.
func (s *Service) CurrentUser(ctx context.Context, id int64) (users.User, error) {
	return s.directory.GetByID(ctx, id)
}
