package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tramatex-erp/tramatex-erp/internal/shared"
	"github.com/tramatex-erp/tramatex-erp/internal/users"
)

type memoryDirectory struct {
	byEmail map[string]users.User
	logins  map[int64]time.Time
}

func newMemoryDirectory() *memoryDirectory {
	return &memoryDirectory{byEmail: make(map[string]users.User), logins: make(map[int64]time.Time)}
}

func (d *memoryDirectory) add(u users.User, password string) {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	u.PasswordHash = string(hash)
	d.byEmail[u.Email] = u
}

func (d *memoryDirectory) GetByEmail(_ context.Context, email string) (users.User, error) {
	u, ok := d.byEmail[email]
	if !ok {
		return users.User{}, shared.NotFoundf("usuário %s", email)
	}
	return u, nil
}

func (d *memoryDirectory) GetByID(_ context.Context, id int64) (users.User, error) {
	for _, u := range d.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return users.User{}, shared.NotFoundf("usuário %d", id)
}

func (d *memoryDirectory) TouchLogin(_ context.Context, id int64, at time.Time) error {
	d.logins[id] = at
	return nil
}

func TestAuthenticateSuccess(t *testing.T) {
	dir := newMemoryDirectory()
	dir.add(users.User{ID: 1, Email: "cd@tramatex.local", Role: "USUARIO_CD", Active: true}, "segredo")
	svc := NewService(dir)

	user, err := svc.Authenticate(context.Background(), "cd@tramatex.local", "segredo")
	require.NoError(t, err)
	require.Equal(t, int64(1), user.ID)
	require.Contains(t, dir.logins, int64(1))
}

func TestAuthenticateWrongPassword(t *testing.T) {
	dir := newMemoryDirectory()
	dir.add(users.User{ID: 1, Email: "cd@tramatex.local", Active: true}, "segredo")
	svc := NewService(dir)

	_, err := svc.Authenticate(context.Background(), "cd@tramatex.local", "errada")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticateUnknownEmailCollapsesToInvalidCredentials(t *testing.T) {
	svc := NewService(newMemoryDirectory())

	_, err := svc.Authenticate(context.Background(), "ninguem@tramatex.local", "x")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticateInactiveUser(t *testing.T) {
	dir := newMemoryDirectory()
	dir.add(users.User{ID: 2, Email: "ex@tramatex.local", Active: false}, "segredo")
	svc := NewService(dir)

	_, err := svc.Authenticate(context.Background(), "ex@tramatex.local", "segredo")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}
