package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tramatex-erp/tramatex-erp/internal/shared"
)

type memoryUserRepo struct {
	seq   int64
	users map[int64]User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[int64]User)}
}

func (r *memoryUserRepo) Create(_ context.Context, u User) (User, error) {
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return User{}, ErrEmailTaken
		}
	}
	r.seq++
	u.ID = r.seq
	u.CreatedAt = time.Now()
	r.users[u.ID] = u
	return u, nil
}

func (r *memoryUserRepo) Update(_ context.Context, u User) error {
	if _, ok := r.users[u.ID]; !ok {
		return ErrNotFound
	}
	r.users[u.ID] = u
	return nil
}

func (r *memoryUserRepo) SetActive(_ context.Context, id int64, active bool) error {
	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Active = active
	r.users[id] = u
	return nil
}

func (r *memoryUserRepo) SetPassword(_ context.Context, id int64, hash string) error {
	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	r.users[id] = u
	return nil
}

func (r *memoryUserRepo) TouchLogin(_ context.Context, id int64, at time.Time) error {
	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.LastLoginAt = &at
	r.users[id] = u
	return nil
}

func (r *memoryUserRepo) GetByID(_ context.Context, id int64) (User, error) {
	u, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (r *memoryUserRepo) GetByEmail(_ context.Context, email string) (User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *memoryUserRepo) List(_ context.Context, limit, offset int, filters ListFilters) ([]User, int, error) {
	out := make([]User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, len(out), nil
}

func TestCreateHashesPasswordAndNormalizes(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := NewService(repo, nil)

	user, err := svc.Create(context.Background(), CreateInput{
		Name:     "  Operador CD  ",
		Email:    "CD@Tramatex.Local",
		Password: "senha-forte",
		Role:     "usuario_cd",
	})
	require.NoError(t, err)
	require.Equal(t, "Operador CD", user.Name)
	require.Equal(t, "cd@tramatex.local", user.Email)
	require.Equal(t, "USUARIO_CD", user.Role)
	require.True(t, user.Active)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("senha-forte")))
}

func TestCreateRejectsShortPassword(t *testing.T) {
	svc := NewService(newMemoryUserRepo(), nil)

	_, err := svc.Create(context.Background(), CreateInput{Name: "x", Email: "x@y.z", Password: "curta", Role: "ADMIN"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateRejectsUnknownRole(t *testing.T) {
	svc := NewService(newMemoryUserRepo(), nil)

	_, err := svc.Create(context.Background(), CreateInput{Name: "x", Email: "x@y.z", Password: "senha-forte", Role: "GERENTE"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateStoreRoleRequiresStore(t *testing.T) {
	svc := NewService(newMemoryUserRepo(), nil)

	_, err := svc.Create(context.Background(), CreateInput{Name: "x", Email: "x@y.z", Password: "senha-forte", Role: "LOJA"})
	require.ErrorIs(t, err, shared.ErrValidation)

	store := int64(3)
	_, err = svc.Create(context.Background(), CreateInput{Name: "x", Email: "x@y.z", Password: "senha-forte", Role: "LOJA", StoreID: &store})
	require.NoError(t, err)
}

func TestCreateB2BRoleRequiresClient(t *testing.T) {
	svc := NewService(newMemoryUserRepo(), nil)

	_, err := svc.Create(context.Background(), CreateInput{Name: "x", Email: "x@y.z", Password: "senha-forte", Role: "CLIENTE_B2B"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateDuplicateEmail(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := NewService(repo, nil)

	_, err := svc.Create(context.Background(), CreateInput{Name: "a", Email: "dup@y.z", Password: "senha-forte", Role: "ADMIN"})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), CreateInput{Name: "b", Email: "dup@y.z", Password: "senha-forte", Role: "ADMIN"})
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestDeactivateAndActivate(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := NewService(repo, nil)

	user, err := svc.Create(context.Background(), CreateInput{Name: "a", Email: "a@y.z", Password: "senha-forte", Role: "ADMIN"})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(context.Background(), user.ID))
	got, err := svc.Get(context.Background(), user.ID)
	require.NoError(t, err)
	require.False(t, got.Active)

	require.NoError(t, svc.Activate(context.Background(), user.ID))
	got, err = svc.Get(context.Background(), user.ID)
	require.NoError(t, err)
	require.True(t, got.Active)
}
