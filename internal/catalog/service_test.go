package catalog

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tramatex-erp/tramatex-erp/internal/shared"
)

type memoryCatalogRepo struct {
	productSeq int64
	colorSeq   int64
	products   map[int64]Product
	colors     map[int64]Color
}

func newMemoryCatalogRepo() *memoryCatalogRepo {
	return &memoryCatalogRepo{products: make(map[int64]Product), colors: make(map[int64]Color)}
}

func (r *memoryCatalogRepo) CreateProduct(_ context.Context, p Product) (Product, error) {
	r.productSeq++
	p.ID = r.productSeq
	r.products[p.ID] = p
	return p, nil
}

func (r *memoryCatalogRepo) UpdateProduct(_ context.Context, p Product) error {
	if _, ok := r.products[p.ID]; !ok {
		return ErrProductNotFound
	}
	r.products[p.ID] = p
	return nil
}

func (r *memoryCatalogRepo) GetProduct(_ context.Context, id int64) (Product, error) {
	p, ok := r.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (r *memoryCatalogRepo) ListProducts(_ context.Context, limit, offset int, filters ListFilters) ([]Product, int, error) {
	out := make([]Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (r *memoryCatalogRepo) CreateColor(_ context.Context, c Color) (Color, error) {
	r.colorSeq++
	c.ID = r.colorSeq
	r.colors[c.ID] = c
	return c, nil
}

func (r *memoryCatalogRepo) UpdateColor(_ context.Context, c Color) error {
	if _, ok := r.colors[c.ID]; !ok {
		return ErrColorNotFound
	}
	r.colors[c.ID] = c
	return nil
}

func (r *memoryCatalogRepo) GetColor(_ context.Context, id int64) (Color, error) {
	c, ok := r.colors[id]
	if !ok {
		return Color{}, ErrColorNotFound
	}
	return c, nil
}

func (r *memoryCatalogRepo) ListColors(_ context.Context, productID int64) ([]Color, error) {
	out := []Color{}
	for _, c := range r.colors {
		if c.ProductID == productID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memoryCatalogRepo) ProductColorExists(_ context.Context, productID, colorID int64) (bool, error) {
	c, ok := r.colors[colorID]
	if !ok || c.ProductID != productID {
		return false, nil
	}
	p, ok := r.products[productID]
	return ok && p.Active && c.Active, nil
}

func TestCreateProductValidation(t *testing.T) {
	svc := NewService(newMemoryCatalogRepo(), nil, nil, nil)

	_, err := svc.CreateProduct(context.Background(), ProductInput{Name: "Tricoline"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreateProduct(context.Background(), ProductInput{
		Reference:   "TA-4512",
		Name:        "Tricoline",
		WidthMeters: decimal.RequireFromString("-1"),
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	created, err := svc.CreateProduct(context.Background(), ProductInput{
		Reference:   "  TA-4512  ",
		Name:        "Tricoline Lisa",
		Composition: "100% algodão",
		WidthMeters: decimal.RequireFromString("1.50"),
		GramWeight:  decimal.RequireFromString("115"),
	})
	require.NoError(t, err)
	require.Equal(t, "TA-4512", created.Reference)
	require.True(t, created.Active)
}

func TestCreateColorNormalizesHex(t *testing.T) {
	repo := newMemoryCatalogRepo()
	svc := NewService(repo, nil, nil, nil)

	product, err := svc.CreateProduct(context.Background(), ProductInput{Reference: "TA-1", Name: "Tricoline"})
	require.NoError(t, err)

	color, err := svc.CreateColor(context.Background(), product.ID, ColorInput{Name: "Marinho", Hex: "1f2a44"})
	require.NoError(t, err)
	require.Equal(t, "#1F2A44", color.Hex)

	_, err = svc.CreateColor(context.Background(), product.ID, ColorInput{Name: "Inválida", Hex: "azul"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateColorUnknownProduct(t *testing.T) {
	svc := NewService(newMemoryCatalogRepo(), nil, nil, nil)

	_, err := svc.CreateColor(context.Background(), 99, ColorInput{Name: "Preto"})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestProductColorExistsRequiresActivePair(t *testing.T) {
	repo := newMemoryCatalogRepo()
	svc := NewService(repo, nil, nil, nil)

	product, err := svc.CreateProduct(context.Background(), ProductInput{Reference: "TA-1", Name: "Tricoline"})
	require.NoError(t, err)
	color, err := svc.CreateColor(context.Background(), product.ID, ColorInput{Name: "Preto"})
	require.NoError(t, err)

	ok, err := svc.ProductColorExists(context.Background(), product.ID, color.ID)
	require.NoError(t, err)
	require.True(t, ok)

	inactive := false
	_, err = svc.UpdateColor(context.Background(), color.ID, ColorInput{Active: &inactive})
	require.NoError(t, err)

	ok, err = svc.ProductColorExists(context.Background(), product.ID, color.ID)
	require.NoError(t, err)
	require.False(t, ok)
}
