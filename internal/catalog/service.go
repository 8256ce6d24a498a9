package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tramatex-erp/tramatex-erp/internal/shared"
)

// RepositoryPort defines catalog persistence operations.
type RepositoryPort interface {
	CreateProduct(ctx context.Context, p Product) (Product, error)
	UpdateProduct(ctx context.Context, p Product) error
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListProducts(ctx context.Context, limit, offset int, filters ListFilters) ([]Product, int, error)
	CreateColor(ctx context.Context, c Color) (Color, error)
	UpdateColor(ctx context.Context, c Color) error
	GetColor(ctx context.Context, id int64) (Color, error)
	ListColors(ctx context.Context, productID int64) ([]Color, error)
	ProductColorExists(ctx context.Context, productID, colorID int64) (bool, error)
}

// StockPort exposes the ledger reads needed by the handler.
type StockPort interface {
	Balance(ctx context.Context, q Querier, productID, colorID, locationID int64) (decimal.Decimal, error)
	Movements(ctx context.Context, q Querier, productID, colorID int64, limit int) ([]StockMovement, error)
}

// AuditPort records catalog mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles catalog business logic.
type Service struct {
	repo   RepositoryPort
	ledger StockPort
	pool   Querier
	audit  AuditPort
}

// NewService builds a Service instance. pool is used for ledger reads
// outside any transaction.
func NewService(repo RepositoryPort, ledger StockPort, pool Querier, audit AuditPort) *Service {
	return &Service{repo: repo, ledger: ledger, pool: pool, audit: audit}
}

// ProductInput carries product payloads.
type ProductInput struct {
	Reference   string
	Name        string
	Composition string
	WidthMeters decimal.Decimal
	GramWeight  decimal.Decimal
	Active      *bool
}

// CreateProduct validates and inserts a product.
func (s *Service) CreateProduct(ctx context.Context, input ProductInput) (Product, error) {
	input.Reference = strings.TrimSpace(input.Reference)
	input.Name = strings.TrimSpace(input.Name)
	if input.Reference == "" || input.Name == "" {
		return Product{}, shared.Validationf("referência e nome são obrigatórios")
	}
	if input.WidthMeters.IsNegative() || input.GramWeight.IsNegative() {
		return Product{}, shared.Validationf("largura e gramatura não podem ser negativas")
	}
	p := Product{
		Reference:   input.Reference,
		Name:        input.Name,
		Composition: input.Composition,
		WidthMeters: input.WidthMeters,
		GramWeight:  input.GramWeight,
		Active:      true,
	}
	created, err := s.repo.CreateProduct(ctx, p)
	if err != nil {
		return Product{}, err
	}
	s.recordAudit(ctx, "PRODUCT_CREATE", created.ID, map[string]any{"referencia": created.Reference})
	return created, nil
}

// UpdateProduct applies changes to an existing product.
func (s *Service) UpdateProduct(ctx context.Context, id int64, input ProductInput) (Product, error) {
	current, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if ref := strings.TrimSpace(input.Reference); ref != "" {
		current.Reference = ref
	}
	if name := strings.TrimSpace(input.Name); name != "" {
		current.Name = name
	}
	if input.Composition != "" {
		current.Composition = input.Composition
	}
	if !input.WidthMeters.IsZero() {
		if input.WidthMeters.IsNegative() {
			return Product{}, shared.Validationf("largura não pode ser negativa")
		}
		current.WidthMeters = input.WidthMeters
	}
	if !input.GramWeight.IsZero() {
		if input.GramWeight.IsNegative() {
			return Product{}, shared.Validationf("gramatura não pode ser negativa")
		}
		current.GramWeight = input.GramWeight
	}
	if input.Active != nil {
		current.Active = *input.Active
	}
	if err := s.repo.UpdateProduct(ctx, current); err != nil {
		return Product{}, err
	}
	s.recordAudit(ctx, "PRODUCT_UPDATE", id, nil)
	return current, nil
}

// GetProduct returns a product by ID.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// ListProducts returns paginated products.
func (s *Service) ListProducts(ctx context.Context, limit, offset int, filters ListFilters) ([]Product, int, error) {
	return s.repo.ListProducts(ctx, limit, offset, filters)
}

// ColorInput carries colorway payloads already normalized to the canonical
// name/hex pair.
type ColorInput struct {
	Name   string
	Hex    string
	Active *bool
}

// CreateColor validates and inserts a colorway.
func (s *Service) CreateColor(ctx context.Context, productID int64, input ColorInput) (Color, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Hex = normalizeHex(input.Hex)
	if input.Name == "" {
		return Color{}, shared.Validationf("nome da cor é obrigatório")
	}
	if input.Hex != "" && !validHex(input.Hex) {
		return Color{}, shared.Validationf("código hex inválido: %s", input.Hex)
	}
	if _, err := s.repo.GetProduct(ctx, productID); err != nil {
		return Color{}, err
	}
	created, err := s.repo.CreateColor(ctx, Color{ProductID: productID, Name: input.Name, Hex: input.Hex, Active: true})
	if err != nil {
		return Color{}, err
	}
	s.recordAudit(ctx, "COLOR_CREATE", created.ID, map[string]any{"produto_id": productID, "nome": created.Name})
	return created, nil
}

// UpdateColor applies changes to an existing colorway.
func (s *Service) UpdateColor(ctx context.Context, id int64, input ColorInput) (Color, error) {
	current, err := s.repo.GetColor(ctx, id)
	if err != nil {
		return Color{}, err
	}
	if name := strings.TrimSpace(input.Name); name != "" {
		current.Name = name
	}
	if input.Hex != "" {
		hex := normalizeHex(input.Hex)
		if !validHex(hex) {
			return Color{}, shared.Validationf("código hex inválido: %s", input.Hex)
		}
		current.Hex = hex
	}
	if input.Active != nil {
		current.Active = *input.Active
	}
	if err := s.repo.UpdateColor(ctx, current); err != nil {
		return Color{}, err
	}
	s.recordAudit(ctx, "COLOR_UPDATE", id, nil)
	return current, nil
}

// ListColors returns all colorways of a product.
func (s *Service) ListColors(ctx context.Context, productID int64) ([]Color, error) {
	if _, err := s.repo.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.repo.ListColors(ctx, productID)
}

// ProductColorExists verifies an active product/color pair.
func (s *Service) ProductColorExists(ctx context.Context, productID, colorID int64) (bool, error) {
	return s.repo.ProductColorExists(ctx, productID, colorID)
}

// StockBalance reads the ledger balance for a product/color at a location.
func (s *Service) StockBalance(ctx context.Context, productID, colorID, locationID int64) (StockBalance, error) {
	if ok, err := s.repo.ProductColorExists(ctx, productID, colorID); err != nil {
		return StockBalance{}, err
	} else if !ok {
		return StockBalance{}, ErrColorNotFound
	}
	qty, err := s.ledger.Balance(ctx, s.pool, productID, colorID, locationID)
	if err != nil {
		return StockBalance{}, err
	}
	return StockBalance{ProductID: productID, ColorID: colorID, LocationID: locationID, Quantity: qty}, nil
}

// StockMovements lists recent journal entries for a product/color.
func (s *Service) StockMovements(ctx context.Context, productID, colorID int64, limit int) ([]StockMovement, error) {
	return s.ledger.Movements(ctx, s.pool, productID, colorID, limit)
}

func (s *Service) recordAudit(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "catalog",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
	})
}

func normalizeHex(hex string) string {
	hex = strings.TrimSpace(strings.ToUpper(hex))
	if hex != "" && !strings.HasPrefix(hex, "#") {
		hex = "#" + hex
	}
	return hex
}

func validHex(hex string) bool {
	if len(hex) != 7 || hex[0] != '#' {
		return false
	}
	for _, c := range hex[1:] {
		switch {
		case c >= '0' && c <= '9', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
