package replenishment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tramatex-erp/tramatex-erp/internal/catalog"
	"github.com/tramatex-erp/tramatex-erp/internal/shared"
)

// RepositoryPort abstracts request persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Request, []Item, error)
	List(ctx context.Context, limit, offset int, filters ListFilters) ([]Request, int, error)
}

// LedgerPort is the slice of the stock ledger fulfilment needs.
type LedgerPort interface {
	Deduct(ctx context.Context, q catalog.Querier, m catalog.StockMovement) error
}

// CatalogPort validates requested lines against the catalog.
type CatalogPort interface {
	ProductColorExists(ctx context.Context, productID, colorID int64) (bool, error)
}

// AuditPort records workflow actions.
type AuditPort interface {
	Record(ctx context.Context, entry shared.AuditLog) error
}

// Service coordinates store replenishment requests.
type Service struct {
	logger  *slog.Logger
	repo    RepositoryPort
	ledger  LedgerPort
	catalog CatalogPort
	audit   AuditPort
	now     func() time.Time
}

// NewService wires a Service.
func NewService(logger *slog.Logger, repo RepositoryPort, ledger LedgerPort, catalogPort CatalogPort, audit AuditPort) *Service {
	return &Service{
		logger:  logger,
		repo:    repo,
		ledger:  ledger,
		catalog: catalogPort,
		audit:   audit,
		now:     time.Now,
	}
}

// ItemInput is one requested line.
type ItemInput struct {
	ProductID int64           `json:"produto_id"`
	ColorID   int64           `json:"cor_id"`
	Quantity  decimal.Decimal `json:"quantidade"`
}

// CreateInput carries a new restock request.
type CreateInput struct {
	StoreID int64       `json:"loja_id"`
	Notes   string      `json:"observacoes"`
	Items   []ItemInput `json:"itens"`
}

// Create places a request in PENDENTE with a REQ number.
func (s *Service) Create(ctx context.Context, actorID int64, input CreateInput) (Request, []Item, error) {
	if input.StoreID <= 0 {
		return Request{}, nil, shared.Validationf("informe a loja solicitante")
	}
	if len(input.Items) == 0 {
		return Request{}, nil, shared.Validationf("informe ao menos um item na requisição")
	}
	for i, item := range input.Items {
		if item.Quantity.LessThanOrEqual(decimal.Zero) {
			return Request{}, nil, shared.Validationf("quantidade do item %d deve ser positiva", i+1)
		}
		ok, err := s.catalog.ProductColorExists(ctx, item.ProductID, item.ColorID)
		if err != nil {
			return Request{}, nil, err
		}
		if !ok {
			return Request{}, nil, shared.Validationf("item %d referencia produto ou cor inexistente", i+1)
		}
	}

	var created Request
	var createdItems []Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.AllocateNumber(ctx)
		if err != nil {
			return err
		}
		req := Request{
			Number:      number,
			StoreID:     input.StoreID,
			Status:      StatusPending,
			RequestedBy: actorID,
			Notes:       input.Notes,
		}
		req.ID, err = tx.CreateRequest(ctx, req)
		if err != nil {
			return err
		}
		for _, in := range input.Items {
			item := Item{
				RequestID:    req.ID,
				ProductID:    in.ProductID,
				ColorID:      in.ColorID,
				RequestedQty: in.Quantity,
			}
			item.ID, err = tx.InsertItem(ctx, item)
			if err != nil {
				return err
			}
			createdItems = append(createdItems, item)
		}
		created = req
		return nil
	})
	if err != nil {
		return Request{}, nil, err
	}
	s.recordAudit(ctx, actorID, "requisicao.criar", created.ID, created.Number)
	return created, createdItems, nil
}

// DecisionInput approves a quantity per item. Zero refuses the item.
type DecisionInput struct {
	Decisions     map[int64]decimal.Decimal `json:"decisoes"`
	Justification string                    `json:"justificativa"`
}

// Decide records the CD's per-item approved quantities. Every item gets a
// decision; the outcome is APROVADA when everything was granted in full,
// RECUSADA when nothing was, APROVADA_PARCIAL otherwise. Refusing the
// whole request requires a justification.
func (s *Service) Decide(ctx context.Context, actorID, id int64, input DecisionInput) (Request, error) {
	req, items, err := s.repo.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if req.Status != StatusPending {
		return Request{}, ErrInvalidState
	}

	granted := make(map[int64]decimal.Decimal, len(items))
	allFull, allZero := true, true
	for _, item := range items {
		qty, ok := input.Decisions[item.ID]
		if !ok {
			return Request{}, shared.Validationf("decisão ausente para o item %d", item.ID)
		}
		if qty.IsNegative() {
			return Request{}, shared.Validationf("quantidade aprovada não pode ser negativa")
		}
		if qty.GreaterThan(item.RequestedQty) {
			return Request{}, shared.Validationf("quantidade aprovada não pode exceder a solicitada")
		}
		granted[item.ID] = qty
		if !qty.Equal(item.RequestedQty) {
			allFull = false
		}
		if !qty.IsZero() {
			allZero = false
		}
	}

	outcome := StatusPartiallyApproved
	switch {
	case allFull:
		outcome = StatusApproved
	case allZero:
		outcome = StatusRefused
	}
	if outcome == StatusRefused && input.Justification == "" {
		return Request{}, ErrJustificationRequired
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := tx.Decide(ctx, id, outcome, actorID, input.Justification, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidState
		}
		for itemID, qty := range granted {
			if err := tx.SetItemApproved(ctx, itemID, qty); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Request{}, err
	}
	s.recordAudit(ctx, actorID, "requisicao.decidir", id, req.Number)
	req, _, err = s.repo.Get(ctx, id)
	return req, err
}

// FulfilInput carries the quantities actually pulled from CD stock.
type FulfilInput struct {
	Fulfilments map[int64]decimal.Decimal `json:"atendimentos"`
}

// Fulfil deducts CD stock for each fulfilled quantity inside the same
// transaction as the status flip. Fulfilled must not exceed approved;
// the outcome is ATENDIDA when every approved quantity was fully pulled,
// ATENDIDA_PARCIAL otherwise.
func (s *Service) Fulfil(ctx context.Context, actorID, id int64, input FulfilInput) (Request, error) {
	req, items, err := s.repo.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if req.Status != StatusApproved && req.Status != StatusPartiallyApproved {
		return Request{}, ErrInvalidState
	}

	type pull struct {
		item Item
		qty  decimal.Decimal
	}
	var pulls []pull
	allFull := true
	for _, item := range items {
		approved := decimal.Zero
		if item.ApprovedQty != nil {
			approved = *item.ApprovedQty
		}
		qty, ok := input.Fulfilments[item.ID]
		if !ok {
			qty = decimal.Zero
		}
		if qty.IsNegative() {
			return Request{}, shared.Validationf("quantidade atendida não pode ser negativa")
		}
		if qty.GreaterThan(approved) {
			return Request{}, ErrOverApproved
		}
		if !qty.Equal(approved) {
			allFull = false
		}
		pulls = append(pulls, pull{item: item, qty: qty})
	}

	outcome := StatusPartiallyFulfilled
	if allFull {
		outcome = StatusFulfilled
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := tx.Fulfil(ctx, id, req.Status, outcome, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidState
		}
		q := tx.Querier()
		for _, p := range pulls {
			if err := tx.SetItemFulfilled(ctx, p.item.ID, p.qty); err != nil {
				return err
			}
			if p.qty.IsZero() {
				continue
			}
			movement := catalog.StockMovement{
				ProductID:  p.item.ProductID,
				ColorID:    p.item.ColorID,
				LocationID: catalog.LocationCD,
				Delta:      p.qty,
				Reason:     "atendimento de requisição",
				RefType:    "requisicao",
				RefID:      id,
				ActorID:    actorID,
			}
			if err := s.ledger.Deduct(ctx, q, movement); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Request{}, err
	}
	s.recordAudit(ctx, actorID, "requisicao.atender", id, req.Number)
	req, _, err = s.repo.Get(ctx, id)
	return req, err
}

// MarkShipped moves ATENDIDA or ATENDIDA_PARCIAL to ENVIADA.
func (s *Service) MarkShipped(ctx context.Context, actorID, id int64) (Request, error) {
	req, _, err := s.repo.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if req.Status != StatusFulfilled && req.Status != StatusPartiallyFulfilled {
		return Request{}, ErrInvalidState
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := tx.MarkShipped(ctx, id, req.Status, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidState
		}
		return nil
	})
	if err != nil {
		return Request{}, err
	}
	s.recordAudit(ctx, actorID, "requisicao.enviar", id, req.Number)
	req, _, err = s.repo.Get(ctx, id)
	return req, err
}

// Cancel withdraws a request while still PENDENTE.
func (s *Service) Cancel(ctx context.Context, actorID, id int64) (Request, error) {
	req, _, err := s.repo.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if req.Status != StatusPending {
		return Request{}, ErrInvalidState
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := tx.Cancel(ctx, id, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidState
		}
		return nil
	})
	if err != nil {
		return Request{}, err
	}
	s.recordAudit(ctx, actorID, "requisicao.cancelar", id, req.Number)
	req, _, err = s.repo.Get(ctx, id)
	return req, err
}

// Get returns one request with items.
func (s *Service) Get(ctx context.Context, id int64) (Request, []Item, error) {
	return s.repo.Get(ctx, id)
}

// List returns requests for the listing screen.
func (s *Service) List(ctx context.Context, limit, offset int, filters ListFilters) ([]Request, int, error) {
	return s.repo.List(ctx, limit, offset, filters)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, id int64, number string) {
	if s.audit == nil {
		return
	}
	entry := shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "requisicao",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     map[string]any{"numero": number},
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
