package orders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tramatex-erp/tramatex-erp/internal/shared"
)

// RepositoryPort abstracts order persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Order, []Item, error)
	List(ctx context.Context, limit, offset int, filters ListFilters) ([]Order, int, error)
}

// ClientPort checks that the ordering client exists and is active.
type ClientPort interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// CatalogPort validates order lines against the catalog.
type CatalogPort interface {
	ProductColorExists(ctx context.Context, productID, colorID int64) (bool, error)
}

// NotifierPort delivers client-facing order events. Failures are logged,
// never surfaced: notification must not break a committed transition.
type NotifierPort interface {
	NotifyClient(ctx context.Context, order Order, event string) error
}

// IdempotencyPort guards replayed payment confirmations.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// AuditPort records workflow actions.
type AuditPort interface {
	Record(ctx context.Context, entry shared.AuditLog) error
}

// Service coordinates the order workflow.
type Service struct {
	logger      *slog.Logger
	repo        RepositoryPort
	clients     ClientPort
	catalog     CatalogPort
	notifier    NotifierPort
	idempotency IdempotencyPort
	audit       AuditPort
	now         func() time.Time
}

// NewService wires a Service.
func NewService(logger *slog.Logger, repo RepositoryPort, clients ClientPort, catalog CatalogPort, notifier NotifierPort, idempotency IdempotencyPort, audit AuditPort) *Service {
	return &Service{
		logger:      logger,
		repo:        repo,
		clients:     clients,
		catalog:     catalog,
		notifier:    notifier,
		idempotency: idempotency,
		audit:       audit,
		now:         time.Now,
	}
}

// ItemInput is one requested order line.
type ItemInput struct {
	ProductID int64           `json:"produto_id"`
	ColorID   int64           `json:"cor_id"`
	Quantity  decimal.Decimal `json:"quantidade"`
	UnitPrice decimal.Decimal `json:"preco_unitario"`
}

// CreateInput carries everything needed to place an order.
type CreateInput struct {
	ClientID        int64       `json:"cliente_id"`
	DeliveryAddress string      `json:"endereco_entrega"`
	PaymentMethod   string      `json:"forma_pagamento"`
	Items           []ItemInput `json:"itens"`
}

var rollUnit = decimal.NewFromInt(RollUnitMeters)

// Create places an order in PENDENTE. Quantities must be positive
// multiples of the 60m roll unit, prices positive, and the server-side
// total must reach the R$ 500,00 floor.
func (s *Service) Create(ctx context.Context, actorID int64, input CreateInput) (Order, []Item, error) {
	if input.ClientID <= 0 {
		return Order{}, nil, shared.Validationf("informe o cliente do pedido")
	}
	if input.DeliveryAddress == "" {
		return Order{}, nil, shared.Validationf("endereço de entrega é obrigatório")
	}
	if input.PaymentMethod == "" {
		return Order{}, nil, shared.Validationf("forma de pagamento é obrigatória")
	}
	if len(input.Items) == 0 {
		return Order{}, nil, shared.Validationf("informe ao menos um item no pedido")
	}
	ok, err := s.clients.Exists(ctx, input.ClientID)
	if err != nil {
		return Order{}, nil, err
	}
	if !ok {
		return Order{}, nil, shared.NotFoundf("cliente não encontrado")
	}

	total := decimal.Zero
	for i, item := range input.Items {
		if item.Quantity.LessThanOrEqual(decimal.Zero) || !item.Quantity.Mod(rollUnit).IsZero() {
			return Order{}, nil, ErrNotRollMultiple
		}
		if item.UnitPrice.LessThanOrEqual(decimal.Zero) {
			return Order{}, nil, shared.Validationf("preço unitário do item %d deve ser positivo", i+1)
		}
		exists, err := s.catalog.ProductColorExists(ctx, item.ProductID, item.ColorID)
		if err != nil {
			return Order{}, nil, err
		}
		if !exists {
			return Order{}, nil, shared.Validationf("item %d referencia produto ou cor inexistente", i+1)
		}
		total = total.Add(item.UnitPrice.Mul(item.Quantity))
	}
	if total.LessThan(MinimumOrderTotal) {
		return Order{}, nil, ErrBelowMinimum
	}

	var created Order
	var createdItems []Item
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.AllocateNumber(ctx)
		if err != nil {
			return err
		}
		o := Order{
			Number:          number,
			ClientID:        input.ClientID,
			Status:          StatusPending,
			DeliveryAddress: input.DeliveryAddress,
			PaymentMethod:   input.PaymentMethod,
			Total:           total,
			CreatedBy:       actorID,
		}
		o.ID, err = tx.CreateOrder(ctx, o)
		if err != nil {
			return err
		}
		for _, in := range input.Items {
			item := Item{
				OrderID:   o.ID,
				ProductID: in.ProductID,
				ColorID:   in.ColorID,
				Quantity:  in.Quantity,
				UnitPrice: in.UnitPrice,
			}
			item.ID, err = tx.InsertItem(ctx, item)
			if err != nil {
				return err
			}
			createdItems = append(createdItems, item)
		}
		created = o
		return nil
	})
	if err != nil {
		return Order{}, nil, err
	}

	s.recordAudit(ctx, actorID, "pedido.criar", created.ID, created.Number)
	return created, createdItems, nil
}

// transition runs the check-and-set inside one transaction and reloads
// the order afterwards.
func (s *Service) transition(ctx context.Context, id int64, from, to Status, assignments map[string]any) (Order, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := tx.Transition(ctx, id, from, to, assignments)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	o, _, err := s.repo.Get(ctx, id)
	return o, err
}

// guard checks that the action is legal from the order's current status,
// returning the loaded order. Stale reads are still caught by the
// check-and-set, this just produces a friendlier early conflict.
func (s *Service) guard(ctx context.Context, id int64, action string) (Order, error) {
	o, _, err := s.repo.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	want, known := transitions[action]
	if !known || o.Status != want {
		return Order{}, ErrInvalidTransition
	}
	return o, nil
}

// Approve moves PENDENTE straight to AGUARDANDO_PAGAMENTO, stamping the
// approval and the default delivery lead time.
func (s *Service) Approve(ctx context.Context, actorID, id int64) (Order, error) {
	if _, err := s.guard(ctx, id, "aprovar"); err != nil {
		return Order{}, err
	}
	o, err := s.transition(ctx, id, StatusPending, StatusAwaitingPayment, map[string]any{
		"approved_at":        s.now(),
		"delivery_lead_days": DefaultDeliveryLeadDays,
	})
	if err != nil {
		return Order{}, err
	}
	s.recordAudit(ctx, actorID, "pedido.aprovar", id, o.Number)
	s.notify(ctx, o, EventApproved)
	return o, nil
}

// Refuse moves PENDENTE to RECUSADO. Terminal.
func (s *Service) Refuse(ctx context.Context, actorID, id int64, justification string) (Order, error) {
	if justification == "" {
		return Order{}, ErrJustificationRequired
	}
	if _, err := s.guard(ctx, id, "recusar"); err != nil {
		return Order{}, err
	}
	o, err := s.transition(ctx, id, StatusPending, StatusRefused, map[string]any{
		"justification": justification,
	})
	if err != nil {
		return Order{}, err
	}
	s.recordAudit(ctx, actorID, "pedido.recusar", id, o.Number)
	s.notify(ctx, o, EventRefused)
	return o, nil
}

// ConfirmPayment moves AGUARDANDO_PAGAMENTO to PAGO and computes the
// delivery estimate from the stamped lead time. The idempotency key
// absorbs gateway webhook replays.
func (s *Service) ConfirmPayment(ctx context.Context, actorID, id int64, idempotencyKey string) (Order, error) {
	if idempotencyKey == "" {
		return Order{}, shared.Validationf("chave de idempotência é obrigatória")
	}
	o, err := s.guard(ctx, id, "confirmar_pagamento")
	if err != nil {
		return Order{}, err
	}
	if err := s.idempotency.CheckAndInsert(ctx, idempotencyKey, "pedidos.pagamento"); err != nil {
		return Order{}, err
	}
	paidAt := s.now()
	lead := o.DeliveryLeadDays
	if lead <= 0 {
		lead = DefaultDeliveryLeadDays
	}
	eta := paidAt.AddDate(0, 0, lead)
	o, err = s.transition(ctx, id, StatusAwaitingPayment, StatusPaid, map[string]any{
		"paid_at":           paidAt,
		"estimated_arrival": eta,
	})
	if err != nil {
		// Free the key so a legitimate retry can land.
		if delErr := s.idempotency.Delete(ctx, idempotencyKey); delErr != nil {
			s.logger.Warn("release idempotency key", slog.Any("error", delErr))
		}
		return Order{}, err
	}
	s.recordAudit(ctx, actorID, "pedido.confirmar_pagamento", id, o.Number)
	s.notify(ctx, o, EventPaymentConfirmed)
	return o, nil
}

// StartSeparation moves PAGO to EM_SEPARACAO.
func (s *Service) StartSeparation(ctx context.Context, actorID, id int64) (Order, error) {
	if _, err := s.guard(ctx, id, "separar"); err != nil {
		return Order{}, err
	}
	o, err := s.transition(ctx, id, StatusPaid, StatusSeparation, nil)
	if err != nil {
		return Order{}, err
	}
	s.recordAudit(ctx, actorID, "pedido.separar", id, o.Number)
	return o, nil
}

// Ship moves EM_SEPARACAO to ENVIADO with optional tracking data.
func (s *Service) Ship(ctx context.Context, actorID, id int64, trackingCode, carrier string) (Order, error) {
	if _, err := s.guard(ctx, id, "enviar"); err != nil {
		return Order{}, err
	}
	assignments := map[string]any{"shipped_at": s.now()}
	if trackingCode != "" {
		assignments["tracking_code"] = trackingCode
	}
	if carrier != "" {
		assignments["carrier"] = carrier
	}
	o, err := s.transition(ctx, id, StatusSeparation, StatusShipped, assignments)
	if err != nil {
		return Order{}, err
	}
	s.recordAudit(ctx, actorID, "pedido.enviar", id, o.Number)
	s.notify(ctx, o, EventShipped)
	return o, nil
}

// Deliver moves ENVIADO to ENTREGUE. Terminal.
func (s *Service) Deliver(ctx context.Context, actorID, id int64) (Order, error) {
	if _, err := s.guard(ctx, id, "entregar"); err != nil {
		return Order{}, err
	}
	o, err := s.transition(ctx, id, StatusShipped, StatusDelivered, map[string]any{
		"delivered_at": s.now(),
	})
	if err != nil {
		return Order{}, err
	}
	s.recordAudit(ctx, actorID, "pedido.entregar", id, o.Number)
	s.notify(ctx, o, EventDelivered)
	return o, nil
}

// Cancel is reachable from every non-terminal state before delivery and
// requires a justification. Terminal.
func (s *Service) Cancel(ctx context.Context, actorID, id int64, justification string) (Order, error) {
	if justification == "" {
		return Order{}, ErrJustificationRequired
	}
	o, _, err := s.repo.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !cancellable[o.Status] {
		return Order{}, ErrInvalidTransition
	}
	o, err = s.transition(ctx, id, o.Status, StatusCancelled, map[string]any{
		"justification": justification,
		"cancelled_at":  s.now(),
	})
	if err != nil {
		return Order{}, err
	}
	s.recordAudit(ctx, actorID, "pedido.cancelar", id, o.Number)
	s.notify(ctx, o, EventCancelled)
	return o, nil
}

// Get returns one order with items.
func (s *Service) Get(ctx context.Context, id int64) (Order, []Item, error) {
	return s.repo.Get(ctx, id)
}

// List returns orders for the listing screen.
func (s *Service) List(ctx context.Context, limit, offset int, filters ListFilters) ([]Order, int, error) {
	return s.repo.List(ctx, limit, offset, filters)
}

func (s *Service) notify(ctx context.Context, o Order, event string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyClient(ctx, o, event); err != nil {
		s.logger.Warn("client notification failed",
			slog.String("event", event),
			slog.Int64("order_id", o.ID),
			slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, id int64, number string) {
	if s.audit == nil {
		return
	}
	entry := shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "pedido",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     map[string]any{"numero": number},
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
