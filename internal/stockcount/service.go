package stockcount

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tramatex-erp/tramatex-erp/internal/catalog"
	"github.com/tramatex-erp/tramatex-erp/internal/shared"
)

// RepositoryPort abstracts session persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Session, []Item, error)
	GetItem(ctx context.Context, itemID int64) (Item, error)
	ListItems(ctx context.Context, sessionID int64) ([]Item, error)
	List(ctx context.Context, limit, offset int, filters ListFilters) ([]Session, int, error)
}

// LedgerPort is the slice of the stock ledger reconciliation needs.
type LedgerPort interface {
	Adjust(ctx context.Context, q catalog.Querier, m catalog.StockMovement) error
	Balance(ctx context.Context, q catalog.Querier, productID, colorID, locationID int64) (decimal.Decimal, error)
}

// CatalogPort validates counted lines against the catalog.
type CatalogPort interface {
	ProductColorExists(ctx context.Context, productID, colorID int64) (bool, error)
}

// IdempotencyPort guards replayed finalizations.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// AuditPort records workflow actions.
type AuditPort interface {
	Record(ctx context.Context, entry shared.AuditLog) error
}

// Service coordinates inventory reconciliation sessions.
type Service struct {
	logger      *slog.Logger
	repo        RepositoryPort
	ledger      LedgerPort
	pool        catalog.Querier
	catalog     CatalogPort
	idempotency IdempotencyPort
	audit       AuditPort
	now         func() time.Time
}

// NewService wires a Service. pool is the non-transactional querier used
// for system-quantity snapshots outside finalization.
func NewService(logger *slog.Logger, repo RepositoryPort, ledger LedgerPort, pool catalog.Querier, catalogPort CatalogPort, idempotency IdempotencyPort, audit AuditPort) *Service {
	return &Service{
		logger:      logger,
		repo:        repo,
		ledger:      ledger,
		pool:        pool,
		catalog:     catalogPort,
		idempotency: idempotency,
		audit:       audit,
		now:         time.Now,
	}
}

// CreateInput opens a new counting session.
type CreateInput struct {
	Type  SessionType `json:"tipo"`
	Notes string      `json:"observacoes"`
}

// Create opens a session in EM_ANDAMENTO with an INV number.
func (s *Service) Create(ctx context.Context, actorID int64, input CreateInput) (Session, error) {
	if input.Type != TypeInventory && input.Type != TypeSpotCheck {
		return Session{}, shared.Validationf("tipo de inventário inválido")
	}
	var created Session
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.AllocateNumber(ctx)
		if err != nil {
			return err
		}
		session := Session{
			Number:        number,
			Type:          input.Type,
			Status:        StatusInProgress,
			ResponsibleID: actorID,
			Notes:         input.Notes,
		}
		session.ID, err = tx.CreateSession(ctx, session)
		if err != nil {
			return err
		}
		created = session
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	s.recordAudit(ctx, actorID, "inventario.criar", created.ID, created.Number)
	return created, nil
}

// AddItemInput is one counted line.
type AddItemInput struct {
	ProductID  int64           `json:"produto_id"`
	ColorID    int64           `json:"cor_id"`
	CountedQty decimal.Decimal `json:"quantidade_contada"`
	BatchLabel string          `json:"lote"`
	Notes      string          `json:"observacoes"`
	OCRPayload string          `json:"ocr_payload"`
}

// AddItem snapshots the system quantity from the ledger and appends the
// counted line. Divergence = counted − system, and may be negative.
func (s *Service) AddItem(ctx context.Context, actorID, sessionID int64, input AddItemInput) (Item, error) {
	session, _, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return Item{}, err
	}
	if session.Status != StatusInProgress {
		return Item{}, ErrNotInProgress
	}
	if input.CountedQty.IsNegative() {
		return Item{}, shared.Validationf("quantidade contada não pode ser negativa")
	}
	ok, err := s.catalog.ProductColorExists(ctx, input.ProductID, input.ColorID)
	if err != nil {
		return Item{}, err
	}
	if !ok {
		return Item{}, shared.Validationf("produto ou cor inexistente")
	}

	systemQty, err := s.ledger.Balance(ctx, s.pool, input.ProductID, input.ColorID, catalog.LocationCD)
	if err != nil {
		return Item{}, err
	}

	item := Item{
		SessionID:  sessionID,
		ProductID:  input.ProductID,
		ColorID:    input.ColorID,
		SystemQty:  systemQty,
		CountedQty: input.CountedQty,
		Divergence: input.CountedQty.Sub(systemQty),
		BatchLabel: input.BatchLabel,
		Notes:      input.Notes,
		OCRPayload: input.OCRPayload,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item.ID, err = tx.InsertItem(ctx, item)
		return err
	})
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// EditItem updates the counted quantity and recomputes divergence
// against the original system snapshot.
func (s *Service) EditItem(ctx context.Context, actorID, sessionID, itemID int64, counted decimal.Decimal) (Item, error) {
	session, _, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return Item{}, err
	}
	if session.Status != StatusInProgress {
		return Item{}, ErrNotInProgress
	}
	if counted.IsNegative() {
		return Item{}, shared.Validationf("quantidade contada não pode ser negativa")
	}
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return Item{}, err
	}
	if item.SessionID != sessionID {
		return Item{}, ErrItemNotFound
	}
	item.CountedQty = counted
	item.Divergence = counted.Sub(item.SystemQty)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateItemCount(ctx, itemID, item.CountedQty, item.Divergence)
	})
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// RemoveItem drops a counted line while the session is in progress.
func (s *Service) RemoveItem(ctx context.Context, actorID, sessionID, itemID int64) error {
	session, _, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status != StatusInProgress {
		return ErrNotInProgress
	}
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item.SessionID != sessionID {
		return ErrItemNotFound
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteItem(ctx, itemID)
	})
}

// Finalize applies every item's divergence to the stock ledger and flips
// the session to FINALIZADO inside one transaction. Any ledger failure
// aborts the whole batch: either every adjustment lands or none does.
func (s *Service) Finalize(ctx context.Context, actorID, sessionID int64, idempotencyKey string) (Session, error) {
	session, items, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if session.Status != StatusInProgress {
		return Session{}, ErrNotInProgress
	}
	if len(items) == 0 {
		return Session{}, ErrNoItems
	}
	if idempotencyKey != "" {
		if err := s.idempotency.CheckAndInsert(ctx, idempotencyKey, "inventarios.finalizar"); err != nil {
			return Session{}, err
		}
	}

	finalizedAt := s.now()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := tx.FinalizeSession(ctx, sessionID, finalizedAt)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotInProgress
		}
		q := tx.Querier()
		for _, item := range items {
			if item.Divergence.IsZero() {
				continue
			}
			movement := catalog.StockMovement{
				ProductID:  item.ProductID,
				ColorID:    item.ColorID,
				LocationID: catalog.LocationCD,
				Delta:      item.Divergence,
				Reason:     "ajuste de inventário",
				RefType:    "inventario",
				RefID:      sessionID,
				ActorID:    actorID,
			}
			if err := s.ledger.Adjust(ctx, q, movement); err != nil {
				return shared.Externalf("falha ao ajustar estoque: %v", err)
			}
		}
		return nil
	})
	if err != nil {
		if idempotencyKey != "" {
			if delErr := s.idempotency.Delete(ctx, idempotencyKey); delErr != nil {
				s.logger.Warn("release idempotency key", slog.Any("error", delErr))
			}
		}
		return Session{}, err
	}

	s.recordAudit(ctx, actorID, "inventario.finalizar", sessionID, session.Number)
	session, _, err = s.repo.Get(ctx, sessionID)
	return session, err
}

// Cancel freezes an in-progress session without touching stock.
func (s *Service) Cancel(ctx context.Context, actorID, sessionID int64, reason string) (Session, error) {
	if reason == "" {
		return Session{}, ErrReasonRequired
	}
	session, _, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if session.Status != StatusInProgress {
		return Session{}, ErrNotInProgress
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := tx.CancelSession(ctx, sessionID, reason, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotInProgress
		}
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	s.recordAudit(ctx, actorID, "inventario.cancelar", sessionID, session.Number)
	session, _, err = s.repo.Get(ctx, sessionID)
	return session, err
}

// Get returns one session with its items.
func (s *Service) Get(ctx context.Context, id int64) (Session, []Item, error) {
	return s.repo.Get(ctx, id)
}

// List returns sessions for the listing screen.
func (s *Service) List(ctx context.Context, limit, offset int, filters ListFilters) ([]Session, int, error) {
	return s.repo.List(ctx, limit, offset, filters)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, id int64, number string) {
	if s.audit == nil {
		return
	}
	entry := shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "inventario",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     map[string]any{"numero": number},
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
