package replenishment

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tramatex-erp/tramatex-erp/internal/catalog"
	"github.com/tramatex-erp/tramatex-erp/internal/shared"
)

type memoryReplenishmentRepo struct {
	requests map[int64]Request
	items    map[int64]Item
	seq      int64
	nextID   int64
}

type memoryReplenishmentTx struct {
	repo *memoryReplenishmentRepo
}

func newMemoryReplenishmentRepo() *memoryReplenishmentRepo {
	return &memoryReplenishmentRepo{
		requests: make(map[int64]Request),
		items:    make(map[int64]Item),
	}
}

func (r *memoryReplenishmentRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	backupRequests := make(map[int64]Request, len(r.requests))
	for k, v := range r.requests {
		backupRequests[k] = v
	}
	backupItems := make(map[int64]Item, len(r.items))
	for k, v := range r.items {
		backupItems[k] = v
	}
	if err := fn(ctx, &memoryReplenishmentTx{repo: r}); err != nil {
		r.requests = backupRequests
		r.items = backupItems
		return err
	}
	return nil
}

func (r *memoryReplenishmentRepo) Get(ctx context.Context, id int64) (Request, []Item, error) {
	req, ok := r.requests[id]
	if !ok {
		return Request{}, nil, ErrNotFound
	}
	var items []Item
	for _, it := range r.items {
		if it.RequestID == id {
			items = append(items, it)
		}
	}
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			if items[j].ID < items[i].ID {
				items[i], items[j] = items[j], items[i]
			}
		}
	}
	return req, items, nil
}

func (r *memoryReplenishmentRepo) List(ctx context.Context, limit, offset int, filters ListFilters) ([]Request, int, error) {
	var out []Request
	for _, req := range r.requests {
		out = append(out, req)
	}
	return out, len(out), nil
}

func (tx *memoryReplenishmentTx) Querier() catalog.Querier { return nil }

func (tx *memoryReplenishmentTx) AllocateNumber(ctx context.Context) (string, error) {
	tx.repo.seq++
	return shared.FormatDocumentNumber(shared.DocPrefixReplenishment, 2026, tx.repo.seq), nil
}

func (tx *memoryReplenishmentTx) CreateRequest(ctx context.Context, req Request) (int64, error) {
	tx.repo.nextID++
	req.ID = tx.repo.nextID
	tx.repo.requests[req.ID] = req
	return req.ID, nil
}

func (tx *memoryReplenishmentTx) InsertItem(ctx context.Context, item Item) (int64, error) {
	tx.repo.nextID++
	item.ID = tx.repo.nextID
	tx.repo.items[item.ID] = item
	return item.ID, nil
}

func (tx *memoryReplenishmentTx) SetItemApproved(ctx context.Context, itemID int64, qty decimal.Decimal) error {
	it := tx.repo.items[itemID]
	it.ApprovedQty = &qty
	tx.repo.items[itemID] = it
	return nil
}

func (tx *memoryReplenishmentTx) SetItemFulfilled(ctx context.Context, itemID int64, qty decimal.Decimal) error {
	it := tx.repo.items[itemID]
	it.FulfilledQty = &qty
	tx.repo.items[itemID] = it
	return nil
}

func (tx *memoryReplenishmentTx) Decide(ctx context.Context, id int64, to Status, deciderID int64, justification string, at time.Time) (bool, error) {
	req, ok := tx.repo.requests[id]
	if !ok || req.Status != StatusPending {
		return false, nil
	}
	req.Status = to
	req.DecidedBy = &deciderID
	req.Justification = justification
	req.DecidedAt = &at
	tx.repo.requests[id] = req
	return true, nil
}

func (tx *memoryReplenishmentTx) Fulfil(ctx context.Context, id int64, from, to Status, at time.Time) (bool, error) {
	req, ok := tx.repo.requests[id]
	if !ok || req.Status != from {
		return false, nil
	}
	req.Status = to
	req.FulfilledAt = &at
	tx.repo.requests[id] = req
	return true, nil
}

func (tx *memoryReplenishmentTx) MarkShipped(ctx context.Context, id int64, from Status, at time.Time) (bool, error) {
	req, ok := tx.repo.requests[id]
	if !ok || req.Status != from {
		return false, nil
	}
	req.Status = StatusShipped
	req.ShippedAt = &at
	tx.repo.requests[id] = req
	return true, nil
}

func (tx *memoryReplenishmentTx) Cancel(ctx context.Context, id int64, at time.Time) (bool, error) {
	req, ok := tx.repo.requests[id]
	if !ok || req.Status != StatusPending {
		return false, nil
	}
	req.Status = StatusCancelled
	req.CancelledAt = &at
	tx.repo.requests[id] = req
	return true, nil
}

// fakeCDLedger tracks CD balances and fails deductions that would go
// negative, like the real guarded UPDATE.
type fakeCDLedger struct {
	balances map[[2]int64]decimal.Decimal
	deducted []catalog.StockMovement
}

func (l *fakeCDLedger) Deduct(ctx context.Context, q catalog.Querier, m catalog.StockMovement) error {
	key := [2]int64{m.ProductID, m.ColorID}
	if l.balances[key].LessThan(m.Delta) {
		return catalog.ErrInsufficientStock
	}
	l.balances[key] = l.balances[key].Sub(m.Delta)
	l.deducted = append(l.deducted, m)
	return nil
}

type allowAllCatalog struct{}

func (allowAllCatalog) ProductColorExists(ctx context.Context, productID, colorID int64) (bool, error) {
	return true, nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestService(repo *memoryReplenishmentRepo, ledger *fakeCDLedger) *Service {
	return NewService(slog.Default(), repo, ledger, allowAllCatalog{}, nil)
}

func createTestRequest(t *testing.T, svc *Service) (Request, []Item) {
	t.Helper()
	req, items, err := svc.Create(context.Background(), 7, CreateInput{
		StoreID: 2,
		Items: []ItemInput{
			{ProductID: 10, ColorID: 100, Quantity: dec("120")},
			{ProductID: 11, ColorID: 101, Quantity: dec("60")},
		},
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, StatusPending, req.Status)
	require.Equal(t, "REQ-2026-0001", req.Number)
	return req, items
}

func TestDecideFullApproval(t *testing.T) {
	svc := newTestService(newMemoryReplenishmentRepo(), &fakeCDLedger{})
	req, items := createTestRequest(t, svc)

	decided, err := svc.Decide(context.Background(), 9, req.ID, DecisionInput{
		Decisions: map[int64]decimal.Decimal{
			items[0].ID: dec("120"),
			items[1].ID: dec("60"),
		},
	})
	require.NoError(t, err)
	require.Equal(t, StatusApproved, decided.Status)
	require.NotNil(t, decided.DecidedAt)
}

func TestDecidePartialApproval(t *testing.T) {
	repo := newMemoryReplenishmentRepo()
	svc := newTestService(repo, &fakeCDLedger{})
	req, items := createTestRequest(t, svc)

	decided, err := svc.Decide(context.Background(), 9, req.ID, DecisionInput{
		Decisions: map[int64]decimal.Decimal{
			items[0].ID: dec("60"),
			items[1].ID: decimal.Zero,
		},
	})
	require.NoError(t, err)
	require.Equal(t, StatusPartiallyApproved, decided.Status)

	_, saved, err := repo.Get(context.Background(), req.ID)
	require.NoError(t, err)
	require.True(t, saved[0].ApprovedQty.Equal(dec("60")))
	require.True(t, saved[1].ApprovedQty.IsZero())
}

func TestDecideFullRefusalNeedsJustification(t *testing.T) {
	svc := newTestService(newMemoryReplenishmentRepo(), &fakeCDLedger{})
	req, items := createTestRequest(t, svc)

	zeroAll := DecisionInput{Decisions: map[int64]decimal.Decimal{
		items[0].ID: decimal.Zero,
		items[1].ID: decimal.Zero,
	}}
	_, err := svc.Decide(context.Background(), 9, req.ID, zeroAll)
	require.ErrorIs(t, err, ErrJustificationRequired)

	zeroAll.Justification = "sem estoque no CD"
	refused, err := svc.Decide(context.Background(), 9, req.ID, zeroAll)
	require.NoError(t, err)
	require.Equal(t, StatusRefused, refused.Status)
}

func TestDecideRejectsOverRequested(t *testing.T) {
	svc := newTestService(newMemoryReplenishmentRepo(), &fakeCDLedger{})
	req, items := createTestRequest(t, svc)

	_, err := svc.Decide(context.Background(), 9, req.ID, DecisionInput{
		Decisions: map[int64]decimal.Decimal{
			items[0].ID: dec("180"),
			items[1].ID: dec("60"),
		},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestFulfilDeductsCDStock(t *testing.T) {
	ledger := &fakeCDLedger{balances: map[[2]int64]decimal.Decimal{
		{10, 100}: dec("500"),
		{11, 101}: dec("500"),
	}}
	svc := newTestService(newMemoryReplenishmentRepo(), ledger)
	req, items := createTestRequest(t, svc)

	_, err := svc.Decide(context.Background(), 9, req.ID, DecisionInput{
		Decisions: map[int64]decimal.Decimal{
			items[0].ID: dec("120"),
			items[1].ID: dec("60"),
		},
	})
	require.NoError(t, err)

	fulfilled, err := svc.Fulfil(context.Background(), 9, req.ID, FulfilInput{
		Fulfilments: map[int64]decimal.Decimal{
			items[0].ID: dec("120"),
			items[1].ID: dec("60"),
		},
	})
	require.NoError(t, err)
	require.Equal(t, StatusFulfilled, fulfilled.Status)
	require.Len(t, ledger.deducted, 2)
	require.Equal(t, "requisicao", ledger.deducted[0].RefType)
	require.Equal(t, req.ID, ledger.deducted[0].RefID)
	require.True(t, ledger.balances[[2]int64{10, 100}].Equal(dec("380")))
}

func TestFulfilPartialOutcome(t *testing.T) {
	ledger := &fakeCDLedger{balances: map[[2]int64]decimal.Decimal{
		{10, 100}: dec("500"),
		{11, 101}: dec("500"),
	}}
	svc := newTestService(newMemoryReplenishmentRepo(), ledger)
	req, items := createTestRequest(t, svc)

	_, err := svc.Decide(context.Background(), 9, req.ID, DecisionInput{
		Decisions: map[int64]decimal.Decimal{
			items[0].ID: dec("120"),
			items[1].ID: dec("60"),
		},
	})
	require.NoError(t, err)

	fulfilled, err := svc.Fulfil(context.Background(), 9, req.ID, FulfilInput{
		Fulfilments: map[int64]decimal.Decimal{
			items[0].ID: dec("60"),
			items[1].ID: dec("60"),
		},
	})
	require.NoError(t, err)
	require.Equal(t, StatusPartiallyFulfilled, fulfilled.Status)
}

func TestFulfilCannotExceedApproved(t *testing.T) {
	svc := newTestService(newMemoryReplenishmentRepo(), &fakeCDLedger{})
	req, items := createTestRequest(t, svc)

	_, err := svc.Decide(context.Background(), 9, req.ID, DecisionInput{
		Decisions: map[int64]decimal.Decimal{
			items[0].ID: dec("60"),
			items[1].ID: dec("60"),
		},
	})
	require.NoError(t, err)

	_, err = svc.Fulfil(context.Background(), 9, req.ID, FulfilInput{
		Fulfilments: map[int64]decimal.Decimal{
			items[0].ID: dec("120"),
			items[1].ID: dec("60"),
		},
	})
	require.ErrorIs(t, err, ErrOverApproved)
}

func TestFulfilInsufficientStockRollsBack(t *testing.T) {
	ledger := &fakeCDLedger{balances: map[[2]int64]decimal.Decimal{
		{10, 100}: dec("500"),
		{11, 101}: dec("10"),
	}}
	repo := newMemoryReplenishmentRepo()
	svc := newTestService(repo, ledger)
	req, items := createTestRequest(t, svc)

	_, err := svc.Decide(context.Background(), 9, req.ID, DecisionInput{
		Decisions: map[int64]decimal.Decimal{
			items[0].ID: dec("120"),
			items[1].ID: dec("60"),
		},
	})
	require.NoError(t, err)

	_, err = svc.Fulfil(context.Background(), 9, req.ID, FulfilInput{
		Fulfilments: map[int64]decimal.Decimal{
			items[0].ID: dec("120"),
			items[1].ID: dec("60"),
		},
	})
	require.ErrorIs(t, err, catalog.ErrInsufficientStock)

	current, savedItems, err := repo.Get(context.Background(), req.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPartiallyApproved, current.Status)
	for _, it := range savedItems {
		require.Nil(t, it.FulfilledQty)
	}
}

func TestShipAndCancelGuards(t *testing.T) {
	ledger := &fakeCDLedger{balances: map[[2]int64]decimal.Decimal{
		{10, 100}: dec("500"),
		{11, 101}: dec("500"),
	}}
	svc := newTestService(newMemoryReplenishmentRepo(), ledger)
	req, items := createTestRequest(t, svc)

	// Ship before fulfilment is illegal.
	_, err := svc.MarkShipped(context.Background(), 9, req.ID)
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = svc.Decide(context.Background(), 9, req.ID, DecisionInput{
		Decisions: map[int64]decimal.Decimal{
			items[0].ID: dec("120"),
			items[1].ID: dec("60"),
		},
	})
	require.NoError(t, err)

	// Cancel is PENDENTE-only.
	_, err = svc.Cancel(context.Background(), 7, req.ID)
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = svc.Fulfil(context.Background(), 9, req.ID, FulfilInput{
		Fulfilments: map[int64]decimal.Decimal{
			items[0].ID: dec("120"),
			items[1].ID: dec("60"),
		},
	})
	require.NoError(t, err)

	shipped, err := svc.MarkShipped(context.Background(), 9, req.ID)
	require.NoError(t, err)
	require.Equal(t, StatusShipped, shipped.Status)
	require.NotNil(t, shipped.ShippedAt)
}
