package stockcount

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tramatex-erp/tramatex-erp/internal/catalog"
	"github.com/tramatex-erp/tramatex-erp/internal/shared"
)

// stagingQuerier collects ledger movements written inside a fake
// transaction so they can be committed or discarded with it.
type stagingQuerier struct {
	pending []catalog.StockMovement
}

func (q *stagingQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (q *stagingQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (q *stagingQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

type memoryStockRepo struct {
	sessions map[int64]Session
	items    map[int64]Item
	applied  []catalog.StockMovement
	seq      int64
	nextID   int64
}

type memoryStockTx struct {
	repo *memoryStockRepo
	q    *stagingQuerier
}

func newMemoryStockRepo() *memoryStockRepo {
	return &memoryStockRepo{
		sessions: make(map[int64]Session),
		items:    make(map[int64]Item),
	}
}

func (r *memoryStockRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	backupSessions := make(map[int64]Session, len(r.sessions))
	for k, v := range r.sessions {
		backupSessions[k] = v
	}
	backupItems := make(map[int64]Item, len(r.items))
	for k, v := range r.items {
		backupItems[k] = v
	}
	tx := &memoryStockTx{repo: r, q: &stagingQuerier{}}
	if err := fn(ctx, tx); err != nil {
		r.sessions = backupSessions
		r.items = backupItems
		return err
	}
	r.applied = append(r.applied, tx.q.pending...)
	return nil
}

func (r *memoryStockRepo) Get(ctx context.Context, id int64) (Session, []Item, error) {
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, nil, ErrNotFound
	}
	items, _ := r.ListItems(ctx, id)
	return s, items, nil
}

func (r *memoryStockRepo) GetItem(ctx context.Context, itemID int64) (Item, error) {
	it, ok := r.items[itemID]
	if !ok {
		return Item{}, ErrItemNotFound
	}
	return it, nil
}

func (r *memoryStockRepo) ListItems(ctx context.Context, sessionID int64) ([]Item, error) {
	var out []Item
	for _, it := range r.items {
		if it.SessionID == sessionID {
			out = append(out, it)
		}
	}
	// stable insertion order for the rollback scenario
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].ID < out[i].ID {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (r *memoryStockRepo) List(ctx context.Context, limit, offset int, filters ListFilters) ([]Session, int, error) {
	var out []Session
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out, len(out), nil
}

func (tx *memoryStockTx) Querier() catalog.Querier { return tx.q }

func (tx *memoryStockTx) AllocateNumber(ctx context.Context) (string, error) {
	tx.repo.seq++
	return shared.FormatDocumentNumber(shared.DocPrefixStockCount, 2026, tx.repo.seq), nil
}

func (tx *memoryStockTx) CreateSession(ctx context.Context, s Session) (int64, error) {
	tx.repo.nextID++
	s.ID = tx.repo.nextID
	tx.repo.sessions[s.ID] = s
	return s.ID, nil
}

func (tx *memoryStockTx) InsertItem(ctx context.Context, item Item) (int64, error) {
	tx.repo.nextID++
	item.ID = tx.repo.nextID
	tx.repo.items[item.ID] = item
	return item.ID, nil
}

func (tx *memoryStockTx) UpdateItemCount(ctx context.Context, itemID int64, counted, divergence decimal.Decimal) error {
	it, ok := tx.repo.items[itemID]
	if !ok {
		return ErrItemNotFound
	}
	it.CountedQty = counted
	it.Divergence = divergence
	tx.repo.items[itemID] = it
	return nil
}

func (tx *memoryStockTx) DeleteItem(ctx context.Context, itemID int64) error {
	if _, ok := tx.repo.items[itemID]; !ok {
		return ErrItemNotFound
	}
	delete(tx.repo.items, itemID)
	return nil
}

func (tx *memoryStockTx) FinalizeSession(ctx context.Context, id int64, at time.Time) (bool, error) {
	s, ok := tx.repo.sessions[id]
	if !ok || s.Status != StatusInProgress {
		return false, nil
	}
	s.Status = StatusFinalized
	s.FinalizedAt = &at
	tx.repo.sessions[id] = s
	return true, nil
}

func (tx *memoryStockTx) CancelSession(ctx context.Context, id int64, reason string, at time.Time) (bool, error) {
	s, ok := tx.repo.sessions[id]
	if !ok || s.Status != StatusInProgress {
		return false, nil
	}
	s.Status = StatusCancelled
	s.CancelReason = reason
	s.CancelledAt = &at
	tx.repo.sessions[id] = s
	return true, nil
}

// fakeLedger stages adjustments through the transaction's querier and
// can be told to fail on the nth Adjust call.
type fakeLedger struct {
	balances  map[[2]int64]decimal.Decimal
	failOn    int
	adjustNum int
}

func (l *fakeLedger) Adjust(ctx context.Context, q catalog.Querier, m catalog.StockMovement) error {
	l.adjustNum++
	if l.failOn > 0 && l.adjustNum == l.failOn {
		return shared.Externalf("indisponível")
	}
	q.(*stagingQuerier).pending = append(q.(*stagingQuerier).pending, m)
	return nil
}

func (l *fakeLedger) Balance(ctx context.Context, q catalog.Querier, productID, colorID, locationID int64) (decimal.Decimal, error) {
	return l.balances[[2]int64{productID, colorID}], nil
}

type allowAllCatalog struct{}

func (allowAllCatalog) ProductColorExists(ctx context.Context, productID, colorID int64) (bool, error) {
	return true, nil
}

type memoryIdempotency struct {
	keys map[string]bool
}

func (m *memoryIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	if m.keys == nil {
		m.keys = make(map[string]bool)
	}
	if m.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = true
	return nil
}

func (m *memoryIdempotency) Delete(ctx context.Context, key string) error {
	delete(m.keys, key)
	return nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestService(repo *memoryStockRepo, ledger *fakeLedger) *Service {
	return NewService(slog.Default(), repo, ledger, &stagingQuerier{}, allowAllCatalog{}, &memoryIdempotency{}, nil)
}

func createTestSession(t *testing.T, svc *Service) Session {
	t.Helper()
	s, err := svc.Create(context.Background(), 5, CreateInput{Type: TypeInventory})
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, s.Status)
	return s
}

func TestAddItemSnapshotsSystemQuantity(t *testing.T) {
	ledger := &fakeLedger{balances: map[[2]int64]decimal.Decimal{
		{10, 100}: dec("500.00"),
	}}
	svc := newTestService(newMemoryStockRepo(), ledger)
	session := createTestSession(t, svc)

	item, err := svc.AddItem(context.Background(), 5, session.ID, AddItemInput{
		ProductID: 10, ColorID: 100, CountedQty: dec("480.00"),
	})
	require.NoError(t, err)
	require.True(t, item.SystemQty.Equal(dec("500.00")))
	require.True(t, item.Divergence.Equal(dec("-20.00")))
}

func TestEditItemRecomputesDivergence(t *testing.T) {
	ledger := &fakeLedger{balances: map[[2]int64]decimal.Decimal{
		{10, 100}: dec("500.00"),
	}}
	svc := newTestService(newMemoryStockRepo(), ledger)
	session := createTestSession(t, svc)
	item, err := svc.AddItem(context.Background(), 5, session.ID, AddItemInput{
		ProductID: 10, ColorID: 100, CountedQty: dec("480.00"),
	})
	require.NoError(t, err)

	edited, err := svc.EditItem(context.Background(), 5, session.ID, item.ID, dec("510.00"))
	require.NoError(t, err)
	require.True(t, edited.Divergence.Equal(dec("10.00")))
}

func TestFinalizeAppliesDivergencesToLedger(t *testing.T) {
	ledger := &fakeLedger{balances: map[[2]int64]decimal.Decimal{
		{10, 100}: dec("500.00"),
		{11, 101}: dec("200.00"),
	}}
	repo := newMemoryStockRepo()
	svc := newTestService(repo, ledger)
	session := createTestSession(t, svc)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, 5, session.ID, AddItemInput{ProductID: 10, ColorID: 100, CountedQty: dec("480.00")})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, 5, session.ID, AddItemInput{ProductID: 11, ColorID: 101, CountedQty: dec("200.00")})
	require.NoError(t, err)

	final, err := svc.Finalize(ctx, 5, session.ID, "inv-key-1")
	require.NoError(t, err)
	require.Equal(t, StatusFinalized, final.Status)
	require.NotNil(t, final.FinalizedAt)

	// Only the divergent line produces a movement, with delta = divergence.
	require.Len(t, repo.applied, 1)
	require.True(t, repo.applied[0].Delta.Equal(dec("-20.00")))
	require.Equal(t, "inventario", repo.applied[0].RefType)
	require.Equal(t, session.ID, repo.applied[0].RefID)
}

func TestFinalizeIsAllOrNothing(t *testing.T) {
	ledger := &fakeLedger{
		balances: map[[2]int64]decimal.Decimal{
			{10, 100}: dec("500.00"),
			{11, 101}: dec("300.00"),
		},
		failOn: 2,
	}
	repo := newMemoryStockRepo()
	svc := newTestService(repo, ledger)
	session := createTestSession(t, svc)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, 5, session.ID, AddItemInput{ProductID: 10, ColorID: 100, CountedQty: dec("490.00")})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, 5, session.ID, AddItemInput{ProductID: 11, ColorID: 101, CountedQty: dec("250.00")})
	require.NoError(t, err)

	_, err = svc.Finalize(ctx, 5, session.ID, "inv-key-2")
	require.ErrorIs(t, err, shared.ErrExternal)

	// The first item's adjustment must not survive the failed batch and
	// the session must still accept retries.
	require.Empty(t, repo.applied)
	current, _, err := repo.Get(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, current.Status)

	// After the collaborator recovers, the same session finalizes.
	ledger.failOn = 0
	final, err := svc.Finalize(ctx, 5, session.ID, "inv-key-2")
	require.NoError(t, err)
	require.Equal(t, StatusFinalized, final.Status)
	require.Len(t, repo.applied, 2)
}

func TestFinalizeEmptySessionConflicts(t *testing.T) {
	svc := newTestService(newMemoryStockRepo(), &fakeLedger{})
	session := createTestSession(t, svc)

	_, err := svc.Finalize(context.Background(), 5, session.ID, "")
	require.ErrorIs(t, err, ErrNoItems)
}

func TestMutationsRejectedAfterFinalize(t *testing.T) {
	ledger := &fakeLedger{balances: map[[2]int64]decimal.Decimal{{10, 100}: dec("50.00")}}
	svc := newTestService(newMemoryStockRepo(), ledger)
	session := createTestSession(t, svc)
	ctx := context.Background()

	item, err := svc.AddItem(ctx, 5, session.ID, AddItemInput{ProductID: 10, ColorID: 100, CountedQty: dec("50.00")})
	require.NoError(t, err)
	_, err = svc.Finalize(ctx, 5, session.ID, "")
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, 5, session.ID, AddItemInput{ProductID: 10, ColorID: 100, CountedQty: dec("10.00")})
	require.ErrorIs(t, err, ErrNotInProgress)
	_, err = svc.EditItem(ctx, 5, session.ID, item.ID, dec("60.00"))
	require.ErrorIs(t, err, ErrNotInProgress)
	err = svc.RemoveItem(ctx, 5, session.ID, item.ID)
	require.ErrorIs(t, err, ErrNotInProgress)
}

func TestCancelRequiresReasonAndSkipsStock(t *testing.T) {
	ledger := &fakeLedger{balances: map[[2]int64]decimal.Decimal{{10, 100}: dec("500.00")}}
	repo := newMemoryStockRepo()
	svc := newTestService(repo, ledger)
	session := createTestSession(t, svc)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, 5, session.ID, AddItemInput{ProductID: 10, ColorID: 100, CountedQty: dec("400.00")})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, 5, session.ID, "")
	require.ErrorIs(t, err, ErrReasonRequired)

	cancelled, err := svc.Cancel(ctx, 5, session.ID, "contagem abandonada")
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.Equal(t, "contagem abandonada", cancelled.CancelReason)
	require.Empty(t, repo.applied)
}
