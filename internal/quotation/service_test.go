package quotation

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tramatex-erp/tramatex-erp/internal/shared"
	"github.com/tramatex-erp/tramatex-erp/internal/suppliers"
)

type memoryQuotationRepo struct {
	quotations map[int64]Quotation
	items      map[int64][]Item
	tokens     map[string]SupplierToken
	responses  map[int64][]Response
	history    map[string]decimal.Decimal
	seq        int64
	nextID     int64
}

type memoryQuotationTx struct {
	repo *memoryQuotationRepo
}

func newMemoryQuotationRepo() *memoryQuotationRepo {
	return &memoryQuotationRepo{
		quotations: make(map[int64]Quotation),
		items:      make(map[int64][]Item),
		tokens:     make(map[string]SupplierToken),
		responses:  make(map[int64][]Response),
		history:    make(map[string]decimal.Decimal),
	}
}

func histKey(productID, colorID, supplierID int64) string {
	return fmt.Sprintf("%d/%d/%d", productID, colorID, supplierID)
}

func (r *memoryQuotationRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryQuotationTx{repo: r})
}

func (r *memoryQuotationRepo) Get(ctx context.Context, id int64) (Quotation, []Item, error) {
	q, ok := r.quotations[id]
	if !ok {
		return Quotation{}, nil, ErrNotFound
	}
	return q, append([]Item(nil), r.items[id]...), nil
}

func (r *memoryQuotationRepo) List(ctx context.Context, limit, offset int, filters ListFilters) ([]Quotation, int, error) {
	var out []Quotation
	for _, q := range r.quotations {
		out = append(out, q)
	}
	return out, len(out), nil
}

func (r *memoryQuotationRepo) GetTokenRecord(ctx context.Context, token string) (SupplierToken, error) {
	t, ok := r.tokens[token]
	if !ok {
		return SupplierToken{}, ErrTokenNotFound
	}
	return t, nil
}

func (r *memoryQuotationRepo) ListTokens(ctx context.Context, quotationID int64) ([]SupplierToken, error) {
	var out []SupplierToken
	for _, t := range r.tokens {
		if t.QuotationID == quotationID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *memoryQuotationRepo) ListResponses(ctx context.Context, quotationID int64) ([]Response, error) {
	return append([]Response(nil), r.responses[quotationID]...), nil
}

func (r *memoryQuotationRepo) ListSupplierResponses(ctx context.Context, quotationID, supplierID int64) ([]Response, error) {
	var out []Response
	for _, resp := range r.responses[quotationID] {
		if resp.SupplierID == supplierID {
			out = append(out, resp)
		}
	}
	return out, nil
}

func (r *memoryQuotationRepo) CountResponses(ctx context.Context, quotationID int64) (int, error) {
	return len(r.responses[quotationID]), nil
}

func (r *memoryQuotationRepo) CountSupplierResponses(ctx context.Context, quotationID, supplierID int64) (int, error) {
	out, _ := r.ListSupplierResponses(ctx, quotationID, supplierID)
	return len(out), nil
}

func (r *memoryQuotationRepo) LastPaidPrice(ctx context.Context, productID, colorID, supplierID int64) (*decimal.Decimal, error) {
	price, ok := r.history[histKey(productID, colorID, supplierID)]
	if !ok {
		return nil, nil
	}
	return &price, nil
}

func (tx *memoryQuotationTx) AllocateNumber(ctx context.Context) (string, error) {
	tx.repo.seq++
	return shared.FormatDocumentNumber(shared.DocPrefixQuotation, 2026, tx.repo.seq), nil
}

func (tx *memoryQuotationTx) CreateQuotation(ctx context.Context, q Quotation) (int64, error) {
	tx.repo.nextID++
	q.ID = tx.repo.nextID
	tx.repo.quotations[q.ID] = q
	return q.ID, nil
}

func (tx *memoryQuotationTx) InsertItem(ctx context.Context, item Item) (int64, error) {
	tx.repo.nextID++
	item.ID = tx.repo.nextID
	tx.repo.items[item.QuotationID] = append(tx.repo.items[item.QuotationID], item)
	return item.ID, nil
}

func (tx *memoryQuotationTx) CreateToken(ctx context.Context, token SupplierToken) error {
	tx.repo.nextID++
	token.ID = tx.repo.nextID
	tx.repo.tokens[token.Token] = token
	return nil
}

func (tx *memoryQuotationTx) CloseQuotation(ctx context.Context, id int64, at time.Time) (bool, error) {
	q, ok := tx.repo.quotations[id]
	if !ok || q.Status != StatusOpen {
		return false, nil
	}
	q.Status = StatusClosed
	q.ClosedAt = &at
	tx.repo.quotations[id] = q
	return true, nil
}

func (tx *memoryQuotationTx) ApproveQuotation(ctx context.Context, id, supplierID, actorID int64, at time.Time) (bool, error) {
	q, ok := tx.repo.quotations[id]
	if !ok || q.Status != StatusClosed {
		return false, nil
	}
	q.Status = StatusApproved
	q.ChosenSupplierID = &supplierID
	q.ApprovedBy = &actorID
	q.ApprovedAt = &at
	tx.repo.quotations[id] = q
	return true, nil
}

func (tx *memoryQuotationTx) CancelQuotation(ctx context.Context, id int64, from Status, at time.Time) (bool, error) {
	q, ok := tx.repo.quotations[id]
	if !ok || q.Status != from {
		return false, nil
	}
	q.Status = StatusCancelled
	q.CancelledAt = &at
	tx.repo.quotations[id] = q
	return true, nil
}

func (tx *memoryQuotationTx) ReplaceSupplierResponses(ctx context.Context, quotationID, supplierID int64, responses []Response) error {
	var kept []Response
	for _, resp := range tx.repo.responses[quotationID] {
		if resp.SupplierID != supplierID {
			kept = append(kept, resp)
		}
	}
	for _, resp := range responses {
		tx.repo.nextID++
		resp.ID = tx.repo.nextID
		kept = append(kept, resp)
	}
	tx.repo.responses[quotationID] = kept
	return nil
}

func (tx *memoryQuotationTx) MarkTokenAnswered(ctx context.Context, tokenID int64, at time.Time) error {
	for key, t := range tx.repo.tokens {
		if t.ID == tokenID {
			t.AnsweredAt = &at
			tx.repo.tokens[key] = t
		}
	}
	return nil
}

func (tx *memoryQuotationTx) InsertPriceHistory(ctx context.Context, productID, colorID, supplierID int64, price decimal.Decimal, quotationID int64) error {
	tx.repo.history[histKey(productID, colorID, supplierID)] = price
	return nil
}

type staticSupplierDir struct {
	active []suppliers.Supplier
}

func (d *staticSupplierDir) ListActive(ctx context.Context) ([]suppliers.Supplier, error) {
	return d.active, nil
}

func (d *staticSupplierDir) Get(ctx context.Context, id int64) (suppliers.Supplier, error) {
	for _, sup := range d.active {
		if sup.ID == id {
			return sup, nil
		}
	}
	return suppliers.Supplier{}, suppliers.ErrNotFound
}

type allowAllCatalog struct{}

func (allowAllCatalog) ProductColorExists(ctx context.Context, productID, colorID int64) (bool, error) {
	return true, nil
}

func newTestService(repo *memoryQuotationRepo, dir *staticSupplierDir) *Service {
	return NewService(slog.Default(), repo, dir, allowAllCatalog{}, nil, "https://erp.tramatex.com.br")
}

func twoSuppliers() *staticSupplierDir {
	return &staticSupplierDir{active: []suppliers.Supplier{
		{ID: 4, Name: "Tecelagem Alfa", WhatsApp: "11988887777", Active: true},
		{ID: 9, Name: "Fios Beta", Active: true},
	}}
}

func openTestQuotation(t *testing.T, svc *Service) OpenResult {
	t.Helper()
	result, err := svc.Open(context.Background(), 1, OpenInput{
		Deadline: time.Now().Add(48 * time.Hour),
		Items: []ItemInput{
			{ProductID: 10, ColorID: 100, Quantity: dec("120")},
			{ProductID: 11, ColorID: 101, Quantity: dec("60")},
		},
	})
	require.NoError(t, err)
	return result
}

func TestOpenMintsOneTokenPerActiveSupplier(t *testing.T) {
	repo := newMemoryQuotationRepo()
	svc := newTestService(repo, twoSuppliers())

	result := openTestQuotation(t, svc)
	require.Equal(t, StatusOpen, result.Quotation.Status)
	require.Equal(t, "COT-2026-0001", result.Quotation.Number)
	require.Len(t, result.Items, 2)
	require.Len(t, result.Links, 2)
	for _, link := range result.Links {
		require.Len(t, link.Token, 64)
		require.Contains(t, link.URL, "/public/cotacoes/"+link.Token)
	}
	require.NotEmpty(t, result.Links[0].WhatsAppURL)
	require.Empty(t, result.Links[1].WhatsAppURL, "supplier without WhatsApp gets no deep link")
}

func TestOpenRejectsEmptyItems(t *testing.T) {
	svc := newTestService(newMemoryQuotationRepo(), twoSuppliers())
	_, err := svc.Open(context.Background(), 1, OpenInput{Deadline: time.Now().Add(time.Hour)})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCloseWithoutResponsesConflicts(t *testing.T) {
	repo := newMemoryQuotationRepo()
	svc := newTestService(repo, twoSuppliers())
	result := openTestQuotation(t, svc)

	_, err := svc.Close(context.Background(), 1, result.Quotation.ID)
	require.ErrorIs(t, err, ErrNoResponses)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func respond(t *testing.T, svc *Service, result OpenResult, supplierID int64, price string) {
	t.Helper()
	var token string
	for _, link := range result.Links {
		if link.SupplierID == supplierID {
			token = link.Token
		}
	}
	require.NotEmpty(t, token)
	err := svc.RecordSupplierResponse(context.Background(), token, []ResponseItemInput{
		{ItemID: result.Items[0].ID, UnitPrice: dec(price), LeadTimeDays: 12},
	})
	require.NoError(t, err)
}

func TestLifecycleOpenRespondCloseApprove(t *testing.T) {
	repo := newMemoryQuotationRepo()
	svc := newTestService(repo, twoSuppliers())
	result := openTestQuotation(t, svc)

	respond(t, svc, result, 4, "12.50")
	respond(t, svc, result, 9, "11.00")

	closed, err := svc.Close(context.Background(), 1, result.Quotation.ID)
	require.NoError(t, err)
	require.Equal(t, StatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)

	view, err := svc.Compare(context.Background(), result.Quotation.ID)
	require.NoError(t, err)
	require.Len(t, view.Summaries, 2)
	require.NotNil(t, view.BestPriceSupplier)
	require.Equal(t, int64(9), *view.BestPriceSupplier)

	approved, err := svc.Approve(context.Background(), 2, result.Quotation.ID, 4)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
	require.NotNil(t, approved.ChosenSupplierID)
	require.Equal(t, int64(4), *approved.ChosenSupplierID)

	// Approval snapshots the winner's prices for future variance.
	hist, err := repo.LastPaidPrice(context.Background(), 10, 100, 4)
	require.NoError(t, err)
	require.NotNil(t, hist)
	require.True(t, hist.Equal(dec("12.50")))
}

func TestResubmissionReplacesPreviousAnswers(t *testing.T) {
	repo := newMemoryQuotationRepo()
	svc := newTestService(repo, twoSuppliers())
	result := openTestQuotation(t, svc)

	respond(t, svc, result, 4, "12.50")
	respond(t, svc, result, 4, "11.90")

	responses, err := repo.ListSupplierResponses(context.Background(), result.Quotation.ID, 4)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	require.True(t, responses[0].UnitPrice.Equal(dec("11.90")))
}

func TestResponseAfterDeadlineRejected(t *testing.T) {
	repo := newMemoryQuotationRepo()
	svc := newTestService(repo, twoSuppliers())
	result, err := svc.Open(context.Background(), 1, OpenInput{
		Deadline: time.Now().Add(time.Minute),
		Items:    []ItemInput{{ProductID: 10, ColorID: 100, Quantity: dec("60")}},
	})
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	err = svc.RecordSupplierResponse(context.Background(), result.Links[0].Token, []ResponseItemInput{
		{ItemID: result.Items[0].ID, UnitPrice: dec("10.00"), LeadTimeDays: 5},
	})
	require.ErrorIs(t, err, ErrDeadlinePassed)
}

func TestApproveSilentSupplierRejected(t *testing.T) {
	repo := newMemoryQuotationRepo()
	svc := newTestService(repo, twoSuppliers())
	result := openTestQuotation(t, svc)
	respond(t, svc, result, 4, "12.50")

	_, err := svc.Close(context.Background(), 1, result.Quotation.ID)
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), 2, result.Quotation.ID, 9)
	require.ErrorIs(t, err, ErrSupplierNotAnswered)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCancelApprovedQuotationConflicts(t *testing.T) {
	repo := newMemoryQuotationRepo()
	svc := newTestService(repo, twoSuppliers())
	result := openTestQuotation(t, svc)
	respond(t, svc, result, 4, "12.50")

	_, err := svc.Close(context.Background(), 1, result.Quotation.ID)
	require.NoError(t, err)
	_, err = svc.Approve(context.Background(), 2, result.Quotation.ID, 4)
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), 2, result.Quotation.ID)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestTokenOfClosedQuotationResolvesNotFound(t *testing.T) {
	repo := newMemoryQuotationRepo()
	svc := newTestService(repo, twoSuppliers())
	result := openTestQuotation(t, svc)
	respond(t, svc, result, 4, "12.50")

	_, err := svc.Close(context.Background(), 1, result.Quotation.ID)
	require.NoError(t, err)

	_, err = svc.ResolveToken(context.Background(), result.Links[0].Token)
	require.ErrorIs(t, err, ErrTokenNotFound)
}
