package quotation

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/tramatex-erp/tramatex-erp/internal/notify"
	"github.com/tramatex-erp/tramatex-erp/internal/shared"
	"github.com/tramatex-erp/tramatex-erp/internal/suppliers"
)

// RepositoryPort abstracts quotation persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Quotation, []Item, error)
	List(ctx context.Context, limit, offset int, filters ListFilters) ([]Quotation, int, error)
	GetTokenRecord(ctx context.Context, token string) (SupplierToken, error)
	ListTokens(ctx context.Context, quotationID int64) ([]SupplierToken, error)
	ListResponses(ctx context.Context, quotationID int64) ([]Response, error)
	ListSupplierResponses(ctx context.Context, quotationID, supplierID int64) ([]Response, error)
	CountResponses(ctx context.Context, quotationID int64) (int, error)
	CountSupplierResponses(ctx context.Context, quotationID, supplierID int64) (int, error)
	LastPaidPrice(ctx context.Context, productID, colorID, supplierID int64) (*decimal.Decimal, error)
}

// SupplierPort resolves the suppliers invited to respond.
type SupplierPort interface {
	ListActive(ctx context.Context) ([]suppliers.Supplier, error)
	Get(ctx context.Context, id int64) (suppliers.Supplier, error)
}

// CatalogPort validates that quoted items reference live catalog rows.
type CatalogPort interface {
	ProductColorExists(ctx context.Context, productID, colorID int64) (bool, error)
}

// AuditPort records workflow actions.
type AuditPort interface {
	Record(ctx context.Context, entry shared.AuditLog) error
}

// Service coordinates the quotation workflow.
type Service struct {
	logger        *slog.Logger
	repo          RepositoryPort
	supplierDir   SupplierPort
	catalog       CatalogPort
	audit         AuditPort
	publicBaseURL string
	now           func() time.Time
	compareGroup  singleflight.Group
}

// NewService wires a Service.
func NewService(logger *slog.Logger, repo RepositoryPort, supplierDir SupplierPort, catalog CatalogPort, audit AuditPort, publicBaseURL string) *Service {
	return &Service{
		logger:        logger,
		repo:          repo,
		supplierDir:   supplierDir,
		catalog:       catalog,
		audit:         audit,
		publicBaseURL: publicBaseURL,
		now:           time.Now,
	}
}

// ItemInput is one requested line on open.
type ItemInput struct {
	ProductID int64           `json:"produto_id"`
	ColorID   int64           `json:"cor_id"`
	Quantity  decimal.Decimal `json:"quantidade"`
	Notes     string          `json:"observacoes"`
}

// OpenInput carries everything needed to open a quotation.
type OpenInput struct {
	Deadline time.Time   `json:"prazo_resposta"`
	Notes    string      `json:"observacoes"`
	Items    []ItemInput `json:"itens"`
}

// OpenResult is the created quotation plus the per-supplier links.
type OpenResult struct {
	Quotation Quotation      `json:"cotacao"`
	Items     []Item         `json:"itens"`
	Links     []SupplierLink `json:"links"`
}

// Open creates a quotation in ABERTA with one response token per active
// supplier. At least one item is required and every item must reference
// an active product/color pair.
func (s *Service) Open(ctx context.Context, actorID int64, input OpenInput) (OpenResult, error) {
	if len(input.Items) == 0 {
		return OpenResult{}, shared.Validationf("informe ao menos um item na cotação")
	}
	if input.Deadline.Before(s.now()) {
		return OpenResult{}, shared.Validationf("prazo de resposta deve ser futuro")
	}
	for i, item := range input.Items {
		if item.Quantity.LessThanOrEqual(decimal.Zero) {
			return OpenResult{}, shared.Validationf("quantidade do item %d deve ser positiva", i+1)
		}
		ok, err := s.catalog.ProductColorExists(ctx, item.ProductID, item.ColorID)
		if err != nil {
			return OpenResult{}, err
		}
		if !ok {
			return OpenResult{}, shared.Validationf("item %d referencia produto ou cor inexistente", i+1)
		}
	}

	active, err := s.supplierDir.ListActive(ctx)
	if err != nil {
		return OpenResult{}, err
	}
	if len(active) == 0 {
		return OpenResult{}, shared.Validationf("não há fornecedores ativos para cotar")
	}

	var result OpenResult
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.AllocateNumber(ctx)
		if err != nil {
			return err
		}
		q := Quotation{
			Number:    number,
			Status:    StatusOpen,
			Deadline:  input.Deadline,
			Notes:     input.Notes,
			CreatedBy: actorID,
		}
		q.ID, err = tx.CreateQuotation(ctx, q)
		if err != nil {
			return err
		}
		items := make([]Item, 0, len(input.Items))
		for _, in := range input.Items {
			item := Item{
				QuotationID: q.ID,
				ProductID:   in.ProductID,
				ColorID:     in.ColorID,
				Quantity:    in.Quantity,
				Notes:       in.Notes,
			}
			item.ID, err = tx.InsertItem(ctx, item)
			if err != nil {
				return err
			}
			items = append(items, item)
		}
		links := make([]SupplierLink, 0, len(active))
		for _, sup := range active {
			token, err := NewResponseToken()
			if err != nil {
				return err
			}
			if err := tx.CreateToken(ctx, SupplierToken{
				QuotationID: q.ID,
				SupplierID:  sup.ID,
				Token:       token,
			}); err != nil {
				return err
			}
			links = append(links, s.supplierLink(sup, q.Number, token))
		}
		result = OpenResult{Quotation: q, Items: items, Links: links}
		return nil
	})
	if err != nil {
		return OpenResult{}, err
	}

	s.recordAudit(ctx, actorID, "cotacao.abrir", result.Quotation.ID, result.Quotation.Number)
	return result, nil
}

func (s *Service) supplierLink(sup suppliers.Supplier, number, token string) SupplierLink {
	responseURL := fmt.Sprintf("%s/public/cotacoes/%s", s.publicBaseURL, token)
	return SupplierLink{
		SupplierID:   sup.ID,
		SupplierName: sup.Name,
		Token:        token,
		URL:          responseURL,
		WhatsAppURL:  notify.WhatsAppLink(sup.WhatsApp, notify.QuotationInvite(sup.Name, number, responseURL)),
	}
}

// TokenView is what an anonymous supplier sees behind its link.
type TokenView struct {
	QuotationNumber string     `json:"cotacao_numero"`
	Status          Status     `json:"status"`
	Deadline        time.Time  `json:"prazo_resposta"`
	SupplierID      int64      `json:"fornecedor_id"`
	SupplierName    string     `json:"fornecedor_nome"`
	AnsweredAt      *time.Time `json:"respondido_em,omitempty"`
	Items           []Item     `json:"itens"`
	Responses       []Response `json:"respostas,omitempty"`
}

// ResolveToken returns the supplier-facing view of an open quotation.
// Unknown tokens and tokens of non-open quotations resolve to not found,
// so probing leaks nothing about quotation state.
func (s *Service) ResolveToken(ctx context.Context, token string) (TokenView, error) {
	record, err := s.repo.GetTokenRecord(ctx, token)
	if err != nil {
		return TokenView{}, err
	}
	q, items, err := s.repo.Get(ctx, record.QuotationID)
	if err != nil {
		return TokenView{}, err
	}
	if q.Status != StatusOpen {
		return TokenView{}, ErrTokenNotFound
	}
	if s.now().After(q.Deadline) {
		return TokenView{}, ErrDeadlinePassed
	}
	sup, err := s.supplierDir.Get(ctx, record.SupplierID)
	if err != nil {
		return TokenView{}, err
	}
	responses, err := s.repo.ListSupplierResponses(ctx, q.ID, record.SupplierID)
	if err != nil {
		return TokenView{}, err
	}
	return TokenView{
		QuotationNumber: q.Number,
		Status:          q.Status,
		Deadline:        q.Deadline,
		SupplierID:      sup.ID,
		SupplierName:    sup.Name,
		AnsweredAt:      record.AnsweredAt,
		Items:           items,
		Responses:       responses,
	}, nil
}

// ResponseItemInput is one answered line from a supplier.
type ResponseItemInput struct {
	ItemID       int64           `json:"item_id"`
	UnitPrice    decimal.Decimal `json:"preco_unitario"`
	LeadTimeDays int             `json:"prazo_entrega_dias"`
	Notes        string          `json:"observacoes"`
}

// RecordSupplierResponse stores a supplier's answers for the quotation
// behind the token. Resubmitting replaces the supplier's previous
// answers entirely. Answers after the deadline are rejected.
func (s *Service) RecordSupplierResponse(ctx context.Context, token string, answers []ResponseItemInput) error {
	if len(answers) == 0 {
		return shared.Validationf("informe ao menos um item respondido")
	}
	record, err := s.repo.GetTokenRecord(ctx, token)
	if err != nil {
		return err
	}
	q, items, err := s.repo.Get(ctx, record.QuotationID)
	if err != nil {
		return err
	}
	if q.Status != StatusOpen {
		return ErrInvalidState
	}
	if s.now().After(q.Deadline) {
		return ErrDeadlinePassed
	}

	validItems := make(map[int64]struct{}, len(items))
	for _, it := range items {
		validItems[it.ID] = struct{}{}
	}
	seen := make(map[int64]struct{}, len(answers))
	responses := make([]Response, 0, len(answers))
	for i, ans := range answers {
		if _, ok := validItems[ans.ItemID]; !ok {
			return shared.Validationf("resposta %d referencia item inexistente", i+1)
		}
		if _, dup := seen[ans.ItemID]; dup {
			return shared.Validationf("resposta %d repete um item já respondido", i+1)
		}
		seen[ans.ItemID] = struct{}{}
		if ans.UnitPrice.LessThanOrEqual(decimal.Zero) {
			return shared.Validationf("preço unitário da resposta %d deve ser positivo", i+1)
		}
		if ans.LeadTimeDays <= 0 {
			return shared.Validationf("prazo de entrega da resposta %d deve ser positivo", i+1)
		}
		responses = append(responses, Response{
			QuotationID:  q.ID,
			ItemID:       ans.ItemID,
			SupplierID:   record.SupplierID,
			UnitPrice:    ans.UnitPrice,
			LeadTimeDays: ans.LeadTimeDays,
			Notes:        ans.Notes,
		})
	}

	// Snapshot the last paid price per line so comparisons stay stable
	// even when later purchases rewrite the history.
	itemByID := make(map[int64]Item, len(items))
	for _, it := range items {
		itemByID[it.ID] = it
	}
	for i := range responses {
		it := itemByID[responses[i].ItemID]
		hist, err := s.repo.LastPaidPrice(ctx, it.ProductID, it.ColorID, record.SupplierID)
		if err != nil {
			return err
		}
		responses[i].HistoricalPrice = hist
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.ReplaceSupplierResponses(ctx, q.ID, record.SupplierID, responses); err != nil {
			return err
		}
		return tx.MarkTokenAnswered(ctx, record.ID, s.now())
	})
	if err != nil {
		return err
	}
	s.logger.Info("supplier response recorded",
		slog.Int64("quotation_id", q.ID),
		slog.Int64("supplier_id", record.SupplierID),
		slog.Int("items", len(responses)))
	return nil
}

// Close moves ABERTA to FECHADA. Requires at least one supplier response.
func (s *Service) Close(ctx context.Context, actorID, id int64) (Quotation, error) {
	q, _, err := s.repo.Get(ctx, id)
	if err != nil {
		return Quotation{}, err
	}
	if q.Status != StatusOpen {
		return Quotation{}, ErrInvalidState
	}
	n, err := s.repo.CountResponses(ctx, id)
	if err != nil {
		return Quotation{}, err
	}
	if n == 0 {
		return Quotation{}, ErrNoResponses
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := tx.CloseQuotation(ctx, id, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidState
		}
		return nil
	})
	if err != nil {
		return Quotation{}, err
	}
	s.recordAudit(ctx, actorID, "cotacao.fechar", id, q.Number)
	q, _, err = s.repo.Get(ctx, id)
	return q, err
}

// ComparisonView is the closed quotation with per-supplier summaries.
type ComparisonView struct {
	Quotation         Quotation         `json:"cotacao"`
	Items             []Item            `json:"itens"`
	Summaries         []SupplierSummary `json:"resumo_fornecedores"`
	BestPriceSupplier *int64            `json:"melhor_preco_fornecedor_id,omitempty"`
}

// Compare aggregates all supplier responses into the approval view.
// Concurrent requests for the same quotation share a single build.
func (s *Service) Compare(ctx context.Context, id int64) (ComparisonView, error) {
	view, err, _ := s.compareGroup.Do(strconv.FormatInt(id, 10), func() (any, error) {
		q, items, err := s.repo.Get(ctx, id)
		if err != nil {
			return ComparisonView{}, err
		}
		responses, err := s.repo.ListResponses(ctx, id)
		if err != nil {
			return ComparisonView{}, err
		}
		summaries := Summarize(items, responses)
		return ComparisonView{
			Quotation:         q,
			Items:             items,
			Summaries:         summaries,
			BestPriceSupplier: BestPriceSupplier(summaries),
		}, nil
	})
	if err != nil {
		return ComparisonView{}, err
	}
	return view.(ComparisonView), nil
}

// Approve moves FECHADA to APROVADA, electing a winning supplier that
// answered at least one item, and appends its prices to the history.
func (s *Service) Approve(ctx context.Context, actorID, id, supplierID int64) (Quotation, error) {
	q, items, err := s.repo.Get(ctx, id)
	if err != nil {
		return Quotation{}, err
	}
	if q.Status != StatusClosed {
		return Quotation{}, ErrInvalidState
	}
	answered, err := s.repo.CountSupplierResponses(ctx, id, supplierID)
	if err != nil {
		return Quotation{}, err
	}
	if answered == 0 {
		return Quotation{}, ErrSupplierNotAnswered
	}
	responses, err := s.repo.ListSupplierResponses(ctx, id, supplierID)
	if err != nil {
		return Quotation{}, err
	}
	itemByID := make(map[int64]Item, len(items))
	for _, it := range items {
		itemByID[it.ID] = it
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := tx.ApproveQuotation(ctx, id, supplierID, actorID, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidState
		}
		for _, resp := range responses {
			it, found := itemByID[resp.ItemID]
			if !found {
				continue
			}
			if err := tx.InsertPriceHistory(ctx, it.ProductID, it.ColorID, supplierID, resp.UnitPrice, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Quotation{}, err
	}
	s.recordAudit(ctx, actorID, "cotacao.aprovar", id, q.Number)
	q, _, err = s.repo.Get(ctx, id)
	return q, err
}

// Cancel moves ABERTA or FECHADA to CANCELADA. Approved quotations are
// immutable.
func (s *Service) Cancel(ctx context.Context, actorID, id int64) (Quotation, error) {
	q, _, err := s.repo.Get(ctx, id)
	if err != nil {
		return Quotation{}, err
	}
	if q.Status != StatusOpen && q.Status != StatusClosed {
		return Quotation{}, ErrInvalidState
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := tx.CancelQuotation(ctx, id, q.Status, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidState
		}
		return nil
	})
	if err != nil {
		return Quotation{}, err
	}
	s.recordAudit(ctx, actorID, "cotacao.cancelar", id, q.Number)
	q, _, err = s.repo.Get(ctx, id)
	return q, err
}

// Get returns one quotation with items and supplier links.
func (s *Service) Get(ctx context.Context, id int64) (Quotation, []Item, error) {
	return s.repo.Get(ctx, id)
}

// Links returns the supplier response links of a quotation.
func (s *Service) Links(ctx context.Context, id int64) ([]SupplierLink, error) {
	q, _, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	tokens, err := s.repo.ListTokens(ctx, id)
	if err != nil {
		return nil, err
	}
	links := make([]SupplierLink, 0, len(tokens))
	for _, t := range tokens {
		sup, err := s.supplierDir.Get(ctx, t.SupplierID)
		if err != nil {
			return nil, err
		}
		links = append(links, s.supplierLink(sup, q.Number, t.Token))
	}
	return links, nil
}

// List returns quotations for the listing screen.
func (s *Service) List(ctx context.Context, limit, offset int, filters ListFilters) ([]Quotation, int, error) {
	return s.repo.List(ctx, limit, offset, filters)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, id int64, number string) {
	if s.audit == nil {
		return
	}
	entry := shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "cotacao",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     map[string]any{"numero": number},
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
