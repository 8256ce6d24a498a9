package catalog

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/tramatex-erp/tramatex-erp/internal/platform/httpx"
	"github.com/tramatex-erp/tramatex-erp/internal/shared"
)

// Handler manages catalog endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/produtos", func(r chi.Router) {
		r.Get("/", h.listProducts)
		r.Post("/", h.createProduct)
		r.Get("/{id}", h.getProduct)
		r.Put("/{id}", h.updateProduct)
		r.Get("/{id}/cores", h.listColors)
		r.Post("/{id}/cores", h.createColor)
	})
	r.Route("/cores", func(r chi.Router) {
		r.Put("/{id}", h.updateColor)
	})
	r.Route("/estoque", func(r chi.Router) {
		r.Get("/saldo", h.stockBalance)
		r.Get("/movimentos", h.stockMovements)
	})
}

type productRequest struct {
	Reference   string          `json:"referencia"`
	Name        string          `json:"nome"`
	Composition string          `json:"composicao"`
	WidthMeters decimal.Decimal `json:"largura_metros"`
	GramWeight  decimal.Decimal `json:"gramatura"`
	Active      *bool           `json:"ativo"`
}

// colorRequest accepts both the canonical fields and the legacy aliases
// (nome_cor / codigoHex) still emitted by older clients. Normalization to
// the single name/hex pair happens here, once, at the boundary.
type colorRequest struct {
	Name       string `json:"nome"`
	LegacyName string `json:"nome_cor"`
	Hex        string `json:"hex"`
	LegacyHex  string `json:"codigoHex"`
	Active     *bool  `json:"ativo"`
}

func (c colorRequest) normalized() ColorInput {
	name := c.Name
	if name == "" {
		name = c.LegacyName
	}
	hex := c.Hex
	if hex == "" {
		hex = c.LegacyHex
	}
	return ColorInput{Name: name, Hex: hex, Active: c.Active}
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "corpo da requisição inválido")
		return
	}
	product, err := h.service.CreateProduct(r.Context(), ProductInput{
		Reference:   req.Reference,
		Name:        req.Name,
		Composition: req.Composition,
		WidthMeters: req.WidthMeters,
		GramWeight:  req.GramWeight,
	})
	if err != nil {
		h.logger.Warn("create product", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "id inválido")
		return
	}
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "corpo da requisição inválido")
		return
	}
	product, err := h.service.UpdateProduct(r.Context(), id, ProductInput{
		Reference:   req.Reference,
		Name:        req.Name,
		Composition: req.Composition,
		WidthMeters: req.WidthMeters,
		GramWeight:  req.GramWeight,
		Active:      req.Active,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "id inválido")
		return
	}
	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageFromRequest(r)
	filters := ListFilters{
		Search:     r.URL.Query().Get("busca"),
		ActiveOnly: r.URL.Query().Get("ativos") == "true",
	}
	items, total, err := h.service.ListProducts(r.Context(), perPage, (page-1)*perPage, filters)
	if err != nil {
		h.logger.Error("list products", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"dados":     items,
		"paginacao": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) createColor(w http.ResponseWriter, r *http.Request) {
	productID, err := urlID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "id inválido")
		return
	}
	var req colorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "corpo da requisição inválido")
		return
	}
	color, err := h.service.CreateColor(r.Context(), productID, req.normalized())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, color)
}

func (h *Handler) updateColor(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "id inválido")
		return
	}
	var req colorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "corpo da requisição inválido")
		return
	}
	color, err := h.service.UpdateColor(r.Context(), id, req.normalized())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, color)
}

func (h *Handler) listColors(w http.ResponseWriter, r *http.Request) {
	productID, err := urlID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "id inválido")
		return
	}
	colors, err := h.service.ListColors(r.Context(), productID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, colors)
}

func (h *Handler) stockBalance(w http.ResponseWriter, r *http.Request) {
	productID, _ := strconv.ParseInt(r.URL.Query().Get("produto_id"), 10, 64)
	colorID, _ := strconv.ParseInt(r.URL.Query().Get("cor_id"), 10, 64)
	locationID, _ := strconv.ParseInt(r.URL.Query().Get("local_id"), 10, 64)
	if productID == 0 || colorID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "produto_id e cor_id são obrigatórios")
		return
	}
	if locationID == 0 {
		locationID = LocationCD
	}
	balance, err := h.service.StockBalance(r.Context(), productID, colorID, locationID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balance)
}

func (h *Handler) stockMovements(w http.ResponseWriter, r *http.Request) {
	productID, _ := strconv.ParseInt(r.URL.Query().Get("produto_id"), 10, 64)
	colorID, _ := strconv.ParseInt(r.URL.Query().Get("cor_id"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limite"))
	if productID == 0 || colorID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "produto_id e cor_id são obrigatórios")
		return
	}
	movements, err := h.service.StockMovements(r.Context(), productID, colorID, limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
}

func urlID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
