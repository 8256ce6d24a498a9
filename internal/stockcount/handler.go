package stockcount

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/tramatex-erp/tramatex-erp/internal/platform/httpx"
	"github.com/tramatex-erp/tramatex-erp/internal/shared"
)

// Handler manages inventory session endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Post("/{id}/itens", h.addItem)
	r.Put("/{id}/itens/{itemID}", h.editItem)
	r.Delete("/{id}/itens/{itemID}", h.removeItem)
	r.Post("/{id}/finalizar", h.finalize)
	r.Post("/{id}/cancelar", h.cancel)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateInput
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "corpo da requisição inválido")
		return
	}
	session, err := h.service.Create(r.Context(), shared.ActorFromContext(r.Context()), req)
	if err != nil {
		h.logger.Warn("create stock count", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, session)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	session, items, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"inventario": session, "itens": items})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageFromRequest(r)
	filters := ListFilters{
		Status: r.URL.Query().Get("status"),
		Type:   r.URL.Query().Get("tipo"),
	}
	items, total, err := h.service.List(r.Context(), perPage, (page-1)*perPage, filters)
	if err != nil {
		h.logger.Error("list stock counts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"dados":     items,
		"paginacao": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	var req AddItemInput
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "corpo da requisição inválido")
		return
	}
	item, err := h.service.AddItem(r.Context(), shared.ActorFromContext(r.Context()), id, req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

type editItemRequest struct {
	CountedQty decimal.Decimal `json:"quantidade_contada"`
}

func (h *Handler) editItem(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	itemID, ok := urlID(w, r, "itemID")
	if !ok {
		return
	}
	var req editItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "corpo da requisição inválido")
		return
	}
	item, err := h.service.EditItem(r.Context(), shared.ActorFromContext(r.Context()), id, itemID, req.CountedQty)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	itemID, ok := urlID(w, r, "itemID")
	if !ok {
		return
	}
	if err := h.service.RemoveItem(r.Context(), shared.ActorFromContext(r.Context()), id, itemID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) finalize(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	session, err := h.service.Finalize(r.Context(), shared.ActorFromContext(r.Context()), id, r.Header.Get("Idempotency-Key"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, session)
}

type cancelRequest struct {
	Reason string `json:"motivo"`
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	var req cancelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "corpo da requisição inválido")
		return
	}
	session, err := h.service.Cancel(r.Context(), shared.ActorFromContext(r.Context()), id, req.Reason)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, session)
}

func urlID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "id inválido")
		return 0, false
	}
	return id, true
}
