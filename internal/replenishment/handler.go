package replenishment

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tramatex-erp/tramatex-erp/internal/platform/httpx"
	"github.com/tramatex-erp/tramatex-erp/internal/shared"
)

// Handler manages replenishment endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers replenishment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Post("/{id}/decidir", h.decide)
	r.Post("/{id}/atender", h.fulfil)
	r.Post("/{id}/enviar", h.markShipped)
	r.Post("/{id}/cancelar", h.cancel)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateInput
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "corpo da requisição inválido")
		return
	}
	request, items, err := h.service.Create(r.Context(), shared.ActorFromContext(r.Context()), req)
	if err != nil {
		h.logger.Warn("create replenishment", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"requisicao": request, "itens": items})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	request, items, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"requisicao": request, "itens": items})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageFromRequest(r)
	storeID, _ := strconv.ParseInt(r.URL.Query().Get("loja_id"), 10, 64)
	filters := ListFilters{
		Status:  r.URL.Query().Get("status"),
		StoreID: storeID,
	}
	items, total, err := h.service.List(r.Context(), perPage, (page-1)*perPage, filters)
	if err != nil {
		h.logger.Error("list replenishments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"dados":     items,
		"paginacao": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var req DecisionInput
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "corpo da requisição inválido")
		return
	}
	request, err := h.service.Decide(r.Context(), shared.ActorFromContext(r.Context()), id, req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, request)
}

func (h *Handler) fulfil(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var req FulfilInput
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "corpo da requisição inválido")
		return
	}
	request, err := h.service.Fulfil(r.Context(), shared.ActorFromContext(r.Context()), id, req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, request)
}

func (h *Handler) markShipped(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	request, err := h.service.MarkShipped(r.Context(), shared.ActorFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, request)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	request, err := h.service.Cancel(r.Context(), shared.ActorFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, request)
}

func urlID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "id inválido")
		return 0, false
	}
	return id, true
}
