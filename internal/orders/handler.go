package orders

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tramatex-erp/tramatex-erp/internal/platform/httpx"
	"github.com/tramatex-erp/tramatex-erp/internal/shared"
)

// Handler manages order endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Post("/{id}/aprovar", h.approve)
	r.Post("/{id}/recusar", h.refuse)
	r.Post("/{id}/confirmar-pagamento", h.confirmPayment)
	r.Post("/{id}/separar", h.startSeparation)
	r.Post("/{id}/enviar", h.ship)
	r.Post("/{id}/entregar", h.deliver)
	r.Post("/{id}/cancelar", h.cancel)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateInput
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "corpo da requisição inválido")
		return
	}
	order, items, err := h.service.Create(r.Context(), shared.ActorFromContext(r.Context()), req)
	if err != nil {
		h.logger.Warn("create order", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"pedido": order, "itens": items})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	order, items, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"pedido": order, "itens": items})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageFromRequest(r)
	clientID, _ := strconv.ParseInt(r.URL.Query().Get("cliente_id"), 10, 64)
	filters := ListFilters{
		Status:   r.URL.Query().Get("status"),
		ClientID: clientID,
		Search:   r.URL.Query().Get("busca"),
	}
	items, total, err := h.service.List(r.Context(), perPage, (page-1)*perPage, filters)
	if err != nil {
		h.logger.Error("list orders", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"dados":     items,
		"paginacao": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.simpleTransition(w, r, h.service.Approve)
}

func (h *Handler) startSeparation(w http.ResponseWriter, r *http.Request) {
	h.simpleTransition(w, r, h.service.StartSeparation)
}

func (h *Handler) deliver(w http.ResponseWriter, r *http.Request) {
	h.simpleTransition(w, r, h.service.Deliver)
}

func (h *Handler) simpleTransition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, actorID, id int64) (Order, error)) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	order, err := fn(r.Context(), shared.ActorFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

type justificationRequest struct {
	Justification string `json:"justificativa"`
}

func (h *Handler) refuse(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var req justificationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "corpo da requisição inválido")
		return
	}
	order, err := h.service.Refuse(r.Context(), shared.ActorFromContext(r.Context()), id, req.Justification)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var req justificationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "corpo da requisição inválido")
		return
	}
	order, err := h.service.Cancel(r.Context(), shared.ActorFromContext(r.Context()), id, req.Justification)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

type confirmPaymentRequest struct {
	IdempotencyKey string `json:"chave_idempotencia"`
}

func (h *Handler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var req confirmPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "corpo da requisição inválido")
		return
	}
	key := req.IdempotencyKey
	if key == "" {
		key = r.Header.Get("Idempotency-Key")
	}
	order, err := h.service.ConfirmPayment(r.Context(), shared.ActorFromContext(r.Context()), id, key)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

type shipRequest struct {
	TrackingCode string `json:"codigo_rastreio"`
	Carrier      string `json:"transportadora"`
}

func (h *Handler) ship(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var req shipRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "corpo da requisição inválido")
		return
	}
	order, err := h.service.Ship(r.Context(), shared.ActorFromContext(r.Context()), id, req.TrackingCode, req.Carrier)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func urlID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "id inválido")
		return 0, false
	}
	return id, true
}
