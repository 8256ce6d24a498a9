package quotation

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tramatex-erp/tramatex-erp/internal/platform/httpx"
	"github.com/tramatex-erp/tramatex-erp/internal/shared"
)

// Handler manages quotation endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the authenticated quotation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.open)
	r.Get("/{id}", h.get)
	r.Get("/{id}/links", h.links)
	r.Get("/{id}/comparativo", h.compare)
	r.Post("/{id}/fechar", h.close)
	r.Post("/{id}/aprovar", h.approve)
	r.Post("/{id}/cancelar", h.cancel)
}

// MountPublicRoutes registers the anonymous supplier-facing routes,
// addressed by response token instead of session.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Get("/{token}", h.resolveToken)
	r.Post("/{token}/respostas", h.respond)
}

type openRequest struct {
	Deadline time.Time   `json:"prazo_resposta"`
	Notes    string      `json:"observacoes"`
	Items    []ItemInput `json:"itens"`
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "corpo da requisição inválido")
		return
	}
	actorID := shared.ActorFromContext(r.Context())
	result, err := h.service.Open(r.Context(), actorID, OpenInput{
		Deadline: req.Deadline,
		Notes:    req.Notes,
		Items:    req.Items,
	})
	if err != nil {
		h.logger.Warn("open quotation", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	q, items, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"cotacao": q, "itens": items})
}

func (h *Handler) links(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	links, err := h.service.Links(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"dados": links})
}

func (h *Handler) compare(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	view, err := h.service.Compare(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	q, err := h.service.Close(r.Context(), shared.ActorFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

type approveRequest struct {
	SupplierID int64 `json:"fornecedor_id"`
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var req approveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "corpo da requisição inválido")
		return
	}
	if req.SupplierID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "informe o fornecedor vencedor")
		return
	}
	q, err := h.service.Approve(r.Context(), shared.ActorFromContext(r.Context()), id, req.SupplierID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	q, err := h.service.Cancel(r.Context(), shared.ActorFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageFromRequest(r)
	filters := ListFilters{
		Status: r.URL.Query().Get("status"),
		Search: r.URL.Query().Get("busca"),
	}
	items, total, err := h.service.List(r.Context(), perPage, (page-1)*perPage, filters)
	if err != nil {
		h.logger.Error("list quotations", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"dados":     items,
		"paginacao": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) resolveToken(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.ResolveToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

type respondRequest struct {
	Answers []ResponseItemInput `json:"respostas"`
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request) {
	var req respondRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "corpo da requisição inválido")
		return
	}
	if err := h.service.RecordSupplierResponse(r.Context(), chi.URLParam(r, "token"), req.Answers); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"mensagem": "respostas registradas com sucesso"})
}

func urlID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "id inválido")
		return 0, false
	}
	return id, true
}
