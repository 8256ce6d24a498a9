package users

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tramatex-erp/tramatex-erp/internal/platform/httpx"
	"github.com/tramatex-erp/tramatex-erp/internal/shared"
)

// Handler manages user administration endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers user routes. The router mounts this group behind
// the ADMIN role guard.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Post("/{id}/senha", h.changePassword)
	r.Post("/{id}/desativar", h.deactivate)
	r.Post("/{id}/ativar", h.activate)
}

type createRequest struct {
	Name     string `json:"nome"`
	Email    string `json:"email"`
	Password string `json:"senha"`
	Role     string `json:"perfil"`
	StoreID  *int64 `json:"loja_id"`
	ClientID *int64 `json:"cliente_id"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "corpo da requisição inválido")
		return
	}
	user, err := h.service.Create(r.Context(), CreateInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		StoreID:  req.StoreID,
		ClientID: req.ClientID,
	})
	if err != nil {
		h.logger.Warn("create user", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageFromRequest(r)
	filters := ListFilters{
		Role:   r.URL.Query().Get("perfil"),
		Search: r.URL.Query().Get("busca"),
	}
	items, total, err := h.service.List(r.Context(), perPage, (page-1)*perPage, filters)
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"dados":     items,
		"paginacao": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "id inválido")
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

type updateRequest struct {
	Name     string `json:"nome"`
	Email    string `json:"email"`
	Role     string `json:"perfil"`
	StoreID  *int64 `json:"loja_id"`
	ClientID *int64 `json:"cliente_id"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "id inválido")
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "corpo da requisição inválido")
		return
	}
	user, err := h.service.Update(r.Context(), id, UpdateInput{
		Name:     req.Name,
		Email:    req.Email,
		Role:     req.Role,
		StoreID:  req.StoreID,
		ClientID: req.ClientID,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "id inválido")
		return
	}
	var req struct {
		Password string `json:"senha"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "corpo da requisição inválido")
		return
	}
	if err := h.service.ChangePassword(r.Context(), id, req.Password); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"mensagem": "senha atualizada"})
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "id inválido")
		return
	}
	if err := h.service.Deactivate(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"mensagem": "usuário desativado"})
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "id inválido")
		return
	}
	if err := h.service.Activate(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"mensagem": "usuário ativado"})
}
