package suppliers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tramatex-erp/tramatex-erp/internal/platform/httpx"
	"github.com/tramatex-erp/tramatex-erp/internal/shared"
)

// Handler manages supplier endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers supplier routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
}

type request struct {
	Name     string `json:"nome"`
	CNPJ     string `json:"cnpj"`
	Email    string `json:"email" validate:"omitempty,email"`
	WhatsApp string `json:"whatsapp"`
	Contact  string `json:"contato"`
	Active   *bool  `json:"ativo"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	supplier, err := h.service.Create(r.Context(), Input{
		Name:     req.Name,
		CNPJ:     req.CNPJ,
		Email:    req.Email,
		WhatsApp: req.WhatsApp,
		Contact:  req.Contact,
	})
	if err != nil {
		h.logger.Warn("create supplier", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, supplier)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "id inválido")
		return
	}
	var req request
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	supplier, err := h.service.Update(r.Context(), id, Input{
		Name:     req.Name,
		CNPJ:     req.CNPJ,
		Email:    req.Email,
		WhatsApp: req.WhatsApp,
		Contact:  req.Contact,
		Active:   req.Active,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, supplier)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "id inválido")
		return
	}
	supplier, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, supplier)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageFromRequest(r)
	items, total, err := h.service.List(r.Context(), perPage, (page-1)*perPage, r.URL.Query().Get("busca"))
	if err != nil {
		h.logger.Error("list suppliers", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"dados":     items,
		"paginacao": shared.NewPagination(page, perPage, total),
	})
}
