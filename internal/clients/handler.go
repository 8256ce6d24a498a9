package clients

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tramatex-erp/tramatex-erp/internal/platform/httpx"
	"github.com/tramatex-erp/tramatex-erp/internal/shared"
)

// Handler manages client endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers client routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
}

type request struct {
	CompanyName string `json:"razao_social"`
	TradeName   string `json:"nome_fantasia"`
	CNPJ        string `json:"cnpj"`
	Email       string `json:"email" validate:"omitempty,email"`
	WhatsApp    string `json:"whatsapp"`
	Address     string `json:"endereco"`
	Active      *bool  `json:"ativo"`
}

func (r request) input() Input {
	return Input{
		CompanyName: r.CompanyName,
		TradeName:   r.TradeName,
		CNPJ:        r.CNPJ,
		Email:       r.Email,
		WhatsApp:    r.WhatsApp,
		Address:     r.Address,
		Active:      r.Active,
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	client, err := h.service.Create(r.Context(), req.input())
	if err != nil {
		h.logger.Warn("create client", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, client)
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
	client, err := h.service.Update(r.Context(), id, req.input())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, client)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "id inválido")
		return
	}
	client, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, client)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageFromRequest(r)
	items, total, err := h.service.List(r.Context(), perPage, (page-1)*perPage, r.URL.Query().Get("busca"))
	if err != nil {
		h.logger.Error("list clients", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"dados":     items,
		"paginacao": shared.NewPagination(page, perPage, total),
	})
}
