package ocr

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tramatex-erp/tramatex-erp/internal/platform/httpx"
)

// Handler exposes the label extraction endpoint.
type Handler struct {
	logger *slog.Logger
	client *Client
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, client *Client) *Handler {
	return &Handler{logger: logger, client: client}
}

// MountRoutes registers OCR routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/etiquetas", h.extract)
}

type extractLabelRequest struct {
	ImageBase64 string `json:"imagem_base64"`
}

func (h *Handler) extract(w http.ResponseWriter, r *http.Request) {
	var req extractLabelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "corpo da requisição inválido")
		return
	}
	extraction, err := h.client.Extract(r.Context(), req.ImageBase64)
	if err != nil {
		h.logger.Warn("label extraction", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, extraction)
}
