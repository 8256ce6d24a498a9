package auth

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/tramatex-erp/tramatex-erp/internal/platform/httpx"
	"github.com/tramatex-erp/tramatex-erp/internal/shared"
)

// Handler manages authentication endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	sessions *shared.SessionManager
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager) *Handler {
	return &Handler{logger: logger, service: service, sessions: sessions}
}

// MountRoutes registers auth routes. Login is rate limited per IP to slow
// down credential stuffing.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		r.Post("/login", h.login)
	})
	r.Post("/logout", h.logout)
	r.Get("/me", h.me)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"senha"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Dados inválidos", "corpo da requisição inválido")
		return
	}
	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Warn("login failed", slog.String("email", req.Email))
		httpx.RespondError(w, err)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.Problem(w, http.StatusInternalServerError, "Erro interno", "")
		return
	}
	sess.SetUser(strconv.FormatInt(user.ID, 10), user.Role)
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		h.sessions.Destroy(sess)
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"mensagem": "sessão encerrada"})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	actorID := shared.ActorFromContext(r.Context())
	if actorID == 0 {
		httpx.Problem(w, http.StatusUnauthorized, "Não autorizado", "sessão ausente ou expirada")
		return
	}
	user, err := h.service.CurrentUser(r.Context(), actorID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}
