package httpx

import (
	"errors"
	"net/http"

	"github.com/tramatex-erp/tramatex-erp/internal/shared"
)

// RespondError maps domain error kinds to HTTP responses using RFC7807.
// Validation → 400, not found → 404, state conflicts → 409, downstream
// failures → 502; anything unrecognised collapses into a 500 without
// leaking internals.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Dados inválidos", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Não encontrado", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrConflict), errors.Is(err, shared.ErrIdempotencyConflict):
		Problem(w, http.StatusConflict, "Conflito", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrExternal):
		Problem(w, http.StatusBadGateway, "Serviço externo indisponível", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Não autorizado", shared.UserSafeMessage(err))
	default:
		Problem(w, http.StatusInternalServerError, "Erro interno", "")
	}
}
