package rbac

import (
	"log/slog"
	"net/http"

	"github.com/tramatex-erp/tramatex-erp/internal/platform/httpx"
	"github.com/tramatex-erp/tramatex-erp/internal/shared"
)

// Middleware wires role authorization helpers for HTTP handlers.
type Middleware struct {
	Logger *slog.Logger
}

// RequireAuth ensures a logged-in user regardless of role.
func (m Middleware) RequireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shared.ActorFromContext(r.Context()) == 0 {
				httpx.Problem(w, http.StatusUnauthorized, "Não autorizado", "sessão ausente ou expirada")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAny ensures the current user holds at least one of the roles.
// ADMIN always passes.
func (m Middleware) RequireAny(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if role = NormalizeRole(role); role != "" {
			allowed[role] = struct{}{}
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shared.ActorFromContext(r.Context()) == 0 {
				httpx.Problem(w, http.StatusUnauthorized, "Não autorizado", "sessão ausente ou expirada")
				return
			}
			role := NormalizeRole(shared.RoleFromContext(r.Context()))
			if role == RoleAdmin {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := allowed[role]; ok {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Warn("role denied", slog.String("path", r.URL.Path), slog.String("role", role))
			}
			httpx.Problem(w, http.StatusForbidden, "Acesso negado", "perfil sem permissão para esta operação")
		})
	}
}
