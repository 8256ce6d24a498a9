package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tramatex-erp/tramatex-erp/internal/auth"
	"github.com/tramatex-erp/tramatex-erp/internal/catalog"
	"github.com/tramatex-erp/tramatex-erp/internal/clients"
	"github.com/tramatex-erp/tramatex-erp/internal/observability"
	"github.com/tramatex-erp/tramatex-erp/internal/ocr"
	"github.com/tramatex-erp/tramatex-erp/internal/orders"
	"github.com/tramatex-erp/tramatex-erp/internal/quotation"
	"github.com/tramatex-erp/tramatex-erp/internal/rbac"
	"github.com/tramatex-erp/tramatex-erp/internal/replenishment"
	"github.com/tramatex-erp/tramatex-erp/internal/shared"
	"github.com/tramatex-erp/tramatex-erp/internal/stockcount"
	"github.com/tramatex-erp/tramatex-erp/internal/suppliers"
	"github.com/tramatex-erp/tramatex-erp/internal/users"
	"github.com/tramatex-erp/tramatex-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	RBAC           rbac.Middleware

	AuthHandler          *auth.Handler
	UsersHandler         *users.Handler
	CatalogHandler       *catalog.Handler
	SuppliersHandler     *suppliers.Handler
	ClientsHandler       *clients.Handler
	QuotationHandler     *quotation.Handler
	OrdersHandler        *orders.Handler
	StockCountHandler    *stockcount.Handler
	ReplenishmentHandler *replenishment.Handler
	OCRHandler           *ocr.Handler
	JobHandler           *jobs.Handler

	Pool    *pgxpool.Pool
	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	// Supplier responses come in through tokenized links, no session.
	// Tighter rate limit than the authenticated surface.
	r.Route("/public/cotacoes", func(r chi.Router) {
		r.Use(httprate.Limit(20, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		params.QuotationHandler.MountPublicRoutes(r)
	})

	r.Route("/usuarios", func(r chi.Router) {
		r.Use(params.RBAC.RequireAny(rbac.RoleAdmin))
		params.UsersHandler.MountRoutes(r)
	})

	backoffice := params.RBAC.RequireAny(rbac.RoleAdmin, rbac.RoleCDUser)

	r.Route("/catalogo", func(r chi.Router) {
		r.Use(backoffice)
		params.CatalogHandler.MountRoutes(r)
	})
	r.Route("/fornecedores", func(r chi.Router) {
		r.Use(backoffice)
		params.SuppliersHandler.MountRoutes(r)
	})
	r.Route("/clientes", func(r chi.Router) {
		r.Use(backoffice)
		params.ClientsHandler.MountRoutes(r)
	})
	r.Route("/cotacoes", func(r chi.Router) {
		r.Use(backoffice)
		params.QuotationHandler.MountRoutes(r)
	})
	r.Route("/inventarios", func(r chi.Router) {
		r.Use(backoffice)
		params.StockCountHandler.MountRoutes(r)
	})
	r.Route("/pedidos", func(r chi.Router) {
		r.Use(params.RBAC.RequireAny(rbac.RoleAdmin, rbac.RoleCDUser, rbac.RoleB2BClient))
		params.OrdersHandler.MountRoutes(r)
	})
	r.Route("/requisicoes", func(r chi.Router) {
		r.Use(params.RBAC.RequireAny(rbac.RoleAdmin, rbac.RoleCDUser, rbac.RoleStore))
		params.ReplenishmentHandler.MountRoutes(r)
	})
	if params.OCRHandler != nil {
		r.Route("/ocr", func(r chi.Router) {
			r.Use(backoffice)
			params.OCRHandler.MountRoutes(r)
		})
	}

	r.Route("/jobs", params.JobHandler.MountRoutes)
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
