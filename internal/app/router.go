package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/defter-erp/defter/internal/auth"
	"github.com/defter-erp/defter/internal/customers"
	"github.com/defter-erp/defter/internal/dashboard"
	"github.com/defter-erp/defter/internal/dispatch"
	"github.com/defter-erp/defter/internal/finance"
	"github.com/defter-erp/defter/internal/invoices"
	"github.com/defter-erp/defter/internal/stock"
	"github.com/defter-erp/defter/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Sessions         *auth.SessionStore
	AuthHandler      *auth.Handler
	CustomersHandler *customers.Handler
	StockHandler     *stock.Handler
	FinanceHandler   *finance.Handler
	InvoicesHandler  *invoices.Handler
	DispatchHandler  *dispatch.Handler
	UsersHandler     *users.Handler
	DashboardHandler *dashboard.Handler
}

// NewRouter constructs the chi.Router.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
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

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.RequireSession(params.Sessions))

		params.CustomersHandler.MountRoutes(r)
		params.StockHandler.MountRoutes(r)
		params.FinanceHandler.MountRoutes(r)
		params.InvoicesHandler.MountRoutes(r)
		params.DispatchHandler.MountRoutes(r)
		params.UsersHandler.MountRoutes(r)
		params.DashboardHandler.MountRoutes(r)
	})

	return r
}
