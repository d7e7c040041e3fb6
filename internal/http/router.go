package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/redmonkez12/go-csp/internal/auth"
	"github.com/redmonkez12/go-csp/internal/config"
	"github.com/redmonkez12/go-csp/internal/csp"
	"github.com/redmonkez12/go-csp/internal/httputil"
	"github.com/redmonkez12/go-csp/internal/logging"
	"github.com/redmonkez12/go-csp/internal/metrics"
	"github.com/redmonkez12/go-csp/internal/report"
)

// RouterDeps groups the collaborators wired into the router.
type RouterDeps struct {
	Parser  csp.UserAgentParser
	Reports *report.Handler
	// Auth guards the operator endpoints; nil disables them.
	Auth    *auth.Middleware
	Metrics *metrics.Metrics
	Logger  *logging.Logger
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	// CORS - must be first
	if len(cfg.Server.TrustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.Server.TrustedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(deps.Logger))
	r.Use(SecurityHeaders)
	r.Use(middleware.Compress(5))

	r.Get("/health", handleHealth)
	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	// Browsers post reports without the policy headers applying to them.
	r.Post("/csp/report", deps.Reports.Submit)

	r.Group(func(r chi.Router) {
		r.Use(ContentSecurityPolicy(cfg.CSP, deps.Parser, deps.Metrics))
		r.Get("/", handleIndex)
	})

	if deps.Auth != nil {
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(auth.ScopeReadReports))
			r.Get("/csp/reports", deps.Reports.List)
		})
	}

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}
