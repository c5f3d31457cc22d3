package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-invoice/internal/config"
	"go-invoice/internal/handler"
	"go-invoice/internal/metrics"
	"go-invoice/internal/middleware"
)

type Handlers struct {
	Health  *handler.HealthHandler
	Auth    *handler.AuthHandler
	Product *handler.ProductHandler
	Invoice *handler.InvoiceHandler
	Docs    *handler.DocsHandler
	// Metrics is optional; nil disables /metrics and request instrumentation.
	Metrics *metrics.Metrics
}

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, h Handlers) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(h.Metrics.Middleware)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/", h.Health.Root)
	r.Get("/health", h.Health.Health)
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())
	}
	if h.Docs != nil {
		r.Get("/openapi.yaml", h.Docs.OpenAPI)
		r.Get("/swagger", h.Docs.SwaggerUI)
	}

	r.Route("/api", func(api chi.Router) {
		api.Group(func(std chi.Router) {
			std.Use(middleware.Timeout(cfg.RequestTimeout))

			std.Route("/auth", func(auth chi.Router) {
				auth.Post("/register", h.Auth.Register)
				auth.Post("/login", h.Auth.Login)
				auth.Post("/refresh", h.Auth.Refresh)
				auth.Post("/logout", h.Auth.Logout)
				auth.With(authMiddleware.RequireAuth).Get("/me", h.Auth.Me)
			})

			std.Route("/products", func(products chi.Router) {
				products.Use(authMiddleware.RequireAuth)
				products.Get("/", h.Product.List)
				products.Post("/", h.Product.Create)
				products.Delete("/{id}", h.Product.Delete)
			})

			std.With(authMiddleware.RequireAuth).Get("/invoices", h.Invoice.List)
		})

		// PDF rendering has its own deadline and an unbuffered response.
		api.With(middleware.LongRunning(cfg.PDFTimeout+cfg.RequestTimeout), authMiddleware.RequireAuth).
			Post("/pdf/generate", h.Invoice.Generate)
	})

	return r
}
