// Package apitest starts the full HTTP stack over in-memory repositories for
// tests in other packages.
package apitest

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go-invoice/internal/config"
	"go-invoice/internal/handler"
	"go-invoice/internal/metrics"
	"go-invoice/internal/middleware"
	"go-invoice/internal/model"
	"go-invoice/internal/repository"
	"go-invoice/internal/router"
	"go-invoice/internal/service"
)

const Secret = "apitest-secret-0123456789abcdef"

// PDF is the body returned by the stub renderer.
var PDF = []byte("%PDF-1.7\n% apitest\n")

type Server struct {
	*httptest.Server
	Config  *config.Config
	Auth    *service.AuthService
	Memory  *repository.Memory
	Printer *StubRenderer
	Metrics *metrics.Metrics
}

// URL of the API root, including the /api prefix.
func (s *Server) API() string {
	return s.URL + "/api"
}

type Option func(cfg *config.Config)

func WithAccessTTL(d time.Duration) Option {
	return func(cfg *config.Config) { cfg.JWTAccessTTL = d }
}

func WithIdentityMode(mode string) Option {
	return func(cfg *config.Config) { cfg.IdentityMode = mode }
}

func WithRateLimits(general int, auth int) Option {
	return func(cfg *config.Config) {
		cfg.RateLimitRPM = general
		cfg.AuthRateLimitRPM = auth
	}
}

func Config() *config.Config {
	return &config.Config{
		ServerPort:       "0",
		RequestTimeout:   5 * time.Second,
		JWTSecret:        Secret,
		JWTAccessTTL:     15 * time.Minute,
		JWTRefreshTTL:    24 * time.Hour,
		IdentityMode:     config.IdentityModeClaims,
		StubMode:         true,
		CORSOrigins:      []string{"http://localhost:5173"},
		RateLimitRPM:     0,
		AuthRateLimitRPM: 10000,
		PDFTimeout:       5 * time.Second,
		GSTRate:          0.18,
		CompanyName:      "Test Co",
	}
}

// New serves the router on a loopback listener until the test ends. Rate
// limits are effectively off unless WithRateLimits is given.
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()

	cfg := Config()
	for _, opt := range opts {
		opt(cfg)
	}

	_, m := metrics.NewRegistry()
	mem := repository.NewMemory()
	users := mem.Users()
	auth := service.NewAuthService(users, mem.Tokens(), cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL).WithMetrics(m)
	printer := &StubRenderer{}
	invoices := service.NewInvoiceService(mem.Invoices(), printer, service.InvoiceSettings{
		GSTRate: cfg.GSTRate,
		From:    model.InvoiceParty{Name: cfg.CompanyName},
	}).WithMetrics(m)

	h := router.New(cfg, middleware.NewAuthMiddleware(auth, users, cfg.IdentityMode).WithMetrics(m), router.Handlers{
		Health:  handler.NewHealthHandler(nil, "memory"),
		Auth:    handler.NewAuthHandler(auth),
		Product: handler.NewProductHandler(service.NewProductService(mem.Products())),
		Invoice: handler.NewInvoiceHandler(invoices),
		Docs:    handler.NewDocsHandler(),
		Metrics: m,
	})

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return &Server{Server: srv, Config: cfg, Auth: auth, Memory: mem, Printer: printer, Metrics: m}
}

// StubRenderer records the HTML it is given and returns PDF, or the error
// set with Fail.
type StubRenderer struct {
	mu    sync.Mutex
	err   error
	pages [][]byte
}

func (r *StubRenderer) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *StubRenderer) Render(_ context.Context, html []byte) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.pages = append(r.pages, html)
	return PDF, nil
}

func (r *StubRenderer) Pages() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.pages...)
}
