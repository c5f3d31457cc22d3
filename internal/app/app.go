package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-invoice/internal/config"
	"go-invoice/internal/database"
	"go-invoice/internal/handler"
	"go-invoice/internal/metrics"
	"go-invoice/internal/middleware"
	"go-invoice/internal/model"
	"go-invoice/internal/repository"
	"go-invoice/internal/router"
	"go-invoice/internal/service"
)

const tokenPurgeInterval = time.Hour

type App struct {
	server       *http.Server
	cleanupFuncs []func()
}

type stores struct {
	users    repository.UserStore
	tokens   repository.RefreshTokenStore
	products repository.ProductStore
	invoices repository.InvoiceStore
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return NewWithConfig(cfg)
}

func NewWithConfig(cfg *config.Config) (*App, error) {
	var (
		db      *database.DB
		repos   stores
		cleanup []func()
		mode    = "postgres"
	)

	if cfg.StubMode {
		slog.Warn("STUB_MODE enabled; data is kept in memory and lost on restart")
		mem := repository.NewMemory()
		repos = stores{users: mem.Users(), tokens: mem.Tokens(), products: mem.Products(), invoices: mem.Invoices()}
		mode = "memory"
	} else {
		slog.Info("connecting to PostgreSQL")
		var err error
		db, err = database.New(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		if err := db.EnsureSchema(context.Background()); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ensure database schema: %w", err)
		}

		pool := db.Pool
		repos = stores{
			users:    repository.NewUserRepository(pool),
			tokens:   repository.NewTokenRepository(pool),
			products: repository.NewProductRepository(pool),
			invoices: repository.NewInvoiceRepository(pool),
		}
		cleanup = append(cleanup, db.Close)
		slog.Info("database ready")
	}

	var appMetrics *metrics.Metrics
	if cfg.MetricsEnabled {
		_, appMetrics = metrics.NewRegistry()
	}

	authService := service.NewAuthService(repos.users, repos.tokens, cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL).
		WithMetrics(appMetrics)
	authMiddleware := middleware.NewAuthMiddleware(authService, repos.users, cfg.IdentityMode).
		WithMetrics(appMetrics)
	productService := service.NewProductService(repos.products)
	invoiceService := service.NewInvoiceService(repos.invoices, service.NewBrowserRenderer(cfg.PDFBrowserPath, cfg.PDFTimeout), service.InvoiceSettings{
		GSTRate: cfg.GSTRate,
		From:    model.InvoiceParty{Name: cfg.CompanyName, Address: cfg.CompanyAddress},
		To:      model.InvoiceParty{Name: cfg.ClientName, Address: cfg.ClientAddress},
	}).WithMetrics(appMetrics)

	var health *handler.HealthHandler
	if db != nil {
		health = handler.NewHealthHandler(db, mode)
	} else {
		health = handler.NewHealthHandler(nil, mode)
	}

	appRouter := router.New(cfg, authMiddleware, router.Handlers{
		Health:  health,
		Auth:    handler.NewAuthHandler(authService),
		Product: handler.NewProductHandler(productService),
		Invoice: handler.NewInvoiceHandler(invoiceService),
		Docs:    handler.NewDocsHandler(),
		Metrics: appMetrics,
	})

	purgeCtx, purgeCancel := context.WithCancel(context.Background())
	go purgeTokens(purgeCtx, authService)
	cleanup = append(cleanup, purgeCancel)

	slog.Info("application configured",
		"storage", mode,
		"identity_mode", cfg.IdentityMode,
		"metrics", cfg.MetricsEnabled,
		"access_ttl", cfg.JWTAccessTTL.String(),
		"refresh_ttl", cfg.JWTRefreshTTL.String(),
	)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadTimeout,
		ReadTimeout:       cfg.ServerReadTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{server: server, cleanupFuncs: cleanup}, nil
}

// Handler exposes the routed handler for in-process tests.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	a.Close()
	slog.Info("server stopped")
	return nil
}

func (a *App) Close() {
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i]()
	}
	a.cleanupFuncs = nil
}

func purgeTokens(ctx context.Context, auth *service.AuthService) {
	ticker := time.NewTicker(tokenPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := auth.PurgeExpiredTokens(ctx)
			if err != nil {
				slog.Warn("refresh token purge failed", "error", err)
				continue
			}
			if removed > 0 {
				slog.Info("purged refresh tokens", "removed", removed)
			}
		}
	}
}
