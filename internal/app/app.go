// Package app wires the canteen API server together: storage, domain
// services, HTTP handlers and lifecycle.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/canteenhq/canteen/internal/domain/credit"
	"github.com/canteenhq/canteen/internal/domain/notify"
	"github.com/canteenhq/canteen/internal/domain/order"
	"github.com/canteenhq/canteen/internal/domain/pricing"
	"github.com/canteenhq/canteen/internal/domain/suggest"
	"github.com/canteenhq/canteen/internal/handler"
	"github.com/canteenhq/canteen/internal/storage/postgres"
	"github.com/canteenhq/canteen/pkg/health"
	"github.com/canteenhq/canteen/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	menuRepo := postgres.NewMenuRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	counterRepo := postgres.NewCounterRepository(pool)
	feedbackRepo := postgres.NewFeedbackRepository(pool)
	creditRepo := postgres.NewCreditRepository(pool)
	memberRepo := postgres.NewMemberRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)

	// Domain services.
	notifier := notify.NewLogNotifier(lg.Named("notify"))
	ledger := credit.NewLedger(creditRepo, notifier, credit.DefaultConfig())
	suggester := suggest.NewBounded(suggest.Static{}, cfg.Suggestions.Timeout)
	orderService := order.NewService(
		menuRepo,
		pricing.NewEngine(pricing.DefaultConfig()),
		ledger,
		orderRepo,
		counterRepo,
		feedbackRepo,
		notifier,
		suggester,
	)

	// HTTP routes: health endpoints + API on one server.
	h := handler.NewHandler(menuRepo, orderService, ledger, memberRepo, apikeyRepo, []byte(cfg.APIKeyPepper))

	router := chi.NewRouter()
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	router.Route("/api", h.Routes)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", handler.HeaderMemberID, handler.HeaderAPIKey},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:          cfg.RateLimit.Max,
				Window:       cfg.RateLimit.Window,
				MemberHeader: handler.HeaderMemberID,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("canteen-api", httpmiddleware.InstrumentConfig{
				TracerProvider: m.TracerProvider(),
				MeterProvider:  m.MeterProvider(),
			}),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
