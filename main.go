package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"instant-win-system/config"
	"instant-win-system/handlers"
	"instant-win-system/middleware"
	"instant-win-system/services"
	"instant-win-system/store"
	"instant-win-system/utils"
	"instant-win-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("❌ invalid configuration")
	}
	if err := config.SetupLogger(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatal().Err(err).Msg("❌ invalid logger configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := openStore(cfg)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := services.Options{
		MaxTxAttempts:  cfg.MaxTxRetries,
		TxRetryBackoff: cfg.TxRetryBackoff,
		MaxBatchDraws:  cfg.MaxBatchDraws,
		Metrics:        services.NewMetrics(reg),
	}
	svc := &handlers.Services{
		Campaigns: services.NewCampaignService(st, opts),
		Draws:     services.NewDrawService(st, opts),
		Claims:    services.NewClaimService(st, opts),
		Requests:  services.NewRequestService(st, opts),
		Coupons:   services.NewCouponService(st, opts),
		Records:   services.NewRecordService(st, opts),
		Chances:   services.NewChanceService(st, opts),
	}

	if r2 := cfg.R2.Client(); r2.Enabled() {
		client, err := utils.NewR2Client(ctx, r2)
		if err != nil {
			log.Fatal().Err(err).Msg("❌ failed to initialize R2 client")
		}
		svc.URLPool = client
		log.Info().Str("bucket", r2.Bucket).Msg("✅ R2 URL pool imports enabled")
	}

	drawLimiter := middleware.NewRateLimiter(cfg.DrawRateLimit, cfg.DrawRateBurst)

	sched, err := svc.Requests.StartMaintenanceScheduler(ctx, services.MaintenanceConfig{
		PendingRequestTTL: cfg.PendingRequestTTL,
		Limiter:           drawLimiter,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("❌ failed to start maintenance scheduler")
	}

	if cfg.ConfigSyncURL != "" {
		syncClient := workers.NewCampaignSyncClient(cfg.ConfigSyncURL, cfg.ConfigServiceToken, svc.Campaigns)
		go workers.PollCampaigns(ctx, syncClient, cfg.ConfigSyncInterval)
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 4 * 1024 * 1024,
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed, probes excepted
	app.Use(middleware.GatewayAuthMiddleware(cfg.GatewayServiceToken, "/healthz", "/metrics"))

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles, Idempotency-Key",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID, Retry-After",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	handlers.SetupOpsRoutes(app, st, reg)
	handlers.SetupRoutes(app, svc, drawLimiter.Handler())

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("Server error")
		}
	}()

	log.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Msg("✅ Server running")
	log.Info().Strs("origins", cfg.AllowedOrigins).Msg("✅ CORS configured")

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	if err := sched.Shutdown(); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown failed")
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}

func openStore(cfg *config.Config) store.Store {
	if cfg.StoreDriver == config.StoreDriverMemory {
		log.Warn().Msg("⚠️ Using in-memory store; data is lost on restart")
		return store.NewMemoryStore()
	}

	db, err := store.OpenPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ failed to connect to database")
	}
	gs := store.NewGormStore(db)
	if err := gs.AutoMigrate(); err != nil {
		log.Fatal().Err(err).Msg("❌ failed to migrate database")
	}
	return gs
}
