package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"gym-backend/internal/audit"
	"gym-backend/internal/auth"
	"gym-backend/internal/cache"
	"gym-backend/internal/config"
	"gym-backend/internal/dashboard"
	"gym-backend/internal/database"
	"gym-backend/internal/events"
	"gym-backend/internal/httpx"
	"gym-backend/internal/inventory"
	"gym-backend/internal/jobs"
	"gym-backend/internal/logger"
	"gym-backend/internal/models"
	"gym-backend/internal/notices"
	"gym-backend/internal/sales"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.Init(cfg.LogMode, cfg.LogFile)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	decimal.MarshalJSONWithoutQuotes = true

	database.Init(cfg)
	defer database.Close()

	var opts []sales.Option
	if cfg.RedisAddr != "" {
		rdb := cache.New(cfg.RedisAddr)
		defer rdb.Close()
		opts = append(opts, sales.WithIdempotency(cache.NewIdempotencyStore(rdb, cfg.IdempotencyTTL)))
		zap.S().Infow("idempotency cache enabled", "addr", cfg.RedisAddr)
	}
	var kafkaPub *events.KafkaPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPub = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, 1024)
		kafkaPub.Start()
		opts = append(opts, sales.WithPublisher(kafkaPub))
		zap.S().Infow("sale events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	salesHandler := &sales.Handler{
		Recorder: sales.NewRecorder(sales.NewGormStore(database.DB), cfg.DefaultLocation, opts...),
		Audit:    audit.NewLogger(database.DB),
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: httpx.ErrorHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.Middleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + sales.IdempotencyHeader,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	api := app.Group("/api")

	// Public
	api.Post("/users", auth.OptionalJWT(cfg), auth.RegisterHandler(cfg))
	api.Post("/users/login", auth.LoginHandler(cfg))
	api.Get("/notices", notices.ListNoticesHandler())

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))

	protected.Get("/users/profile", auth.ProfileHandler())
	protected.Get("/users/all", auth.RequireRole(models.RoleAdmin), auth.ListUsersHandler())

	protected.Get("/products", inventory.ListProductsHandler())
	protected.Get("/products/:id", inventory.GetProductHandler())
	protected.Get("/locations", inventory.ListLocationsHandler(cfg))

	protected.Get("/dashboard/sales-chart", dashboard.SalesChartHandler())

	salesHandler.Register(protected)

	protected.Post("/notices", notices.CreateNoticeHandler())
	protected.Get("/notices/:id", notices.GetNoticeHandler())
	protected.Put("/notices/:id", notices.UpdateNoticeHandler())
	protected.Put("/notices/:id/toggle", notices.ToggleNoticeHandler())
	protected.Delete("/notices/:id", notices.DeleteNoticeHandler())

	// Admin
	adminRoutes := protected.Group("/admin")
	adminRoutes.Use(auth.RequireRole(models.RoleAdmin))

	adminRoutes.Post("/products", inventory.CreateProductHandler())
	adminRoutes.Put("/products/:id", inventory.UpdateProductHandler())
	adminRoutes.Delete("/products/:id", inventory.DeleteProductHandler())
	adminRoutes.Put("/products/:id/stock", inventory.SetStockHandler())

	adminRoutes.Get("/audit-logs", audit.ListAuditLogsHandler())

	sched, err := jobs.Start(database.DB, cfg.StockWatchSpec, cfg.Timezone)
	if err != nil {
		zap.S().Fatalf("start jobs: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zap.S().Infow("server listening", "port", cfg.HTTPPort)
		return app.Listen(":" + cfg.HTTPPort)
	})
	g.Go(func() error {
		<-gctx.Done()
		zap.S().Info("shutting down")
		<-sched.Stop().Done()
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	if err := g.Wait(); err != nil {
		zap.S().Errorw("server stopped", "error", err)
	}
	if kafkaPub != nil {
		kafkaPub.Close()
	}
}
