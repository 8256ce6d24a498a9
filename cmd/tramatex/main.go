package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/tramatex-erp/tramatex-erp/internal/app"
	"github.com/tramatex-erp/tramatex-erp/internal/auth"
	"github.com/tramatex-erp/tramatex-erp/internal/catalog"
	"github.com/tramatex-erp/tramatex-erp/internal/clients"
	"github.com/tramatex-erp/tramatex-erp/internal/notify"
	"github.com/tramatex-erp/tramatex-erp/internal/observability"
	"github.com/tramatex-erp/tramatex-erp/internal/ocr"
	"github.com/tramatex-erp/tramatex-erp/internal/orders"
	"github.com/tramatex-erp/tramatex-erp/internal/platform/cache"
	"github.com/tramatex-erp/tramatex-erp/internal/platform/db"
	"github.com/tramatex-erp/tramatex-erp/internal/quotation"
	"github.com/tramatex-erp/tramatex-erp/internal/rbac"
	"github.com/tramatex-erp/tramatex-erp/internal/replenishment"
	"github.com/tramatex-erp/tramatex-erp/internal/shared"
	"github.com/tramatex-erp/tramatex-erp/internal/stockcount"
	"github.com/tramatex-erp/tramatex-erp/internal/suppliers"
	"github.com/tramatex-erp/tramatex-erp/internal/users"
	"github.com/tramatex-erp/tramatex-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "tramatex_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, auditLogger)
	usersHandler := users.NewHandler(logger, usersService)

	authService := auth.NewService(usersRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	stockLedger := catalog.NewStockLedger()
	catalogRepo := catalog.NewRepository(dbpool)
	catalogService := catalog.NewService(catalogRepo, stockLedger, dbpool, auditLogger)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	suppliersRepo := suppliers.NewRepository(dbpool)
	suppliersService := suppliers.NewService(suppliersRepo, auditLogger)
	suppliersHandler := suppliers.NewHandler(logger, suppliersService)

	clientsRepo := clients.NewRepository(dbpool)
	clientsService := clients.NewService(clientsRepo, auditLogger)
	clientsHandler := clients.NewHandler(logger, clientsService)

	quotationRepo := quotation.NewRepository(dbpool)
	quotationService := quotation.NewService(logger, quotationRepo, suppliersService, catalogService, auditLogger, cfg.PublicBaseURL)
	quotationHandler := quotation.NewHandler(logger, quotationService)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	orderNotifier := notify.NewOrderNotifier(logger, jobsClient, clientsService)

	ordersRepo := orders.NewRepository(dbpool)
	ordersService := orders.NewService(logger, ordersRepo, clientsService, catalogService, orderNotifier, idempotencyStore, auditLogger)
	ordersHandler := orders.NewHandler(logger, ordersService)

	stockCountRepo := stockcount.NewRepository(dbpool)
	stockCountService := stockcount.NewService(logger, stockCountRepo, stockLedger, dbpool, catalogService, idempotencyStore, auditLogger)
	stockCountHandler := stockcount.NewHandler(logger, stockCountService)

	replenishmentRepo := replenishment.NewRepository(dbpool)
	replenishmentService := replenishment.NewService(logger, replenishmentRepo, stockLedger, catalogService, auditLogger)
	replenishmentHandler := replenishment.NewHandler(logger, replenishmentService)

	var ocrHandler *ocr.Handler
	if cfg.OCRURL != "" {
		ocrHandler = ocr.NewHandler(logger, ocr.NewClient(cfg.OCRURL))
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	metrics := observability.NewMetrics()
	rbacMiddleware := rbac.Middleware{Logger: logger}

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		SessionManager:       sessionManager,
		RBAC:                 rbacMiddleware,
		AuthHandler:          authHandler,
		UsersHandler:         usersHandler,
		CatalogHandler:       catalogHandler,
		SuppliersHandler:     suppliersHandler,
		ClientsHandler:       clientsHandler,
		QuotationHandler:     quotationHandler,
		OrdersHandler:        ordersHandler,
		StockCountHandler:    stockCountHandler,
		ReplenishmentHandler: replenishmentHandler,
		OCRHandler:           ocrHandler,
		JobHandler:           jobHandler,
		Pool:                 dbpool,
		Metrics:              metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
