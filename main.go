package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Eursukkul/studio-ledger/config"
	"github.com/Eursukkul/studio-ledger/internal/consumer"
	"github.com/Eursukkul/studio-ledger/internal/handler"
	"github.com/Eursukkul/studio-ledger/internal/middleware"
	"github.com/Eursukkul/studio-ledger/internal/payment"
	"github.com/Eursukkul/studio-ledger/internal/repository"
	"github.com/Eursukkul/studio-ledger/internal/service"
	"github.com/Eursukkul/studio-ledger/internal/worker"
	"github.com/Eursukkul/studio-ledger/pkg/database"
	"github.com/Eursukkul/studio-ledger/pkg/idempotency"
	"github.com/Eursukkul/studio-ledger/pkg/rabbitmq"
	"github.com/Eursukkul/studio-ledger/pkg/redislock"
	"github.com/labstack/echo/v4"
	echoMw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)

	cfg := config.Load()
	if lvl, err := logrus.ParseLevel(cfg.Server.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db := database.NewPostgresDB(cfg.DSN())

	// Redis is optional; without it cart locks are process-local
	var rdb *redis.Client
	var locker service.SessionLocker = redislock.NewLocalLocker()
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer rdb.Close()
		locker = redislock.NewRedisLocker(rdb, cfg.Redis.LockTTL)
	}

	publisher, err := rabbitmq.NewPublisher(cfg.RabbitMQ.URL)
	if err != nil {
		log.Fatalf("failed to connect to RabbitMQ: %v", err)
	}
	defer publisher.Close()

	journal, err := idempotency.Open(cfg.Idempotency.Path)
	if err != nil {
		log.Fatalf("failed to open payment journal: %v", err)
	}
	defer journal.Close()

	var providers []payment.Provider
	if cfg.PayWay.Enabled {
		providers = append(providers, payment.NewPayWay(cfg.PayWay))
	}
	if cfg.Midtrans.Enabled {
		providers = append(providers, payment.NewMidtrans(cfg.Midtrans))
	}
	registry := payment.NewRegistry(providers...)
	log.WithField("providers", registry.Names()).Info("payment providers enabled")

	// Repositories
	tx := repository.NewTransactor(db)
	classRepo := repository.NewClassRepository(db)
	purchaseRepo := repository.NewPurchaseRepository(db)
	resRepo := repository.NewReservationRepository(db)
	packageRepo := repository.NewPackageRepository(db)
	cartRepo := repository.NewCartRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	discountRepo := repository.NewDiscountRepository(db)
	refundRepo := repository.NewRefundRepository(db)
	userRepo := repository.NewUserRepository(db)

	// Services
	settingsSvc := service.NewSettingsService(repository.NewSettingsRepository(db), service.StudioSettings{
		CancellationCutoffHours: cfg.Studio.CancellationCutoffHours,
		DefaultClassCapacity:    cfg.Studio.DefaultClassCapacity,
		RefundWindowDays:        cfg.Studio.RefundWindowDays,
		RefundAllowPartial:      cfg.Studio.RefundAllowPartial,
	})
	ledger := service.NewLedger(purchaseRepo, packageRepo)
	discountSvc := service.NewDiscountService(discountRepo)
	reservationSvc := service.NewReservationService(tx, classRepo, purchaseRepo, resRepo, ledger, settingsSvc, publisher)
	cartSvc := service.NewCartService(tx, cartRepo, packageRepo, locker)
	orderSvc := service.NewOrderService(tx, cartRepo, orderRepo, discountRepo, discountSvc, ledger, registry, locker, publisher)
	refundSvc := service.NewRefundService(tx, refundRepo, purchaseRepo, orderRepo, settingsSvc, publisher)
	attendanceSvc := service.NewAttendanceService(tx, userRepo, classRepo, resRepo)
	catalogSvc := service.NewCatalogService(
		tx,
		repository.NewDisciplineRepository(db),
		repository.NewInstructorRepository(db),
		packageRepo,
		classRepo,
		resRepo,
		ledger,
		settingsSvc,
		publisher,
		cfg.Studio.MaxRecurringWeeks,
	)

	// RabbitMQ consumer: user sync, provider refunds, notifications
	mqConsumer, err := rabbitmq.NewConsumer(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, consumer.RoutingKeys...)
	if err != nil {
		log.Fatalf("failed to connect to RabbitMQ: %v", err)
	}
	defer mqConsumer.Close()

	msgs, err := mqConsumer.Consume()
	if err != nil {
		log.Fatalf("failed to start consuming: %v", err)
	}
	consumer.NewStudioConsumer(userRepo, registry, consumer.LogNotifier{Location: cfg.Location()}).Start(ctx, msgs)

	go worker.NewMaintenanceWorker(ledger, orderSvc, cfg.Worker.Interval, cfg.Worker.PendingOrderTTL).Start(ctx)

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.ErrorHandler
	e.Validator = middleware.NewRequestValidator()
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(echoMw.Recover())
	e.Use(middleware.RateLimit(cfg.RateLimit, rdb))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "service": "studio-ledger"})
	})

	guards := handler.NewGuards(cfg.JWT.Secret)
	handler.NewReservationHandler(reservationSvc, ledger).RegisterRoutes(e, guards)
	handler.NewCartHandler(cartSvc).RegisterRoutes(e, guards)
	handler.NewOrderHandler(orderSvc).RegisterRoutes(e, guards)
	handler.NewPaymentHandler(orderSvc, registry, journal).RegisterRoutes(e)
	handler.NewDiscountHandler(discountSvc).RegisterRoutes(e, guards)
	handler.NewRefundHandler(refundSvc).RegisterRoutes(e, guards)
	handler.NewAttendanceHandler(attendanceSvc).RegisterRoutes(e, guards)
	handler.NewCatalogHandler(catalogSvc).RegisterRoutes(e, guards)
	handler.NewSettingsHandler(settingsSvc).RegisterRoutes(e, guards)

	go func() {
		log.Infof("Studio ledger starting on :%s", cfg.Server.Port)
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}
