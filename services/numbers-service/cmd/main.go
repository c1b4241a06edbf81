package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vanityline/vanityline/pkg/cache"
	"github.com/vanityline/vanityline/pkg/database"
	"github.com/vanityline/vanityline/pkg/logger"
	"github.com/vanityline/vanityline/pkg/messaging"
	"github.com/vanityline/vanityline/pkg/middleware"
	"github.com/vanityline/vanityline/services/numbers-service/internal/config"
	"github.com/vanityline/vanityline/services/numbers-service/internal/handlers"
	"github.com/vanityline/vanityline/services/numbers-service/internal/repository"
	"github.com/vanityline/vanityline/services/numbers-service/internal/routes"
	"github.com/vanityline/vanityline/services/numbers-service/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.LogLevel, cfg.App.LogFormat).WithField("service", cfg.App.Name)
	logger.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MongoDB
	db, err := database.NewMongoDB(database.Options{
		URI:          cfg.Database.URI,
		DBName:       cfg.Database.DBName,
		Timeout:      cfg.Database.Timeout,
		Transactions: cfg.Database.Transactions,
	})
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", logger.Err(err))
	}
	defer db.Close()

	repos := repository.New(db.GetDatabase())
	if err := repos.EnsureIndexes(ctx); err != nil {
		log.Fatal("Failed to create indexes", logger.Err(err))
	}

	// Redis is optional: without it payment lookups skip the cache and sweeps lock in-process.
	var (
		paymentCache service.PaymentCache = service.NopPaymentCache{}
		locker       service.Locker       = service.NewLocalLocker()
	)
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn("Redis unavailable, continuing without cache", logger.Err(err))
		} else {
			defer redisCache.Close()
			paymentCache = service.NewRedisPaymentCache(redisCache)
			locker = service.NewRedisLocker(redisCache)
		}
	}

	// Telegram admin alerts
	var alerter service.AlertSender = service.NewLogAlerter(log)
	if cfg.Telegram.BotToken != "" && cfg.Telegram.AdminChatID != 0 {
		tg, err := service.NewTelegramAlerter(cfg.Telegram.BotToken, cfg.Telegram.AdminChatID)
		if err != nil {
			log.Warn("Telegram bot unavailable, admin alerts go to the log", logger.Err(err))
		} else {
			alerter = tg
		}
	}

	// RabbitMQ carries lifecycle events to the admin alert consumer.
	var publisher messaging.Publisher = messaging.NopPublisher{}
	if cfg.RabbitMQ.Enabled {
		broker, err := messaging.NewRabbitMQ(cfg.RabbitMQ.URL, messaging.SetupSubscriptionTopology)
		if err != nil {
			log.Warn("RabbitMQ unavailable, lifecycle events will not be published", logger.Err(err))
		} else {
			defer broker.Close()
			publisher = broker
			consumer := service.NewAdminAlertConsumer(alerter, log)
			if err := consumer.Start(ctx, broker); err != nil {
				log.Fatal("Failed to start admin alert consumer", logger.Err(err))
			}
		}
	}

	// Email
	var sender service.EmailSender = service.NewLogSender(log)
	if cfg.Email.PostmarkServerToken != "" {
		sender = service.NewPostmarkSender(cfg.Email.PostmarkServerToken, cfg.Email.PostmarkAccountToken, cfg.Email.SenderEmail)
	}
	mailer := service.NewEmailService(sender, service.NewRenderer(), service.EmailConfig{
		SupportEmail: cfg.Email.SupportEmail,
		ClientURL:    cfg.App.ClientURL,
	})

	location, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		log.Fatal("Invalid scheduler timezone", logger.F("timezone", cfg.Scheduler.Timezone), logger.Err(err))
	}

	// Services
	metrics := service.NewMetrics(prometheus.DefaultRegisterer)
	auth := middleware.NewAuthMiddleware(cfg.JWT.Secret, cfg.JWT.ExpiresIn, cfg.JWT.CookieName)

	notifications := service.NewNotificationService(repos.Notifications, log)
	phones := service.NewPhoneService(repos.Numbers, repos.Users, metrics, log)
	lifecycle := service.NewLifecycleService(repos.Users, repos.Admins, repos.Subscriptions, repos.Numbers,
		notifications, mailer, publisher, metrics, log)
	subscriptions := service.NewSubscriptionService(repos.Subscriptions, repos.Numbers, phones, lifecycle, db,
		cfg.Plans, metrics, log)
	gateway := service.NewBudPayClient(cfg.BudPay.BaseURL, cfg.BudPay.SecretKey, cfg.BudPay.Timeout, metrics)
	payments := service.NewPaymentService(gateway, repos.Transactions, repos.PaymentLinks, phones, subscriptions,
		paymentCache, cfg.Plans, service.PaymentServiceConfig{
			ClientURL:       cfg.App.ClientURL,
			DefaultCurrency: cfg.BudPay.Currency,
		}, metrics, log)
	accounts := service.NewAuthService(repos.Users, repos.Admins, auth, log)
	stats := service.NewStatsService(repos.Numbers, repos.Subscriptions, repos.Transactions, location)

	if err := accounts.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		log.Fatal("Failed to seed admin account", logger.Err(err))
	}

	// Scheduler
	var scheduler *service.Scheduler
	if cfg.Scheduler.Enabled {
		scheduler = service.NewScheduler(service.SchedulerConfig{
			ExpirySpec:                 cfg.Scheduler.ExpirySpec,
			ReminderSpec:               cfg.Scheduler.ReminderSpec,
			ReservationSpec:            cfg.Scheduler.ReservationSpec,
			ReleaseExpiredReservations: cfg.Scheduler.ReleaseExpiredReservations,
			LockTTL:                    cfg.Scheduler.LockTTL,
			Location:                   location,
		}, repos.Subscriptions, lifecycle, phones, locker, metrics, log)
		if err := scheduler.Start(); err != nil {
			log.Fatal("Failed to start scheduler", logger.Err(err))
		}
	}

	// gRPC health
	grpcServer, healthServer := handlers.NewGRPCServer()
	go handlers.WatchHealth(ctx, healthServer, db, 15*time.Second, log)

	grpcAddr := fmt.Sprintf(":%d", cfg.App.GRPCPort)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		log.Fatal("Failed to listen on gRPC port", logger.F("addr", grpcAddr), logger.Err(err))
	}
	go func() {
		log.Info("Starting gRPC server", logger.F("addr", grpcAddr))
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("gRPC server stopped", logger.Err(err))
		}
	}()

	// HTTP
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		go limiter.Run(ctx)
	}

	opts := handlers.Options{
		Production:   cfg.App.IsProduction(),
		CookieSecure: cfg.JWT.CookieSecure,
		Logger:       log,
	}
	routes.SetupRoutes(router, routes.Handlers{
		Auth:          handlers.NewAuthHandler(accounts, auth, opts),
		Phones:        handlers.NewPhoneHandler(phones, opts),
		Subscriptions: handlers.NewSubscriptionHandler(subscriptions, opts),
		Payments:      handlers.NewPaymentHandler(payments, opts),
		Notifications: handlers.NewNotificationHandler(notifications, opts),
		Admin:         handlers.NewAdminHandler(stats, accounts, opts),
	}, routes.Options{
		Auth:           auth,
		RateLimiter:    limiter,
		AllowOrigins:   cfg.CORS.AllowOrigins,
		DisableMetrics: !cfg.Monitoring.MetricsEnabled,
		Logger:         log,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("Starting HTTP server", logger.F("addr", httpServer.Addr), logger.F("env", cfg.App.Env))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start HTTP server", logger.Err(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down servers...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	grpcServer.GracefulStop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced to shutdown", logger.Err(err))
	}
	cancel()

	log.Info("Servers exited")
}
