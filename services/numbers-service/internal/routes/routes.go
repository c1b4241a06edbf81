package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vanityline/vanityline/pkg/logger"
	"github.com/vanityline/vanityline/pkg/middleware"
	"github.com/vanityline/vanityline/services/numbers-service/internal/handlers"
)

const requestTimeoutDuration = 30 * time.Second

type Handlers struct {
	Auth          *handlers.AuthHandler
	Phones        *handlers.PhoneHandler
	Subscriptions *handlers.SubscriptionHandler
	Payments      *handlers.PaymentHandler
	Notifications *handlers.NotificationHandler
	Admin         *handlers.AdminHandler
}

type Options struct {
	Auth         *middleware.AuthMiddleware
	RateLimiter  *middleware.RateLimiter
	AllowOrigins []string
	// Gatherer backs /metrics; nil serves the default registry.
	Gatherer       prometheus.Gatherer
	DisableMetrics bool
	Logger         logger.Logger
}

func SetupRoutes(router *gin.Engine, h Handlers, opts Options) {
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(opts.AllowOrigins)))
	if opts.Logger != nil {
		router.Use(middleware.RequestLogger(opts.Logger))
	}
	if opts.RateLimiter != nil {
		router.Use(opts.Auth.Identify(), opts.RateLimiter.Middleware())
	}
	router.Use(requestTimeout(requestTimeoutDuration))

	router.GET("/health", handlers.Health)
	if !opts.DisableMetrics {
		metricsHandler := promhttp.Handler()
		if opts.Gatherer != nil {
			metricsHandler = promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})
		}
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}

	authenticated := opts.Auth.Authenticate()
	adminOnly := opts.Auth.RequireRole("admin")

	api := router.Group("/api")
	{
		api.GET("/plans", h.Subscriptions.Plans)

		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
			auth.POST("/admin/login", h.Auth.AdminLogin)
			auth.POST("/logout", h.Auth.Logout)
			auth.GET("/me", authenticated, h.Auth.Me)
		}

		phones := api.Group("/phone-number")
		{
			phones.GET("", h.Phones.List)
			phones.GET("/my", authenticated, h.Phones.Mine)
			phones.GET("/:id", h.Phones.Get)
			phones.PUT("/:id/reserve", authenticated, h.Phones.Reserve)

			phones.POST("", authenticated, adminOnly, h.Phones.Create)
			phones.POST("/bulk", authenticated, adminOnly, h.Phones.BulkCreate)
			phones.PUT("/:id/status", authenticated, adminOnly, h.Phones.UpdateStatus)
			phones.DELETE("/:id", authenticated, adminOnly, h.Phones.Delete)
		}

		payments := api.Group("/payment")
		payments.Use(authenticated)
		{
			payments.POST("/create-payment-link", h.Payments.CreatePaymentLink)
			payments.GET("/verify-payment/:referenceId", h.Payments.VerifyPayment)
			payments.POST("/success/:referenceId", h.Payments.HandleSuccess)

			payments.GET("/transactions", adminOnly, h.Payments.ListTransactions)
			payments.PATCH("/transactions/:reference", adminOnly, h.Payments.ReviewTransaction)
		}

		subs := api.Group("/subscription")
		subs.Use(authenticated)
		{
			subs.POST("", h.Subscriptions.Create)
			subs.GET("/my", h.Subscriptions.Mine)
			subs.GET("/get-all", adminOnly, h.Subscriptions.GetAll)
			subs.GET("/:id", h.Subscriptions.Get)
			subs.POST("/renew/:id", h.Subscriptions.Renew)
			subs.POST("/cancel/:id", h.Subscriptions.Cancel)
			subs.PATCH("/auto-renew/:id", h.Subscriptions.ToggleAutoRenew)

			subs.PUT("/:id", adminOnly, h.Subscriptions.AdminUpdate)
			subs.DELETE("/:id", adminOnly, h.Subscriptions.Delete)
		}

		notifications := api.Group("/notifications")
		notifications.Use(authenticated)
		{
			notifications.GET("", h.Notifications.List)
			notifications.GET("/unread-count", h.Notifications.UnreadCount)
			notifications.PATCH("/read-all", h.Notifications.MarkAllRead)
			notifications.PATCH("/:id/read", h.Notifications.MarkRead)
			notifications.DELETE("/:id", h.Notifications.Delete)
		}

		admin := api.Group("/admin")
		admin.Use(authenticated, adminOnly)
		{
			admin.GET("/stats", h.Admin.Stats)
			admin.GET("/users", h.Admin.Users)
		}
	}

	router.NoRoute(notFound)
	router.NoMethod(methodNotAllowed)
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"success": false,
		"message": "Route not found",
		"path":    c.Request.URL.Path,
	})
}

func methodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, gin.H{
		"success": false,
		"message": "Method not allowed",
		"path":    c.Request.URL.Path,
	})
}

func requestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		if ctx.Err() == context.DeadlineExceeded && !c.Writer.Written() {
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, gin.H{
				"success": false,
				"message": "Request timeout",
			})
		}
	}
}
