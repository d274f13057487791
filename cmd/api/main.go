package main

// @title PartnerDB API
// @version 1.0
// @description Partner referral, commission and payout ledger.

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/jordanlanch/partnerdb/config"
	"github.com/jordanlanch/partnerdb/pkg/admin"
	"github.com/jordanlanch/partnerdb/pkg/api/handlers"
	custommw "github.com/jordanlanch/partnerdb/pkg/api/middleware"
	"github.com/jordanlanch/partnerdb/pkg/audit"
	"github.com/jordanlanch/partnerdb/pkg/auth"
	"github.com/jordanlanch/partnerdb/pkg/cache"
	"github.com/jordanlanch/partnerdb/pkg/checkpoint"
	"github.com/jordanlanch/partnerdb/pkg/clock"
	"github.com/jordanlanch/partnerdb/pkg/database"
	"github.com/jordanlanch/partnerdb/pkg/email"
	"github.com/jordanlanch/partnerdb/pkg/ledger"
	"github.com/jordanlanch/partnerdb/pkg/logger"
	"github.com/jordanlanch/partnerdb/pkg/metrics"
	custommiddleware "github.com/jordanlanch/partnerdb/pkg/middleware"
	"github.com/jordanlanch/partnerdb/pkg/partner"
	"github.com/jordanlanch/partnerdb/pkg/payment"
	"github.com/jordanlanch/partnerdb/pkg/phone"
	"github.com/jordanlanch/partnerdb/pkg/session"
	"github.com/jordanlanch/partnerdb/pkg/storage"
	"github.com/jordanlanch/partnerdb/pkg/student"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)
	log.Info("configuration loaded", "environment", cfg.APIEnvironment)

	// Initialize Sentry for error tracking
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.APIEnvironment,
			TracesSampleRate: 0.2,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Warn("failed to initialize sentry", "error", err)
		} else {
			log.Info("sentry initialized", "environment", cfg.APIEnvironment)
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Initialize database
	db, err := openDatabase(cfg, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.DBAutoMigrate {
		if err := db.Migrate(context.Background()); err != nil {
			log.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
	}

	// Initialize Redis cache. Without it logins are throttled in process
	// memory and logout cannot revoke tokens.
	var (
		redisClient    *cache.Client
		tokenBlacklist *auth.TokenBlacklist
		attempts       auth.AttemptStore = auth.NewMemoryAttemptStore()
	)
	if redisClient, err = cache.NewClient(cfg.RedisURL, log); err != nil {
		log.Warn("redis unavailable, falling back to in-memory login throttling", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
		tokenBlacklist = auth.NewTokenBlacklist(redisClient)
		attempts = auth.NewRedisAttemptStore(redisClient)
	}

	// Initialize Prometheus metrics
	prometheusMetrics := metrics.New(prometheus.DefaultRegisterer)

	// Receipt storage
	store, err := storage.New(context.Background(), storage.Config{
		Type:               cfg.StorageType,
		LocalPath:          cfg.StorageLocalPath,
		AWSRegion:          cfg.AWSRegion,
		AWSAccessKeyID:     cfg.AWSAccessKeyID,
		AWSSecretAccessKey: cfg.AWSSecretAccessKey,
		S3Bucket:           cfg.S3Bucket,
	})
	if err != nil {
		log.Error("failed to initialize receipt storage", "error", err)
		os.Exit(1)
	}

	// Initialize services
	clk := clock.Real{}
	phones := phone.NewValidator(cfg.DefaultPhoneRegion)
	auditLogger := audit.NewService(db.DB)
	emailService := email.NewService(cfg.EmailFrom, cfg.EmailFromName, cfg.AdminEmail, cfg.SendGridAPIKey, log)

	partnerService := partner.NewService(db.DB, phones, emailService, auditLogger, prometheusMetrics, log)
	studentService := student.NewService(db.DB, phones, emailService, auditLogger, prometheusMetrics, clk, log)
	checkpointService := checkpoint.NewService(db.DB, auditLogger, prometheusMetrics, clk, log)
	paymentService := payment.NewService(db.DB, store, auditLogger, prometheusMetrics, clk, log)
	ledgerService := ledger.NewService(db.DB)
	adminService := admin.NewService(db.DB, log)
	loginLimiter := auth.NewLoginLimiter(attempts, clk, cfg.LoginMaxAttempts, time.Duration(cfg.LoginLockoutMinutes)*time.Minute)

	if cfg.AdminUsername != "" && cfg.AdminPassword != "" {
		if _, created, err := adminService.Ensure(context.Background(), cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			log.Error("failed to ensure operator account", "error", err)
		} else if created {
			log.Info("operator account created", "username", cfg.AdminUsername)
		}
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(cfg, partnerService, adminService, loginLimiter, tokenBlacklist, prometheusMetrics, log)
	publicHandler := handlers.NewPublicHandler(studentService, partnerService, ledgerService, log)
	partnerHandler := handlers.NewPartnerHandler(partnerService, studentService, checkpointService, paymentService, ledgerService, log)
	adminHandler := handlers.NewAdminHandler(cfg, partnerService, studentService, checkpointService, paymentService, ledgerService, clk, log)
	auditHandler := handlers.NewAuditHandler(auditLogger, log)
	healthHandler := handlers.NewHealthHandler(db, nil)
	if redisClient != nil {
		healthHandler = handlers.NewHealthHandler(db, redisClient)
	}

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	// Initialize rate limiters
	globalRateLimiter := custommiddleware.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	authRateLimiter := custommiddleware.NewRateLimiter(10, 3)   // login endpoints
	publicRateLimiter := custommiddleware.NewRateLimiter(20, 5) // registration and contact forms
	defer globalRateLimiter.Stop()
	defer authRateLimiter.Stop()
	defer publicRateLimiter.Stop()

	// Global middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				log.Warn("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency.String(), "error", v.Error)
				return nil
			}
			log.Info("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency.String())
			return nil
		},
	}))
	e.Use(middleware.Recover())

	// Sentry error tracking middleware (if configured)
	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{
			Repanic: true, // let Recover answer the request
		}))
	}

	e.Use(prometheusMetrics.Middleware())
	e.Use(middleware.CORSWithConfig(custommiddleware.CORSConfig(cfg.CORSAllowedOrigins)))
	e.Use(custommiddleware.SecurityHeaders(custommiddleware.DefaultSecurityHeadersConfig()))
	e.Use(globalRateLimiter.RateLimitMiddleware())

	e.GET("/health", healthHandler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/api/v1")

	// Public routes
	v1.POST("/register", publicHandler.Register, publicRateLimiter.RateLimitMiddleware())
	v1.GET("/programs", publicHandler.ListPrograms)
	v1.GET("/partners/:code/dashboard", publicHandler.PartnerDashboard)
	v1.POST("/partnership-requests", publicHandler.SubmitPartnershipRequest, publicRateLimiter.RateLimitMiddleware())

	// Login routes carry the session cookie that keys the lockout
	sessions := session.NewManager(24*time.Hour, cfg.IsProduction())
	v1.POST("/partner/login", authHandler.PartnerLogin, authRateLimiter.RateLimitMiddleware(), sessions.Middleware())
	v1.POST("/admin/login", authHandler.AdminLogin, authRateLimiter.RateLimitMiddleware(), sessions.Middleware())

	jwt := custommw.JWTMiddlewareWithBlacklist(cfg.JWTSecret, tokenBlacklist)

	// Partner routes
	partnerGroup := v1.Group("/partner", jwt, custommiddleware.RequirePartner())
	{
		partnerGroup.GET("/dashboard", partnerHandler.Dashboard)
		partnerGroup.GET("/payments", partnerHandler.Payments)
		partnerGroup.POST("/logout", authHandler.Logout)
	}

	// Admin routes
	adminGroup := v1.Group("/admin", jwt, custommiddleware.RequireAdmin())
	{
		adminGroup.POST("/logout", authHandler.Logout)
		adminGroup.GET("/dashboard", adminHandler.Dashboard)
		adminGroup.GET("/confirmations", adminHandler.Confirmations)

		adminGroup.GET("/payments", adminHandler.Payments)
		adminGroup.GET("/payments/export", adminHandler.ExportPayments)
		adminGroup.GET("/payments/:id", adminHandler.GetPayment)
		adminGroup.GET("/payments/:id/receipt", adminHandler.ReceiptImage)
		adminGroup.POST("/payments/:id/paid", adminHandler.RecordPaid)
		adminGroup.POST("/payments/:id/complete", adminHandler.CompletePayment)
		adminGroup.POST("/payments/:id/pending", adminHandler.ResetPayment)
		adminGroup.POST("/payments/:id/cancel", adminHandler.CancelPayment)

		adminGroup.GET("/partners", adminHandler.ListPartners)
		adminGroup.POST("/partners", adminHandler.CreatePartner)
		adminGroup.GET("/partners/:id", adminHandler.GetPartner)
		adminGroup.PUT("/partners/:id/status", adminHandler.SetPartnerStatus)
		adminGroup.GET("/partners/:id/qrcode", adminHandler.PartnerQRCode)
		adminGroup.GET("/partners/:id/students", adminHandler.PartnerStudents)
		adminGroup.GET("/partners/:id/checkpoints", adminHandler.ListCheckpoints)
		adminGroup.POST("/partners/:id/checkpoints", adminHandler.CreateCheckpoint)
		adminGroup.POST("/partners/:id/payments", adminHandler.CreatePayment)
		adminGroup.GET("/partners/:id/receipts", adminHandler.PartnerReceipts)
		adminGroup.POST("/partners/:id/receipts", adminHandler.UploadReceipt)
		adminGroup.GET("/partners/:id/audit-logs", auditHandler.GetPartnerLogs)

		adminGroup.POST("/students/:id/confirm", adminHandler.ConfirmStudent)

		adminGroup.GET("/partnership-requests", adminHandler.ListPartnershipRequests)
		adminGroup.POST("/partnership-requests/:id/process", adminHandler.ProcessPartnershipRequest)

		adminGroup.GET("/audit-logs", auditHandler.GetRecentLogs)
	}

	// Report pool usage
	statsCtx, stopStats := context.WithCancel(context.Background())
	defer stopStats()
	go reportDBStats(statsCtx, db, prometheusMetrics)

	// Start server
	address := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	log.Info("api starting",
		"address", address,
		"storage", cfg.StorageType,
		"rate_limit_rpm", cfg.RateLimitRequestsPerMinute,
		"login_max_attempts", cfg.LoginMaxAttempts,
	)

	go func() {
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	// Let in-flight registration emails finish
	studentService.Wait()

	log.Info("server gracefully stopped")
}

func openDatabase(cfg *config.Config, log logger.Logger) (*database.Client, error) {
	if cfg.DBDriver == "sqlite" {
		return database.NewSQLiteClient(cfg.DatabaseURL, log)
	}

	pool := database.DefaultPoolConfig()
	pool.MaxOpenConns = cfg.DBMaxOpenConns
	pool.MaxIdleConns = cfg.DBMaxIdleConns
	pool.ConnMaxLifetime = time.Duration(cfg.DBConnMaxMinute) * time.Minute

	var ssl *database.SSLConfig
	if cfg.DBSSLMode != "" {
		ssl = &database.SSLConfig{Mode: cfg.DBSSLMode, RootCertPath: cfg.DBSSLRootCert}
	}

	return database.NewClientWithPoolAndSSL(cfg.DatabaseURL, pool, ssl, log)
}

func reportDBStats(ctx context.Context, db *database.Client, m *metrics.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.UpdateDBConnections(db.Stats().OpenConnections)
		}
	}
}
