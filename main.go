package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/HSouheill/commercive_backend/config"
	"github.com/HSouheill/commercive_backend/controllers"
	"github.com/HSouheill/commercive_backend/middleware"
	"github.com/HSouheill/commercive_backend/repositories"
	"github.com/HSouheill/commercive_backend/routes"
	"github.com/HSouheill/commercive_backend/services"
	"github.com/HSouheill/commercive_backend/websocket"
)

func main() {
	cfg := config.Load()

	logger, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	stop := make(chan struct{})
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Record store
	var store repositories.Store
	switch cfg.StoreDriver {
	case "memory":
		logger.Warn("Using in-memory store; data is lost on restart")
		store = repositories.NewMemoryStore(logger, repositories.Indexes)
	default:
		client, mongoStore, err := config.ConnectDB(cfg, logger)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		defer func() {
			dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer dcancel()
			_ = client.Disconnect(dctx)
		}()
		store = mongoStore
	}

	// Summary cache
	var cache services.SummaryCache = services.NewStoreSummaryCache(store)
	if cfg.SummaryCache == "redis" {
		rdb, err := config.ConnectRedis(cfg, logger)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer rdb.Close()
		cache = services.NewRedisSummaryCache(rdb, cfg.SummaryCacheTTL)
	}

	defaultRate, err := decimal.NewFromString(cfg.DefaultCommission)
	if err != nil {
		logger.Fatal("Invalid DEFAULT_COMMISSION_RATE", zap.String("value", cfg.DefaultCommission), zap.Error(err))
	}

	tokens, err := middleware.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		logger.Fatal("Failed to configure tokens", zap.Error(err))
	}

	// Admin event hub
	hub := websocket.NewHub(logger.Named("hub"))
	go hub.Run(stop)

	mailer := services.NewEmailService(services.EmailConfig{
		Host:        cfg.SMTPHost,
		Port:        cfg.SMTPPort,
		User:        cfg.SMTPUser,
		Password:    cfg.SMTPPass,
		From:        cfg.SMTPUser,
		NotifyEmail: cfg.NotifyEmail,
	}, logger.Named("email"))
	assistant := services.NewOpenAIAssistant(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, logger.Named("assistant"))

	// Services
	orderService := services.NewOrderService(store, cache, hub, defaultRate, logger.Named("orders"))
	configRegistry := services.NewConfigRegistry(store, logger.Named("configs"))
	summaryService := services.NewSummaryService(store, cache, logger.Named("summaries"))
	paymentService := services.NewPaymentService(store, cache, mailer, hub, logger.Named("payments"))
	leadService := services.NewLeadService(store, mailer, hub, cfg.FormBaseURL, logger.Named("leads"))
	chatService := services.NewChatService(store, assistant, hub, logger.Named("chat"))

	// Controllers
	actions := controllers.NewActionController(logger.Named("actions"),
		controllers.NewAuthController(tokens, cfg.AdminEmail, cfg.AdminPasswordHash, logger.Named("auth")),
		controllers.NewCRMController(orderService, configRegistry, summaryService, paymentService, leadService, logger.Named("crm")),
		controllers.NewLeadController(leadService, logger.Named("leads")),
		controllers.NewChatController(chatService, logger.Named("chat")),
	)

	// Create a new Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = controllers.NewValidator()

	rateLimiter := middleware.NewRateLimiter()
	go rateLimiter.Cleanup(time.Minute, stop)

	// Middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.NewCORSConfig(cfg.CORSAllowedOrigins)))
	e.Use(echoMiddleware.Secure())
	e.Use(middleware.SecurityHeadersWithConfig(middleware.SecurityConfig{
		AllowedDomains: cfg.CORSAllowedOrigins,
	}))
	e.Use(httpsRedirect())

	routes.SetupRoutes(e, actions, hub, tokens, rateLimiter)

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Port), zap.String("store", cfg.StoreDriver), zap.String("summary_cache", cfg.SummaryCache))
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	close(stop)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}

func httpsRedirect() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get("X-Forwarded-Proto") == "http" {
				return c.Redirect(http.StatusMovedPermanently, "https://"+c.Request().Host+c.Request().RequestURI)
			}
			return next(c)
		}
	}
}
