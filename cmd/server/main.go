package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tagfall/internal/core/services"
	httphandlers "tagfall/internal/handlers/http"
	"tagfall/internal/infrastructure/dispatch"
	"tagfall/internal/infrastructure/middleware"
	"tagfall/internal/infrastructure/monitoring"
	"tagfall/internal/infrastructure/poller"
	"tagfall/internal/infrastructure/providers"
	"tagfall/internal/infrastructure/repositories"
	"tagfall/pkg/config"
	"tagfall/pkg/logger"
	"tagfall/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/tagfall/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error

	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		// Fallback to defaults if config cannot be loaded
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	if err := cfg.Validate(); err != nil {
		log.Fatalw("invalid configuration", "error", err)
	}

	// Tracing
	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "tagfall",
		JaegerURL:   cfg.Tracing.JaegerURL,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	// Storage
	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()

	contentRepo := repoFactory.CreateContentRepository()
	moderationRepo := repoFactory.CreateModerationRepository()
	queueRepo := repoFactory.CreateQueueRepository()

	// Monitoring
	var collector *monitoring.PrometheusCollector
	if cfg.Monitoring.PrometheusEnabled {
		collector = monitoring.NewPrometheusCollector()
	}

	// Dispatch hub; the collector is optional, interfaces stay nil without it
	var dispatchMetrics dispatch.DispatchMetrics
	var ingestMetrics services.IngestMetrics
	var pollMetrics poller.PollMetrics
	if collector != nil {
		dispatchMetrics = collector
		ingestMetrics = collector
		pollMetrics = collector
	}
	hub := dispatch.NewHub(cfg.Dispatch.SessionBufferSize, log, dispatchMetrics)

	// Core services
	messagingService := services.NewMessagingService(contentRepo, moderationRepo, hub, cfg.Tags, log, ingestMetrics)
	moderationService := services.NewModerationService(contentRepo, moderationRepo, queueRepo, hub, log)
	presenceService := services.NewPresenceService(hub)

	// Provider adapters. A provider whose config section fails validation is
	// registered disabled; the rest of the engine keeps running.
	scheduler := poller.NewScheduler(messagingService, log, pollMetrics)

	mastodonCfg := providers.MastodonConfig{
		Server:       cfg.Providers.Mastodon.Server,
		Token:        cfg.Providers.Mastodon.Token,
		Enabled:      cfg.Providers.Mastodon.Enabled,
		PollInterval: cfg.Providers.Mastodon.PollInterval,
	}
	if err := cfg.ValidateProvider("MASTODON"); err != nil {
		log.Warnw("mastodon provider disabled: invalid configuration", "error", err)
		mastodonCfg.Enabled = false
	}
	scheduler.Register(providers.NewMastodonProvider(mastodonCfg, log))

	chatRelayCfg := providers.ChatRelayConfig{
		URL:            cfg.Providers.ChatRelay.URL,
		Channel:        cfg.Providers.ChatRelay.Channel,
		Enabled:        cfg.Providers.ChatRelay.Enabled,
		PollInterval:   cfg.Providers.ChatRelay.PollInterval,
		AvatarCacheTTL: cfg.Providers.ChatRelay.AvatarCacheTTL,
	}
	if err := cfg.ValidateProvider("CHATRELAY"); err != nil {
		log.Warnw("chat relay provider disabled: invalid configuration", "error", err)
		chatRelayCfg.Enabled = false
	}
	chatRelay := providers.NewChatRelayProvider(chatRelayCfg, log)
	scheduler.Register(chatRelay)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	if chatRelayCfg.Enabled {
		chatRelay.Start(rootCtx)
		defer chatRelay.Stop()
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Realtime channel
	wsServer := dispatch.NewWebSocketServer(hub, messagingService, moderationService, presenceService, scheduler, log)
	wsServer.SetPingInterval(cfg.Dispatch.PingInterval)
	wsServer.SetPongTimeout(cfg.Dispatch.PongTimeout)
	wsServer.SetWriteTimeout(cfg.Dispatch.WriteTimeout)

	// HTTP surface
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	contentHandler := httphandlers.NewContentHandler(messagingService, moderationService, presenceService, scheduler)
	contentHandler.SetupRoutes(router)

	router.GET("/ws",
		middleware.NewWebSocketRateLimitMiddleware(cfg),
		middleware.OptionalModeratorAuth(cfg.Auth.JWTSecret),
		wsServer.HandleWebSocket,
	)

	healthChecker := monitoring.NewHealthChecker()
	healthChecker.AddCheck("storage", func(ctx context.Context) (bool, error) {
		if err := repoFactory.HealthCheck(ctx); err != nil {
			return false, err
		}
		return true, nil
	}, 2*time.Second)
	healthChecker.SetProviderSource(scheduler.Health)

	router.GET("/health", func(c *gin.Context) {
		status := healthChecker.CheckAll(c.Request.Context())
		code := http.StatusOK
		if status.Status == "unhealthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status.Status,
			"timestamp": status.Timestamp,
			"checks":    status.Checks,
			"uptime":    time.Since(startTime).String(),
			"providers": status.Providers,
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := repoFactory.HealthCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "not_ready",
				"timestamp": time.Now(),
				"error":     err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"timestamp": time.Now(),
		})
	})

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting tagfall server on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down tagfall server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	} else {
		log.Info("Server shutdown gracefully")
	}

	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error shutting down tracer", "error", err)
	}

	log.Info("tagfall server stopped")
}
