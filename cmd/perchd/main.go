package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"perch/internal/core/domain"
	"perch/internal/core/ports"
	"perch/internal/core/services"
	httphandlers "perch/internal/handlers/http"
	backupinfra "perch/internal/infrastructure/backup"
	"perch/internal/infrastructure/middleware"
	"perch/internal/infrastructure/monitoring"
	"perch/internal/infrastructure/reliability"
	repositories "perch/internal/infrastructure/repositories"
	signalinfra "perch/internal/infrastructure/signal"
	"perch/internal/infrastructure/transport"
	webrtcinfra "perch/internal/infrastructure/webrtc"
	"perch/pkg/backoff"
	"perch/pkg/backup"
	"perch/pkg/circuitbreaker"
	"perch/pkg/config"
	"perch/pkg/logger"
	"perch/pkg/retry"
	"perch/pkg/tracing"
	"perch/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/perch/config.yaml",
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

	// Initialize logger
	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	// Initialize tracing
	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Errorw("failed to shutdown tracer provider", "error", err)
		}
	}()

	// Initialize repository factory
	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()

	store := repoFactory.CreatePairingRepository()

	// Initialize monitoring
	var metrics ports.MetricsRecorder
	if cfg.Monitoring.PrometheusEnabled {
		metrics = monitoring.NewPrometheusCollector()
	} else {
		metrics = monitoring.NewNoopRecorder()
	}

	// Viewer identity: configured or generated once per process
	viewerID := domain.ViewerID(cfg.Viewer.ID)
	if viewerID == "" {
		viewerID = domain.ViewerID(utils.GenerateViewerID())
		log.Infow("generated viewer identity", "viewer_id", viewerID)
	}

	// Initialize services
	authService := services.NewAuthService(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)
	tokens := transport.NewServiceTokenSource(authService, viewerID, cfg.Viewer.Name, cfg.Auth.AccessTokenTTL)

	cloudClient := transport.NewCloudClient(cfg.Cloud.BaseURL, cfg.Cloud.RequestTimeout, tokens, log)
	requester := reliability.NewReliableRequester(
		cloudClient,
		retry.Config{
			Enabled:      cfg.Cloud.Retry.Enabled,
			MaxAttempts:  cfg.Cloud.Retry.MaxAttempts,
			InitialDelay: cfg.Cloud.Retry.InitialDelay,
			MaxDelay:     cfg.Cloud.Retry.MaxDelay,
			Multiplier:   cfg.Cloud.Retry.Multiplier,
			Jitter:       true,
		},
		circuitbreaker.Config{
			FailureThreshold:    cfg.Cloud.CircuitBreaker.FailureThreshold,
			SuccessThreshold:    cfg.Cloud.CircuitBreaker.SuccessThreshold,
			Timeout:             cfg.Cloud.CircuitBreaker.Timeout,
			MaxRequestsHalfOpen: cfg.Cloud.CircuitBreaker.MaxRequestsHalfOpen,
		},
		log,
	)

	// Control channel
	channel := signalinfra.NewWebSocketClient(cfg.Channel.URL, tokens, metrics, log)
	channel.SetDialTimeout(cfg.Channel.DialTimeout)
	channel.SetPingInterval(cfg.Channel.PingInterval)
	channel.SetReadTimeout(cfg.Channel.PongTimeout)
	channel.SetWriteTimeout(cfg.Channel.WriteTimeout)

	// WebRTC configuration (including STUN/TURN from config)
	var iceServers []webrtc.ICEServer
	if len(cfg.Media.ICEServers) > 0 {
		for _, s := range cfg.Media.ICEServers {
			iceServers = append(iceServers, webrtc.ICEServer{
				URLs:       s.URLs,
				Username:   s.Username,
				Credential: s.Credential,
			})
		}
	} else {
		// Fallback STUN server if not configured
		iceServers = []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		}
	}

	webrtcConfig := webrtcinfra.Config{
		ICEServers:       iceServers,
		AnswerTimeout:    cfg.Media.AnswerTimeout,
		KeyframeInterval: cfg.Media.KeyframeInterval,
	}
	webrtcConfig.PortRange.Min = cfg.Media.PortRange.Min
	webrtcConfig.PortRange.Max = cfg.Media.PortRange.Max

	negotiator := webrtcinfra.NewNegotiator(webrtcConfig, channel, log)
	mediaController := services.NewMediaController(negotiator)
	resolver := services.NewPairingResolver(requester, viewerID, cfg.Cloud.ConfirmTimeout)

	manager := services.NewSessionManager(
		services.SessionManagerConfig{
			ViewerID: viewerID,
			Backoff: backoff.Plan{
				InitialDelay: cfg.Reconnect.InitialDelay,
				MaxDelay:     cfg.Reconnect.MaxDelay,
				Multiplier:   cfg.Reconnect.Multiplier,
			},
			ListTimeout: cfg.Viewer.ListTimeout,
		},
		resolver,
		channel,
		mediaController,
		store,
		metrics,
		log,
	)

	// Pairing archives: restore at boot, archive on a schedule
	var archiveScheduler *backupinfra.Scheduler
	var archiveCancel context.CancelFunc
	if cfg.Backup.Enabled {
		archiveStorage, err := backup.NewFileStorage(cfg.Backup.Directory)
		if err != nil {
			log.Fatalw("failed to create archive storage", "error", err, "directory", cfg.Backup.Directory)
		}
		archiveService := backup.NewService(archiveStorage, "1")

		if cfg.Backup.RestoreOnStart {
			restorer := backupinfra.NewRestorer(archiveService, store, log)
			// A failed restore leaves the store empty, not the daemon down
			if err := restorer.RestoreLatest(context.Background()); err != nil {
				log.Errorw("failed to restore pairings from archive", "error", err)
			}
		}

		archiveScheduler = backupinfra.NewScheduler(archiveService, store, backupinfra.Config{
			Interval:      cfg.Backup.Interval,
			RetentionDays: cfg.Backup.RetentionDays,
		}, log)

		var archiveCtx context.Context
		archiveCtx, archiveCancel = context.WithCancel(context.Background())
		go archiveScheduler.Start(archiveCtx)
		log.Infow("pairing archives enabled",
			"directory", cfg.Backup.Directory,
			"interval", cfg.Backup.Interval)
	}

	// Initialize HTTP handlers
	authHandler := httphandlers.NewAuthHandler(authService, viewerID, cfg.Viewer.Name, cfg.Auth.AccessTokenTTL)
	sessionHandler := httphandlers.NewSessionHandler(manager, store)

	// Configure Gin
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.RequestLoggingMiddleware(logger.NewContextLogger(zapLogger)))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	// Global HTTP rate limiting (if enabled)
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))

	// Setup auth routes (public)
	authHandler.SetupRoutes(router)

	// Pairing attempts get a much tighter budget than general traffic
	pairingLimit := middleware.NewPairingRateLimitMiddleware(cfg)

	// Setup session routes with authentication
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(authService))
	{
		api.POST("/session/pair/pin", pairingLimit, sessionHandler.PairWithPin)
		api.POST("/session/pair/qr", pairingLimit, sessionHandler.PairWithQR)
		api.POST("/session/connect", sessionHandler.Connect)
		api.POST("/session/watch", sessionHandler.Watch)
		api.POST("/session/watch/stop", sessionHandler.StopWatching)
		api.POST("/session/disconnect", sessionHandler.Disconnect)
		api.POST("/session/reconnect", sessionHandler.Reconnect)
		api.GET("/session/state", sessionHandler.GetState)
		api.GET("/cameras", sessionHandler.ListCameras)
		api.GET("/pairings", sessionHandler.ListPairings)
		api.DELETE("/pairings/:cameraId", sessionHandler.DeletePairing)
	}

	// Dependency health checks for the readiness endpoint
	healthChecker := monitoring.NewHealthChecker()
	healthChecker.AddStoreCheck(store, 2*time.Second)
	if rc := repoFactory.RedisClient(); rc != nil {
		healthChecker.AddRedisCheck(rc, 2*time.Second)
	}

	healthCtx, healthCancel := context.WithCancel(context.Background())
	go healthChecker.Watch(healthCtx, 30*time.Second, func(report monitoring.Report) {
		if report.Status == monitoring.StatusHealthy {
			log.Infow("dependency health recovered", "status", report.Status)
			return
		}
		log.Warnw("dependency health changed", "status", report.Status, "checks", report.Checks)
	})

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"uptime":    time.Since(startTime).String(),
		})
	})

	// Readiness endpoint
	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		report := healthChecker.Run(ctx)
		if report.Status == monitoring.StatusUnhealthy {
			c.JSON(503, gin.H{
				"status":    "not_ready",
				"timestamp": report.Timestamp,
				"checks":    report.Checks,
			})
			return
		}

		// A degraded daemon keeps serving; the report carries the detail.
		c.JSON(200, gin.H{
			"status":    "ready",
			"timestamp": report.Timestamp,
			"checks":    report.Checks,
		})
	})

	// Prometheus metrics endpoint
	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting perchd on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for shutdown signals or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down perchd...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Shutdown HTTP server gracefully
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		// Force close if graceful shutdown fails
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	} else {
		log.Info("Server shutdown gracefully")
	}

	// Stop the session: tears down media and the control channel
	if err := manager.Close(); err != nil {
		log.Errorw("Error closing session manager", "error", err)
	}

	// Stop archiving and health probes before the store goes away
	if archiveScheduler != nil {
		archiveScheduler.Stop()
		archiveCancel()
	}
	healthCancel()

	// Close repository factory
	if err := repoFactory.Close(); err != nil {
		log.Errorw("Error closing repository factory", "error", err)
	}

	log.Info("perchd stopped")
}
