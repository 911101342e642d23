package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"go.uber.org/zap"

	"github.com/mirrorline/futureself/internal/api/handlers"
	"github.com/mirrorline/futureself/internal/capture"
	"github.com/mirrorline/futureself/internal/clone"
	"github.com/mirrorline/futureself/internal/scheduler"
	"github.com/mirrorline/futureself/internal/session"
	"github.com/mirrorline/futureself/pkg/elevenlabs"
	"github.com/mirrorline/futureself/pkg/env"
	"github.com/mirrorline/futureself/pkg/errors"
	"github.com/mirrorline/futureself/pkg/logger"
	"github.com/mirrorline/futureself/pkg/middleware"
	"github.com/mirrorline/futureself/pkg/mongo"
	"github.com/mirrorline/futureself/pkg/otel"
	"github.com/mirrorline/futureself/pkg/storage"
	"github.com/mirrorline/futureself/pkg/vapi"
	"github.com/mirrorline/futureself/pkg/webhook"
)

// Server wires the webhook surface, the capture pipeline, and the scheduler
// into one process.
type Server struct {
	cfg         *env.Config
	mongoClient *mongo.Client
	redisClient *redis.Client
	handler     *handlers.Handler
}

func main() {
	cfg, err := env.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.LogLevel, cfg.AppEnv); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize OpenTelemetry if enabled
	if cfg.OTELEnabled {
		shutdown, err := otel.InitTracing("futureself-server", "1.0.0", cfg.OTELEndpoint)
		if err != nil {
			logger.Log.Warn("Failed to initialize OpenTelemetry", zap.Error(err))
		} else {
			defer shutdown()
			logger.Log.Info("OpenTelemetry tracing enabled", zap.String("endpoint", cfg.OTELEndpoint))
		}
	}

	logger.Log.Info("Starting FutureSelf callback agent",
		zap.String("env", cfg.AppEnv),
		zap.String("port", cfg.AppPort),
	)

	// Initialize Redis
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Log.Fatal("Failed to parse Redis URL", zap.Error(err))
	}
	redisClient := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Log.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	// Initialize MongoDB
	mongoClient, err := mongo.NewClient(cfg.MongoURI, cfg.DBName)
	if err != nil {
		logger.Log.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(ctx); err != nil {
			logger.Log.Warn("Failed to disconnect MongoDB", zap.Error(err))
		}
	}()

	// Voice cloning provider
	elevenClient := elevenlabs.NewClient(
		cfg.ElevenLabsApiKey,
		cfg.ElevenLabsCloneModel,
		time.Duration(cfg.ElevenLabsTimeoutSec)*time.Second,
		logger.Log,
	)
	if elevenClient.IsAvailable() {
		logger.Log.Info("Voice cloning provider initialized",
			zap.String("model", cfg.ElevenLabsCloneModel))
	} else {
		logger.Log.Warn("ELEVENLABS_API_KEY not set; every session will use the default voice")
	}

	// Call platform client
	vapiClient := vapi.NewClient(cfg.VapiAPIKey, cfg.VapiBaseURL, 30*time.Second, logger.Log)
	if !vapiClient.IsAvailable() {
		logger.Log.Warn("VAPI_API_KEY not set; persona creation and callbacks are disabled")
	}

	// Sample archive
	storageDriver, err := storage.NewDriver(cfg.StorageDriver, cfg.LocalStoragePath)
	if err != nil {
		logger.Log.Fatal("Failed to create storage driver", zap.Error(err))
	}

	// Session store and the pipeline around it
	store := session.NewMemoryStore(logger.Log)

	captures := capture.NewManager(capture.Config{
		TriggerAfter:     time.Duration(cfg.CaptureTriggerSec) * time.Second,
		RingCapacity:     cfg.CaptureRingCapacity,
		ForcedSampleRate: cfg.CaptureForcedSampleRate,
		HandshakeTimeout: time.Duration(cfg.CaptureHandshakeTimeoutSec) * time.Second,
		MaxReconnects:    cfg.CaptureMaxReconnects,
	}, logger.Log)

	dispatcher := clone.NewDispatcher(elevenClient, store, storageDriver, cfg.CloneMaxAttempts, logger.Log)

	sched := scheduler.New(vapiClient, store, scheduler.Config{
		FallbackTimeout: time.Duration(cfg.FallbackTimeoutSec) * time.Second,
		PollInterval:    time.Duration(cfg.PollIntervalSec) * time.Second,
		PollCeiling:     time.Duration(cfg.PollCeilingSec) * time.Second,
		ReadyDelay:      time.Duration(cfg.ReadyDelaySec) * time.Second,
		DefaultVoiceID:  cfg.DefaultVoiceID,
		PhoneNumberID:   cfg.VapiPhoneNumberID,
	}, logger.Log)

	// Clone completion feeds straight into the scheduler's primary path.
	dispatcher.OnCloneReady = sched.OnCloneReady

	apiHandler := handlers.NewHandler(cfg, store, captures, dispatcher, sched, elevenClient, storageDriver, redisClient, mongoClient)

	server := &Server{
		cfg:         cfg,
		mongoClient: mongoClient,
		redisClient: redisClient,
		handler:     apiHandler,
	}

	router := server.setupRouter()

	srv := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down server...")

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Log.Info("Server exited")
}

func (s *Server) setupRouter() *gin.Engine {
	if s.cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.TraceMiddleware())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestSizeLimit(1 << 20)) // 1 MB limit

	// Add OpenTelemetry middleware if enabled
	if s.cfg.OTELEnabled {
		router.Use(otel.GinMiddleware())
	}

	router.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("[%s] %s %s %d %s\n",
			param.TimeStamp.Format(time.RFC3339),
			param.Method,
			param.Path,
			param.StatusCode,
			param.Latency,
		)
	}))

	// CORS
	corsConfig := cors.DefaultConfig()
	if s.cfg.CORSAllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = []string{s.cfg.CORSAllowedOrigins}
	}
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	rateLimiter := middleware.NewRateLimiter(s.redisClient, s.cfg.APIRateLimitRPM)

	// Health and metrics
	router.GET("/health", s.handler.HealthCheck)
	router.GET("/metrics", s.handler.GetMetrics)
	router.GET("/metrics/prometheus", s.handler.GetPrometheusMetrics)

	// Webhook endpoint (public, shared-secret verified)
	router.POST("/webhooks/vapi", s.verifyWebhookSecret(), s.handler.PlatformWebhook)

	// Admin API (protected)
	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(s.cfg.JWTSecret))
	api.Use(middleware.IdempotencyMiddleware(s.redisClient))
	api.Use(rateLimiter.Middleware())
	{
		sessions := api.Group("/sessions")
		{
			sessions.GET("", s.handler.ListSessions)
			sessions.GET("/:id", s.handler.GetSessionStatus)
			sessions.DELETE("/:id", s.handler.DeleteSession)
		}

		calls := api.Group("/calls")
		{
			calls.GET("/:call_id/status", s.handler.GetCallStatus)
			calls.GET("/:call_id/sample", s.handler.GetSample)
			calls.POST("/:call_id/trigger-capture", s.handler.TriggerCapture)
		}

		voices := api.Group("/voices")
		{
			voices.GET("/cloned", s.handler.ListClonedVoices)
			voices.DELETE("/:voice_id", s.handler.DeleteVoice)
		}

		api.GET("/audit-logs", s.handler.ListAuditLogs)
	}

	return router
}

// verifyWebhookSecret gates the webhook route on the platform's shared secret.
func (s *Server) verifyWebhookSecret() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := webhook.VerifySecret(s.cfg.VapiWebhookSecret, c.GetHeader("x-vapi-secret")); err != nil {
			errors.Unauthorized(c, "webhook verification failed")
			c.Abort()
			return
		}
		c.Next()
	}
}
