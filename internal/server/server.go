// Package server contains HTTP handlers for the application's API endpoints.
package server

import (
	"context"
	"log"
	"time"

	"marquee/internal/cache"
	"marquee/internal/config"
	"marquee/internal/database"
	"marquee/internal/featureflags"
	"marquee/internal/ledger"
	"marquee/internal/middleware"
	"marquee/internal/models"
	"marquee/internal/observability"
	"marquee/internal/repository"

	_ "marquee/docs" // swagger docs

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus

	engine      *ledger.Engine
	coordinator *ledger.Coordinator
	flags       *featureflags.Manager

	ledgerRepo        repository.LedgerRepository
	catalogRepo       repository.CatalogRepository
	subscriberRepo    repository.SubscriberRepository
	submissionLogRepo repository.SubmissionLogRepository
	integrityLogRepo  repository.IntegrityLogRepository
}

// PolicyFromConfig translates the string-typed configuration into the
// engine's closed policy variant.
func PolicyFromConfig(cfg *config.Config) ledger.PolicyConfig {
	mode := ledger.DedupPermanentBlock
	switch cfg.DedupMode {
	case config.DedupModeAllowImmediate:
		mode = ledger.DedupAllowImmediate
	case config.DedupModeCooldown:
		mode = ledger.DedupCooldown
	}
	return ledger.PolicyConfig{
		MaxActive:          cfg.MaxActive,
		Mode:               mode,
		CooldownDays:       cfg.CooldownDays,
		OrphanPurge:        cfg.OrphanRepair == config.OrphanRepairDelete,
		IdentityAutoRepair: cfg.IdentityAutoRepair,
	}
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}

	cache.InitRedis(cfg.RedisURL)
	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	s := newServerCore(cfg, db, redisClient)

	// Prometheus collectors register globally, so only the real constructor
	// attaches them; tests build the core directly.
	s.promMiddleware = middleware.InitMetrics("marquee-api")
	return s, nil
}

func newServerCore(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) *Server {
	ledgerRepo := repository.NewLedgerRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	subscriberRepo := repository.NewSubscriberRepository(db)
	submissionLogRepo := repository.NewSubmissionLogRepository(db)
	integrityLogRepo := repository.NewIntegrityLogRepository(db)

	coordinator := ledger.NewCoordinator(time.Duration(cfg.LockTimeoutSeconds) * time.Second)
	coordinator.WaitObserver = func(d time.Duration) {
		observability.LockWaitSeconds.Observe(d.Seconds())
	}
	engine := ledger.NewEngine(
		ledgerRepo,
		catalogRepo,
		nil,
		PolicyFromConfig(cfg),
		coordinator,
		integrityLogRepo,
		middleware.Logger,
	)

	return &Server{
		config:            cfg,
		db:                db,
		redis:             redisClient,
		engine:            engine,
		coordinator:       coordinator,
		flags:             featureflags.NewManager(cfg.FeatureFlags),
		ledgerRepo:        ledgerRepo,
		catalogRepo:       catalogRepo,
		subscriberRepo:    subscriberRepo,
		submissionLogRepo: submissionLogRepo,
		integrityLogRepo:  integrityLogRepo,
	}
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate request-scoped IDs
	app.Use(middleware.ContextMiddleware())

	// OpenTelemetry spans per request
	app.Use(middleware.TracingMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)
	api.Get("/", s.HealthCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Marquee Backend Metrics Dashboard",
	}))

	// API documentation
	api.Get("/swagger/*", swagger.HandlerDefault)

	// Public board routes
	posters := api.Group("/posters")
	posters.Get("/", s.GetBoard)
	posters.Get("/:id", s.GetPoster)

	requesters := api.Group("/requesters")
	requesters.Get("/:email/board", s.GetRequesterBoard)

	// Submission processing
	api.Post("/submissions", middleware.RateLimit(
		s.redis, 10, time.Minute, "submissions"), s.CreateSubmission)

	// Notification roster
	api.Post("/subscribers", middleware.RateLimit(
		s.redis, 5, time.Minute, "subscribe"), s.CreateSubscriber)

	// Admin routes
	admin := api.Group("/admin", middleware.AdminRequired)
	adminPosters := admin.Group("/posters")
	adminPosters.Post("/", s.CreatePoster)
	adminPosters.Patch("/:id/active", s.SetPosterActive)
	adminPosters.Delete("/:id", s.DeletePoster)

	admin.Post("/requests", s.CreateManualRequest)
	admin.Post("/audit", s.RunAudit)
	admin.Get("/audit/history", s.GetAuditHistory)
	admin.Get("/submissions", s.GetSubmissionLog)
	admin.Delete("/subscribers/:email", s.DeactivateSubscriber)
}

// HealthCheck is a legacy/simple alias for ReadinessCheck
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return s.ReadinessCheck(c)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	// Redis is a cache here, not a dependency; readiness reports it but only
	// the database gates the overall status.
	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"version": "1.0.0",
		"status":  overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start starts the server
func (s *Server) Start() error {
	app := fiber.New(fiber.Config{
		AppName: "Marquee Request Ledger API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
