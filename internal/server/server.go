// Package server contains the HTTP pages, JSON API and websocket feed for the car lot.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "carlot/docs" // swagger docs
	"carlot/internal/cache"
	"carlot/internal/config"
	"carlot/internal/database"
	"carlot/internal/featureflags"
	"carlot/internal/middleware"
	"carlot/internal/models"
	"carlot/internal/notifications"
	"carlot/internal/repository"
	"carlot/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
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
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	sessions       *middleware.SessionManager
	pages          *renderer
	carRepo        repository.CarRepository
	userRepo       repository.UserRepository
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	carService     *service.CarService
	commentService *service.CommentService
	userService    *service.UserService
	flags          *featureflags.Set
}

// NewServer connects to the database and Redis named in cfg and builds the server.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	redisClient := cache.InitRedis(ctx, cfg.RedisURL)

	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	pages, err := newRenderer()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("carlot"),
		pages:          pages,
		sessions: middleware.NewSessionManager(
			cfg.SessionSecret, time.Duration(cfg.SessionTTLHours)*time.Hour, redisClient),
		carRepo:  repository.NewCarRepository(db),
		userRepo: repository.NewUserRepository(db),
		notifier: notifications.NewNotifier(redisClient),
		hub:      notifications.NewHub(),
		flags:    parseFlags(cfg.FeatureFlags),
	}
	server.userService = service.NewUserService(server.userRepo)
	server.carService = service.NewCarService(server.carRepo, server.userService.Usernames, server.notifier)
	server.commentService = service.NewCommentService(server.carRepo, server.notifier)

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Method override has to be the first handler on every method stack.
	app.Use(middleware.MethodOverride())

	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID and trace ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Session lookup never rejects; routes decide whether they need one.
	app.Use(s.sessions.LoadSession())

	// Structured Logging middleware (after requestid, context and session)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	app.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.AllowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-HTTP-Method-Override",
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        s.config.RateLimitPerMinute,
		Expiration: time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
				Code:  "RATE_LIMITED",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	s.setupPageRoutes(app)
	s.setupAPIRoutes(app)
}

func (s *Server) setupPageRoutes(app *fiber.App) {
	requireSession := middleware.PageSessionRequired()

	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/cars", fiber.StatusFound)
	})
	app.Get("/error", s.ErrorPage)

	users := app.Group("/users")
	users.Get("/signup", s.SignupPage)
	users.Post("/signup", middleware.RateLimit(s.redis, 5, 10*time.Minute, "signup"), s.SignupForm)
	users.Get("/login", s.LoginPage)
	users.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.LoginForm)
	users.Get("/logout", s.LogoutPage)

	cars := app.Group("/cars")
	cars.Get("/", s.CarsPage)
	// Fixed paths before the generic /:id routes.
	cars.Get("/mine", requireSession, s.MyCarsPage)
	cars.Get("/json", middleware.SessionRequired(), s.MyCarsJSON)
	cars.Get("/new", requireSession, s.NewCarPage)
	cars.Get("/seed", s.requireFeature(featureflags.SeedRoutes), s.SeedPage)
	cars.Get("/edit/:id", requireSession, s.EditCarPage)
	cars.Post("/", requireSession, s.CreateCarForm)
	cars.Get("/:id", s.ShowCarPage)
	cars.Put("/:id", requireSession, s.UpdateCarForm)
	cars.Delete("/:id", requireSession, s.DeleteCarForm)

	comments := app.Group("/comments")
	comments.Post("/:carId", requireSession, s.AddCommentForm)
	comments.Delete("/delete/:carId/:commId", requireSession, s.DeleteCommentForm)
}

func (s *Server) setupAPIRoutes(app *fiber.App) {
	api := app.Group("/api")
	requireSession := middleware.SessionRequired()

	api.Get("/swagger/*", swagger.HandlerDefault)

	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(s.redis, 5, 10*time.Minute, "signup"), s.Signup)
	auth.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/logout", s.Logout)

	cars := api.Group("/cars")
	cars.Get("/", s.ListCars)
	cars.Post("/", requireSession, s.CreateCar)
	cars.Get("/seed", s.requireFeature(featureflags.SeedRoutes), s.SeedCars)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	cars.Post("/:id/comments", requireSession,
		middleware.RateLimit(s.redis, 30, time.Minute, "create_comment"), s.AddComment)
	cars.Delete("/:id/comments/:commentId", requireSession, s.DeleteComment)
	cars.Get("/:id", s.GetCar)
	cars.Put("/:id", requireSession, s.ReplaceCar)
	cars.Patch("/:id", requireSession, s.PatchCar)
	cars.Delete("/:id", requireSession, s.DeleteCar)

	api.Get("/ws/cars", s.requireFeature(featureflags.CarFeed), s.CarFeedUpgrade, s.CarFeedHandler())
}

func parseFlags(raw string) *featureflags.Set {
	if raw == "" {
		raw = featureflags.Defaults
	}
	return featureflags.Parse(raw)
}

// requireFeature answers 404 when the named flag is off for the caller.
func (s *Server) requireFeature(name string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		uid, _ := c.Locals(middleware.LocalUserID).(uint)
		if !s.flags.Enabled(name, uid) {
			return fiber.ErrNotFound
		}
		return c.Next()
	}
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
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	// Redis is optional: without it the app runs uncached on a single instance.
	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"features": s.flags.Names(),
		"time":     time.Now(),
	})
}

// errorHandler handles errors that escape a handler, including unmatched routes.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message, Code: httpErrorCode(fe.Code)})
	}
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

func httpErrorCode(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return models.CodeNotFound
	case fiber.StatusBadRequest, fiber.StatusRequestEntityTooLarge:
		return models.CodeValidation
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	default:
		return models.CodeInternal
	}
}

// App builds the Fiber application with all middleware and routes.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:      "carlot",
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// Start wires the car feed and listens on the configured port until Shutdown.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.App()

	if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
		middleware.Logger.Error("failed to start car feed wiring", slog.String("error", err.Error()))
	}

	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop the feed subscriber
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	// Close WebSocket connections before the listener so handlers can return
	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down car feed", slog.String("error", err.Error()))
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := database.Close(s.db); err != nil {
		middleware.Logger.Error("error closing database", slog.String("error", err.Error()))
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
