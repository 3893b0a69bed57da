// Package api exposes the project, cost, and analytics operations over HTTP.
package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/p-blackswan/pressroom/internal/health"
	"github.com/p-blackswan/pressroom/internal/metrics"
	"github.com/p-blackswan/pressroom/internal/requestid"
)

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	ListenAddr  string
	CORSOrigins string
	RateLimit   RateLimitConfig
}

// Server is the pressroom API Fiber application.
type Server struct {
	app      *fiber.App
	handlers *Handlers
	logger   zerolog.Logger
	config   ServerConfig
}

// NewServer creates and configures the API server.
func NewServer(
	cfg ServerConfig,
	handlers *Handlers,
	checker *health.Checker,
	metricsCollector *metrics.Metrics,
	logger zerolog.Logger,
) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler(logger),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ReadBufferSize:        8192,
		WriteBufferSize:       8192,
	})

	s := &Server{
		app:      app,
		handlers: handlers,
		logger:   logger.With().Str("component", "api_server").Logger(),
		config:   cfg,
	}

	s.setupMiddleware(cfg, metricsCollector, logger)
	s.setupRoutes(handlers, checker, metricsCollector)

	return s
}

func (s *Server) setupMiddleware(cfg ServerConfig, m *metrics.Metrics, logger zerolog.Logger) {
	// Recovery middleware
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// Request ID middleware
	s.app.Use(func(c *fiber.Ctx) error {
		_, reqID := requestid.New(c.Context())
		c.Set("X-Request-ID", reqID)
		c.Locals("request_id", reqID)
		return c.Next()
	})

	// CORS middleware
	if cfg.CORSOrigins != "" {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowHeaders: "Origin, Content-Type, Accept, X-Request-ID",
			AllowMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		}))
	}

	// Rate limiter
	if cfg.RateLimit.RPS > 0 {
		s.app.Use(NewRateLimitMiddleware(cfg.RateLimit))
	}

	// Audit middleware: log every request and record route metrics.
	s.app.Use(func(c *fiber.Ctx) error {
		path := c.Path()
		if isProbePath(path) {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()

		route := c.Route().Path
		status := c.Response().StatusCode()
		if m != nil {
			m.RecordRequest(route, fmt.Sprintf("%d", status))
			m.ObserveDuration(route, time.Since(start).Seconds())
		}

		logger.Info().
			Str("method", c.Method()).
			Str("path", path).
			Int("status", status).
			Str("ip", c.IP()).
			Str("request_id", fmt.Sprintf("%v", c.Locals("request_id"))).
			Dur("duration", time.Since(start)).
			Msg("api request")

		return err
	})
}

func (s *Server) setupRoutes(h *Handlers, checker *health.Checker, m *metrics.Metrics) {
	// Probe endpoints
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.app.Get("/readyz", func(c *fiber.Ctx) error {
		if checker != nil && !checker.IsReady(c.Context()) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "not_ready",
			})
		}
		return c.JSON(fiber.Map{"status": "ready"})
	})

	// Prometheus metrics
	if m != nil {
		s.app.Get("/metrics", func(c *fiber.Ctx) error {
			fasthttpadaptor.NewFastHTTPHandler(m.Handler())(c.Context())
			return nil
		})
	}

	// API v1 routes
	v1 := s.app.Group("/api/v1")

	// Project endpoints
	v1.Post("/projects", h.CreateProject)
	v1.Get("/projects", h.ListProjects)
	v1.Get("/projects/by-name/:name", h.GetProjectByName)
	v1.Get("/projects/:id", h.GetProject)
	v1.Delete("/projects/:id", h.DeleteProject)
	v1.Post("/projects/:id/archive", h.ArchiveProject)
	v1.Patch("/projects/:id/metadata", h.UpdateMetadata)

	// Milestone endpoints
	v1.Post("/projects/:id/milestones", h.SaveMilestone)
	v1.Get("/projects/:id/milestones/:type", h.LoadMilestone)

	// Section endpoints
	v1.Put("/projects/:id/sections", h.SaveSections)
	v1.Get("/projects/:id/sections", h.ListSections)
	v1.Patch("/projects/:id/sections/:index/status", h.UpdateSectionStatus)

	// Cost endpoints
	v1.Post("/projects/:id/costs", h.TrackCost)
	v1.Get("/projects/:id/costs", h.CostSummary)
	v1.Get("/projects/:id/costs/analysis", h.CostAnalysis)

	// Workflow endpoints
	v1.Get("/projects/:id/progress", h.Progress)
	v1.Post("/projects/:id/resume", h.Resume)
	v1.Get("/projects/:id/export", h.Export)

	// Analytics endpoints
	v1.Get("/analytics/weekly", h.WeeklyReport)
	v1.Get("/analytics/monthly", h.MonthlyReport)
	v1.Get("/analytics/trends", h.Trends)
	v1.Get("/analytics/summary", h.MultiSummary)
	v1.Get("/analytics/compare", h.Compare)
}

// Start starts the server. Blocks until stopped.
func (s *Server) Start() error {
	addr := s.config.ListenAddr
	if addr == "" {
		addr = ":8080"
	}

	s.logger.Info().Str("addr", addr).Msg("api server starting")
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("api server shutting down")
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

func customErrorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		logger.Error().
			Err(err).
			Int("status", code).
			Str("path", c.Path()).
			Str("method", c.Method()).
			Msg("unhandled error")

		detail := err.Error()
		// Don't leak internal details in production
		if code == fiber.StatusInternalServerError {
			if !strings.Contains(detail, "test") {
				detail = "An internal error occurred"
			}
		}

		return c.Status(code).JSON(ProblemDetail{
			Type:     "internal_error",
			Title:    "Internal Server Error",
			Status:   code,
			Detail:   detail,
			Instance: c.Path(),
		})
	}
}
