package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	_ "github.com/familyboard/core/docs"
	httpHandlers "github.com/familyboard/core/internal/adapters/http"
	"github.com/familyboard/core/internal/application/lifecycle"
	"github.com/familyboard/core/internal/application/services"
	"github.com/familyboard/core/internal/domain/entities"
	"github.com/familyboard/core/internal/infrastructure/config"
	"github.com/familyboard/core/internal/infrastructure/database"
	"github.com/familyboard/core/internal/infrastructure/logger"
	"github.com/familyboard/core/internal/infrastructure/metrics"
)

// Server represents the HTTP server
type Server struct {
	echo    *echo.Echo
	config  *config.Config
	logger  *logger.Logger
	db      *database.DB
	engine  *lifecycle.Engine
	metrics *metrics.Metrics
}

// Dependencies are the node components the HTTP layer serves.
type Dependencies struct {
	DB            *database.DB
	Engine        *lifecycle.Engine
	Metrics       *metrics.Metrics
	Auth          *services.AuthService
	Tasks         *services.TaskService
	Settings      *services.SettingsService
	Notifications *services.NotificationService
}

// CustomValidator wraps the validator
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates structs
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// New creates a new server instance
func New(cfg *config.Config, deps Dependencies, appLogger *logger.Logger) (*Server, error) {
	if deps.Auth == nil || deps.Tasks == nil || deps.Settings == nil || deps.Notifications == nil {
		return nil, errors.New("server: missing service dependency")
	}

	e := echo.New()

	e.Validator = &CustomValidator{validator: validator.New()}

	e.HideBanner = true
	e.HidePort = true

	e.HTTPErrorHandler = customErrorHandler(appLogger)

	authHandler := httpHandlers.NewAuthHandler(deps.Auth, appLogger)
	taskHandler := httpHandlers.NewTaskHandler(deps.Tasks, appLogger)
	settingsHandler := httpHandlers.NewSettingsHandler(deps.Settings, appLogger)
	pushHandler := httpHandlers.NewPushHandler(deps.Notifications, appLogger)

	server := &Server{
		echo:    e,
		config:  cfg,
		logger:  appLogger,
		db:      deps.DB,
		engine:  deps.Engine,
		metrics: deps.Metrics,
	}

	server.setupMiddleware()

	if cfg.Metrics.Enabled && deps.Metrics != nil {
		server.setupMetrics()
	}

	server.setupRoutes(authHandler, taskHandler, settingsHandler, pushHandler, deps.Auth)

	return server, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogError:     true,
		LogRemoteIP:  true,
		LogUserAgent: true,
		LogValuesFunc: func(c echo.Context, values middleware.RequestLoggerValues) error {
			fields := []interface{}{
				"method", values.Method,
				"uri", values.URI,
				"status", values.Status,
				"latency_ms", float64(values.Latency.Nanoseconds()) / 1000000,
				"remote_ip", values.RemoteIP,
				"user_agent", values.UserAgent,
			}

			if values.Error != nil {
				fields = append(fields, "error", values.Error.Error())
				s.logger.Errorw("HTTP request failed", fields...)
			} else {
				s.logger.Infow("HTTP request", fields...)
			}

			return nil
		},
	}))

	// The push endpoint is called cross-origin by the browser clients.
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: strings.Split(s.config.Security.CORSAllowedOrigins, ","),
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowMethods: []string{echo.GET, echo.HEAD, echo.PUT, echo.POST, echo.DELETE, echo.OPTIONS},
	}))

	if s.config.Security.RateLimitRequests > 0 {
		s.echo.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Store: middleware.NewRateLimiterMemoryStoreWithConfig(
				middleware.RateLimiterMemoryStoreConfig{Rate: rate.Limit(s.config.Security.RateLimitRequests), Burst: s.config.Security.RateLimitRequests, ExpiresIn: s.config.Security.RateLimitWindow},
			),
			IdentifierExtractor: func(ctx echo.Context) (string, error) {
				return ctx.RealIP(), nil
			},
			ErrorHandler: func(context echo.Context, err error) error {
				return context.JSON(http.StatusForbidden, map[string]string{"message": "rate limit exceeded"})
			},
			DenyHandler: func(context echo.Context, identifier string, err error) error {
				return context.JSON(http.StatusTooManyRequests, map[string]string{"message": "rate limit exceeded"})
			},
		}))
	}

	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge:         31536000,
	}))

	s.echo.Use(middleware.RequestID())

	s.echo.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: 30 * time.Second,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(
	authHandler *httpHandlers.AuthHandler,
	taskHandler *httpHandlers.TaskHandler,
	settingsHandler *httpHandlers.SettingsHandler,
	pushHandler *httpHandlers.PushHandler,
	authService *services.AuthService,
) {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/health/detailed", s.detailedHealthCheck)
	s.echo.GET("/ready", s.readinessCheck)

	s.echo.GET("/docs/*", echoSwagger.WrapHandler)

	// Privileged push relay, reachable without a session.
	s.echo.POST("/push", pushHandler.Send)

	v1 := s.echo.Group("/api/v1")

	v1.POST("/session", authHandler.Login)
	v1.GET("/session", authHandler.Session, s.authMiddleware(authService))
	v1.DELETE("/session", authHandler.Logout, s.authMiddleware(authService))

	authed := v1.Group("", s.authMiddleware(authService))
	authed.GET("/profiles", settingsHandler.ListProfiles)
	authed.GET("/settings", settingsHandler.GetSettings)
	authed.PUT("/settings", settingsHandler.UpdateSettings, s.requireRole(entities.RoleMother))
	authed.GET("/mail-log", settingsHandler.ListMailLog)

	taskGroup := v1.Group("/tasks", s.authMiddleware(authService))
	taskGroup.GET("", taskHandler.ListTasks)
	taskGroup.POST("", taskHandler.CreateTask, s.requireRole(entities.RoleMother))
	taskGroup.GET("/:id", taskHandler.GetTask)
	taskGroup.PUT("/:id", taskHandler.UpdateTask, s.requireRole(entities.RoleMother))
	taskGroup.DELETE("/:id", taskHandler.DeleteTask, s.requireRole(entities.RoleMother))
	taskGroup.POST("/:id/toggle", taskHandler.ToggleTask, s.requireRole(entities.RoleFather, entities.RoleSon))
}

// setupMetrics exposes the shared registry and instruments requests
func (s *Server) setupMetrics() {
	s.echo.Use(s.metricsMiddleware)

	metricsHandler := promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})
	s.echo.GET("/metrics", echo.WrapHandler(metricsHandler))
}

// Health check handlers
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) detailedHealthCheck(c echo.Context) error {
	status := "ok"
	checks := make(map[string]interface{})

	if s.db != nil {
		if err := s.db.HealthCheck(); err != nil {
			status = "error"
			checks["database"] = map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
			}
		} else {
			checks["database"] = map[string]interface{}{
				"status": "ok",
				"stats":  s.db.GetConnectionInfo(),
			}
		}
	}

	if s.engine != nil {
		checks["mirror"] = map[string]interface{}{
			"status":              "ok",
			"tasks":               len(s.engine.Tasks()),
			"pending_write_backs": len(s.engine.PendingWriteBacks()),
		}
	}

	response := map[string]interface{}{
		"status": status,
		"time":   time.Now().UTC().Format(time.RFC3339),
		"checks": checks,
		"version": map[string]string{
			"app": s.config.App.Version,
			"go":  "1.21",
		},
	}

	if status == "ok" {
		return c.JSON(http.StatusOK, response)
	}
	return c.JSON(http.StatusServiceUnavailable, response)
}

func (s *Server) readinessCheck(c echo.Context) error {
	if s.db != nil {
		if err := s.db.Ping(); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": "database_not_ready",
			})
		}
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Start starts the HTTP server
func (s *Server) Start(address string) error {
	s.logger.Info("Starting server", "address", address)
	s.echo.Server.ReadTimeout = s.config.Server.ReadTimeout
	s.echo.Server.WriteTimeout = s.config.Server.WriteTimeout
	s.echo.Server.IdleTimeout = s.config.Server.IdleTimeout
	return s.echo.Start(address)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")
	return s.echo.Shutdown(ctx)
}

// customErrorHandler handles HTTP errors
func customErrorHandler(logger *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var (
			code = http.StatusInternalServerError
			msg  interface{}
		)

		var he *echo.HTTPError
		var ve validator.ValidationErrors
		if errors.As(err, &he) {
			code = he.Code
			msg = he.Message
			if _, isString := msg.(string); isString {
				msg = map[string]interface{}{"message": msg}
			}
			if he.Internal != nil {
				err = fmt.Errorf("%v, %v", err, he.Internal)
			}
		} else if errors.As(err, &ve) {
			code = http.StatusBadRequest
			msg = map[string]string{"message": "validation failed", "details": ve.Error()}
		} else {
			msg = map[string]string{"message": http.StatusText(code)}
		}

		if code == http.StatusInternalServerError {
			logger.Error("Internal server error", "error", err, "path", c.Request().URL.Path)
		}

		if !c.Response().Committed {
			if c.Request().Method == echo.HEAD {
				err = c.NoContent(code)
			} else {
				err = c.JSON(code, msg)
			}
			if err != nil {
				logger.Error("Error sending response", "error", err)
			}
		}
	}
}
