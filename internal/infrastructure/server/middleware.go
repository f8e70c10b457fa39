package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	httpHandlers "github.com/familyboard/core/internal/adapters/http"
	"github.com/familyboard/core/internal/application/services"
	"github.com/familyboard/core/internal/domain/entities"
)

// authMiddleware validates session tokens
func (s *Server) authMiddleware(authService *services.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization header")
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			claims, err := authService.ValidateToken(tokenString)
			if err != nil {
				s.logger.LogSecurityEvent("invalid_token", "", c.RealIP(), map[string]interface{}{
					"error": err.Error(),
				})
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			c.Set(httpHandlers.ContextKeyRole, claims.Role)

			return next(c)
		}
	}
}

// requireRole checks if the session has one of the given roles
func (s *Server) requireRole(roles ...entities.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(httpHandlers.ContextKeyRole).(entities.Role)
			if !ok {
				return echo.NewHTTPError(http.StatusInternalServerError, "Failed to get role from context")
			}

			for _, required := range roles {
				if role == required {
					return next(c)
				}
			}

			s.logger.LogSecurityEvent("insufficient_permissions",
				string(role),
				c.RealIP(),
				map[string]interface{}{
					"required_roles": roles,
					"endpoint":       c.Request().URL.Path,
				})

			return echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
		}
	}
}

// metricsMiddleware records request counts and latency
func (s *Server) metricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		err := next(c)

		status := c.Response().Status
		if he, ok := err.(*echo.HTTPError); ok {
			status = he.Code
		}

		s.metrics.RequestsTotal.WithLabelValues(
			c.Request().Method,
			c.Path(),
			fmt.Sprintf("%d", status),
		).Inc()

		s.metrics.RequestDuration.WithLabelValues(
			c.Request().Method,
			c.Path(),
		).Observe(time.Since(start).Seconds())

		return err
	}
}
