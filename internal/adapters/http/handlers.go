package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/familyboard/core/internal/application/services"
	"github.com/familyboard/core/internal/domain/entities"
	"github.com/familyboard/core/internal/infrastructure/logger"
	"github.com/familyboard/core/internal/ports"
)

// ContextKeyRole is the echo context key the auth middleware stores the
// session role under.
const ContextKeyRole = "role"

// AuthHandler handles session requests
type AuthHandler struct {
	authService *services.AuthService
	logger      *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *services.AuthService, logger *logger.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// Login godoc
// @Summary Log in as a family role
// @Description Save the member's profile, open a 24h session on this device and register it for push
// @Tags session
// @Accept json
// @Produce json
// @Param request body ports.LoginRequest true "Role and profile"
// @Success 200 {object} ports.AuthResponse
// @Failure 400 {object} ValidationErrorResponse
// @Router /session [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req ports.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	response, err := h.authService.Login(c.Request().Context(), req)
	if err != nil {
		h.logger.Warn("Login failed", "error", err, "role", req.Role)
		return mapError(err)
	}

	return c.JSON(http.StatusOK, response)
}

// Logout godoc
// @Summary Log out
// @Tags session
// @Produce json
// @Success 200 {object} MessageResponse
// @Security BearerAuth
// @Router /session [delete]
func (h *AuthHandler) Logout(c echo.Context) error {
	role := getRoleFromContext(c)

	if err := h.authService.Logout(c.Request().Context(), role); err != nil {
		h.logger.Error("Logout failed", "error", err, "role", role)
		return echo.NewHTTPError(http.StatusInternalServerError, "Logout failed")
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

// Session godoc
// @Summary Current session
// @Tags session
// @Produce json
// @Success 200 {object} entities.Session
// @Security BearerAuth
// @Router /session [get]
func (h *AuthHandler) Session(c echo.Context) error {
	session, ok := h.authService.CurrentSession()
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Session expired")
	}
	return c.JSON(http.StatusOK, session)
}

// SettingsHandler handles profile, settings and mail log requests
type SettingsHandler struct {
	settingsService *services.SettingsService
	logger          *logger.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settingsService *services.SettingsService, logger *logger.Logger) *SettingsHandler {
	return &SettingsHandler{
		settingsService: settingsService,
		logger:          logger,
	}
}

// ListProfiles godoc
// @Summary Family profiles
// @Tags settings
// @Produce json
// @Success 200 {object} map[string]entities.Profile
// @Security BearerAuth
// @Router /profiles [get]
func (h *SettingsHandler) ListProfiles(c echo.Context) error {
	return c.JSON(http.StatusOK, h.settingsService.Profiles())
}

// GetSettings godoc
// @Summary Reminder settings
// @Tags settings
// @Produce json
// @Success 200 {object} entities.Settings
// @Security BearerAuth
// @Router /settings [get]
func (h *SettingsHandler) GetSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, h.settingsService.Settings())
}

// UpdateSettings godoc
// @Summary Change the reminder lead time
// @Description Minutes before the deadline at which the reminder fires, clamped to 1..1440
// @Tags settings
// @Accept json
// @Produce json
// @Param request body ports.UpdateSettingsRequest true "Settings"
// @Success 200 {object} entities.Settings
// @Failure 403 {object} ErrorResponse
// @Security BearerAuth
// @Router /settings [put]
func (h *SettingsHandler) UpdateSettings(c echo.Context) error {
	var req ports.UpdateSettingsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	settings, err := h.settingsService.UpdateSettings(getRoleFromContext(c), req)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusOK, settings)
}

// ListMailLog godoc
// @Summary Notification log
// @Description The mother sees every entry, other members only entries sent to their own email
// @Tags settings
// @Produce json
// @Success 200 {array} entities.MailLogEntry
// @Security BearerAuth
// @Router /mail-log [get]
func (h *SettingsHandler) ListMailLog(c echo.Context) error {
	return c.JSON(http.StatusOK, h.settingsService.MailLog(getRoleFromContext(c)))
}

// Utility functions and helper types

func getRoleFromContext(c echo.Context) entities.Role {
	role, ok := c.Get(ContextKeyRole).(entities.Role)
	if !ok {
		return ""
	}
	return role
}

// mapError turns a service error into the matching HTTP error.
func mapError(err error) error {
	var verr *entities.ValidationError
	switch {
	case errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusBadRequest, ValidationErrorResponse{
			Message: "validation failed",
			Fields:  verr.Fields,
		})
	case errors.Is(err, entities.ErrInvalidRole):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, entities.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
	case errors.Is(err, entities.ErrTaskNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Task not found")
	case errors.Is(err, entities.ErrSessionExpired):
		return echo.NewHTTPError(http.StatusUnauthorized, "Session expired")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error").SetInternal(err)
	}
}

// Request/Response types

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type ValidationErrorResponse struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}
