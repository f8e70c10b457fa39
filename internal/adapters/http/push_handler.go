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

// PushHandler serves the privileged push endpoint. The provider's REST key
// never leaves this process.
type PushHandler struct {
	notifications *services.NotificationService
	logger        *logger.Logger
}

// NewPushHandler creates a new push handler
func NewPushHandler(notifications *services.NotificationService, logger *logger.Logger) *PushHandler {
	return &PushHandler{
		notifications: notifications,
		logger:        logger,
	}
}

// Send godoc
// @Summary Send a push notification
// @Description Target every device tagged with a role ("to") or one registered identity ("externalId"); externalId wins when both are set. scheduleAt defers delivery.
// @Tags push
// @Accept json
// @Produce json
// @Param request body ports.PushRequest true "Push message"
// @Success 200 {object} ports.PushResponse
// @Failure 400 {object} ports.PushResponse
// @Failure 500 {object} ports.PushResponse
// @Router /push [post]
func (h *PushHandler) Send(c echo.Context) error {
	var req ports.PushRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ports.PushResponse{OK: false, Error: "invalid request body"})
	}

	data, err := h.notifications.SendPush(c.Request().Context(), req)
	if err != nil {
		var (
			verr *entities.ValidationError
			perr *ports.ProviderError
		)
		switch {
		case errors.Is(err, entities.ErrTargetMissing):
			return c.JSON(http.StatusBadRequest, ports.PushResponse{OK: false, Error: err.Error()})
		case errors.As(err, &verr):
			return c.JSON(http.StatusBadRequest, ports.PushResponse{OK: false, Error: verr.Fields})
		case errors.As(err, &perr):
			return c.JSON(http.StatusInternalServerError, ports.PushResponse{OK: false, Error: perr.Body})
		default:
			h.logger.Error("Push send failed", "error", err)
			return c.JSON(http.StatusInternalServerError, ports.PushResponse{OK: false, Error: err.Error()})
		}
	}

	return c.JSON(http.StatusOK, ports.PushResponse{OK: true, Data: data})
}
