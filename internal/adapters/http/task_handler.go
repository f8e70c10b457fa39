package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/familyboard/core/internal/application/services"
	"github.com/familyboard/core/internal/infrastructure/logger"
	"github.com/familyboard/core/internal/ports"
)

// TaskHandler handles task-related requests
type TaskHandler struct {
	taskService *services.TaskService
	logger      *logger.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(taskService *services.TaskService, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		logger:      logger,
	}
}

// ListTasks godoc
// @Summary Task board
// @Description Mirrored tasks grouped into pending and done, with display status, progress and remaining time. The mother sees every task, members their own.
// @Tags tasks
// @Produce json
// @Success 200 {object} ports.TaskBoard
// @Security BearerAuth
// @Router /tasks [get]
func (h *TaskHandler) ListTasks(c echo.Context) error {
	return c.JSON(http.StatusOK, h.taskService.Board(getRoleFromContext(c)))
}

// GetTask godoc
// @Summary Get one task
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} ports.TaskView
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id} [get]
func (h *TaskHandler) GetTask(c echo.Context) error {
	view, err := h.taskService.GetTask(getRoleFromContext(c), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, view)
}

// CreateTask godoc
// @Summary Create a task
// @Description Mother only. The deadline is duration_hours (default 3, minimum 0.1) after creation.
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body ports.CreateTaskRequest true "Task"
// @Success 201 {object} entities.Task
// @Failure 400 {object} ValidationErrorResponse
// @Failure 403 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks [post]
func (h *TaskHandler) CreateTask(c echo.Context) error {
	var req ports.CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	task, err := h.taskService.CreateTask(c.Request().Context(), getRoleFromContext(c), req)
	if err != nil {
		h.logger.Warn("Create task failed", "error", err)
		return mapError(err)
	}

	return c.JSON(http.StatusCreated, task)
}

// UpdateTask godoc
// @Summary Edit a task
// @Description Mother only. Keeps the creation time and recomputes the deadline from it.
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body ports.UpdateTaskRequest true "Task"
// @Success 200 {object} entities.Task
// @Failure 400 {object} ValidationErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id} [put]
func (h *TaskHandler) UpdateTask(c echo.Context) error {
	var req ports.UpdateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	id := c.Param("id")
	task, err := h.taskService.UpdateTask(c.Request().Context(), getRoleFromContext(c), id, req)
	if err != nil {
		h.logger.Warn("Update task failed", "error", err, "task_id", id)
		return mapError(err)
	}

	return c.JSON(http.StatusOK, task)
}

// DeleteTask godoc
// @Summary Delete a task
// @Tags tasks
// @Param id path string true "Task ID"
// @Success 204
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(c echo.Context) error {
	id := c.Param("id")
	if err := h.taskService.DeleteTask(c.Request().Context(), getRoleFromContext(c), id); err != nil {
		h.logger.Warn("Delete task failed", "error", err, "task_id", id)
		return mapError(err)
	}

	return c.NoContent(http.StatusNoContent)
}

// ToggleTask godoc
// @Summary Toggle a task between pending and done
// @Description Only the assignee may toggle.
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} entities.Task
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/toggle [post]
func (h *TaskHandler) ToggleTask(c echo.Context) error {
	id := c.Param("id")
	task, err := h.taskService.ToggleTask(c.Request().Context(), getRoleFromContext(c), id)
	if err != nil {
		h.logger.Warn("Toggle task failed", "error", err, "task_id", id)
		return mapError(err)
	}

	return c.JSON(http.StatusOK, task)
}
