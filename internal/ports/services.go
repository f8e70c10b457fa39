package ports

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/familyboard/core/internal/domain/entities"
)

// Dispatcher sends notifications through the email and push collaborators.
type Dispatcher interface {
	SendEmail(ctx context.Context, to, text, displayName string) bool
	SendPush(ctx context.Context, req PushRequest) (json.RawMessage, error)
	// NotifyRole pushes to every device tagged with role; false when push is
	// not configured or delivery failed.
	NotifyRole(ctx context.Context, role entities.Role, title, body string) bool
	PushConfigured() bool
}

// Claims represents the authenticated session carried by a token
type Claims struct {
	Role      entities.Role `json:"role"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// Auth related types
type LoginRequest struct {
	Role  string `json:"role" validate:"required,oneof=mother father son"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type AuthResponse struct {
	Token     string           `json:"token"`
	Role      entities.Role    `json:"role"`
	Profile   entities.Profile `json:"profile"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// Task related types
type CreateTaskRequest struct {
	Title         string   `json:"title"`
	Notes         string   `json:"notes"`
	Assignee      string   `json:"assignee" validate:"required,oneof=father son"`
	DurationHours *float64 `json:"duration_hours"`
}

type UpdateTaskRequest struct {
	Title         string   `json:"title"`
	Notes         string   `json:"notes"`
	Assignee      string   `json:"assignee" validate:"required,oneof=father son"`
	DurationHours *float64 `json:"duration_hours"`
}

type UpdateSettingsRequest struct {
	WarnMinutes int `json:"warn_minutes" validate:"required"`
}

// TaskView is a task with its derived display fields.
type TaskView struct {
	entities.Task
	DisplayStatus entities.DisplayStatus `json:"display_status"`
	Progress      float64                `json:"progress"`
	Remaining     string                 `json:"remaining"`
	DurationHours float64                `json:"duration_hours"`
	AssigneeName  string                 `json:"assignee_name"`
}

// TaskBoard groups task views the way the dashboards show them.
type TaskBoard struct {
	Pending []TaskView `json:"pending"`
	Done    []TaskView `json:"done"`
}

// PushRequest is the body of POST /push.
type PushRequest struct {
	To         string  `json:"to,omitempty"`
	ExternalID string  `json:"externalId,omitempty"`
	Title      string  `json:"title"`
	Body       string  `json:"body"`
	ScheduleAt *string `json:"scheduleAt,omitempty"`
}

// PushResponse is the body returned by POST /push.
type PushResponse struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error interface{}     `json:"error,omitempty"`
}

// ProviderError is a non-success response from an external delivery provider.
type ProviderError struct {
	Provider string
	Status   int
	Body     json.RawMessage
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s responded with status %d", e.Provider, e.Status)
}
