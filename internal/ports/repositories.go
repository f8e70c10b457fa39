package ports

import (
	"context"
	"time"

	"github.com/familyboard/core/internal/domain/entities"
)

// ChangeKind names the kind of a change-feed event.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
	// ChangeResync asks the consumer to reload the whole collection, e.g. after
	// the feed lost its connection and events may have been dropped.
	ChangeResync ChangeKind = "resync"
)

// ChangeEvent is one entry of the task change feed. New is set for insert and
// update; Old carries at least the id for delete.
type ChangeEvent struct {
	Kind ChangeKind
	New  *entities.Task
	Old  *entities.Task
}

// TaskID returns the id the event refers to.
func (e ChangeEvent) TaskID() string {
	if e.New != nil {
		return e.New.ID
	}
	if e.Old != nil {
		return e.Old.ID
	}
	return ""
}

// Subscription is a live change feed. Close releases it.
type Subscription interface {
	Events() <-chan ChangeEvent
	Close() error
}

// TaskStore defines the interface for the shared task collection
type TaskStore interface {
	SelectAll(ctx context.Context) ([]entities.Task, error)
	Get(ctx context.Context, id string) (*entities.Task, error)
	Insert(ctx context.Context, task entities.NewTask) (*entities.Task, error)
	Update(ctx context.Context, id string, patch entities.TaskPatch) error
	Delete(ctx context.Context, id string) error
	// MarkNotified sets notified=true only if it is not already set and reports
	// whether this call made the change.
	MarkNotified(ctx context.Context, id string) (bool, error)
	Subscribe(ctx context.Context) (Subscription, error)
}

// LocalStore defines the device-local persisted state
type LocalStore interface {
	Session() (entities.Session, bool)
	SetSession(s entities.Session) error
	ClearSession() error

	Profiles() map[entities.Role]entities.Profile
	Profile(role entities.Role) entities.Profile
	SetProfile(role entities.Role, p entities.Profile) error

	Settings() entities.Settings
	SetSettings(s entities.Settings) error

	MailLog() []entities.MailLogEntry
	AppendMailLog(entry entities.MailLogEntry) error
}

// EmailParams are the template parameters handed to the email provider.
type EmailParams struct {
	ToEmail string `json:"to_email"`
	ToName  string `json:"to_name"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// EmailSender delivers templated email. Success is status 200.
type EmailSender interface {
	Send(ctx context.Context, serviceID, templateID string, params EmailParams) (int, error)
}

// PushMessage is a provider-agnostic push notification.
type PushMessage struct {
	Role       entities.Role
	ExternalID string
	Title      string
	Body       string
	SendAfter  *time.Time
}

// PushSender delivers push notifications and returns the provider response.
type PushSender interface {
	Configured() bool
	Send(ctx context.Context, msg PushMessage) ([]byte, error)
}

// DeviceRegistrar registers this device's identity with the push provider.
type DeviceRegistrar interface {
	Init(ctx context.Context) error
	Login(ctx context.Context, externalID string) error
	AddTag(ctx context.Context, externalID, key, value string) error
}

// TaskMirror is the read side of the local task mirror. ApplyRemoteChange
// lets writers reflect their own mutations before the feed echoes them.
type TaskMirror interface {
	Tasks() []entities.Task
	Task(id string) (entities.Task, bool)
	ApplyRemoteChange(ctx context.Context, ev ChangeEvent)
}
