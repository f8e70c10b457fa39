package entities

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Common errors
var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidRole       = errors.New("invalid role")
	ErrNotAssignable     = errors.New("role cannot be assigned tasks")
	ErrSessionExpired    = errors.New("session expired")
	ErrTargetMissing     = errors.New("target missing: to or externalId")
	ErrPushNotConfigured = errors.New("push provider not configured")
)

// Role is one of the three fixed family roles.
type Role string

const (
	RoleMother Role = "mother"
	RoleFather Role = "father"
	RoleSon    Role = "son"
)

// Roles lists every role in display order.
var Roles = []Role{RoleMother, RoleFather, RoleSon}

// ParseRole validates a role string.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.TrimSpace(s)); r {
	case RoleMother, RoleFather, RoleSon:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

// Assignable reports whether tasks may be assigned to the role.
func (r Role) Assignable() bool {
	return r == RoleFather || r == RoleSon
}

// TaskStatus is the stored two-state status of a task.
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusDone    TaskStatus = "done"
)

// Toggle flips pending and done.
func (s TaskStatus) Toggle() TaskStatus {
	if s == TaskStatusDone {
		return TaskStatusPending
	}
	return TaskStatusDone
}

// DisplayStatus is derived from a task and the wall clock; it is never stored.
type DisplayStatus string

const (
	DisplayPending DisplayStatus = "pending"
	DisplayOverdue DisplayStatus = "overdue"
	DisplayDone    DisplayStatus = "done"
)

// Profile is a member's display name and contact email.
type Profile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// DefaultProfiles returns the profiles used before anyone has logged in.
func DefaultProfiles() map[Role]Profile {
	return map[Role]Profile{
		RoleMother: {Name: "Mom"},
		RoleFather: {Name: "Dad"},
		RoleSon:    {Name: "Son"},
	}
}

// DisplayName returns the profile name, falling back to the role default.
func DisplayName(profiles map[Role]Profile, r Role) string {
	if p, ok := profiles[r]; ok && strings.TrimSpace(p.Name) != "" {
		return p.Name
	}
	return DefaultProfiles()[r].Name
}

const (
	DefaultWarnMinutes = 30
	MinWarnMinutes     = 1
	MaxWarnMinutes     = 1440
)

// Settings holds the reminder lead time.
type Settings struct {
	WarnMinutes int `json:"warn_minutes"`
}

// DefaultSettings returns the settings used on a fresh device.
func DefaultSettings() Settings {
	return Settings{WarnMinutes: DefaultWarnMinutes}
}

// Normalize clamps WarnMinutes into the accepted range.
func (s Settings) Normalize() Settings {
	s.WarnMinutes = int(Clamp(float64(s.WarnMinutes), MinWarnMinutes, MaxWarnMinutes))
	return s
}

// WarnWindow returns the lead time as a duration.
func (s Settings) WarnWindow() time.Duration {
	if s.WarnMinutes <= 0 {
		return DefaultWarnMinutes * time.Minute
	}
	return time.Duration(s.WarnMinutes) * time.Minute
}

// SessionTTL is how long a local login stays valid.
const SessionTTL = 24 * time.Hour

// Session is the role currently logged in on this device.
type Session struct {
	Role      Role  `json:"role"`
	ExpiresAt int64 `json:"expiresAt"`
}

// Valid reports whether the session has a role and has not expired at now.
func (s Session) Valid(now time.Time) bool {
	return s.Role != "" && s.ExpiresAt > 0 && now.UnixMilli() < s.ExpiresAt
}

// MailLogLimit caps the number of mail log entries kept on a device.
const MailLogLimit = 60

// MailLogEntry records one notification attempt.
type MailLogEntry struct {
	ID   string    `json:"id"`
	To   string    `json:"to"`
	Text string    `json:"text"`
	Time time.Time `json:"time"`
}

// PrependMailLog returns log with entry in front, truncated to MailLogLimit.
func PrependMailLog(log []MailLogEntry, entry MailLogEntry) []MailLogEntry {
	out := make([]MailLogEntry, 0, MailLogLimit)
	out = append(out, entry)
	for _, e := range log {
		if len(out) == MailLogLimit {
			break
		}
		out = append(out, e)
	}
	return out
}

// Task represents a family task
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Notes       string     `json:"notes,omitempty"`
	Assignee    Role       `json:"assignee"`
	CreatedAt   time.Time  `json:"created_at"`
	DueAt       time.Time  `json:"due_at"`
	Status      TaskStatus `json:"status"`
	Notified    bool       `json:"notified"`
	CreatorRole Role       `json:"creator_role,omitempty"`
}

// Duration returns the time allotted to the task.
func (t *Task) Duration() time.Duration {
	return t.DueAt.Sub(t.CreatedAt)
}

// DurationHours returns the allotted time in hours, floored at MinDurationHours.
func (t *Task) DurationHours() float64 {
	h := t.Duration().Hours()
	if h < MinDurationHours {
		return MinDurationHours
	}
	return h
}

// IsOverdue reports whether the task is pending past its deadline.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.Status == TaskStatusPending && !now.Before(t.DueAt)
}

// InReminderWindow reports whether now lies in [DueAt-warn, DueAt).
func (t *Task) InReminderWindow(now time.Time, warn time.Duration) bool {
	return !now.Before(t.DueAt.Add(-warn)) && now.Before(t.DueAt)
}

// NeedsReminder reports whether a reminder may still fire for the task at now.
func (t *Task) NeedsReminder(now time.Time, warn time.Duration) bool {
	return t.Status == TaskStatusPending && !t.Notified && t.InReminderWindow(now, warn)
}

// DeriveDisplayStatus computes the display state of a task at now.
func DeriveDisplayStatus(t Task, now time.Time) DisplayStatus {
	switch {
	case t.Status == TaskStatusDone:
		return DisplayDone
	case t.IsOverdue(now):
		return DisplayOverdue
	default:
		return DisplayPending
	}
}

// Progress returns the elapsed fraction of the task's allotted time in [0, 1].
func Progress(t Task, now time.Time) float64 {
	total := t.DueAt.Sub(t.CreatedAt).Milliseconds()
	if total < 1 {
		total = 1
	}
	elapsed := now.Sub(t.CreatedAt).Milliseconds()
	return Clamp(float64(elapsed)/float64(total), 0, 1)
}

// SortByCreatedDesc orders tasks newest first.
func SortByCreatedDesc(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
}

const (
	DefaultDurationHours = 3.0
	MinDurationHours     = 0.1
)

// NewTask holds the fields needed to insert a task.
type NewTask struct {
	Title       string
	Notes       string
	Assignee    Role
	CreatedAt   time.Time
	DueAt       time.Time
	CreatorRole Role
}

// TaskPatch is a partial update; nil fields are left untouched.
type TaskPatch struct {
	Title    *string
	Notes    *string
	Assignee *Role
	DueAt    *time.Time
	Status   *TaskStatus
	Notified *bool
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Notes == nil && p.Assignee == nil &&
		p.DueAt == nil && p.Status == nil && p.Notified == nil
}

// ValidationError carries per-field messages for inline display.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a message for field.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

// OrNil returns e when it holds any field, nil otherwise.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}
