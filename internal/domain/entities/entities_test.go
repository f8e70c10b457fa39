package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func pendingTask(created time.Time, d time.Duration) Task {
	return Task{ID: "t1", Title: "bread", Assignee: RoleFather, CreatedAt: created, DueAt: created.Add(d), Status: TaskStatusPending}
}

func TestIsValidEmail(t *testing.T) {
	cases := map[string]bool{
		"a@b.co":           true,
		" dad@example.com": true,
		"a@b":              false,
		"":                 false,
		"a.com":            false,
		"a@b.c":            false,
		"a b@c.de":         false,
	}
	for in, want := range cases {
		assert.Equal(t, want, IsValidEmail(in), in)
	}
}

func TestFormatRemaining(t *testing.T) {
	assert.Equal(t, "finished", FormatRemaining(0))
	assert.Equal(t, "finished", FormatRemaining(-time.Second))
	assert.Equal(t, "42s", FormatRemaining(42*time.Second))
	assert.Equal(t, "5m 3s", FormatRemaining(5*time.Minute+3*time.Second))
	assert.Equal(t, "2h 10m", FormatRemaining(2*time.Hour+10*time.Minute+59*time.Second))
	assert.Equal(t, "1d 4h", FormatRemaining(28*time.Hour))
}

func TestDeriveDisplayStatus(t *testing.T) {
	task := pendingTask(t0, time.Hour)

	assert.Equal(t, DisplayPending, DeriveDisplayStatus(task, t0))
	assert.Equal(t, DisplayPending, DeriveDisplayStatus(task, task.DueAt.Add(-time.Millisecond)))
	assert.Equal(t, DisplayOverdue, DeriveDisplayStatus(task, task.DueAt))
	assert.Equal(t, DisplayOverdue, DeriveDisplayStatus(task, task.DueAt.Add(time.Hour)))

	// repeated calls are stable
	for i := 0; i < 3; i++ {
		assert.Equal(t, DisplayOverdue, DeriveDisplayStatus(task, task.DueAt))
	}

	task.Status = TaskStatusDone
	assert.Equal(t, DisplayDone, DeriveDisplayStatus(task, task.DueAt.Add(time.Hour)))
}

func TestProgress(t *testing.T) {
	task := pendingTask(t0, time.Hour)
	assert.Equal(t, 0.0, Progress(task, t0.Add(-time.Minute)))
	assert.InDelta(t, 0.5, Progress(task, t0.Add(30*time.Minute)), 1e-9)
	assert.Equal(t, 1.0, Progress(task, t0.Add(2*time.Hour)))

	zero := pendingTask(t0, 0)
	assert.Equal(t, 1.0, Progress(zero, t0.Add(time.Second)))
	assert.Equal(t, 0.0, Progress(zero, t0))
}

func TestNeedsReminder(t *testing.T) {
	task := pendingTask(t0, time.Hour)
	warn := 30 * time.Minute

	assert.False(t, task.NeedsReminder(t0.Add(29*time.Minute), warn))
	assert.True(t, task.NeedsReminder(t0.Add(30*time.Minute), warn))
	assert.True(t, task.NeedsReminder(task.DueAt.Add(-time.Millisecond), warn))
	assert.False(t, task.NeedsReminder(task.DueAt, warn))

	task.Notified = true
	assert.False(t, task.NeedsReminder(t0.Add(45*time.Minute), warn))

	task.Notified = false
	task.Status = TaskStatusDone
	assert.False(t, task.NeedsReminder(t0.Add(45*time.Minute), warn))
}

func TestPrependMailLog(t *testing.T) {
	var log []MailLogEntry
	for i := 0; i < MailLogLimit; i++ {
		log = PrependMailLog(log, MailLogEntry{ID: string(rune('A' + i%26)), Text: "msg", Time: t0.Add(time.Duration(i) * time.Second)})
	}
	require.Len(t, log, MailLogLimit)
	oldest := log[len(log)-1]
	newestBefore := log[0]

	log = PrependMailLog(log, MailLogEntry{ID: "new", Time: t0.Add(time.Hour)})
	require.Len(t, log, MailLogLimit)
	assert.Equal(t, "new", log[0].ID)
	assert.Equal(t, newestBefore, log[1])
	assert.NotEqual(t, oldest.Time, log[len(log)-1].Time)
	for i := 1; i < len(log); i++ {
		assert.True(t, !log[i].Time.After(log[i-1].Time), "entries must stay newest first")
	}
}

func TestSettingsNormalize(t *testing.T) {
	assert.Equal(t, 1, Settings{WarnMinutes: 0}.Normalize().WarnMinutes)
	assert.Equal(t, 1440, Settings{WarnMinutes: 5000}.Normalize().WarnMinutes)
	assert.Equal(t, 45, Settings{WarnMinutes: 45}.Normalize().WarnMinutes)
	assert.Equal(t, 30*time.Minute, DefaultSettings().WarnWindow())
}

func TestSessionValid(t *testing.T) {
	s := Session{Role: RoleSon, ExpiresAt: t0.Add(SessionTTL).UnixMilli()}
	assert.True(t, s.Valid(t0))
	assert.False(t, s.Valid(t0.Add(SessionTTL)))
	assert.False(t, Session{}.Valid(t0))
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("father")
	require.NoError(t, err)
	assert.Equal(t, RoleFather, r)
	assert.True(t, r.Assignable())
	assert.False(t, RoleMother.Assignable())

	_, err = ParseRole("dad")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestDisplayName(t *testing.T) {
	profiles := map[Role]Profile{RoleFather: {Name: "Reza"}}
	assert.Equal(t, "Reza", DisplayName(profiles, RoleFather))
	assert.Equal(t, "Son", DisplayName(profiles, RoleSon))
}

func TestValidationError(t *testing.T) {
	var v ValidationError
	assert.Nil(t, v.OrNil())
	v.Add("title", "required")
	v.Add("duration", "must be positive")
	err := v.OrNil()
	require.Error(t, err)
	assert.Equal(t, "validation failed: duration: must be positive; title: required", err.Error())
}
