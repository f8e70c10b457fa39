// Package lifecycle keeps a local mirror of the shared task collection and
// drives the one-shot reminder and completion notices from it.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/familyboard/core/internal/domain/entities"
	"github.com/familyboard/core/internal/infrastructure/config"
	"github.com/familyboard/core/internal/infrastructure/logger"
	"github.com/familyboard/core/internal/infrastructure/metrics"
	"github.com/familyboard/core/internal/ports"
)

const (
	reminderTitle   = "Task reminder"
	completionTitle = "Task done"

	defaultTickInterval = time.Second
	defaultSendTimeout  = 15 * time.Second
	resubscribeDelay    = 5 * time.Second
)

// Engine owns the task mirror. Run drives it from a single goroutine; the
// read accessors may be called from any goroutine.
type Engine struct {
	store    ports.TaskStore
	dispatch ports.Dispatcher
	local    ports.LocalStore
	clock    entities.Clock
	metrics  *metrics.Metrics
	logger   *logger.Logger

	tickInterval time.Duration
	sendTimeout  time.Duration

	mu         sync.RWMutex
	tasks      []entities.Task
	prevStatus map[string]entities.TaskStatus
	writeBacks map[string]struct{}
}

var _ ports.TaskMirror = (*Engine)(nil)

// NewEngine creates an engine with an empty mirror.
func NewEngine(
	store ports.TaskStore,
	dispatch ports.Dispatcher,
	local ports.LocalStore,
	cfg config.EngineConfig,
	m *metrics.Metrics,
	clock entities.Clock,
	log *logger.Logger,
) *Engine {
	if clock == nil {
		clock = entities.SystemClock
	}
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = defaultTickInterval
	}
	send := cfg.SendTimeout
	if send <= 0 {
		send = defaultSendTimeout
	}
	return &Engine{
		store:        store,
		dispatch:     dispatch,
		local:        local,
		clock:        clock,
		metrics:      m,
		logger:       log.WithComponent("lifecycle"),
		tickInterval: tick,
		sendTimeout:  send,
		prevStatus:   make(map[string]entities.TaskStatus),
		writeBacks:   make(map[string]struct{}),
	}
}

// LoadSnapshot replaces the mirror with the full remote collection. On error
// the mirror is left as it was.
func (e *Engine) LoadSnapshot(ctx context.Context) []entities.Task {
	tasks, err := e.store.SelectAll(ctx)
	if err != nil {
		e.logger.LogStoreFailure("select_all", "", err)
		return e.Tasks()
	}

	entities.SortByCreatedDesc(tasks)

	e.mu.Lock()
	local := make(map[string]bool, len(e.tasks))
	for _, t := range e.tasks {
		local[t.ID] = t.Notified
	}
	for i := range tasks {
		// A reminder whose write-back has not landed yet must not fire again.
		if _, pending := e.writeBacks[tasks[i].ID]; pending && local[tasks[i].ID] {
			tasks[i].Notified = true
		}
	}
	e.tasks = tasks
	n := len(e.tasks)
	e.mu.Unlock()

	e.metrics.SetMirrored(n)
	e.logger.Debugw("Task snapshot loaded", "tasks", n)
	return e.Tasks()
}

// ApplyRemoteChange merges one change feed event into the mirror. Applying
// the same event twice leaves the mirror unchanged.
func (e *Engine) ApplyRemoteChange(ctx context.Context, ev ports.ChangeEvent) {
	if ev.Kind == ports.ChangeResync {
		e.metrics.ObserveChangeEvent(string(ev.Kind))
		e.LoadSnapshot(ctx)
		return
	}

	id := ev.TaskID()
	if id == "" {
		return
	}

	e.mu.Lock()
	idx := e.indexOf(id)
	switch ev.Kind {
	case ports.ChangeInsert:
		if ev.New == nil {
			e.mu.Unlock()
			return
		}
		if idx >= 0 {
			e.tasks[idx] = mergeNotified(e.tasks[idx], *ev.New)
		} else {
			e.tasks = append([]entities.Task{*ev.New}, e.tasks...)
		}
	case ports.ChangeUpdate:
		if ev.New == nil || idx < 0 {
			e.mu.Unlock()
			return
		}
		e.tasks[idx] = mergeNotified(e.tasks[idx], *ev.New)
	case ports.ChangeDelete:
		if idx >= 0 {
			e.tasks = append(e.tasks[:idx], e.tasks[idx+1:]...)
		}
		delete(e.writeBacks, id)
	default:
		e.mu.Unlock()
		return
	}
	n := len(e.tasks)
	e.mu.Unlock()

	e.metrics.ObserveChangeEvent(string(ev.Kind))
	e.metrics.SetMirrored(n)
}

// mergeNotified keeps a local notified=true over an incoming false.
func mergeNotified(local, incoming entities.Task) entities.Task {
	if local.Notified {
		incoming.Notified = true
	}
	return incoming
}

// Tasks returns a copy of the mirror, newest first.
func (e *Engine) Tasks() []entities.Task {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]entities.Task, len(e.tasks))
	copy(out, e.tasks)
	return out
}

// Task returns a copy of one mirrored task.
func (e *Engine) Task(id string) (entities.Task, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if idx := e.indexOf(id); idx >= 0 {
		return e.tasks[idx], true
	}
	return entities.Task{}, false
}

func (e *Engine) indexOf(id string) int {
	for i := range e.tasks {
		if e.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// Tick runs one pass of the periodic checks against a single snapshot of
// the mirror. Changes applied during the pass are seen on the next tick.
func (e *Engine) Tick(ctx context.Context, now time.Time) {
	e.retryWriteBacks(ctx)
	snapshot := e.Tasks()
	e.checkReminders(ctx, snapshot, now, e.local.Settings().WarnWindow())
	e.CheckCompletions(ctx, snapshot)
}

// CheckReminders fires the pre-deadline reminder for every task that is
// pending, not yet notified and inside [due-warn, due). Windows that have
// already elapsed are skipped.
func (e *Engine) CheckReminders(ctx context.Context, now time.Time, warn time.Duration) {
	e.checkReminders(ctx, e.Tasks(), now, warn)
}

func (e *Engine) checkReminders(ctx context.Context, snapshot []entities.Task, now time.Time, warn time.Duration) {
	for _, t := range snapshot {
		if !t.NeedsReminder(now, warn) {
			continue
		}

		claimed, err := e.store.MarkNotified(ctx, t.ID)
		e.markLocal(t.ID)

		switch {
		case errors.Is(err, entities.ErrTaskNotFound):
			e.metrics.ObserveReminder("task_gone")
			continue
		case err != nil:
			e.logger.LogStoreFailure("mark_notified", t.ID, err)
			e.queueWriteBack(t.ID)
		case !claimed:
			e.metrics.ObserveReminder("claimed_elsewhere")
			e.logger.WithTask(t.ID).Debug("Reminder already claimed by another node")
			continue
		}

		if e.sendReminder(ctx, t, now) {
			e.metrics.ObserveReminder("sent")
		} else {
			e.metrics.ObserveReminder("no_channel")
		}
	}
}

// sendReminder reports whether any delivery channel was attempted.
func (e *Engine) sendReminder(ctx context.Context, t entities.Task, now time.Time) bool {
	ctx, cancel := context.WithTimeout(ctx, e.sendTimeout)
	defer cancel()

	text := fmt.Sprintf("Reminder: \"%s\" ends in %s ⏳", t.Title, entities.FormatRemaining(t.DueAt.Sub(now)))
	profile := e.local.Profile(t.Assignee)
	attempted := false
	if entities.IsValidEmail(profile.Email) {
		e.dispatch.SendEmail(ctx, profile.Email, text, profile.Name)
		attempted = true
	}
	if e.dispatch.PushConfigured() {
		e.dispatch.NotifyRole(ctx, t.Assignee, reminderTitle, text)
		attempted = true
	}

	log := e.logger.WithTask(t.ID)
	if !attempted {
		log.Warnw("No delivery channel for reminder", "assignee", t.Assignee, "due_at", t.DueAt)
		return false
	}
	log.Infow("Reminder sent", "assignee", t.Assignee, "due_at", t.DueAt)
	return true
}

func (e *Engine) markLocal(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if idx := e.indexOf(id); idx >= 0 {
		e.tasks[idx].Notified = true
	}
}

func (e *Engine) queueWriteBack(id string) {
	e.mu.Lock()
	e.writeBacks[id] = struct{}{}
	e.mu.Unlock()
}

// PendingWriteBacks returns the ids whose notified flag has not reached the
// remote store yet.
func (e *Engine) PendingWriteBacks() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.writeBacks))
	for id := range e.writeBacks {
		ids = append(ids, id)
	}
	return ids
}

func (e *Engine) retryWriteBacks(ctx context.Context) {
	for _, id := range e.PendingWriteBacks() {
		_, err := e.store.MarkNotified(ctx, id)
		if err != nil && !errors.Is(err, entities.ErrTaskNotFound) {
			e.logger.LogStoreFailure("mark_notified_retry", id, err)
			continue
		}
		e.mu.Lock()
		delete(e.writeBacks, id)
		e.mu.Unlock()
	}
}

// CheckCompletions notifies the mother for every task that moved from
// pending to done since the last observation, then records the statuses.
func (e *Engine) CheckCompletions(ctx context.Context, current []entities.Task) {
	e.mu.Lock()
	completed := DetectCompletions(e.prevStatus, current)
	e.mu.Unlock()

	for _, t := range completed {
		e.sendCompletion(ctx, t)
		e.metrics.ObserveCompletion()
	}
}

// DetectCompletions returns the tasks in current whose recorded status in
// prev was pending and is now done, then records every current status in
// prev. A task seen for the first time is only recorded. Entries for tasks
// no longer present are dropped.
func DetectCompletions(prev map[string]entities.TaskStatus, current []entities.Task) []entities.Task {
	var completed []entities.Task
	seen := make(map[string]struct{}, len(current))
	for _, t := range current {
		seen[t.ID] = struct{}{}
		before, known := prev[t.ID]
		if known && before == entities.TaskStatusPending && t.Status == entities.TaskStatusDone {
			completed = append(completed, t)
		}
		prev[t.ID] = t.Status
	}
	for id := range prev {
		if _, ok := seen[id]; !ok {
			delete(prev, id)
		}
	}
	return completed
}

func (e *Engine) sendCompletion(ctx context.Context, t entities.Task) {
	ctx, cancel := context.WithTimeout(ctx, e.sendTimeout)
	defer cancel()

	profiles := e.local.Profiles()
	who := entities.DisplayName(profiles, t.Assignee)
	text := fmt.Sprintf("Task \"%s\" was done by %s ✅", t.Title, who)

	mother := profiles[entities.RoleMother]
	if entities.IsValidEmail(mother.Email) {
		e.dispatch.SendEmail(ctx, mother.Email, text, entities.DisplayName(profiles, entities.RoleMother))
	}
	if e.dispatch.PushConfigured() {
		e.dispatch.NotifyRole(ctx, entities.RoleMother, completionTitle, text)
	}
	e.logger.WithTask(t.ID).Infow("Completion notice sent", "assignee", t.Assignee)
}

// Run loads the snapshot, subscribes to the change feed and then serves
// ticks and change events until ctx is done. A lost subscription is
// re-established on a later tick, followed by a fresh snapshot.
func (e *Engine) Run(ctx context.Context) error {
	e.LoadSnapshot(ctx)
	e.CheckCompletions(ctx, e.Tasks())

	var (
		sub       ports.Subscription
		events    <-chan ports.ChangeEvent
		retryFrom time.Time
	)
	subscribe := func() {
		s, err := e.store.Subscribe(ctx)
		if err != nil {
			e.logger.WithError(err).Error("Failed to subscribe to task changes")
			retryFrom = e.clock().Add(resubscribeDelay)
			return
		}
		sub, events = s, s.Events()
	}
	defer func() {
		if sub != nil {
			_ = sub.Close()
		}
	}()

	subscribe()

	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	e.logger.Infow("Task lifecycle engine started", "tick", e.tickInterval)
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Task lifecycle engine stopped")
			return nil

		case <-ticker.C:
			now := e.clock()
			if sub == nil && !now.Before(retryFrom) {
				subscribe()
				if sub != nil {
					e.LoadSnapshot(ctx)
				}
			}
			e.Tick(ctx, now)

		case ev, ok := <-events:
			if !ok {
				e.logger.Warn("Task change feed closed")
				_ = sub.Close()
				sub, events = nil, nil
				retryFrom = e.clock().Add(resubscribeDelay)
				continue
			}
			e.ApplyRemoteChange(ctx, ev)
			e.CheckCompletions(ctx, e.Tasks())
		}
	}
}
