package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/familyboard/core/internal/domain/entities"
	"github.com/familyboard/core/internal/infrastructure/logger"
	"github.com/familyboard/core/internal/ports"
)

// TaskService handles task-related operations
type TaskService struct {
	store  ports.TaskStore
	mirror ports.TaskMirror
	local  ports.LocalStore
	clock  entities.Clock
	logger *logger.Logger
}

// NewTaskService creates a new task service
func NewTaskService(store ports.TaskStore, mirror ports.TaskMirror, local ports.LocalStore, clock entities.Clock, logger *logger.Logger) *TaskService {
	if clock == nil {
		clock = entities.SystemClock
	}
	return &TaskService{
		store:  store,
		mirror: mirror,
		local:  local,
		clock:  clock,
		logger: logger,
	}
}

// taskForm is the validated content of a create or edit request.
type taskForm struct {
	title    string
	notes    string
	assignee entities.Role
	duration time.Duration
}

func validateTaskForm(title, notes, assignee string, hours *float64) (taskForm, error) {
	form := taskForm{
		title: strings.TrimSpace(title),
		notes: notes,
	}

	verr := &entities.ValidationError{}
	if form.title == "" {
		verr.Add("title", "enter a title")
	}

	role, err := entities.ParseRole(assignee)
	if err != nil || !role.Assignable() {
		verr.Add("assignee", "must be father or son")
	}
	form.assignee = role

	h := entities.DefaultDurationHours
	if hours != nil {
		h = *hours
	}
	if math.IsNaN(h) || math.IsInf(h, 0) || h <= 0 {
		verr.Add("duration_hours", "duration must be greater than zero")
	}
	if err := verr.OrNil(); err != nil {
		return form, err
	}

	h = math.Max(entities.MinDurationHours, h)
	form.duration = time.Duration(h * float64(time.Hour))
	return form, nil
}

// CreateTask creates a new task due duration_hours from now
func (s *TaskService) CreateTask(ctx context.Context, actor entities.Role, req ports.CreateTaskRequest) (*entities.Task, error) {
	if actor != entities.RoleMother {
		return nil, entities.ErrForbidden
	}

	form, err := validateTaskForm(req.Title, req.Notes, req.Assignee, req.DurationHours)
	if err != nil {
		return nil, err
	}

	createdAt := s.clock()
	task, err := s.store.Insert(ctx, entities.NewTask{
		Title:       form.title,
		Notes:       form.notes,
		Assignee:    form.assignee,
		CreatedAt:   createdAt,
		DueAt:       createdAt.Add(form.duration),
		CreatorRole: actor,
	})
	if err != nil {
		s.logger.LogStoreFailure("insert", "", err)
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.reflect(ctx, ports.ChangeEvent{Kind: ports.ChangeInsert, New: task})
	s.logger.Info("Task created successfully", "task_id", task.ID, "title", task.Title)

	return task, nil
}

// UpdateTask edits a task, keeping its creation time and recomputing the
// deadline from it
func (s *TaskService) UpdateTask(ctx context.Context, actor entities.Role, id string, req ports.UpdateTaskRequest) (*entities.Task, error) {
	if actor != entities.RoleMother {
		return nil, entities.ErrForbidden
	}

	form, err := validateTaskForm(req.Title, req.Notes, req.Assignee, req.DurationHours)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, entities.ErrTaskNotFound) {
			s.logger.LogStoreFailure("get", id, err)
		}
		return nil, fmt.Errorf("task not found: %w", err)
	}

	dueAt := existing.CreatedAt.Add(form.duration)
	patch := entities.TaskPatch{
		Title:    &form.title,
		Notes:    &form.notes,
		Assignee: &form.assignee,
		DueAt:    &dueAt,
	}
	if err := s.store.Update(ctx, id, patch); err != nil {
		s.logger.LogStoreFailure("update", id, err)
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	updated := *existing
	updated.Title = form.title
	updated.Notes = form.notes
	updated.Assignee = form.assignee
	updated.DueAt = dueAt

	s.reflect(ctx, ports.ChangeEvent{Kind: ports.ChangeUpdate, New: &updated})
	s.logger.Info("Task updated successfully", "task_id", id, "title", updated.Title)

	return &updated, nil
}

// DeleteTask deletes a task
func (s *TaskService) DeleteTask(ctx context.Context, actor entities.Role, id string) error {
	if actor != entities.RoleMother {
		return entities.ErrForbidden
	}

	if err := s.store.Delete(ctx, id); err != nil {
		if !errors.Is(err, entities.ErrTaskNotFound) {
			s.logger.LogStoreFailure("delete", id, err)
		}
		return fmt.Errorf("failed to delete task: %w", err)
	}

	s.reflect(ctx, ports.ChangeEvent{Kind: ports.ChangeDelete, Old: &entities.Task{ID: id}})
	s.logger.Info("Task deleted successfully", "task_id", id)

	return nil
}

// ToggleTask flips a task between pending and done. Only the assignee may
// toggle it.
func (s *TaskService) ToggleTask(ctx context.Context, actor entities.Role, id string) (*entities.Task, error) {
	task, err := s.store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, entities.ErrTaskNotFound) {
			s.logger.LogStoreFailure("get", id, err)
		}
		return nil, fmt.Errorf("task not found: %w", err)
	}

	if task.Assignee != actor {
		s.logger.LogSecurityEvent("toggle_not_assignee", string(actor), "", map[string]interface{}{
			"task_id":  id,
			"assignee": task.Assignee,
		})
		return nil, entities.ErrForbidden
	}

	status := task.Status.Toggle()
	if err := s.store.Update(ctx, id, entities.TaskPatch{Status: &status}); err != nil {
		s.logger.LogStoreFailure("update", id, err)
		return nil, fmt.Errorf("failed to toggle task: %w", err)
	}
	task.Status = status

	s.reflect(ctx, ports.ChangeEvent{Kind: ports.ChangeUpdate, New: task})
	s.logger.Info("Task toggled", "task_id", id, "status", status, "role", actor)

	return task, nil
}

// Board returns the mirrored tasks visible to role, split into pending and
// done: every task for the mother, own tasks for the others.
func (s *TaskService) Board(role entities.Role) ports.TaskBoard {
	now := s.clock()
	profiles := s.local.Profiles()

	board := ports.TaskBoard{
		Pending: make([]ports.TaskView, 0),
		Done:    make([]ports.TaskView, 0),
	}
	for _, t := range s.mirror.Tasks() {
		if role != entities.RoleMother && t.Assignee != role {
			continue
		}
		view := newTaskView(t, now, profiles)
		if t.Status == entities.TaskStatusDone {
			board.Done = append(board.Done, view)
		} else {
			board.Pending = append(board.Pending, view)
		}
	}
	return board
}

// GetTask returns one mirrored task as seen by role.
func (s *TaskService) GetTask(role entities.Role, id string) (*ports.TaskView, error) {
	t, ok := s.mirror.Task(id)
	if !ok || (role != entities.RoleMother && t.Assignee != role) {
		return nil, entities.ErrTaskNotFound
	}
	view := newTaskView(t, s.clock(), s.local.Profiles())
	return &view, nil
}

func newTaskView(t entities.Task, now time.Time, profiles map[entities.Role]entities.Profile) ports.TaskView {
	return ports.TaskView{
		Task:          t,
		DisplayStatus: entities.DeriveDisplayStatus(t, now),
		Progress:      entities.Progress(t, now),
		Remaining:     entities.FormatRemaining(t.DueAt.Sub(now)),
		DurationHours: math.Round(t.DurationHours()*100) / 100,
		AssigneeName:  entities.DisplayName(profiles, t.Assignee),
	}
}

// reflect applies a successful write to the local mirror ahead of the
// change feed echo.
func (s *TaskService) reflect(ctx context.Context, ev ports.ChangeEvent) {
	if s.mirror != nil {
		s.mirror.ApplyRemoteChange(ctx, ev)
	}
}
