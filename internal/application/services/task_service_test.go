package services

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/familyboard/core/internal/domain/entities"
	"github.com/familyboard/core/internal/infrastructure/logger"
	"github.com/familyboard/core/internal/ports"
)

func hours(h float64) *float64 { return &h }

type taskFixture struct {
	store  *memTaskStore
	mirror *listMirror
	local  *memLocalStore
	clock  *fixedClock
	svc    *TaskService
}

func newTaskFixture(tasks ...entities.Task) *taskFixture {
	f := &taskFixture{
		store:  newMemTaskStore(tasks...),
		mirror: &listMirror{tasks: tasks},
		local:  newMemLocalStore(),
		clock:  &fixedClock{now: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)},
	}
	f.svc = NewTaskService(f.store, f.mirror, f.local, f.clock.Now, logger.NewNop())
	return f
}

func TestCreateTask(t *testing.T) {
	f := newTaskFixture()

	task, err := f.svc.CreateTask(context.Background(), entities.RoleMother, ports.CreateTaskRequest{
		Title:    "  Buy bread ",
		Notes:    "whole wheat",
		Assignee: "father",
	})
	require.NoError(t, err)

	assert.Equal(t, "Buy bread", task.Title)
	assert.Equal(t, entities.RoleFather, task.Assignee)
	assert.Equal(t, entities.TaskStatusPending, task.Status)
	assert.Equal(t, entities.RoleMother, task.CreatorRole)
	assert.Equal(t, f.clock.Now(), task.CreatedAt)
	assert.Equal(t, 3*time.Hour, task.DueAt.Sub(task.CreatedAt))

	mirrored, ok := f.mirror.Task(task.ID)
	require.True(t, ok)
	assert.Equal(t, "Buy bread", mirrored.Title)
}

func TestCreateTaskFloorsDuration(t *testing.T) {
	f := newTaskFixture()

	task, err := f.svc.CreateTask(context.Background(), entities.RoleMother, ports.CreateTaskRequest{
		Title: "Quick", Assignee: "son", DurationHours: hours(0.01),
	})
	require.NoError(t, err)
	assert.Equal(t, 6*time.Minute, task.DueAt.Sub(task.CreatedAt))
}

func TestCreateTaskValidation(t *testing.T) {
	f := newTaskFixture()

	tests := []struct {
		name   string
		req    ports.CreateTaskRequest
		fields []string
	}{
		{"blank title", ports.CreateTaskRequest{Title: "   ", Assignee: "son"}, []string{"title"}},
		{"zero duration", ports.CreateTaskRequest{Title: "x", Assignee: "son", DurationHours: hours(0)}, []string{"duration_hours"}},
		{"negative duration", ports.CreateTaskRequest{Title: "x", Assignee: "son", DurationHours: hours(-2)}, []string{"duration_hours"}},
		{"infinite duration", ports.CreateTaskRequest{Title: "x", Assignee: "son", DurationHours: hours(math.Inf(1))}, []string{"duration_hours"}},
		{"mother as assignee", ports.CreateTaskRequest{Title: "x", Assignee: "mother"}, []string{"assignee"}},
		{"everything wrong", ports.CreateTaskRequest{Assignee: "uncle", DurationHours: hours(math.NaN())}, []string{"title", "assignee", "duration_hours"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateTask(context.Background(), entities.RoleMother, tt.req)
			var verr *entities.ValidationError
			require.True(t, errors.As(err, &verr))
			for _, field := range tt.fields {
				assert.Contains(t, verr.Fields, field)
			}
			assert.Len(t, verr.Fields, len(tt.fields))
		})
	}

	all, err := f.store.SelectAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestOnlyMotherManagesTasks(t *testing.T) {
	existing := entities.Task{ID: "t1", Title: "x", Assignee: entities.RoleSon, Status: entities.TaskStatusPending}
	f := newTaskFixture(existing)
	ctx := context.Background()

	_, err := f.svc.CreateTask(ctx, entities.RoleFather, ports.CreateTaskRequest{Title: "x", Assignee: "son"})
	assert.ErrorIs(t, err, entities.ErrForbidden)

	_, err = f.svc.UpdateTask(ctx, entities.RoleSon, "t1", ports.UpdateTaskRequest{Title: "y", Assignee: "son"})
	assert.ErrorIs(t, err, entities.ErrForbidden)

	assert.ErrorIs(t, f.svc.DeleteTask(ctx, entities.RoleFather, "t1"), entities.ErrForbidden)
}

func TestUpdateTaskKeepsCreatedAt(t *testing.T) {
	created := time.Date(2024, 4, 30, 20, 0, 0, 0, time.UTC)
	existing := entities.Task{
		ID: "t1", Title: "old", Assignee: entities.RoleSon,
		CreatedAt: created, DueAt: created.Add(time.Hour),
		Status: entities.TaskStatusPending, Notified: true,
	}
	f := newTaskFixture(existing)

	updated, err := f.svc.UpdateTask(context.Background(), entities.RoleMother, "t1", ports.UpdateTaskRequest{
		Title: "new", Notes: "n", Assignee: "father", DurationHours: hours(5),
	})
	require.NoError(t, err)

	assert.Equal(t, created, updated.CreatedAt)
	assert.Equal(t, created.Add(5*time.Hour), updated.DueAt)
	assert.Equal(t, entities.RoleFather, updated.Assignee)
	assert.True(t, updated.Notified)

	stored, err := f.store.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "new", stored.Title)
	assert.Equal(t, created.Add(5*time.Hour), stored.DueAt)
}

func TestUpdateMissingTask(t *testing.T) {
	f := newTaskFixture()
	_, err := f.svc.UpdateTask(context.Background(), entities.RoleMother, "nope", ports.UpdateTaskRequest{Title: "x", Assignee: "son"})
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)
}

func TestDeleteTask(t *testing.T) {
	f := newTaskFixture(entities.Task{ID: "t1", Assignee: entities.RoleSon})

	require.NoError(t, f.svc.DeleteTask(context.Background(), entities.RoleMother, "t1"))
	_, ok := f.mirror.Task("t1")
	assert.False(t, ok)

	err := f.svc.DeleteTask(context.Background(), entities.RoleMother, "t1")
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)
}

func TestToggleTaskByAssigneeOnly(t *testing.T) {
	f := newTaskFixture(entities.Task{ID: "t1", Assignee: entities.RoleSon, Status: entities.TaskStatusPending})
	ctx := context.Background()

	_, err := f.svc.ToggleTask(ctx, entities.RoleFather, "t1")
	assert.ErrorIs(t, err, entities.ErrForbidden)
	_, err = f.svc.ToggleTask(ctx, entities.RoleMother, "t1")
	assert.ErrorIs(t, err, entities.ErrForbidden)

	task, err := f.svc.ToggleTask(ctx, entities.RoleSon, "t1")
	require.NoError(t, err)
	assert.Equal(t, entities.TaskStatusDone, task.Status)

	task, err = f.svc.ToggleTask(ctx, entities.RoleSon, "t1")
	require.NoError(t, err)
	assert.Equal(t, entities.TaskStatusPending, task.Status)

	mirrored, _ := f.mirror.Task("t1")
	assert.Equal(t, entities.TaskStatusPending, mirrored.Status)
}

func TestToggleStoreFailure(t *testing.T) {
	f := newTaskFixture(entities.Task{ID: "t1", Assignee: entities.RoleSon})
	f.store.err = errors.New("connection reset")

	_, err := f.svc.ToggleTask(context.Background(), entities.RoleSon, "t1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, entities.ErrForbidden)
}

func TestBoard(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	tasks := []entities.Task{
		{ID: "a", Title: "dad late", Assignee: entities.RoleFather, CreatedAt: now.Add(-2 * time.Hour), DueAt: now.Add(-time.Hour), Status: entities.TaskStatusPending},
		{ID: "b", Title: "son half", Assignee: entities.RoleSon, CreatedAt: now.Add(-time.Hour), DueAt: now.Add(time.Hour), Status: entities.TaskStatusPending},
		{ID: "c", Title: "dad done", Assignee: entities.RoleFather, CreatedAt: now.Add(-3 * time.Hour), DueAt: now, Status: entities.TaskStatusDone},
	}
	f := newTaskFixture(tasks...)
	require.NoError(t, f.local.SetProfile(entities.RoleSon, entities.Profile{Name: "Reza"}))

	board := f.svc.Board(entities.RoleMother)
	require.Len(t, board.Pending, 2)
	require.Len(t, board.Done, 1)

	late := board.Pending[0]
	assert.Equal(t, entities.DisplayOverdue, late.DisplayStatus)
	assert.Equal(t, 1.0, late.Progress)
	assert.Equal(t, "finished", late.Remaining)
	assert.Equal(t, "Dad", late.AssigneeName)

	half := board.Pending[1]
	assert.Equal(t, entities.DisplayPending, half.DisplayStatus)
	assert.InDelta(t, 0.5, half.Progress, 1e-9)
	assert.Equal(t, "1h 0m", half.Remaining)
	assert.Equal(t, 2.0, half.DurationHours)
	assert.Equal(t, "Reza", half.AssigneeName)

	assert.Equal(t, entities.DisplayDone, board.Done[0].DisplayStatus)

	sonBoard := f.svc.Board(entities.RoleSon)
	require.Len(t, sonBoard.Pending, 1)
	assert.Equal(t, "b", sonBoard.Pending[0].ID)
	assert.Empty(t, sonBoard.Done)
}

func TestGetTaskVisibility(t *testing.T) {
	f := newTaskFixture(entities.Task{ID: "t1", Assignee: entities.RoleSon})

	_, err := f.svc.GetTask(entities.RoleFather, "t1")
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)

	view, err := f.svc.GetTask(entities.RoleSon, "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", view.ID)
}
