package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/familyboard/core/internal/domain/entities"
	"github.com/familyboard/core/internal/infrastructure/database"
	"github.com/familyboard/core/internal/infrastructure/logger"
	"github.com/familyboard/core/internal/ports"
)

// TaskRepositoryImpl implements ports.TaskStore on PostgreSQL
type TaskRepositoryImpl struct {
	db     *sqlx.DB
	feed   *database.DB
	logger *logger.Logger
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *database.DB, logger *logger.Logger) *TaskRepositoryImpl {
	return &TaskRepositoryImpl{
		db:     db.DB,
		feed:   db,
		logger: logger.WithComponent("task_repository"),
	}
}

var _ ports.TaskStore = (*TaskRepositoryImpl)(nil)

// taskRow mirrors the wire schema of the tasks table.
type taskRow struct {
	ID          string         `db:"id"`
	Title       string         `db:"title"`
	Notes       sql.NullString `db:"notes"`
	Assignee    string         `db:"assignee"`
	CreatedAt   time.Time      `db:"created_at"`
	DueAt       time.Time      `db:"due_at"`
	Status      string         `db:"status"`
	Notified    sql.NullBool   `db:"notified"`
	CreatorRole sql.NullString `db:"creator_role"`
}

func (r taskRow) toEntity() entities.Task {
	return entities.Task{
		ID:          r.ID,
		Title:       r.Title,
		Notes:       r.Notes.String,
		Assignee:    entities.Role(r.Assignee),
		CreatedAt:   r.CreatedAt,
		DueAt:       r.DueAt,
		Status:      entities.TaskStatus(r.Status),
		Notified:    r.Notified.Valid && r.Notified.Bool,
		CreatorRole: entities.Role(r.CreatorRole.String),
	}
}

const taskColumns = `id, title, notes, assignee, created_at, due_at, status, notified, creator_role`

func (r *TaskRepositoryImpl) SelectAll(ctx context.Context) ([]entities.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks ORDER BY created_at DESC`

	var rows []taskRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}

	tasks := make([]entities.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, row.toEntity())
	}
	return tasks, nil
}

func (r *TaskRepositoryImpl) Get(ctx context.Context, id string) (*entities.Task, error) {
	if !isTaskID(id) {
		return nil, entities.ErrTaskNotFound
	}
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	var row taskRow
	err := r.db.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task by id: %w", err)
	}

	task := row.toEntity()
	return &task, nil
}

func (r *TaskRepositoryImpl) Insert(ctx context.Context, t entities.NewTask) (*entities.Task, error) {
	query := `
		INSERT INTO tasks (id, title, notes, assignee, created_at, due_at, status, notified, creator_role)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8)
		RETURNING ` + taskColumns

	var notes, creator sql.NullString
	if t.Notes != "" {
		notes = sql.NullString{String: t.Notes, Valid: true}
	}
	if t.CreatorRole != "" {
		creator = sql.NullString{String: string(t.CreatorRole), Valid: true}
	}

	var row taskRow
	err := r.db.GetContext(ctx, &row, query,
		uuid.NewString(), t.Title, notes, string(t.Assignee),
		t.CreatedAt.UTC(), t.DueAt.UTC(), string(entities.TaskStatusPending), creator,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	task := row.toEntity()
	return &task, nil
}

func (r *TaskRepositoryImpl) Update(ctx context.Context, id string, patch entities.TaskPatch) error {
	if patch.Empty() {
		return nil
	}
	if !isTaskID(id) {
		return entities.ErrTaskNotFound
	}

	query, args := buildTaskUpdate(id, patch)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return requireAffected(result, entities.ErrTaskNotFound)
}

// buildTaskUpdate renders a partial UPDATE for the non-nil patch fields.
// The id is always the last placeholder.
func buildTaskUpdate(id string, patch entities.TaskPatch) (string, []interface{}) {
	var (
		sets []string
		args []interface{}
	)
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Notes != nil {
		add("notes", sql.NullString{String: *patch.Notes, Valid: *patch.Notes != ""})
	}
	if patch.Assignee != nil {
		add("assignee", string(*patch.Assignee))
	}
	if patch.DueAt != nil {
		add("due_at", patch.DueAt.UTC())
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.Notified != nil {
		add("notified", *patch.Notified)
	}

	args = append(args, id)
	return fmt.Sprintf(`UPDATE tasks SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args)), args
}

func (r *TaskRepositoryImpl) Delete(ctx context.Context, id string) error {
	if !isTaskID(id) {
		return entities.ErrTaskNotFound
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return requireAffected(result, entities.ErrTaskNotFound)
}

const markNotifiedQuery = `UPDATE tasks SET notified = true WHERE id = $1 AND notified IS NOT TRUE`

func (r *TaskRepositoryImpl) MarkNotified(ctx context.Context, id string) (bool, error) {
	if !isTaskID(id) {
		return false, entities.ErrTaskNotFound
	}

	result, err := r.db.ExecContext(ctx, markNotifiedQuery, id)
	if err != nil {
		return false, fmt.Errorf("mark task notified: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

func requireAffected(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}

// isTaskID reports whether id can name a row; the id column is a UUID, so
// anything else cannot exist.
func isTaskID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
