package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KarpovAlexandrGo/tasks-api/internal/entity"
	"github.com/KarpovAlexandrGo/tasks-api/internal/usecase"
	"github.com/KarpovAlexandrGo/tasks-api/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

const uniqueViolation = "23505"

// columns maps searchable API field names to table columns.
var columns = map[string]string{
	entity.FieldID:          "id",
	entity.FieldTitle:       "title",
	entity.FieldDescription: "description",
	entity.FieldStatus:      "status",
}

const selectColumns = "id, title, description, status, due_date, created_at, updated_at"

type TaskRepository struct {
	db      *pgxpool.Pool
	timeout time.Duration
	logger  *logrus.Logger
}

func NewTaskRepository(db *pgxpool.Pool, timeout time.Duration) *TaskRepository {
	return &TaskRepository{
		db:      db,
		timeout: timeout,
		logger:  logger.Log,
	}
}

var _ usecase.TaskRepository = (*TaskRepository)(nil)

func (r *TaskRepository) IsValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// FindAll reads whole rows; every listed field is a column so the projection
// never narrows the result.
func (r *TaskRepository) FindAll(ctx context.Context, _ ...string) ([]entity.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + selectColumns + ` FROM tasks ORDER BY created_at`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.WithFields(logrus.Fields{
			"method": "FindAll",
		}).WithError(err).Error("Failed to list tasks")
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []entity.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			r.logger.WithFields(logrus.Fields{
				"method": "FindAll",
			}).WithError(err).Error("Failed to scan task row")
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		r.logger.WithFields(logrus.Fields{
			"method": "FindAll",
		}).WithError(err).Error("Error after scanning rows")
		return nil, fmt.Errorf("error after scanning rows: %w", err)
	}

	return tasks, nil
}

func (r *TaskRepository) FindByField(ctx context.Context, field, value string) (entity.Task, error) {
	column, ok := columns[field]
	if !ok {
		return entity.Task{}, fmt.Errorf("field %q is not searchable", field)
	}
	if column == "id" {
		return r.FindByID(ctx, value)
	}

	query := `SELECT ` + selectColumns + ` FROM tasks WHERE ` + column + ` = $1 LIMIT 1`
	return r.queryOne(ctx, "FindByField", query, value)
}

func (r *TaskRepository) FindByID(ctx context.Context, id string) (entity.Task, error) {
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return entity.Task{}, usecase.ErrTaskNotFound
	}

	query := `SELECT ` + selectColumns + ` FROM tasks WHERE id = $1`
	return r.queryOne(ctx, "FindByID", query, parsedID)
}

func (r *TaskRepository) queryOne(ctx context.Context, method, query string, args ...any) (entity.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	task, err := scanTask(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return entity.Task{}, usecase.ErrTaskNotFound
		}
		r.logger.WithFields(logrus.Fields{
			"method": method,
		}).WithError(err).Error("Failed to get task")
		return entity.Task{}, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

func (r *TaskRepository) Insert(ctx context.Context, task entity.Task) (entity.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO tasks (title, description, status, due_date)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + selectColumns

	created, err := scanTask(r.db.QueryRow(ctx, query,
		task.Title,
		task.Description,
		task.Status,
		task.DueDate,
	))
	if err != nil {
		if isUniqueViolation(err) {
			r.logger.WithFields(logrus.Fields{
				"method": "Insert",
				"title":  task.Title,
			}).Warn("Duplicate task title")
			return entity.Task{}, usecase.ErrDuplicateTitle
		}
		r.logger.WithFields(logrus.Fields{
			"method": "Insert",
			"title":  task.Title,
		}).WithError(err).Error("Failed to create task")
		return entity.Task{}, fmt.Errorf("failed to create task: %w", err)
	}

	return created, nil
}

func (r *TaskRepository) UpdateByID(ctx context.Context, id string, patch entity.TaskPatch) (entity.Task, error) {
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return entity.Task{}, usecase.ErrTaskNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		UPDATE tasks
		SET description = COALESCE($2, description),
			status = COALESCE($3, status),
			due_date = CASE WHEN $4 THEN NULL ELSE COALESCE($5, due_date) END,
			updated_at = now()
		WHERE id = $1
		RETURNING ` + selectColumns

	updated, err := scanTask(r.db.QueryRow(ctx, query,
		parsedID,
		patch.Description,
		patch.Status,
		patch.ClearDueDate,
		patch.DueDate,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WithFields(logrus.Fields{
				"method":  "UpdateByID",
				"task_id": id,
			}).Warn("Task not found for update")
			return entity.Task{}, usecase.ErrTaskNotFound
		}
		r.logger.WithFields(logrus.Fields{
			"method":  "UpdateByID",
			"task_id": id,
		}).WithError(err).Error("Failed to update task")
		return entity.Task{}, fmt.Errorf("failed to update task: %w", err)
	}

	return updated, nil
}

func (r *TaskRepository) DeleteByID(ctx context.Context, id string) (entity.Task, error) {
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return entity.Task{}, usecase.ErrTaskNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `DELETE FROM tasks WHERE id = $1 RETURNING ` + selectColumns

	deleted, err := scanTask(r.db.QueryRow(ctx, query, parsedID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WithFields(logrus.Fields{
				"method":  "DeleteByID",
				"task_id": id,
			}).Warn("Task not found for deletion")
			return entity.Task{}, usecase.ErrTaskNotFound
		}
		r.logger.WithFields(logrus.Fields{
			"method":  "DeleteByID",
			"task_id": id,
		}).WithError(err).Error("Failed to delete task")
		return entity.Task{}, fmt.Errorf("failed to delete task: %w", err)
	}

	return deleted, nil
}

func scanTask(row pgx.Row) (entity.Task, error) {
	var (
		task entity.Task
		id   uuid.UUID
	)
	if err := row.Scan(
		&id,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.DueDate,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return entity.Task{}, err
	}
	task.ID = id.String()
	task.CreatedAt = task.CreatedAt.UTC()
	task.UpdatedAt = task.UpdatedAt.UTC()
	if task.DueDate != nil {
		due := task.DueDate.UTC()
		task.DueDate = &due
	}
	return task, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && strings.Contains(pgErr.ConstraintName, "title")
}
