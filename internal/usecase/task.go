package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/KarpovAlexandrGo/tasks-api/internal/apperror"
	"github.com/KarpovAlexandrGo/tasks-api/internal/entity"
	"github.com/KarpovAlexandrGo/tasks-api/pkg/logger"
	"github.com/sirupsen/logrus"
)

// Errors reported by TaskRepository implementations.
var (
	ErrTaskNotFound   = errors.New("task not found")
	ErrDuplicateTitle = errors.New("task title already exists")
)

type TaskUseCase interface {
	List(ctx context.Context) ([]entity.Task, error)
	Create(ctx context.Context, input entity.TaskInput) (entity.Task, error)
	Get(ctx context.Context, id string) (entity.Task, error)
	Update(ctx context.Context, id string, fields map[string]any) (entity.Task, error)
	Delete(ctx context.Context, id string) (string, error)
}

// TaskRepository is the persistence gateway. Each call is atomic on a single document.
type TaskRepository interface {
	FindAll(ctx context.Context, fields ...string) ([]entity.Task, error)
	FindByField(ctx context.Context, field, value string) (entity.Task, error)
	FindByID(ctx context.Context, id string) (entity.Task, error)
	Insert(ctx context.Context, task entity.Task) (entity.Task, error)
	UpdateByID(ctx context.Context, id string, patch entity.TaskPatch) (entity.Task, error)
	DeleteByID(ctx context.Context, id string) (entity.Task, error)
	IsValidID(id string) bool
}

// ErrStaleGeneration is returned by CacheRepository.SetTasks when a write
// invalidated the cache after the generation was read.
var ErrStaleGeneration = errors.New("cache generation changed")

// CacheRepository caches the full task list. Every Invalidate advances the
// generation; SetTasks stores the list only if the generation still equals
// the one read before the list was loaded.
type CacheRepository interface {
	Generation(ctx context.Context) (int64, error)
	SetTasks(ctx context.Context, gen int64, tasks []entity.Task, ttl time.Duration) error
	GetTasks(ctx context.Context) ([]entity.Task, bool, error)
	Invalidate(ctx context.Context) error
}

type TaskUseCaseImpl struct {
	taskRepo  TaskRepository
	cacheRepo CacheRepository
	cacheTTL  time.Duration
	log       *logrus.Logger
}

// NewTaskUseCase builds the service. A nil cacheRepo disables list caching.
func NewTaskUseCase(taskRepo TaskRepository, cacheRepo CacheRepository, cacheTTL time.Duration) *TaskUseCaseImpl {
	if cacheRepo == nil {
		cacheRepo = nopCache{}
	}
	return &TaskUseCaseImpl{
		taskRepo:  taskRepo,
		cacheRepo: cacheRepo,
		cacheTTL:  cacheTTL,
		log:       logger.Log,
	}
}

func (uc *TaskUseCaseImpl) List(ctx context.Context) ([]entity.Task, error) {
	tasks, found, err := uc.cacheRepo.GetTasks(ctx)
	if err != nil {
		uc.log.WithError(err).Warn("Failed to read tasks from cache")
	}
	if found {
		uc.log.Debug("Tasks retrieved from cache")
		return nonNil(tasks), nil
	}

	gen, genErr := uc.cacheRepo.Generation(ctx)
	if genErr != nil {
		uc.log.WithError(genErr).Warn("Failed to read cache generation")
	}

	tasks, err = uc.taskRepo.FindAll(ctx, entity.ListFields...)
	if err != nil {
		uc.log.WithError(err).Error("Failed to list tasks from repository")
		return nil, apperror.Persistence(err, "Could not fetch tasks")
	}
	tasks = nonNil(tasks)

	if genErr == nil {
		err := uc.cacheRepo.SetTasks(ctx, gen, tasks, uc.cacheTTL)
		switch {
		case errors.Is(err, ErrStaleGeneration):
			uc.log.Debug("Skipped cache fill, tasks changed during read")
		case err != nil:
			uc.log.WithError(err).Warn("Failed to set tasks in cache")
		}
	}

	uc.log.WithField("count", len(tasks)).Debug("Tasks listed")
	return tasks, nil
}

func (uc *TaskUseCaseImpl) Create(ctx context.Context, input entity.TaskInput) (entity.Task, error) {
	task := entity.Task{
		Title:       input.Title,
		Description: input.Description,
		Status:      input.Status,
	}
	if task.Status == "" {
		task.Status = entity.DefaultStatus
	}
	if err := task.Validate(); err != nil {
		return entity.Task{}, apperror.Validation("%s", err.Error())
	}
	if input.DueDate != "" {
		due, err := entity.ParseDueDate(input.DueDate)
		if err != nil {
			return entity.Task{}, apperror.Validation("%s", err.Error())
		}
		task.DueDate = &due
	}

	// Fast path only: the repository's unique constraint is what actually
	// prevents two concurrent creates with the same title.
	_, err := uc.taskRepo.FindByField(ctx, entity.FieldTitle, task.Title)
	switch {
	case err == nil:
		return entity.Task{}, apperror.Conflict("Task exists")
	case !errors.Is(err, ErrTaskNotFound):
		uc.log.WithError(err).Error("Failed to look up task by title")
		return entity.Task{}, apperror.Persistence(err, "Could not create task")
	}

	created, err := uc.taskRepo.Insert(ctx, task)
	if err != nil {
		if errors.Is(err, ErrDuplicateTitle) {
			return entity.Task{}, apperror.Conflict("Task exists")
		}
		uc.log.WithError(err).Error("Failed to create task")
		return entity.Task{}, apperror.Persistence(err, "Could not create task")
	}

	uc.invalidate(ctx)
	uc.log.WithField("task_id", created.ID).Info("Task created")
	return created, nil
}

func (uc *TaskUseCaseImpl) Get(ctx context.Context, id string) (entity.Task, error) {
	if !uc.taskRepo.IsValidID(id) {
		return entity.Task{}, notFound(id)
	}
	task, err := uc.taskRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			return entity.Task{}, notFound(id)
		}
		uc.log.WithError(err).WithField("task_id", id).Error("Failed to get task from repository")
		return entity.Task{}, apperror.Persistence(err, "Could not fetch task")
	}
	return task, nil
}

func (uc *TaskUseCaseImpl) Update(ctx context.Context, id string, fields map[string]any) (entity.Task, error) {
	if !uc.taskRepo.IsValidID(id) {
		return entity.Task{}, apperror.Validation("Invalid task ID: %s", id)
	}

	patch, err := buildPatch(fields)
	if err != nil {
		return entity.Task{}, err
	}

	updated, err := uc.taskRepo.UpdateByID(ctx, id, patch)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			return entity.Task{}, notFound(id)
		}
		uc.log.WithError(err).WithField("task_id", id).Error("Failed to update task in repository")
		return entity.Task{}, apperror.Persistence(err, "Could not update task")
	}

	uc.invalidate(ctx)
	uc.log.WithField("task_id", id).Info("Task updated")
	return updated, nil
}

func (uc *TaskUseCaseImpl) Delete(ctx context.Context, id string) (string, error) {
	if !uc.taskRepo.IsValidID(id) {
		return "", notFound(id)
	}
	deleted, err := uc.taskRepo.DeleteByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			return "", notFound(id)
		}
		uc.log.WithError(err).WithField("task_id", id).Error("Failed to delete task from repository")
		return "", apperror.Persistence(err, "Could not delete task")
	}

	uc.invalidate(ctx)
	uc.log.WithField("task_id", id).Info("Task deleted")
	return fmt.Sprintf("%s has been deleted", deleted.Title), nil
}

func (uc *TaskUseCaseImpl) invalidate(ctx context.Context) {
	if err := uc.cacheRepo.Invalidate(ctx); err != nil {
		uc.log.WithError(err).Warn("Failed to invalidate cache")
	}
}

// buildPatch rejects keys outside the whitelist and type-checks the rest.
func buildPatch(fields map[string]any) (entity.TaskPatch, error) {
	var disallowed []string
	for key := range fields {
		if !isUpdatable(key) {
			disallowed = append(disallowed, key)
		}
	}
	if len(disallowed) > 0 {
		sort.Strings(disallowed)
		return entity.TaskPatch{}, apperror.InvalidFields(
			"Invalid updates: "+strings.Join(disallowed, ", "), disallowed)
	}

	var patch entity.TaskPatch
	if raw, ok := fields[entity.FieldDescription]; ok {
		desc, ok := raw.(string)
		if !ok || strings.TrimSpace(desc) == "" {
			return entity.TaskPatch{}, apperror.InvalidFields("description must be a non-empty string",
				[]string{entity.FieldDescription})
		}
		patch.Description = &desc
	}
	if raw, ok := fields[entity.FieldStatus]; ok {
		status, ok := raw.(string)
		if !ok {
			return entity.TaskPatch{}, apperror.InvalidFields("status must be a string", []string{entity.FieldStatus})
		}
		if err := entity.ValidateStatus(status); err != nil {
			return entity.TaskPatch{}, apperror.InvalidFields(err.Error(), []string{entity.FieldStatus})
		}
		patch.Status = &status
	}
	if raw, ok := fields[entity.FieldDueDate]; ok {
		switch v := raw.(type) {
		case nil:
			patch.ClearDueDate = true
		case string:
			due, err := entity.ParseDueDate(v)
			if err != nil {
				return entity.TaskPatch{}, apperror.InvalidFields(err.Error(), []string{entity.FieldDueDate})
			}
			patch.DueDate = &due
		default:
			return entity.TaskPatch{}, apperror.InvalidFields("dueDate must be a date string or null",
				[]string{entity.FieldDueDate})
		}
	}
	return patch, nil
}

func isUpdatable(field string) bool {
	for _, f := range entity.UpdatableFields {
		if f == field {
			return true
		}
	}
	return false
}

func notFound(id string) error {
	return apperror.NotFound("No task with id: %s", id)
}

func nonNil(tasks []entity.Task) []entity.Task {
	if tasks == nil {
		return []entity.Task{}
	}
	return tasks
}

type nopCache struct{}

func (nopCache) Generation(context.Context) (int64, error)                          { return 0, nil }
func (nopCache) SetTasks(context.Context, int64, []entity.Task, time.Duration) error { return nil }
func (nopCache) GetTasks(context.Context) ([]entity.Task, bool, error)               { return nil, false, nil }
func (nopCache) Invalidate(context.Context) error                                    { return nil }
