// Package memory is a process-local TaskRepository. It hands out ObjectID hex
// identifiers so clients see the same id shape as with the Mongo store.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/KarpovAlexandrGo/tasks-api/internal/entity"
	"github.com/KarpovAlexandrGo/tasks-api/internal/usecase"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TaskRepository struct {
	mu    sync.RWMutex
	tasks map[string]entity.Task
	order []string
	now   func() time.Time
}

func NewTaskRepository() *TaskRepository {
	return &TaskRepository{
		tasks: make(map[string]entity.Task),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

var _ usecase.TaskRepository = (*TaskRepository)(nil)

func (r *TaskRepository) IsValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}

// FindAll returns every task in insertion order. All fields are always
// returned, so the projection is ignored.
func (r *TaskRepository) FindAll(_ context.Context, _ ...string) ([]entity.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := make([]entity.Task, 0, len(r.order))
	for _, id := range r.order {
		tasks = append(tasks, clone(r.tasks[id]))
	}
	return tasks, nil
}

func (r *TaskRepository) FindByField(_ context.Context, field, value string) (entity.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		task := r.tasks[id]
		var got string
		switch field {
		case entity.FieldID:
			got = task.ID
		case entity.FieldTitle:
			got = task.Title
		case entity.FieldDescription:
			got = task.Description
		case entity.FieldStatus:
			got = task.Status
		default:
			return entity.Task{}, fmt.Errorf("field %q is not searchable", field)
		}
		if got == value {
			return clone(task), nil
		}
	}
	return entity.Task{}, usecase.ErrTaskNotFound
}

func (r *TaskRepository) FindByID(_ context.Context, id string) (entity.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[id]
	if !ok {
		return entity.Task{}, usecase.ErrTaskNotFound
	}
	return clone(task), nil
}

func (r *TaskRepository) Insert(_ context.Context, task entity.Task) (entity.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.tasks {
		if existing.Title == task.Title {
			return entity.Task{}, usecase.ErrDuplicateTitle
		}
	}

	now := r.now()
	task.ID = primitive.NewObjectID().Hex()
	task.CreatedAt = now
	task.UpdatedAt = now
	r.tasks[task.ID] = clone(task)
	r.order = append(r.order, task.ID)
	return task, nil
}

func (r *TaskRepository) UpdateByID(_ context.Context, id string, patch entity.TaskPatch) (entity.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		return entity.Task{}, usecase.ErrTaskNotFound
	}
	patch.Apply(&task)
	task.UpdatedAt = r.now()
	r.tasks[id] = task
	return clone(task), nil
}

func (r *TaskRepository) DeleteByID(_ context.Context, id string) (entity.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		return entity.Task{}, usecase.ErrTaskNotFound
	}
	delete(r.tasks, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return task, nil
}

func clone(t entity.Task) entity.Task {
	if t.DueDate != nil {
		d := *t.DueDate
		t.DueDate = &d
	}
	return t
}
