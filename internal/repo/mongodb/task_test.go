package mongodb

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/KarpovAlexandrGo/tasks-api/internal/entity"
	"github.com/KarpovAlexandrGo/tasks-api/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// setupRepository connects to MONGO_TEST_URI and returns a repository on a
// throwaway database that is dropped on cleanup.
func setupRepository(t *testing.T) *TaskRepository {
	t.Helper()

	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	ctx := context.Background()
	client, err := Connect(ctx, uri, 5*time.Second)
	if err != nil {
		t.Skipf("MongoDB not available: %v", err)
	}

	db := client.Database("tasks_test_" + primitive.NewObjectID().Hex())
	repo := NewTaskRepository(db, 5*time.Second)
	require.NoError(t, repo.EnsureIndexes(ctx))

	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return repo
}

func TestTaskRepositoryCRUD(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	due := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	created, err := repo.Insert(ctx, entity.Task{
		Title: "A", Description: "d", Status: entity.StatusPending, DueDate: &due,
	})
	require.NoError(t, err)
	require.True(t, repo.IsValidID(created.ID))

	got, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", got.Title)
	require.NotNil(t, got.DueDate)
	assert.True(t, due.Equal(*got.DueDate))

	byTitle, err := repo.FindByField(ctx, entity.FieldTitle, "A")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byTitle.ID)

	status := entity.StatusDone
	updated, err := repo.UpdateByID(ctx, created.ID, entity.TaskPatch{Status: &status, ClearDueDate: true})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusDone, updated.Status)
	assert.Equal(t, "d", updated.Description)
	assert.Nil(t, updated.DueDate)
	assert.False(t, updated.UpdatedAt.Before(created.UpdatedAt))

	all, err := repo.FindAll(ctx, entity.ListFields...)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	deleted, err := repo.DeleteByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", deleted.Title)

	_, err = repo.FindByID(ctx, created.ID)
	assert.ErrorIs(t, err, usecase.ErrTaskNotFound)
}

func TestTaskRepositoryDuplicateTitle(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	_, err := repo.Insert(ctx, entity.Task{Title: "A", Description: "d", Status: entity.StatusPending})
	require.NoError(t, err)

	_, err = repo.Insert(ctx, entity.Task{Title: "A", Description: "other", Status: entity.StatusPending})
	assert.ErrorIs(t, err, usecase.ErrDuplicateTitle)
}

func TestTaskRepositoryUnknownID(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	id := primitive.NewObjectID().Hex()

	_, err := repo.UpdateByID(ctx, id, entity.TaskPatch{})
	assert.ErrorIs(t, err, usecase.ErrTaskNotFound)

	_, err = repo.DeleteByID(ctx, id)
	assert.ErrorIs(t, err, usecase.ErrTaskNotFound)
}

func TestIsValidID(t *testing.T) {
	repo := &TaskRepository{}
	assert.True(t, repo.IsValidID("5f8d0d55b54764421b7156c9"))
	assert.False(t, repo.IsValidID("123"))
	assert.False(t, repo.IsValidID("zzzzzzzzzzzzzzzzzzzzzzzz"))
}
