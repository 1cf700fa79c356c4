package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/KarpovAlexandrGo/tasks-api/internal/apperror"
	"github.com/KarpovAlexandrGo/tasks-api/internal/entity"
	"github.com/KarpovAlexandrGo/tasks-api/internal/repo/memory"
	"github.com/KarpovAlexandrGo/tasks-api/internal/usecase"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	uc := usecase.NewTaskUseCase(memory.NewTaskRepository(), nil, time.Minute)
	return NewRouter(uc, RouterConfig{Registry: prometheus.NewRegistry()})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestTaskLifecycle(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/v1/tasks", `{"title":"A","description":"d"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[taskResponse](t, rec).Task
	require.NotEmpty(t, created.ID)
	assert.Equal(t, entity.DefaultStatus, created.Status)

	rec = do(t, h, http.MethodGet, "/api/v1/tasks/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created, decode[taskResponse](t, rec).Task)

	rec = do(t, h, http.MethodPut, "/api/v1/tasks/"+created.ID, `{"status":"done"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[taskResponse](t, rec).Task
	assert.Equal(t, entity.StatusDone, updated.Status)
	assert.Equal(t, "A", updated.Title)

	rec = do(t, h, http.MethodDelete, "/api/v1/tasks/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"A has been deleted"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/v1/tasks/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"No task with id: `+created.ID+`"}`, rec.Body.String())
}

func TestListTasks(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/api/v1/tasks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"tasks":[]}`, rec.Body.String())

	do(t, h, http.MethodPost, "/api/v1/tasks", `{"title":"A","description":"d","dueDate":"2025-06-01"}`)
	do(t, h, http.MethodPost, "/api/v1/tasks", `{"title":"B","description":"d","status":"in-progress"}`)

	rec = do(t, h, http.MethodGet, "/api/v1/tasks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	tasks := decode[tasksResponse](t, rec).Tasks
	require.Len(t, tasks, 2)
	require.NotNil(t, tasks[0].DueDate)
	assert.Equal(t, "2025-06-01", tasks[0].DueDate.Format(time.DateOnly))
	assert.Equal(t, entity.StatusInProgress, tasks[1].Status)
}

func TestCreateTaskErrors(t *testing.T) {
	h := newTestRouter(t)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/v1/tasks", `{"title":"A","description":"d"}`).Code)

	cases := []struct {
		name string
		body string
		want string
	}{
		{"missing description", `{"title":"B"}`, "title and description fields are required"},
		{"empty body", "", "title and description fields are required"},
		{"duplicate", `{"title":"A","description":"again"}`, "Task exists"},
		{"malformed", `{"title":`, "Invalid request payload"},
		{"wrong type", `{"title":1,"description":"d"}`, "Invalid request payload"},
		{"trailing data", `{"title":"C","description":"d"} garbage`, "Invalid request payload"},
		{"second value", `{"title":"C","description":"d"}{}`, "Invalid request payload"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/v1/tasks", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.want, decode[errorResponse](t, rec).Error)
		})
	}
}

func TestUpdateTaskErrors(t *testing.T) {
	h := newTestRouter(t)
	created := decode[taskResponse](t, do(t, h, http.MethodPost, "/api/v1/tasks", `{"title":"A","description":"d"}`)).Task

	rec := do(t, h, http.MethodPut, "/api/v1/tasks/bad-id", `{"status":"done"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid task ID: bad-id", decode[errorResponse](t, rec).Error)

	rec = do(t, h, http.MethodPut, "/api/v1/tasks/"+created.ID, `{"title":"B","status":"done"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid updates: title", decode[errorResponse](t, rec).Error)

	rec = do(t, h, http.MethodPut, "/api/v1/tasks/5f8d0d55b54764421b7156c9", `{"status":"done"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	got := decode[taskResponse](t, do(t, h, http.MethodGet, "/api/v1/tasks/"+created.ID, "")).Task
	assert.Equal(t, created, got)
}

func TestDeleteUnknownTask(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodDelete, "/api/v1/tasks/5f8d0d55b54764421b7156c9", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndFallbacks(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/api/v1/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, healthMessage, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	rec = do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Route does not exist", rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/v1/tasks/a/b", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	for _, path := range []string{"/api/v1/tasks", "/api/v1/tasks/5f8d0d55b54764421b7156c9"} {
		rec = do(t, h, http.MethodPatch, path, `{"status":"done"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "Route does not exist", rec.Body.String(), path)
	}
}

// stubUseCase lets tests force failures the memory store never produces.
type stubUseCase struct {
	usecase.TaskUseCase
	listErr error
	panics  bool
}

func (s stubUseCase) List(context.Context) ([]entity.Task, error) {
	if s.panics {
		panic("boom")
	}
	return nil, s.listErr
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	cases := []struct {
		name string
		uc   stubUseCase
		want string
	}{
		{"persistence", stubUseCase{listErr: apperror.Persistence(errors.New("dial tcp 10.0.0.1:27017"), "Could not fetch tasks")}, "Could not fetch tasks"},
		{"untyped", stubUseCase{listErr: errors.New("driver: secret detail")}, internalErrorMessage},
		{"panic", stubUseCase{panics: true}, internalErrorMessage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewRouter(tc.uc, RouterConfig{Registry: prometheus.NewRegistry()})
			rec := do(t, h, http.MethodGet, "/api/v1/tasks", "")

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, tc.want, decode[errorResponse](t, rec).Error)
			assert.NotContains(t, rec.Body.String(), "10.0.0.1")
		})
	}
}

func TestMetricsCountPanickedRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := NewRouter(stubUseCase{panics: true}, RouterConfig{Registry: reg})

	rec := do(t, h, http.MethodGet, "/api/v1/tasks", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `tasks_api_http_requests_total{code="500",method="GET",route="/api/v1/tasks`)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestRouter(t)
	do(t, h, http.MethodGet, "/api/v1/tasks", "")

	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `tasks_api_http_requests_total{code="200",method="GET",route="/api/v1/tasks`)
}

func TestSwaggerSpecIsServed(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/swagger/doc.json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"/tasks/{id}"`)
}
