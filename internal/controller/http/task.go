package http

import (
	"net/http"

	"github.com/KarpovAlexandrGo/tasks-api/internal/entity"
	"github.com/KarpovAlexandrGo/tasks-api/internal/usecase"
	"github.com/go-chi/chi/v5"
)

const healthMessage = "API is working fine"

type taskResponse struct {
	Task entity.Task `json:"task"`
}

type tasksResponse struct {
	Tasks []entity.Task `json:"tasks"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// TaskHandler serves the task endpoints.
type TaskHandler struct {
	taskUseCase usecase.TaskUseCase
}

func NewTaskHandler(taskUseCase usecase.TaskUseCase) *TaskHandler {
	return &TaskHandler{
		taskUseCase: taskUseCase,
	}
}

// RegisterRoutes mounts the API under r. Handlers return errors; handle turns
// them into responses.
func (h *TaskHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Health)
	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", handle(h.ListTasks))
		r.Post("/", handle(h.CreateTask))
		r.Get("/{id}", handle(h.GetTask))
		r.Put("/{id}", handle(h.UpdateTask))
		r.Delete("/{id}", handle(h.DeleteTask))
	})
}

// Health reports that the API is up.
// @Summary      Health check
// @Tags         health
// @Produce      plain
// @Success      200  {string} string "API is working fine"
// @Router       / [get]
func (h *TaskHandler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(healthMessage))
}

// ListTasks returns every task.
// @Summary      List tasks
// @Tags         tasks
// @Produce      json
// @Success      200  {object} tasksResponse
// @Failure      500  {object} errorResponse
// @Router       /tasks [get]
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) error {
	tasks, err := h.taskUseCase.List(r.Context())
	if err != nil {
		return err
	}
	respondWithJSON(w, http.StatusOK, tasksResponse{Tasks: tasks})
	return nil
}

// CreateTask creates a task with a unique title.
// @Summary      Create task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        task body     entity.TaskInput true "Task"
// @Success      201  {object} taskResponse
// @Failure      400  {object} errorResponse "Missing fields or duplicate title"
// @Failure      500  {object} errorResponse
// @Router       /tasks [post]
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) error {
	var input entity.TaskInput
	if err := decodeJSON(r, &input); err != nil {
		return err
	}

	task, err := h.taskUseCase.Create(r.Context(), input)
	if err != nil {
		return err
	}
	respondWithJSON(w, http.StatusCreated, taskResponse{Task: task})
	return nil
}

// GetTask returns one task.
// @Summary      Get task
// @Tags         tasks
// @Produce      json
// @Param        id   path     string true "Task ID"
// @Success      200  {object} taskResponse
// @Failure      404  {object} errorResponse
// @Router       /tasks/{id} [get]
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) error {
	task, err := h.taskUseCase.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	respondWithJSON(w, http.StatusOK, taskResponse{Task: task})
	return nil
}

// UpdateTask changes description, status or dueDate. Other keys are rejected.
// @Summary      Update task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        id   path     string true "Task ID"
// @Param        task body     object true "Any of description, status, dueDate"
// @Success      200  {object} taskResponse
// @Failure      400  {object} errorResponse "Invalid id or disallowed field"
// @Failure      404  {object} errorResponse
// @Failure      500  {object} errorResponse
// @Router       /tasks/{id} [put]
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) error {
	fields := map[string]any{}
	if err := decodeJSON(r, &fields); err != nil {
		return err
	}

	task, err := h.taskUseCase.Update(r.Context(), chi.URLParam(r, "id"), fields)
	if err != nil {
		return err
	}
	respondWithJSON(w, http.StatusOK, taskResponse{Task: task})
	return nil
}

// DeleteTask removes a task permanently.
// @Summary      Delete task
// @Tags         tasks
// @Produce      json
// @Param        id   path     string true "Task ID"
// @Success      200  {object} messageResponse
// @Failure      404  {object} errorResponse
// @Router       /tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) error {
	message, err := h.taskUseCase.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	respondWithJSON(w, http.StatusOK, messageResponse{Message: message})
	return nil
}
