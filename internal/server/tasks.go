package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskmanager/internal/models"
	"taskmanager/internal/service"
)

type userRef struct {
	ID int64 `json:"id"`
}

type taskRequest struct {
	Title       string            `json:"title"`
	Description *string           `json:"description"`
	Status      models.TaskStatus `json:"status"`
	AssignedTo  *userRef          `json:"assignedTo"`
}

func (r taskRequest) toTask() models.Task {
	task := models.Task{
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
	}
	if r.AssignedTo != nil {
		task.AssignedTo = &models.User{ID: r.AssignedTo.ID}
	}
	return task
}

// handleListTasks returns every task.
func (s *Server) handleListTasks(c *gin.Context) {
	tasks, err := s.tasks.GetAllTasks(c.Request.Context())
	if err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	respondSuccess(c, http.StatusOK, tasks)
}

// handleCreateTask stores a new task in PENDING state.
func (s *Server) handleCreateTask(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBindError(c, err)
		return
	}

	task, err := s.tasks.CreateTask(c.Request.Context(), req.toTask())
	if err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	respondSuccess(c, http.StatusCreated, task)
}

// handleGetTask returns a single task.
func (s *Server) handleGetTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	task, found, err := s.tasks.GetTaskByID(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	if !found {
		s.respondError(c, http.StatusNotFound, &service.NotFoundError{Resource: service.ResourceTask, ID: id})
		return
	}
	respondSuccess(c, http.StatusOK, task)
}

// handleUpdateTask replaces every mutable field of a task.
func (s *Server) handleUpdateTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBindError(c, err)
		return
	}

	task, err := s.tasks.UpdateTask(c.Request.Context(), id, req.toTask())
	if err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	respondSuccess(c, http.StatusOK, task)
}

// handleDeleteTask removes a task completely.
func (s *Server) handleDeleteTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := s.tasks.DeleteTask(c.Request.Context(), id); err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	respondSuccess(c, http.StatusNoContent, nil)
}
