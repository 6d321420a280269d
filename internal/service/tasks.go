// Package service holds the task and user business rules that sit between
// the HTTP handlers and storage.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"taskmanager/internal/models"
	"taskmanager/internal/storage"
	"taskmanager/internal/validation"
)

// TaskService manages tasks.
type TaskService struct {
	repo   storage.TaskRepository
	logger *slog.Logger
}

// NewTaskService creates a task service on top of repo.
func NewTaskService(repo storage.TaskRepository, logger *slog.Logger) *TaskService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskService{repo: repo, logger: logger}
}

// CreateTask stores a new task. Any caller supplied status is replaced by
// PENDING.
func (s *TaskService) CreateTask(ctx context.Context, task models.Task) (models.Task, error) {
	task.ID = 0
	task.Status = models.StatusPending
	if err := validation.Struct(task); err != nil {
		return models.Task{}, err
	}

	created, err := s.repo.SaveTask(ctx, task)
	if err != nil {
		return models.Task{}, saveTaskError(err, 0)
	}
	s.logger.Info("created task", slog.Int64("task_id", created.ID), slog.Int64("user_id", created.AssigneeID()))
	return created, nil
}

// GetAllTasks returns every stored task.
func (s *TaskService) GetAllTasks(ctx context.Context) ([]models.Task, error) {
	tasks, err := s.repo.FindAllTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// GetTaskByID looks up a task. A missing task is reported through the
// boolean, never as an error.
func (s *TaskService) GetTaskByID(ctx context.Context, id int64) (models.Task, bool, error) {
	task, found, err := s.repo.FindTaskByID(ctx, id)
	if err != nil {
		return models.Task{}, false, fmt.Errorf("get task: %w", err)
	}
	return task, found, nil
}

// UpdateTask replaces title, description, status and assignee of task id
// with the values in details. Nil fields in details overwrite stored values.
func (s *TaskService) UpdateTask(ctx context.Context, id int64, details models.Task) (models.Task, error) {
	task, found, err := s.GetTaskByID(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	if !found {
		return models.Task{}, taskNotFound(id)
	}

	task.Title = details.Title
	task.Description = details.Description
	task.Status = details.Status
	task.AssignedTo = details.AssignedTo
	if err := validation.Struct(task); err != nil {
		return models.Task{}, err
	}

	updated, err := s.repo.SaveTask(ctx, task)
	if err != nil {
		return models.Task{}, saveTaskError(err, id)
	}
	s.logger.Info("updated task", slog.Int64("task_id", id), slog.String("status", string(updated.Status)))
	return updated, nil
}

// DeleteTask removes task id.
func (s *TaskService) DeleteTask(ctx context.Context, id int64) error {
	_, found, err := s.GetTaskByID(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return taskNotFound(id)
	}

	if err := s.repo.DeleteTask(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return taskNotFound(id)
		}
		return fmt.Errorf("delete task: %w", err)
	}
	s.logger.Info("deleted task", slog.Int64("task_id", id))
	return nil
}

func saveTaskError(err error, id int64) error {
	switch {
	case errors.Is(err, storage.ErrAssigneeNotFound):
		return validation.FieldError("assignedTo", "The field 'assignedTo' must reference an existing user.")
	case errors.Is(err, storage.ErrNotFound):
		return taskNotFound(id)
	default:
		return fmt.Errorf("save task: %w", err)
	}
}
