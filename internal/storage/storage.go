// Package storage declares the persistence contract shared by the backends.
package storage

import (
	"context"
	"errors"
	"fmt"

	"taskmanager/internal/models"
)

var (
	// ErrNotFound is returned when a save or delete targets a missing id.
	ErrNotFound = errors.New("record not found")
	// ErrAssigneeNotFound is returned when a task references a missing user.
	ErrAssigneeNotFound = errors.New("assigned user does not exist")
	// ErrUserReferenced is returned when DeletePolicyRestrict blocks a user delete.
	ErrUserReferenced = errors.New("user is assigned to one or more tasks")
)

// DeletePolicy decides what happens to tasks when their assignee is deleted.
type DeletePolicy string

const (
	DeletePolicyRestrict DeletePolicy = "restrict"
	DeletePolicyCascade  DeletePolicy = "cascade"
)

// ParseDeletePolicy converts a configuration value into a DeletePolicy.
func ParseDeletePolicy(v string) (DeletePolicy, error) {
	switch p := DeletePolicy(v); p {
	case DeletePolicyRestrict, DeletePolicyCascade:
		return p, nil
	default:
		return "", fmt.Errorf("unknown user delete policy %q", v)
	}
}

// TaskRepository persists tasks. SaveTask inserts when task.ID is zero and
// replaces the stored row otherwise; the returned task carries the resolved
// assignee and storage-managed timestamps.
type TaskRepository interface {
	FindTaskByID(ctx context.Context, id int64) (models.Task, bool, error)
	FindAllTasks(ctx context.Context) ([]models.Task, error)
	SaveTask(ctx context.Context, task models.Task) (models.Task, error)
	DeleteTask(ctx context.Context, id int64) error
}

// UserRepository persists users.
type UserRepository interface {
	FindUserByID(ctx context.Context, id int64) (models.User, bool, error)
	FindAllUsers(ctx context.Context) ([]models.User, error)
	SaveUser(ctx context.Context, user models.User) (models.User, error)
	DeleteUser(ctx context.Context, id int64, policy DeletePolicy) error
}

// Store is implemented by every backend.
type Store interface {
	TaskRepository
	UserRepository
	Ping(ctx context.Context) error
	Close() error
}
