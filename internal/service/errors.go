package service

import (
	"errors"
	"fmt"
)

// ErrNotFound matches every *NotFoundError via errors.Is.
var ErrNotFound = errors.New("not found")

// Resource names used in NotFoundError.
const (
	ResourceTask = "task"
	ResourceUser = "user"
)

// NotFoundError reports that a write targeted an id with no stored record.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	switch e.Resource {
	case ResourceTask:
		return "Task not found"
	case ResourceUser:
		return fmt.Sprintf("User not found with id: %d", e.ID)
	default:
		return fmt.Sprintf("%s not found with id: %d", e.Resource, e.ID)
	}
}

// Is lets errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func taskNotFound(id int64) error {
	return &NotFoundError{Resource: ResourceTask, ID: id}
}

func userNotFound(id int64) error {
	return &NotFoundError{Resource: ResourceUser, ID: id}
}
