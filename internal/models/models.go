package models

import "time"

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "PENDING"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusCompleted  TaskStatus = "COMPLETED"
)

// ValidTaskStatuses enumerates the statuses a task may hold.
var ValidTaskStatuses = map[TaskStatus]struct{}{
	StatusPending:    {},
	StatusInProgress: {},
	StatusCompleted:  {},
}

// Valid reports whether s is a member of ValidTaskStatuses.
func (s TaskStatus) Valid() bool {
	_, ok := ValidTaskStatuses[s]
	return ok
}

// User is a person tasks can be assigned to.
type User struct {
	ID        int64   `json:"id"`
	FirstName string  `json:"firstName" validate:"required,notblank"`
	LastName  string  `json:"lastName" validate:"required,notblank"`
	Timezone  *string `json:"timezone"`
	IsActive  bool    `json:"isActive"`
}

// Task represents a unit of work assigned to exactly one user.
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title" validate:"required,notblank"`
	Description *string    `json:"description"`
	Status      TaskStatus `json:"status" validate:"required,oneof=PENDING IN_PROGRESS COMPLETED"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	AssignedTo  *User      `json:"assignedTo" validate:"-"`
}

// AssigneeID returns the id of the assigned user or zero when unassigned.
func (t Task) AssigneeID() int64 {
	if t.AssignedTo == nil {
		return 0
	}
	return t.AssignedTo.ID
}
