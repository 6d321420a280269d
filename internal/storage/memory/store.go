// Package memory keeps users and tasks in process memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"taskmanager/internal/models"
	"taskmanager/internal/storage"
)

type taskRow struct {
	task   models.Task
	userID int64
}

// Store is a mutex guarded map backend. Ids come from per-table sequences
// owned by the store and are never reused.
type Store struct {
	mu      sync.RWMutex
	users   map[int64]models.User
	tasks   map[int64]taskRow
	userSeq int64
	taskSeq int64
	now     func() time.Time
}

var _ storage.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		users: make(map[int64]models.User),
		tasks: make(map[int64]taskRow),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the timestamp source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

// FindUserByID looks a user up by id.
func (s *Store) FindUserByID(_ context.Context, id int64) (models.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return copyUser(u), ok, nil
}

// FindAllUsers returns users ordered by id.
func (s *Store) FindAllUsers(context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, copyUser(u))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// SaveUser inserts or replaces a user.
func (s *Store) SaveUser(_ context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == 0 {
		s.userSeq++
		user.ID = s.userSeq
	} else if _, ok := s.users[user.ID]; !ok {
		return models.User{}, storage.ErrNotFound
	}
	user = copyUser(user)
	s.users[user.ID] = user
	return copyUser(user), nil
}

// DeleteUser removes a user, honouring policy for tasks assigned to it.
func (s *Store) DeleteUser(_ context.Context, id int64, policy storage.DeletePolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return storage.ErrNotFound
	}

	var assigned []int64
	for taskID, row := range s.tasks {
		if row.userID == id {
			assigned = append(assigned, taskID)
		}
	}
	if len(assigned) > 0 {
		if policy != storage.DeletePolicyCascade {
			return storage.ErrUserReferenced
		}
		for _, taskID := range assigned {
			delete(s.tasks, taskID)
		}
	}

	delete(s.users, id)
	return nil
}

// FindTaskByID looks a task up by id.
func (s *Store) FindTaskByID(_ context.Context, id int64) (models.Task, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.tasks[id]
	if !ok {
		return models.Task{}, false, nil
	}
	return s.resolve(row), true, nil
}

// FindAllTasks returns tasks ordered by id.
func (s *Store) FindAllTasks(context.Context) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]models.Task, 0, len(s.tasks))
	for _, row := range s.tasks {
		tasks = append(tasks, s.resolve(row))
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

// SaveTask inserts or replaces a task.
func (s *Store) SaveTask(_ context.Context, task models.Task) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID := task.AssigneeID()
	if _, ok := s.users[userID]; !ok {
		return models.Task{}, storage.ErrAssigneeNotFound
	}

	now := s.now()
	if task.ID == 0 {
		s.taskSeq++
		task.ID = s.taskSeq
		task.CreatedAt = now
	} else {
		current, ok := s.tasks[task.ID]
		if !ok {
			return models.Task{}, storage.ErrNotFound
		}
		task.CreatedAt = current.task.CreatedAt
		if now.Before(task.CreatedAt) {
			now = task.CreatedAt
		}
	}
	task.UpdatedAt = now
	task.Description = copyString(task.Description)
	task.AssignedTo = nil

	row := taskRow{task: task, userID: userID}
	s.tasks[task.ID] = row
	return s.resolve(row), nil
}

// DeleteTask removes a task by id.
func (s *Store) DeleteTask(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

// resolve attaches the current assignee record; callers hold s.mu.
func (s *Store) resolve(row taskRow) models.Task {
	t := row.task
	t.Description = copyString(t.Description)
	if u, ok := s.users[row.userID]; ok {
		u = copyUser(u)
		t.AssignedTo = &u
	} else {
		t.AssignedTo = &models.User{ID: row.userID}
	}
	return t
}

func copyUser(u models.User) models.User {
	u.Timezone = copyString(u.Timezone)
	return u
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
