package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"taskmanager/internal/models"
	"taskmanager/internal/storage"
	"taskmanager/internal/storage/memory"
)

// recordingStore counts mutating calls on top of the memory backend.
type recordingStore struct {
	*memory.Store
	taskSaves   int
	taskDeletes int
	userSaves   int
	userDeletes int
	failWith    error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{Store: memory.New()}
}

func (r *recordingStore) SaveTask(ctx context.Context, t models.Task) (models.Task, error) {
	r.taskSaves++
	return r.Store.SaveTask(ctx, t)
}

func (r *recordingStore) DeleteTask(ctx context.Context, id int64) error {
	r.taskDeletes++
	return r.Store.DeleteTask(ctx, id)
}

func (r *recordingStore) SaveUser(ctx context.Context, u models.User) (models.User, error) {
	r.userSaves++
	return r.Store.SaveUser(ctx, u)
}

func (r *recordingStore) DeleteUser(ctx context.Context, id int64, p storage.DeletePolicy) error {
	r.userDeletes++
	return r.Store.DeleteUser(ctx, id, p)
}

func (r *recordingStore) FindAllTasks(ctx context.Context) ([]models.Task, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	return r.Store.FindAllTasks(ctx)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr(s string) *string { return &s }

func mustCreateUser(t *testing.T, svc *UserService, first, last string) models.User {
	t.Helper()
	u, err := svc.CreateUser(context.Background(), models.User{FirstName: first, LastName: last})
	require.NoError(t, err)
	return u
}

func TestNotFoundError_Messages(t *testing.T) {
	require.EqualError(t, taskNotFound(1), "Task not found")
	require.EqualError(t, userNotFound(1), "User not found with id: 1")
	require.True(t, errors.Is(userNotFound(7), ErrNotFound))

	var nf *NotFoundError
	require.True(t, errors.As(taskNotFound(3), &nf))
	require.Equal(t, int64(3), nf.ID)
}
