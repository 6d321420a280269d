package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskmanager/internal/models"
	"taskmanager/internal/storage"
)

func requireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

func openIntegrationStore(t *testing.T) *Store {
	t.Helper()
	url := requireEnv(t, "TASKMANAGER_TEST_DATABASE_URL")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := Open(ctx, url, nil)
	require.NoError(t, err)
	_, err = s.pool.Exec(ctx, `TRUNCATE task, app_user RESTART IDENTITY`)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestIntegration_TaskLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openIntegrationStore(t)

	john, err := s.SaveUser(ctx, models.User{FirstName: "John", LastName: "Doe"})
	require.NoError(t, err)
	jane, err := s.SaveUser(ctx, models.User{FirstName: "Jane", LastName: "Doe"})
	require.NoError(t, err)

	created, err := s.SaveTask(ctx, models.Task{
		Title:      "Complete Project Documentation",
		Status:     models.StatusPending,
		AssignedTo: &models.User{ID: john.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, "John", created.AssignedTo.FirstName)
	assert.False(t, created.UpdatedAt.Before(created.CreatedAt))

	created.Title = "New Title"
	created.Status = models.StatusInProgress
	created.AssignedTo = &models.User{ID: jane.ID}
	updated, err := s.SaveTask(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.True(t, updated.CreatedAt.Equal(created.CreatedAt))
	assert.Equal(t, jane.ID, updated.AssignedTo.ID)

	_, err = s.SaveTask(ctx, models.Task{Title: "x", Status: models.StatusPending, AssignedTo: &models.User{ID: 999}})
	assert.ErrorIs(t, err, storage.ErrAssigneeNotFound)

	assert.ErrorIs(t, s.DeleteUser(ctx, jane.ID, storage.DeletePolicyRestrict), storage.ErrUserReferenced)
	require.NoError(t, s.DeleteUser(ctx, jane.ID, storage.DeletePolicyCascade))

	_, found, err := s.FindTaskByID(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, found)
	assert.ErrorIs(t, s.DeleteTask(ctx, created.ID), storage.ErrNotFound)
}

func TestIntegration_SaveUnknownUser(t *testing.T) {
	s := openIntegrationStore(t)
	_, err := s.SaveUser(context.Background(), models.User{ID: 12345, FirstName: "a", LastName: "b"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
