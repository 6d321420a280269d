package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskmanager/internal/models"
	"taskmanager/internal/storage"
)

func seedUser(t *testing.T, s *Store, first string) models.User {
	t.Helper()
	u, err := s.SaveUser(context.Background(), models.User{FirstName: first, LastName: "Doe"})
	require.NoError(t, err)
	return u
}

func TestStore_SequencesAreNeverReused(t *testing.T) {
	ctx := context.Background()
	s := New()

	first := seedUser(t, s, "John")
	require.NoError(t, s.DeleteUser(ctx, first.ID, storage.DeletePolicyRestrict))
	second := seedUser(t, s, "Jane")

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
}

func TestStore_SaveTaskKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := New().WithClock(func() time.Time { return clock })
	u := seedUser(t, s, "John")

	created, err := s.SaveTask(ctx, models.Task{Title: "a", Status: models.StatusPending, AssignedTo: &models.User{ID: u.ID}})
	require.NoError(t, err)
	assert.Equal(t, clock, created.CreatedAt)
	assert.Equal(t, "John", created.AssignedTo.FirstName)

	clock = clock.Add(time.Hour)
	created.Title = "b"
	created.CreatedAt = time.Time{}
	updated, err := s.SaveTask(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, clock.Add(-time.Hour), updated.CreatedAt)
	assert.Equal(t, clock, updated.UpdatedAt)
}

func TestStore_SaveTaskUnknownAssignee(t *testing.T) {
	_, err := New().SaveTask(context.Background(), models.Task{Title: "a", AssignedTo: &models.User{ID: 9}})
	assert.ErrorIs(t, err, storage.ErrAssigneeNotFound)
}

func TestStore_SaveUnknownIDs(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := seedUser(t, s, "John")

	_, err := s.SaveUser(ctx, models.User{ID: 42, FirstName: "x", LastName: "y"})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.SaveTask(ctx, models.Task{ID: 42, Title: "a", AssignedTo: &models.User{ID: u.ID}})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, s.DeleteTask(ctx, 42), storage.ErrNotFound)
	assert.ErrorIs(t, s.DeleteUser(ctx, 42, storage.DeletePolicyCascade), storage.ErrNotFound)
}

func TestStore_DeleteUserPolicies(t *testing.T) {
	ctx := context.Background()
	s := New()
	owner := seedUser(t, s, "John")
	other := seedUser(t, s, "Jane")

	kept, err := s.SaveTask(ctx, models.Task{Title: "kept", Status: models.StatusPending, AssignedTo: &models.User{ID: other.ID}})
	require.NoError(t, err)
	_, err = s.SaveTask(ctx, models.Task{Title: "gone", Status: models.StatusPending, AssignedTo: &models.User{ID: owner.ID}})
	require.NoError(t, err)

	assert.ErrorIs(t, s.DeleteUser(ctx, owner.ID, storage.DeletePolicyRestrict), storage.ErrUserReferenced)
	_, found, err := s.FindUserByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.True(t, found)

	require.NoError(t, s.DeleteUser(ctx, owner.ID, storage.DeletePolicyCascade))
	tasks, err := s.FindAllTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, kept.ID, tasks[0].ID)
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	tz := "UTC"
	u, err := s.SaveUser(ctx, models.User{FirstName: "John", LastName: "Doe", Timezone: &tz})
	require.NoError(t, err)

	*u.Timezone = "PST"
	stored, _, err := s.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "UTC", *stored.Timezone)
}
