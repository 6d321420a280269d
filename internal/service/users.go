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

// UserService manages users.
type UserService struct {
	repo         storage.UserRepository
	deletePolicy storage.DeletePolicy
	logger       *slog.Logger
}

// NewUserService creates a user service. policy controls what happens to
// tasks still assigned to a deleted user; an empty policy means restrict.
func NewUserService(repo storage.UserRepository, policy storage.DeletePolicy, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	if policy == "" {
		policy = storage.DeletePolicyRestrict
	}
	return &UserService{repo: repo, deletePolicy: policy, logger: logger}
}

// CreateUser stores user as given; only the id is assigned by storage.
func (s *UserService) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	user.ID = 0
	if err := validation.Struct(user); err != nil {
		return models.User{}, err
	}

	created, err := s.repo.SaveUser(ctx, user)
	if err != nil {
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("created user", slog.Int64("user_id", created.ID))
	return created, nil
}

// GetAllUsers returns every stored user.
func (s *UserService) GetAllUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.repo.FindAllUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// GetUserByID looks up a user; absence is not an error.
func (s *UserService) GetUserByID(ctx context.Context, id int64) (models.User, bool, error) {
	user, found, err := s.repo.FindUserByID(ctx, id)
	if err != nil {
		return models.User{}, false, fmt.Errorf("get user: %w", err)
	}
	return user, found, nil
}

// UpdateUser overwrites every mutable field of user id with details.
func (s *UserService) UpdateUser(ctx context.Context, id int64, details models.User) (models.User, error) {
	user, found, err := s.GetUserByID(ctx, id)
	if err != nil {
		return models.User{}, err
	}
	if !found {
		return models.User{}, userNotFound(id)
	}

	user.FirstName = details.FirstName
	user.LastName = details.LastName
	user.Timezone = details.Timezone
	user.IsActive = details.IsActive
	if err := validation.Struct(user); err != nil {
		return models.User{}, err
	}

	updated, err := s.repo.SaveUser(ctx, user)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, userNotFound(id)
		}
		return models.User{}, fmt.Errorf("update user: %w", err)
	}
	s.logger.Info("updated user", slog.Int64("user_id", id))
	return updated, nil
}

// DeleteUser removes user id according to the configured delete policy.
// storage.ErrUserReferenced is returned when the restrict policy blocks it.
func (s *UserService) DeleteUser(ctx context.Context, id int64) error {
	_, found, err := s.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return userNotFound(id)
	}

	if err := s.repo.DeleteUser(ctx, id, s.deletePolicy); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return userNotFound(id)
		case errors.Is(err, storage.ErrUserReferenced):
			return err
		}
		return fmt.Errorf("delete user: %w", err)
	}
	s.logger.Info("deleted user", slog.Int64("user_id", id), slog.String("policy", string(s.deletePolicy)))
	return nil
}
