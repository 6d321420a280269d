// Package postgres implements storage.Store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"taskmanager/internal/models"
	"taskmanager/internal/storage"
)

// Store provides database access backed by a pgx connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	now    func() time.Time
}

var _ storage.Store = (*Store)(nil)

// Open connects to databaseURL, verifies the connection and applies the schema.
func Open(ctx context.Context, databaseURL string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{pool: pool, logger: logger, now: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS app_user (
		id BIGSERIAL PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		timezone TEXT,
		is_active BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS task (
		id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		status TEXT NOT NULL CHECK (status IN ('PENDING', 'IN_PROGRESS', 'COMPLETED')),
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		user_id BIGINT NOT NULL REFERENCES app_user(id),
		CHECK (created_at <= updated_at)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_task_user ON task(user_id)`,
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	s.logger.Debug("postgres schema ready")
	return nil
}

const selectUser = `
	SELECT id, first_name, last_name, timezone, is_active
	FROM app_user
`

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Timezone, &u.IsActive)
	return u, err
}

// FindUserByID retrieves a user by id.
func (s *Store) FindUserByID(ctx context.Context, id int64) (models.User, bool, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, selectUser+`WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, false, nil
		}
		return models.User{}, false, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return u, true, nil
}

// FindAllUsers returns all users ordered by id.
func (s *Store) FindAllUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, selectUser+`ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SaveUser inserts a user when its id is zero and replaces it otherwise.
func (s *Store) SaveUser(ctx context.Context, u models.User) (models.User, error) {
	var row pgx.Row
	if u.ID == 0 {
		row = s.pool.QueryRow(ctx, `
			INSERT INTO app_user (first_name, last_name, timezone, is_active)
			VALUES ($1, $2, $3, $4)
			RETURNING id, first_name, last_name, timezone, is_active
		`, u.FirstName, u.LastName, u.Timezone, u.IsActive)
	} else {
		row = s.pool.QueryRow(ctx, `
			UPDATE app_user
			SET first_name = $1, last_name = $2, timezone = $3, is_active = $4
			WHERE id = $5
			RETURNING id, first_name, last_name, timezone, is_active
		`, u.FirstName, u.LastName, u.Timezone, u.IsActive, u.ID)
	}

	saved, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrNotFound
		}
		return models.User{}, fmt.Errorf("failed to save user: %w", err)
	}
	return saved, nil
}

// DeleteUser removes a user inside a transaction, applying policy to the
// tasks that reference it.
func (s *Store) DeleteUser(ctx context.Context, id int64, policy storage.DeletePolicy) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var assigned int64
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM task WHERE user_id = $1`, id).Scan(&assigned); err != nil {
		return fmt.Errorf("failed to count assigned tasks: %w", err)
	}
	if assigned > 0 {
		if policy != storage.DeletePolicyCascade {
			return storage.ErrUserReferenced
		}
		if _, err := tx.Exec(ctx, `DELETE FROM task WHERE user_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete assigned tasks: %w", err)
		}
	}

	tag, err := tx.Exec(ctx, `DELETE FROM app_user WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return storage.ErrUserReferenced
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	if assigned > 0 {
		s.logger.Info("cascaded user delete", slog.Int64("user_id", id), slog.Int64("tasks", assigned))
	}
	return nil
}

const selectTask = `
	SELECT t.id, t.title, t.description, t.status, t.created_at, t.updated_at,
	       u.id, u.first_name, u.last_name, u.timezone, u.is_active
	FROM task t
	JOIN app_user u ON u.id = t.user_id
`

func scanTask(row pgx.Row) (models.Task, error) {
	var (
		t models.Task
		u models.User
	)
	err := row.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&t.Status,
		&t.CreatedAt,
		&t.UpdatedAt,
		&u.ID,
		&u.FirstName,
		&u.LastName,
		&u.Timezone,
		&u.IsActive,
	)
	if err != nil {
		return models.Task{}, err
	}
	t.AssignedTo = &u
	return t, nil
}

// FindTaskByID retrieves a task and its assignee.
func (s *Store) FindTaskByID(ctx context.Context, id int64) (models.Task, bool, error) {
	t, err := scanTask(s.pool.QueryRow(ctx, selectTask+`WHERE t.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Task{}, false, nil
		}
		return models.Task{}, false, fmt.Errorf("failed to get task by ID: %w", err)
	}
	return t, true, nil
}

// FindAllTasks returns all tasks ordered by id.
func (s *Store) FindAllTasks(ctx context.Context) ([]models.Task, error) {
	rows, err := s.pool.Query(ctx, selectTask+`ORDER BY t.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// SaveTask inserts a task when its id is zero and replaces it otherwise.
func (s *Store) SaveTask(ctx context.Context, t models.Task) (models.Task, error) {
	now := s.now()

	var id int64
	var err error
	if t.ID == 0 {
		err = s.pool.QueryRow(ctx, `
			INSERT INTO task (title, description, status, created_at, updated_at, user_id)
			VALUES ($1, $2, $3, $4, $4, $5)
			RETURNING id
		`, t.Title, t.Description, string(t.Status), now, t.AssigneeID()).Scan(&id)
	} else {
		err = s.pool.QueryRow(ctx, `
			UPDATE task
			SET title = $1, description = $2, status = $3, user_id = $4,
			    updated_at = GREATEST($5, created_at)
			WHERE id = $6
			RETURNING id
		`, t.Title, t.Description, string(t.Status), t.AssigneeID(), now, t.ID).Scan(&id)
	}
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return models.Task{}, storage.ErrNotFound
		case isForeignKeyViolation(err):
			return models.Task{}, storage.ErrAssigneeNotFound
		}
		return models.Task{}, fmt.Errorf("failed to save task: %w", err)
	}

	saved, found, err := s.FindTaskByID(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	if !found {
		return models.Task{}, storage.ErrNotFound
	}
	return saved, nil
}

// DeleteTask removes a task by id.
func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM task WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}
