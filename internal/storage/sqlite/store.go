package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"taskmanager/internal/models"
	"taskmanager/internal/storage"
)

// Store wraps access to the SQLite database and implements storage.Store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

var _ storage.Store = (*Store)(nil)

// Open initializes a new SQLite store and runs the required migrations.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("empty database path")
	}

	if logger == nil {
		logger = slog.Default()
	}

	if err := ensureDir(dbPath); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=ON", dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	s := &Store{db: conn, logger: logger, now: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the database resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func ensureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS app_user (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            first_name TEXT NOT NULL,
            last_name TEXT NOT NULL,
            timezone TEXT,
            is_active BOOLEAN NOT NULL DEFAULT 0
        );`,
		`CREATE TABLE IF NOT EXISTS task (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            title TEXT NOT NULL,
            description TEXT,
            status TEXT NOT NULL CHECK (status IN ('PENDING', 'IN_PROGRESS', 'COMPLETED')),
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            user_id INTEGER NOT NULL,
            FOREIGN KEY(user_id) REFERENCES app_user(id)
        );`,
		`CREATE INDEX IF NOT EXISTS idx_task_user ON task(user_id);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	s.logger.Debug("sqlite schema ready")
	return nil
}

const selectUser = `SELECT id, first_name, last_name, timezone, is_active FROM app_user`

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (models.User, error) {
	var (
		u  models.User
		tz sql.NullString
	)
	if err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &tz, &u.IsActive); err != nil {
		return models.User{}, err
	}
	u.Timezone = fromNull(tz)
	return u, nil
}

// FindAllUsers retrieves all users ordered by id.
func (s *Store) FindAllUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, selectUser+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// FindUserByID fetches a single user by id.
func (s *Store) FindUserByID(ctx context.Context, id int64) (models.User, bool, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, selectUser+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, false, nil
	}
	if err != nil {
		return models.User{}, false, fmt.Errorf("get user: %w", err)
	}
	return u, true, nil
}

// SaveUser inserts a new user or replaces an existing one.
func (s *Store) SaveUser(ctx context.Context, u models.User) (models.User, error) {
	if u.ID == 0 {
		res, err := s.db.ExecContext(ctx, `INSERT INTO app_user(first_name, last_name, timezone, is_active) VALUES(?, ?, ?, ?)`,
			u.FirstName, u.LastName, toNull(u.Timezone), u.IsActive)
		if err != nil {
			return models.User{}, fmt.Errorf("insert user: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return models.User{}, fmt.Errorf("user id: %w", err)
		}
		u.ID = id
	} else {
		res, err := s.db.ExecContext(ctx, `UPDATE app_user SET first_name = ?, last_name = ?, timezone = ?, is_active = ? WHERE id = ?`,
			u.FirstName, u.LastName, toNull(u.Timezone), u.IsActive, u.ID)
		if err != nil {
			return models.User{}, fmt.Errorf("update user: %w", err)
		}
		if err := expectOne(res); err != nil {
			return models.User{}, err
		}
	}

	saved, found, err := s.FindUserByID(ctx, u.ID)
	if err != nil {
		return models.User{}, err
	}
	if !found {
		return models.User{}, storage.ErrNotFound
	}
	return saved, nil
}

// DeleteUser removes a user; tasks assigned to it are handled per policy.
func (s *Store) DeleteUser(ctx context.Context, id int64, policy storage.DeletePolicy) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete user: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var assigned int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM task WHERE user_id = ?`, id).Scan(&assigned); err != nil {
		return fmt.Errorf("count assigned tasks: %w", err)
	}
	if assigned > 0 {
		if policy != storage.DeletePolicyCascade {
			return storage.ErrUserReferenced
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM task WHERE user_id = ?`, id); err != nil {
			return fmt.Errorf("delete assigned tasks: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM app_user WHERE id = ?`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return storage.ErrUserReferenced
		}
		return fmt.Errorf("delete user: %w", err)
	}
	if err := expectOne(res); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete user: %w", err)
	}
	if assigned > 0 {
		s.logger.Info("cascaded user delete", slog.Int64("user_id", id), slog.Int64("tasks", assigned))
	}
	return nil
}

const selectTask = `SELECT t.id, t.title, t.description, t.status, t.created_at, t.updated_at,
        u.id, u.first_name, u.last_name, u.timezone, u.is_active
        FROM task t JOIN app_user u ON u.id = t.user_id`

func scanTask(row scanner) (models.Task, error) {
	var (
		t    models.Task
		u    models.User
		desc sql.NullString
		tz   sql.NullString
	)
	err := row.Scan(&t.ID, &t.Title, &desc, &t.Status, &t.CreatedAt, &t.UpdatedAt,
		&u.ID, &u.FirstName, &u.LastName, &tz, &u.IsActive)
	if err != nil {
		return models.Task{}, err
	}
	t.Description = fromNull(desc)
	u.Timezone = fromNull(tz)
	t.AssignedTo = &u
	return t, nil
}

// FindAllTasks returns every task with its assignee, ordered by id.
func (s *Store) FindAllTasks(ctx context.Context) ([]models.Task, error) {
	rows, err := s.db.QueryContext(ctx, selectTask+` ORDER BY t.id`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// FindTaskByID retrieves a task by id.
func (s *Store) FindTaskByID(ctx context.Context, id int64) (models.Task, bool, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, selectTask+` WHERE t.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, false, nil
	}
	if err != nil {
		return models.Task{}, false, fmt.Errorf("get task: %w", err)
	}
	return t, true, nil
}

// SaveTask inserts a new task or replaces an existing one. created_at is
// written only on insert; updated_at is refreshed on every save and clamped
// to created_at.
func (s *Store) SaveTask(ctx context.Context, t models.Task) (models.Task, error) {
	now := s.now()
	if t.ID == 0 {
		res, err := s.db.ExecContext(ctx, `INSERT INTO task(title, description, status, created_at, updated_at, user_id) VALUES(?, ?, ?, ?, ?, ?)`,
			t.Title, toNull(t.Description), string(t.Status), now, now, t.AssigneeID())
		if err != nil {
			return models.Task{}, taskWriteError("insert task", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return models.Task{}, fmt.Errorf("task id: %w", err)
		}
		t.ID = id
	} else {
		var createdAt time.Time
		err := s.db.QueryRowContext(ctx, `SELECT created_at FROM task WHERE id = ?`, t.ID).Scan(&createdAt)
		if errors.Is(err, sql.ErrNoRows) {
			return models.Task{}, storage.ErrNotFound
		}
		if err != nil {
			return models.Task{}, fmt.Errorf("load task: %w", err)
		}
		// updated_at never precedes created_at, even if the clock steps back
		if now.Before(createdAt) {
			now = createdAt
		}

		res, err := s.db.ExecContext(ctx, `UPDATE task SET title = ?, description = ?, status = ?, user_id = ?, updated_at = ? WHERE id = ?`,
			t.Title, toNull(t.Description), string(t.Status), t.AssigneeID(), now, t.ID)
		if err != nil {
			return models.Task{}, taskWriteError("update task", err)
		}
		if err := expectOne(res); err != nil {
			return models.Task{}, err
		}
	}

	saved, found, err := s.FindTaskByID(ctx, t.ID)
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
	res, err := s.db.ExecContext(ctx, `DELETE FROM task WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func taskWriteError(op string, err error) error {
	if isForeignKeyViolation(err) {
		return storage.ErrAssigneeNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}

func toNull(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func fromNull(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
