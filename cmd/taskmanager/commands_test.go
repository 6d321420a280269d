package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskmanager/internal/config"
)

func TestLoadConfig_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("TASKMANAGER_STORAGE", "postgres")
	t.Setenv("TASKMANAGER_DATABASE_URL", "")

	cfg, err := loadConfig(&overrides{
		addr:        ":9090",
		databaseURL: "postgres://u:p@localhost:5432/tasks",
		policy:      "cascade",
	})
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, config.DriverPostgres, cfg.Storage)
	assert.Equal(t, "postgres://u:p@localhost:5432/tasks", cfg.DatabaseURL)
	assert.Equal(t, "cascade", cfg.UserDeletePolicy)
}

func TestLoadConfig_InvalidOverride(t *testing.T) {
	_, err := loadConfig(&overrides{storage: "mongo"})
	assert.ErrorContains(t, err, "unknown storage driver")

	_, err = loadConfig(&overrides{storage: config.DriverMemory, policy: "orphan"})
	assert.Error(t, err)
}

func TestOpenStore(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	tests := []struct {
		name string
		cfg  config.Config
	}{
		{name: "memory", cfg: config.Config{Storage: config.DriverMemory}},
		{name: "sqlite", cfg: config.Config{Storage: config.DriverSQLite, DBPath: filepath.Join(t.TempDir(), "tasks.db")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := openStore(ctx, &tt.cfg, logger)
			require.NoError(t, err)
			t.Cleanup(func() { store.Close() })

			assert.NoError(t, store.Ping(ctx))
		})
	}

	_, err := openStore(ctx, &config.Config{Storage: "mongo"}, logger)
	assert.Error(t, err)
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCommand()

	for _, name := range []string{"serve", "migrate"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}

	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	assert.NotNil(t, serve.Flags().Lookup("addr"))
	assert.NotNil(t, serve.InheritedFlags().Lookup("storage"))
}

func TestMigrateCommand_SQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "tasks.db")
	t.Setenv("TASKMANAGER_LOG_LEVEL", "error")

	root := newRootCommand()
	root.SetArgs([]string{"migrate", "--storage", "sqlite", "--db", dbPath})
	require.NoError(t, root.Execute())
	assert.FileExists(t, dbPath)
}
