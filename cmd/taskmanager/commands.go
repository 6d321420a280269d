package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"taskmanager/internal/config"
	"taskmanager/internal/logging"
	"taskmanager/internal/server"
	"taskmanager/internal/service"
	"taskmanager/internal/storage"
	"taskmanager/internal/storage/memory"
	"taskmanager/internal/storage/postgres"
	"taskmanager/internal/storage/sqlite"
)

// overrides holds flag values that take precedence over the environment.
type overrides struct {
	addr        string
	storage     string
	dbPath      string
	databaseURL string
	policy      string
}

func newRootCommand() *cobra.Command {
	var o overrides

	root := &cobra.Command{
		Use:           "taskmanager",
		Short:         "Task tracking service for users and their tasks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&o.storage, "storage", "", "storage driver: sqlite, postgres or memory")
	root.PersistentFlags().StringVar(&o.dbPath, "db", "", "path to sqlite database file")
	root.PersistentFlags().StringVar(&o.databaseURL, "database-url", "", "PostgreSQL connection URL")

	root.AddCommand(newServeCommand(&o), newMigrateCommand(&o))
	return root
}

func newServeCommand(o *overrides) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(o)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&o.addr, "addr", "", "HTTP listen address")
	cmd.Flags().StringVar(&o.policy, "user-delete-policy", "", "restrict or cascade tasks of deleted users")
	return cmd
}

func newMigrateCommand(o *overrides) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(o)
			if err != nil {
				return err
			}
			logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

			store, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			logger.Info("schema up to date", slog.String("storage", cfg.Storage))
			return nil
		},
	}
}

// loadConfig reads the environment and applies non-empty flag overrides.
func loadConfig(o *overrides) (*config.Config, error) {
	cfg, err := config.Parse()
	if err != nil {
		return nil, err
	}

	apply := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	apply(&cfg.Addr, o.addr)
	apply(&cfg.Storage, o.storage)
	apply(&cfg.DBPath, o.dbPath)
	apply(&cfg.DatabaseURL, o.databaseURL)
	apply(&cfg.UserDeletePolicy, o.policy)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStore opens the backend selected by cfg.Storage.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Storage {
	case config.DriverSQLite:
		return sqlite.Open(cfg.DBPath, logger)
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.DatabaseURL, logger)
	case config.DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage)
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("unable to open storage", slog.String("storage", cfg.Storage), slog.String("error", err.Error()))
		return err
	}
	defer store.Close()

	policy, err := cfg.DeletePolicy()
	if err != nil {
		return err
	}

	srv := server.New(
		service.NewTaskService(store, logger),
		service.NewUserService(store, policy, logger),
		store,
		logger,
	)

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Engine(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			slog.String("addr", httpServer.Addr),
			slog.String("storage", cfg.Storage),
			slog.String("user_delete_policy", string(policy)),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server stopped unexpectedly", slog.String("error", err.Error()))
			return err
		}
	case <-quit:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", slog.String("error", err.Error()))
		return err
	}

	logger.Info("server stopped")
	return nil
}
