package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/todo-cli/internal/config"
	"github.com/BuzzLyutic/todo-cli/internal/handler"
	"github.com/BuzzLyutic/todo-cli/internal/repo"
	"github.com/BuzzLyutic/todo-cli/internal/service"
)

func main() {
	v := config.New()
	v.SetDefault(config.KeyLogLevel, "info")

	var configFile string
	cmd := &cobra.Command{
		Use:          "todo-server",
		Short:        "Serve the task list over HTTP",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, configFile)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	pf := cmd.Flags()
	pf.StringVar(&configFile, "config", "", "config file (default .todo.yaml if present)")
	pf.String("port", "", "listen port (default 8080)")
	pf.String("file", "", "task store file (default tasks.csv)")
	pf.String("driver", "", "store driver: csv, yaml, toml, sqlite or postgres")
	pf.String("dsn", "", "postgres connection string")
	pf.String("log-level", "", "log level (default info)")
	_ = v.BindPFlag(config.KeyPort, pf.Lookup("port"))
	_ = v.BindPFlag(config.KeyPath, pf.Lookup("file"))
	_ = v.BindPFlag(config.KeyDriver, pf.Lookup("driver"))
	_ = v.BindPFlag(config.KeyDSN, pf.Lookup("dsn"))
	_ = v.BindPFlag(config.KeyLogLevel, pf.Lookup("log-level"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	backend, err := repo.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return fmt.Errorf("open task store: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error("close task store", zap.Error(err))
		}
	}()
	logger.Info("task store opened", zap.String("driver", cfg.Driver), zap.String("path", cfg.FilePath))

	taskHandler := handler.NewTaskHandler(service.NewTaskService(backend.Store, backend.Locker, logger), logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"ok"}`)
	})
	r.Mount("/api/tasks", taskHandler.Routes())

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}
