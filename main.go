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

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/Muskansingh2005/Library-feature-QR/internal/platform/config"
	"github.com/Muskansingh2005/Library-feature-QR/internal/platform/db"
)

// @title       Library QR API
// @version     1.0
// @BasePath    /api
// @securityDefinitions.apikey BearerAuth
// @in          header
// @name        Authorization

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:          "library",
		Short:        "Library QR backend (books, students, issue/return)",
		SilenceUsage: true,
		// サブコマンド省略時は serve
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfgPath, false)
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", config.DefaultPath, "path to config.yaml")

	var autoMigrate bool
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfgPath, autoMigrate)
		},
	}
	serve.Flags().BoolVar(&autoMigrate, "migrate", false, "apply schema migrations before serving")

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), cfgPath, func(ctx context.Context, cfg *config.Config, logger *slog.Logger, conn *sqlx.DB) error {
				return migrateDB(ctx, logger, conn)
			})
		},
	}

	root.AddCommand(serve, migrate, newSeedCmd(&cfgPath))
	return root
}

func newLogger(mode string) *slog.Logger {
	if mode == config.ModeRelease {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// withDB は設定読み込み → ロガー → DB接続までを共通化する
func withDB(ctx context.Context, cfgPath string, fn func(ctx context.Context, cfg *config.Config, logger *slog.Logger, conn *sqlx.DB) error) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Mode)
	slog.SetDefault(logger)
	logger.Info("config loaded", "mode", cfg.Mode, "version", cfg.Version)

	conn, err := db.Connect(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer conn.Close()
	logger.Info("connected to DB", "dbname", cfg.DB.DBName)

	return fn(ctx, cfg, logger, conn)
}

func migrateDB(ctx context.Context, logger *slog.Logger, conn *sqlx.DB) error {
	from, to, err := db.Migrate(ctx, conn)
	if err != nil {
		return err
	}
	if from == to {
		logger.Info("schema is up to date", "version", to)
	} else {
		logger.Info("schema migrated", "from", from, "to", to)
	}
	return nil
}

func runServe(ctx context.Context, cfgPath string, autoMigrate bool) error {
	return withDB(ctx, cfgPath, func(ctx context.Context, cfg *config.Config, logger *slog.Logger, conn *sqlx.DB) error {
		if autoMigrate {
			if err := migrateDB(ctx, logger, conn); err != nil {
				return err
			}
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		done := make(chan struct{})
		defer close(done)

		r, err := newRouter(cfg, conn, logger, reg, done)
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      r,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}

		errCh := make(chan error, 1)
		go func() {
			var err error
			if cfg.Certificate.Enabled() {
				logger.Info("listening", "addr", srv.Addr, "tls", true)
				err = srv.ListenAndServeTLS(cfg.Certificate.Cert, cfg.Certificate.Key)
			} else {
				logger.Info("listening", "addr", srv.Addr, "tls", false)
				err = srv.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		// Graceful shutdown
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case err, ok := <-errCh:
			if ok {
				return fmt.Errorf("listen: %w", err)
			}
			return nil
		case <-quit:
		}

		logger.Info("shutting down...")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
}
