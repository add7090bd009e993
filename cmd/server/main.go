package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Harshitk-cp/collective/internal/api"
	"github.com/Harshitk-cp/collective/internal/buildconfig"
	"github.com/Harshitk-cp/collective/internal/config"
	"github.com/Harshitk-cp/collective/internal/domain"
	"github.com/Harshitk-cp/collective/internal/knowledge"
	"github.com/Harshitk-cp/collective/internal/mesh"
	"github.com/Harshitk-cp/collective/internal/predict"
	"github.com/Harshitk-cp/collective/internal/service"
	"github.com/Harshitk-cp/collective/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	root := &cobra.Command{
		Use:          "collective",
		Short:        "Collective learning network coordinator",
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the coordinator, agent mesh and HTTP API",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print build information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), buildconfig.String())
			},
		},
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	level, err := zap.ParseAtomicLevel(config.LogLevel())
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg.Level = level
	return cfg.Build()
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := config.Load(); err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	k := knowledge.New()
	k.Customers.MaxInteractions = config.CustomerHistoryLimit()
	hub := mesh.NewHub(mesh.Config{
		SendQueueSize: config.MeshSendQueueSize(),
		WriteTimeout:  config.MeshWriteTimeout(),
		PingInterval:  config.MeshPingInterval(),
	}, logger)

	coord := service.NewCoordinator(k, hub, logger)
	hub.OnConnect(coord.SyncAgent)

	repo, err := openRepository(ctx, logger, &closers)
	if err != nil {
		return err
	}
	if repo != nil {
		coord.SetRepository(repo, config.DegradedMode())
		if config.ReplayOnStart() {
			if _, err := coord.WarmStart(ctx, time.Time{}, 0); err != nil {
				if !config.DegradedMode() {
					return fmt.Errorf("warm start: %w", err)
				}
				logger.Warn("warm start failed, starting empty", zap.Error(err))
			}
		}
	}

	ops, err := openOperations(logger, &closers)
	if err != nil {
		return err
	}

	actions, err := config.LoadActionConfig(config.ActionConfigPath())
	if err != nil {
		return err
	}
	engine := predict.NewEngine(k.Customers, ops, logger)
	engine.SetActionConfig(actions)

	improvement := service.NewImprovementService(coord, logger)
	improvement.SetInterval(config.SelfImprovementInterval())
	improvement.SetRetention(config.PatternRetentionPerSituation())

	proactive := predict.NewProactiveService(engine, k.Customers, mesh.NewActionSink(hub, logger), logger)
	proactive.SetInterval(config.ProactiveInterval())

	improvement.Start()
	proactive.Start()

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr: addr,
		Handler: api.NewRouter(api.Deps{
			Coordinator:    coord,
			Hub:            hub,
			Engine:         engine,
			Operations:     ops,
			Logger:         logger,
			RateLimitRPS:   config.RateLimitRPS(),
			RateLimitBurst: config.RateLimitBurst(),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", addr),
			zap.String("version", buildconfig.Version()),
			zap.String("persistence", config.PersistenceBackend()),
			zap.String("operations", config.OperationsBackend()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-quit:
		logger.Info("shutting down server")
	case err := <-serveErr:
		if err != nil {
			logger.Error("server failed", zap.Error(err))
		}
	}

	proactive.Stop()
	improvement.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	// hijacked websocket connections are not tracked by Shutdown
	hub.Close()
	if err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func openRepository(ctx context.Context, logger *zap.Logger, closers *[]io.Closer) (domain.LearningRepository, error) {
	switch config.PersistenceBackend() {
	case "postgres":
		url := config.DatabaseURL()
		if url == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres backend")
		}
		pool, err := store.Connect(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		*closers = append(*closers, closerFunc(func() error { pool.Close(); return nil }))
		logger.Info("connected to database")
		return store.NewPostgresRepository(pool), nil

	case "badger":
		repo, err := store.OpenBadger(store.BadgerConfig{
			Path:       config.BadgerPath(),
			GCInterval: config.BadgerGCInterval(),
		}, logger)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, repo)
		logger.Info("opened badger store", zap.String("path", config.BadgerPath()))
		return repo, nil
	}
	return nil, nil
}

// openOperations returns the operations ledger, which records and serves history.
func openOperations(logger *zap.Logger, closers *[]io.Closer) (operationsStore, error) {
	if config.OperationsBackend() != "influx" {
		return knowledge.NewOperationsLedger(), nil
	}
	ops, err := store.NewInfluxOperations(store.InfluxConfig{
		URL:    config.InfluxURL(),
		Token:  config.InfluxToken(),
		Org:    config.InfluxOrg(),
		Bucket: config.InfluxBucket(),
	})
	if err != nil {
		return nil, err
	}
	*closers = append(*closers, closerFunc(func() error { ops.Close(); return nil }))
	logger.Info("using influxdb operations store", zap.String("bucket", config.InfluxBucket()))
	return ops, nil
}

type operationsStore interface {
	domain.OperationsHistory
	domain.OperationsRecorder
}
