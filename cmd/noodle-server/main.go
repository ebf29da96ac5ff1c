// Command noodle-server serves the module API over HTTP and the ops gRPC listener.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/and161185/noodle/internal/auth"
	"github.com/and161185/noodle/internal/config"
	"github.com/and161185/noodle/internal/limiter"
	"github.com/and161185/noodle/internal/migrate"
	"github.com/and161185/noodle/internal/repository/postgres"
	grpcserver "github.com/and161185/noodle/internal/server/grpc"
	httpserver "github.com/and161185/noodle/internal/server/http"
	"github.com/and161185/noodle/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (overrides CONFIG_PATH)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		flag.PrintDefaults()
		fmt.Fprintln(flag.CommandLine.Output(), config.Usage())
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("env", cfg.Env),
		zap.String("http", cfg.HTTPServer.Address),
		zap.String("grpc", cfg.GRPC.Address),
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Env == config.EnvLocal {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.Postgres.DSN, logger); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	db, err := postgres.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer db.Close()
	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}

	store, closeStore, err := newLimiterStore(ctx, cfg, db, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	modules := service.NewModuleService(postgres.NewModuleRepo(db))
	api := httpserver.New(httpserver.Deps{
		Modules:  modules,
		Verifier: auth.NewVerifier([]byte(cfg.JWT.SecretKey)),
		Limiter:  limiter.New(store, logger),
		Preset:   cfg.MutationPreset(),
		Log:      logger,
	})
	httpSrv := &http.Server{
		Addr:        cfg.HTTPServer.Address,
		Handler:     api.Router(),
		ReadTimeout: cfg.HTTPServer.ReadTimeout,
		IdleTimeout: cfg.HTTPServer.IdleTimeout,
	}

	ops := grpcserver.New(logger, cfg.GRPC.Reflection || cfg.Development())
	lis, err := net.Listen("tcp", cfg.GRPC.Address)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPServer.Address))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()
	go func() {
		if err := ops.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc: %w", err)
		}
	}()
	ops.SetServing(true)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer cancel()
	ops.SetServing(false)
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	ops.Shutdown(shutdownCtx)
	return runErr
}

// newLimiterStore picks the counter backend. A Redis that does not answer at
// startup is only logged; the limiter fails open until it comes back.
func newLimiterStore(ctx context.Context, cfg *config.Config, db *postgres.DB, logger *zap.Logger) (limiter.Store, func(), error) {
	switch cfg.Limiter.Backend {
	case config.BackendPostgres:
		return limiter.NewPG(db.Pool), func() {}, nil
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, rate limiting fails open", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		return limiter.NewRedis(rdb), func() { _ = rdb.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown rate limit backend %q", cfg.Limiter.Backend)
	}
}
