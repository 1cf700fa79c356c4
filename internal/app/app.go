package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	controller "github.com/KarpovAlexandrGo/tasks-api/internal/controller/http"
	"github.com/KarpovAlexandrGo/tasks-api/internal/repo/memory"
	"github.com/KarpovAlexandrGo/tasks-api/internal/repo/mongodb"
	"github.com/KarpovAlexandrGo/tasks-api/internal/repo/postgres"
	"github.com/KarpovAlexandrGo/tasks-api/internal/repo/redis"
	"github.com/KarpovAlexandrGo/tasks-api/internal/usecase"
	"github.com/KarpovAlexandrGo/tasks-api/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type App struct {
	Server      *http.Server
	cfg         Config
	wg          sync.WaitGroup
	closers     []func(context.Context) error
	taskUseCase usecase.TaskUseCase
}

// NewApp connects the configured store and cache and builds the HTTP server.
// Resources opened before a failure are released.
func NewApp(ctx context.Context, cfg Config) (*App, error) {
	if err := logger.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		return nil, err
	}

	a := &App{cfg: cfg}

	taskRepo, err := a.initRepository(ctx)
	if err != nil {
		a.close(context.Background())
		return nil, err
	}

	var cacheRepo usecase.CacheRepository
	if cfg.RedisAddr != "" {
		cache := redis.NewCacheRepository(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		a.closers = append(a.closers, func(context.Context) error { return cache.Close() })
		if err := cache.Ping(ctx); err != nil {
			logger.Log.WithError(err).Warn("Redis unavailable, list cache will miss until it recovers")
		}
		cacheRepo = cache
	}

	a.taskUseCase = usecase.NewTaskUseCase(taskRepo, cacheRepo, cfg.CacheTTL)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	router := controller.NewRouter(a.taskUseCase, controller.RouterConfig{
		RequestTimeout: cfg.RequestTimeout,
		Registry:       registry,
	})

	a.Server = &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}
	return a, nil
}

func (a *App) initRepository(ctx context.Context) (usecase.TaskRepository, error) {
	switch a.cfg.StorageDriver {
	case DriverMongo:
		client, err := mongodb.Connect(ctx, a.cfg.Database, a.cfg.DBTimeout)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Disconnect)

		repo := mongodb.NewTaskRepository(client.Database(a.cfg.MongoDatabase), a.cfg.DBTimeout)
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		return repo, nil

	case DriverPostgres:
		pool, err := postgres.Connect(ctx, a.cfg.Database, a.cfg.DBTimeout)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error {
			pool.Close()
			return nil
		})

		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			return nil, err
		}
		return postgres.NewTaskRepository(pool, a.cfg.DBTimeout), nil

	case DriverMemory:
		logger.Log.Warn("Using in-memory storage, data is lost on restart")
		return memory.NewTaskRepository(), nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", a.cfg.StorageDriver)
	}
}

// close releases resources in reverse order of acquisition.
func (a *App) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.Log.WithError(err).Error("Failed to release resource")
		}
	}
	a.closers = nil
}

func (a *App) Run() error {
	defer a.close(context.Background())

	serverCtx, serverStopCtx := context.WithCancel(context.Background())
	defer serverStopCtx()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sig)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		select {
		case <-sig:
			logger.Log.Info("Shutdown signal received")
		case <-serverCtx.Done():
			return
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()

		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				logger.Log.Error("Graceful shutdown timed out")
			}
			logger.Log.WithError(err).Error("HTTP server shutdown failed")
		}
	}()

	logger.Log.Info("Server is listening on " + a.Server.Addr)
	if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		serverStopCtx()
		a.wg.Wait()
		return fmt.Errorf("server failed: %w", err)
	}

	a.wg.Wait()
	logger.Log.Info("Server stopped gracefully")
	return nil
}
