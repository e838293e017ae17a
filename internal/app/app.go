// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fawad-mazhar/taskflow/internal/api/routes"
	"github.com/fawad-mazhar/taskflow/internal/config"
	"github.com/fawad-mazhar/taskflow/internal/logging"
	"github.com/fawad-mazhar/taskflow/internal/orchestrator"
	"github.com/fawad-mazhar/taskflow/internal/progress"
	"github.com/fawad-mazhar/taskflow/internal/queue"
	"github.com/fawad-mazhar/taskflow/internal/runner"
	"github.com/fawad-mazhar/taskflow/internal/service"
	"github.com/fawad-mazhar/taskflow/internal/storage"
	"github.com/fawad-mazhar/taskflow/internal/storage/leveldb"
	"github.com/fawad-mazhar/taskflow/internal/storage/memory"
	"github.com/fawad-mazhar/taskflow/internal/storage/postgres"
	redisstore "github.com/fawad-mazhar/taskflow/internal/storage/redis"
	"github.com/fawad-mazhar/taskflow/internal/worker"
)

const cacheCleanupInterval = time.Hour

// App holds the wired components of a taskflow server
type App struct {
	Config *config.Config
	Log    *logging.Logger

	Tracker       *progress.Tracker
	Registry      *worker.Registry
	Processor     *orchestrator.Processor
	Tasks         *service.TaskService
	Queues        *service.QueueService
	Notifications *service.NotificationService
	Runner        *runner.Runner

	publisher queue.Publisher
	closers   []func() error
}

// New builds the application from cfg. Close releases whatever was opened,
// also when New fails half way.
func New(ctx context.Context, cfg *config.Config, log *logging.Logger) (a *App, err error) {
	a = &App{Config: cfg, Log: log}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	taskStore, err := a.openTaskStore(ctx)
	if err != nil {
		return nil, err
	}

	notificationStore, err := a.openNotificationStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := a.openPublisher(); err != nil {
		return nil, err
	}

	a.Tracker = progress.NewTracker()
	a.Registry = worker.NewRegistry(log)
	err = worker.RegisterBuiltins(a.Registry, a.Tracker, worker.BuiltinOptions{
		PiStepDelay: cfg.Tasks.PiStepDelay(),
		ReportDelay: cfg.Tasks.ReportDelay(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register task types: %w", err)
	}

	a.Notifications = service.NewNotificationService(notificationStore, taskStore, a.publisher, log)
	a.Tasks = service.NewTaskService(taskStore, log)

	pool := worker.NewPool(cfg.Worker.PoolSize, cfg.Worker.MaxQueueSize, log)
	a.Processor = orchestrator.NewProcessor(
		orchestrator.ProcessorConfig{SyncTimeout: cfg.Worker.SyncTimeoutDuration()},
		taskStore, a.Registry, a.Notifications, pool, log,
	)
	a.Queues = service.NewQueueService(taskStore, a.Processor, log)
	a.Runner = runner.NewRunner(cfg.Scheduling, a.Processor, a.Notifications, a.publisher, log)

	return a, nil
}

func (a *App) openTaskStore(ctx context.Context) (storage.TaskStore, error) {
	switch a.Config.Store.Driver {
	case config.StoreMemory:
		a.Log.Info("using in-memory task store")
		return memory.NewTaskStore(), nil

	case config.StoreLevelDB:
		client, cache, err := a.openLevelDB()
		if err != nil {
			return nil, err
		}
		a.Log.Info("using leveldb task store", "path", a.Config.LevelDB.Path)
		return leveldb.NewResultCachingStore(leveldb.NewTaskStore(client), cache, a.Log), nil

	case config.StorePostgres:
		db, err := postgres.NewClient(a.Config.Postgres)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)

		if err := db.Migrate(ctx); err != nil {
			return nil, err
		}

		// results are served from a local leveldb cache in front of postgres
		_, cache, err := a.openLevelDB()
		if err != nil {
			return nil, err
		}
		a.Log.Info("using postgres task store with leveldb result cache", "cache_path", a.Config.LevelDB.Path)
		return leveldb.NewResultCachingStore(db, cache, a.Log), nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", a.Config.Store.Driver)
	}
}

func (a *App) openLevelDB() (*leveldb.Client, *leveldb.Cache, error) {
	client, err := leveldb.NewClient(a.Config.LevelDB)
	if err != nil {
		return nil, nil, err
	}
	a.closers = append(a.closers, client.Close)

	ttl := time.Duration(a.Config.LevelDB.ResultCacheTTL) * time.Second
	cache := leveldb.NewCache(client, ttl, cacheCleanupInterval)
	a.closers = append(a.closers, func() error {
		cache.Close()
		return nil
	})
	return client, cache, nil
}

func (a *App) openNotificationStore(ctx context.Context) (storage.NotificationStore, error) {
	if a.Config.Redis.Addr == "" {
		a.Log.Info("using in-memory notification store")
		return memory.NewNotificationStore(), nil
	}

	rdb, err := redisstore.NewClient(ctx, a.Config.Redis)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, rdb.Close)

	a.Log.Info("using redis notification store", "addr", a.Config.Redis.Addr)
	return redisstore.NewNotificationStore(rdb, a.Config.Redis.KeyPrefix), nil
}

func (a *App) openPublisher() error {
	if a.Config.NATS.URL == "" {
		a.publisher = queue.NopPublisher{}
		return nil
	}

	pub, err := queue.NewNATSPublisher(a.Config.NATS)
	if err != nil {
		return err
	}
	a.publisher = pub
	a.closers = append(a.closers, pub.Close)
	a.Log.Info("publishing events to NATS", "url", a.Config.NATS.URL)
	return nil
}

// Router returns the HTTP API
func (a *App) Router() http.Handler {
	return routes.SetupRouter(routes.Services{
		Tasks:         a.Tasks,
		Queues:        a.Queues,
		Notifications: a.Notifications,
		Processor:     a.Processor,
		Registry:      a.Registry,
		Tracker:       a.Tracker,
	})
}

// Close releases resources in reverse order of acquisition
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
