package modules

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"learnhub.io/notifier/internal/api/handlers"
	"learnhub.io/notifier/internal/config"
	"learnhub.io/notifier/internal/infrastructure"
	"learnhub.io/notifier/internal/metrics"
	"learnhub.io/notifier/internal/notification"
	"learnhub.io/notifier/internal/pkg/logger"
	"learnhub.io/notifier/internal/pkg/worker"
	"learnhub.io/notifier/internal/repository"
)

// Infrastructure holds shared cross-cutting dependencies for all modules.
// It is a provider, not a Module.
type Infrastructure struct {
	Config      *config.Config
	DB          *infrastructure.DatabaseClients
	Pools       *worker.Pools
	Redis       *redis.Client
	Store       repository.Store
	Contacts    repository.ContactDirectory
	Roster      notification.ClassRoster
	RiverClient *river.Client[pgx.Tx]
}

// NewInfrastructure connects PostgreSQL and Redis and starts the worker pools.
func NewInfrastructure(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("auto-migrate: %w", err)
		}
	}

	redisClient, err := infrastructure.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	pools, err := worker.NewPools(ctx, worker.PoolConfig{
		GeneralPoolSize:  cfg.Worker.GeneralPoolSize,
		DeliveryPoolSize: cfg.Worker.DeliveryPoolSize,
	})
	if err != nil {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		db.Close()
		return nil, fmt.Errorf("init worker pools: %w", err)
	}
	if err := metrics.RegisterPools(prometheus.DefaultRegisterer, pools); err != nil {
		logger.Warn("worker pool metrics not registered", zap.Error(err))
	}

	store := repository.NewPostgresStore(db.Pool)
	return &Infrastructure{
		Config:   cfg,
		DB:       db,
		Pools:    pools,
		Redis:    redisClient,
		Store:    store,
		Contacts: store,
		Roster:   notification.NewPostgresRoster(db.Pool),
	}, nil
}

// InitRiver initializes the River client on top of a prepared worker
// registry. It is a no-op when River is disabled.
func (i *Infrastructure) InitRiver(workers *river.Workers, periodic ...*river.PeriodicJob) error {
	if i == nil || i.DB == nil || i.Config == nil {
		return fmt.Errorf("infrastructure is not initialized")
	}
	if !i.Config.River.Enabled {
		return nil
	}
	if err := i.DB.InitRiverClient(workers, i.Config.River, periodic...); err != nil {
		return fmt.Errorf("init river: %w", err)
	}
	i.RiverClient = i.DB.RiverClient
	return nil
}

// ReadinessChecks returns the dependency probes for /health/ready.
func (i *Infrastructure) ReadinessChecks() map[string]handlers.ReadinessCheck {
	checks := map[string]handlers.ReadinessCheck{}
	if i.DB != nil {
		checks["database"] = i.DB.Ping
	}
	if i.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return i.Redis.Ping(ctx).Err() }
	}
	return checks
}

// Close releases infra resources in reverse dependency order.
func (i *Infrastructure) Close() {
	if i == nil {
		return
	}
	if i.Pools != nil {
		i.Pools.Shutdown()
	}
	if i.Redis != nil {
		_ = i.Redis.Close()
	}
	if i.DB != nil {
		i.DB.Close()
	}
}
