// Package app is the composition root. Bootstrap only orchestrates modules;
// behaviour lives in the packages they wire.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"

	"learnhub.io/notifier/internal/api/handlers"
	"learnhub.io/notifier/internal/app/modules"
	"learnhub.io/notifier/internal/config"
	"learnhub.io/notifier/internal/infrastructure"
	"learnhub.io/notifier/internal/notification"
	"learnhub.io/notifier/internal/pkg/worker"
)

// Application holds composed application dependencies.
type Application struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *infrastructure.DatabaseClients
	Pools    *worker.Pools
	Redis    *redis.Client
	Modules  []modules.Module
	Triggers *notification.Triggers
}

// Bootstrap initializes all dependencies using module-oriented manual DI.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Application, error) {
	infra, err := modules.NewInfrastructure(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init infrastructure: %w", err)
	}

	deliveryModule := modules.NewDeliveryModule(infra)
	retentionModule := modules.NewRetentionModule(infra)
	jobModules := []modules.Module{deliveryModule, retentionModule}

	workers := river.NewWorkers()
	var periodic []*river.PeriodicJob
	for _, mod := range jobModules {
		mod.RegisterWorkers(workers)
		if contributor, ok := mod.(modules.PeriodicJobContributor); ok {
			periodic = append(periodic, contributor.PeriodicJobs()...)
		}
	}
	if err := infra.InitRiver(workers, periodic...); err != nil {
		infra.Close()
		return nil, fmt.Errorf("init river workers: %w", err)
	}
	deliveryModule.BindQueue()

	realtimeModule, err := modules.NewRealtimeModule(infra)
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("init realtime module: %w", err)
	}

	notificationModule, err := modules.NewNotificationModule(infra, realtimeModule.Hub(), deliveryModule.Queue())
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("init notification module: %w", err)
	}

	allModules := append(jobModules, realtimeModule, notificationModule)
	server := handlers.NewServer(modules.NewServerDeps(cfg, infra, allModules))

	return &Application{
		Config:   cfg,
		Router:   newRouter(cfg, server, realtimeModule.Handler().Serve),
		DB:       infra.DB,
		Pools:    infra.Pools,
		Redis:    infra.Redis,
		Modules:  allModules,
		Triggers: notificationModule.Triggers(),
	}, nil
}

func (a *Application) riverClient() *river.Client[pgx.Tx] {
	if a.DB == nil {
		return nil
	}
	return a.DB.RiverClient
}
