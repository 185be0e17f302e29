package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"learnhub.io/notifier/internal/app/modules"
	"learnhub.io/notifier/internal/pkg/logger"
)

// Start begins consuming delivery and cleanup jobs, then starts every
// module with background work (the realtime broker subscription).
func (a *Application) Start(ctx context.Context) error {
	if river := a.riverClient(); river != nil {
		if err := river.Start(ctx); err != nil {
			return fmt.Errorf("start river client: %w", err)
		}
		logger.Info("River client started, jobs will now be consumed")
	}

	for _, mod := range a.Modules {
		starter, ok := mod.(modules.Starter)
		if !ok {
			continue
		}
		if err := starter.Start(ctx); err != nil {
			return fmt.Errorf("start module %s: %w", mod.Name(), err)
		}
	}
	return nil
}

// Shutdown stops job processing first so no send starts against a closing
// pool, then shuts modules down in reverse bootstrap order and releases
// pools and connections. In-flight jobs are cancelled when ctx expires.
func (a *Application) Shutdown(ctx context.Context) {
	if river := a.riverClient(); river != nil {
		err := river.Stop(ctx)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			logger.Warn("River did not drain in time, cancelling running jobs")
			err = river.StopAndCancel(context.WithoutCancel(ctx))
		}
		if err != nil {
			logger.Error("failed to stop river client", zap.Error(err))
		} else {
			logger.Info("River client stopped")
		}
	}

	for i := len(a.Modules) - 1; i >= 0; i-- {
		mod := a.Modules[i]
		if mod == nil {
			continue
		}
		if err := mod.Shutdown(ctx); err != nil {
			logger.Warn("module shutdown returned error",
				zap.String("module", mod.Name()),
				zap.Error(err),
			)
		}
	}

	if a.Pools != nil {
		a.Pools.Shutdown()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			logger.Warn("failed to close redis client", zap.Error(err))
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
