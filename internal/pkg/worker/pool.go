// Package worker runs detached background work on named ants pools.
//
// Two pools exist. "delivery" carries email and push sends when the durable
// job queue is disabled; those calls block on third-party APIs and must not
// starve "general", which runs trigger hooks fired after a platform action
// has already committed. Tasks receive the service context, which is
// cancelled on Shutdown, not the request context that scheduled them.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"learnhub.io/notifier/internal/pkg/logger"
)

// Pool names accepted by SubmitDetached.
const (
	PoolGeneral  = "general"
	PoolDelivery = "delivery"
)

var (
	// ErrPoolClosed is returned when submitting after Shutdown.
	ErrPoolClosed = errors.New("worker pool is closed")
	// ErrUnknownPool is returned for a name other than PoolGeneral or PoolDelivery.
	ErrUnknownPool = errors.New("unknown worker pool")
)

const shutdownTimeout = 30 * time.Second

// Task is a unit of detached work.
type Task func(ctx context.Context)

// PoolConfig sizes the pools.
type PoolConfig struct {
	GeneralPoolSize  int
	DeliveryPoolSize int
}

// DefaultPoolConfig returns default sizes.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		GeneralPoolSize:  100,
		DeliveryPoolSize: 50,
	}
}

// Stats is a point-in-time view of one pool.
type Stats struct {
	Name    string
	Running int
	Free    int
	Cap     int
}

// Pools owns the named pools and the service context handed to tasks.
type Pools struct {
	pools map[string]*ants.Pool

	serviceCtx    context.Context
	serviceCancel context.CancelFunc
}

// NewPools creates both pools. Non-positive sizes fall back to the defaults.
func NewPools(ctx context.Context, cfg PoolConfig) (*Pools, error) {
	def := DefaultPoolConfig()
	if cfg.GeneralPoolSize <= 0 {
		cfg.GeneralPoolSize = def.GeneralPoolSize
	}
	if cfg.DeliveryPoolSize <= 0 {
		cfg.DeliveryPoolSize = def.DeliveryPoolSize
	}

	sizes := map[string]struct {
		size   int
		expiry time.Duration
	}{
		PoolGeneral:  {cfg.GeneralPoolSize, 10 * time.Second},
		PoolDelivery: {cfg.DeliveryPoolSize, 30 * time.Second},
	}

	serviceCtx, serviceCancel := context.WithCancel(ctx)
	p := &Pools{
		pools:         make(map[string]*ants.Pool, len(sizes)),
		serviceCtx:    serviceCtx,
		serviceCancel: serviceCancel,
	}
	for name, s := range sizes {
		pool, err := ants.NewPool(s.size,
			ants.WithPanicHandler(panicHandler(name)),
			ants.WithNonblocking(false),
			ants.WithExpiryDuration(s.expiry),
		)
		if err != nil {
			p.release(0)
			serviceCancel()
			return nil, fmt.Errorf("create %s pool: %w", name, err)
		}
		p.pools[name] = pool
	}
	return p, nil
}

func panicHandler(pool string) func(interface{}) {
	return func(v interface{}) {
		logger.Error("worker task panicked",
			zap.String("pool", pool),
			zap.Any("panic", v),
			zap.Stack("stack"),
		)
	}
}

// SubmitDetached runs task on the named pool with the service context.
// Tasks still queued when Shutdown starts are skipped.
func (p *Pools) SubmitDetached(poolName string, task Task) error {
	pool, ok := p.pools[poolName]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPool, poolName)
	}

	err := pool.Submit(func() {
		if p.serviceCtx.Err() != nil {
			logger.Debug("detached task skipped: service shutting down", zap.String("pool", poolName))
			return
		}
		task(p.serviceCtx)
	})
	if errors.Is(err, ants.ErrPoolClosed) {
		return ErrPoolClosed
	}
	return err
}

// Stats reports every pool, sorted by name.
func (p *Pools) Stats() []Stats {
	out := make([]Stats, 0, len(p.pools))
	for name, pool := range p.pools {
		out = append(out, Stats{
			Name:    name,
			Running: pool.Running(),
			Free:    pool.Free(),
			Cap:     pool.Cap(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Shutdown cancels the service context, then waits up to 30s per pool for
// running tasks.
func (p *Pools) Shutdown() {
	p.serviceCancel()
	p.release(shutdownTimeout)
}

func (p *Pools) release(timeout time.Duration) {
	for name, pool := range p.pools {
		if timeout <= 0 {
			pool.Release()
			continue
		}
		if err := pool.ReleaseTimeout(timeout); err != nil {
			logger.Warn("worker pool shutdown timeout", zap.String("pool", name), zap.Error(err))
		}
	}
}
