package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnhub.io/notifier/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "json")
}

func newTestPools(t *testing.T, cfg PoolConfig) *Pools {
	t.Helper()
	pools, err := NewPools(context.Background(), cfg)
	require.NoError(t, err)
	return pools
}

func TestNewPools_DefaultsNonPositiveSizes(t *testing.T) {
	pools := newTestPools(t, PoolConfig{})
	defer pools.Shutdown()

	stats := pools.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, Stats{Name: PoolDelivery, Cap: 50, Free: 50}, stats[0])
	assert.Equal(t, Stats{Name: PoolGeneral, Cap: 100, Free: 100}, stats[1])
}

func TestPools_SubmitDetached(t *testing.T) {
	for _, name := range []string{PoolGeneral, PoolDelivery} {
		t.Run(name, func(t *testing.T) {
			pools := newTestPools(t, PoolConfig{GeneralPoolSize: 2, DeliveryPoolSize: 2})

			done := make(chan context.Context, 1)
			require.NoError(t, pools.SubmitDetached(name, func(ctx context.Context) { done <- ctx }))

			select {
			case ctx := <-done:
				assert.NoError(t, ctx.Err())
			case <-time.After(2 * time.Second):
				t.Fatal("task was not executed")
			}
			pools.Shutdown()
		})
	}
}

func TestPools_SubmitDetached_UnknownPool(t *testing.T) {
	pools := newTestPools(t, DefaultPoolConfig())
	defer pools.Shutdown()

	err := pools.SubmitDetached("k8s", func(context.Context) {})
	assert.ErrorIs(t, err, ErrUnknownPool)
}

func TestPools_TaskContextOutlivesCaller(t *testing.T) {
	pools := newTestPools(t, DefaultPoolConfig())
	defer pools.Shutdown()

	release := make(chan struct{})
	var (
		wg     sync.WaitGroup
		ctxErr error
	)
	wg.Add(1)
	require.NoError(t, pools.SubmitDetached(PoolDelivery, func(ctx context.Context) {
		defer wg.Done()
		<-release
		ctxErr = ctx.Err()
	}))

	// The request that scheduled the send has finished; the task keeps running.
	close(release)
	wg.Wait()
	assert.NoError(t, ctxErr)
}

func TestPools_ShutdownCancelsTaskContext(t *testing.T) {
	pools := newTestPools(t, DefaultPoolConfig())

	started := make(chan struct{})
	cancelled := make(chan struct{})
	require.NoError(t, pools.SubmitDetached(PoolGeneral, func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	}))

	<-started
	pools.Shutdown()
	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("task context was not cancelled")
	}
}

func TestPools_SubmitAfterShutdown(t *testing.T) {
	pools := newTestPools(t, DefaultPoolConfig())
	pools.Shutdown()

	err := pools.SubmitDetached(PoolDelivery, func(context.Context) {})
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestPools_PanicIsRecovered(t *testing.T) {
	pools := newTestPools(t, PoolConfig{GeneralPoolSize: 1, DeliveryPoolSize: 1})
	defer pools.Shutdown()

	require.NoError(t, pools.SubmitDetached(PoolGeneral, func(context.Context) { panic("template exploded") }))

	done := make(chan struct{})
	require.NoError(t, pools.SubmitDetached(PoolGeneral, func(context.Context) { close(done) }))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not survive a panicking task")
	}
}
