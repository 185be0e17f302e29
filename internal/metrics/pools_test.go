package metrics

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnhub.io/notifier/internal/pkg/logger"
	"learnhub.io/notifier/internal/pkg/worker"
)

func init() {
	_ = logger.Init("error", "json")
}

func TestRegisterPools(t *testing.T) {
	pools, err := worker.NewPools(context.Background(), worker.PoolConfig{GeneralPoolSize: 4, DeliveryPoolSize: 2})
	require.NoError(t, err)
	defer pools.Shutdown()

	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterPools(reg, pools))
	require.NoError(t, RegisterPools(reg, pools))

	expected := `
# HELP notifier_worker_pool_capacity Configured pool size, by pool.
# TYPE notifier_worker_pool_capacity gauge
notifier_worker_pool_capacity{pool="delivery"} 2
notifier_worker_pool_capacity{pool="general"} 4
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "notifier_worker_pool_capacity"))
}
