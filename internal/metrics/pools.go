package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"learnhub.io/notifier/internal/pkg/worker"
)

var (
	poolRunningDesc = prometheus.NewDesc(
		"notifier_worker_pool_running",
		"Goroutines currently running tasks, by pool.",
		[]string{"pool"}, nil,
	)
	poolCapacityDesc = prometheus.NewDesc(
		"notifier_worker_pool_capacity",
		"Configured pool size, by pool.",
		[]string{"pool"}, nil,
	)
)

type poolCollector struct {
	pools *worker.Pools
}

func (c poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- poolRunningDesc
	ch <- poolCapacityDesc
}

func (c poolCollector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.pools.Stats() {
		ch <- prometheus.MustNewConstMetric(poolRunningDesc, prometheus.GaugeValue, float64(s.Running), s.Name)
		ch <- prometheus.MustNewConstMetric(poolCapacityDesc, prometheus.GaugeValue, float64(s.Cap), s.Name)
	}
}

// RegisterPools exports pool occupancy on reg. Registering a second set of
// pools on the same registry is a no-op.
func RegisterPools(reg prometheus.Registerer, pools *worker.Pools) error {
	err := reg.Register(poolCollector{pools: pools})
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		return nil
	}
	return err
}
