package modules

import (
	"context"

	"github.com/riverqueue/river"

	"learnhub.io/notifier/internal/api/handlers"
	"learnhub.io/notifier/internal/jobs"
)

// RetentionModule schedules deletion of expired inbox rows.
type RetentionModule struct {
	infra *Infrastructure
}

// NewRetentionModule creates the retention module.
func NewRetentionModule(infra *Infrastructure) *RetentionModule {
	return &RetentionModule{infra: infra}
}

func (m *RetentionModule) Name() string { return "retention" }

func (m *RetentionModule) ContributeServerDeps(*handlers.ServerDeps) {}

func (m *RetentionModule) RegisterWorkers(workers *river.Workers) {
	if workers == nil || m == nil || m.infra == nil {
		return
	}
	river.AddWorker(workers, jobs.NewNotificationCleanupWorker(m.infra.Store, m.infra.Config.Notification.Retention))
}

// PeriodicJobs runs cleanup on the configured interval and once at startup.
func (m *RetentionModule) PeriodicJobs() []*river.PeriodicJob {
	return []*river.PeriodicJob{jobs.CleanupPeriodicJob(m.infra.Config.Notification.CleanupInterval)}
}

func (m *RetentionModule) Shutdown(context.Context) error { return nil }
