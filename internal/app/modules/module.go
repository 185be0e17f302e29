// Package modules contains the notifier's dependency modules. Each module
// owns the wiring of one concern and contributes to the HTTP server, the
// River worker registry and the shutdown sequence.
package modules

import (
	"context"

	"github.com/riverqueue/river"

	"learnhub.io/notifier/internal/api/handlers"
)

// Module represents a domain-specific dependency unit in the composition root.
type Module interface {
	// Name returns a stable module identifier for logging/debugging.
	Name() string

	// ContributeServerDeps injects module-owned dependencies into the HTTP server deps.
	ContributeServerDeps(*handlers.ServerDeps)

	// RegisterWorkers registers module workers into a shared River worker registry.
	RegisterWorkers(*river.Workers)

	// Shutdown performs module-local graceful cleanup.
	Shutdown(context.Context) error
}

// Starter is implemented by modules with background work that begins
// after bootstrap, such as broker subscriptions.
type Starter interface {
	Start(context.Context) error
}

// PeriodicJobContributor is implemented by modules that schedule River
// periodic jobs.
type PeriodicJobContributor interface {
	PeriodicJobs() []*river.PeriodicJob
}
