package driving

import (
	"context"

	"github.com/custodia-labs/kbsync/internal/core/domain"
)

// Scheduler runs the fetch and publish stages on their cron schedules.
type Scheduler interface {
	// Start registers tasks and begins running them.
	// Blocks until context is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully stops all running tasks.
	Stop() error

	// Reschedule applies a new configuration to registered tasks.
	Reschedule(ctx context.Context, cfg domain.SchedulerConfig) error
}
