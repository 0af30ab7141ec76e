package maintenancefx

import (
	"context"

	"github.com/sirupsen/logrus"
	"go.uber.org/fx"

	"github.com/avoskres/dbjanitor/pkg/domain"
	"github.com/avoskres/dbjanitor/pkg/scheduler"
)

// RegisterJobs binds the job handlers and installs the recurring schedules.
// Handler registration happens before the scheduler's poll loop starts;
// schedule installation is idempotent (cancel+register per stable id), so a
// redeploy replaces pending registrations instead of accumulating them.
func RegisterJobs(
	lc fx.Lifecycle,
	s *scheduler.Scheduler,
	cleaner *domain.Cleaner,
	runner *domain.BackupRunner,
	policy *domain.BackupPolicy,
	logger *logrus.Logger,
) {
	s.Register(domain.JobCleanup, func(ctx context.Context, _ string) {
		cleaner.Run(ctx)
	})

	s.Register(domain.JobBackup, runner.Run)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := cleaner.EnsureScheduled(ctx); err != nil {
				return err
			}

			if policy.Endpoint == "" {
				return nil
			}

			return runner.EnsureScheduled(ctx)
		},
	})
}
