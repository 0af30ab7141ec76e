package schedulerfx

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/avoskres/dbjanitor/pkg/domain"
	"github.com/avoskres/dbjanitor/pkg/scheduler"
)

const (
	ConfigSchedulerPollInterval = "scheduler.poll_interval"
)

type SchedulerConfig struct {
	PollInterval time.Duration
}

func SchedulerConfigProvider(v *viper.Viper) (*SchedulerConfig, error) {
	return &SchedulerConfig{
		PollInterval: v.GetDuration(ConfigSchedulerPollInterval),
	}, nil
}

func JobScheduler(
	config *SchedulerConfig,
	logger *logrus.Logger,
	repo scheduler.JobRepository,
) (*scheduler.Scheduler, domain.JobScheduler) {
	s := scheduler.New(logger, repo, config.PollInterval)

	return s, s
}

func RunScheduler(lc fx.Lifecycle, s *scheduler.Scheduler) {
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				s.Run(runCtx)
				close(done)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()

			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
