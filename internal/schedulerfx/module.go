package schedulerfx

import (
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(SchedulerConfigProvider),
	fx.Provide(JobScheduler),
	fx.Invoke(RunScheduler),
)
