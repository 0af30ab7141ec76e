package sqlfx

import (
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(DatabaseConfigProvider),
	fx.Provide(OpenDatabase),
	fx.Provide(JobsRepository),
	fx.Provide(MaintenanceRepository),
	fx.Invoke(CloseDatabase),
)
