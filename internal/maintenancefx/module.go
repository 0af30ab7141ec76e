package maintenancefx

import (
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(LoadCleanupConfig),
	fx.Provide(TableTargets),
	fx.Provide(Cleaner),

	fx.Provide(BackupPolicyProvider),
	fx.Provide(HttpClient),
	fx.Provide(BackupRunner),

	fx.Invoke(RegisterJobs),
)
