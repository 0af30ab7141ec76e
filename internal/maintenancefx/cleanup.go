package maintenancefx

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/avoskres/dbjanitor/internal/metricsfx"
	"github.com/avoskres/dbjanitor/pkg/cadence"
	"github.com/avoskres/dbjanitor/pkg/domain"
)

const (
	ConfigCleanupHour   = "cleanup.hour"
	ConfigCleanupMinute = "cleanup.minute"

	ConfigCleanupDefaultKeepRows   = "cleanup.defaults.keep_rows"
	ConfigCleanupDefaultBatchSize  = "cleanup.defaults.batch_size"
	ConfigCleanupDefaultMaxBatches = "cleanup.defaults.max_batches"
	ConfigCleanupDefaultVacuumMode = "cleanup.defaults.vacuum_mode"
	ConfigCleanupDefaultIDColumn   = "cleanup.defaults.id_column"

	ConfigCleanupTables = "cleanup.tables"
)

type CleanupConfig struct {
	Daily    cadence.Spec
	Defaults domain.RetentionPolicy
	Rules    []domain.TableRule
}

func LoadCleanupConfig(v *viper.Viper) (*CleanupConfig, error) {
	config := &CleanupConfig{
		Daily: cadence.DailySpec(4, 0),
		Defaults: domain.RetentionPolicy{
			KeepRows:   100000,
			BatchSize:  10000,
			MaxBatches: 100,
			VacuumMode: domain.VacuumAnalyze,
			IDColumn:   "id",
			Enabled:    true,
		},
	}

	if v.IsSet(ConfigCleanupHour) {
		config.Daily.Hour = v.GetInt(ConfigCleanupHour)
	}
	if v.IsSet(ConfigCleanupMinute) {
		config.Daily.Minute = v.GetInt(ConfigCleanupMinute)
	}

	if err := config.Daily.Validate(); err != nil {
		return nil, errors.Wrap(err, "Invalid cleanup schedule")
	}

	if v.IsSet(ConfigCleanupDefaultKeepRows) {
		config.Defaults.KeepRows = v.GetInt(ConfigCleanupDefaultKeepRows)
	}
	if v.IsSet(ConfigCleanupDefaultBatchSize) {
		config.Defaults.BatchSize = v.GetInt(ConfigCleanupDefaultBatchSize)
	}
	if v.IsSet(ConfigCleanupDefaultMaxBatches) {
		config.Defaults.MaxBatches = v.GetInt(ConfigCleanupDefaultMaxBatches)
	}
	if v.IsSet(ConfigCleanupDefaultIDColumn) {
		config.Defaults.IDColumn = v.GetString(ConfigCleanupDefaultIDColumn)
	}

	if v.IsSet(ConfigCleanupDefaultVacuumMode) {
		mode, err := domain.ParseVacuumMode(v.GetString(ConfigCleanupDefaultVacuumMode))
		if err != nil {
			return nil, errors.Wrap(err, "Invalid default vacuum mode")
		}
		config.Defaults.VacuumMode = mode
	}

	err := v.UnmarshalKey(ConfigCleanupTables, &config.Rules)
	if err != nil {
		return nil, errors.Wrap(err, "Unable to unmarshal cleanup tables")
	}

	return config, nil
}

// TableTargets resolves the configured rules against the global defaults,
// preserving the configured order: dependent tables should be listed before
// the tables they reference.
func TableTargets(config *CleanupConfig) ([]domain.TableTarget, error) {
	targets := make([]domain.TableTarget, 0, len(config.Rules))

	for _, rule := range config.Rules {
		target, err := rule.Merge(config.Defaults)
		if err != nil {
			return nil, err
		}

		targets = append(targets, target)
	}

	return targets, nil
}

func Cleaner(
	logger *logrus.Logger,
	store domain.MaintenanceStore,
	jobScheduler domain.JobScheduler,
	targets []domain.TableTarget,
	config *CleanupConfig,
	recorder *metricsfx.Recorder,
) *domain.Cleaner {
	return domain.NewCleaner(logger, store, jobScheduler, targets, config.Daily, recorder)
}
