package domain

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/avoskres/dbjanitor/pkg/cadence"
)

type VacuumMode string

const (
	// VacuumNone leaves the table as is after trimming.
	VacuumNone VacuumMode = "none"

	// VacuumAnalyze refreshes planner statistics without reclaiming storage
	// and without blocking readers or writers.
	VacuumAnalyze VacuumMode = "analyze"

	// VacuumFull physically rewrites the table to reclaim disk space. The
	// rewrite holds an exclusive lock for its whole duration, so it should be
	// reserved for tables where reclaimed space outweighs availability.
	VacuumFull VacuumMode = "full"
)

func ParseVacuumMode(s string) (VacuumMode, error) {
	switch VacuumMode(s) {
	case VacuumNone, VacuumAnalyze, VacuumFull:
		return VacuumMode(s), nil
	case "":
		return VacuumNone, nil
	default:
		return VacuumNone, fmt.Errorf("unknown vacuum mode: '%s'", s)
	}
}

// RetentionPolicy bounds how many rows a table may keep and how aggressively
// the excess is trimmed. All retention is "keep newest KeepRows by IDColumn",
// where IDColumn is expected to be monotonically increasing.
type RetentionPolicy struct {
	KeepRows   int
	BatchSize  int
	MaxBatches int
	VacuumMode VacuumMode
	IDColumn   string
	Enabled    bool
}

// TableRule is the raw per-table configuration entry. Every field except the
// table name is optional and falls back to the global defaults.
type TableRule struct {
	Name       string  `mapstructure:"name"`
	KeepRows   *int    `mapstructure:"keep_rows"`
	BatchSize  *int    `mapstructure:"batch_size"`
	MaxBatches *int    `mapstructure:"max_batches"`
	VacuumMode *string `mapstructure:"vacuum_mode"`
	IDColumn   *string `mapstructure:"id_column"`
	Enabled    *bool   `mapstructure:"enabled"`
}

type TableTarget struct {
	Name   string
	Policy RetentionPolicy
}

// Merge resolves the rule against the global defaults field by field.
func (r TableRule) Merge(defaults RetentionPolicy) (TableTarget, error) {
	if r.Name == "" {
		return TableTarget{}, errors.New("table rule without a name")
	}

	policy := defaults

	if r.KeepRows != nil {
		policy.KeepRows = *r.KeepRows
	}
	if r.BatchSize != nil {
		policy.BatchSize = *r.BatchSize
	}
	if r.MaxBatches != nil {
		policy.MaxBatches = *r.MaxBatches
	}
	if r.IDColumn != nil {
		policy.IDColumn = *r.IDColumn
	}
	if r.Enabled != nil {
		policy.Enabled = *r.Enabled
	}

	if r.VacuumMode != nil {
		mode, err := ParseVacuumMode(*r.VacuumMode)
		if err != nil {
			return TableTarget{}, errors.Wrapf(err, "table '%s'", r.Name)
		}
		policy.VacuumMode = mode
	}

	return TableTarget{Name: r.Name, Policy: policy}, nil
}

// BackupPolicy describes how to reach the external backup agent and which
// recurring cadences to keep installed.
type BackupPolicy struct {
	Endpoint       string
	AuthToken      string
	Timeout        time.Duration
	IncludeDBHints bool
	DBHost         string
	DBPort         string

	Daily   *cadence.Spec
	Weekly  *cadence.Spec
	Monthly *cadence.Spec
}
