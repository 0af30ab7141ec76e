package domain

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avoskres/dbjanitor/pkg/appcontext"
	"github.com/avoskres/dbjanitor/pkg/cadence"
)

const (
	JobCleanup     = "cleanup"
	CleanupDailyID = "cleanup:daily"

	// Pause between delete batches so a long trim does not monopolize the
	// database connection.
	defaultBatchPause = 10 * time.Millisecond
)

type MaintenanceStore interface {
	// ResolveCutoff returns the identifier of the keepRows-th newest row.
	// Rows with smaller identifiers are eligible for deletion. The second
	// return value is false when the table holds fewer than keepRows rows.
	ResolveCutoff(ctx context.Context, table, idColumn string, keepRows int) (int64, bool, error)

	// DeleteBatch removes up to batchSize oldest rows below the cutoff and
	// reports how many rows were actually removed.
	DeleteBatch(ctx context.Context, table, idColumn string, cutoff int64, batchSize int) (int64, error)

	Analyze(ctx context.Context, table string) error
	Rewrite(ctx context.Context, table string) error
}

type JobScheduler interface {
	// ScheduleAt replaces any pending registration under stableID with a new
	// one due at the given instant.
	ScheduleAt(ctx context.Context, job, payload string, at time.Time, stableID string) error
	Cancel(ctx context.Context, stableID string) error
}

type CleanupObserver interface {
	TableTrimmed(table string, batches int, rowsDeleted int64)
	RunCompleted(tables int, rowsDeleted int64)
}

// Cleaner trims the configured tables down to their retention limits and
// installs its own next daily run afterwards. Tables are processed strictly
// in the configured order, so dependent tables can be listed before the
// tables they reference.
type Cleaner struct {
	logger    logrus.FieldLogger
	store     MaintenanceStore
	scheduler JobScheduler
	tables    []TableTarget
	daily     cadence.Spec
	observer  CleanupObserver

	pause time.Duration
	clock func() time.Time
}

func NewCleaner(
	logger logrus.FieldLogger,
	store MaintenanceStore,
	scheduler JobScheduler,
	tables []TableTarget,
	daily cadence.Spec,
	observer CleanupObserver,
) *Cleaner {
	return &Cleaner{
		logger:    logger,
		store:     store,
		scheduler: scheduler,
		tables:    tables,
		daily:     daily,
		observer:  observer,

		pause: defaultBatchPause,
		clock: time.Now,
	}
}

// EnsureScheduled installs the next daily run, replacing any pending
// registration. It is safe to call repeatedly, e.g. on every startup.
func (c *Cleaner) EnsureScheduled(ctx context.Context) error {
	next := c.daily.Next(c.clock())

	err := c.scheduler.ScheduleAt(ctx, JobCleanup, "", next, CleanupDailyID)
	if err != nil {
		return err
	}

	c.logger.WithField("next_run_at", next).Info("Cleanup run scheduled")

	return nil
}

// Run processes every configured table and then unconditionally reschedules
// the next daily run. A failing table never aborts the remaining tables and
// never suspends future cleanup cycles.
func (c *Cleaner) Run(ctx context.Context) {
	var totalDeleted int64

	for _, target := range c.tables {
		totalDeleted += c.processTable(appcontext.WithTable(ctx, target.Name), target)
	}

	if c.observer != nil {
		c.observer.RunCompleted(len(c.tables), totalDeleted)
	}

	if err := c.EnsureScheduled(ctx); err != nil {
		c.logger.WithError(err).Error("Unable to schedule next cleanup run")
	}
}

func (c *Cleaner) processTable(ctx context.Context, target TableTarget) int64 {
	logger := appcontext.LoggerFromContext(c.logger, ctx)

	policy := target.Policy

	if !policy.Enabled {
		logger.Debug("Table is disabled, skipping")
		return 0
	}

	// Guard against accidental full-table wipes: a non-positive limit is an
	// explicit "do nothing", not an error.
	if policy.KeepRows <= 0 || policy.BatchSize <= 0 || policy.MaxBatches <= 0 {
		logger.WithFields(logrus.Fields{
			"keep_rows":   policy.KeepRows,
			"batch_size":  policy.BatchSize,
			"max_batches": policy.MaxBatches,
		}).Warn("Non-positive retention limits, skipping table")
		return 0
	}

	cutoff, ok, err := c.store.ResolveCutoff(ctx, target.Name, policy.IDColumn, policy.KeepRows)
	if err != nil {
		logger.WithError(err).Error("Unable to resolve retention cutoff")
		return 0
	}

	if !ok {
		logger.Debug("Table holds fewer rows than the retention limit, nothing to trim")
		return 0
	}

	batches, deleted := c.deleteBelowCutoff(ctx, target, cutoff)

	c.compact(ctx, target)

	if c.observer != nil {
		c.observer.TableTrimmed(target.Name, batches, deleted)
	}

	logger.WithFields(logrus.Fields{
		"cutoff_id":    cutoff,
		"batches":      batches,
		"rows_deleted": deleted,
	}).Info("Table trimmed")

	return deleted
}

// deleteBelowCutoff runs the bounded batch loop. The cutoff is resolved once
// per run, so concurrent inserts cannot move the boundary mid-trim. MaxBatches
// is a hard ceiling: remaining rows are left for the next scheduled run.
func (c *Cleaner) deleteBelowCutoff(ctx context.Context, target TableTarget, cutoff int64) (int, int64) {
	logger := appcontext.LoggerFromContext(c.logger, ctx)
	policy := target.Policy

	var batches int
	var deleted int64

	for batches < policy.MaxBatches {
		if batches > 0 {
			time.Sleep(c.pause)
		}

		n, err := c.store.DeleteBatch(ctx, target.Name, policy.IDColumn, cutoff, policy.BatchSize)
		if err != nil {
			logger.WithError(err).Error("Unable to delete batch")
			break
		}

		if n == 0 {
			break
		}

		batches++
		deleted += n
	}

	if batches == policy.MaxBatches {
		logger.WithFields(logrus.Fields{
			"max_batches":  policy.MaxBatches,
			"rows_deleted": deleted,
		}).Warn("Batch ceiling reached, remaining rows are left for the next run")
	}

	return batches, deleted
}

func (c *Cleaner) compact(ctx context.Context, target TableTarget) {
	logger := appcontext.LoggerFromContext(c.logger, ctx)

	switch target.Policy.VacuumMode {
	case VacuumAnalyze:
		if err := c.store.Analyze(ctx, target.Name); err != nil {
			logger.WithError(err).Error("Unable to analyze table")
		}

	case VacuumFull:
		logger.Warn("Rewriting table to reclaim space, concurrent access may stall")

		if err := c.store.Rewrite(ctx, target.Name); err != nil {
			logger.WithError(err).Error("Unable to rewrite table")
		}
	}
}
