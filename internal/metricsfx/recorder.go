package metricsfx

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/avoskres/dbjanitor/pkg/domain"
)

func StatusBoard() *domain.StatusBoard {
	return domain.NewStatusBoard()
}

// Recorder fans maintenance outcomes out to prometheus and the status board.
// It backs both the cleanup observer and the backup outcome callback.
type Recorder struct {
	board *domain.StatusBoard

	rowsDeleted *prometheus.CounterVec
	batches     *prometheus.CounterVec
	cleanupRuns prometheus.Counter
	backupRuns  *prometheus.CounterVec
}

func NewRecorder(board *domain.StatusBoard) (*Recorder, error) {
	r := &Recorder{
		board: board,

		rowsDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dbjanitor_rows_deleted_total",
			Help: "Rows deleted by retention cleanup, per table.",
		}, []string{"table"}),

		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dbjanitor_delete_batches_total",
			Help: "Delete batches executed by retention cleanup, per table.",
		}, []string{"table"}),

		cleanupRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dbjanitor_cleanup_runs_total",
			Help: "Completed cleanup runs.",
		}),

		backupRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dbjanitor_backup_runs_total",
			Help: "Backup agent invocations, per cadence and outcome.",
		}, []string{"cadence", "outcome"}),
	}

	for _, c := range []prometheus.Collector{r.rowsDeleted, r.batches, r.cleanupRuns, r.backupRuns} {
		if err := prometheus.Register(c); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (r *Recorder) TableTrimmed(table string, batches int, rowsDeleted int64) {
	r.rowsDeleted.WithLabelValues(table).Add(float64(rowsDeleted))
	r.batches.WithLabelValues(table).Add(float64(batches))
}

func (r *Recorder) RunCompleted(tables int, rowsDeleted int64) {
	r.cleanupRuns.Inc()

	r.board.Record(domain.JobOutcome{
		Job:        domain.JobCleanup,
		Success:    true,
		Detail:     fmt.Sprintf("%d tables processed, %d rows deleted", tables, rowsDeleted),
		FinishedAt: time.Now().UTC(),
	})
}

func (r *Recorder) BackupOutcome(success bool, cadenceName string) {
	outcome := "failure"
	if success {
		outcome = "success"
	}

	r.backupRuns.WithLabelValues(cadenceName, outcome).Inc()

	r.board.Record(domain.JobOutcome{
		Job:        domain.JobBackup + ":" + cadenceName,
		Success:    success,
		FinishedAt: time.Now().UTC(),
	})
}
