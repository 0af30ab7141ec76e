package metricsfx

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/avoskres/dbjanitor/pkg/domain"
	"github.com/avoskres/dbjanitor/pkg/http/handler"
)

func JobStatusHandler(
	logger *logrus.Logger,
	board *domain.StatusBoard,
	pending handler.PendingJobSource,
) *handler.JobStatusHandler {
	return handler.NewJobStatusHandler(logger, board, pending)
}

func BackupTriggerHandler(
	logger *logrus.Logger,
	runner *domain.BackupRunner,
) *handler.BackupTriggerHandler {
	return handler.NewBackupTriggerHandler(logger, runner)
}

func RegisterHandlers(
	router *mux.Router,
	status *handler.JobStatusHandler,
	trigger *handler.BackupTriggerHandler,
) {
	router.Handle("/metrics", promhttp.Handler())
	router.Handle("/status/jobs", status)
	router.Handle("/backup/adhoc", trigger)
}
