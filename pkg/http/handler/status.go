package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avoskres/dbjanitor/pkg/appcontext"
	"github.com/avoskres/dbjanitor/pkg/domain"
	"github.com/avoskres/dbjanitor/pkg/scheduler"
)

type OutcomeSource interface {
	Snapshot() []domain.JobOutcome
}

type PendingJobSource interface {
	FindAll(ctx context.Context) ([]scheduler.Job, error)
}

// JobStatusHandler reports the last outcome per job slot together with the
// currently pending registrations.
type JobStatusHandler struct {
	logger   logrus.FieldLogger
	outcomes OutcomeSource
	pending  PendingJobSource
}

func NewJobStatusHandler(logger logrus.FieldLogger, outcomes OutcomeSource, pending PendingJobSource) *JobStatusHandler {
	return &JobStatusHandler{
		logger:   logger,
		outcomes: outcomes,
		pending:  pending,
	}
}

type jobOutcomeResponse struct {
	Job        string `json:"job"`
	Success    bool   `json:"success"`
	Detail     string `json:"detail,omitempty"`
	FinishedAt int64  `json:"finished_at_mtime"`
}

type pendingJobResponse struct {
	Job      string `json:"job"`
	StableId string `json:"stable_id"`
	RunAt    int64  `json:"run_at_mtime"`
}

type jobStatusResponse struct {
	Outcomes []jobOutcomeResponse `json:"outcomes"`
	Pending  []pendingJobResponse `json:"pending"`
}

func (h *JobStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	logger := appcontext.LoggerFromContext(h.logger, ctx)

	pending, err := h.pending.FindAll(ctx)
	if err != nil {
		logger.WithError(err).Error("Unable to query pending jobs")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	result := jobStatusResponse{
		Outcomes: []jobOutcomeResponse{},
		Pending:  []pendingJobResponse{},
	}

	for _, outcome := range h.outcomes.Snapshot() {
		result.Outcomes = append(result.Outcomes, jobOutcomeResponse{
			Job:        outcome.Job,
			Success:    outcome.Success,
			Detail:     outcome.Detail,
			FinishedAt: outcome.FinishedAt.UnixNano() / 1e6,
		})
	}

	for _, job := range pending {
		result.Pending = append(result.Pending, pendingJobResponse{
			Job:      job.Name,
			StableId: job.StableId,
			RunAt:    job.RunAt.UnixNano() / 1e6,
		})
	}

	w.Header().Set("Content-Type", "application/json")

	enc := json.NewEncoder(w)
	if err := enc.Encode(result); err != nil {
		logger.WithError(err).Error("Unable to encode response")
		w.WriteHeader(http.StatusInternalServerError)
	}
}
