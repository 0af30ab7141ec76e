package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/avoskres/dbjanitor/pkg/appcontext"
)

type AdhocTrigger interface {
	TriggerAdhoc(ctx context.Context) error
}

// BackupTriggerHandler requests a one-shot backup run on demand. The run is
// registered with the scheduler rather than executed inline, so the response
// only acknowledges the registration.
type BackupTriggerHandler struct {
	logger  logrus.FieldLogger
	trigger AdhocTrigger
}

func NewBackupTriggerHandler(logger logrus.FieldLogger, trigger AdhocTrigger) *BackupTriggerHandler {
	return &BackupTriggerHandler{
		logger:  logger,
		trigger: trigger,
	}
}

func (h *BackupTriggerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := appcontext.LoggerFromContext(h.logger, r.Context())

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if err := h.trigger.TriggerAdhoc(r.Context()); err != nil {
		logger.WithError(err).Error("Unable to schedule adhoc backup")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)

	_ = json.NewEncoder(w).Encode(map[string]string{"status": "scheduled"})
}
