package domain

import (
	"context"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/avoskres/dbjanitor/pkg/appcontext"
	"github.com/avoskres/dbjanitor/pkg/cadence"
)

const (
	JobBackup = "backup"

	CadenceDaily   = "daily"
	CadenceWeekly  = "weekly"
	CadenceMonthly = "monthly"
	CadenceAdhoc   = "adhoc"

	backupStableIDPrefix = "backup:"

	defaultBackupTimeout = 30 * time.Second

	// Only this much of the agent's response is kept for failure logs.
	maxLoggedResponseBytes = 1024
)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// BackupOutcomeFunc is notified after every backup invocation. It is purely
// observational: a panicking callback never affects the job's completion.
type BackupOutcomeFunc func(success bool, cadenceName string)

// BackupRunner triggers the external backup agent and keeps its recurring
// cadences installed. One runner serves all cadences: the scheduler payload
// names the cadence, and only recurring cadences reschedule themselves.
type BackupRunner struct {
	logger    logrus.FieldLogger
	client    httpDoer
	scheduler JobScheduler
	policy    BackupPolicy
	cadences  map[string]cadence.Spec
	onOutcome BackupOutcomeFunc

	clock func() time.Time
}

func NewBackupRunner(
	logger logrus.FieldLogger,
	client httpDoer,
	scheduler JobScheduler,
	policy BackupPolicy,
	onOutcome BackupOutcomeFunc,
) *BackupRunner {
	cadences := make(map[string]cadence.Spec)

	if policy.Daily != nil {
		cadences[CadenceDaily] = *policy.Daily
	}
	if policy.Weekly != nil {
		cadences[CadenceWeekly] = *policy.Weekly
	}
	if policy.Monthly != nil {
		cadences[CadenceMonthly] = *policy.Monthly
	}

	return &BackupRunner{
		logger:    logger,
		client:    client,
		scheduler: scheduler,
		policy:    policy,
		cadences:  cadences,
		onOutcome: onOutcome,

		clock: time.Now,
	}
}

// EnsureScheduled installs every enabled recurring cadence, replacing any
// pending registration under the same stable identifier. Calling it twice
// leaves exactly one pending registration per cadence.
func (r *BackupRunner) EnsureScheduled(ctx context.Context) error {
	for name, spec := range r.cadences {
		next := spec.Next(r.clock())

		err := r.scheduler.ScheduleAt(ctx, JobBackup, name, next, backupStableIDPrefix+name)
		if err != nil {
			return errors.Wrapf(err, "unable to schedule '%s' backup", name)
		}

		r.logger.WithFields(logrus.Fields{
			"cadence":     name,
			"next_run_at": next,
		}).Info("Backup run scheduled")
	}

	return nil
}

// TriggerAdhoc requests a one-shot backup by scheduling the adhoc job at now.
// A second trigger before execution replaces the pending registration, so at
// most one adhoc run is ever pending.
func (r *BackupRunner) TriggerAdhoc(ctx context.Context) error {
	err := r.scheduler.ScheduleAt(ctx, JobBackup, CadenceAdhoc, r.clock(), backupStableIDPrefix+CadenceAdhoc)
	if err != nil {
		return errors.Wrap(err, "unable to schedule adhoc backup")
	}

	r.logger.Info("Adhoc backup scheduled")

	return nil
}

// Run is the scheduler handler for all backup jobs. The payload names the
// cadence. Agent failures are recovered locally so that the reschedule step
// below always runs: a transient agent outage must not terminate the
// recurring schedule.
func (r *BackupRunner) Run(ctx context.Context, payload string) {
	name := payload
	if name == "" {
		name = CadenceAdhoc
	}

	ctx = appcontext.WithCadence(ctx, name)

	success := r.trigger(ctx, name)

	r.reportOutcome(ctx, success, name)

	spec, recurring := r.cadences[name]
	if !recurring {
		return
	}

	logger := appcontext.LoggerFromContext(r.logger, ctx)

	next := spec.Next(r.clock())

	err := r.scheduler.ScheduleAt(ctx, JobBackup, name, next, backupStableIDPrefix+name)
	if err != nil {
		// The slot will stay empty until setup is re-run; EnsureScheduled is
		// idempotent exactly so that recovery is a plain restart.
		logger.WithError(err).Error("Unable to schedule next backup run")
		return
	}

	logger.WithField("next_run_at", next).Info("Next backup run scheduled")
}

func (r *BackupRunner) trigger(ctx context.Context, cadenceName string) bool {
	logger := appcontext.LoggerFromContext(r.logger, ctx)

	timeout := r.policy.Timeout
	if timeout <= 0 {
		timeout = defaultBackupTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := r.buildRequest(ctx, cadenceName)
	if err != nil {
		logger.WithError(err).Error("Unable to build backup agent request")
		return false
	}

	logger.WithField("endpoint", r.policy.Endpoint).Info("Triggering backup agent")

	resp, err := r.client.Do(req)
	if err != nil {
		logger.WithError(err).Error("Backup agent request failed")
		return false
	}

	defer resp.Body.Close()

	body, _ := ioutil.ReadAll(io.LimitReader(resp.Body, maxLoggedResponseBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.WithFields(logrus.Fields{
			"status":   resp.StatusCode,
			"response": string(body),
		}).Error("Backup agent returned unexpected status")
		return false
	}

	logger.WithField("status", resp.StatusCode).Info("Backup agent accepted trigger")

	return true
}

func (r *BackupRunner) buildRequest(ctx context.Context, cadenceName string) (*http.Request, error) {
	u, err := url.Parse(r.policy.Endpoint)
	if err != nil {
		return nil, errors.Wrap(err, "invalid backup agent endpoint")
	}

	q := u.Query()
	q.Set("cadence", cadenceName)
	u.RawQuery = q.Encode()

	body := strings.NewReader(`{"cadence":"` + cadenceName + `"}`)

	req, err := http.NewRequest(http.MethodPost, u.String(), body)
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)

	req.Header.Set("Content-Type", "application/json")

	if r.policy.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.policy.AuthToken)
	}

	if r.policy.IncludeDBHints {
		if r.policy.DBHost != "" {
			req.Header.Set("X-Db-Host", r.policy.DBHost)
		}
		if r.policy.DBPort != "" {
			req.Header.Set("X-Db-Port", r.policy.DBPort)
		}
	}

	return req, nil
}

func (r *BackupRunner) reportOutcome(ctx context.Context, success bool, cadenceName string) {
	if r.onOutcome == nil {
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			appcontext.LoggerFromContext(r.logger, ctx).
				WithField("panic", rec).
				Error("Backup outcome callback panicked")
		}
	}()

	r.onOutcome(success, cadenceName)
}
