package domain

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/avoskres/dbjanitor/pkg/cadence"
)

type recordedOutcome struct {
	success bool
	cadence string
}

type backupTestEnv struct {
	runner    *BackupRunner
	scheduler *jobSchedulerMock
	outcomes  []recordedOutcome
	requests  []*http.Request
	server    *httptest.Server
}

func newBackupTestEnv(t *testing.T, status int, policy BackupPolicy) *backupTestEnv {
	t.Helper()

	env := &backupTestEnv{
		scheduler: &jobSchedulerMock{},
	}

	env.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.requests = append(env.requests, r.Clone(context.Background()))
		w.WriteHeader(status)
	}))
	t.Cleanup(env.server.Close)

	policy.Endpoint = env.server.URL

	env.runner = NewBackupRunner(
		discardLogger(),
		env.server.Client(),
		env.scheduler,
		policy,
		func(success bool, cadenceName string) {
			env.outcomes = append(env.outcomes, recordedOutcome{success, cadenceName})
		},
	)
	env.runner.clock = func() time.Time { return testNow }

	return env
}

func dailyOnlyPolicy() BackupPolicy {
	spec := cadence.DailySpec(1, 30)
	return BackupPolicy{Daily: &spec}
}

func TestBackupRunner_Run_SuccessReschedules(t *testing.T) {
	env := newBackupTestEnv(t, http.StatusOK, dailyOnlyPolicy())

	expectedNext := time.Date(2019, 3, 13, 1, 30, 0, 0, time.UTC)
	env.scheduler.On("ScheduleAt", mock.Anything, JobBackup, CadenceDaily, expectedNext, "backup:daily").
		Return(nil)

	env.runner.Run(context.Background(), CadenceDaily)

	env.scheduler.AssertExpectations(t)

	assert.Equal(t, []recordedOutcome{{true, CadenceDaily}}, env.outcomes)

	if assert.Len(t, env.requests, 1) {
		req := env.requests[0]
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, CadenceDaily, req.URL.Query().Get("cadence"))
	}
}

func TestBackupRunner_Run_AgentFailureStillReschedules(t *testing.T) {
	env := newBackupTestEnv(t, http.StatusInternalServerError, dailyOnlyPolicy())

	expectedNext := time.Date(2019, 3, 13, 1, 30, 0, 0, time.UTC)
	env.scheduler.On("ScheduleAt", mock.Anything, JobBackup, CadenceDaily, expectedNext, "backup:daily").
		Return(nil)

	env.runner.Run(context.Background(), CadenceDaily)

	env.scheduler.AssertExpectations(t)
	assert.Equal(t, []recordedOutcome{{false, CadenceDaily}}, env.outcomes)
}

func TestBackupRunner_Run_TransportFailureStillReschedules(t *testing.T) {
	env := newBackupTestEnv(t, http.StatusOK, dailyOnlyPolicy())
	env.server.Close()

	env.scheduler.On("ScheduleAt", mock.Anything, JobBackup, CadenceDaily, mock.Anything, "backup:daily").
		Return(nil)

	env.runner.Run(context.Background(), CadenceDaily)

	env.scheduler.AssertExpectations(t)
	assert.Equal(t, []recordedOutcome{{false, CadenceDaily}}, env.outcomes)
}

func TestBackupRunner_Run_AdhocNeverReschedules(t *testing.T) {
	env := newBackupTestEnv(t, http.StatusOK, dailyOnlyPolicy())

	env.runner.Run(context.Background(), CadenceAdhoc)

	env.scheduler.AssertNotCalled(t, "ScheduleAt",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, []recordedOutcome{{true, CadenceAdhoc}}, env.outcomes)
}

func TestBackupRunner_Run_RequestCarriesAuthAndHints(t *testing.T) {
	policy := dailyOnlyPolicy()
	policy.AuthToken = "sekret"
	policy.IncludeDBHints = true
	policy.DBHost = "db.internal"
	policy.DBPort = "5432"

	env := newBackupTestEnv(t, http.StatusOK, policy)

	env.scheduler.On("ScheduleAt", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil)

	env.runner.Run(context.Background(), CadenceDaily)

	if assert.Len(t, env.requests, 1) {
		req := env.requests[0]
		assert.Equal(t, "Bearer sekret", req.Header.Get("Authorization"))
		assert.Equal(t, "db.internal", req.Header.Get("X-Db-Host"))
		assert.Equal(t, "5432", req.Header.Get("X-Db-Port"))
	}
}

func TestBackupRunner_Run_OutcomeCallbackPanicIsRecovered(t *testing.T) {
	env := newBackupTestEnv(t, http.StatusOK, dailyOnlyPolicy())
	env.runner.onOutcome = func(bool, string) { panic("observer exploded") }

	env.scheduler.On("ScheduleAt", mock.Anything, JobBackup, CadenceDaily, mock.Anything, "backup:daily").
		Return(nil)

	assert.NotPanics(t, func() {
		env.runner.Run(context.Background(), CadenceDaily)
	})

	env.scheduler.AssertExpectations(t)
}

func TestBackupRunner_Run_RescheduleFailureIsRecovered(t *testing.T) {
	env := newBackupTestEnv(t, http.StatusOK, dailyOnlyPolicy())

	env.scheduler.On("ScheduleAt", mock.Anything, JobBackup, CadenceDaily, mock.Anything, "backup:daily").
		Return(assert.AnError)

	assert.NotPanics(t, func() {
		env.runner.Run(context.Background(), CadenceDaily)
	})

	assert.Equal(t, []recordedOutcome{{true, CadenceDaily}}, env.outcomes)
}

func TestBackupRunner_EnsureScheduled_InstallsEveryEnabledCadence(t *testing.T) {
	daily := cadence.DailySpec(1, 0)
	weekly := cadence.WeeklySpec(7, 2, 0)
	monthly := cadence.MonthlySpec(1, 3, 0)

	scheduler := &jobSchedulerMock{}
	scheduler.On("ScheduleAt", mock.Anything, JobBackup, CadenceDaily, daily.Next(testNow), "backup:daily").
		Return(nil)
	scheduler.On("ScheduleAt", mock.Anything, JobBackup, CadenceWeekly, weekly.Next(testNow), "backup:weekly").
		Return(nil)
	scheduler.On("ScheduleAt", mock.Anything, JobBackup, CadenceMonthly, monthly.Next(testNow), "backup:monthly").
		Return(nil)

	runner := NewBackupRunner(discardLogger(), http.DefaultClient, scheduler, BackupPolicy{
		Endpoint: "http://agent.internal/trigger",
		Daily:    &daily,
		Weekly:   &weekly,
		Monthly:  &monthly,
	}, nil)
	runner.clock = func() time.Time { return testNow }

	err := runner.EnsureScheduled(context.Background())

	assert.Nil(t, err)
	scheduler.AssertExpectations(t)
	scheduler.AssertNumberOfCalls(t, "ScheduleAt", 3)
}

func TestBackupRunner_TriggerAdhoc(t *testing.T) {
	scheduler := &jobSchedulerMock{}
	scheduler.On("ScheduleAt", mock.Anything, JobBackup, CadenceAdhoc, testNow, "backup:adhoc").
		Return(nil)

	runner := NewBackupRunner(discardLogger(), http.DefaultClient, scheduler, BackupPolicy{
		Endpoint: "http://agent.internal/trigger",
	}, nil)
	runner.clock = func() time.Time { return testNow }

	err := runner.TriggerAdhoc(context.Background())

	assert.Nil(t, err)
	scheduler.AssertExpectations(t)
}
