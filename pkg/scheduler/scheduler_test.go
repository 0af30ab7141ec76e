package scheduler

import (
	"context"
	"io/ioutil"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// region jobRepositoryMock
type jobRepositoryMock struct {
	mock.Mock
}

func (m *jobRepositoryMock) Replace(ctx context.Context, job Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *jobRepositoryMock) Delete(ctx context.Context, stableID string) error {
	args := m.Called(ctx, stableID)
	return args.Error(0)
}

func (m *jobRepositoryMock) DeleteById(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *jobRepositoryMock) FindDue(ctx context.Context, now time.Time) ([]Job, error) {
	args := m.Called(ctx, now)

	if jobs := args.Get(0); jobs != nil {
		return jobs.([]Job), args.Error(1)
	}

	return nil, args.Error(1)
}

// endregion

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Out = ioutil.Discard

	return logger
}

var testNow = time.Date(2019, 3, 12, 10, 0, 0, 0, time.UTC)

func newTestScheduler(repo *jobRepositoryMock) *Scheduler {
	s := New(discardLogger(), repo, time.Second)
	s.clock = func() time.Time { return testNow }

	return s
}

func TestScheduler_ScheduleAt_PersistsReplacement(t *testing.T) {
	repo := &jobRepositoryMock{}

	at := testNow.Add(24 * time.Hour)

	repo.On("Replace", mock.Anything, Job{
		Name:      "backup",
		Payload:   "daily",
		StableId:  "backup:daily",
		RunAt:     at,
		CreatedAt: testNow,
	}).Return(nil)

	s := newTestScheduler(repo)

	err := s.ScheduleAt(context.Background(), "backup", "daily", at, "backup:daily")

	assert.Nil(t, err)
	repo.AssertExpectations(t)
}

func TestScheduler_Cancel(t *testing.T) {
	repo := &jobRepositoryMock{}
	repo.On("Delete", mock.Anything, "backup:adhoc").Return(nil)

	s := newTestScheduler(repo)

	err := s.Cancel(context.Background(), "backup:adhoc")

	assert.Nil(t, err)
	repo.AssertExpectations(t)
}

func TestScheduler_DispatchDue_InvokesHandlerAndConsumesRow(t *testing.T) {
	repo := &jobRepositoryMock{}

	job := Job{Id: 42, Name: "backup", Payload: "daily", StableId: "backup:daily", RunAt: testNow}

	repo.On("FindDue", mock.Anything, testNow).Return([]Job{job}, nil)
	repo.On("DeleteById", mock.Anything, int64(42)).Return(nil)

	var payloads []string
	done := make(chan struct{})

	s := newTestScheduler(repo)
	s.Register("backup", func(ctx context.Context, payload string) {
		payloads = append(payloads, payload)
		close(done)
	})

	s.dispatchDue(context.Background())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}

	s.wg.Wait()

	assert.Equal(t, []string{"daily"}, payloads)
	repo.AssertExpectations(t)
}

func TestScheduler_DispatchDue_SingleInvocationPerStableId(t *testing.T) {
	repo := &jobRepositoryMock{}

	job := Job{Id: 42, Name: "backup", Payload: "daily", StableId: "backup:daily", RunAt: testNow}

	repo.On("FindDue", mock.Anything, testNow).Return([]Job{job}, nil)
	repo.On("DeleteById", mock.Anything, int64(42)).Return(nil)

	var invocations int32
	release := make(chan struct{})

	s := newTestScheduler(repo)
	s.Register("backup", func(ctx context.Context, payload string) {
		atomic.AddInt32(&invocations, 1)
		<-release
	})

	// the second poll sees the same still-persisted row while the first
	// invocation is in flight
	s.dispatchDue(context.Background())
	s.dispatchDue(context.Background())

	close(release)
	s.wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&invocations))
	repo.AssertNumberOfCalls(t, "DeleteById", 1)
}

func TestScheduler_DispatchDue_UnknownJobStaysPersisted(t *testing.T) {
	repo := &jobRepositoryMock{}

	job := Job{Id: 42, Name: "unknown", StableId: "unknown:slot", RunAt: testNow}

	repo.On("FindDue", mock.Anything, testNow).Return([]Job{job}, nil)

	s := newTestScheduler(repo)

	s.dispatchDue(context.Background())
	s.wg.Wait()

	repo.AssertNotCalled(t, "DeleteById", mock.Anything, mock.Anything)
}

func TestScheduler_DispatchDue_QueryFailureIsRecovered(t *testing.T) {
	repo := &jobRepositoryMock{}

	repo.On("FindDue", mock.Anything, testNow).Return(nil, assert.AnError)

	s := newTestScheduler(repo)

	assert.NotPanics(t, func() {
		s.dispatchDue(context.Background())
	})
}
