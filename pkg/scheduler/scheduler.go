package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/avoskres/dbjanitor/pkg/appcontext"
)

const defaultPollInterval = time.Second

// Job is one pending registration. At most one row exists per StableId:
// scheduling under an already-taken stable identifier replaces the previous
// registration instead of accumulating a duplicate.
type Job struct {
	Id        int64
	Name      string
	Payload   string
	StableId  string
	RunAt     time.Time
	CreatedAt time.Time
}

type Handler func(ctx context.Context, payload string)

type JobRepository interface {
	// Replace removes any row under the job's stable identifier and inserts
	// the new one in a single transaction.
	Replace(ctx context.Context, job Job) error
	Delete(ctx context.Context, stableID string) error
	DeleteById(ctx context.Context, id int64) error
	FindDue(ctx context.Context, now time.Time) ([]Job, error)
}

// Scheduler delivers persisted jobs to registered handlers once they are due.
// Delivery is at-least-once: a job row is removed only after its handler
// returns, so a crash mid-run leaves the row behind for the next start.
// At most one invocation is in flight per stable identifier at any time.
type Scheduler struct {
	logger logrus.FieldLogger
	repo   JobRepository

	interval time.Duration
	clock    func() time.Time

	mu       sync.Mutex
	handlers map[string]Handler
	inflight map[string]struct{}

	wg sync.WaitGroup
}

func New(logger logrus.FieldLogger, repo JobRepository, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = defaultPollInterval
	}

	return &Scheduler{
		logger: logger,
		repo:   repo,

		interval: interval,
		clock:    time.Now,

		handlers: make(map[string]Handler),
		inflight: make(map[string]struct{}),
	}
}

// Register binds a handler to a job name. Handlers must be registered before
// Run starts; a due job without a handler stays persisted and is retried on
// a later tick.
func (s *Scheduler) Register(name string, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers[name] = handler
}

func (s *Scheduler) ScheduleAt(ctx context.Context, job, payload string, at time.Time, stableID string) error {
	err := s.repo.Replace(ctx, Job{
		Name:      job,
		Payload:   payload,
		StableId:  stableID,
		RunAt:     at.UTC(),
		CreatedAt: s.clock().UTC(),
	})
	if err != nil {
		return errors.Wrap(err, "unable to persist scheduled job")
	}

	return nil
}

func (s *Scheduler) Cancel(ctx context.Context, stableID string) error {
	err := s.repo.Delete(ctx, stableID)
	if err != nil {
		return errors.Wrap(err, "unable to cancel scheduled job")
	}

	return nil
}

// Run polls for due jobs until the context is cancelled, then waits for
// in-flight handlers to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.WithField("poll_interval", s.interval).Debug("Starting scheduler")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.dispatchDue(ctx)

		select {
		case <-ctx.Done():
			s.wg.Wait()
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) dispatchDue(ctx context.Context) {
	jobs, err := s.repo.FindDue(ctx, s.clock())
	if err != nil {
		s.logger.WithError(err).Error("Unable to query due jobs")
		return
	}

	for _, job := range jobs {
		s.dispatch(ctx, job)
	}
}

func (s *Scheduler) dispatch(ctx context.Context, job Job) {
	logger := s.logger.WithFields(logrus.Fields{
		"job":       job.Name,
		"stable_id": job.StableId,
	})

	s.mu.Lock()

	handler, ok := s.handlers[job.Name]
	if !ok {
		s.mu.Unlock()
		logger.Warn("No handler registered for due job")
		return
	}

	if _, running := s.inflight[job.StableId]; running {
		s.mu.Unlock()
		return
	}
	s.inflight[job.StableId] = struct{}{}

	s.mu.Unlock()

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.inflight, job.StableId)
			s.mu.Unlock()
		}()

		logger.Debug("Invoking job handler")

		handler(appcontext.WithJobName(ctx, job.Name), job.Payload)

		// Remove the consumed row by primary key: the handler may already
		// have re-registered the stable identifier for its next occurrence,
		// and that registration must survive.
		if err := s.repo.DeleteById(context.Background(), job.Id); err != nil {
			logger.WithError(err).Error("Unable to remove consumed job")
		}
	}()
}
