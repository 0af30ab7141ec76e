package storage

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/avoskres/dbjanitor/pkg/scheduler"
)

const (
	jobInsertQuery = `
		INSERT INTO scheduled_jobs (name, payload, stable_id, run_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	jobDeleteByStableIdQuery = `
		DELETE FROM scheduled_jobs WHERE stable_id = ?
	`

	jobDeleteByIdQuery = `
		DELETE FROM scheduled_jobs WHERE id = ?
	`

	jobSelectDueQuery = `
		SELECT id, name, payload, stable_id, run_at, created_at
		FROM scheduled_jobs
		WHERE run_at <= ?
		ORDER BY run_at ASC
	`

	jobSelectAllQuery = `
		SELECT id, name, payload, stable_id, run_at, created_at
		FROM scheduled_jobs
		ORDER BY run_at ASC
	`
)

type JobRepository struct {
	db *sqlx.DB
}

func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{
		db: db,
	}
}

// Replace atomically swaps any pending registration under the job's stable
// identifier for the new one.
func (r *JobRepository) Replace(ctx context.Context, job scheduler.Job) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, r.db.Rebind(jobDeleteByStableIdQuery), job.StableId)
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	_, err = tx.ExecContext(
		ctx,
		r.db.Rebind(jobInsertQuery),
		job.Name, job.Payload, job.StableId, job.RunAt, job.CreatedAt,
	)
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (r *JobRepository) Delete(ctx context.Context, stableID string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(jobDeleteByStableIdQuery), stableID)

	return err
}

func (r *JobRepository) DeleteById(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(jobDeleteByIdQuery), id)

	return err
}

func (r *JobRepository) FindDue(ctx context.Context, now time.Time) ([]scheduler.Job, error) {
	var jobs []scheduler.Job

	err := r.db.SelectContext(ctx, &jobs, r.db.Rebind(jobSelectDueQuery), now.UTC())
	if err != nil {
		return nil, err
	}

	return jobs, nil
}

// FindAll lists every pending registration, soonest first.
func (r *JobRepository) FindAll(ctx context.Context) ([]scheduler.Job, error) {
	var jobs []scheduler.Job

	err := r.db.SelectContext(ctx, &jobs, jobSelectAllQuery)
	if err != nil {
		return nil, err
	}

	return jobs, nil
}
