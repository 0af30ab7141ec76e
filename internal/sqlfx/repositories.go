package sqlfx

import (
	"github.com/jmoiron/sqlx"

	"github.com/avoskres/dbjanitor/pkg/domain"
	"github.com/avoskres/dbjanitor/pkg/http/handler"
	"github.com/avoskres/dbjanitor/pkg/scheduler"
	"github.com/avoskres/dbjanitor/pkg/storage"
)

func JobsRepository(db *sqlx.DB) (
	*storage.JobRepository,
	scheduler.JobRepository,
	handler.PendingJobSource,
) {
	repo := storage.NewJobRepository(db)

	return repo, repo, repo
}

func MaintenanceRepository(config *DatabaseConfig, db *sqlx.DB) (domain.MaintenanceStore, error) {
	dialect, err := storage.DialectFor(config.Driver)
	if err != nil {
		return nil, err
	}

	return storage.NewMaintenanceRepository(db, dialect), nil
}
