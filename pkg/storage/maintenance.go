package storage

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// MaintenanceRepository issues the retention SQL against the target database
// through the engine-specific dialect.
type MaintenanceRepository struct {
	db      *sqlx.DB
	dialect Dialect
}

func NewMaintenanceRepository(db *sqlx.DB, dialect Dialect) *MaintenanceRepository {
	return &MaintenanceRepository{
		db:      db,
		dialect: dialect,
	}
}

// ResolveCutoff returns the identifier of the keepRows-th newest row, i.e.
// the smallest identifier among the rows that must be kept. The boolean is
// false when the table holds fewer than keepRows rows.
func (r *MaintenanceRepository) ResolveCutoff(ctx context.Context, table, idColumn string, keepRows int) (int64, bool, error) {
	query := r.db.Rebind(r.dialect.CutoffQuery(table, idColumn))

	var cutoff int64

	err := r.db.GetContext(ctx, &cutoff, query, keepRows-1)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrapf(err, "unable to resolve cutoff for table '%s'", table)
	}

	return cutoff, true, nil
}

func (r *MaintenanceRepository) DeleteBatch(ctx context.Context, table, idColumn string, cutoff int64, batchSize int) (int64, error) {
	query := r.db.Rebind(r.dialect.DeleteBatchQuery(table, idColumn))

	res, err := r.db.ExecContext(ctx, query, cutoff, batchSize)
	if err != nil {
		return 0, errors.Wrapf(err, "unable to delete batch from table '%s'", table)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "unable to count deleted rows")
	}

	return deleted, nil
}

func (r *MaintenanceRepository) Analyze(ctx context.Context, table string) error {
	return r.execAll(ctx, table, r.dialect.AnalyzeStatements(table))
}

func (r *MaintenanceRepository) Rewrite(ctx context.Context, table string) error {
	return r.execAll(ctx, table, r.dialect.RewriteStatements(table))
}

func (r *MaintenanceRepository) execAll(ctx context.Context, table string, statements []string) error {
	for _, statement := range statements {
		if _, err := r.db.ExecContext(ctx, statement); err != nil {
			return errors.Wrapf(err, "unable to run maintenance statement for table '%s'", table)
		}
	}

	return nil
}
