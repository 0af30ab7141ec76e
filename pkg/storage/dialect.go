package storage

import (
	"fmt"
	"strings"
)

// Dialect renders the maintenance SQL that differs between engines. Table and
// column names come from configuration, not user input, and are interpolated
// as quoted identifiers; row limits and cutoffs are bound as parameters.
type Dialect interface {
	Name() string

	// CutoffQuery selects the identifier of the keepRows-th newest row.
	// Bound parameter: OFFSET (keepRows - 1).
	CutoffQuery(table, idColumn string) string

	// DeleteBatchQuery removes the oldest batch of rows below the cutoff.
	// DELETE ... LIMIT is not portable, so victims are selected by the
	// engine's physical row identity. Bound parameters: cutoff, batch size.
	DeleteBatchQuery(table, idColumn string) string

	// AnalyzeStatements refresh planner statistics without blocking access.
	AnalyzeStatements(table string) []string

	// RewriteStatements physically rewrite the table to reclaim space and
	// refresh statistics. The rewrite takes an exclusive lock.
	RewriteStatements(table string) []string
}

func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite3", "sqlite":
		return sqliteDialect{}, nil
	case "postgres", "pgx":
		return postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("no maintenance dialect for driver '%s'", driver)
	}
}

// quoteIdent quotes a possibly schema-qualified identifier part by part.
func quoteIdent(name string) string {
	parts := strings.Split(name, ".")

	for i, part := range parts {
		parts[i] = `"` + strings.Replace(part, `"`, `""`, -1) + `"`
	}

	return strings.Join(parts, ".")
}

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) CutoffQuery(table, idColumn string) string {
	return fmt.Sprintf(
		`SELECT %s FROM %s ORDER BY %s DESC LIMIT 1 OFFSET ?`,
		quoteIdent(idColumn), quoteIdent(table), quoteIdent(idColumn),
	)
}

func (postgresDialect) DeleteBatchQuery(table, idColumn string) string {
	return fmt.Sprintf(
		`DELETE FROM %s WHERE ctid IN (SELECT ctid FROM %s WHERE %s < ? ORDER BY %s ASC LIMIT ?)`,
		quoteIdent(table), quoteIdent(table), quoteIdent(idColumn), quoteIdent(idColumn),
	)
}

func (postgresDialect) AnalyzeStatements(table string) []string {
	return []string{fmt.Sprintf(`ANALYZE %s`, quoteIdent(table))}
}

func (postgresDialect) RewriteStatements(table string) []string {
	return []string{fmt.Sprintf(`VACUUM (FULL, ANALYZE) %s`, quoteIdent(table))}
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite3" }

func (sqliteDialect) CutoffQuery(table, idColumn string) string {
	return fmt.Sprintf(
		`SELECT %s FROM %s ORDER BY %s DESC LIMIT 1 OFFSET ?`,
		quoteIdent(idColumn), quoteIdent(table), quoteIdent(idColumn),
	)
}

func (sqliteDialect) DeleteBatchQuery(table, idColumn string) string {
	return fmt.Sprintf(
		`DELETE FROM %s WHERE rowid IN (SELECT rowid FROM %s WHERE %s < ? ORDER BY %s ASC LIMIT ?)`,
		quoteIdent(table), quoteIdent(table), quoteIdent(idColumn), quoteIdent(idColumn),
	)
}

func (sqliteDialect) AnalyzeStatements(table string) []string {
	return []string{fmt.Sprintf(`ANALYZE %s`, quoteIdent(table))}
}

// sqlite has no per-table rewrite: VACUUM compacts the whole database file.
func (sqliteDialect) RewriteStatements(table string) []string {
	return []string{
		`VACUUM`,
		fmt.Sprintf(`ANALYZE %s`, quoteIdent(table)),
	}
}
