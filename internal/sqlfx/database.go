package sqlfx

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/fx"

	"github.com/avoskres/dbjanitor/pkg/util"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const (
	ConfigDatabaseDriver         = "db.driver"
	ConfigDatabaseDSN            = "db.dsn"
	ConfigDatabaseMigrationsPath = "db.migrations_path"
)

type DatabaseConfig struct {
	Driver         string
	DSN            string
	DatabaseName   string
	MigrationsPath string
}

func DatabaseConfigProvider(v *viper.Viper) (*DatabaseConfig, error) {
	config := &DatabaseConfig{
		Driver:       "sqlite3",
		DSN:          "./db/dbjanitor.db",
		DatabaseName: "dbjanitor",
	}

	if driver := v.GetString(ConfigDatabaseDriver); driver != "" {
		config.Driver = driver
	}

	if dsn := v.GetString(ConfigDatabaseDSN); dsn != "" {
		config.DSN = dsn
	}

	config.MigrationsPath = v.GetString(ConfigDatabaseMigrationsPath)
	if config.MigrationsPath == "" {
		switch config.Driver {
		case "postgres", "pgx":
			config.MigrationsPath = "file://migrations/postgres/"
		default:
			config.MigrationsPath = "file://migrations/sqlite3/"
		}
	}

	return config, nil
}

func OpenDatabase(config *DatabaseConfig, logger *logrus.Logger) (*sqlx.DB, error) {
	logger.WithFields(logrus.Fields{
		"driver": config.Driver,
		"dsn":    config.DSN,
	}).Debug("Connecting to DB with DSN")

	driverName := config.Driver
	if driverName == "postgres" {
		driverName = "pgx"
	}

	db, err := sqlx.Open(driverName, config.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "Unable to connect to DB")
	}

	db.MapperFunc(util.CamelToSnakeCase)

	if err := migrateDatabase(db, config); err != nil {
		return nil, err
	}

	return db, nil
}

func migrateDatabase(db *sqlx.DB, config *DatabaseConfig) error {
	var driver migratedb.Driver
	var err error

	switch config.Driver {
	case "postgres", "pgx":
		driver, err = migratepostgres.WithInstance(db.DB, &migratepostgres.Config{})
	default:
		driver, err = migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
	}
	if err != nil {
		return errors.Wrap(err, "Unable to create instance of migrate")
	}

	m, err := migrate.NewWithDatabaseInstance(config.MigrationsPath, config.DatabaseName, driver)
	if err != nil {
		return errors.Wrap(err, "Unable to create migrate")
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return errors.Wrap(err, "Unable to migrate DB")
	}

	return nil
}

func CloseDatabase(lc fx.Lifecycle, db *sqlx.DB) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return db.Close()
		},
	})
}
