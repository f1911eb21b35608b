package postgres

import (
	"database/sql"
	"embed"
	stderrors "errors"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/trialscope/pkg/errors"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// MigrationsTable records the applied schema version of the results store.
const MigrationsTable = "trialscope_schema_migrations"

// Migrator applies the embedded results-store migrations.
type Migrator struct {
	m      *migrate.Migrate
	logger logging.Logger
}

// NewMigrator binds the embedded migrations to db.
func NewMigrator(db *sql.DB, log logging.Logger) (*Migrator, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to load embedded migrations")
	}
	driver, err := migratepg.WithInstance(db, &migratepg.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to create migration driver")
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to create migrate instance")
	}
	return &Migrator{m: m, logger: log}, nil
}

// Up applies all pending migrations. No pending migrations is not an error.
func (mg *Migrator) Up() error {
	if err := mg.m.Up(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		version, _, _ := mg.m.Version()
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to run migrations").
			WithDetail(versionDetail(version))
	}
	version, dirty, err := mg.Status()
	if err != nil {
		mg.logger.Warn("failed to read migration version", logging.Err(err))
		return nil
	}
	mg.logger.Info("database migrations completed",
		logging.Int64("version", int64(version)), logging.Bool("dirty", dirty))
	return nil
}

// Rollback reverts steps migrations.
func (mg *Migrator) Rollback(steps int) error {
	if steps <= 0 {
		return errors.InvalidParam("rollback steps must be greater than 0")
	}
	if err := mg.m.Steps(-steps); err != nil {
		if stderrors.Is(err, migrate.ErrNoChange) {
			return errors.New(errors.CodeDatabaseError, "no migrations to roll back")
		}
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to roll back migrations")
	}
	return nil
}

// Status returns the applied version and whether the last migration left the
// schema dirty. An unmigrated database reports version 0.
func (mg *Migrator) Status() (uint, bool, error) {
	version, dirty, err := mg.m.Version()
	if err != nil {
		if stderrors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, errors.Wrap(err, errors.CodeDatabaseError, "failed to read migration version")
	}
	return version, dirty, nil
}

// Force sets the recorded version without running migrations, clearing a
// dirty flag.
func (mg *Migrator) Force(version int) error {
	if err := mg.m.Force(version); err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to force migration version")
	}
	return nil
}

// Close releases the migration source and the database driver, which also
// closes the pool passed to NewMigrator.
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	if srcErr != nil {
		return srcErr
	}
	return dbErr
}

func versionDetail(v uint) string {
	return "current version " + strconv.FormatUint(uint64(v), 10)
}
