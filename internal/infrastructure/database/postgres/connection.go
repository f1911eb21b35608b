// Package postgres manages PostgreSQL connections for the AACT trial
// registry and the optional results store.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/turtacn/trialscope/internal/config"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/trialscope/pkg/errors"
)

const driverName = "pgx"

// Pool defaults used when the configuration leaves a value unset.
const (
	defaultMaxConns        = 10
	defaultMinConns        = 2
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute
	defaultConnectTimeout  = 5 * time.Second
)

// poolSetter is the subset of *sql.DB that carries pool settings.
type poolSetter interface {
	SetMaxOpenConns(n int)
	SetMaxIdleConns(n int)
	SetConnMaxLifetime(d time.Duration)
	SetConnMaxIdleTime(d time.Duration)
}

// sqlOpen is a variable to allow mocking in tests.
var sqlOpen = func(driverName, dataSourceName string) (*sql.DB, error) {
	return sql.Open(driverName, dataSourceName)
}

// Connection wraps a database/sql pool backed by the pgx driver.
type Connection struct {
	db     *sql.DB
	name   string
	logger logging.Logger
	once   sync.Once
}

// NewConnection opens a pool for cfg and verifies it with a ping. name labels
// log lines ("aact", "results").
func NewConnection(name string, cfg config.DatabaseConfig, log logging.Logger) (*Connection, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	db, err := sqlOpen(driverName, buildConnString(cfg))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to open database connection")
	}
	configurePool(db, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "database connection failed").
			WithDetail(name)
	}

	log.Info("connected to postgres",
		logging.String("db", name),
		logging.String("host", cfg.Host),
		logging.Int("port", cfg.Port),
		logging.String("database", cfg.DBName),
	)
	return &Connection{db: db, name: name, logger: log}, nil
}

// NewConnectionWithDB wraps an existing pool.
func NewConnectionWithDB(db *sql.DB, log logging.Logger) *Connection {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Connection{db: db, name: "postgres", logger: log}
}

// DB returns the underlying pool.
func (c *Connection) DB() *sql.DB {
	return c.db
}

// HealthCheck pings the database and warns when the pool runs hot.
func (c *Connection) HealthCheck(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "database health check failed")
	}
	stats := c.db.Stats()
	if stats.OpenConnections > 0 {
		usage := float64(stats.InUse) / float64(stats.OpenConnections)
		if usage > 0.8 {
			c.logger.Warn("high database connection pool usage",
				logging.String("db", c.name),
				logging.Int("in_use", stats.InUse),
				logging.Int("open", stats.OpenConnections),
				logging.Float64("usage", usage),
			)
		}
	}
	return nil
}

// Stats returns pool statistics.
func (c *Connection) Stats() sql.DBStats {
	return c.db.Stats()
}

// Close closes the pool once.
func (c *Connection) Close() error {
	var err error
	c.once.Do(func() {
		err = c.db.Close()
		if err != nil {
			c.logger.Error("failed to close postgres connection", logging.String("db", c.name), logging.Err(err))
			return
		}
		c.logger.Info("closed postgres connection", logging.String("db", c.name))
	})
	return err
}

func configurePool(db poolSetter, cfg config.DatabaseConfig) {
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}
	minConns := cfg.MinConns
	if minConns <= 0 {
		minConns = defaultMinConns
	}
	if minConns > maxConns {
		minConns = maxConns
	}
	lifetime := cfg.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = defaultConnMaxLifetime
	}
	idle := cfg.ConnMaxIdleTime
	if idle <= 0 {
		idle = defaultConnMaxIdleTime
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(minConns)
	db.SetConnMaxLifetime(lifetime)
	db.SetConnMaxIdleTime(idle)
}

// buildConnString renders cfg as a postgres:// URL.
func buildConnString(cfg config.DatabaseConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   cfg.DBName,
	}
	q := u.Query()
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	} else {
		q.Set("sslmode", "disable")
	}
	u.RawQuery = q.Encode()
	return u.String()
}
