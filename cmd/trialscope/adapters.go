package main

import (
	"context"
	"sync"
	"time"

	"github.com/turtacn/trialscope/internal/config"
	"github.com/turtacn/trialscope/internal/domain/trial"
	"github.com/turtacn/trialscope/internal/infrastructure/database/postgres"
	"github.com/turtacn/trialscope/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/trialscope/internal/infrastructure/database/redis"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/logging"
)

// lazyTrials opens the AACT connection on first query, so commands that never
// touch trials run without database credentials.
type lazyTrials struct {
	cfg config.DatabaseConfig
	log logging.Logger

	once sync.Once
	conn *postgres.Connection
	repo trial.Repository
	err  error
}

func newLazyTrials(cfg config.DatabaseConfig, log logging.Logger) *lazyTrials {
	return &lazyTrials{cfg: cfg, log: log}
}

func (l *lazyTrials) open() (trial.Repository, error) {
	l.once.Do(func() {
		l.conn, l.err = postgres.NewConnection("aact", l.cfg, l.log)
		if l.err == nil {
			l.repo = repositories.NewPostgresTrialRepo(l.conn, l.log, nil)
		}
	})
	return l.repo, l.err
}

func (l *lazyTrials) ForCondition(ctx context.Context, condition string) ([]trial.Trial, error) {
	repo, err := l.open()
	if err != nil {
		return nil, err
	}
	return repo.ForCondition(ctx, condition)
}

func (l *lazyTrials) ForDrugAndIndication(ctx context.Context, drug, indication string) ([]trial.Trial, error) {
	repo, err := l.open()
	if err != nil {
		return nil, err
	}
	return repo.ForDrugAndIndication(ctx, drug, indication)
}

// Close closes the connection if one was opened.
func (l *lazyTrials) Close() error {
	if l.conn == nil {
		return nil
	}
	return l.conn.Close()
}

// runLocker exposes a Redis RunLock as a lock/unlock pair.
type runLocker struct {
	lock *redis.RunLock
}

func (r runLocker) Lock(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, error) {
	lease, err := r.lock.Acquire(ctx, name, ttl)
	if err != nil {
		return nil, err
	}
	return lease.Release, nil
}
