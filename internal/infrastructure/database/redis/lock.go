package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/trialscope/pkg/errors"
)

var (
	ErrLockNotAcquired = errors.New(errors.CodeConflict, "run lock is held by another process")
	ErrLockNotHeld     = errors.New(errors.CodeConflict, "run lock not held by this owner")
)

var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

var extendScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// RunLock keeps two processes from running the same pipeline over the same
// input and output at once.
type RunLock struct {
	client *Client
	logger logging.Logger
}

// NewRunLock returns a lock factory backed by client.
func NewRunLock(client *Client, log logging.Logger) *RunLock {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &RunLock{client: client, logger: log.Named("lock")}
}

// Lease is a held lock.
type Lease struct {
	rdb   *redis.Client
	key   string
	token string
}

// Acquire takes the lock called name for ttl. It fails with ErrLockNotAcquired
// when another owner holds it.
func (l *RunLock) Acquire(ctx context.Context, name string, ttl time.Duration) (*Lease, error) {
	rdb, err := l.client.Underlying()
	if err != nil {
		return nil, err
	}
	key := l.client.Key("lock", name)
	token := uuid.NewString()
	ok, err := rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeCacheError, "failed to acquire run lock").WithDetail(name)
	}
	if !ok {
		return nil, ErrLockNotAcquired.WithDetail(name)
	}
	l.logger.Debug("run lock acquired", logging.String("name", name), logging.Duration("ttl", ttl))
	return &Lease{rdb: rdb, key: key, token: token}, nil
}

// Extend pushes the lease expiry to ttl from now.
func (ls *Lease) Extend(ctx context.Context, ttl time.Duration) error {
	n, err := extendScript.Run(ctx, ls.rdb, []string{ls.key}, ls.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return errors.Wrap(err, errors.CodeCacheError, "failed to extend run lock")
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Release frees the lease. Releasing a lease that expired or was taken over
// returns ErrLockNotHeld.
func (ls *Lease) Release(ctx context.Context) error {
	n, err := unlockScript.Run(ctx, ls.rdb, []string{ls.key}, ls.token).Int64()
	if err != nil {
		return errors.Wrap(err, errors.CodeCacheError, "failed to release run lock")
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}
