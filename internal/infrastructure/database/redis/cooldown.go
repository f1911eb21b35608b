package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/trialscope/pkg/errors"
)

// CooldownGate remembers that an upstream source asked callers to back off,
// so later runs do not start until the retry-after window has passed.
type CooldownGate struct {
	client *Client
	logger logging.Logger
	now    func() time.Time
}

// NewCooldownGate returns a gate storing its state through client.
func NewCooldownGate(client *Client, log logging.Logger) *CooldownGate {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &CooldownGate{client: client, logger: log.Named("cooldown"), now: time.Now}
}

func (g *CooldownGate) key(source string) string {
	return g.client.Key("cooldown", source)
}

// Block records a cooldown of d for source. Non-positive durations are ignored.
func (g *CooldownGate) Block(ctx context.Context, source string, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	rdb, err := g.client.Underlying()
	if err != nil {
		return err
	}
	until := g.now().Add(d).Unix()
	if err := rdb.Set(ctx, g.key(source), strconv.FormatInt(until, 10), d).Err(); err != nil {
		return errors.Wrap(err, errors.CodeCacheError, "failed to record cooldown").WithDetail(source)
	}
	g.logger.Warn("source cooling down", logging.Source(source), logging.Duration("retry_after", d))
	return nil
}

// Remaining returns how long source stays blocked; zero when it is not.
func (g *CooldownGate) Remaining(ctx context.Context, source string) (time.Duration, error) {
	rdb, err := g.client.Underlying()
	if err != nil {
		return 0, err
	}
	ttl, err := rdb.PTTL(ctx, g.key(source)).Result()
	if err != nil && err != redis.Nil {
		return 0, errors.Wrap(err, errors.CodeCacheError, "failed to read cooldown").WithDetail(source)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// Check returns a RateLimited error carrying the remaining wait when any of
// sources is still cooling down.
func (g *CooldownGate) Check(ctx context.Context, sources ...string) error {
	for _, s := range sources {
		left, err := g.Remaining(ctx, s)
		if err != nil {
			return err
		}
		if left > 0 {
			return errors.RateLimited(left, "cooldown active").WithDetail(s)
		}
	}
	return nil
}

// Clear lifts the cooldown of source.
func (g *CooldownGate) Clear(ctx context.Context, source string) error {
	rdb, err := g.client.Underlying()
	if err != nil {
		return err
	}
	if err := rdb.Del(ctx, g.key(source)).Err(); err != nil {
		return errors.Wrap(err, errors.CodeCacheError, "failed to clear cooldown").WithDetail(source)
	}
	return nil
}
