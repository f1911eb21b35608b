package cli

import (
	"context"
	"time"

	"github.com/turtacn/trialscope/internal/application/pipeline"
)

// CooldownGate refuses runs while an upstream source is cooling down after a
// rate-limit signal.
type CooldownGate interface {
	Check(ctx context.Context, sources ...string) error
	Block(ctx context.Context, source string, d time.Duration) error
	Remaining(ctx context.Context, source string) (time.Duration, error)
	Clear(ctx context.Context, source string) error
}

// RunLocker serializes runs of the same pipeline and input across processes.
type RunLocker interface {
	Lock(ctx context.Context, name string, ttl time.Duration) (unlock func(context.Context) error, err error)
}

// Migrator manages the results-store schema.
type Migrator interface {
	Up() error
	Rollback(steps int) error
	Status() (version uint, dirty bool, err error)
	Force(version int) error
	Close() error
}

// Runtime holds the services a command runs against. Gate and Locker are nil
// when Redis is not configured.
type Runtime struct {
	Pipelines pipeline.Service
	Gate      CooldownGate
	Locker    RunLocker
	// Sources are the upstream names checked against the cooldown gate.
	Sources []string
	// Outputs maps table names to the local files they are written to.
	Outputs map[string]string
	// Close releases connections; it may be nil.
	Close func() error
}

func (r *Runtime) close() {
	if r != nil && r.Close != nil {
		_ = r.Close()
	}
}

// Factories build the runtime lazily, after configuration is loaded, so that
// commands only open the connections they use.
type Factories struct {
	Runtime  func(ctx context.Context, cc *CLIContext) (*Runtime, error)
	Migrator func(ctx context.Context, cc *CLIContext) (Migrator, error)
}
