package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/turtacn/trialscope/pkg/errors"
)

func TestRunLock_AcquireRelease(t *testing.T) {
	client, mr := newTestClient(t)
	locks := NewRunLock(client, nil)
	ctx := context.Background()

	lease, err := locks.Acquire(ctx, "drug:asthma", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("trialscope:lock:drug:asthma"))

	require.NoError(t, lease.Release(ctx))
	assert.False(t, mr.Exists("trialscope:lock:drug:asthma"))
}

func TestRunLock_Contention(t *testing.T) {
	client, _ := newTestClient(t)
	locks := NewRunLock(client, nil)
	ctx := context.Background()

	first, err := locks.Acquire(ctx, "target:egfr", time.Minute)
	require.NoError(t, err)

	_, err = locks.Acquire(ctx, "target:egfr", time.Minute)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	require.NoError(t, first.Release(ctx))
	second, err := locks.Acquire(ctx, "target:egfr", time.Minute)
	require.NoError(t, err)
	require.NoError(t, second.Release(ctx))
}

func TestRunLock_ExpiredLeaseIsNotHeld(t *testing.T) {
	client, mr := newTestClient(t)
	locks := NewRunLock(client, nil)
	ctx := context.Background()

	lease, err := locks.Acquire(ctx, "disease:copd", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	assert.ErrorIs(t, lease.Release(ctx), ErrLockNotHeld)
	assert.ErrorIs(t, lease.Extend(ctx, time.Minute), ErrLockNotHeld)
}

func TestRunLock_Extend(t *testing.T) {
	client, mr := newTestClient(t)
	locks := NewRunLock(client, nil)
	ctx := context.Background()

	lease, err := locks.Acquire(ctx, "summary:aspirin", time.Second)
	require.NoError(t, err)
	require.NoError(t, lease.Extend(ctx, time.Minute))
	assert.Greater(t, mr.TTL("trialscope:lock:summary:aspirin"), 30*time.Second)
	require.NoError(t, lease.Release(ctx))
}
