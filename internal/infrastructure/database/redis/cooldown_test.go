package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/turtacn/trialscope/pkg/errors"
)

func TestCooldownGate_BlockAndCheck(t *testing.T) {
	client, mr := newTestClient(t)
	gate := NewCooldownGate(client, nil)
	ctx := context.Background()

	require.NoError(t, gate.Check(ctx, "chembl", "ncbi"))

	require.NoError(t, gate.Block(ctx, "ncbi", 90*time.Second))
	assert.True(t, mr.Exists("trialscope:cooldown:ncbi"))

	err := gate.Check(ctx, "chembl", "ncbi")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsRateLimited(err))
	left := pkgerrors.RetryAfterOf(err)
	assert.Greater(t, left, 80*time.Second)
	assert.LessOrEqual(t, left, 90*time.Second)

	mr.FastForward(91 * time.Second)
	assert.NoError(t, gate.Check(ctx, "ncbi"))
}

func TestCooldownGate_RemainingWithoutBlock(t *testing.T) {
	client, _ := newTestClient(t)
	gate := NewCooldownGate(client, nil)

	left, err := gate.Remaining(context.Background(), "chembl")
	require.NoError(t, err)
	assert.Zero(t, left)
}

func TestCooldownGate_IgnoresNonPositive(t *testing.T) {
	client, mr := newTestClient(t)
	gate := NewCooldownGate(client, nil)

	require.NoError(t, gate.Block(context.Background(), "chembl", 0))
	assert.False(t, mr.Exists("trialscope:cooldown:chembl"))
}

func TestCooldownGate_Clear(t *testing.T) {
	client, _ := newTestClient(t)
	gate := NewCooldownGate(client, nil)
	ctx := context.Background()

	require.NoError(t, gate.Block(ctx, "chembl", time.Minute))
	require.NoError(t, gate.Clear(ctx, "chembl"))
	assert.NoError(t, gate.Check(ctx, "chembl"))
}
