package main

import (
	"context"

	"github.com/turtacn/trialscope/internal/infrastructure/database/postgres"
	"github.com/turtacn/trialscope/internal/infrastructure/database/redis"
)

// Adapters for HealthHandler
type postgresHealth struct {
	name string
	conn *postgres.Connection
}

func (a postgresHealth) Name() string { return a.name }

func (a postgresHealth) Check(ctx context.Context) error {
	return a.conn.HealthCheck(ctx)
}

type redisHealth struct {
	client *redis.Client
}

func (redisHealth) Name() string { return "redis" }

func (a redisHealth) Check(ctx context.Context) error {
	return a.client.Ping(ctx)
}
