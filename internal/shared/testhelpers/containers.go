//go:build integration

package testhelpers

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

type PostgresContainer struct {
	*postgres.PostgresContainer
	ConnectionString string
}

func CreatePostgresContainer(ctx context.Context) (*PostgresContainer, error) {
	c, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("bingao"),
		postgres.WithUsername("bingao"),
		postgres.WithPassword("bingao"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, err
	}

	dsn, err := c.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, err
	}

	return &PostgresContainer{PostgresContainer: c, ConnectionString: dsn}, nil
}

type RedisContainer struct {
	testcontainers.Container
	Client *redis.Client
}

func CreateRedisContainer(ctx context.Context) (*RedisContainer, error) {
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, err
	}

	addr, err := c.Endpoint(ctx, "")
	if err != nil {
		return nil, err
	}

	return &RedisContainer{Container: c, Client: redis.NewClient(&redis.Options{Addr: addr})}, nil
}

func (c *RedisContainer) Terminate(ctx context.Context) error {
	_ = c.Client.Close()
	return c.Container.Terminate(ctx)
}
