package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// NewRedis connects to Redis at addr and checks the connection.
func NewRedis(ctx context.Context, addr string) (*redis.Client, error) {
	conn := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if _, err := conn.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return conn, nil
}
