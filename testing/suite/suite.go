package suite

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/rocketscienceinc/gomoku-backend/internal/repository/storage"
)

const (
	expireDuration  = 120
	maxWaitDuration = 120 * time.Second
)

const (
	redisPort  = "6379/tcp"
	redisImage = "redis"
	redisTag   = "alpine"

	postgresPort     = "5432/tcp"
	postgresImage    = "postgres"
	postgresTag      = "16-alpine"
	postgresUser     = "gomoku"
	postgresPassword = "gomoku"
	postgresDB       = "gomoku"
)

type Suite struct {
	*testing.T
	Logger *slog.Logger

	Storage *redis.Client
	DB      *gorm.DB
}

// New starts a Redis container and returns a client connected to an empty database.
func New(t *testing.T) (context.Context, *Suite) {
	t.Helper()

	ctx, st, pool := newSuite(t)

	resource := runContainer(t, pool, &dockertest.RunOptions{
		Repository: redisImage,
		Tag:        redisTag,
		Env:        []string{},
	})

	redisHost := resource.GetHostPort(redisPort)

	var redisClient *redis.Client
	if err := pool.Retry(func() error {
		var err error
		redisClient, err = storage.NewRedis(ctx, redisHost)
		return err
	}); err != nil {
		purge(t, pool, resource)
		t.Fatalf("could not connect to redis: %v", err)
	}

	if err := redisClient.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("could not flush database: %v", err)
	}

	st.Storage = redisClient

	return ctx, st
}

// NewPostgres starts a Postgres container and returns a gorm connection to it.
func NewPostgres(t *testing.T) (context.Context, *Suite) {
	t.Helper()

	ctx, st, pool := newSuite(t)

	resource := runContainer(t, pool, &dockertest.RunOptions{
		Repository: postgresImage,
		Tag:        postgresTag,
		Env: []string{
			"POSTGRES_USER=" + postgresUser,
			"POSTGRES_PASSWORD=" + postgresPassword,
			"POSTGRES_DB=" + postgresDB,
		},
	})

	dsn := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		postgresUser, postgresPassword, resource.GetHostPort(postgresPort), postgresDB)

	var db *gorm.DB
	if err := pool.Retry(func() error {
		var err error
		db, err = storage.NewPostgres(dsn)
		return err
	}); err != nil {
		purge(t, pool, resource)
		t.Fatalf("could not connect to postgres: %v", err)
	}

	st.DB = db

	return ctx, st
}

func newSuite(t *testing.T) (context.Context, *Suite, *dockertest.Pool) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), maxWaitDuration)
	t.Cleanup(func() {
		cancel()
	})

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("could not connect to docker: %v", err)
	}

	// exponential backoff-retry, because the application in the container might not be ready to accept connections yet
	pool.MaxWait = maxWaitDuration

	return ctx, &Suite{T: t, Logger: logger}, pool
}

// runContainer pulls an image, starts a container from it and purges it when the test ends.
func runContainer(t *testing.T, pool *dockertest.Pool, opts *dockertest.RunOptions) *dockertest.Resource {
	t.Helper()

	resource, err := pool.RunWithOptions(opts, func(config *docker.HostConfig) {
		// set AutoRemove to true so that stopped container goes away by itself
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("could not start resource: %v", err)
	}

	// never returns error
	_ = resource.Expire(expireDuration) // Tell docker to hard kill the container in 120 seconds

	t.Cleanup(func() {
		purge(t, pool, resource)
	})

	return resource
}

func purge(t *testing.T, pool *dockertest.Pool, resource *dockertest.Resource) {
	t.Helper()

	if err := pool.Purge(resource); err != nil {
		t.Logf("could not purge resource: %v", err)
	}
}
