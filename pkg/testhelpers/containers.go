package testhelpers

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/nouraellm/drugovery/pkg/database"
)

const (
	// PostgresImage is the stock image used for repository and service tests.
	PostgresImage = "postgres:16-alpine"
	// RedisImage backs the job store tests.
	RedisImage = "redis:7-alpine"
)

// TestDB holds a shared migrated PostgreSQL database for integration tests.
type TestDB struct {
	Container testcontainers.Container
	DB        *database.DB
	ConnStr   string
}

var (
	sharedTestDB     *TestDB
	sharedTestDBOnce sync.Once
	sharedTestDBErr  error
)

// GetTestDB returns a shared PostgreSQL container with migrations applied.
// The container is created once and reused across all tests in the run.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestDBOnce.Do(func() {
		sharedTestDB, sharedTestDBErr = setupTestDB()
	})

	if sharedTestDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedTestDBErr)
	}

	return sharedTestDB
}

// Truncate empties every table, leaving the schema in place.
func (tdb *TestDB) Truncate(t *testing.T) {
	t.Helper()
	_, err := tdb.DB.Pool.Exec(context.Background(),
		`TRUNCATE compounds, compound_versions, predictions, experiments`)
	if err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
}

func setupTestDB() (*TestDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "drugdiscovery_test",
			"POSTGRES_USER":     "drugovery",
			"POSTGRES_PASSWORD": "test_password",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://drugovery:test_password@%s:%s/drugdiscovery_test?sslmode=disable",
		host, port.Port())

	db, err := database.NewConnection(ctx, connStr, database.WithMaxConnections(10))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}

	if err := database.RunMigrations(connStr, MigrationsPath(), zap.NewNop()); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &TestDB{
		Container: container,
		DB:        db,
		ConnStr:   connStr,
	}, nil
}

// MigrationsPath returns the absolute path of the repository's migrations
// directory, independent of the test's working directory.
func MigrationsPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}

var (
	sharedRedis     *redis.Client
	sharedRedisOnce sync.Once
	sharedRedisErr  error
)

// GetRedis returns a client for a shared Redis container.
func GetRedis(t *testing.T) *redis.Client {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedRedisOnce.Do(func() {
		sharedRedis, sharedRedisErr = setupRedis()
	})

	if sharedRedisErr != nil {
		t.Fatalf("Failed to setup redis: %v", sharedRedisErr)
	}

	return sharedRedis
}

func setupRedis() (*redis.Client, error) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        RedisImage,
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start redis container: %w", err)
	}

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to get redis endpoint: %w", err)
	}

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}
