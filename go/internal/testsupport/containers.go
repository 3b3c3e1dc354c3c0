// Package testsupport starts throwaway Postgres, NATS and Valkey servers
// for integration tests. Tests using it are skipped with -short.
package testsupport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcnats "github.com/testcontainers/testcontainers-go/modules/nats"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Postgres starts a Postgres container and returns its DSN. The container
// is terminated when the test ends.
func Postgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Postgres integration test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("improvscore"),
		postgres.WithUsername("board"),
		postgres.WithPassword("board"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(45*time.Second),
		),
	)
	if container != nil {
		t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })
	}
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("postgres connection string: %v", err)
	}
	return dsn
}

// NATS starts a JetStream-enabled NATS container and returns its URL.
func NATS(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping NATS integration test in short mode")
	}
	ctx := context.Background()

	container, err := tcnats.Run(ctx,
		"nats:2.10-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForAll(
				wait.ForLog("Server is ready"),
				wait.ForListeningPort("4222/tcp"),
			).WithDeadline(45*time.Second),
		),
	)
	if container != nil {
		t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })
	}
	if err != nil {
		t.Fatalf("start nats container: %v", err)
	}

	url, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("nats connection string: %v", err)
	}
	return url
}

// Valkey starts a Valkey container and returns its host:port address.
func Valkey(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Valkey integration test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "valkey/valkey:8-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if container != nil {
		t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })
	}
	if err != nil {
		t.Fatalf("start valkey container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("valkey host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("valkey port: %v", err)
	}
	return net.JoinHostPort(host, port.Port())
}
