package gatewaytesting

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcch "github.com/testcontainers/testcontainers-go/modules/clickhouse"
	tcpg "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/malbeclabs/mcp-dbgateway/internal/gateway"
)

type DBConfig struct {
	Database       string
	Username       string
	Password       string
	ContainerImage string
}

func (cfg *DBConfig) validate(backend gateway.Backend) {
	if cfg.Database == "" {
		cfg.Database = "test"
	}
	if cfg.Password == "" {
		cfg.Password = "password"
	}
	switch backend {
	case gateway.BackendClickHouse:
		if cfg.Username == "" {
			cfg.Username = "default"
		}
		if cfg.ContainerImage == "" {
			cfg.ContainerImage = "clickhouse/clickhouse-server:latest"
		}
	case gateway.BackendPostgres:
		if cfg.Username == "" {
			cfg.Username = "testuser"
		}
		if cfg.ContainerImage == "" {
			cfg.ContainerImage = "postgres:16-alpine"
		}
	}
}

// ClickHouse is a running ClickHouse container and the connection configs for
// both of its protocols.
type ClickHouse struct {
	Native gateway.ConnectionConfig
	HTTP   gateway.ConnectionConfig

	t testing.TB
}

func NewClickHouse(t testing.TB, cfg *DBConfig) *ClickHouse {
	ctx := t.Context()

	if cfg == nil {
		cfg = &DBConfig{}
	}
	cfg.validate(gateway.BackendClickHouse)

	container := startWithRetry(t, func() (*tcch.ClickHouseContainer, error) {
		return tcch.Run(ctx,
			cfg.ContainerImage,
			tcch.WithDatabase(cfg.Database),
			tcch.WithUsername(cfg.Username),
			tcch.WithPassword(cfg.Password),
		)
	})
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate ClickHouse container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	nativePort, err := container.MappedPort(ctx, nat.Port("9000/tcp"))
	require.NoError(t, err)
	httpPort, err := container.MappedPort(ctx, nat.Port("8123/tcp"))
	require.NoError(t, err)

	base := gateway.ConnectionConfig{
		Backend:  gateway.BackendClickHouse,
		Host:     host,
		Username: cfg.Username,
		Password: cfg.Password,
		Database: cfg.Database,
	}
	native := base
	native.Port = nativePort.Int()
	native.Protocol = gateway.ProtocolNative
	httpCfg := base
	httpCfg.Port = httpPort.Int()
	httpCfg.Protocol = gateway.ProtocolHTTP

	return &ClickHouse{Native: native, HTTP: httpCfg, t: t}
}

// Exec runs setup statements outside of the gateway.
func (c *ClickHouse) Exec(stmts ...string) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{c.Native.Addr()},
		Auth: clickhouse.Auth{
			Database: c.Native.Database,
			Username: c.Native.Username,
			Password: c.Native.Password,
		},
	})
	require.NoError(c.t, err)
	defer conn.Close()

	for _, stmt := range stmts {
		require.NoError(c.t, conn.Exec(c.t.Context(), stmt), "statement: %s", stmt)
	}
}

// Postgres is a running Postgres container and its connection config.
type Postgres struct {
	Config gateway.ConnectionConfig

	t testing.TB
}

func NewPostgres(t testing.TB, cfg *DBConfig) *Postgres {
	ctx := t.Context()

	if cfg == nil {
		cfg = &DBConfig{}
	}
	cfg.validate(gateway.BackendPostgres)

	container := startWithRetry(t, func() (*tcpg.PostgresContainer, error) {
		return tcpg.Run(ctx,
			cfg.ContainerImage,
			tcpg.WithDatabase(cfg.Database),
			tcpg.WithUsername(cfg.Username),
			tcpg.WithPassword(cfg.Password),
			tcpg.BasicWaitStrategies(),
		)
	})
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate Postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, nat.Port("5432/tcp"))
	require.NoError(t, err)

	return &Postgres{
		Config: gateway.ConnectionConfig{
			Backend:  gateway.BackendPostgres,
			Host:     host,
			Port:     port.Int(),
			Username: cfg.Username,
			Password: cfg.Password,
			Database: cfg.Database,
		},
		t: t,
	}
}

// Exec runs setup statements outside of the gateway.
func (p *Postgres) Exec(stmts ...string) {
	ctx := p.t.Context()
	conn, err := pgx.Connect(ctx, gateway.PostgresConnString(p.Config))
	require.NoError(p.t, err)
	defer conn.Close(context.Background())

	for _, stmt := range stmts {
		_, err := conn.Exec(ctx, stmt)
		require.NoError(p.t, err, "statement: %s", stmt)
	}
}

// startWithRetry retries container start up to 3 times for retryable errors.
func startWithRetry[C testcontainers.Container](t testing.TB, start func() (C, error)) C {
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		container, err := start()
		if err == nil {
			return container
		}
		lastErr = err
		if !isRetryableContainerStartErr(err) {
			break
		}
		time.Sleep(time.Duration(attempt) * 750 * time.Millisecond)
	}
	require.NoError(t, fmt.Errorf("failed to start container after retries: %w", lastErr))
	var zero C
	return zero
}

func isRetryableContainerStartErr(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "wait until ready") ||
		strings.Contains(s, "mapped port") ||
		strings.Contains(s, "timeout") ||
		strings.Contains(s, "context deadline exceeded") ||
		strings.Contains(s, "/containers/") && strings.Contains(s, "json")
}
