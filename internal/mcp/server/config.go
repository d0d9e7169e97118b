package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/malbeclabs/mcp-dbgateway/internal/gateway"
)

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"

	defaultReadHeaderTimeout = 5 * time.Second
	defaultShutdownTimeout   = 5 * time.Second
	defaultDBDescription     = "the database"
)

// Gateway is the query surface the tools dispatch to. *gateway.Gateway
// implements it.
type Gateway interface {
	Ping(ctx context.Context) error
	ListDatabases(ctx context.Context) ([]string, error)
	ListTables(ctx context.Context, database, like string) ([]gateway.TableResult, error)
	RunSelectQuery(ctx context.Context, query string) ([]gateway.Row, error)
}

type Config struct {
	Logger  *slog.Logger
	Clock   clockwork.Clock
	Gateway Gateway

	Version       string
	ToolPrefix    string
	DBDescription string

	Transport         string
	ListenAddr        string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	AllowedTokens     []string // Bearer tokens allowed for MCP endpoint authentication
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.Gateway == nil {
		return fmt.Errorf("gateway is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.DBDescription == "" {
		c.DBDescription = defaultDBDescription
	}
	switch c.Transport {
	case "":
		c.Transport = TransportStdio
	case TransportStdio:
	case TransportHTTP:
		if c.ListenAddr == "" {
			return fmt.Errorf("listen address is required for http transport")
		}
	default:
		return fmt.Errorf("unsupported transport %q", c.Transport)
	}
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = defaultReadHeaderTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	return nil
}
