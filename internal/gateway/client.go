package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
)

// Client is a live session against one backend. A Client belongs to the call
// that dialed it and must be closed by that call.
type Client interface {
	Query(ctx context.Context, query string, opts ...QueryOption) (*Result, error)
	Close() error
}

type QueryOptions struct {
	// ReadOnly makes the backend reject any statement that would write.
	ReadOnly bool
}

type QueryOption func(*QueryOptions)

func WithReadOnly() QueryOption {
	return func(o *QueryOptions) {
		o.ReadOnly = true
	}
}

func applyQueryOptions(opts []QueryOption) QueryOptions {
	var o QueryOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ConnectionConfig holds the static connection parameters for the backend.
type ConnectionConfig struct {
	Backend  Backend
	Host     string
	Port     int
	Username string
	Password string
	Database string

	// Protocol selects the ClickHouse wire protocol ("native" or "http").
	Protocol string
	// Secure enables TLS.
	Secure bool
}

func (c ConnectionConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DialFunc opens a Client for a connection config.
type DialFunc func(ctx context.Context, log *slog.Logger, cfg ConnectionConfig) (Client, error)

// Factory produces one Client per call for the configured backend. The dialect
// is fixed when the factory is built.
type Factory struct {
	log     *slog.Logger
	cfg     ConnectionConfig
	dialect Dialect
	dial    DialFunc
}

type FactoryOption func(*Factory)

// WithDialFunc replaces the driver-backed dialer.
func WithDialFunc(fn DialFunc) FactoryOption {
	return func(f *Factory) {
		f.dial = fn
	}
}

func WithLogger(log *slog.Logger) FactoryOption {
	return func(f *Factory) {
		f.log = log
	}
}

func NewFactory(cfg ConnectionConfig, opts ...FactoryOption) (*Factory, error) {
	backend, err := ParseBackend(string(cfg.Backend))
	if err != nil {
		return nil, err
	}
	cfg.Backend = backend

	dialect, err := DialectFor(backend)
	if err != nil {
		return nil, err
	}

	f := &Factory{
		log:     slog.Default(),
		cfg:     cfg,
		dialect: dialect,
	}
	switch backend {
	case BackendClickHouse:
		f.dial = dialClickHouse
	case BackendPostgres:
		f.dial = dialPostgres
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *Factory) Dialect() Dialect {
	return f.dialect
}

func (f *Factory) Backend() Backend {
	return f.cfg.Backend
}

// Dial opens a new Client. Failures are reported as *ConnectionError.
func (f *Factory) Dial(ctx context.Context) (Client, error) {
	f.log.Debug("gateway: creating client",
		"backend", f.cfg.Backend,
		"addr", f.cfg.Addr(),
		"username", f.cfg.Username,
	)
	client, err := f.dial(ctx, f.log, f.cfg)
	if err != nil {
		var connErr *ConnectionError
		if errors.As(err, &connErr) {
			return nil, err
		}
		return nil, &ConnectionError{Backend: f.cfg.Backend, Addr: f.cfg.Addr(), Err: err}
	}
	if client == nil {
		return nil, &ConnectionError{Backend: f.cfg.Backend, Addr: f.cfg.Addr(), Err: fmt.Errorf("dialer returned no client")}
	}
	return client, nil
}
