package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/malbeclabs/mcp-dbgateway/internal/metrics"
)

type Config struct {
	Logger  *slog.Logger
	Clock   clockwork.Clock
	Factory *Factory
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.Factory == nil {
		return fmt.Errorf("client factory is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Gateway runs the catalog and query operations against the configured
// backend. Every operation dials its own client and closes it before returning.
type Gateway struct {
	log     *slog.Logger
	clock   clockwork.Clock
	factory *Factory
	dialect Dialect
}

func New(cfg Config) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Gateway{
		log:     cfg.Logger,
		clock:   cfg.Clock,
		factory: cfg.Factory,
		dialect: cfg.Factory.Dialect(),
	}, nil
}

func (g *Gateway) Backend() Backend {
	return g.dialect.Backend()
}

// TableDescriptor is the schema and definition summary of one table.
type TableDescriptor struct {
	Database         string `json:"database"`
	Name             string `json:"name"`
	Columns          []Row  `json:"columns"`
	CreateTableQuery string `json:"create_table_query"`
}

// TableResult is one list-tables item: a descriptor, or the error that
// prevented building it.
type TableResult struct {
	Table *TableDescriptor
	Err   error
}

func (r TableResult) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{Error: r.Err.Error()})
	}
	return json.Marshal(r.Table)
}

// Ping dials the backend and closes the client again.
func (g *Gateway) Ping(ctx context.Context) error {
	client, err := g.dial(ctx)
	if err != nil {
		return err
	}
	return client.Close()
}

func (g *Gateway) ListDatabases(ctx context.Context) ([]string, error) {
	g.log.Info("gateway: listing databases")

	client, err := g.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer g.closeClient(client)

	res, err := g.query(ctx, client, g.dialect.ListDatabasesQuery())
	if err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}
	names, err := g.dialect.DatabaseNames(res)
	if err != nil {
		return nil, fmt.Errorf("failed to read database names: %w", err)
	}

	g.log.Info("gateway: found databases", "count", len(names))
	return names, nil
}

// ListTables describes every table of database whose name matches like (no
// filter when like is empty). A table that cannot be described is reported in
// place as an error item; the remaining tables are still described.
func (g *Gateway) ListTables(ctx context.Context, database, like string) ([]TableResult, error) {
	if strings.TrimSpace(database) == "" {
		return nil, fmt.Errorf("database is required")
	}
	g.log.Info("gateway: listing tables", "database", database, "like", like)

	client, err := g.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer g.closeClient(client)

	res, err := g.query(ctx, client, g.dialect.ListTablesQuery(database, like))
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	names, err := g.dialect.TableNames(res)
	if err != nil {
		return nil, fmt.Errorf("failed to read table names: %w", err)
	}

	tables := make([]TableResult, 0, len(names))
	for _, name := range names {
		table, err := g.describeTable(ctx, client, database, name)
		if err != nil {
			g.log.Error("gateway: failed to get table info", "database", database, "table", name, "error", err)
			tables = append(tables, TableResult{Err: err})
			continue
		}
		tables = append(tables, TableResult{Table: table})
	}

	g.log.Info("gateway: found tables", "database", database, "count", len(tables))
	return tables, nil
}

// DescribeTable builds the descriptor for a single table.
func (g *Gateway) DescribeTable(ctx context.Context, database, table string) (*TableDescriptor, error) {
	client, err := g.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer g.closeClient(client)
	return g.describeTable(ctx, client, database, table)
}

func (g *Gateway) describeTable(ctx context.Context, client Client, database, table string) (*TableDescriptor, error) {
	g.log.Debug("gateway: getting schema info", "database", database, "table", table)

	schema, err := g.query(ctx, client, g.dialect.DescribeTableQuery(database, table))
	if err != nil {
		return nil, fmt.Errorf("failed to describe table %s.%s: %w", database, table, err)
	}

	createRes, err := g.query(ctx, client, g.dialect.CreateTableQuery(database, table))
	if err != nil {
		return nil, fmt.Errorf("failed to get create statement for %s.%s: %w", database, table, err)
	}
	stmt, err := g.dialect.CreateStatement(createRes)
	if err != nil {
		return nil, fmt.Errorf("failed to get create statement for %s.%s: %w", database, table, err)
	}

	return &TableDescriptor{
		Database:         database,
		Name:             table,
		Columns:          schema.Rows(),
		CreateTableQuery: stmt,
	}, nil
}

// RunSelectQuery executes caller-supplied SQL with read-only enforcement and
// returns the rows in result-set column order.
func (g *Gateway) RunSelectQuery(ctx context.Context, query string) ([]Row, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	g.log.Info("gateway: executing select query", "query", query)

	client, err := g.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer g.closeClient(client)

	res, err := g.query(ctx, client, query, WithReadOnly())
	if err != nil {
		return nil, err
	}
	rows := res.Rows()

	g.log.Info("gateway: query returned rows", "count", len(rows))
	return rows, nil
}

func (g *Gateway) dial(ctx context.Context) (Client, error) {
	backend := string(g.dialect.Backend())
	client, err := g.factory.Dial(ctx)
	if err != nil {
		metrics.DatabaseConnectsTotal.WithLabelValues(backend, "error").Inc()
		g.log.Error("gateway: failed to create client", "backend", backend, "error", err)
		return nil, err
	}
	metrics.DatabaseConnectsTotal.WithLabelValues(backend, "success").Inc()
	return client, nil
}

func (g *Gateway) closeClient(client Client) {
	if err := client.Close(); err != nil {
		g.log.Warn("gateway: failed to close client", "error", err)
	}
}

func (g *Gateway) query(ctx context.Context, client Client, query string, opts ...QueryOption) (*Result, error) {
	backend := string(g.dialect.Backend())
	start := g.clock.Now()
	res, err := client.Query(ctx, query, opts...)
	metrics.DatabaseQueryDuration.WithLabelValues(backend).Observe(g.clock.Since(start).Seconds())
	if err != nil {
		metrics.DatabaseQueriesTotal.WithLabelValues(backend, "error").Inc()
		return nil, err
	}
	metrics.DatabaseQueriesTotal.WithLabelValues(backend, "success").Inc()
	if res == nil {
		res = &Result{}
	}
	return res, nil
}
