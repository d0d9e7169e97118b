package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type postgresClient struct {
	conn *pgx.Conn
	log  *slog.Logger
}

// pgQueryer is satisfied by both *pgx.Conn and pgx.Tx.
type pgQueryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresConnString builds a connection URI for a connection config.
func PostgresConnString(cfg ConnectionConfig) string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.Username, cfg.Password),
		Host:   cfg.Addr(),
		Path:   "/" + cfg.Database,
	}
	q := url.Values{}
	if cfg.Secure {
		q.Set("sslmode", "require")
	} else {
		q.Set("sslmode", "prefer")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func dialPostgres(ctx context.Context, log *slog.Logger, cfg ConnectionConfig) (Client, error) {
	connConfig, err := pgx.ParseConfig(PostgresConnString(cfg))
	if err != nil {
		return nil, &ConnectionError{Backend: BackendPostgres, Addr: cfg.Addr(), Err: fmt.Errorf("failed to parse postgres config: %w", err)}
	}

	conn, err := pgx.ConnectConfig(ctx, connConfig)
	if err != nil {
		return nil, &ConnectionError{Backend: BackendPostgres, Addr: cfg.Addr(), Err: err}
	}

	log.Debug("gateway: postgres client connected", "addr", cfg.Addr(), "database", cfg.Database)

	return &postgresClient{
		conn: conn,
		log:  log,
	}, nil
}

func (c *postgresClient) Query(ctx context.Context, query string, opts ...QueryOption) (*Result, error) {
	o := applyQueryOptions(opts)
	if !o.ReadOnly {
		return c.collect(ctx, c.conn, query)
	}

	tx, err := c.conn.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, c.queryError(query, fmt.Errorf("failed to begin read-only transaction: %w", err))
	}
	// Nothing in a read-only transaction needs to be kept.
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			c.log.Debug("gateway: failed to roll back read-only transaction", "error", err)
		}
	}()
	return c.collect(ctx, tx, query)
}

func (c *postgresClient) collect(ctx context.Context, q pgQueryer, query string) (*Result, error) {
	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, c.queryError(query, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	res := &Result{
		Columns: make([]string, len(fields)),
		Values:  [][]any{},
	}
	for i, fd := range fields {
		res.Columns[i] = fd.Name
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, c.queryError(query, fmt.Errorf("failed to decode row: %w", err))
		}
		res.Values = append(res.Values, values)
	}
	if err := rows.Err(); err != nil {
		return nil, c.queryError(query, err)
	}
	return res, nil
}

func (c *postgresClient) queryError(query string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &QueryError{Query: query, Code: pgErr.Code, Err: err}
	}
	return &QueryError{Query: query, Err: err}
}

func (c *postgresClient) Close() error {
	return c.conn.Close(context.Background())
}
