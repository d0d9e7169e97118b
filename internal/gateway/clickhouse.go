package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const (
	ProtocolNative = "native"
	ProtocolHTTP   = "http"
)

type clickhouseClient struct {
	conn driver.Conn
	log  *slog.Logger
}

// ClickHouseProtocol resolves the wire protocol for a connection config. An
// explicit protocol wins; otherwise the well-known HTTP ports select HTTP.
func ClickHouseProtocol(cfg ConnectionConfig) clickhouse.Protocol {
	switch strings.ToLower(cfg.Protocol) {
	case ProtocolHTTP:
		return clickhouse.HTTP
	case ProtocolNative:
		return clickhouse.Native
	}
	switch cfg.Port {
	case 8123, 8443:
		return clickhouse.HTTP
	}
	return clickhouse.Native
}

func dialClickHouse(ctx context.Context, log *slog.Logger, cfg ConnectionConfig) (Client, error) {
	options := &clickhouse.Options{
		Addr:     []string{cfg.Addr()},
		Protocol: ClickHouseProtocol(cfg),
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	}
	if cfg.Secure {
		options.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, &ConnectionError{Backend: BackendClickHouse, Addr: cfg.Addr(), Err: err}
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, &ConnectionError{Backend: BackendClickHouse, Addr: cfg.Addr(), Err: err}
	}

	log.Debug("gateway: clickhouse client connected", "addr", cfg.Addr(), "http", options.Protocol == clickhouse.HTTP)

	return &clickhouseClient{
		conn: conn,
		log:  log,
	}, nil
}

func (c *clickhouseClient) Query(ctx context.Context, query string, opts ...QueryOption) (*Result, error) {
	o := applyQueryOptions(opts)
	if o.ReadOnly {
		ctx = clickhouse.Context(ctx, clickhouse.WithSettings(clickhouse.Settings{
			"readonly": 1,
		}))
	}

	rows, err := c.conn.Query(ctx, query)
	if err != nil {
		return nil, c.queryError(query, err)
	}
	defer rows.Close()

	columnTypes := rows.ColumnTypes()
	res := &Result{
		Columns: rows.Columns(),
		Values:  [][]any{},
	}
	for rows.Next() {
		dest := make([]any, len(columnTypes))
		for i, ct := range columnTypes {
			dest[i] = reflect.New(ct.ScanType()).Interface()
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, c.queryError(query, fmt.Errorf("failed to scan row: %w", err))
		}
		values := make([]any, len(dest))
		for i, d := range dest {
			values[i] = reflect.ValueOf(d).Elem().Interface()
		}
		res.Values = append(res.Values, values)
	}
	if err := rows.Err(); err != nil {
		return nil, c.queryError(query, err)
	}
	return res, nil
}

func (c *clickhouseClient) queryError(query string, err error) error {
	var exception *clickhouse.Exception
	if errors.As(err, &exception) {
		c.log.Debug("gateway: clickhouse exception", "code", exception.Code, "name", exception.Name)
		return &QueryError{Query: query, Code: strconv.Itoa(int(exception.Code)), Err: err}
	}
	return &QueryError{Query: query, Err: err}
}

func (c *clickhouseClient) Close() error {
	return c.conn.Close()
}
