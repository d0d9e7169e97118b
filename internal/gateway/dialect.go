package gateway

import (
	"fmt"
	"strings"
)

type Backend string

const (
	BackendClickHouse Backend = "clickhouse"
	BackendPostgres   Backend = "postgres"
)

func (b Backend) String() string {
	return string(b)
}

// ParseBackend maps a configured backend kind onto a Backend.
func ParseBackend(s string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(s))) {
	case BackendClickHouse:
		return BackendClickHouse, nil
	case BackendPostgres:
		return BackendPostgres, nil
	default:
		return "", &UnsupportedBackendError{Backend: s}
	}
}

// Dialect is the backend-specific SQL text and result-shape handling for each
// gateway operation.
type Dialect interface {
	Backend() Backend

	ListDatabasesQuery() string
	ListTablesQuery(database, like string) string
	DescribeTableQuery(database, table string) string
	CreateTableQuery(database, table string) string

	DatabaseNames(res *Result) ([]string, error)
	TableNames(res *Result) ([]string, error)
	CreateStatement(res *Result) (string, error)
}

// DialectFor returns the dialect for a backend kind.
func DialectFor(backend Backend) (Dialect, error) {
	switch backend {
	case BackendClickHouse:
		return clickhouseDialect{}, nil
	case BackendPostgres:
		return postgresDialect{}, nil
	default:
		return nil, &UnsupportedBackendError{Backend: string(backend)}
	}
}

// firstValue returns the first column of the first row as a string.
func firstValue(res *Result) (string, error) {
	if res == nil || len(res.Values) == 0 || len(res.Values[0]) == 0 {
		return "", fmt.Errorf("empty result")
	}
	return stringValue(res.Values[0][0]), nil
}

func stringValue(v any) string {
	switch val := normalizeValue(v).(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}
