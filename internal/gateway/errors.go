package gateway

import (
	"fmt"
)

// UnsupportedBackendError is returned when the configured backend kind has no dialect.
type UnsupportedBackendError struct {
	Backend string
}

func (e *UnsupportedBackendError) Error() string {
	return fmt.Sprintf("unsupported backend type: %q", e.Backend)
}

// ConnectionError is returned when a client handle cannot be established.
type ConnectionError struct {
	Backend Backend
	Addr    string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s at %s: %v", e.Backend, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// QueryError is returned for any failure while executing a statement or decoding its rows.
type QueryError struct {
	Query string
	// Code is the backend error code (ClickHouse exception code or Postgres SQLSTATE), if any.
	Code string
	Err  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed: %v", e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}
