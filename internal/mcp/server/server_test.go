package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/mcp-dbgateway/internal/gateway"
)

type fakeGateway struct {
	pingErr error

	databases    []string
	databasesErr error

	tables    []gateway.TableResult
	tablesErr error

	rows    []gateway.Row
	rowsErr error

	lastDatabase string
	lastLike     string
	lastQuery    string
}

func (g *fakeGateway) Ping(ctx context.Context) error {
	return g.pingErr
}

func (g *fakeGateway) ListDatabases(ctx context.Context) ([]string, error) {
	return g.databases, g.databasesErr
}

func (g *fakeGateway) ListTables(ctx context.Context, database, like string) ([]gateway.TableResult, error) {
	g.lastDatabase = database
	g.lastLike = like
	return g.tables, g.tablesErr
}

func (g *fakeGateway) RunSelectQuery(ctx context.Context, query string) ([]gateway.Row, error) {
	g.lastQuery = query
	return g.rows, g.rowsErr
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func testServer(t *testing.T, gw Gateway, mutate ...func(*Config)) *Server {
	t.Helper()
	cfg := Config{
		Logger:     testLogger(t),
		Clock:      clockwork.NewFakeClock(),
		Gateway:    gw,
		Version:    "test",
		Transport:  TransportHTTP,
		ListenAddr: "127.0.0.1:0",
	}
	for _, m := range mutate {
		m(&cfg)
	}
	s, err := New(cfg)
	require.NoError(t, err)
	return s
}

func TestMCP_Server_Config_Validate(t *testing.T) {
	t.Parallel()

	t.Run("requires logger and gateway", func(t *testing.T) {
		t.Parallel()

		cfg := Config{Gateway: &fakeGateway{}}
		require.ErrorContains(t, cfg.Validate(), "logger is required")

		cfg = Config{Logger: testLogger(t)}
		require.ErrorContains(t, cfg.Validate(), "gateway is required")
	})

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		cfg := Config{Logger: testLogger(t), Gateway: &fakeGateway{}}
		require.NoError(t, cfg.Validate())
		require.Equal(t, TransportStdio, cfg.Transport)
		require.Equal(t, defaultDBDescription, cfg.DBDescription)
		require.Equal(t, defaultReadHeaderTimeout, cfg.ReadHeaderTimeout)
		require.Equal(t, defaultShutdownTimeout, cfg.ShutdownTimeout)
		require.NotNil(t, cfg.Clock)
	})

	t.Run("http transport requires listen address", func(t *testing.T) {
		t.Parallel()

		cfg := Config{Logger: testLogger(t), Gateway: &fakeGateway{}, Transport: TransportHTTP}
		require.ErrorContains(t, cfg.Validate(), "listen address is required")
	})

	t.Run("unsupported transport", func(t *testing.T) {
		t.Parallel()

		cfg := Config{Logger: testLogger(t), Gateway: &fakeGateway{}, Transport: "grpc"}
		require.ErrorContains(t, cfg.Validate(), `unsupported transport "grpc"`)
	})
}

func TestMCP_Server_Healthz(t *testing.T) {
	t.Parallel()

	s := testServer(t, &fakeGateway{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok\n", rr.Body.String())
}

func TestMCP_Server_ReadyzHandler(t *testing.T) {
	t.Parallel()

	t.Run("database reachable", func(t *testing.T) {
		t.Parallel()

		s := testServer(t, &fakeGateway{})
		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		rr := httptest.NewRecorder()
		s.readyzHandler(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		require.Equal(t, "ok\n", rr.Body.String())
	})

	t.Run("database unreachable", func(t *testing.T) {
		t.Parallel()

		s := testServer(t, &fakeGateway{pingErr: errors.New("connection refused")})
		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		rr := httptest.NewRecorder()
		s.readyzHandler(rr, req)

		require.Equal(t, http.StatusServiceUnavailable, rr.Code)
		require.Equal(t, "database not ready\n", rr.Body.String())
	})
}

func TestMCP_Server_AuthMiddleware(t *testing.T) {
	t.Parallel()

	s := testServer(t, &fakeGateway{}, func(cfg *Config) {
		cfg.AllowedTokens = []string{"token-a", "token-b"}
	})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := s.authMiddleware(next)

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantBody string
	}{
		{name: "missing header", header: "", wantCode: http.StatusUnauthorized, wantBody: "unauthorized: missing authorization header\n"},
		{name: "invalid format", header: "Basic abc", wantCode: http.StatusUnauthorized, wantBody: "unauthorized: invalid authorization header format\n"},
		{name: "empty token", header: "Bearer   ", wantCode: http.StatusUnauthorized, wantBody: "unauthorized: empty token\n"},
		{name: "invalid token", header: "Bearer nope", wantCode: http.StatusUnauthorized, wantBody: "unauthorized: invalid token\n"},
		{name: "valid token", header: "Bearer token-b", wantCode: http.StatusTeapot},
		{name: "case insensitive scheme", header: "bearer token-a", wantCode: http.StatusTeapot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			require.Equal(t, tt.wantCode, rr.Code)
			if tt.wantBody != "" {
				require.Equal(t, tt.wantBody, rr.Body.String())
				require.Equal(t, "Bearer", rr.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

type tokenTransport struct {
	base  http.RoundTripper
	token string
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(req)
}

func TestMCP_Server_StreamableHTTP(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{databases: []string{"default", "shop"}}
	s := testServer(t, gw, func(cfg *Config) {
		cfg.AllowedTokens = []string{"secret"}
	})
	srv := httptest.NewServer(s.http.Handler)
	t.Cleanup(srv.Close)

	t.Run("rejects unauthenticated requests", func(t *testing.T) {
		t.Parallel()

		resp, err := http.Post(srv.URL, "application/json", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("calls tools with a valid token", func(t *testing.T) {
		t.Parallel()

		client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
		session, err := client.Connect(t.Context(), &mcp.StreamableClientTransport{
			Endpoint:   srv.URL,
			HTTPClient: &http.Client{Transport: &tokenTransport{base: http.DefaultTransport, token: "secret"}},
		}, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = session.Close() })

		res, err := session.CallTool(t.Context(), &mcp.CallToolParams{
			Name:      ToolListDatabases,
			Arguments: map[string]any{},
		})
		require.NoError(t, err)
		require.False(t, res.IsError)
		require.JSONEq(t, `["default","shop"]`, resultText(t, res))
	})
}
