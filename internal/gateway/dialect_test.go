package gateway

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGateway_ParseBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Backend
		wantErr bool
	}{
		{in: "clickhouse", want: BackendClickHouse},
		{in: "ClickHouse", want: BackendClickHouse},
		{in: " postgres ", want: BackendPostgres},
		{in: "mysql", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseBackend(tt.in)
			if tt.wantErr {
				var unsupported *UnsupportedBackendError
				require.ErrorAs(t, err, &unsupported)
				require.Equal(t, tt.in, unsupported.Backend)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestGateway_ClickHouseDialect_Queries(t *testing.T) {
	t.Parallel()

	d, err := DialectFor(BackendClickHouse)
	require.NoError(t, err)
	require.Equal(t, BackendClickHouse, d.Backend())

	require.Equal(t, "SHOW DATABASES", d.ListDatabasesQuery())
	require.Equal(t, "SHOW TABLES FROM `shop`", d.ListTablesQuery("shop", ""))
	require.Equal(t, "SHOW TABLES FROM `shop` LIKE 'ord%'", d.ListTablesQuery("shop", "ord%"))
	require.Equal(t, "DESCRIBE TABLE `shop`.`orders`", d.DescribeTableQuery("shop", "orders"))
	require.Equal(t, "SHOW CREATE TABLE `shop`.`orders`", d.CreateTableQuery("shop", "orders"))
}

func TestGateway_ClickHouseDialect_Escaping(t *testing.T) {
	t.Parallel()

	d := clickhouseDialect{}
	require.Equal(t, "SHOW TABLES FROM `sh\\`op` LIKE 'o\\'; DROP TABLE x; --'", d.ListTablesQuery("sh`op", "o'; DROP TABLE x; --"))
	require.Equal(t, "DESCRIBE TABLE `a\\\\b`.`c`", d.DescribeTableQuery(`a\b`, "c"))
}

func TestGateway_ClickHouseDialect_Names(t *testing.T) {
	t.Parallel()

	d := clickhouseDialect{}

	t.Run("sequence of names", func(t *testing.T) {
		t.Parallel()
		names, err := d.TableNames(&Result{Columns: []string{"name"}, Values: [][]any{{"orders"}, {"order_items"}}})
		require.NoError(t, err)
		require.Equal(t, []string{"orders", "order_items"}, names)
	})

	t.Run("single joined string", func(t *testing.T) {
		t.Parallel()
		names, err := d.DatabaseNames(&Result{Columns: []string{"name"}, Values: [][]any{{" default\nshop  system "}}})
		require.NoError(t, err)
		require.Equal(t, []string{"default", "shop", "system"}, names)
	})

	t.Run("names containing whitespace are split", func(t *testing.T) {
		t.Parallel()
		names, err := d.TableNames(&Result{Columns: []string{"name"}, Values: [][]any{{"my table"}, {"orders"}}})
		require.NoError(t, err)
		require.Equal(t, []string{"my", "table", "orders"}, names)
	})

	t.Run("nullable pointer values", func(t *testing.T) {
		t.Parallel()
		name := "orders"
		names, err := d.TableNames(&Result{Columns: []string{"name"}, Values: [][]any{{&name}}})
		require.NoError(t, err)
		require.Equal(t, []string{"orders"}, names)
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		names, err := d.TableNames(&Result{})
		require.NoError(t, err)
		require.Empty(t, names)
	})

	t.Run("create statement", func(t *testing.T) {
		t.Parallel()
		stmt, err := d.CreateStatement(&Result{Columns: []string{"statement"}, Values: [][]any{{"CREATE TABLE a.b (x UInt8)"}}})
		require.NoError(t, err)
		require.Equal(t, "CREATE TABLE a.b (x UInt8)", stmt)

		_, err = d.CreateStatement(&Result{Columns: []string{"statement"}})
		require.ErrorContains(t, err, "no create statement returned")
	})
}

func TestGateway_PostgresDialect_Queries(t *testing.T) {
	t.Parallel()

	d, err := DialectFor(BackendPostgres)
	require.NoError(t, err)
	require.Equal(t, BackendPostgres, d.Backend())

	require.Equal(t, "SELECT datname FROM pg_database WHERE datistemplate = false", d.ListDatabasesQuery())
	require.Equal(t,
		"SELECT table_name FROM information_schema.tables WHERE table_schema = 'shop' AND table_type = 'BASE TABLE' ORDER BY table_name",
		d.ListTablesQuery("shop", ""),
	)
	require.Equal(t,
		"SELECT table_name FROM information_schema.tables WHERE table_schema = 'shop' AND table_type = 'BASE TABLE' AND table_name LIKE 'ord%' ORDER BY table_name",
		d.ListTablesQuery("shop", "ord%"),
	)
	require.Equal(t,
		"SELECT column_name, data_type, is_nullable, column_default FROM information_schema.columns WHERE table_schema = 'shop' AND table_name = 'orders' ORDER BY ordinal_position",
		d.DescribeTableQuery("shop", "orders"),
	)

	create := d.CreateTableQuery("shop", "orders")
	require.True(t, strings.HasPrefix(create, "SELECT 'CREATE TABLE '"))
	require.Contains(t, create, "WHERE n.nspname = 'shop' AND c.relname = 'orders'")
}

func TestGateway_PostgresDialect_Escaping(t *testing.T) {
	t.Parallel()

	d := postgresDialect{}
	q := d.ListTablesQuery("shop", "o'; DROP TABLE users; --")
	require.Contains(t, q, "table_name LIKE 'o''; DROP TABLE users; --'")

	q = d.DescribeTableQuery(`sh\op`, "t")
	require.Contains(t, q, `table_schema =  E'sh\\op'`)
}

func TestGateway_PostgresDialect_Names(t *testing.T) {
	t.Parallel()

	d := postgresDialect{}

	names, err := d.DatabaseNames(&Result{Columns: []string{"datname"}, Values: [][]any{{"postgres"}, {"shop"}}})
	require.NoError(t, err)
	require.Equal(t, []string{"postgres", "shop"}, names)

	names, err = d.TableNames(&Result{Columns: []string{"table_name"}, Values: [][]any{}})
	require.NoError(t, err)
	require.Empty(t, names)

	_, err = d.TableNames(&Result{Columns: []string{"name"}})
	require.ErrorContains(t, err, `result has no "table_name" column`)
}

func TestGateway_DialectFor_Unsupported(t *testing.T) {
	t.Parallel()

	_, err := DialectFor(Backend("mysql"))
	var unsupported *UnsupportedBackendError
	require.ErrorAs(t, err, &unsupported)
	require.Equal(t, "mysql", unsupported.Backend)
}
