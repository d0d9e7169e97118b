package gateway

import (
	"fmt"

	"github.com/lib/pq"
)

const postgresCreateTableQuery = `SELECT 'CREATE TABLE ' || quote_ident(n.nspname) || '.' || quote_ident(c.relname) || E' (\n    ' ||
	string_agg(
		quote_ident(a.attname) || ' ' || format_type(a.atttypid, a.atttypmod) ||
		CASE WHEN d.adbin IS NOT NULL THEN ' DEFAULT ' || pg_get_expr(d.adbin, d.adrelid) ELSE '' END ||
		CASE WHEN a.attnotnull THEN ' NOT NULL' ELSE '' END,
		E',\n    ' ORDER BY a.attnum
	) || E'\n)' AS statement
FROM pg_class c
JOIN pg_namespace n ON n.oid = c.relnamespace
JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum > 0 AND NOT a.attisdropped
LEFT JOIN pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
WHERE n.nspname = %s AND c.relname = %s
GROUP BY n.nspname, c.relname`

type postgresDialect struct{}

func (postgresDialect) Backend() Backend {
	return BackendPostgres
}

func (postgresDialect) ListDatabasesQuery() string {
	return "SELECT datname FROM pg_database WHERE datistemplate = false"
}

// ListTablesQuery treats database as the schema name, matching how tables are
// addressed in information_schema.
func (postgresDialect) ListTablesQuery(database, like string) string {
	query := fmt.Sprintf(
		"SELECT table_name FROM information_schema.tables WHERE table_schema = %s AND table_type = 'BASE TABLE'",
		pq.QuoteLiteral(database),
	)
	if like != "" {
		query += " AND table_name LIKE " + pq.QuoteLiteral(like)
	}
	return query + " ORDER BY table_name"
}

func (postgresDialect) DescribeTableQuery(database, table string) string {
	return fmt.Sprintf(
		"SELECT column_name, data_type, is_nullable, column_default FROM information_schema.columns WHERE table_schema = %s AND table_name = %s ORDER BY ordinal_position",
		pq.QuoteLiteral(database), pq.QuoteLiteral(table),
	)
}

func (postgresDialect) CreateTableQuery(database, table string) string {
	return fmt.Sprintf(postgresCreateTableQuery, pq.QuoteLiteral(database), pq.QuoteLiteral(table))
}

func (postgresDialect) DatabaseNames(res *Result) ([]string, error) {
	return pgNames(res, "datname")
}

func (postgresDialect) TableNames(res *Result) ([]string, error) {
	return pgNames(res, "table_name")
}

func (postgresDialect) CreateStatement(res *Result) (string, error) {
	stmt, err := firstValue(res)
	if err != nil {
		return "", fmt.Errorf("no create statement returned: %w", err)
	}
	return stmt, nil
}

func pgNames(res *Result, column string) ([]string, error) {
	values, ok := res.Column(column)
	if !ok {
		return nil, fmt.Errorf("result has no %q column", column)
	}
	names := make([]string, 0, len(values))
	for _, v := range values {
		names = append(names, stringValue(v))
	}
	return names, nil
}
