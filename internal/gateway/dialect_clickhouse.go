package gateway

import (
	"fmt"
	"strings"
)

type clickhouseDialect struct{}

func (clickhouseDialect) Backend() Backend {
	return BackendClickHouse
}

func (clickhouseDialect) ListDatabasesQuery() string {
	return "SHOW DATABASES"
}

func (clickhouseDialect) ListTablesQuery(database, like string) string {
	query := "SHOW TABLES FROM " + chQuoteIdent(database)
	if like != "" {
		query += " LIKE " + chQuoteLiteral(like)
	}
	return query
}

func (clickhouseDialect) DescribeTableQuery(database, table string) string {
	return "DESCRIBE TABLE " + chQuoteIdent(database) + "." + chQuoteIdent(table)
}

func (clickhouseDialect) CreateTableQuery(database, table string) string {
	return "SHOW CREATE TABLE " + chQuoteIdent(database) + "." + chQuoteIdent(table)
}

func (clickhouseDialect) DatabaseNames(res *Result) ([]string, error) {
	return chNames(res)
}

func (clickhouseDialect) TableNames(res *Result) ([]string, error) {
	return chNames(res)
}

func (clickhouseDialect) CreateStatement(res *Result) (string, error) {
	stmt, err := firstValue(res)
	if err != nil {
		return "", fmt.Errorf("no create statement returned: %w", err)
	}
	return stmt, nil
}

// chNames flattens the first column of a SHOW result into names. A value may
// hold a single name or several whitespace-joined names; both yield a flat list.
// Every value is split, so a name that itself contains whitespace comes back
// as several names and each of those fails to describe.
func chNames(res *Result) ([]string, error) {
	if res == nil {
		return nil, fmt.Errorf("nil result")
	}
	names := []string{}
	if len(res.Columns) == 0 {
		return names, nil
	}
	for _, row := range res.Values {
		if len(row) == 0 {
			continue
		}
		names = append(names, strings.Fields(stringValue(row[0]))...)
	}
	return names, nil
}

func chQuoteIdent(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "`", "\\`")
	return "`" + s + "`"
}

func chQuoteLiteral(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}
