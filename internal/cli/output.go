package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/malbeclabs/mcp-dbgateway/internal/gateway"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetHeader(header)
	return table
}

func printDatabases(w io.Writer, names []string) {
	table := newTable(w, []string{"Database"})
	for _, name := range names {
		table.Append([]string{name})
	}
	table.Render()
}

func printTables(w io.Writer, tables []gateway.TableResult, showCreate bool) {
	table := newTable(w, []string{"Database", "Table", "Columns", "Error"})
	for _, t := range tables {
		if t.Err != nil {
			table.Append([]string{"", "", "", t.Err.Error()})
			continue
		}
		table.Append([]string{
			t.Table.Database,
			t.Table.Name,
			strconv.Itoa(len(t.Table.Columns)),
			"",
		})
	}
	table.Render()

	if !showCreate {
		return
	}
	for _, t := range tables {
		if t.Err != nil {
			continue
		}
		fmt.Fprintf(w, "\n-- %s.%s\n%s\n", t.Table.Database, t.Table.Name, t.Table.CreateTableQuery)
	}
}

// printTable prints the column rows of one table followed by its CREATE TABLE statement.
func printTable(w io.Writer, table *gateway.TableDescriptor) {
	fmt.Fprintf(w, "-- %s.%s\n", table.Database, table.Name)
	printRows(w, table.Columns)
	fmt.Fprintf(w, "\n%s\n", table.CreateTableQuery)
}

func printRows(w io.Writer, rows []gateway.Row) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "(0 rows)")
		return
	}
	columns := rows[0].Columns()
	table := newTable(w, columns)
	table.SetRowLine(true)
	for _, row := range rows {
		record := make([]string, 0, len(columns))
		for _, col := range columns {
			v, _ := row.Get(col)
			record = append(record, formatValue(v))
		}
		table.Append(record)
	}
	table.Render()
	fmt.Fprintf(w, "(%d rows)\n", len(rows))
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return val
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return val.String()
	}
	if data, err := json.Marshal(v); err == nil {
		return string(data)
	}
	return fmt.Sprint(v)
}
