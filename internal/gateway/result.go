package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"

	"github.com/google/uuid"
)

// Result is the driver-independent shape every Client returns: the result-set
// column names and one value slice per row, in the same column order.
type Result struct {
	Columns []string
	Values  [][]any
}

// Rows converts the result into ordered column name -> value mappings.
func (r *Result) Rows() []Row {
	if r == nil {
		return []Row{}
	}
	rows := make([]Row, 0, len(r.Values))
	for _, values := range r.Values {
		rows = append(rows, NewRow(r.Columns, values))
	}
	return rows
}

// Column returns every value of the named column, or false if the result has no such column.
func (r *Result) Column(name string) ([]any, bool) {
	if r == nil {
		return nil, false
	}
	idx := -1
	for i, col := range r.Columns {
		if col == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}
	values := make([]any, 0, len(r.Values))
	for _, row := range r.Values {
		if idx < len(row) {
			values = append(values, row[idx])
		}
	}
	return values, true
}

// Row is a mapping from column name to value that remembers result-set column
// order. A column name that repeats in the projection keeps its first position
// and its last value.
type Row struct {
	columns []string
	values  map[string]any
}

func NewRow(columns []string, values []any) Row {
	row := Row{
		columns: make([]string, 0, len(columns)),
		values:  make(map[string]any, len(columns)),
	}
	for i, col := range columns {
		var v any
		if i < len(values) {
			v = normalizeValue(values[i])
		}
		if _, ok := row.values[col]; !ok {
			row.columns = append(row.columns, col)
		}
		row.values[col] = v
	}
	return row
}

func (r Row) Columns() []string {
	return append([]string(nil), r.columns...)
}

func (r Row) Len() int {
	return len(r.columns)
}

func (r Row) Get(column string) (any, bool) {
	v, ok := r.values[column]
	return v, ok
}

// Map returns an unordered copy of the row.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.values))
	for k, v := range r.values {
		m[k] = v
	}
	return m
}

func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(r.values[col])
		if err != nil {
			return nil, fmt.Errorf("failed to encode column %q: %w", col, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

var jsonMarshalerType = reflect.TypeFor[json.Marshaler]()

// normalizeValue flattens driver scan targets into plain JSON-friendly values.
// Pointers are followed until the value is not a pointer, except where only the
// pointer type encodes itself (e.g. *big.Int for Int128/UInt256 columns).
// Non-finite floats become the strings "nan", "inf" and "-inf".
func normalizeValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(val)
	case [16]byte:
		return uuid.UUID(val).String()
	case uuid.UUID:
		return val.String()
	case float64:
		return normalizeFloat(val, v)
	case float32:
		return normalizeFloat(float64(val), v)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		elem := rv.Elem()
		if rv.Type().Implements(jsonMarshalerType) && !elem.Type().Implements(jsonMarshalerType) {
			return v
		}
		return normalizeValue(elem.Interface())
	}
	return v
}

func normalizeFloat(f float64, orig any) any {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return orig
}
