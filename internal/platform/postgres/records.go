package postgres

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ColumnValue is a typed column encoder. Each constructor captures the
// encoding rule for one column type and produces a driver-ready argument,
// so inserts are fully parameterized and no value ever reaches the SQL
// text itself.
type ColumnValue struct {
	encode func() (any, error)
}

// Bool encodes a boolean column.
func Bool(v bool) ColumnValue {
	return ColumnValue{encode: func() (any, error) { return v, nil }}
}

// Int encodes an integer column.
func Int(v int) ColumnValue {
	return ColumnValue{encode: func() (any, error) { return int64(v), nil }}
}

// String encodes a text column.
func String(v string) ColumnValue {
	return ColumnValue{encode: func() (any, error) { return v, nil }}
}

// ID encodes a UUID column.
func ID(v uuid.UUID) ColumnValue {
	return ColumnValue{encode: func() (any, error) { return v, nil }}
}

// Timestamp encodes a timestamp column, normalized to UTC. A zero time
// encodes as NULL.
func Timestamp(v time.Time) ColumnValue {
	return ColumnValue{encode: func() (any, error) {
		if v.IsZero() {
			return nil, nil
		}
		return v.UTC(), nil
	}}
}

// NullableTimestamp encodes an optional timestamp column.
func NullableTimestamp(v *time.Time) ColumnValue {
	return ColumnValue{encode: func() (any, error) {
		if v == nil {
			return nil, nil
		}
		return v.UTC(), nil
	}}
}

// JSON encodes a structured column as JSONB. A nil value encodes as NULL.
func JSON(v any) ColumnValue {
	return ColumnValue{encode: func() (any, error) {
		if v == nil {
			return nil, nil
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode JSON column: %w", err)
		}
		return data, nil
	}}
}

// Record is an ordered mapping of column names to typed values, built up
// by the stores and rendered into one parameterized insert statement.
type Record struct {
	columns []string
	values  []ColumnValue
}

// NewRecord creates an empty record.
func NewRecord() *Record {
	return &Record{}
}

// Set appends a column. Column names come from the closed set of schema
// columns owned by the stores, never from caller input.
func (r *Record) Set(column string, value ColumnValue) *Record {
	r.columns = append(r.columns, column)
	r.values = append(r.values, value)
	return r
}

// Insert renders the record into an INSERT statement for the given table
// plus its ordered argument list.
func (r *Record) Insert(table string) (string, []any, error) {
	if len(r.columns) == 0 {
		return "", nil, fmt.Errorf("cannot build insert for %s: no columns set", table)
	}

	args := make([]any, 0, len(r.values))
	placeholders := make([]string, 0, len(r.values))
	for i, v := range r.values {
		arg, err := v.encode()
		if err != nil {
			return "", nil, fmt.Errorf("column %s: %w", r.columns[i], err)
		}
		args = append(args, arg)
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(r.columns, ", "),
		strings.Join(placeholders, ", "),
	)

	return query, args, nil
}
