package model

import (
	"fmt"
	"sync"
)

// ResultSet is the append-only accumulation of rows produced by a harvest.
// Insertion order is preserved. It is safe for concurrent use.
type ResultSet struct {
	schema Schema

	mu   sync.Mutex
	rows []ResultRow
}

// NewResultSet creates an empty ResultSet for the given schema.
func NewResultSet(schema Schema) *ResultSet {
	return &ResultSet{
		schema: schema,
		rows:   make([]ResultRow, 0),
	}
}

// Schema returns the column names of the set.
func (rs *ResultSet) Schema() Schema {
	return rs.schema
}

// Append adds a row after validating it against the schema.
func (rs *ResultSet) Append(row ResultRow) error {
	if err := row.Validate(rs.schema); err != nil {
		return err
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.rows = append(rs.rows, row)
	return nil
}

// AppendAll adds rows in order. Either all rows are appended or none.
func (rs *ResultSet) AppendAll(rows []ResultRow) error {
	for i, row := range rows {
		if err := row.Validate(rs.schema); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.rows = append(rs.rows, rows...)
	return nil
}

// Rows returns a copy of the accumulated rows.
func (rs *ResultSet) Rows() []ResultRow {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	out := make([]ResultRow, len(rs.rows))
	copy(out, rs.rows)
	return out
}

// Len returns the number of rows.
func (rs *ResultSet) Len() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.rows)
}
