package model

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrIncompleteRow is returned when a row does not carry a value for every
// column of its schema.
var ErrIncompleteRow = errors.New("incomplete row")

// Schema is the ordered list of column names of an output table.
type Schema []string

// Output schemas of the supported sources.
var (
	// ContestSchema is produced by the recursive tree crawler.
	ContestSchema = Schema{"Contest", "Vote For", "Candidate", "Votes"}

	// CandidateSchema is produced by the pagination walker.
	CandidateSchema = Schema{
		"Candidate ID", "Name", "Office", "District", "Party",
		"Mailing Address", "Email", "Phone", "Municipality", "County",
	}

	// PrecinctSchema is produced by the feature-service harvester.
	PrecinctSchema = Schema{"Contest", "Precinct", "Candidate", "Party", "Votes"}
)

// Width returns the number of columns.
func (s Schema) Width() int {
	return len(s)
}

// ResultRow is one output record: an ordered tuple of field values.
// The harvesting engines only assemble rows; the meaning of each position
// is given by the Schema of the ResultSet the row belongs to.
//
// Values are either string or int. Nil is never a valid value.
type ResultRow []any

// NewContestRow creates a row of ContestSchema.
func NewContestRow(contest ContestContext, candidate string, votes int) ResultRow {
	return ResultRow{contest.Office, contest.VoteFor, candidate, votes}
}

// Validate checks that the row has one non-nil value per schema column.
func (r ResultRow) Validate(schema Schema) error {
	if len(r) != schema.Width() {
		return fmt.Errorf("%w: %d values for %d columns", ErrIncompleteRow, len(r), schema.Width())
	}
	for i, v := range r {
		if v == nil {
			return fmt.Errorf("%w: column %q is null", ErrIncompleteRow, schema[i])
		}
	}
	return nil
}

// Strings returns the row values formatted as strings.
func (r ResultRow) Strings() []string {
	out := make([]string, len(r))
	for i, v := range r {
		switch val := v.(type) {
		case string:
			out[i] = val
		case int:
			out[i] = strconv.Itoa(val)
		default:
			out[i] = fmt.Sprint(val)
		}
	}
	return out
}

// Equal reports whether two rows hold the same values in the same order.
func (r ResultRow) Equal(other ResultRow) bool {
	if len(r) != len(other) {
		return false
	}
	for i := range r {
		if r[i] != other[i] {
			return false
		}
	}
	return true
}
