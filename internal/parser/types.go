package parser

import (
	"errors"
	"fmt"
)

// LineSource yields input lines one at a time.
// Next returns io.EOF once the input is exhausted.
type LineSource interface {
	Next() (string, error)
}

// ProcessRecord maps a normalized column name to the raw field value
type ProcessRecord map[string]string

// Snapshot is one parsed block of top output
type Snapshot struct {
	Time      string          `json:"time"`
	Columns   []string        `json:"columns"`
	Processes []ProcessRecord `json:"processes"`
}

// Mismatch describes a row whose token count differs from the column count
type Mismatch struct {
	Time    string
	Line    int
	Columns []string
	Values  []string
}

// ErrTruncatedSnapshot is returned when input ends before a snapshot's
// process table starts.
var ErrTruncatedSnapshot = errors.New("truncated snapshot")

// Phases in which a snapshot can be cut short
const (
	PhaseMetadata = "metadata"
	PhaseHeader   = "header"
)

// TruncatedError carries where a truncated snapshot began and where input ran out
type TruncatedError struct {
	Time  string
	Phase string
	Line  int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("%v: input ended in %s phase at line %d (snapshot %q)", ErrTruncatedSnapshot, e.Phase, e.Line, e.Time)
}

func (e *TruncatedError) Unwrap() error {
	return ErrTruncatedSnapshot
}

// Stats counts what a parser has consumed and produced so far
type Stats struct {
	LinesRead  int
	Skipped    int
	Snapshots  int
	Records    int
	Mismatches int
}
