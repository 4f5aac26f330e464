package parser

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"regexp"
	"strings"

	"github.com/hashicorp/go-hclog"
)

var (
	// top - 10:00:00 up 1 day,  3:12,  2 users,  load average: ...
	reSnapshotStart = regexp.MustCompile(`^top - (.+?) up`)
	reWhitespace    = regexp.MustCompile(`\s+`)
)

// Option configures a SnapshotParser
type Option func(*SnapshotParser)

// WithLogger sets the logger used for mismatch diagnostics
func WithLogger(logger hclog.Logger) Option {
	return func(p *SnapshotParser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMismatchHandler registers a callback for rows whose token count
// differs from the column count. Parsing continues after the call.
func WithMismatchHandler(fn func(Mismatch)) Option {
	return func(p *SnapshotParser) {
		p.onMismatch = fn
	}
}

// SnapshotParser scans a LineSource for blocks of `top -b` output.
// It is not safe for concurrent use.
type SnapshotParser struct {
	src        LineSource
	logger     hclog.Logger
	onMismatch func(Mismatch)

	line  int
	err   error
	stats Stats
}

// NewSnapshotParser creates a parser reading from src
func NewSnapshotParser(src LineSource, opts ...Option) *SnapshotParser {
	p := &SnapshotParser{
		src:    src,
		logger: hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse returns a lazy sequence of the snapshots found in src
func Parse(src LineSource, opts ...Option) iter.Seq2[*Snapshot, error] {
	return NewSnapshotParser(src, opts...).All()
}

// Stats returns the counters accumulated so far
func (p *SnapshotParser) Stats() Stats {
	return p.stats
}

// All yields snapshots until the input ends. A clean end terminates the
// sequence silently; any other failure is yielded once as the final pair.
func (p *SnapshotParser) All() iter.Seq2[*Snapshot, error] {
	return func(yield func(*Snapshot, error) bool) {
		for {
			snap, err := p.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(snap, nil) {
				return
			}
		}
	}
}

// Next reads up to and including the next complete snapshot.
// It returns io.EOF when input ends between snapshots and a *TruncatedError
// when input ends before the process table of a started snapshot.
// Once an error is returned, every later call returns it again.
func (p *SnapshotParser) Next() (*Snapshot, error) {
	if p.err != nil {
		return nil, p.err
	}
	snap, err := p.next()
	if err != nil {
		p.err = err
		return nil, err
	}
	p.stats.Snapshots++
	return snap, nil
}

func (p *SnapshotParser) next() (*Snapshot, error) {
	// Scan for the summary line
	var timeStr string
	for {
		line, err := p.read()
		if err != nil {
			return nil, err
		}
		if m := reSnapshotStart.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			timeStr = m[1]
			break
		}
		p.stats.Skipped++
	}

	// Skip metadata up to the blank separator
	for {
		line, err := p.read()
		if errors.Is(err, io.EOF) {
			return nil, &TruncatedError{Time: timeStr, Phase: PhaseMetadata, Line: p.line}
		}
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(line) == "" {
			break
		}
	}

	header, err := p.read()
	if errors.Is(err, io.EOF) {
		return nil, &TruncatedError{Time: timeStr, Phase: PhaseHeader, Line: p.line}
	}
	if err != nil {
		return nil, err
	}
	columns := ParseHeader(header)

	snap := &Snapshot{
		Time:      timeStr,
		Columns:   columns,
		Processes: []ProcessRecord{},
	}

	for {
		line, err := p.read()
		if errors.Is(err, io.EOF) {
			// A table cut off by end of input still counts as complete
			break
		}
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(line) == "" {
			break
		}
		snap.Processes = append(snap.Processes, p.parseRow(timeStr, columns, line))
	}

	return snap, nil
}

func (p *SnapshotParser) read() (string, error) {
	line, err := p.src.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		return "", fmt.Errorf("failed to read line %d: %w", p.line+1, err)
	}
	p.line++
	p.stats.LinesRead++
	return line, nil
}

func (p *SnapshotParser) parseRow(timeStr string, columns []string, line string) ProcessRecord {
	var values []string
	if len(columns) == 0 {
		values = strings.Fields(line)
	} else {
		values = SplitRow(line, len(columns))
	}

	n := min(len(columns), len(values))
	record := make(ProcessRecord, n)
	for i := 0; i < n; i++ {
		record[columns[i]] = values[i]
	}
	p.stats.Records++

	if len(values) != len(columns) {
		p.stats.Mismatches++
		m := Mismatch{
			Time:    timeStr,
			Line:    p.line,
			Columns: columns,
			Values:  values,
		}
		p.logger.Warn("row does not match header", "line", m.Line, "time", m.Time,
			"columns", m.Columns, "values", m.Values)
		if p.onMismatch != nil {
			p.onMismatch(m)
		}
	}

	return record
}

// ParseHeader splits a column header line into normalized column names.
// top indents its header, so the leading empty field is dropped.
func ParseHeader(line string) []string {
	fields := reWhitespace.Split(strings.TrimRight(line, " \t\r\n"), -1)
	if len(fields) > 0 && fields[0] == "" {
		fields = fields[1:]
	}
	columns := make([]string, 0, len(fields))
	for _, f := range fields {
		columns = append(columns, NormalizeColumn(f))
	}
	return columns
}

// SplitRow splits a trimmed row into at most n whitespace separated fields.
// The last field keeps any whitespace it contains.
func SplitRow(line string, n int) []string {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	values := reWhitespace.Split(line, n)
	for i, v := range values {
		values[i] = strings.TrimSpace(v)
	}
	return values
}

// NormalizeColumn lowercases name and drops everything but ASCII letters and digits
func NormalizeColumn(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'A' && c <= 'Z':
			b.WriteByte(c + ('a' - 'A'))
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteByte(c)
		}
	}
	return b.String()
}
