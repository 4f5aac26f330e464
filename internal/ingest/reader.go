package ingest

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// MaxLineSize bounds a single input line. top rows with long command
// lines stay far below this.
const MaxLineSize = 1 << 20

// ReaderSource reads lines from any io.Reader (stdin, files, pipes)
type ReaderSource struct {
	name    string
	scanner *bufio.Scanner
}

// NewReaderSource wraps r. name is used in error messages.
func NewReaderSource(r io.Reader, name string) *ReaderSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), MaxLineSize)
	return &ReaderSource{
		name:    name,
		scanner: scanner,
	}
}

// Name identifies the underlying reader
func (s *ReaderSource) Name() string {
	return s.name
}

// Next returns the next line without its terminator, or io.EOF
func (s *ReaderSource) Next() (string, error) {
	if s.scanner.Scan() {
		return strings.TrimSuffix(s.scanner.Text(), "\r"), nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", s.name, err)
	}
	return "", io.EOF
}
