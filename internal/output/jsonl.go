package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"topgrep/internal/parser"
)

// JSONWriter appends snapshots as JSON lines
type JSONWriter struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closer io.Closer
}

// NewJSONWriter writes to w. The caller keeps ownership of w.
func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{
		enc: json.NewEncoder(w),
	}
}

// OpenJSONWriter appends to the file at path, or stdout for "" and "-"
func OpenJSONWriter(path string) (*JSONWriter, error) {
	if path == "" || path == "-" {
		return NewJSONWriter(os.Stdout), nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output: %w", err)
	}
	jw := NewJSONWriter(f)
	jw.closer = f
	return jw, nil
}

// Write encodes one snapshot per line in a thread-safe manner
func (j *JSONWriter) Write(snap *parser.Snapshot) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.enc.Encode(snap); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}

// Close closes the file opened by OpenJSONWriter
func (j *JSONWriter) Close() error {
	if j.closer == nil {
		return nil
	}
	return j.closer.Close()
}
