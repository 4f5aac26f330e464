package ingest

import (
	"fmt"
	"io"
	"os"

	"topgrep/internal/types"

	"github.com/hashicorp/go-hclog"
)

// Source is a line source owned by the caller
type Source interface {
	Next() (string, error)
	Name() string
	Close() error
}

// ChanSource pulls lines from a LogLine channel. A closed channel is io.EOF.
type ChanSource struct {
	lines <-chan LogLine
}

func NewChanSource(lines <-chan LogLine) *ChanSource {
	return &ChanSource{lines: lines}
}

func (c *ChanSource) Next() (string, error) {
	line, ok := <-c.lines
	if !ok {
		return "", io.EOF
	}
	return line.Content, nil
}

type readerSource struct {
	*ReaderSource
	closer io.Closer
}

func (r *readerSource) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

type tailSource struct {
	*ChanSource
	tailer *FileTailer
}

func (t *tailSource) Name() string { return t.tailer.path }

func (t *tailSource) Close() error {
	return t.tailer.Stop()
}

// Open selects stdin, a plain file or a follow-mode tailer for cfg
func Open(cfg types.InputConfig, logger hclog.Logger) (Source, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	if cfg.Path == "" || cfg.Path == "-" {
		if cfg.Follow {
			return nil, fmt.Errorf("cannot follow stdin")
		}
		logger.Debug("reading stdin")
		return &readerSource{
			ReaderSource: NewReaderSource(os.Stdin, "stdin"),
		}, nil
	}

	if cfg.Follow {
		tailer := NewFileTailer(cfg.Path, cfg.Poll, logger)
		lines, err := tailer.Start()
		if err != nil {
			return nil, err
		}
		return &tailSource{
			ChanSource: NewChanSource(lines),
			tailer:     tailer,
		}, nil
	}

	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	logger.Debug("reading file", "path", cfg.Path)
	return &readerSource{
		ReaderSource: NewReaderSource(f, cfg.Path),
		closer:       f,
	}, nil
}
