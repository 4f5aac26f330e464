package ingest

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/nxadm/tail"
)

// LogLine represents a raw line from a line source
type LogLine struct {
	Source    string
	Timestamp int64 // wall clock arrival
	Content   string
}

// FileTailer follows a file that top is appending to
type FileTailer struct {
	path   string
	poll   bool
	logger hclog.Logger

	t        *tail.Tail
	done     chan struct{}
	stopOnce sync.Once
}

// NewFileTailer creates a new tailer for a path
func NewFileTailer(path string, poll bool, logger hclog.Logger) *FileTailer {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &FileTailer{
		path:   path,
		poll:   poll,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start begins tailing the file and returns a channel of lines.
// The channel is closed after Stop.
func (f *FileTailer) Start() (<-chan LogLine, error) {
	// Follow, reopen on rotate, wait for the file to appear
	config := tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Poll:      f.poll,
		Logger:    tail.DiscardingLogger,
	}

	f.logger.Info("starting tailer", "path", f.path, "poll", f.poll)

	t, err := tail.TailFile(f.path, config)
	if err != nil {
		return nil, fmt.Errorf("failed to tail file %s: %w", f.path, err)
	}
	f.t = t

	out := make(chan LogLine)

	go func() {
		defer close(out)
		for {
			select {
			case <-f.done:
				return
			case line, ok := <-t.Lines:
				if !ok {
					return
				}
				if line.Err != nil {
					// Rotation produces transient errors
					f.logger.Debug("tail error", "path", f.path, "error", line.Err)
					continue
				}
				select {
				case out <- LogLine{
					Source:    f.path,
					Timestamp: line.Time.Unix(),
					Content:   line.Text,
				}:
				case <-f.done:
					return
				}
			}
		}
	}()

	return out, nil
}

// Stop stops the tailing
func (f *FileTailer) Stop() error {
	var err error
	f.stopOnce.Do(func() {
		close(f.done)
		if f.t != nil {
			err = f.t.Stop()
			f.t.Cleanup()
		}
	})
	return err
}
