package logging

import (
	"io"
	"os"

	"topgrep/internal/types"

	"github.com/hashicorp/go-hclog"
)

// New builds the root logger from config. Diagnostics go to stderr so
// stdout stays free for snapshot output.
func New(cfg types.LogConfig) hclog.Logger {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter is New with an explicit destination
func NewWithWriter(cfg types.LogConfig, w io.Writer) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:       "topgrep",
		Level:      Level(cfg.Level),
		Output:     w,
		JSONFormat: cfg.Format == "json",
	})
}

// Level maps a config level name to an hclog level. Unknown names map to info.
func Level(name string) hclog.Level {
	level := hclog.LevelFromString(name)
	if level == hclog.NoLevel {
		return hclog.Info
	}
	return level
}
