package types

// InputConfig selects where top output is read from
type InputConfig struct {
	Path   string `yaml:"path"`   // "" or "-" reads stdin
	Follow bool   `yaml:"follow"` // keep reading as the file grows
	Poll   bool   `yaml:"poll"`   // poll instead of inotify (docker mounts, NFS)
}

// ParserConfig tunes snapshot parsing
type ParserConfig struct {
	ReportMismatches bool `yaml:"report_mismatches"`

	// PID is carried over from older configs. Nothing reads it.
	PID int `yaml:"pid"`
}

// OutputConfig controls where parsed snapshots are written
type OutputConfig struct {
	Path   string `yaml:"path"`   // "" or "-" writes stdout
	Format string `yaml:"format"` // json
}

// LogConfig controls diagnostic logging
type LogConfig struct {
	Level  string `yaml:"level"`  // trace, debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Config represents the application configuration
type Config struct {
	Input   InputConfig   `yaml:"input"`
	Parser  ParserConfig  `yaml:"parser"`
	Output  OutputConfig  `yaml:"output"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}
