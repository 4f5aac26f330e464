package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"topgrep/internal/types"

	"gopkg.in/yaml.v3"
)

// Default returns a configuration with every default applied
func Default() *types.Config {
	var cfg types.Config
	cfg.Parser.ReportMismatches = true
	if err := Validate(&cfg); err != nil {
		// Defaults are always valid
		panic(err)
	}
	return &cfg
}

// LoadConfig reads the configuration from the given path.
// An empty path yields the defaults.
func LoadConfig(path string) (*types.Config, error) {
	if path == "" {
		return Default(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	cfg := types.Config{
		Parser: types.ParserConfig{ReportMismatches: true},
	}
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate applies defaults and hard rules
func Validate(cfg *types.Config) error {
	if cfg.Output.Format == "" {
		cfg.Output.Format = "json"
	}
	if cfg.Output.Format != "json" {
		return fmt.Errorf("unsupported output format %q", cfg.Output.Format)
	}

	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	switch cfg.Log.Level {
	case "":
		cfg.Log.Level = "info"
	case "trace", "debug", "info", "warn", "error", "off":
	default:
		return fmt.Errorf("unknown log level %q", cfg.Log.Level)
	}

	switch cfg.Log.Format {
	case "":
		cfg.Log.Format = "text"
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", cfg.Log.Format)
	}

	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}

	if cfg.Input.Poll && !cfg.Input.Follow {
		return fmt.Errorf("input.poll requires input.follow")
	}
	if cfg.Input.Follow && (cfg.Input.Path == "" || cfg.Input.Path == "-") {
		return fmt.Errorf("input.follow requires a file path")
	}
	return nil
}
