package main

import (
	"topgrep/internal/config"
	"topgrep/internal/types"

	"github.com/urfave/cli/v2"
)

// Build information, set via ldflags
var Version = "dev"

// Exit code for input that ended in the middle of a snapshot
const exitTruncated = 2

func newApp() *cli.App {
	return &cli.App{
		Name:    "topgrep",
		Usage:   "Parse batch-mode top output into per-snapshot process records",
		Version: Version,
		Commands: []*cli.Command{
			runCommand(),
			checkCommand(),
		},
	}
}

// inputFlags are shared by every command that reads top output
func inputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to config file",
			EnvVars: []string{"TOPGREP_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "input",
			Aliases: []string{"i"},
			Usage:   "File holding top -b output (- for stdin)",
		},
		&cli.BoolFlag{
			Name:    "follow",
			Aliases: []string{"f"},
			Usage:   "Keep reading as the input file grows",
		},
		&cli.BoolFlag{
			Name:  "poll",
			Usage: "Poll the input file instead of using inotify",
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level: trace, debug, info, warn, error, off",
			EnvVars: []string{"TOPGREP_LOG_LEVEL"},
		},
	}
}

// loadConfig reads the config file and applies command line overrides
func loadConfig(c *cli.Context) (*types.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}

	if c.IsSet("input") {
		cfg.Input.Path = c.String("input")
	}
	if c.IsSet("follow") {
		cfg.Input.Follow = c.Bool("follow")
	}
	if c.IsSet("poll") {
		cfg.Input.Poll = c.Bool("poll")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("output") {
		cfg.Output.Path = c.String("output")
	}
	if c.IsSet("metrics-addr") {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = c.String("metrics-addr")
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
