package main

import (
	"fmt"

	"topgrep/internal/ingest"
	"topgrep/internal/logging"
	"topgrep/internal/parser"

	"github.com/urfave/cli/v2"
)

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:   "check",
		Usage:  "Parse top output to the end and report what was found",
		Flags:  inputFlags(),
		Action: checkAction,
	}
}

func checkAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Input.Follow {
		return fmt.Errorf("check reads to end of input and cannot follow")
	}

	logger := logging.New(cfg.Log)

	src, err := ingest.Open(cfg.Input, logger.Named("ingest"))
	if err != nil {
		return err
	}
	defer src.Close()

	p := newParser(src, cfg, logger)
	err = consume(p, func(*parser.Snapshot) error { return nil })

	st := p.Stats()
	w := c.App.Writer
	fmt.Fprintf(w, "input:      %s\n", src.Name())
	fmt.Fprintf(w, "lines:      %d\n", st.LinesRead)
	fmt.Fprintf(w, "skipped:    %d\n", st.Skipped)
	fmt.Fprintf(w, "snapshots:  %d\n", st.Snapshots)
	fmt.Fprintf(w, "records:    %d\n", st.Records)
	fmt.Fprintf(w, "mismatches: %d\n", st.Mismatches)

	return finish(p, err, logger)
}
