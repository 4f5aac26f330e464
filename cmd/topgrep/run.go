package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"topgrep/internal/ingest"
	"topgrep/internal/logging"
	"topgrep/internal/metrics"
	"topgrep/internal/output"
	"topgrep/internal/parser"
	"topgrep/internal/types"

	"github.com/hashicorp/go-hclog"
	"github.com/urfave/cli/v2"
)

// How long shutdown waits for the parser to notice a closed source
const shutdownGrace = 2 * time.Second

func runCommand() *cli.Command {
	flags := append(inputFlags(),
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Append JSON lines to this file (- for stdout)",
		},
		&cli.StringFlag{
			Name:  "metrics-addr",
			Usage: "Serve Prometheus metrics on this address",
		},
	)

	return &cli.Command{
		Name:   "run",
		Usage:  "Parse top output and write one JSON object per snapshot",
		Flags:  flags,
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.New(cfg.Log)

	if cfg.Metrics.Enabled {
		go func() {
			log := logger.Named("metrics")
			log.Info("starting metrics server", "addr", cfg.Metrics.Addr)
			if err := metrics.StartServer(cfg.Metrics.Addr); err != nil {
				log.Error("metrics server failed", "error", err)
			}
		}()
	}

	src, err := ingest.Open(cfg.Input, logger.Named("ingest"))
	if err != nil {
		return err
	}
	defer src.Close()

	writer, err := output.OpenJSONWriter(cfg.Output.Path)
	if err != nil {
		return err
	}
	defer writer.Close()

	logger.Info("parsing", "input", src.Name())
	p := newParser(src, cfg, logger)

	done := make(chan error, 1)
	go func() {
		done <- consume(p, writer.Write)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	for {
		select {
		case err := <-done:
			return finish(p, err, logger)

		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				reload(c, logger)
				continue
			}

			logger.Info("shutting down", "signal", sig.String())
			src.Close()
			select {
			case <-done:
			case <-time.After(shutdownGrace):
				logger.Warn("parser still blocked on input, exiting anyway")
			}
			logStats(logger, p.Stats())
			return nil
		}
	}
}

// reload re-reads the config. Only the log level can change while running.
func reload(c *cli.Context, logger hclog.Logger) {
	logger.Info("SIGHUP received, reloading configuration")
	newCfg, err := loadConfig(c)
	if err != nil {
		logger.Error("failed to reload config", "error", err)
		return
	}
	logger.SetLevel(logging.Level(newCfg.Log.Level))
	metrics.ConfigReloads.Inc()
	logger.Info("reload successful", "log_level", newCfg.Log.Level)
}

func newParser(src parser.LineSource, cfg *types.Config, logger hclog.Logger) *parser.SnapshotParser {
	parserLog := hclog.NewNullLogger()
	if cfg.Parser.ReportMismatches {
		parserLog = logger.Named("parser")
	}
	return parser.NewSnapshotParser(src,
		parser.WithLogger(parserLog),
		parser.WithMismatchHandler(func(parser.Mismatch) {
			metrics.StructuralMismatches.Inc()
		}),
	)
}

// consume pulls snapshots until input ends, handing each to sink.
// A clean end of input returns nil.
func consume(p *parser.SnapshotParser, sink func(*parser.Snapshot) error) error {
	linesSeen := 0
	for {
		snap, err := p.Next()

		lines := p.Stats().LinesRead
		metrics.LinesRead.Add(float64(lines - linesSeen))
		linesSeen = lines

		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			var te *parser.TruncatedError
			if errors.As(err, &te) {
				metrics.TruncatedSnapshots.WithLabelValues(te.Phase).Inc()
			}
			return err
		}

		metrics.SnapshotsParsed.Inc()
		metrics.ProcessRecords.Add(float64(len(snap.Processes)))
		metrics.LastSnapshotProcesses.Set(float64(len(snap.Processes)))

		if err := sink(snap); err != nil {
			return err
		}
	}
}

// finish maps the parse result to the command's exit status
func finish(p *parser.SnapshotParser, err error, logger hclog.Logger) error {
	logStats(logger, p.Stats())
	if errors.Is(err, parser.ErrTruncatedSnapshot) {
		return cli.Exit(fmt.Sprintf("input ended mid-snapshot: %v", err), exitTruncated)
	}
	return err
}

func logStats(logger hclog.Logger, st parser.Stats) {
	logger.Info("done",
		"lines", st.LinesRead,
		"skipped", st.Skipped,
		"snapshots", st.Snapshots,
		"records", st.Records,
		"mismatches", st.Mismatches)
}
