package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"topgrep/internal/config"
	"topgrep/internal/metrics"
	"topgrep/internal/parser"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

const sample = `top - 14:02:11 up 10 days,  4:01,  3 users,  load average: 1.02, 0.88, 0.71
Tasks: 201 total,   2 running, 199 sleeping,   0 stopped,   0 zombie

    PID USER      PR  NI    VIRT    RES    SHR S  %CPU  %MEM     TIME+ COMMAND
   2231 www-data  20   0  412312  51240  12040 R  37.5   1.3   3:22.91 nginx: worker process
      1 root      20   0  167748  13124   8400 S   0.0   0.3   0:05.12 /sbin/init

top - 14:02:14 up 10 days,  4:01,  3 users,  load average: 1.02, 0.88, 0.71
Tasks: 201 total,   1 running, 200 sleeping,   0 stopped,   0 zombie

    PID USER      PR  NI    VIRT    RES    SHR S  %CPU  %MEM     TIME+ COMMAND
   2231 www-data  20   0  412312  51240  12040 S   2.0   1.3   3:22.97 nginx: worker process

`

type lineSlice struct {
	lines []string
}

func (l *lineSlice) Next() (string, error) {
	if len(l.lines) == 0 {
		return "", io.EOF
	}
	line := l.lines[0]
	l.lines = l.lines[1:]
	return line, nil
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func testApp(out *bytes.Buffer) *cli.App {
	app := newApp()
	app.Writer = out
	app.ErrWriter = out
	app.ExitErrHandler = func(*cli.Context, error) {}
	return app
}

func TestRun_WritesJSONLines(t *testing.T) {
	in := writeFile(t, "top.log", sample)
	outPath := filepath.Join(t.TempDir(), "out.jsonl")

	var buf bytes.Buffer
	err := testApp(&buf).Run([]string{"topgrep", "run", "--input", in, "--output", outPath, "--log-level", "off"})
	require.NoError(t, err)

	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer f.Close()

	var snaps []parser.Snapshot
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var snap parser.Snapshot
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &snap))
		snaps = append(snaps, snap)
	}

	require.Len(t, snaps, 2)
	assert.Equal(t, "14:02:11", snaps[0].Time)
	assert.Equal(t, "nginx: worker process", snaps[0].Processes[0]["command"])
	assert.Equal(t, "37.5", snaps[0].Processes[0]["cpu"])
	assert.Equal(t, "2.0", snaps[1].Processes[0]["cpu"])
}

func TestRun_TruncatedInputExitCode(t *testing.T) {
	in := writeFile(t, "top.log", sample+"top - 14:02:17 up 10 days,  4:01,  3 users\nTasks: 201 total\n")
	outPath := filepath.Join(t.TempDir(), "out.jsonl")

	var buf bytes.Buffer
	err := testApp(&buf).Run([]string{"topgrep", "run", "-i", in, "-o", outPath, "--log-level", "off"})
	require.Error(t, err)

	var exitErr cli.ExitCoder
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, exitTruncated, exitErr.ExitCode())
	assert.Contains(t, err.Error(), "truncated snapshot")

	// Complete snapshots before the cut are still written
	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
}

func TestRun_ConfigFile(t *testing.T) {
	in := writeFile(t, "top.log", sample)
	outPath := filepath.Join(t.TempDir(), "out.jsonl")
	cfgPath := writeFile(t, "topgrep.yml", "input:\n  path: "+in+"\noutput:\n  path: "+outPath+"\nlog:\n  level: off\n")

	var buf bytes.Buffer
	require.NoError(t, testApp(&buf).Run([]string{"topgrep", "run", "--config", cfgPath}))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
}

func TestRun_BadConfig(t *testing.T) {
	cfgPath := writeFile(t, "topgrep.yml", "output:\n  format: csv\n")

	var buf bytes.Buffer
	err := testApp(&buf).Run([]string{"topgrep", "run", "--config", cfgPath})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestCheck_Summary(t *testing.T) {
	in := writeFile(t, "top.log", "noise\n"+sample)

	var buf bytes.Buffer
	require.NoError(t, testApp(&buf).Run([]string{"topgrep", "check", "--input", in, "--log-level", "off"}))

	out := buf.String()
	assert.Contains(t, out, "snapshots:  2")
	assert.Contains(t, out, "records:    3")
	assert.Contains(t, out, "skipped:    1")
	assert.Contains(t, out, "mismatches: 0")
}

func TestCheck_RejectsFollow(t *testing.T) {
	in := writeFile(t, "top.log", sample)

	var buf bytes.Buffer
	err := testApp(&buf).Run([]string{"topgrep", "check", "--input", in, "--follow"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot follow")
}

func TestConsume_UpdatesMetrics(t *testing.T) {
	snapsBefore := testutil.ToFloat64(metrics.SnapshotsParsed)
	recordsBefore := testutil.ToFloat64(metrics.ProcessRecords)
	mismatchBefore := testutil.ToFloat64(metrics.StructuralMismatches)
	truncBefore := testutil.ToFloat64(metrics.TruncatedSnapshots.WithLabelValues(parser.PhaseHeader))

	body := sample + "top - 14:02:20 up 10 days,\n\n  PID USER COMMAND\n  9 root\n\ntop - 14:02:23 up 10 days,\n"
	lines := strings.Split(body, "\n")
	src := &lineSlice{lines: lines}

	cfg := config.Default()

	var got []*parser.Snapshot
	err := consume(newParser(src, cfg, hclog.NewNullLogger()), func(s *parser.Snapshot) error {
		got = append(got, s)
		return nil
	})
	require.ErrorIs(t, err, parser.ErrTruncatedSnapshot)

	assert.Len(t, got, 3)
	assert.Equal(t, snapsBefore+3, testutil.ToFloat64(metrics.SnapshotsParsed))
	assert.Equal(t, recordsBefore+4, testutil.ToFloat64(metrics.ProcessRecords))
	assert.Equal(t, mismatchBefore+1, testutil.ToFloat64(metrics.StructuralMismatches))
	assert.Equal(t, truncBefore+1, testutil.ToFloat64(metrics.TruncatedSnapshots.WithLabelValues(parser.PhaseHeader)))
}

func TestConsume_SinkError(t *testing.T) {
	src := &lineSlice{lines: strings.Split(sample, "\n")}
	cfg := config.Default()

	boom := errors.New("disk full")
	err := consume(newParser(src, cfg, hclog.NewNullLogger()), func(*parser.Snapshot) error { return boom })
	assert.ErrorIs(t, err, boom)
}
