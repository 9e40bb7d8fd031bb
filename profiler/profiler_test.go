package profiler

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestLogGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	root := NewLogGroup(logger)
	outer := root.Start("forward")
	inner := outer.Start("sort")
	inner.End()
	outer.End()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "stage=forward/sort") || !strings.Contains(lines[0], "depth=2") {
		t.Errorf("inner group logged %q", lines[0])
	}
	if !strings.Contains(lines[1], "stage=forward") || !strings.Contains(lines[1], "depth=1") {
		t.Errorf("outer group logged %q", lines[1])
	}
}

func TestLogGroupDisabled(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	NewLogGroup(logger).Start("forward").End()
	if buf.Len() != 0 {
		t.Errorf("debug timing logged at info level: %q", buf.String())
	}
}

func TestNop(t *testing.T) {
	var g ProfilerGroup = Nop{}
	g.Start("a").Start("b").End()
	g.End()
}
