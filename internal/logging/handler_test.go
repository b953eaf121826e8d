package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestTabHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newTabHandler(&buf, "service", slog.LevelInfo))

	logger.Info("worker started", "sid", "S-1-5-21-1", "jobs", 2)

	line := strings.TrimRight(buf.String(), "\n")
	fields := strings.Split(line, "\t")
	if len(fields) != 6 {
		t.Fatalf("got %d fields: %q", len(fields), line)
	}
	if fields[1] != "INFO" || fields[2] != "service" || fields[3] != "worker started" {
		t.Errorf("unexpected fields: %q", line)
	}
	if fields[4] != "sid=S-1-5-21-1" || fields[5] != "jobs=2" {
		t.Errorf("unexpected attrs: %q", line)
	}
	if !strings.HasSuffix(fields[0], "Z") {
		t.Errorf("timestamp not UTC: %q", fields[0])
	}
}

func TestTabHandler_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newTabHandler(&buf, "service", slog.LevelInfo))

	logger.Debug("noise")
	if buf.Len() != 0 {
		t.Errorf("debug record written below level: %q", buf.String())
	}
}

func TestTabHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newTabHandler(&buf, "worker", slog.LevelInfo)).With("sid", "S-1")

	logger.Info("cycle complete", "jobs", 1)

	line := buf.String()
	if !strings.Contains(line, "\tsid=S-1\t") {
		t.Errorf("pre-set attr missing: %q", line)
	}
	if !strings.Contains(line, "\tjobs=1") {
		t.Errorf("record attr missing: %q", line)
	}
}
