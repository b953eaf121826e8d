package daemonconfig_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"maxbackup/internal/daemonconfig"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MAXBACKUP_CONFIG", "")
	t.Setenv("MAXBACKUP_DATA_DIR", "")

	cfg, err := daemonconfig.Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PipeName != "MaxBackupPipe" {
		t.Errorf("PipeName = %q", cfg.PipeName)
	}
	if cfg.Level() != slog.LevelInfo {
		t.Errorf("Level() = %v", cfg.Level())
	}
	if filepath.Base(cfg.StateFile()) != "config.json" {
		t.Errorf("StateFile() = %q", cfg.StateFile())
	}
}

func TestLoad_FromFile(t *testing.T) {
	t.Setenv("MAXBACKUP_DATA_DIR", "")

	path := filepath.Join(t.TempDir(), "maxbackupd.toml")
	text := "pipe_name = \"TestPipe\"\ndata_dir = \"/tmp/maxbackup-test\"\nlog_level = \"debug\"\n"
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := daemonconfig.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PipeName != "TestPipe" {
		t.Errorf("PipeName = %q", cfg.PipeName)
	}
	if cfg.DataDir != "/tmp/maxbackup-test" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.Level() != slog.LevelDebug {
		t.Errorf("Level() = %v", cfg.Level())
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	t.Setenv("MAXBACKUP_DATA_DIR", "")

	path := filepath.Join(t.TempDir(), "maxbackupd.toml")
	if err := os.WriteFile(path, []byte("log_level = \"warn\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := daemonconfig.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PipeName != "MaxBackupPipe" {
		t.Errorf("PipeName = %q, want default", cfg.PipeName)
	}
	if cfg.Level() != slog.LevelWarn {
		t.Errorf("Level() = %v", cfg.Level())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MAXBACKUP_CONFIG", "")
	t.Setenv("MAXBACKUP_DATA_DIR", "/srv/backups")

	cfg, err := daemonconfig.Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DataDir != "/srv/backups" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.HistoryFile() != filepath.Join("/srv/backups", "history.db") {
		t.Errorf("HistoryFile() = %q", cfg.HistoryFile())
	}
}

func TestManager_RoundTrip(t *testing.T) {
	m := &daemonconfig.Manager{}
	cfg := daemonconfig.NewConfig()
	cfg.PipeName = "RoundTripPipe"

	var buf bytes.Buffer
	if err := m.Write(&buf, cfg); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.PipeName != "RoundTripPipe" {
		t.Errorf("PipeName = %q", got.PipeName)
	}
}
