// Package daemonconfig holds the service's own bootstrap configuration:
// where its data lives, which endpoint it listens on, and how verbosely it
// logs. This is distinct from the durable service state, which tracks
// registrations and tunables and lives in the data directory.
package daemonconfig

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the daemon bootstrap configuration.
type Config struct {
	PipeName string `toml:"pipe_name"`
	DataDir  string `toml:"data_dir"`
	LogLevel string `toml:"log_level"` // "debug", "info", "warn", "error"
}

// NewConfig returns a Config with platform defaults.
func NewConfig() *Config {
	return &Config{
		PipeName: "MaxBackupPipe",
		DataDir:  defaultDataDir(),
		LogLevel: "info",
	}
}

// StateFile returns the durable service-state location.
func (c *Config) StateFile() string {
	return filepath.Join(c.DataDir, "config.json")
}

// HistoryFile returns the run-history database location.
func (c *Config) HistoryFile() string {
	return filepath.Join(c.DataDir, "history.db")
}

// ServiceLogFile returns the rolling service log location.
func (c *Config) ServiceLogFile() string {
	return filepath.Join(c.DataDir, "logs", "service.log")
}

// Level maps LogLevel onto a slog level, defaulting to info.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader, filling unset fields
// with defaults.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	cfg := NewConfig()
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Load returns the bootstrap configuration. Resolution order: the explicit
// path argument, the MAXBACKUP_CONFIG environment variable, then platform
// defaults (having no config file is not an error; a named file that cannot
// be opened is). MAXBACKUP_DATA_DIR overrides the data directory either way.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("MAXBACKUP_CONFIG")
	}

	cfg := NewConfig()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		m := &Manager{}
		cfg, err = m.Read(f)
		if err != nil {
			return nil, fmt.Errorf("reading config from %s: %w", path, err)
		}
	}

	if dir := os.Getenv("MAXBACKUP_DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}
	return cfg, nil
}
