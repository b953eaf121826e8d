// Package userconfig reads and validates a user's backup configuration
// file. The raw JSON text is expanded against the owning user's home
// directory before parsing, so `~` and %USERPROFILE% resolve correctly even
// though the service runs under a different account.
package userconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"maxbackup/internal/pathexp"
)

// Job describes one mirror operation. Source and Destination hold the values
// after JSON-text expansion ("~/", "~\\" and %USERPROFILE% already resolved);
// the engine applies plain-mode expansion (bare "~", other %VAR% tokens) per
// run.
type Job struct {
	Name        string   `json:"name"`
	Source      string   `json:"source"`
	Destination string   `json:"destination"`
	Include     []string `json:"include"`
	Exclude     []string `json:"exclude"`
}

// Config is the root of a user's backup configuration. Sections other than
// Backup (for example a logging-sink section) are accepted and ignored.
type Config struct {
	Backup BackupSection `json:"backup"`
}

// BackupSection holds the job list.
type BackupSection struct {
	Jobs []Job `json:"jobs"`
}

// ValidationError describes one problem in a config file.
type ValidationError struct {
	Job   string
	Field string
	Err   string
}

// Load reads, expands, parses, and validates the config file at path.
// I/O failures are returned as err; content problems come back as
// validation errors with a nil Config.
func Load(path, home string) (*Config, []ValidationError, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg, verrs := Parse(string(data), home)
	return cfg, verrs, nil
}

// Parse expands raw JSON text against home, decodes it, and validates the
// result. Returns a nil Config when validation fails.
func Parse(text, home string) (*Config, []ValidationError) {
	expanded := pathexp.ExpandJSONText(text, home)

	var root any
	if err := json.Unmarshal([]byte(expanded), &root); err != nil {
		return nil, []ValidationError{{Field: "JSON", Err: fmt.Sprintf("Invalid JSON: %v", err)}}
	}
	if _, ok := root.(map[string]any); !ok {
		return nil, []ValidationError{{Field: "JSON", Err: "Invalid JSON: root is not an object"}}
	}

	var cfg Config
	if err := json.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, []ValidationError{{Field: "JSON", Err: fmt.Sprintf("Invalid JSON: %v", err)}}
	}

	if verrs := validate(&cfg, home); len(verrs) > 0 {
		return nil, verrs
	}
	return &cfg, nil
}

func validate(cfg *Config, home string) []ValidationError {
	var verrs []ValidationError

	if len(cfg.Backup.Jobs) == 0 {
		return append(verrs, ValidationError{Field: "Backup", Err: "no jobs defined"})
	}

	seen := make(map[string]bool)
	for _, job := range cfg.Backup.Jobs {
		name := job.Name
		if strings.TrimSpace(name) == "" {
			verrs = append(verrs, ValidationError{Field: "Name", Err: "job name is required"})
			continue
		}
		if seen[name] {
			verrs = append(verrs, ValidationError{Job: name, Field: "Name", Err: "duplicate job name"})
			continue
		}
		seen[name] = true

		source := pathexp.Expand(job.Source, home)
		destination := pathexp.Expand(job.Destination, home)

		switch {
		case strings.TrimSpace(job.Source) == "":
			verrs = append(verrs, ValidationError{Job: name, Field: "Source", Err: "source is required"})
		case !filepath.IsAbs(source):
			verrs = append(verrs, ValidationError{Job: name, Field: "Source", Err: fmt.Sprintf("source %q is not absolute after expansion", source)})
		}

		switch {
		case strings.TrimSpace(job.Destination) == "":
			verrs = append(verrs, ValidationError{Job: name, Field: "Destination", Err: "destination is required"})
		case !filepath.IsAbs(destination):
			verrs = append(verrs, ValidationError{Job: name, Field: "Destination", Err: fmt.Sprintf("destination %q is not absolute after expansion", destination)})
		case isProperAncestor(destination, source):
			verrs = append(verrs, ValidationError{Job: name, Field: "Destination", Err: "destination must not contain the source"})
		}

		if len(job.Include) == 0 {
			verrs = append(verrs, ValidationError{Job: name, Field: "Include", Err: "at least one include pattern is required"})
		}
	}

	return verrs
}

// isProperAncestor reports whether ancestor is a strict parent directory of
// path. Equal paths are not ancestors.
func isProperAncestor(ancestor, path string) bool {
	a := filepath.Clean(ancestor)
	p := filepath.Clean(path)
	if a == p {
		return false
	}
	rel, err := filepath.Rel(a, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != "."
}
