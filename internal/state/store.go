package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"maxbackup/internal/backup"
	"maxbackup/internal/fs"
)

// Retry schedule for sharing-violation contention on the state file.
const (
	retryInitialDelay = 100 * time.Millisecond
	retryMaxDelay     = 1000 * time.Millisecond
	retryBudget       = 15 * time.Second
)

// Store reads and writes the service state file. A single process-wide
// mutex serializes Load and Save; the on-disk file is mutated through this
// type only.
type Store struct {
	path string

	mu    sync.Mutex
	sleep func(time.Duration)
}

// NewStore creates a store for the state file at path.
func NewStore(path string) *Store {
	return &Store{path: path, sleep: time.Sleep}
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the service state. If the file does not exist, it is created
// with defaults and the defaults are returned.
func (s *Store) Load() (*ServiceConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data []byte
	err := s.withRetry(func() error {
		var readErr error
		data, readErr = os.ReadFile(s.path)
		return readErr
	})
	if err != nil {
		if os.IsNotExist(err) {
			cfg := NewServiceConfig()
			if err := s.saveLocked(cfg); err != nil {
				return nil, fmt.Errorf("writing initial state: %w", err)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	var cfg ServiceConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decoding state file %s: %w", s.path, err)
	}
	if cfg.PipeTimeoutSeconds <= 0 {
		cfg.PipeTimeoutSeconds = DefaultPipeTimeoutSeconds
	}
	if cfg.WorkerShutdownTimeoutSeconds <= 0 {
		cfg.WorkerShutdownTimeoutSeconds = DefaultWorkerShutdownTimeoutSeconds
	}
	return &cfg, nil
}

// Save overwrites the state file with cfg.
func (s *Store) Save(cfg *ServiceConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(cfg)
}

// saveLocked writes the state file. Caller holds s.mu.
func (s *Store) saveLocked(cfg *ServiceConfig) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	data = append(data, '\n')

	err = s.withRetry(func() error {
		return os.WriteFile(s.path, data, 0644)
	})
	if err != nil {
		return fmt.Errorf("writing state file %s: %w", s.path, err)
	}
	return nil
}

// withRetry runs op, retrying sharing violations with exponential backoff
// (100 ms doubling, capped at 1 s) inside a 15 s wall-time budget. The
// budget expiring surfaces as backup.ErrTimeout.
func (s *Store) withRetry(op func() error) error {
	delay := retryInitialDelay
	deadline := time.Now().Add(retryBudget)

	for {
		err := op()
		if err == nil || !fs.IsSharingViolation(err) {
			return err
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("state file contended for %s: %w", retryBudget, backup.ErrTimeout)
		}
		s.sleep(delay)
		delay *= 2
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}
	}
}
