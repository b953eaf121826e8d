// Package watch provides a file-watching configuration source: it reads a
// user's backup config, expands it against the user's home, and re-emits a
// parsed snapshot whenever the file changes on disk.
package watch

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"maxbackup/internal/backup"
	"maxbackup/internal/userconfig"
)

const defaultDebounce = 100 * time.Millisecond

// ConfigSource watches one config file. Snapshot always returns a complete,
// validated configuration: reload failures leave the previous snapshot in
// place. Reloads take effect on the next Snapshot call, never mid-read.
type ConfigSource struct {
	path     string
	home     string
	logger   backup.Logger
	debounce time.Duration

	mu      sync.Mutex
	current *userconfig.Config

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewConfigSource loads the config at path and starts watching it for
// changes. The initial load must produce a valid configuration.
func NewConfigSource(path, home string, logger backup.Logger) (*ConfigSource, error) {
	return newConfigSource(path, home, logger, defaultDebounce)
}

func newConfigSource(path, home string, logger backup.Logger, debounce time.Duration) (*ConfigSource, error) {
	cfg, verrs, err := userconfig.Load(path, home)
	if err != nil {
		return nil, err
	}
	if len(verrs) > 0 {
		return nil, fmt.Errorf("config file %s is invalid: %v", path, verrs)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	// Watch the containing directory: editors and sync tools typically
	// replace the file, which drops a watch set on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching config directory: %w", err)
	}

	s := &ConfigSource{
		path:     path,
		home:     home,
		logger:   logger,
		debounce: debounce,
		current:  cfg,
		watcher:  watcher,
		done:     make(chan struct{}),
	}
	go s.loop()
	return s, nil
}

// Snapshot returns the most recent valid configuration.
func (s *ConfigSource) Snapshot() *userconfig.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Close stops watching. The last snapshot remains readable.
func (s *ConfigSource) Close() error {
	select {
	case <-s.done:
		return nil
	default:
	}
	close(s.done)
	return s.watcher.Close()
}

func (s *ConfigSource) loop() {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(s.debounce)
				fire = timer.C
			} else {
				timer.Reset(s.debounce)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("config watcher error", "path", s.path, "error", err)
		case <-fire:
			timer = nil
			fire = nil
			s.reload()
		}
	}
}

func (s *ConfigSource) reload() {
	cfg, verrs, err := userconfig.Load(s.path, s.home)
	if err != nil {
		s.logger.Warn("config reload failed, keeping previous configuration", "path", s.path, "error", err)
		return
	}
	if len(verrs) > 0 {
		s.logger.Warn("config reload found validation errors, keeping previous configuration", "path", s.path, "errors", fmt.Sprint(verrs))
		return
	}

	s.mu.Lock()
	s.current = cfg
	s.mu.Unlock()
	s.logger.Info("configuration reloaded", "path", s.path, "jobs", len(cfg.Backup.Jobs))
}
