// Package worker runs the per-user backup loop: one worker per registered
// user, owning that user's config watcher and log sink.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"maxbackup/internal/backup"
	"maxbackup/internal/engine"
	"maxbackup/internal/logging"
	"maxbackup/internal/state"
	"maxbackup/internal/watch"
)

// State is the worker lifecycle. Stopping is entered only via the shutdown
// signal; Stopped is terminal.
type State int32

const (
	Starting State = iota
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Starting:
		return "Starting"
	case Running:
		return "Running"
	case Stopping:
		return "Stopping"
	default:
		return "Stopped"
	}
}

// Loop pacing defaults.
const (
	defaultCycleInterval = 10 * time.Second
	defaultErrorBackoff  = 60 * time.Second
)

// Options configures a worker. Registration and Home are required; zero
// pacing fields take the defaults, and a nil Logger opens the user's
// rolling log file.
type Options struct {
	Registration state.UserRegistration
	Home         string

	Filesystem backup.Filesystem
	Clock      backup.Clock
	IDGen      backup.RunIDs
	Recorder   backup.RunRecorder
	Logger     backup.Logger

	CycleInterval time.Duration
	ErrorBackoff  time.Duration
}

// Worker is one user's backup loop. It holds no reference to its
// supervisor; it receives only a shutdown signal and its own sinks.
type Worker struct {
	reg  state.UserRegistration
	home string

	runner   *engine.Runner
	source   *watch.ConfigSource
	clock    backup.Clock
	idgen    backup.RunIDs
	recorder backup.RunRecorder
	logger   backup.Logger

	// ownedLog is set when the worker opened its own log sink and must
	// close it on exit.
	ownedLog *logging.RollingLogger

	cycleInterval time.Duration
	errorBackoff  time.Duration

	state  atomic.Int32
	cancel context.CancelFunc
	done   chan struct{}
}

// LogPath returns the user's worker log location under home.
func LogPath(home string) string {
	return filepath.Join(home, ".max", "logs", "backup.log")
}

// Start creates and starts a worker. The user's configuration must load
// and validate; otherwise the worker refuses to start.
func Start(opts Options) (*Worker, error) {
	w := &Worker{
		reg:           opts.Registration,
		home:          opts.Home,
		clock:         opts.Clock,
		idgen:         opts.IDGen,
		recorder:      opts.Recorder,
		logger:        opts.Logger,
		cycleInterval: opts.CycleInterval,
		errorBackoff:  opts.ErrorBackoff,
		done:          make(chan struct{}),
	}
	if w.clock == nil {
		w.clock = backup.SystemClock{}
	}
	if w.idgen == nil {
		w.idgen = backup.UUIDRunIDs{}
	}
	if w.recorder == nil {
		w.recorder = backup.NopRecorder{}
	}
	if w.cycleInterval <= 0 {
		w.cycleInterval = defaultCycleInterval
	}
	if w.errorBackoff <= 0 {
		w.errorBackoff = defaultErrorBackoff
	}
	if w.logger == nil {
		w.ownedLog = logging.NewRollingLogger(LogPath(opts.Home), "backup", slog.LevelInfo)
		w.logger = w.ownedLog
	}

	source, err := watch.NewConfigSource(opts.Registration.ConfigPath, opts.Home, w.logger)
	if err != nil {
		if w.ownedLog != nil {
			w.ownedLog.Close()
		}
		return nil, fmt.Errorf("loading configuration for %s: %w", opts.Registration.SID, err)
	}
	w.source = source
	w.runner = engine.NewRunner(opts.Filesystem, w.clock, w.logger)

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	go w.loop(ctx)
	return w, nil
}

// SID returns the owning user's identifier.
func (w *Worker) SID() string { return w.reg.SID }

// State returns the current lifecycle state.
func (w *Worker) State() State { return State(w.state.Load()) }

// IsRunning reports whether the worker loop is active.
func (w *Worker) IsRunning() bool {
	s := w.State()
	return s == Starting || s == Running
}

// Stop signals shutdown and waits up to deadline for the loop to finish
// its current file and exit. Safe to call more than once.
func (w *Worker) Stop(deadline time.Duration) {
	if w.State() != Stopped {
		w.state.Store(int32(Stopping))
	}
	w.cancel()

	timer := time.NewTimer(deadline)
	defer timer.Stop()
	select {
	case <-w.done:
	case <-timer.C:
		w.logger.Warn("worker did not stop within deadline", "sid", w.reg.SID, "deadline", deadline)
	}
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.done)
	defer func() {
		w.state.Store(int32(Stopped))
		w.source.Close()
		if w.ownedLog != nil {
			w.ownedLog.Close()
		}
	}()

	w.state.Store(int32(Running))
	w.logger.Info("worker started", "sid", w.reg.SID, "config", w.reg.ConfigPath)

	for {
		if ctx.Err() != nil {
			w.logger.Info("worker stopping", "sid", w.reg.SID)
			return
		}
		if err := w.runCycle(ctx); err != nil {
			w.logger.Error("backup cycle failed", "sid", w.reg.SID, "error", err)
			if !sleepCtx(ctx, w.errorBackoff) {
				return
			}
			continue
		}
		if !sleepCtx(ctx, w.cycleInterval) {
			w.logger.Info("worker stopping", "sid", w.reg.SID)
			return
		}
	}
}

// runCycle executes every job in the current configuration snapshot.
// Reloads take effect on the next cycle, never mid-cycle.
func (w *Worker) runCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backup cycle panicked: %v", r)
		}
	}()

	cfg := w.source.Snapshot()
	for _, job := range cfg.Backup.Jobs {
		if ctx.Err() != nil {
			return nil
		}
		started := w.clock.Now()
		stats := w.runner.RunJob(ctx, job, w.home)
		if ctx.Err() != nil {
			return nil
		}
		run := backup.Run{
			ID:         w.idgen.NewID(),
			SID:        w.reg.SID,
			Job:        job.Name,
			StartedAt:  started,
			FinishedAt: w.clock.Now(),
			Stats:      stats,
		}
		if err := w.recorder.RecordRun(run); err != nil {
			w.logger.Warn("cannot record run", "sid", w.reg.SID, "job", job.Name, "error", err)
		}
	}
	return nil
}

// sleepCtx sleeps for d; returns false if ctx was cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
