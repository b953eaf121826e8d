// Package supervisor owns the set of per-user backup workers. All public
// operations and all mutations of the worker map are serialized by a single
// non-reentrant lock; internal helpers that assume the lock is held are
// suffixed Locked and never call the public variants.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"maxbackup/internal/backup"
	"maxbackup/internal/pipeproto"
	"maxbackup/internal/state"
	"maxbackup/internal/userconfig"
	"maxbackup/internal/worker"
)

// defaultRetryInterval is how long to wait before retrying a worker whose
// user profile could not be resolved.
const defaultRetryInterval = 60 * time.Second

// historyLimit caps the runs returned by a HISTORY request.
const historyLimit = 10

// Options configures a Supervisor.
type Options struct {
	Store    *state.Store
	Resolver backup.IdentityResolver

	Filesystem backup.Filesystem
	Clock      backup.Clock
	IDGen      backup.RunIDs
	Recorder   backup.RunRecorder
	Logger     backup.Logger

	// WorkerLogger, when set, is shared by all workers instead of each
	// opening its own rolling log. Used by tests.
	WorkerLogger backup.Logger

	// Worker pacing overrides; zero values take the worker defaults.
	WorkerCycleInterval time.Duration
	WorkerErrorBackoff  time.Duration

	// RetryInterval overrides the identity-retry cadence.
	RetryInterval time.Duration
}

// Supervisor manages worker lifecycles and the registration state.
type Supervisor struct {
	store    *state.Store
	resolver backup.IdentityResolver
	fsys     backup.Filesystem
	clock    backup.Clock
	idgen    backup.RunIDs
	recorder backup.RunRecorder
	logger   backup.Logger

	workerLogger        backup.Logger
	workerCycleInterval time.Duration
	workerErrorBackoff  time.Duration
	retryInterval       time.Duration

	// workerLock serializes register/unregister/status and every mutation
	// of workers. It is not reentrant.
	workerLock sync.Mutex
	workers    map[string]*worker.Worker

	retryCtx    context.Context
	retryCancel context.CancelFunc
	retryWG     sync.WaitGroup
}

// New creates a Supervisor. Call StartAllFromState to bring up workers for
// existing registrations, and Shutdown to stop everything.
func New(opts Options) *Supervisor {
	s := &Supervisor{
		store:               opts.Store,
		resolver:            opts.Resolver,
		fsys:                opts.Filesystem,
		clock:               opts.Clock,
		idgen:               opts.IDGen,
		recorder:            opts.Recorder,
		logger:              opts.Logger,
		workerLogger:        opts.WorkerLogger,
		workerCycleInterval: opts.WorkerCycleInterval,
		workerErrorBackoff:  opts.WorkerErrorBackoff,
		retryInterval:       opts.RetryInterval,
		workers:             map[string]*worker.Worker{},
	}
	if s.clock == nil {
		s.clock = backup.SystemClock{}
	}
	if s.idgen == nil {
		s.idgen = backup.UUIDRunIDs{}
	}
	if s.recorder == nil {
		s.recorder = backup.NopRecorder{}
	}
	if s.logger == nil {
		s.logger = backup.Discard
	}
	if s.retryInterval <= 0 {
		s.retryInterval = defaultRetryInterval
	}
	s.retryCtx, s.retryCancel = context.WithCancel(context.Background())
	return s
}

// StartAllFromState starts a worker for every persisted registration,
// continuing past individual failures.
func (s *Supervisor) StartAllFromState() error {
	s.workerLock.Lock()
	defer s.workerLock.Unlock()

	cfg, err := s.store.Load()
	if err != nil {
		return fmt.Errorf("loading service state: %w", err)
	}

	for _, reg := range cfg.RegisteredUsers {
		if err := s.startWorkerLocked(reg); err != nil {
			s.logger.Warn("cannot start worker", "sid", reg.SID, "error", err)
			s.scheduleRetry(reg.SID)
		}
	}
	return nil
}

// Register adds a user and starts their worker.
func (s *Supervisor) Register(sid, username, configPath string) pipeproto.Response {
	s.workerLock.Lock()
	defer s.workerLock.Unlock()

	cfg, err := s.store.Load()
	if err != nil {
		return pipeproto.Error(fmt.Sprintf("cannot load service state: %v", err))
	}
	if cfg.FindUser(sid) != nil {
		return pipeproto.Error(fmt.Sprintf("User %s is already registered", sid))
	}

	profile, ok := s.resolver.Resolve(sid)
	if !ok {
		return pipeproto.Error(fmt.Sprintf("cannot resolve user profile for %s", sid))
	}

	_, verrs, err := userconfig.Load(configPath, profile.HomeDir)
	if err != nil {
		return pipeproto.Error(fmt.Sprintf("cannot read config file: %v", err))
	}
	if len(verrs) > 0 {
		resp := pipeproto.Error(fmt.Sprintf("config file %s failed validation", configPath))
		for _, ve := range verrs {
			resp.ValidationErrors = append(resp.ValidationErrors, pipeproto.ValidationError{
				Job:   ve.Job,
				Field: ve.Field,
				Error: ve.Err,
			})
		}
		return resp
	}

	reg := state.UserRegistration{
		SID:          sid,
		Username:     username,
		ConfigPath:   configPath,
		RegisteredAt: s.clock.Now().UTC(),
	}
	cfg.RegisteredUsers = append(cfg.RegisteredUsers, reg)
	if err := s.store.Save(cfg); err != nil {
		return pipeproto.Error(fmt.Sprintf("cannot persist registration: %v", err))
	}

	if err := s.startWorkerLocked(reg); err != nil {
		// The registration is durable; the worker will be retried.
		s.logger.Warn("worker start failed after registration", "sid", sid, "error", err)
		s.scheduleRetry(sid)
		return pipeproto.Success(fmt.Sprintf("User %s registered; worker start pending", sid))
	}
	return pipeproto.Success(fmt.Sprintf("User %s registered", sid))
}

// Unregister stops a user's worker and removes the registration.
func (s *Supervisor) Unregister(sid, username string) pipeproto.Response {
	s.workerLock.Lock()
	defer s.workerLock.Unlock()

	cfg, err := s.store.Load()
	if err != nil {
		return pipeproto.Error(fmt.Sprintf("cannot load service state: %v", err))
	}
	if cfg.FindUser(sid) == nil {
		return pipeproto.Error(fmt.Sprintf("User %s is not registered", sid))
	}

	if w := s.workers[sid]; w != nil {
		w.Stop(cfg.WorkerShutdownTimeout())
		delete(s.workers, sid)
	}

	cfg.RemoveUser(sid)
	if err := s.store.Save(cfg); err != nil {
		return pipeproto.Error(fmt.Sprintf("cannot persist unregistration: %v", err))
	}
	return pipeproto.Success(fmt.Sprintf("User %s unregistered", sid))
}

// Status reports the registration and worker state for a user.
func (s *Supervisor) Status(sid, username string) pipeproto.Response {
	s.workerLock.Lock()
	defer s.workerLock.Unlock()

	cfg, err := s.store.Load()
	if err != nil {
		return pipeproto.Error(fmt.Sprintf("cannot load service state: %v", err))
	}
	reg := cfg.FindUser(sid)
	if reg == nil {
		return pipeproto.Response{
			Status:  pipeproto.StatusInfo,
			Message: fmt.Sprintf("Not registered: %s", sid),
			IsFinal: true,
		}
	}

	workerState := "Stopped"
	if w := s.workers[sid]; w != nil && w.IsRunning() {
		workerState = "Running"
	}

	message := fmt.Sprintf("Registered: Yes\nConfig: %s\nWorker: %s\nRegistered At: %s",
		reg.ConfigPath, workerState, reg.RegisteredAt.UTC().Format(time.RFC3339))
	return pipeproto.Success(message)
}

// History reports the most recent recorded runs for a user.
func (s *Supervisor) History(sid string) pipeproto.Response {
	runs, err := s.recorder.RecentRuns(sid, historyLimit)
	if err != nil {
		return pipeproto.Error(fmt.Sprintf("cannot read run history: %v", err))
	}
	if len(runs) == 0 {
		return pipeproto.Response{
			Status:  pipeproto.StatusInfo,
			Message: fmt.Sprintf("No recorded runs for %s", sid),
			IsFinal: true,
		}
	}

	message := ""
	for _, run := range runs {
		message += fmt.Sprintf("%s  %s  copied=%d upToDate=%d errors=%d missing=%d bytes=%d\n",
			run.FinishedAt.UTC().Format(time.RFC3339), run.Job,
			run.Stats.BackupCount, run.Stats.UpToDateCount,
			run.Stats.ErrorCount, run.Stats.MissingCount, run.Stats.ByteCount)
	}
	return pipeproto.Success(message)
}

// WorkerRunning reports whether a worker for sid exists and is running.
func (s *Supervisor) WorkerRunning(sid string) bool {
	s.workerLock.Lock()
	defer s.workerLock.Unlock()
	w := s.workers[sid]
	return w != nil && w.IsRunning()
}

// Shutdown stops retry loops and all workers. Workers are stopped in
// parallel, each with the configured grace period.
func (s *Supervisor) Shutdown() {
	s.retryCancel()
	s.retryWG.Wait()

	s.workerLock.Lock()
	cfg, err := s.store.Load()
	deadline := state.NewServiceConfig().WorkerShutdownTimeout()
	if err == nil {
		deadline = cfg.WorkerShutdownTimeout()
	}
	workers := make([]*worker.Worker, 0, len(s.workers))
	for _, w := range s.workers {
		workers = append(workers, w)
	}
	s.workers = map[string]*worker.Worker{}
	s.workerLock.Unlock()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *worker.Worker) {
			defer wg.Done()
			w.Stop(deadline)
		}(w)
	}
	wg.Wait()
}

// startWorkerLocked resolves the user's identity and starts their worker.
// Caller holds workerLock.
func (s *Supervisor) startWorkerLocked(reg state.UserRegistration) error {
	profile, ok := s.resolver.Resolve(reg.SID)
	if !ok {
		return backup.ErrIdentityUnresolved
	}

	w, err := worker.Start(worker.Options{
		Registration:  reg,
		Home:          profile.HomeDir,
		Filesystem:    s.fsys,
		Clock:         s.clock,
		IDGen:         s.idgen,
		Recorder:      s.recorder,
		Logger:        s.workerLogger,
		CycleInterval: s.workerCycleInterval,
		ErrorBackoff:  s.workerErrorBackoff,
	})
	if err != nil {
		return err
	}
	s.workers[reg.SID] = w
	s.logger.Info("worker started", "sid", reg.SID, "user", profile.DisplayName)
	return nil
}

// scheduleRetry starts a background loop that keeps trying to start the
// worker for sid until it succeeds, the registration disappears, or the
// supervisor shuts down. The loop re-acquires workerLock on each attempt;
// it never runs while holding it. Caller holds workerLock.
func (s *Supervisor) scheduleRetry(sid string) {
	s.retryWG.Add(1)
	go func() {
		defer s.retryWG.Done()
		timer := time.NewTimer(s.retryInterval)
		defer timer.Stop()

		for {
			select {
			case <-s.retryCtx.Done():
				return
			case <-timer.C:
			}

			if done := s.retryStart(sid); done {
				return
			}
			timer.Reset(s.retryInterval)
		}
	}()
}

// retryStart attempts one worker start under workerLock. Returns true when
// no further retries are needed.
func (s *Supervisor) retryStart(sid string) bool {
	s.workerLock.Lock()
	defer s.workerLock.Unlock()

	if _, exists := s.workers[sid]; exists {
		return true
	}

	cfg, err := s.store.Load()
	if err != nil {
		s.logger.Warn("retry cannot load service state", "sid", sid, "error", err)
		return false
	}
	reg := cfg.FindUser(sid)
	if reg == nil {
		// Unregistered while we were waiting.
		return true
	}

	if err := s.startWorkerLocked(*reg); err != nil {
		s.logger.Warn("worker start retry failed", "sid", sid, "error", err)
		return false
	}
	s.logger.Info("worker started after retry", "sid", sid)
	return true
}
