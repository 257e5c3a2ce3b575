// Package scheduler implements the pull scheduler (§4.7): a background
// ticker over the worktree sync engine, generalized from the teacher's
// cluster-scheduled `pollAgentStatuses` loop (server/plugin.go,
// server/poller.go) into a plain goroutine + time.Ticker pair, since the
// teacher's `cluster.Schedule` is a Mattermost-plugin-host facility the
// core has no access to outside that host.
package scheduler

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/gitgov-dev/gitgov-core/config"
	"github.com/gitgov-dev/gitgov-core/events"
	"github.com/gitgov-dev/gitgov-core/logging"
	gitgovsync "github.com/gitgov-dev/gitgov-core/sync"
)

// networkErrorPattern is the heuristic §4.7 names for recognizing a
// transient network failure in a pull error message.
var networkErrorPattern = regexp.MustCompile(`(?i)network|fetch|timeout|connection`)

// ConfigLoader lazily resolves the two-layer scheduler config cascade
// (session preferences, project defaults) on each `start` call (§4.7
// "loads configuration lazily from two layers"). A nil return for either
// tier falls back through BuiltinDefaults.
type ConfigLoader func() (session, project *config.SchedulerConfig)

// Puller is the subset of the sync engine the scheduler drives.
type Puller interface {
	PullState(ctx context.Context, opts gitgovsync.PullOptions) (*gitgovsync.PullResult, error)
}

// PullNowResult is the outcome of a single pullNow invocation (§4.7).
type PullNowResult struct {
	Success bool   `json:"success"`
	HasChanges bool `json:"hasChanges"`
	Error   string `json:"error,omitempty"`
}

// Scheduler is the §4.7 pull scheduler. The zero value is not usable; build
// one with New.
type Scheduler struct {
	mu           sync.Mutex
	puller       Puller
	loadConfig   ConfigLoader
	logger       logging.Logger
	events       *events.Emitter
	actorID      string

	running  bool
	pulling  bool
	cancel   context.CancelFunc
	done     chan struct{}
	resolved config.SchedulerConfig
}

// Config configures a new Scheduler.
type Config struct {
	Puller       Puller
	LoadConfig   ConfigLoader
	Logger       logging.Logger
	Events       *events.Emitter
	ActorID      string
}

// New builds a Scheduler from cfg.
func New(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop{}
	}
	emitter := cfg.Events
	if emitter == nil {
		emitter = events.NewEmitter()
	}
	loadConfig := cfg.LoadConfig
	if loadConfig == nil {
		loadConfig = func() (*config.SchedulerConfig, *config.SchedulerConfig) { return nil, nil }
	}
	return &Scheduler{
		puller:     cfg.Puller,
		loadConfig: loadConfig,
		logger:     logger,
		events:     emitter,
		actorID:    cfg.ActorID,
	}
}

// IsRunning reports whether the scheduler's ticker loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start is idempotent: a no-op if already running. It resolves the
// configuration cascade and only activates the ticker if the resolved
// config enables it (§4.7 "start").
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}

	session, project := s.loadConfig()
	resolved := config.ResolveScheduler(session, project)
	s.resolved = resolved

	if resolved.Enabled == nil || !*resolved.Enabled {
		s.mu.Unlock()
		return
	}

	interval := 30 * time.Second
	if resolved.PullIntervalSeconds != nil && *resolved.PullIntervalSeconds > 0 {
		interval = time.Duration(*resolved.PullIntervalSeconds) * time.Second
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	s.mu.Unlock()

	go s.loop(runCtx, interval)
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, err := s.PullNow(ctx)
			stillRunning := s.IsRunning()
			if err != nil {
				s.logger.LogError("scheduler: pull failed with a non-network error, stopping", "error", err.Error())
				stillRunning = false
			}
			if !stillRunning {
				s.markStopped()
				return
			}
		}
	}
}

// Stop is idempotent: clears the timer and the running flag, and blocks
// until any ticker loop goroutine has exited. A currently in-flight
// pullNow is allowed to complete; Stop only guarantees no new pullNow
// starts after it returns (§5 "Cancellation and timeouts"). Call this only
// from outside the scheduler's own loop goroutine; the loop stops itself
// via requestStop to avoid waiting on its own exit.
func (s *Scheduler) Stop() {
	done := s.requestStop()
	if done != nil {
		<-done
	}
}

// requestStop clears the running flag and cancels the loop's context
// without blocking, returning the done channel (if any) so a caller
// outside the loop can wait on it.
func (s *Scheduler) requestStop() chan struct{} {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return done
}

func (s *Scheduler) markStopped() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// PullNow runs one pull cycle (§4.7 "pullNow"). Safe to call directly
// (outside the ticker loop) for an on-demand pull. The returned error is
// non-nil only for the "rethrow" case: a pull failure that isn't a
// recognized, continuable network error.
func (s *Scheduler) PullNow(ctx context.Context) (PullNowResult, error) {
	s.mu.Lock()
	if s.pulling {
		s.mu.Unlock()
		return PullNowResult{Success: true, HasChanges: false, Error: "Pull already in progress"}, nil
	}
	s.pulling = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.pulling = false
		s.mu.Unlock()
	}()

	result, err := s.puller.PullState(ctx, gitgovsync.PullOptions{ActorID: s.actorID})
	if err != nil {
		s.logger.LogError("scheduler: pull failed", "error", err.Error())
		if networkErrorPattern.MatchString(err.Error()) && s.continueOnNetworkError() {
			return PullNowResult{Success: false, Error: err.Error()}, nil
		}
		return PullNowResult{}, err
	}

	if result.ConflictDetected {
		s.events.Emit(events.TopicConflictDetected, map[string]any{"conflictInfo": result.ConflictInfo})
		if s.stopOnConflict() {
			s.requestStop()
		}
		return PullNowResult{Success: false, HasChanges: false, Error: "Conflict detected"}, nil
	}

	if result.Updated {
		s.events.Emit(events.TopicStateUpdated, map[string]any{"hasChanges": true})
	}

	return PullNowResult{Success: result.Success, HasChanges: result.Updated}, nil
}

func (s *Scheduler) continueOnNetworkError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolved.ContinueOnNetworkError != nil && *s.resolved.ContinueOnNetworkError
}

func (s *Scheduler) stopOnConflict() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolved.StopOnConflict != nil && *s.resolved.StopOnConflict
}
