// Package startup orchestrates the launch sequence: store initialization,
// settings load, timing against the startup budget, and the auth-gate decision.
package startup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/dagaz/internal/perf"
	"github.com/starford/dagaz/internal/settings"
	"github.com/starford/dagaz/internal/store"
)

// State of the startup sequence.
type State string

// Startup states.
const (
	StateNotStarted State = "not_started"
	StateRunning    State = "running"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Result is the outcome of one launch attempt, consumed by the presentation
// layer to pick the post-splash route.
type Result struct {
	Success            bool          `json:"success"`
	Error              string        `json:"error,omitempty"`
	RequiresAuth       bool          `json:"requires_auth"`
	InitializationTime time.Duration `json:"initialization_time_ms"`
}

// TransitionFunc is notified after every state change.
type TransitionFunc func(State)

// Service runs the startup sequence exactly once per launch attempt. It is an
// explicit state machine owned by the composition root; Recover is the
// out-of-band retry path and is never invoked automatically.
type Service struct {
	store        *store.Store
	settings     *settings.Repository
	monitor      *perf.Monitor
	logger       *slog.Logger
	onTransition TransitionFunc

	mu    sync.Mutex
	state State
	last  *Result
}

// NewService creates a startup service in the NotStarted state. onTransition
// may be nil.
func NewService(st *store.Store, sr *settings.Repository, mon *perf.Monitor, logger *slog.Logger, onTransition TransitionFunc) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:        st,
		settings:     sr,
		monitor:      mon,
		logger:       logger,
		onTransition: onTransition,
		state:        StateNotStarted,
	}
}

// State returns the current startup state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsInitialized reports whether a launch attempt completed successfully.
func (s *Service) IsInitialized() bool {
	return s.State() == StateSucceeded
}

func (s *Service) transition(next State) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
	if s.onTransition != nil {
		s.onTransition(next)
	}
}

// Initialize runs the startup sequence and never returns a Go error: any
// failure is folded into the Result with Success=false and RequiresAuth=false.
// The fail-open lock gate is deliberate — a user with app lock enabled must
// not be locked out of a misconfigured app.
func (s *Service) Initialize(ctx context.Context) Result {
	s.monitor.StartPhase(perf.StartupPhase)
	s.transition(StateRunning)

	result := s.run(ctx)

	elapsed := s.monitor.EndPhase(perf.StartupPhase)
	result.InitializationTime = elapsed

	if result.Success {
		s.transition(StateSucceeded)
		if !s.monitor.StartupWithinBudget() {
			s.logger.Warn("startup exceeded budget",
				slog.Int64("elapsed_ms", elapsed.Milliseconds()),
				slog.Int64("budget_ms", perf.StartupBudget.Milliseconds()))
		}
	} else {
		s.transition(StateFailed)
	}
	s.monitor.Report()

	s.mu.Lock()
	s.last = &result
	s.mu.Unlock()
	return result
}

// LastResult returns the outcome of the most recent launch attempt, or nil
// before the first Initialize completes.
func (s *Service) LastResult() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	copied := *s.last
	return &copied
}

func (s *Service) run(ctx context.Context) Result {
	if _, _, err := perf.Measure(ctx, s.logger, "store initialization",
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.store.Initialize(ctx)
		}); err != nil {
		s.logger.Error("store initialization failed", slog.String("error", err.Error()))
		return Result{Success: false, Error: err.Error(), RequiresAuth: false}
	}

	cfg, _, err := perf.Measure(ctx, s.logger, "settings load",
		func(ctx context.Context) (settings.Settings, error) {
			return s.settings.Get(ctx)
		})
	if err != nil {
		s.logger.Error("settings load failed", slog.String("error", err.Error()))
		return Result{Success: false, Error: err.Error(), RequiresAuth: false}
	}

	// Advisory completeness check: missing keys are logged, never fatal.
	if missing, mErr := s.settings.MissingKeys(ctx); mErr == nil {
		for _, key := range missing {
			s.logger.Warn("missing setting", slog.String("key", key))
		}
	}

	return Result{Success: true, RequiresAuth: cfg.AppLockEnabled}
}

// HealthCheck re-verifies that the database answers a trivial query and that
// the settings can be read. It reports a boolean and never returns an error.
func (s *Service) HealthCheck(ctx context.Context) bool {
	conn, err := s.store.Handle()
	if err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		return false
	}
	var one int
	if err := conn.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		return false
	}
	if _, err := s.settings.Get(ctx); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		return false
	}
	return true
}

// Recover closes and re-opens the store and reloads the settings. It can move
// the service from Failed to Succeeded but does not replay the startup phase
// timing.
func (s *Service) Recover(ctx context.Context) bool {
	s.logger.Info("attempting startup recovery")

	if err := s.store.Close(); err != nil {
		s.logger.Warn("recovery close failed", slog.String("error", err.Error()))
	}
	if err := s.store.Initialize(ctx); err != nil {
		s.logger.Error("recovery failed", slog.String("error", err.Error()))
		return false
	}
	if _, err := s.settings.Get(ctx); err != nil {
		s.logger.Error("recovery failed", slog.String("error", err.Error()))
		return false
	}

	s.transition(StateSucceeded)
	s.logger.Info("recovery succeeded")
	return true
}
