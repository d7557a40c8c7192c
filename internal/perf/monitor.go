// Package perf implements the named-phase stopwatch registry used to measure
// startup against its budget.
package perf

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// StartupPhase is the phase name tracked by the startup convenience reads.
const StartupPhase = "app-startup"

// StartupBudget is the advisory startup SLO. Exceeding it logs a warning,
// never fails anything.
const StartupBudget = 3000 * time.Millisecond

// PhaseMetrics describes a single timed phase.
type PhaseMetrics struct {
	Phase     string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// Monitor is a process-wide phase registry. It is constructed once by the
// composition root and injected; the phase map is mutex-protected so
// concurrent phases on distinct names are independent.
type Monitor struct {
	logger *slog.Logger

	mu     sync.Mutex
	phases map[string]PhaseMetrics
}

// NewMonitor creates an empty monitor.
func NewMonitor(logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{logger: logger, phases: make(map[string]PhaseMetrics)}
}

// StartPhase records the start of a named phase, overwriting any prior entry
// for that name.
func (m *Monitor) StartPhase(phase string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phases[phase] = PhaseMetrics{Phase: phase, StartTime: time.Now()}
}

// EndPhase computes and stores the duration of a phase. Ending a phase that
// was never started is non-fatal: it logs a warning and returns 0.
func (m *Monitor) EndPhase(phase string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	metric, ok := m.phases[phase]
	if !ok {
		m.logger.Warn("performance phase was not started", slog.String("phase", phase))
		return 0
	}
	metric.EndTime = time.Now()
	metric.Duration = metric.EndTime.Sub(metric.StartTime)
	m.phases[phase] = metric
	return metric.Duration
}

// PhaseMetrics returns the metrics for one phase.
func (m *Monitor) PhaseMetrics(phase string) (PhaseMetrics, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	metric, ok := m.phases[phase]
	return metric, ok
}

// AllMetrics returns a copy of every recorded phase.
func (m *Monitor) AllMetrics() map[string]PhaseMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]PhaseMetrics, len(m.phases))
	for k, v := range m.phases {
		out[k] = v
	}
	return out
}

// TotalStartupTime returns the duration of the app-startup phase, 0 when the
// phase has not completed.
func (m *Monitor) TotalStartupTime() time.Duration {
	metric, ok := m.PhaseMetrics(StartupPhase)
	if !ok {
		return 0
	}
	return metric.Duration
}

// StartupWithinBudget reports whether the app-startup phase finished inside
// the 3 second budget.
func (m *Monitor) StartupWithinBudget() bool {
	return m.TotalStartupTime() <= StartupBudget
}

// Report logs a human-readable summary of every completed phase. Purely
// diagnostic.
func (m *Monitor) Report() {
	for phase, metric := range m.AllMetrics() {
		if metric.Duration == 0 {
			continue
		}
		m.logger.Info("phase timing",
			slog.String("phase", phase),
			slog.Int64("duration_ms", metric.Duration.Milliseconds()))
	}
	if total := m.TotalStartupTime(); total > 0 {
		m.logger.Info("startup timing",
			slog.Int64("total_ms", total.Milliseconds()),
			slog.Int64("budget_ms", StartupBudget.Milliseconds()),
			slog.Bool("within_budget", m.StartupWithinBudget()))
	}
}

// Reset clears every recorded phase. Phases never expire on their own.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phases = make(map[string]PhaseMetrics)
}

// Measure runs op, timing it regardless of outcome. The duration is logged;
// on failure the original error is returned after logging, never swallowed.
func Measure[T any](ctx context.Context, logger *slog.Logger, label string, op func(context.Context) (T, error)) (T, time.Duration, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()
	result, err := op(ctx)
	elapsed := time.Since(start)
	if err != nil {
		logger.Error("operation failed",
			slog.String("operation", label),
			slog.Int64("duration_ms", elapsed.Milliseconds()),
			slog.String("error", err.Error()))
		return result, elapsed, err
	}
	logger.Debug("operation timed",
		slog.String("operation", label),
		slog.Int64("duration_ms", elapsed.Milliseconds()))
	return result, elapsed, nil
}
