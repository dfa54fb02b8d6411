package conversation

import (
	"time"

	"go.uber.org/zap"

	"specarch/internal/document"
	"specarch/internal/phase"
	"specarch/internal/transport"
	"specarch/internal/usage"
)

const (
	DefaultAdvanceDelay   = 500 * time.Millisecond
	DefaultThinkingBudget = int32(24576)
)

// Outcome classifies how a turn ended.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeError    Outcome = "error"
	OutcomeCanceled Outcome = "canceled"
)

// Recorder receives turn and workflow statistics.
type Recorder interface {
	TurnStarted(p phase.Phase)
	TurnFinished(p phase.Phase, outcome Outcome, fragments int, elapsed time.Duration)
	PhaseChanged(from, to phase.Phase)
	DocumentExtracted(name document.Name)
	TokensUsed(p phase.Phase, u transport.Usage)
}

type nopRecorder struct{}

func (nopRecorder) TurnStarted(phase.Phase)                                {}
func (nopRecorder) TurnFinished(phase.Phase, Outcome, int, time.Duration) {}
func (nopRecorder) PhaseChanged(phase.Phase, phase.Phase)                 {}
func (nopRecorder) DocumentExtracted(document.Name)                       {}
func (nopRecorder) TokensUsed(phase.Phase, transport.Usage)                {}

// Option configures a Machine.
type Option func(*Machine)

func WithLogger(l *zap.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(m *Machine) {
		if r != nil {
			m.recorder = r
		}
	}
}

func WithObserver(o Observer) Option {
	return func(m *Machine) { m.observer = o }
}

// WithAdvanceDelay sets the pause between a detected approval gate and the
// automatic move to the next phase.
func WithAdvanceDelay(d time.Duration) Option {
	return func(m *Machine) {
		if d >= 0 {
			m.advanceDelay = d
		}
	}
}

// WithTurnTimeout bounds every model turn. Zero disables the limit.
func WithTurnTimeout(d time.Duration) Option {
	return func(m *Machine) {
		if d >= 0 {
			m.turnTimeout = d
		}
	}
}

// WithThinkingBudget sets the budget sent while thinking mode is on.
func WithThinkingBudget(n int32) Option {
	return func(m *Machine) {
		if n > 0 {
			m.thinkingBudget = n
		}
	}
}

// WithUsage records the token usage of every completed turn in t.
func WithUsage(t *usage.Tracker) Option {
	return func(m *Machine) { m.usage = t }
}
