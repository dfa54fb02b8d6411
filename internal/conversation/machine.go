// Package conversation drives the specification workflow: it owns the message
// log, the phase, and the generated documents, streams model turns one at a
// time, and moves to the next phase when a response ends with an approval
// gate.
package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"specarch/internal/document"
	"specarch/internal/extract"
	"specarch/internal/phase"
	"specarch/internal/stream"
	"specarch/internal/transport"
	"specarch/internal/usage"
)

// Machine is safe for concurrent use. At most one model turn streams at a time.
type Machine struct {
	session        transport.Session
	logger         *zap.Logger
	recorder       Recorder
	observer       Observer
	usage          *usage.Tracker
	advanceDelay   time.Duration
	turnTimeout    time.Duration
	thinkingBudget int32

	ctx    context.Context
	cancel context.CancelFunc

	// emitMu orders observer dispatch; it is always taken before mu.
	emitMu sync.Mutex
	mu     sync.Mutex
	state  State
	closed bool

	cancelTurn context.CancelFunc
	timer      *time.Timer
	advanceGen uint64
	changed    chan struct{}

	// background tracks scheduled advances and the turns they start.
	background sync.WaitGroup
}

// turn is one model stream owned by the machine.
type turn struct {
	ctx     context.Context
	release func()
	phase   phase.Phase
	index   int
	prompt  string
	opts    transport.TurnOptions
}

// New creates a machine over session. A nil session is allowed; sending then
// fails with ErrNoSession.
func New(session transport.Session, opts ...Option) *Machine {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Machine{
		session:        session,
		logger:         zap.NewNop(),
		recorder:       nopRecorder{},
		advanceDelay:   DefaultAdvanceDelay,
		thinkingBudget: DefaultThinkingBudget,
		ctx:            ctx,
		cancel:         cancel,
		state:          newState(),
		changed:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Snapshot returns a deep copy of the current state.
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// Submit is the single free-text entry point: "execute" finalizes a complete
// specification, anything else is sent to the model.
func (m *Machine) Submit(ctx context.Context, text string) error {
	m.mu.Lock()
	p := m.state.Phase
	m.mu.Unlock()

	if p == phase.Complete && strings.EqualFold(strings.TrimSpace(text), ExecuteCommand) {
		return m.FinalizeExecution()
	}
	return m.SendUserMessage(ctx, text)
}

// SendUserMessage appends the user's message and streams the model's reply.
// It blocks until the turn ends. Rejections return a sentinel error without
// touching the state; a failed turn returns the transport error after it has
// been recorded in the log.
func (m *Machine) SendUserMessage(ctx context.Context, text string) error {
	var t *turn
	err := m.apply(func() ([]Event, error) {
		switch {
		case m.closed:
			return nil, ErrClosed
		case m.session == nil:
			return nil, ErrNoSession
		case strings.TrimSpace(text) == "":
			return nil, ErrBlankInput
		case m.state.Loading:
			return nil, ErrBusy
		case m.state.Phase == phase.Execution:
			return nil, ErrFinalized
		}

		evs := []Event{m.appendLocked(Message{Role: RoleUser, Content: text})}
		p := m.state.Phase.Effective()
		if p != m.state.Phase {
			evs = append(evs, m.setPhaseLocked(p))
		}
		m.state.LastError = nil

		var ev Event
		t, ev = m.beginTurnLocked(ctx, p, BuildPrompt(m.state.Documents, p, text))
		return append(evs, ev), nil
	})
	if err != nil {
		return err
	}
	return m.runTurn(t)
}

// Advance moves to p and, unless p is COMPLETE, streams its instruction.
// A pending automatic advance is dropped.
func (m *Machine) Advance(ctx context.Context, p phase.Phase) error {
	var t *turn
	err := m.apply(func() ([]Event, error) {
		switch {
		case m.closed:
			return nil, ErrClosed
		case !p.Valid() || p == phase.Initial || p == phase.Execution:
			return nil, ErrInvalidAdvance
		case m.state.Loading:
			return nil, ErrBusy
		case p != phase.Complete && m.session == nil:
			return nil, ErrNoSession
		}
		m.stopAdvanceLocked()
		var evs []Event
		t, evs = m.advanceLocked(ctx, p)
		return evs, nil
	})
	if err != nil || t == nil {
		return err
	}
	return m.runTurn(t)
}

// FinalizeExecution closes the workflow. Only valid in COMPLETE.
func (m *Machine) FinalizeExecution() error {
	return m.apply(func() ([]Event, error) {
		switch {
		case m.closed:
			return nil, ErrClosed
		case m.state.Loading:
			return nil, ErrBusy
		case m.state.Phase != phase.Complete:
			return nil, ErrNotComplete
		}
		return []Event{
			m.appendLocked(Message{Role: RoleUser, Content: ExecuteCommand}),
			m.appendLocked(Message{Role: RoleModel, Content: executionMessage}),
			m.setPhaseLocked(phase.Execution),
		}, nil
	})
}

func (m *Machine) SetActiveDocument(name document.Name) error {
	if !name.Valid() {
		return document.ErrUnknown
	}
	return m.apply(func() ([]Event, error) {
		m.state.ActiveDocument = name
		return []Event{{Kind: EventActiveDocumentChanged, Document: name}}, nil
	})
}

func (m *Machine) SetThinkingMode(enabled bool) {
	_ = m.apply(func() ([]Event, error) {
		m.state.ThinkingMode = enabled
		return []Event{{Kind: EventThinkingModeChanged, Enabled: enabled}}, nil
	})
}

// ToggleEditing flips the edit flag of name.
func (m *Machine) ToggleEditing(name document.Name) error {
	if !name.Valid() {
		return document.ErrUnknown
	}
	return m.apply(func() ([]Event, error) {
		on := !m.state.Editing[name]
		m.state.Editing[name] = on
		return []Event{{Kind: EventEditingToggled, Document: name, Enabled: on}}, nil
	})
}

// UpdateDocumentContent replaces the content of name unconditionally.
func (m *Machine) UpdateDocumentContent(name document.Name, content string) error {
	if !name.Valid() {
		return document.ErrUnknown
	}
	return m.apply(func() ([]Event, error) {
		m.state.Documents[name] = content
		return []Event{{Kind: EventDocumentChanged, Document: name, Content: content}}, nil
	})
}

// Abort cancels the streaming turn, if any. The turn then ends through the
// error path.
func (m *Machine) Abort() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancelTurn != nil {
		m.cancelTurn()
	}
}

// Close cancels any streaming turn and pending advance, then waits for
// background turns to return. Further operations fail with ErrClosed.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.stopAdvanceLocked()
	if m.cancelTurn != nil {
		m.cancelTurn()
	}
	m.signalLocked()
	m.mu.Unlock()

	m.cancel()
	m.background.Wait()
}

// Wait blocks until no turn is streaming and no advance is pending.
func (m *Machine) Wait(ctx context.Context) error {
	for {
		m.mu.Lock()
		idle := !m.state.Loading && m.timer == nil
		ch := m.changed
		m.mu.Unlock()
		if idle {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// apply runs fn under the state lock and publishes its events in order.
func (m *Machine) apply(fn func() ([]Event, error)) error {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	evs, err := fn()
	m.mu.Unlock()
	if err != nil {
		return err
	}
	if m.observer != nil {
		for _, ev := range evs {
			m.observer(ev)
		}
	}
	return nil
}

func (m *Machine) signalLocked() {
	close(m.changed)
	m.changed = make(chan struct{})
}

func (m *Machine) appendLocked(msg Message) Event {
	m.state.Messages = append(m.state.Messages, msg)
	i := len(m.state.Messages) - 1
	return Event{Kind: EventMessageAppended, Index: i, Message: msg.clone()}
}

func (m *Machine) setPhaseLocked(p phase.Phase) Event {
	prev := m.state.Phase
	m.state.Phase = p
	m.recorder.PhaseChanged(prev, p)
	m.logger.Info("phase changed", zap.String("from", prev.String()), zap.String("to", p.String()))
	return Event{Kind: EventPhaseChanged, Phase: p, Previous: prev}
}

// advanceLocked stores p and either appends the closing message or prepares
// the turn that streams p's instruction.
func (m *Machine) advanceLocked(parent context.Context, p phase.Phase) (*turn, []Event) {
	evs := []Event{m.setPhaseLocked(p)}
	if p == phase.Complete {
		evs = append(evs, m.appendLocked(Message{Role: RoleModel, Content: completeMessage}))
		return nil, evs
	}
	evs = append(evs, m.appendLocked(Message{Role: RoleModel, Content: "*Automatically proceeding to " + p.Title() + "...*"}))
	t, ev := m.beginTurnLocked(parent, p, phase.Instruction(p))
	return t, append(evs, ev)
}

// beginTurnLocked appends the placeholder and marks the machine busy.
func (m *Machine) beginTurnLocked(parent context.Context, p phase.Phase, prompt string) (*turn, Event) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(m.ctx, cancel)
	release := func() {
		stop()
		cancel()
	}
	if m.turnTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, m.turnTimeout)
		inner := release
		release = func() {
			cancelTimeout()
			inner()
		}
	}

	opts := transport.TurnOptions{EnableWebSearch: p.UsesWebSearch()}
	if m.state.ThinkingMode {
		opts.ThinkingBudget = m.thinkingBudget
	}

	ev := m.appendLocked(Message{Role: RoleModel})
	m.state.Loading = true
	m.cancelTurn = cancel
	m.signalLocked()

	return &turn{
		ctx:     ctx,
		release: release,
		phase:   p,
		index:   ev.Index,
		prompt:  prompt,
		opts:    opts,
	}, ev
}

// runTurn streams t to completion and records the outcome.
func (m *Machine) runTurn(t *turn) error {
	defer t.release()

	m.recorder.TurnStarted(t.phase)
	m.logger.Debug("turn started",
		zap.String("phase", t.phase.String()),
		zap.Int("prompt_len", len(t.prompt)),
		zap.Bool("web_search", t.opts.EnableWebSearch))

	start := time.Now()
	seq := m.session.StreamTurn(t.ctx, t.prompt, t.opts)
	res, err := stream.Consume(t.ctx, seq, func(delta string) {
		_ = m.apply(func() ([]Event, error) {
			m.state.Messages[t.index].Content += delta
			return []Event{{Kind: EventStreamDelta, Index: t.index, Delta: delta}}, nil
		})
	})
	if err != nil {
		m.failTurn(t, err, time.Since(start))
		return err
	}
	m.completeTurn(t, res)
	return nil
}

func (m *Machine) completeTurn(t *turn, res stream.Result) {
	_ = m.apply(func() ([]Event, error) {
		var evs []Event
		display := res.Text
		if name, ok := t.phase.OutputDocument(); ok {
			ex := extract.Document(res.Text, name)
			if ex.Found {
				m.state.Documents[name] = ex.Content
				display = ex.Display
				m.recorder.DocumentExtracted(name)
				evs = append(evs, Event{Kind: EventDocumentChanged, Document: name, Content: ex.Content})
			}
		}

		msg := &m.state.Messages[t.index]
		msg.Content = display
		if t.phase.UsesWebSearch() && len(res.Sources) > 0 {
			msg.Sources = append([]transport.Source(nil), res.Sources...)
		}
		evs = append(evs, Event{Kind: EventMessageFinalized, Index: t.index, Message: msg.clone()})

		m.state.Loading = false
		m.cancelTurn = nil

		if phrase, gate := extract.DetectApproval(res.Text); gate && t.phase.AutoAdvances() && !m.closed {
			next := t.phase.Next()
			m.logger.Debug("approval gate detected",
				zap.String("phase", t.phase.String()),
				zap.String("phrase", phrase),
				zap.String("next", next.String()))
			m.scheduleAdvanceLocked(next)
			evs = append(evs, Event{Kind: EventAdvanceScheduled, Phase: next})
		}
		m.signalLocked()
		return evs, nil
	})
	if !res.Usage.IsZero() {
		m.recorder.TokensUsed(t.phase, res.Usage)
		if m.usage != nil {
			m.usage.Track(t.phase, res.Usage)
		}
	}
	m.recorder.TurnFinished(t.phase, OutcomeOK, res.Fragments, res.Elapsed)
}

func (m *Machine) failTurn(t *turn, err error, elapsed time.Duration) {
	outcome := OutcomeError
	fragments := 0
	var se *stream.Error
	if errors.As(err, &se) {
		fragments = se.Fragments
		if se.Canceled() {
			outcome = OutcomeCanceled
		}
	}
	m.logger.Warn("turn failed",
		zap.String("phase", t.phase.String()),
		zap.Int("fragments", fragments),
		zap.Error(err))

	_ = m.apply(func() ([]Event, error) {
		m.state.LastError = err
		evs := []Event{{Kind: EventMessageFinalized, Index: t.index, Message: m.state.Messages[t.index].clone()}}
		evs = append(evs, m.appendLocked(Message{Role: RoleModel, Content: "Error: " + describe(err), Error: true}))
		evs = append(evs, Event{Kind: EventError, Err: err})
		m.state.Loading = false
		m.cancelTurn = nil
		m.signalLocked()
		return evs, nil
	})
	m.recorder.TurnFinished(t.phase, outcome, fragments, elapsed)
}

// describe renders err for the inline error message.
func describe(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "generation canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "generation timed out"
	}
	var se *stream.Error
	if errors.As(err, &se) {
		return se.Err.Error()
	}
	return err.Error()
}

func (m *Machine) scheduleAdvanceLocked(next phase.Phase) {
	m.stopAdvanceLocked()
	gen := m.advanceGen
	m.background.Add(1)
	m.timer = time.AfterFunc(m.advanceDelay, func() { m.fireAdvance(next, gen) })
}

// stopAdvanceLocked drops the pending advance. A callback already running
// sees the generation change and returns.
func (m *Machine) stopAdvanceLocked() {
	if m.timer != nil {
		if m.timer.Stop() {
			m.background.Done()
		}
		m.timer = nil
		m.signalLocked()
	}
	m.advanceGen++
}

func (m *Machine) fireAdvance(next phase.Phase, gen uint64) {
	rescheduled := false
	defer func() {
		if !rescheduled {
			m.background.Done()
		}
	}()

	var t *turn
	_ = m.apply(func() ([]Event, error) {
		if m.closed || gen != m.advanceGen {
			return nil, nil
		}
		if m.state.Loading {
			m.timer = time.AfterFunc(m.advanceDelay, func() { m.fireAdvance(next, gen) })
			rescheduled = true
			return nil, nil
		}
		m.timer = nil
		var evs []Event
		t, evs = m.advanceLocked(m.ctx, next)
		m.signalLocked()
		return evs, nil
	})
	if t != nil {
		_ = m.runTurn(t)
	}
}
