// Package transporttest provides a scripted in-memory Transport for tests.
package transporttest

import (
	"context"
	"errors"
	"iter"
	"sync"

	"specarch/internal/transport"
)

// ErrNoTurns is yielded when a turn is requested but none are queued.
var ErrNoTurns = errors.New("transporttest: no scripted turns left")

// Turn is one scripted model response.
type Turn struct {
	Fragments []transport.Fragment
	// Err is yielded after ErrAfter fragments have been sent.
	Err      error
	ErrAfter int
	// Hold, when set, blocks after the first fragment until it is closed or
	// the turn context ends.
	Hold <-chan struct{}
}

// Call records one StreamTurn invocation.
type Call struct {
	Prompt  string
	Options transport.TurnOptions
}

// Scripted replays queued turns in order across all of its sessions.
type Scripted struct {
	mu      sync.Mutex
	turns   []Turn
	calls   []Call
	systems []string
	openErr error
}

// New returns a Scripted transport with the given turns queued.
func New(turns ...Turn) *Scripted {
	return &Scripted{turns: turns}
}

// Text builds a turn that streams the given chunks.
func Text(chunks ...string) Turn {
	t := Turn{}
	for _, c := range chunks {
		t.Fragments = append(t.Fragments, transport.Fragment{Text: c})
	}
	return t
}

// Queue appends more turns.
func (s *Scripted) Queue(turns ...Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turns...)
}

// FailOpen makes OpenSession return err.
func (s *Scripted) FailOpen(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openErr = err
}

// Calls returns the recorded turns so far.
func (s *Scripted) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// SystemInstructions returns the instruction of every opened session.
func (s *Scripted) SystemInstructions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.systems...)
}

func (s *Scripted) OpenSession(_ context.Context, systemInstruction string) (transport.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.systems = append(s.systems, systemInstruction)
	return &session{parent: s}, nil
}

func (s *Scripted) next(prompt string, opts transport.TurnOptions) (Turn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Prompt: prompt, Options: opts})
	if len(s.turns) == 0 {
		return Turn{}, false
	}
	t := s.turns[0]
	s.turns = s.turns[1:]
	return t, true
}

type session struct {
	parent *Scripted
}

func (s *session) StreamTurn(ctx context.Context, prompt string, opts transport.TurnOptions) iter.Seq2[transport.Fragment, error] {
	return func(yield func(transport.Fragment, error) bool) {
		turn, ok := s.parent.next(prompt, opts)
		if !ok {
			yield(transport.Fragment{}, ErrNoTurns)
			return
		}
		for i, f := range turn.Fragments {
			if turn.Err != nil && i == turn.ErrAfter {
				yield(transport.Fragment{}, turn.Err)
				return
			}
			if err := ctx.Err(); err != nil {
				yield(transport.Fragment{}, err)
				return
			}
			if !yield(f, nil) {
				return
			}
			if i == 0 && turn.Hold != nil {
				select {
				case <-turn.Hold:
				case <-ctx.Done():
					yield(transport.Fragment{}, ctx.Err())
					return
				}
			}
		}
		if turn.Err != nil {
			yield(transport.Fragment{}, turn.Err)
		}
	}
}
