// Package transport is the boundary between the conversation engine and the
// language model. A Transport opens sessions configured with a system
// instruction; a Session streams one turn at a time as fragments.
package transport

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

// ErrMissingAPIKey is returned when no credential is configured.
var ErrMissingAPIKey = errors.New("API key not configured")

// Transport creates model sessions.
type Transport interface {
	OpenSession(ctx context.Context, systemInstruction string) (Session, error)
}

// Session is one multi-turn conversation with the model. History is kept by
// the implementation: a turn that fails leaves it untouched.
type Session interface {
	StreamTurn(ctx context.Context, prompt string, opts TurnOptions) iter.Seq2[Fragment, error]
}

// TurnOptions are the per-turn generation settings.
type TurnOptions struct {
	// ThinkingBudget is passed to the model when positive. Zero leaves the
	// model default.
	ThinkingBudget  int32
	EnableWebSearch bool
}

// Fragment is one streamed chunk of a response. Sources carries the grounding
// sources seen so far, when the model reports any. Usage is the latest token
// count reported for the turn.
type Fragment struct {
	Text    string
	Sources []Source
	Usage   Usage
}

// Usage is the token count of one turn. Thinking tokens count as output.
type Usage struct {
	InputTokens  int32
	OutputTokens int32
}

func (u Usage) IsZero() bool {
	return u.InputTokens == 0 && u.OutputTokens == 0
}

// Source is a web page cited by a grounded response.
type Source struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// ConfigError reports an unusable transport setting.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("transport config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
