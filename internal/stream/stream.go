// Package stream accumulates a streamed model turn into its final text.
package stream

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"specarch/internal/transport"
)

// Result is a fully consumed turn.
type Result struct {
	Text string
	// Sources are taken from the last fragment that carried any.
	Sources []transport.Source
	// Usage is the last non-zero token count reported.
	Usage     transport.Usage
	Fragments int
	Elapsed   time.Duration
}

// Error is returned when a stream ends early. Partial holds the text received
// before the failure.
type Error struct {
	Partial   string
	Fragments int
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("stream interrupted after %d fragments: %v", e.Fragments, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Canceled reports whether the stream ended because its context was canceled.
func (e *Error) Canceled() bool {
	return errors.Is(e.Err, context.Canceled)
}

// Consume drains seq, calling onDelta with every non-empty fragment text in
// order. The context is checked between fragments.
func Consume(ctx context.Context, seq iter.Seq2[transport.Fragment, error], onDelta func(string)) (Result, error) {
	start := time.Now()
	var b strings.Builder
	var res Result

	fail := func(err error) (Result, error) {
		return Result{}, &Error{Partial: b.String(), Fragments: res.Fragments, Err: err}
	}

	for frag, err := range seq {
		if err != nil {
			return fail(err)
		}
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		res.Fragments++
		// only the final fragment's sources count
		res.Sources = frag.Sources
		if !frag.Usage.IsZero() {
			res.Usage = frag.Usage
		}
		if frag.Text == "" {
			continue
		}
		b.WriteString(frag.Text)
		if onDelta != nil {
			onDelta(frag.Text)
		}
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	res.Text = b.String()
	res.Elapsed = time.Since(start)
	return res, nil
}
