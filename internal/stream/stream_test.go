package stream

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specarch/internal/transport"
	"specarch/internal/transport/transporttest"
)

func turn(t *testing.T, ctx context.Context, tt transporttest.Turn) iter.Seq2[transport.Fragment, error] {
	t.Helper()
	tr := transporttest.New(tt)
	s, err := tr.OpenSession(ctx, "")
	require.NoError(t, err)
	return s.StreamTurn(ctx, "prompt", transport.TurnOptions{})
}

func TestConsumeAccumulates(t *testing.T) {
	ctx := context.Background()
	var deltas []string
	tt := transporttest.Text("Hel", "", "lo")
	tt.Fragments[1].Usage = transport.Usage{InputTokens: 7, OutputTokens: 1}
	tt.Fragments[2].Sources = []transport.Source{{Title: "Go", URI: "https://go.dev"}}

	res, err := Consume(ctx, turn(t, ctx, tt), func(d string) { deltas = append(deltas, d) })
	require.NoError(t, err)
	assert.Equal(t, "Hello", res.Text)
	assert.Equal(t, []string{"Hel", "lo"}, deltas)
	assert.Equal(t, 3, res.Fragments)
	assert.Len(t, res.Sources, 1)
	assert.Equal(t, transport.Usage{InputTokens: 7, OutputTokens: 1}, res.Usage)
}

func TestConsumeTakesSourcesFromFinalFragment(t *testing.T) {
	ctx := context.Background()
	tt := transporttest.Text("a", "b")
	tt.Fragments[0].Sources = []transport.Source{{Title: "Go", URI: "https://go.dev"}}

	res, err := Consume(ctx, turn(t, ctx, tt), nil)
	require.NoError(t, err)
	assert.Equal(t, "ab", res.Text)
	assert.Empty(t, res.Sources)
}

func TestConsumeKeepsPartialOnError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	tt := transporttest.Text("a", "b", "c")
	tt.Err = boom
	tt.ErrAfter = 2

	_, err := Consume(ctx, turn(t, ctx, tt), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))

	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "ab", se.Partial)
	assert.Equal(t, 2, se.Fragments)
	assert.False(t, se.Canceled())
}

func TestConsumeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hold := make(chan struct{})
	tt := transporttest.Text("first", "second")
	tt.Hold = hold

	var got []string
	_, err := Consume(ctx, turn(t, ctx, tt), func(d string) {
		got = append(got, d)
		cancel()
	})
	require.Error(t, err)

	var se *Error
	require.True(t, errors.As(err, &se))
	assert.True(t, se.Canceled())
	assert.Equal(t, "first", se.Partial)
	assert.Equal(t, []string{"first"}, got)
}
