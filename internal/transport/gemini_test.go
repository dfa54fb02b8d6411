package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestNewGeminiRequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), GeminiConfig{APIKey: "  "}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingAPIKey))

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "api_key", cfgErr.Field)
}

func TestNewGeminiDefaultsModel(t *testing.T) {
	g, err := NewGemini(context.Background(), GeminiConfig{APIKey: "test-key"}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, g.Model())

	s, err := g.OpenSession(context.Background(), "system")
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestBuildConfig(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		cfg := buildConfig("", TurnOptions{})
		assert.Nil(t, cfg.SystemInstruction)
		assert.Nil(t, cfg.ThinkingConfig)
		assert.Empty(t, cfg.Tools)
	})

	t.Run("thinking and search", func(t *testing.T) {
		cfg := buildConfig("be precise", TurnOptions{ThinkingBudget: 24576, EnableWebSearch: true})
		require.NotNil(t, cfg.SystemInstruction)
		require.Len(t, cfg.SystemInstruction.Parts, 1)
		assert.Equal(t, "be precise", cfg.SystemInstruction.Parts[0].Text)

		require.NotNil(t, cfg.ThinkingConfig)
		require.NotNil(t, cfg.ThinkingConfig.ThinkingBudget)
		assert.Equal(t, int32(24576), *cfg.ThinkingConfig.ThinkingBudget)

		require.Len(t, cfg.Tools, 1)
		assert.NotNil(t, cfg.Tools[0].GoogleSearch)
	})
}

func TestSourcesFrom(t *testing.T) {
	assert.Nil(t, sourcesFrom(nil))
	assert.Nil(t, sourcesFrom(&genai.GenerateContentResponse{}))

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			GroundingMetadata: &genai.GroundingMetadata{
				GroundingChunks: []*genai.GroundingChunk{
					{Web: &genai.GroundingChunkWeb{URI: "https://go.dev", Title: "Go"}},
					{Web: &genai.GroundingChunkWeb{URI: ""}},
					{},
					{Web: &genai.GroundingChunkWeb{URI: "https://pkg.go.dev", Title: "Packages"}},
				},
			},
		}},
	}
	want := []Source{
		{Title: "Go", URI: "https://go.dev"},
		{Title: "Packages", URI: "https://pkg.go.dev"},
	}
	if diff := cmp.Diff(want, sourcesFrom(resp)); diff != "" {
		t.Errorf("sourcesFrom mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeSources(t *testing.T) {
	a := []Source{{Title: "A", URI: "a"}}
	got := mergeSources(a, []Source{{Title: "A again", URI: "a"}, {Title: "B", URI: "b"}})
	want := []Source{{Title: "A", URI: "a"}, {Title: "B", URI: "b"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mergeSources mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, a, 1)
	assert.Equal(t, a, mergeSources(a, nil))
}

func TestUsageFrom(t *testing.T) {
	assert.True(t, usageFrom(nil).IsZero())
	assert.True(t, usageFrom(&genai.GenerateContentResponse{}).IsZero())

	resp := &genai.GenerateContentResponse{
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     120,
			CandidatesTokenCount: 40,
			ThoughtsTokenCount:   60,
		},
	}
	assert.Equal(t, Usage{InputTokens: 120, OutputTokens: 100}, usageFrom(resp))
}
