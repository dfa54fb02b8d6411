package transport

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// DefaultModel is used when GeminiConfig.Model is empty.
const DefaultModel = "gemini-2.5-flash"

// GeminiConfig configures the Gemini transport.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// Gemini is a Transport backed by the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewGemini creates a Gemini API client. A missing key is reported as a
// ConfigError wrapping ErrMissingAPIKey.
func NewGemini(ctx context.Context, cfg GeminiConfig, logger *zap.Logger) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &ConfigError{Field: "api_key", Err: ErrMissingAPIKey}
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &Gemini{client: client, model: cfg.Model, logger: logger}, nil
}

// Model returns the configured model name.
func (g *Gemini) Model() string { return g.model }

// OpenSession starts an empty conversation history.
func (g *Gemini) OpenSession(_ context.Context, systemInstruction string) (Session, error) {
	return &geminiSession{
		client: g.client,
		model:  g.model,
		system: systemInstruction,
		logger: g.logger,
	}, nil
}

type geminiSession struct {
	client *genai.Client
	model  string
	system string
	logger *zap.Logger

	mu      sync.Mutex
	history []*genai.Content
}

func (s *geminiSession) StreamTurn(ctx context.Context, prompt string, opts TurnOptions) iter.Seq2[Fragment, error] {
	return func(yield func(Fragment, error) bool) {
		s.mu.Lock()
		contents := make([]*genai.Content, 0, len(s.history)+1)
		contents = append(contents, s.history...)
		s.mu.Unlock()
		contents = append(contents, genai.NewContentFromText(prompt, genai.RoleUser))

		s.logger.Debug("streaming turn",
			zap.String("model", s.model),
			zap.Int("history", len(contents)-1),
			zap.Int("prompt_len", len(prompt)),
			zap.Int32("thinking_budget", opts.ThinkingBudget),
			zap.Bool("web_search", opts.EnableWebSearch))

		var reply strings.Builder
		var sources []Source
		var usage Usage
		for resp, err := range s.client.Models.GenerateContentStream(ctx, s.model, contents, buildConfig(s.system, opts)) {
			if err != nil {
				var apiErr genai.APIError
				if errors.As(err, &apiErr) {
					s.logger.Warn("gemini stream failed",
						zap.Int("code", apiErr.Code),
						zap.String("status", apiErr.Status))
				}
				yield(Fragment{}, fmt.Errorf("gemini stream: %w", err))
				return
			}
			text := resp.Text()
			reply.WriteString(text)
			sources = mergeSources(sources, sourcesFrom(resp))
			if u := usageFrom(resp); !u.IsZero() {
				usage = u
			}
			if !yield(Fragment{Text: text, Sources: sources, Usage: usage}, nil) {
				return
			}
		}

		s.mu.Lock()
		s.history = append(s.history,
			genai.NewContentFromText(prompt, genai.RoleUser),
			genai.NewContentFromText(reply.String(), genai.RoleModel))
		s.mu.Unlock()
	}
}

// buildConfig maps turn options onto the request config.
func buildConfig(system string, opts TurnOptions) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if opts.ThinkingBudget > 0 {
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(opts.ThinkingBudget)}
	}
	if opts.EnableWebSearch {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	return cfg
}

// sourcesFrom collects the web grounding chunks of the first candidate.
func sourcesFrom(resp *genai.GenerateContentResponse) []Source {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil
	}
	meta := resp.Candidates[0].GroundingMetadata
	if meta == nil {
		return nil
	}
	var out []Source
	for _, chunk := range meta.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		out = append(out, Source{Title: chunk.Web.Title, URI: chunk.Web.URI})
	}
	return out
}

// usageFrom reads the token counts of a streamed chunk. The API reports
// cumulative counts, so the latest non-zero value wins.
func usageFrom(resp *genai.GenerateContentResponse) Usage {
	if resp == nil || resp.UsageMetadata == nil {
		return Usage{}
	}
	md := resp.UsageMetadata
	return Usage{
		InputTokens:  md.PromptTokenCount,
		OutputTokens: md.CandidatesTokenCount + md.ThoughtsTokenCount,
	}
}

// mergeSources appends sources not already present, keyed by URI.
func mergeSources(have, more []Source) []Source {
	if len(more) == 0 {
		return have
	}
	seen := make(map[string]bool, len(have))
	for _, s := range have {
		seen[s.URI] = true
	}
	out := append([]Source(nil), have...)
	for _, s := range more {
		if seen[s.URI] {
			continue
		}
		seen[s.URI] = true
		out = append(out, s)
	}
	return out
}
