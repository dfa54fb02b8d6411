package usage

import "specarch/internal/phase"

// Stats holds token counters for one conversation.
type Stats struct {
	Model   string                      `json:"model,omitempty"`
	Turns   int                         `json:"turns"`
	Total   TokenCounts                 `json:"total"`
	ByPhase map[phase.Phase]TokenCounts `json:"by_phase"`
}

// TokenCounts holds input/output sums.
type TokenCounts struct {
	Input  int64 `json:"input"`
	Output int64 `json:"output"`
	Total  int64 `json:"total"`
}

func (tc *TokenCounts) Add(input, output int32) {
	tc.Input += int64(input)
	tc.Output += int64(output)
	tc.Total += int64(input) + int64(output)
}
