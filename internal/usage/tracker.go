// Package usage tracks model token usage per workflow phase.
package usage

import (
	"sync"

	"specarch/internal/phase"
	"specarch/internal/transport"
)

// Tracker aggregates token usage. It is safe for concurrent use.
type Tracker struct {
	mu    sync.Mutex
	stats Stats
}

// NewTracker creates an empty tracker. model is only reported back in Stats.
func NewTracker(model string) *Tracker {
	return &Tracker{stats: Stats{
		Model:   model,
		ByPhase: make(map[phase.Phase]TokenCounts),
	}}
}

// Track records the usage of one completed turn.
func (t *Tracker) Track(p phase.Phase, u transport.Usage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats.Turns++
	t.stats.Total.Add(u.InputTokens, u.OutputTokens)

	entry := t.stats.ByPhase[p]
	entry.Add(u.InputTokens, u.OutputTokens)
	t.stats.ByPhase[p] = entry
}

// Stats returns a copy of the aggregated stats.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	stats := t.stats
	stats.ByPhase = make(map[phase.Phase]TokenCounts, len(t.stats.ByPhase))
	for k, v := range t.stats.ByPhase {
		stats.ByPhase[k] = v
	}
	return stats
}
