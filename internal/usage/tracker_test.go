package usage

import (
	"sync"
	"testing"

	"specarch/internal/phase"
	"specarch/internal/transport"
)

func TestTracker_TrackAggregates(t *testing.T) {
	tracker := NewTracker("gemini-2.5-flash")

	tracker.Track(phase.Research, transport.Usage{InputTokens: 10, OutputTokens: 5})
	tracker.Track(phase.Research, transport.Usage{InputTokens: 2, OutputTokens: 3})
	tracker.Track(phase.Blueprint, transport.Usage{InputTokens: 100, OutputTokens: 50})

	stats := tracker.Stats()
	if stats.Model != "gemini-2.5-flash" {
		t.Fatalf("Model=%q", stats.Model)
	}
	if stats.Turns != 3 {
		t.Fatalf("Turns=%d, want 3", stats.Turns)
	}
	if stats.Total.Input != 112 || stats.Total.Output != 58 || stats.Total.Total != 170 {
		t.Fatalf("Total=%+v, want input=112 output=58 total=170", stats.Total)
	}
	if got := stats.ByPhase[phase.Research]; got.Total != 20 {
		t.Fatalf("ByPhase[RESEARCH]=%+v, want total=20", got)
	}
	if got := stats.ByPhase[phase.Blueprint]; got.Total != 150 {
		t.Fatalf("ByPhase[BLUEPRINT]=%+v, want total=150", got)
	}
}

func TestTracker_StatsIsACopy(t *testing.T) {
	tracker := NewTracker("")
	tracker.Track(phase.Design, transport.Usage{InputTokens: 1, OutputTokens: 1})

	stats := tracker.Stats()
	stats.ByPhase[phase.Design] = TokenCounts{}

	if got := tracker.Stats().ByPhase[phase.Design]; got.Total != 2 {
		t.Fatalf("tracker state was modified through Stats: %+v", got)
	}
}

func TestTracker_Concurrent(t *testing.T) {
	tracker := NewTracker("")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Track(phase.Tasks, transport.Usage{InputTokens: 1})
		}()
	}
	wg.Wait()

	if got := tracker.Stats().Total.Input; got != 50 {
		t.Fatalf("Total.Input=%d, want 50", got)
	}
}
