package mqtt

import (
	"sync"
	"time"
)

// Stats accumulates runtime counters published by the presence
// Publisher. It is safe for concurrent use: the agent loop records
// turns while the publish loop reads snapshots.
type Stats struct {
	mu           sync.Mutex
	started      time.Time
	turns        int64
	inputTokens  int64
	outputTokens int64
	lastTurn     time.Time
}

// NewStats creates a Stats anchored at the current time.
func NewStats() *Stats {
	return &Stats{started: time.Now()}
}

// RecordTurn implements agent.Recorder.
func (s *Stats) RecordTurn(inputTokens, outputTokens int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns++
	s.inputTokens += int64(inputTokens)
	s.outputTokens += int64(outputTokens)
	s.lastTurn = time.Now()
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() (turns, inputTokens, outputTokens int64, lastTurn time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turns, s.inputTokens, s.outputTokens, s.lastTurn
}

// Uptime returns the time elapsed since the Stats was created.
func (s *Stats) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.started)
}
