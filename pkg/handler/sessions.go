package handler

import (
	"slices"
	"sync"

	"labagent/pkg/agent"
)

// Sessions keeps a bounded conversation history per session key.
type Sessions struct {
	mu      sync.Mutex
	limit   int
	history map[string][]agent.HistoryEntry
}

// NewSessions creates a store keeping at most limit entries per session.
func NewSessions(limit int) *Sessions {
	if limit <= 0 {
		limit = 50
	}
	return &Sessions{
		limit:   limit,
		history: make(map[string][]agent.HistoryEntry),
	}
}

// History returns a copy of the session's entries, oldest first.
func (s *Sessions) History(key string) []agent.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history[key])
}

// Append adds entries and drops the oldest ones beyond the limit.
func (s *Sessions) Append(key string, entries ...agent.HistoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := append(s.history[key], entries...)
	if over := len(h) - s.limit; over > 0 {
		h = slices.Clone(h[over:])
	}
	s.history[key] = h
}

// Reset forgets a session.
func (s *Sessions) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.history, key)
}
