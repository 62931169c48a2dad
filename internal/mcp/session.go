package mcp

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session tracks one stdio connection. MCP stdio is a single client, so one
// session lives as long as the process.
type Session struct {
	ID        string
	StartedAt time.Time

	mu           sync.Mutex
	calls        int
	lastActivity time.Time
}

func newSession() *Session {
	now := time.Now()
	return &Session{
		ID:           uuid.New().String(),
		StartedAt:    now,
		lastActivity: now,
	}
}

// Touch records a tool call.
func (s *Session) Touch() {
	s.mu.Lock()
	s.calls++
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// Calls returns the number of tool calls served.
func (s *Session) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Context is the short description attached to every tool response.
func (s *Session) Context(baseURL string) string {
	return fmt.Sprintf("weebctl session %s on %s", s.ID[:8], baseURL)
}
