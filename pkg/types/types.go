// Package types defines the core domain types for Animus: animas, events,
// memories, knowledge, identity, and the audit trail that records identity
// evolution. These types are shared between the storage backends, the
// synthesis pipeline, and the curation engine.
package types

import "time"

// Anima is a long-lived AI agent persona. It owns events, memories,
// knowledge, and a single identity.
type Anima struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Purpose   string     `json:"purpose,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Event is an atomic, timestamped interaction record. Events are the raw,
// unprocessed input to memory synthesis.
type Event struct {
	ID         string     `json:"id"`
	AnimaID    string     `json:"anima_id"`
	EventType  string     `json:"event_type"`
	Role       string     `json:"role,omitempty"`    // user, assistant, system, tool
	Author     string     `json:"author,omitempty"`  // username, tool name, model name
	Summary    string     `json:"summary,omitempty"` // brief summary, preferred in prompts
	Content    string     `json:"content"`
	OccurredAt *time.Time `json:"occurred_at,omitempty"`
	SessionID  string     `json:"session_id,omitempty"`
	DedupeKey  string     `json:"dedupe_key,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}

// Event type constants. Alpha release covers messages only.
const (
	EventMessageIn  = "message.in"
	EventMessageOut = "message.out"
)
