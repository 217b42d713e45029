package types

import "time"

// Memory lifecycle states for recall and curation.
const (
	MemoryStateActive   = "active"   // actively recalled, high attention
	MemoryStateDecaying = "decaying" // fading from active recall
	MemoryStateArchived = "archived" // preserved but rarely recalled
)

// ValidMemoryStates contains all valid memory lifecycle state values.
var ValidMemoryStates = []string{
	MemoryStateActive,
	MemoryStateDecaying,
	MemoryStateArchived,
}

// IsValidMemoryState checks if the given state is a valid lifecycle state.
// Empty string is considered valid (means state not set).
func IsValidMemoryState(state string) bool {
	if state == "" {
		return true
	}
	for _, s := range ValidMemoryStates {
		if state == s {
			return true
		}
	}
	return false
}

// Memory is a synthesized, durable summary derived from one or more events.
// Memories are created only by successful synthesis or by curation
// merge/split, mutated by curation or decay, and soft-deleted rather than
// removed so provenance is preserved.
type Memory struct {
	ID      string `json:"id"`
	AnimaID string `json:"anima_id"`

	Summary    string   `json:"summary"`
	Content    string   `json:"content,omitempty"`
	Importance *float64 `json:"importance,omitempty"` // recall/curation weight (0.0-1.0)
	Confidence *float64 `json:"confidence,omitempty"` // stability/certainty (0.0-1.0)
	State      string   `json:"state,omitempty"`

	// Time span of the underlying events (earliest to latest occurred_at).
	TimeStart *time.Time `json:"time_start,omitempty"`
	TimeEnd   *time.Time `json:"time_end,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// ProvenanceLink records an edge from a memory to an event or prior memory
// that contributed to it. SourceEventID and SourceMemoryID are mutually
// exclusive.
type ProvenanceLink struct {
	ID             string    `json:"id"`
	MemoryID       string    `json:"memory_id"`
	SourceEventID  string    `json:"source_event_id,omitempty"`
	SourceMemoryID string    `json:"source_memory_id,omitempty"`
	LinkStrength   float64   `json:"link_strength"`
	CreatedAt      time.Time `json:"created_at"`
}

// Knowledge is a longer-lived fact or principle distilled from memories.
// The synthesis core treats knowledge as read-only curation context.
type Knowledge struct {
	ID            string     `json:"id"`
	AnimaID       string     `json:"anima_id"`
	KnowledgeType string     `json:"knowledge_type,omitempty"`
	Summary       string     `json:"summary"`
	Content       string     `json:"content,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}
