// Package storage provides composable storage interfaces for the Animus
// system.
//
// The storage layer is designed with small, focused interfaces that can be
// implemented independently and composed as needed. The synthesis pipeline
// and curation engine consume these interfaces and never touch SQL directly,
// so backends (SQLite for single-node, Postgres for hosted deployments) stay
// interchangeable.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/scrypster/animus/pkg/types"
)

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDuplicateEvent indicates that an event with the same dedupe key
	// already exists for the anima. First writer wins; the stored event is
	// unchanged.
	ErrDuplicateEvent = errors.New("duplicate event")
)

// AnimaStore provides CRUD operations for animas.
type AnimaStore interface {
	// CreateAnima creates a new anima and returns it with ID and timestamps set.
	CreateAnima(ctx context.Context, anima *types.Anima) error

	// GetAnima retrieves an anima by ID.
	// Returns ErrNotFound if the anima doesn't exist or is soft-deleted.
	GetAnima(ctx context.Context, id string) (*types.Anima, error)

	// ListAnimas returns all non-deleted animas ordered by creation time.
	ListAnimas(ctx context.Context) ([]*types.Anima, error)
}

// EventStore provides the event reads the accumulation scorer and event
// collector depend on, plus deduplicated event creation.
type EventStore interface {
	// CreateEvent stores a new event. When the event carries a dedupe key
	// and another event with the same (anima_id, dedupe_key) already exists,
	// CreateEvent returns ErrDuplicateEvent and leaves the stored event
	// untouched (first-writer-wins).
	CreateEvent(ctx context.Context, event *types.Event) error

	// CountEventsSince returns the number of non-deleted events for the
	// anima strictly after the given timestamp.
	CountEventsSince(ctx context.Context, animaID string, since time.Time) (int, error)

	// ListEventsSince returns all non-deleted events for the anima strictly
	// after the given timestamp, in chronological order (occurred_at, then
	// created_at as tiebreak). Later pipeline stages rely on this ordering
	// for index-stable citation in prompts.
	ListEventsSince(ctx context.Context, animaID string, since time.Time) ([]*types.Event, error)
}

// MemoryStore provides memory lifecycle operations.
type MemoryStore interface {
	// CreateMemoryWithProvenance creates a memory row and its provenance
	// links in a single transaction: either the memory and all links exist
	// afterwards, or none do. Source IDs may reference events (synthesis)
	// or prior memories (curation merge). Returns the new memory ID and the
	// IDs of the created links.
	CreateMemoryWithProvenance(ctx context.Context, memory *types.Memory, sourceEventIDs, sourceMemoryIDs []string) (string, []string, error)

	// GetMemory retrieves a memory by ID.
	// Returns ErrNotFound if the memory doesn't exist.
	GetMemory(ctx context.Context, id string) (*types.Memory, error)

	// UpdateMemory modifies summary, content, importance, confidence, and
	// state of an existing memory. Returns ErrNotFound if it doesn't exist.
	UpdateMemory(ctx context.Context, memory *types.Memory) error

	// DeleteMemory soft-deletes a memory (sets deleted_at).
	DeleteMemory(ctx context.Context, id string) error

	// RestoreMemory clears deleted_at on a soft-deleted memory.
	RestoreMemory(ctx context.Context, id string) error

	// ListActiveMemories returns non-deleted memories for the anima in the
	// given states (all states when empty), newest first, capped at limit.
	ListActiveMemories(ctx context.Context, animaID string, states []string, limit int) ([]*types.Memory, error)

	// LatestMemoryTime returns the creation time of the anima's most recent
	// non-deleted memory, or nil when no memory exists yet.
	LatestMemoryTime(ctx context.Context, animaID string) (*time.Time, error)
}

// IdentityStore provides identity persistence. Callers must go through
// identity.Service for mutations so the audit contract holds; the raw store
// does not write audit rows itself.
type IdentityStore interface {
	// CreateIdentity creates the identity for an anima (1:1).
	CreateIdentity(ctx context.Context, identity *types.Identity) error

	// GetIdentity retrieves the identity owned by the anima.
	// Returns ErrNotFound when none exists or it is soft-deleted.
	GetIdentity(ctx context.Context, animaID string) (*types.Identity, error)

	// UpdateIdentity persists personality type, self reflection, and
	// communication style changes.
	UpdateIdentity(ctx context.Context, identity *types.Identity) error

	// DeleteIdentity soft-deletes the identity.
	DeleteIdentity(ctx context.Context, id string) error

	// RestoreIdentity clears the soft-delete flag.
	RestoreIdentity(ctx context.Context, id string) error
}

// AuditStore provides the append-only identity audit trail. Entries are
// immutable once written: there are deliberately no update or delete
// operations on this interface.
type AuditStore interface {
	// AppendAuditEntry inserts one audit entry.
	AppendAuditEntry(ctx context.Context, entry *types.IdentityAuditEntry) error

	// ListAuditEntries returns the audit trail for an identity ordered by
	// creation time ascending (full evolution reconstruction).
	ListAuditEntries(ctx context.Context, identityID string) ([]*types.IdentityAuditEntry, error)

	// ListAuditEntriesByMemory returns entries whose source memory matches,
	// for the reverse lookup "which identities did memory X influence".
	ListAuditEntriesByMemory(ctx context.Context, memoryID string) ([]*types.IdentityAuditEntry, error)
}

// KnowledgeStore provides the read-only knowledge access used as curation
// context.
type KnowledgeStore interface {
	// ListRecentKnowledge returns up to maxItems non-deleted knowledge rows
	// for the anima, newest first.
	ListRecentKnowledge(ctx context.Context, animaID string, maxItems int) ([]*types.Knowledge, error)
}

// VectorSearcher is an optional capability for backends that store memory
// embeddings. The curation candidate finder type-asserts for it and falls
// back to lexical overlap when the backend doesn't provide vectors.
type VectorSearcher interface {
	// StoreMemoryEmbedding stores or replaces the embedding for a memory.
	StoreMemoryEmbedding(ctx context.Context, memoryID string, embedding []float32) error

	// SimilarMemories returns IDs of the anima's non-deleted memories most
	// similar to the given memory's embedding, nearest first, excluding the
	// memory itself. Memories without embeddings are skipped.
	SimilarMemories(ctx context.Context, animaID, memoryID string, limit int) ([]string, error)
}

// Store composes the full storage surface a backend must implement.
type Store interface {
	AnimaStore
	EventStore
	MemoryStore
	IdentityStore
	AuditStore
	KnowledgeStore

	// Close releases any resources held by the store.
	Close() error
}
