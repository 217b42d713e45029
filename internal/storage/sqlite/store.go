// Package sqlite implements the Animus storage interfaces on SQLite via
// modernc.org/sqlite. It is the default backend for single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/scrypster/animus/internal/storage"
	"github.com/scrypster/animus/pkg/types"
)

// Store implements storage.Store using SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database, configures WAL mode, and creates the
// schema.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single open connection
	// serialises writes and avoids SQLITE_BUSY errors under concurrent load.
	// WAL mode allows concurrent readers to proceed without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// DB exposes the underlying connection for the checkpoint store, which
// shares the same database file.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Animas

func (s *Store) CreateAnima(ctx context.Context, anima *types.Anima) error {
	if anima.Name == "" {
		return fmt.Errorf("%w: anima name is required", storage.ErrInvalidInput)
	}
	if anima.ID == "" {
		anima.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	anima.CreatedAt = now
	anima.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO animas (id, name, purpose, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		anima.ID, anima.Name, nullableString(anima.Purpose), now, now)
	if err != nil {
		return fmt.Errorf("failed to create anima: %w", err)
	}
	return nil
}

func (s *Store) GetAnima(ctx context.Context, id string) (*types.Anima, error) {
	var a types.Anima
	var purpose sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, purpose, created_at, updated_at
		FROM animas WHERE id = ? AND deleted_at IS NULL`, id).
		Scan(&a.ID, &a.Name, &purpose, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get anima: %w", err)
	}
	a.Purpose = purpose.String
	return &a, nil
}

func (s *Store) ListAnimas(ctx context.Context) ([]*types.Anima, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, purpose, created_at, updated_at
		FROM animas WHERE deleted_at IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list animas: %w", err)
	}
	defer rows.Close()

	var animas []*types.Anima
	for rows.Next() {
		var a types.Anima
		var purpose sql.NullString
		if err := rows.Scan(&a.ID, &a.Name, &purpose, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan anima: %w", err)
		}
		a.Purpose = purpose.String
		animas = append(animas, &a)
	}
	return animas, rows.Err()
}

// ---------------------------------------------------------------------------
// Events

func (s *Store) CreateEvent(ctx context.Context, event *types.Event) error {
	if event.AnimaID == "" || event.Content == "" {
		return fmt.Errorf("%w: anima_id and content are required", storage.ErrInvalidInput)
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.EventType == "" {
		event.EventType = types.EventMessageIn
	}
	event.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, anima_id, event_type, role, author, summary,
			content, occurred_at, session_id, dedupe_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.AnimaID, event.EventType,
		nullableString(event.Role), nullableString(event.Author), nullableString(event.Summary),
		event.Content, nullableTime(event.OccurredAt), nullableString(event.SessionID),
		nullableString(event.DedupeKey), event.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicateEvent
		}
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

func (s *Store) CountEventsSince(ctx context.Context, animaID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM events
		WHERE anima_id = ? AND created_at > ? AND deleted_at IS NULL`,
		animaID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

func (s *Store) ListEventsSince(ctx context.Context, animaID string, since time.Time) ([]*types.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, anima_id, event_type, role, author, summary, content,
			occurred_at, session_id, dedupe_key, created_at
		FROM events
		WHERE anima_id = ? AND created_at > ? AND deleted_at IS NULL
		ORDER BY COALESCE(occurred_at, created_at), created_at`,
		animaID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*types.Event
	for rows.Next() {
		var e types.Event
		var role, author, summary, sessionID, dedupeKey sql.NullString
		var occurredAt sql.NullTime
		if err := rows.Scan(&e.ID, &e.AnimaID, &e.EventType, &role, &author, &summary,
			&e.Content, &occurredAt, &sessionID, &dedupeKey, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Role = role.String
		e.Author = author.String
		e.Summary = summary.String
		e.SessionID = sessionID.String
		e.DedupeKey = dedupeKey.String
		if occurredAt.Valid {
			t := occurredAt.Time
			e.OccurredAt = &t
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// ---------------------------------------------------------------------------
// Memories

func (s *Store) CreateMemoryWithProvenance(ctx context.Context, memory *types.Memory, sourceEventIDs, sourceMemoryIDs []string) (string, []string, error) {
	if memory.AnimaID == "" || memory.Summary == "" {
		return "", nil, fmt.Errorf("%w: anima_id and summary are required", storage.ErrInvalidInput)
	}
	if memory.ID == "" {
		memory.ID = uuid.NewString()
	}
	if memory.State == "" {
		memory.State = types.MemoryStateActive
	}
	now := time.Now().UTC()
	memory.CreatedAt = now
	memory.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO memories (id, anima_id, summary, content, importance,
			confidence, state, time_start, time_end, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		memory.ID, memory.AnimaID, memory.Summary, nullableString(memory.Content),
		nullableFloat(memory.Importance), nullableFloat(memory.Confidence), memory.State,
		nullableTime(memory.TimeStart), nullableTime(memory.TimeEnd), now, now)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create memory: %w", err)
	}

	linkIDs := make([]string, 0, len(sourceEventIDs)+len(sourceMemoryIDs))
	insertLink := func(eventID, memoryID string) error {
		linkID := uuid.NewString()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO provenance_links (id, memory_id, source_event_id,
				source_memory_id, link_strength, created_at)
			VALUES (?, ?, ?, ?, 1.0, ?)`,
			linkID, memory.ID, nullableString(eventID), nullableString(memoryID), now)
		if err != nil {
			return err
		}
		linkIDs = append(linkIDs, linkID)
		return nil
	}
	for _, id := range sourceEventIDs {
		if err := insertLink(id, ""); err != nil {
			return "", nil, fmt.Errorf("failed to create provenance link: %w", err)
		}
	}
	for _, id := range sourceMemoryIDs {
		if err := insertLink("", id); err != nil {
			return "", nil, fmt.Errorf("failed to create provenance link: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", nil, fmt.Errorf("failed to commit memory: %w", err)
	}
	return memory.ID, linkIDs, nil
}

func (s *Store) GetMemory(ctx context.Context, id string) (*types.Memory, error) {
	var m types.Memory
	var content, state sql.NullString
	var importance, confidence sql.NullFloat64
	var timeStart, timeEnd, deletedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, anima_id, summary, content, importance, confidence, state,
			time_start, time_end, created_at, updated_at, deleted_at
		FROM memories WHERE id = ?`, id).
		Scan(&m.ID, &m.AnimaID, &m.Summary, &content, &importance, &confidence,
			&state, &timeStart, &timeEnd, &m.CreatedAt, &m.UpdatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get memory: %w", err)
	}
	m.Content = content.String
	m.State = state.String
	if importance.Valid {
		v := importance.Float64
		m.Importance = &v
	}
	if confidence.Valid {
		v := confidence.Float64
		m.Confidence = &v
	}
	if timeStart.Valid {
		t := timeStart.Time
		m.TimeStart = &t
	}
	if timeEnd.Valid {
		t := timeEnd.Time
		m.TimeEnd = &t
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		m.DeletedAt = &t
	}
	return &m, nil
}

func (s *Store) UpdateMemory(ctx context.Context, memory *types.Memory) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE memories
		SET summary = ?, content = ?, importance = ?, confidence = ?,
			state = ?, updated_at = ?
		WHERE id = ?`,
		memory.Summary, nullableString(memory.Content),
		nullableFloat(memory.Importance), nullableFloat(memory.Confidence),
		memory.State, time.Now().UTC(), memory.ID)
	if err != nil {
		return fmt.Errorf("failed to update memory: %w", err)
	}
	return requireRow(res)
}

func (s *Store) DeleteMemory(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE memories SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		time.Now().UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete memory: %w", err)
	}
	return requireRow(res)
}

func (s *Store) RestoreMemory(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE memories SET deleted_at = NULL, updated_at = ?
		WHERE id = ? AND deleted_at IS NOT NULL`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to restore memory: %w", err)
	}
	return requireRow(res)
}

func (s *Store) ListActiveMemories(ctx context.Context, animaID string, states []string, limit int) ([]*types.Memory, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, anima_id, summary, content, importance, confidence, state,
			time_start, time_end, created_at, updated_at, deleted_at
		FROM memories WHERE anima_id = ? AND deleted_at IS NULL`
	args := []interface{}{animaID}
	if len(states) > 0 {
		query += ` AND state IN (?` + strings.Repeat(",?", len(states)-1) + `)`
		for _, st := range states {
			args = append(args, st)
		}
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	defer rows.Close()

	var memories []*types.Memory
	for rows.Next() {
		var m types.Memory
		var content, state sql.NullString
		var importance, confidence sql.NullFloat64
		var timeStart, timeEnd, deletedAt sql.NullTime
		if err := rows.Scan(&m.ID, &m.AnimaID, &m.Summary, &content, &importance,
			&confidence, &state, &timeStart, &timeEnd, &m.CreatedAt, &m.UpdatedAt, &deletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		m.Content = content.String
		m.State = state.String
		if importance.Valid {
			v := importance.Float64
			m.Importance = &v
		}
		if confidence.Valid {
			v := confidence.Float64
			m.Confidence = &v
		}
		if timeStart.Valid {
			t := timeStart.Time
			m.TimeStart = &t
		}
		if timeEnd.Valid {
			t := timeEnd.Time
			m.TimeEnd = &t
		}
		memories = append(memories, &m)
	}
	return memories, rows.Err()
}

func (s *Store) LatestMemoryTime(ctx context.Context, animaID string) (*time.Time, error) {
	// No MAX() here: aggregates lose the column's declared type and the
	// driver returns TEXT, which breaks scanning into a time value.
	var created time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT created_at FROM memories
		WHERE anima_id = ? AND deleted_at IS NULL
		ORDER BY created_at DESC LIMIT 1`, animaID).Scan(&created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest memory time: %w", err)
	}
	return &created, nil
}

// ---------------------------------------------------------------------------
// Identities

func (s *Store) CreateIdentity(ctx context.Context, identity *types.Identity) error {
	if identity.AnimaID == "" {
		return fmt.Errorf("%w: anima_id is required", storage.ErrInvalidInput)
	}
	if !types.IsValidPersonalityType(identity.PersonalityType) {
		return fmt.Errorf("%w: invalid personality type %q", storage.ErrInvalidInput, identity.PersonalityType)
	}
	if identity.ID == "" {
		identity.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	identity.CreatedAt = now
	identity.UpdatedAt = now

	reflection, err := marshalMap(identity.SelfReflection)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO identities (id, anima_id, personality_type, self_reflection,
			communication_style, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		identity.ID, identity.AnimaID, nullableString(identity.PersonalityType),
		reflection, nullableString(identity.CommunicationStyle), now, now)
	if err != nil {
		return fmt.Errorf("failed to create identity: %w", err)
	}
	return nil
}

func (s *Store) GetIdentity(ctx context.Context, animaID string) (*types.Identity, error) {
	var id types.Identity
	var personality, reflection, style sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, anima_id, personality_type, self_reflection, communication_style,
			created_at, updated_at
		FROM identities WHERE anima_id = ? AND deleted_at IS NULL`, animaID).
		Scan(&id.ID, &id.AnimaID, &personality, &reflection, &style,
			&id.CreatedAt, &id.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}
	id.PersonalityType = personality.String
	id.CommunicationStyle = style.String
	if reflection.Valid && reflection.String != "" {
		if err := json.Unmarshal([]byte(reflection.String), &id.SelfReflection); err != nil {
			return nil, fmt.Errorf("failed to decode self_reflection: %w", err)
		}
	}
	return &id, nil
}

func (s *Store) UpdateIdentity(ctx context.Context, identity *types.Identity) error {
	if !types.IsValidPersonalityType(identity.PersonalityType) {
		return fmt.Errorf("%w: invalid personality type %q", storage.ErrInvalidInput, identity.PersonalityType)
	}
	reflection, err := marshalMap(identity.SelfReflection)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE identities
		SET personality_type = ?, self_reflection = ?, communication_style = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		nullableString(identity.PersonalityType), reflection,
		nullableString(identity.CommunicationStyle), time.Now().UTC(), identity.ID)
	if err != nil {
		return fmt.Errorf("failed to update identity: %w", err)
	}
	return requireRow(res)
}

func (s *Store) DeleteIdentity(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE identities SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		time.Now().UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete identity: %w", err)
	}
	return requireRow(res)
}

func (s *Store) RestoreIdentity(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE identities SET deleted_at = NULL, updated_at = ?
		WHERE id = ? AND deleted_at IS NOT NULL`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to restore identity: %w", err)
	}
	return requireRow(res)
}

// ---------------------------------------------------------------------------
// Identity audit log (append-only)

func (s *Store) AppendAuditEntry(ctx context.Context, entry *types.IdentityAuditEntry) error {
	if entry.IdentityID == "" || entry.AfterState == nil {
		return fmt.Errorf("%w: identity_id and after_state are required", storage.ErrInvalidInput)
	}
	if !types.IsValidAuditAction(entry.Action) {
		return fmt.Errorf("%w: invalid audit action %q", storage.ErrInvalidInput, entry.Action)
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()

	before, err := marshalMap(entry.BeforeState)
	if err != nil {
		return err
	}
	after, err := marshalMap(entry.AfterState)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO identity_audit_log (id, identity_id, action, trigger_source,
			source_memory_id, before_state, after_state, change_summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.IdentityID, entry.Action, nullableString(entry.TriggerSource),
		nullableString(entry.SourceMemoryID), before, after,
		nullableString(entry.ChangeSummary), entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (s *Store) ListAuditEntries(ctx context.Context, identityID string) ([]*types.IdentityAuditEntry, error) {
	return s.queryAuditEntries(ctx, `
		SELECT id, identity_id, action, trigger_source, source_memory_id,
			before_state, after_state, change_summary, created_at
		FROM identity_audit_log WHERE identity_id = ? ORDER BY created_at`, identityID)
}

func (s *Store) ListAuditEntriesByMemory(ctx context.Context, memoryID string) ([]*types.IdentityAuditEntry, error) {
	return s.queryAuditEntries(ctx, `
		SELECT id, identity_id, action, trigger_source, source_memory_id,
			before_state, after_state, change_summary, created_at
		FROM identity_audit_log WHERE source_memory_id = ? ORDER BY created_at`, memoryID)
}

func (s *Store) queryAuditEntries(ctx context.Context, query string, arg string) ([]*types.IdentityAuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*types.IdentityAuditEntry
	for rows.Next() {
		var e types.IdentityAuditEntry
		var trigger, sourceMemory, before, after, summary sql.NullString
		if err := rows.Scan(&e.ID, &e.IdentityID, &e.Action, &trigger, &sourceMemory,
			&before, &after, &summary, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.TriggerSource = trigger.String
		e.SourceMemoryID = sourceMemory.String
		e.ChangeSummary = summary.String
		if before.Valid && before.String != "" {
			if err := json.Unmarshal([]byte(before.String), &e.BeforeState); err != nil {
				return nil, fmt.Errorf("failed to decode before_state: %w", err)
			}
		}
		if after.Valid && after.String != "" {
			if err := json.Unmarshal([]byte(after.String), &e.AfterState); err != nil {
				return nil, fmt.Errorf("failed to decode after_state: %w", err)
			}
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// ---------------------------------------------------------------------------
// Knowledge

func (s *Store) ListRecentKnowledge(ctx context.Context, animaID string, maxItems int) ([]*types.Knowledge, error) {
	if maxItems <= 0 {
		maxItems = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, anima_id, knowledge_type, summary, content, created_at, updated_at
		FROM knowledge WHERE anima_id = ? AND deleted_at IS NULL
		ORDER BY created_at DESC LIMIT ?`, animaID, maxItems)
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge: %w", err)
	}
	defer rows.Close()

	var items []*types.Knowledge
	for rows.Next() {
		var k types.Knowledge
		var ktype, content sql.NullString
		if err := rows.Scan(&k.ID, &k.AnimaID, &ktype, &k.Summary, &content,
			&k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan knowledge: %w", err)
		}
		k.KnowledgeType = ktype.String
		k.Content = content.String
		items = append(items, &k)
	}
	return items, rows.Err()
}

// ---------------------------------------------------------------------------
// Helpers

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func marshalMap(m map[string]interface{}) (sql.NullString, error) {
	if m == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode JSON column: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullableFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Compile-time assertion.
var _ storage.Store = (*Store)(nil)
