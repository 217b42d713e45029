package sqlite

// Schema is the embedded DDL for the SQLite backend. Applied idempotently on
// every open; ALTERs for future columns belong in migrations, not here.
const Schema = `
CREATE TABLE IF NOT EXISTS animas (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	purpose     TEXT,
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL,
	deleted_at  TIMESTAMP
);

CREATE TABLE IF NOT EXISTS events (
	id          TEXT PRIMARY KEY,
	anima_id    TEXT NOT NULL REFERENCES animas(id),
	event_type  TEXT NOT NULL,
	role        TEXT,
	author      TEXT,
	summary     TEXT,
	content     TEXT NOT NULL,
	occurred_at TIMESTAMP,
	session_id  TEXT,
	dedupe_key  TEXT,
	created_at  TIMESTAMP NOT NULL,
	deleted_at  TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_events_anima_created ON events(anima_id, created_at);
CREATE UNIQUE INDEX IF NOT EXISTS idx_events_dedupe
	ON events(anima_id, dedupe_key) WHERE dedupe_key IS NOT NULL;

CREATE TABLE IF NOT EXISTS memories (
	id          TEXT PRIMARY KEY,
	anima_id    TEXT NOT NULL REFERENCES animas(id),
	summary     TEXT NOT NULL,
	content     TEXT,
	importance  REAL,
	confidence  REAL,
	state       TEXT,
	time_start  TIMESTAMP,
	time_end    TIMESTAMP,
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL,
	deleted_at  TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_memories_anima_created ON memories(anima_id, created_at);

CREATE TABLE IF NOT EXISTS provenance_links (
	id               TEXT PRIMARY KEY,
	memory_id        TEXT NOT NULL REFERENCES memories(id),
	source_event_id  TEXT REFERENCES events(id),
	source_memory_id TEXT REFERENCES memories(id),
	link_strength    REAL NOT NULL DEFAULT 1.0,
	created_at       TIMESTAMP NOT NULL,
	CHECK ((source_event_id IS NULL) != (source_memory_id IS NULL))
);

CREATE INDEX IF NOT EXISTS idx_provenance_memory ON provenance_links(memory_id);

CREATE TABLE IF NOT EXISTS identities (
	id                  TEXT PRIMARY KEY,
	anima_id            TEXT NOT NULL UNIQUE REFERENCES animas(id),
	personality_type    TEXT,
	self_reflection     TEXT,
	communication_style TEXT,
	created_at          TIMESTAMP NOT NULL,
	updated_at          TIMESTAMP NOT NULL,
	deleted_at          TIMESTAMP
);

CREATE TABLE IF NOT EXISTS identity_audit_log (
	id               TEXT PRIMARY KEY,
	identity_id      TEXT NOT NULL REFERENCES identities(id),
	action           TEXT NOT NULL,
	trigger_source   TEXT,
	source_memory_id TEXT,
	before_state     TEXT,
	after_state      TEXT NOT NULL,
	change_summary   TEXT,
	created_at       TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_identity_created ON identity_audit_log(identity_id, created_at);
CREATE INDEX IF NOT EXISTS idx_audit_source_memory ON identity_audit_log(source_memory_id);

CREATE TABLE IF NOT EXISTS knowledge (
	id             TEXT PRIMARY KEY,
	anima_id       TEXT NOT NULL REFERENCES animas(id),
	knowledge_type TEXT,
	summary        TEXT NOT NULL,
	content        TEXT,
	created_at     TIMESTAMP NOT NULL,
	updated_at     TIMESTAMP NOT NULL,
	deleted_at     TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_knowledge_anima_created ON knowledge(anima_id, created_at);

CREATE TABLE IF NOT EXISTS pipeline_checkpoints (
	checkpoint_key TEXT PRIMARY KEY,
	state          TEXT NOT NULL,
	updated_at     TIMESTAMP NOT NULL
);
`
