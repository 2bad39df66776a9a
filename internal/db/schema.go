package db

import "database/sql"

// SchemaSQL is the complete schema for fresh roster databases.
//
// This is the SINGLE SOURCE OF TRUTH for the database schema. All tests use
// this schema via GetSchemaSQL(); if repository code references a column that
// doesn't exist here, tests fail immediately with "no such column".
//
// Timestamps are TEXT in a fixed-width UTC layout so they sort lexically.
// When adding columns or tables, add a migration and update SchemaSQL.
const SchemaSQL = `
-- Persona state (one row per persona, owned by the state reconciler)
CREATE TABLE IF NOT EXISTS persona_state (
	persona_id TEXT PRIMARY KEY,
	last_cycle_at TEXT,
	last_cycle_id TEXT,
	budget_remaining INTEGER NOT NULL CHECK(budget_remaining >= 0),
	budget_reset_date TEXT NOT NULL,
	memory TEXT NOT NULL DEFAULT '[]',
	memory_updated_at TEXT,
	active INTEGER NOT NULL DEFAULT 1,
	version INTEGER NOT NULL DEFAULT 1,
	updated_at TEXT NOT NULL
);

-- Cycles (one per tick attempt that passed the pre-record gate)
CREATE TABLE IF NOT EXISTS cycles (
	id TEXT PRIMARY KEY,
	persona_id TEXT NOT NULL,
	status TEXT NOT NULL CHECK(status IN ('running', 'completed', 'failed', 'skipped')) DEFAULT 'running',
	force INTEGER NOT NULL DEFAULT 0,
	started_at TEXT NOT NULL,
	completed_at TEXT,
	inbound_count INTEGER NOT NULL DEFAULT 0,
	channel_message_count INTEGER NOT NULL DEFAULT 0,
	followup_count INTEGER NOT NULL DEFAULT 0,
	actions_planned INTEGER NOT NULL DEFAULT 0,
	actions_executed INTEGER NOT NULL DEFAULT 0,
	actions_succeeded INTEGER NOT NULL DEFAULT 0,
	cost_spent INTEGER NOT NULL DEFAULT 0,
	oracle_latency_ms INTEGER NOT NULL DEFAULT 0,
	prompt_tokens INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	fallback INTEGER NOT NULL DEFAULT 0,
	skip_reason TEXT,
	error TEXT
);

CREATE INDEX IF NOT EXISTS idx_cycles_persona ON cycles(persona_id, started_at);
CREATE INDEX IF NOT EXISTS idx_cycles_status ON cycles(status);

-- Action results (one per attempted action)
CREATE TABLE IF NOT EXISTS action_results (
	id TEXT PRIMARY KEY,
	cycle_id TEXT NOT NULL,
	persona_id TEXT NOT NULL,
	idx INTEGER NOT NULL,
	kind TEXT NOT NULL,
	payload TEXT NOT NULL,
	success INTEGER NOT NULL,
	error TEXT,
	security INTEGER NOT NULL DEFAULT 0,
	cost INTEGER NOT NULL DEFAULT 0,
	metadata TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL,
	UNIQUE(cycle_id, idx),
	FOREIGN KEY (cycle_id) REFERENCES cycles(id)
);

CREATE INDEX IF NOT EXISTS idx_action_results_persona ON action_results(persona_id, created_at);

-- Audit log (append-only)
CREATE TABLE IF NOT EXISTS audit_log (
	id TEXT PRIMARY KEY,
	persona_id TEXT NOT NULL,
	cycle_id TEXT,
	kind TEXT NOT NULL,
	outcome TEXT NOT NULL CHECK(outcome IN ('success', 'failed', 'blocked')),
	detail TEXT,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_log_persona ON audit_log(persona_id, created_at);
CREATE INDEX IF NOT EXISTS idx_audit_log_cycle ON audit_log(cycle_id);

-- Follow-ups owned by personas
CREATE TABLE IF NOT EXISTS followups (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	title TEXT NOT NULL,
	notes TEXT,
	status TEXT NOT NULL CHECK(status IN ('open', 'deferred', 'done')) DEFAULT 'open',
	due_at TEXT,
	deferred_until TEXT,
	related_message_id TEXT,
	source_cycle_id TEXT,
	completion_note TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	completed_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_followups_owner ON followups(owner_id, status);

-- Local mailbox
CREATE TABLE IF NOT EXISTS mail_messages (
	id TEXT PRIMARY KEY,
	thread_id TEXT NOT NULL,
	sender TEXT NOT NULL,
	recipients TEXT NOT NULL DEFAULT '[]',
	cc TEXT NOT NULL DEFAULT '[]',
	subject TEXT,
	body TEXT NOT NULL,
	reply_to TEXT,
	sent_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS mail_deliveries (
	message_id TEXT NOT NULL,
	recipient TEXT NOT NULL,
	PRIMARY KEY (message_id, recipient),
	FOREIGN KEY (message_id) REFERENCES mail_messages(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_mail_deliveries_recipient ON mail_deliveries(recipient);

-- Local channel board
CREATE TABLE IF NOT EXISTS channels (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	direct INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS channel_members (
	channel_id TEXT NOT NULL,
	identity TEXT NOT NULL,
	PRIMARY KEY (channel_id, identity),
	FOREIGN KEY (channel_id) REFERENCES channels(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS channel_posts (
	id TEXT PRIMARY KEY,
	channel_id TEXT NOT NULL,
	author TEXT NOT NULL,
	text TEXT NOT NULL,
	reply_to TEXT,
	posted_at TEXT NOT NULL,
	FOREIGN KEY (channel_id) REFERENCES channels(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_channel_posts_channel ON channel_posts(channel_id, posted_at);

-- Shared conversation store
CREATE TABLE IF NOT EXISTS sent_messages (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	thread_id TEXT,
	recipients TEXT NOT NULL DEFAULT '[]',
	cc TEXT NOT NULL DEFAULT '[]',
	subject TEXT,
	body TEXT,
	sent_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sent_messages_owner ON sent_messages(owner_id, sent_at);

CREATE TABLE IF NOT EXISTS cached_channel_messages (
	id TEXT PRIMARY KEY,
	channel_id TEXT NOT NULL,
	channel TEXT,
	author TEXT NOT NULL,
	owner_id TEXT,
	text TEXT NOT NULL,
	reply_to TEXT,
	posted_at TEXT NOT NULL,
	cached_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cached_channel_messages_channel ON cached_channel_messages(channel_id, posted_at);

-- Sync checkpoints
CREATE TABLE IF NOT EXISTS sync_checkpoints (
	scope TEXT NOT NULL,
	key TEXT NOT NULL,
	last_seen_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (scope, key)
);

-- Step dedup
CREATE TABLE IF NOT EXISTS step_runs (
	key TEXT PRIMARY KEY,
	cycle_id TEXT NOT NULL,
	result TEXT NOT NULL,
	completed_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_step_runs_cycle ON step_runs(cycle_id);
`

// InitSchema brings database up to date. A fresh database gets SchemaSQL
// directly and is marked as fully migrated; an existing one runs pending
// migrations.
func InitSchema(database *sql.DB) error {
	var tableCount int
	err := database.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableCount)
	if err != nil {
		return err
	}

	if tableCount > 0 {
		return RunMigrations(database)
	}

	if _, err := database.Exec(SchemaSQL); err != nil {
		return err
	}
	if err := ensureVersionTable(database); err != nil {
		return err
	}
	for _, m := range migrations {
		if _, err := database.Exec("INSERT INTO schema_version (version) VALUES (?)", m.Version); err != nil {
			return err
		}
	}
	return nil
}

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
