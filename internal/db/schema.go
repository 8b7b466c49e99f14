package db

import "database/sql"

// SchemaSQL is the complete schema for fresh installs.
//
// This is the SINGLE SOURCE OF TRUTH for the database schema. Tests build
// their databases from GetSchemaSQL() so a repository that references a
// column missing here fails with "no such column" at development time.
//
// Timestamps are stored as fixed-width UTC text so they sort and compare
// lexically.
const SchemaSQL = `
-- Escalations (questions handed to a supervisor)
CREATE TABLE IF NOT EXISTS escalations (
	id TEXT PRIMARY KEY,
	caller_id TEXT NOT NULL,
	question TEXT NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('pending', 'resolved', 'expired')) DEFAULT 'pending',
	answer TEXT,
	resolved_by TEXT,
	expiry_reason TEXT,
	created_at TEXT NOT NULL,
	timeout_at TEXT NOT NULL,
	resolved_at TEXT,
	expired_at TEXT,
	delivered_at TEXT,
	version INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_escalations_status_timeout ON escalations(status, timeout_at);
CREATE INDEX IF NOT EXISTS idx_escalations_caller ON escalations(caller_id);

CREATE TRIGGER IF NOT EXISTS escalations_timeout_immutable
BEFORE UPDATE OF timeout_at ON escalations
WHEN NEW.timeout_at IS NOT OLD.timeout_at
BEGIN
	SELECT RAISE(ABORT, 'escalation timeout_at is immutable');
END;

CREATE TRIGGER IF NOT EXISTS escalations_terminal_status
BEFORE UPDATE OF status ON escalations
WHEN OLD.status IN ('resolved', 'expired') AND NEW.status IS NOT OLD.status
BEGIN
	SELECT RAISE(ABORT, 'escalation status is terminal');
END;

-- Follow-ups awaiting delivery to the caller
CREATE TABLE IF NOT EXISTS notifications (
	request_id TEXT PRIMARY KEY,
	caller_id TEXT NOT NULL,
	answer TEXT NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('pending', 'delivered', 'dead_letter')) DEFAULT 'pending',
	attempt_count INTEGER NOT NULL DEFAULT 0,
	last_error TEXT,
	created_at TEXT NOT NULL,
	next_attempt_at TEXT NOT NULL,
	delivered_at TEXT,
	dead_lettered_at TEXT,
	FOREIGN KEY (request_id) REFERENCES escalations(id)
);

CREATE INDEX IF NOT EXISTS idx_notifications_due ON notifications(status, next_attempt_at);

CREATE TRIGGER IF NOT EXISTS notifications_require_resolved
BEFORE INSERT ON notifications
WHEN (SELECT status FROM escalations WHERE id = NEW.request_id) IS NOT 'resolved'
BEGIN
	SELECT RAISE(ABORT, 'follow-up requires a resolved escalation');
END;

-- Learned answers
CREATE TABLE IF NOT EXISTS knowledge (
	normalized_question TEXT PRIMARY KEY,
	question TEXT NOT NULL,
	answer TEXT NOT NULL,
	learned_at TEXT NOT NULL,
	source_request_id TEXT
);

-- Audit trail
CREATE TABLE IF NOT EXISTS escalation_events (
	id TEXT PRIMARY KEY,
	request_id TEXT NOT NULL,
	action TEXT NOT NULL,
	actor TEXT,
	detail TEXT,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_escalation_events_request ON escalation_events(request_id, created_at);

-- Delivery attempt log
CREATE TABLE IF NOT EXISTS delivery_attempts (
	id TEXT PRIMARY KEY,
	request_id TEXT NOT NULL,
	attempt INTEGER NOT NULL,
	outcome TEXT NOT NULL CHECK (outcome IN ('delivered', 'failed')),
	error TEXT,
	attempted_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_delivery_attempts_request ON delivery_attempts(request_id, attempt);
`

// InitSchema brings a database up to the current schema.
func InitSchema(database *sql.DB) error {
	return RunMigrations(database)
}

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
