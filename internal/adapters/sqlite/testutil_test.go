// Package sqlite_test contains integration tests for SQLite repositories.
//
// # Schema Protection
//
// This file is the SINGLE POINT where the database schema is loaded for tests.
// All test setup functions use db.GetSchemaSQL() to ensure tests run against
// the authoritative schema, preventing drift between test and production.
//
// DO NOT hardcode CREATE TABLE statements in test files. Use setupTestDB()
// and the seed* helpers.
package sqlite_test

import (
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/frontdesk/internal/db"
)

// t0 is the reference instant used by repository tests.
var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// setupTestDB creates a database file under t.TempDir() with the
// authoritative schema. A file rather than :memory: keeps every pooled
// connection on the same database.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", db.DSN(filepath.Join(t.TempDir(), "test.db")))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	if _, err := testDB.Exec(db.GetSchemaSQL()); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

func ts(t time.Time) string {
	return t.UTC().Format(db.TimeLayout)
}

// seedEscalation inserts a pending escalation created at createdAt with a
// two hour window.
func seedEscalation(t *testing.T, testDB *sql.DB, id, callerID string, createdAt time.Time) {
	t.Helper()
	_, err := testDB.Exec(
		`INSERT INTO escalations (id, caller_id, question, status, created_at, timeout_at) VALUES (?, ?, ?, 'pending', ?, ?)`,
		id, callerID, "Question for "+id, ts(createdAt), ts(createdAt.Add(2*time.Hour)),
	)
	if err != nil {
		t.Fatalf("failed to seed escalation: %v", err)
	}
}

// seedResolved inserts a resolved escalation and its pending follow-up.
func seedResolved(t *testing.T, testDB *sql.DB, id, callerID string, createdAt time.Time) {
	t.Helper()
	seedEscalation(t, testDB, id, callerID, createdAt)
	if _, err := testDB.Exec(
		`UPDATE escalations SET status = 'resolved', answer = 'Answer for ' || id, resolved_at = ? WHERE id = ?`,
		ts(createdAt.Add(time.Minute)), id,
	); err != nil {
		t.Fatalf("failed to resolve escalation: %v", err)
	}
	if _, err := testDB.Exec(
		`INSERT INTO notifications (request_id, caller_id, answer, created_at, next_attempt_at) VALUES (?, ?, ?, ?, ?)`,
		id, callerID, "Answer for "+id, ts(createdAt.Add(time.Minute)), ts(createdAt.Add(time.Minute)),
	); err != nil {
		t.Fatalf("failed to seed follow-up: %v", err)
	}
}

// countingQuarantine records quarantined collections.
type countingQuarantine struct {
	mu     sync.Mutex
	counts map[string]int
}

func newCountingQuarantine() *countingQuarantine {
	return &countingQuarantine{counts: map[string]int{}}
}

func (c *countingQuarantine) Quarantined(collection string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[collection]++
}

func (c *countingQuarantine) count(collection string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[collection]
}
