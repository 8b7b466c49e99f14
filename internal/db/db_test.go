package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "state", "frontdesk.db")
}

func TestOpen_CreatesSchema(t *testing.T) {
	path := openTemp(t)

	database, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	v, err := CurrentVersion(database)
	require.NoError(t, err)
	assert.Equal(t, LatestVersion(), v)

	var mode string
	require.NoError(t, database.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestOpen_Reopen(t *testing.T) {
	path := openTemp(t)

	first, err := Open(path)
	require.NoError(t, err)
	_, err = first.Exec(`INSERT INTO escalations (id, caller_id, question, status, created_at, timeout_at)
		VALUES ('REQ-001', 'room-1', 'Hours?', 'pending', '2026-03-01T10:00:00.000000000Z', '2026-03-01T12:00:00.000000000Z')`)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { second.Close() })

	var timeoutAt string
	require.NoError(t, second.QueryRow("SELECT timeout_at FROM escalations WHERE id = 'REQ-001'").Scan(&timeoutAt))
	assert.Equal(t, "2026-03-01T12:00:00.000000000Z", timeoutAt, "timeout_at must survive reload unchanged")
}

func TestSchema_Triggers(t *testing.T) {
	database, err := Open(openTemp(t))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	_, err = database.Exec(`INSERT INTO escalations (id, caller_id, question, status, created_at, timeout_at)
		VALUES ('REQ-001', 'room-1', 'Hours?', 'pending', '2026-03-01T10:00:00.000000000Z', '2026-03-01T12:00:00.000000000Z')`)
	require.NoError(t, err)

	t.Run("timeout_at is immutable", func(t *testing.T) {
		_, err := database.Exec("UPDATE escalations SET timeout_at = '2030-01-01T00:00:00.000000000Z' WHERE id = 'REQ-001'")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "immutable")
	})

	t.Run("follow-up requires resolved escalation", func(t *testing.T) {
		_, err := database.Exec(`INSERT INTO notifications (request_id, caller_id, answer, created_at, next_attempt_at)
			VALUES ('REQ-001', 'room-1', 'nine', '2026-03-01T10:00:00.000000000Z', '2026-03-01T10:00:00.000000000Z')`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "resolved escalation")
	})

	t.Run("terminal status cannot change", func(t *testing.T) {
		_, err := database.Exec("UPDATE escalations SET status = 'expired' WHERE id = 'REQ-001'")
		require.NoError(t, err)
		_, err = database.Exec("UPDATE escalations SET status = 'pending' WHERE id = 'REQ-001'")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "terminal")
	})
}

func TestSeedKnowledge_Idempotent(t *testing.T) {
	database, err := Open(openTemp(t))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	n, err := SeedKnowledge(database)
	require.NoError(t, err)
	assert.Equal(t, len(StarterKnowledge), n)

	n, err = SeedKnowledge(database)
	require.NoError(t, err)
	assert.Zero(t, n)
}
