// Package sqlite_test contains integration tests for SQLite repositories.
//
// This file is the SINGLE POINT where the database schema is loaded for tests.
// All test setup functions use db.GetSchemaSQL() so tests run against the
// authoritative schema. Do not hardcode CREATE TABLE statements in test files.
package sqlite_test

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/roster/internal/db"
)

// setupTestDB creates an in-memory database with the authoritative schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	// Every connection to :memory: is its own database.
	testDB.SetMaxOpenConns(1)

	if _, err := testDB.Exec(db.GetSchemaSQL()); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// seedCycle inserts a running cycle so action results have a parent row.
func seedCycle(t *testing.T, testDB *sql.DB, id, personaID string, startedAt time.Time) {
	t.Helper()
	_, err := testDB.Exec("INSERT INTO cycles (id, persona_id, status, started_at) VALUES (?, ?, 'running', ?)",
		id, personaID, startedAt.UTC().Format("2006-01-02T15:04:05.000000Z07:00"))
	if err != nil {
		t.Fatalf("failed to seed cycle: %v", err)
	}
}

var testNow = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
