package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schemaVersion = "1"

// FileName is the database file created inside the git directory
const FileName = "plansync.db"

// Store holds the audit log and sync states of one repository. It
// implements both ports.AuditLog (through AuditLog) and
// ports.StateStore (through StateStore).
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open opens or creates the database at dbPath
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection serializes writers; sequence numbers are assigned
	// inside a transaction on it.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_entries (
			id TEXT PRIMARY KEY,
			team TEXT NOT NULL,
			release_slug TEXT NOT NULL,
			seq INTEGER NOT NULL,
			operation TEXT NOT NULL,
			outcome TEXT NOT NULL,
			reason TEXT NOT NULL,
			message TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			tracking_ref TEXT NOT NULL,
			working_ref TEXT NOT NULL,
			changes TEXT NOT NULL,
			hints TEXT NOT NULL,
			UNIQUE (team, release_slug, seq)
		);
		CREATE TABLE IF NOT EXISTS sync_states (
			team TEXT NOT NULL,
			release_slug TEXT NOT NULL,
			tracking_branch TEXT NOT NULL,
			working_branch TEXT NOT NULL,
			phase TEXT NOT NULL,
			conflict_tip TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (team, release_slug)
		);
		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
		CREATE TRIGGER IF NOT EXISTS audit_entries_no_update
		BEFORE UPDATE ON audit_entries
		BEGIN
			SELECT RAISE(ABORT, 'audit entries are append-only');
		END;
		CREATE TRIGGER IF NOT EXISTS audit_entries_no_delete
		BEFORE DELETE ON audit_entries
		BEGIN
			SELECT RAISE(ABORT, 'audit entries are append-only');
		END;
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to setup database: %w", err)
	}

	if _, err := db.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES ('schema_version', ?)`, schemaVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to update metadata: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// AuditLog returns the store's audit log
func (s *Store) AuditLog() *AuditLog {
	return &AuditLog{db: s.db}
}

// StateStore returns the store's sync states
func (s *Store) StateStore() *StateStore {
	return &StateStore{db: s.db}
}
