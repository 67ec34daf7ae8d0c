package shared

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// MemoryDatabase is the path that opens a private in-memory database.
const MemoryDatabase = ":memory:"

// busyTimeoutMs bounds how long a write waits for another process holding the database lock.
const busyTimeoutMs = 5000

// NewDatabase opens a connection to a SQLite database at the specified path.
//
// File databases use WAL journaling and a busy timeout, so several licentry processes can share one token slot.
// [MemoryDatabase] is pinned to a single connection since every connection would otherwise see its own empty database.
func NewDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == MemoryDatabase {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

func dsn(path string) string {
	if path == MemoryDatabase {
		return path
	}
	return fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL", path, busyTimeoutMs)
}

// ConfigureDatabase sets connection pool settings for a file database. Zero leaves a setting unlimited.
func ConfigureDatabase(db *sql.DB, maxOpenConns, maxIdleConns int) {
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
}
