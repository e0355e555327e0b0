package shared

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// NewDatabase opens the SQLite database holding analysis results at
// path, verifying the connection with a ping. The path can be
// ":memory:" for an in-memory database, which the test suites use.
func NewDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// ConfigureDatabase applies the pool limits from [DatabaseConfig].
// Concurrent jobs and the HTTP API share one connection pool.
func ConfigureDatabase(db *sql.DB, maxOpenConns, maxIdleConns int) {
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
}
