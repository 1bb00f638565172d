package db

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDatabasePath is the default location of the notes database.
	DefaultDatabasePath = "./data/notes.db"

	// MaxOpenConns bounds open connections. SQLite is single-writer, so
	// high connection counts are counterproductive.
	MaxOpenConns = 10

	// MaxIdleConns bounds idle connections.
	MaxIdleConns = 2
)

// DB wraps the encrypted SQLite connection shared by all stores.
type DB struct {
	sql *sql.DB
}

// Open opens (creating if necessary) the encrypted notes database at path,
// keyed with masterKeyHex (64 hex characters), and applies the schema.
func Open(path, masterKeyHex string) (*DB, error) {
	if len(masterKeyHex) != 64 {
		return nil, fmt.Errorf("master key must be 64 hex characters, got %d", len(masterKeyHex))
	}
	if _, err := hex.DecodeString(masterKeyHex); err != nil {
		return nil, fmt.Errorf("master key must be hex encoded: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", path, masterKeyHex)
	sqlDB, err := sql.Open(SQLiteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(MaxOpenConns)
	sqlDB.SetMaxIdleConns(MaxIdleConns)

	// Verify the key actually decrypts the file before applying schema.
	var sqliteVersion string
	if err := sqlDB.QueryRow("SELECT sqlite_version()").Scan(&sqliteVersion); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("verify database: %w", err)
	}

	if _, err := sqlDB.Exec(Schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &DB{sql: sqlDB}, nil
}

// NewFromSQL wraps an existing sql.DB. The caller is responsible for the
// schema having been applied.
func NewFromSQL(sqlDB *sql.DB) *DB {
	return &DB{sql: sqlDB}
}

// SQL returns the underlying sql.DB for direct access.
func (d *DB) SQL() *sql.DB {
	return d.sql
}

// Ping verifies the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.sql.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (d *DB) Close() error {
	return d.sql.Close()
}
