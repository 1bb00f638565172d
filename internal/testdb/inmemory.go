package testdb

import (
	"database/sql"
	"fmt"

	"github.com/AdityaUmale/note-taking/internal/db"
)

// testDEKHex is a fixed encryption key for in-memory test databases.
const testDEKHex = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

// NewInMemory creates an in-memory encrypted DB for tests. Each distinct
// name gets an isolated shared-cache database, so parallel tests never
// contend on files.
func NewInMemory(name string) (*db.DB, error) {
	if name == "" {
		name = "test"
	}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma_key=x'%s'&_pragma_cipher_page_size=4096", name, testDEKHex)

	sqlDB, err := sql.Open(db.SQLiteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open in-memory database: %w", err)
	}

	// A single connection serializes access and sidesteps shared-cache
	// table locks; database/sql queues callers, so concurrent tests still
	// interleave at the API level.
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetMaxOpenConns(1)

	var sqliteVersion string
	if err := sqlDB.QueryRow("SELECT sqlite_version()").Scan(&sqliteVersion); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("verify in-memory database: %w", err)
	}

	if err := applyFastSQLitePragmas(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("apply fast SQLite pragmas: %w", err)
	}

	if _, err := sqlDB.Exec(db.Schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("initialize in-memory schema: %w", err)
	}

	return db.NewFromSQL(sqlDB), nil
}

func applyFastSQLitePragmas(sqlDB *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=MEMORY",
		"PRAGMA synchronous=OFF",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA secure_delete=OFF",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			return err
		}
	}
	return nil
}
