package db

import (
	"database/sql"
	"errors"

	sqlite3 "github.com/mutecomm/go-sqlcipher/v4"
)

const (
	// SQLiteDriverName is the project-specific SQLCipher driver.
	SQLiteDriverName = "sqlite3_note_taking"
)

func init() {
	sql.Register(SQLiteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			// SQLite is single-writer; concurrent requests need a wait
			// window before SQLITE_BUSY surfaces.
			_, err := conn.Exec("PRAGMA busy_timeout = 5000", nil)
			return err
		},
	})
}

// IsUniqueConstraint reports whether err is a SQLite unique-constraint
// violation (duplicate primary key or UNIQUE index row).
func IsUniqueConstraint(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// IsBusy reports whether err indicates the database was locked or busy,
// i.e. a transient condition the boundary may retry.
func IsBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
}
