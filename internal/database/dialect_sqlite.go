package database

import "strings"

// SQLiteDialect talks to modernc.org/sqlite.
type SQLiteDialect struct{}

func (SQLiteDialect) DriverName() string { return "sqlite" }

func (SQLiteDialect) Placeholder(int) string { return "?" }

func (SQLiteDialect) SupportsLastInsertID() bool { return true }

func (SQLiteDialect) ReturningClause(string) string { return "" }

// InitStatements enables foreign keys (needed for cascading deletes) and WAL.
func (SQLiteDialect) InitStatements() []string {
	return []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
}

func (SQLiteDialect) SerialPrimaryKey() string { return "INTEGER PRIMARY KEY AUTOINCREMENT" }

func (SQLiteDialect) BlobType() string { return "BLOB" }

func (SQLiteDialect) IsDuplicateKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
