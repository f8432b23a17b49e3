package database

// Dialect abstracts the SQL differences between SQLite and PostgreSQL.
type Dialect interface {
	// DriverName is the name registered with database/sql.
	DriverName() string

	// Placeholder returns the parameter placeholder for a 1-based position.
	Placeholder(position int) string

	// SupportsLastInsertID reports whether Result.LastInsertId works.
	SupportsLastInsertID() bool

	// ReturningClause is appended to INSERTs that need the new row's id
	// when LastInsertId is unavailable.
	ReturningClause(column string) string

	// InitStatements run once after connecting.
	InitStatements() []string

	// SerialPrimaryKey is the column definition of an auto-increment id.
	SerialPrimaryKey() string

	// BlobType is the column type for raw documents.
	BlobType() string

	IsDuplicateKeyError(err error) bool
}

// DialectType identifies the database dialect.
type DialectType string

const (
	DialectSQLite   DialectType = "sqlite"
	DialectPostgres DialectType = "postgres"
)

// NewDialect returns the dialect for t, defaulting to SQLite.
func NewDialect(t DialectType) Dialect {
	if t == DialectPostgres {
		return PostgresDialect{}
	}
	return SQLiteDialect{}
}
