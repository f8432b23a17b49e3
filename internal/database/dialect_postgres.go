package database

import (
	"errors"
	"strconv"

	"github.com/lib/pq"
)

// PostgresDialect talks to PostgreSQL through github.com/lib/pq.
type PostgresDialect struct{}

func (PostgresDialect) DriverName() string { return "postgres" }

func (PostgresDialect) Placeholder(position int) string { return "$" + strconv.Itoa(position) }

func (PostgresDialect) SupportsLastInsertID() bool { return false }

func (PostgresDialect) ReturningClause(column string) string { return " RETURNING " + column }

func (PostgresDialect) InitStatements() []string { return nil }

func (PostgresDialect) SerialPrimaryKey() string { return "SERIAL PRIMARY KEY" }

func (PostgresDialect) BlobType() string { return "BYTEA" }

// IsDuplicateKeyError matches SQLSTATE 23505 (unique_violation).
func (PostgresDialect) IsDuplicateKeyError(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
