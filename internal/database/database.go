// Package database stores rulesets in SQLite or PostgreSQL so a service can
// offer several of them. It never stores simulation results.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Database is a ruleset store.
type Database struct {
	db      *sql.DB
	dialect Dialect
	qb      *QueryBuilder
}

// Open connects to the store described by cfg and creates the schema.
func Open(cfg Config) (*Database, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dialect := NewDialect(DialectType(cfg.Driver))

	var dsn string
	switch dialect.(type) {
	case PostgresDialect:
		dsn = cfg.Postgres.DSN()
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = cfg.SQLitePath
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}
	if _, ok := dialect.(PostgresDialect); ok {
		db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)
	} else {
		// One writer at a time keeps SQLite from returning SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}

	for _, stmt := range dialect.InitStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init %q: %w", stmt, err)
		}
	}

	d := &Database{db: db, dialect: dialect, qb: NewQueryBuilder(dialect)}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return d, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Dialect returns the SQL dialect in use.
func (d *Database) Dialect() Dialect { return d.dialect }

func (d *Database) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS rulesets (
			id ` + d.dialect.SerialPrimaryKey() + `,
			name TEXT UNIQUE NOT NULL,
			dice_sides INTEGER NOT NULL,
			max_rounds INTEGER NOT NULL DEFAULT 0,
			document ` + d.dialect.BlobType() + ` NOT NULL,
			updated_at BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS ruleset_unit_kinds (
			ruleset_id INTEGER NOT NULL REFERENCES rulesets(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			cost INTEGER NOT NULL,
			PRIMARY KEY (ruleset_id, name)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ruleset_unit_kinds_ruleset ON ruleset_unit_kinds(ruleset_id)`,
	}
	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
