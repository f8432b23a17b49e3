package database

import "strings"

// QueryBuilder rewrites queries written with ? placeholders for a dialect.
type QueryBuilder struct {
	dialect Dialect
}

// NewQueryBuilder creates a QueryBuilder for the given dialect.
func NewQueryBuilder(dialect Dialect) *QueryBuilder {
	return &QueryBuilder{dialect: dialect}
}

// Build replaces each ? outside a quoted string literal with the dialect's
// placeholder:
//
//	input:    "SELECT id FROM rulesets WHERE name = ?"
//	SQLite:   "SELECT id FROM rulesets WHERE name = ?"
//	Postgres: "SELECT id FROM rulesets WHERE name = $1"
func (qb *QueryBuilder) Build(query string) string {
	if qb.dialect.Placeholder(1) == "?" {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	position := 1
	quoted := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			quoted = !quoted
			b.WriteByte(c)
		case c == '?' && !quoted:
			b.WriteString(qb.dialect.Placeholder(position))
			position++
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// BuildWithReturning is Build plus a RETURNING clause when the dialect has
// no LastInsertId.
func (qb *QueryBuilder) BuildWithReturning(query, column string) string {
	q := qb.Build(query)
	if !qb.dialect.SupportsLastInsertID() {
		q += qb.dialect.ReturningClause(column)
	}
	return q
}
