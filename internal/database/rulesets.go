package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lawnchairsociety/battlecalc/internal/ruleset"
)

// ErrRulesetNotFound is returned when no ruleset has the requested name.
var ErrRulesetNotFound = errors.New("ruleset not found")

// RulesetInfo describes a stored ruleset without loading it.
type RulesetInfo struct {
	Name      string    `json:"name"`
	DiceSides int       `json:"dice_sides"`
	UnitKinds int       `json:"unit_kinds"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SaveRuleset stores rs, replacing any ruleset with the same name.
func (d *Database) SaveRuleset(rs *ruleset.Ruleset) error {
	if err := rs.Validate(); err != nil {
		return err
	}
	doc, err := yaml.Marshal(rs.ToConfig())
	if err != nil {
		return fmt.Errorf("encode ruleset %s: %w", rs.Name, err)
	}

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := d.deleteRuleset(tx, rs.Name); err != nil {
		return fmt.Errorf("replace ruleset %s: %w", rs.Name, err)
	}

	insert := d.qb.BuildWithReturning(
		`INSERT INTO rulesets (name, dice_sides, max_rounds, document, updated_at) VALUES (?, ?, ?, ?, ?)`, "id")
	args := []any{rs.Name, rs.DiceSides, rs.MaxRounds, doc, time.Now().Unix()}
	var id int64
	if d.dialect.SupportsLastInsertID() {
		res, err := tx.Exec(insert, args...)
		if err != nil {
			return fmt.Errorf("insert ruleset %s: %w", rs.Name, err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("insert ruleset %s: %w", rs.Name, err)
		}
	} else if err := tx.QueryRow(insert, args...).Scan(&id); err != nil {
		return fmt.Errorf("insert ruleset %s: %w", rs.Name, err)
	}

	kindInsert := d.qb.Build(`INSERT INTO ruleset_unit_kinds (ruleset_id, name, cost) VALUES (?, ?, ?)`)
	for _, name := range rs.Catalog.Names() {
		if _, err := tx.Exec(kindInsert, id, name, rs.Catalog.Kind(name).Cost); err != nil {
			return fmt.Errorf("insert unit kind %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ruleset %s: %w", rs.Name, err)
	}
	return nil
}

// LoadRuleset reads and rebuilds a stored ruleset.
func (d *Database) LoadRuleset(name string) (*ruleset.Ruleset, error) {
	var doc []byte
	err := d.db.QueryRow(d.qb.Build(`SELECT document FROM rulesets WHERE name = ?`), name).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRulesetNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("load ruleset %s: %w", name, err)
	}
	rs, err := ruleset.Parse(doc)
	if err != nil {
		return nil, fmt.Errorf("stored ruleset %s: %w", name, err)
	}
	return rs, nil
}

// ListRulesets returns every stored ruleset, by name.
func (d *Database) ListRulesets() ([]RulesetInfo, error) {
	rows, err := d.db.Query(`
		SELECT r.name, r.dice_sides, r.updated_at, COUNT(k.name)
		FROM rulesets r
		LEFT JOIN ruleset_unit_kinds k ON k.ruleset_id = r.id
		GROUP BY r.id, r.name, r.dice_sides, r.updated_at
		ORDER BY r.name`)
	if err != nil {
		return nil, fmt.Errorf("list rulesets: %w", err)
	}
	defer rows.Close()

	var out []RulesetInfo
	for rows.Next() {
		var info RulesetInfo
		var updated int64
		if err := rows.Scan(&info.Name, &info.DiceSides, &updated, &info.UnitKinds); err != nil {
			return nil, fmt.Errorf("scan ruleset: %w", err)
		}
		info.UpdatedAt = time.Unix(updated, 0).UTC()
		out = append(out, info)
	}
	return out, rows.Err()
}

// DeleteRuleset removes a stored ruleset and its unit kinds.
func (d *Database) DeleteRuleset(name string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	n, err := d.deleteRuleset(tx, name)
	if err != nil {
		return fmt.Errorf("delete ruleset %s: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRulesetNotFound, name)
	}
	return tx.Commit()
}

// deleteRuleset removes the unit kinds explicitly rather than relying on the
// cascade, which SQLite only honours on connections with foreign keys on.
func (d *Database) deleteRuleset(tx *sql.Tx, name string) (int64, error) {
	if _, err := tx.Exec(d.qb.Build(
		`DELETE FROM ruleset_unit_kinds WHERE ruleset_id IN (SELECT id FROM rulesets WHERE name = ?)`), name); err != nil {
		return 0, err
	}
	res, err := tx.Exec(d.qb.Build(`DELETE FROM rulesets WHERE name = ?`), name)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
