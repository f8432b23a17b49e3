// migrate-to-postgres copies stored rulesets from SQLite to PostgreSQL.
//
// Usage:
//
//	go run ./cmd/migrate-to-postgres \
//	    -sqlite data/rulesets.db \
//	    -pg-host localhost \
//	    -pg-port 5432 \
//	    -pg-user battlecalc \
//	    -pg-password battlecalc \
//	    -pg-database battlecalc
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/lawnchairsociety/battlecalc/internal/database"
)

func main() {
	sqlitePath := flag.String("sqlite", "data/rulesets.db", "Path to SQLite database")
	pgHost := flag.String("pg-host", "localhost", "PostgreSQL host")
	pgPort := flag.Int("pg-port", 5432, "PostgreSQL port")
	pgUser := flag.String("pg-user", "battlecalc", "PostgreSQL user")
	pgPassword := flag.String("pg-password", "battlecalc", "PostgreSQL password")
	pgDatabase := flag.String("pg-database", "battlecalc", "PostgreSQL database name")
	pgSSLMode := flag.String("pg-sslmode", "disable", "PostgreSQL SSL mode")
	dryRun := flag.Bool("dry-run", false, "Show what would be migrated without making changes")
	flag.Parse()

	log.Println("SQLite to PostgreSQL Ruleset Migration")
	log.Println("======================================")

	log.Printf("Opening SQLite database: %s", *sqlitePath)
	src, err := database.Open(database.DefaultConfig(*sqlitePath))
	if err != nil {
		log.Fatalf("Failed to open SQLite database: %v", err)
	}
	defer src.Close()

	pg := database.DefaultPostgresConfig()
	pg.Host, pg.Port, pg.User, pg.Password = *pgHost, *pgPort, *pgUser, *pgPassword
	pg.Database, pg.SSLMode = *pgDatabase, *pgSSLMode

	log.Printf("Opening PostgreSQL database: %s@%s:%d/%s", pg.User, pg.Host, pg.Port, pg.Database)
	dst, err := database.Open(database.Config{Driver: string(database.DialectPostgres), Postgres: pg})
	if err != nil {
		log.Fatalf("Failed to open PostgreSQL database: %v", err)
	}
	defer dst.Close()

	if *dryRun {
		log.Println("DRY RUN MODE - No changes will be made")
	}

	count, err := copyRulesets(src, dst, *dryRun, log.Printf)
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("======================================")
	log.Printf("Migration complete! Rulesets migrated: %d", count)
	if *dryRun {
		log.Println("(DRY RUN - No actual changes were made)")
	}
}

// copyRulesets copies every ruleset in src into dst, replacing rulesets of
// the same name. In a dry run dst is only read.
func copyRulesets(src, dst *database.Database, dryRun bool, logf func(string, ...any)) (int, error) {
	infos, err := src.ListRulesets()
	if err != nil {
		return 0, fmt.Errorf("list source rulesets: %w", err)
	}

	existing := make(map[string]bool)
	dstInfos, err := dst.ListRulesets()
	if err != nil {
		return 0, fmt.Errorf("list target rulesets: %w", err)
	}
	for _, info := range dstInfos {
		existing[info.Name] = true
	}

	copied := 0
	for _, info := range infos {
		rs, err := src.LoadRuleset(info.Name)
		if err != nil {
			return copied, fmt.Errorf("load %s: %w", info.Name, err)
		}
		action := "copy"
		if existing[info.Name] {
			action = "replace"
		}
		logf("  %s %s (%d unit kinds)", action, info.Name, info.UnitKinds)
		if !dryRun {
			if err := dst.SaveRuleset(rs); err != nil {
				return copied, fmt.Errorf("save %s: %w", info.Name, err)
			}
		}
		copied++
	}
	return copied, nil
}
