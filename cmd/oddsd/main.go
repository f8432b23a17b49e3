package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lawnchairsociety/battlecalc/internal/config"
	"github.com/lawnchairsociety/battlecalc/internal/database"
	"github.com/lawnchairsociety/battlecalc/internal/engine"
	"github.com/lawnchairsociety/battlecalc/internal/logger"
	"github.com/lawnchairsociety/battlecalc/internal/ruleset"
	"github.com/lawnchairsociety/battlecalc/internal/server"
)

func main() {
	configFile := flag.String("config", "data/battlecalc.yaml", "Path to config YAML file")
	address := flag.String("address", "", "Listen address (overrides the config)")
	rulesetFile := flag.String("ruleset", "", "Serve this ruleset file instead of the config's")
	stored := flag.Bool("stored", false, "Serve the rulesets in the ruleset database")
	defaultRuleset := flag.String("default-ruleset", "classic", "Stored ruleset used when a client names none")
	hashKey := flag.String("hash-key", "", "Print the bcrypt hash of an access key for the config and exit")
	flag.Parse()

	// Handle -hash-key (prints and exits)
	if *hashKey != "" {
		hash, err := config.HashAccessKey(*hashKey)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	// Initialize logger first (before any logging)
	logConfig, err := logger.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load logging config: %v", err)
	}
	if err := logger.Initialize(logConfig); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logger.Close()

	logger.Info("Starting odds service")

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *address != "" {
		cfg.Server.Address = *address
	}

	var rulesets server.RulesetSource
	if *stored {
		db, err := database.Open(cfg.Database)
		if err != nil {
			log.Fatalf("Failed to open ruleset database: %v", err)
		}
		defer db.Close()
		rulesets = server.NewStoredRulesets(db, *defaultRuleset)
		logger.Info("Serving stored rulesets", "driver", cfg.Database.Driver, "default", *defaultRuleset)
	} else {
		path := cfg.RulesetFile
		if *rulesetFile != "" {
			path = *rulesetFile
		}
		rs, err := loadRuleset(path)
		if err != nil {
			log.Fatalf("Failed to load ruleset: %v", err)
		}
		rulesets = server.NewStaticRulesets(rs)
		logger.Info("Ruleset loaded", "name", rs.Name, "unit_kinds", rs.Catalog.Len())
	}

	switch origins := cfg.Server.AllowedOrigins; {
	case len(origins) == 0:
		logger.Info("WebSocket CORS policy", "mode", "same-origin")
	case len(origins) == 1 && origins[0] == "*":
		logger.Warning("WebSocket CORS allows all origins (not recommended for production)")
	default:
		logger.Info("WebSocket CORS policy", "allowed_origins", origins)
	}
	if !cfg.Server.RequiresAccessKey() {
		logger.Warning("No access key configured, any client may run calculations")
	}
	logger.Info("Calculator settings",
		"workers", cfg.Calculator.WorkerCount(),
		"default_trials", cfg.Calculator.DefaultTrials,
		"seeded", cfg.Calculator.Seed != 0)

	srv := server.NewServer(cfg, rulesets, engine.Classic{})
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatalf("Odds service error: %v", err)
		}
	}()
	logger.Info("Press Ctrl+C to shutdown")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down odds service")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Shutdown did not complete", "error", err)
	}
}

// loadRuleset reads path, or uses the built-in classic rules when the file
// does not exist.
func loadRuleset(path string) (*ruleset.Ruleset, error) {
	if path == "" {
		return ruleset.Classic(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Warning("Ruleset file not found, using built-in classic rules", "path", path)
		return ruleset.Classic(), nil
	}
	return ruleset.LoadFromYAML(path)
}
