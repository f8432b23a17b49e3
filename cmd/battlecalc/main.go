// battlecalc estimates battle odds by simulating a battle many times.
//
// Usage:
//
//	battlecalc [command] [options]
//
// Commands:
//
//	run           - Simulate a scenario and print the odds
//	validate-ool  - Check an order-of-loss string
//	import        - Store a ruleset file in the ruleset database
//	list          - List stored rulesets
//	delete        - Remove a stored ruleset
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/lawnchairsociety/battlecalc/internal/calc"
	"github.com/lawnchairsociety/battlecalc/internal/config"
	"github.com/lawnchairsociety/battlecalc/internal/database"
	"github.com/lawnchairsociety/battlecalc/internal/engine"
	"github.com/lawnchairsociety/battlecalc/internal/logger"
	"github.com/lawnchairsociety/battlecalc/internal/policy"
	"github.com/lawnchairsociety/battlecalc/internal/results"
	"github.com/lawnchairsociety/battlecalc/internal/ruleset"
	"github.com/lawnchairsociety/battlecalc/internal/scenario"
	"github.com/lawnchairsociety/battlecalc/internal/snapshot"
)

// errUsage marks errors already explained by the flag package.
var errUsage = errors.New("usage")

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "run":
		err = runScenario(ctx, os.Args[2:], os.Stdout)
	case "validate-ool":
		err = runValidateOOL(os.Args[2:], os.Stdout)
	case "import":
		err = runImport(os.Args[2:], os.Stdout)
	case "list":
		err = runList(os.Args[2:], os.Stdout)
	case "delete":
		err = runDelete(os.Args[2:], os.Stdout)
	case "help", "-h", "--help":
		printUsage(os.Stdout)
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage(os.Stderr)
		os.Exit(1)
	}

	logger.Close()
	if err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `battlecalc - battle odds calculator

Usage: battlecalc <command> [options]

Commands:
  run           Simulate a scenario and print the odds
  validate-ool  Check an order-of-loss string against a ruleset
  import        Store a ruleset file in the ruleset database
  list          List stored rulesets
  delete        Remove a stored ruleset

Examples:
  battlecalc run -scenario data/scenarios/karelia.yaml -trials 5000
  battlecalc run -ruleset data/classic.yaml -scenario s.yaml -seed 42 -json
  battlecalc validate-ool -order "1^Infantry;*^Tank"
  battlecalc import -ruleset data/classic.yaml
  battlecalc list

Use "battlecalc <command> -h" for more information about a command.`)
}

// commonFlags are shared by every command.
type commonFlags struct {
	configFile string
	verbose    bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configFile, "config", "data/battlecalc.yaml", "Path to config YAML file")
	fs.BoolVar(&c.verbose, "v", false, "Log calculator progress")
}

// setup loads the config file and starts logging. The CLI only logs
// warnings unless -v is given.
func (c *commonFlags) setup() (*config.Config, error) {
	cfg, err := config.LoadConfig(c.configFile)
	if err != nil {
		return nil, err
	}
	logCfg, err := logger.LoadConfig(c.configFile)
	if err != nil {
		return nil, err
	}
	if !c.verbose && os.Getenv("LOG_LEVEL") == "" {
		logCfg.Level = "WARN"
	}
	logCfg.ConsoleFormat = "text"
	if err := logger.Initialize(logCfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parse reports flag errors and -h as errUsage; the flag package has
// already printed the details.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return nil
}

// loadRuleset reads a ruleset file, a stored ruleset, or falls back to the
// built-in classic rules.
func loadRuleset(cfg *config.Config, path, stored string) (*ruleset.Ruleset, error) {
	switch {
	case stored != "":
		db, err := database.Open(cfg.Database)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		return db.LoadRuleset(stored)
	case path != "":
		return ruleset.LoadFromYAML(path)
	case cfg.RulesetFile != "":
		if _, err := os.Stat(cfg.RulesetFile); err == nil {
			return ruleset.LoadFromYAML(cfg.RulesetFile)
		}
	}
	return ruleset.Classic(), nil
}

func runScenario(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	rulesetFile := fs.String("ruleset", "", "Path to ruleset YAML file (default: config ruleset_file, then built-in)")
	stored := fs.String("stored", "", "Name of a ruleset in the ruleset database")
	scenarioFile := fs.String("scenario", "", "Path to scenario YAML file")
	trials := fs.Int("trials", 0, "Number of trials (overrides the scenario)")
	workers := fs.Int("workers", 0, "Parallel workers (default: config, then CPU count)")
	seed := fs.Uint64("seed", 0, "Dice seed for reproducible runs (0: random)")
	timeout := fs.Duration("timeout", 0, "Stop after this long and report the trials so far")
	asJSON := fs.Bool("json", false, "Print the result as JSON")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *scenarioFile == "" {
		fmt.Fprintln(fs.Output(), "run: -scenario is required")
		return errUsage
	}

	cfg, err := common.setup()
	if err != nil {
		return err
	}
	sc, err := scenario.Load(*scenarioFile)
	if err != nil {
		return err
	}
	if *trials > 0 {
		sc.Trials = *trials
	}
	rs, err := loadRuleset(cfg, *rulesetFile, firstNonEmpty(*stored, sc.Ruleset))
	if err != nil {
		return err
	}

	opts := []calc.Option{calc.WithWorkers(cfg.Calculator.WorkerCount())}
	if *workers > 0 {
		opts = append(opts, calc.WithWorkers(*workers))
	}
	if s := firstNonZero(*seed, cfg.Calculator.Seed); s != 0 {
		opts = append(opts, calc.WithSeed(s))
	}
	sess := calc.New(engine.Classic{}, opts...)
	defer sess.Shutdown()

	if err := sess.SetSnapshot(snapshot.New(rs)); err != nil {
		return err
	}
	req, err := sc.Apply(sess, cfg.Calculator.DefaultTrials)
	if err != nil {
		return err
	}

	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}
	agg, err := sess.ConfigureAndRun(ctx, req)
	if err != nil {
		return err
	}

	sum := agg.Summarize(rs.Catalog.Costs(), sc.Attacking.Counts(), sc.Defending.Counts())
	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	}
	printSummary(out, sc, rs, &sum)
	return nil
}

func printSummary(out io.Writer, sc *scenario.Scenario, rs *ruleset.Ruleset, sum *results.Summary) {
	p := message.NewPrinter(language.English)

	p.Fprintln(out, "=== Battle Odds ===")
	p.Fprintln(out)
	p.Fprintf(out, "%s attack %s in %s (%s rules)\n", sc.Attacker, sc.Defender, sc.Location, rs.Name)
	p.Fprintf(out, "Attacking: %s (value %d)\n", describe(sc.Attacking), sc.Attacking.Counts().Value(rs.Catalog.Costs()))
	p.Fprintf(out, "Defending: %s (value %d)\n", describe(sc.Defending), sc.Defending.Counts().Value(rs.Catalog.Costs()))
	if len(sc.Bombarding) > 0 {
		p.Fprintf(out, "Bombarding: %s\n", describe(sc.Bombarding))
	}
	p.Fprintf(out, "Trials: %d", sum.Trials)
	if sum.Dropped > 0 {
		p.Fprintf(out, " (%d dropped)", sum.Dropped)
	}
	p.Fprintf(out, " in %v", time.Duration(sum.ElapsedMillis)*time.Millisecond)
	if sum.Cancelled {
		p.Fprint(out, " [cancelled]")
	}
	p.Fprintln(out)
	p.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	p.Fprintf(w, "Attacker wins\t%.1f%%\n", sum.AttackerWinPercent)
	p.Fprintf(w, "Defender wins\t%.1f%%\n", sum.DefenderWinPercent)
	p.Fprintf(w, "Draws\t%.1f%%\n", sum.DrawPercent)
	p.Fprintf(w, "Retreats\t%.1f%%\n", sum.RetreatPercent)
	p.Fprintf(w, "Average rounds\t%.2f\n", sum.AverageRounds)
	p.Fprintf(w, "Average dice\t%.1f\n", sum.AverageDice)
	p.Fprintf(w, "Attacking units left\t%.2f (%.2f when the attacker wins)\n", sum.AttackingUnitsLeft, sum.AttackingUnitsLeftWhenWon)
	p.Fprintf(w, "Defending units left\t%.2f (%.2f when the defender wins)\n", sum.DefendingUnitsLeft, sum.DefendingUnitsLeftWhenWon)
	p.Fprintf(w, "Value left\tattacker %.1f, defender %.1f\n", sum.AttackerValueLeft, sum.DefenderValueLeft)
	p.Fprintf(w, "Value swing\t%+.1f\n", sum.ValueSwing)
	w.Flush()
}

func describe(f scenario.Forces) string {
	parts := make([]string, 0, len(f))
	for _, kind := range f.Kinds() {
		if f[kind] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", f[kind], kind))
		}
	}
	if len(parts) == 0 {
		return "nothing"
	}
	return strings.Join(parts, ", ")
}

func runValidateOOL(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("validate-ool", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	rulesetFile := fs.String("ruleset", "", "Path to ruleset YAML file (default: built-in)")
	order := fs.String("order", "", `Order of loss, e.g. "1^Infantry;*^Tank"`)
	if err := parse(fs, args); err != nil {
		return err
	}

	cfg, err := common.setup()
	if err != nil {
		return err
	}
	rs, err := loadRuleset(cfg, *rulesetFile, "")
	if err != nil {
		return err
	}
	ool, err := policy.ParseOrderOfLoss(*order, rs.Catalog)
	if err != nil {
		return err
	}
	if len(ool) == 0 {
		fmt.Fprintln(out, "empty order of loss: default casualty selection")
		return nil
	}
	fmt.Fprintf(out, "valid: %s\n", ool)
	for i, e := range ool {
		amount := "all"
		if e.Amount != policy.All {
			amount = fmt.Sprint(e.Amount)
		}
		fmt.Fprintf(out, "  %d. %s %s\n", i+1, amount, e.Kind)
	}
	return nil
}

func openStore(args []string, name string, extra func(*flag.FlagSet)) (*database.Database, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	dbPath := fs.String("db", "", "SQLite ruleset database (overrides the config)")
	if extra != nil {
		extra(fs)
	}
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	cfg, err := common.setup()
	if err != nil {
		return nil, err
	}
	dbCfg := cfg.Database
	if *dbPath != "" {
		dbCfg = database.DefaultConfig(*dbPath)
	}
	return database.Open(dbCfg)
}

func runImport(args []string, out io.Writer) error {
	var rulesetFile, name string
	db, err := openStore(args, "import", func(fs *flag.FlagSet) {
		fs.StringVar(&rulesetFile, "ruleset", "", "Path to ruleset YAML file")
		fs.StringVar(&name, "name", "", "Store under this name instead of the file's")
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if rulesetFile == "" {
		return fmt.Errorf("import: -ruleset is required")
	}
	rs, err := ruleset.LoadFromYAML(rulesetFile)
	if err != nil {
		return err
	}
	if name != "" {
		rs.Name = name
	}
	if err := db.SaveRuleset(rs); err != nil {
		return err
	}
	fmt.Fprintf(out, "stored ruleset %q (%d unit kinds)\n", rs.Name, rs.Catalog.Len())
	return nil
}

func runList(args []string, out io.Writer) error {
	db, err := openStore(args, "list", nil)
	if err != nil {
		return err
	}
	defer db.Close()

	infos, err := db.ListRulesets()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Fprintln(out, "no rulesets stored")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDICE\tUNIT KINDS\tUPDATED")
	for _, info := range infos {
		fmt.Fprintf(w, "%s\td%d\t%d\t%s\n", info.Name, info.DiceSides, info.UnitKinds, info.UpdatedAt.Format(time.DateTime))
	}
	return w.Flush()
}

func runDelete(args []string, out io.Writer) error {
	var name string
	db, err := openStore(args, "delete", func(fs *flag.FlagSet) {
		fs.StringVar(&name, "name", "", "Ruleset to delete")
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.DeleteRuleset(name); err != nil {
		return err
	}
	fmt.Fprintf(out, "deleted ruleset %q\n", name)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(values ...uint64) uint64 {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
