package scenario

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/lawnchairsociety/battlecalc/internal/calc"
	"github.com/lawnchairsociety/battlecalc/internal/calcerr"
	"github.com/lawnchairsociety/battlecalc/internal/engine"
	"github.com/lawnchairsociety/battlecalc/internal/policy"
	"github.com/lawnchairsociety/battlecalc/internal/ruleset"
	"github.com/lawnchairsociety/battlecalc/internal/snapshot"
)

const karelia = `
attacker: Germans
defender: Russians
location: Karelia
attacking:
  Tank: 2
  Infantry: 3
defending:
  Infantry: 2
bombarding:
  Battleship: 1
retreat_to: [Germany]
trials: 250
attacker_policy:
  order_of_loss: "*^Infantry"
  retreat_after_round: 3
`

var policyBadOrder = policy.Policy{OrderOfLoss: "Infantry"}

func newSession(t *testing.T) *calc.Session {
	t.Helper()
	s := calc.New(engine.Classic{}, calc.WithWorkers(2), calc.WithSeed(7))
	if err := s.SetSnapshot(snapshot.New(ruleset.Classic())); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestParse(t *testing.T) {
	sc, err := Parse([]byte(karelia))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if sc.Attacker != "Germans" || sc.Location != "Karelia" || sc.Trials != 250 {
		t.Errorf("scenario = %+v", sc)
	}
	if sc.Attacking["Infantry"] != 3 || sc.Bombarding["Battleship"] != 1 {
		t.Errorf("forces = %v %v", sc.Attacking, sc.Bombarding)
	}
	att, def := sc.Policies()
	if att.OrderOfLoss != "*^Infantry" || att.RetreatAfterRound != 3 {
		t.Errorf("attacker policy = %+v", att)
	}
	if def.OrderOfLoss != "" || def.RetreatAfterRound != 0 {
		t.Errorf("missing defender policy should default, got %+v", def)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "karelia.yaml")
	if err := os.WriteFile(path, []byte(karelia), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
	if _, err := Parse([]byte("attacking: [1, 2")); err == nil {
		t.Error("expected an error for malformed YAML")
	}
}

func TestApply(t *testing.T) {
	sc, err := Parse([]byte(karelia))
	if err != nil {
		t.Fatal(err)
	}
	sess := newSession(t)
	req, err := sc.Apply(sess, 1000)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(req.Attacking) != 5 || len(req.Defending) != 2 || len(req.Bombarding) != 1 {
		t.Fatalf("units = %d/%d/%d", len(req.Attacking), len(req.Defending), len(req.Bombarding))
	}
	// Kinds are allocated in name order.
	if req.Attacking[0].Kind != "Infantry" || req.Attacking[4].Kind != "Tank" {
		t.Errorf("attacking = %v", req.Attacking)
	}
	for _, u := range req.Bombarding {
		if u.Owner != "Germans" {
			t.Errorf("bombarding unit owned by %q", u.Owner)
		}
	}
	if req.Trials != 250 {
		t.Errorf("Trials = %d", req.Trials)
	}
	if p, ok := sess.AttackerPolicy(); !ok || p.RetreatAfterRound != 3 {
		t.Errorf("attacker policy not applied: %+v", p)
	}
	if err := sess.Configure(req); err != nil {
		t.Fatalf("Configure: %v", err)
	}
}

func TestApplyDefaultTrials(t *testing.T) {
	sc := &Scenario{
		Attacker:  "Germans",
		Defender:  "Russians",
		Location:  "Karelia",
		Attacking: Forces{"Infantry": 1, "Tank": 0},
		Defending: Forces{"Infantry": 1},
	}
	req, err := sc.Apply(newSession(t), 1234)
	if err != nil {
		t.Fatal(err)
	}
	if req.Trials != 1234 {
		t.Errorf("Trials = %d, want the default", req.Trials)
	}
	if len(req.Attacking) != 1 {
		t.Errorf("zero counts should be skipped, got %v", req.Attacking)
	}
}

func TestApplyKeepsSessionPolicies(t *testing.T) {
	sess := newSession(t)
	retreat := policy.Policy{RetreatAfterRound: 1}
	keepLand := policy.Policy{KeepAtLeastOneLandUnit: true}
	if err := sess.SetPolicies(&retreat, &keepLand); err != nil {
		t.Fatal(err)
	}

	sc := &Scenario{
		Attacker:  "Germans",
		Defender:  "Russians",
		Location:  "Karelia",
		Attacking: Forces{"Infantry": 3},
		Defending: Forces{"Infantry": 3},
	}
	if _, err := sc.Apply(sess, 10); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if p, _ := sess.AttackerPolicy(); p != retreat {
		t.Errorf("attacker policy = %+v, want %+v", p, retreat)
	}
	if p, _ := sess.DefenderPolicy(); p != keepLand {
		t.Errorf("defender policy = %+v, want %+v", p, keepLand)
	}

	// A side named in the scenario is replaced; the other is kept.
	sc.DefenderPolicy = &policy.Policy{RetreatAfterUnitsLeft: 2}
	if _, err := sc.Apply(sess, 10); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if p, _ := sess.AttackerPolicy(); p != retreat {
		t.Errorf("attacker policy = %+v, want %+v", p, retreat)
	}
	if p, _ := sess.DefenderPolicy(); p.RetreatAfterUnitsLeft != 2 {
		t.Errorf("defender policy = %+v, want the scenario's", p)
	}
}

func TestApplyDefaultsPolicies(t *testing.T) {
	sess := newSession(t)
	sc := &Scenario{Attacker: "Germans", Defender: "Russians", Location: "Karelia",
		Attacking: Forces{"Tank": 1}, Defending: Forces{"Infantry": 1}}
	req, err := sc.Apply(sess, 10)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, ok := sess.AttackerPolicy(); !ok {
		t.Error("attacker policy not defaulted")
	}
	if err := sess.Configure(req); err != nil {
		t.Fatalf("Configure: %v", err)
	}
}

func TestApplyRejects(t *testing.T) {
	tests := []struct {
		name string
		sc   Scenario
	}{
		{"negative count", Scenario{Attacker: "Germans", Defender: "Russians", Attacking: Forces{"Infantry": -1}}},
		{"unknown kind", Scenario{Attacker: "Germans", Defender: "Russians", Defending: Forces{"Zeppelin": 1}}},
		{"bad order of loss", Scenario{AttackerPolicy: &policyBadOrder}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.sc.Apply(newSession(t), 10)
			if !errors.Is(err, calcerr.ErrInvalidConfiguration) {
				t.Errorf("Apply = %v, want invalid configuration", err)
			}
		})
	}
}

func TestScenarioRuns(t *testing.T) {
	sc := &Scenario{
		Attacker:  "Germans",
		Defender:  "Russians",
		Location:  "Karelia",
		Attacking: Forces{"Infantry": 10},
		Defending: Forces{"Infantry": 1},
		Trials:    300,
	}
	sess := newSession(t)
	req, err := sc.Apply(sess, 0)
	if err != nil {
		t.Fatal(err)
	}
	agg, err := sess.ConfigureAndRun(context.Background(), req)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if agg.Trials != 300 {
		t.Errorf("Trials = %d", agg.Trials)
	}
	if agg.AttackerWinPercent() < 90 {
		t.Errorf("attacker wins %.1f%%, want above 90", agg.AttackerWinPercent())
	}
	sum := agg.Summarize(ruleset.Classic().Catalog.Costs(), sc.Attacking.Counts(), sc.Defending.Counts())
	if sum.ValueSwing <= 0 {
		t.Errorf("value swing %.2f should favour the attacker", sum.ValueSwing)
	}
}

func TestForcesCounts(t *testing.T) {
	f := Forces{"Tank": 2, "Infantry": 0}
	c := f.Counts()
	if c.Total() != 2 || len(c) != 1 {
		t.Errorf("Counts() = %v", c)
	}
}
