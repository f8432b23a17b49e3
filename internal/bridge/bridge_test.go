package bridge

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/lawnchairsociety/battlecalc/internal/calcerr"
	"github.com/lawnchairsociety/battlecalc/internal/engine"
	"github.com/lawnchairsociety/battlecalc/internal/policy"
	"github.com/lawnchairsociety/battlecalc/internal/ruleset"
	"github.com/lawnchairsociety/battlecalc/internal/snapshot"
)

func newBridge(t *testing.T, seed uint64) (*Bridge, *snapshot.Snapshot, *snapshot.ChangeLog) {
	t.Helper()
	s := snapshot.New(ruleset.Classic())
	log := &snapshot.ChangeLog{}
	return New(s, log, rand.New(rand.NewPCG(seed, seed))), s, log
}

func TestRollRangeAndCount(t *testing.T) {
	b, _, _ := newBridge(t, 1)
	rolls := b.Roll(6, 1000, "test")
	if len(rolls) != 1000 {
		t.Fatalf("got %d rolls", len(rolls))
	}
	seen := map[int]bool{}
	for _, r := range rolls {
		if r < 1 || r > 6 {
			t.Fatalf("roll %d out of range", r)
		}
		seen[r] = true
	}
	if len(seen) != 6 {
		t.Errorf("saw %d distinct faces in 1000 rolls", len(seen))
	}
	b.Roll(12, 5, "test")
	if b.DiceRolled() != 1005 {
		t.Errorf("DiceRolled = %d, want 1005", b.DiceRolled())
	}
	b.ResetDice()
	if b.DiceRolled() != 0 {
		t.Error("ResetDice should zero the counter")
	}
}

func TestRollSeeded(t *testing.T) {
	a, _, _ := newBridge(t, 42)
	b, _, _ := newBridge(t, 42)
	ra, rb := a.Roll(6, 50, ""), b.Roll(6, 50, "")
	for i := range ra {
		if ra[i] != rb[i] {
			t.Fatal("same seed should give the same dice")
		}
	}
}

func TestRecordChange(t *testing.T) {
	b, s, log := newBridge(t, 1)
	units, _ := s.CreateUnits("Battleship", "Germans", 1)
	if err := s.Perform(&snapshot.AddUnits{Territory: "Sea Zone 5", Units: units}); err != nil {
		t.Fatal(err)
	}
	before := s.Clone()

	if err := b.RecordChange(snapshot.Hits(units[0].ID)); err != nil {
		t.Fatalf("RecordChange: %v", err)
	}
	remove, _ := s.RemoveUnitsChange("Sea Zone 5", []snapshot.UnitID{units[0].ID})
	if err := b.RecordChange(remove); err != nil {
		t.Fatalf("RecordChange(remove): %v", err)
	}

	if u, ok := s.Unit(units[0].ID); !ok || u.Hits != 1 {
		t.Errorf("unit = %+v (present %v), want one hit and still present", u, ok)
	}
	if log.Len() != 1 {
		t.Errorf("log has %d changes, want 1", log.Len())
	}
	if err := log.Rollback(s); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if !s.Equal(before) {
		t.Error("rollback should restore the snapshot")
	}
}

func TestMissingDecider(t *testing.T) {
	b, _, _ := newBridge(t, 1)
	if _, _, err := b.RetreatQuery("Germans", engine.RetreatQuery{}); !errors.Is(err, calcerr.ErrConfiguration) {
		t.Errorf("RetreatQuery error = %v, want configuration error", err)
	}
	if _, err := b.SelectCasualties("Germans", engine.CasualtyRequest{}); !errors.Is(err, calcerr.ErrConfiguration) {
		t.Errorf("SelectCasualties error = %v, want configuration error", err)
	}
}

func TestDecisionsAreRouted(t *testing.T) {
	b, s, _ := newBridge(t, 1)
	cat := s.Ruleset().Catalog
	units, _ := s.CreateUnits("Infantry", "Germans", 2)

	stay, _ := policy.NewDecider(policy.Policy{}, cat, units)
	leave, _ := policy.NewDecider(policy.Policy{RetreatAfterRound: 1}, cat, units)
	b.SetDecider("Russians", stay)
	b.SetDecider("Germans", leave)

	q := engine.RetreatQuery{Round: 1, Destinations: []string{"Germany"}, Own: units}
	if dest, ok, err := b.RetreatQuery("Germans", q); err != nil || !ok || dest != "Germany" {
		t.Errorf("Germans: %q %v %v, want retreat to Germany", dest, ok, err)
	}
	if _, ok, err := b.RetreatQuery("Russians", q); err != nil || ok {
		t.Errorf("Russians: %v %v, want stay", ok, err)
	}

	def := engine.CasualtyDetails{Killed: []snapshot.UnitID{units[0].ID}}
	got, err := b.SelectCasualties("Germans", engine.CasualtyRequest{Hits: 1, SelectFrom: units, Default: def})
	if err != nil || len(got.Killed) != 1 {
		t.Errorf("SelectCasualties = %+v, %v", got, err)
	}
}
