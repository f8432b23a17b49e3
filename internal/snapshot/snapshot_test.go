package snapshot

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/lawnchairsociety/battlecalc/internal/ruleset"
)

func newTestSnapshot(t *testing.T) (*Snapshot, []Unit, []Unit) {
	t.Helper()
	s := New(ruleset.Classic())
	attackers, err := s.CreateUnits("Tank", "Germans", 3)
	if err != nil {
		t.Fatalf("CreateUnits: %v", err)
	}
	defenders, err := s.CreateUnits("Infantry", "Russians", 4)
	if err != nil {
		t.Fatalf("CreateUnits: %v", err)
	}
	if err := s.Perform(&AddUnits{Territory: "Karelia", Units: attackers}); err != nil {
		t.Fatalf("add attackers: %v", err)
	}
	if err := s.Perform(&AddUnits{Territory: "Karelia", Units: defenders}); err != nil {
		t.Fatalf("add defenders: %v", err)
	}
	return s, attackers, defenders
}

func TestNewCopiesRuleset(t *testing.T) {
	s := New(ruleset.Classic())
	if !s.HasTerritory("Germany") {
		t.Error("expected Germany")
	}
	if !s.IsWater("Sea Zone 5") {
		t.Error("Sea Zone 5 should be water")
	}
	if s.Resources("Germans")["PUs"] != 40 {
		t.Errorf("Germans PUs = %d, want 40", s.Resources("Germans")["PUs"])
	}
	if s.Alliance("Russians") != "Allies" {
		t.Errorf("Russians alliance = %q", s.Alliance("Russians"))
	}
}

func TestCreateUnitsUnknownKind(t *testing.T) {
	s := New(ruleset.Classic())
	if _, err := s.CreateUnits("Dragon", "Germans", 1); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestCreateUnitsFreshIDs(t *testing.T) {
	s := New(ruleset.Classic())
	a, _ := s.CreateUnits("Infantry", "Germans", 2)
	b, _ := s.CreateUnits("Infantry", "Germans", 2)
	seen := map[UnitID]bool{}
	for _, u := range append(a, b...) {
		if seen[u.ID] {
			t.Fatalf("duplicate id %d", u.ID)
		}
		seen[u.ID] = true
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s, attackers, _ := newTestSnapshot(t)
	c := s.Clone()
	if !s.Equal(c) {
		t.Fatal("clone should equal original")
	}

	if err := c.Perform(Hits(attackers[0].ID)); err != nil {
		t.Fatalf("Perform: %v", err)
	}
	if s.Equal(c) {
		t.Error("mutating the clone must not affect the original")
	}
	if u, _ := s.Unit(attackers[0].ID); u.Hits != 0 {
		t.Errorf("original unit hits = %d, want 0", u.Hits)
	}
}

func TestUnitsAtOrdered(t *testing.T) {
	s, attackers, defenders := newTestSnapshot(t)
	units := s.UnitsAt("Karelia")
	if len(units) != len(attackers)+len(defenders) {
		t.Fatalf("got %d units, want %d", len(units), len(attackers)+len(defenders))
	}
	for i := 1; i < len(units); i++ {
		if units[i-1].ID >= units[i].ID {
			t.Fatal("UnitsAt should be ordered by id")
		}
	}
}

func TestAddUnitsValidation(t *testing.T) {
	s, attackers, _ := newTestSnapshot(t)
	before := s.Clone()

	tests := []struct {
		name   string
		change Change
	}{
		{"duplicate id", &AddUnits{Territory: "Russia", Units: attackers[:1]}},
		{"unknown territory", &AddUnits{Territory: "Atlantis", Units: []Unit{{ID: 999, Kind: "Tank"}}}},
		{"unknown kind", &AddUnits{Territory: "Russia", Units: []Unit{{ID: 999, Kind: "Dragon"}}}},
		{"remove missing", &RemoveUnits{Territory: "Russia", Units: attackers[:1]}},
		{"hits below zero", &UnitHits{Deltas: []HitDelta{{Unit: attackers[0].ID, Delta: -1}}}},
		{"hits unknown unit", Hits(12345)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Perform(tt.change); err == nil {
				t.Error("expected error")
			}
			if !s.Equal(before) {
				t.Error("failed change must leave the snapshot untouched")
			}
		})
	}
}

func TestInvertRoundTrip(t *testing.T) {
	s, attackers, defenders := newTestSnapshot(t)
	remove, err := s.RemoveUnitsChange("Karelia", []UnitID{defenders[0].ID, defenders[1].ID})
	if err != nil {
		t.Fatalf("RemoveUnitsChange: %v", err)
	}
	extra, _ := s.CreateUnits("Fighter", "Germans", 2)

	changes := []Change{
		Hits(attackers[0].ID, attackers[0].ID),
		remove,
		&AddUnits{Territory: "Germany", Units: extra},
		&AddUnits{Units: []Unit{{ID: 500, Kind: "Battleship", Owner: "Germans"}}},
	}
	for _, c := range changes {
		before := s.Clone()
		if err := s.Perform(c); err != nil {
			t.Fatalf("Perform %s: %v", c.Kind(), err)
		}
		if err := s.Perform(c.Invert()); err != nil {
			t.Fatalf("Perform inverse of %s: %v", c.Kind(), err)
		}
		if !s.Equal(before) {
			t.Errorf("%s: apply then invert is not a no-op", c.Kind())
		}
	}
}

func TestChangeLogRejectsNonHitChanges(t *testing.T) {
	s, attackers, _ := newTestSnapshot(t)
	var log ChangeLog

	remove, _ := s.RemoveUnitsChange("Karelia", []UnitID{attackers[0].ID})
	for _, c := range []Change{remove, &AddUnits{Territory: "Germany"}} {
		if err := log.Record(c); !errors.Is(err, ErrRejectedChange) {
			t.Errorf("Record(%s) = %v, want ErrRejectedChange", c.Kind(), err)
		}
	}
	if err := log.Record(Hits(attackers[0].ID)); err != nil {
		t.Errorf("Record(hits) = %v", err)
	}
	if log.Len() != 1 {
		t.Errorf("Len = %d, want 1", log.Len())
	}
}

func TestChangeLogRollbackRestoresSnapshot(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		s, attackers, defenders := newTestSnapshot(t)
		all := append(append([]Unit{}, attackers...), defenders...)
		before := s.Clone()

		var log ChangeLog
		for i := 0; i < 1+rng.Intn(10); i++ {
			var ids []UnitID
			for _, u := range all {
				if rng.Intn(3) == 0 {
					ids = append(ids, u.ID)
				}
			}
			c := Hits(ids...)
			if err := log.Record(c); err != nil {
				t.Fatalf("Record: %v", err)
			}
			if err := s.Perform(c); err != nil {
				t.Fatalf("Perform: %v", err)
			}
		}

		if err := log.Rollback(s); err != nil {
			t.Fatalf("Rollback: %v", err)
		}
		if !s.Equal(before) {
			t.Fatalf("trial %d: rollback did not restore the snapshot", trial)
		}
		if log.Len() != 0 {
			t.Errorf("log should be empty after rollback, has %d", log.Len())
		}
	}
}

func TestInverseOrder(t *testing.T) {
	var log ChangeLog
	log.Record(&UnitHits{Deltas: []HitDelta{{Unit: 1, Delta: 1}}})
	log.Record(&UnitHits{Deltas: []HitDelta{{Unit: 2, Delta: 2}}})
	inv := log.Inverse()
	if len(inv) != 2 {
		t.Fatalf("len = %d", len(inv))
	}
	first := inv[0].(*UnitHits)
	if first.Deltas[0].Unit != 2 || first.Deltas[0].Delta != -2 {
		t.Errorf("first inverse = %+v, want unit 2 delta -2", first.Deltas[0])
	}
}
