package ruleset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestClassicIsValid(t *testing.T) {
	rs := Classic()
	if err := rs.Validate(); err != nil {
		t.Fatalf("Classic().Validate() = %v", err)
	}
	if !rs.Catalog.Has("Infantry") {
		t.Error("expected Infantry in classic catalog")
	}
	if rs.Catalog.Kind("Battleship").HitPoints != 2 {
		t.Errorf("Battleship hit points = %d, want 2", rs.Catalog.Kind("Battleship").HitPoints)
	}
	if rs.Catalog.Kind("Infantry").Rolls != 1 {
		t.Errorf("default rolls = %d, want 1", rs.Catalog.Kind("Infantry").Rolls)
	}
}

func TestCostLess(t *testing.T) {
	cat, err := NewCatalog(
		UnitKind{Name: "Infantry", Cost: 3, Attack: 1, Defense: 2},
		UnitKind{Name: "Militia", Cost: 3, Attack: 1, Defense: 1},
		UnitKind{Name: "Tank", Cost: 6, Attack: 3, Defense: 3},
		UnitKind{Name: "Guard", Cost: 3, Attack: 1, Defense: 1},
	)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}

	tests := []struct {
		a, b string
		want bool
	}{
		{"Infantry", "Tank", true},
		{"Tank", "Infantry", false},
		{"Militia", "Infantry", true}, // same cost, weaker
		{"Guard", "Militia", true},    // same cost and power, by name
		{"Tank", "Unknown", true},
		{"Unknown", "Tank", false},
	}
	for _, tt := range tests {
		if got := cat.CostLess(tt.a, tt.b); got != tt.want {
			t.Errorf("CostLess(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}

	names := cat.Names()
	want := []string{"Guard", "Militia", "Infantry", "Tank"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("Names() = %v, want %v", names, want)
	}
}

func TestNewCatalogRejectsBadKinds(t *testing.T) {
	tests := []struct {
		name  string
		kinds []UnitKind
	}{
		{"duplicate", []UnitKind{{Name: "A"}, {Name: "A"}}},
		{"no name", []UnitKind{{Cost: 1}}},
		{"negative cost", []UnitKind{{Name: "A", Cost: -1}}},
		{"bad domain", []UnitKind{{Name: "A", Domain: "space"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCatalog(tt.kinds...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestValue(t *testing.T) {
	cat := Classic().Catalog
	got := cat.Value(map[string]int{"Infantry": 2, "Tank": 1, "Nope": 5})
	if got != 12 {
		t.Errorf("Value = %d, want 12", got)
	}
}

func TestAllied(t *testing.T) {
	rs := Classic()
	if !rs.Allied("Russians", "Americans") {
		t.Error("Russians and Americans should be allied")
	}
	if rs.Allied("Germans", "Russians") {
		t.Error("Germans and Russians should not be allied")
	}
	if !rs.Allied("Germans", "Germans") {
		t.Error("a player is allied with itself")
	}
}

func TestEffectApplies(t *testing.T) {
	e := Effect{Name: "Mountain", Kinds: []string{"Infantry"}}
	if !e.Applies("Infantry") || e.Applies("Tank") {
		t.Error("Applies should honour the kind list")
	}
	all := Effect{Name: "Fog"}
	if !all.Applies("Tank") {
		t.Error("empty kind list applies to every kind")
	}
}

const testRulesetYAML = `
name: lakes
dice_sides: 6
max_rounds: 20
unit_kinds:
  Infantry:
    cost: 3
    attack: 1
    defense: 2
    domain: land
  Fighter:
    cost: 10
    attack: 3
    defense: 4
    domain: air
  Submarine:
    cost: 6
    attack: 2
    defense: 1
    domain: sea
    submersible: true
players:
  Superior:
    alliance: North
    resources:
      PUs: 30
  Huron:
    alliance: South
territories:
  C:
    owner: Huron
  Lake:
    water: true
effects:
  Forest:
    defense_bonus: 1
    kinds: [Infantry]
`

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lakes.yaml")
	if err := os.WriteFile(path, []byte(testRulesetYAML), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	rs, err := LoadFromYAML(path)
	if err != nil {
		t.Fatalf("LoadFromYAML: %v", err)
	}
	if rs.Name != "lakes" || rs.MaxRounds != 20 {
		t.Errorf("unexpected header: %+v", rs)
	}
	if rs.Catalog.Len() != 3 {
		t.Errorf("catalog has %d kinds, want 3", rs.Catalog.Len())
	}
	if !rs.Catalog.Kind("Submarine").Submersible {
		t.Error("Submarine should be submersible")
	}
	if tr, ok := rs.Territory("Lake"); !ok || !tr.Water {
		t.Error("Lake should be a water territory")
	}
	if rs.Players["Superior"].Resources["PUs"] != 30 {
		t.Error("Superior should have 30 PUs")
	}
	if e, ok := rs.Effect("Forest"); !ok || e.DefenseBonus != 1 {
		t.Error("Forest effect not loaded")
	}
}

func TestLoadFromYAMLMissingFile(t *testing.T) {
	if _, err := LoadFromYAML(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseRejectsUnknownOwner(t *testing.T) {
	data := `
name: bad
unit_kinds:
  Infantry: {cost: 3, attack: 1, defense: 2, domain: land}
territories:
  X: {owner: Nobody}
`
	if _, err := Parse([]byte(data)); err == nil {
		t.Error("expected error for territory with unknown owner")
	}
}

func TestToConfigRoundTrip(t *testing.T) {
	rs := Classic()
	back, err := rs.ToConfig().Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if back.Catalog.Len() != rs.Catalog.Len() {
		t.Errorf("kinds = %d, want %d", back.Catalog.Len(), rs.Catalog.Len())
	}
	if back.Catalog.Kind("Carrier").HitPoints != 2 {
		t.Error("hit points lost in round trip")
	}
	if len(back.Territories) != len(rs.Territories) {
		t.Errorf("territories = %d, want %d", len(back.Territories), len(rs.Territories))
	}
}
