// Package snapshot holds an isolated, mutable copy of the game world a battle
// is simulated against, and the change log used to put it back afterwards.
//
// A Snapshot belongs to exactly one goroutine at a time. Workers that run in
// parallel each get their own Clone.
package snapshot

import (
	"fmt"
	"sort"

	"github.com/lawnchairsociety/battlecalc/internal/ruleset"
)

// UnitID identifies a unit. Ids survive Clone, so the same id names the
// "same" unit in every copy of a snapshot.
type UnitID int64

// Unit is one unit in the world.
type Unit struct {
	ID    UnitID
	Kind  string
	Owner string
	Hits  int
}

// Territory is a location and the units standing in it.
type Territory struct {
	Name  string
	Water bool
	Owner string
	units map[UnitID]struct{}
}

// Snapshot is an independent copy of territories, units, resource ledgers
// and alliances.
type Snapshot struct {
	rules       *ruleset.Ruleset
	territories map[string]*Territory
	units       map[UnitID]*Unit
	resources   map[string]map[string]int
	alliances   map[string]string
	nextID      UnitID
}

// New builds a snapshot holding the territories, resources and alliances of
// the given ruleset, with no units.
func New(rs *ruleset.Ruleset) *Snapshot {
	s := &Snapshot{
		rules:       rs,
		territories: make(map[string]*Territory, len(rs.Territories)),
		units:       make(map[UnitID]*Unit),
		resources:   make(map[string]map[string]int, len(rs.Players)),
		alliances:   make(map[string]string, len(rs.Players)),
		nextID:      1,
	}
	for name, def := range rs.Territories {
		s.territories[name] = &Territory{
			Name:  name,
			Water: def.Water,
			Owner: def.Owner,
			units: make(map[UnitID]struct{}),
		}
	}
	for name, p := range rs.Players {
		ledger := make(map[string]int, len(p.Resources))
		for r, n := range p.Resources {
			ledger[r] = n
		}
		s.resources[name] = ledger
		s.alliances[name] = p.Alliance
	}
	return s
}

// Ruleset returns the shared, read-only ruleset.
func (s *Snapshot) Ruleset() *ruleset.Ruleset { return s.rules }

// Clone returns a deep copy sharing only the read-only ruleset.
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{
		rules:       s.rules,
		territories: make(map[string]*Territory, len(s.territories)),
		units:       make(map[UnitID]*Unit, len(s.units)),
		resources:   make(map[string]map[string]int, len(s.resources)),
		alliances:   make(map[string]string, len(s.alliances)),
		nextID:      s.nextID,
	}
	for name, t := range s.territories {
		units := make(map[UnitID]struct{}, len(t.units))
		for id := range t.units {
			units[id] = struct{}{}
		}
		c.territories[name] = &Territory{Name: t.Name, Water: t.Water, Owner: t.Owner, units: units}
	}
	for id, u := range s.units {
		cp := *u
		c.units[id] = &cp
	}
	for player, ledger := range s.resources {
		cp := make(map[string]int, len(ledger))
		for r, n := range ledger {
			cp[r] = n
		}
		c.resources[player] = cp
	}
	for player, alliance := range s.alliances {
		c.alliances[player] = alliance
	}
	return c
}

// Equal reports whether two snapshots hold the same world, by value.
func (s *Snapshot) Equal(o *Snapshot) bool {
	if s == o {
		return true
	}
	if s == nil || o == nil {
		return false
	}
	if len(s.territories) != len(o.territories) || len(s.units) != len(o.units) ||
		len(s.resources) != len(o.resources) || len(s.alliances) != len(o.alliances) {
		return false
	}
	for name, t := range s.territories {
		ot, ok := o.territories[name]
		if !ok || t.Water != ot.Water || t.Owner != ot.Owner || len(t.units) != len(ot.units) {
			return false
		}
		for id := range t.units {
			if _, ok := ot.units[id]; !ok {
				return false
			}
		}
	}
	for id, u := range s.units {
		ou, ok := o.units[id]
		if !ok || *u != *ou {
			return false
		}
	}
	for player, ledger := range s.resources {
		ol, ok := o.resources[player]
		if !ok || len(ledger) != len(ol) {
			return false
		}
		for r, n := range ledger {
			if on, ok := ol[r]; !ok || on != n {
				return false
			}
		}
	}
	for player, alliance := range s.alliances {
		if oa, ok := o.alliances[player]; !ok || oa != alliance {
			return false
		}
	}
	return true
}

// CreateUnits allocates n new units of the given kind. The units get fresh
// ids but are not added to the snapshot; use AddUnits for that.
func (s *Snapshot) CreateUnits(kind, owner string, n int) ([]Unit, error) {
	if !s.rules.Catalog.Has(kind) {
		return nil, fmt.Errorf("unknown unit kind %q", kind)
	}
	if n < 0 {
		return nil, fmt.Errorf("cannot create %d units", n)
	}
	units := make([]Unit, n)
	for i := range units {
		units[i] = Unit{ID: s.nextID, Kind: kind, Owner: owner}
		s.nextID++
	}
	return units, nil
}

// Unit returns a copy of the unit with the given id.
func (s *Snapshot) Unit(id UnitID) (Unit, bool) {
	u, ok := s.units[id]
	if !ok {
		return Unit{}, false
	}
	return *u, true
}

// Kind returns the unit kind of the given unit, or nil for unknown units.
func (s *Snapshot) Kind(id UnitID) *ruleset.UnitKind {
	u, ok := s.units[id]
	if !ok {
		return nil
	}
	return s.rules.Catalog.Kind(u.Kind)
}

// HasTerritory reports whether the named territory exists.
func (s *Snapshot) HasTerritory(name string) bool {
	_, ok := s.territories[name]
	return ok
}

// IsWater reports whether the named territory is a sea zone.
func (s *Snapshot) IsWater(name string) bool {
	t, ok := s.territories[name]
	return ok && t.Water
}

// UnitsAt returns copies of the units in a territory, ordered by id.
func (s *Snapshot) UnitsAt(territory string) []Unit {
	t, ok := s.territories[territory]
	if !ok {
		return nil
	}
	units := make([]Unit, 0, len(t.units))
	for id := range t.units {
		units = append(units, *s.units[id])
	}
	sort.Slice(units, func(i, j int) bool { return units[i].ID < units[j].ID })
	return units
}

// UnitCount returns the number of units registered in the snapshot.
func (s *Snapshot) UnitCount() int { return len(s.units) }

// Resources returns a copy of a player's resource ledger.
func (s *Snapshot) Resources(player string) map[string]int {
	ledger := s.resources[player]
	out := make(map[string]int, len(ledger))
	for r, n := range ledger {
		out[r] = n
	}
	return out
}

// Alliance returns the alliance a player belongs to.
func (s *Snapshot) Alliance(player string) string {
	return s.alliances[player]
}

// Perform applies a change of any kind to the snapshot. A change that fails
// validation leaves the snapshot untouched.
func (s *Snapshot) Perform(c Change) error {
	if c == nil {
		return nil
	}
	return c.apply(s)
}

// RemoveUnitsChange builds the change that removes the given units from a
// territory, capturing their current state so the removal can be inverted.
func (s *Snapshot) RemoveUnitsChange(territory string, ids []UnitID) (*RemoveUnits, error) {
	units := make([]Unit, 0, len(ids))
	for _, id := range ids {
		u, ok := s.units[id]
		if !ok {
			return nil, fmt.Errorf("unknown unit %d", id)
		}
		units = append(units, *u)
	}
	return &RemoveUnits{Territory: territory, Units: units}, nil
}
