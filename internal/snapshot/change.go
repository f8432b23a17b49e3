package snapshot

import (
	"errors"
	"fmt"
)

// ChangeKind names the kind of a Change.
type ChangeKind int

const (
	KindUnitHits ChangeKind = iota
	KindAddUnits
	KindRemoveUnits
)

func (k ChangeKind) String() string {
	switch k {
	case KindUnitHits:
		return "unit-hits"
	case KindAddUnits:
		return "add-units"
	case KindRemoveUnits:
		return "remove-units"
	default:
		return fmt.Sprintf("change-kind(%d)", int(k))
	}
}

// Change is a reversible delta on a Snapshot.
type Change interface {
	Kind() ChangeKind
	// Invert returns the change that undoes this one exactly.
	Invert() Change
	apply(s *Snapshot) error
}

// HitDelta is the number of hits added to (or, when negative, taken from)
// one unit.
type HitDelta struct {
	Unit  UnitID
	Delta int
}

// UnitHits changes the hit counters of one or more units.
type UnitHits struct {
	Deltas []HitDelta
}

// Hits builds a UnitHits change adding one hit to each of the given units.
func Hits(ids ...UnitID) *UnitHits {
	deltas := make([]HitDelta, len(ids))
	for i, id := range ids {
		deltas[i] = HitDelta{Unit: id, Delta: 1}
	}
	return &UnitHits{Deltas: deltas}
}

func (c *UnitHits) Kind() ChangeKind { return KindUnitHits }

func (c *UnitHits) Invert() Change {
	inv := make([]HitDelta, len(c.Deltas))
	for i, d := range c.Deltas {
		inv[len(c.Deltas)-1-i] = HitDelta{Unit: d.Unit, Delta: -d.Delta}
	}
	return &UnitHits{Deltas: inv}
}

func (c *UnitHits) apply(s *Snapshot) error {
	next := make(map[UnitID]int, len(c.Deltas))
	for _, d := range c.Deltas {
		u, ok := s.units[d.Unit]
		if !ok {
			return fmt.Errorf("hits on unknown unit %d", d.Unit)
		}
		hits, seen := next[d.Unit]
		if !seen {
			hits = u.Hits
		}
		hits += d.Delta
		if hits < 0 {
			return fmt.Errorf("unit %d would have %d hits", d.Unit, hits)
		}
		next[d.Unit] = hits
	}
	for id, hits := range next {
		s.units[id].Hits = hits
	}
	return nil
}

// AddUnits registers units in the snapshot and, when Territory is set, places
// them there. Units without a territory are known to the snapshot but stand
// nowhere (bombarding ships in an adjacent sea zone, for instance).
type AddUnits struct {
	Territory string
	Units     []Unit
}

func (c *AddUnits) Kind() ChangeKind { return KindAddUnits }

func (c *AddUnits) Invert() Change {
	return &RemoveUnits{Territory: c.Territory, Units: append([]Unit(nil), c.Units...)}
}

func (c *AddUnits) apply(s *Snapshot) error {
	var t *Territory
	if c.Territory != "" {
		var ok bool
		if t, ok = s.territories[c.Territory]; !ok {
			return fmt.Errorf("unknown territory %q", c.Territory)
		}
	}
	seen := make(map[UnitID]struct{}, len(c.Units))
	for _, u := range c.Units {
		if _, exists := s.units[u.ID]; exists {
			return fmt.Errorf("unit %d already exists", u.ID)
		}
		if _, dup := seen[u.ID]; dup {
			return fmt.Errorf("unit %d added twice", u.ID)
		}
		if !s.rules.Catalog.Has(u.Kind) {
			return fmt.Errorf("unit %d has unknown kind %q", u.ID, u.Kind)
		}
		seen[u.ID] = struct{}{}
	}
	for _, u := range c.Units {
		cp := u
		s.units[u.ID] = &cp
		if t != nil {
			t.units[u.ID] = struct{}{}
		}
		if u.ID >= s.nextID {
			s.nextID = u.ID + 1
		}
	}
	return nil
}

// RemoveUnits removes units from a territory and from the snapshot. Units
// carries the removed units' state so the removal can be inverted; build it
// with Snapshot.RemoveUnitsChange.
type RemoveUnits struct {
	Territory string
	Units     []Unit
}

func (c *RemoveUnits) Kind() ChangeKind { return KindRemoveUnits }

func (c *RemoveUnits) Invert() Change {
	return &AddUnits{Territory: c.Territory, Units: append([]Unit(nil), c.Units...)}
}

func (c *RemoveUnits) apply(s *Snapshot) error {
	var t *Territory
	if c.Territory != "" {
		var ok bool
		if t, ok = s.territories[c.Territory]; !ok {
			return fmt.Errorf("unknown territory %q", c.Territory)
		}
	}
	for _, u := range c.Units {
		if _, ok := s.units[u.ID]; !ok {
			return fmt.Errorf("unit %d does not exist", u.ID)
		}
		if t != nil {
			if _, ok := t.units[u.ID]; !ok {
				return fmt.Errorf("unit %d is not in %q", u.ID, c.Territory)
			}
		}
	}
	for _, u := range c.Units {
		delete(s.units, u.ID)
		if t != nil {
			delete(t.units, u.ID)
		}
	}
	return nil
}

// ErrRejectedChange is returned when a change kind may not be recorded in a
// ChangeLog.
var ErrRejectedChange = errors.New("change kind cannot be recorded")

// ChangeLog records the changes made to a snapshot during one simulated
// battle so they can be undone. Only hit changes are accepted: a battle must
// never leave lasting traces (history, ownership, unit counts) behind.
type ChangeLog struct {
	changes []Change
}

// Record appends a change to the log. It does not apply it.
func (l *ChangeLog) Record(c Change) error {
	if c == nil {
		return nil
	}
	if c.Kind() != KindUnitHits {
		return fmt.Errorf("%w: %s", ErrRejectedChange, c.Kind())
	}
	l.changes = append(l.changes, c)
	return nil
}

// Len returns the number of recorded changes.
func (l *ChangeLog) Len() int { return len(l.changes) }

// Inverse returns the changes that undo the log, in the order they must be
// applied.
func (l *ChangeLog) Inverse() []Change {
	inv := make([]Change, len(l.changes))
	for i, c := range l.changes {
		inv[len(l.changes)-1-i] = c.Invert()
	}
	return inv
}

// Rollback undoes every recorded change on s and empties the log.
func (l *ChangeLog) Rollback(s *Snapshot) error {
	for i := len(l.changes) - 1; i >= 0; i-- {
		if err := s.Perform(l.changes[i].Invert()); err != nil {
			return fmt.Errorf("rollback change %d: %w", i, err)
		}
	}
	l.Reset()
	return nil
}

// Reset empties the log without touching any snapshot.
func (l *ChangeLog) Reset() {
	clear(l.changes)
	l.changes = l.changes[:0]
}
