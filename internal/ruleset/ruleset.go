// Package ruleset holds the read-only rules a battle is simulated under: the
// unit-kind catalog, unit costs, territories, players and territory effects.
//
// A Ruleset is never mutated once loaded, so it is shared freely between
// snapshots and worker goroutines.
package ruleset

import (
	"fmt"
	"sort"
)

// Domain is where a unit kind fights.
type Domain string

const (
	Land Domain = "land"
	Sea  Domain = "sea"
	Air  Domain = "air"
)

// DefaultDiceSides is used when a ruleset does not name its dice.
const DefaultDiceSides = 6

// UnitKind describes one type of unit.
type UnitKind struct {
	Name        string
	Cost        int
	Attack      int
	Defense     int
	Rolls       int // dice rolled per unit when firing
	HitPoints   int
	Domain      Domain
	Submersible bool
	Destroyer   bool
}

// IsLand reports whether units of this kind fight on land.
func (k *UnitKind) IsLand() bool { return k.Domain == Land }

// IsSea reports whether units of this kind fight at sea.
func (k *UnitKind) IsSea() bool { return k.Domain == Sea }

// IsAir reports whether units of this kind are aircraft.
func (k *UnitKind) IsAir() bool { return k.Domain == Air }

// power is used to break cost ties in the cost order.
func (k *UnitKind) power() int { return k.Attack + k.Defense }

// CostTable maps unit kind names to their cost.
type CostTable map[string]int

// Catalog is the set of unit kinds known to a ruleset.
type Catalog struct {
	kinds map[string]*UnitKind
	names []string // sorted by cost order
}

// NewCatalog builds a catalog from the given kinds. Kind names must be unique.
func NewCatalog(kinds ...UnitKind) (*Catalog, error) {
	c := &Catalog{kinds: make(map[string]*UnitKind, len(kinds))}
	for i := range kinds {
		k := kinds[i]
		if k.Name == "" {
			return nil, fmt.Errorf("unit kind %d has no name", i)
		}
		if _, dup := c.kinds[k.Name]; dup {
			return nil, fmt.Errorf("duplicate unit kind %q", k.Name)
		}
		if k.Cost < 0 {
			return nil, fmt.Errorf("unit kind %q has negative cost", k.Name)
		}
		switch k.Domain {
		case Land, Sea, Air:
		case "":
			k.Domain = Land
		default:
			return nil, fmt.Errorf("unit kind %q has unknown domain %q", k.Name, k.Domain)
		}
		if k.Rolls <= 0 {
			k.Rolls = 1
		}
		if k.HitPoints <= 0 {
			k.HitPoints = 1
		}
		c.kinds[k.Name] = &k
		c.names = append(c.names, k.Name)
	}
	sort.Slice(c.names, func(i, j int) bool {
		return c.CostLess(c.names[i], c.names[j])
	})
	return c, nil
}

// Kind returns the unit kind with the given name, or nil.
func (c *Catalog) Kind(name string) *UnitKind {
	return c.kinds[name]
}

// Has reports whether the catalog contains a kind with the given name.
func (c *Catalog) Has(name string) bool {
	_, ok := c.kinds[name]
	return ok
}

// Names returns all kind names, cheapest first.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Len returns the number of kinds.
func (c *Catalog) Len() int { return len(c.names) }

// CostLess orders unit kinds: cheaper first, then weaker first, then by name.
// Unknown kinds sort after known ones.
func (c *Catalog) CostLess(a, b string) bool {
	ka, kb := c.kinds[a], c.kinds[b]
	switch {
	case ka == nil && kb == nil:
		return a < b
	case ka == nil:
		return false
	case kb == nil:
		return true
	}
	if ka.Cost != kb.Cost {
		return ka.Cost < kb.Cost
	}
	if ka.power() != kb.power() {
		return ka.power() < kb.power()
	}
	return a < b
}

// Costs returns the cost of every kind.
func (c *Catalog) Costs() CostTable {
	costs := make(CostTable, len(c.kinds))
	for name, k := range c.kinds {
		costs[name] = k.Cost
	}
	return costs
}

// Value returns the total cost of the given kind counts. Unknown kinds are
// worth nothing.
func (c *Catalog) Value(counts map[string]int) int {
	total := 0
	for name, n := range counts {
		if k := c.kinds[name]; k != nil {
			total += k.Cost * n
		}
	}
	return total
}

// TerritoryDef is a location a battle can be fought in.
type TerritoryDef struct {
	Name  string
	Water bool
	Owner string
}

// Player is a side that can own units.
type Player struct {
	Name      string
	Alliance  string
	Resources map[string]int
}

// Effect modifies combat strength in a territory.
type Effect struct {
	Name         string
	AttackBonus  int
	DefenseBonus int
	Kinds        []string // empty means every kind
}

// Applies reports whether the effect modifies the given kind.
func (e *Effect) Applies(kind string) bool {
	if len(e.Kinds) == 0 {
		return true
	}
	for _, k := range e.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Ruleset is the complete, read-only rule data for a game.
type Ruleset struct {
	Name        string
	DiceSides   int
	MaxRounds   int // 0 leaves the limit to the engine
	Catalog     *Catalog
	Territories map[string]TerritoryDef
	Players     map[string]Player
	Effects     map[string]Effect
}

// Territory returns the named territory.
func (r *Ruleset) Territory(name string) (TerritoryDef, bool) {
	t, ok := r.Territories[name]
	return t, ok
}

// HasPlayer reports whether the named player exists.
func (r *Ruleset) HasPlayer(name string) bool {
	_, ok := r.Players[name]
	return ok
}

// Effect returns the named territory effect.
func (r *Ruleset) Effect(name string) (Effect, bool) {
	e, ok := r.Effects[name]
	return e, ok
}

// Allied reports whether two players share an alliance. A player is always
// allied with itself.
func (r *Ruleset) Allied(a, b string) bool {
	if a == b {
		return true
	}
	pa, oka := r.Players[a]
	pb, okb := r.Players[b]
	return oka && okb && pa.Alliance != "" && pa.Alliance == pb.Alliance
}

// Validate checks cross references between the ruleset's parts.
func (r *Ruleset) Validate() error {
	if r.Catalog == nil || r.Catalog.Len() == 0 {
		return fmt.Errorf("ruleset %q has no unit kinds", r.Name)
	}
	if r.DiceSides < 2 {
		return fmt.Errorf("ruleset %q: dice must have at least 2 sides", r.Name)
	}
	if r.MaxRounds < 0 {
		return fmt.Errorf("ruleset %q: max rounds cannot be negative", r.Name)
	}
	for name, t := range r.Territories {
		if t.Owner != "" && !r.HasPlayer(t.Owner) {
			return fmt.Errorf("territory %q owned by unknown player %q", name, t.Owner)
		}
	}
	for name, e := range r.Effects {
		for _, k := range e.Kinds {
			if !r.Catalog.Has(k) {
				return fmt.Errorf("effect %q references unknown unit kind %q", name, k)
			}
		}
	}
	return nil
}

// TerritoryNames returns territory names in sorted order.
func (r *Ruleset) TerritoryNames() []string {
	names := make([]string, 0, len(r.Territories))
	for name := range r.Territories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PlayerNames returns player names in sorted order.
func (r *Ruleset) PlayerNames() []string {
	names := make([]string, 0, len(r.Players))
	for name := range r.Players {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
