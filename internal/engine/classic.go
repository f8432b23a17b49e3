package engine

import (
	"fmt"
	"sort"

	"github.com/lawnchairsociety/battlecalc/internal/ruleset"
	"github.com/lawnchairsociety/battlecalc/internal/snapshot"
)

// DefaultRoundLimit stops a battle that neither side can win.
const DefaultRoundLimit = 1000

// Classic fights battles under the usual "roll at or under your strength"
// rules: both sides fire each round, casualties are removed at the end of the
// round, multi-hit units soak a hit before anything dies, and the attacker is
// offered a retreat after every round.
type Classic struct {
	// MaxRounds overrides the ruleset's round limit when positive.
	MaxRounds int
}

// side is one half of a battle in progress.
type side struct {
	player string
	alive  []snapshot.UnitID
}

func (c Classic) Fight(host Host, b Battle) (Outcome, error) {
	state := host.State()
	rs := state.Ruleset()

	effects := make([]ruleset.Effect, 0, len(b.Effects))
	for _, name := range b.Effects {
		e, ok := rs.Effect(name)
		if !ok {
			return Outcome{}, fmt.Errorf("unknown territory effect %q", name)
		}
		effects = append(effects, e)
	}
	for _, ids := range [][]snapshot.UnitID{b.Attacking, b.Defending, b.Bombarding} {
		for _, id := range ids {
			if state.Kind(id) == nil {
				return Outcome{}, fmt.Errorf("unit %d is not in the battle state", id)
			}
		}
	}

	limit := c.MaxRounds
	if limit <= 0 {
		limit = rs.MaxRounds
	}
	if limit <= 0 {
		limit = DefaultRoundLimit
	}

	att := &side{player: b.Attacker, alive: append([]snapshot.UnitID(nil), b.Attacking...)}
	def := &side{player: b.Defender, alive: append([]snapshot.UnitID(nil), b.Defending...)}
	landBattle := !state.IsWater(b.Location)

	host.History(fmt.Sprintf("%s attacks %s in %s", b.Attacker, b.Defender, b.Location))

	out := Outcome{}
	round := 0
	for len(att.alive) > 0 && len(def.alive) > 0 {
		round++

		// Submersible units slip away from a fight they cannot take part in.
		for _, sd := range []*side{att, def} {
			other := def
			if sd == def {
				other = att
			}
			gone, err := c.offerSubmerge(host, b, round, sd, other)
			if err != nil {
				return Outcome{}, err
			}
			if gone {
				out.Retreated = true
				return c.finish(out, round, att, def, sd), nil
			}
		}

		hitsOnDef := c.fire(host, att.alive, true, effects, sides(rs))
		if round == 1 && landBattle && len(b.Bombarding) > 0 {
			hitsOnDef += c.fire(host, b.Bombarding, true, effects, sides(rs))
		}
		hitsOnAtt := c.fire(host, def.alive, false, effects, sides(rs))

		defLost, err := c.takeCasualties(host, def, hitsOnDef, round)
		if err != nil {
			return Outcome{}, err
		}
		attLost, err := c.takeCasualties(host, att, hitsOnAtt, round)
		if err != nil {
			return Outcome{}, err
		}
		if err := c.remove(host, b.Location, def, defLost); err != nil {
			return Outcome{}, err
		}
		if err := c.remove(host, b.Location, att, attLost); err != nil {
			return Outcome{}, err
		}
		host.History(fmt.Sprintf("round %d: %s lost %d, %s lost %d", round, att.player, len(attLost), def.player, len(defLost)))

		if len(att.alive) == 0 || len(def.alive) == 0 {
			break
		}
		if round >= limit {
			host.Notify("round limit reached")
			break
		}
		if b.Amphibious {
			continue
		}
		dest, retreat, err := host.RetreatQuery(att.player, RetreatQuery{
			Round:        round,
			Location:     b.Location,
			Destinations: b.RetreatDestinations,
			Own:          units(state, att.alive),
			Enemy:        units(state, def.alive),
		})
		if err != nil {
			return Outcome{}, err
		}
		if retreat {
			host.History(fmt.Sprintf("%s retreats to %s", att.player, dest))
			out.Retreated = true
			return c.finish(out, round, att, def, att), nil
		}
	}
	return c.finish(out, round, att, def, nil), nil
}

// finish fills in the outcome. left is the side that retreated or
// submerged, if any.
func (c Classic) finish(out Outcome, round int, att, def, left *side) Outcome {
	out.Rounds = round
	out.AttackersLeft = append([]snapshot.UnitID(nil), att.alive...)
	out.DefendersLeft = append([]snapshot.UnitID(nil), def.alive...)
	switch {
	case left == att && len(def.alive) > 0:
		out.Winner = DefenderWon
	case left == def && len(att.alive) > 0:
		out.Winner = AttackerWon
	case left != nil:
		out.Winner = Draw
	case len(att.alive) > 0 && len(def.alive) == 0:
		out.Winner = AttackerWon
	case len(def.alive) > 0 && len(att.alive) == 0:
		out.Winner = DefenderWon
	default:
		out.Winner = Draw
	}
	return out
}

func (c Classic) offerSubmerge(host Host, b Battle, round int, sd, other *side) (bool, error) {
	state := host.State()
	for _, id := range sd.alive {
		if k := state.Kind(id); !k.Submersible {
			return false, nil
		}
	}
	for _, id := range other.alive {
		if k := state.Kind(id); k.Destroyer {
			return false, nil
		}
	}
	_, ok, err := host.RetreatQuery(sd.player, RetreatQuery{
		Round:        round,
		Location:     b.Location,
		Submerge:     true,
		Destinations: []string{b.Location},
		Own:          units(state, sd.alive),
		Enemy:        units(state, other.alive),
	})
	if err != nil || !ok {
		return false, err
	}
	host.History(fmt.Sprintf("%s submerges", sd.player))
	return true, nil
}

// fire rolls for every unit and returns the number of hits scored.
func (c Classic) fire(host Host, ids []snapshot.UnitID, attacking bool, effects []ruleset.Effect, dice int) int {
	state := host.State()
	type shooter struct {
		strength int
		rolls    int
	}
	shooters := make([]shooter, 0, len(ids))
	total := 0
	for _, id := range ids {
		k := state.Kind(id)
		strength := k.Defense
		if attacking {
			strength = k.Attack
		}
		for _, e := range effects {
			if !e.Applies(k.Name) {
				continue
			}
			if attacking {
				strength += e.AttackBonus
			} else {
				strength += e.DefenseBonus
			}
		}
		if strength <= 0 {
			continue
		}
		shooters = append(shooters, shooter{strength: strength, rolls: k.Rolls})
		total += k.Rolls
	}
	if total == 0 {
		return 0
	}

	annotation := "defender fires"
	if attacking {
		annotation = "attacker fires"
	}
	rolls := host.Roll(dice, total, annotation)
	hits, i := 0, 0
	for _, s := range shooters {
		for r := 0; r < s.rolls && i < len(rolls); r++ {
			if rolls[i] <= s.strength {
				hits++
			}
			i++
		}
	}
	return hits
}

// takeCasualties asks the side to choose casualties for the given hits, checks
// the answer and records damage. It returns the units that die.
func (c Classic) takeCasualties(host Host, sd *side, hits, round int) ([]snapshot.UnitID, error) {
	if hits <= 0 || len(sd.alive) == 0 {
		return nil, nil
	}
	state := host.State()
	pool := units(state, sd.alive)
	def := DefaultCasualties(state, pool, hits)

	chosen, err := host.SelectCasualties(sd.player, CasualtyRequest{
		Round:      round,
		Hits:       hits,
		SelectFrom: pool,
		Default:    def,
	})
	if err != nil {
		return nil, err
	}
	if err := checkCasualties(pool, def, chosen); err != nil {
		return nil, fmt.Errorf("%s casualties: %w", sd.player, err)
	}

	killed := make(map[snapshot.UnitID]bool, len(chosen.Killed))
	for _, id := range chosen.Killed {
		killed[id] = true
	}
	var damaged []snapshot.UnitID
	for _, id := range chosen.Damaged {
		if !killed[id] {
			damaged = append(damaged, id)
		}
	}
	if len(damaged) > 0 {
		if err := host.RecordChange(snapshot.Hits(damaged...)); err != nil {
			return nil, err
		}
	}
	return chosen.Killed, nil
}

// remove takes dead units out of the side and reports their removal.
func (c Classic) remove(host Host, location string, sd *side, dead []snapshot.UnitID) error {
	if len(dead) == 0 {
		return nil
	}
	gone := make(map[snapshot.UnitID]bool, len(dead))
	for _, id := range dead {
		gone[id] = true
	}
	alive := sd.alive[:0]
	for _, id := range sd.alive {
		if !gone[id] {
			alive = append(alive, id)
		}
	}
	sd.alive = alive

	change, err := host.State().RemoveUnitsChange(location, dead)
	if err != nil {
		return err
	}
	return host.RecordChange(change)
}

// DefaultCasualties is the engine's own casualty choice: units that can soak
// a hit take damage first (most valuable first), then the cheapest units die.
func DefaultCasualties(state *snapshot.Snapshot, pool []snapshot.Unit, hits int) CasualtyDetails {
	cat := state.Ruleset().Catalog
	var details CasualtyDetails

	soakers := make([]snapshot.Unit, 0)
	for _, u := range pool {
		if k := cat.Kind(u.Kind); k != nil && k.HitPoints-u.Hits > 1 {
			soakers = append(soakers, u)
		}
	}
	sort.SliceStable(soakers, func(i, j int) bool {
		return cat.CostLess(soakers[j].Kind, soakers[i].Kind)
	})
	for _, u := range soakers {
		if hits == 0 {
			break
		}
		details.Damaged = append(details.Damaged, u.ID)
		hits--
	}

	order := append([]snapshot.Unit(nil), pool...)
	sort.SliceStable(order, func(i, j int) bool {
		return cat.CostLess(order[i].Kind, order[j].Kind)
	})
	for _, u := range order {
		if hits == 0 {
			break
		}
		details.Killed = append(details.Killed, u.ID)
		hits--
	}

	killed := make(map[snapshot.UnitID]bool, len(details.Killed))
	for _, id := range details.Killed {
		killed[id] = true
	}
	damaged := details.Damaged[:0]
	for _, id := range details.Damaged {
		if !killed[id] {
			damaged = append(damaged, id)
		}
	}
	details.Damaged = damaged
	return details
}

func checkCasualties(pool []snapshot.Unit, def, chosen CasualtyDetails) error {
	if len(chosen.Killed) != len(def.Killed) {
		return fmt.Errorf("%d units killed, expected %d", len(chosen.Killed), len(def.Killed))
	}
	in := make(map[snapshot.UnitID]bool, len(pool))
	for _, u := range pool {
		in[u.ID] = true
	}
	seen := make(map[snapshot.UnitID]bool, len(chosen.Killed))
	for _, id := range chosen.Killed {
		if !in[id] {
			return fmt.Errorf("unit %d is not a candidate", id)
		}
		if seen[id] {
			return fmt.Errorf("unit %d killed twice", id)
		}
		seen[id] = true
	}
	for _, id := range chosen.Damaged {
		if !in[id] {
			return fmt.Errorf("unit %d is not a candidate", id)
		}
	}
	return nil
}

func units(state *snapshot.Snapshot, ids []snapshot.UnitID) []snapshot.Unit {
	out := make([]snapshot.Unit, 0, len(ids))
	for _, id := range ids {
		if u, ok := state.Unit(id); ok {
			out = append(out, u)
		}
	}
	return out
}

func sides(rs *ruleset.Ruleset) int {
	if rs.DiceSides < 2 {
		return ruleset.DefaultDiceSides
	}
	return rs.DiceSides
}
