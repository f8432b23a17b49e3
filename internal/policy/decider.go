package policy

import (
	"github.com/lawnchairsociety/battlecalc/internal/engine"
	"github.com/lawnchairsociety/battlecalc/internal/ruleset"
	"github.com/lawnchairsociety/battlecalc/internal/snapshot"
)

// Decider answers one side's retreat and casualty questions during trials.
// It is read-only once built and may be shared by every trial of a worker.
type Decider struct {
	policy  Policy
	catalog *ruleset.Catalog
	queue   []snapshot.UnitID
}

// NewDecider resolves the policy's order of loss against the side's units.
func NewDecider(p Policy, cat *ruleset.Catalog, units []snapshot.Unit) (*Decider, error) {
	if err := p.Validate(cat); err != nil {
		return nil, err
	}
	order, _ := ParseOrderOfLoss(p.OrderOfLoss, cat)
	return &Decider{policy: p, catalog: cat, queue: order.Queue(units)}, nil
}

// Policy returns the policy the decider follows.
func (d *Decider) Policy() Policy { return d.policy }

// Queue returns the resolved order-of-loss kill queue.
func (d *Decider) Queue() []snapshot.UnitID {
	return append([]snapshot.UnitID(nil), d.queue...)
}

// Retreat decides whether to accept a retreat (or submerge) offer and where
// to go.
func (d *Decider) Retreat(q engine.RetreatQuery) (string, bool) {
	if len(q.Destinations) == 0 {
		return "", false
	}
	dest := q.Destinations[0]

	if q.Submerge {
		// Only slip away when the enemy can hurt us and we cannot hurt it.
		if len(q.Enemy) == 0 {
			return "", false
		}
		for _, u := range q.Own {
			k := d.catalog.Kind(u.Kind)
			if k == nil || !k.IsSea() || !k.Submersible {
				return "", false
			}
		}
		for _, u := range q.Enemy {
			k := d.catalog.Kind(u.Kind)
			if k == nil || !k.IsAir() || k.Destroyer {
				return "", false
			}
		}
		return dest, true
	}

	p := d.policy
	if p.RetreatAfterRound > 0 && q.Round >= p.RetreatAfterRound {
		return dest, true
	}
	left := len(q.Own)
	if p.RetreatWhenOnlyAirLeft {
		n := 0
		for _, u := range q.Own {
			if k := d.catalog.Kind(u.Kind); k != nil && k.IsAir() {
				n++
			}
		}
		if p.RetreatAfterUnitsLeft > 0 {
			n += p.RetreatAfterUnitsLeft
		}
		if n >= left {
			return dest, true
		}
	}
	if p.RetreatAfterUnitsLeft > 0 && left <= p.RetreatAfterUnitsLeft {
		return dest, true
	}
	return "", false
}

// SelectCasualties reorders the engine's default casualties. It never
// changes how many units die.
func (d *Decider) SelectCasualties(req engine.CasualtyRequest) engine.CasualtyDetails {
	killed := append([]snapshot.UnitID(nil), req.Default.Killed...)

	if d.policy.KeepAtLeastOneLandUnit {
		killed = d.keepOneLand(req.SelectFrom, killed)
	}

	if len(d.queue) > 0 && len(killed) > 0 {
		candidates := make(map[snapshot.UnitID]bool, len(req.SelectFrom))
		for _, u := range req.SelectFrom {
			candidates[u.ID] = true
		}
		var order []snapshot.UnitID
		for _, id := range d.queue {
			if candidates[id] {
				order = append(order, id)
			}
		}
		if len(order) > 0 {
			want := len(killed)
			chosen := make([]snapshot.UnitID, 0, want)
			picked := make(map[snapshot.UnitID]bool, want)
			for _, id := range order {
				if len(chosen) == want {
					break
				}
				chosen = append(chosen, id)
				picked[id] = true
			}
			for _, id := range req.Default.Killed {
				if len(chosen) == want {
					break
				}
				if !picked[id] {
					chosen = append(chosen, id)
					picked[id] = true
				}
			}
			killed = chosen
		}
	}

	dead := make(map[snapshot.UnitID]bool, len(killed))
	for _, id := range killed {
		dead[id] = true
	}
	var damaged []snapshot.UnitID
	for _, id := range req.Default.Damaged {
		if !dead[id] {
			damaged = append(damaged, id)
		}
	}
	return engine.CasualtyDetails{Killed: killed, Damaged: damaged}
}

// keepOneLand swaps the most valuable killed land unit for the cheapest
// surviving non-land unit when the casualties would leave no land unit
// standing.
func (d *Decider) keepOneLand(pool []snapshot.Unit, killed []snapshot.UnitID) []snapshot.UnitID {
	dead := make(map[snapshot.UnitID]bool, len(killed))
	for _, id := range killed {
		dead[id] = true
	}

	var landKilled, survivorsNotLand []snapshot.Unit
	landSurvives := false
	for _, u := range pool {
		land := d.isLand(u)
		switch {
		case dead[u.ID] && land:
			landKilled = append(landKilled, u)
		case !dead[u.ID] && land:
			landSurvives = true
		case !dead[u.ID]:
			survivorsNotLand = append(survivorsNotLand, u)
		}
	}
	if landSurvives || len(survivorsNotLand) == 0 || len(landKilled) == 0 {
		return killed
	}

	spare := landKilled[0]
	for _, u := range landKilled[1:] {
		if !d.catalog.CostLess(u.Kind, spare.Kind) {
			spare = u
		}
	}
	victim := survivorsNotLand[0]
	for _, u := range survivorsNotLand[1:] {
		if d.catalog.CostLess(u.Kind, victim.Kind) {
			victim = u
		}
	}

	out := make([]snapshot.UnitID, 0, len(killed))
	for _, id := range killed {
		if id != spare.ID {
			out = append(out, id)
		}
	}
	return append(out, victim.ID)
}

func (d *Decider) isLand(u snapshot.Unit) bool {
	k := d.catalog.Kind(u.Kind)
	return k != nil && k.IsLand()
}
