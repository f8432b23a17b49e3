package calc

import (
	"fmt"
	"math/rand/v2"

	"github.com/lawnchairsociety/battlecalc/internal/bridge"
	"github.com/lawnchairsociety/battlecalc/internal/engine"
	"github.com/lawnchairsociety/battlecalc/internal/policy"
	"github.com/lawnchairsociety/battlecalc/internal/results"
	"github.com/lawnchairsociety/battlecalc/internal/snapshot"
)

// worker owns one snapshot clone and runs trials on it one after another.
type worker struct {
	id     int
	state  *snapshot.Snapshot
	log    *snapshot.ChangeLog
	bridge *bridge.Bridge
	battle engine.Battle

	attackers []snapshot.Unit
	defenders []snapshot.Unit
}

// newWorker clones base and installs the battle's units into the clone: the
// location is cleared, attackers and defenders are placed there and
// bombarding units are registered without a territory.
func newWorker(id int, base *snapshot.Snapshot, req *Request, rng *rand.Rand) (*worker, error) {
	state := base.Clone()

	present := state.UnitsAt(req.Location)
	if len(present) > 0 {
		ids := make([]snapshot.UnitID, len(present))
		for i, u := range present {
			ids[i] = u.ID
		}
		removal, err := state.RemoveUnitsChange(req.Location, ids)
		if err != nil {
			return nil, err
		}
		if err := state.Perform(removal); err != nil {
			return nil, fmt.Errorf("clear %s: %w", req.Location, err)
		}
	}

	placed := make([]snapshot.Unit, 0, len(req.Attacking)+len(req.Defending))
	placed = append(placed, req.Attacking...)
	placed = append(placed, req.Defending...)
	if err := state.Perform(&snapshot.AddUnits{Territory: req.Location, Units: placed}); err != nil {
		return nil, fmt.Errorf("install units: %w", err)
	}
	if len(req.Bombarding) > 0 {
		if err := state.Perform(&snapshot.AddUnits{Units: req.Bombarding}); err != nil {
			return nil, fmt.Errorf("install bombarding units: %w", err)
		}
	}

	log := &snapshot.ChangeLog{}
	return &worker{
		id:     id,
		state:  state,
		log:    log,
		bridge: bridge.New(state, log, rng),
		battle: engine.Battle{
			Location:            req.Location,
			Attacker:            req.Attacker,
			Defender:            req.Defender,
			Attacking:           unitIDs(req.Attacking),
			Defending:           unitIDs(req.Defending),
			Bombarding:          unitIDs(req.Bombarding),
			Effects:             append([]string(nil), req.Effects...),
			Amphibious:          req.Amphibious,
			RetreatDestinations: append([]string(nil), req.RetreatDestinations...),
		},
		attackers: append([]snapshot.Unit(nil), req.Attacking...),
		defenders: append([]snapshot.Unit(nil), req.Defending...),
	}, nil
}

// setPolicies resolves both sides' deciders against this worker's units.
func (w *worker) setPolicies(attacker, defender policy.Policy) error {
	cat := w.state.Ruleset().Catalog
	att, err := policy.NewDecider(attacker, cat, w.attackers)
	if err != nil {
		return fmt.Errorf("attacker policy: %w", err)
	}
	def, err := policy.NewDecider(defender, cat, w.defenders)
	if err != nil {
		return fmt.Errorf("defender policy: %w", err)
	}
	w.bridge.SetDecider(w.battle.Attacker, att)
	w.bridge.SetDecider(w.battle.Defender, def)
	return nil
}

// trial fights one battle. A panic inside the engine fails the trial
// instead of the worker. The caller must roll back afterwards either way.
func (w *worker) trial(eng engine.Engine) (res results.TrialResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine panic: %v", r)
		}
	}()

	w.bridge.ResetDice()
	out, err := eng.Fight(w.bridge, w.battle)
	if err != nil {
		return results.TrialResult{}, err
	}
	return results.TrialResult{
		Winner:            out.Winner,
		AttackerRemaining: w.count(out.AttackersLeft),
		DefenderRemaining: w.count(out.DefendersLeft),
		Rounds:            out.Rounds,
		DiceRolled:        w.bridge.DiceRolled(),
		Retreated:         out.Retreated,
	}, nil
}

func (w *worker) rollback() error {
	if err := w.log.Rollback(w.state); err != nil {
		return fmt.Errorf("worker %d: %w", w.id, err)
	}
	return nil
}

func (w *worker) count(ids []snapshot.UnitID) results.KindCounts {
	out := make(results.KindCounts)
	for _, id := range ids {
		if u, ok := w.state.Unit(id); ok {
			out[u.Kind]++
		}
	}
	return out
}

func unitIDs(units []snapshot.Unit) []snapshot.UnitID {
	if len(units) == 0 {
		return nil
	}
	out := make([]snapshot.UnitID, len(units))
	for i, u := range units {
		out[i] = u.ID
	}
	return out
}

// shares splits trials into n near-equal parts.
func shares(trials, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = trials / n
		if i < trials%n {
			out[i]++
		}
	}
	return out
}
