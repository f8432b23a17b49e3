// Package bridge hosts a battle engine inside a simulation. It hands the
// engine dice and decisions, keeps the hit changes it makes so they can be
// rolled back, and throws away everything meant for a human audience.
package bridge

import (
	"fmt"
	"math/rand/v2"

	"github.com/lawnchairsociety/battlecalc/internal/calcerr"
	"github.com/lawnchairsociety/battlecalc/internal/engine"
	"github.com/lawnchairsociety/battlecalc/internal/policy"
	"github.com/lawnchairsociety/battlecalc/internal/snapshot"
)

// Bridge implements engine.Host over one worker's snapshot. It is not safe
// for concurrent use.
type Bridge struct {
	state    *snapshot.Snapshot
	log      *snapshot.ChangeLog
	rng      *rand.Rand
	deciders map[string]*policy.Decider
	dice     int
}

var _ engine.Host = (*Bridge)(nil)

// New creates a bridge. Hit changes are applied to state and recorded in log.
func New(state *snapshot.Snapshot, log *snapshot.ChangeLog, rng *rand.Rand) *Bridge {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Bridge{
		state:    state,
		log:      log,
		rng:      rng,
		deciders: make(map[string]*policy.Decider),
	}
}

// SetDecider routes a player's decisions to d.
func (b *Bridge) SetDecider(player string, d *policy.Decider) {
	b.deciders[player] = d
}

// DiceRolled returns the dice rolled since the last ResetDice.
func (b *Bridge) DiceRolled() int { return b.dice }

// ResetDice zeroes the dice counter.
func (b *Bridge) ResetDice() { b.dice = 0 }

func (b *Bridge) State() *snapshot.Snapshot { return b.state }

func (b *Bridge) Roll(sides, count int, annotation string) []int {
	if sides < 1 || count <= 0 {
		return nil
	}
	out := make([]int, count)
	for i := range out {
		out[i] = b.rng.IntN(sides) + 1
	}
	b.dice += count
	return out
}

// RecordChange applies and logs hit changes. Every other kind of change is
// dropped: a simulated battle must not move units or rewrite history.
func (b *Bridge) RecordChange(c snapshot.Change) error {
	if c == nil || c.Kind() != snapshot.KindUnitHits {
		return nil
	}
	if err := b.state.Perform(c); err != nil {
		return err
	}
	return b.log.Record(c)
}

func (b *Bridge) History(string) {}

func (b *Bridge) Notify(string) {}

func (b *Bridge) RetreatQuery(player string, q engine.RetreatQuery) (string, bool, error) {
	d, err := b.decider(player)
	if err != nil {
		return "", false, err
	}
	dest, ok := d.Retreat(q)
	return dest, ok, nil
}

func (b *Bridge) SelectCasualties(player string, req engine.CasualtyRequest) (engine.CasualtyDetails, error) {
	d, err := b.decider(player)
	if err != nil {
		return engine.CasualtyDetails{}, err
	}
	return d.SelectCasualties(req), nil
}

func (b *Bridge) decider(player string) (*policy.Decider, error) {
	d, ok := b.deciders[player]
	if !ok || d == nil {
		return nil, fmt.Errorf("%w: no policy configured for %q", calcerr.ErrConfiguration, player)
	}
	return d, nil
}
