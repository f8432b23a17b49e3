// Package results accumulates trial outcomes into odds.
package results

import (
	"math"
	"sort"
	"time"

	"github.com/lawnchairsociety/battlecalc/internal/engine"
	"github.com/lawnchairsociety/battlecalc/internal/ruleset"
)

// KindCounts counts units by kind name.
type KindCounts map[string]int

// Total returns the number of units counted.
func (k KindCounts) Total() int {
	n := 0
	for _, c := range k {
		n += c
	}
	return n
}

// Value prices the units with a cost table.
func (k KindCounts) Value(costs ruleset.CostTable) int {
	v := 0
	for kind, c := range k {
		v += costs[kind] * c
	}
	return v
}

// Kinds returns the counted kinds in name order.
func (k KindCounts) Kinds() []string {
	out := make([]string, 0, len(k))
	for kind, c := range k {
		if c != 0 {
			out = append(out, kind)
		}
	}
	sort.Strings(out)
	return out
}

func (k KindCounts) add(other KindCounts) KindCounts {
	if len(other) == 0 {
		return k
	}
	if k == nil {
		k = make(KindCounts, len(other))
	}
	for kind, c := range other {
		k[kind] += c
	}
	return k
}

func (k KindCounts) clone() KindCounts {
	if k == nil {
		return nil
	}
	out := make(KindCounts, len(k))
	for kind, c := range k {
		out[kind] = c
	}
	return out
}

// TrialResult is the outcome of one simulated battle.
type TrialResult struct {
	Winner            engine.Winner
	AttackerRemaining KindCounts
	DefenderRemaining KindCounts
	Rounds            int
	DiceRolled        int
	Retreated         bool
}

// Aggregate sums trial results. Percentages and averages are computed when
// read so that merging stays exact. An Aggregate is not safe for concurrent
// use; give every worker its own and merge them afterwards.
type Aggregate struct {
	Trials       int
	AttackerWins int
	DefenderWins int
	Draws        int
	Retreats     int
	Dropped      int // trials that failed and were discarded

	AttackerUnitsLeft        int
	DefenderUnitsLeft        int
	AttackerUnitsLeftWhenWon int
	DefenderUnitsLeftWhenWon int
	Rounds                   int
	Dice                     int
	AttackerRemaining        KindCounts
	DefenderRemaining        KindCounts

	Elapsed   time.Duration
	Cancelled bool
}

// Add accumulates one trial.
func (a *Aggregate) Add(r TrialResult) {
	a.Trials++
	att, def := r.AttackerRemaining.Total(), r.DefenderRemaining.Total()
	switch r.Winner {
	case engine.AttackerWon:
		a.AttackerWins++
		a.AttackerUnitsLeftWhenWon += att
	case engine.DefenderWon:
		a.DefenderWins++
		a.DefenderUnitsLeftWhenWon += def
	default:
		a.Draws++
	}
	if r.Retreated {
		a.Retreats++
	}
	a.AttackerUnitsLeft += att
	a.DefenderUnitsLeft += def
	a.Rounds += r.Rounds
	a.Dice += r.DiceRolled
	a.AttackerRemaining = a.AttackerRemaining.add(r.AttackerRemaining)
	a.DefenderRemaining = a.DefenderRemaining.add(r.DefenderRemaining)
}

// AddDropped counts a trial that failed.
func (a *Aggregate) AddDropped() { a.Dropped++ }

// Merge returns the combination of a and other. Neither is modified.
func (a *Aggregate) Merge(other *Aggregate) *Aggregate {
	out := &Aggregate{
		Trials:                   a.Trials + other.Trials,
		AttackerWins:             a.AttackerWins + other.AttackerWins,
		DefenderWins:             a.DefenderWins + other.DefenderWins,
		Draws:                    a.Draws + other.Draws,
		Retreats:                 a.Retreats + other.Retreats,
		Dropped:                  a.Dropped + other.Dropped,
		AttackerUnitsLeft:        a.AttackerUnitsLeft + other.AttackerUnitsLeft,
		DefenderUnitsLeft:        a.DefenderUnitsLeft + other.DefenderUnitsLeft,
		AttackerUnitsLeftWhenWon: a.AttackerUnitsLeftWhenWon + other.AttackerUnitsLeftWhenWon,
		DefenderUnitsLeftWhenWon: a.DefenderUnitsLeftWhenWon + other.DefenderUnitsLeftWhenWon,
		Rounds:                   a.Rounds + other.Rounds,
		Dice:                     a.Dice + other.Dice,
		AttackerRemaining:        a.AttackerRemaining.clone().add(other.AttackerRemaining),
		DefenderRemaining:        a.DefenderRemaining.clone().add(other.DefenderRemaining),
		Elapsed:                  max(a.Elapsed, other.Elapsed),
		Cancelled:                a.Cancelled || other.Cancelled,
	}
	return out
}

func ratio(n, d int) float64 {
	if d == 0 {
		return math.NaN()
	}
	return float64(n) / float64(d)
}

func (a *Aggregate) AttackerWinPercent() float64 { return 100 * ratio(a.AttackerWins, a.Trials) }
func (a *Aggregate) DefenderWinPercent() float64 { return 100 * ratio(a.DefenderWins, a.Trials) }
func (a *Aggregate) DrawPercent() float64 { return 100 * ratio(a.Draws, a.Trials) }
func (a *Aggregate) RetreatPercent() float64 { return 100 * ratio(a.Retreats, a.Trials) }

func (a *Aggregate) AverageAttackingUnitsLeft() float64 {
	return ratio(a.AttackerUnitsLeft, a.Trials)
}

func (a *Aggregate) AverageDefendingUnitsLeft() float64 {
	return ratio(a.DefenderUnitsLeft, a.Trials)
}

// AverageAttackingUnitsLeftWhenAttackerWon is NaN when the attacker never won.
func (a *Aggregate) AverageAttackingUnitsLeftWhenAttackerWon() float64 {
	return ratio(a.AttackerUnitsLeftWhenWon, a.AttackerWins)
}

// AverageDefendingUnitsLeftWhenDefenderWon is NaN when the defender never won.
func (a *Aggregate) AverageDefendingUnitsLeftWhenDefenderWon() float64 {
	return ratio(a.DefenderUnitsLeftWhenWon, a.DefenderWins)
}

func (a *Aggregate) AverageRounds() float64 { return ratio(a.Rounds, a.Trials) }

func (a *Aggregate) AverageDice() float64 { return ratio(a.Dice, a.Trials) }

// AverageValueLeft returns the mean value of each side's survivors.
func (a *Aggregate) AverageValueLeft(costs ruleset.CostTable) (attacker, defender float64) {
	return ratio(a.AttackerRemaining.Value(costs), a.Trials), ratio(a.DefenderRemaining.Value(costs), a.Trials)
}

// AverageValueSwing is the value the attacker gains on average: what the
// defender lost minus what the attacker lost. attackers and defenders are the
// forces the battle started with.
func (a *Aggregate) AverageValueSwing(costs ruleset.CostTable, attackers, defenders KindCounts) float64 {
	if a.Trials == 0 {
		return math.NaN()
	}
	start := float64(defenders.Value(costs) - attackers.Value(costs))
	remaining := ratio(a.AttackerRemaining.Value(costs)-a.DefenderRemaining.Value(costs), a.Trials)
	return start + remaining
}
