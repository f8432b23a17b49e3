package results

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/lawnchairsociety/battlecalc/internal/engine"
	"github.com/lawnchairsociety/battlecalc/internal/ruleset"
)

func randomTrials(n int, seed int64) []TrialResult {
	rng := rand.New(rand.NewSource(seed))
	out := make([]TrialResult, n)
	for i := range out {
		r := TrialResult{
			Winner:            engine.Winner(rng.Intn(3)),
			AttackerRemaining: KindCounts{"Infantry": rng.Intn(4), "Tank": rng.Intn(2)},
			DefenderRemaining: KindCounts{"Infantry": rng.Intn(5)},
			Rounds:            1 + rng.Intn(6),
			DiceRolled:        rng.Intn(40),
			Retreated:         rng.Intn(4) == 0,
		}
		out[i] = r
	}
	return out
}

func aggregate(trials []TrialResult) *Aggregate {
	a := &Aggregate{}
	for _, r := range trials {
		a.Add(r)
	}
	return a
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func sameReadouts(t *testing.T, a, b *Aggregate) {
	t.Helper()
	costs := ruleset.Classic().Catalog.Costs()
	pairs := []struct {
		name string
		x, y float64
	}{
		{"attacker win", a.AttackerWinPercent(), b.AttackerWinPercent()},
		{"defender win", a.DefenderWinPercent(), b.DefenderWinPercent()},
		{"draw", a.DrawPercent(), b.DrawPercent()},
		{"retreat", a.RetreatPercent(), b.RetreatPercent()},
		{"attackers left", a.AverageAttackingUnitsLeft(), b.AverageAttackingUnitsLeft()},
		{"defenders left", a.AverageDefendingUnitsLeft(), b.AverageDefendingUnitsLeft()},
		{"rounds", a.AverageRounds(), b.AverageRounds()},
		{"dice", a.AverageDice(), b.AverageDice()},
		{"swing", a.AverageValueSwing(costs, KindCounts{"Tank": 3}, KindCounts{"Infantry": 5}),
			b.AverageValueSwing(costs, KindCounts{"Tank": 3}, KindCounts{"Infantry": 5})},
	}
	for _, p := range pairs {
		if !approx(p.x, p.y) {
			t.Errorf("%s: %v != %v", p.name, p.x, p.y)
		}
	}
	if a.Trials != b.Trials || a.Dropped != b.Dropped {
		t.Errorf("trials %d/%d dropped %d/%d", a.Trials, b.Trials, a.Dropped, b.Dropped)
	}
}

func TestAdd(t *testing.T) {
	a := &Aggregate{}
	a.Add(TrialResult{Winner: engine.AttackerWon, AttackerRemaining: KindCounts{"Tank": 2}, Rounds: 2, DiceRolled: 10})
	a.Add(TrialResult{Winner: engine.DefenderWon, DefenderRemaining: KindCounts{"Infantry": 3}, Rounds: 4, DiceRolled: 20, Retreated: true})
	a.Add(TrialResult{Winner: engine.Draw, AttackerRemaining: KindCounts{"Tank": 1}, DefenderRemaining: KindCounts{"Infantry": 1}, Rounds: 3})
	a.AddDropped()

	if a.Trials != 3 || a.Dropped != 1 {
		t.Fatalf("trials=%d dropped=%d", a.Trials, a.Dropped)
	}
	checks := []struct {
		name      string
		got, want float64
	}{
		{"attacker win", a.AttackerWinPercent(), 100.0 / 3},
		{"draw", a.DrawPercent(), 100.0 / 3},
		{"retreat", a.RetreatPercent(), 100.0 / 3},
		{"attackers left", a.AverageAttackingUnitsLeft(), 1},
		{"defenders left", a.AverageDefendingUnitsLeft(), 4.0 / 3},
		{"attackers left when won", a.AverageAttackingUnitsLeftWhenAttackerWon(), 2},
		{"defenders left when won", a.AverageDefendingUnitsLeftWhenDefenderWon(), 3},
		{"rounds", a.AverageRounds(), 3},
		{"dice", a.AverageDice(), 10},
	}
	for _, c := range checks {
		if !approx(c.got, c.want) {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestValueReadouts(t *testing.T) {
	costs := ruleset.CostTable{"Infantry": 3, "Tank": 6}
	a := &Aggregate{}
	a.Add(TrialResult{Winner: engine.AttackerWon, AttackerRemaining: KindCounts{"Tank": 2}})
	a.Add(TrialResult{Winner: engine.DefenderWon, DefenderRemaining: KindCounts{"Infantry": 2}})

	att, def := a.AverageValueLeft(costs)
	if !approx(att, 6) || !approx(def, 3) {
		t.Errorf("value left = %v/%v, want 6/3", att, def)
	}
	// defender started at 12, attacker at 18; mean remaining difference is 3.
	swing := a.AverageValueSwing(costs, KindCounts{"Tank": 3}, KindCounts{"Infantry": 4})
	if !approx(swing, -3) {
		t.Errorf("swing = %v, want -3", swing)
	}
}

func TestEmptyAggregateIsNaN(t *testing.T) {
	a := &Aggregate{}
	for name, v := range map[string]float64{
		"attacker win": a.AttackerWinPercent(),
		"defender win": a.DefenderWinPercent(),
		"draw":         a.DrawPercent(),
		"rounds":       a.AverageRounds(),
		"swing":        a.AverageValueSwing(nil, nil, nil),
	} {
		if !math.IsNaN(v) {
			t.Errorf("%s = %v, want NaN", name, v)
		}
	}
	s := a.Summarize(nil, nil, nil)
	if s.AttackerWinPercent != 0 || s.ValueSwing != 0 {
		t.Errorf("summary of nothing = %+v, want zeros", s)
	}
}

func TestMergeMatchesSequentialAdd(t *testing.T) {
	trials := randomTrials(300, 3)
	whole := aggregate(trials)

	for _, parts := range []int{1, 2, 3, 7, 300} {
		size := (len(trials) + parts - 1) / parts
		merged := &Aggregate{}
		for i := 0; i < len(trials); i += size {
			end := min(i+size, len(trials))
			merged = merged.Merge(aggregate(trials[i:end]))
		}
		sameReadouts(t, whole, merged)
	}
}

func TestMergeAssociativeAndCommutative(t *testing.T) {
	a := aggregate(randomTrials(50, 1))
	b := aggregate(randomTrials(80, 2))
	c := aggregate(randomTrials(20, 3))
	b.AddDropped()

	sameReadouts(t, a.Merge(b), b.Merge(a))
	sameReadouts(t, a.Merge(b).Merge(c), a.Merge(b.Merge(c)))
	sameReadouts(t, c.Merge(a).Merge(b), a.Merge(b.Merge(c)))
}

func TestMergeElapsedAndCancelled(t *testing.T) {
	a := &Aggregate{Elapsed: 3 * time.Second}
	b := &Aggregate{Elapsed: time.Second, Cancelled: true}
	m := a.Merge(b)
	if m.Elapsed != 3*time.Second {
		t.Errorf("Elapsed = %v, want the longest", m.Elapsed)
	}
	if !m.Cancelled {
		t.Error("Cancelled should carry over")
	}
	if a.Cancelled {
		t.Error("Merge must not modify its receiver")
	}
}

func TestMergeDoesNotAlias(t *testing.T) {
	a := aggregate(randomTrials(5, 9))
	before := a.AttackerRemaining.Total()
	m := a.Merge(aggregate(randomTrials(5, 10)))
	m.AttackerRemaining["Tank"] += 100
	if a.AttackerRemaining.Total() != before {
		t.Error("merged counts share storage with the input")
	}
}
