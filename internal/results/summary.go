package results

import (
	"math"

	"github.com/lawnchairsociety/battlecalc/internal/ruleset"
)

// Summary is a flat, serialisable view of an Aggregate. Averages over no
// trials are reported as zero since JSON has no NaN.
type Summary struct {
	Trials                    int        `json:"trials"`
	Dropped                   int        `json:"dropped"`
	Cancelled                 bool       `json:"cancelled"`
	ElapsedMillis             int64      `json:"elapsed_ms"`
	AttackerWinPercent        float64    `json:"attacker_win_percent"`
	DefenderWinPercent        float64    `json:"defender_win_percent"`
	DrawPercent               float64    `json:"draw_percent"`
	RetreatPercent            float64    `json:"retreat_percent"`
	AttackingUnitsLeft        float64    `json:"attacking_units_left"`
	DefendingUnitsLeft        float64    `json:"defending_units_left"`
	AttackingUnitsLeftWhenWon float64    `json:"attacking_units_left_when_won"`
	DefendingUnitsLeftWhenWon float64    `json:"defending_units_left_when_won"`
	AttackerValueLeft         float64    `json:"attacker_value_left"`
	DefenderValueLeft         float64    `json:"defender_value_left"`
	AverageRounds             float64    `json:"average_rounds"`
	AverageDice               float64    `json:"average_dice"`
	ValueSwing                float64    `json:"value_swing"`
	AttackerSurvivors         KindCounts `json:"attacker_survivors,omitempty"`
	DefenderSurvivors         KindCounts `json:"defender_survivors,omitempty"`
}

// Summarize computes every readout of a.
func (a *Aggregate) Summarize(costs ruleset.CostTable, attackers, defenders KindCounts) Summary {
	attValue, defValue := a.AverageValueLeft(costs)
	return Summary{
		Trials:                    a.Trials,
		Dropped:                   a.Dropped,
		Cancelled:                 a.Cancelled,
		ElapsedMillis:             a.Elapsed.Milliseconds(),
		AttackerWinPercent:        finite(a.AttackerWinPercent()),
		DefenderWinPercent:        finite(a.DefenderWinPercent()),
		DrawPercent:               finite(a.DrawPercent()),
		RetreatPercent:            finite(a.RetreatPercent()),
		AttackingUnitsLeft:        finite(a.AverageAttackingUnitsLeft()),
		DefendingUnitsLeft:        finite(a.AverageDefendingUnitsLeft()),
		AttackingUnitsLeftWhenWon: finite(a.AverageAttackingUnitsLeftWhenAttackerWon()),
		DefendingUnitsLeftWhenWon: finite(a.AverageDefendingUnitsLeftWhenDefenderWon()),
		AttackerValueLeft:         finite(attValue),
		DefenderValueLeft:         finite(defValue),
		AverageRounds:             finite(a.AverageRounds()),
		AverageDice:               finite(a.AverageDice()),
		ValueSwing:                finite(a.AverageValueSwing(costs, attackers, defenders)),
		AttackerSurvivors:         a.AttackerRemaining.clone(),
		DefenderSurvivors:         a.DefenderRemaining.clone(),
	}
}

func finite(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}
