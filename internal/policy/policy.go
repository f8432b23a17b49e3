// Package policy stands in for the human at the table: it decides when a
// simulated side retreats and which of its units are taken as casualties.
package policy

import (
	"fmt"

	"github.com/lawnchairsociety/battlecalc/internal/calcerr"
	"github.com/lawnchairsociety/battlecalc/internal/ruleset"
)

// Policy is one side's standing orders for a whole calculation.
// RetreatAfterRound and RetreatAfterUnitsLeft are unset when zero.
type Policy struct {
	KeepAtLeastOneLandUnit bool   `yaml:"keep_one_land" json:"keep_one_land"`
	RetreatAfterRound      int    `yaml:"retreat_after_round" json:"retreat_after_round"`
	RetreatAfterUnitsLeft  int    `yaml:"retreat_after_units_left" json:"retreat_after_units_left"`
	RetreatWhenOnlyAirLeft bool   `yaml:"retreat_when_only_air_left" json:"retreat_when_only_air_left"`
	OrderOfLoss            string `yaml:"order_of_loss" json:"order_of_loss"`
}

// Validate checks the policy against a unit catalog.
func (p *Policy) Validate(cat *ruleset.Catalog) error {
	if p.RetreatAfterRound < 0 {
		return fmt.Errorf("%w: retreat after round %d", calcerr.ErrInvalidConfiguration, p.RetreatAfterRound)
	}
	if p.RetreatAfterUnitsLeft < 0 {
		return fmt.Errorf("%w: retreat after %d units left", calcerr.ErrInvalidConfiguration, p.RetreatAfterUnitsLeft)
	}
	_, err := ParseOrderOfLoss(p.OrderOfLoss, cat)
	return err
}
