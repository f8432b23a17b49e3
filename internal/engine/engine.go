// Package engine defines the boundary between the odds calculator and the
// combat-resolution engine that actually fights a battle.
//
// An Engine knows the combat rules. It knows nothing about humans: every
// decision it needs (who retreats, which units die) and every side effect it
// produces goes through the Host it is handed.
package engine

import (
	"fmt"

	"github.com/lawnchairsociety/battlecalc/internal/snapshot"
)

// Winner is the result of one battle.
type Winner int

const (
	Draw Winner = iota
	AttackerWon
	DefenderWon
)

func (w Winner) String() string {
	switch w {
	case AttackerWon:
		return "attacker"
	case DefenderWon:
		return "defender"
	case Draw:
		return "draw"
	default:
		return fmt.Sprintf("winner(%d)", int(w))
	}
}

// Battle is everything an engine needs to fight one battle.
type Battle struct {
	Location   string
	Attacker   string
	Defender   string
	Attacking  []snapshot.UnitID
	Defending  []snapshot.UnitID
	Bombarding []snapshot.UnitID
	Effects    []string
	Amphibious bool
	// RetreatDestinations are the territories a retreating side may go to.
	RetreatDestinations []string
}

// Outcome is what an engine reports once a battle is over.
type Outcome struct {
	Winner        Winner
	AttackersLeft []snapshot.UnitID
	DefendersLeft []snapshot.UnitID
	Rounds        int
	Retreated     bool
}

// RetreatQuery asks a side whether it wants to leave the battle.
type RetreatQuery struct {
	Round        int
	Location     string
	Submerge     bool // only submersible units would leave
	Destinations []string
	Own          []snapshot.Unit
	Enemy        []snapshot.Unit
}

// CasualtyDetails lists the units that die and the units that only take damage.
type CasualtyDetails struct {
	Killed  []snapshot.UnitID
	Damaged []snapshot.UnitID
}

// CasualtyRequest asks a side to pick its casualties. Default is the
// engine's own choice; a host may reorder it but must kill as many units.
type CasualtyRequest struct {
	Round      int
	Hits       int
	SelectFrom []snapshot.Unit
	Default    CasualtyDetails
}

// Host is the environment an engine runs in.
type Host interface {
	// State is the world the battle is fought in.
	State() *snapshot.Snapshot
	// Roll returns count dice values in [1, sides].
	Roll(sides, count int, annotation string) []int
	// RecordChange reports a change the battle makes to the world.
	RecordChange(c snapshot.Change) error
	// History and Notify carry narration for an audience, if there is one.
	History(text string)
	Notify(event string)
	// RetreatQuery returns the destination to retreat to, or false to stay.
	RetreatQuery(player string, q RetreatQuery) (string, bool, error)
	SelectCasualties(player string, req CasualtyRequest) (CasualtyDetails, error)
}

// Engine fights a battle to the end.
type Engine interface {
	Fight(host Host, b Battle) (Outcome, error)
}
