package server

import (
	"errors"
	"sort"

	"github.com/lawnchairsociety/battlecalc/internal/calcerr"
	"github.com/lawnchairsociety/battlecalc/internal/policy"
	"github.com/lawnchairsociety/battlecalc/internal/results"
	"github.com/lawnchairsociety/battlecalc/internal/ruleset"
	"github.com/lawnchairsociety/battlecalc/internal/scenario"
)

// Client message types.
const (
	MsgHello     = "hello"
	MsgConfigure = "configure"
	MsgPolicies  = "policies"
	MsgRun       = "run"
	MsgCancel    = "cancel"
	MsgStatus    = "status"
)

// Server message types. Status replies reuse MsgStatus.
const (
	MsgReady      = "ready"
	MsgConfigured = "configured"
	MsgResult     = "result"
	MsgError      = "error"
)

// Error codes sent in error messages.
const (
	CodeNotReady             = "not_ready"
	CodeInvalidConfiguration = "invalid_configuration"
	CodeConfigurationError   = "configuration_error"
	CodeBusy                 = "busy"
	CodeSimulationFailed     = "simulation_failed"
	CodeBadRequest           = "bad_request"
	CodeUnauthorized         = "unauthorized"
	CodeRateLimited          = "rate_limited"
)

// Inbound is a message from the client.
type Inbound struct {
	Type      string             `json:"type"`
	AccessKey string             `json:"access_key,omitempty"`
	Scenario  *scenario.Scenario `json:"scenario,omitempty"`
	Attacker  *policy.Policy     `json:"attacker,omitempty"`
	Defender  *policy.Policy     `json:"defender,omitempty"`
}

// Outbound is a message to the client.
type Outbound struct {
	Type     string           `json:"type"`
	Code     string           `json:"code,omitempty"`
	Message  string           `json:"message,omitempty"`
	Rulesets []string         `json:"rulesets,omitempty"`
	Ruleset  string           `json:"ruleset,omitempty"`
	Trials   int              `json:"trials,omitempty"`
	Workers  int              `json:"workers,omitempty"`
	Result   *results.Summary `json:"result,omitempty"`
	Status   *Status          `json:"status,omitempty"`
}

// Status describes a connection's session.
type Status struct {
	Ready   bool   `json:"ready"`
	Running bool   `json:"running"`
	Runs    int    `json:"runs"`
	Trials  int    `json:"trials"`
	Workers int    `json:"workers"`
	Ruleset string `json:"ruleset,omitempty"`
}

// RulesetView is the public description of a ruleset.
type RulesetView struct {
	Name        string         `json:"name"`
	DiceSides   int            `json:"dice_sides"`
	Players     []string       `json:"players"`
	Territories []string       `json:"territories"`
	Effects     []string       `json:"effects,omitempty"`
	UnitKinds   []UnitKindView `json:"unit_kinds"`
}

// UnitKindView is the public description of a unit kind.
type UnitKindView struct {
	Name    string `json:"name"`
	Cost    int    `json:"cost"`
	Attack  int    `json:"attack"`
	Defense int    `json:"defense"`
	Domain  string `json:"domain"`
}

func viewRuleset(rs *ruleset.Ruleset) RulesetView {
	v := RulesetView{
		Name:        rs.Name,
		DiceSides:   rs.DiceSides,
		Players:     rs.PlayerNames(),
		Territories: rs.TerritoryNames(),
	}
	for name := range rs.Effects {
		v.Effects = append(v.Effects, name)
	}
	sort.Strings(v.Effects)
	for _, name := range rs.Catalog.Names() {
		k := rs.Catalog.Kind(name)
		v.UnitKinds = append(v.UnitKinds, UnitKindView{
			Name:    k.Name,
			Cost:    k.Cost,
			Attack:  k.Attack,
			Defense: k.Defense,
			Domain:  string(k.Domain),
		})
	}
	return v
}

// errorCode maps a session error to its wire code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, calcerr.ErrBusy):
		return CodeBusy
	case errors.Is(err, calcerr.ErrNotReady):
		return CodeNotReady
	case errors.Is(err, calcerr.ErrSimulationFailed):
		return CodeSimulationFailed
	case errors.Is(err, calcerr.ErrInvalidConfiguration), errors.Is(err, ErrUnknownRuleset):
		return CodeInvalidConfiguration
	default:
		return CodeConfigurationError
	}
}
