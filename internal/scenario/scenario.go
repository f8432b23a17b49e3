// Package scenario describes a battle by unit counts so it can be written
// by hand in YAML or sent as JSON, and turns it into a calculator request.
package scenario

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/lawnchairsociety/battlecalc/internal/calc"
	"github.com/lawnchairsociety/battlecalc/internal/calcerr"
	"github.com/lawnchairsociety/battlecalc/internal/policy"
	"github.com/lawnchairsociety/battlecalc/internal/results"
	"github.com/lawnchairsociety/battlecalc/internal/snapshot"
)

// Forces counts units by kind name.
type Forces map[string]int

// Kinds returns the kind names in sorted order so unit ids are allocated
// the same way every time.
func (f Forces) Kinds() []string {
	kinds := make([]string, 0, len(f))
	for k := range f {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Counts converts f for the value readouts.
func (f Forces) Counts() results.KindCounts {
	out := make(results.KindCounts, len(f))
	for k, n := range f {
		if n > 0 {
			out[k] = n
		}
	}
	return out
}

// Scenario is one battle to estimate.
type Scenario struct {
	// Ruleset names a stored ruleset. Empty uses the default one.
	Ruleset    string   `yaml:"ruleset" json:"ruleset,omitempty"`
	Attacker   string   `yaml:"attacker" json:"attacker"`
	Defender   string   `yaml:"defender" json:"defender"`
	Location   string   `yaml:"location" json:"location"`
	Attacking  Forces   `yaml:"attacking" json:"attacking"`
	Defending  Forces   `yaml:"defending" json:"defending"`
	Bombarding Forces   `yaml:"bombarding" json:"bombarding,omitempty"`
	Effects    []string `yaml:"effects" json:"effects,omitempty"`
	Amphibious bool     `yaml:"amphibious" json:"amphibious,omitempty"`
	RetreatTo  []string `yaml:"retreat_to" json:"retreat_to,omitempty"`
	Trials     int      `yaml:"trials" json:"trials,omitempty"`

	AttackerPolicy *policy.Policy `yaml:"attacker_policy" json:"attacker_policy,omitempty"`
	DefenderPolicy *policy.Policy `yaml:"defender_policy" json:"defender_policy,omitempty"`
}

// Load reads a scenario from a YAML file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML scenario.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	return &s, nil
}

// Policies returns both sides' policies, defaulting missing ones.
func (s *Scenario) Policies() (attacker, defender policy.Policy) {
	if s.AttackerPolicy != nil {
		attacker = *s.AttackerPolicy
	}
	if s.DefenderPolicy != nil {
		defender = *s.DefenderPolicy
	}
	return attacker, defender
}

// Apply allocates the scenario's units in sess and returns a request ready
// for Configure. Policies the scenario names replace the session's; a side
// the scenario leaves out keeps the session's policy, or the default one if
// the session has none yet. A scenario without a trial count uses
// defaultTrials.
func (s *Scenario) Apply(sess *calc.Session, defaultTrials int) (calc.Request, error) {
	att, attSet := sess.AttackerPolicy()
	def, defSet := sess.DefenderPolicy()
	if s.AttackerPolicy != nil {
		att, attSet = *s.AttackerPolicy, false
	}
	if s.DefenderPolicy != nil {
		def, defSet = *s.DefenderPolicy, false
	}
	if !attSet || !defSet {
		if err := sess.SetPolicies(&att, &def); err != nil {
			return calc.Request{}, err
		}
	}

	req := calc.Request{
		Attacker:            s.Attacker,
		Defender:            s.Defender,
		Location:            s.Location,
		Effects:             s.Effects,
		Amphibious:          s.Amphibious,
		RetreatDestinations: s.RetreatTo,
		Trials:              s.Trials,
	}
	if req.Trials == 0 {
		req.Trials = defaultTrials
	}

	var err error
	if req.Attacking, err = create(sess, s.Attacking, s.Attacker); err != nil {
		return calc.Request{}, fmt.Errorf("attacking: %w", err)
	}
	if req.Defending, err = create(sess, s.Defending, s.Defender); err != nil {
		return calc.Request{}, fmt.Errorf("defending: %w", err)
	}
	if req.Bombarding, err = create(sess, s.Bombarding, s.Attacker); err != nil {
		return calc.Request{}, fmt.Errorf("bombarding: %w", err)
	}
	return req, nil
}

func create(sess *calc.Session, forces Forces, owner string) ([]snapshot.Unit, error) {
	var units []snapshot.Unit
	for _, kind := range forces.Kinds() {
		n := forces[kind]
		if n < 0 {
			return nil, fmt.Errorf("%w: %d %s", calcerr.ErrInvalidConfiguration, n, kind)
		}
		if n == 0 {
			continue
		}
		created, err := sess.CreateUnits(kind, owner, n)
		if err != nil {
			return nil, err
		}
		units = append(units, created...)
	}
	return units, nil
}
