package ruleset

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// UnitKindDefinition represents a unit kind from the YAML file
type UnitKindDefinition struct {
	Cost        int    `yaml:"cost"`
	Attack      int    `yaml:"attack"`
	Defense     int    `yaml:"defense"`
	Rolls       int    `yaml:"rolls,omitempty"`
	HitPoints   int    `yaml:"hit_points,omitempty"`
	Domain      string `yaml:"domain"`
	Submersible bool   `yaml:"submersible,omitempty"`
	Destroyer   bool   `yaml:"destroyer,omitempty"`
}

// PlayerDefinition represents a player from the YAML file
type PlayerDefinition struct {
	Alliance  string         `yaml:"alliance,omitempty"`
	Resources map[string]int `yaml:"resources,omitempty"`
}

// TerritoryDefinition represents a territory from the YAML file
type TerritoryDefinition struct {
	Water bool   `yaml:"water,omitempty"`
	Owner string `yaml:"owner,omitempty"`
}

// EffectDefinition represents a territory effect from the YAML file
type EffectDefinition struct {
	AttackBonus  int      `yaml:"attack_bonus,omitempty"`
	DefenseBonus int      `yaml:"defense_bonus,omitempty"`
	Kinds        []string `yaml:"kinds,omitempty"`
}

// RulesetConfig represents the structure of a ruleset YAML file
type RulesetConfig struct {
	Name        string                         `yaml:"name"`
	DiceSides   int                            `yaml:"dice_sides,omitempty"`
	MaxRounds   int                            `yaml:"max_rounds,omitempty"`
	UnitKinds   map[string]UnitKindDefinition  `yaml:"unit_kinds"`
	Players     map[string]PlayerDefinition    `yaml:"players"`
	Territories map[string]TerritoryDefinition `yaml:"territories"`
	Effects     map[string]EffectDefinition    `yaml:"effects,omitempty"`
}

// LoadFromYAML loads a ruleset from a YAML file
func LoadFromYAML(filename string) (*Ruleset, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read ruleset file: %w", err)
	}
	return Parse(data)
}

// Parse builds a ruleset from YAML bytes
func Parse(data []byte) (*Ruleset, error) {
	var config RulesetConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse ruleset YAML: %w", err)
	}
	return config.Build()
}

// Build converts the YAML form into a validated Ruleset
func (c *RulesetConfig) Build() (*Ruleset, error) {
	kinds := make([]UnitKind, 0, len(c.UnitKinds))
	for name, def := range c.UnitKinds {
		kinds = append(kinds, UnitKind{
			Name:        name,
			Cost:        def.Cost,
			Attack:      def.Attack,
			Defense:     def.Defense,
			Rolls:       def.Rolls,
			HitPoints:   def.HitPoints,
			Domain:      Domain(def.Domain),
			Submersible: def.Submersible,
			Destroyer:   def.Destroyer,
		})
	}
	catalog, err := NewCatalog(kinds...)
	if err != nil {
		return nil, fmt.Errorf("ruleset %q: %w", c.Name, err)
	}

	rs := &Ruleset{
		Name:        c.Name,
		DiceSides:   c.DiceSides,
		MaxRounds:   c.MaxRounds,
		Catalog:     catalog,
		Territories: make(map[string]TerritoryDef, len(c.Territories)),
		Players:     make(map[string]Player, len(c.Players)),
		Effects:     make(map[string]Effect, len(c.Effects)),
	}
	if rs.DiceSides == 0 {
		rs.DiceSides = DefaultDiceSides
	}

	for name, def := range c.Players {
		resources := make(map[string]int, len(def.Resources))
		for r, n := range def.Resources {
			resources[r] = n
		}
		rs.Players[name] = Player{Name: name, Alliance: def.Alliance, Resources: resources}
	}
	for name, def := range c.Territories {
		rs.Territories[name] = TerritoryDef{Name: name, Water: def.Water, Owner: def.Owner}
	}
	for name, def := range c.Effects {
		rs.Effects[name] = Effect{
			Name:         name,
			AttackBonus:  def.AttackBonus,
			DefenseBonus: def.DefenseBonus,
			Kinds:        append([]string(nil), def.Kinds...),
		}
	}

	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return rs, nil
}

// ToConfig converts a Ruleset back into its YAML form
func (r *Ruleset) ToConfig() *RulesetConfig {
	c := &RulesetConfig{
		Name:        r.Name,
		DiceSides:   r.DiceSides,
		MaxRounds:   r.MaxRounds,
		UnitKinds:   make(map[string]UnitKindDefinition, r.Catalog.Len()),
		Players:     make(map[string]PlayerDefinition, len(r.Players)),
		Territories: make(map[string]TerritoryDefinition, len(r.Territories)),
		Effects:     make(map[string]EffectDefinition, len(r.Effects)),
	}
	for _, name := range r.Catalog.Names() {
		k := r.Catalog.Kind(name)
		c.UnitKinds[name] = UnitKindDefinition{
			Cost:        k.Cost,
			Attack:      k.Attack,
			Defense:     k.Defense,
			Rolls:       k.Rolls,
			HitPoints:   k.HitPoints,
			Domain:      string(k.Domain),
			Submersible: k.Submersible,
			Destroyer:   k.Destroyer,
		}
	}
	for name, p := range r.Players {
		c.Players[name] = PlayerDefinition{Alliance: p.Alliance, Resources: p.Resources}
	}
	for name, t := range r.Territories {
		c.Territories[name] = TerritoryDefinition{Water: t.Water, Owner: t.Owner}
	}
	for name, e := range r.Effects {
		c.Effects[name] = EffectDefinition{AttackBonus: e.AttackBonus, DefenseBonus: e.DefenseBonus, Kinds: e.Kinds}
	}
	return c
}
