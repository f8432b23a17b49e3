package ruleset

// Classic returns the built-in ruleset used when no ruleset file is given.
// It follows the usual d6 "hit on attack or less" unit chart.
func Classic() *Ruleset {
	catalog, err := NewCatalog(
		UnitKind{Name: "Infantry", Cost: 3, Attack: 1, Defense: 2, Domain: Land},
		UnitKind{Name: "Artillery", Cost: 4, Attack: 2, Defense: 2, Domain: Land},
		UnitKind{Name: "Tank", Cost: 6, Attack: 3, Defense: 3, Domain: Land},
		UnitKind{Name: "Fighter", Cost: 10, Attack: 3, Defense: 4, Domain: Air},
		UnitKind{Name: "Bomber", Cost: 12, Attack: 4, Defense: 1, Domain: Air},
		UnitKind{Name: "Transport", Cost: 7, Domain: Sea},
		UnitKind{Name: "Submarine", Cost: 6, Attack: 2, Defense: 1, Domain: Sea, Submersible: true},
		UnitKind{Name: "Destroyer", Cost: 8, Attack: 2, Defense: 2, Domain: Sea, Destroyer: true},
		UnitKind{Name: "Cruiser", Cost: 12, Attack: 3, Defense: 3, Domain: Sea},
		UnitKind{Name: "Carrier", Cost: 14, Attack: 1, Defense: 2, HitPoints: 2, Domain: Sea},
		UnitKind{Name: "Battleship", Cost: 20, Attack: 4, Defense: 4, HitPoints: 2, Domain: Sea},
	)
	if err != nil {
		panic("classic ruleset: " + err.Error())
	}
	return &Ruleset{
		Name:      "classic",
		DiceSides: DefaultDiceSides,
		Catalog:   catalog,
		Territories: map[string]TerritoryDef{
			"Germany":     {Name: "Germany", Owner: "Germans"},
			"Karelia":     {Name: "Karelia", Owner: "Russians"},
			"Russia":      {Name: "Russia", Owner: "Russians"},
			"Caucasus":    {Name: "Caucasus", Owner: "Russians"},
			"Sea Zone 5":  {Name: "Sea Zone 5", Water: true},
			"Sea Zone 16": {Name: "Sea Zone 16", Water: true},
		},
		Players: map[string]Player{
			"Germans":   {Name: "Germans", Alliance: "Axis", Resources: map[string]int{"PUs": 40}},
			"Russians":  {Name: "Russians", Alliance: "Allies", Resources: map[string]int{"PUs": 24}},
			"Americans": {Name: "Americans", Alliance: "Allies", Resources: map[string]int{"PUs": 42}},
		},
		Effects: map[string]Effect{
			"Mountain": {Name: "Mountain", DefenseBonus: 1, Kinds: []string{"Infantry", "Artillery"}},
			"Marsh":    {Name: "Marsh", AttackBonus: -1, Kinds: []string{"Tank"}},
		},
	}
}
