package server

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/lawnchairsociety/battlecalc/internal/database"
	"github.com/lawnchairsociety/battlecalc/internal/ruleset"
)

// ErrUnknownRuleset is returned for a ruleset name no source knows.
var ErrUnknownRuleset = errors.New("unknown ruleset")

// RulesetSource supplies the read-only rulesets sessions simulate in. An
// empty name selects the default ruleset.
type RulesetSource interface {
	Ruleset(name string) (*ruleset.Ruleset, error)
	Names() ([]string, error)
}

// StaticRulesets serves rulesets held in memory, usually loaded from YAML.
type StaticRulesets struct {
	byName      map[string]*ruleset.Ruleset
	defaultName string
}

// NewStaticRulesets serves rs; the first one is the default.
func NewStaticRulesets(rs ...*ruleset.Ruleset) *StaticRulesets {
	s := &StaticRulesets{byName: make(map[string]*ruleset.Ruleset, len(rs))}
	for i, r := range rs {
		if i == 0 {
			s.defaultName = r.Name
		}
		s.byName[r.Name] = r
	}
	return s
}

func (s *StaticRulesets) Ruleset(name string) (*ruleset.Ruleset, error) {
	if name == "" {
		name = s.defaultName
	}
	rs, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRuleset, name)
	}
	return rs, nil
}

func (s *StaticRulesets) Names() ([]string, error) {
	names := make([]string, 0, len(s.byName))
	for name := range s.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// StoredRulesets serves rulesets from the database, caching each one after
// its first load.
type StoredRulesets struct {
	db          *database.Database
	defaultName string

	mu    sync.Mutex
	cache map[string]*ruleset.Ruleset
}

// NewStoredRulesets serves the rulesets stored in db.
func NewStoredRulesets(db *database.Database, defaultName string) *StoredRulesets {
	return &StoredRulesets{
		db:          db,
		defaultName: defaultName,
		cache:       make(map[string]*ruleset.Ruleset),
	}
}

func (s *StoredRulesets) Ruleset(name string) (*ruleset.Ruleset, error) {
	if name == "" {
		name = s.defaultName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rs, ok := s.cache[name]; ok {
		return rs, nil
	}
	rs, err := s.db.LoadRuleset(name)
	if errors.Is(err, database.ErrRulesetNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRuleset, name)
	}
	if err != nil {
		return nil, err
	}
	s.cache[name] = rs
	return rs, nil
}

func (s *StoredRulesets) Names() ([]string, error) {
	infos, err := s.db.ListRulesets()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	return names, nil
}
