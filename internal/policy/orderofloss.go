package policy

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lawnchairsociety/battlecalc/internal/calcerr"
	"github.com/lawnchairsociety/battlecalc/internal/ruleset"
	"github.com/lawnchairsociety/battlecalc/internal/snapshot"
)

const (
	entrySeparator  = ";"
	amountSeparator = "^"
	wildcard        = "*"
)

// All is the Amount of an entry that covers every unit of its kind.
const All = -1

// Entry is one "amount^Kind" element of an order of loss.
type Entry struct {
	Amount int
	Kind   string
}

func (e Entry) String() string {
	if e.Amount == All {
		return wildcard + amountSeparator + e.Kind
	}
	return strconv.Itoa(e.Amount) + amountSeparator + e.Kind
}

// OrderOfLoss is a custom casualty priority. Units of earlier entries survive
// longest.
type OrderOfLoss []Entry

// ParseOrderOfLoss reads the text form "1^Infantry;*^Tank". Blank text means
// no custom order and yields a nil OrderOfLoss. When cat is not nil every
// kind must exist in it.
func ParseOrderOfLoss(text string, cat *ruleset.Catalog) (OrderOfLoss, error) {
	var out OrderOfLoss
	for _, raw := range strings.Split(text, entrySeparator) {
		field := strings.TrimSpace(raw)
		if field == "" {
			continue
		}
		if strings.Count(field, amountSeparator) != 1 {
			return nil, fmt.Errorf("%w: order of loss entry %q is not amount^kind", calcerr.ErrInvalidConfiguration, field)
		}
		amountText, kind, _ := strings.Cut(field, amountSeparator)
		amountText = strings.TrimSpace(amountText)
		kind = strings.TrimSpace(kind)

		amount := All
		if amountText != wildcard {
			n, err := strconv.Atoi(amountText)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("%w: order of loss amount %q must be a positive number or %s", calcerr.ErrInvalidConfiguration, amountText, wildcard)
			}
			amount = n
		}
		if kind == "" {
			return nil, fmt.Errorf("%w: order of loss entry %q has no unit kind", calcerr.ErrInvalidConfiguration, field)
		}
		if cat != nil && !cat.Has(kind) {
			return nil, fmt.Errorf("%w: order of loss names unknown unit kind %q", calcerr.ErrInvalidConfiguration, kind)
		}
		out = append(out, Entry{Amount: amount, Kind: kind})
	}
	return out, nil
}

// ValidOrderOfLoss reports whether text is a usable order of loss for the
// catalog.
func ValidOrderOfLoss(text string, cat *ruleset.Catalog) bool {
	_, err := ParseOrderOfLoss(text, cat)
	return err == nil
}

func (o OrderOfLoss) String() string {
	parts := make([]string, len(o))
	for i, e := range o {
		parts[i] = e.String()
	}
	return strings.Join(parts, entrySeparator)
}

// Queue returns the ids of the given units in the order they should die.
// Entries are walked from last to first, each one taking up to Amount units
// of its kind that are not queued yet, in the order the units are given.
// Units no entry covers are left out.
func (o OrderOfLoss) Queue(units []snapshot.Unit) []snapshot.UnitID {
	queued := make(map[snapshot.UnitID]bool, len(units))
	var out []snapshot.UnitID
	for i := len(o) - 1; i >= 0; i-- {
		e := o[i]
		taken := 0
		for _, u := range units {
			if e.Amount != All && taken >= e.Amount {
				break
			}
			if u.Kind != e.Kind || queued[u.ID] {
				continue
			}
			queued[u.ID] = true
			out = append(out, u.ID)
			taken++
		}
	}
	return out
}
