// Package domain holds the Order-Book Storage Engine's structural types:
// the sorted price ladder, the per-(exchange,currency) three-slot shell,
// and the tagged ContractTypeOrderbook union from spec.md §3.
//
// Grounded on the reference repo's pervasive use of shopspring/decimal for
// money-shaped values (e.g. internal/config.go's *Decimal() helpers) for the
// price/amount representation, and on
// original_source/data-streamer/src/model.rs for the BTreeMap-keyed
// expiration/strike shape this package generalizes (that draft used Rust's
// BTreeMap directly; no ordered-map library exists anywhere in the
// retrieved pack, so the sorted ladder here is hand-rolled — see
// DESIGN.md).
package domain

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// Level is one priced level of a ladder.
type Level struct {
	Price  decimal.Decimal
	Amount decimal.Decimal
}

// PriceLadder is a sorted map from price to amount. decimal.Decimal cannot
// be used directly as a Go map key (it wraps a *big.Int and two logically
// equal values can have different pointers), so entries are keyed on the
// decimal's canonical string form while the original decimal.Decimal is
// retained for comparisons and output — this is the "total-order wrapper
// over f64" spec.md §9 calls for, rejecting NaN at the boundary where a
// raw float64 is first converted.
type PriceLadder struct {
	levels map[string]Level
}

// NewPriceLadder returns an empty ladder.
func NewPriceLadder() *PriceLadder {
	return &PriceLadder{levels: make(map[string]Level)}
}

// DecimalFromFloat converts a raw float64 price/amount into decimal.Decimal,
// rejecting NaN and infinities as invalid per spec.md §9's total-order
// wrapper requirement.
func DecimalFromFloat(v float64) (decimal.Decimal, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Decimal{}, false
	}
	return decimal.NewFromFloat(v), true
}

// Set inserts or overwrites the level at price — New and Change share this
// behavior per spec.md §4.6's state-transition table.
func (l *PriceLadder) Set(price, amount decimal.Decimal) {
	l.levels[price.String()] = Level{Price: price, Amount: amount}
}

// Delete removes the level at price, if present. Deleting an absent price
// is tolerated (a no-op), matching the documented state machine.
func (l *PriceLadder) Delete(price decimal.Decimal) {
	delete(l.levels, price.String())
}

// Len returns the number of priced levels currently held.
func (l *PriceLadder) Len() int { return len(l.levels) }

// Levels returns every level sorted by price ascending. Best-ask direction
// (min price first) and best-bid direction (max price last, so callers
// reverse for descending) both derive from this single ascending order.
func (l *PriceLadder) Levels() []Level {
	out := make([]Level, 0, len(l.levels))
	for _, lvl := range l.levels {
		out = append(out, lvl)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Price.Cmp(out[j].Price) < 0
	})
	return out
}

// Get returns the level at price and whether it is present.
func (l *PriceLadder) Get(price decimal.Decimal) (Level, bool) {
	lvl, ok := l.levels[price.String()]
	return lvl, ok
}
