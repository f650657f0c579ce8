// Package calculator keeps a user's price calculator in step with live market data.
//
// The synchronization rule is a pure function of the calculator state and a market event;
// Session adds request tagging so that a late response for a superseded date is dropped.
package calculator

import (
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/nerkh/internal/domain"
)

// ItemType selects which market feed prices a calculator line.
type ItemType string

const (
	ItemCurrency ItemType = "currency"
	ItemGold     ItemType = "gold"
	ItemCoin     ItemType = "coin"
)

// Item is one calculator line. Lines without a SubType are manual entries.
type Item struct {
	ID        string          `json:"id"`
	Type      ItemType        `json:"type"`
	SubType   string          `json:"subType,omitempty"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// State is the calculator as the user sees it.
type State struct {
	Active bool      `json:"active"`
	Date   time.Time `json:"date"`
	Items  []Item    `json:"items"`
}

// Feed is one market data source. A nil Quotes map that is not loading means
// the source has never delivered data.
type Feed struct {
	Quotes  map[string]domain.Quote
	Loading bool
}

func (f Feed) absent() bool {
	return f.Quotes == nil && !f.Loading
}

// Event is a change of selected date or market data.
type Event struct {
	Date       time.Time
	Currencies Feed
	Gold       Feed
	Crypto     Feed
}

// EventFromSnapshot wraps a loaded market snapshot as a complete event.
func EventFromSnapshot(snap domain.MarketSnapshot) Event {
	return Event{
		Date:       snap.Date,
		Currencies: Feed{Quotes: snap.Currencies},
		Gold:       Feed{Quotes: snap.Gold},
		Crypto:     Feed{Quotes: snap.Crypto},
	}
}

// Effects describes what a transition changed.
type Effects struct {
	// Deferred is set when the event was ignored until more data arrives.
	Deferred    bool                       `json:"deferred"`
	DateChanged bool                       `json:"dateChanged"`
	Prices      map[string]decimal.Decimal `json:"prices,omitempty"`
}

// Changed reports whether the transition produced any state change.
func (e Effects) Changed() bool {
	return e.DateChanged || len(e.Prices) > 0
}

// Transition applies a market event to the calculator state.
// Prices are replaced as one batch and only when at least one line actually changes, so
// repeating an event is a no-op. Lines without a SubType, or whose quote is missing, keep
// their current price.
func Transition(s State, e Event) (State, Effects) {
	if !s.Active || len(s.Items) == 0 {
		return s, Effects{}
	}
	if e.Currencies.Loading || e.Gold.Loading || e.Crypto.Loading {
		return s, Effects{Deferred: true}
	}
	if e.Currencies.absent() && e.Gold.absent() && e.Crypto.absent() {
		return s, Effects{Deferred: true}
	}

	var eff Effects
	next := s
	if !e.Date.IsZero() && !domain.DateOnly(e.Date).Equal(domain.DateOnly(s.Date)) {
		next.Date = domain.DateOnly(e.Date)
		eff.DateChanged = true
	}

	items := slices.Clone(s.Items)
	prices := make(map[string]decimal.Decimal)
	for i, item := range items {
		if item.SubType == "" {
			continue
		}
		quote, ok := feedFor(e, item.Type).Quotes[strings.ToLower(item.SubType)]
		if !ok || quote.Value.Equal(item.UnitPrice) {
			continue
		}
		items[i].UnitPrice = quote.Value
		prices[item.ID] = quote.Value
	}

	if len(prices) > 0 {
		next.Items = items
		eff.Prices = prices
	}
	return next, eff
}

func feedFor(e Event, t ItemType) Feed {
	switch t {
	case ItemCurrency:
		return e.Currencies
	case ItemGold:
		return e.Gold
	case ItemCoin:
		return e.Crypto
	default:
		return Feed{}
	}
}

// Total sums quantity times unit price over all lines.
func Total(items []Item) decimal.Decimal {
	return lo.Reduce(items, func(sum decimal.Decimal, item Item, _ int) decimal.Decimal {
		return sum.Add(item.Quantity.Mul(item.UnitPrice))
	}, decimal.Zero)
}
