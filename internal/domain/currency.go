package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Freshness classifies how recent a market price is.
type Freshness string

const (
	FreshnessFresh Freshness = "fresh"
	FreshnessAging Freshness = "aging"
	FreshnessStale Freshness = "stale"
)

const (
	freshWithin = time.Hour
	staleAfter  = 24 * time.Hour
)

// ClassifyFreshness returns fresh for data younger than one hour, stale for data older than
// 24 hours or never updated, and aging in between.
func ClassifyFreshness(lastUpdated *time.Time, now time.Time) Freshness {
	if lastUpdated == nil || lastUpdated.IsZero() {
		return FreshnessStale
	}
	age := now.Sub(*lastUpdated)
	switch {
	case age < freshWithin:
		return FreshnessFresh
	case age > staleAfter:
		return FreshnessStale
	default:
		return FreshnessAging
	}
}

// DigitalCurrencyRecord is the persisted market entity for a tracked digital currency.
// Symbol is unique at the storage layer.
type DigitalCurrencyRecord struct {
	Symbol              string           `json:"symbol"`
	Name                string           `json:"name"`
	PriceInToman        decimal.Decimal  `json:"priceInToman"`
	MarketCapInToman    *decimal.Decimal `json:"marketCapInToman,omitempty"`
	VolumeInToman24h    *decimal.Decimal `json:"volumeInToman24h,omitempty"`
	ChangePercentage24h decimal.Decimal  `json:"changePercentage24h"`
	ChangeAmount24h     decimal.Decimal  `json:"changeAmount24h"`
	ChangePercentage7d  decimal.Decimal  `json:"changePercentage7d"`
	CirculatingSupply   *decimal.Decimal `json:"circulatingSupply,omitempty"`
	TotalSupply         *decimal.Decimal `json:"totalSupply,omitempty"`
	MaxSupply           *decimal.Decimal `json:"maxSupply,omitempty"`
	LastUpdated         *time.Time       `json:"lastUpdated,omitempty"`
	IsActive            bool             `json:"isActive"`
}

// NewDigitalCurrencyRecord creates an active record with zeroed change metrics.
func NewDigitalCurrencyRecord(symbol, name string, priceInToman decimal.Decimal) DigitalCurrencyRecord {
	return DigitalCurrencyRecord{
		Symbol:              symbol,
		Name:                name,
		PriceInToman:        priceInToman,
		ChangePercentage24h: decimal.Zero,
		ChangeAmount24h:     decimal.Zero,
		ChangePercentage7d:  decimal.Zero,
		IsActive:            true,
	}
}

// Freshness classifies the record's LastUpdated relative to now.
func (r DigitalCurrencyRecord) Freshness(now time.Time) Freshness {
	return ClassifyFreshness(r.LastUpdated, now)
}
