package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a single market price in Toman.
type Quote struct {
	Value     decimal.Decimal `json:"value"`
	Change    decimal.Decimal `json:"change"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// MarketSnapshot holds the prices known for a date, grouped by data source.
// Map keys are lowercase item codes or symbols.
type MarketSnapshot struct {
	Date       time.Time        `json:"date"`
	Currencies map[string]Quote `json:"currencies"`
	Gold       map[string]Quote `json:"gold"`
	Crypto     map[string]Quote `json:"crypto"`
}

// NewMarketSnapshot returns an empty snapshot for date.
func NewMarketSnapshot(date time.Time) MarketSnapshot {
	return MarketSnapshot{
		Date:       date,
		Currencies: make(map[string]Quote),
		Gold:       make(map[string]Quote),
		Crypto:     make(map[string]Quote),
	}
}

// Bucket returns the snapshot map that holds prices for category.
// Coins share the crypto bucket.
func (s MarketSnapshot) Bucket(c Category) map[string]Quote {
	switch c {
	case CategoryCurrency:
		return s.Currencies
	case CategoryGold:
		return s.Gold
	case CategoryCoin, CategoryCrypto:
		return s.Crypto
	default:
		return nil
	}
}

// Put stores q under the lowercase code in the bucket for category.
func (s MarketSnapshot) Put(c Category, code string, q Quote) {
	if b := s.Bucket(c); b != nil {
		b[strings.ToLower(code)] = q
	}
}

// Candle is one OHLC bucket of an item's price series.
type Candle struct {
	ItemCode    string          `json:"itemCode"`
	Timeframe   string          `json:"timeframe"`
	BucketStart time.Time       `json:"bucketStart"`
	Open        decimal.Decimal `json:"open"`
	High        decimal.Decimal `json:"high"`
	Low         decimal.Decimal `json:"low"`
	Close       decimal.Decimal `json:"close"`
	Volume      decimal.Decimal `json:"volume"`
}

// DateOnly truncates t to midnight UTC.
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
