package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category is the asset class of a managed item.
type Category string

const (
	CategoryCurrency Category = "currency"
	CategoryGold     Category = "gold"
	CategoryCoin     Category = "coin"
	CategoryCrypto   Category = "crypto"
)

// Categories lists every valid Category in display order.
var Categories = []Category{CategoryCurrency, CategoryGold, CategoryCoin, CategoryCrypto}

// Variant is the directional (buy/sell) pricing of an item. Items without a variant leave it nil.
type Variant string

const (
	VariantSell Variant = "sell"
	VariantBuy  Variant = "buy"
)

// Variants lists every valid Variant.
var Variants = []Variant{VariantSell, VariantBuy}

// Source records where an item's price comes from.
type Source string

const (
	SourceAPI    Source = "api"
	SourceManual Source = "manual"
)

// Sources lists every valid Source.
var Sources = []Source{SourceAPI, SourceManual}

// ManagedItem is an admin-curated, priced catalog entry shown to end users.
// Code is unique and never changes after creation.
type ManagedItem struct {
	Code          string           `json:"code"`
	OHLCCode      string           `json:"ohlcCode"`
	ParentCode    *string          `json:"parentCode,omitempty"`
	Name          string           `json:"name"`
	NameAr        *string          `json:"nameAr,omitempty"`
	NameFa        *string          `json:"nameFa,omitempty"`
	Variant       *Variant         `json:"variant,omitempty"`
	Category      Category         `json:"category"`
	Icon          *string          `json:"icon,omitempty"`
	DisplayOrder  int              `json:"displayOrder"`
	IsActive      bool             `json:"isActive"`
	Source        Source           `json:"source"`
	HasAPIData    bool             `json:"hasApiData"`
	OverridePrice *decimal.Decimal `json:"overridePrice,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// EffectivePrice returns the admin seed price. It is only consulted for manual items;
// for any other source the override is advisory and ok is false.
func (m ManagedItem) EffectivePrice() (decimal.Decimal, bool) {
	if m.Source != SourceManual || m.OverridePrice == nil {
		return decimal.Zero, false
	}
	return *m.OverridePrice, true
}
