package export

import (
	"slices"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/nerkh/internal/domain"
)

// Sheet names, in workbook order.
const (
	SheetCurrencies = "CURRENCIES"
	SheetGold       = "GOLD"
	SheetCrypto     = "CRYPTO"
	SheetDigital    = "DIGITAL"
	SheetHistory    = "HISTORY"
)

// Table is one named sheet of rows. The first row is the header.
type Table struct {
	Name string
	Rows [][]any
}

// BuildTables lays out a snapshot and digital currency records as sheets.
func BuildTables(snap domain.MarketSnapshot, records []domain.DigitalCurrencyRecord, now time.Time) []Table {
	return []Table{
		{Name: SheetCurrencies, Rows: BuildMarketRows(snap.Currencies, now)},
		{Name: SheetGold, Rows: BuildMarketRows(snap.Gold, now)},
		{Name: SheetCrypto, Rows: BuildMarketRows(snap.Crypto, now)},
		{Name: SheetDigital, Rows: BuildDigitalCurrencyRows(records, now)},
	}
}

// BuildMarketRows builds one bucket of a snapshot sorted by code.
// Columns: Code | Price | Change % | Updated | Freshness
func BuildMarketRows(bucket map[string]domain.Quote, now time.Time) [][]any {
	data := make([][]any, 0, len(bucket)+1)
	data = append(data, []any{"Code", "Price", "Change %", "Updated", "Freshness"})

	codes := lo.Keys(bucket)
	slices.Sort(codes)
	for _, code := range codes {
		q := bucket[code]
		var updated *time.Time
		if !q.UpdatedAt.IsZero() {
			updated = &q.UpdatedAt
		}
		data = append(data, []any{
			code,
			domain.RoundToman(q.Value),
			toFloat(q.Change),
			formatTime(updated),
			string(domain.ClassifyFreshness(updated, now)),
		})
	}
	return data
}

// BuildDigitalCurrencyRows builds the digital currency sheet in the given order.
// Columns: Symbol | Name | Price | Market Cap | Volume 24h | Change 24h % | Change 24h | Change 7d % | Updated | Freshness
func BuildDigitalCurrencyRows(records []domain.DigitalCurrencyRecord, now time.Time) [][]any {
	data := make([][]any, 0, len(records)+1)
	data = append(data, []any{
		"Symbol", "Name", "Price", "Market Cap", "Volume 24h",
		"Change 24h %", "Change 24h", "Change 7d %", "Updated", "Freshness",
	})

	for _, rec := range records {
		data = append(data, []any{
			rec.Symbol,
			rec.Name,
			toFloat(rec.PriceInToman),
			ptrFloat(rec.MarketCapInToman),
			ptrFloat(rec.VolumeInToman24h),
			toFloat(rec.ChangePercentage24h),
			toFloat(rec.ChangeAmount24h),
			toFloat(rec.ChangePercentage7d),
			formatTime(rec.LastUpdated),
			string(rec.Freshness(now)),
		})
	}
	return data
}

// historyColumn is one tracked price in the HISTORY sheet.
type historyColumn struct {
	header   string
	category domain.Category
	code     string
}

// historyColumns lists the prices appended to HISTORY after every ingestion.
var historyColumns = []historyColumn{
	{header: "USD", category: domain.CategoryCurrency, code: "usd"},
	{header: "EUR", category: domain.CategoryCurrency, code: "eur"},
	{header: "AED", category: domain.CategoryCurrency, code: "aed"},
	{header: "GBP", category: domain.CategoryCurrency, code: "gbp"},
	{header: "TRY", category: domain.CategoryCurrency, code: "try"},
	{header: "Gold 18k", category: domain.CategoryGold, code: "gold_18"},
	{header: "Gold 24k", category: domain.CategoryGold, code: "gold_24"},
	{header: "Mesghal", category: domain.CategoryGold, code: "mesghal"},
	{header: "Sekkeh Emami", category: domain.CategoryCoin, code: "sekkeh"},
	{header: "Nim Sekkeh", category: domain.CategoryCoin, code: "nim"},
	{header: "Rob Sekkeh", category: domain.CategoryCoin, code: "rob"},
	{header: "BTC", category: domain.CategoryCrypto, code: "btc"},
	{header: "ETH", category: domain.CategoryCrypto, code: "eth"},
	{header: "USDT", category: domain.CategoryCrypto, code: "usdt"},
}

// buildHistoryRow builds the HISTORY header and one data row. Missing prices are left blank.
func buildHistoryRow(snap domain.MarketSnapshot, at time.Time) (header, row []any) {
	header = make([]any, 1+len(historyColumns))
	header[0] = "Date"
	row = make([]any, 1+len(historyColumns))
	row[0] = at.UTC().Format("2006-01-02 15:04")

	for i, col := range historyColumns {
		header[i+1] = col.header
		if q, ok := snap.Bucket(col.category)[col.code]; ok {
			row[i+1] = domain.RoundToman(q.Value)
		}
	}
	return header, row
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toFloat(d decimal.Decimal) float64 {
	return domain.DecimalToNumber(d)
}

func ptrFloat(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return domain.DecimalToNumber(*d)
}
