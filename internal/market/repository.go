package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/nerkh/internal/domain"
)

// ErrNotFound indicates that the requested digital currency was not found.
var ErrNotFound = errors.New("digital currency not found")

// ErrDuplicateSymbol indicates that a digital currency symbol is already taken.
var ErrDuplicateSymbol = errors.New("digital currency symbol already exists")

// DigitalCurrencyRepository defines persistent storage for digital currency records.
type DigitalCurrencyRepository interface {
	Insert(ctx context.Context, rec domain.DigitalCurrencyRecord) error
	Upsert(ctx context.Context, rec domain.DigitalCurrencyRecord) error
	GetBySymbol(ctx context.Context, symbol string) (domain.DigitalCurrencyRecord, error)
	TopByMarketCap(ctx context.Context, limit int) ([]domain.DigitalCurrencyRecord, error)
	ListStale(ctx context.Context, before time.Time) ([]domain.DigitalCurrencyRecord, error)
}

// PriceRepository defines persistent storage for daily currency, gold and coin prices.
type PriceRepository interface {
	SavePrice(ctx context.Context, p Price) error
	PricesAsOf(ctx context.Context, date time.Time) ([]Price, error)
}

// Price is one stored daily price row.
type Price struct {
	Category  domain.Category
	Code      string
	Date      time.Time
	Value     decimal.Decimal
	Change    decimal.Decimal
	UpdatedAt time.Time
}

// PgDigitalCurrencyRepository implements DigitalCurrencyRepository with PostgreSQL.
type PgDigitalCurrencyRepository struct {
	pool *pgxpool.Pool
}

// NewPgDigitalCurrencyRepository creates a new PostgreSQL digital currency repository.
func NewPgDigitalCurrencyRepository(pool *pgxpool.Pool) *PgDigitalCurrencyRepository {
	return &PgDigitalCurrencyRepository{pool: pool}
}

const digitalCurrencyColumns = `symbol, name, price_in_toman, market_cap_in_toman, volume_in_toman_24h,
	change_percentage_24h, change_amount_24h, change_percentage_7d,
	circulating_supply, total_supply, max_supply, last_updated, is_active`

func digitalCurrencyArgs(rec domain.DigitalCurrencyRecord) []any {
	return []any{
		rec.Symbol, rec.Name, rec.PriceInToman, nullable(rec.MarketCapInToman), nullable(rec.VolumeInToman24h),
		rec.ChangePercentage24h, rec.ChangeAmount24h, rec.ChangePercentage7d,
		nullable(rec.CirculatingSupply), nullable(rec.TotalSupply), nullable(rec.MaxSupply),
		rec.LastUpdated, rec.IsActive,
	}
}

// Insert stores a new record. A taken symbol yields ErrDuplicateSymbol.
func (r *PgDigitalCurrencyRepository) Insert(ctx context.Context, rec domain.DigitalCurrencyRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO digital_currencies (`+digitalCurrencyColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		digitalCurrencyArgs(rec)...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSymbol
		}
		return fmt.Errorf("inserting digital currency %s: %w", rec.Symbol, err)
	}
	return nil
}

// upsertDigitalCurrencySQL replaces the market fields of a stored record. The stored
// is_active flag is kept so a deactivated symbol stays inactive across ingestions.
const upsertDigitalCurrencySQL = `INSERT INTO digital_currencies (` + digitalCurrencyColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (symbol) DO UPDATE SET
		name = EXCLUDED.name,
		price_in_toman = EXCLUDED.price_in_toman,
		market_cap_in_toman = EXCLUDED.market_cap_in_toman,
		volume_in_toman_24h = EXCLUDED.volume_in_toman_24h,
		change_percentage_24h = EXCLUDED.change_percentage_24h,
		change_amount_24h = EXCLUDED.change_amount_24h,
		change_percentage_7d = EXCLUDED.change_percentage_7d,
		circulating_supply = COALESCE(EXCLUDED.circulating_supply, digital_currencies.circulating_supply),
		total_supply = COALESCE(EXCLUDED.total_supply, digital_currencies.total_supply),
		max_supply = COALESCE(EXCLUDED.max_supply, digital_currencies.max_supply),
		last_updated = EXCLUDED.last_updated`

// Upsert inserts the record or refreshes the stored one with the same symbol.
func (r *PgDigitalCurrencyRepository) Upsert(ctx context.Context, rec domain.DigitalCurrencyRecord) error {
	_, err := r.pool.Exec(ctx, upsertDigitalCurrencySQL, digitalCurrencyArgs(rec)...)
	if err != nil {
		return fmt.Errorf("upserting digital currency %s: %w", rec.Symbol, err)
	}
	return nil
}

func (r *PgDigitalCurrencyRepository) GetBySymbol(ctx context.Context, symbol string) (domain.DigitalCurrencyRecord, error) {
	rec, err := scanDigitalCurrency(r.pool.QueryRow(ctx,
		`SELECT `+digitalCurrencyColumns+` FROM digital_currencies WHERE symbol = $1`, symbol))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DigitalCurrencyRecord{}, ErrNotFound
		}
		return domain.DigitalCurrencyRecord{}, fmt.Errorf("getting digital currency %s: %w", symbol, err)
	}
	return rec, nil
}

// TopByMarketCap returns active records ordered by market cap, largest first.
// A non-positive limit returns every active record.
func (r *PgDigitalCurrencyRepository) TopByMarketCap(ctx context.Context, limit int) ([]domain.DigitalCurrencyRecord, error) {
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+digitalCurrencyColumns+`
		 FROM digital_currencies
		 WHERE is_active
		 ORDER BY market_cap_in_toman DESC NULLS LAST, symbol
		 LIMIT $1`, limitArg)
	if err != nil {
		return nil, fmt.Errorf("listing digital currencies by market cap: %w", err)
	}
	return collectDigitalCurrencies(rows)
}

// ListStale returns active records never updated or last updated before the given time.
func (r *PgDigitalCurrencyRepository) ListStale(ctx context.Context, before time.Time) ([]domain.DigitalCurrencyRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+digitalCurrencyColumns+`
		 FROM digital_currencies
		 WHERE is_active AND (last_updated IS NULL OR last_updated < $1)
		 ORDER BY last_updated DESC NULLS LAST`, before)
	if err != nil {
		return nil, fmt.Errorf("listing stale digital currencies: %w", err)
	}
	return collectDigitalCurrencies(rows)
}

func collectDigitalCurrencies(rows pgx.Rows) ([]domain.DigitalCurrencyRecord, error) {
	defer rows.Close()

	var records []domain.DigitalCurrencyRecord
	for rows.Next() {
		rec, err := scanDigitalCurrency(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning digital currency: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanDigitalCurrency(row pgx.Row) (domain.DigitalCurrencyRecord, error) {
	var rec domain.DigitalCurrencyRecord
	var marketCap, volume, circulating, total, maxSupply decimal.NullDecimal
	err := row.Scan(&rec.Symbol, &rec.Name, &rec.PriceInToman, &marketCap, &volume,
		&rec.ChangePercentage24h, &rec.ChangeAmount24h, &rec.ChangePercentage7d,
		&circulating, &total, &maxSupply, &rec.LastUpdated, &rec.IsActive)
	if err != nil {
		return domain.DigitalCurrencyRecord{}, err
	}
	rec.MarketCapInToman = fromNull(marketCap)
	rec.VolumeInToman24h = fromNull(volume)
	rec.CirculatingSupply = fromNull(circulating)
	rec.TotalSupply = fromNull(total)
	rec.MaxSupply = fromNull(maxSupply)
	return rec, nil
}

// PgPriceRepository implements PriceRepository with PostgreSQL.
type PgPriceRepository struct {
	pool *pgxpool.Pool
}

// NewPgPriceRepository creates a new PostgreSQL price repository.
func NewPgPriceRepository(pool *pgxpool.Pool) *PgPriceRepository {
	return &PgPriceRepository{pool: pool}
}

func (r *PgPriceRepository) SavePrice(ctx context.Context, p Price) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO market_prices (category, code, price_date, price, change, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (category, code, price_date)
		 DO UPDATE SET price = $4, change = $5, updated_at = $6`,
		string(p.Category), p.Code, p.Date, p.Value, p.Change, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving price %s/%s: %w", p.Category, p.Code, err)
	}
	return nil
}

// PricesAsOf returns the latest row per category and code on or before date.
func (r *PgPriceRepository) PricesAsOf(ctx context.Context, date time.Time) ([]Price, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT ON (category, code) category, code, price_date, price, change, updated_at
		 FROM market_prices
		 WHERE price_date <= $1
		 ORDER BY category, code, price_date DESC`, date)
	if err != nil {
		return nil, fmt.Errorf("querying prices as of %s: %w", date.Format(time.DateOnly), err)
	}
	defer rows.Close()

	var prices []Price
	for rows.Next() {
		var p Price
		var category string
		if err := rows.Scan(&category, &p.Code, &p.Date, &p.Value, &p.Change, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning price: %w", err)
		}
		p.Category = domain.Category(category)
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

func nullable(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return *d
}

func fromNull(n decimal.NullDecimal) *decimal.Decimal {
	if !n.Valid {
		return nil
	}
	d := n.Decimal
	return &d
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
