package ohlc

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/nerkh/internal/domain"
)

// DailyTimeframe is the timeframe of candles built from ingested prices.
const DailyTimeframe = "1d"

const maxCandles = 365

// PgRepository stores OHLC candles in PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository creates a new PostgreSQL candle repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// FetchCandles returns the most recent candles for code in chronological order.
func (r *PgRepository) FetchCandles(ctx context.Context, code string) ([]domain.Candle, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT item_code, timeframe, bucket_start, open, high, low, close, volume
		 FROM ohlc_candles
		 WHERE item_code = $1
		 ORDER BY bucket_start DESC
		 LIMIT $2`, strings.ToUpper(code), maxCandles)
	if err != nil {
		return nil, fmt.Errorf("querying candles for %s: %w", code, err)
	}
	defer rows.Close()

	var candles []domain.Candle
	for rows.Next() {
		var c domain.Candle
		if err := rows.Scan(&c.ItemCode, &c.Timeframe, &c.BucketStart, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scanning candle: %w", err)
		}
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating candles: %w", err)
	}
	slices.Reverse(candles)
	return candles, nil
}

// RecordTick folds one observed price into the daily candle of code.
// The first tick of a day opens the candle; later ticks move high, low and close.
func (r *PgRepository) RecordTick(ctx context.Context, code string, price decimal.Decimal, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO ohlc_candles (item_code, timeframe, bucket_start, open, high, low, close)
		 VALUES ($1, $2, $3, $4, $4, $4, $4)
		 ON CONFLICT (item_code, timeframe, bucket_start) DO UPDATE SET
			high = GREATEST(ohlc_candles.high, EXCLUDED.high),
			low = LEAST(ohlc_candles.low, EXCLUDED.low),
			close = EXCLUDED.close`,
		strings.ToUpper(code), DailyTimeframe, domain.DateOnly(at), price)
	if err != nil {
		return fmt.Errorf("recording tick for %s: %w", code, err)
	}
	return nil
}
