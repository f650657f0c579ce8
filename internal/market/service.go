package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/nerkh/internal/domain"
	"github.com/mtlprog/nerkh/internal/feed"
)

// ErrInvalidRecord indicates a digital currency record that fails basic checks.
var ErrInvalidRecord = errors.New("invalid digital currency record")

const (
	defaultTopLimit = 20
	maxTopLimit     = 100
	staleAfter      = 24 * time.Hour
)

// QuoteSource fetches the current set of quotes from the pricing feed.
type QuoteSource interface {
	FetchAll(ctx context.Context) ([]feed.Quote, error)
}

// ManualSource lists admin-managed items that carry their own price.
type ManualSource interface {
	ManualItems(ctx context.Context) ([]domain.ManagedItem, error)
}

// TickRecorder folds observed prices into candle series.
type TickRecorder interface {
	RecordTick(ctx context.Context, code string, price decimal.Decimal, at time.Time) error
}

// Hook runs after a successful ingestion.
type Hook func(ctx context.Context) error

// IngestResult counts what one ingestion stored.
type IngestResult struct {
	Prices            int `json:"prices"`
	DigitalCurrencies int `json:"digitalCurrencies"`
}

// Service stores feed quotes and serves market snapshots.
type Service struct {
	source  QuoteSource
	prices  PriceRepository
	digital DigitalCurrencyRepository
	manual  ManualSource
	ticks   TickRecorder
	hooks   []Hook
	now     func() time.Time
}

// NewService creates a new market Service. manual may be nil.
func NewService(source QuoteSource, prices PriceRepository, digital DigitalCurrencyRepository, manual ManualSource) *Service {
	return &Service{
		source:  source,
		prices:  prices,
		digital: digital,
		manual:  manual,
		now:     time.Now,
	}
}

// RecordTicks makes every ingested quote also update the candle series of its code.
func (s *Service) RecordTicks(r TickRecorder) {
	s.ticks = r
}

// AddHook registers fn to run after every successful ingestion.
func (s *Service) AddHook(fn Hook) {
	s.hooks = append(s.hooks, fn)
}

// Ingest pulls all quotes from the feed. Currency, gold and coin quotes become today's
// price rows; crypto quotes update the digital currency records.
func (s *Service) Ingest(ctx context.Context) (IngestResult, error) {
	quotes, err := s.source.FetchAll(ctx)
	if err != nil {
		return IngestResult{}, fmt.Errorf("fetching feed quotes: %w", err)
	}

	var result IngestResult
	today := domain.DateOnly(s.now())
	for _, q := range quotes {
		if s.ticks != nil {
			if err := s.ticks.RecordTick(ctx, q.Code, q.Price, q.UpdatedAt); err != nil {
				slog.Warn("recording candle tick failed", "code", q.Code, "error", err)
			}
		}
		if q.Category == domain.CategoryCrypto {
			if err := s.digital.Upsert(ctx, digitalRecord(q)); err != nil {
				return result, fmt.Errorf("storing digital currency %s: %w", q.Code, err)
			}
			result.DigitalCurrencies++
			continue
		}

		err := s.prices.SavePrice(ctx, Price{
			Category:  q.Category,
			Code:      q.Code,
			Date:      today,
			Value:     q.Price,
			Change:    q.Change,
			UpdatedAt: q.UpdatedAt,
		})
		if err != nil {
			return result, fmt.Errorf("storing price %s: %w", q.Code, err)
		}
		result.Prices++
	}

	slog.Info("market ingestion complete", "prices", result.Prices, "digitalCurrencies", result.DigitalCurrencies)

	for _, hook := range s.hooks {
		if err := hook(ctx); err != nil {
			slog.Error("after-ingest hook failed", "error", err)
		}
	}
	return result, nil
}

// Snapshot builds the market snapshot for date. Digital currency records are only
// included for today or later since they hold no history. Active manual items
// with an override price replace feed prices in their category.
func (s *Service) Snapshot(ctx context.Context, date time.Time) (domain.MarketSnapshot, error) {
	date = domain.DateOnly(date)
	snap := domain.NewMarketSnapshot(date)

	rows, err := s.prices.PricesAsOf(ctx, date)
	if err != nil {
		return snap, fmt.Errorf("loading prices: %w", err)
	}
	for _, p := range rows {
		snap.Put(p.Category, p.Code, domain.Quote{Value: p.Value, Change: p.Change, UpdatedAt: p.UpdatedAt})
	}

	if !date.Before(domain.DateOnly(s.now())) {
		records, err := s.digital.TopByMarketCap(ctx, 0)
		if err != nil {
			return snap, fmt.Errorf("loading digital currencies: %w", err)
		}
		for _, rec := range records {
			q := domain.Quote{Value: rec.PriceInToman, Change: rec.ChangePercentage24h}
			if rec.LastUpdated != nil {
				q.UpdatedAt = *rec.LastUpdated
			}
			snap.Put(domain.CategoryCrypto, rec.Symbol, q)
		}
	}

	if s.manual != nil {
		items, err := s.manual.ManualItems(ctx)
		if err != nil {
			slog.Warn("manual prices unavailable, serving feed prices only", "error", err)
			return snap, nil
		}
		for _, item := range items {
			price, ok := item.EffectivePrice()
			if !ok {
				continue
			}
			snap.Put(item.Category, item.Code, domain.Quote{Value: price, Change: decimal.Zero, UpdatedAt: item.UpdatedAt})
		}
	}

	return snap, nil
}

// TopDigitalCurrencies returns up to limit active digital currencies by market cap.
// Non-positive limits use the default; limits above the maximum are clamped.
func (s *Service) TopDigitalCurrencies(ctx context.Context, limit int) ([]domain.DigitalCurrencyRecord, error) {
	switch {
	case limit <= 0:
		limit = defaultTopLimit
	case limit > maxTopLimit:
		limit = maxTopLimit
	}
	records, err := s.digital.TopByMarketCap(ctx, limit)
	if err != nil {
		return nil, err
	}
	if records == nil {
		return []domain.DigitalCurrencyRecord{}, nil
	}
	return records, nil
}

// AddDigitalCurrency starts tracking a new digital currency before the feed reports it.
// A symbol that is already tracked yields ErrDuplicateSymbol.
func (s *Service) AddDigitalCurrency(ctx context.Context, symbol, name string, price decimal.Decimal) (domain.DigitalCurrencyRecord, error) {
	symbol = strings.ToLower(strings.TrimSpace(symbol))
	if symbol == "" || strings.TrimSpace(name) == "" {
		return domain.DigitalCurrencyRecord{}, fmt.Errorf("%w: symbol and name are required", ErrInvalidRecord)
	}
	if price.IsNegative() {
		return domain.DigitalCurrencyRecord{}, fmt.Errorf("%w: price must not be negative", ErrInvalidRecord)
	}

	rec := domain.NewDigitalCurrencyRecord(symbol, strings.TrimSpace(name), price)
	if err := s.digital.Insert(ctx, rec); err != nil {
		return domain.DigitalCurrencyRecord{}, err
	}
	slog.Info("digital currency added", "symbol", symbol)
	return rec, nil
}

// DigitalCurrency returns the record for symbol, matched case-insensitively.
func (s *Service) DigitalCurrency(ctx context.Context, symbol string) (domain.DigitalCurrencyRecord, error) {
	return s.digital.GetBySymbol(ctx, strings.ToLower(strings.TrimSpace(symbol)))
}

// StaleDigitalCurrencies returns active records not updated within the last 24 hours.
func (s *Service) StaleDigitalCurrencies(ctx context.Context) ([]domain.DigitalCurrencyRecord, error) {
	return s.digital.ListStale(ctx, s.now().Add(-staleAfter))
}

func digitalRecord(q feed.Quote) domain.DigitalCurrencyRecord {
	name := q.TitleEn
	if name == "" {
		name = q.Title
	}
	rec := domain.NewDigitalCurrencyRecord(q.Code, name, q.Price)
	rec.MarketCapInToman = q.MarketCap
	rec.VolumeInToman24h = q.Volume24h
	rec.ChangePercentage24h = q.Change
	rec.ChangeAmount24h = changeAmount(q.Price, q.Change)
	rec.ChangePercentage7d = q.Change7d
	updated := q.UpdatedAt
	rec.LastUpdated = &updated
	return rec
}

// changeAmount derives the absolute 24h change from the current price and percent change.
func changeAmount(price, percent decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(100).Add(percent)
	if factor.IsZero() {
		return decimal.Zero
	}
	previous := price.Mul(decimal.NewFromInt(100)).Div(factor)
	return price.Sub(previous).Round(2)
}
