// Package ohlc serves an item's candle series through a cached read-through query.
package ohlc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/mtlprog/nerkh/internal/domain"
)

// ErrFetchFailure marks a failed candle query. It is reported in Result.Err, never panicked.
var ErrFetchFailure = errors.New("ohlc fetch failed")

// lastKnownRetention bounds how long data outlives its freshness window.
const lastKnownRetention = 24 * time.Hour

const fetchTimeout = 30 * time.Second

// Fetcher loads the candle series for an item code.
type Fetcher interface {
	FetchCandles(ctx context.Context, code string) ([]domain.Candle, error)
}

// Result is the read state of one item's candle series.
type Result struct {
	Data      []domain.Candle `json:"data"`
	HasData   bool            `json:"hasData"`
	Stale     bool            `json:"stale"`
	FetchedAt time.Time       `json:"fetchedAt,omitzero"`
	Err       error           `json:"-"`
}

type entry struct {
	candles   []domain.Candle
	fetchedAt time.Time
}

// Reader caches candle series per item code and collapses concurrent fetches of the
// same code into one.
type Reader struct {
	fetcher Fetcher
	ttl     time.Duration
	cache   *cache.Cache
	group   singleflight.Group
	now     func() time.Time
}

// NewReader creates a Reader whose cached data stays fresh for ttl.
func NewReader(fetcher Fetcher, ttl time.Duration) *Reader {
	return &Reader{
		fetcher: fetcher,
		ttl:     ttl,
		cache:   cache.New(lastKnownRetention, 10*time.Minute),
		now:     time.Now,
	}
}

// Query returns the candles for code. When disabled or code is empty nothing is fetched
// and the cache is not written; the last known data, if any, is returned as stale.
func (r *Reader) Query(ctx context.Context, code string, enabled bool) Result {
	code = normalizeCode(code)
	if !enabled || code == "" {
		res := r.peek(code)
		res.Stale = res.HasData
		return res
	}

	if res := r.peek(code); res.HasData && r.now().Sub(res.FetchedAt) < r.ttl {
		return res
	}
	return r.fetch(ctx, code)
}

// Refetch fetches code regardless of the freshness window.
func (r *Reader) Refetch(ctx context.Context, code string) Result {
	code = normalizeCode(code)
	if code == "" {
		return Result{}
	}
	return r.fetch(ctx, code)
}

// fetch runs one shared fetch per code. The fetch is detached from the caller that
// started it so a cancelled caller does not fail the others waiting on the same code.
func (r *Reader) fetch(ctx context.Context, code string) Result {
	ch := r.group.DoChan(code, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()

		candles, err := r.fetcher.FetchCandles(fetchCtx, code)
		if err != nil {
			return nil, err
		}
		e := entry{candles: candles, fetchedAt: r.now()}
		r.cache.SetDefault(code, e)
		return e, nil
	})

	select {
	case <-ctx.Done():
		return r.failed(code, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return r.failed(code, res.Err)
		}
		return toResult(res.Val.(entry))
	}
}

func (r *Reader) failed(code string, err error) Result {
	res := r.peek(code)
	res.Stale = res.HasData
	res.Err = fmt.Errorf("%w: %s: %w", ErrFetchFailure, code, err)
	return res
}

func (r *Reader) peek(code string) Result {
	if code == "" {
		return Result{}
	}
	v, ok := r.cache.Get(code)
	if !ok {
		return Result{}
	}
	return toResult(v.(entry))
}

func toResult(e entry) Result {
	return Result{
		Data:      e.candles,
		HasData:   len(e.candles) > 0,
		FetchedAt: e.fetchedAt,
	}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
