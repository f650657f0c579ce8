// Package maintenance drops the legacy per-timeframe OHLC collections left behind by
// the old candle storage.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

// LegacyOHLCCollections are the collections removed by Cleanup, in drop order.
var LegacyOHLCCollections = []string{
	"ohlcsnapshots",
	"ohlc1mdata",
	"ohlc5mdata",
	"ohlc15mdata",
	"ohlc30mdata",
	"ohlc1hdata",
	"ohlc4hdata",
	"ohlc1ddata",
}

// ErrDropFailed reports that at least one collection could not be dropped.
var ErrDropFailed = errors.New("dropping legacy collections failed")

// Store is a database holding named collections or tables.
type Store interface {
	CollectionNames(ctx context.Context) ([]string, error)
	Drop(ctx context.Context, name string) error
}

// Report summarizes one cleanup run.
type Report struct {
	Dropped  []string
	NotFound []string
	Failed   map[string]error
	DryRun   bool
}

func (r Report) DroppedCount() int  { return len(r.Dropped) }
func (r Report) NotFoundCount() int { return len(r.NotFound) }
func (r Report) FailedCount() int   { return len(r.Failed) }

// Cleanup drops every legacy OHLC collection present in store. A listing failure aborts
// the run. A failed drop is logged and the remaining collections are still processed;
// the returned error then wraps ErrDropFailed. With dryRun set nothing is dropped and
// present collections are reported as Dropped.
func Cleanup(ctx context.Context, store Store, dryRun bool) (Report, error) {
	report := Report{Failed: make(map[string]error), DryRun: dryRun}

	existing, err := store.CollectionNames(ctx)
	if err != nil {
		return report, fmt.Errorf("listing collections: %w", err)
	}

	for _, name := range LegacyOHLCCollections {
		if !slices.Contains(existing, name) {
			slog.Info("collection not found", "collection", name)
			report.NotFound = append(report.NotFound, name)
			continue
		}

		if dryRun {
			slog.Info("would drop collection", "collection", name)
			report.Dropped = append(report.Dropped, name)
			continue
		}

		if err := store.Drop(ctx, name); err != nil {
			slog.Error("dropping collection failed", "collection", name, "error", err)
			report.Failed[name] = err
			continue
		}
		slog.Info("collection dropped", "collection", name)
		report.Dropped = append(report.Dropped, name)
	}

	if len(report.Failed) > 0 {
		return report, fmt.Errorf("%w: %d of %d", ErrDropFailed, len(report.Failed), len(LegacyOHLCCollections))
	}
	return report, nil
}
