package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/mtlprog/nerkh/internal/market"
)

// Ingester pulls the pricing feed into storage.
type Ingester interface {
	Ingest(ctx context.Context) (market.IngestResult, error)
}

// IngestWorker periodically ingests the pricing feed.
type IngestWorker struct {
	ingester Ingester
	interval time.Duration
}

// NewIngestWorker creates a new IngestWorker.
func NewIngestWorker(ingester Ingester, interval time.Duration) *IngestWorker {
	return &IngestWorker{
		ingester: ingester,
		interval: interval,
	}
}

// Run starts the ingest loop. It blocks until the context is cancelled.
func (w *IngestWorker) Run(ctx context.Context) {
	slog.Info("IngestWorker: starting", "interval", w.interval)

	// Ingest immediately on startup
	w.ingest(ctx, "initial ingest")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("IngestWorker: shutting down")
			return
		case <-ticker.C:
			w.ingest(ctx, "ingest")
		}
	}
}

func (w *IngestWorker) ingest(ctx context.Context, label string) {
	result, err := w.ingester.Ingest(ctx)
	if err != nil {
		slog.Error("IngestWorker: "+label+" failed", "error", err)
		return
	}
	slog.Info("IngestWorker: "+label+" completed", "prices", result.Prices, "digitalCurrencies", result.DigitalCurrencies)
}
