package main

import (
	"context"
	"embed"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/mtlprog/nerkh/internal/api"
	"github.com/mtlprog/nerkh/internal/catalog"
	"github.com/mtlprog/nerkh/internal/config"
	"github.com/mtlprog/nerkh/internal/database"
	"github.com/mtlprog/nerkh/internal/export"
	"github.com/mtlprog/nerkh/internal/feed"
	"github.com/mtlprog/nerkh/internal/market"
	"github.com/mtlprog/nerkh/internal/ohlc"
	"github.com/mtlprog/nerkh/internal/worker"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	migrationsSub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		log.Fatalf("Failed to create migrations sub-fs: %v", err)
	}
	if err := database.RunMigrations(ctx, pool, migrationsSub); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Catalog
	catalogSvc := catalog.NewService(catalog.NewPgRepository(pool))

	// Market data
	feedClient := feed.NewClient(cfg.FeedURL, cfg.FeedAPIToken, cfg.FeedRetryMax, cfg.FeedRetryBaseDelay, cfg.FeedMaxPages)
	marketSvc := market.NewService(
		feedClient,
		market.NewPgPriceRepository(pool),
		market.NewPgDigitalCurrencyRepository(pool),
		catalogSvc,
	)

	ohlcRepo := ohlc.NewPgRepository(pool)
	marketSvc.RecordTicks(ohlcRepo)
	ohlcReader := ohlc.NewReader(ohlcRepo, cfg.OHLCCacheTTL)

	// Spreadsheet export
	var sheets export.SheetWriter
	if cfg.SheetsExportEnabled() {
		w, err := export.NewSheetsWriter(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleCredentialsJSON)
		if err != nil {
			log.Fatalf("Failed to create Google Sheets client: %v", err)
		}
		sheets = w
	} else {
		slog.Info("Google Sheets export disabled, GOOGLE_CREDENTIALS_JSON or GOOGLE_SPREADSHEET_ID not set")
	}
	exportSvc := export.NewService(marketSvc, sheets)
	if sheets != nil {
		marketSvc.AddHook(exportSvc.Export)
	}

	// Start workers
	if cfg.FeedURL != "" {
		ingestWorker := worker.NewIngestWorker(marketSvc, cfg.IngestInterval)
		go ingestWorker.Run(ctx)
	} else {
		slog.Warn("FEED_URL not set, ingest worker disabled")
	}

	srv := api.NewServer(api.ServerConfig{
		Port:           cfg.HTTPPort,
		AdminAPIKey:    cfg.AdminAPIKey,
		AdminRateLimit: cfg.AdminRateLimit,
		AdminRateBurst: cfg.AdminRateBurst,
	}, api.Services{
		Catalog: catalogSvc,
		Market:  marketSvc,
		OHLC:    ohlcReader,
		Export:  exportSvc,
	})

	go func() {
		log.Printf("HTTP server listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
}
