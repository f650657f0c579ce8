package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mtlprog/nerkh/internal/database"
	"github.com/mtlprog/nerkh/internal/maintenance"
)

const connectTimeout = 10 * time.Second

func main() {
	app := &cli.App{
		Name:  "ohlc-cleanup",
		Usage: "drop the legacy per-timeframe OHLC collections",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "mongodb:// or postgres:// connection string",
				EnvVars:  []string{"DATABASE_URL"},
				Required: true,
			},
			&cli.StringFlag{
				Name:  "mongo-database",
				Usage: "MongoDB database name (defaults to the path of the connection string)",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "report what would be dropped without dropping anything",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("cleanup failed", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, c.String("database-url"), c.String("mongo-database"))
	if err != nil {
		return err
	}
	defer closeStore()

	report, err := maintenance.Cleanup(ctx, store, c.Bool("dry-run"))
	fmt.Fprintf(c.App.Writer, "dropped: %d, not found: %d, failed: %d\n",
		report.DroppedCount(), report.NotFoundCount(), report.FailedCount())
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return nil
}

// openStore picks the store implementation from the URL scheme.
func openStore(ctx context.Context, rawURL, mongoDatabase string) (maintenance.Store, func(), error) {
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if isMongoURL(rawURL) {
		name, err := mongoDatabaseName(rawURL, mongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(rawURL))
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to mongodb: %w", err)
		}
		if err := client.Ping(connectCtx, nil); err != nil {
			client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("pinging mongodb: %w", err)
		}
		closeFn := func() {
			if err := client.Disconnect(context.Background()); err != nil {
				slog.Warn("disconnecting from mongodb", "error", err)
			}
		}
		return maintenance.NewMongoStore(client.Database(name)), closeFn, nil
	}

	pool, err := database.Connect(connectCtx, rawURL)
	if err != nil {
		return nil, nil, err
	}
	return maintenance.NewPgStore(pool), pool.Close, nil
}

func isMongoURL(rawURL string) bool {
	return strings.HasPrefix(rawURL, "mongodb://") || strings.HasPrefix(rawURL, "mongodb+srv://")
}

func mongoDatabaseName(rawURL, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing database url: %w", err)
	}
	name := strings.Trim(u.Path, "/")
	if name == "" {
		return "", fmt.Errorf("no database in connection string, pass --mongo-database")
	}
	return name, nil
}
