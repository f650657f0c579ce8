package database

import (
	"slices"
	"testing"
	"testing/fstest"
)

func TestPendingMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"002_ohlc.up.sql":     {Data: []byte("CREATE TABLE ohlc_candles ();")},
		"001_market.up.sql":   {Data: []byte("CREATE TABLE digital_currencies ();")},
		"001_market.down.sql": {Data: []byte("DROP TABLE digital_currencies;")},
		"README.md":           {Data: []byte("notes")},
		"003_items.up.sql":    {Data: []byte("CREATE TABLE managed_items ();")},
	}

	got, err := PendingMigrations(fsys, map[string]bool{"002_ohlc.up.sql": true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"001_market.up.sql", "003_items.up.sql"}
	if !slices.Equal(got, want) {
		t.Errorf("PendingMigrations() = %v, want %v", got, want)
	}
}

func TestPendingMigrationsAllApplied(t *testing.T) {
	fsys := fstest.MapFS{
		"001_market.up.sql": {Data: []byte("SELECT 1;")},
	}

	got, err := PendingMigrations(fsys, map[string]bool{"001_market.up.sql": true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("PendingMigrations() = %v, want none", got)
	}
}
