package market

import (
	"strings"
	"testing"
)

func TestUpsertKeepsStoredActiveFlag(t *testing.T) {
	_, updateSet, ok := strings.Cut(upsertDigitalCurrencySQL, "DO UPDATE SET")
	if !ok {
		t.Fatal("upsert has no conflict update clause")
	}
	if strings.Contains(updateSet, "is_active") {
		t.Errorf("conflict update touches is_active:\n%s", updateSet)
	}
	if !strings.Contains(upsertDigitalCurrencySQL, "is_active)") {
		t.Error("insert column list should still set is_active for new symbols")
	}
	for _, col := range []string{"price_in_toman", "last_updated"} {
		if !strings.Contains(updateSet, col+" = EXCLUDED."+col) {
			t.Errorf("conflict update does not refresh %s", col)
		}
	}
}
