package catalog

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/nerkh/internal/domain"
)

func validInput() map[string]any {
	return map[string]any{
		"code":     "usd",
		"name":     "US Dollar",
		"category": "currency",
	}
}

func with(overrides map[string]any) map[string]any {
	in := validInput()
	for k, v := range overrides {
		in[k] = v
	}
	return in
}

func TestValidateCreateDefaults(t *testing.T) {
	item, err := ValidateCreate(validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.Code != "usd" {
		t.Errorf("Code = %q, want usd", item.Code)
	}
	if item.OHLCCode != "USD" {
		t.Errorf("OHLCCode = %q, want USD (uppercase of code)", item.OHLCCode)
	}
	if !item.IsActive {
		t.Error("IsActive should default to true")
	}
	if item.Source != domain.SourceAPI {
		t.Errorf("Source = %q, want api", item.Source)
	}
	if item.DisplayOrder != 0 {
		t.Errorf("DisplayOrder = %d, want 0", item.DisplayOrder)
	}
	if item.Variant != nil || item.ParentCode != nil || item.OverridePrice != nil {
		t.Error("optional fields should stay nil when absent")
	}
}

func TestValidateCreateFullPayload(t *testing.T) {
	in := map[string]any{
		"code":          "usd_sell",
		"ohlcCode":      "USD_SELL",
		"parentCode":    "usd",
		"name":          "US Dollar (sell)",
		"nameFa":        "دلار آمریکا",
		"nameAr":        "دولار أمريكي",
		"variant":       "sell",
		"category":      "currency",
		"icon":          "flag-us",
		"displayOrder":  float64(10),
		"isActive":      false,
		"source":        "manual",
		"hasApiData":    true,
		"overridePrice": "515000.5",
	}

	item, err := ValidateCreate(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.OHLCCode != "USD_SELL" {
		t.Errorf("OHLCCode = %q, want USD_SELL", item.OHLCCode)
	}
	if item.ParentCode == nil || *item.ParentCode != "usd" {
		t.Errorf("ParentCode = %v, want usd", item.ParentCode)
	}
	if item.Variant == nil || *item.Variant != domain.VariantSell {
		t.Errorf("Variant = %v, want sell", item.Variant)
	}
	if item.DisplayOrder != 10 {
		t.Errorf("DisplayOrder = %d, want 10", item.DisplayOrder)
	}
	if item.IsActive {
		t.Error("IsActive = true, want false")
	}
	if !item.HasAPIData {
		t.Error("HasAPIData = false, want true")
	}
	if item.OverridePrice == nil || !item.OverridePrice.Equal(decimal.RequireFromString("515000.5")) {
		t.Errorf("OverridePrice = %v, want 515000.5", item.OverridePrice)
	}
	price, ok := item.EffectivePrice()
	if !ok || !price.Equal(decimal.RequireFromString("515000.5")) {
		t.Errorf("EffectivePrice() = %s, %v", price, ok)
	}
}

func TestValidateCreateSingleViolation(t *testing.T) {
	tests := []struct {
		name       string
		input      map[string]any
		field      string
		constraint string
	}{
		{"uppercase code", with(map[string]any{"code": "AB"}), "code", "pattern"},
		{"code too short", with(map[string]any{"code": "a"}), "code", "length"},
		{"code too long", with(map[string]any{"code": strings.Repeat("a", 51)}), "code", "length"},
		{"code with dash", with(map[string]any{"code": "us-d"}), "code", "pattern"},
		{"code not string", with(map[string]any{"code": float64(12)}), "code", "type"},
		{"missing code", map[string]any{"name": "US Dollar", "category": "currency"}, "code", "required"},
		{"missing name", map[string]any{"code": "usd", "category": "currency"}, "name", "required"},
		{"missing category", map[string]any{"code": "usd", "name": "US Dollar"}, "category", "required"},
		{"null category", with(map[string]any{"category": nil}), "category", "required"},
		{"short name", with(map[string]any{"name": "U"}), "name", "length"},
		{"long farsi name", with(map[string]any{"nameFa": strings.Repeat("د", 101)}), "nameFa", "length"},
		{"lowercase ohlc code", with(map[string]any{"ohlcCode": "usd"}), "ohlcCode", "pattern"},
		{"bad parent code", with(map[string]any{"parentCode": "USD"}), "parentCode", "pattern"},
		{"unknown variant", with(map[string]any{"variant": "hold"}), "variant", "enum"},
		{"unknown category", with(map[string]any{"category": "stock"}), "category", "enum"},
		{"unknown source", with(map[string]any{"source": "scraper"}), "source", "enum"},
		{"long icon", with(map[string]any{"icon": strings.Repeat("i", 51)}), "icon", "length"},
		{"display order too high", with(map[string]any{"displayOrder": float64(10000)}), "displayOrder", "range"},
		{"negative display order", with(map[string]any{"displayOrder": float64(-1)}), "displayOrder", "range"},
		{"fractional display order", with(map[string]any{"displayOrder": 1.5}), "displayOrder", "type"},
		{"display order as string", with(map[string]any{"displayOrder": "3"}), "displayOrder", "type"},
		{"isActive not boolean", with(map[string]any{"isActive": "yes"}), "isActive", "type"},
		{"hasApiData not boolean", with(map[string]any{"hasApiData": float64(1)}), "hasApiData", "type"},
		{"negative override price", with(map[string]any{"overridePrice": float64(-1)}), "overridePrice", "min"},
		{"non numeric override price", with(map[string]any{"overridePrice": "abc"}), "overridePrice", "type"},
		{"unknown field", with(map[string]any{"price": float64(1)}), "price", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, err := ValidateCreate(tt.input)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want *ValidationError", err)
			}
			if item.Code != "" {
				t.Error("item must be zero on failure")
			}
			if fields := verr.Fields(); len(fields) != 1 || fields[0] != tt.field {
				t.Fatalf("fields = %v, want [%s]", fields, tt.field)
			}
			if got := verr.Violations[0].Constraint; got != tt.constraint {
				t.Errorf("constraint = %q, want %q", got, tt.constraint)
			}
		})
	}
}

func TestValidateCreateCollectsAllViolations(t *testing.T) {
	_, err := ValidateCreate(map[string]any{
		"code":         "AB",
		"name":         "x",
		"displayOrder": float64(99999),
	})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	for _, field := range []string{"code", "name", "category", "displayOrder"} {
		if !verr.HasField(field) {
			t.Errorf("missing violation for %s in %v", field, verr.Fields())
		}
	}
	if !strings.Contains(verr.Error(), "code:") {
		t.Errorf("Error() = %q, want field names", verr.Error())
	}
}

func TestValidateCreateTypeFailureSkipsFieldRules(t *testing.T) {
	_, err := ValidateCreate(with(map[string]any{"code": true}))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if len(verr.Violations) != 1 {
		t.Errorf("violations = %v, want a single type violation", verr.Violations)
	}
}

func TestValidateUpdate(t *testing.T) {
	patch, err := ValidateUpdate(map[string]any{"name": "Dollar", "displayOrder": float64(5)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	item := domain.ManagedItem{Code: "usd", OHLCCode: "USD", Name: "US Dollar", Category: domain.CategoryCurrency, IsActive: true}
	updated := patch.Apply(item)
	if updated.Name != "Dollar" {
		t.Errorf("Name = %q, want Dollar", updated.Name)
	}
	if updated.DisplayOrder != 5 {
		t.Errorf("DisplayOrder = %d, want 5", updated.DisplayOrder)
	}
	if updated.Code != "usd" || updated.Category != domain.CategoryCurrency || !updated.IsActive {
		t.Error("fields absent from the patch must be unchanged")
	}
}

func TestValidateUpdateEmpty(t *testing.T) {
	patch, err := ValidateUpdate(map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	item := domain.ManagedItem{Code: "usd", Name: "US Dollar"}
	if got := patch.Apply(item); got.Name != item.Name {
		t.Error("empty patch should not change the item")
	}
}

func TestValidateUpdateRejectsCodeChange(t *testing.T) {
	_, err := ValidateUpdate(map[string]any{"code": "eur", "name": "E"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if !verr.HasField("code") || !verr.HasField("name") {
		t.Errorf("fields = %v, want code and name", verr.Fields())
	}
	if verr.Violations[0].Constraint != "immutable" {
		t.Errorf("constraint = %q, want immutable", verr.Violations[0].Constraint)
	}
}

func TestValidateUpdateChecksTypesAndUnknownFields(t *testing.T) {
	tests := []struct {
		name       string
		input      map[string]any
		field      string
		constraint string
	}{
		{"display order as string", map[string]any{"displayOrder": "3"}, "displayOrder", "type"},
		{"name not string", map[string]any{"name": float64(7)}, "name", "type"},
		{"unknown category", map[string]any{"category": "stock"}, "category", "enum"},
		{"negative override price", map[string]any{"overridePrice": float64(-5)}, "overridePrice", "min"},
		{"unknown field", map[string]any{"price": float64(1)}, "price", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateUpdate(tt.input)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want *ValidationError", err)
			}
			if fields := verr.Fields(); len(fields) != 1 || fields[0] != tt.field {
				t.Fatalf("fields = %v, want [%s]", fields, tt.field)
			}
			if got := verr.Violations[0].Constraint; got != tt.constraint {
				t.Errorf("constraint = %q, want %q", got, tt.constraint)
			}
		})
	}
}

func TestValidateUpdateIgnoresEmptyStrings(t *testing.T) {
	patch, err := ValidateUpdate(map[string]any{"name": ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	item := domain.ManagedItem{Code: "usd", Name: "US Dollar"}
	if got := patch.Apply(item); got.Name != "US Dollar" {
		t.Errorf("Name = %q, want US Dollar", got.Name)
	}
}

func TestValidateCreateEmptyNameIsRequired(t *testing.T) {
	_, err := ValidateCreate(with(map[string]any{"name": ""}))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if !verr.HasField("name") || verr.Violations[0].Constraint != "required" {
		t.Errorf("violations = %v, want name required", verr.Violations)
	}
}
