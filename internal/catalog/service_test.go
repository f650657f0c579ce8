package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/nerkh/internal/domain"
)

type mockRepo struct {
	items     map[string]domain.ManagedItem
	createErr error
	created   int
}

func newMockRepo(items ...domain.ManagedItem) *mockRepo {
	m := &mockRepo{items: make(map[string]domain.ManagedItem)}
	for _, item := range items {
		m.items[item.Code] = item
	}
	return m
}

func (m *mockRepo) Create(_ context.Context, item domain.ManagedItem) (domain.ManagedItem, error) {
	if m.createErr != nil {
		return domain.ManagedItem{}, m.createErr
	}
	if _, ok := m.items[item.Code]; ok {
		return domain.ManagedItem{}, fmt.Errorf("creating item %s: %w", item.Code, ErrDuplicateCode)
	}
	m.created++
	m.items[item.Code] = item
	return item, nil
}

func (m *mockRepo) Update(_ context.Context, item domain.ManagedItem) (domain.ManagedItem, error) {
	if _, ok := m.items[item.Code]; !ok {
		return domain.ManagedItem{}, ErrNotFound
	}
	m.items[item.Code] = item
	return item, nil
}

func (m *mockRepo) Get(_ context.Context, code string) (domain.ManagedItem, error) {
	item, ok := m.items[code]
	if !ok {
		return domain.ManagedItem{}, ErrNotFound
	}
	return item, nil
}

func (m *mockRepo) List(_ context.Context, includeInactive bool) ([]domain.ManagedItem, error) {
	var result []domain.ManagedItem
	for _, item := range m.items {
		if item.IsActive || includeInactive {
			result = append(result, item)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].DisplayOrder != result[j].DisplayOrder {
			return result[i].DisplayOrder < result[j].DisplayOrder
		}
		return result[i].Code < result[j].Code
	})
	return result, nil
}

func (m *mockRepo) Delete(_ context.Context, code string) error {
	if _, ok := m.items[code]; !ok {
		return ErrNotFound
	}
	delete(m.items, code)
	return nil
}

func TestCreateStoresNormalizedItem(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	item, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.OHLCCode != "USD" {
		t.Errorf("OHLCCode = %q, want USD", item.OHLCCode)
	}
	if _, ok := repo.items["usd"]; !ok {
		t.Error("item was not stored")
	}
}

func TestCreateInvalidNeverReachesRepo(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), with(map[string]any{"code": "AB"}))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if repo.created != 0 {
		t.Error("invalid input must not be stored")
	}
}

func TestCreateDuplicateCode(t *testing.T) {
	repo := newMockRepo(domain.ManagedItem{Code: "usd", Name: "US Dollar", IsActive: true})
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), validInput())
	if !errors.Is(err, ErrDuplicateCode) {
		t.Errorf("error = %v, want ErrDuplicateCode", err)
	}
}

func TestUpdateAppliesPatch(t *testing.T) {
	repo := newMockRepo(domain.ManagedItem{Code: "usd", OHLCCode: "USD", Name: "US Dollar", IsActive: true, Source: domain.SourceAPI})
	svc := NewService(repo)

	updated, err := svc.Update(context.Background(), "usd", map[string]any{"source": "manual", "overridePrice": float64(510000)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Source != domain.SourceManual {
		t.Errorf("Source = %q, want manual", updated.Source)
	}
	if updated.OverridePrice == nil || !updated.OverridePrice.Equal(decimal.NewFromInt(510000)) {
		t.Errorf("OverridePrice = %v, want 510000", updated.OverridePrice)
	}
}

func TestUpdateMissingItem(t *testing.T) {
	svc := NewService(newMockRepo())
	_, err := svc.Update(context.Background(), "eur", map[string]any{"name": "Euro"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestUpdateRejectsCode(t *testing.T) {
	repo := newMockRepo(domain.ManagedItem{Code: "usd", Name: "US Dollar"})
	svc := NewService(repo)

	_, err := svc.Update(context.Background(), "usd", map[string]any{"code": "usd2"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if repo.items["usd"].Name != "US Dollar" {
		t.Error("item must be unchanged after a rejected update")
	}
}

func TestListNeverNil(t *testing.T) {
	svc := NewService(newMockRepo())
	items, err := svc.List(context.Background(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if items == nil {
		t.Error("List should return an empty slice, not nil")
	}
}

func TestManualItems(t *testing.T) {
	price := decimal.NewFromInt(72_000_000)
	repo := newMockRepo(
		domain.ManagedItem{Code: "emami", Category: domain.CategoryCoin, IsActive: true, Source: domain.SourceManual, OverridePrice: &price},
		domain.ManagedItem{Code: "usd", Category: domain.CategoryCurrency, IsActive: true, Source: domain.SourceAPI, OverridePrice: &price},
		domain.ManagedItem{Code: "old", Category: domain.CategoryCoin, IsActive: false, Source: domain.SourceManual, OverridePrice: &price},
		domain.ManagedItem{Code: "blank", Category: domain.CategoryGold, IsActive: true, Source: domain.SourceManual},
	)
	svc := NewService(repo)

	items, err := svc.ManualItems(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].Code != "emami" {
		t.Errorf("ManualItems() = %v, want only emami", items)
	}
}

func TestDelete(t *testing.T) {
	repo := newMockRepo(domain.ManagedItem{Code: "usd"})
	svc := NewService(repo)

	if err := svc.Delete(context.Background(), "usd"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Delete(context.Background(), "usd"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}
