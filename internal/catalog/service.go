package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"github.com/mtlprog/nerkh/internal/domain"
)

// Service manages the admin-curated item catalog.
type Service struct {
	repo Repository
}

// NewService creates a new catalog Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create validates input and stores a new managed item.
// Validation failures are returned as *ValidationError; a taken code as ErrDuplicateCode.
func (s *Service) Create(ctx context.Context, input map[string]any) (domain.ManagedItem, error) {
	item, err := ValidateCreate(input)
	if err != nil {
		return domain.ManagedItem{}, err
	}

	created, err := s.repo.Create(ctx, item)
	if err != nil {
		return domain.ManagedItem{}, err
	}
	slog.Info("managed item created", "code", created.Code, "category", created.Category, "source", created.Source)
	return created, nil
}

// Update validates a partial payload and applies it to the item with the given code.
func (s *Service) Update(ctx context.Context, code string, input map[string]any) (domain.ManagedItem, error) {
	patch, err := ValidateUpdate(input)
	if err != nil {
		return domain.ManagedItem{}, err
	}

	current, err := s.repo.Get(ctx, code)
	if err != nil {
		return domain.ManagedItem{}, err
	}

	updated, err := s.repo.Update(ctx, patch.Apply(current))
	if err != nil {
		return domain.ManagedItem{}, err
	}
	slog.Info("managed item updated", "code", code)
	return updated, nil
}

// Get returns the managed item with the given code.
func (s *Service) Get(ctx context.Context, code string) (domain.ManagedItem, error) {
	return s.repo.Get(ctx, code)
}

// List returns managed items sorted by display order. Inactive items are only
// included when includeInactive is set.
func (s *Service) List(ctx context.Context, includeInactive bool) ([]domain.ManagedItem, error) {
	items, err := s.repo.List(ctx, includeInactive)
	if err != nil {
		return nil, err
	}
	if items == nil {
		return []domain.ManagedItem{}, nil
	}
	return items, nil
}

// Delete removes the managed item with the given code.
func (s *Service) Delete(ctx context.Context, code string) error {
	if err := s.repo.Delete(ctx, code); err != nil {
		return err
	}
	slog.Info("managed item deleted", "code", code)
	return nil
}

// ManualItems returns active items whose price is seeded by an admin rather than the feed.
func (s *Service) ManualItems(ctx context.Context) ([]domain.ManagedItem, error) {
	items, err := s.repo.List(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("listing items for manual prices: %w", err)
	}
	return lo.Filter(items, func(item domain.ManagedItem, _ int) bool {
		_, ok := item.EffectivePrice()
		return ok
	}), nil
}
