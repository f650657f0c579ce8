package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/nerkh/internal/domain"
)

var (
	// ErrNotFound indicates that no managed item has the requested code.
	ErrNotFound = errors.New("managed item not found")
	// ErrDuplicateCode indicates that a managed item with the same code already exists.
	ErrDuplicateCode = errors.New("managed item code already exists")
)

// Repository defines persistent storage for managed items.
type Repository interface {
	Create(ctx context.Context, item domain.ManagedItem) (domain.ManagedItem, error)
	Update(ctx context.Context, item domain.ManagedItem) (domain.ManagedItem, error)
	Get(ctx context.Context, code string) (domain.ManagedItem, error)
	List(ctx context.Context, includeInactive bool) ([]domain.ManagedItem, error)
	Delete(ctx context.Context, code string) error
}

// PgRepository implements Repository with PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository creates a new PostgreSQL managed item repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const itemColumns = `code, ohlc_code, parent_code, name, name_ar, name_fa, variant, category, icon,
	display_order, is_active, source, has_api_data, override_price, created_at, updated_at`

func (r *PgRepository) Create(ctx context.Context, item domain.ManagedItem) (domain.ManagedItem, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO managed_items (code, ohlc_code, parent_code, name, name_ar, name_fa, variant, category,
		 icon, display_order, is_active, source, has_api_data, override_price)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING `+itemColumns,
		item.Code, item.OHLCCode, item.ParentCode, item.Name, item.NameAr, item.NameFa,
		variantArg(item.Variant), string(item.Category), item.Icon, item.DisplayOrder, item.IsActive,
		string(item.Source), item.HasAPIData, decimalArg(item.OverridePrice))

	created, err := scanItem(row)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ManagedItem{}, fmt.Errorf("creating item %s: %w", item.Code, ErrDuplicateCode)
		}
		return domain.ManagedItem{}, fmt.Errorf("creating item %s: %w", item.Code, err)
	}
	return created, nil
}

func (r *PgRepository) Update(ctx context.Context, item domain.ManagedItem) (domain.ManagedItem, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE managed_items SET ohlc_code = $2, parent_code = $3, name = $4, name_ar = $5, name_fa = $6,
		 variant = $7, category = $8, icon = $9, display_order = $10, is_active = $11, source = $12,
		 has_api_data = $13, override_price = $14, updated_at = NOW()
		 WHERE code = $1
		 RETURNING `+itemColumns,
		item.Code, item.OHLCCode, item.ParentCode, item.Name, item.NameAr, item.NameFa,
		variantArg(item.Variant), string(item.Category), item.Icon, item.DisplayOrder, item.IsActive,
		string(item.Source), item.HasAPIData, decimalArg(item.OverridePrice))

	updated, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ManagedItem{}, ErrNotFound
		}
		return domain.ManagedItem{}, fmt.Errorf("updating item %s: %w", item.Code, err)
	}
	return updated, nil
}

func (r *PgRepository) Get(ctx context.Context, code string) (domain.ManagedItem, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM managed_items WHERE code = $1`, code)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ManagedItem{}, ErrNotFound
		}
		return domain.ManagedItem{}, fmt.Errorf("getting item %s: %w", code, err)
	}
	return item, nil
}

func (r *PgRepository) List(ctx context.Context, includeInactive bool) ([]domain.ManagedItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+itemColumns+` FROM managed_items
		 WHERE is_active OR $1
		 ORDER BY display_order, code`, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []domain.ManagedItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items: %w", err)
	}
	return items, nil
}

func (r *PgRepository) Delete(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM managed_items WHERE code = $1`, code)
	if err != nil {
		return fmt.Errorf("deleting item %s: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanItem(row pgx.Row) (domain.ManagedItem, error) {
	var (
		item          domain.ManagedItem
		variant       *string
		category      string
		source        string
		overridePrice decimal.NullDecimal
	)
	err := row.Scan(&item.Code, &item.OHLCCode, &item.ParentCode, &item.Name, &item.NameAr, &item.NameFa,
		&variant, &category, &item.Icon, &item.DisplayOrder, &item.IsActive, &source, &item.HasAPIData,
		&overridePrice, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return domain.ManagedItem{}, err
	}
	item.Category = domain.Category(category)
	item.Source = domain.Source(source)
	if variant != nil {
		v := domain.Variant(*variant)
		item.Variant = &v
	}
	if overridePrice.Valid {
		item.OverridePrice = &overridePrice.Decimal
	}
	return item, nil
}

func variantArg(v *domain.Variant) any {
	if v == nil {
		return nil
	}
	return string(*v)
}

func decimalArg(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return *d
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
