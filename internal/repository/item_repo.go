package repository

import (
	"context"
	"strings"

	"hospital-inventory/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ItemFilter narrows item listings.
type ItemFilter struct {
	Search     string
	Category   string
	SupplierID *uuid.UUID
	LowStock   bool
	Page       int
	Limit      int
}

type ItemRepository interface {
	Create(ctx context.Context, item *model.Item) error
	Update(ctx context.Context, item *model.Item) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Item, error)
	FindByCode(ctx context.Context, code string) (*model.Item, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Item, error)
	List(ctx context.Context, filter ItemFilter) ([]model.Item, int64, error)
	UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int) error
	Totals(ctx context.Context) (count int64, units int64, lowStock int64, err error)
}

type itemRepository struct {
	db *gorm.DB
}

func NewItemRepository(db *gorm.DB) ItemRepository {
	return &itemRepository{db: db}
}

func (r *itemRepository) Create(ctx context.Context, item *model.Item) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Create(item).Error
}

func (r *itemRepository) Update(ctx context.Context, item *model.Item) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Save(item).Error
}

func (r *itemRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Item{}).Error
}

func (r *itemRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Item, error) {
	var item model.Item
	if err := GetDB(ctx, r.db).Preload("Supplier").First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *itemRepository) FindByCode(ctx context.Context, code string) (*model.Item, error) {
	var item model.Item
	if err := GetDB(ctx, r.db).Where("code = ?", code).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FindByIDForUpdate locks the item row until the surrounding transaction ends.
func (r *itemRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Item, error) {
	var item model.Item
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *itemRepository) List(ctx context.Context, filter ItemFilter) ([]model.Item, int64, error) {
	var items []model.Item
	var total int64

	query := r.filtered(GetDB(ctx, r.db).Model(&model.Item{}), filter)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := r.filtered(GetDB(ctx, r.db).Model(&model.Item{}), filter).
		Order("name asc").Offset(offset).Limit(filter.Limit).Find(&items).Error; err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func (r *itemRepository) filtered(db *gorm.DB, filter ItemFilter) *gorm.DB {
	if filter.Search != "" {
		pattern := likePattern(strings.ToLower(filter.Search))
		db = db.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ?", pattern, pattern)
	}
	if filter.Category != "" {
		db = db.Where("category = ?", filter.Category)
	}
	if filter.SupplierID != nil {
		db = db.Where("supplier_id = ?", *filter.SupplierID)
	}
	if filter.LowStock {
		db = db.Where("quantity <= reorder_level")
	}
	return db
}

func (r *itemRepository) UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int) error {
	return GetDB(ctx, r.db).Model(&model.Item{}).Where("id = ?", id).Update("quantity", quantity).Error
}

func (r *itemRepository) Totals(ctx context.Context) (int64, int64, int64, error) {
	var result struct {
		Count    int64
		Units    int64
		LowStock int64
	}
	err := GetDB(ctx, r.db).Model(&model.Item{}).
		Select("COUNT(*) AS count, COALESCE(SUM(quantity), 0) AS units, " +
			"COALESCE(SUM(CASE WHEN quantity <= reorder_level THEN 1 ELSE 0 END), 0) AS low_stock").
		Scan(&result).Error
	if err != nil {
		return 0, 0, 0, err
	}
	return result.Count, result.Units, result.LowStock, nil
}
