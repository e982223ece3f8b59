package repository

import (
	"context"
	"time"

	"hospital-inventory/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StockMovementRepository interface {
	Create(ctx context.Context, movement *model.StockMovement) error
	ListByItem(ctx context.Context, itemID uuid.UUID, page, limit int) ([]model.StockMovement, int64, error)
	ListByReference(ctx context.Context, referenceType string, referenceID uuid.UUID) ([]model.StockMovement, error)
	TopItems(ctx context.Context, referenceType string, start, end time.Time, limit int) ([]model.ItemRanking, error)
}

type stockMovementRepository struct {
	db *gorm.DB
}

func NewStockMovementRepository(db *gorm.DB) StockMovementRepository {
	return &stockMovementRepository{db: db}
}

func (r *stockMovementRepository) Create(ctx context.Context, movement *model.StockMovement) error {
	return GetDB(ctx, r.db).Create(movement).Error
}

func (r *stockMovementRepository) ListByItem(ctx context.Context, itemID uuid.UUID, page, limit int) ([]model.StockMovement, int64, error) {
	var movements []model.StockMovement
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.StockMovement{}).Where("item_id = ?", itemID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Where("item_id = ?", itemID).Order("created_at desc").
		Offset(offset).Limit(limit).Find(&movements).Error; err != nil {
		return nil, 0, err
	}

	return movements, total, nil
}

func (r *stockMovementRepository) ListByReference(ctx context.Context, referenceType string, referenceID uuid.UUID) ([]model.StockMovement, error) {
	var movements []model.StockMovement
	if err := GetDB(ctx, r.db).
		Where("reference_type = ? AND reference_id = ?", referenceType, referenceID).
		Order("created_at asc").Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

// TopItems ranks items by net units moved by documents of referenceType in
// [start, end]. Reversals (voucher edits and deletions) cancel out.
func (r *stockMovementRepository) TopItems(ctx context.Context, referenceType string, start, end time.Time, limit int) ([]model.ItemRanking, error) {
	var rankings []model.ItemRanking
	err := GetDB(ctx, r.db).Table("stock_movements").
		Select("items.id AS item_id, items.name AS item_name, items.code AS item_code, "+
			"ABS(SUM(stock_movements.quantity_changed)) AS total_quantity").
		Joins("JOIN items ON items.id = stock_movements.item_id").
		Where("stock_movements.reference_type = ? AND stock_movements.created_at >= ? AND stock_movements.created_at <= ?",
			referenceType, start, end).
		Group("items.id, items.name, items.code").
		Having("SUM(stock_movements.quantity_changed) <> 0").
		Order("total_quantity DESC").
		Limit(limit).
		Scan(&rankings).Error
	if err != nil {
		return nil, err
	}
	return rankings, nil
}
