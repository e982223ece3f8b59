package repository

import (
	"context"

	"hospital-inventory/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PurchaseOrderFilter struct {
	Status     string
	SupplierID *uuid.UUID
	Page       int
	Limit      int
}

type PurchaseOrderRepository interface {
	Create(ctx context.Context, po *model.PurchaseOrder) error
	CreateItem(ctx context.Context, item *model.PurchaseOrderItem) error
	Update(ctx context.Context, po *model.PurchaseOrder) error
	UpdateItem(ctx context.Context, item *model.PurchaseOrderItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.PurchaseOrder, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.PurchaseOrder, error)
	List(ctx context.Context, filter PurchaseOrderFilter) ([]model.PurchaseOrder, int64, error)
	CountByStatus(ctx context.Context) ([]model.StatusCount, error)
}

type purchaseOrderRepository struct {
	db *gorm.DB
}

func NewPurchaseOrderRepository(db *gorm.DB) PurchaseOrderRepository {
	return &purchaseOrderRepository{db: db}
}

func (r *purchaseOrderRepository) Create(ctx context.Context, po *model.PurchaseOrder) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Create(po).Error
}

func (r *purchaseOrderRepository) CreateItem(ctx context.Context, item *model.PurchaseOrderItem) error {
	return GetDB(ctx, r.db).Create(item).Error
}

func (r *purchaseOrderRepository) Update(ctx context.Context, po *model.PurchaseOrder) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Save(po).Error
}

func (r *purchaseOrderRepository) UpdateItem(ctx context.Context, item *model.PurchaseOrderItem) error {
	return GetDB(ctx, r.db).Model(&model.PurchaseOrderItem{}).Where("id = ?", item.ID).
		Update("received_qty", item.ReceivedQty).Error
}

func (r *purchaseOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.PurchaseOrder, error) {
	var po model.PurchaseOrder
	if err := GetDB(ctx, r.db).Preload("Items", orderByPosition).Preload("Supplier").
		First(&po, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &po, nil
}

func (r *purchaseOrderRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.PurchaseOrder, error) {
	var po model.PurchaseOrder
	db := GetDB(ctx, r.db)
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&po).Error; err != nil {
		return nil, err
	}
	if err := db.Where("purchase_order_id = ?", id).Order("position asc").Find(&po.Items).Error; err != nil {
		return nil, err
	}
	return &po, nil
}

func (r *purchaseOrderRepository) List(ctx context.Context, filter PurchaseOrderFilter) ([]model.PurchaseOrder, int64, error) {
	var orders []model.PurchaseOrder
	var total int64

	if err := r.filtered(GetDB(ctx, r.db).Model(&model.PurchaseOrder{}), filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := r.filtered(GetDB(ctx, r.db).Model(&model.PurchaseOrder{}), filter).
		Preload("Items", orderByPosition).Preload("Supplier").
		Order("order_date desc, created_at desc").
		Offset(offset).Limit(filter.Limit).Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

func (r *purchaseOrderRepository) filtered(db *gorm.DB, filter PurchaseOrderFilter) *gorm.DB {
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.SupplierID != nil {
		db = db.Where("supplier_id = ?", *filter.SupplierID)
	}
	return db
}

func (r *purchaseOrderRepository) CountByStatus(ctx context.Context) ([]model.StatusCount, error) {
	return countByStatus(GetDB(ctx, r.db), &model.PurchaseOrder{})
}
