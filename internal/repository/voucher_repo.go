package repository

import (
	"context"

	"hospital-inventory/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VoucherFilter struct {
	Status        string
	RequisitionID *uuid.UUID
	Page          int
	Limit         int
}

type VoucherRepository interface {
	Create(ctx context.Context, voucher *model.IssuingVoucher) error
	CreateItem(ctx context.Context, item *model.IssuingItem) error
	Update(ctx context.Context, voucher *model.IssuingVoucher) error
	UpdateItem(ctx context.Context, item *model.IssuingItem) error
	DeleteItems(ctx context.Context, voucherID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.IssuingVoucher, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.IssuingVoucher, error)
	FindByRequisitionID(ctx context.Context, requisitionID uuid.UUID) (*model.IssuingVoucher, error)
	List(ctx context.Context, filter VoucherFilter) ([]model.IssuingVoucher, int64, error)
	CountByStatus(ctx context.Context) ([]model.StatusCount, error)
}

type voucherRepository struct {
	db *gorm.DB
}

func NewVoucherRepository(db *gorm.DB) VoucherRepository {
	return &voucherRepository{db: db}
}

func (r *voucherRepository) Create(ctx context.Context, voucher *model.IssuingVoucher) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Create(voucher).Error
}

func (r *voucherRepository) CreateItem(ctx context.Context, item *model.IssuingItem) error {
	return GetDB(ctx, r.db).Create(item).Error
}

func (r *voucherRepository) Update(ctx context.Context, voucher *model.IssuingVoucher) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Save(voucher).Error
}

func (r *voucherRepository) UpdateItem(ctx context.Context, item *model.IssuingItem) error {
	return GetDB(ctx, r.db).Model(&model.IssuingItem{}).Where("id = ?", item.ID).
		Updates(map[string]interface{}{
			"issued_qty": item.IssuedQty,
			"balance":    item.Balance,
		}).Error
}

func (r *voucherRepository) DeleteItems(ctx context.Context, voucherID uuid.UUID) error {
	return GetDB(ctx, r.db).Where("issuing_voucher_id = ?", voucherID).Delete(&model.IssuingItem{}).Error
}

func (r *voucherRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.IssuingVoucher{}).Error
}

func (r *voucherRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.IssuingVoucher, error) {
	var voucher model.IssuingVoucher
	if err := GetDB(ctx, r.db).Preload("Items", orderByPosition).Preload("Requisition").
		First(&voucher, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &voucher, nil
}

func (r *voucherRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.IssuingVoucher, error) {
	var voucher model.IssuingVoucher
	db := GetDB(ctx, r.db)
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&voucher).Error; err != nil {
		return nil, err
	}
	if err := db.Where("issuing_voucher_id = ?", id).Order("position asc").Find(&voucher.Items).Error; err != nil {
		return nil, err
	}
	return &voucher, nil
}

func (r *voucherRepository) FindByRequisitionID(ctx context.Context, requisitionID uuid.UUID) (*model.IssuingVoucher, error) {
	var voucher model.IssuingVoucher
	if err := GetDB(ctx, r.db).Preload("Items", orderByPosition).
		First(&voucher, "requisition_id = ?", requisitionID).Error; err != nil {
		return nil, err
	}
	return &voucher, nil
}

func (r *voucherRepository) List(ctx context.Context, filter VoucherFilter) ([]model.IssuingVoucher, int64, error) {
	var vouchers []model.IssuingVoucher
	var total int64

	if err := r.filtered(GetDB(ctx, r.db).Model(&model.IssuingVoucher{}), filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := r.filtered(GetDB(ctx, r.db).Model(&model.IssuingVoucher{}), filter).
		Preload("Items", orderByPosition).Preload("Requisition").
		Order("issue_date desc, created_at desc").
		Offset(offset).Limit(filter.Limit).Find(&vouchers).Error; err != nil {
		return nil, 0, err
	}

	return vouchers, total, nil
}

func (r *voucherRepository) filtered(db *gorm.DB, filter VoucherFilter) *gorm.DB {
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.RequisitionID != nil {
		db = db.Where("requisition_id = ?", *filter.RequisitionID)
	}
	return db
}

func (r *voucherRepository) CountByStatus(ctx context.Context) ([]model.StatusCount, error) {
	return countByStatus(GetDB(ctx, r.db), &model.IssuingVoucher{})
}
