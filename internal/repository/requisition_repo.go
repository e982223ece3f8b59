package repository

import (
	"context"
	"strings"

	"hospital-inventory/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RequisitionFilter narrows requisition listings. CreatedByID scopes the
// list to one requester.
type RequisitionFilter struct {
	Status      string
	Department  string
	CreatedByID *uuid.UUID
	Page        int
	Limit       int
}

type RequisitionRepository interface {
	Create(ctx context.Context, req *model.Requisition) error
	CreateItems(ctx context.Context, items []model.RequisitionItem) error
	Update(ctx context.Context, req *model.Requisition) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	DeleteItems(ctx context.Context, requisitionID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Requisition, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Requisition, error)
	List(ctx context.Context, filter RequisitionFilter) ([]model.Requisition, int64, error)
	CountByStatus(ctx context.Context) ([]model.StatusCount, error)
}

type requisitionRepository struct {
	db *gorm.DB
}

func NewRequisitionRepository(db *gorm.DB) RequisitionRepository {
	return &requisitionRepository{db: db}
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position asc")
}

func (r *requisitionRepository) Create(ctx context.Context, req *model.Requisition) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Create(req).Error
}

func (r *requisitionRepository) CreateItems(ctx context.Context, items []model.RequisitionItem) error {
	if len(items) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Create(&items).Error
}

func (r *requisitionRepository) Update(ctx context.Context, req *model.Requisition) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Save(req).Error
}

func (r *requisitionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return GetDB(ctx, r.db).Model(&model.Requisition{}).Where("id = ?", id).Update("status", status).Error
}

func (r *requisitionRepository) DeleteItems(ctx context.Context, requisitionID uuid.UUID) error {
	return GetDB(ctx, r.db).Where("requisition_id = ?", requisitionID).Delete(&model.RequisitionItem{}).Error
}

func (r *requisitionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Requisition{}).Error
}

func (r *requisitionRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Requisition, error) {
	var req model.Requisition
	if err := GetDB(ctx, r.db).Preload("Items", orderByPosition).
		First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// FindByIDForUpdate locks the requisition row. Lines are loaded separately
// because postgres refuses FOR UPDATE on the preload query's outer joins.
func (r *requisitionRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Requisition, error) {
	var req model.Requisition
	db := GetDB(ctx, r.db)
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&req).Error; err != nil {
		return nil, err
	}
	if err := db.Where("requisition_id = ?", id).Order("position asc").Find(&req.Items).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requisitionRepository) List(ctx context.Context, filter RequisitionFilter) ([]model.Requisition, int64, error) {
	var reqs []model.Requisition
	var total int64

	if err := r.filtered(GetDB(ctx, r.db).Model(&model.Requisition{}), filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := r.filtered(GetDB(ctx, r.db).Model(&model.Requisition{}), filter).
		Preload("Items", orderByPosition).
		Order("requisition_date desc, created_at desc").
		Offset(offset).Limit(filter.Limit).Find(&reqs).Error; err != nil {
		return nil, 0, err
	}

	return reqs, total, nil
}

func (r *requisitionRepository) filtered(db *gorm.DB, filter RequisitionFilter) *gorm.DB {
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.Department != "" {
		db = db.Where("LOWER(department_name) LIKE ?", likePattern(strings.ToLower(filter.Department)))
	}
	if filter.CreatedByID != nil {
		db = db.Where("created_by_id = ?", *filter.CreatedByID)
	}
	return db
}

func (r *requisitionRepository) CountByStatus(ctx context.Context) ([]model.StatusCount, error) {
	return countByStatus(GetDB(ctx, r.db), &model.Requisition{})
}

func countByStatus(db *gorm.DB, m interface{}) ([]model.StatusCount, error) {
	var rows []model.StatusCount
	if err := db.Model(m).Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
