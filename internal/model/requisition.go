package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Requisition statuses
const (
	RequisitionPending   = "Pending"
	RequisitionForwarded = "Forwarded"
	RequisitionIssued    = "Issued"
	RequisitionCancelled = "Cancelled"
)

// Requisition is a department's request for items.
type Requisition struct {
	ID              uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	DepartmentName  string            `gorm:"type:varchar(255);not null;index" json:"departmentName"`
	Status          string            `gorm:"type:varchar(20);not null;index" json:"status"`
	RequisitionDate time.Time         `gorm:"not null" json:"requisitionDate"`
	Notes           string            `gorm:"type:text" json:"notes"`
	CreatedByID     *uuid.UUID        `gorm:"type:uuid;index" json:"createdById"`
	Items           []RequisitionItem `gorm:"foreignKey:RequisitionID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

func (r *Requisition) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// CanForward: Pending -> Forwarded only.
func (r *Requisition) CanForward() bool {
	return r.Status == RequisitionPending
}

// CanCancel: everything except an already issued requisition.
func (r *Requisition) CanCancel() bool {
	return r.Status != RequisitionIssued
}

// CanEdit: header and lines are only editable while Pending.
func (r *Requisition) CanEdit() bool {
	return r.Status == RequisitionPending
}

// CanIssue: a voucher may only be created against a Forwarded requisition.
func (r *Requisition) CanIssue() bool {
	return r.Status == RequisitionForwarded
}

// RequisitionItem is one requested line. ItemName is a snapshot taken at creation.
type RequisitionItem struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RequisitionID uuid.UUID `gorm:"type:uuid;not null;index" json:"requisitionId"`
	ItemID        uuid.UUID `gorm:"type:uuid;not null;index" json:"itemId"`
	ItemName      string    `gorm:"type:varchar(255);not null" json:"itemName"`
	RequestedQty  int       `gorm:"type:int;not null" json:"requestedQty"`
	Position      int       `gorm:"type:int;not null;default:0" json:"-"`
}

func (i *RequisitionItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
