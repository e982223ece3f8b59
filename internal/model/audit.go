package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionCreateItem     = "CREATE_ITEM"
	ActionUpdateItem     = "UPDATE_ITEM"
	ActionDeleteItem     = "DELETE_ITEM"
	ActionAdjustStock    = "ADJUST_STOCK"
	ActionCreateSupplier = "CREATE_SUPPLIER"
	ActionUpdateSupplier = "UPDATE_SUPPLIER"
	ActionDeleteSupplier = "DELETE_SUPPLIER"

	ActionCreateRequisition  = "CREATE_REQUISITION"
	ActionUpdateRequisition  = "UPDATE_REQUISITION"
	ActionForwardRequisition = "FORWARD_REQUISITION"
	ActionCancelRequisition  = "CANCEL_REQUISITION"
	ActionDeleteRequisition  = "DELETE_REQUISITION"

	ActionCreateVoucher = "CREATE_ISSUING_VOUCHER"
	ActionUpdateVoucher = "UPDATE_ISSUING_VOUCHER"
	ActionDeleteVoucher = "DELETE_ISSUING_VOUCHER"

	ActionCreatePurchaseOrder  = "CREATE_PURCHASE_ORDER"
	ActionReceivePurchaseOrder = "RECEIVE_PURCHASE_ORDER"
	ActionCancelPurchaseOrder  = "CANCEL_PURCHASE_ORDER"

	ActionCreateUser = "CREATE_USER"
	ActionUpdateUser = "UPDATE_USER"
	ActionDeleteUser = "DELETE_USER"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"userId"` // nil for seeding and other system actions
	User       *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entityId"`
	EntityName string     `gorm:"type:varchar(255)" json:"entityName,omitempty"`
	Details    string     `gorm:"type:jsonb" json:"details"` // serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"createdAt"`
}

func (a *AuditLog) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
