package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Issuing voucher statuses
const (
	VoucherPending           = "Pending"
	VoucherPartiallyProvided = "Partially Provided"
	VoucherFullyProvided     = "Fully Provided"
)

// IssuingVoucher fulfils exactly one requisition against current stock.
type IssuingVoucher struct {
	ID            uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	VoucherCode   string        `gorm:"type:varchar(100);uniqueIndex;not null" json:"voucherId"`
	RequisitionID uuid.UUID     `gorm:"type:uuid;uniqueIndex;not null" json:"requisitionId"`
	Requisition   *Requisition  `gorm:"foreignKey:RequisitionID" json:"requisition,omitempty"`
	IssueDate     time.Time     `gorm:"not null" json:"issueDate"`
	Status        string        `gorm:"type:varchar(30);not null;index" json:"status"`
	Notes         string        `gorm:"type:text" json:"notes"`
	CreatedByID   *uuid.UUID    `gorm:"type:uuid" json:"createdById"`
	Items         []IssuingItem `gorm:"foreignKey:IssuingVoucherID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

func (v *IssuingVoucher) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	return nil
}

// IssuingItem records how much of a requested line was actually handed out.
// Balance is always RequestedQty - IssuedQty and never negative.
type IssuingItem struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	IssuingVoucherID uuid.UUID `gorm:"type:uuid;not null;index" json:"issuingVoucherId"`
	ItemID           uuid.UUID `gorm:"type:uuid;not null;index" json:"itemId"`
	ItemName         string    `gorm:"type:varchar(255);not null" json:"itemName"`
	RequestedQty     int       `gorm:"type:int;not null" json:"requestedQty"`
	IssuedQty        int       `gorm:"type:int;not null" json:"issuedQty"`
	Balance          int       `gorm:"type:int;not null;check:balance >= 0" json:"balance"`
	Position         int       `gorm:"type:int;not null;default:0" json:"-"`
}

func (i *IssuingItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// SetIssued stores the issued quantity and recomputes the balance.
func (i *IssuingItem) SetIssued(qty int) {
	i.IssuedQty = qty
	i.Balance = i.RequestedQty - qty
}

// DeriveVoucherStatus computes a voucher's status from its lines:
// Fully Provided when every line has a zero balance, Partially Provided when
// at least one line issued something, Pending otherwise (including no lines).
func DeriveVoucherStatus(lines []IssuingItem) string {
	if len(lines) == 0 {
		return VoucherPending
	}
	full := true
	anyIssued := false
	for _, l := range lines {
		if l.Balance != 0 {
			full = false
		}
		if l.IssuedQty > 0 {
			anyIssued = true
		}
	}
	switch {
	case full:
		return VoucherFullyProvided
	case anyIssued:
		return VoucherPartiallyProvided
	default:
		return VoucherPending
	}
}
