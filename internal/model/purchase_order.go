package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Purchase order statuses
const (
	PurchaseOrderPending   = "Pending"
	PurchaseOrderReceived  = "Received"
	PurchaseOrderCancelled = "Cancelled"
)

// PurchaseOrder is an order placed with a supplier; receiving it adds stock.
type PurchaseOrder struct {
	ID                   uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	PONumber             string              `gorm:"column:po_number;type:varchar(100);uniqueIndex;not null" json:"poNumber"`
	SupplierID           uuid.UUID           `gorm:"type:uuid;not null;index" json:"supplierId"`
	Supplier             *Supplier           `gorm:"foreignKey:SupplierID" json:"supplier,omitempty"`
	OrderDate            time.Time           `gorm:"not null" json:"orderDate"`
	ExpectedDeliveryDate *time.Time          `json:"expectedDeliveryDate"`
	ActualDeliveryDate   *time.Time          `json:"actualDeliveryDate"`
	Status               string              `gorm:"type:varchar(20);not null;index" json:"status"`
	TotalAmount          decimal.Decimal     `gorm:"type:decimal(14,2);not null" json:"totalAmount"`
	Notes                string              `gorm:"type:text" json:"notes"`
	CreatedByID          *uuid.UUID          `gorm:"type:uuid" json:"createdById"`
	Items                []PurchaseOrderItem `gorm:"foreignKey:PurchaseOrderID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt            time.Time           `json:"createdAt"`
	UpdatedAt            time.Time           `json:"updatedAt"`
}

func (p *PurchaseOrder) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// PurchaseOrderItem is one ordered line. TotalPrice = OrderedQty x UnitPrice.
type PurchaseOrderItem struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	PurchaseOrderID uuid.UUID       `gorm:"type:uuid;not null;index" json:"purchaseOrderId"`
	ItemID          uuid.UUID       `gorm:"type:uuid;not null;index" json:"itemId"`
	ItemName        string          `gorm:"type:varchar(255);not null" json:"itemName"`
	OrderedQty      int             `gorm:"type:int;not null" json:"orderedQty"`
	ReceivedQty     int             `gorm:"type:int;not null;default:0" json:"receivedQty"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unitPrice"`
	TotalPrice      decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"totalPrice"`
	Position        int             `gorm:"type:int;not null;default:0" json:"-"`
}

func (i *PurchaseOrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// LineTotal computes qty x unit price.
func LineTotal(qty int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(qty)))
}
