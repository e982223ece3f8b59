package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Item categories
const (
	CategoryMedicine   = "medicine"
	CategorySurgical   = "surgical"
	CategoryEquipment  = "equipment"
	CategoryLaboratory = "laboratory"
	CategoryConsumable = "consumable"
	CategoryOther      = "other"
)

var ItemCategories = []string{
	CategoryMedicine,
	CategorySurgical,
	CategoryEquipment,
	CategoryLaboratory,
	CategoryConsumable,
	CategoryOther,
}

// Item is a stock-tracked inventory entry. Quantity is mutated by issuing
// vouchers, purchase order receipts and manual adjustments.
type Item struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Code         string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"code"`
	Name         string          `gorm:"type:varchar(255);not null" json:"name"`
	Category     string          `gorm:"type:varchar(50);not null;index" json:"category"`
	Description  string          `gorm:"type:text" json:"description"`
	Quantity     int             `gorm:"type:int;default:0;not null;check:quantity >= 0" json:"quantity"`
	Unit         string          `gorm:"type:varchar(50)" json:"unit"`
	ReorderLevel int             `gorm:"type:int;default:0;not null" json:"reorderLevel"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unitPrice"`
	SupplierID   *uuid.UUID      `gorm:"type:uuid;index" json:"supplierId"`
	Supplier     *Supplier       `gorm:"foreignKey:SupplierID" json:"supplier,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	DeletedAt    gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (i *Item) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// IsLowStock reports whether the item is at or below its reorder level.
func (i *Item) IsLowStock() bool {
	return i.Quantity <= i.ReorderLevel
}

// Movement types
const (
	MovementIn     = "IN"
	MovementOut    = "OUT"
	MovementAdjust = "ADJUST"
)

// Movement reference types
const (
	RefIssuingVoucher = "ISSUING_VOUCHER"
	RefPurchaseOrder  = "PURCHASE_ORDER"
	RefItem           = "ITEM"
)

// StockMovement is the stock card: one row per quantity change of an item.
type StockMovement struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ItemID          uuid.UUID  `gorm:"type:uuid;not null;index" json:"itemId"`
	MovementType    string     `gorm:"type:varchar(10);not null" json:"movementType"`
	QuantityChanged int        `gorm:"type:int;not null" json:"quantityChanged"` // signed
	StockAfter      int        `gorm:"type:int;not null" json:"stockAfter"`
	ReferenceType   string     `gorm:"type:varchar(30);not null;index" json:"referenceType"`
	ReferenceID     *uuid.UUID `gorm:"type:uuid;index" json:"referenceId"`
	CreatedByID     *uuid.UUID `gorm:"type:uuid" json:"createdById"`
	Note            string     `gorm:"type:text" json:"note,omitempty"`
	CreatedAt       time.Time  `gorm:"index" json:"createdAt"`
}

func (m *StockMovement) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}
