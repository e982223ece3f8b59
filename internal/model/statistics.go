package model

import (
	"time"
)

// InventorySummary aggregates dashboard counters.
type InventorySummary struct {
	ItemCount              int64            `json:"itemCount"`
	TotalUnits             int64            `json:"totalUnits"`
	LowStockCount          int64            `json:"lowStockCount"`
	RequisitionsByStatus   map[string]int64 `json:"requisitionsByStatus"`
	VouchersByStatus       map[string]int64 `json:"vouchersByStatus"`
	PurchaseOrdersByStatus map[string]int64 `json:"purchaseOrdersByStatus"`
	TopIssuedItems         []ItemRanking    `json:"topIssuedItems"`
	TopReceivedItems       []ItemRanking    `json:"topReceivedItems"`
	TimeRangeStartDate     time.Time        `json:"timeRangeStartDate"`
	TimeRangeEndDate       time.Time        `json:"timeRangeEndDate"`
}

// ItemRanking represents an item ranked by units moved in a period
type ItemRanking struct {
	ItemID        string `json:"itemId"`
	ItemName      string `json:"itemName"`
	ItemCode      string `json:"itemCode"`
	TotalQuantity int    `json:"totalQuantity"`
}

// StatusCount is one GROUP BY status row.
type StatusCount struct {
	Status string
	Count  int64
}
