package service

import (
	"context"
	"testing"
	"time"

	"hospital-inventory/internal/model"
	"hospital-inventory/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurchaseOrderService_CreateThenReceiveUnclamped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	supplier := env.seedSupplier(t, "MedSupply")
	item := env.seedItem(t, "ITEM-1", 3)
	svc := env.purchaseOrderService()

	po, err := svc.Create(ctx, env.admin, CreatePurchaseOrderRequest{
		PONumber:   "PO-001",
		SupplierID: supplier.ID,
		Items:      []PurchaseOrderLineRequest{{ItemID: item.ID, OrderedQty: 20, UnitPrice: decimal.RequireFromString("2.5")}},
	})
	require.NoError(t, err)
	assert.Equal(t, "50.00", po.TotalAmount.StringFixed(2))
	assert.Equal(t, model.PurchaseOrderPending, po.Status)
	assert.Equal(t, 3, env.quantity(t, item.ID), "ordering does not change stock")

	received, err := svc.Receive(ctx, env.admin, po.ID.String(), ReceivePurchaseOrderRequest{
		Items: []ReceiveLineRequest{{ItemID: &item.ID, ReceivedQty: 25}},
	})
	require.NoError(t, err)
	assert.Equal(t, model.PurchaseOrderReceived, received.Status)
	assert.Equal(t, 25, received.Items[0].ReceivedQty)
	require.NotNil(t, received.ActualDeliveryDate)
	assert.Equal(t, 28, env.quantity(t, item.ID))

	stored, err := svc.Get(ctx, po.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "50.00", stored.TotalAmount.StringFixed(2), "total is never recomputed")

	movements, err := env.movements.ListByReference(ctx, model.RefPurchaseOrder, po.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, model.MovementIn, movements[0].MovementType)
	assert.Equal(t, 25, movements[0].QuantityChanged)
}

func TestPurchaseOrderService_ReceiveTwiceIsRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	supplier := env.seedSupplier(t, "MedSupply")
	item := env.seedItem(t, "ITEM-1", 0)
	svc := env.purchaseOrderService()

	po, err := svc.Create(ctx, env.admin, CreatePurchaseOrderRequest{
		PONumber:   "PO-002",
		SupplierID: supplier.ID,
		Items:      []PurchaseOrderLineRequest{{ItemID: item.ID, OrderedQty: 7, UnitPrice: decimal.NewFromInt(1)}},
	})
	require.NoError(t, err)

	// No lines given: every line is received at its ordered quantity.
	delivered := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	received, err := svc.Receive(ctx, env.admin, po.ID.String(), ReceivePurchaseOrderRequest{ActualDeliveryDate: NewDate(delivered)})
	require.NoError(t, err)
	assert.True(t, received.ActualDeliveryDate.Equal(delivered))
	assert.Equal(t, 7, env.quantity(t, item.ID))

	_, err = svc.Receive(ctx, env.admin, po.ID.String(), ReceivePurchaseOrderRequest{})
	assert.True(t, apperror.HasCode(err, apperror.CodeAlreadyReceived))
	assert.Equal(t, 7, env.quantity(t, item.ID), "second receipt must not add stock")
}

func TestPurchaseOrderService_CreateChecksSupplierAndSkipsMissingItems(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	supplier := env.seedSupplier(t, "MedSupply")
	item := env.seedItem(t, "ITEM-1", 0)
	svc := env.purchaseOrderService()

	_, err := svc.Create(ctx, env.admin, CreatePurchaseOrderRequest{PONumber: "PO-003", SupplierID: uuid.New()})
	assert.True(t, apperror.HasCode(err, apperror.CodeNotFound))

	po, err := svc.Create(ctx, env.admin, CreatePurchaseOrderRequest{
		PONumber:   "PO-004",
		SupplierID: supplier.ID,
		Items: []PurchaseOrderLineRequest{
			{ItemID: uuid.New(), OrderedQty: 5, UnitPrice: decimal.NewFromInt(100)},
			{ItemID: item.ID, OrderedQty: 3, UnitPrice: decimal.RequireFromString("1.25")},
		},
	})
	require.NoError(t, err)
	require.Len(t, po.Items, 1)
	require.Len(t, po.SkippedLines, 1)
	assert.Equal(t, 0, po.SkippedLines[0].Index)
	assert.Equal(t, "3.75", po.TotalAmount.StringFixed(2), "only persisted lines are totalled")

	_, err = svc.Create(ctx, env.admin, CreatePurchaseOrderRequest{PONumber: "PO-004", SupplierID: supplier.ID})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = svc.Create(ctx, env.admin, CreatePurchaseOrderRequest{
		PONumber:   "PO-005",
		SupplierID: supplier.ID,
		Items:      []PurchaseOrderLineRequest{{ItemID: item.ID, OrderedQty: 1, UnitPrice: decimal.NewFromInt(-1)}},
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestPurchaseOrderService_CancelRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	supplier := env.seedSupplier(t, "MedSupply")
	svc := env.purchaseOrderService()

	po, err := svc.Create(ctx, env.admin, CreatePurchaseOrderRequest{PONumber: "PO-010", SupplierID: supplier.ID})
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, env.admin, po.ID.String())
	require.NoError(t, err)
	assert.Equal(t, model.PurchaseOrderCancelled, cancelled.Status)

	_, err = svc.Cancel(ctx, env.admin, po.ID.String())
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidState))

	_, err = svc.Receive(ctx, env.admin, po.ID.String(), ReceivePurchaseOrderRequest{})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidState))
}

func TestPurchaseOrderService_ReceiveSkipsUnknownLines(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	supplier := env.seedSupplier(t, "MedSupply")
	item := env.seedItem(t, "ITEM-1", 0)
	svc := env.purchaseOrderService()

	po, err := svc.Create(ctx, env.admin, CreatePurchaseOrderRequest{
		PONumber:   "PO-020",
		SupplierID: supplier.ID,
		Items:      []PurchaseOrderLineRequest{{ItemID: item.ID, OrderedQty: 4, UnitPrice: decimal.NewFromInt(1)}},
	})
	require.NoError(t, err)

	lineID := po.Items[0].ID
	unknown := uuid.New()
	received, err := svc.Receive(ctx, env.admin, po.ID.String(), ReceivePurchaseOrderRequest{
		Items: []ReceiveLineRequest{{ID: &lineID, ReceivedQty: 2}, {ID: &unknown, ReceivedQty: 9}},
	})
	require.NoError(t, err)
	assert.Len(t, received.SkippedLines, 1)
	assert.Equal(t, 2, env.quantity(t, item.ID))

	orders, total, err := svc.List(ctx, PurchaseOrderListQuery{Status: model.PurchaseOrderReceived, SupplierID: supplier.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "PO-020", orders[0].PONumber)
}
