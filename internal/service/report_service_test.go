package service

import (
	"context"
	"testing"
	"time"

	"hospital-inventory/internal/model"
	"hospital-inventory/pkg/apperror"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportService_Summary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	para := env.seedItem(t, "PARA", 10)
	env.seedItem(t, "GAUZE", 2)
	supplier := env.seedSupplier(t, "MedSupply")

	req := env.forwardedRequisition(t, "Ward A", RequisitionLineRequest{ItemID: para.ID, RequestedQty: 4})
	_, err := env.issuingService().Create(ctx, env.admin, CreateVoucherRequest{VoucherID: "IV-1", RequisitionID: req.ID,
		Items: []VoucherLineRequest{{ItemID: para.ID, RequestedQty: 4, IssuedQty: 4}}})
	require.NoError(t, err)
	_, err = env.requisitionService().Create(ctx, env.staff, CreateRequisitionRequest{DepartmentName: "Ward B"})
	require.NoError(t, err)

	po, err := env.purchaseOrderService().Create(ctx, env.admin, CreatePurchaseOrderRequest{PONumber: "PO-1", SupplierID: supplier.ID,
		Items: []PurchaseOrderLineRequest{{ItemID: para.ID, OrderedQty: 9, UnitPrice: decimal.NewFromInt(1)}}})
	require.NoError(t, err)
	_, err = env.purchaseOrderService().Receive(ctx, env.admin, po.ID.String(), ReceivePurchaseOrderRequest{})
	require.NoError(t, err)

	svc := NewReportService(env.items, env.reqs, env.vouchers, env.orders, env.movements)
	now := time.Now()
	summary, err := svc.Summary(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, int64(2), summary.ItemCount)
	assert.Equal(t, int64(17), summary.TotalUnits) // 10 - 4 + 9 + 2
	assert.Equal(t, int64(1), summary.LowStockCount)
	assert.Equal(t, int64(1), summary.RequisitionsByStatus[model.RequisitionIssued])
	assert.Equal(t, int64(1), summary.RequisitionsByStatus[model.RequisitionPending])
	assert.Equal(t, int64(0), summary.RequisitionsByStatus[model.RequisitionCancelled])
	assert.Equal(t, int64(1), summary.VouchersByStatus[model.VoucherFullyProvided])
	assert.Equal(t, int64(1), summary.PurchaseOrdersByStatus[model.PurchaseOrderReceived])

	require.Len(t, summary.TopIssuedItems, 1)
	assert.Equal(t, 4, summary.TopIssuedItems[0].TotalQuantity)
	require.Len(t, summary.TopReceivedItems, 1)
	assert.Equal(t, 9, summary.TopReceivedItems[0].TotalQuantity)

	low, total, err := svc.LowStock(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "GAUZE", low[0].Code)

	_, err = svc.Summary(ctx, now, now.Add(-time.Hour))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}
