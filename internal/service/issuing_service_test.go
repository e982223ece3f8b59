package service

import (
	"context"
	"sync"
	"testing"

	"hospital-inventory/internal/model"
	"hospital-inventory/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampIssue(t *testing.T) {
	tests := []struct {
		issued, requested, stock, want int
	}{
		{10, 10, 5, 5},
		{3, 10, 5, 3},
		{12, 10, 50, 10},
		{4, 10, 0, 0},
		{0, 10, 5, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, clampIssue(tt.issued, tt.requested, tt.stock), "%+v", tt)
	}
}

func TestIssuingService_WardAPartialIssue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item := env.seedItem(t, "ITEM-1", 5)
	req := env.forwardedRequisition(t, "Ward A", RequisitionLineRequest{ItemID: item.ID, RequestedQty: 10})

	res, err := env.issuingService().Create(ctx, env.admin, CreateVoucherRequest{
		VoucherID:     "IV-001",
		RequisitionID: req.ID,
		Items:         []VoucherLineRequest{{ItemID: item.ID, RequestedQty: 10, IssuedQty: 10}},
	})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, 5, res.Items[0].IssuedQty)
	assert.Equal(t, 5, res.Items[0].Balance)
	assert.Equal(t, model.VoucherPartiallyProvided, res.Status)
	assert.Empty(t, res.SkippedLines)

	assert.Equal(t, 0, env.quantity(t, item.ID))
	stored, err := env.reqs.FindByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequisitionIssued, stored.Status)

	movements, err := env.movements.ListByReference(ctx, model.RefIssuingVoucher, res.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, model.MovementOut, movements[0].MovementType)
	assert.Equal(t, -5, movements[0].QuantityChanged)
	assert.Equal(t, 0, movements[0].StockAfter)
	assert.True(t, env.notifier.has(EventStockUpdated))
}

func TestIssuingService_CreateFullyProvidedAndDefaultsRequested(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item := env.seedItem(t, "ITEM-1", 50)
	req := env.forwardedRequisition(t, "Ward C", RequisitionLineRequest{ItemID: item.ID, RequestedQty: 10})

	res, err := env.issuingService().Create(ctx, env.admin, CreateVoucherRequest{
		VoucherID:     "IV-002",
		RequisitionID: req.ID,
		Items:         []VoucherLineRequest{{ItemID: item.ID, IssuedQty: 10}},
	})
	require.NoError(t, err)
	assert.Equal(t, 10, res.Items[0].RequestedQty, "requested defaults to the requisition line")
	assert.Equal(t, 0, res.Items[0].Balance)
	assert.Equal(t, model.VoucherFullyProvided, res.Status)
	assert.Equal(t, 40, env.quantity(t, item.ID))
}

func TestIssuingService_CreateRequiresForwarded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item := env.seedItem(t, "ITEM-1", 5)

	pending, err := env.requisitionService().Create(ctx, env.staff, CreateRequisitionRequest{
		DepartmentName: "Ward A",
		Items:          []RequisitionLineRequest{{ItemID: item.ID, RequestedQty: 1}},
	})
	require.NoError(t, err)

	_, err = env.issuingService().Create(ctx, env.admin, CreateVoucherRequest{
		VoucherID:     "IV-003",
		RequisitionID: pending.ID,
		Items:         []VoucherLineRequest{{ItemID: item.ID, RequestedQty: 1, IssuedQty: 1}},
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidState))
	assert.Equal(t, 5, env.quantity(t, item.ID))

	_, err = env.issuingService().Create(ctx, env.admin, CreateVoucherRequest{
		VoucherID:     "IV-004",
		RequisitionID: uuid.New(),
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeNotFound))
}

func TestIssuingService_CreateSkipsMissingItemsAndIssuesRequisition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item := env.seedItem(t, "ITEM-1", 5)
	req := env.forwardedRequisition(t, "Ward D", RequisitionLineRequest{ItemID: item.ID, RequestedQty: 2})
	missing := uuid.New()

	res, err := env.issuingService().Create(ctx, env.admin, CreateVoucherRequest{
		VoucherID:     "IV-005",
		RequisitionID: req.ID,
		Items:         []VoucherLineRequest{{ItemID: missing, RequestedQty: 3, IssuedQty: 3}},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	require.Len(t, res.SkippedLines, 1)
	assert.Equal(t, missing.String(), res.SkippedLines[0].ItemID)
	assert.Equal(t, model.VoucherPending, res.Status)

	stored, err := env.reqs.FindByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequisitionIssued, stored.Status, "requisition is closed even with nothing issued")
}

func TestIssuingService_DuplicateVoucherCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item := env.seedItem(t, "ITEM-1", 5)
	first := env.forwardedRequisition(t, "Ward A", RequisitionLineRequest{ItemID: item.ID, RequestedQty: 1})
	second := env.forwardedRequisition(t, "Ward B", RequisitionLineRequest{ItemID: item.ID, RequestedQty: 1})
	svc := env.issuingService()

	_, err := svc.Create(ctx, env.admin, CreateVoucherRequest{VoucherID: "IV-DUP", RequisitionID: first.ID,
		Items: []VoucherLineRequest{{ItemID: item.ID, RequestedQty: 1, IssuedQty: 1}}})
	require.NoError(t, err)

	_, err = svc.Create(ctx, env.admin, CreateVoucherRequest{VoucherID: "IV-DUP", RequisitionID: second.ID,
		Items: []VoucherLineRequest{{ItemID: item.ID, RequestedQty: 1, IssuedQty: 1}}})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	assert.Equal(t, 4, env.quantity(t, item.ID), "rolled back create must not move stock")

	stored, err := env.reqs.FindByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequisitionForwarded, stored.Status)
}

func TestIssuingService_ConcurrentCreatesIssueOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item := env.seedItem(t, "ITEM-1", 10)
	req := env.forwardedRequisition(t, "Ward A", RequisitionLineRequest{ItemID: item.ID, RequestedQty: 10})
	svc := env.issuingService()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(ctx, env.admin, CreateVoucherRequest{
				VoucherID:     []string{"IV-A", "IV-B"}[i],
				RequisitionID: req.ID,
				Items:         []VoucherLineRequest{{ItemID: item.ID, RequestedQty: 10, IssuedQty: 10}},
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, env.quantity(t, item.ID))
}

func TestIssuingService_UpdateRestoresThenReclamps(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item := env.seedItem(t, "ITEM-1", 8)
	req := env.forwardedRequisition(t, "Ward A", RequisitionLineRequest{ItemID: item.ID, RequestedQty: 10})
	svc := env.issuingService()

	created, err := svc.Create(ctx, env.admin, CreateVoucherRequest{VoucherID: "IV-010", RequisitionID: req.ID,
		Items: []VoucherLineRequest{{ItemID: item.ID, RequestedQty: 10, IssuedQty: 6}}})
	require.NoError(t, err)
	assert.Equal(t, 2, env.quantity(t, item.ID))
	lineID := created.Items[0].ID

	// 6 issued + 2 on hand: asking for 10 can only reach 8.
	updated, err := svc.Update(ctx, env.admin, created.ID.String(), UpdateVoucherRequest{
		Items: []VoucherLineUpdate{{ID: lineID, IssuedQty: 10}, {ID: uuid.New(), IssuedQty: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 8, updated.Items[0].IssuedQty)
	assert.Equal(t, 2, updated.Items[0].Balance)
	assert.Equal(t, model.VoucherPartiallyProvided, updated.Status)
	assert.Len(t, updated.SkippedLines, 1)
	assert.Equal(t, 0, env.quantity(t, item.ID))

	// Returning everything puts the voucher back to Pending.
	updated, err = svc.Update(ctx, env.admin, created.ID.String(), UpdateVoucherRequest{
		Items: []VoucherLineUpdate{{ID: lineID, IssuedQty: 0}},
	})
	require.NoError(t, err)
	assert.Equal(t, model.VoucherPending, updated.Status)
	assert.Equal(t, 8, env.quantity(t, item.ID))

	movements, err := env.movements.ListByReference(ctx, model.RefIssuingVoucher, created.ID)
	require.NoError(t, err)
	net := 0
	for _, m := range movements {
		net += m.QuantityChanged
	}
	assert.Zero(t, net)
}

func TestIssuingService_DeleteFullyProvidedRestoresStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item := env.seedItem(t, "ITEM-1", 10)
	req := env.forwardedRequisition(t, "Ward A", RequisitionLineRequest{ItemID: item.ID, RequestedQty: 10})
	svc := env.issuingService()

	created, err := svc.Create(ctx, env.admin, CreateVoucherRequest{VoucherID: "IV-020", RequisitionID: req.ID,
		Items: []VoucherLineRequest{{ItemID: item.ID, RequestedQty: 10, IssuedQty: 10}}})
	require.NoError(t, err)
	require.Equal(t, model.VoucherFullyProvided, created.Status)
	require.Equal(t, 0, env.quantity(t, item.ID))

	require.NoError(t, svc.Delete(ctx, env.admin, created.ID.String()))
	assert.Equal(t, 10, env.quantity(t, item.ID))

	_, err = svc.Get(ctx, created.ID.String())
	assert.True(t, apperror.HasCode(err, apperror.CodeNotFound))

	stored, err := env.reqs.FindByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequisitionIssued, stored.Status, "delete does not reopen the requisition")
}

func TestIssuingService_List(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item := env.seedItem(t, "ITEM-1", 10)
	req := env.forwardedRequisition(t, "Ward A", RequisitionLineRequest{ItemID: item.ID, RequestedQty: 4})
	svc := env.issuingService()

	_, err := svc.Create(ctx, env.admin, CreateVoucherRequest{VoucherID: "IV-030", RequisitionID: req.ID,
		Items: []VoucherLineRequest{{ItemID: item.ID, RequestedQty: 4, IssuedQty: 4}}})
	require.NoError(t, err)

	vouchers, total, err := svc.List(ctx, VoucherListQuery{Status: model.VoucherFullyProvided})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "IV-030", vouchers[0].VoucherCode)

	_, total, err = svc.List(ctx, VoucherListQuery{Status: model.VoucherPending})
	require.NoError(t, err)
	assert.Zero(t, total)
}
