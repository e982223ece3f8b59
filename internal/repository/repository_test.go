package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"hospital-inventory/internal/model"
	"hospital-inventory/internal/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newItem(code string, qty, reorder int) *model.Item {
	return &model.Item{
		Code:         code,
		Name:         "Item " + code,
		Category:     model.CategoryMedicine,
		Quantity:     qty,
		ReorderLevel: reorder,
		UnitPrice:    decimal.NewFromInt(1),
	}
}

func TestItemRepository_ListFilters(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewItemRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newItem("PARA-500", 100, 10)))
	require.NoError(t, repo.Create(ctx, newItem("GAUZE-01", 3, 5)))
	surgical := newItem("SCALPEL", 0, 0)
	surgical.Category = model.CategorySurgical
	require.NoError(t, repo.Create(ctx, surgical))

	items, total, err := repo.List(ctx, ItemFilter{Search: "gauze", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "GAUZE-01", items[0].Code)

	_, total, err = repo.List(ctx, ItemFilter{LowStock: true, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	_, total, err = repo.List(ctx, ItemFilter{Category: model.CategorySurgical, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	count, units, low, err := repo.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.Equal(t, int64(103), units)
	assert.Equal(t, int64(2), low)
}

func TestItemRepository_UpdateQuantityInsideTx(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewItemRepository(db)
	txm := NewTransactionManager(db)
	ctx := context.Background()

	item := newItem("SYR-5ML", 10, 0)
	require.NoError(t, repo.Create(ctx, item))

	err := txm.RunInTx(ctx, func(txCtx context.Context) error {
		locked, err := repo.FindByIDForUpdate(txCtx, item.ID)
		if err != nil {
			return err
		}
		return repo.UpdateQuantity(txCtx, locked.ID, locked.Quantity-4)
	})
	require.NoError(t, err)

	got, err := repo.FindByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Quantity)
}

func TestTransactionManager_RollsBack(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewItemRepository(db)
	txm := NewTransactionManager(db)
	ctx := context.Background()

	item := newItem("MASK", 10, 0)
	require.NoError(t, repo.Create(ctx, item))

	boom := errors.New("boom")
	err := txm.RunInTx(ctx, func(txCtx context.Context) error {
		assert.True(t, InTx(txCtx))
		require.NoError(t, repo.UpdateQuantity(txCtx, item.ID, 0))
		// nested call joins the outer transaction
		return txm.RunInTx(txCtx, func(context.Context) error { return boom })
	})
	assert.ErrorIs(t, err, boom)

	got, err := repo.FindByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Quantity)
	assert.False(t, InTx(ctx))
}

func TestRequisitionRepository_ItemsKeepOrderAndScope(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewRequisitionRepository(db)
	ctx := context.Background()

	owner := uuid.New()
	req := &model.Requisition{
		DepartmentName:  "Ward A",
		Status:          model.RequisitionPending,
		RequisitionDate: time.Now(),
		CreatedByID:     &owner,
	}
	require.NoError(t, repo.Create(ctx, req))
	require.NoError(t, repo.CreateItems(ctx, []model.RequisitionItem{
		{RequisitionID: req.ID, ItemID: uuid.New(), ItemName: "second", RequestedQty: 2, Position: 1},
		{RequisitionID: req.ID, ItemID: uuid.New(), ItemName: "first", RequestedQty: 1, Position: 0},
	}))
	require.NoError(t, repo.Create(ctx, &model.Requisition{
		DepartmentName:  "ICU",
		Status:          model.RequisitionForwarded,
		RequisitionDate: time.Now(),
	}))

	got, err := repo.FindByIDForUpdate(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "first", got.Items[0].ItemName)

	list, total, err := repo.List(ctx, RequisitionFilter{CreatedByID: &owner, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, list[0].Items, 2)

	_, total, err = repo.List(ctx, RequisitionFilter{Department: "icu", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Len(t, counts, 2)
}

func TestSchemaEnforcesForeignKeysAndChecks(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	ghost := uuid.New()
	assert.Error(t, NewAuditRepository(db).Log(ctx, &model.AuditLog{UserID: &ghost, Action: model.ActionCreateItem}),
		"audit rows must reference a real user")
	require.NoError(t, NewAuditRepository(db).Log(ctx, &model.AuditLog{Action: model.ActionCreateItem}))

	reqs := NewRequisitionRepository(db)
	req := &model.Requisition{DepartmentName: "Ward A", Status: model.RequisitionIssued, RequisitionDate: time.Now()}
	require.NoError(t, reqs.Create(ctx, req))
	require.NoError(t, NewVoucherRepository(db).Create(ctx, &model.IssuingVoucher{
		VoucherCode: "IV-001", RequisitionID: req.ID, IssueDate: time.Now(), Status: model.VoucherFullyProvided,
	}))
	assert.Error(t, reqs.Delete(ctx, req.ID), "a requisition with a voucher cannot be removed on its own")

	items := NewItemRepository(db)
	item := newItem("ITEM-1", 1, 0)
	require.NoError(t, items.Create(ctx, item))
	assert.Error(t, items.UpdateQuantity(ctx, item.ID, -1))
}
