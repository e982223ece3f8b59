package service

import (
	"context"
	"fmt"
	"time"

	"hospital-inventory/internal/model"
	"hospital-inventory/internal/repository"
	"hospital-inventory/pkg/apperror"
	"hospital-inventory/pkg/pagination"
)

const topItemsLimit = 5

type ReportService interface {
	Summary(ctx context.Context, startDate, endDate time.Time) (*model.InventorySummary, error)
	LowStock(ctx context.Context, page, limit int) ([]model.Item, int64, error)
}

type reportService struct {
	itemRepo     repository.ItemRepository
	reqRepo      repository.RequisitionRepository
	voucherRepo  repository.VoucherRepository
	poRepo       repository.PurchaseOrderRepository
	movementRepo repository.StockMovementRepository
}

func NewReportService(
	itemRepo repository.ItemRepository,
	reqRepo repository.RequisitionRepository,
	voucherRepo repository.VoucherRepository,
	poRepo repository.PurchaseOrderRepository,
	movementRepo repository.StockMovementRepository,
) ReportService {
	return &reportService{
		itemRepo:     itemRepo,
		reqRepo:      reqRepo,
		voucherRepo:  voucherRepo,
		poRepo:       poRepo,
		movementRepo: movementRepo,
	}
}

func toStatusMap(rows []model.StatusCount, statuses ...string) map[string]int64 {
	out := make(map[string]int64, len(statuses))
	for _, s := range statuses {
		out[s] = 0
	}
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return out
}

// Summary aggregates stock totals, workflow status counts and the most moved
// items inside [startDate, endDate].
func (s *reportService) Summary(ctx context.Context, startDate, endDate time.Time) (*model.InventorySummary, error) {
	if endDate.Before(startDate) {
		return nil, apperror.Validation("endDate must not be before startDate")
	}

	summary := &model.InventorySummary{
		TimeRangeStartDate: startDate,
		TimeRangeEndDate:   endDate,
	}

	var err error
	if summary.ItemCount, summary.TotalUnits, summary.LowStockCount, err = s.itemRepo.Totals(ctx); err != nil {
		return nil, fmt.Errorf("failed to compute item totals: %w", err)
	}

	reqRows, err := s.reqRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count requisitions: %w", err)
	}
	summary.RequisitionsByStatus = toStatusMap(reqRows,
		model.RequisitionPending, model.RequisitionForwarded, model.RequisitionIssued, model.RequisitionCancelled)

	voucherRows, err := s.voucherRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count issuing vouchers: %w", err)
	}
	summary.VouchersByStatus = toStatusMap(voucherRows,
		model.VoucherPending, model.VoucherPartiallyProvided, model.VoucherFullyProvided)

	poRows, err := s.poRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count purchase orders: %w", err)
	}
	summary.PurchaseOrdersByStatus = toStatusMap(poRows,
		model.PurchaseOrderPending, model.PurchaseOrderReceived, model.PurchaseOrderCancelled)

	if summary.TopIssuedItems, err = s.movementRepo.TopItems(ctx, model.RefIssuingVoucher, startDate, endDate, topItemsLimit); err != nil {
		return nil, fmt.Errorf("failed to rank issued items: %w", err)
	}
	if summary.TopReceivedItems, err = s.movementRepo.TopItems(ctx, model.RefPurchaseOrder, startDate, endDate, topItemsLimit); err != nil {
		return nil, fmt.Errorf("failed to rank received items: %w", err)
	}
	if summary.TopIssuedItems == nil {
		summary.TopIssuedItems = []model.ItemRanking{}
	}
	if summary.TopReceivedItems == nil {
		summary.TopReceivedItems = []model.ItemRanking{}
	}

	return summary, nil
}

func (s *reportService) LowStock(ctx context.Context, page, limit int) ([]model.Item, int64, error) {
	p := pagination.New(page, limit)
	items, total, err := s.itemRepo.List(ctx, repository.ItemFilter{LowStock: true, Page: p.Page, Limit: p.Limit})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list low stock items: %w", err)
	}
	return items, total, nil
}
