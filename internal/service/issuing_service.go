package service

import (
	"context"
	"fmt"
	"strings"

	"hospital-inventory/internal/model"
	"hospital-inventory/internal/repository"
	"hospital-inventory/pkg/apperror"
	"hospital-inventory/pkg/logger"
	"hospital-inventory/pkg/metrics"
	"hospital-inventory/pkg/pagination"
	"hospital-inventory/pkg/validator"

	"github.com/google/uuid"
)

// DTOs
type VoucherLineRequest struct {
	ItemID       uuid.UUID `json:"itemId" binding:"required"`
	RequestedQty int       `json:"requestedQty" binding:"gte=0"` // 0 falls back to the requisition line
	IssuedQty    int       `json:"issuedQty" binding:"gte=0"`
}

type CreateVoucherRequest struct {
	VoucherID     string               `json:"voucherId" binding:"required,max=100"`
	RequisitionID uuid.UUID            `json:"requisitionId" binding:"required"`
	IssueDate     *Date                `json:"issueDate"`
	Items         []VoucherLineRequest `json:"items" binding:"dive"`
	Notes         string               `json:"notes"`
}

type VoucherLineUpdate struct {
	ID        uuid.UUID `json:"id" binding:"required"`
	IssuedQty int       `json:"issuedQty" binding:"gte=0"`
}

type UpdateVoucherRequest struct {
	Items []VoucherLineUpdate `json:"items" binding:"dive"`
	Notes *string             `json:"notes"`
}

type VoucherListQuery struct {
	Status        string
	RequisitionID string
	Page          int
	Limit         int
}

// VoucherResult is a voucher plus the input lines that were not applied.
type VoucherResult struct {
	*model.IssuingVoucher
	SkippedLines []SkippedLine `json:"skippedLines"`
}

type IssuingService interface {
	Create(ctx context.Context, actor Actor, req CreateVoucherRequest) (*VoucherResult, error)
	Get(ctx context.Context, id string) (*model.IssuingVoucher, error)
	List(ctx context.Context, q VoucherListQuery) ([]model.IssuingVoucher, int64, error)
	Update(ctx context.Context, actor Actor, id string, req UpdateVoucherRequest) (*VoucherResult, error)
	Delete(ctx context.Context, actor Actor, id string) error
}

type issuingService struct {
	voucherRepo repository.VoucherRepository
	reqRepo     repository.RequisitionRepository
	itemRepo    repository.ItemRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	ledger      *stockLedger
	metrics     *metrics.StockMetrics
	notifier    StockNotifier
	log         *logger.Logger
}

func NewIssuingService(
	voucherRepo repository.VoucherRepository,
	reqRepo repository.RequisitionRepository,
	itemRepo repository.ItemRepository,
	movementRepo repository.StockMovementRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	m *metrics.StockMetrics,
	notifier StockNotifier,
	log *logger.Logger,
) IssuingService {
	if log == nil {
		log = logger.Nop()
	}
	return &issuingService{
		voucherRepo: voucherRepo,
		reqRepo:     reqRepo,
		itemRepo:    itemRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		ledger:      newStockLedger(itemRepo, movementRepo, m),
		metrics:     m,
		notifier:    notifierOrNoop(notifier),
		log:         log,
	}
}

// clampIssue bounds an issue request by the requested quantity and the stock on hand.
func clampIssue(issued, requested, stock int) int {
	return max(0, min(issued, requested, stock))
}

func (s *issuingService) Create(ctx context.Context, actor Actor, req CreateVoucherRequest) (*VoucherResult, error) {
	if err := validator.Struct(req); err != nil {
		return nil, err
	}

	result := &VoucherResult{SkippedLines: []SkippedLine{}}
	var changed []stockChange

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		requisition, err := s.reqRepo.FindByIDForUpdate(txCtx, req.RequisitionID)
		if err != nil {
			return notFoundOr(err, "requisition")
		}
		if !requisition.CanIssue() {
			return apperror.InvalidState("requisition must be Forwarded before issuing, it is %s", requisition.Status)
		}

		voucher := &model.IssuingVoucher{
			VoucherCode:   strings.TrimSpace(req.VoucherID),
			RequisitionID: requisition.ID,
			IssueDate:     req.IssueDate.OrNow(),
			Status:        model.VoucherPending,
			Notes:         req.Notes,
			CreatedByID:   actor.ID(),
		}
		if err := s.voucherRepo.Create(txCtx, voucher); err != nil {
			return duplicateOr(err, fmt.Sprintf("voucher id %q is already in use", voucher.VoucherCode))
		}

		requestedByItem := make(map[uuid.UUID]int, len(requisition.Items))
		for _, l := range requisition.Items {
			requestedByItem[l.ItemID] += l.RequestedQty
		}

		lines := make([]model.IssuingItem, 0, len(req.Items))
		for i, in := range req.Items {
			item, err := s.itemRepo.FindByIDForUpdate(txCtx, in.ItemID)
			if err != nil {
				if apperror.IsNotFound(err) {
					result.SkippedLines = append(result.SkippedLines, SkippedLine{Index: i, ItemID: in.ItemID.String(), Reason: skipItemNotFound})
					continue
				}
				return fmt.Errorf("failed to lock item: %w", err)
			}

			requested := in.RequestedQty
			if requested == 0 {
				requested = requestedByItem[item.ID]
			}
			line := model.IssuingItem{
				IssuingVoucherID: voucher.ID,
				ItemID:           item.ID,
				ItemName:         item.Name,
				RequestedQty:     requested,
				Position:         i,
			}
			line.SetIssued(clampIssue(in.IssuedQty, requested, item.Quantity))
			if err := s.voucherRepo.CreateItem(txCtx, &line); err != nil {
				return fmt.Errorf("failed to create issuing item: %w", err)
			}
			if err := s.ledger.apply(txCtx, item, -line.IssuedQty, model.MovementOut, model.RefIssuingVoucher, &voucher.ID, actor, voucher.VoucherCode); err != nil {
				return err
			}
			if line.IssuedQty > 0 {
				changed = append(changed, stockChange{ItemID: item.ID.String(), Quantity: item.Quantity})
			}
			lines = append(lines, line)
		}

		voucher.Items = lines
		voucher.Status = model.DeriveVoucherStatus(lines)
		if err := s.voucherRepo.Update(txCtx, voucher); err != nil {
			return fmt.Errorf("failed to update voucher status: %w", err)
		}

		// The requisition is closed even when nothing could be issued.
		if err := s.reqRepo.UpdateStatus(txCtx, requisition.ID, model.RequisitionIssued); err != nil {
			return fmt.Errorf("failed to mark requisition issued: %w", err)
		}
		requisition.Status = model.RequisitionIssued
		requisition.Items = nil
		voucher.Requisition = requisition

		audit := newAudit(actor, model.ActionCreateVoucher, voucher.ID.String(), voucher.VoucherCode, map[string]interface{}{
			"request": req,
			"status":  voucher.Status,
			"skipped": result.SkippedLines,
		})
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}

		result.IssuingVoucher = voucher
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, result, changed)
	s.metrics.ObserveTransition("requisition", model.RequisitionIssued)
	return result, nil
}

func (s *issuingService) afterCommit(ctx context.Context, result *VoucherResult, changed []stockChange) {
	if len(result.SkippedLines) > 0 {
		s.log.Warn(s.log.WithFields(ctx, map[string]any{
			"voucher_id": result.ID.String(),
			"skipped":    len(result.SkippedLines),
		}), "issuing voucher lines skipped")
	}
	s.metrics.ObserveTransition("issuing_voucher", result.Status)
	s.notifier.Publish(EventVoucherChanged, map[string]interface{}{
		"id":        result.ID.String(),
		"voucherId": result.VoucherCode,
		"status":    result.Status,
	})
	if len(changed) > 0 {
		s.notifier.Publish(EventStockUpdated, changed)
	}
}

func (s *issuingService) Get(ctx context.Context, id string) (*model.IssuingVoucher, error) {
	voucherID, err := parseID(id, "issuing voucher")
	if err != nil {
		return nil, err
	}
	voucher, err := s.voucherRepo.FindByID(ctx, voucherID)
	if err != nil {
		return nil, notFoundOr(err, "issuing voucher")
	}
	return voucher, nil
}

func (s *issuingService) List(ctx context.Context, q VoucherListQuery) ([]model.IssuingVoucher, int64, error) {
	p := pagination.New(q.Page, q.Limit)
	filter := repository.VoucherFilter{Status: q.Status, Page: p.Page, Limit: p.Limit}
	if q.RequisitionID != "" {
		reqID, err := parseID(q.RequisitionID, "requisition")
		if err != nil {
			return nil, 0, err
		}
		filter.RequisitionID = &reqID
	}

	vouchers, total, err := s.voucherRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list issuing vouchers: %w", err)
	}
	return vouchers, total, nil
}

func (s *issuingService) Update(ctx context.Context, actor Actor, id string, req UpdateVoucherRequest) (*VoucherResult, error) {
	if err := validator.Struct(req); err != nil {
		return nil, err
	}
	voucherID, err := parseID(id, "issuing voucher")
	if err != nil {
		return nil, err
	}

	result := &VoucherResult{SkippedLines: []SkippedLine{}}
	var changed []stockChange

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		voucher, err := s.voucherRepo.FindByIDForUpdate(txCtx, voucherID)
		if err != nil {
			return notFoundOr(err, "issuing voucher")
		}

		byID := make(map[uuid.UUID]int, len(voucher.Items))
		for i := range voucher.Items {
			byID[voucher.Items[i].ID] = i
		}

		for i, in := range req.Items {
			idx, ok := byID[in.ID]
			if !ok {
				result.SkippedLines = append(result.SkippedLines, SkippedLine{Index: i, ID: in.ID.String(), Reason: skipLineNotFound})
				continue
			}
			line := &voucher.Items[idx]

			item, err := s.itemRepo.FindByIDForUpdate(txCtx, line.ItemID)
			if err != nil {
				if apperror.IsNotFound(err) {
					result.SkippedLines = append(result.SkippedLines, SkippedLine{Index: i, ID: in.ID.String(), ItemID: line.ItemID.String(), Reason: skipItemNotFound})
					continue
				}
				return fmt.Errorf("failed to lock item: %w", err)
			}

			// Put the previous issue back before clamping against stock.
			available := item.Quantity + line.IssuedQty
			newIssued := clampIssue(in.IssuedQty, line.RequestedQty, available)
			delta := line.IssuedQty - newIssued
			line.SetIssued(newIssued)
			if err := s.voucherRepo.UpdateItem(txCtx, line); err != nil {
				return fmt.Errorf("failed to update issuing item: %w", err)
			}
			if err := s.ledger.apply(txCtx, item, delta, movementTypeFor(delta), model.RefIssuingVoucher, &voucher.ID, actor, voucher.VoucherCode+" adjusted"); err != nil {
				return err
			}
			if delta != 0 {
				changed = append(changed, stockChange{ItemID: item.ID.String(), Quantity: item.Quantity})
			}
		}

		if req.Notes != nil {
			voucher.Notes = *req.Notes
		}
		voucher.Status = model.DeriveVoucherStatus(voucher.Items)
		if err := s.voucherRepo.Update(txCtx, voucher); err != nil {
			return fmt.Errorf("failed to update voucher: %w", err)
		}

		audit := newAudit(actor, model.ActionUpdateVoucher, voucher.ID.String(), voucher.VoucherCode, map[string]interface{}{
			"request": req,
			"status":  voucher.Status,
			"skipped": result.SkippedLines,
		})
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}

		result.IssuingVoucher = voucher
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, result, changed)
	return result, nil
}

// Delete restores issued stock and removes the voucher. The requisition stays Issued.
func (s *issuingService) Delete(ctx context.Context, actor Actor, id string) error {
	voucherID, err := parseID(id, "issuing voucher")
	if err != nil {
		return err
	}

	var changed []stockChange
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		voucher, err := s.voucherRepo.FindByIDForUpdate(txCtx, voucherID)
		if err != nil {
			return notFoundOr(err, "issuing voucher")
		}

		changed, err = s.ledger.reverseVoucher(txCtx, s.voucherRepo, voucher, actor, voucher.VoucherCode+" deleted")
		if err != nil {
			return err
		}

		audit := newAudit(actor, model.ActionDeleteVoucher, voucher.ID.String(), voucher.VoucherCode, map[string]interface{}{
			"restored": changed,
		})
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(changed) > 0 {
		s.notifier.Publish(EventStockUpdated, changed)
	}
	return nil
}
