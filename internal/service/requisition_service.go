package service

import (
	"context"
	"fmt"
	"strings"

	"hospital-inventory/internal/access"
	"hospital-inventory/internal/model"
	"hospital-inventory/internal/repository"
	"hospital-inventory/pkg/apperror"
	"hospital-inventory/pkg/metrics"
	"hospital-inventory/pkg/pagination"
	"hospital-inventory/pkg/validator"

	"github.com/google/uuid"
)

// DTOs
type RequisitionLineRequest struct {
	ItemID       uuid.UUID `json:"itemId" binding:"required"`
	RequestedQty int       `json:"requestedQty" binding:"required,gt=0"`
}

type CreateRequisitionRequest struct {
	DepartmentName  string                   `json:"departmentName" binding:"required,max=255"`
	RequisitionDate *Date                    `json:"requisitionDate"`
	Notes           string                   `json:"notes"`
	Items           []RequisitionLineRequest `json:"items" binding:"dive"`
}

// UpdateRequisitionRequest is a partial update. A non-nil Items replaces all lines.
type UpdateRequisitionRequest struct {
	DepartmentName  *string                  `json:"departmentName" binding:"omitempty,min=1,max=255"`
	RequisitionDate *Date                    `json:"requisitionDate"`
	Notes           *string                  `json:"notes"`
	Items           []RequisitionLineRequest `json:"items" binding:"omitempty,dive"`
}

type RequisitionListQuery struct {
	Status     string
	Department string
	Page       int
	Limit      int
}

type RequisitionService interface {
	Create(ctx context.Context, actor Actor, req CreateRequisitionRequest) (*model.Requisition, error)
	Get(ctx context.Context, actor Actor, id string) (*model.Requisition, error)
	List(ctx context.Context, actor Actor, q RequisitionListQuery) ([]model.Requisition, int64, error)
	Update(ctx context.Context, actor Actor, id string, req UpdateRequisitionRequest) (*model.Requisition, error)
	Forward(ctx context.Context, actor Actor, id string) (*model.Requisition, error)
	Cancel(ctx context.Context, actor Actor, id string) (*model.Requisition, error)
	Delete(ctx context.Context, actor Actor, id string) error
}

type requisitionService struct {
	reqRepo     repository.RequisitionRepository
	voucherRepo repository.VoucherRepository
	itemRepo    repository.ItemRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	ledger      *stockLedger
	metrics     *metrics.StockMetrics
	notifier    StockNotifier
}

func NewRequisitionService(
	reqRepo repository.RequisitionRepository,
	voucherRepo repository.VoucherRepository,
	itemRepo repository.ItemRepository,
	movementRepo repository.StockMovementRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	m *metrics.StockMetrics,
	notifier StockNotifier,
) RequisitionService {
	return &requisitionService{
		reqRepo:     reqRepo,
		voucherRepo: voucherRepo,
		itemRepo:    itemRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		ledger:      newStockLedger(itemRepo, movementRepo, m),
		metrics:     m,
		notifier:    notifierOrNoop(notifier),
	}
}

func (s *requisitionService) Create(ctx context.Context, actor Actor, req CreateRequisitionRequest) (*model.Requisition, error) {
	if err := validator.Struct(req); err != nil {
		return nil, err
	}

	requisition := &model.Requisition{
		DepartmentName:  strings.TrimSpace(req.DepartmentName),
		Status:          model.RequisitionPending,
		RequisitionDate: req.RequisitionDate.OrNow(),
		Notes:           req.Notes,
		CreatedByID:     actor.ID(),
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.reqRepo.Create(txCtx, requisition); err != nil {
			return fmt.Errorf("failed to create requisition: %w", err)
		}
		lines, err := s.buildLines(txCtx, requisition.ID, req.Items)
		if err != nil {
			return err
		}
		if err := s.reqRepo.CreateItems(txCtx, lines); err != nil {
			return fmt.Errorf("failed to create requisition items: %w", err)
		}
		requisition.Items = lines

		audit := newAudit(actor, model.ActionCreateRequisition, requisition.ID.String(), requisition.DepartmentName, req)
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveTransition("requisition", requisition.Status)
	s.notifier.Publish(EventRequisitionChanged, requisitionEvent(requisition))
	return requisition, nil
}

// buildLines snapshots item names. Requisitions never touch stock, so an
// unknown item is rejected rather than skipped.
func (s *requisitionService) buildLines(ctx context.Context, requisitionID uuid.UUID, in []RequisitionLineRequest) ([]model.RequisitionItem, error) {
	lines := make([]model.RequisitionItem, 0, len(in))
	for i, l := range in {
		item, err := s.itemRepo.FindByID(ctx, l.ItemID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return nil, apperror.NotFound("item").WithDetails(SkippedLine{Index: i, ItemID: l.ItemID.String(), Reason: skipItemNotFound})
			}
			return nil, fmt.Errorf("failed to load item: %w", err)
		}
		lines = append(lines, model.RequisitionItem{
			RequisitionID: requisitionID,
			ItemID:        item.ID,
			ItemName:      item.Name,
			RequestedQty:  l.RequestedQty,
			Position:      i,
		})
	}
	return lines, nil
}

func (s *requisitionService) Get(ctx context.Context, actor Actor, id string) (*model.Requisition, error) {
	reqID, err := parseID(id, "requisition")
	if err != nil {
		return nil, err
	}
	requisition, err := s.reqRepo.FindByID(ctx, reqID)
	if err != nil {
		return nil, notFoundOr(err, "requisition")
	}
	if !s.visibleTo(actor, requisition) {
		// Hide other departments' requests instead of revealing they exist.
		return nil, apperror.NotFound("requisition")
	}
	return requisition, nil
}

func (s *requisitionService) visibleTo(actor Actor, requisition *model.Requisition) bool {
	if access.CanPerform(actor.Role, access.RequisitionsReadAll) {
		return true
	}
	uid := actor.ID()
	return uid != nil && requisition.CreatedByID != nil && *uid == *requisition.CreatedByID
}

func (s *requisitionService) List(ctx context.Context, actor Actor, q RequisitionListQuery) ([]model.Requisition, int64, error) {
	p := pagination.New(q.Page, q.Limit)
	filter := repository.RequisitionFilter{
		Status:     q.Status,
		Department: q.Department,
		Page:       p.Page,
		Limit:      p.Limit,
	}
	if !access.CanPerform(actor.Role, access.RequisitionsReadAll) {
		uid := actor.ID()
		if uid == nil {
			return []model.Requisition{}, 0, nil
		}
		filter.CreatedByID = uid
	}

	reqs, total, err := s.reqRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list requisitions: %w", err)
	}
	return reqs, total, nil
}

func (s *requisitionService) Update(ctx context.Context, actor Actor, id string, req UpdateRequisitionRequest) (*model.Requisition, error) {
	if err := validator.Struct(req); err != nil {
		return nil, err
	}
	reqID, err := parseID(id, "requisition")
	if err != nil {
		return nil, err
	}

	var requisition *model.Requisition
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		requisition, err = s.reqRepo.FindByIDForUpdate(txCtx, reqID)
		if err != nil {
			return notFoundOr(err, "requisition")
		}
		if !requisition.CanEdit() {
			return apperror.InvalidState("requisition is already %s and can no longer be edited", requisition.Status)
		}

		if req.DepartmentName != nil {
			requisition.DepartmentName = strings.TrimSpace(*req.DepartmentName)
		}
		if req.RequisitionDate != nil && !req.RequisitionDate.IsZero() {
			requisition.RequisitionDate = req.RequisitionDate.Time
		}
		if req.Notes != nil {
			requisition.Notes = *req.Notes
		}
		if err := s.reqRepo.Update(txCtx, requisition); err != nil {
			return fmt.Errorf("failed to update requisition: %w", err)
		}

		if req.Items != nil {
			if err := s.reqRepo.DeleteItems(txCtx, requisition.ID); err != nil {
				return fmt.Errorf("failed to replace requisition items: %w", err)
			}
			lines, err := s.buildLines(txCtx, requisition.ID, req.Items)
			if err != nil {
				return err
			}
			if err := s.reqRepo.CreateItems(txCtx, lines); err != nil {
				return fmt.Errorf("failed to replace requisition items: %w", err)
			}
			requisition.Items = lines
		}

		audit := newAudit(actor, model.ActionUpdateRequisition, requisition.ID.String(), requisition.DepartmentName, req)
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(EventRequisitionChanged, requisitionEvent(requisition))
	return requisition, nil
}

func (s *requisitionService) Forward(ctx context.Context, actor Actor, id string) (*model.Requisition, error) {
	return s.transition(ctx, actor, id, model.RequisitionForwarded, model.ActionForwardRequisition,
		func(r *model.Requisition) error {
			if !r.CanForward() {
				return apperror.InvalidState("only Pending requisitions can be forwarded, this one is %s", r.Status)
			}
			return nil
		})
}

func (s *requisitionService) Cancel(ctx context.Context, actor Actor, id string) (*model.Requisition, error) {
	return s.transition(ctx, actor, id, model.RequisitionCancelled, model.ActionCancelRequisition,
		func(r *model.Requisition) error {
			if !r.CanCancel() {
				return apperror.InvalidState("requisition is already %s and cannot be cancelled", r.Status)
			}
			return nil
		})
}

func (s *requisitionService) transition(ctx context.Context, actor Actor, id, target, action string, guard func(*model.Requisition) error) (*model.Requisition, error) {
	reqID, err := parseID(id, "requisition")
	if err != nil {
		return nil, err
	}

	var requisition *model.Requisition
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		requisition, err = s.reqRepo.FindByIDForUpdate(txCtx, reqID)
		if err != nil {
			return notFoundOr(err, "requisition")
		}
		if err := guard(requisition); err != nil {
			return err
		}

		from := requisition.Status
		if err := s.reqRepo.UpdateStatus(txCtx, requisition.ID, target); err != nil {
			return fmt.Errorf("failed to update requisition status: %w", err)
		}
		requisition.Status = target

		audit := newAudit(actor, action, requisition.ID.String(), requisition.DepartmentName,
			map[string]string{"from": from, "to": target})
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveTransition("requisition", target)
	s.notifier.Publish(EventRequisitionChanged, requisitionEvent(requisition))
	return requisition, nil
}

// Delete removes a requisition in any status. A voucher issued against it is
// removed too and its issued stock restored.
func (s *requisitionService) Delete(ctx context.Context, actor Actor, id string) error {
	reqID, err := parseID(id, "requisition")
	if err != nil {
		return err
	}

	var changed []stockChange
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		requisition, err := s.reqRepo.FindByIDForUpdate(txCtx, reqID)
		if err != nil {
			return notFoundOr(err, "requisition")
		}

		details := map[string]interface{}{"status": requisition.Status, "lines": len(requisition.Items)}
		voucher, err := s.voucherRepo.FindByRequisitionID(txCtx, requisition.ID)
		switch {
		case err == nil:
			if voucher, err = s.voucherRepo.FindByIDForUpdate(txCtx, voucher.ID); err != nil {
				return fmt.Errorf("failed to lock issuing voucher: %w", err)
			}
			changed, err = s.ledger.reverseVoucher(txCtx, s.voucherRepo, voucher, actor,
				voucher.VoucherCode+" removed with requisition "+requisition.DepartmentName)
			if err != nil {
				return err
			}
			details["voucher"] = voucher.VoucherCode
			details["restored"] = changed
		case !apperror.IsNotFound(err):
			return fmt.Errorf("failed to find issuing voucher: %w", err)
		}

		if err := s.reqRepo.DeleteItems(txCtx, requisition.ID); err != nil {
			return fmt.Errorf("failed to delete requisition items: %w", err)
		}
		if err := s.reqRepo.Delete(txCtx, requisition.ID); err != nil {
			return fmt.Errorf("failed to delete requisition: %w", err)
		}

		audit := newAudit(actor, model.ActionDeleteRequisition, requisition.ID.String(), requisition.DepartmentName, details)
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

func requisitionEvent(r *model.Requisition) map[string]interface{} {
	return map[string]interface{}{
		"id":             r.ID.String(),
		"departmentName": r.DepartmentName,
		"status":         r.Status,
	}
}
