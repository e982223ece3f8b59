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
	"github.com/shopspring/decimal"
)

// DTOs
type PurchaseOrderLineRequest struct {
	ItemID     uuid.UUID       `json:"itemId" binding:"required"`
	OrderedQty int             `json:"orderedQty" binding:"required,gt=0"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
}

type CreatePurchaseOrderRequest struct {
	PONumber             string                     `json:"poNumber" binding:"required,max=100"`
	SupplierID           uuid.UUID                  `json:"supplierId" binding:"required"`
	OrderDate            *Date                      `json:"orderDate"`
	ExpectedDeliveryDate *Date                      `json:"expectedDeliveryDate"`
	Items                []PurchaseOrderLineRequest `json:"items" binding:"dive"`
	Notes                string                     `json:"notes"`
}

// ReceiveLineRequest matches an order line by ID, or by ItemID when ID is empty.
type ReceiveLineRequest struct {
	ID          *uuid.UUID `json:"id"`
	ItemID      *uuid.UUID `json:"itemId"`
	ReceivedQty int        `json:"receivedQty" binding:"gte=0"`
}

// ReceivePurchaseOrderRequest with no items receives every line in full.
type ReceivePurchaseOrderRequest struct {
	ActualDeliveryDate *Date                `json:"actualDeliveryDate"`
	Items              []ReceiveLineRequest `json:"items" binding:"dive"`
}

type PurchaseOrderListQuery struct {
	Status     string
	SupplierID string
	Page       int
	Limit      int
}

type PurchaseOrderResult struct {
	*model.PurchaseOrder
	SkippedLines []SkippedLine `json:"skippedLines"`
}

type PurchaseOrderService interface {
	Create(ctx context.Context, actor Actor, req CreatePurchaseOrderRequest) (*PurchaseOrderResult, error)
	Get(ctx context.Context, id string) (*model.PurchaseOrder, error)
	List(ctx context.Context, q PurchaseOrderListQuery) ([]model.PurchaseOrder, int64, error)
	Receive(ctx context.Context, actor Actor, id string, req ReceivePurchaseOrderRequest) (*PurchaseOrderResult, error)
	Cancel(ctx context.Context, actor Actor, id string) (*model.PurchaseOrder, error)
}

type purchaseOrderService struct {
	poRepo       repository.PurchaseOrderRepository
	supplierRepo repository.SupplierRepository
	itemRepo     repository.ItemRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	ledger       *stockLedger
	metrics      *metrics.StockMetrics
	notifier     StockNotifier
	log          *logger.Logger
}

func NewPurchaseOrderService(
	poRepo repository.PurchaseOrderRepository,
	supplierRepo repository.SupplierRepository,
	itemRepo repository.ItemRepository,
	movementRepo repository.StockMovementRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	m *metrics.StockMetrics,
	notifier StockNotifier,
	log *logger.Logger,
) PurchaseOrderService {
	if log == nil {
		log = logger.Nop()
	}
	return &purchaseOrderService{
		poRepo:       poRepo,
		supplierRepo: supplierRepo,
		itemRepo:     itemRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		ledger:       newStockLedger(itemRepo, movementRepo, m),
		metrics:      m,
		notifier:     notifierOrNoop(notifier),
		log:          log,
	}
}

func (s *purchaseOrderService) Create(ctx context.Context, actor Actor, req CreatePurchaseOrderRequest) (*PurchaseOrderResult, error) {
	if err := validator.Struct(req); err != nil {
		return nil, err
	}
	for i, l := range req.Items {
		if l.UnitPrice.IsNegative() {
			return nil, apperror.Validation(fmt.Sprintf("items[%d].unitPrice must not be negative", i))
		}
	}

	result := &PurchaseOrderResult{SkippedLines: []SkippedLine{}}
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		supplier, err := s.supplierRepo.FindByID(txCtx, req.SupplierID)
		if err != nil {
			return notFoundOr(err, "supplier")
		}

		po := &model.PurchaseOrder{
			PONumber:             strings.TrimSpace(req.PONumber),
			SupplierID:           supplier.ID,
			OrderDate:            req.OrderDate.OrNow(),
			ExpectedDeliveryDate: req.ExpectedDeliveryDate.Ptr(),
			Status:               model.PurchaseOrderPending,
			TotalAmount:          decimal.Zero,
			Notes:                req.Notes,
			CreatedByID:          actor.ID(),
		}
		if err := s.poRepo.Create(txCtx, po); err != nil {
			return duplicateOr(err, fmt.Sprintf("purchase order number %q is already in use", po.PONumber))
		}

		total := decimal.Zero
		lines := make([]model.PurchaseOrderItem, 0, len(req.Items))
		for i, in := range req.Items {
			item, err := s.itemRepo.FindByID(txCtx, in.ItemID)
			if err != nil {
				if apperror.IsNotFound(err) {
					result.SkippedLines = append(result.SkippedLines, SkippedLine{Index: i, ItemID: in.ItemID.String(), Reason: skipItemNotFound})
					continue
				}
				return fmt.Errorf("failed to load item: %w", err)
			}
			line := model.PurchaseOrderItem{
				PurchaseOrderID: po.ID,
				ItemID:          item.ID,
				ItemName:        item.Name,
				OrderedQty:      in.OrderedQty,
				UnitPrice:       in.UnitPrice,
				TotalPrice:      model.LineTotal(in.OrderedQty, in.UnitPrice),
				Position:        i,
			}
			if err := s.poRepo.CreateItem(txCtx, &line); err != nil {
				return fmt.Errorf("failed to create purchase order item: %w", err)
			}
			total = total.Add(line.TotalPrice)
			lines = append(lines, line)
		}

		po.TotalAmount = total
		if err := s.poRepo.Update(txCtx, po); err != nil {
			return fmt.Errorf("failed to update purchase order total: %w", err)
		}
		po.Items = lines
		po.Supplier = supplier

		audit := newAudit(actor, model.ActionCreatePurchaseOrder, po.ID.String(), po.PONumber, map[string]interface{}{
			"request": req,
			"total":   po.TotalAmount.StringFixed(2),
			"skipped": result.SkippedLines,
		})
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}

		result.PurchaseOrder = po
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logSkipped(ctx, result)
	s.metrics.ObserveTransition("purchase_order", result.Status)
	s.notifier.Publish(EventPurchaseOrderChanged, purchaseOrderEvent(result.PurchaseOrder))
	return result, nil
}

func (s *purchaseOrderService) logSkipped(ctx context.Context, result *PurchaseOrderResult) {
	if len(result.SkippedLines) == 0 {
		return
	}
	s.log.Warn(s.log.WithFields(ctx, map[string]any{
		"purchase_order_id": result.ID.String(),
		"skipped":           len(result.SkippedLines),
	}), "purchase order lines skipped")
}

func (s *purchaseOrderService) Get(ctx context.Context, id string) (*model.PurchaseOrder, error) {
	poID, err := parseID(id, "purchase order")
	if err != nil {
		return nil, err
	}
	po, err := s.poRepo.FindByID(ctx, poID)
	if err != nil {
		return nil, notFoundOr(err, "purchase order")
	}
	return po, nil
}

func (s *purchaseOrderService) List(ctx context.Context, q PurchaseOrderListQuery) ([]model.PurchaseOrder, int64, error) {
	p := pagination.New(q.Page, q.Limit)
	filter := repository.PurchaseOrderFilter{Status: q.Status, Page: p.Page, Limit: p.Limit}
	if q.SupplierID != "" {
		supplierID, err := parseID(q.SupplierID, "supplier")
		if err != nil {
			return nil, 0, err
		}
		filter.SupplierID = &supplierID
	}

	orders, total, err := s.poRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list purchase orders: %w", err)
	}
	return orders, total, nil
}

// matchLine finds the order line an input refers to, by line id first and item id second.
func matchLine(lines []model.PurchaseOrderItem, in ReceiveLineRequest) int {
	if in.ID != nil {
		for i := range lines {
			if lines[i].ID == *in.ID {
				return i
			}
		}
		return -1
	}
	if in.ItemID != nil {
		for i := range lines {
			if lines[i].ItemID == *in.ItemID {
				return i
			}
		}
	}
	return -1
}

func (s *purchaseOrderService) Receive(ctx context.Context, actor Actor, id string, req ReceivePurchaseOrderRequest) (*PurchaseOrderResult, error) {
	if err := validator.Struct(req); err != nil {
		return nil, err
	}
	poID, err := parseID(id, "purchase order")
	if err != nil {
		return nil, err
	}

	result := &PurchaseOrderResult{SkippedLines: []SkippedLine{}}
	var changed []stockChange

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		po, err := s.poRepo.FindByIDForUpdate(txCtx, poID)
		if err != nil {
			return notFoundOr(err, "purchase order")
		}
		switch po.Status {
		case model.PurchaseOrderReceived:
			return apperror.Newf(apperror.CodeAlreadyReceived, "purchase order %s was already received", po.PONumber)
		case model.PurchaseOrderCancelled:
			return apperror.InvalidState("purchase order %s is cancelled", po.PONumber)
		}

		inputs := req.Items
		if len(inputs) == 0 {
			inputs = make([]ReceiveLineRequest, 0, len(po.Items))
			for _, l := range po.Items {
				lineID := l.ID
				inputs = append(inputs, ReceiveLineRequest{ID: &lineID, ReceivedQty: l.OrderedQty})
			}
		}

		for i, in := range inputs {
			idx := matchLine(po.Items, in)
			if idx < 0 {
				skipped := SkippedLine{Index: i, Reason: skipLineNotFound}
				if in.ID != nil {
					skipped.ID = in.ID.String()
				}
				if in.ItemID != nil {
					skipped.ItemID = in.ItemID.String()
				}
				result.SkippedLines = append(result.SkippedLines, skipped)
				continue
			}
			line := &po.Items[idx]

			item, err := s.itemRepo.FindByIDForUpdate(txCtx, line.ItemID)
			if err != nil {
				if apperror.IsNotFound(err) {
					result.SkippedLines = append(result.SkippedLines, SkippedLine{Index: i, ID: line.ID.String(), ItemID: line.ItemID.String(), Reason: skipItemNotFound})
					continue
				}
				return fmt.Errorf("failed to lock item: %w", err)
			}

			// Deliveries may exceed the ordered quantity; receipt is not clamped.
			line.ReceivedQty = in.ReceivedQty
			if err := s.poRepo.UpdateItem(txCtx, line); err != nil {
				return fmt.Errorf("failed to update purchase order item: %w", err)
			}
			if err := s.ledger.apply(txCtx, item, in.ReceivedQty, model.MovementIn, model.RefPurchaseOrder, &po.ID, actor, po.PONumber); err != nil {
				return err
			}
			if in.ReceivedQty > 0 {
				changed = append(changed, stockChange{ItemID: item.ID.String(), Quantity: item.Quantity})
			}
		}

		delivered := req.ActualDeliveryDate.OrNow()
		po.ActualDeliveryDate = &delivered
		po.Status = model.PurchaseOrderReceived
		if err := s.poRepo.Update(txCtx, po); err != nil {
			return fmt.Errorf("failed to update purchase order: %w", err)
		}

		audit := newAudit(actor, model.ActionReceivePurchaseOrder, po.ID.String(), po.PONumber, map[string]interface{}{
			"request": req,
			"skipped": result.SkippedLines,
		})
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}

		result.PurchaseOrder = po
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logSkipped(ctx, result)
	s.metrics.ObserveTransition("purchase_order", result.Status)
	s.notifier.Publish(EventPurchaseOrderChanged, purchaseOrderEvent(result.PurchaseOrder))
	if len(changed) > 0 {
		s.notifier.Publish(EventStockUpdated, changed)
	}
	return result, nil
}

func (s *purchaseOrderService) Cancel(ctx context.Context, actor Actor, id string) (*model.PurchaseOrder, error) {
	poID, err := parseID(id, "purchase order")
	if err != nil {
		return nil, err
	}

	var po *model.PurchaseOrder
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		po, err = s.poRepo.FindByIDForUpdate(txCtx, poID)
		if err != nil {
			return notFoundOr(err, "purchase order")
		}
		if po.Status != model.PurchaseOrderPending {
			return apperror.InvalidState("only Pending purchase orders can be cancelled, this one is %s", po.Status)
		}
		po.Status = model.PurchaseOrderCancelled
		if err := s.poRepo.Update(txCtx, po); err != nil {
			return fmt.Errorf("failed to cancel purchase order: %w", err)
		}

		audit := newAudit(actor, model.ActionCancelPurchaseOrder, po.ID.String(), po.PONumber, nil)
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveTransition("purchase_order", po.Status)
	s.notifier.Publish(EventPurchaseOrderChanged, purchaseOrderEvent(po))
	return po, nil
}

func purchaseOrderEvent(po *model.PurchaseOrder) map[string]interface{} {
	return map[string]interface{}{
		"id":       po.ID.String(),
		"poNumber": po.PONumber,
		"status":   po.Status,
	}
}
