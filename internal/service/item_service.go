package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"hospital-inventory/internal/model"
	"hospital-inventory/internal/repository"
	"hospital-inventory/pkg/apperror"
	"hospital-inventory/pkg/metrics"
	"hospital-inventory/pkg/pagination"
	"hospital-inventory/pkg/validator"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- Item DTOs ---

type CreateItemRequest struct {
	Code         string          `json:"code" binding:"required,max=100"`
	Name         string          `json:"name" binding:"required,max=255"`
	Category     string          `json:"category" binding:"required"`
	Description  string          `json:"description"`
	Quantity     int             `json:"quantity" binding:"gte=0"`
	Unit         string          `json:"unit" binding:"max=50"`
	ReorderLevel int             `json:"reorderLevel" binding:"gte=0"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	SupplierID   *uuid.UUID      `json:"supplierId"`
}

type UpdateItemRequest struct {
	Code         *string          `json:"code" binding:"omitempty,min=1,max=100"`
	Name         *string          `json:"name" binding:"omitempty,min=1,max=255"`
	Category     *string          `json:"category"`
	Description  *string          `json:"description"`
	Quantity     *int             `json:"quantity" binding:"omitempty,gte=0"`
	Unit         *string          `json:"unit" binding:"omitempty,max=50"`
	ReorderLevel *int             `json:"reorderLevel" binding:"omitempty,gte=0"`
	UnitPrice    *decimal.Decimal `json:"unitPrice"`
	SupplierID   *uuid.UUID       `json:"supplierId"`
}

type ItemListQuery struct {
	Search     string
	Category   string
	SupplierID string
	LowStock   bool
	Page       int
	Limit      int
}

type ItemService interface {
	Create(ctx context.Context, actor Actor, req CreateItemRequest) (*model.Item, error)
	Get(ctx context.Context, id string) (*model.Item, error)
	List(ctx context.Context, q ItemListQuery) ([]model.Item, int64, error)
	Update(ctx context.Context, actor Actor, id string, req UpdateItemRequest) (*model.Item, error)
	Delete(ctx context.Context, actor Actor, id string) error
	Movements(ctx context.Context, id string, page, limit int) ([]model.StockMovement, int64, error)
}

type itemService struct {
	itemRepo     repository.ItemRepository
	supplierRepo repository.SupplierRepository
	movementRepo repository.StockMovementRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	ledger       *stockLedger
	notifier     StockNotifier
}

func NewItemService(
	itemRepo repository.ItemRepository,
	supplierRepo repository.SupplierRepository,
	movementRepo repository.StockMovementRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	m *metrics.StockMetrics,
	notifier StockNotifier,
) ItemService {
	return &itemService{
		itemRepo:     itemRepo,
		supplierRepo: supplierRepo,
		movementRepo: movementRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		ledger:       newStockLedger(itemRepo, movementRepo, m),
		notifier:     notifierOrNoop(notifier),
	}
}

func validCategory(category string) error {
	if !slices.Contains(model.ItemCategories, category) {
		return apperror.Validation(fmt.Sprintf("category must be one of %s", strings.Join(model.ItemCategories, ", ")))
	}
	return nil
}

func (s *itemService) checkSupplier(ctx context.Context, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	if _, err := s.supplierRepo.FindByID(ctx, *id); err != nil {
		return notFoundOr(err, "supplier")
	}
	return nil
}

func (s *itemService) Create(ctx context.Context, actor Actor, req CreateItemRequest) (*model.Item, error) {
	if err := validator.Struct(req); err != nil {
		return nil, err
	}
	if err := validCategory(req.Category); err != nil {
		return nil, err
	}
	if req.UnitPrice.IsNegative() {
		return nil, apperror.Validation("unitPrice must not be negative")
	}

	item := &model.Item{
		Code:         strings.TrimSpace(req.Code),
		Name:         strings.TrimSpace(req.Name),
		Category:     req.Category,
		Description:  req.Description,
		Unit:         req.Unit,
		ReorderLevel: req.ReorderLevel,
		UnitPrice:    req.UnitPrice,
		SupplierID:   req.SupplierID,
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.checkSupplier(txCtx, req.SupplierID); err != nil {
			return err
		}
		if err := s.itemRepo.Create(txCtx, item); err != nil {
			return duplicateOr(err, fmt.Sprintf("item code %q already exists", item.Code))
		}
		// Opening stock goes through the ledger so the stock card starts at the right balance.
		if err := s.ledger.apply(txCtx, item, req.Quantity, model.MovementAdjust, model.RefItem, &item.ID, actor, "opening balance"); err != nil {
			return err
		}

		audit := newAudit(actor, model.ActionCreateItem, item.ID.String(), item.Name, req)
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if item.Quantity != 0 {
		s.notifier.Publish(EventStockUpdated, []stockChange{{ItemID: item.ID.String(), Quantity: item.Quantity}})
	}
	return item, nil
}

func (s *itemService) Get(ctx context.Context, id string) (*model.Item, error) {
	itemID, err := parseID(id, "item")
	if err != nil {
		return nil, err
	}
	item, err := s.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		return nil, notFoundOr(err, "item")
	}
	return item, nil
}

func (s *itemService) List(ctx context.Context, q ItemListQuery) ([]model.Item, int64, error) {
	p := pagination.New(q.Page, q.Limit)
	filter := repository.ItemFilter{
		Search:   strings.TrimSpace(q.Search),
		Category: q.Category,
		LowStock: q.LowStock,
		Page:     p.Page,
		Limit:    p.Limit,
	}
	if q.SupplierID != "" {
		supplierID, err := parseID(q.SupplierID, "supplier")
		if err != nil {
			return nil, 0, err
		}
		filter.SupplierID = &supplierID
	}

	items, total, err := s.itemRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list items: %w", err)
	}
	return items, total, nil
}

func (s *itemService) Update(ctx context.Context, actor Actor, id string, req UpdateItemRequest) (*model.Item, error) {
	if err := validator.Struct(req); err != nil {
		return nil, err
	}
	itemID, err := parseID(id, "item")
	if err != nil {
		return nil, err
	}
	if req.Category != nil {
		if err := validCategory(*req.Category); err != nil {
			return nil, err
		}
	}
	if req.UnitPrice != nil && req.UnitPrice.IsNegative() {
		return nil, apperror.Validation("unitPrice must not be negative")
	}

	var item *model.Item
	var stockChanged bool
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		item, err = s.itemRepo.FindByIDForUpdate(txCtx, itemID)
		if err != nil {
			return notFoundOr(err, "item")
		}

		if req.Code != nil {
			item.Code = strings.TrimSpace(*req.Code)
		}
		if req.Name != nil {
			item.Name = strings.TrimSpace(*req.Name)
		}
		if req.Category != nil {
			item.Category = *req.Category
		}
		if req.Description != nil {
			item.Description = *req.Description
		}
		if req.Unit != nil {
			item.Unit = *req.Unit
		}
		if req.ReorderLevel != nil {
			item.ReorderLevel = *req.ReorderLevel
		}
		if req.UnitPrice != nil {
			item.UnitPrice = *req.UnitPrice
		}
		if req.SupplierID != nil {
			if err := s.checkSupplier(txCtx, req.SupplierID); err != nil {
				return err
			}
			item.SupplierID = req.SupplierID
		}
		if err := s.itemRepo.Update(txCtx, item); err != nil {
			return duplicateOr(err, fmt.Sprintf("item code %q already exists", item.Code))
		}

		// A direct quantity edit is a stock adjustment and is recorded as such.
		if req.Quantity != nil && *req.Quantity != item.Quantity {
			delta := *req.Quantity - item.Quantity
			if err := s.ledger.apply(txCtx, item, delta, model.MovementAdjust, model.RefItem, &item.ID, actor, "manual adjustment"); err != nil {
				return err
			}
			stockChanged = true
			audit := newAudit(actor, model.ActionAdjustStock, item.ID.String(), item.Name, map[string]int{"delta": delta, "quantity": item.Quantity})
			if err := s.auditRepo.Log(txCtx, audit); err != nil {
				return fmt.Errorf("failed to write audit log: %w", err)
			}
		}

		audit := newAudit(actor, model.ActionUpdateItem, item.ID.String(), item.Name, req)
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if stockChanged {
		s.notifier.Publish(EventStockUpdated, []stockChange{{ItemID: item.ID.String(), Quantity: item.Quantity}})
	}
	return item, nil
}

func (s *itemService) Delete(ctx context.Context, actor Actor, id string) error {
	itemID, err := parseID(id, "item")
	if err != nil {
		return err
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		item, err := s.itemRepo.FindByID(txCtx, itemID)
		if err != nil {
			return notFoundOr(err, "item")
		}
		if err := s.itemRepo.Delete(txCtx, item.ID); err != nil {
			return fmt.Errorf("failed to delete item: %w", err)
		}

		audit := newAudit(actor, model.ActionDeleteItem, item.ID.String(), item.Name, map[string]interface{}{
			"code":     item.Code,
			"quantity": item.Quantity,
		})
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
}

func (s *itemService) Movements(ctx context.Context, id string, page, limit int) ([]model.StockMovement, int64, error) {
	itemID, err := parseID(id, "item")
	if err != nil {
		return nil, 0, err
	}
	if _, err := s.itemRepo.FindByID(ctx, itemID); err != nil {
		return nil, 0, notFoundOr(err, "item")
	}

	p := pagination.New(page, limit)
	movements, total, err := s.movementRepo.ListByItem(ctx, itemID, p.Page, p.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list stock movements: %w", err)
	}
	return movements, total, nil
}
