package service

import (
	"context"
	"fmt"

	"hospital-inventory/internal/model"
	"hospital-inventory/internal/repository"
	"hospital-inventory/pkg/apperror"
	"hospital-inventory/pkg/metrics"

	"github.com/google/uuid"
)

// stockLedger applies quantity changes to locked item rows and writes the
// matching stock card entry. It must run inside a transaction.
type stockLedger struct {
	items     repository.ItemRepository
	movements repository.StockMovementRepository
	metrics   *metrics.StockMetrics
}

func newStockLedger(items repository.ItemRepository, movements repository.StockMovementRepository, m *metrics.StockMetrics) *stockLedger {
	return &stockLedger{items: items, movements: movements, metrics: m}
}

type stockChange struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

// apply adds delta (signed) to item.Quantity, persists it and records a
// movement. A zero delta is a no-op.
func (l *stockLedger) apply(ctx context.Context, item *model.Item, delta int, movementType, refType string, refID *uuid.UUID, actor Actor, note string) error {
	if delta == 0 {
		return nil
	}
	item.Quantity += delta
	if err := l.items.UpdateQuantity(ctx, item.ID, item.Quantity); err != nil {
		return fmt.Errorf("failed to update stock of %s: %w", item.Code, err)
	}

	movement := &model.StockMovement{
		ItemID:          item.ID,
		MovementType:    movementType,
		QuantityChanged: delta,
		StockAfter:      item.Quantity,
		ReferenceType:   refType,
		ReferenceID:     refID,
		CreatedByID:     actor.ID(),
		Note:            note,
	}
	if err := l.movements.Create(ctx, movement); err != nil {
		return fmt.Errorf("failed to write stock movement: %w", err)
	}
	l.metrics.ObserveMovement(movementType, refType, delta)
	return nil
}

// movementTypeFor picks IN or OUT by the sign of delta.
func movementTypeFor(delta int) string {
	if delta > 0 {
		return model.MovementIn
	}
	return model.MovementOut
}

// reverseVoucher puts the voucher's issued stock back on the shelf and removes
// the voucher with its lines. Lines whose item no longer exists are skipped.
func (l *stockLedger) reverseVoucher(ctx context.Context, vouchers repository.VoucherRepository, voucher *model.IssuingVoucher, actor Actor, note string) ([]stockChange, error) {
	var changed []stockChange
	for _, line := range voucher.Items {
		if line.IssuedQty == 0 {
			continue
		}
		item, err := l.items.FindByIDForUpdate(ctx, line.ItemID)
		if err != nil {
			if apperror.IsNotFound(err) {
				continue
			}
			return nil, fmt.Errorf("failed to lock item: %w", err)
		}
		if err := l.apply(ctx, item, line.IssuedQty, model.MovementIn, model.RefIssuingVoucher, &voucher.ID, actor, note); err != nil {
			return nil, err
		}
		changed = append(changed, stockChange{ItemID: item.ID.String(), Quantity: item.Quantity})
	}

	if err := vouchers.DeleteItems(ctx, voucher.ID); err != nil {
		return nil, fmt.Errorf("failed to delete issuing items: %w", err)
	}
	if err := vouchers.Delete(ctx, voucher.ID); err != nil {
		return nil, fmt.Errorf("failed to delete issuing voucher: %w", err)
	}
	return changed, nil
}
