package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"hospital-inventory/internal/model"
	"hospital-inventory/pkg/apperror"

	"github.com/google/uuid"
)

// Actor is the authenticated caller as seen by services.
type Actor struct {
	UserID string
	Role   string
}

// ID returns the actor's user id, or nil for system actions and unparsable ids.
func (a Actor) ID() *uuid.UUID {
	if parsed, err := uuid.Parse(a.UserID); err == nil {
		return &parsed
	}
	return nil
}

// SystemActor is used by seeding and other unattended jobs.
var SystemActor = Actor{Role: model.RoleAdmin}

// StockNotifier receives stock change events after a transaction commits.
type StockNotifier interface {
	Publish(event string, data interface{})
}

const (
	EventStockUpdated         = "stock.updated"
	EventRequisitionChanged   = "requisition.changed"
	EventVoucherChanged       = "voucher.changed"
	EventPurchaseOrderChanged = "purchase_order.changed"
)

type noopNotifier struct{}

func (noopNotifier) Publish(string, interface{}) {}

func notifierOrNoop(n StockNotifier) StockNotifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}

// SkippedLine reports an input line that was ignored, e.g. because its item
// no longer exists.
type SkippedLine struct {
	Index  int    `json:"index"`
	ID     string `json:"id,omitempty"`
	ItemID string `json:"itemId,omitempty"`
	Reason string `json:"reason"`
}

const (
	skipItemNotFound = "item not found"
	skipLineNotFound = "line not found on this document"
)

// Date accepts either a plain calendar date (2006-01-02) or an RFC3339 timestamp.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t
			return nil
		}
	}
	return fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC3339", s)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Time)
}

// NewDate wraps t; handy in tests and internal callers.
func NewDate(t time.Time) *Date {
	return &Date{Time: t}
}

// OrNow returns the date, or the current time when unset.
func (d *Date) OrNow() time.Time {
	if d == nil || d.IsZero() {
		return time.Now()
	}
	return d.Time
}

// Ptr returns nil for an unset date.
func (d *Date) Ptr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

func parseID(raw, entity string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperror.Validation(fmt.Sprintf("invalid %s id %q", entity, raw))
	}
	return id, nil
}

// notFoundOr maps gorm's not-found to a NOT_FOUND app error and wraps anything else.
func notFoundOr(err error, entity string) error {
	if apperror.IsNotFound(err) {
		return apperror.NotFound(entity)
	}
	return fmt.Errorf("failed to load %s: %w", entity, err)
}

// duplicateOr maps unique violations to VALIDATION_ERROR.
func duplicateOr(err error, msg string) error {
	if apperror.IsUniqueViolation(err) {
		return apperror.Validation(msg)
	}
	return fmt.Errorf("%s: %w", "write failed", err)
}

func newAudit(actor Actor, action, entityID, entityName string, details interface{}) *model.AuditLog {
	payload, _ := json.Marshal(details)
	return &model.AuditLog{
		UserID:     actor.ID(),
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(payload),
	}
}
