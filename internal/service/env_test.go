package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"hospital-inventory/internal/model"
	"hospital-inventory/internal/repository"
	"hospital-inventory/internal/testutil"
	"hospital-inventory/pkg/config"
	"hospital-inventory/pkg/metrics"
	"hospital-inventory/pkg/token"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Publish(event string, _ interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) has(event string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.events {
		if e == event {
			return true
		}
	}
	return false
}

type testEnv struct {
	db        *gorm.DB
	items     repository.ItemRepository
	suppliers repository.SupplierRepository
	reqs      repository.RequisitionRepository
	vouchers  repository.VoucherRepository
	orders    repository.PurchaseOrderRepository
	movements repository.StockMovementRepository
	users     repository.UserRepository
	audit     repository.AuditRepository
	tx        repository.TransactionManager
	notifier  *recordingNotifier
	metrics   *metrics.StockMetrics
	tokens    *token.Manager

	admin Actor
	staff Actor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	env := &testEnv{
		db:        db,
		items:     repository.NewItemRepository(db),
		suppliers: repository.NewSupplierRepository(db),
		reqs:      repository.NewRequisitionRepository(db),
		vouchers:  repository.NewVoucherRepository(db),
		orders:    repository.NewPurchaseOrderRepository(db),
		movements: repository.NewStockMovementRepository(db),
		users:     repository.NewUserRepository(db),
		audit:     repository.NewAuditRepository(db),
		tx:        repository.NewTransactionManager(db),
		notifier:  &recordingNotifier{},
		metrics:   metrics.NewStockMetrics(prometheus.NewRegistry()),
		tokens:    token.NewManager("test-secret", 0, "hospital-inventory"),
	}
	env.admin = env.seedActor(t, "env.admin", model.RoleAdmin)
	env.staff = env.seedActor(t, "env.staff", model.RoleSubordinate)
	return env
}

// seedActor stores a user so rows referencing the actor satisfy foreign keys.
func (e *testEnv) seedActor(t *testing.T, username, role string) Actor {
	t.Helper()
	user := &model.User{Username: username, Password: "x", FullName: username, Role: role, IsActive: true}
	require.NoError(t, e.users.Create(context.Background(), user))
	return Actor{UserID: user.ID.String(), Role: role}
}

func (e *testEnv) requisitionService() RequisitionService {
	return NewRequisitionService(e.reqs, e.vouchers, e.items, e.movements, e.audit, e.tx, e.metrics, e.notifier)
}

func (e *testEnv) issuingService() IssuingService {
	return NewIssuingService(e.vouchers, e.reqs, e.items, e.movements, e.audit, e.tx, e.metrics, e.notifier, nil)
}

func (e *testEnv) purchaseOrderService() PurchaseOrderService {
	return NewPurchaseOrderService(e.orders, e.suppliers, e.items, e.movements, e.audit, e.tx, e.metrics, e.notifier, nil)
}

func (e *testEnv) itemService() ItemService {
	return NewItemService(e.items, e.suppliers, e.movements, e.audit, e.tx, e.metrics, e.notifier)
}

func (e *testEnv) userService(limiter RateLimiter) UserService {
	limits := config.AuthRateLimitConfig{}
	if limiter != nil {
		limits = config.AuthRateLimitConfig{LoginWindow: time.Minute, LoginIPLimit: 20, LoginUserLimit: 2}
	}
	return NewUserService(e.users, e.audit, e.tx, e.tokens, limiter, limits, nil)
}

func (e *testEnv) seedItem(t *testing.T, code string, qty int) *model.Item {
	t.Helper()
	item := &model.Item{
		Code:         code,
		Name:         "Item " + code,
		Category:     model.CategoryMedicine,
		Quantity:     qty,
		ReorderLevel: 5,
		UnitPrice:    decimal.NewFromInt(1),
	}
	require.NoError(t, e.items.Create(context.Background(), item))
	return item
}

func (e *testEnv) seedSupplier(t *testing.T, name string) *model.Supplier {
	t.Helper()
	supplier := &model.Supplier{Name: name, IsActive: true}
	require.NoError(t, e.suppliers.Create(context.Background(), supplier))
	return supplier
}

func (e *testEnv) quantity(t *testing.T, id uuid.UUID) int {
	t.Helper()
	item, err := e.items.FindByID(context.Background(), id)
	require.NoError(t, err)
	return item.Quantity
}

// forwardedRequisition creates a requisition for the given items and forwards it.
func (e *testEnv) forwardedRequisition(t *testing.T, department string, lines ...RequisitionLineRequest) *model.Requisition {
	t.Helper()
	ctx := context.Background()
	svc := e.requisitionService()
	req, err := svc.Create(ctx, e.staff, CreateRequisitionRequest{DepartmentName: department, Items: lines})
	require.NoError(t, err)
	req, err = svc.Forward(ctx, e.admin, req.ID.String())
	require.NoError(t, err)
	return req
}

func repositoryAll() repository.RequisitionFilter {
	return repository.RequisitionFilter{Page: 1, Limit: 100}
}

func mustField(t *testing.T, raw []byte, key string) []byte {
	t.Helper()
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &fields))
	return fields[key]
}
