package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"hospital-inventory/internal/middleware"
	"hospital-inventory/internal/model"
	"hospital-inventory/internal/repository"
	"hospital-inventory/internal/service"
	"hospital-inventory/internal/testutil"
	"hospital-inventory/pkg/config"
	"hospital-inventory/pkg/logger"
	"hospital-inventory/pkg/metrics"
	"hospital-inventory/pkg/response"
	"hospital-inventory/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiEnv struct {
	router *gin.Engine
	items  repository.ItemRepository
	users  service.UserService

	adminToken string
	staffToken string
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	db := testutil.NewDB(t)
	log := logger.Nop()
	tokens := token.NewManager("handler-test", 0, "hospital-inventory")
	stock := metrics.NewStockMetrics(prometheus.NewRegistry())

	items := repository.NewItemRepository(db)
	suppliers := repository.NewSupplierRepository(db)
	reqs := repository.NewRequisitionRepository(db)
	vouchers := repository.NewVoucherRepository(db)
	orders := repository.NewPurchaseOrderRepository(db)
	movements := repository.NewStockMovementRepository(db)
	usersRepo := repository.NewUserRepository(db)
	audit := repository.NewAuditRepository(db)
	tx := repository.NewTransactionManager(db)

	users := service.NewUserService(usersRepo, audit, tx, tokens, nil, config.AuthRateLimitConfig{}, log)

	r := gin.New()
	r.Use(middleware.Recovery(log))
	api := r.Group("/api/v1")
	secured := api.Group("", middleware.RequireAuth(tokens))

	userHandler := NewUserHandler(users, log)
	userHandler.RegisterPublicRoutes(api)
	userHandler.RegisterRoutes(secured)
	NewInventoryHandler(service.NewItemService(items, suppliers, movements, audit, tx, stock, nil), log).RegisterRoutes(secured)
	NewSupplierHandler(service.NewSupplierService(suppliers, audit, tx), log).RegisterRoutes(secured)
	NewRequisitionHandler(service.NewRequisitionService(reqs, vouchers, items, movements, audit, tx, stock, nil), log).RegisterRoutes(secured)
	NewIssuingHandler(service.NewIssuingService(vouchers, reqs, items, movements, audit, tx, stock, nil, log), log).RegisterRoutes(secured)
	NewPurchaseOrderHandler(service.NewPurchaseOrderService(orders, suppliers, items, movements, audit, tx, stock, nil, log), log).RegisterRoutes(secured)
	NewReportHandler(service.NewReportService(items, reqs, vouchers, orders, movements), log).RegisterRoutes(secured)
	NewAuditHandler(service.NewAuditService(audit), log).RegisterRoutes(secured)

	env := &apiEnv{router: r, items: items, users: users}
	env.adminToken = env.createUser(t, tokens, "chief", model.RoleAdmin)
	env.staffToken = env.createUser(t, tokens, "nurse", model.RoleSubordinate)
	return env
}

func (e *apiEnv) createUser(t *testing.T, tokens *token.Manager, username, role string) string {
	t.Helper()
	user, err := e.users.Create(context.Background(), service.SystemActor, service.CreateUserRequest{
		Username: username,
		Password: "password1",
		Role:     role,
	})
	require.NoError(t, err)
	tok, _, err := tokens.Generate(user.ID.String(), user.Username, user.Role)
	require.NoError(t, err)
	return tok
}

func (e *apiEnv) do(t *testing.T, method, path, tok string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// decodeData unmarshals the envelope and its data payload into out.
func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) response.Response {
	t.Helper()
	var envelope struct {
		response.Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope), w.Body.String())
	if out != nil {
		require.NoError(t, json.Unmarshal(envelope.Data, out))
	}
	return envelope.Response
}

func (e *apiEnv) createItem(t *testing.T, code string, qty int) model.Item {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/items", e.adminToken, gin.H{
		"code":         code,
		"name":         "Item " + code,
		"category":     model.CategoryMedicine,
		"quantity":     qty,
		"reorderLevel": 5,
		"unitPrice":    "1.50",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var item model.Item
	decodeData(t, w, &item)
	return item
}

func (e *apiEnv) stock(t *testing.T, item model.Item) int {
	t.Helper()
	got, err := e.items.FindByID(context.Background(), item.ID)
	require.NoError(t, err)
	return got.Quantity
}

func TestLoginAndMe(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "nurse", "password": "password1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login service.LoginResponse
	decodeData(t, w, &login)
	require.NotEmpty(t, login.Token)

	w = env.do(t, http.MethodGet, "/api/v1/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me service.MeResponse
	decodeData(t, w, &me)
	assert.Equal(t, "nurse", me.User.Username)
	assert.NotEmpty(t, me.Capabilities)

	w = env.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "nurse", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "nurse"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeData(t, w, nil).Error)
}

func TestRequisitionToVoucherFlow(t *testing.T) {
	env := newAPIEnv(t)
	gloves := env.createItem(t, "GLV-01", 10)

	w := env.do(t, http.MethodPost, "/api/v1/requisitions", env.staffToken, gin.H{
		"departmentName": "Ward A",
		"items":          []gin.H{{"itemId": gloves.ID, "requestedQty": 15}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var requisition model.Requisition
	decodeData(t, w, &requisition)
	assert.Equal(t, model.RequisitionPending, requisition.Status)

	// subordinates cannot forward
	w = env.do(t, http.MethodPut, "/api/v1/requisitions/"+requisition.ID.String()+"/forward", env.staffToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPut, "/api/v1/requisitions/"+requisition.ID.String()+"/forward", env.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodPut, "/api/v1/requisitions/"+requisition.ID.String()+"/forward", env.adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_STATE", decodeData(t, w, nil).Error)

	w = env.do(t, http.MethodPost, "/api/v1/issuing", env.adminToken, gin.H{
		"voucherId":     "IV-001",
		"requisitionId": requisition.ID,
		"issueDate":     "2024-03-01",
		"items":         []gin.H{{"itemId": gloves.ID, "requestedQty": 15, "issuedQty": 12}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var voucher service.VoucherResult
	decodeData(t, w, &voucher)
	require.Len(t, voucher.Items, 1)
	assert.Equal(t, 10, voucher.Items[0].IssuedQty)
	assert.Equal(t, 5, voucher.Items[0].Balance)
	assert.Equal(t, model.VoucherPartiallyProvided, voucher.Status)
	assert.Equal(t, 0, env.stock(t, gloves))

	w = env.do(t, http.MethodGet, "/api/v1/requisitions/"+requisition.ID.String(), env.adminToken, nil)
	decodeData(t, w, &requisition)
	assert.Equal(t, model.RequisitionIssued, requisition.Status)

	w = env.do(t, http.MethodDelete, "/api/v1/issuing/"+voucher.ID.String(), env.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10, env.stock(t, gloves))
}

func TestDeleteIssuedRequisition(t *testing.T) {
	env := newAPIEnv(t)
	gloves := env.createItem(t, "GLV-03", 10)

	w := env.do(t, http.MethodPost, "/api/v1/requisitions", env.staffToken, gin.H{
		"departmentName": "Ward C",
		"items":          []gin.H{{"itemId": gloves.ID, "requestedQty": 3}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var requisition model.Requisition
	decodeData(t, w, &requisition)

	w = env.do(t, http.MethodPut, "/api/v1/requisitions/"+requisition.ID.String()+"/forward", env.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = env.do(t, http.MethodPost, "/api/v1/issuing", env.adminToken, gin.H{
		"voucherId":     "IV-003",
		"requisitionId": requisition.ID,
		"items":         []gin.H{{"itemId": gloves.ID, "requestedQty": 3, "issuedQty": 3}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var voucher service.VoucherResult
	decodeData(t, w, &voucher)
	require.Equal(t, 7, env.stock(t, gloves))

	w = env.do(t, http.MethodDelete, "/api/v1/requisitions/"+requisition.ID.String(), env.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 10, env.stock(t, gloves))

	w = env.do(t, http.MethodGet, "/api/v1/issuing/"+voucher.ID.String(), env.adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIssuingRequiresForwardedRequisition(t *testing.T) {
	env := newAPIEnv(t)
	gloves := env.createItem(t, "GLV-02", 10)

	w := env.do(t, http.MethodPost, "/api/v1/requisitions", env.staffToken, gin.H{
		"departmentName": "Ward B",
		"items":          []gin.H{{"itemId": gloves.ID, "requestedQty": 2}},
	})
	var requisition model.Requisition
	decodeData(t, w, &requisition)

	w = env.do(t, http.MethodPost, "/api/v1/issuing", env.adminToken, gin.H{
		"voucherId":     "IV-002",
		"requisitionId": requisition.ID,
		"items":         []gin.H{{"itemId": gloves.ID, "requestedQty": 2, "issuedQty": 2}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_STATE", decodeData(t, w, nil).Error)
	assert.Equal(t, 10, env.stock(t, gloves))

	w = env.do(t, http.MethodGet, "/api/v1/issuing", env.staffToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPurchaseOrderReceiveWithEmptyBody(t *testing.T) {
	env := newAPIEnv(t)
	syringes := env.createItem(t, "SYR-05", 5)

	w := env.do(t, http.MethodPost, "/api/v1/suppliers", env.adminToken, gin.H{"name": "MedSupply", "email": "orders@medsupply.test"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var supplier model.Supplier
	decodeData(t, w, &supplier)

	w = env.do(t, http.MethodPost, "/api/v1/purchase-orders", env.adminToken, gin.H{
		"poNumber":   "PO-100",
		"supplierId": supplier.ID,
		"items":      []gin.H{{"itemId": syringes.ID, "orderedQty": 20, "unitPrice": 2.5}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var order service.PurchaseOrderResult
	decodeData(t, w, &order)
	assert.True(t, decimal.NewFromInt(50).Equal(order.TotalAmount), order.TotalAmount.String())

	req := httptest.NewRequest(http.MethodPut, "/api/v1/purchase-orders/"+order.ID.String()+"/receive", nil)
	req.Header.Set("Authorization", "Bearer "+env.adminToken)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 25, env.stock(t, syringes))

	w = env.do(t, http.MethodPut, "/api/v1/purchase-orders/"+order.ID.String()+"/receive", env.adminToken, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "ALREADY_RECEIVED", decodeData(t, w, nil).Error)
}

func TestErrorMapping(t *testing.T) {
	env := newAPIEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   interface{}
		status int
		code   string
	}{
		{"no token", http.MethodGet, "/api/v1/items", "", nil, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"bad id", http.MethodGet, "/api/v1/items/not-a-uuid", env.adminToken, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing item", http.MethodGet, "/api/v1/items/00000000-0000-0000-0000-000000000001", env.adminToken, nil, http.StatusNotFound, "NOT_FOUND"},
		{"staff deletes item", http.MethodDelete, "/api/v1/items/00000000-0000-0000-0000-000000000001", env.staffToken, nil, http.StatusForbidden, "FORBIDDEN"},
		{"staff lists users", http.MethodGet, "/api/v1/users", env.staffToken, nil, http.StatusForbidden, "FORBIDDEN"},
		{"negative quantity", http.MethodPost, "/api/v1/items", env.adminToken, gin.H{"code": "X", "name": "X", "category": "medicine", "quantity": -1}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad lowStock flag", http.MethodGet, "/api/v1/items?lowStock=maybe", env.adminToken, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"reversed report range", http.MethodGet, "/api/v1/reports/summary?startDate=2024-02-01&endDate=2024-01-01", env.adminToken, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			res := decodeData(t, w, nil)
			assert.Equal(t, "error", res.Status)
			assert.Equal(t, tt.code, res.Error)
		})
	}
}

func TestReportsAndAuditLogs(t *testing.T) {
	env := newAPIEnv(t)
	env.createItem(t, "LOW-01", 2)
	env.createItem(t, "OK-01", 50)

	w := env.do(t, http.MethodGet, "/api/v1/reports/low-stock", env.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Items []model.Item `json:"items"`
		Total int64        `json:"total"`
	}
	decodeData(t, w, &page)
	assert.EqualValues(t, 1, page.Total)
	assert.Equal(t, "LOW-01", page.Items[0].Code)

	w = env.do(t, http.MethodGet, "/api/v1/reports/summary", env.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var summary model.InventorySummary
	decodeData(t, w, &summary)
	assert.EqualValues(t, 2, summary.ItemCount)
	assert.EqualValues(t, 52, summary.TotalUnits)
	assert.Contains(t, summary.RequisitionsByStatus, model.RequisitionPending)

	w = env.do(t, http.MethodGet, "/api/v1/audit-logs?action="+model.ActionCreateItem, env.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var logs struct {
		Items []service.AuditLogResponse `json:"items"`
		Total int64                      `json:"total"`
	}
	decodeData(t, w, &logs)
	assert.EqualValues(t, 2, logs.Total)
	assert.Equal(t, "chief", logs.Items[0].Username)
}
