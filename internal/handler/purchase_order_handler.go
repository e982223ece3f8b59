package handler

import (
	"net/http"

	"hospital-inventory/internal/access"
	"hospital-inventory/internal/middleware"
	"hospital-inventory/internal/service"
	"hospital-inventory/pkg/logger"
	"hospital-inventory/pkg/pagination"
	"hospital-inventory/pkg/response"

	"github.com/gin-gonic/gin"
)

type PurchaseOrderHandler struct {
	purchaseOrderService service.PurchaseOrderService
	log                  *logger.Logger
}

func NewPurchaseOrderHandler(purchaseOrderService service.PurchaseOrderService, log *logger.Logger) *PurchaseOrderHandler {
	return &PurchaseOrderHandler{purchaseOrderService: purchaseOrderService, log: log}
}

func (h *PurchaseOrderHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/purchase-orders")
	{
		group.GET("", middleware.RequireCapability(access.PurchaseOrdersRead), h.ListPurchaseOrders)
		group.GET("/:id", middleware.RequireCapability(access.PurchaseOrdersRead), h.GetPurchaseOrder)
		group.POST("", middleware.RequireCapability(access.PurchaseOrdersManage), h.CreatePurchaseOrder)
		group.PUT("/:id/receive", middleware.RequireCapability(access.PurchaseOrdersManage), h.ReceivePurchaseOrder)
		group.PUT("/:id/cancel", middleware.RequireCapability(access.PurchaseOrdersManage), h.CancelPurchaseOrder)
	}
}

// ListPurchaseOrders returns purchase orders
// @Summary      List purchase orders
// @Tags         purchase-orders
// @Security     BearerAuth
// @Produce      json
// @Param        status      query     string  false  "Pending, Received or Cancelled"
// @Param        supplierId  query     string  false  "Filter by supplier"
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        limit       query     int     false  "Items per page (default 20)"
// @Success      200         {object}  response.Response{data=response.Paginated}
// @Router       /api/v1/purchase-orders [get]
func (h *PurchaseOrderHandler) ListPurchaseOrders(c *gin.Context) {
	p := pagination.Parse(c)
	orders, total, err := h.purchaseOrderService.List(c.Request.Context(), service.PurchaseOrderListQuery{
		Status:     c.Query("status"),
		SupplierID: c.Query("supplierId"),
		Page:       p.Page,
		Limit:      p.Limit,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.Wrap(orders, total)))
}

// GetPurchaseOrder returns one purchase order with its lines
// @Summary      Get purchase order
// @Tags         purchase-orders
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Purchase order ID"
// @Success      200  {object}  response.Response{data=model.PurchaseOrder}
// @Failure      404  {object}  response.Response
// @Router       /api/v1/purchase-orders/{id} [get]
func (h *PurchaseOrderHandler) GetPurchaseOrder(c *gin.Context) {
	order, err := h.purchaseOrderService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// CreatePurchaseOrder places a Pending order with a supplier
// @Summary      Create purchase order
// @Tags         purchase-orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreatePurchaseOrderRequest  true  "Purchase order"
// @Success      201      {object}  response.Response{data=service.PurchaseOrderResult}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/v1/purchase-orders [post]
func (h *PurchaseOrderHandler) CreatePurchaseOrder(c *gin.Context) {
	var req service.CreatePurchaseOrderRequest
	if err := bindJSON(c, &req, false); err != nil {
		respondError(c, h.log, err)
		return
	}

	result, err := h.purchaseOrderService.Create(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// ReceivePurchaseOrder books delivered goods into stock
// @Summary      Receive purchase order
// @Description  An empty body receives every line at its ordered quantity.
// @Tags         purchase-orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                               true   "Purchase order ID"
// @Param        payload  body      service.ReceivePurchaseOrderRequest  false  "Received lines"
// @Success      200      {object}  response.Response{data=service.PurchaseOrderResult}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/v1/purchase-orders/{id}/receive [put]
func (h *PurchaseOrderHandler) ReceivePurchaseOrder(c *gin.Context) {
	var req service.ReceivePurchaseOrderRequest
	if err := bindJSON(c, &req, true); err != nil {
		respondError(c, h.log, err)
		return
	}

	result, err := h.purchaseOrderService.Receive(c.Request.Context(), actorFrom(c), c.Param("id"), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// CancelPurchaseOrder cancels a Pending order
// @Summary      Cancel purchase order
// @Tags         purchase-orders
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Purchase order ID"
// @Success      200  {object}  response.Response{data=model.PurchaseOrder}
// @Failure      400  {object}  response.Response
// @Router       /api/v1/purchase-orders/{id}/cancel [put]
func (h *PurchaseOrderHandler) CancelPurchaseOrder(c *gin.Context) {
	order, err := h.purchaseOrderService.Cancel(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}
