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

type InventoryHandler struct {
	itemService service.ItemService
	log         *logger.Logger
}

func NewInventoryHandler(itemService service.ItemService, log *logger.Logger) *InventoryHandler {
	return &InventoryHandler{itemService: itemService, log: log}
}

func (h *InventoryHandler) RegisterRoutes(router *gin.RouterGroup) {
	items := router.Group("/items")
	{
		items.GET("", middleware.RequireCapability(access.ItemsRead), h.GetItems)
		items.GET("/:id", middleware.RequireCapability(access.ItemsRead), h.GetItem)
		items.GET("/:id/movements", middleware.RequireCapability(access.ItemsRead), h.GetItemMovements)
		items.POST("", middleware.RequireCapability(access.ItemsCreate), h.CreateItem)
		items.PUT("/:id", middleware.RequireCapability(access.ItemsManage), h.UpdateItem)
		items.DELETE("/:id", middleware.RequireCapability(access.ItemsManage), h.DeleteItem)
	}
}

// GetItems handles retrieving paginated stock levels
// @Summary      List items
// @Description  Retrieves a paginated list of items with current stock
// @Tags         items
// @Security     BearerAuth
// @Produce      json
// @Param        search      query     string  false  "Search by code or name"
// @Param        category    query     string  false  "Item category"
// @Param        supplierId  query     string  false  "Filter by supplier"
// @Param        lowStock    query     bool    false  "Only items at or below their reorder level"
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        limit       query     int     false  "Number of items per page (default 20)"
// @Success      200         {object}  response.Response{data=response.Paginated}
// @Failure      400         {object}  response.Response
// @Router       /api/v1/items [get]
func (h *InventoryHandler) GetItems(c *gin.Context) {
	lowStock, err := queryBool(c, "lowStock")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	p := pagination.Parse(c)
	items, total, err := h.itemService.List(c.Request.Context(), service.ItemListQuery{
		Search:     c.Query("search"),
		Category:   c.Query("category"),
		SupplierID: c.Query("supplierId"),
		LowStock:   lowStock != nil && *lowStock,
		Page:       p.Page,
		Limit:      p.Limit,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.Wrap(items, total)))
}

// GetItem returns one item
// @Summary      Get item
// @Tags         items
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Item ID"
// @Success      200  {object}  response.Response{data=model.Item}
// @Failure      404  {object}  response.Response
// @Router       /api/v1/items/{id} [get]
func (h *InventoryHandler) GetItem(c *gin.Context) {
	item, err := h.itemService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, item))
}

// GetItemMovements returns the stock ledger of one item, newest first
// @Summary      Item stock movements
// @Tags         items
// @Security     BearerAuth
// @Produce      json
// @Param        id     path      string  true   "Item ID"
// @Param        page   query     int     false  "Page number (default 1)"
// @Param        limit  query     int     false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=response.Paginated}
// @Failure      404    {object}  response.Response
// @Router       /api/v1/items/{id}/movements [get]
func (h *InventoryHandler) GetItemMovements(c *gin.Context) {
	p := pagination.Parse(c)
	movements, total, err := h.itemService.Movements(c.Request.Context(), c.Param("id"), p.Page, p.Limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.Wrap(movements, total)))
}

// CreateItem adds an item with its opening balance
// @Summary      Create item
// @Tags         items
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateItemRequest  true  "Item"
// @Success      201      {object}  response.Response{data=model.Item}
// @Failure      400      {object}  response.Response
// @Router       /api/v1/items [post]
func (h *InventoryHandler) CreateItem(c *gin.Context) {
	var req service.CreateItemRequest
	if err := bindJSON(c, &req, false); err != nil {
		respondError(c, h.log, err)
		return
	}

	item, err := h.itemService.Create(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, item))
}

// UpdateItem edits item details; a quantity change is booked as an adjustment
// @Summary      Update item
// @Tags         items
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Item ID"
// @Param        payload  body      service.UpdateItemRequest  true  "Fields to change"
// @Success      200      {object}  response.Response{data=model.Item}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/v1/items/{id} [put]
func (h *InventoryHandler) UpdateItem(c *gin.Context) {
	var req service.UpdateItemRequest
	if err := bindJSON(c, &req, false); err != nil {
		respondError(c, h.log, err)
		return
	}

	item, err := h.itemService.Update(c.Request.Context(), actorFrom(c), c.Param("id"), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, item))
}

// DeleteItem removes an item
// @Summary      Delete item
// @Tags         items
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Item ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/v1/items/{id} [delete]
func (h *InventoryHandler) DeleteItem(c *gin.Context) {
	if err := h.itemService.Delete(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Message(http.StatusOK, "Item deleted successfully"))
}
