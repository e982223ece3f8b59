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

type RequisitionHandler struct {
	requisitionService service.RequisitionService
	log                *logger.Logger
}

func NewRequisitionHandler(requisitionService service.RequisitionService, log *logger.Logger) *RequisitionHandler {
	return &RequisitionHandler{requisitionService: requisitionService, log: log}
}

// RegisterRoutes expects an authenticated group.
func (h *RequisitionHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/requisitions")
	{
		group.GET("", middleware.RequireCapability(access.RequisitionsRead), h.ListRequisitions)
		group.GET("/:id", middleware.RequireCapability(access.RequisitionsRead), h.GetRequisition)
		group.POST("", middleware.RequireCapability(access.RequisitionsCreate), h.CreateRequisition)
		group.PUT("/:id", middleware.RequireCapability(access.RequisitionsManage), h.UpdateRequisition)
		group.PUT("/:id/forward", middleware.RequireCapability(access.RequisitionsManage), h.ForwardRequisition)
		group.PUT("/:id/cancel", middleware.RequireCapability(access.RequisitionsManage), h.CancelRequisition)
		group.DELETE("/:id", middleware.RequireCapability(access.RequisitionsManage), h.DeleteRequisition)
	}
}

// ListRequisitions returns requisitions, scoped to the caller for subordinates
// @Summary      List requisitions
// @Tags         requisitions
// @Security     BearerAuth
// @Produce      json
// @Param        status      query     string  false  "Pending, Forwarded, Issued or Cancelled"
// @Param        department  query     string  false  "Department name contains"
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        limit       query     int     false  "Items per page (default 20)"
// @Success      200         {object}  response.Response{data=response.Paginated}
// @Router       /api/v1/requisitions [get]
func (h *RequisitionHandler) ListRequisitions(c *gin.Context) {
	p := pagination.Parse(c)
	reqs, total, err := h.requisitionService.List(c.Request.Context(), actorFrom(c), service.RequisitionListQuery{
		Status:     c.Query("status"),
		Department: c.Query("department"),
		Page:       p.Page,
		Limit:      p.Limit,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.Wrap(reqs, total)))
}

// GetRequisition returns one requisition with its lines
// @Summary      Get requisition
// @Tags         requisitions
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Requisition ID"
// @Success      200  {object}  response.Response{data=model.Requisition}
// @Failure      404  {object}  response.Response
// @Router       /api/v1/requisitions/{id} [get]
func (h *RequisitionHandler) GetRequisition(c *gin.Context) {
	req, err := h.requisitionService.Get(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, req))
}

// CreateRequisition submits a department request for items
// @Summary      Create requisition
// @Description  Creates a Pending requisition. Item names are snapshotted on each line.
// @Tags         requisitions
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateRequisitionRequest  true  "Requisition"
// @Success      201      {object}  response.Response{data=model.Requisition}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/v1/requisitions [post]
func (h *RequisitionHandler) CreateRequisition(c *gin.Context) {
	var req service.CreateRequisitionRequest
	if err := bindJSON(c, &req, false); err != nil {
		respondError(c, h.log, err)
		return
	}

	requisition, err := h.requisitionService.Create(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, requisition))
}

// UpdateRequisition edits a Pending requisition
// @Summary      Update requisition
// @Description  Partial update. When items is sent the lines are replaced.
// @Tags         requisitions
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                            true  "Requisition ID"
// @Param        payload  body      service.UpdateRequisitionRequest  true  "Fields to change"
// @Success      200      {object}  response.Response{data=model.Requisition}
// @Failure      400      {object}  response.Response
// @Router       /api/v1/requisitions/{id} [put]
func (h *RequisitionHandler) UpdateRequisition(c *gin.Context) {
	var req service.UpdateRequisitionRequest
	if err := bindJSON(c, &req, false); err != nil {
		respondError(c, h.log, err)
		return
	}

	requisition, err := h.requisitionService.Update(c.Request.Context(), actorFrom(c), c.Param("id"), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, requisition))
}

// ForwardRequisition moves a Pending requisition to Forwarded
// @Summary      Forward requisition
// @Tags         requisitions
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Requisition ID"
// @Success      200  {object}  response.Response{data=model.Requisition}
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/v1/requisitions/{id}/forward [put]
func (h *RequisitionHandler) ForwardRequisition(c *gin.Context) {
	requisition, err := h.requisitionService.Forward(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, requisition))
}

// CancelRequisition cancels any requisition that has not been issued
// @Summary      Cancel requisition
// @Tags         requisitions
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Requisition ID"
// @Success      200  {object}  response.Response{data=model.Requisition}
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/v1/requisitions/{id}/cancel [put]
func (h *RequisitionHandler) CancelRequisition(c *gin.Context) {
	requisition, err := h.requisitionService.Cancel(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, requisition))
}

// DeleteRequisition removes a requisition and its lines
// @Summary      Delete requisition
// @Tags         requisitions
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Requisition ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/v1/requisitions/{id} [delete]
func (h *RequisitionHandler) DeleteRequisition(c *gin.Context) {
	if err := h.requisitionService.Delete(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Message(http.StatusOK, "Requisition deleted successfully"))
}
