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

type IssuingHandler struct {
	issuingService service.IssuingService
	log            *logger.Logger
}

func NewIssuingHandler(issuingService service.IssuingService, log *logger.Logger) *IssuingHandler {
	return &IssuingHandler{issuingService: issuingService, log: log}
}

func (h *IssuingHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/issuing")
	{
		group.GET("", middleware.RequireCapability(access.VouchersRead), h.ListVouchers)
		group.GET("/:id", middleware.RequireCapability(access.VouchersRead), h.GetVoucher)
		group.POST("", middleware.RequireCapability(access.VouchersManage), h.CreateVoucher)
		group.PUT("/:id", middleware.RequireCapability(access.VouchersManage), h.UpdateVoucher)
		group.DELETE("/:id", middleware.RequireCapability(access.VouchersManage), h.DeleteVoucher)
	}
}

// ListVouchers returns issuing vouchers
// @Summary      List issuing vouchers
// @Tags         issuing
// @Security     BearerAuth
// @Produce      json
// @Param        status         query     string  false  "Voucher status"
// @Param        requisitionId  query     string  false  "Filter by requisition"
// @Param        page           query     int     false  "Page number (default 1)"
// @Param        limit          query     int     false  "Items per page (default 20)"
// @Success      200            {object}  response.Response{data=response.Paginated}
// @Router       /api/v1/issuing [get]
func (h *IssuingHandler) ListVouchers(c *gin.Context) {
	p := pagination.Parse(c)
	vouchers, total, err := h.issuingService.List(c.Request.Context(), service.VoucherListQuery{
		Status:        c.Query("status"),
		RequisitionID: c.Query("requisitionId"),
		Page:          p.Page,
		Limit:         p.Limit,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.Wrap(vouchers, total)))
}

// GetVoucher returns a voucher with its lines
// @Summary      Get issuing voucher
// @Tags         issuing
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Voucher ID"
// @Success      200  {object}  response.Response{data=model.IssuingVoucher}
// @Failure      404  {object}  response.Response
// @Router       /api/v1/issuing/{id} [get]
func (h *IssuingHandler) GetVoucher(c *gin.Context) {
	voucher, err := h.issuingService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, voucher))
}

// CreateVoucher issues stock against a Forwarded requisition
// @Summary      Create issuing voucher
// @Description  Issued quantities are clamped to the requested quantity and the stock on hand.
// @Description  Lines for unknown items are reported in skippedLines.
// @Tags         issuing
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateVoucherRequest  true  "Voucher"
// @Success      201      {object}  response.Response{data=service.VoucherResult}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/v1/issuing [post]
func (h *IssuingHandler) CreateVoucher(c *gin.Context) {
	var req service.CreateVoucherRequest
	if err := bindJSON(c, &req, false); err != nil {
		respondError(c, h.log, err)
		return
	}

	result, err := h.issuingService.Create(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// UpdateVoucher changes issued quantities on existing lines
// @Summary      Update issuing voucher
// @Tags         issuing
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                        true  "Voucher ID"
// @Param        payload  body      service.UpdateVoucherRequest  true  "Line changes"
// @Success      200      {object}  response.Response{data=service.VoucherResult}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/v1/issuing/{id} [put]
func (h *IssuingHandler) UpdateVoucher(c *gin.Context) {
	var req service.UpdateVoucherRequest
	if err := bindJSON(c, &req, false); err != nil {
		respondError(c, h.log, err)
		return
	}

	result, err := h.issuingService.Update(c.Request.Context(), actorFrom(c), c.Param("id"), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// DeleteVoucher deletes a voucher and returns its issued stock
// @Summary      Delete issuing voucher
// @Tags         issuing
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Voucher ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/v1/issuing/{id} [delete]
func (h *IssuingHandler) DeleteVoucher(c *gin.Context) {
	if err := h.issuingService.Delete(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Message(http.StatusOK, "Voucher deleted successfully"))
}
