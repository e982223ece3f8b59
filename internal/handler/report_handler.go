package handler

import (
	"net/http"
	"time"

	"hospital-inventory/internal/access"
	"hospital-inventory/internal/middleware"
	"hospital-inventory/internal/service"
	"hospital-inventory/pkg/logger"
	"hospital-inventory/pkg/pagination"
	"hospital-inventory/pkg/response"

	"github.com/gin-gonic/gin"
)

const defaultReportWindow = 30 * 24 * time.Hour

type ReportHandler struct {
	reportService service.ReportService
	log           *logger.Logger
}

func NewReportHandler(reportService service.ReportService, log *logger.Logger) *ReportHandler {
	return &ReportHandler{reportService: reportService, log: log}
}

func (h *ReportHandler) RegisterRoutes(router *gin.RouterGroup) {
	reports := router.Group("/reports")
	reports.Use(middleware.RequireCapability(access.ReportsRead))
	{
		reports.GET("/summary", h.GetSummary)
		reports.GET("/low-stock", h.GetLowStock)
	}
}

// GetSummary returns dashboard counters for a time range
// @Summary      Inventory summary
// @Description  Status counts, stock totals and the most issued and received items.
// @Description  Defaults to the last 30 days. A date-only endDate covers the whole day.
// @Tags         reports
// @Security     BearerAuth
// @Produce      json
// @Param        startDate  query     string  false  "YYYY-MM-DD or RFC3339"
// @Param        endDate    query     string  false  "YYYY-MM-DD or RFC3339"
// @Success      200        {object}  response.Response{data=model.InventorySummary}
// @Failure      400        {object}  response.Response
// @Router       /api/v1/reports/summary [get]
func (h *ReportHandler) GetSummary(c *gin.Context) {
	now := time.Now().UTC()
	end, err := queryDate(c, "endDate", now)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if isMidnight(end) && c.Query("endDate") != "" {
		end = end.Add(24*time.Hour - time.Nanosecond)
	}
	start, err := queryDate(c, "startDate", end.Add(-defaultReportWindow))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	summary, err := h.reportService.Summary(c.Request.Context(), start, end)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, summary))
}

// GetLowStock lists items at or below their reorder level
// @Summary      Low stock items
// @Tags         reports
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=response.Paginated}
// @Router       /api/v1/reports/low-stock [get]
func (h *ReportHandler) GetLowStock(c *gin.Context) {
	p := pagination.Parse(c)
	items, total, err := h.reportService.LowStock(c.Request.Context(), p.Page, p.Limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.Wrap(items, total)))
}

func isMidnight(t time.Time) bool {
	h, m, s := t.Clock()
	return h == 0 && m == 0 && s == 0 && t.Nanosecond() == 0
}
