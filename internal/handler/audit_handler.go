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

type AuditHandler struct {
	auditService service.AuditService
	log          *logger.Logger
}

func NewAuditHandler(auditService service.AuditService, log *logger.Logger) *AuditHandler {
	return &AuditHandler{auditService: auditService, log: log}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/audit-logs")
	group.Use(middleware.RequireCapability(access.AuditLogsRead))
	{
		group.GET("", h.GetAuditLogs)
	}
}

// GetAuditLogs returns the audit trail, newest first
// @Summary      Get audit logs
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        action    query     string  false  "Filter by action"
// @Param        entityId  query     string  false  "Filter by entity"
// @Param        page      query     int     false  "Page number (default 1)"
// @Param        limit     query     int     false  "Number of items per page (default 20)"
// @Success      200       {object}  response.Response{data=response.Paginated}
// @Router       /api/v1/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	p := pagination.Parse(c)
	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), service.AuditLogQuery{
		Action:   c.Query("action"),
		EntityID: c.Query("entityId"),
		Page:     p.Page,
		Limit:    p.Limit,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.Wrap(logs, total)))
}
