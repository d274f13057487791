package handlers

import (
	"net/http"

	"github.com/jordanlanch/partnerdb/pkg/api/errors"
	"github.com/jordanlanch/partnerdb/pkg/audit"
	"github.com/jordanlanch/partnerdb/pkg/logger"
	"github.com/jordanlanch/partnerdb/pkg/models"
	"github.com/labstack/echo/v4"
)

// AuditHandler handles audit log endpoints
type AuditHandler struct {
	auditService *audit.Service
	log          logger.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(auditService *audit.Service, log logger.Logger) *AuditHandler {
	return &AuditHandler{
		auditService: auditService,
		log:          log,
	}
}

// GetRecentLogs returns recent audit logs, optionally of one ?action=
func (h *AuditHandler) GetRecentLogs(c echo.Context) error {
	// default 100, max 500
	limit := limitParam(c, 100, 500)

	ctx, cancel := requestContext(c, actorOf(c))
	defer cancel()

	var (
		logs []models.AuditLog
		err  error
	)
	if action := c.QueryParam("action"); action != "" {
		logs, err = h.auditService.GetLogsByAction(ctx, models.AuditAction(action), limit)
	} else {
		logs, err = h.auditService.GetRecentLogs(ctx, limit)
	}
	if err != nil {
		return errors.InternalError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"logs":  logs,
		"count": len(logs),
	})
}

// GetPartnerLogs returns the audit trail of one partner
func (h *AuditHandler) GetPartnerLogs(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	// default 50, max 200
	limit := limitParam(c, 50, 200)

	ctx, cancel := requestContext(c, actorOf(c))
	defer cancel()

	logs, err := h.auditService.GetPartnerLogs(ctx, id, limit)
	if err != nil {
		return errors.InternalError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"logs":  logs,
		"count": len(logs),
	})
}
