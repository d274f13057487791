package handlers

import (
	"net/http"

	"github.com/jordanlanch/partnerdb/pkg/api/errors"
	"github.com/jordanlanch/partnerdb/pkg/checkpoint"
	"github.com/jordanlanch/partnerdb/pkg/ledger"
	"github.com/jordanlanch/partnerdb/pkg/logger"
	"github.com/jordanlanch/partnerdb/pkg/partner"
	"github.com/jordanlanch/partnerdb/pkg/payment"
	"github.com/jordanlanch/partnerdb/pkg/student"
	"github.com/labstack/echo/v4"
)

// PartnerHandler serves the logged-in partner's own pages
type PartnerHandler struct {
	partners    *partner.Service
	students    *student.Service
	checkpoints *checkpoint.Service
	payments    *payment.Service
	ledger      *ledger.Service
	log         logger.Logger
}

// NewPartnerHandler creates a new partner handler
func NewPartnerHandler(partners *partner.Service, students *student.Service, checkpoints *checkpoint.Service, payments *payment.Service, ledgerSvc *ledger.Service, log logger.Logger) *PartnerHandler {
	return &PartnerHandler{
		partners:    partners,
		students:    students,
		checkpoints: checkpoints,
		payments:    payments,
		ledger:      ledgerSvc,
		log:         log,
	}
}

// Dashboard godoc
// @Summary Partner dashboard
// @Description Commission figures since the last checkpoint and all-time, with students, checkpoints and codes
// @Tags Partner
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} models.ErrorResponse
// @Router /partner/dashboard [get]
func (h *PartnerHandler) Dashboard(c echo.Context) error {
	id, err := subjectID(c)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	ctx, cancel := requestContext(c, actorOf(c))
	defer cancel()

	p, err := h.partners.Get(ctx, id)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	snap, err := h.ledger.SnapshotFor(ctx, p)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	confirmed, pending := true, false
	confirmedStudents, err := h.students.ListByPartner(ctx, p.ID, &confirmed)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}
	pendingStudents, err := h.students.ListByPartner(ctx, p.ID, &pending)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	checkpoints, err := h.checkpoints.List(ctx, p.ID)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	codes, err := h.partners.ListCodes(ctx, p.ID)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"partner":            p,
		"snapshot":           snap,
		"confirmed_students": confirmedStudents,
		"pending_students":   pendingStudents,
		"checkpoints":        checkpoints,
		"codes":              codes,
	})
}

// Payments godoc
// @Summary Partner payment history
// @Description Receipts with the amounts paid, earned since the last checkpoint and the balance
// @Tags Partner
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /partner/payments [get]
func (h *PartnerHandler) Payments(c echo.Context) error {
	id, err := subjectID(c)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	ctx, cancel := requestContext(c, actorOf(c))
	defer cancel()

	p, err := h.partners.Get(ctx, id)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	history, err := paymentHistory(ctx, h.ledger, h.payments, p)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	return c.JSON(http.StatusOK, history)
}
