package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/jordanlanch/partnerdb/pkg/api/errors"
	"github.com/jordanlanch/partnerdb/pkg/ledger"
	"github.com/jordanlanch/partnerdb/pkg/logger"
	"github.com/jordanlanch/partnerdb/pkg/models"
	"github.com/jordanlanch/partnerdb/pkg/partner"
	"github.com/jordanlanch/partnerdb/pkg/student"
	"github.com/labstack/echo/v4"
)

// PublicHandler serves the unauthenticated endpoints
type PublicHandler struct {
	students  *student.Service
	partners  *partner.Service
	ledger    *ledger.Service
	log       logger.Logger
	validator *validator.Validate
}

// NewPublicHandler creates a new public handler
func NewPublicHandler(students *student.Service, partners *partner.Service, ledgerSvc *ledger.Service, log logger.Logger) *PublicHandler {
	return &PublicHandler{
		students:  students,
		partners:  partners,
		ledger:    ledgerSvc,
		log:       log,
		validator: validator.New(),
	}
}

// Register godoc
// @Summary Register a student
// @Description Register a student under the partner owning the referral code
// @Tags Public
// @Accept json
// @Produce json
// @Param request body models.StudentRegistrationRequest true "Registration form"
// @Success 201 {object} models.Student
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /register [post]
func (h *PublicHandler) Register(c echo.Context) error {
	var req models.StudentRegistrationRequest
	if err := c.Bind(&req); err != nil {
		return errors.Respond(c, h.log, errBadBody)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, h.log, err)
	}

	ctx, cancel := requestContext(c, "public")
	defer cancel()

	s, err := h.students.Register(ctx, student.RegisterInput{
		FullName:     req.FullName,
		Email:        req.Email,
		Phone:        req.Phone,
		ReferralCode: req.ReferralCode,
		ProgramID:    req.ProgramID,
	})
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	return c.JSON(http.StatusCreated, s)
}

// ListPrograms returns the programs open for registration
func (h *PublicHandler) ListPrograms(c echo.Context) error {
	ctx, cancel := requestContext(c, "public")
	defer cancel()

	programs, err := h.students.ListPrograms(ctx)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"programs": programs,
		"count":    len(programs),
	})
}

// PartnerDashboard godoc
// @Summary Public partner dashboard
// @Description Commission figures of the partner owning a referral code
// @Tags Public
// @Produce json
// @Param code path string true "Partnership code"
// @Success 200 {object} ledger.Snapshot
// @Failure 404 {object} models.ErrorResponse
// @Router /partners/{code}/dashboard [get]
func (h *PublicHandler) PartnerDashboard(c echo.Context) error {
	ctx, cancel := requestContext(c, "public")
	defer cancel()

	p, err := h.partners.GetByCode(ctx, c.Param("code"))
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	snap, err := h.ledger.SnapshotFor(ctx, p)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	codes, err := h.partners.ListCodes(ctx, p.ID)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"partner":  p,
		"snapshot": snap,
		"codes":    codes,
	})
}

// SubmitPartnershipRequest stores a partnership application from the contact page
func (h *PublicHandler) SubmitPartnershipRequest(c echo.Context) error {
	var req models.PartnershipRequestForm
	if err := c.Bind(&req); err != nil {
		return errors.Respond(c, h.log, errBadBody)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, h.log, err)
	}

	ctx, cancel := requestContext(c, "public")
	defer cancel()

	r, err := h.partners.SubmitRequest(ctx, partner.RequestInput{
		BusinessName: req.BusinessName,
		BusinessType: models.PartnerType(req.BusinessType),
		Email:        req.Email,
		Phone:        req.Phone,
		Address:      req.Address,
		Message:      req.Message,
	})
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	return c.JSON(http.StatusCreated, r)
}
