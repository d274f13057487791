package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jordanlanch/partnerdb/config"
	"github.com/jordanlanch/partnerdb/pkg/api/errors"
	"github.com/jordanlanch/partnerdb/pkg/checkpoint"
	"github.com/jordanlanch/partnerdb/pkg/clock"
	"github.com/jordanlanch/partnerdb/pkg/domain"
	"github.com/jordanlanch/partnerdb/pkg/export"
	"github.com/jordanlanch/partnerdb/pkg/ledger"
	"github.com/jordanlanch/partnerdb/pkg/logger"
	"github.com/jordanlanch/partnerdb/pkg/models"
	"github.com/jordanlanch/partnerdb/pkg/partner"
	"github.com/jordanlanch/partnerdb/pkg/payment"
	"github.com/jordanlanch/partnerdb/pkg/student"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

const (
	recentPaymentsLimit = 5
	recentStudentsLimit = 10
	// multipart framing on top of the image itself
	uploadOverhead = 1 << 20
)

// AdminHandler serves the operator endpoints
type AdminHandler struct {
	config      *config.Config
	partners    *partner.Service
	students    *student.Service
	checkpoints *checkpoint.Service
	payments    *payment.Service
	ledger      *ledger.Service
	clock       clock.Clock
	log         logger.Logger
	validator   *validator.Validate
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(cfg *config.Config, partners *partner.Service, students *student.Service, checkpoints *checkpoint.Service, payments *payment.Service, ledgerSvc *ledger.Service, clk clock.Clock, log logger.Logger) *AdminHandler {
	return &AdminHandler{
		config:      cfg,
		partners:    partners,
		students:    students,
		checkpoints: checkpoints,
		payments:    payments,
		ledger:      ledgerSvc,
		clock:       clk,
		log:         log,
		validator:   validator.New(),
	}
}

// Dashboard godoc
// @Summary Operator dashboard
// @Description Partner and student counts, payment totals, recent activity and per-partner commission figures
// @Tags Admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/dashboard [get]
func (h *AdminHandler) Dashboard(c echo.Context) error {
	ctx, cancel := requestContext(c, actorOf(c))
	defer cancel()

	activePartners, err := h.partners.CountActive(ctx)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	pending, confirmed, err := h.students.Counts(ctx)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	totals, err := h.payments.Totals(ctx)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	recentPayments, err := h.payments.List(ctx, payment.Filter{Limit: recentPaymentsLimit})
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	recentStudents, err := h.students.ListRecent(ctx, recentStudentsLimit)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	snapshots, err := h.ledger.SnapshotAll(ctx)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"active_partners":    activePartners,
		"pending_students":   pending,
		"confirmed_students": confirmed,
		"completed_payments": totals[models.PaymentCompleted],
		"payment_totals":     totals,
		"recent_payments":    recentPayments,
		"recent_students":    recentStudents,
		"partners":           snapshots,
	})
}

// Confirmations lists every active partner with what is still owed
// across all time: confirmed earnings minus checkpointed payouts
func (h *AdminHandler) Confirmations(c echo.Context) error {
	ctx, cancel := requestContext(c, actorOf(c))
	defer cancel()

	snapshots, err := h.ledger.SnapshotAll(ctx)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	outstanding := decimal.Zero
	for _, s := range snapshots {
		outstanding = outstanding.Add(s.OutstandingAllTime)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"partners":    snapshots,
		"outstanding": outstanding,
	})
}

// Payments godoc
// @Summary Payments dashboard
// @Description Amount due per partner, largest first, and the payment records matching the filters
// @Tags Admin
// @Security BearerAuth
// @Produce json
// @Param partner_id query string false "Partner id"
// @Param status query string false "Payment status"
// @Param from query string false "Created on or after (YYYY-MM-DD)"
// @Param to query string false "Created before (YYYY-MM-DD)"
// @Success 200 {object} map[string]interface{}
// @Router /admin/payments [get]
func (h *AdminHandler) Payments(c echo.Context) error {
	filter, err := paymentFilter(c)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	ctx, cancel := requestContext(c, actorOf(c))
	defer cancel()

	payouts, err := h.ledger.Payouts(ctx)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	payments, err := h.payments.List(ctx, filter)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	due := decimal.Zero
	for _, p := range payouts {
		due = due.Add(p.Due)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"payouts":   payouts,
		"total_due": due,
		"payments":  payments,
		"count":     len(payments),
	})
}

// ExportPayments streams the payments dashboard as an xlsx workbook
func (h *AdminHandler) ExportPayments(c echo.Context) error {
	filter, err := paymentFilter(c)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	ctx, cancel := requestContext(c, actorOf(c))
	defer cancel()

	payouts, err := h.ledger.Payouts(ctx)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	payments, err := h.payments.List(ctx, filter)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	var buf bytes.Buffer
	if err := export.WritePaymentsReport(&buf, payouts, payments); err != nil {
		return errors.InternalError(c, h.log, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", export.Filename(h.clock.Now())))
	return c.Blob(http.StatusOK, export.ContentType, buf.Bytes())
}

// ListPartners returns active partners
func (h *AdminHandler) ListPartners(c echo.Context) error {
	ctx, cancel := requestContext(c, actorOf(c))
	defer cancel()

	partners, err := h.partners.ListActive(ctx)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"partners": partners,
		"count":    len(partners),
	})
}

// CreatePartner godoc
// @Summary Create a partner
// @Description Create a partner with its first partnership code and return the code as a QR image
// @Tags Admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body models.PartnerCreateRequest true "Partner"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /admin/partners [post]
func (h *AdminHandler) CreatePartner(c echo.Context) error {
	var req models.PartnerCreateRequest
	if err := c.Bind(&req); err != nil {
		return errors.Respond(c, h.log, errBadBody)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, h.log, err)
	}

	ctx, cancel := requestContext(c, actorOf(c))
	defer cancel()

	created, err := h.partners.Create(ctx, partner.CreateInput{
		Name:                 req.Name,
		PartnerType:          models.PartnerType(req.PartnerType),
		Email:                req.Email,
		Phone:                req.Phone,
		ContactPerson:        req.ContactPerson,
		Address:              req.Address,
		CommissionPerStudent: req.CommissionPerStudent,
		Password:             req.Password,
	})
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	qr, err := partner.QRCode(created.Code.Code, h.config.PublicBaseURL)
	if err != nil {
		// the partner exists; the QR code can be fetched again later
		h.log.Error("failed to render qr code", "partner_id", created.Partner.ID, "error", err)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"partner": created.Partner,
		"code":    created.Code,
		"qr_code": qr,
	})
}

// GetPartner returns a partner with its ledger snapshot and codes
func (h *AdminHandler) GetPartner(c echo.Context) error {
	id, err := uuidParam(c, "id")
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

	codes, err := h.partners.ListCodes(ctx, p.ID)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	checkpoints, err := h.checkpoints.List(ctx, p.ID)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"partner":     p,
		"snapshot":    snap,
		"codes":       codes,
		"checkpoints": checkpoints,
	})
}

// PartnerQRCode renders the partner's first active code as a base64 PNG
func (h *AdminHandler) PartnerQRCode(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	ctx, cancel := requestContext(c, actorOf(c))
	defer cancel()

	codes, err := h.partners.ListCodes(ctx, id)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}
	if len(codes) == 0 {
		return errors.Respond(c, h.log, domain.NewNotFoundError("partnership code"))
	}

	qr, err := partner.QRCode(codes[0].Code, h.config.PublicBaseURL)
	if err != nil {
		return errors.InternalError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"code":    codes[0].Code,
		"qr_code": qr,
	})
}

// SetPartnerStatus activates, deactivates or suspends a partner
func (h *AdminHandler) SetPartnerStatus(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	var req models.PartnerStatusRequest
	if err := c.Bind(&req); err != nil {
		return errors.Respond(c, h.log, errBadBody)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, h.log, err)
	}

	ctx, cancel := requestContext(c, actorOf(c))
	defer cancel()

	p, err := h.partners.SetStatus(ctx, id, models.Status(req.Status))
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	return c.JSON(http.StatusOK, p)
}

// PartnerStudents lists a partner's students, optionally only
// ?confirmed=true or ?confirmed=false
func (h *AdminHandler) PartnerStudents(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	confirmed, err := boolQuery(c, "confirmed")
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	ctx, cancel := requestContext(c, actorOf(c))
	defer cancel()

	if _, err := h.partners.Get(ctx, id); err != nil {
		return errors.Respond(c, h.log, err)
	}

	students, err := h.students.ListByPartner(ctx, id, confirmed)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"students": students,
		"count":    len(students),
	})
}

// PartnerReceipts is the operator's view of a partner's payment history
func (h *AdminHandler) PartnerReceipts(c echo.Context) error {
	id, err := uuidParam(c, "id")
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

// ConfirmStudent godoc
// @Summary Confirm a student
// @Description Confirm a registration; confirming twice is a no-op. Returns the partner's updated figures.
// @Tags Admin
// @Security BearerAuth
// @Produce json
// @Param id path string true "Student id"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/students/{id}/confirm [post]
func (h *AdminHandler) ConfirmStudent(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	ctx, cancel := requestContext(c, actorOf(c))
	defer cancel()

	s, err := h.students.Confirm(ctx, id)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	resp := map[string]interface{}{"student": s}
	if s.PartnerID != nil {
		snap, err := h.ledger.Snapshot(ctx, *s.PartnerID)
		if err != nil && !domain.IsNotFound(err) {
			return errors.Respond(c, h.log, err)
		}
		if snap != nil {
			resp["snapshot"] = snap
		}
	}

	return c.JSON(http.StatusOK, resp)
}

// CreateCheckpoint godoc
// @Summary Record a payment checkpoint
// @Description Record a payout; confirmations after the checkpoint date start a new commission window
// @Tags Admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Partner id"
// @Param request body models.CheckpointCreateRequest true "Checkpoint"
// @Success 201 {object} models.PaymentCheckpoint
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/partners/{id}/checkpoints [post]
func (h *AdminHandler) CreateCheckpoint(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	var req models.CheckpointCreateRequest
	if err := c.Bind(&req); err != nil {
		return errors.Respond(c, h.log, errBadBody)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, h.log, err)
	}

	ctx, cancel := requestContext(c, actorOf(c))
	defer cancel()

	cp, err := h.checkpoints.Create(ctx, checkpoint.CreateInput{
		PartnerID:      id,
		AmountPaid:     *req.AmountPaid,
		Notes:          req.Notes,
		CheckpointDate: req.CheckpointDate,
	})
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	return c.JSON(http.StatusCreated, cp)
}

// ListCheckpoints returns a partner's checkpoints, newest first
func (h *AdminHandler) ListCheckpoints(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	ctx, cancel := requestContext(c, actorOf(c))
	defer cancel()

	checkpoints, err := h.checkpoints.List(ctx, id)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"checkpoints": checkpoints,
		"count":       len(checkpoints),
	})
}

// CreatePayment records a payment owed to a partner
func (h *AdminHandler) CreatePayment(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	var req models.PaymentCreateRequest
	if err := c.Bind(&req); err != nil {
		return errors.Respond(c, h.log, errBadBody)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, h.log, err)
	}

	ctx, cancel := requestContext(c, actorOf(c))
	defer cancel()

	p, err := h.payments.Create(ctx, payment.CreateInput{
		PartnerID:       id,
		Amount:          *req.Amount,
		RemainingAmount: req.RemainingAmount,
		Reference:       req.Reference,
		Notes:           req.Notes,
	})
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	return c.JSON(http.StatusCreated, p)
}

// UploadReceipt godoc
// @Summary Upload a payment receipt
// @Description Record a completed payment with its receipt image (JPG or PNG, 5 MB max)
// @Tags Admin
// @Security BearerAuth
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Partner id"
// @Param amount_paid formData string true "Amount paid"
// @Param notes formData string false "Notes"
// @Param receipt_image formData file true "Receipt image"
// @Success 201 {object} models.PaymentReceipt
// @Failure 400 {object} models.ErrorResponse
// @Router /admin/partners/{id}/receipts [post]
func (h *AdminHandler) UploadReceipt(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, payment.MaxReceiptSize+uploadOverhead)

	amount, err := decimal.NewFromString(strings.TrimSpace(c.FormValue("amount_paid")))
	if err != nil {
		return errors.Respond(c, h.log, domain.NewValidationError("amount_paid", "Amount paid must be a number"))
	}

	fh, err := c.FormFile("receipt_image")
	if err != nil {
		return errors.Respond(c, h.log, domain.NewValidationError("receipt_image", "Receipt image is required"))
	}
	if fh.Size > payment.MaxReceiptSize {
		return errors.Respond(c, h.log, domain.NewValidationError("receipt_image", "Receipt image must not exceed 5 MB"))
	}

	file, err := fh.Open()
	if err != nil {
		return errors.InternalError(c, h.log, err)
	}
	defer file.Close()

	ctx, cancel := requestContext(c, actorOf(c))
	defer cancel()

	receipt, err := h.payments.UploadReceipt(ctx, payment.UploadInput{
		PartnerID:  id,
		AmountPaid: amount,
		File:       file,
		Filename:   fh.Filename,
		Notes:      c.FormValue("notes"),
	})
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	return c.JSON(http.StatusCreated, receipt)
}

// GetPayment returns a payment with its partner and receipt
func (h *AdminHandler) GetPayment(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	ctx, cancel := requestContext(c, actorOf(c))
	defer cancel()

	p, err := h.payments.Get(ctx, id)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	return c.JSON(http.StatusOK, p)
}

// CompletePayment marks a payment fully settled
func (h *AdminHandler) CompletePayment(c echo.Context) error {
	return h.transition(c, h.payments.MarkCompleted)
}

// ResetPayment marks a payment fully unpaid
func (h *AdminHandler) ResetPayment(c echo.Context) error {
	return h.transition(c, h.payments.MarkPending)
}

// CancelPayment moves a payment to the terminal cancelled state
func (h *AdminHandler) CancelPayment(c echo.Context) error {
	return h.transition(c, h.payments.Cancel)
}

// RecordPaid sets how much of a payment has been settled
func (h *AdminHandler) RecordPaid(c echo.Context) error {
	var req models.PaymentPaidRequest
	if err := c.Bind(&req); err != nil {
		return errors.Respond(c, h.log, errBadBody)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, h.log, err)
	}

	return h.transition(c, func(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
		return h.payments.RecordPaid(ctx, id, *req.PaidAmount)
	})
}

func (h *AdminHandler) transition(c echo.Context, apply func(context.Context, uuid.UUID) (*models.Payment, error)) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	ctx, cancel := requestContext(c, actorOf(c))
	defer cancel()

	p, err := apply(ctx, id)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	return c.JSON(http.StatusOK, p)
}

// ReceiptImage streams the stored receipt image of a payment
func (h *AdminHandler) ReceiptImage(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	ctx, cancel := requestContext(c, actorOf(c))
	defer cancel()

	p, err := h.payments.Get(ctx, id)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}
	if p.Receipt == nil {
		return errors.Respond(c, h.log, domain.NewNotFoundError("receipt"))
	}

	rc, err := h.payments.ReceiptImage(ctx, p.Receipt)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}
	defer rc.Close()

	contentType := "image/jpeg"
	if strings.EqualFold(filepath.Ext(p.Receipt.ReceiptImage), ".png") {
		contentType = "image/png"
	}

	data, err := io.ReadAll(rc)
	if err != nil {
		return errors.InternalError(c, h.log, err)
	}
	return c.Blob(http.StatusOK, contentType, data)
}

// ListPartnershipRequests returns contact page applications, optionally
// filtered with ?processed=
func (h *AdminHandler) ListPartnershipRequests(c echo.Context) error {
	processed, err := boolQuery(c, "processed")
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	ctx, cancel := requestContext(c, actorOf(c))
	defer cancel()

	requests, err := h.partners.ListRequests(ctx, processed)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"requests": requests,
		"count":    len(requests),
	})
}

// ProcessPartnershipRequest marks an application as handled
func (h *AdminHandler) ProcessPartnershipRequest(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	ctx, cancel := requestContext(c, actorOf(c))
	defer cancel()

	r, err := h.partners.MarkRequestProcessed(ctx, id)
	if err != nil {
		return errors.Respond(c, h.log, err)
	}

	return c.JSON(http.StatusOK, r)
}

func paymentFilter(c echo.Context) (payment.Filter, error) {
	var f payment.Filter

	if raw := c.QueryParam("partner_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return f, domain.NewBadRequestError("Invalid partner_id")
		}
		f.PartnerID = &id
	}

	if raw := c.QueryParam("status"); raw != "" {
		status := models.PaymentStatus(raw)
		switch status {
		case models.PaymentPending, models.PaymentPartial, models.PaymentCompleted, models.PaymentCancelled:
			f.Status = status
		default:
			return f, domain.NewBadRequestError("Invalid status")
		}
	}

	for _, bound := range []struct {
		name string
		dst  **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		raw := c.QueryParam(bound.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return f, domain.NewBadRequestError("Invalid " + bound.name + " date, expected YYYY-MM-DD")
		}
		*bound.dst = &t
	}

	return f, nil
}

func boolQuery(c echo.Context, name string) (*bool, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, domain.NewBadRequestError("Invalid " + name)
	}
	return &v, nil
}
