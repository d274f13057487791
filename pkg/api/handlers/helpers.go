package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	apimw "github.com/jordanlanch/partnerdb/pkg/api/middleware"
	"github.com/jordanlanch/partnerdb/pkg/audit"
	"github.com/jordanlanch/partnerdb/pkg/auth"
	"github.com/jordanlanch/partnerdb/pkg/domain"
	"github.com/jordanlanch/partnerdb/pkg/ledger"
	"github.com/jordanlanch/partnerdb/pkg/models"
	"github.com/jordanlanch/partnerdb/pkg/payment"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

const requestTimeout = 10 * time.Second

// requestContext bounds the request and attaches audit info for actor
func requestContext(c echo.Context, actor string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	return audit.ContextFrom(ctx, c, actor), cancel
}

// actorOf names the caller in audit entries
func actorOf(c echo.Context) string {
	claims, ok := apimw.ClaimsFrom(c)
	if !ok {
		return "public"
	}
	if claims.Role == auth.RolePartner {
		return "partner:" + claims.PartnerCode
	}
	if claims.Name != "" {
		return "admin:" + claims.Name
	}
	return "admin:" + claims.Subject
}

func uuidParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, domain.NewBadRequestError("Invalid " + name)
	}
	return id, nil
}

// subjectID returns the authenticated subject as an id
func subjectID(c echo.Context) (uuid.UUID, error) {
	claims, ok := apimw.ClaimsFrom(c)
	if !ok {
		return uuid.Nil, domain.NewUnauthorizedError("Authentication required")
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, domain.NewUnauthorizedError("Invalid token subject")
	}
	return id, nil
}

// limitParam reads ?limit=, falling back to def and capping at max
func limitParam(c echo.Context, def, max int) int {
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= max {
		return l
	}
	return def
}

var errBadBody = domain.NewBadRequestError("Invalid request body")

// PaymentHistory is a partner's receipts with the running figures shown
// next to them. Balance is earnings since the last checkpoint minus the
// checkpointed total; ReceiptsTotal is reported separately.
type PaymentHistory struct {
	Partner         *models.Partner         `json:"partner"`
	Receipts        []models.PaymentReceipt `json:"receipts"`
	LastReceipt     *models.PaymentReceipt  `json:"last_receipt,omitempty"`
	PaidAmount      decimal.Decimal         `json:"paid_amount"`
	ConfirmedAmount decimal.Decimal         `json:"confirmed_amount"`
	Balance         decimal.Decimal         `json:"balance"`
	ReceiptsTotal   decimal.Decimal         `json:"receipts_total"`
}

func paymentHistory(ctx context.Context, ledgerSvc *ledger.Service, payments *payment.Service, p *models.Partner) (*PaymentHistory, error) {
	snap, err := ledgerSvc.SnapshotFor(ctx, p)
	if err != nil {
		return nil, err
	}

	receipts, err := payments.ListReceipts(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	total, err := payments.TotalPaidByReceipts(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	h := &PaymentHistory{
		Partner:         p,
		Receipts:        receipts,
		PaidAmount:      snap.TotalPaid,
		ConfirmedAmount: snap.EarnedSinceCheckpoint,
		Balance:         snap.EarnedSinceCheckpoint.Sub(snap.TotalPaid),
		ReceiptsTotal:   total,
	}
	if len(receipts) > 0 {
		h.LastReceipt = &receipts[0]
	}
	return h, nil
}
