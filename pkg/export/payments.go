// Package export renders payout reports as spreadsheets.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/jordanlanch/partnerdb/pkg/ledger"
	"github.com/jordanlanch/partnerdb/pkg/models"
	"github.com/xuri/excelize/v2"
)

const (
	PayoutsSheet  = "Payouts"
	PaymentsSheet = "Payments"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	payoutHeaders = []string{
		"Partner", "Code", "Commission", "Pending", "Confirmed Since Checkpoint",
		"Earned Since Checkpoint", "Total Paid", "Due", "Last Checkpoint",
	}
	paymentHeaders = []string{
		"ID", "Partner", "Amount", "Remaining", "Status", "Reference", "Created At", "Completed At",
	}
)

// Filename names a report generated at t
func Filename(t time.Time) string {
	return fmt.Sprintf("payments-%s.xlsx", t.UTC().Format("20060102-150405"))
}

// WritePaymentsReport writes a workbook with one row per partner payout and
// one row per payment
func WritePaymentsReport(w io.Writer, payouts []ledger.PayoutSummary, payments []models.Payment) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", PayoutsSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(PaymentsSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	payoutRows := make([][]interface{}, 0, len(payouts))
	for _, p := range payouts {
		last := ""
		if p.LastCheckpoint != nil {
			last = p.LastCheckpoint.CheckpointDate.Format("2006-01-02 15:04")
		}
		payoutRows = append(payoutRows, []interface{}{
			p.PartnerName,
			p.PartnerCode,
			p.CommissionPerStudent.InexactFloat64(),
			p.PendingCount,
			p.ConfirmedSinceCheckpoint,
			p.EarnedSinceCheckpoint.InexactFloat64(),
			p.TotalPaid.InexactFloat64(),
			p.Due.InexactFloat64(),
			last,
		})
	}
	if err := writeSheet(f, PayoutsSheet, payoutHeaders, payoutRows, headerStyle); err != nil {
		return err
	}

	paymentRows := make([][]interface{}, 0, len(payments))
	for _, p := range payments {
		partner := ""
		if p.Partner != nil {
			partner = p.Partner.Name
		}
		completed := ""
		if p.CompletedAt != nil {
			completed = p.CompletedAt.Format("2006-01-02 15:04")
		}
		paymentRows = append(paymentRows, []interface{}{
			p.ID.String(),
			partner,
			p.Amount.InexactFloat64(),
			p.RemainingAmount.InexactFloat64(),
			string(p.Status),
			p.Reference,
			p.CreatedAt.Format("2006-01-02 15:04"),
			completed,
		})
	}
	if err := writeSheet(f, PaymentsSheet, paymentHeaders, paymentRows, headerStyle); err != nil {
		return err
	}

	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]interface{}, headerStyle int) error {
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to style header: %w", err)
		}
	}

	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r+2, err)
		}
	}

	last, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", last, 18)
}
