package documents

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// PayoutStatement carries the figures printed on the statement generated
// when an admin approves a report.
type PayoutStatement struct {
	ReportID        string
	BeneficiaryName string
	AccountName     string
	AccountNumber   string
	BankName        string
	PayoutAmount    float64
	AdminFee        float64
	ApprovedAt      time.Time
	PayoutDeadline  time.Time
}

// BuildPayoutStatement renders the statement as a PDF document.
func BuildPayoutStatement(stmt PayoutStatement) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, "Mutual Aid Payout Statement")
	pdf.Ln(14)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Report: %s", stmt.ReportID))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Approved: %s", stmt.ApprovedAt.Format("2 Jan 2006 15:04 MST")))
	pdf.Ln(10)

	rows := [][2]string{
		{"Deceased beneficiary", stmt.BeneficiaryName},
		{"Account name", stmt.AccountName},
		{"Account number", stmt.AccountNumber},
		{"Bank", stmt.BankName},
		{"Payout amount", fmt.Sprintf("%.2f", stmt.PayoutAmount)},
		{"Admin fee", fmt.Sprintf("%.2f", stmt.AdminFee)},
		{"Payout deadline", stmt.PayoutDeadline.Format("2 Jan 2006 15:04 MST")},
	}

	pdf.SetFillColor(240, 240, 240)
	for i, row := range rows {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(60, 8, row[0], "1", 0, "L", i%2 == 0, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 8, row[1], "1", 1, "L", i%2 == 0, 0, "")
	}

	pdf.Ln(8)
	pdf.SetFont("Arial", "I", 8)
	pdf.Cell(0, 5, "Payout must be confirmed within the deadline above or it will be retried by the daily settlement run.")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render payout statement: %w", err)
	}
	return buf.Bytes(), nil
}
