package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"

	"github.com/iliyamo/fablab-reservation/internal/billing"
	"github.com/iliyamo/fablab-reservation/internal/model"
)

// peso formats an amount for the PDF core fonts, which lack the peso
// sign.
func peso(cents int64) string {
	return "PHP " + strings.Replace(billing.FormatPeso(cents), "₱", "", 1)
}

// ReservationPDF renders a one-page summary of u with a signed receipt
// QR code.
func ReservationPDF(u model.UtilReq, owner model.Account, signingKey string, loc *time.Location, issuedAt time.Time) ([]byte, error) {
	payload := ReceiptPayload(signingKey, model.FamilyUtilization, u.ID, u.TotalAmountCents, issuedAt)
	qrPNG, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, fmt.Sprintf("Utilization Request #%d", u.ID))
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 11)
	info := []string{
		"Requester: " + owner.Name + " <" + owner.Email + ">",
		"Status: " + string(u.Status),
		"Created: " + u.CreatedAt.In(loc).Format("2006-01-02 15:04"),
	}
	if u.ReceiptNumber != nil {
		info = append(info, "Receipt No.: "+*u.ReceiptNumber)
	}
	for _, line := range info {
		pdf.Cell(0, 7, tr(line))
		pdf.Ln(7)
	}

	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 155, 10, 40, 40, false, imageOpts, 0, "")

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 11)
	headers := []string{"Service", "Equipment", "Qty", "Rate", "Minutes", "Cost"}
	widths := []float64{45, 45, 15, 30, 20, 35}
	for i, h := range headers {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, l := range u.Services {
		cells := []string{l.ServiceName, l.EquipmentName, fmt.Sprint(l.MachineQuantity),
			peso(l.RateCents), fmt.Sprint(l.Minutes), peso(l.CostCents)}
		for i, c := range cells {
			align := "L"
			if i >= 2 {
				align = "R"
			}
			pdf.CellFormat(widths[i], 7, tr(c), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	if len(u.Downtimes) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 11)
		pdf.Cell(0, 7, "Downtime adjustments")
		pdf.Ln(7)
		pdf.SetFont("Arial", "", 10)
		for _, d := range u.Downtimes {
			pdf.Cell(0, 6, tr(fmt.Sprintf("%d min, -%s (%s)", d.Minutes, peso(d.DeductionCents), d.Reason)))
			pdf.Ln(6)
		}
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Total due: "+peso(u.TotalAmountCents))
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(0, 7, "Schedule")
	pdf.Ln(7)
	pdf.SetFont("Arial", "", 10)
	for _, line := range ScheduleLines(u.Slots, loc) {
		pdf.Cell(0, 6, line)
		pdf.Ln(6)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
