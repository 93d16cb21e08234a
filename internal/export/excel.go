package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/iliyamo/fablab-reservation/internal/model"
)

var (
	reservationColumns = []string{"ID", "Account", "Status", "Services", "Total (PHP)", "Receipt No.", "Paid At", "Created At"}
	lineColumns        = []string{"Reservation ID", "Service", "Equipment", "Quantity", "Minutes", "Rate (PHP)", "Cost (PHP)"}
)

// ReservationReport builds a workbook with one "Reservations" sheet and
// one "Line Items" sheet.  Amounts are written as pesos.
func ReservationReport(reqs []model.UtilReq, loc *time.Location) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", "Reservations"); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet("Line Items"); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if err := writeRow(f, "Reservations", 1, toAny(reservationColumns)); err != nil {
		return nil, err
	}
	if err := writeRow(f, "Line Items", 1, toAny(lineColumns)); err != nil {
		return nil, err
	}
	boldHeader(f, "Reservations", len(reservationColumns))
	boldHeader(f, "Line Items", len(lineColumns))

	lineRow := 2
	for i, u := range reqs {
		paid := ""
		if u.PaidAt != nil {
			paid = u.PaidAt.In(loc).Format("2006-01-02 15:04")
		}
		receipt := ""
		if u.ReceiptNumber != nil {
			receipt = *u.ReceiptNumber
		}
		row := []any{u.ID, u.AccountID, string(u.Status), strings.Join(u.ServiceNames(), ", "),
			pesos(u.TotalAmountCents), receipt, paid, u.CreatedAt.In(loc).Format("2006-01-02 15:04")}
		if err := writeRow(f, "Reservations", i+2, row); err != nil {
			return nil, err
		}
		for _, l := range u.Services {
			line := []any{u.ID, l.ServiceName, l.EquipmentName, l.MachineQuantity, l.Minutes, pesos(l.RateCents), pesos(l.CostCents)}
			if err := writeRow(f, "Line Items", lineRow, line); err != nil {
				return nil, err
			}
			lineRow++
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, vals []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &vals)
}

func boldHeader(f *excelize.File, sheet string, cols int) {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return
	}
	end, _ := excelize.CoordinatesToCellName(cols, 1)
	_ = f.SetCellStyle(sheet, "A1", end, style)
}

func toAny(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

func pesos(cents int64) float64 { return float64(cents) / 100 }
