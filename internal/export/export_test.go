package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/iliyamo/fablab-reservation/internal/model"
)

func sampleReq() model.UtilReq {
	start := time.Date(2026, 10, 20, 1, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)
	receipt := "OR-0042"
	return model.UtilReq{
		ID:        7,
		AccountID: 3,
		Status:    model.UtilCompleted,
		Services: []model.UserService{
			{ServiceName: "Laser Cutting", EquipmentName: "Laser A", MachineQuantity: 1, RateCents: 10000, Minutes: 90, CostCents: 20000},
		},
		Downtimes:        []model.DowntimeAdjustment{{Minutes: 30, DeductionCents: 10000, Reason: "power outage"}},
		Slots:            []model.TimeSlot{{Day: 1, Start: &start, End: &end}, {Day: 2}},
		TotalAmountCents: 10000,
		ReceiptNumber:    &receipt,
		CreatedAt:        start,
	}
}

func TestReceiptPayloadRoundTrip(t *testing.T) {
	issued := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	p := ReceiptPayload("k1", model.FamilyUtilization, 7, 10000, issued)

	id, ok := VerifyReceipt("k1", p)
	require.True(t, ok)
	assert.Equal(t, uint64(7), id)

	_, ok = VerifyReceipt("k2", p)
	assert.False(t, ok, "wrong key")

	tampered := bytes.Replace([]byte(p), []byte("|10000|"), []byte("|1|"), 1)
	_, ok = VerifyReceipt("k1", string(tampered))
	assert.False(t, ok, "tampered total")

	_, ok = VerifyReceipt("k1", "garbage")
	assert.False(t, ok)
}

func TestScheduleLines(t *testing.T) {
	manila, err := time.LoadLocation("Asia/Manila")
	require.NoError(t, err)
	lines := ScheduleLines(sampleReq().Slots, manila)
	assert.Equal(t, []string{
		"Day 1: 2026-10-20 9:00 AM-10:30 AM",
		"Day 2: to be scheduled",
	}, lines)
}

func TestReservationPDF(t *testing.T) {
	out, err := ReservationPDF(sampleReq(), model.Account{Name: "Ana", Email: "ana@example.com"}, "k1", time.UTC, time.Now())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestReservationReport(t *testing.T) {
	out, err := ReservationReport([]model.UtilReq{sampleReq()}, time.UTC)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Reservations", "Line Items"}, f.GetSheetList())

	rows, err := f.GetRows("Reservations")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "7", rows[1][0])
	assert.Equal(t, "Completed", rows[1][2])
	assert.Equal(t, "100", rows[1][4])
	assert.Equal(t, "OR-0042", rows[1][5])

	lines, err := f.GetRows("Line Items")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "Laser Cutting", lines[1][1])
	assert.Equal(t, "200", lines[1][6])
}
