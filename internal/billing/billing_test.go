package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/fablab-reservation/internal/model"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"12:00 AM", 0, false},
		{"9:30 AM", 570, false},
		{"12:15 PM", 735, false},
		{"1:00 PM", 780, false},
		{"11:59 pm", 1439, false},
		{"13:00 PM", 0, true},
		{"9:5 AM", 0, true},
		{"9:30", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalculateDuration(t *testing.T) {
	h, err := CalculateDuration("8:00 AM", "9:30 AM")
	require.NoError(t, err)
	assert.InDelta(t, 1.5, h, 1e-9)

	h, err = CalculateDuration("3:00 PM", "1:00 PM")
	require.NoError(t, err)
	assert.Equal(t, 0.0, h)
}

func TestBillableHours(t *testing.T) {
	assert.Equal(t, 0, BillableHours(0))
	assert.Equal(t, 1, BillableHours(0.1))
	assert.Equal(t, 2, BillableHours(1.5))
	assert.Equal(t, 2, BillableHours(2))
	assert.Equal(t, 2, BillableHoursFromMinutes(61))
	assert.Equal(t, 1, BillableHoursFromMinutes(60))
}

func TestServiceCostTwoSlots(t *testing.T) {
	// 1.5h and 2h at 100/h, quantity 1: ceil(1.5)+ceil(2) = 4 hours.
	minutes, cost := ServiceCost(10000, 1, []int{90, 120})
	assert.Equal(t, 210, minutes)
	assert.Equal(t, int64(40000), cost)

	_, cost = ServiceCost(10000, 2, []int{90, 120})
	assert.Equal(t, int64(80000), cost)
}

func TestSlotMinutesSkipsUnscheduled(t *testing.T) {
	start := time.Date(2026, 10, 20, 1, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)
	got := SlotMinutes([]model.TimeSlot{{Day: 1, Start: &start, End: &end}, {Day: 2}})
	assert.Equal(t, []int{90, 0}, got)
}

func TestTotalWithDowntime(t *testing.T) {
	lines := []model.UserService{
		{ID: 1, RateCents: 10000, MachineQuantity: 1, CostCents: 40000},
		{ID: 2, RateCents: 5000, MachineQuantity: 2, CostCents: 20000},
	}
	d := DowntimeDeduction(30, lines[0], nil)
	assert.Equal(t, int64(10000), d)
	assert.Equal(t, int64(50000), Total(lines, []model.DowntimeAdjustment{{UserServiceID: 1, DeductionCents: d}}))

	// capped at the line cost
	assert.Equal(t, int64(20000), DowntimeDeduction(600, lines[1], nil))
	assert.Equal(t, int64(0), Total(lines[:1], []model.DowntimeAdjustment{{DeductionCents: 50000}}))
}

func TestDowntimeDeductionCapsAtRemainingLineCost(t *testing.T) {
	a := model.UserService{ID: 1, RateCents: 10000, MachineQuantity: 1, CostCents: 10000}
	b := model.UserService{ID: 2, RateCents: 10000, MachineQuantity: 1, CostCents: 30000}

	var downs []model.DowntimeAdjustment
	for _, want := range []int64{10000, 0, 0} {
		d := DowntimeDeduction(60, a, downs)
		assert.Equal(t, want, d)
		downs = append(downs, model.DowntimeAdjustment{UserServiceID: a.ID, DeductionCents: d})
	}
	assert.Equal(t, int64(30000), Total([]model.UserService{a, b}, downs))

	// Adjustments on another line do not reduce this line's headroom.
	assert.Equal(t, int64(20000), DowntimeDeduction(120, b, downs))
	partial := []model.DowntimeAdjustment{{UserServiceID: b.ID, DeductionCents: 25000}}
	assert.Equal(t, int64(5000), DowntimeDeduction(120, b, partial))
}

func TestFormatPeso(t *testing.T) {
	assert.Equal(t, "₱400.00", FormatPeso(40000))
	assert.Equal(t, "₱0.05", FormatPeso(5))
	assert.Equal(t, "-₱1.50", FormatPeso(-150))
	assert.Equal(t, "₱1,234,567.89", FormatPeso(123456789))
}
