// Package billing derives amounts due from service rates and booked time.
// All amounts are integer centavos.
package billing

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/iliyamo/fablab-reservation/internal/model"
)

// ParseClock converts a 12-hour clock string such as "9:30 AM" into
// minutes since midnight.
func ParseClock(s string) (int, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	var suffix string
	switch {
	case strings.HasSuffix(s, "AM"):
		suffix = "AM"
	case strings.HasSuffix(s, "PM"):
		suffix = "PM"
	default:
		return 0, fmt.Errorf("clock %q: missing AM/PM", s)
	}
	hm := strings.TrimSpace(strings.TrimSuffix(s, suffix))
	parts := strings.Split(hm, ":")
	if len(parts) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("clock %q: want H:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 1 || h > 12 {
		return 0, fmt.Errorf("clock %q: bad hour", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock %q: bad minute", s)
	}
	if h == 12 {
		h = 0
	}
	if suffix == "PM" {
		h += 12
	}
	return h*60 + m, nil
}

// CalculateDuration returns the hours between two clock strings, never
// negative.
func CalculateDuration(start, end string) (float64, error) {
	s, err := ParseClock(start)
	if err != nil {
		return 0, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return 0, err
	}
	return math.Max(0, float64(e-s)/60), nil
}

// BillableHours rounds a duration up to whole hours.
func BillableHours(hours float64) int {
	if hours <= 0 {
		return 0
	}
	return int(math.Ceil(hours))
}

// BillableHoursFromMinutes is BillableHours without float rounding.
func BillableHoursFromMinutes(minutes int) int {
	if minutes <= 0 {
		return 0
	}
	return (minutes + 59) / 60
}

// LineCost is billable hours × rate × machine quantity.
func LineCost(billableHours int, rateCents int64, quantity int) int64 {
	if quantity < 1 {
		quantity = 1
	}
	return int64(billableHours) * rateCents * int64(quantity)
}

// ServiceCost prices one service over every slot of a reservation.
// Each slot is rounded up separately.  It returns total minutes booked
// and the cost.
func ServiceCost(rateCents int64, quantity int, slotMinutes []int) (int, int64) {
	var minutes int
	var cost int64
	for _, m := range slotMinutes {
		if m <= 0 {
			continue
		}
		minutes += m
		cost += LineCost(BillableHoursFromMinutes(m), rateCents, quantity)
	}
	return minutes, cost
}

// SlotMinutes returns the scheduled minutes of every slot; unscheduled
// slots contribute zero.
func SlotMinutes(slots []model.TimeSlot) []int {
	out := make([]int, 0, len(slots))
	for _, s := range slots {
		if !s.Scheduled() {
			out = append(out, 0)
			continue
		}
		out = append(out, int(s.End.Sub(*s.Start).Minutes()))
	}
	return out
}

// DowntimeDeduction prices lost machine time on one line.  Partial
// hours round up.  prior holds the adjustments already recorded; only
// those on the same line count, and together with the new deduction
// they never exceed the line cost.
func DowntimeDeduction(minutes int, line model.UserService, prior []model.DowntimeAdjustment) int64 {
	left := line.CostCents
	for _, p := range prior {
		if p.UserServiceID == line.ID {
			left -= p.DeductionCents
		}
	}
	if left <= 0 {
		return 0
	}
	return min(LineCost(BillableHoursFromMinutes(minutes), line.RateCents, line.MachineQuantity), left)
}

// Total sums line costs and subtracts downtime deductions, flooring at
// zero.
func Total(lines []model.UserService, downtimes []model.DowntimeAdjustment) int64 {
	var total int64
	for _, l := range lines {
		total += l.CostCents
	}
	for _, d := range downtimes {
		total -= d.DeductionCents
	}
	if total < 0 {
		return 0
	}
	return total
}

var printer = message.NewPrinter(language.English)

// FormatPeso renders centavos as Philippine pesos with two decimals.
func FormatPeso(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return sign + printer.Sprintf("₱%.2f", float64(cents)/100)
}
