package model

import "time"

// DateLayout is the wire and storage format of calendar days.
const DateLayout = "2006-01-02"

// TimeSlot is one day-numbered window of a reservation.  It belongs to
// exactly one UtilReq or EVCReservation.  Start and End are either both
// set, with End after Start, or both nil for an unscheduled day.
type TimeSlot struct {
    ID    uint64     `json:"id"`    // time_slots.id
    Day   int        `json:"day"`   // time_slots.day
    Start *time.Time `json:"start"` // time_slots.start_time (nullable)
    End   *time.Time `json:"end"`   // time_slots.end_time (nullable)
}

// Scheduled reports whether the slot has a concrete window.
func (s TimeSlot) Scheduled() bool { return s.Start != nil && s.End != nil }

// BlockedDate closes the whole facility for one calendar day.  Date is
// stored as YYYY-MM-DD so matching never depends on time of day.
type BlockedDate struct {
    ID        uint64    `json:"id"`         // blocked_dates.id
    Date      string    `json:"date"`       // blocked_dates.blocked_on
    Reason    string    `json:"reason"`     // blocked_dates.reason
    CreatedAt time.Time `json:"created_at"` // blocked_dates.created_at
}

// Availability is the result of a count-based machine availability
// check for one service and time window.
type Availability struct {
    Available         bool `json:"available"`
    AvailableMachines int  `json:"available_machines"`
    TotalMachines     int  `json:"total_machines"`
    BookedMachines    int  `json:"booked_machines"`
}
