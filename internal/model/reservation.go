package model

import "time"

// UtilStatus is the lifecycle state of a utilization request.
type UtilStatus string

const (
    UtilPending        UtilStatus = "Pending"
    UtilApproved       UtilStatus = "Approved"
    UtilOngoing        UtilStatus = "Ongoing"
    UtilPendingPayment UtilStatus = "Pending Payment"
    UtilCompleted      UtilStatus = "Completed"
    UtilRejected       UtilStatus = "Rejected"
    UtilCancelled      UtilStatus = "Cancelled"
)

// ParseUtilStatus reports whether s names a known utilization status.
func ParseUtilStatus(s string) (UtilStatus, bool) {
    switch st := UtilStatus(s); st {
    case UtilPending, UtilApproved, UtilOngoing, UtilPendingPayment,
        UtilCompleted, UtilRejected, UtilCancelled:
        return st, true
    }
    return "", false
}

// UtilReq records a machine/service utilization request.  Line items
// are the source of truth for the amount due; TotalAmountCents is the
// derived value kept on the row for listing and reporting.
//
// Fields:
//  ID               – primary key identifier.
//  AccountID        – requesting account.
//  Status           – lifecycle state.
//  Services         – requested services with their computed cost.
//  Tools            – requested tools.
//  Slots            – one or more day-numbered time windows.
//  Downtimes        – typed downtime adjustments deducted from the total.
//  TotalAmountCents – Σ line costs − Σ downtime deductions (centavos).
//  ReceiptNumber    – cashier receipt number (nullable).
//  PaidAt           – payment timestamp (nullable).
//  Comments         – requester free text.
//  ApprovedBy       – admin who approved (nullable).
//  ReceivedBy       – admin who marked the job received (nullable).
//  ReceivedAt       – when the job was received (nullable).
//  RejectReason     – reason supplied on rejection (nullable).
//  CancelReason     – reason supplied on cancellation (nullable).
type UtilReq struct {
    ID               uint64               `json:"id"`
    AccountID        uint64               `json:"account_id"`
    Status           UtilStatus           `json:"status"`
    Services         []UserService        `json:"services"`
    Tools            []UserTool           `json:"tools"`
    Slots            []TimeSlot           `json:"slots"`
    Downtimes        []DowntimeAdjustment `json:"downtimes"`
    TotalAmountCents int64                `json:"total_amount_cents"`
    ReceiptNumber    *string              `json:"receipt_number,omitempty"`
    PaidAt           *time.Time           `json:"paid_at,omitempty"`
    Comments         string               `json:"comments"`
    ApprovedBy       *string              `json:"approved_by,omitempty"`
    ReceivedBy       *string              `json:"received_by,omitempty"`
    ReceivedAt       *time.Time           `json:"received_at,omitempty"`
    RejectReason     *string              `json:"reject_reason,omitempty"`
    CancelReason     *string              `json:"cancel_reason,omitempty"`
    CreatedAt        time.Time            `json:"created_at"`
    UpdatedAt        time.Time            `json:"updated_at"`
}

// UserService is a service line item on a utilization request.
type UserService struct {
    ID              uint64 `json:"id"`               // user_services.id
    ServiceID       uint64 `json:"service_id"`       // user_services.service_id
    ServiceName     string `json:"service_name"`     // user_services.service_name
    EquipmentName   string `json:"equipment_name"`   // user_services.equipment_name
    MachineQuantity int    `json:"machine_quantity"` // user_services.machine_quantity
    RateCents       int64  `json:"rate_cents"`       // user_services.rate_cents (rate at booking time)
    Minutes         int    `json:"minutes"`          // user_services.minutes
    CostCents       int64  `json:"cost_cents"`       // user_services.cost_cents
}

// UserTool is a tool line item on a utilization request.
type UserTool struct {
    ID       uint64 `json:"id"`       // user_tools.id
    Name     string `json:"name"`     // user_tools.name
    Quantity int    `json:"quantity"` // user_tools.quantity
}

// DowntimeAdjustment deducts lost machine time from one service line.
type DowntimeAdjustment struct {
    ID             uint64    `json:"id"`              // downtime_adjustments.id
    UserServiceID  uint64    `json:"user_service_id"` // downtime_adjustments.user_service_id
    Minutes        int       `json:"minutes"`         // downtime_adjustments.minutes
    DeductionCents int64     `json:"deduction_cents"` // downtime_adjustments.deduction_cents
    Reason         string    `json:"reason"`          // downtime_adjustments.reason
    RecordedBy     string    `json:"recorded_by"`     // downtime_adjustments.recorded_by
    CreatedAt      time.Time `json:"created_at"`      // downtime_adjustments.created_at
}

// ServiceNames returns the distinct service names on the request.
func (r *UtilReq) ServiceNames() []string {
    seen := make(map[string]struct{}, len(r.Services))
    out := make([]string, 0, len(r.Services))
    for _, s := range r.Services {
        if _, ok := seen[s.ServiceName]; ok {
            continue
        }
        seen[s.ServiceName] = struct{}{}
        out = append(out, s.ServiceName)
    }
    return out
}
