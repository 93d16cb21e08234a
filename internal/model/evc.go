package model

import "time"

// EVCStatus is the lifecycle state of an educational-visit reservation.
type EVCStatus string

const (
    EVCPendingTeacher EVCStatus = "Pending Teacher Approval"
    EVCPendingAdmin   EVCStatus = "Pending Admin Approval"
    EVCApproved       EVCStatus = "Approved"
    EVCOngoing        EVCStatus = "Ongoing"
    EVCCompleted      EVCStatus = "Completed"
    EVCRejected       EVCStatus = "Rejected"
    EVCCancelled      EVCStatus = "Cancelled"
)

// ParseEVCStatus reports whether s names a known EVC status.
func ParseEVCStatus(s string) (EVCStatus, bool) {
    switch st := EVCStatus(s); st {
    case EVCPendingTeacher, EVCPendingAdmin, EVCApproved, EVCOngoing,
        EVCCompleted, EVCRejected, EVCCancelled:
        return st, true
    }
    return "", false
}

// RejectionStage records who rejected an EVC reservation.  It is empty
// unless Status is EVCRejected.
type RejectionStage string

const (
    RejectionNone    RejectionStage = ""
    RejectionTeacher RejectionStage = "teacher"
    RejectionAdmin   RejectionStage = "admin"
)

// EVCReservation is a lab booking for an educational visit.  Student
// submissions pass through teacher approval first; staff submissions
// start at admin approval.
type EVCReservation struct {
    ID             uint64           `json:"id"`
    AccountID      uint64           `json:"account_id"`
    Status         EVCStatus        `json:"status"`
    RejectionStage RejectionStage   `json:"rejection_stage,omitempty"`
    RejectReason   *string          `json:"reject_reason,omitempty"`
    CancelReason   *string          `json:"cancel_reason,omitempty"`
    TeacherName    string           `json:"teacher_name"`
    TeacherEmail   string           `json:"teacher_email"`
    Subject        string           `json:"subject"`
    Topic          string           `json:"topic"`
    SchoolLevel    string           `json:"school_level"`
    ClassSize      int              `json:"class_size"`
    TeacherApprovedAt *time.Time    `json:"teacher_approved_at,omitempty"`
    ApprovedBy     *string          `json:"approved_by,omitempty"`
    ReceivedBy     *string          `json:"received_by,omitempty"`
    ReceivedAt     *time.Time       `json:"received_at,omitempty"`
    Students       []EVCStudent     `json:"students"`
    Materials      []NeededMaterial `json:"materials"`
    Slots          []TimeSlot       `json:"slots"`
    CreatedAt      time.Time        `json:"created_at"`
    UpdatedAt      time.Time        `json:"updated_at"`
}

// EVCStudent is a roster entry of an EVC reservation.
type EVCStudent struct {
    ID   uint64 `json:"id"`   // evc_students.id
    Name string `json:"name"` // evc_students.name
}

// NeededMaterial is a material requested for an EVC session.
type NeededMaterial struct {
    ID          uint64 `json:"id"`          // needed_materials.id
    Item        string `json:"item"`        // needed_materials.item
    Quantity    int    `json:"quantity"`    // needed_materials.quantity
    Description string `json:"description"` // needed_materials.description
}

// ApprovalToken is a persisted, single-use teacher approval link.  Only
// the SHA‑256 hash of the raw token is stored.
type ApprovalToken struct {
    ID            uint64     // approval_tokens.id
    EVCID         uint64     // approval_tokens.evc_id
    TokenHash     string     // approval_tokens.token_hash
    TeacherEmail  string     // approval_tokens.teacher_email
    ExpiresAt     time.Time  // approval_tokens.expires_at
    ConsumedAt    *time.Time // approval_tokens.consumed_at (nullable)
    CreatedAt     time.Time  // approval_tokens.created_at
}
