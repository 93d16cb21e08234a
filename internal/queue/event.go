// Package queue defines the notification payload exchanged over the
// message broker and the consumer that delivers it.
package queue

import "time"

// NotificationKind names the lifecycle transition that produced an event.
type NotificationKind string

const (
    KindApproved                 NotificationKind = "approved"
    KindRejected                 NotificationKind = "rejected"
    KindCancelled                NotificationKind = "cancelled"
    KindTeacherApprovalRequested NotificationKind = "teacher_approval_requested"
    KindTeacherApproved          NotificationKind = "teacher_approved"
    KindTeacherRejected          NotificationKind = "teacher_rejected"
)

// NotificationEvent is published once per lifecycle transition that
// should reach a person by email.  It carries everything the mail
// templates need so consumers never query the primary database.
type NotificationEvent struct {
    ID             string           `json:"id"`
    Kind           NotificationKind `json:"kind"`
    Family         string           `json:"family"` // "utilization" or "evc"
    ReservationID  uint64           `json:"reservation_id"`
    RecipientEmail string           `json:"recipient_email"`
    RecipientName  string           `json:"recipient_name"`
    Reason         string           `json:"reason,omitempty"`
    Services       []string         `json:"services,omitempty"`
    Schedule       []string         `json:"schedule,omitempty"`
    Link           string           `json:"link,omitempty"`
    OccurredAt     time.Time        `json:"occurred_at"`
}
