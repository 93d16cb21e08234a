package model

import "time"

// Family distinguishes the two reservation entity families.
type Family string

const (
    FamilyUtilization Family = "utilization"
    FamilyEVC         Family = "evc"
)

// SurveyLink ties a survey artifact to exactly one reservation.
type SurveyLink struct {
    Family        Family
    ReservationID uint64
}

// PreliminarySurvey holds the client profile questions asked before
// the satisfaction questions (CC1–CC3 are citizen's charter answers).
type PreliminarySurvey struct {
    ClientType     string `json:"client_type"`
    Sex            string `json:"sex"`
    AgeGroup       string `json:"age_group"`
    Region         string `json:"region"`
    ServiceAvailed string `json:"service_availed"`
    CC1            string `json:"cc1"`
    CC2            string `json:"cc2"`
    CC3            string `json:"cc3"`
}

// CustomerFeedback holds the SQD0–SQD8 satisfaction ratings (1–5).
type CustomerFeedback struct {
    SQD         [9]int `json:"sqd"`
    Suggestions string `json:"suggestions"`
}

// EmployeeEvaluation holds the E1–E17 staff evaluation ratings (1–5).
type EmployeeEvaluation struct {
    E        [17]int `json:"e"`
    Comments string  `json:"comments"`
}

// SurveySubmission is the payload of one survey submission.  The three
// parts are stored together with the reservation status change.
type SurveySubmission struct {
    Preliminary PreliminarySurvey  `json:"preliminary"`
    Feedback    CustomerFeedback   `json:"feedback"`
    Evaluation  EmployeeEvaluation `json:"evaluation"`
    SubmittedAt time.Time          `json:"submitted_at"`
}
