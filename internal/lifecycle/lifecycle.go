// Package lifecycle holds the transition tables of both reservation
// families.  Every status change in the service layer is checked here
// before it reaches the database.
package lifecycle

import (
	"errors"
	"fmt"

	"github.com/iliyamo/fablab-reservation/internal/model"
)

// ErrInvalidTransition is wrapped by every rejected transition.
var ErrInvalidTransition = errors.New("invalid status transition")

// TransitionError names the rejected edge.
type TransitionError struct {
	Family model.Family
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot move from %q to %q", e.Family, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

var utilTransitions = map[model.UtilStatus][]model.UtilStatus{
	model.UtilPending:        {model.UtilApproved, model.UtilRejected, model.UtilCancelled},
	model.UtilApproved:       {model.UtilOngoing, model.UtilCancelled},
	model.UtilOngoing:        {model.UtilPendingPayment, model.UtilCompleted, model.UtilCancelled},
	model.UtilPendingPayment: {model.UtilCompleted, model.UtilCancelled},
	model.UtilCompleted:      nil,
	model.UtilRejected:       nil,
	model.UtilCancelled:      nil,
}

var evcTransitions = map[model.EVCStatus][]model.EVCStatus{
	model.EVCPendingTeacher: {model.EVCPendingAdmin, model.EVCRejected, model.EVCCancelled},
	model.EVCPendingAdmin:   {model.EVCApproved, model.EVCRejected, model.EVCCancelled},
	model.EVCApproved:       {model.EVCOngoing, model.EVCCancelled},
	model.EVCOngoing:        {model.EVCCompleted, model.EVCCancelled},
	model.EVCCompleted:      nil,
	model.EVCRejected:       nil,
	model.EVCCancelled:      nil,
}

// CanUtil reports whether a utilization request may move from -> to.
func CanUtil(from, to model.UtilStatus) bool {
	for _, s := range utilTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CanEVC reports whether an EVC reservation may move from -> to.
func CanEVC(from, to model.EVCStatus) bool {
	for _, s := range evcTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CheckUtil returns a *TransitionError when the edge is not allowed.
func CheckUtil(from, to model.UtilStatus) error {
	if CanUtil(from, to) {
		return nil
	}
	return &TransitionError{Family: model.FamilyUtilization, From: string(from), To: string(to)}
}

// CheckEVC returns a *TransitionError when the edge is not allowed.
func CheckEVC(from, to model.EVCStatus) error {
	if CanEVC(from, to) {
		return nil
	}
	return &TransitionError{Family: model.FamilyEVC, From: string(from), To: string(to)}
}

// NextUtil lists the states reachable from s.
func NextUtil(s model.UtilStatus) []model.UtilStatus {
	out := make([]model.UtilStatus, len(utilTransitions[s]))
	copy(out, utilTransitions[s])
	return out
}

// NextEVC lists the states reachable from s.
func NextEVC(s model.EVCStatus) []model.EVCStatus {
	out := make([]model.EVCStatus, len(evcTransitions[s]))
	copy(out, evcTransitions[s])
	return out
}

// UtilTerminal reports whether no transition leaves s.
func UtilTerminal(s model.UtilStatus) bool { return len(utilTransitions[s]) == 0 }

// EVCTerminal reports whether no transition leaves s.
func EVCTerminal(s model.EVCStatus) bool { return len(evcTransitions[s]) == 0 }

// InitialEVC returns the first status of an EVC reservation submitted by
// an account with the given role.  Staff skip teacher approval.
func InitialEVC(role model.Role) model.EVCStatus {
	if role == model.RoleStaff {
		return model.EVCPendingAdmin
	}
	return model.EVCPendingTeacher
}
