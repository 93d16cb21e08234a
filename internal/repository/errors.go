// Package repository holds the SQL data access layer.  The sentinel
// values below let the service layer distinguish failure scenarios.
// For example, ErrStaleStatus means a conditional status update found
// the row in a different state than expected, while ErrNoCapacity
// means an approval would push a service past its machine count.
package repository

import (
	"errors"
	"strings"
)

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a delete or update cannot be performed
// because of conflicting state, such as deleting a service that is
// still referenced by reservations.
var ErrConflict = errors.New("conflict")

// ErrNotFound is returned when the addressed row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique key.
var ErrDuplicate = errors.New("duplicate")

// ErrStaleStatus is returned by conditional status updates when the row
// is no longer in the expected state.
var ErrStaleStatus = errors.New("status changed")

// ErrNoCapacity is returned when approving a reservation would exceed
// the number of available machines of one of its services.
var ErrNoCapacity = errors.New("no capacity")

// isDuplicate recognises unique-key violations from MySQL (1062) and
// SQLite ("UNIQUE constraint failed").
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "1062") || strings.Contains(msg, "unique constraint")
}
