package model

import "time"

// Service is a billable facility service (e.g. laser cutting, 3D
// printing).  A service may run on several machines and a machine may
// offer several services; the association lives in `machine_services`.
//
// Fields:
//  ID          – primary key identifier.
//  Name        – unique service name; line items reference it by name.
//  RateCents   – cost per billing unit in centavos.
//  BillingUnit – unit label, e.g. "hour".
//  Icon        – optional icon reference.
//  Description – optional description.
//  MachineIDs  – associated machines (populated on reads).
type Service struct {
    ID          uint64    `json:"id"`           // services.id
    Name        string    `json:"name"`         // services.name
    RateCents   int64     `json:"rate_cents"`   // services.rate_cents
    BillingUnit string    `json:"billing_unit"` // services.billing_unit
    Icon        *string   `json:"icon,omitempty"`
    Description *string   `json:"description,omitempty"`
    MachineIDs  []uint64  `json:"machine_ids"`
    CreatedAt   time.Time `json:"created_at"`
    UpdatedAt   time.Time `json:"updated_at"`
}

// Machine is a physical piece of equipment.  IsAvailable is a manual
// toggle maintained by admins and is not derived from bookings.
type Machine struct {
    ID           uint64    `json:"id"`           // machines.id
    Name         string    `json:"name"`         // machines.name
    Description  *string   `json:"description,omitempty"`
    IsAvailable  bool      `json:"is_available"` // machines.is_available
    Instructions *string   `json:"instructions,omitempty"`
    Link         *string   `json:"link,omitempty"`
    ServiceIDs   []uint64  `json:"service_ids"`
    CreatedAt    time.Time `json:"created_at"`
    UpdatedAt    time.Time `json:"updated_at"`
}
