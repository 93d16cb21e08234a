package model

import (
    "encoding/json"
    "strings"
    "time"
)

// Role gates which operations an account may perform.  Roles are stored
// as upper-case strings in the `accounts.role` column and copied into the
// "role" claim of access tokens.
type Role string

const (
    RoleClient   Role = "CLIENT"
    RoleBusiness Role = "BUSINESS"
    RoleStudent  Role = "STUDENT"
    RoleStaff    Role = "STAFF"
    RoleAdmin    Role = "ADMIN"
    RoleCashier  Role = "CASHIER"
)

// AllRoles lists every role in display order.
var AllRoles = []Role{RoleClient, RoleBusiness, RoleStudent, RoleStaff, RoleAdmin, RoleCashier}

// ParseRole normalises s and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
    r := Role(strings.ToUpper(strings.TrimSpace(s)))
    for _, known := range AllRoles {
        if r == known {
            return r, true
        }
    }
    return "", false
}

// Account represents a row in the `accounts` table.  An account is
// created the first time a user signs in through the external identity
// provider; the provider's subject id is kept in Subject.
//
// Fields:
//  ID        – primary key identifier.
//  Subject   – identity provider subject (unique).
//  Name      – display name reported by the identity provider.
//  Email     – lower-cased email address (unique).
//  Role      – role assigned at creation, mutable by admins only.
//  CreatedAt – timestamp of creation.
//  UpdatedAt – timestamp of last update.
type Account struct {
    ID        uint64    `json:"id"`         // accounts.id
    Subject   string    `json:"subject"`    // accounts.subject
    Name      string    `json:"name"`       // accounts.name
    Email     string    `json:"email"`      // accounts.email
    Role      Role      `json:"role"`       // accounts.role
    CreatedAt time.Time `json:"created_at"` // accounts.created_at
    UpdatedAt time.Time `json:"updated_at"` // accounts.updated_at
}

// ClientInfo is the contact profile of a CLIENT account.
type ClientInfo struct {
    AccountID     uint64 `json:"account_id"`     // client_info.account_id
    Address       string `json:"address"`        // client_info.address
    ContactNumber string `json:"contact_number"` // client_info.contact_number
    Designation   string `json:"designation"`    // client_info.designation
    Affiliation   string `json:"affiliation"`    // client_info.affiliation
}

// BusinessInfo is the profile of a BUSINESS account.  It is mutually
// exclusive with ClientInfo.
type BusinessInfo struct {
    AccountID     uint64 `json:"account_id"`     // business_info.account_id
    Address       string `json:"address"`        // business_info.address
    ContactNumber string `json:"contact_number"` // business_info.contact_number
    CompanyName   string `json:"company_name"`   // business_info.company_name
    BusinessType  string `json:"business_type"`  // business_info.business_type
    TIN           string `json:"tin"`            // business_info.tin
    EmployeeCount int    `json:"employee_count"` // business_info.employee_count
}

// BusinessProfile is either BusinessOwner or NotApplicable.
type BusinessProfile interface {
    isBusinessProfile()
}

// BusinessOwner carries the fields collected from MSME owners.
type BusinessOwner struct {
    CompanyName   string `json:"company_name"`
    BusinessType  string `json:"business_type"`
    TIN           string `json:"tin"`
    EmployeeCount int    `json:"employee_count"`
}

// NotApplicable marks a client that does not own a business.
type NotApplicable struct{}

func (BusinessOwner) isBusinessProfile() {}
func (NotApplicable) isBusinessProfile() {}

// ProfileInput is the payload of PUT /v1/me/profile.  A null or missing
// "business" object decodes to NotApplicable.
type ProfileInput struct {
    Address       string          `json:"address"`
    ContactNumber string          `json:"contact_number"`
    Designation   string          `json:"designation"`
    Affiliation   string          `json:"affiliation"`
    Business      BusinessProfile `json:"-"`
}

// UnmarshalJSON decodes the flat contact fields and resolves the
// business object into the BusinessProfile sum type.
func (p *ProfileInput) UnmarshalJSON(b []byte) error {
    var raw struct {
        Address       string          `json:"address"`
        ContactNumber string          `json:"contact_number"`
        Designation   string          `json:"designation"`
        Affiliation   string          `json:"affiliation"`
        Business      *BusinessOwner  `json:"business"`
    }
    if err := json.Unmarshal(b, &raw); err != nil {
        return err
    }
    p.Address = raw.Address
    p.ContactNumber = raw.ContactNumber
    p.Designation = raw.Designation
    p.Affiliation = raw.Affiliation
    if raw.Business != nil {
        p.Business = *raw.Business
    } else {
        p.Business = NotApplicable{}
    }
    return nil
}

// TeacherEmail is an allowlist entry.  Accounts created with a listed
// email become STAFF and the entry is marked verified.
type TeacherEmail struct {
    ID        uint64    `json:"id"`         // teacher_emails.id
    Email     string    `json:"email"`      // teacher_emails.email
    Verified  bool      `json:"verified"`   // teacher_emails.verified
    CreatedAt time.Time `json:"created_at"` // teacher_emails.created_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA‑256 hash of the token is stored.
type RefreshToken struct {
    ID        uint64     // refresh_tokens.id
    AccountID uint64     // refresh_tokens.account_id
    TokenHash string     // refresh_tokens.token_hash
    ExpiresAt time.Time  // refresh_tokens.expires_at
    RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
    CreatedAt time.Time  // refresh_tokens.created_at
}
