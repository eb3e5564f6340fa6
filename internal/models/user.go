package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleDoctor  UserRole = "DOCTOR"
	RolePatient UserRole = "PATIENT"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	return r == RoleAdmin || r == RoleDoctor || r == RolePatient
}

// User represents an application user stored in the users table.
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	FullName  string    `db:"full_name" json:"full_name"`
	Role      UserRole  `db:"role" json:"role"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Principal is the authorization context resolved once per request.
// ProviderID is set when the user is bound to a provider profile.
type Principal struct {
	UserID     string   `json:"user_id"`
	Role       UserRole `json:"role"`
	ProviderID string   `json:"provider_id,omitempty"`
}

// IsAdmin reports whether the principal holds the administrative role.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// IsPatientOf reports whether the principal is the booking's patient.
func (p Principal) IsPatientOf(b *Booking) bool {
	return p.Role == RolePatient && p.UserID == b.PatientID
}

// IsProviderOf reports whether the principal is the provider bound to the booking.
func (p Principal) IsProviderOf(b *Booking) bool {
	return p.Role == RoleDoctor && p.ProviderID != "" && p.ProviderID == b.ProviderID
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
