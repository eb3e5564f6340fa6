package models

import (
	"errors"
	"time"
)

// BookingStatus enumerates the lifecycle states of a booking.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
)

// BookingStatuses lists every status in lifecycle order.
var BookingStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusConfirmed,
	BookingStatusCancelled,
	BookingStatusCompleted,
}

// ErrSlotTaken is returned by the ledger when another active booking already
// holds the (provider, date, time) key.
var ErrSlotTaken = errors.New("slot already taken by an active booking")

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCancelled, BookingStatusCompleted:
		return true
	}
	return false
}

// IsActive reports whether the status occupies its slot.
func (s BookingStatus) IsActive() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

// IsTerminal reports whether no further transitions are allowed.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCancelled || s == BookingStatusCompleted
}

// Booking is a patient's reservation of a provider slot.
type Booking struct {
	ID         string        `db:"id" json:"id"`
	PatientID  string        `db:"patient_id" json:"patient_id"`
	ProviderID string        `db:"provider_id" json:"provider_id"`
	Date       Date          `db:"booking_date" json:"date"`
	Time       TimeOfDay     `db:"booking_time" json:"time"`
	Status     BookingStatus `db:"status" json:"status"`
	Notes      *string       `db:"notes" json:"notes,omitempty"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at" json:"updated_at"`
}

// IsActive reports whether the booking holds its slot.
func (b *Booking) IsActive() bool { return b.Status.IsActive() }

// IsTerminal reports whether the booking can no longer change status.
func (b *Booking) IsTerminal() bool { return b.Status.IsTerminal() }

// SameSlot reports whether the booking is at the given date and time.
func (b *Booking) SameSlot(date Date, at TimeOfDay) bool {
	return b.Date == date && b.Time == at
}

// NewBooking is the parsed input for a booking request.
type NewBooking struct {
	PatientID  string
	ProviderID string
	Date       Date
	Time       TimeOfDay
	Notes      *string
}

// BookingPatch carries optional field changes for reschedule or status update.
type BookingPatch struct {
	Date   *Date
	Time   *TimeOfDay
	Notes  *string
	Status *BookingStatus
}

// Empty reports whether the patch changes nothing.
func (p BookingPatch) Empty() bool {
	return p.Date == nil && p.Time == nil && p.Notes == nil && p.Status == nil
}

// BookingFilter narrows booking listings.
type BookingFilter struct {
	PatientID  string
	ProviderID string
	Status     *BookingStatus
	DateFrom   *Date
	DateTo     *Date
	Page       int
	PageSize   int
}

// BookingStatusCount is one row of the status summary.
type BookingStatusCount struct {
	Status BookingStatus `db:"status" json:"status"`
	Count  int           `db:"count" json:"count"`
}

// ProviderMonthlyCount is one provider's row of the monthly completion report.
type ProviderMonthlyCount struct {
	ProviderID   string `db:"provider_id" json:"provider_id"`
	ProviderName string `db:"full_name" json:"provider_name"`
	Completed    int    `db:"completed" json:"completed"`
	Patients     int    `db:"patients" json:"patients"`
}

// MonthlyReport counts completed bookings per provider over one calendar month.
type MonthlyReport struct {
	Year      int                    `json:"year"`
	Month     int                    `json:"month"`
	From      Date                   `json:"from"`
	To        Date                   `json:"to"`
	Providers []ProviderMonthlyCount `json:"providers"`
	Completed int                    `json:"completed"`
}

// BookingStats summarises bookings by status.
type BookingStats struct {
	Total    int                   `json:"total"`
	ByStatus map[BookingStatus]int `json:"by_status"`
}

// Slot is a derived bookable time with its occupancy.
type Slot struct {
	Time   TimeOfDay `json:"time"`
	IsFree bool      `json:"is_free"`
}
