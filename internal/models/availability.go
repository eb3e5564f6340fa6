package models

import (
	"errors"
	"fmt"
)

// ErrWindowOrder is returned when a window does not start before it ends.
var ErrWindowOrder = errors.New("availability window must start before it ends")

// AvailabilityWindow is a recurring daily interval in which a provider accepts bookings.
type AvailabilityWindow struct {
	ID         string    `db:"id" json:"id"`
	ProviderID string    `db:"provider_id" json:"provider_id"`
	StartTime  TimeOfDay `db:"start_time" json:"start_time"`
	EndTime    TimeOfDay `db:"end_time" json:"end_time"`
	Active     bool      `db:"active" json:"active"`
}

// Validate checks the window ordering.
func (w AvailabilityWindow) Validate() error {
	if !w.StartTime.Valid() || !w.EndTime.Valid() {
		return ErrInvalidTimeOfDay
	}
	if !w.StartTime.Before(w.EndTime) {
		return ErrWindowOrder
	}
	return nil
}

// Contains reports whether start <= t < end.
func (w AvailabilityWindow) Contains(t TimeOfDay) bool {
	return !t.Before(w.StartTime) && t.Before(w.EndTime)
}

func (w AvailabilityWindow) String() string {
	return fmt.Sprintf("%s-%s", w.StartTime, w.EndTime)
}

// ParseAvailabilityWindow builds a window from its HH:MM boundary representation.
func ParseAvailabilityWindow(providerID, start, end string, active bool) (AvailabilityWindow, error) {
	startTime, err := ParseTimeOfDay(start)
	if err != nil {
		return AvailabilityWindow{}, fmt.Errorf("start time %q: %w", start, err)
	}
	endTime, err := ParseTimeOfDay(end)
	if err != nil {
		return AvailabilityWindow{}, fmt.Errorf("end time %q: %w", end, err)
	}
	w := AvailabilityWindow{ProviderID: providerID, StartTime: startTime, EndTime: endTime, Active: active}
	if err := w.Validate(); err != nil {
		return AvailabilityWindow{}, err
	}
	return w, nil
}

// AvailabilityWindowRow is the raw storage form, parsed once at the boundary.
type AvailabilityWindowRow struct {
	ID         string `db:"id"`
	ProviderID string `db:"provider_id"`
	StartTime  string `db:"start_time"`
	EndTime    string `db:"end_time"`
	Active     bool   `db:"active"`
}

// Provider is the provider-directory record the scheduler depends on.
type Provider struct {
	ID       string `db:"id" json:"id"`
	UserID   string `db:"user_id" json:"user_id"`
	FullName string `db:"full_name" json:"full_name"`
	Active   bool   `db:"active" json:"active"`
}

// Patient is the identity-directory record the scheduler depends on.
type Patient struct {
	ID   string   `db:"id" json:"id"`
	Role UserRole `db:"role" json:"role"`
}
