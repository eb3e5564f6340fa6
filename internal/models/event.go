package models

import "time"

// BookingEventType names a booking lifecycle event.
type BookingEventType string

const (
	EventBookingCreated       BookingEventType = "booking.created"
	EventBookingStatusChanged BookingEventType = "booking.status_changed"
	EventBookingRescheduled   BookingEventType = "booking.rescheduled"
	EventBookingReminder      BookingEventType = "booking.reminder"
)

// BookingEvent is the payload handed to notification consumers.
type BookingEvent struct {
	Type           BookingEventType `json:"type"`
	BookingID      string           `json:"booking_id"`
	PatientID      string           `json:"patient_id"`
	ProviderID     string           `json:"provider_id"`
	Date           Date             `json:"date"`
	Time           TimeOfDay        `json:"time"`
	Status         BookingStatus    `json:"status"`
	PreviousStatus BookingStatus    `json:"previous_status,omitempty"`
	OccurredAt     time.Time        `json:"occurred_at"`
}

// NewBookingEvent snapshots b into an event of the given type.
func NewBookingEvent(eventType BookingEventType, b Booking, occurredAt time.Time) BookingEvent {
	return BookingEvent{
		Type:       eventType,
		BookingID:  b.ID,
		PatientID:  b.PatientID,
		ProviderID: b.ProviderID,
		Date:       b.Date,
		Time:       b.Time,
		Status:     b.Status,
		OccurredAt: occurredAt.UTC(),
	}
}
