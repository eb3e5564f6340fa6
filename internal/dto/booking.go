package dto

// CreateBookingRequest is the payload for POST /bookings. PatientID is only
// honoured for admins booking on behalf of a patient.
type CreateBookingRequest struct {
	PatientID  string  `json:"patient_id,omitempty" validate:"omitempty,uuid"`
	ProviderID string  `json:"provider_id" validate:"required,uuid"`
	Date       string  `json:"date" validate:"required,datetime=2006-01-02"`
	Time       string  `json:"time" validate:"required"`
	Notes      *string `json:"notes"`
}

// UpdateBookingRequest is the payload for PUT /bookings/:id. Absent fields are left unchanged.
type UpdateBookingRequest struct {
	Date   *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Time   *string `json:"time"`
	Notes  *string `json:"notes"`
	Status *string `json:"status" validate:"omitempty,oneof=PENDING CONFIRMED CANCELLED COMPLETED"`
}

// BookingListQuery captures GET /bookings query parameters.
type BookingListQuery struct {
	Status   string `form:"status" validate:"omitempty,oneof=PENDING CONFIRMED CANCELLED COMPLETED"`
	DateFrom string `form:"date_from" validate:"omitempty,datetime=2006-01-02"`
	DateTo   string `form:"date_to" validate:"omitempty,datetime=2006-01-02"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	Limit    int    `form:"limit" validate:"omitempty,min=1,max=100"`
}

// AvailabilityResponse lists the slots of a provider for one day.
type AvailabilityResponse struct {
	ProviderID string         `json:"provider_id"`
	Date       string         `json:"date"`
	Slots      []SlotResponse `json:"slots"`
}

// SlotResponse is a single slot on the availability grid.
type SlotResponse struct {
	Time   string `json:"time"`
	IsFree bool   `json:"is_free"`
}

// ProviderListQuery captures GET /providers query parameters.
type ProviderListQuery struct {
	Page  int `form:"page" validate:"omitempty,min=1"`
	Limit int `form:"limit" validate:"omitempty,min=1,max=100"`
}

// MonthlyReportQuery captures GET /reports/monthly query parameters.
type MonthlyReportQuery struct {
	Year   int    `form:"year" validate:"required,min=1,max=9999"`
	Month  int    `form:"month" validate:"required,min=1,max=12"`
	Format string `form:"format" validate:"omitempty,oneof=json csv pdf"`
}
