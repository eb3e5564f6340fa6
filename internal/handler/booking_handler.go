package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/clinic-scheduler-api/internal/dto"
	"github.com/noah-isme/clinic-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/clinic-scheduler-api/pkg/errors"
	"github.com/noah-isme/clinic-scheduler-api/pkg/response"
)

type bookingService interface {
	CreateBooking(ctx context.Context, principal models.Principal, req models.NewBooking) (*models.Booking, error)
	RescheduleOrUpdate(ctx context.Context, principal models.Principal, bookingID string, patch models.BookingPatch) (*models.Booking, error)
	Cancel(ctx context.Context, principal models.Principal, bookingID string) (*models.Booking, error)
	Confirm(ctx context.Context, principal models.Principal, bookingID string) (*models.Booking, error)
	Complete(ctx context.Context, principal models.Principal, bookingID string) (*models.Booking, error)
	GetBooking(ctx context.Context, principal models.Principal, bookingID string) (*models.Booking, error)
	ListBookings(ctx context.Context, principal models.Principal, filter models.BookingFilter) ([]models.Booking, *models.Pagination, error)
	Stats(ctx context.Context, principal models.Principal) (*models.BookingStats, error)
}

// BookingHandler exposes booking lifecycle endpoints.
type BookingHandler struct {
	service   bookingService
	validator *validator.Validate
}

// NewBookingHandler constructs the handler.
func NewBookingHandler(service bookingService, validate *validator.Validate) *BookingHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &BookingHandler{service: service, validator: validate}
}

// Create godoc
// @Summary Book an appointment slot
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body dto.CreateBookingRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	var req dto.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking payload"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking payload"))
		return
	}
	date, err := parseDateParam(req.Date, "date")
	if err != nil {
		response.Error(c, err)
		return
	}
	at, err := parseTimeParam(req.Time, "time")
	if err != nil {
		response.Error(c, err)
		return
	}

	booking, err := h.service.CreateBooking(c.Request.Context(), principal, models.NewBooking{
		PatientID:  req.PatientID,
		ProviderID: req.ProviderID,
		Date:       date,
		Time:       at,
		Notes:      req.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, booking)
}

// List godoc
// @Summary List bookings visible to the caller
// @Tags Bookings
// @Produce json
// @Param status query string false "Booking status"
// @Param date_from query string false "From date (YYYY-MM-DD)"
// @Param date_to query string false "To date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /bookings [get]
func (h *BookingHandler) List(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	var q dto.BookingListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	if err := h.validator.Struct(q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}

	filter := models.BookingFilter{Page: q.Page, PageSize: q.Limit}
	if q.Status != "" {
		status := models.BookingStatus(q.Status)
		filter.Status = &status
	}
	if q.DateFrom != "" {
		from, err := parseDateParam(q.DateFrom, "date_from")
		if err != nil {
			response.Error(c, err)
			return
		}
		filter.DateFrom = &from
	}
	if q.DateTo != "" {
		to, err := parseDateParam(q.DateTo, "date_to")
		if err != nil {
			response.Error(c, err)
			return
		}
		filter.DateTo = &to
	}

	bookings, pagination, err := h.service.ListBookings(c.Request.Context(), principal, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	response.JSON(c, http.StatusOK, bookings, pagination)
}

// Stats godoc
// @Summary Count visible bookings by status
// @Tags Bookings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /bookings/stats [get]
func (h *BookingHandler) Stats(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	stats, err := h.service.Stats(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Get godoc
// @Summary Get a booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /bookings/{id} [get]
func (h *BookingHandler) Get(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", appErrors.ErrNotFound)
	if !ok {
		return
	}
	booking, err := h.service.GetBooking(c.Request.Context(), principal, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// Update godoc
// @Summary Reschedule or update a booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param payload body dto.UpdateBookingRequest true "Patch payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings/{id} [put]
func (h *BookingHandler) Update(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", appErrors.ErrNotFound)
	if !ok {
		return
	}
	var req dto.UpdateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking payload"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking payload"))
		return
	}

	var patch models.BookingPatch
	if req.Date != nil {
		date, err := parseDateParam(*req.Date, "date")
		if err != nil {
			response.Error(c, err)
			return
		}
		patch.Date = &date
	}
	if req.Time != nil {
		at, err := parseTimeParam(*req.Time, "time")
		if err != nil {
			response.Error(c, err)
			return
		}
		patch.Time = &at
	}
	if req.Status != nil {
		status := models.BookingStatus(*req.Status)
		patch.Status = &status
	}
	patch.Notes = req.Notes
	if patch.Empty() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "at least one field must be provided"))
		return
	}

	booking, err := h.service.RescheduleOrUpdate(c.Request.Context(), principal, id, patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// Cancel godoc
// @Summary Cancel a booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id} [delete]
func (h *BookingHandler) Cancel(c *gin.Context) {
	h.transition(c, h.service.Cancel)
}

// Confirm godoc
// @Summary Confirm a pending booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id}/confirm [post]
func (h *BookingHandler) Confirm(c *gin.Context) {
	h.transition(c, h.service.Confirm)
}

// Complete godoc
// @Summary Mark a booking completed
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id}/complete [post]
func (h *BookingHandler) Complete(c *gin.Context) {
	h.transition(c, h.service.Complete)
}

func (h *BookingHandler) transition(c *gin.Context, fn func(context.Context, models.Principal, string) (*models.Booking, error)) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", appErrors.ErrNotFound)
	if !ok {
		return
	}
	booking, err := fn(c.Request.Context(), principal, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}
