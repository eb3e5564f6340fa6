package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/clinic-scheduler-api/pkg/errors"
)

const tracerName = "github.com/noah-isme/clinic-scheduler-api/internal/service"

type bookingLedger interface {
	ActiveBookings(ctx context.Context, providerID string, date models.Date) ([]models.Booking, error)
	ListByProviderDate(ctx context.Context, providerID string, date models.Date) ([]models.Booking, error)
	TryInsert(ctx context.Context, booking *models.Booking) error
	Update(ctx context.Context, id string, mutate func(*models.Booking) error) (*models.Booking, error)
	Get(ctx context.Context, id string) (*models.Booking, error)
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error)
	CountByStatus(ctx context.Context, filter models.BookingFilter) ([]models.BookingStatusCount, error)
}

type providerDirectory interface {
	FindByID(ctx context.Context, id string) (*models.Provider, error)
}

type patientDirectory interface {
	FindPatient(ctx context.Context, id string) (*models.Patient, error)
}

type availabilitySource interface {
	WindowsFor(ctx context.Context, providerID string) ([]models.AvailabilityWindow, error)
}

// BookingObserver receives booking lifecycle events. Implementations must not block.
type BookingObserver interface {
	Observe(ctx context.Context, event models.BookingEvent)
}

type noopObserver struct{}

func (noopObserver) Observe(context.Context, models.BookingEvent) {}

// SchedulingConfig tunes slot generation and booking validation.
type SchedulingConfig struct {
	SlotMinutes        int
	Location           *time.Location
	RejectElapsedToday bool
	NotesMaxLength     int
}

// SchedulingServiceParams groups constructor dependencies.
type SchedulingServiceParams struct {
	Ledger       bookingLedger
	Providers    providerDirectory
	Patients     patientDirectory
	Availability availabilitySource
	Observer     BookingObserver
	Metrics      *MetricsService
	Tracer       trace.Tracer
	Logger       *zap.Logger
	Config       SchedulingConfig
}

// SchedulingService derives free slots and validates booking changes against
// provider availability, the booking ledger and the status policy.
type SchedulingService struct {
	ledger       bookingLedger
	providers    providerDirectory
	patients     patientDirectory
	availability availabilitySource
	observer     BookingObserver
	metrics      *MetricsService
	tracer       trace.Tracer
	logger       *zap.Logger
	now          func() time.Time
	cfg          SchedulingConfig
}

// NewSchedulingService constructs a SchedulingService with sane defaults.
func NewSchedulingService(params SchedulingServiceParams) *SchedulingService {
	cfg := params.Config
	if cfg.SlotMinutes <= 0 {
		cfg.SlotMinutes = DefaultSlotMinutes
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.NotesMaxLength <= 0 {
		cfg.NotesMaxLength = 1000
	}
	observer := params.Observer
	if observer == nil {
		observer = noopObserver{}
	}
	tracer := params.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchedulingService{
		ledger:       params.Ledger,
		providers:    params.Providers,
		patients:     params.Patients,
		availability: params.Availability,
		observer:     observer,
		metrics:      params.Metrics,
		tracer:       tracer,
		logger:       logger,
		now:          time.Now,
		cfg:          cfg,
	}
}

// GetAvailableSlots returns the provider's slots for date in ascending order,
// each marked free unless an active booking holds it.
func (s *SchedulingService) GetAvailableSlots(ctx context.Context, providerID string, date models.Date) (slots []models.Slot, err error) {
	ctx, span := s.tracer.Start(ctx, "SchedulingService.GetAvailableSlots", trace.WithAttributes(
		attribute.String("provider.id", providerID),
		attribute.String("booking.date", date.String()),
	))
	defer func() { finishSpan(span, err) }()

	if err := s.ensureProvider(ctx, providerID); err != nil {
		return nil, err
	}

	windows, err := s.availability.WindowsFor(ctx, providerID)
	if err != nil {
		return nil, err
	}

	times := make(map[models.TimeOfDay]struct{})
	for _, w := range windows {
		seq, err := GenerateSlots(w, s.cfg.SlotMinutes)
		if err != nil {
			return nil, err
		}
		for t := range seq {
			times[t] = struct{}{}
		}
	}

	active, err := s.ledger.ActiveBookings(ctx, providerID, date)
	if err != nil {
		return nil, storageError("list active bookings", err)
	}
	booked := make(map[models.TimeOfDay]struct{}, len(active))
	for _, b := range active {
		booked[b.Time] = struct{}{}
	}

	slots = make([]models.Slot, 0, len(times))
	for _, t := range slices.Sorted(maps.Keys(times)) {
		_, taken := booked[t]
		slots = append(slots, models.Slot{Time: t, IsFree: !taken})
	}
	return slots, nil
}

// CreateBooking validates and records a new PENDING booking. Patients book for
// themselves; admins may book on behalf of req.PatientID.
func (s *SchedulingService) CreateBooking(ctx context.Context, principal models.Principal, req models.NewBooking) (booking *models.Booking, err error) {
	ctx, span := s.tracer.Start(ctx, "SchedulingService.CreateBooking", trace.WithAttributes(
		attribute.String("provider.id", req.ProviderID),
		attribute.String("booking.date", req.Date.String()),
		attribute.String("booking.time", req.Time.String()),
	))
	defer func() { finishSpan(span, err) }()

	switch principal.Role {
	case models.RolePatient:
		req.PatientID = principal.UserID
	case models.RoleAdmin:
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only patients can create bookings")
	}
	if err := s.validateNotes(req.Notes); err != nil {
		return nil, err
	}
	if !req.Time.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, models.ErrInvalidTimeOfDay.Error())
	}

	if err := s.ensureProvider(ctx, req.ProviderID); err != nil {
		return nil, err
	}
	if err := s.ensurePatient(ctx, req.PatientID); err != nil {
		return nil, err
	}
	if err := s.ensureNotPast(req.Date, req.Time); err != nil {
		return nil, err
	}
	if err := s.ensureWithinAvailability(ctx, req.ProviderID, req.Time); err != nil {
		return nil, err
	}

	booking = &models.Booking{
		PatientID:  req.PatientID,
		ProviderID: req.ProviderID,
		Date:       req.Date,
		Time:       req.Time,
		Status:     models.BookingStatusPending,
		Notes:      req.Notes,
	}
	if err := s.ledger.TryInsert(ctx, booking); err != nil {
		if errors.Is(err, models.ErrSlotTaken) {
			s.metrics.RecordBookingConflict()
			return nil, appErrors.Kind(appErrors.ErrSlotConflict, err)
		}
		return nil, storageError("insert booking", err)
	}

	s.metrics.RecordBookingCreated()
	s.logger.Info("booking created",
		zap.String("booking_id", booking.ID),
		zap.String("provider_id", booking.ProviderID),
		zap.String("date", booking.Date.String()),
		zap.String("time", booking.Time.String()))
	s.observer.Observe(ctx, models.NewBookingEvent(models.EventBookingCreated, *booking, s.now()))
	return booking, nil
}

// RescheduleOrUpdate applies a patch to a booking. A changed slot is
// re-validated against availability and the ledger, excluding the booking's own
// row; a status change goes through the transition policy.
func (s *SchedulingService) RescheduleOrUpdate(ctx context.Context, principal models.Principal, bookingID string, patch models.BookingPatch) (updated *models.Booking, err error) {
	ctx, span := s.tracer.Start(ctx, "SchedulingService.RescheduleOrUpdate", trace.WithAttributes(
		attribute.String("booking.id", bookingID),
	))
	defer func() { finishSpan(span, err) }()

	if err := s.validateNotes(patch.Notes); err != nil {
		return nil, err
	}

	current, err := s.loadAuthorized(ctx, principal, bookingID)
	if err != nil {
		return nil, err
	}

	newDate, newTime := current.Date, current.Time
	if patch.Date != nil {
		newDate = *patch.Date
	}
	if patch.Time != nil {
		newTime = *patch.Time
	}
	moving := !current.SameSlot(newDate, newTime)
	if moving {
		if current.IsTerminal() {
			return nil, appErrors.Kind(appErrors.ErrInvalidStateTransition, fmt.Errorf("reschedule %s booking", current.Status))
		}
		if err := s.ensureNotPast(newDate, newTime); err != nil {
			return nil, err
		}
		if err := s.ensureWithinAvailability(ctx, current.ProviderID, newTime); err != nil {
			return nil, err
		}
		if err := s.ensureSlotFree(ctx, current.ProviderID, newDate, newTime, current.ID); err != nil {
			return nil, err
		}
	}

	var previous models.Booking
	updated, err = s.ledger.Update(ctx, bookingID, func(b *models.Booking) error {
		previous = *b
		if moving && !b.IsActive() {
			return appErrors.Kind(appErrors.ErrInvalidStateTransition, fmt.Errorf("reschedule %s booking", b.Status))
		}
		if patch.Status != nil {
			target := *patch.Status
			switch {
			case target != b.Status || b.IsTerminal():
				if err := AuthorizeTransition(principal.Role, b.Status, target); err != nil {
					return err
				}
				b.Status = target
			case !roleMayTarget(principal.Role, target):
				return appErrors.Kind(appErrors.ErrForbidden, fmt.Errorf("role %s may not set status %s", principal.Role, target))
			}
		}
		b.Date, b.Time = newDate, newTime
		if patch.Notes != nil {
			b.Notes = patch.Notes
		}
		return nil
	})
	if err != nil {
		return nil, s.ledgerError("update booking", err)
	}

	s.afterUpdate(ctx, previous, *updated)
	return updated, nil
}

// Cancel moves a booking to CANCELLED.
func (s *SchedulingService) Cancel(ctx context.Context, principal models.Principal, bookingID string) (updated *models.Booking, err error) {
	ctx, span := s.tracer.Start(ctx, "SchedulingService.Cancel", trace.WithAttributes(
		attribute.String("booking.id", bookingID),
	))
	defer func() { finishSpan(span, err) }()

	current, err := s.loadAuthorized(ctx, principal, bookingID)
	if err != nil {
		return nil, err
	}
	if current.IsTerminal() {
		return nil, appErrors.Kind(appErrors.ErrInvalidStateTransition, fmt.Errorf("cancel %s booking", current.Status))
	}

	var previous models.Booking
	updated, err = s.ledger.Update(ctx, bookingID, func(b *models.Booking) error {
		previous = *b
		if err := AuthorizeTransition(principal.Role, b.Status, models.BookingStatusCancelled); err != nil {
			return err
		}
		b.Status = models.BookingStatusCancelled
		return nil
	})
	if err != nil {
		return nil, s.ledgerError("cancel booking", err)
	}

	s.afterUpdate(ctx, previous, *updated)
	return updated, nil
}

// Confirm is RescheduleOrUpdate with a CONFIRMED status patch, limited to providers and admins.
func (s *SchedulingService) Confirm(ctx context.Context, principal models.Principal, bookingID string) (*models.Booking, error) {
	return s.setStatus(ctx, principal, bookingID, models.BookingStatusConfirmed)
}

// Complete is RescheduleOrUpdate with a COMPLETED status patch, limited to providers and admins.
func (s *SchedulingService) Complete(ctx context.Context, principal models.Principal, bookingID string) (*models.Booking, error) {
	return s.setStatus(ctx, principal, bookingID, models.BookingStatusCompleted)
}

func (s *SchedulingService) setStatus(ctx context.Context, principal models.Principal, bookingID string, status models.BookingStatus) (*models.Booking, error) {
	if principal.Role != models.RoleDoctor && principal.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("only providers can set status %s", status))
	}
	return s.RescheduleOrUpdate(ctx, principal, bookingID, models.BookingPatch{Status: &status})
}

// GetBooking returns a booking visible to the principal.
func (s *SchedulingService) GetBooking(ctx context.Context, principal models.Principal, bookingID string) (booking *models.Booking, err error) {
	ctx, span := s.tracer.Start(ctx, "SchedulingService.GetBooking", trace.WithAttributes(
		attribute.String("booking.id", bookingID),
	))
	defer func() { finishSpan(span, err) }()

	return s.loadAuthorized(ctx, principal, bookingID)
}

// ListBookings returns bookings scoped to the principal: patients see their
// own, providers their provider's and admins everything.
func (s *SchedulingService) ListBookings(ctx context.Context, principal models.Principal, filter models.BookingFilter) (bookings []models.Booking, pagination *models.Pagination, err error) {
	ctx, span := s.tracer.Start(ctx, "SchedulingService.ListBookings")
	defer func() { finishSpan(span, err) }()

	filter, err = scopeFilter(principal, filter)
	if err != nil {
		return nil, nil, err
	}

	bookings, total, err := s.ledger.List(ctx, filter)
	if err != nil {
		return nil, nil, storageError("list bookings", err)
	}
	page, size := normalizePage(filter.Page, filter.PageSize)
	return bookings, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Stats counts the principal's visible bookings by status.
func (s *SchedulingService) Stats(ctx context.Context, principal models.Principal) (stats *models.BookingStats, err error) {
	ctx, span := s.tracer.Start(ctx, "SchedulingService.Stats")
	defer func() { finishSpan(span, err) }()

	filter, err := scopeFilter(principal, models.BookingFilter{})
	if err != nil {
		return nil, err
	}
	counts, err := s.ledger.CountByStatus(ctx, filter)
	if err != nil {
		return nil, storageError("count bookings", err)
	}

	stats = &models.BookingStats{ByStatus: make(map[models.BookingStatus]int, len(models.BookingStatuses))}
	for _, status := range models.BookingStatuses {
		stats.ByStatus[status] = 0
	}
	for _, c := range counts {
		stats.ByStatus[c.Status] += c.Count
		stats.Total += c.Count
	}
	return stats, nil
}

// Agenda returns every booking of a provider on date, for the bound provider or an admin.
func (s *SchedulingService) Agenda(ctx context.Context, principal models.Principal, providerID string, date models.Date) (bookings []models.Booking, err error) {
	ctx, span := s.tracer.Start(ctx, "SchedulingService.Agenda", trace.WithAttributes(
		attribute.String("provider.id", providerID),
		attribute.String("booking.date", date.String()),
	))
	defer func() { finishSpan(span, err) }()

	if !principal.IsAdmin() && (principal.Role != models.RoleDoctor || principal.ProviderID != providerID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	if err := s.ensureProvider(ctx, providerID); err != nil {
		return nil, err
	}
	bookings, err = s.ledger.ListByProviderDate(ctx, providerID, date)
	if err != nil {
		return nil, storageError("list agenda", err)
	}
	return bookings, nil
}

func (s *SchedulingService) afterUpdate(ctx context.Context, previous, updated models.Booking) {
	now := s.now()
	if previous.Status != updated.Status {
		s.metrics.RecordBookingStatusChange(string(updated.Status))
		event := models.NewBookingEvent(models.EventBookingStatusChanged, updated, now)
		event.PreviousStatus = previous.Status
		s.observer.Observe(ctx, event)
	}
	if !previous.SameSlot(updated.Date, updated.Time) {
		s.observer.Observe(ctx, models.NewBookingEvent(models.EventBookingRescheduled, updated, now))
	}
	s.logger.Info("booking updated",
		zap.String("booking_id", updated.ID),
		zap.String("status", string(updated.Status)),
		zap.String("previous_status", string(previous.Status)))
}

func (s *SchedulingService) loadAuthorized(ctx context.Context, principal models.Principal, bookingID string) (*models.Booking, error) {
	booking, err := s.ledger.Get(ctx, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "")
		}
		return nil, storageError("get booking", err)
	}
	if !principal.IsAdmin() && !principal.IsPatientOf(booking) && !principal.IsProviderOf(booking) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	return booking, nil
}

func (s *SchedulingService) ensureProvider(ctx context.Context, providerID string) error {
	provider, err := s.providers.FindByID(ctx, providerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrProviderNotFound, "")
		}
		return storageError("find provider", err)
	}
	if !provider.Active {
		return appErrors.Clone(appErrors.ErrProviderNotFound, "")
	}
	return nil
}

// ensurePatient separates a missing identity (PatientNotFound) from an
// identity that exists but is not a patient (Forbidden).
func (s *SchedulingService) ensurePatient(ctx context.Context, patientID string) error {
	if patientID == "" {
		return appErrors.Clone(appErrors.ErrPatientNotFound, "")
	}
	patient, err := s.patients.FindPatient(ctx, patientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrPatientNotFound, "")
		}
		return storageError("find patient", err)
	}
	if patient.Role != models.RolePatient {
		return appErrors.Clone(appErrors.ErrForbidden, "only patients can hold bookings")
	}
	return nil
}

func (s *SchedulingService) ensureNotPast(date models.Date, at models.TimeOfDay) error {
	now := s.now().In(s.cfg.Location)
	today := models.DateOf(now)
	if date.Before(today) {
		return appErrors.Clone(appErrors.ErrPastDate, "")
	}
	if s.cfg.RejectElapsedToday && date == today && at.Before(models.TimeOfDayOf(now)) {
		return appErrors.Clone(appErrors.ErrPastDate, "")
	}
	return nil
}

func (s *SchedulingService) ensureWithinAvailability(ctx context.Context, providerID string, at models.TimeOfDay) error {
	windows, err := s.availability.WindowsFor(ctx, providerID)
	if err != nil {
		return err
	}
	if !windowsContain(windows, at) {
		return appErrors.Clone(appErrors.ErrOutsideAvailability, "")
	}
	return nil
}

// ensureSlotFree is an early, non-atomic check; the ledger's uniqueness
// constraint remains the authority.
func (s *SchedulingService) ensureSlotFree(ctx context.Context, providerID string, date models.Date, at models.TimeOfDay, ignoreID string) error {
	active, err := s.ledger.ActiveBookings(ctx, providerID, date)
	if err != nil {
		return storageError("list active bookings", err)
	}
	for _, b := range active {
		if b.ID != ignoreID && b.Time == at {
			s.metrics.RecordBookingConflict()
			return appErrors.Clone(appErrors.ErrSlotConflict, "")
		}
	}
	return nil
}

func (s *SchedulingService) validateNotes(notes *string) error {
	if notes != nil && utf8.RuneCountInString(*notes) > s.cfg.NotesMaxLength {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("notes must be at most %d characters", s.cfg.NotesMaxLength))
	}
	return nil
}

func (s *SchedulingService) ledgerError(op string, err error) error {
	var appErr *appErrors.Error
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "")
	case errors.Is(err, models.ErrSlotTaken):
		s.metrics.RecordBookingConflict()
		return appErrors.Kind(appErrors.ErrSlotConflict, err)
	case errors.As(err, &appErr):
		return appErr
	default:
		return storageError(op, err)
	}
}

func scopeFilter(principal models.Principal, filter models.BookingFilter) (models.BookingFilter, error) {
	switch principal.Role {
	case models.RolePatient:
		filter.PatientID = principal.UserID
	case models.RoleDoctor:
		if principal.ProviderID == "" {
			return filter, appErrors.Clone(appErrors.ErrProviderNotFound, "")
		}
		filter.ProviderID = principal.ProviderID
	case models.RoleAdmin:
	default:
		return filter, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	return filter, nil
}

func storageError(op string, err error) error {
	return appErrors.Kind(appErrors.ErrStorageUnavailable, fmt.Errorf("%s: %w", op, err))
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
