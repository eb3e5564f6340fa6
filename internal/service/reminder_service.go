package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-scheduler-api/internal/models"
	"github.com/noah-isme/clinic-scheduler-api/pkg/events"
)

// TypeBookingReminder is the asynq task type for appointment reminders.
const TypeBookingReminder = "booking:reminder"

// ReminderPayload identifies the booking slot a reminder was scheduled for.
type ReminderPayload struct {
	BookingID string           `json:"booking_id"`
	Date      models.Date      `json:"date"`
	Time      models.TimeOfDay `json:"time"`
}

// NewReminderTask builds the asynq task that fires at fireAt.
func NewReminderTask(payload ReminderPayload, fireAt time.Time) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeBookingReminder, b)
	opts := []asynq.Option{
		asynq.ProcessAt(fireAt),
		asynq.TaskID(fmt.Sprintf("reminder:%s:%s:%s", payload.BookingID, payload.Date, payload.Time)),
		asynq.MaxRetry(5),
	}
	return task, opts, nil
}

type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ReminderService schedules reminders a fixed lead time before each booking.
type ReminderService struct {
	client   taskEnqueuer
	leadTime time.Duration
	location *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

// NewReminderService constructs a ReminderService.
func NewReminderService(client taskEnqueuer, leadTime time.Duration, location *time.Location, logger *zap.Logger) *ReminderService {
	if leadTime <= 0 {
		leadTime = 24 * time.Hour
	}
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderService{client: client, leadTime: leadTime, location: location, logger: logger, now: time.Now}
}

// Schedule enqueues a reminder for the event's slot. Reminders whose fire time
// has already passed are skipped; a slot already scheduled is not duplicated.
func (s *ReminderService) Schedule(ctx context.Context, event models.BookingEvent) error {
	fireAt := event.Date.At(event.Time, s.location).Add(-s.leadTime)
	if !fireAt.After(s.now()) {
		s.logger.Debug("reminder window already passed", zap.String("booking_id", event.BookingID))
		return nil
	}

	task, opts, err := NewReminderTask(ReminderPayload{BookingID: event.BookingID, Date: event.Date, Time: event.Time}, fireAt)
	if err != nil {
		return fmt.Errorf("build reminder task: %w", err)
	}
	if _, err := s.client.EnqueueContext(ctx, task, opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("enqueue reminder: %w", err)
	}
	s.logger.Info("reminder scheduled", zap.String("booking_id", event.BookingID), zap.Time("fire_at", fireAt))
	return nil
}

type bookingReader interface {
	Get(ctx context.Context, id string) (*models.Booking, error)
}

// ReminderHandler processes reminder tasks in the worker process.
type ReminderHandler struct {
	bookings  bookingReader
	publisher events.Publisher
	channel   string
	logger    *zap.Logger
	now       func() time.Time
}

// NewReminderHandler constructs the asynq handler for TypeBookingReminder.
func NewReminderHandler(bookings bookingReader, publisher events.Publisher, channel string, logger *zap.Logger) *ReminderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderHandler{bookings: bookings, publisher: publisher, channel: channel, logger: logger, now: time.Now}
}

// ProcessTask publishes a reminder event when the booking still holds the
// slot the reminder was scheduled for.
func (h *ReminderHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload ReminderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode reminder payload: %v: %w", err, asynq.SkipRetry)
	}

	booking, err := h.bookings.Get(ctx, payload.BookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.logger.Info("reminder for missing booking dropped", zap.String("booking_id", payload.BookingID))
			return nil
		}
		return fmt.Errorf("load booking %s: %w", payload.BookingID, err)
	}
	if !booking.IsActive() || !booking.SameSlot(payload.Date, payload.Time) {
		h.logger.Info("stale reminder dropped",
			zap.String("booking_id", booking.ID),
			zap.String("status", string(booking.Status)))
		return nil
	}

	event := models.NewBookingEvent(models.EventBookingReminder, *booking, h.now())
	if err := h.publisher.Publish(ctx, h.channel, event); err != nil {
		return fmt.Errorf("publish reminder: %w", err)
	}
	return nil
}
