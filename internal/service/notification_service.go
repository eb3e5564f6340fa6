package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-scheduler-api/internal/models"
	"github.com/noah-isme/clinic-scheduler-api/pkg/events"
	"github.com/noah-isme/clinic-scheduler-api/pkg/jobs"
)

type reminderScheduler interface {
	Schedule(ctx context.Context, event models.BookingEvent) error
}

// NotificationConfig tunes event dispatch.
type NotificationConfig struct {
	Channel    string
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// NotificationService is the BookingObserver that fans booking events out to
// the event bus and the reminder scheduler on a background queue.
type NotificationService struct {
	queue     *jobs.Queue
	publisher events.Publisher
	reminders reminderScheduler
	channel   string
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewNotificationService builds the service; reminders may be nil.
func NewNotificationService(publisher events.Publisher, reminders reminderScheduler, cfg NotificationConfig, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Channel == "" {
		cfg.Channel = "bookings.events"
	}
	s := &NotificationService{
		publisher: publisher,
		reminders: reminders,
		channel:   cfg.Channel,
		metrics:   metrics,
		logger:    logger,
	}
	s.queue = jobs.NewQueue("booking-events", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the dispatch workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Observe queues the event without blocking the caller. Events that do not fit
// in the buffer are dropped with a warning.
func (s *NotificationService) Observe(_ context.Context, event models.BookingEvent) {
	err := s.queue.TryEnqueue(jobs.Job{ID: uuid.NewString(), Type: string(event.Type), Payload: event})
	if err == nil {
		return
	}
	if errors.Is(err, jobs.ErrQueueFull) {
		s.metrics.RecordEventDropped()
	}
	s.logger.Warn("booking event dropped",
		zap.String("type", string(event.Type)),
		zap.String("booking_id", event.BookingID),
		zap.Error(err))
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.BookingEvent)
	if !ok {
		s.logger.Error("unexpected job payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}

	if s.reminders != nil && wantsReminder(event) {
		if err := s.reminders.Schedule(ctx, event); err != nil {
			s.logger.Warn("schedule reminder failed", zap.String("booking_id", event.BookingID), zap.Error(err))
		}
	}

	if err := s.publisher.Publish(ctx, s.channel, event); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

func wantsReminder(event models.BookingEvent) bool {
	switch event.Type {
	case models.EventBookingCreated, models.EventBookingRescheduled:
		return event.Status.IsActive()
	case models.EventBookingStatusChanged:
		return event.Status == models.BookingStatusConfirmed
	}
	return false
}
