package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/clinic-scheduler-api/internal/models"
)

type recordingEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (r *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.tasks = append(r.tasks, task)
	return &asynq.TaskInfo{ID: "t1"}, nil
}

type bookingGetter map[string]*models.Booking

func (g bookingGetter) Get(_ context.Context, id string) (*models.Booking, error) {
	b, ok := g[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *b
	return &copied, nil
}

func TestReminderServiceSchedulesBeforeSlot(t *testing.T) {
	enqueuer := &recordingEnqueuer{}
	svc := NewReminderService(enqueuer, 24*time.Hour, time.UTC, nil)
	svc.now = func() time.Time { return time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC) }

	event := models.BookingEvent{BookingID: "b1", Date: models.NewDate(2026, time.October, 20), Time: 14 * 60}
	require.NoError(t, svc.Schedule(context.Background(), event))
	require.Len(t, enqueuer.tasks, 1)
	assert.Equal(t, TypeBookingReminder, enqueuer.tasks[0].Type())

	var payload ReminderPayload
	require.NoError(t, json.Unmarshal(enqueuer.tasks[0].Payload(), &payload))
	assert.Equal(t, "b1", payload.BookingID)
	assert.Equal(t, "14:00", payload.Time.String())
}

func TestReminderServiceSkipsPassedWindow(t *testing.T) {
	enqueuer := &recordingEnqueuer{}
	svc := NewReminderService(enqueuer, 24*time.Hour, time.UTC, nil)
	svc.now = func() time.Time { return time.Date(2026, 10, 20, 8, 0, 0, 0, time.UTC) }

	event := models.BookingEvent{BookingID: "b1", Date: models.NewDate(2026, time.October, 20), Time: 14 * 60}
	require.NoError(t, svc.Schedule(context.Background(), event))
	assert.Empty(t, enqueuer.tasks)
}

func TestReminderServiceIgnoresDuplicateTask(t *testing.T) {
	svc := NewReminderService(&recordingEnqueuer{err: asynq.ErrTaskIDConflict}, time.Hour, time.UTC, nil)
	svc.now = func() time.Time { return time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC) }

	event := models.BookingEvent{BookingID: "b1", Date: models.NewDate(2026, time.October, 20), Time: 14 * 60}
	assert.NoError(t, svc.Schedule(context.Background(), event))

	svc.client = &recordingEnqueuer{err: errors.New("redis down")}
	assert.Error(t, svc.Schedule(context.Background(), event))
}

func TestReminderHandlerPublishesForActiveBooking(t *testing.T) {
	date := models.NewDate(2026, time.October, 20)
	bookings := bookingGetter{
		"active":    {ID: "active", ProviderID: "prov-1", Date: date, Time: 14 * 60, Status: models.BookingStatusConfirmed},
		"cancelled": {ID: "cancelled", ProviderID: "prov-1", Date: date, Time: 14 * 60, Status: models.BookingStatusCancelled},
		"moved":     {ID: "moved", ProviderID: "prov-1", Date: date, Time: 15 * 60, Status: models.BookingStatusPending},
	}
	pub := &capturePublisher{}
	handler := NewReminderHandler(bookings, pub, "bookings.events", nil)

	for _, id := range []string{"active", "cancelled", "moved", "gone"} {
		task, _, err := NewReminderTask(ReminderPayload{BookingID: id, Date: date, Time: 14 * 60}, time.Now())
		require.NoError(t, err)
		require.NoError(t, handler.ProcessTask(context.Background(), task))
	}

	events := pub.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventBookingReminder, events[0].Type)
	assert.Equal(t, "active", events[0].BookingID)
}

func TestReminderHandlerSkipsRetryOnBadPayload(t *testing.T) {
	handler := NewReminderHandler(bookingGetter{}, &capturePublisher{}, "bookings.events", nil)

	err := handler.ProcessTask(context.Background(), asynq.NewTask(TypeBookingReminder, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
