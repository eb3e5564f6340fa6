package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/clinic-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/clinic-scheduler-api/pkg/errors"
)

// memoryLedger enforces the active-slot uniqueness rule under a mutex, the
// same guarantee the partial unique index gives in Postgres.
type memoryLedger struct {
	mu      sync.Mutex
	rows    map[string]*models.Booking
	seq     int
	failErr error
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{rows: make(map[string]*models.Booking)}
}

func (l *memoryLedger) clashes(b *models.Booking) bool {
	if !b.IsActive() {
		return false
	}
	for id, other := range l.rows {
		if id != b.ID && other.IsActive() && other.ProviderID == b.ProviderID && other.SameSlot(b.Date, b.Time) {
			return true
		}
	}
	return false
}

func (l *memoryLedger) ActiveBookings(_ context.Context, providerID string, date models.Date) ([]models.Booking, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failErr != nil {
		return nil, l.failErr
	}
	var out []models.Booking
	for _, b := range l.rows {
		if b.ProviderID == providerID && b.Date == date && b.IsActive() {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (l *memoryLedger) ListByProviderDate(_ context.Context, providerID string, date models.Date) ([]models.Booking, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.Booking
	for _, b := range l.rows {
		if b.ProviderID == providerID && b.Date == date {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (l *memoryLedger) TryInsert(_ context.Context, booking *models.Booking) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failErr != nil {
		return l.failErr
	}
	if l.clashes(booking) {
		return models.ErrSlotTaken
	}
	l.seq++
	booking.ID = fmt.Sprintf("bk-%d", l.seq)
	stored := *booking
	l.rows[booking.ID] = &stored
	return nil
}

func (l *memoryLedger) Update(_ context.Context, id string, mutate func(*models.Booking) error) (*models.Booking, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	current, ok := l.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	next := *current
	if err := mutate(&next); err != nil {
		return nil, err
	}
	if l.clashes(&next) {
		return nil, models.ErrSlotTaken
	}
	l.rows[id] = &next
	out := next
	return &out, nil
}

func (l *memoryLedger) Get(_ context.Context, id string) (*models.Booking, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := *b
	return &out, nil
}

func (l *memoryLedger) matches(b *models.Booking, f models.BookingFilter) bool {
	if f.PatientID != "" && b.PatientID != f.PatientID {
		return false
	}
	if f.ProviderID != "" && b.ProviderID != f.ProviderID {
		return false
	}
	if f.Status != nil && b.Status != *f.Status {
		return false
	}
	return true
}

func (l *memoryLedger) List(_ context.Context, f models.BookingFilter) ([]models.Booking, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.Booking
	for _, b := range l.rows {
		if l.matches(b, f) {
			out = append(out, *b)
		}
	}
	return out, len(out), nil
}

func (l *memoryLedger) CountByStatus(_ context.Context, f models.BookingFilter) ([]models.BookingStatusCount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	counts := map[models.BookingStatus]int{}
	for _, b := range l.rows {
		if l.matches(b, f) {
			counts[b.Status]++
		}
	}
	var out []models.BookingStatusCount
	for status, n := range counts {
		out = append(out, models.BookingStatusCount{Status: status, Count: n})
	}
	return out, nil
}

type providerStub map[string]*models.Provider

func (p providerStub) FindByID(_ context.Context, id string) (*models.Provider, error) {
	if provider, ok := p[id]; ok {
		return provider, nil
	}
	return nil, sql.ErrNoRows
}

type patientStub map[string]models.UserRole

func (p patientStub) FindPatient(_ context.Context, id string) (*models.Patient, error) {
	if role, ok := p[id]; ok {
		return &models.Patient{ID: id, Role: role}, nil
	}
	return nil, sql.ErrNoRows
}

type windowStub map[string][]models.AvailabilityWindow

func (w windowStub) WindowsFor(_ context.Context, providerID string) ([]models.AvailabilityWindow, error) {
	return w[providerID], nil
}

type recordingObserver struct {
	mu     sync.Mutex
	events []models.BookingEvent
}

func (o *recordingObserver) Observe(_ context.Context, event models.BookingEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
}

func (o *recordingObserver) types() []models.BookingEventType {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]models.BookingEventType, 0, len(o.events))
	for _, e := range o.events {
		out = append(out, e.Type)
	}
	return out
}

type schedulingFixture struct {
	svc      *SchedulingService
	ledger   *memoryLedger
	observer *recordingObserver
	date     models.Date
}

var (
	patientA = models.Principal{UserID: "pat-a", Role: models.RolePatient}
	patientB = models.Principal{UserID: "pat-b", Role: models.RolePatient}
	doctor   = models.Principal{UserID: "doc-1", Role: models.RoleDoctor, ProviderID: "prov-1"}
	admin    = models.Principal{UserID: "adm-1", Role: models.RoleAdmin}
)

func mustWindow(t *testing.T, providerID, start, end string) models.AvailabilityWindow {
	t.Helper()
	w, err := models.ParseAvailabilityWindow(providerID, start, end, true)
	require.NoError(t, err)
	return w
}

func newSchedulingFixture(t *testing.T, cfg SchedulingConfig, windows ...models.AvailabilityWindow) *schedulingFixture {
	t.Helper()
	ledger := newMemoryLedger()
	observer := &recordingObserver{}
	svc := NewSchedulingService(SchedulingServiceParams{
		Ledger: ledger,
		Providers: providerStub{
			"prov-1": {ID: "prov-1", UserID: "doc-1", FullName: "Dr. One", Active: true},
			"prov-2": {ID: "prov-2", UserID: "doc-2", FullName: "Dr. Two", Active: false},
		},
		Patients: patientStub{
			"pat-a": models.RolePatient,
			"pat-b": models.RolePatient,
			"doc-1": models.RoleDoctor,
		},
		Availability: windowStub{"prov-1": windows},
		Observer:     observer,
		Metrics:      NewMetricsService(),
		Config:       cfg,
	})
	svc.now = func() time.Time { return time.Date(2026, 10, 17, 10, 15, 0, 0, time.UTC) }
	return &schedulingFixture{svc: svc, ledger: ledger, observer: observer, date: models.NewDate(2026, time.October, 20)}
}

func (f *schedulingFixture) book(t *testing.T, p models.Principal, at string) (*models.Booking, error) {
	t.Helper()
	tod, err := models.ParseTimeOfDay(at)
	require.NoError(t, err)
	return f.svc.CreateBooking(context.Background(), p, models.NewBooking{ProviderID: "prov-1", Date: f.date, Time: tod})
}

func TestGetAvailableSlotsMorningWindow(t *testing.T) {
	f := newSchedulingFixture(t, SchedulingConfig{}, mustWindow(t, "prov-1", "09:00", "12:00"))

	slots, err := f.svc.GetAvailableSlots(context.Background(), "prov-1", f.date)
	require.NoError(t, err)
	require.Len(t, slots, 6)
	want := []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"}
	for i, slot := range slots {
		assert.Equal(t, want[i], slot.Time.String())
		assert.True(t, slot.IsFree)
	}
}

func TestGetAvailableSlotsMergesOverlappingWindows(t *testing.T) {
	f := newSchedulingFixture(t, SchedulingConfig{},
		mustWindow(t, "prov-1", "10:00", "11:00"),
		mustWindow(t, "prov-1", "09:00", "10:30"),
	)

	slots, err := f.svc.GetAvailableSlots(context.Background(), "prov-1", f.date)
	require.NoError(t, err)
	got := make([]string, 0, len(slots))
	for _, s := range slots {
		got = append(got, s.Time.String())
	}
	assert.Equal(t, []string{"09:00", "09:30", "10:00", "10:30"}, got)
}

func TestGetAvailableSlotsUnknownProvider(t *testing.T) {
	f := newSchedulingFixture(t, SchedulingConfig{})

	_, err := f.svc.GetAvailableSlots(context.Background(), "missing", f.date)
	assert.ErrorIs(t, err, appErrors.ErrProviderNotFound)

	_, err = f.svc.GetAvailableSlots(context.Background(), "prov-2", f.date)
	assert.ErrorIs(t, err, appErrors.ErrProviderNotFound)
}

func TestCancelFreesSlot(t *testing.T) {
	f := newSchedulingFixture(t, SchedulingConfig{}, mustWindow(t, "prov-1", "09:00", "12:00"))

	booking, err := f.book(t, patientA, "10:00")
	require.NoError(t, err)

	slots, err := f.svc.GetAvailableSlots(context.Background(), "prov-1", f.date)
	require.NoError(t, err)
	assert.False(t, slots[2].IsFree)

	cancelled, err := f.svc.Cancel(context.Background(), patientA, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, cancelled.Status)

	slots, err = f.svc.GetAvailableSlots(context.Background(), "prov-1", f.date)
	require.NoError(t, err)
	assert.True(t, slots[2].IsFree)

	_, err = f.book(t, patientB, "10:00")
	assert.NoError(t, err)
}

func TestConcurrentCreatesYieldSingleWinner(t *testing.T) {
	f := newSchedulingFixture(t, SchedulingConfig{}, mustWindow(t, "prov-1", "09:00", "12:00"))

	const n = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.book(t, patientA, "09:30")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, appErrors.ErrSlotConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, conflicts)
	active, err := f.ledger.ActiveBookings(context.Background(), "prov-1", f.date)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestBookingLifecycleScenario(t *testing.T) {
	f := newSchedulingFixture(t, SchedulingConfig{SlotMinutes: 30}, mustWindow(t, "prov-1", "14:00", "17:00"))
	ctx := context.Background()

	first, err := f.book(t, patientA, "14:00")
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusPending, first.Status)

	_, err = f.book(t, patientB, "14:00")
	assert.ErrorIs(t, err, appErrors.ErrSlotConflict)

	confirmed, err := f.svc.Confirm(ctx, doctor, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusConfirmed, confirmed.Status)

	completed, err := f.svc.Complete(ctx, doctor, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCompleted, completed.Status)

	_, err = f.svc.Cancel(ctx, patientA, first.ID)
	assert.ErrorIs(t, err, appErrors.ErrInvalidStateTransition)

	assert.Equal(t, []models.BookingEventType{
		models.EventBookingCreated,
		models.EventBookingStatusChanged,
		models.EventBookingStatusChanged,
	}, f.observer.types())
}

func TestCreateBookingValidation(t *testing.T) {
	f := newSchedulingFixture(t, SchedulingConfig{}, mustWindow(t, "prov-1", "09:00", "12:00"))
	ctx := context.Background()
	nine := models.TimeOfDay(9 * 60)

	tests := []struct {
		name      string
		principal models.Principal
		req       models.NewBooking
		want      *appErrors.Error
	}{
		{"doctor cannot book", doctor, models.NewBooking{ProviderID: "prov-1", Date: f.date, Time: nine}, appErrors.ErrForbidden},
		{"unknown provider", patientA, models.NewBooking{ProviderID: "nope", Date: f.date, Time: nine}, appErrors.ErrProviderNotFound},
		{"inactive provider", patientA, models.NewBooking{ProviderID: "prov-2", Date: f.date, Time: nine}, appErrors.ErrProviderNotFound},
		{"unknown patient", models.Principal{UserID: "ghost", Role: models.RolePatient}, models.NewBooking{ProviderID: "prov-1", Date: f.date, Time: nine}, appErrors.ErrPatientNotFound},
		{"admin for non patient", admin, models.NewBooking{PatientID: "doc-1", ProviderID: "prov-1", Date: f.date, Time: nine}, appErrors.ErrForbidden},
		{"past date", patientA, models.NewBooking{ProviderID: "prov-1", Date: models.NewDate(2026, time.October, 16), Time: nine}, appErrors.ErrPastDate},
		{"outside availability", patientA, models.NewBooking{ProviderID: "prov-1", Date: f.date, Time: 12 * 60}, appErrors.ErrOutsideAvailability},
		{"notes too long", patientA, models.NewBooking{ProviderID: "prov-1", Date: f.date, Time: nine, Notes: ptr(strings.Repeat("x", 1001))}, appErrors.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateBooking(ctx, tt.principal, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	booking, err := f.svc.CreateBooking(ctx, admin, models.NewBooking{PatientID: "pat-b", ProviderID: "prov-1", Date: f.date, Time: nine})
	require.NoError(t, err)
	assert.Equal(t, "pat-b", booking.PatientID)
}

func TestCreateBookingTodayElapsedTime(t *testing.T) {
	window := mustWindow(t, "prov-1", "09:00", "12:00")
	today := models.NewDate(2026, time.October, 17)
	req := models.NewBooking{ProviderID: "prov-1", Date: today, Time: 9 * 60}

	lenient := newSchedulingFixture(t, SchedulingConfig{}, window)
	_, err := lenient.svc.CreateBooking(context.Background(), patientA, req)
	assert.NoError(t, err)

	strict := newSchedulingFixture(t, SchedulingConfig{RejectElapsedToday: true}, window)
	_, err = strict.svc.CreateBooking(context.Background(), patientA, req)
	assert.ErrorIs(t, err, appErrors.ErrPastDate)

	req.Time = 11 * 60
	_, err = strict.svc.CreateBooking(context.Background(), patientA, req)
	assert.NoError(t, err)
}

func TestRescheduleOrUpdate(t *testing.T) {
	f := newSchedulingFixture(t, SchedulingConfig{}, mustWindow(t, "prov-1", "09:00", "12:00"))
	ctx := context.Background()

	mine, err := f.book(t, patientA, "09:00")
	require.NoError(t, err)
	_, err = f.book(t, patientB, "10:00")
	require.NoError(t, err)

	sameSlot := models.TimeOfDay(9 * 60)
	notes := "bring referral"
	updated, err := f.svc.RescheduleOrUpdate(ctx, patientA, mine.ID, models.BookingPatch{Time: &sameSlot, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, notes, *updated.Notes)

	taken := models.TimeOfDay(10 * 60)
	_, err = f.svc.RescheduleOrUpdate(ctx, patientA, mine.ID, models.BookingPatch{Time: &taken})
	assert.ErrorIs(t, err, appErrors.ErrSlotConflict)

	outside := models.TimeOfDay(13 * 60)
	_, err = f.svc.RescheduleOrUpdate(ctx, patientA, mine.ID, models.BookingPatch{Time: &outside})
	assert.ErrorIs(t, err, appErrors.ErrOutsideAvailability)

	free := models.TimeOfDay(11 * 60)
	moved, err := f.svc.RescheduleOrUpdate(ctx, patientA, mine.ID, models.BookingPatch{Time: &free})
	require.NoError(t, err)
	assert.Equal(t, "11:00", moved.Time.String())
	assert.Contains(t, f.observer.types(), models.EventBookingRescheduled)

	_, err = f.svc.RescheduleOrUpdate(ctx, patientB, mine.ID, models.BookingPatch{Notes: &notes})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	confirm := models.BookingStatusConfirmed
	_, err = f.svc.RescheduleOrUpdate(ctx, patientA, mine.ID, models.BookingPatch{Status: &confirm})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = f.svc.RescheduleOrUpdate(ctx, patientA, "missing", models.BookingPatch{Notes: &notes})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestRescheduleCancelledBookingRejected(t *testing.T) {
	f := newSchedulingFixture(t, SchedulingConfig{}, mustWindow(t, "prov-1", "09:00", "12:00"))
	ctx := context.Background()

	booking, err := f.book(t, patientA, "09:00")
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, patientA, booking.ID)
	require.NoError(t, err)

	later := models.TimeOfDay(9*60 + 30)
	_, err = f.svc.RescheduleOrUpdate(ctx, patientA, booking.ID, models.BookingPatch{Time: &later})
	assert.ErrorIs(t, err, appErrors.ErrInvalidStateTransition)

	_, err = f.svc.Confirm(ctx, doctor, booking.ID)
	assert.ErrorIs(t, err, appErrors.ErrInvalidStateTransition)

	_, err = f.svc.Confirm(ctx, patientA, booking.ID)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestListStatsAndAgendaScoping(t *testing.T) {
	f := newSchedulingFixture(t, SchedulingConfig{}, mustWindow(t, "prov-1", "09:00", "12:00"))
	ctx := context.Background()

	a, err := f.book(t, patientA, "09:00")
	require.NoError(t, err)
	_, err = f.book(t, patientB, "09:30")
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, patientA, a.ID)
	require.NoError(t, err)

	mine, page, err := f.svc.ListBookings(ctx, patientA, models.BookingFilter{})
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)

	all, _, err := f.svc.ListBookings(ctx, doctor, models.BookingFilter{PatientID: "pat-b"})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	stats, err := f.svc.Stats(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[models.BookingStatusCancelled])
	assert.Equal(t, 1, stats.ByStatus[models.BookingStatusPending])
	assert.Equal(t, 0, stats.ByStatus[models.BookingStatusCompleted])

	_, err = f.svc.Stats(ctx, models.Principal{UserID: "doc-x", Role: models.RoleDoctor})
	assert.ErrorIs(t, err, appErrors.ErrProviderNotFound)

	agenda, err := f.svc.Agenda(ctx, doctor, "prov-1", f.date)
	require.NoError(t, err)
	assert.Len(t, agenda, 2)

	_, err = f.svc.Agenda(ctx, patientA, "prov-1", f.date)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestStorageFailureSurfacesAsUnavailable(t *testing.T) {
	f := newSchedulingFixture(t, SchedulingConfig{}, mustWindow(t, "prov-1", "09:00", "12:00"))
	f.ledger.failErr = errors.New("connection reset")

	_, err := f.book(t, patientA, "09:00")
	assert.ErrorIs(t, err, appErrors.ErrStorageUnavailable)
	assert.True(t, appErrors.Retryable(err))

	_, err = f.svc.GetAvailableSlots(context.Background(), "prov-1", f.date)
	assert.ErrorIs(t, err, appErrors.ErrStorageUnavailable)
}

func ptr[T any](v T) *T { return &v }
