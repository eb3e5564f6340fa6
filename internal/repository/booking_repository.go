package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/clinic-scheduler-api/internal/models"
)

const (
	bookingColumns = "id, patient_id, provider_id, booking_date, booking_time, status, notes, created_at, updated_at"

	// activeSlotConstraint is the partial unique index that keeps one active booking per slot.
	activeSlotConstraint = "bookings_active_slot_uniq"
	uniqueViolation      = pq.ErrorCode("23505")
	// invalidText is raised when an id is not a valid UUID literal.
	invalidText = pq.ErrorCode("22P02")
)

// BookingRepository is the Postgres-backed booking ledger.
type BookingRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewBookingRepository creates a new booking repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// ActiveBookings returns PENDING and CONFIRMED bookings of a provider on a date.
func (r *BookingRepository) ActiveBookings(ctx context.Context, providerID string, date models.Date) ([]models.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE provider_id = $1 AND booking_date = $2 AND status IN ('PENDING', 'CONFIRMED') ORDER BY booking_time ASC`, bookingColumns)
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, providerID, date); err != nil {
		return nil, fmt.Errorf("list active bookings: %w", err)
	}
	return bookings, nil
}

// ListByProviderDate returns every booking of a provider on a date regardless of status.
func (r *BookingRepository) ListByProviderDate(ctx context.Context, providerID string, date models.Date) ([]models.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE provider_id = $1 AND booking_date = $2 ORDER BY booking_time ASC, created_at ASC`, bookingColumns)
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, providerID, date); err != nil {
		return nil, fmt.Errorf("list provider bookings: %w", err)
	}
	return bookings, nil
}

// TryInsert stores a booking in a single statement. The partial unique index
// serialises concurrent writers for the same slot; a loser gets ErrSlotTaken.
func (r *BookingRepository) TryInsert(ctx context.Context, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.Status == "" {
		booking.Status = models.BookingStatusPending
	}
	now := r.now()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now

	const query = `INSERT INTO bookings (id, patient_id, provider_id, booking_date, booking_time, status, notes, created_at, updated_at) VALUES (:id, :patient_id, :provider_id, :booking_date, :booking_time, :status, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, booking); err != nil {
		if isSlotTaken(err) {
			return models.ErrSlotTaken
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

// Get loads a booking by id. Missing rows surface as sql.ErrNoRows.
func (r *BookingRepository) Get(ctx context.Context, id string) (*models.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE id = $1`, bookingColumns)
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		if isNoRow(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return &booking, nil
}

// Update locks the booking row, applies mutate to it and persists the result in
// one transaction. A mutator error aborts the update and is returned unchanged.
func (r *BookingRepository) Update(ctx context.Context, id string, mutate func(*models.Booking) error) (booking *models.Booking, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update booking: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE id = $1 FOR UPDATE`, bookingColumns)
	var current models.Booking
	if err = tx.GetContext(ctx, &current, query, id); err != nil {
		if isNoRow(err) {
			err = sql.ErrNoRows
			return nil, err
		}
		return nil, fmt.Errorf("lock booking: %w", err)
	}

	if err = mutate(&current); err != nil {
		return nil, err
	}
	current.UpdatedAt = r.now()

	const update = `UPDATE bookings SET booking_date = :booking_date, booking_time = :booking_time, status = :status, notes = :notes, updated_at = :updated_at WHERE id = :id`
	if _, err = tx.NamedExecContext(ctx, update, &current); err != nil {
		if isSlotTaken(err) {
			err = models.ErrSlotTaken
			return nil, err
		}
		return nil, fmt.Errorf("update booking: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update booking: %w", err)
	}
	return &current, nil
}

// List returns bookings matching the filter with pagination.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	base, args := bookingWhere(filter)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY booking_date DESC, booking_time DESC LIMIT %d OFFSET %d", bookingColumns, base, size, offset)
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s", base), args...); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}
	return bookings, total, nil
}

// CountByStatus groups matching bookings by status.
func (r *BookingRepository) CountByStatus(ctx context.Context, filter models.BookingFilter) ([]models.BookingStatusCount, error) {
	base, args := bookingWhere(filter)
	query := fmt.Sprintf("SELECT status, COUNT(*) AS count %s GROUP BY status ORDER BY status", base)
	var counts []models.BookingStatusCount
	if err := r.db.SelectContext(ctx, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("count bookings by status: %w", err)
	}
	return counts, nil
}

// CountCompletedByProvider counts COMPLETED bookings and distinct patients per
// active provider with booking_date in [from, to]. Providers without completed
// bookings are reported with zero counts.
func (r *BookingRepository) CountCompletedByProvider(ctx context.Context, from, to models.Date) ([]models.ProviderMonthlyCount, error) {
	const query = `SELECT p.id AS provider_id, u.full_name, COUNT(b.id) AS completed, COUNT(DISTINCT b.patient_id) AS patients
FROM provider_profiles p
JOIN users u ON u.id = p.user_id
LEFT JOIN bookings b ON b.provider_id = p.id AND b.status = $1 AND b.booking_date BETWEEN $2 AND $3
WHERE p.active = TRUE
GROUP BY p.id, u.full_name
ORDER BY completed DESC, u.full_name ASC`
	var counts []models.ProviderMonthlyCount
	if err := r.db.SelectContext(ctx, &counts, query, string(models.BookingStatusCompleted), from, to); err != nil {
		return nil, fmt.Errorf("count completed bookings: %w", err)
	}
	return counts, nil
}

func bookingWhere(filter models.BookingFilter) (string, []interface{}) {
	base := "FROM bookings WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.PatientID != "" {
		conditions = append(conditions, fmt.Sprintf("patient_id = $%d", len(args)+1))
		args = append(args, filter.PatientID)
	}
	if filter.ProviderID != "" {
		conditions = append(conditions, fmt.Sprintf("provider_id = $%d", len(args)+1))
		args = append(args, filter.ProviderID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, string(*filter.Status))
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("booking_date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("booking_date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}
	return base, args
}

func isSlotTaken(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == uniqueViolation && pqErr.Constraint == activeSlotConstraint
}

// isNoRow treats a malformed id like a missing row: no such record can exist.
func isNoRow(err error) bool {
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == invalidText
}
