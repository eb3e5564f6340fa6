package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/clinic-scheduler-api/internal/models"
)

// ProviderRepository reads the provider directory: profiles and their availability windows.
type ProviderRepository struct {
	db *sqlx.DB
}

// NewProviderRepository creates a new provider repository.
func NewProviderRepository(db *sqlx.DB) *ProviderRepository {
	return &ProviderRepository{db: db}
}

// FindByID returns an active provider profile.
func (r *ProviderRepository) FindByID(ctx context.Context, id string) (*models.Provider, error) {
	const query = `SELECT p.id, p.user_id, u.full_name, p.active FROM provider_profiles p JOIN users u ON u.id = p.user_id WHERE p.id = $1 AND p.active = TRUE LIMIT 1`
	var provider models.Provider
	if err := r.db.GetContext(ctx, &provider, query, id); err != nil {
		if isNoRow(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find provider: %w", err)
	}
	return &provider, nil
}

// FindByUserID returns the provider profile bound to a user account.
func (r *ProviderRepository) FindByUserID(ctx context.Context, userID string) (*models.Provider, error) {
	const query = `SELECT p.id, p.user_id, u.full_name, p.active FROM provider_profiles p JOIN users u ON u.id = p.user_id WHERE p.user_id = $1 LIMIT 1`
	var provider models.Provider
	if err := r.db.GetContext(ctx, &provider, query, userID); err != nil {
		if isNoRow(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find provider by user: %w", err)
	}
	return &provider, nil
}

// ListActive returns one page of active providers ordered by name, with the total count.
func (r *ProviderRepository) ListActive(ctx context.Context, page, size int) ([]models.Provider, int, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	const base = `FROM provider_profiles p JOIN users u ON u.id = p.user_id WHERE p.active = TRUE`
	query := fmt.Sprintf("SELECT p.id, p.user_id, u.full_name, p.active %s ORDER BY u.full_name ASC, p.id ASC LIMIT %d OFFSET %d", base, size, offset)
	var providers []models.Provider
	if err := r.db.SelectContext(ctx, &providers, query); err != nil {
		return nil, 0, fmt.Errorf("list providers: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base); err != nil {
		return nil, 0, fmt.Errorf("count providers: %w", err)
	}
	return providers, total, nil
}

// ListWindows returns the raw active availability rows of a provider in start order.
func (r *ProviderRepository) ListWindows(ctx context.Context, providerID string) ([]models.AvailabilityWindowRow, error) {
	const query = `SELECT id, provider_id, to_char(start_time, 'HH24:MI') AS start_time, to_char(end_time, 'HH24:MI') AS end_time, active FROM provider_availability WHERE provider_id = $1 AND active = TRUE ORDER BY start_time ASC`
	var rows []models.AvailabilityWindowRow
	if err := r.db.SelectContext(ctx, &rows, query, providerID); err != nil {
		return nil, fmt.Errorf("list availability windows: %w", err)
	}
	return rows, nil
}
