package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/clinic-scheduler-api/internal/models"
)

// UserRepository provides read access to the identity directory.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	const query = `SELECT id, email, full_name, role, active, created_at, updated_at FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if isNoRow(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// FindPatient returns the identity record used to validate booking patients.
// Inactive users are treated as missing.
func (r *UserRepository) FindPatient(ctx context.Context, id string) (*models.Patient, error) {
	const query = `SELECT id, role FROM users WHERE id = $1 AND active = TRUE LIMIT 1`
	var patient models.Patient
	if err := r.db.GetContext(ctx, &patient, query, id); err != nil {
		if isNoRow(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find patient: %w", err)
	}
	return &patient, nil
}
