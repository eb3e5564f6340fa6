package service

import (
	"fmt"

	"github.com/noah-isme/clinic-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/clinic-scheduler-api/pkg/errors"
)

var bookingTransitions = map[models.BookingStatus][]models.BookingStatus{
	models.BookingStatusPending:   {models.BookingStatusConfirmed, models.BookingStatusCancelled},
	models.BookingStatusConfirmed: {models.BookingStatusCompleted, models.BookingStatusCancelled},
	models.BookingStatusCancelled: {},
	models.BookingStatusCompleted: {},
}

// CanTransition reports whether the state machine allows current -> target.
func CanTransition(current, target models.BookingStatus) bool {
	for _, allowed := range bookingTransitions[current] {
		if allowed == target {
			return true
		}
	}
	return false
}

// AuthorizeTransition decides whether role may move a booking from current to target.
//
// Role permission is checked first: patients may only target CANCELLED, while
// providers and admins may target CONFIRMED, COMPLETED or CANCELLED. A permitted
// target that the state machine does not allow from current (including any move
// out of a terminal state) fails with InvalidStateTransition.
func AuthorizeTransition(role models.UserRole, current, target models.BookingStatus) error {
	if !roleMayTarget(role, target) {
		return appErrors.Kind(appErrors.ErrForbidden, fmt.Errorf("role %s may not set status %s", role, target))
	}
	if !CanTransition(current, target) {
		return appErrors.Kind(appErrors.ErrInvalidStateTransition, fmt.Errorf("transition %s -> %s", current, target))
	}
	return nil
}

func roleMayTarget(role models.UserRole, target models.BookingStatus) bool {
	switch role {
	case models.RolePatient:
		return target == models.BookingStatusCancelled
	case models.RoleDoctor, models.RoleAdmin:
		return target == models.BookingStatusConfirmed ||
			target == models.BookingStatusCompleted ||
			target == models.BookingStatusCancelled
	default:
		return false
	}
}
