package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingStatusClassification(t *testing.T) {
	assert.True(t, BookingStatusPending.IsActive())
	assert.True(t, BookingStatusConfirmed.IsActive())
	assert.False(t, BookingStatusCancelled.IsActive())
	assert.False(t, BookingStatusCompleted.IsActive())

	assert.True(t, BookingStatusCancelled.IsTerminal())
	assert.True(t, BookingStatusCompleted.IsTerminal())
	assert.False(t, BookingStatusPending.IsTerminal())

	assert.False(t, BookingStatus("ARCHIVED").Valid())
}

func TestParseAvailabilityWindow(t *testing.T) {
	w, err := ParseAvailabilityWindow("prov-1", "09:00", "12:00", true)
	require.NoError(t, err)
	assert.Equal(t, "09:00-12:00", w.String())
	assert.True(t, w.Contains(9*60))
	assert.True(t, w.Contains(11*60+59))
	assert.False(t, w.Contains(12*60))
	assert.False(t, w.Contains(8*60+59))

	_, err = ParseAvailabilityWindow("prov-1", "12:00", "09:00", true)
	assert.ErrorIs(t, err, ErrWindowOrder)

	_, err = ParseAvailabilityWindow("prov-1", "12:00", "12:00", true)
	assert.ErrorIs(t, err, ErrWindowOrder)

	_, err = ParseAvailabilityWindow("prov-1", "9am", "12:00", true)
	assert.ErrorIs(t, err, ErrInvalidTimeOfDay)
}

func TestPrincipalBinding(t *testing.T) {
	booking := &Booking{PatientID: "user-p", ProviderID: "prov-1"}

	patient := Principal{UserID: "user-p", Role: RolePatient}
	doctor := Principal{UserID: "user-d", Role: RoleDoctor, ProviderID: "prov-1"}
	otherDoctor := Principal{UserID: "user-x", Role: RoleDoctor, ProviderID: "prov-2"}
	unbound := Principal{UserID: "user-y", Role: RoleDoctor}

	assert.True(t, patient.IsPatientOf(booking))
	assert.False(t, patient.IsProviderOf(booking))
	assert.True(t, doctor.IsProviderOf(booking))
	assert.False(t, otherDoctor.IsProviderOf(booking))
	assert.False(t, unbound.IsProviderOf(booking))
	assert.False(t, Principal{UserID: "user-p", Role: RoleDoctor}.IsPatientOf(booking))
}
