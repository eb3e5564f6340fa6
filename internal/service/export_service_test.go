package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/clinic-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/clinic-scheduler-api/pkg/errors"
)

type agendaStub struct {
	bookings []models.Booking
	err      error
}

func (a agendaStub) Agenda(context.Context, models.Principal, string, models.Date) ([]models.Booking, error) {
	return append([]models.Booking(nil), a.bookings...), a.err
}

func TestExportServiceAgendaCSV(t *testing.T) {
	notes := "follow-up"
	svc := NewExportService(agendaStub{bookings: []models.Booking{
		{ID: "b2", PatientID: "pat-b", Time: 10 * 60, Status: models.BookingStatusPending},
		{ID: "b1", PatientID: "pat-a", Time: 9 * 60, Status: models.BookingStatusConfirmed, Notes: &notes},
	}}, nil, nil)

	file, err := svc.Agenda(context.Background(), doctor, "prov-1", models.NewDate(2026, time.October, 20), ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "agenda_prov-1_2026-10-20.csv", file.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", file.ContentType)

	lines := strings.Split(strings.TrimSpace(string(file.Data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "09:00,b1,pat-a,CONFIRMED,follow-up", lines[1])
	assert.Equal(t, "10:00,b2,pat-b,PENDING,", lines[2])
}

func TestExportServiceAgendaPDF(t *testing.T) {
	svc := NewExportService(agendaStub{}, nil, nil)

	file, err := svc.Agenda(context.Background(), doctor, "prov-1", models.NewDate(2026, time.October, 20), ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, strings.HasPrefix(string(file.Data), "%PDF-"))
}

func TestExportServiceAgendaErrors(t *testing.T) {
	svc := NewExportService(agendaStub{err: appErrors.Clone(appErrors.ErrForbidden, "")}, nil, nil)
	date := models.NewDate(2026, time.October, 20)

	_, err := svc.Agenda(context.Background(), patientA, "prov-1", date, "xlsx")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Agenda(context.Background(), patientA, "prov-1", date, ExportFormatCSV)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}
