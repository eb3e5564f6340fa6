package service

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/clinic-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/clinic-scheduler-api/pkg/errors"
	"github.com/noah-isme/clinic-scheduler-api/pkg/export"
)

// ExportFormat selects the agenda renderer.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type agendaSource interface {
	Agenda(ctx context.Context, principal models.Principal, providerID string, date models.Date) ([]models.Booking, error)
}

type monthlyReportSource interface {
	MonthlyReport(ctx context.Context, principal models.Principal, year, month int) (*models.MonthlyReport, error)
}

type renderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// ExportFile is a rendered export ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders a provider's daily agenda and the monthly report.
type ExportService struct {
	agenda    agendaSource
	reports   monthlyReportSource
	renderers map[ExportFormat]renderer
	logger    *zap.Logger
}

// NewExportService constructs an ExportService with the CSV and PDF renderers.
func NewExportService(agenda agendaSource, reports monthlyReportSource, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		agenda:  agenda,
		reports: reports,
		renderers: map[ExportFormat]renderer{
			ExportFormatCSV: export.NewCSVExporter(),
			ExportFormatPDF: export.NewPDFExporter(),
		},
		logger: logger,
	}
}

// Agenda renders the provider's bookings on date, ordered by time.
func (s *ExportService) Agenda(ctx context.Context, principal models.Principal, providerID string, date models.Date, format ExportFormat) (*ExportFile, error) {
	r, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	bookings, err := s.agenda.Agenda(ctx, principal, providerID, date)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(bookings, func(a, b models.Booking) int { return int(a.Time) - int(b.Time) })

	data := export.Dataset{
		Title:   fmt.Sprintf("Agenda %s", date),
		Headers: []string{"time", "booking_id", "patient_id", "status", "notes"},
		Rows:    make([][]string, 0, len(bookings)),
	}
	for _, b := range bookings {
		notes := ""
		if b.Notes != nil {
			notes = *b.Notes
		}
		data.Rows = append(data.Rows, []string{b.Time.String(), b.ID, b.PatientID, string(b.Status), notes})
	}

	payload, err := r.Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render agenda")
	}
	s.logger.Info("agenda exported",
		zap.String("provider_id", providerID),
		zap.String("date", date.String()),
		zap.String("format", string(format)),
		zap.Int("rows", len(bookings)))

	return &ExportFile{
		Filename:    fmt.Sprintf("agenda_%s_%s.%s", sanitizeFilename(providerID), date, r.Extension()),
		ContentType: r.ContentType(),
		Data:        payload,
	}, nil
}

// MonthlyReport renders the per-provider completion counts of one month.
func (s *ExportService) MonthlyReport(ctx context.Context, principal models.Principal, year, month int, format ExportFormat) (*ExportFile, error) {
	r, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	report, err := s.reports.MonthlyReport(ctx, principal, year, month)
	if err != nil {
		return nil, err
	}
	period := fmt.Sprintf("%04d-%02d", report.Year, report.Month)

	data := export.Dataset{
		Title:   fmt.Sprintf("Completed bookings %s", period),
		Headers: []string{"provider_id", "provider_name", "completed", "patients"},
		Rows:    make([][]string, 0, len(report.Providers)),
	}
	for _, p := range report.Providers {
		data.Rows = append(data.Rows, []string{p.ProviderID, p.ProviderName, strconv.Itoa(p.Completed), strconv.Itoa(p.Patients)})
	}

	payload, err := r.Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}
	s.logger.Info("monthly report exported",
		zap.String("period", period),
		zap.String("format", string(format)),
		zap.Int("rows", len(report.Providers)))

	return &ExportFile{
		Filename:    fmt.Sprintf("monthly_report_%s.%s", period, r.Extension()),
		ContentType: r.ContentType(),
		Data:        payload,
	}, nil
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "\"", "")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
