package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/clinic-scheduler-api/pkg/errors"
)

type providerCatalog interface {
	ListActive(ctx context.Context, page, size int) ([]models.Provider, int, error)
}

type completionLedger interface {
	CountCompletedByProvider(ctx context.Context, from, to models.Date) ([]models.ProviderMonthlyCount, error)
}

// ReportService serves the provider directory and administrative reports.
type ReportService struct {
	providers providerCatalog
	ledger    completionLedger
	tracer    trace.Tracer
	logger    *zap.Logger
}

// NewReportService constructs a ReportService.
func NewReportService(providers providerCatalog, ledger completionLedger, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{providers: providers, ledger: ledger, tracer: otel.Tracer(tracerName), logger: logger}
}

// ListProviders returns one page of active providers.
func (s *ReportService) ListProviders(ctx context.Context, page, size int) (providers []models.Provider, pagination *models.Pagination, err error) {
	ctx, span := s.tracer.Start(ctx, "ReportService.ListProviders")
	defer func() { finishSpan(span, err) }()

	page, size = normalizePage(page, size)
	providers, total, err := s.providers.ListActive(ctx, page, size)
	if err != nil {
		return nil, nil, storageError("list providers", err)
	}
	if providers == nil {
		providers = []models.Provider{}
	}
	return providers, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// MonthlyReport counts completed bookings and distinct patients per provider
// for one calendar month. Admin only.
func (s *ReportService) MonthlyReport(ctx context.Context, principal models.Principal, year, month int) (report *models.MonthlyReport, err error) {
	ctx, span := s.tracer.Start(ctx, "ReportService.MonthlyReport", trace.WithAttributes(
		attribute.Int("report.year", year),
		attribute.Int("report.month", month),
	))
	defer func() { finishSpan(span, err) }()

	if !principal.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "reports are restricted to administrators")
	}
	if month < 1 || month > 12 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "month must be between 1 and 12")
	}
	if year < 1 || year > 9999 {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid year %d", year))
	}

	from := models.NewDate(year, time.Month(month), 1)
	to := models.NewDate(year, time.Month(month)+1, 1).AddDays(-1)

	counts, err := s.ledger.CountCompletedByProvider(ctx, from, to)
	if err != nil {
		return nil, storageError("count completed bookings", err)
	}

	report = &models.MonthlyReport{Year: year, Month: month, From: from, To: to, Providers: make([]models.ProviderMonthlyCount, 0, len(counts))}
	for _, c := range counts {
		report.Providers = append(report.Providers, c)
		report.Completed += c.Completed
	}
	s.logger.Info("monthly report generated",
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.Int("providers", len(counts)))
	return report, nil
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}
