package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/clinic-scheduler-api/internal/models"
	"github.com/noah-isme/clinic-scheduler-api/internal/service"
	appErrors "github.com/noah-isme/clinic-scheduler-api/pkg/errors"
)

type fakeReportSrv struct {
	providers   []models.Provider
	page, size  int
	year, month int
	err         error
}

func (f *fakeReportSrv) ListProviders(_ context.Context, page, size int) ([]models.Provider, *models.Pagination, error) {
	f.page, f.size = page, size
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.providers, &models.Pagination{Page: 1, PageSize: 20, TotalCount: len(f.providers)}, nil
}

func (f *fakeReportSrv) MonthlyReport(_ context.Context, principal models.Principal, year, month int) (*models.MonthlyReport, error) {
	f.year, f.month = year, month
	if !principal.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	return &models.MonthlyReport{Year: year, Month: month, Completed: 4, Providers: []models.ProviderMonthlyCount{{ProviderID: "prov-1", Completed: 4, Patients: 3}}}, nil
}

type fakeReportExporter struct {
	format service.ExportFormat
}

func (f *fakeReportExporter) MonthlyReport(_ context.Context, _ models.Principal, _, _ int, format service.ExportFormat) (*service.ExportFile, error) {
	f.format = format
	return &service.ExportFile{Filename: "monthly_report_2026-09.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.3")}, nil
}

func TestReportHandlerProviders(t *testing.T) {
	srv := &fakeReportSrv{providers: []models.Provider{{ID: "9b2e4f60-1c3d-4e5f-8a7b-6c5d4e3f2a10", FullName: "Dr. Rahman", Active: true}}}
	c, rec := newTestContext(http.MethodGet, "/providers?page=2&limit=5", "", &testPatient)
	NewReportHandler(srv, nil, nil).Providers(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, srv.page)
	assert.Equal(t, 5, srv.size)
	env := decode(t, rec)
	require.NotNil(t, env.Pagination)
	var providers []models.Provider
	require.NoError(t, json.Unmarshal(env.Data, &providers))
	assert.Equal(t, "Dr. Rahman", providers[0].FullName)

	c, rec = newTestContext(http.MethodGet, "/providers?limit=500", "", &testPatient)
	NewReportHandler(&fakeReportSrv{}, nil, nil).Providers(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, rec).Error.Code)
}

func TestReportHandlerMonthly(t *testing.T) {
	admin := models.Principal{UserID: "admin-1", Role: models.RoleAdmin}

	t.Run("json", func(t *testing.T) {
		srv := &fakeReportSrv{}
		c, rec := newTestContext(http.MethodGet, "/reports/monthly?year=2026&month=9", "", &admin)
		NewReportHandler(srv, &fakeReportExporter{}, nil).Monthly(c)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 2026, srv.year)
		assert.Equal(t, 9, srv.month)
		var report models.MonthlyReport
		require.NoError(t, json.Unmarshal(decode(t, rec).Data, &report))
		assert.Equal(t, 4, report.Completed)
	})

	t.Run("pdf file", func(t *testing.T) {
		exporter := &fakeReportExporter{}
		c, rec := newTestContext(http.MethodGet, "/reports/monthly?year=2026&month=9&format=PDF", "", &admin)
		NewReportHandler(&fakeReportSrv{}, exporter, nil).Monthly(c)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, service.ExportFormatPDF, exporter.format)
		assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "monthly_report_2026-09.pdf")
	})

	invalid := []string{
		"/reports/monthly?year=2026",
		"/reports/monthly?year=2026&month=13",
		"/reports/monthly?year=2026&month=9&format=xlsx",
		"/reports/monthly?year=abc&month=9",
	}
	for _, target := range invalid {
		c, rec := newTestContext(http.MethodGet, target, "", &admin)
		NewReportHandler(&fakeReportSrv{}, &fakeReportExporter{}, nil).Monthly(c)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}

	c, rec := newTestContext(http.MethodGet, "/reports/monthly?year=2026&month=9", "", &testPatient)
	NewReportHandler(&fakeReportSrv{}, &fakeReportExporter{}, nil).Monthly(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
