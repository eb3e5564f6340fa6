package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/clinic-scheduler-api/internal/dto"
	"github.com/noah-isme/clinic-scheduler-api/internal/models"
	"github.com/noah-isme/clinic-scheduler-api/internal/service"
	appErrors "github.com/noah-isme/clinic-scheduler-api/pkg/errors"
	"github.com/noah-isme/clinic-scheduler-api/pkg/response"
)

type reportService interface {
	ListProviders(ctx context.Context, page, size int) ([]models.Provider, *models.Pagination, error)
	MonthlyReport(ctx context.Context, principal models.Principal, year, month int) (*models.MonthlyReport, error)
}

type reportExporter interface {
	MonthlyReport(ctx context.Context, principal models.Principal, year, month int, format service.ExportFormat) (*service.ExportFile, error)
}

// ReportHandler serves the provider directory and administrative reports.
type ReportHandler struct {
	reports   reportService
	export    reportExporter
	validator *validator.Validate
}

// NewReportHandler constructs the handler.
func NewReportHandler(reports reportService, export reportExporter, validate *validator.Validate) *ReportHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &ReportHandler{reports: reports, export: export, validator: validate}
}

// Providers godoc
// @Summary List active providers
// @Tags Providers
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size (max 100)"
// @Success 200 {object} response.Envelope
// @Router /providers [get]
func (h *ReportHandler) Providers(c *gin.Context) {
	var q dto.ProviderListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	if err := h.validator.Struct(q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}

	providers, pagination, err := h.reports.ListProviders(c.Request.Context(), q.Page, q.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, providers, pagination)
}

// Monthly godoc
// @Summary Completed bookings per provider for a month
// @Tags Reports
// @Produce json
// @Produce text/csv
// @Produce application/pdf
// @Param year query int true "Year"
// @Param month query int true "Month (1-12)"
// @Param format query string false "json, csv or pdf" default(json)
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /reports/monthly [get]
func (h *ReportHandler) Monthly(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	var q dto.MonthlyReportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	q.Format = strings.ToLower(q.Format)
	if err := h.validator.Struct(q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}

	if q.Format == "" || q.Format == "json" {
		report, err := h.reports.MonthlyReport(c.Request.Context(), principal, q.Year, q.Month)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, report, nil)
		return
	}

	file, err := h.export.MonthlyReport(c.Request.Context(), principal, q.Year, q.Month, service.ExportFormat(q.Format))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
