package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/clinic-scheduler-api/internal/dto"
	"github.com/noah-isme/clinic-scheduler-api/internal/models"
	"github.com/noah-isme/clinic-scheduler-api/internal/service"
	appErrors "github.com/noah-isme/clinic-scheduler-api/pkg/errors"
	"github.com/noah-isme/clinic-scheduler-api/pkg/response"
)

type slotService interface {
	GetAvailableSlots(ctx context.Context, providerID string, date models.Date) ([]models.Slot, error)
}

type agendaExporter interface {
	Agenda(ctx context.Context, principal models.Principal, providerID string, date models.Date, format service.ExportFormat) (*service.ExportFile, error)
}

// AvailabilityHandler serves provider slot grids and agenda exports.
type AvailabilityHandler struct {
	slots  slotService
	export agendaExporter
}

// NewAvailabilityHandler constructs the handler.
func NewAvailabilityHandler(slots slotService, export agendaExporter) *AvailabilityHandler {
	return &AvailabilityHandler{slots: slots, export: export}
}

// Slots godoc
// @Summary Provider slots for a day
// @Tags Availability
// @Produce json
// @Param id path string true "Provider ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /providers/{id}/availability [get]
func (h *AvailabilityHandler) Slots(c *gin.Context) {
	providerID, ok := idParam(c, "id", appErrors.ErrProviderNotFound)
	if !ok {
		return
	}
	date, err := parseDateParam(strings.TrimSpace(c.Query("date")), "date")
	if err != nil {
		response.Error(c, err)
		return
	}

	slots, err := h.slots.GetAvailableSlots(c.Request.Context(), providerID, date)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := dto.AvailabilityResponse{ProviderID: providerID, Date: date.String(), Slots: make([]dto.SlotResponse, 0, len(slots))}
	for _, s := range slots {
		out.Slots = append(out.Slots, dto.SlotResponse{Time: s.Time.String(), IsFree: s.IsFree})
	}
	response.JSON(c, http.StatusOK, out, nil)
}

// Agenda godoc
// @Summary Export a provider's agenda for a day
// @Tags Availability
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Provider ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /providers/{id}/agenda [get]
func (h *AvailabilityHandler) Agenda(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	providerID, ok := idParam(c, "id", appErrors.ErrProviderNotFound)
	if !ok {
		return
	}
	date, err := parseDateParam(strings.TrimSpace(c.Query("date")), "date")
	if err != nil {
		response.Error(c, err)
		return
	}
	format := service.ExportFormat(strings.ToLower(c.DefaultQuery("format", string(service.ExportFormatCSV))))

	file, err := h.export.Agenda(c.Request.Context(), principal, providerID, date, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
