package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/noah-isme/clinic-scheduler-api/internal/middleware"
	"github.com/noah-isme/clinic-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/clinic-scheduler-api/pkg/errors"
	"github.com/noah-isme/clinic-scheduler-api/pkg/response"
)

// principalOrAbort returns the resolved principal or writes 401.
func principalOrAbort(c *gin.Context) (models.Principal, bool) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		c.Abort()
	}
	return principal, ok
}

// idParam reads a UUID path parameter. A malformed id cannot name a stored
// record, so it is answered with notFound and the request is aborted.
func idParam(c *gin.Context, name string, notFound *appErrors.Error) (string, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Error(c, appErrors.Clone(notFound, ""))
		c.Abort()
		return "", false
	}
	return id.String(), true
}

func parseDateParam(raw, field string) (models.Date, error) {
	if raw == "" {
		return models.Date{}, appErrors.Clone(appErrors.ErrValidation, field+" is required")
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		return models.Date{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid "+field+", expected YYYY-MM-DD")
	}
	return d, nil
}

func parseTimeParam(raw, field string) (models.TimeOfDay, error) {
	t, err := models.ParseTimeOfDay(raw)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid "+field+", expected HH:MM")
	}
	return t, nil
}
