package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/clinic-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/clinic-scheduler-api/pkg/errors"
)

type windowRepository interface {
	ListWindows(ctx context.Context, providerID string) ([]models.AvailabilityWindowRow, error)
}

// AvailabilityIndex exposes the active availability windows of providers,
// optionally through the Redis-backed cache.
type AvailabilityIndex struct {
	repo   windowRepository
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewAvailabilityIndex constructs the index. cache may be nil.
func NewAvailabilityIndex(repo windowRepository, cache *CacheService, ttl time.Duration, logger *zap.Logger) *AvailabilityIndex {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityIndex{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

func availabilityCacheKey(providerID string) string {
	return fmt.Sprintf("availability:windows:%s", providerID)
}

// WindowsFor returns the provider's active windows. Rows that fail to parse are
// skipped with a warning so one bad row does not hide the rest of the day.
func (a *AvailabilityIndex) WindowsFor(ctx context.Context, providerID string) ([]models.AvailabilityWindow, error) {
	key := availabilityCacheKey(providerID)
	if a.cache.Enabled() {
		var cached []models.AvailabilityWindow
		if hit, _ := a.cache.Get(ctx, key, &cached); hit {
			return cached, nil
		}
	}

	rows, err := a.repo.ListWindows(ctx, providerID)
	if err != nil {
		return nil, appErrors.Kind(appErrors.ErrStorageUnavailable, err)
	}

	windows := make([]models.AvailabilityWindow, 0, len(rows))
	for _, row := range rows {
		if !row.Active {
			continue
		}
		w, err := models.ParseAvailabilityWindow(row.ProviderID, row.StartTime, row.EndTime, row.Active)
		if err != nil {
			a.logger.Warn("skipping malformed availability window",
				zap.String("provider_id", providerID),
				zap.String("window_id", row.ID),
				zap.Error(err))
			continue
		}
		w.ID = row.ID
		windows = append(windows, w)
	}

	if a.cache.Enabled() {
		_ = a.cache.Set(ctx, key, windows, a.ttl)
	}
	return windows, nil
}
