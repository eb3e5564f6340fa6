package service

import (
	"fmt"
	"iter"

	"github.com/noah-isme/clinic-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/clinic-scheduler-api/pkg/errors"
)

// DefaultSlotMinutes is the slot granularity used when none is configured.
const DefaultSlotMinutes = 30

// GenerateSlots returns the slot start times of w at the given granularity.
// The sequence starts at w.StartTime and only yields slots that end no later
// than w.EndTime; it may be ranged over any number of times.
func GenerateSlots(w models.AvailabilityWindow, granularityMinutes int) (iter.Seq[models.TimeOfDay], error) {
	if err := w.Validate(); err != nil {
		return nil, appErrors.Kind(appErrors.ErrInvalidWindow, fmt.Errorf("window %s: %w", w, err))
	}
	if granularityMinutes <= 0 {
		return nil, appErrors.Kind(appErrors.ErrInvalidWindow, fmt.Errorf("granularity %d must be positive", granularityMinutes))
	}
	start, end := w.StartTime, w.EndTime
	return func(yield func(models.TimeOfDay) bool) {
		for t := start; !end.Before(t.Add(granularityMinutes)); t = t.Add(granularityMinutes) {
			if !yield(t) {
				return
			}
		}
	}, nil
}

// Contains reports whether t falls inside w (start inclusive, end exclusive).
func Contains(w models.AvailabilityWindow, t models.TimeOfDay) bool {
	return w.Contains(t)
}

// windowsContain reports whether any window admits t.
func windowsContain(windows []models.AvailabilityWindow, t models.TimeOfDay) bool {
	for _, w := range windows {
		if Contains(w, t) {
			return true
		}
	}
	return false
}
