package service

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/clinic-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/clinic-scheduler-api/pkg/errors"
)

func window(t *testing.T, start, end string) models.AvailabilityWindow {
	t.Helper()
	w, err := models.ParseAvailabilityWindow("prov-1", start, end, true)
	require.NoError(t, err)
	return w
}

func TestGenerateSlotsStaysInsideWindow(t *testing.T) {
	windows := []models.AvailabilityWindow{
		window(t, "09:00", "12:00"),
		window(t, "09:00", "09:31"),
		window(t, "00:00", "23:59"),
		window(t, "13:15", "14:00"),
	}
	for _, g := range []int{1, 7, 15, 30, 45, 60, 90} {
		for _, w := range windows {
			seq, err := GenerateSlots(w, g)
			require.NoError(t, err)

			slots := slices.Collect(seq)
			if int(w.EndTime-w.StartTime) < g {
				assert.Empty(t, slots, "window %s at %d", w, g)
				continue
			}
			require.NotEmpty(t, slots)
			assert.Equal(t, w.StartTime, slots[0])
			for i, slot := range slots {
				assert.True(t, Contains(w, slot), "slot %s outside %s", slot, w)
				if i > 0 {
					assert.Equal(t, g, int(slot-slots[i-1]))
				}
			}
			last := slots[len(slots)-1]
			assert.False(t, w.EndTime.Before(last.Add(g)), "slot %s overruns %s", last, w)
			assert.True(t, w.EndTime.Before(last.Add(2*g)))
		}
	}
}

func TestGenerateSlotsSingleSlot(t *testing.T) {
	seq, err := GenerateSlots(window(t, "09:00", "09:31"), 30)
	require.NoError(t, err)

	assert.Equal(t, []models.TimeOfDay{9 * 60}, slices.Collect(seq))
}

func TestGenerateSlotsDropsPartialTail(t *testing.T) {
	seq, err := GenerateSlots(window(t, "14:00", "17:00"), 40)
	require.NoError(t, err)
	assert.Equal(t, []models.TimeOfDay{14 * 60, 14*60 + 40, 15*60 + 20, 16 * 60}, slices.Collect(seq))

	seq, err = GenerateSlots(window(t, "13:15", "14:00"), 60)
	require.NoError(t, err)
	assert.Empty(t, slices.Collect(seq))
}

func TestGenerateSlotsIsRestartable(t *testing.T) {
	seq, err := GenerateSlots(window(t, "09:00", "12:00"), 30)
	require.NoError(t, err)

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	assert.Len(t, first, 6)
	assert.Equal(t, first, second)

	var partial []models.TimeOfDay
	for slot := range seq {
		partial = append(partial, slot)
		if len(partial) == 2 {
			break
		}
	}
	assert.Equal(t, first[:2], partial)
}

func TestGenerateSlotsRejectsInvalidWindow(t *testing.T) {
	_, err := GenerateSlots(models.AvailabilityWindow{StartTime: 12 * 60, EndTime: 9 * 60}, 30)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidWindow))

	_, err = GenerateSlots(models.AvailabilityWindow{StartTime: 9 * 60, EndTime: 9 * 60}, 30)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidWindow))

	_, err = GenerateSlots(window(t, "09:00", "10:00"), 0)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidWindow))
}

func TestContainsBoundaries(t *testing.T) {
	w := window(t, "14:00", "17:00")

	assert.True(t, Contains(w, 14*60))
	assert.True(t, Contains(w, 16*60+59))
	assert.False(t, Contains(w, 17*60))
	assert.False(t, Contains(w, 13*60+59))
}
