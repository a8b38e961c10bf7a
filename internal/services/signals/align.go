// Package signals positions biosignal samples relative to a meal and
// reduces dense streams to one point per minute.
package signals

import (
	"sort"
	"time"

	"MealSignal/internal/domain/models"
)

// AlignWindow keeps the samples with mealStart <= ts <= mealStart+windowHours
// and expresses each as minutes after mealStart, ascending. Negative window
// lengths are treated as 0. The input is not modified.
func AlignWindow(samples []models.SignalSample, mealStart time.Time, windowHours float64) []models.WindowedSample {
	if windowHours < 0 {
		windowHours = 0
	}
	end := mealStart.Add(time.Duration(windowHours * float64(time.Hour)))

	out := make([]models.WindowedSample, 0)
	for _, s := range samples {
		if s.Timestamp.Before(mealStart) || s.Timestamp.After(end) {
			continue
		}
		out = append(out, models.WindowedSample{
			MinutesAfter: s.Timestamp.Sub(mealStart).Minutes(),
			Value:        s.Value,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MinutesAfter < out[j].MinutesAfter
	})
	return out
}

// WindowEnd returns the inclusive upper bound of a window.
func WindowEnd(mealStart time.Time, windowHours float64) time.Time {
	if windowHours < 0 {
		windowHours = 0
	}
	return mealStart.Add(time.Duration(windowHours * float64(time.Hour)))
}
