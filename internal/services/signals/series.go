package signals

import (
	"time"

	"MealSignal/internal/domain/models"
)

// Extract aligns samples to the window and bins them when the kind calls for it.
func Extract(kind models.SignalKind, samples []models.SignalSample, mealStart time.Time, windowHours float64) models.SeriesResult {
	windowed := AlignWindow(samples, mealStart, windowHours)
	if kind.Binned() {
		windowed = Bin(windowed)
	}

	res := models.SeriesResult{
		Kind:    kind,
		Samples: windowed,
		Binned:  kind.Binned(),
	}
	if len(windowed) == 0 {
		res.Empty = true
		res.Error = models.EmptyWindowMessage
	}
	return res
}

// Failed builds the result reported for a kind whose source could not be read.
func Failed(kind models.SignalKind, err error) models.SeriesResult {
	return models.SeriesResult{
		Kind:    kind,
		Samples: []models.WindowedSample{},
		Binned:  kind.Binned(),
		Empty:   true,
		Error:   err.Error(),
	}
}
