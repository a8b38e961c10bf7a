package signals

import (
	"math"
	"sort"

	"MealSignal/internal/domain/models"
)

type bucket struct {
	sum   float64
	count int
}

// Bin averages samples per whole minute. Each output point sits at the
// middle of its minute (index + 0.5); output is ascending and has one point
// per distinct minute. Binning a binned series returns it unchanged.
func Bin(samples []models.WindowedSample) []models.WindowedSample {
	buckets := make(map[int64]*bucket)
	for _, s := range samples {
		k := int64(math.Floor(s.MinutesAfter))
		b, ok := buckets[k]
		if !ok {
			b = &bucket{}
			buckets[k] = b
		}
		b.sum += s.Value
		b.count++
	}

	keys := make([]int64, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]models.WindowedSample, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		out = append(out, models.WindowedSample{
			MinutesAfter: float64(k) + 0.5,
			Value:        b.sum / float64(b.count),
		})
	}
	return out
}
