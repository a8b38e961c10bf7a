package signals

import (
	"math"
	"reflect"
	"testing"
	"time"

	"MealSignal/internal/domain/models"
)

var mealStart = time.Date(2020, 2, 13, 18, 0, 0, 0, time.UTC)

func at(d time.Duration, v float64) models.SignalSample {
	return models.SignalSample{Timestamp: mealStart.Add(d), Value: v}
}

func TestAlignWindowInclusiveBounds(t *testing.T) {
	samples := []models.SignalSample{
		at(2*time.Hour+time.Minute, 5),
		at(-time.Minute, 1),
		at(30*time.Minute, 3),
		at(0, 2),
		at(2*time.Hour, 4),
	}

	got := AlignWindow(samples, mealStart, 2)
	want := []models.WindowedSample{{MinutesAfter: 0, Value: 2}, {MinutesAfter: 30, Value: 3}, {MinutesAfter: 120, Value: 4}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestAlignWindowBounds(t *testing.T) {
	var samples []models.SignalSample
	for m := -30; m <= 300; m += 7 {
		samples = append(samples, at(time.Duration(m)*time.Minute, float64(m)))
	}
	for _, hours := range []float64{0, 0.5, 1, 2, 3.25} {
		for _, s := range AlignWindow(samples, mealStart, hours) {
			if s.MinutesAfter < 0 || s.MinutesAfter > hours*60 {
				t.Fatalf("window %vh: sample at %v out of range", hours, s.MinutesAfter)
			}
		}
	}
}

func TestAlignWindowNegativeHours(t *testing.T) {
	got := AlignWindow([]models.SignalSample{at(0, 1), at(time.Minute, 2)}, mealStart, -3)
	if len(got) != 1 || got[0].MinutesAfter != 0 {
		t.Fatalf("negative window should act as 0, got %+v", got)
	}
}

func TestAlignWindowEmpty(t *testing.T) {
	got := AlignWindow([]models.SignalSample{at(-time.Hour, 1)}, mealStart, 2)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestBinScenario(t *testing.T) {
	in := []models.WindowedSample{{MinutesAfter: 0.2, Value: 10}, {MinutesAfter: 0.8, Value: 20}, {MinutesAfter: 1.1, Value: 30}}
	got := Bin(in)
	want := []models.WindowedSample{{MinutesAfter: 0.5, Value: 15}, {MinutesAfter: 1.5, Value: 30}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestBinUniqueAndIdempotent(t *testing.T) {
	var in []models.WindowedSample
	for i := 0; i < 200; i++ {
		in = append(in, models.WindowedSample{MinutesAfter: float64(i) * 0.37, Value: math.Sin(float64(i))})
	}
	once := Bin(in)

	seen := map[float64]bool{}
	for i, s := range once {
		if seen[s.MinutesAfter] {
			t.Fatalf("duplicate minute %v", s.MinutesAfter)
		}
		seen[s.MinutesAfter] = true
		if i > 0 && once[i-1].MinutesAfter >= s.MinutesAfter {
			t.Fatalf("not ascending at %d", i)
		}
	}

	if twice := Bin(once); !reflect.DeepEqual(once, twice) {
		t.Fatalf("binning is not idempotent")
	}
}

func TestBinOrderIndependent(t *testing.T) {
	in := []models.WindowedSample{{MinutesAfter: 3.9, Value: 1}, {MinutesAfter: 0.1, Value: 2}, {MinutesAfter: 3.1, Value: 3}}
	rev := []models.WindowedSample{in[2], in[1], in[0]}
	if !reflect.DeepEqual(Bin(in), Bin(rev)) {
		t.Fatalf("result depends on input order")
	}
}

func TestExtractBinsOnlyDenseKinds(t *testing.T) {
	samples := []models.SignalSample{at(10*time.Second, 60), at(40*time.Second, 80)}

	hr := Extract(models.SignalHeartRate, samples, mealStart, 2)
	if !hr.Binned || len(hr.Samples) != 1 || hr.Samples[0].Value != 70 {
		t.Fatalf("heart rate should be binned: %+v", hr)
	}

	gl := Extract(models.SignalGlucose, samples, mealStart, 2)
	if gl.Binned || len(gl.Samples) != 2 {
		t.Fatalf("glucose must not be binned: %+v", gl)
	}

	empty := Extract(models.SignalEDA, nil, mealStart, 2)
	if !empty.Empty || empty.Error != models.EmptyWindowMessage {
		t.Fatalf("expected empty result, got %+v", empty)
	}
}
