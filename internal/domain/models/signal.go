package models

import "time"

// SignalKind names one biosignal stream.
type SignalKind string

const (
	SignalGlucose   SignalKind = "glucose"
	SignalHeartRate SignalKind = "heart_rate"
	SignalEDA       SignalKind = "eda"
)

// AllSignalKinds lists every kind in display order.
var AllSignalKinds = []SignalKind{SignalGlucose, SignalHeartRate, SignalEDA}

// Binned reports whether samples of this kind are averaged per minute.
// Glucose is sampled sparsely and is shown as recorded.
func (k SignalKind) Binned() bool {
	return k == SignalHeartRate || k == SignalEDA
}

// Valid reports whether k is a known kind.
func (k SignalKind) Valid() bool {
	switch k {
	case SignalGlucose, SignalHeartRate, SignalEDA:
		return true
	default:
		return false
	}
}

// SignalSample is one timestamped reading.
type SignalSample struct {
	Timestamp time.Time
	Value     float64
}

// WindowedSample is a reading positioned relative to a meal.
type WindowedSample struct {
	MinutesAfter float64 `json:"minutes_after"`
	Value        float64 `json:"value"`
}

// SeriesResult is the per-kind outcome of a window extraction. Empty is set
// both when the window holds no samples and when loading failed; Error then
// carries the reason.
type SeriesResult struct {
	Kind    SignalKind       `json:"kind"`
	Samples []WindowedSample `json:"samples"`
	Binned  bool             `json:"binned"`
	Empty   bool             `json:"empty"`
	Error   string           `json:"error,omitempty"`
}

// EmptyWindowMessage is reported for a window without samples.
const EmptyWindowMessage = "no data available for this window"
