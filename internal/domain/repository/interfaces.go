package repository

import (
	"context"
	"time"

	"MealSignal/internal/domain/models"
)

// MealSource loads one participant's meal log in file order. Only the raw and
// aggregated modes are read from a source; grouping happens above it.
type MealSource interface {
	LoadMeals(ctx context.Context, participantID string, mode models.MealMode) ([]models.MealRecord, error)
	LoadFoods(ctx context.Context, participantID string) ([]models.FoodItem, error)
}

// SignalSource loads one participant's samples of one kind, ascending by time.
type SignalSource interface {
	LoadSignal(ctx context.Context, participantID string, kind models.SignalKind) ([]models.SignalSample, error)
}

// SignalStore persists ingested samples.
type SignalStore interface {
	SignalSource
	Init(ctx context.Context) error
	StoreBatch(ctx context.Context, samples []models.StoredSample) error
	Health(ctx context.Context) error
}

// EventPublisher emits domain events. Implementations must be safe for
// concurrent use.
type EventPublisher interface {
	Publish(ctx context.Context, ev models.Event) error
	Close() error
}

// Metrics receives pipeline measurements.
type Metrics interface {
	RecordError(kind string)
	RecordLatency(stage string, d time.Duration)
	RecordRowsDropped(source string, n int)
	RecordCandidates(n int)
	RecordStale()
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordError(string)                 {}
func (NopMetrics) RecordLatency(string, time.Duration) {}
func (NopMetrics) RecordRowsDropped(string, int)       {}
func (NopMetrics) RecordCandidates(int)                {}
func (NopMetrics) RecordStale()                        {}
