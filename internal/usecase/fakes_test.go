package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"MealSignal/internal/domain/models"
	domrepo "MealSignal/internal/domain/repository"
)

var t0 = time.Date(2020, 2, 13, 8, 0, 0, 0, time.UTC)

// fakeMeals serves per-participant logs; delays and failures are scripted.
type fakeMeals struct {
	meals map[string][]models.MealRecord
	foods map[string][]models.FoodItem
	delay map[string]time.Duration
	fail  map[string]bool

	mu    sync.Mutex
	modes []models.MealMode
}

func (f *fakeMeals) LoadMeals(ctx context.Context, pid string, mode models.MealMode) ([]models.MealRecord, error) {
	f.mu.Lock()
	f.modes = append(f.modes, mode)
	f.mu.Unlock()

	if d := f.delay[pid]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fail[pid] {
		return nil, &models.DataUnavailableError{ParticipantID: pid, Source: "meals"}
	}
	return f.meals[pid], nil
}

func (f *fakeMeals) LoadFoods(_ context.Context, pid string) ([]models.FoodItem, error) {
	foods, ok := f.foods[pid]
	if !ok {
		return nil, &models.DataUnavailableError{ParticipantID: pid, Source: "foods"}
	}
	return foods, nil
}

// fakeSignals serves samples per participant/kind. A gate, when set, blocks
// LoadSignal until it is closed or ctx ends.
type fakeSignals struct {
	samples map[string][]models.SignalSample
	fail    map[models.SignalKind]bool
	gate    chan struct{}
}

func (f *fakeSignals) LoadSignal(ctx context.Context, pid string, kind models.SignalKind) ([]models.SignalSample, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fail[kind] {
		return nil, &models.DataUnavailableError{ParticipantID: pid, Source: string(kind)}
	}
	return f.samples[pid+"/"+string(kind)], nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev models.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type staleCounter struct {
	domrepo.NopMetrics
	mu    sync.Mutex
	stale int
}

func (m *staleCounter) RecordStale() {
	m.mu.Lock()
	m.stale++
	m.mu.Unlock()
}

func (m *staleCounter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stale
}

func meal(pid string, minute int, cal, sugar, protein float64) models.MealRecord {
	return models.MealRecord{
		ParticipantID: pid,
		Timestamp:     t0.Add(time.Duration(minute) * time.Minute),
		LoggedFood:    fmt.Sprintf("meal-%s-%d", pid, minute),
		Calorie:       cal,
		Sugar:         sugar,
		Protein:       protein,
	}
}

func newTestRecommender(meals *fakeMeals, sigs *fakeSignals, pub *recordingPublisher, participants ...string) *Recommender {
	var p domrepo.EventPublisher
	if pub != nil {
		p = pub
	}
	return NewRecommender(meals, sigs, p, nil, nil, RecommenderConfig{
		Participants:       participants,
		Mode:               models.MealModeAggregated,
		Scale:              models.Scale{Calorie: 1000, Sugar: 100, Protein: 100},
		DefaultWindowHours: 2,
		MaxWindowHours:     24,
	})
}
