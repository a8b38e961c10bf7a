package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"MealSignal/internal/domain/models"
)

func TestLoadCandidatesKeepsIssueOrder(t *testing.T) {
	meals := &fakeMeals{
		meals: map[string][]models.MealRecord{
			"1": {meal("1", 0, 100, 1, 1), meal("1", 10, 200, 1, 1)},
			"2": {meal("2", 0, 300, 1, 1)},
			"3": {meal("3", 0, 400, 1, 1)},
		},
		// participant 1 completes last
		delay: map[string]time.Duration{"1": 30 * time.Millisecond, "2": 10 * time.Millisecond},
	}
	r := newTestRecommender(meals, &fakeSignals{}, nil, "1", "2", "3")

	got, err := r.LoadCandidates(context.Background(), []string{"1", "2", "3"}, models.MealModeAggregated)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []string{"meal-1-0", "meal-1-10", "meal-2-0", "meal-3-0"}
	if len(got) != len(want) {
		t.Fatalf("expected %d meals, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].LoggedFood != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], got[i].LoggedFood)
		}
	}
}

func TestLoadCandidatesSkipsFailedParticipant(t *testing.T) {
	meals := &fakeMeals{
		meals: map[string][]models.MealRecord{"2": {meal("2", 0, 300, 1, 1)}},
		fail:  map[string]bool{"1": true},
	}
	r := newTestRecommender(meals, &fakeSignals{}, nil)

	got, err := r.LoadCandidates(context.Background(), []string{"1", "2"}, models.MealModeAggregated)
	if err != nil {
		t.Fatalf("partial failure should be tolerated, got %v", err)
	}
	if len(got) != 1 || got[0].ParticipantID != "2" {
		t.Fatalf("unexpected candidates %+v", got)
	}
}

func TestLoadCandidatesSoleFailureIsFatal(t *testing.T) {
	meals := &fakeMeals{fail: map[string]bool{"1": true, "2": true}}
	r := newTestRecommender(meals, &fakeSignals{}, nil)

	if _, err := r.LoadCandidates(context.Background(), []string{"1"}, models.MealModeAggregated); !errors.Is(err, models.ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
	if _, err := r.LoadCandidates(context.Background(), []string{"1", "2"}, models.MealModeAggregated); !errors.Is(err, models.ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable when all fail, got %v", err)
	}
}

func TestLoadCandidatesEmpty(t *testing.T) {
	meals := &fakeMeals{meals: map[string][]models.MealRecord{"1": nil}}
	r := newTestRecommender(meals, &fakeSignals{}, nil)

	if _, err := r.LoadCandidates(context.Background(), []string{"1"}, models.MealModeAggregated); !errors.Is(err, models.ErrEmptyCandidateSet) {
		t.Fatalf("expected ErrEmptyCandidateSet, got %v", err)
	}
}

func TestGroupedModeReadsRawLog(t *testing.T) {
	a := meal("1", 0, 100, 10, 1)
	a.Amount, a.Unit, a.LoggedFood = "1", "cup", "rice"
	b := meal("1", 0, 50, 5, 2)
	b.Amount, b.Unit, b.LoggedFood = "2", "", "eggs"
	meals := &fakeMeals{meals: map[string][]models.MealRecord{"1": {a, b}}}
	r := newTestRecommender(meals, &fakeSignals{}, nil, "1")

	got, err := r.LoadCandidates(context.Background(), []string{"1"}, models.MealModeGrouped)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 || got[0].LoggedFood != "1 cup rice, 2 eggs" || got[0].Calorie != 150 {
		t.Fatalf("unexpected grouped meals %+v", got)
	}
	if meals.modes[0] != models.MealModeRaw {
		t.Fatalf("expected the raw log to be read, got %s", meals.modes[0])
	}
}

func TestRecommendBestMatchWithSeries(t *testing.T) {
	close1 := meal("1", 0, 400, 58, 15)
	far := meal("1", 300, 800, 10, 50)
	meals := &fakeMeals{meals: map[string][]models.MealRecord{"1": {far, close1}}}
	sigs := &fakeSignals{
		samples: map[string][]models.SignalSample{
			"1/glucose": {
				{Timestamp: t0.Add(-time.Minute), Value: 90},
				{Timestamp: t0, Value: 100},
				{Timestamp: t0.Add(30 * time.Minute), Value: 140},
			},
			"1/heart_rate": {
				{Timestamp: t0.Add(12 * time.Second), Value: 10},
				{Timestamp: t0.Add(48 * time.Second), Value: 20},
			},
		},
		fail: map[models.SignalKind]bool{models.SignalEDA: true},
	}
	pub := &recordingPublisher{}
	r := newTestRecommender(meals, sigs, pub, "1")

	rec, err := r.Recommend(context.Background(), Query{Target: models.TargetProfile{Calorie: 404, Sugar: 60, Protein: 16}, WindowHours: 2}, 0)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if rec.Match.LoggedFood != close1.LoggedFood || rec.Rank != 0 || rec.Total != 2 || rec.Exhausted {
		t.Fatalf("unexpected recommendation %+v", rec)
	}
	if !rec.WindowEnd.Equal(t0.Add(2 * time.Hour)) {
		t.Fatalf("unexpected window end %v", rec.WindowEnd)
	}

	glucose := rec.Series[models.SignalGlucose]
	if glucose.Binned || len(glucose.Samples) != 2 || glucose.Samples[1].MinutesAfter != 30 {
		t.Fatalf("unexpected glucose series %+v", glucose)
	}
	hr := rec.Series[models.SignalHeartRate]
	if !hr.Binned || len(hr.Samples) != 1 || hr.Samples[0].MinutesAfter != 0.5 || hr.Samples[0].Value != 15 {
		t.Fatalf("unexpected heart rate series %+v", hr)
	}
	eda := rec.Series[models.SignalEDA]
	if !eda.Empty || eda.Error == "" {
		t.Fatalf("expected eda failure to be reported per kind, got %+v", eda)
	}
	if pub.count() != 1 || pub.events[0].Type != models.EventRecommendationServed || pub.events[0].Key != "1" {
		t.Fatalf("expected one served event, got %+v", pub.events)
	}
}

func TestRecommendRankPastEnd(t *testing.T) {
	meals := &fakeMeals{meals: map[string][]models.MealRecord{"1": {meal("1", 0, 100, 0, 0), meal("1", 5, 200, 0, 0)}}}
	r := newTestRecommender(meals, &fakeSignals{}, nil, "1")
	q := Query{Target: models.TargetProfile{Calorie: 100}, WindowHours: 2}

	rec, err := r.Recommend(context.Background(), q, 1)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if rec.Rank != 1 || !rec.Exhausted {
		t.Fatalf("expected last match exhausted, got rank %d exhausted %v", rec.Rank, rec.Exhausted)
	}

	rec, err = r.Recommend(context.Background(), q, 7)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if rec.Rank != 1 || !rec.Exhausted || rec.Match.Calorie != 200 {
		t.Fatalf("expected cursor clamped at the end, got %+v", rec)
	}
}

func TestRecommendEmptyWindow(t *testing.T) {
	meals := &fakeMeals{meals: map[string][]models.MealRecord{"1": {meal("1", 0, 100, 0, 0)}}}
	r := newTestRecommender(meals, &fakeSignals{}, nil, "1")

	rec, err := r.Recommend(context.Background(), Query{WindowHours: 2}, 0)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	for _, kind := range models.AllSignalKinds {
		res := rec.Series[kind]
		if !res.Empty || res.Error != models.EmptyWindowMessage || res.Samples == nil {
			t.Fatalf("expected empty window for %s, got %+v", kind, res)
		}
	}
}

func TestNormalizeClampsWindow(t *testing.T) {
	r := newTestRecommender(&fakeMeals{}, &fakeSignals{}, nil, "1", "2")

	q := r.Normalize(Query{WindowHours: 48})
	if q.WindowHours != 24 || q.Mode != models.MealModeAggregated || len(q.Participants) != 2 {
		t.Fatalf("unexpected normalized query %+v", q)
	}
	if q := r.Normalize(Query{WindowHours: -3}); q.WindowHours != 0 {
		t.Fatalf("negative window should become 0, got %v", q.WindowHours)
	}
}

func TestRecommendPublishFailureIsIgnored(t *testing.T) {
	meals := &fakeMeals{meals: map[string][]models.MealRecord{"1": {meal("1", 0, 100, 0, 0)}}}
	pub := &recordingPublisher{err: errors.New("broker down")}
	r := newTestRecommender(meals, &fakeSignals{}, pub, "1")

	if _, err := r.Recommend(context.Background(), Query{WindowHours: 1}, 0); err != nil {
		t.Fatalf("publish failure must not fail the request: %v", err)
	}
}
