package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MealSignal/internal/domain/models"
	domrepo "MealSignal/internal/domain/repository"
	"MealSignal/internal/services/matching"
	"MealSignal/internal/services/signals"
	applogger "MealSignal/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// RecommenderConfig holds the defaults applied to every query.
type RecommenderConfig struct {
	Participants       []string
	Mode               models.MealMode
	Scale              models.Scale
	DefaultWindowHours float64
	MaxWindowHours     float64
	PublishTimeout     time.Duration
}

// Query is one recommendation request after boundary parsing.
type Query struct {
	Target       models.TargetProfile
	WindowHours  float64
	Participants []string
	Mode         models.MealMode
}

// Recommender runs the load, rank, align and bin pipeline.
type Recommender struct {
	meals     domrepo.MealSource
	signals   domrepo.SignalSource
	publisher domrepo.EventPublisher
	metrics   domrepo.Metrics
	l         *applogger.Logger
	cfg       RecommenderConfig
	newID     func() string
}

func NewRecommender(meals domrepo.MealSource, sigs domrepo.SignalSource, publisher domrepo.EventPublisher, metrics domrepo.Metrics, l *applogger.Logger, cfg RecommenderConfig) *Recommender {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	if cfg.Mode == "" {
		cfg.Mode = models.MealModeAggregated
	}
	if cfg.MaxWindowHours <= 0 {
		cfg.MaxWindowHours = 24
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	return &Recommender{
		meals:     meals,
		signals:   sigs,
		publisher: publisher,
		metrics:   metrics,
		l:         l,
		cfg:       cfg,
		newID:     uuid.NewString,
	}
}

// DefaultWindowHours is the window used when a request names none.
func (r *Recommender) DefaultWindowHours() float64 {
	return r.cfg.DefaultWindowHours
}

// Normalize fills unset fields from the configuration and clamps the window
// to [0, MaxWindowHours].
func (r *Recommender) Normalize(q Query) Query {
	if len(q.Participants) == 0 {
		q.Participants = r.cfg.Participants
	}
	if q.Mode == "" {
		q.Mode = r.cfg.Mode
	}
	if q.WindowHours < 0 {
		q.WindowHours = 0
	}
	if q.WindowHours > r.cfg.MaxWindowHours {
		q.WindowHours = r.cfg.MaxWindowHours
	}
	return q
}

// LoadCandidates loads the meal logs of every participant concurrently and
// returns them flattened in the order the participants were given. A failed
// participant is skipped unless it is the only one or every one failed.
func (r *Recommender) LoadCandidates(ctx context.Context, participants []string, mode models.MealMode) ([]models.MealRecord, error) {
	if len(participants) == 0 {
		return nil, models.ErrEmptyCandidateSet
	}
	start := time.Now()

	slots := make([][]models.MealRecord, len(participants))
	errs := make([]error, len(participants))

	g, gctx := errgroup.WithContext(ctx)
	for i, pid := range participants {
		g.Go(func() error {
			meals, err := r.loadParticipant(gctx, pid, mode)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				errs[i] = err
				return nil
			}
			slots[i] = meals
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var (
		out      []models.MealRecord
		failed   int
		firstErr error
	)
	for i, err := range errs {
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			r.metrics.RecordError("meal_log_unavailable")
			r.l.Warn("participant skipped",
				applogger.String("participant", participants[i]),
				applogger.Error(err),
			)
			continue
		}
		out = append(out, slots[i]...)
	}
	if failed == len(participants) {
		return nil, firstErr
	}

	r.metrics.RecordLatency("load_candidates", time.Since(start))
	if len(out) == 0 {
		return nil, models.ErrEmptyCandidateSet
	}
	return out, nil
}

func (r *Recommender) loadParticipant(ctx context.Context, pid string, mode models.MealMode) ([]models.MealRecord, error) {
	if mode != models.MealModeGrouped {
		return r.meals.LoadMeals(ctx, pid, mode)
	}
	entries, err := r.meals.LoadMeals(ctx, pid, models.MealModeRaw)
	if err != nil {
		return nil, err
	}
	return matching.GroupMeals(entries), nil
}

// Rank loads the candidates of q and ranks them against its target.
func (r *Recommender) Rank(ctx context.Context, q Query) (*matching.RankedMatchSet, error) {
	q = r.Normalize(q)
	meals, err := r.LoadCandidates(ctx, q.Participants, q.Mode)
	if err != nil {
		return nil, err
	}
	r.metrics.RecordCandidates(len(meals))

	start := time.Now()
	set := matching.Rank(meals, q.Target, r.cfg.Scale)
	r.metrics.RecordLatency("rank", time.Since(start))
	return set, nil
}

// Windows extracts every signal kind after the meal concurrently. A kind that
// cannot be loaded is reported in its own result; only cancellation fails.
func (r *Recommender) Windows(ctx context.Context, meal models.ScoredMeal, windowHours float64) (map[models.SignalKind]models.SeriesResult, error) {
	start := time.Now()
	slots := make([]models.SeriesResult, len(models.AllSignalKinds))

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range models.AllSignalKinds {
		g.Go(func() error {
			samples, err := r.signals.LoadSignal(gctx, meal.ParticipantID, kind)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				r.metrics.RecordError("signal_unavailable")
				r.l.Warn("signal unavailable",
					applogger.String("participant", meal.ParticipantID),
					applogger.String("kind", string(kind)),
					applogger.Error(err),
				)
				slots[i] = signals.Failed(kind, err)
				return nil
			}
			slots[i] = signals.Extract(kind, samples, meal.Timestamp, windowHours)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[models.SignalKind]models.SeriesResult, len(slots))
	for _, res := range slots {
		out[res.Kind] = res
	}
	r.metrics.RecordLatency("windows", time.Since(start))
	return out, nil
}

// Present builds the response for the match at rank of total.
func (r *Recommender) Present(ctx context.Context, requestID string, meal models.ScoredMeal, rank, total int, exhausted bool, windowHours float64) (*models.Recommendation, error) {
	series, err := r.Windows(ctx, meal, windowHours)
	if err != nil {
		return nil, err
	}
	return &models.Recommendation{
		RequestID:   requestID,
		Match:       models.NewMatchView(meal),
		Rank:        rank,
		Total:       total,
		WindowHours: windowHours,
		WindowStart: meal.Timestamp,
		WindowEnd:   signals.WindowEnd(meal.Timestamp, windowHours),
		Series:      series,
		Exhausted:   exhausted,
	}, nil
}

// Recommend is the stateless form of a session: it ranks q and advances the
// cursor rank times. Past the end the last match is returned as exhausted.
func (r *Recommender) Recommend(ctx context.Context, q Query, rank int) (*models.Recommendation, error) {
	q = r.Normalize(q)
	set, err := r.Rank(ctx, q)
	if err != nil {
		r.recordFailure(err)
		return nil, err
	}

	meal, err := set.Current()
	if err != nil {
		return nil, models.ErrEmptyCandidateSet
	}
	for i := 0; i < rank; i++ {
		next, err := set.Advance()
		if errors.Is(err, models.ErrExhausted) {
			break
		}
		meal = next
	}

	rec, err := r.Present(ctx, r.newID(), meal, set.Index(), set.Len(), !set.HasNext(), q.WindowHours)
	if err != nil {
		return nil, err
	}
	r.PublishServed(ctx, q.Target, rec)
	return rec, nil
}

// Signal aligns one kind of one participant to an arbitrary window.
func (r *Recommender) Signal(ctx context.Context, participantID string, kind models.SignalKind, start time.Time, windowHours float64) (models.SeriesResult, error) {
	if !kind.Valid() {
		return models.SeriesResult{}, fmt.Errorf("unknown signal kind %q", kind)
	}
	samples, err := r.signals.LoadSignal(ctx, participantID, kind)
	if err != nil {
		r.recordFailure(err)
		return models.SeriesResult{}, err
	}
	return signals.Extract(kind, samples, start, windowHours), nil
}

// PublishServed emits a recommendation.served event. Failures are logged only.
func (r *Recommender) PublishServed(ctx context.Context, target models.TargetProfile, rec *models.Recommendation) {
	if r.publisher == nil || rec == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.PublishTimeout)
	defer cancel()

	ev := models.Event{
		ID:         r.newID(),
		Type:       models.EventRecommendationServed,
		OccurredAt: time.Now().UTC(),
		Key:        rec.Match.ParticipantID,
		Payload: models.RecommendationServed{
			RequestID:     rec.RequestID,
			Target:        target,
			ParticipantID: rec.Match.ParticipantID,
			MealTime:      rec.Match.Timestamp,
			Distance:      rec.Match.Distance,
			Rank:          rec.Rank,
			Total:         rec.Total,
		},
	}
	if err := r.publisher.Publish(ctx, ev); err != nil {
		r.metrics.RecordError("publish")
		r.l.Warn("publish event failed", applogger.String("type", ev.Type), applogger.Error(err))
	}
}

func (r *Recommender) recordFailure(err error) {
	switch {
	case errors.Is(err, models.ErrDataUnavailable):
		r.metrics.RecordError("data_unavailable")
	case errors.Is(err, models.ErrEmptyCandidateSet):
		r.metrics.RecordError("empty_candidate_set")
	}
}
