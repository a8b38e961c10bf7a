package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"MealSignal/internal/domain/models"
	domrepo "MealSignal/internal/domain/repository"
	"MealSignal/pkg/cache"
	applogger "MealSignal/pkg/logger"

	"github.com/google/uuid"
)

const questionPrefix = "quiz:question"

// QuizService deals nutrition questions and scores the answers.
type QuizService struct {
	foods              domrepo.MealSource
	cache              cache.Service
	leaderboard        *Leaderboard
	publisher          domrepo.EventPublisher
	l                  *applogger.Logger
	defaultParticipant string
	ttl                time.Duration
	intN               func(n int) int
	now                func() time.Time
}

func NewQuizService(foods domrepo.MealSource, c cache.Service, lb *Leaderboard, publisher domrepo.EventPublisher, l *applogger.Logger, defaultParticipant string, ttl time.Duration) *QuizService {
	if l == nil {
		l = applogger.Nop()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &QuizService{
		foods:              foods,
		cache:              c,
		leaderboard:        lb,
		publisher:          publisher,
		l:                  l,
		defaultParticipant: defaultParticipant,
		ttl:                ttl,
		intN:               rand.IntN,
		now:                time.Now,
	}
}

// Foods returns the quiz options of participant, or of the default one.
func (s *QuizService) Foods(ctx context.Context, participant string) ([]models.FoodItem, error) {
	if participant == "" {
		participant = s.defaultParticipant
	}
	return s.foods.LoadFoods(ctx, participant)
}

// NewQuestion picks two distinct foods and stores the question until it is
// answered or expires.
func (s *QuizService) NewQuestion(ctx context.Context, metric models.QuizMetric, participant string) (*models.QuizQuestion, error) {
	foods, err := s.Foods(ctx, participant)
	if err != nil {
		return nil, err
	}
	if len(foods) < 2 {
		return nil, models.ErrNotEnoughFoods
	}

	i := s.intN(len(foods))
	j := s.intN(len(foods) - 1)
	if j >= i {
		j++
	}

	q := &models.QuizQuestion{
		ID:        uuid.NewString(),
		Metric:    metric,
		A:         foods[i],
		B:         foods[j],
		CreatedAt: s.now().UTC(),
	}
	if err := s.cache.Set(ctx, cache.GenerateKey(questionPrefix, q.ID), q, s.ttl); err != nil {
		return nil, fmt.Errorf("store question: %w", err)
	}
	return q, nil
}

// Answer scores choice ("a" or "b") for a pending question. A question can be
// answered once.
func (s *QuizService) Answer(ctx context.Context, req models.AnswerRequest) (*models.QuizResult, error) {
	choice := strings.ToLower(strings.TrimSpace(req.Choice))
	if choice != "a" && choice != "b" {
		return nil, fmt.Errorf("choice must be a or b")
	}

	var q models.QuizQuestion
	if err := s.cache.Take(ctx, cache.GenerateKey(questionPrefix, req.QuestionID), &q); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, models.ErrQuestionNotFound
		}
		return nil, fmt.Errorf("load question: %w", err)
	}

	player := PlayerName(req.Player)
	answer := q.Correct()
	correct := choice == answer

	stats, err := s.leaderboard.Record(ctx, player, correct)
	if err != nil {
		return nil, err
	}

	s.publishAnswered(ctx, q, player, correct)
	return &models.QuizResult{
		QuestionID: q.ID,
		Player:     player,
		Choice:     choice,
		Correct:    correct,
		Answer:     answer,
		Stats:      stats,
	}, nil
}

func (s *QuizService) publishAnswered(ctx context.Context, q models.QuizQuestion, player string, correct bool) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	err := s.publisher.Publish(ctx, models.Event{
		ID:         uuid.NewString(),
		Type:       models.EventQuizAnswered,
		OccurredAt: s.now().UTC(),
		Key:        player,
		Payload: models.QuizAnswered{
			QuestionID: q.ID,
			Player:     player,
			Metric:     q.Metric,
			Correct:    correct,
		},
	})
	if err != nil {
		s.l.Warn("publish event failed", applogger.String("type", models.EventQuizAnswered), applogger.Error(err))
	}
}
