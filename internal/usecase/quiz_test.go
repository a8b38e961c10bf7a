package usecase

import (
	"context"
	"errors"
	"testing"

	"MealSignal/internal/domain/models"
	"MealSignal/pkg/cache"
)

func newTestQuiz(t *testing.T, foods []models.FoodItem, picks ...int) (*QuizService, *recordingPublisher) {
	t.Helper()
	c := cache.NewMemoryCache()
	t.Cleanup(func() { _ = c.Close() })

	pub := &recordingPublisher{}
	src := &fakeMeals{foods: map[string][]models.FoodItem{"1": foods}}
	q := NewQuizService(src, c, NewLeaderboard(c), pub, nil, "1", 0)
	q.intN = func(n int) int {
		if len(picks) == 0 {
			return 0
		}
		v := picks[0]
		picks = picks[1:]
		return v % n
	}
	return q, pub
}

var quizFoods = []models.FoodItem{
	{Name: "Banana", Calorie: 105, Sugar: 14, Protein: 1.3},
	{Name: "Apple", Calorie: 95, Sugar: 19, Protein: 0.5},
	{Name: "Egg", Calorie: 78, Sugar: 0.6, Protein: 6},
}

func TestNewQuestionPicksDistinctFoods(t *testing.T) {
	// i=1, j=1 -> shifted to 2
	q, _ := newTestQuiz(t, quizFoods, 1, 1)

	question, err := q.NewQuestion(context.Background(), models.QuizSugar, "")
	if err != nil {
		t.Fatalf("question: %v", err)
	}
	if question.A.Name != "Apple" || question.B.Name != "Egg" {
		t.Fatalf("unexpected pair %s / %s", question.A.Name, question.B.Name)
	}
	if question.Correct() != "a" {
		t.Fatalf("apple has more sugar")
	}
}

func TestNewQuestionNeedsTwoFoods(t *testing.T) {
	q, _ := newTestQuiz(t, quizFoods[:1])
	if _, err := q.NewQuestion(context.Background(), models.QuizCalorie, ""); !errors.Is(err, models.ErrNotEnoughFoods) {
		t.Fatalf("expected ErrNotEnoughFoods, got %v", err)
	}
}

func TestNewQuestionUnknownParticipant(t *testing.T) {
	q, _ := newTestQuiz(t, quizFoods)
	if _, err := q.NewQuestion(context.Background(), models.QuizCalorie, "9"); !errors.Is(err, models.ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
}

func TestAnswerScoresOnce(t *testing.T) {
	// Banana vs Apple on calories: a is correct
	q, pub := newTestQuiz(t, quizFoods, 0, 0)
	ctx := context.Background()

	question, err := q.NewQuestion(ctx, models.QuizCalorie, "")
	if err != nil {
		t.Fatalf("question: %v", err)
	}

	res, err := q.Answer(ctx, models.AnswerRequest{QuestionID: question.ID, Player: " ada ", Choice: "A"})
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if !res.Correct || res.Answer != "a" || res.Player != "ada" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Stats.TotalPlays != 1 || res.Stats.CorrectGuesses != 1 || res.Stats.WinRate != 100 {
		t.Fatalf("unexpected stats %+v", res.Stats)
	}
	if pub.count() != 1 || pub.events[0].Type != models.EventQuizAnswered || pub.events[0].Key != "ada" {
		t.Fatalf("expected one quiz event, got %+v", pub.events)
	}

	if _, err := q.Answer(ctx, models.AnswerRequest{QuestionID: question.ID, Choice: "a"}); !errors.Is(err, models.ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound on second answer, got %v", err)
	}
}

func TestAnswerUnknownQuestion(t *testing.T) {
	q, _ := newTestQuiz(t, quizFoods)
	if _, err := q.Answer(context.Background(), models.AnswerRequest{QuestionID: "nope", Choice: "b"}); !errors.Is(err, models.ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
}

func TestQuestionTieGoesToB(t *testing.T) {
	foods := []models.FoodItem{{Name: "x", Protein: 3}, {Name: "y", Protein: 3}}
	q, _ := newTestQuiz(t, foods, 0, 0)
	ctx := context.Background()

	question, err := q.NewQuestion(ctx, models.QuizProtein, "")
	if err != nil {
		t.Fatalf("question: %v", err)
	}
	res, err := q.Answer(ctx, models.AnswerRequest{QuestionID: question.ID, Choice: "b"})
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if !res.Correct || res.Player != models.DefaultPlayerName {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestLeaderboardRanking(t *testing.T) {
	c := cache.NewMemoryCache()
	defer c.Close()
	lb := NewLeaderboard(c)
	ctx := context.Background()

	record := func(player string, results ...bool) {
		for _, ok := range results {
			if _, err := lb.Record(ctx, player, ok); err != nil {
				t.Fatalf("record: %v", err)
			}
		}
	}
	record("bo", true, false)              // 50%, 2 plays
	record("al", true, true, false)        // 66.7%
	record("cy", true, false, true, false) // 50%, 4 plays
	record("di", false)                    // 0%

	top, err := lb.Top(ctx, 0)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	want := []string{"al", "cy", "bo", "di"}
	if len(top) != len(want) {
		t.Fatalf("expected %d players, got %+v", len(want), top)
	}
	for i, name := range want {
		if top[i].Name != name {
			t.Fatalf("position %d: expected %s, got %+v", i, name, top)
		}
	}
	if top[3].CorrectGuesses != 0 || top[3].TotalPlays != 1 {
		t.Fatalf("unexpected stats %+v", top[3])
	}

	top, err = lb.Top(ctx, 2)
	if err != nil || len(top) != 2 {
		t.Fatalf("expected limit 2, got %d (%v)", len(top), err)
	}
}

func TestLeaderboardEmpty(t *testing.T) {
	c := cache.NewMemoryCache()
	defer c.Close()

	top, err := NewLeaderboard(c).Top(context.Background(), 10)
	if err != nil || top == nil || len(top) != 0 {
		t.Fatalf("expected empty non-nil list, got %v (%v)", top, err)
	}
}
