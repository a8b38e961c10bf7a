package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"MealSignal/internal/domain/models"
	"MealSignal/internal/service/ratelimit"
	"MealSignal/internal/usecase"
	"MealSignal/pkg/cache"
	xlogger "MealSignal/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var t0 = time.Date(2020, 2, 13, 8, 0, 0, 0, time.UTC)

type stubSource struct {
	meals   map[string][]models.MealRecord
	foods   map[string][]models.FoodItem
	samples map[string][]models.SignalSample
}

func (s *stubSource) LoadMeals(_ context.Context, pid string, _ models.MealMode) ([]models.MealRecord, error) {
	m, ok := s.meals[pid]
	if !ok {
		return nil, &models.DataUnavailableError{ParticipantID: pid, Source: "meals"}
	}
	return m, nil
}

func (s *stubSource) LoadFoods(_ context.Context, pid string) ([]models.FoodItem, error) {
	f, ok := s.foods[pid]
	if !ok {
		return nil, &models.DataUnavailableError{ParticipantID: pid, Source: "foods"}
	}
	return f, nil
}

func (s *stubSource) LoadSignal(_ context.Context, pid string, kind models.SignalKind) ([]models.SignalSample, error) {
	return s.samples[pid+"/"+string(kind)], nil
}

func newStub() *stubSource {
	return &stubSource{
		meals: map[string][]models.MealRecord{
			"1": {
				{ParticipantID: "1", Timestamp: t0, LoggedFood: "eggs", Calorie: 400, Sugar: 58, Protein: 15},
				{ParticipantID: "1", Timestamp: t0.Add(5 * time.Hour), LoggedFood: "pasta", Calorie: 800, Sugar: 10, Protein: 50},
			},
			"2": {},
		},
		foods: map[string][]models.FoodItem{
			"1": {{Name: "Banana", Calorie: 105}, {Name: "Apple", Calorie: 95}},
			"2": {{Name: "Rice", Calorie: 200}},
		},
		samples: map[string][]models.SignalSample{
			"1/heart_rate": {{Timestamp: t0.Add(12 * time.Second), Value: 10}, {Timestamp: t0.Add(48 * time.Second), Value: 20}},
		},
	}
}

func newRecommender(src *stubSource, participants ...string) *usecase.Recommender {
	return usecase.NewRecommender(src, src, nil, nil, nil, usecase.RecommenderConfig{
		Participants:       participants,
		Scale:              models.Scale{Calorie: 1000, Sugar: 100, Protein: 100},
		DefaultWindowHours: 2,
		MaxWindowHours:     24,
	})
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func do(t *testing.T, e *echo.Echo, method, target, body string) (int, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s %s: %v (%s)", method, target, err, rec.Body.String())
	}
	if env.Status != rec.Code {
		t.Fatalf("envelope status %d does not match HTTP status %d", env.Status, rec.Code)
	}
	return rec.Code, env
}

func errorCode(t *testing.T, env envelope) string {
	t.Helper()
	var errs []struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(env.Data, &errs); err != nil || len(errs) == 0 {
		t.Fatalf("expected error list, got %s", env.Data)
	}
	return errs[0].Code
}

func TestRecommendEndpoint(t *testing.T) {
	e := echo.New()
	NewRecommendationHandler(xlogger.Nop(), newRecommender(newStub(), "1"), nil).RegisterRoutes(e)

	code, env := do(t, e, http.MethodGet, "/api/recommendations?calorie=404&sugar=60&protein=16", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", code, env.Data)
	}
	var rec models.Recommendation
	if err := json.Unmarshal(env.Data, &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Match.LoggedFood != "eggs" || rec.Total != 2 || rec.WindowHours != 2 || rec.Exhausted {
		t.Fatalf("unexpected recommendation %+v", rec)
	}
	if hr := rec.Series[models.SignalHeartRate]; len(hr.Samples) != 1 || hr.Samples[0].MinutesAfter != 0.5 {
		t.Fatalf("unexpected heart rate series %+v", hr)
	}

	code, env = do(t, e, http.MethodGet, "/api/recommendations?calorie=404&sugar=60&protein=16&rank=1&window=3", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if err := json.Unmarshal(env.Data, &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Match.LoggedFood != "pasta" || !rec.Exhausted || rec.WindowHours != 3 {
		t.Fatalf("unexpected second recommendation %+v", rec)
	}
}

func TestRecommendEndpointErrors(t *testing.T) {
	e := echo.New()
	NewRecommendationHandler(xlogger.Nop(), newRecommender(newStub(), "1"), nil).RegisterRoutes(e)

	if code, _ := do(t, e, http.MethodGet, "/api/recommendations?calorie=-5", ""); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative calorie, got %d", code)
	}
	if code, _ := do(t, e, http.MethodGet, "/api/recommendations?mode=weekly", ""); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown mode, got %d", code)
	}
	if code, _ := do(t, e, http.MethodGet, "/api/recommendations?participants=1,abc", ""); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad participant list, got %d", code)
	}

	code, env := do(t, e, http.MethodGet, "/api/recommendations?participants=9", "")
	if code != http.StatusServiceUnavailable || errorCode(t, env) != "ERR_DATA_UNAVAILABLE" {
		t.Fatalf("expected 503 ERR_DATA_UNAVAILABLE, got %d %s", code, env.Data)
	}
	if !strings.Contains(string(env.Data), `"participant":"9"`) {
		t.Fatalf("expected participant param, got %s", env.Data)
	}

	code, env = do(t, e, http.MethodGet, "/api/recommendations?participants=2", "")
	if code != http.StatusNotFound || errorCode(t, env) != "ERR_NO_RECOMMENDATION" {
		t.Fatalf("expected 404 ERR_NO_RECOMMENDATION, got %d %s", code, env.Data)
	}
}

func TestSignalEndpoint(t *testing.T) {
	e := echo.New()
	NewRecommendationHandler(xlogger.Nop(), newRecommender(newStub(), "1"), nil).RegisterRoutes(e)

	code, env := do(t, e, http.MethodGet, "/api/participants/1/signals/heart_rate?start=2020-02-13T08:00:00&window=1", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", code, env.Data)
	}
	var res models.SeriesResult
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Binned || len(res.Samples) != 1 || res.Samples[0].Value != 15 {
		t.Fatalf("unexpected series %+v", res)
	}

	if code, _ := do(t, e, http.MethodGet, "/api/participants/1/signals/heart_rate?start=yesterday", ""); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad start, got %d", code)
	}
	if code, _ := do(t, e, http.MethodGet, "/api/participants/1/signals/steps?start=2020-02-13T08:00:00", ""); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown kind, got %d", code)
	}
}

func newQuizEcho(t *testing.T, rl *ratelimit.Limiter) *echo.Echo {
	t.Helper()
	c := cache.NewMemoryCache()
	t.Cleanup(func() { _ = c.Close() })

	lb := usecase.NewLeaderboard(c)
	quiz := usecase.NewQuizService(newStub(), c, lb, nil, nil, "1", time.Minute)
	e := echo.New()
	NewQuizHandler(xlogger.Nop(), quiz, lb, rl, nil).RegisterRoutes(e)
	return e
}

func TestQuizFlow(t *testing.T) {
	e := newQuizEcho(t, nil)

	code, env := do(t, e, http.MethodGet, "/api/quiz?metric=calorie", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", code, env.Data)
	}
	var q models.QuizQuestion
	if err := json.Unmarshal(env.Data, &q); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if q.ID == "" || q.A.Name == q.B.Name {
		t.Fatalf("unexpected question %+v", q)
	}

	body := `{"question_id":"` + q.ID + `","player":"ada","choice":"` + q.Correct() + `"}`
	code, env = do(t, e, http.MethodPost, "/api/quiz/answers", body)
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", code, env.Data)
	}
	var res models.QuizResult
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Correct || res.Stats.WinRate != 100 {
		t.Fatalf("unexpected result %+v", res)
	}

	code, env = do(t, e, http.MethodPost, "/api/quiz/answers", body)
	if code != http.StatusNotFound || errorCode(t, env) != "ERR_QUESTION_NOT_FOUND" {
		t.Fatalf("expected 404 on second answer, got %d %s", code, env.Data)
	}

	code, env = do(t, e, http.MethodGet, "/api/leaderboard", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	var list struct {
		Rows  []models.PlayerStats `json:"rows"`
		Total int64                `json:"total"`
	}
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Total != 1 || list.Rows[0].Name != "ada" {
		t.Fatalf("unexpected leaderboard %+v", list)
	}
}

func TestQuizErrors(t *testing.T) {
	e := newQuizEcho(t, nil)

	code, env := do(t, e, http.MethodGet, "/api/quiz?participant=2", "")
	if code != http.StatusConflict || errorCode(t, env) != "ERR_NOT_ENOUGH_FOODS" {
		t.Fatalf("expected 409 ERR_NOT_ENOUGH_FOODS, got %d %s", code, env.Data)
	}
	if code, _ := do(t, e, http.MethodGet, "/api/quiz?metric=fat", ""); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown metric, got %d", code)
	}
	if code, _ := do(t, e, http.MethodPost, "/api/quiz/answers", `{"question_id":"x","choice":"c"}`); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad choice, got %d", code)
	}
}

func TestQuizRateLimited(t *testing.T) {
	e := newQuizEcho(t, ratelimit.New(1, 0))

	if code, _ := do(t, e, http.MethodGet, "/api/quiz", ""); code != http.StatusOK {
		t.Fatalf("expected first call to pass, got %d", code)
	}
	code, env := do(t, e, http.MethodGet, "/api/quiz", "")
	if code != http.StatusTooManyRequests || errorCode(t, env) != "ERR_RATE_LIMITED" {
		t.Fatalf("expected 429, got %d %s", code, env.Data)
	}
}

func TestFoodsEndpoint(t *testing.T) {
	e := newQuizEcho(t, nil)

	code, env := do(t, e, http.MethodGet, "/api/foods", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	var list struct {
		Rows []models.FoodItem `json:"rows"`
	}
	if err := json.Unmarshal(env.Data, &list); err != nil || len(list.Rows) != 2 {
		t.Fatalf("unexpected foods %s (%v)", env.Data, err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	e := echo.New()
	NewHealthHandler(map[string]HealthCheck{
		"cache":      func(context.Context) error { return nil },
		"clickhouse": func(context.Context) error { return errors.New("connection refused") },
	}).RegisterRoutes(e)

	code, env := do(t, e, http.MethodGet, "/healthz", "")
	if code != http.StatusServiceUnavailable || !strings.Contains(string(env.Data), "connection refused") {
		t.Fatalf("expected degraded health, got %d %s", code, env.Data)
	}
}

func TestWebsocketSession(t *testing.T) {
	e := echo.New()
	NewSessionHandler(xlogger.Nop(), newRecommender(newStub(), "1"), nil, nil).RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	read := func() serverMessage {
		t.Helper()
		var msg serverMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		return msg
	}

	if err := conn.WriteJSON(map[string]interface{}{"type": "recommend", "calorie": 404, "sugar": 60, "protein": 16, "window": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg := read()
	if msg.Type != usecase.EventRecommendation || msg.Recommendation == nil || msg.Recommendation.Match.LoggedFood != "eggs" {
		t.Fatalf("unexpected first message %+v", msg)
	}
	if msg.Recommendation.WindowHours != 1 || msg.SessionID == "" {
		t.Fatalf("unexpected first message %+v", msg)
	}

	_ = conn.WriteJSON(map[string]string{"type": "next"})
	if msg = read(); msg.Type != usecase.EventRecommendation || !msg.Recommendation.Exhausted {
		t.Fatalf("expected last match, got %+v", msg)
	}

	_ = conn.WriteJSON(map[string]string{"type": "next"})
	if msg = read(); msg.Type != usecase.EventExhausted {
		t.Fatalf("expected exhausted, got %+v", msg)
	}

	_ = conn.WriteJSON(map[string]string{"type": "dance"})
	if msg = read(); msg.Type != usecase.EventError || msg.Code != "ERR_BAD_REQUEST" {
		t.Fatalf("expected bad request error, got %+v", msg)
	}

	_ = conn.WriteJSON(map[string]interface{}{"type": "recommend", "calorie": -1})
	if msg = read(); msg.Type != usecase.EventError || msg.Code != "ERR_VALIDATION" || len(msg.Errors) != 1 || msg.Errors[0].Field != "calorie" {
		t.Fatalf("expected validation error, got %+v", msg)
	}
}
