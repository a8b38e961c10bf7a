package api

import (
	"time"

	"MealSignal/internal/domain/models"
	svcmetrics "MealSignal/internal/service/metrics"
	"MealSignal/internal/service/ratelimit"
	"MealSignal/internal/usecase"
	xhttp "MealSignal/pkg/http"
	xlogger "MealSignal/pkg/logger"

	"github.com/labstack/echo/v4"
)

// QuizHandler serves the mini-game: food options, questions, answers and the leaderboard.
type QuizHandler struct {
	logger      *xlogger.Logger
	quiz        *usecase.QuizService
	leaderboard *usecase.Leaderboard
	rl          *ratelimit.Limiter
	metrics     *svcmetrics.Endpoint
}

func NewQuizHandler(logger *xlogger.Logger, quiz *usecase.QuizService, lb *usecase.Leaderboard, rl *ratelimit.Limiter, metrics *svcmetrics.Endpoint) *QuizHandler {
	return &QuizHandler{logger: logger, quiz: quiz, leaderboard: lb, rl: rl, metrics: metrics}
}

func (h *QuizHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/foods", h.Foods)
	g.GET("/quiz", h.Question, h.limit)
	g.POST("/quiz/answers", h.Answer, h.limit)
	g.GET("/leaderboard", h.Leaderboard)
}

// limit rejects callers that ran out of tokens.
func (h *QuizHandler) limit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.rl != nil && !h.rl.Allow(xhttp.ClientKey(c)) {
			h.metrics.Fail("quiz", "ERR_RATE_LIMITED")
			return xhttp.TooManyRequestsResponse(c)
		}
		return next(c)
	}
}

func (h *QuizHandler) Foods(c echo.Context) error {
	const endpoint = "foods"
	defer h.metrics.Observe(endpoint, time.Now())

	req := &models.FoodsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	foods, err := h.quiz.Foods(c.Request().Context(), req.Participant)
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	return xhttp.ListResponse(c, foods, int64(len(foods)))
}

func (h *QuizHandler) Question(c echo.Context) error {
	const endpoint = "quiz"
	defer h.metrics.Observe(endpoint, time.Now())

	req := &models.QuizRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	q, err := h.quiz.NewQuestion(c.Request().Context(), models.QuizMetric(req.Metric), req.Participant)
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	return xhttp.SuccessResponse(c, q)
}

func (h *QuizHandler) Answer(c echo.Context) error {
	const endpoint = "quiz_answer"
	defer h.metrics.Observe(endpoint, time.Now())

	req := &models.AnswerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.quiz.Answer(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	return xhttp.CreatedResponse(c, res)
}

func (h *QuizHandler) Leaderboard(c echo.Context) error {
	const endpoint = "leaderboard"
	defer h.metrics.Observe(endpoint, time.Now())

	rows, err := h.leaderboard.Top(c.Request().Context(), 0)
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *QuizHandler) fail(c echo.Context, endpoint string, err error) error {
	appErr := toAppError(err)
	h.metrics.Fail(endpoint, appErr.Code)
	if appErr.Status >= 500 {
		h.logger.Error(endpoint+" failed", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}
