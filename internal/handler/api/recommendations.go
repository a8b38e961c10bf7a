package api

import (
	"time"

	"MealSignal/internal/domain/models"
	domrepo "MealSignal/internal/domain/repository"
	svcmetrics "MealSignal/internal/service/metrics"
	"MealSignal/internal/usecase"
	xhttp "MealSignal/pkg/http"
	xlogger "MealSignal/pkg/logger"
	"MealSignal/pkg/util"

	"github.com/labstack/echo/v4"
)

// RecommendationHandler serves the stateless recommendation and signal endpoints.
type RecommendationHandler struct {
	logger  *xlogger.Logger
	rec     *usecase.Recommender
	metrics *svcmetrics.Endpoint
}

func NewRecommendationHandler(logger *xlogger.Logger, rec *usecase.Recommender, metrics *svcmetrics.Endpoint) *RecommendationHandler {
	return &RecommendationHandler{logger: logger, rec: rec, metrics: metrics}
}

func (h *RecommendationHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/recommendations", h.Recommend)
	g.GET("/participants/:id/signals/:kind", h.Signal)
}

func (h *RecommendationHandler) Recommend(c echo.Context) error {
	const endpoint = "recommendations"
	defer h.metrics.Observe(endpoint, time.Now())

	req := &models.RecommendRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		h.metrics.Fail(endpoint, "ERR_VALIDATION")
		return xhttp.BadRequestResponse(c, verr)
	}

	q := usecase.Query{
		Target:       req.Target(),
		WindowHours:  req.WindowHours,
		Participants: util.SplitCSV(req.Participants),
		Mode:         domrepo.ParseMealMode(req.Mode, ""),
	}
	if c.QueryParam("window") == "" {
		q.WindowHours = h.rec.DefaultWindowHours()
	}

	res, err := h.rec.Recommend(c.Request().Context(), q, req.Rank)
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *RecommendationHandler) Signal(c echo.Context) error {
	const endpoint = "signal"
	defer h.metrics.Observe(endpoint, time.Now())

	req := &models.SignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		h.metrics.Fail(endpoint, "ERR_VALIDATION")
		return xhttp.BadRequestResponse(c, verr)
	}
	start, ok := util.ParseCSVTime(req.Start)
	if !ok {
		h.metrics.Fail(endpoint, "ERR_VALIDATION")
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
			Code:    "ERR_TIME",
			Field:   "start",
			Message: "start must be a timestamp",
		}})
	}
	kind, _ := domrepo.ParseSignalKind(req.Kind)
	hours := req.WindowHours
	if c.QueryParam("window") == "" {
		hours = h.rec.DefaultWindowHours()
	}

	res, err := h.rec.Signal(c.Request().Context(), req.ParticipantID, kind, start, hours)
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *RecommendationHandler) fail(c echo.Context, endpoint string, err error) error {
	appErr := toAppError(err)
	h.metrics.Fail(endpoint, appErr.Code)
	if appErr.Status >= 500 {
		h.logger.Error(endpoint+" failed", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}
