package api

import (
	"context"
	"errors"

	"MealSignal/internal/domain/models"
	"MealSignal/internal/usecase"
	xhttp "MealSignal/pkg/http"
)

// toAppError maps domain errors onto the API error codes.
func toAppError(err error) *xhttp.AppError {
	var (
		appErr  *xhttp.AppError
		dataErr *models.DataUnavailableError
	)
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.As(err, &dataErr):
		return xhttp.UnavailableError("ERR_DATA_UNAVAILABLE", "data unavailable").
			WithParam("participant", dataErr.ParticipantID).
			WithParam("source", dataErr.Source).
			WithError(err)
	case errors.Is(err, models.ErrDataUnavailable):
		return xhttp.UnavailableError("ERR_DATA_UNAVAILABLE", "data unavailable").WithError(err)
	case errors.Is(err, models.ErrEmptyCandidateSet):
		return xhttp.NotFoundError("ERR_NO_RECOMMENDATION", models.ErrEmptyCandidateSet.Error())
	case errors.Is(err, models.ErrNotEnoughFoods):
		return xhttp.ConflictError("ERR_NOT_ENOUGH_FOODS", models.ErrNotEnoughFoods.Error())
	case errors.Is(err, models.ErrQuestionNotFound):
		return xhttp.NotFoundError("ERR_QUESTION_NOT_FOUND", models.ErrQuestionNotFound.Error())
	case errors.Is(err, usecase.ErrNoActiveMatch):
		return xhttp.ConflictError("ERR_NO_ACTIVE_MATCH", usecase.ErrNoActiveMatch.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.UnavailableError("ERR_TIMEOUT", "request timed out").WithError(err)
	default:
		return xhttp.InternalError("internal error").WithError(err)
	}
}
