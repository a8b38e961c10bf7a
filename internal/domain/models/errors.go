package models

import (
	"errors"
	"fmt"
)

var (
	// ErrDataUnavailable matches every *DataUnavailableError.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrEmptyCandidateSet means the loaded logs held no meal to rank.
	ErrEmptyCandidateSet = errors.New("no recommendation possible")
	// ErrExhausted means the cursor is already on the last match.
	ErrExhausted = errors.New("no more matches")
	// ErrStaleRequest marks a result superseded by a newer request.
	ErrStaleRequest = errors.New("request superseded")
	// ErrNotEnoughFoods means the quiz needs at least two foods.
	ErrNotEnoughFoods = errors.New("not enough foods for a question")
	// ErrQuestionNotFound means the question expired or was already answered.
	ErrQuestionNotFound = errors.New("question not found")
)

// DataUnavailableError reports a missing or malformed source for one participant.
type DataUnavailableError struct {
	ParticipantID string
	Source        string
	Err           error
}

func (e *DataUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data unavailable: participant %s source %s: %v", e.ParticipantID, e.Source, e.Err)
	}
	return fmt.Sprintf("data unavailable: participant %s source %s", e.ParticipantID, e.Source)
}

func (e *DataUnavailableError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrDataUnavailable) hold.
func (e *DataUnavailableError) Is(target error) bool {
	return target == ErrDataUnavailable
}
