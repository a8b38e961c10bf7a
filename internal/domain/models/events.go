package models

import "time"

// Event types published on the events topic.
const (
	EventRecommendationServed = "recommendation.served"
	EventQuizAnswered         = "quiz.answered"
)

// Event is the envelope written to the events topic.
type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Key        string      `json:"-"`
	Payload    interface{} `json:"payload"`
}

// RecommendationServed is the payload of EventRecommendationServed.
type RecommendationServed struct {
	RequestID     string        `json:"request_id"`
	Target        TargetProfile `json:"target"`
	ParticipantID string        `json:"participant_id"`
	MealTime      time.Time     `json:"meal_time"`
	Distance      float64       `json:"distance"`
	Rank          int           `json:"rank"`
	Total         int           `json:"total"`
}

// QuizAnswered is the payload of EventQuizAnswered.
type QuizAnswered struct {
	QuestionID string     `json:"question_id"`
	Player     string     `json:"player"`
	Metric     QuizMetric `json:"metric"`
	Correct    bool       `json:"correct"`
}

// BiosignalMessage is one reading on the ingest topic.
type BiosignalMessage struct {
	ParticipantID string     `json:"participant_id"`
	Kind          SignalKind `json:"kind"`
	Timestamp     time.Time  `json:"ts"`
	Value         float64    `json:"value"`
}

// StoredSample is a sample tagged with its participant and kind, as persisted.
type StoredSample struct {
	ParticipantID string
	Kind          SignalKind
	SignalSample
}
