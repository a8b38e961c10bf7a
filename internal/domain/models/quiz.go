package models

import "time"

// QuizMetric is the nutrient a quiz question compares.
type QuizMetric string

const (
	QuizCalorie QuizMetric = "calorie"
	QuizSugar   QuizMetric = "sugar"
	QuizProtein QuizMetric = "protein"
)

// Of returns the metric value of f.
func (m QuizMetric) Of(f FoodItem) float64 {
	switch m {
	case QuizSugar:
		return f.Sugar
	case QuizProtein:
		return f.Protein
	default:
		return f.Calorie
	}
}

// QuizQuestion asks which of A and B has more of Metric.
type QuizQuestion struct {
	ID        string     `json:"id"`
	Metric    QuizMetric `json:"metric"`
	A         FoodItem   `json:"a"`
	B         FoodItem   `json:"b"`
	CreatedAt time.Time  `json:"created_at"`
}

// Correct returns "a" or "b". Equal values count for b.
func (q QuizQuestion) Correct() string {
	if q.Metric.Of(q.A) > q.Metric.Of(q.B) {
		return "a"
	}
	return "b"
}

// QuizResult is returned after an answer.
type QuizResult struct {
	QuestionID string      `json:"question_id"`
	Player     string      `json:"player"`
	Choice     string      `json:"choice"`
	Correct    bool        `json:"correct"`
	Answer     string      `json:"answer"`
	Stats      PlayerStats `json:"stats"`
}

// PlayerStats is one leaderboard row. WinRate is a percentage.
type PlayerStats struct {
	Name           string  `json:"name"`
	TotalPlays     int64   `json:"total_plays"`
	CorrectGuesses int64   `json:"correct_guesses"`
	WinRate        float64 `json:"win_rate"`
}

// DefaultPlayerName is used when an answer carries no player name.
const DefaultPlayerName = "Anonymous"
