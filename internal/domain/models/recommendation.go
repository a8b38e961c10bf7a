package models

import "time"

// MatchView is the client-facing form of a ScoredMeal.
type MatchView struct {
	ParticipantID string    `json:"participant_id"`
	Timestamp     time.Time `json:"timestamp"`
	TimeOfDay     string    `json:"time_of_day"`
	LoggedFood    string    `json:"logged_food"`
	Calorie       float64   `json:"calorie"`
	Sugar         float64   `json:"sugar"`
	Protein       float64   `json:"protein"`
	TotalCarb     float64   `json:"total_carb"`
	DietaryFiber  float64   `json:"dietary_fiber"`
	TotalFat      float64   `json:"total_fat"`
	Distance      float64   `json:"distance"`
}

// NewMatchView converts a scored meal.
func NewMatchView(m ScoredMeal) MatchView {
	return MatchView{
		ParticipantID: m.ParticipantID,
		Timestamp:     m.Timestamp,
		TimeOfDay:     m.TimeOfDay,
		LoggedFood:    m.LoggedFood,
		Calorie:       m.Calorie,
		Sugar:         m.Sugar,
		Protein:       m.Protein,
		TotalCarb:     m.TotalCarb,
		DietaryFiber:  m.DietaryFiber,
		TotalFat:      m.TotalFat,
		Distance:      m.Distance,
	}
}

// Recommendation is one ranked match with its signal windows.
type Recommendation struct {
	RequestID   string                      `json:"request_id"`
	Match       MatchView                   `json:"match"`
	Rank        int                         `json:"rank"`
	Total       int                         `json:"total"`
	WindowHours float64                     `json:"window_hours"`
	WindowStart time.Time                   `json:"window_start"`
	WindowEnd   time.Time                   `json:"window_end"`
	Series      map[SignalKind]SeriesResult `json:"series"`
	// Exhausted is true when no further match follows this one.
	Exhausted bool `json:"exhausted"`
}
