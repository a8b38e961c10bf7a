package models

import "time"

// MealMode selects which food log a loader reads.
type MealMode string

const (
	MealModeRaw        MealMode = "raw"        // every food-log entry
	MealModeAggregated MealMode = "aggregated" // pre-aggregated meal file
	MealModeGrouped    MealMode = "grouped"    // raw log grouped by timestamp in memory
)

// MealRecord is one logged meal of one participant. Nutrient fields are never
// negative; unparsable source values are stored as 0.
type MealRecord struct {
	ParticipantID string
	Timestamp     time.Time
	LoggedFood    string
	Amount        string // raw log only
	Unit          string // raw log only
	Calorie       float64
	Sugar         float64
	Protein       float64
	TotalCarb     float64
	DietaryFiber  float64
	TotalFat      float64
}

// TargetProfile is the nutritional profile a caller wants to match.
type TargetProfile struct {
	Calorie float64 `json:"calorie"`
	Sugar   float64 `json:"sugar"`
	Protein float64 `json:"protein"`
}

// Scale divides each dimension before the distance is computed.
type Scale struct {
	Calorie float64
	Sugar   float64
	Protein float64
}

// DefaultScale weights every dimension equally.
var DefaultScale = Scale{Calorie: 1, Sugar: 1, Protein: 1}

// Normalized replaces non-positive components by 1.
func (s Scale) Normalized() Scale {
	if s.Calorie <= 0 {
		s.Calorie = 1
	}
	if s.Sugar <= 0 {
		s.Sugar = 1
	}
	if s.Protein <= 0 {
		s.Protein = 1
	}
	return s
}

// ScoredMeal is a meal with its distance to the target.
type ScoredMeal struct {
	MealRecord
	Distance  float64
	TimeOfDay string // HH:MM of the meal timestamp
}

// FoodItem is one option of the nutrition quiz.
type FoodItem struct {
	Name    string  `json:"name"`
	Calorie float64 `json:"calorie"`
	Sugar   float64 `json:"sugar"`
	Protein float64 `json:"protein"`
}
