// Package matching scores meals against a target nutritional profile and
// ranks them nearest first.
package matching

import (
	"math"

	"MealSignal/internal/domain/models"
)

// Score returns the scaled Euclidean distance between meal and target over
// calorie, sugar and protein. Non-positive scale components count as 1.
func Score(meal models.MealRecord, target models.TargetProfile, scale models.Scale) float64 {
	s := scale.Normalized()
	dc := (meal.Calorie - target.Calorie) / s.Calorie
	ds := (meal.Sugar - target.Sugar) / s.Sugar
	dp := (meal.Protein - target.Protein) / s.Protein
	return math.Sqrt(dc*dc + ds*ds + dp*dp)
}
