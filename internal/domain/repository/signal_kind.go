package repository

import "MealSignal/internal/domain/models"

// ParseSignalKind converts a raw string to a kind. Aliases used by the
// source file names are accepted.
func ParseSignalKind(s string) (models.SignalKind, bool) {
	switch s {
	case "glucose", "dexcom":
		return models.SignalGlucose, true
	case "heart_rate", "hr":
		return models.SignalHeartRate, true
	case "eda":
		return models.SignalEDA, true
	default:
		return "", false
	}
}

// ParseMealMode converts a raw string to a meal mode, falling back to def.
func ParseMealMode(s string, def models.MealMode) models.MealMode {
	switch models.MealMode(s) {
	case models.MealModeRaw, models.MealModeAggregated, models.MealModeGrouped:
		return models.MealMode(s)
	default:
		return def
	}
}
