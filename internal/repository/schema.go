package repository

import (
	"fmt"

	"MealSignal/internal/domain/models"
	"MealSignal/pkg/util"
)

// signalSchema describes where one kind lives and which columns carry it.
type signalSchema struct {
	filePrefix  string
	timeColumn  string
	valueColumn string
}

var signalSchemas = map[models.SignalKind]signalSchema{
	models.SignalGlucose: {
		filePrefix:  "Dexcom",
		timeColumn:  "Timestamp (YYYY-MM-DDThh:mm:ss)",
		valueColumn: "Glucose Value (mg/dL)",
	},
	models.SignalHeartRate: {filePrefix: "HR", timeColumn: "datetime", valueColumn: "hr"},
	models.SignalEDA:       {filePrefix: "EDA", timeColumn: "datetime", valueColumn: "eda"},
}

// Meal log columns.
const (
	colTimeBegin    = "time_begin"
	colDatetime     = "datetime"
	colLoggedFood   = "logged_food"
	colAmount       = "amount"
	colUnit         = "unit"
	colCalorie      = "calorie"
	colSugar        = "sugar"
	colProtein      = "protein"
	colTotalCarb    = "total_carb"
	colDietaryFiber = "dietary_fiber"
	colTotalFat     = "total_fat"
)

// headerlessRawLog places the columns of a raw food log exported without a
// header row: date, time, datetime, food name, amount, unit, note, then the
// nutrients. Trailing nutrients may be absent and read as 0.
var headerlessRawLog = map[string]int{
	colTimeBegin:    2,
	colLoggedFood:   3,
	colAmount:       4,
	colUnit:         5,
	colCalorie:      7,
	colTotalCarb:    8,
	colDietaryFiber: 9,
	colSugar:        10,
	colProtein:      11,
	colTotalFat:     12,
}

// participantDir returns "data_p<N>" for id N.
func participantDir(id string) string {
	return "data_p" + util.UnpadID(id)
}

func signalPath(id string, kind models.SignalKind) (string, signalSchema, error) {
	s, ok := signalSchemas[kind]
	if !ok {
		return "", signalSchema{}, fmt.Errorf("unknown signal kind %q", kind)
	}
	return fmt.Sprintf("%s/%s_%s.csv", participantDir(id), s.filePrefix, util.PadID(id)), s, nil
}

func rawLogPath(id string) string {
	return fmt.Sprintf("%s/Food_Log_%s.csv", participantDir(id), util.PadID(id))
}

func aggregatedLogPath(id string) string {
	return participantDir(id) + "/Food_Meal_Aggregated.csv"
}
