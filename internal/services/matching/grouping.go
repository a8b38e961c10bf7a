package matching

import (
	"sort"
	"strings"
	"time"

	"MealSignal/internal/domain/models"
)

// GroupMeals merges raw food-log entries logged at the same instant into one
// meal per participant. Descriptions become "<amount> <unit> <food>" joined by
// ", " in log order; nutrients are summed. Output is ascending by time.
func GroupMeals(entries []models.MealRecord) []models.MealRecord {
	type groupKey struct {
		participant string
		at          time.Time
	}

	index := make(map[groupKey]int)
	var groups []models.MealRecord
	var descs [][]string

	for _, e := range entries {
		k := groupKey{participant: e.ParticipantID, at: e.Timestamp}
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, models.MealRecord{ParticipantID: e.ParticipantID, Timestamp: e.Timestamp})
			descs = append(descs, nil)
		}
		g := &groups[i]
		g.Calorie += e.Calorie
		g.Sugar += e.Sugar
		g.Protein += e.Protein
		g.TotalCarb += e.TotalCarb
		g.DietaryFiber += e.DietaryFiber
		g.TotalFat += e.TotalFat
		descs[i] = append(descs[i], describe(e))
	}

	for i := range groups {
		groups[i].LoggedFood = strings.Join(descs[i], ", ")
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Timestamp.Before(groups[j].Timestamp)
	})
	return groups
}

func describe(e models.MealRecord) string {
	return strings.Join(strings.Fields(e.Amount+" "+e.Unit+" "+e.LoggedFood), " ")
}
