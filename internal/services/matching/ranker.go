package matching

import (
	"sort"

	"MealSignal/internal/domain/models"
	"MealSignal/pkg/util"
)

// RankedMatchSet holds scored meals ascending by distance and a cursor on the
// current match. It is not safe for concurrent use; a session owns one.
type RankedMatchSet struct {
	matches []models.ScoredMeal
	cursor  int
}

// Rank scores every meal and sorts ascending by distance. Equal distances keep
// the input order.
func Rank(meals []models.MealRecord, target models.TargetProfile, scale models.Scale) *RankedMatchSet {
	scored := make([]models.ScoredMeal, len(meals))
	for i, m := range meals {
		scored[i] = models.ScoredMeal{
			MealRecord: m,
			Distance:   Score(m, target, scale),
			TimeOfDay:  util.ClockLabel(m.Timestamp),
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Distance < scored[j].Distance
	})
	return &RankedMatchSet{matches: scored}
}

// Current returns the match under the cursor.
func (r *RankedMatchSet) Current() (models.ScoredMeal, error) {
	if len(r.matches) == 0 {
		return models.ScoredMeal{}, models.ErrExhausted
	}
	return r.matches[r.cursor], nil
}

// Advance moves to the next match and returns it. On the last match it
// returns ErrExhausted and the cursor stays put.
func (r *RankedMatchSet) Advance() (models.ScoredMeal, error) {
	if r.cursor+1 >= len(r.matches) {
		return models.ScoredMeal{}, models.ErrExhausted
	}
	r.cursor++
	return r.matches[r.cursor], nil
}

// HasNext reports whether Advance would succeed.
func (r *RankedMatchSet) HasNext() bool {
	return r.cursor+1 < len(r.matches)
}

// All returns a copy of the ranked matches.
func (r *RankedMatchSet) All() []models.ScoredMeal {
	out := make([]models.ScoredMeal, len(r.matches))
	copy(out, r.matches)
	return out
}

func (r *RankedMatchSet) Len() int   { return len(r.matches) }
func (r *RankedMatchSet) Index() int { return r.cursor }
