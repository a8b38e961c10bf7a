package api

import (
	"fmt"
	"strconv"

	xhttp "MealSignal/pkg/http"
	"MealSignal/pkg/util"

	"github.com/go-playground/validator/v10"
)

// maxParticipantID bounds ids to the three digits the file names allow.
const maxParticipantID = 999

func init() {
	if err := xhttp.RegisterValidation("participants", validParticipants, func(field, _ string) string {
		return fmt.Sprintf("%s must be a comma separated list of participant numbers", field)
	}); err != nil {
		panic(err)
	}
}

// validParticipants accepts "1", "1, 2,007" and rejects anything with a
// non-numeric or out of range entry.
func validParticipants(fl validator.FieldLevel) bool {
	for _, p := range util.SplitCSV(fl.Field().String()) {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > maxParticipantID {
			return false
		}
	}
	return true
}
