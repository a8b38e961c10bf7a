package models

// Request structs for the HTTP and websocket surfaces.

type RecommendRequest struct {
	Calorie      float64 `query:"calorie" json:"calorie" validate:"gte=0"`
	Sugar        float64 `query:"sugar" json:"sugar" validate:"gte=0"`
	Protein      float64 `query:"protein" json:"protein" validate:"gte=0"`
	WindowHours  float64 `query:"window" json:"window" validate:"gte=0,lte=24"`
	Participants string  `query:"participants" json:"participants" validate:"omitempty,participants"`
	Mode         string  `query:"mode" json:"mode" validate:"omitempty,oneof=raw aggregated grouped"`
	Rank         int     `query:"rank" json:"rank" validate:"gte=0"`
}

// Target returns the profile carried by the request.
func (r *RecommendRequest) Target() TargetProfile {
	return TargetProfile{Calorie: r.Calorie, Sugar: r.Sugar, Protein: r.Protein}
}

type SignalRequest struct {
	ParticipantID string  `param:"id" validate:"required,numeric"`
	Kind          string  `param:"kind" validate:"required,oneof=glucose heart_rate eda"`
	Start         string  `query:"start" validate:"required"`
	WindowHours   float64 `query:"window" validate:"gte=0,lte=24"`
}

type FoodsRequest struct {
	Participant string `query:"participant" validate:"omitempty,numeric"`
}

type QuizRequest struct {
	Metric      string `query:"metric" default:"calorie" validate:"oneof=calorie sugar protein"`
	Participant string `query:"participant" validate:"omitempty,numeric"`
}

type AnswerRequest struct {
	QuestionID string `json:"question_id" validate:"required"`
	Player     string `json:"player" validate:"max=40"`
	Choice     string `json:"choice" validate:"required,oneof=a b"`
}
