package models

import (
	"time"

	"gorm.io/datatypes"
)

// Report is the final aggregate evaluation of a session
type Report struct {
	TotalScore        float64            `json:"total_score" bson:"total_score"`
	QuestionCount     int                `json:"question_count" bson:"question_count"`
	CategoryScores    map[string]float64 `json:"category_scores" bson:"category_scores"`
	CategoryFeedbacks map[string]string  `json:"category_feedbacks" bson:"category_feedbacks"`
	Questions         []QuestionReport   `json:"questions" bson:"questions"`
	FinalFeedback     string             `json:"final_feedback" bson:"final_feedback"`
	GeneratedAt       time.Time          `json:"generated_at" bson:"generated_at"`
}

// QuestionReport is the per-question detail of a report. Scores and feedbacks
// are keyed by category key and kept even when the interaction did not count
// toward the averages.
type QuestionReport struct {
	Turn      int               `json:"turn" bson:"turn"`
	FollowUp  bool              `json:"followup" bson:"followup"`
	Question  string            `json:"question" bson:"question"`
	Answer    string            `json:"answer" bson:"answer"`
	Scores    map[string]int    `json:"scores" bson:"scores"`
	Feedbacks map[string]string `json:"feedbacks" bson:"feedbacks"`
}

// ReportRecord stores the latest report of a session. Regeneration replaces the row.
type ReportRecord struct {
	SessionID string                     `gorm:"type:uuid;primaryKey" json:"session_id"`
	Data      datatypes.JSONType[Report] `gorm:"type:jsonb;not null" json:"data"`
	CreatedAt time.Time                  `json:"created_at"`
	UpdatedAt time.Time                  `json:"updated_at"`
}
