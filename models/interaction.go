package models

import (
	"time"

	"gorm.io/datatypes"
)

// Interaction is one logged question/answer exchange. Rows are append-only and
// ordered by ID.
type Interaction struct {
	ID          uint64                          `gorm:"primaryKey;autoIncrement" json:"id" bson:"seq"`
	SessionID   string                          `gorm:"type:uuid;not null;index:idx_interactions_session_turn" json:"session_id" bson:"session_id"`
	Turn        int                             `gorm:"not null;index:idx_interactions_session_turn" json:"turn" bson:"turn"`
	QuestionID  string                          `gorm:"size:64" json:"question_id" bson:"question_id"`
	Question    string                          `gorm:"type:text;not null" json:"question" bson:"question"`
	FollowUp    bool                            `gorm:"not null;default:false" json:"followup" bson:"followup"`
	Answer      string                          `gorm:"type:text" json:"answer" bson:"answer"`
	Evaluations datatypes.JSONSlice[Evaluation] `gorm:"type:jsonb" json:"evaluation" bson:"evaluation"`
	CreatedAt   time.Time                       `json:"created_at" bson:"created_at"`
}

// CategoryScore is the score and feedback for one rubric category.
type CategoryScore struct {
	Category Category `json:"category" bson:"category"`
	Score    int      `json:"score" bson:"score"`
	Feedback string   `json:"feedback" bson:"feedback"`
}

// Evaluation is the canonical, category-keyed result of scoring one answer.
// The zero value is the "no evaluation" sentinel.
type Evaluation struct {
	Categories []CategoryScore `json:"categories" bson:"categories"`
	// Total is the weighted 0-100 total the model reports for the answer, when present.
	Total *float64 `json:"total,omitempty" bson:"total,omitempty"`
}

func (e Evaluation) Empty() bool {
	return len(e.Categories) == 0
}

// Complete reports whether the evaluation covers every rubric category exactly once.
func (e Evaluation) Complete() bool {
	if len(e.Categories) != len(Rubric) {
		return false
	}
	seen := make(map[Category]bool, len(Rubric))
	for _, cs := range e.Categories {
		if !cs.Category.Valid() || seen[cs.Category] {
			return false
		}
		seen[cs.Category] = true
	}
	return true
}

// Score returns the score for a category and whether it is present.
func (e Evaluation) Score(c Category) (int, bool) {
	for _, cs := range e.Categories {
		if cs.Category == c {
			return cs.Score, true
		}
	}
	return 0, false
}

// MeanScore averages every category score, a not-applicable 0 included.
// ok is false when nothing was scored.
func (e Evaluation) MeanScore() (mean float64, ok bool) {
	if len(e.Categories) == 0 {
		return 0, false
	}
	sum := 0
	for _, cs := range e.Categories {
		sum += cs.Score
	}
	return float64(sum) / float64(len(e.Categories)), true
}

// Exchange is one question/answer pair of a topic's history.
type Exchange struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
