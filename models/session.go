package models

import (
	"time"

	"gorm.io/datatypes"
)

// SessionStatus is the ordered lifecycle of a session. A status only moves forward.
type SessionStatus string

const (
	StatusReady              SessionStatus = "ready"
	StatusProfileSaved       SessionStatus = "profile_saved"
	StatusInterviewInfoSaved SessionStatus = "interview_info_saved"
	StatusPersonaReady       SessionStatus = "persona_ready"
	StatusQuestionsReady     SessionStatus = "questions_ready"
	StatusChatEnded          SessionStatus = "chat_end"
)

var statusRank = map[SessionStatus]int{
	StatusReady:              0,
	StatusProfileSaved:       1,
	StatusInterviewInfoSaved: 2,
	StatusPersonaReady:       3,
	StatusQuestionsReady:     4,
	StatusChatEnded:          5,
}

// Rank orders statuses; unknown values rank below StatusReady.
func (s SessionStatus) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// Advance returns the later of the two statuses.
func (s SessionStatus) Advance(next SessionStatus) SessionStatus {
	if next.Rank() > s.Rank() {
		return next
	}
	return s
}

// Session represents one interview run from creation to final report
type Session struct {
	ID           string        `gorm:"type:uuid;primaryKey" json:"id" bson:"_id"`
	Code         string        `gorm:"size:6;not null;uniqueIndex" json:"code" bson:"code"`
	Username     string        `gorm:"not null" json:"username" bson:"username"`
	PasswordHash string        `gorm:"not null" json:"-" bson:"password_hash"`
	Status       SessionStatus `gorm:"size:32;not null;default:'ready'" json:"status" bson:"status"`

	// Candidate profile
	Name      string    `json:"name,omitempty" bson:"name,omitempty"`
	Age       int       `json:"age,omitempty" bson:"age,omitempty"`
	Gender    string    `gorm:"size:16" json:"gender,omitempty" bson:"gender,omitempty"`
	Email     string    `json:"email,omitempty" bson:"email,omitempty"`
	Phone     string    `gorm:"size:32" json:"phone,omitempty" bson:"phone,omitempty"`
	Education Education `gorm:"embedded;embeddedPrefix:education_" json:"education" bson:"education"`
	SelfIntro string    `gorm:"type:text" json:"self_intro,omitempty" bson:"self_intro,omitempty"`

	// Target role
	Company  string `json:"company,omitempty" bson:"company,omitempty"`
	Position string `json:"position,omitempty" bson:"position,omitempty"`

	Persona   Persona                       `gorm:"embedded;embeddedPrefix:persona_" json:"persona" bson:"persona"`
	Questions datatypes.JSONSlice[Question] `gorm:"type:jsonb" json:"questions" bson:"questions"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

type Education struct {
	School         string `json:"school,omitempty" bson:"school,omitempty"`
	Major          string `json:"major,omitempty" bson:"major,omitempty"`
	Degree         string `json:"degree,omitempty" bson:"degree,omitempty"`
	GraduationYear int    `json:"graduation_year,omitempty" bson:"graduation_year,omitempty"`
}

// Persona is the generated interviewer character
type Persona struct {
	Name        string `json:"persona_name" bson:"name"`
	Department  string `json:"department" bson:"department"`
	Description string `gorm:"type:text" json:"persona" bson:"description"`
}

func (p Persona) Empty() bool {
	return p.Description == ""
}

// Question is one generated interview question. Immutable once generated.
type Question struct {
	ID         string  `json:"id" bson:"id"`
	Text       string  `json:"text" bson:"text"`
	Type       string  `json:"type" bson:"type"`
	Difficulty *string `json:"difficulty" bson:"difficulty"`
}

const QuestionTypeBasic = "basic"

// Profile carries the candidate fields written by the profile step.
type Profile struct {
	Name      string
	Age       int
	Gender    string
	Email     string
	Phone     string
	Education Education
}

// InterviewInfo carries the target role and self introduction.
type InterviewInfo struct {
	Company   string
	Position  string
	SelfIntro string
}
