package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"github.com/krshsl/mockinterview/models"
	"github.com/tidwall/gjson"
)

const (
	DefaultQuestionCount = 5
	MaxQuestionCount     = 20

	joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	joinCodeLength   = 6
)

var (
	ErrInterviewInfoMissing = errors.New("company and position are required before generating a persona")
	ErrPersonaMissing       = errors.New("persona must be generated before questions")
	ErrEmptyGeneration      = errors.New("model returned no usable content")
)

// InterviewPreparer builds the interviewer persona and the question list for
// a session.
type InterviewPreparer struct {
	llm Asker
}

func NewInterviewPreparer(llm Asker) *InterviewPreparer {
	return &InterviewPreparer{llm: llm}
}

func (p *InterviewPreparer) GeneratePersona(ctx context.Context, session *models.Session) (models.Persona, error) {
	if strings.TrimSpace(session.Company) == "" || strings.TrimSpace(session.Position) == "" {
		return models.Persona{}, ErrInterviewInfoMissing
	}

	raw, err := p.llm.Ask(ctx, buildPersonaPrompt(session))
	if err != nil {
		return models.Persona{}, fmt.Errorf("failed to generate persona: %w", err)
	}

	persona, err := ParsePersona(raw)
	if err != nil {
		return models.Persona{}, err
	}
	slog.Info("Persona generated", "session_id", session.ID, "persona_name", persona.Name)
	return persona, nil
}

// ParsePersona reads {persona_name, department, persona}. Only the description
// is mandatory.
func ParsePersona(raw string) (models.Persona, error) {
	if !gjson.Valid(raw) {
		return models.Persona{}, fmt.Errorf("%w: persona reply is not JSON", ErrEmptyGeneration)
	}
	doc := gjson.Parse(raw)
	if doc.IsArray() {
		doc = doc.Get("0")
	}

	persona := models.Persona{
		Name:        strings.TrimSpace(doc.Get("persona_name").String()),
		Department:  strings.TrimSpace(doc.Get("department").String()),
		Description: strings.TrimSpace(doc.Get("persona").String()),
	}
	if persona.Description == "" {
		return models.Persona{}, fmt.Errorf("%w: persona description missing", ErrEmptyGeneration)
	}
	return persona, nil
}

func buildPersonaPrompt(session *models.Session) string {
	var b strings.Builder
	b.WriteString("You are preparing a mock technical interview for a junior developer.\n")
	b.WriteString("Invent the interviewer who would run this interview and summarize their personality, questioning style and the values they care about in three or four sentences.\n\n")
	fmt.Fprintf(&b, "Company: %s\nPosition: %s\n", session.Company, session.Position)
	if session.SelfIntro != "" {
		fmt.Fprintf(&b, "Candidate self introduction: %s\n", session.SelfIntro)
	}
	b.WriteString("\nReply with JSON only, in this shape:\n")
	b.WriteString(`{"persona_name":"interviewer name","department":"department","persona":"persona summary"}`)
	return b.String()
}

// ClampQuestionCount maps a requested count onto [1, MaxQuestionCount],
// treating zero or less as the default.
func ClampQuestionCount(n int) int {
	switch {
	case n <= 0:
		return DefaultQuestionCount
	case n > MaxQuestionCount:
		return MaxQuestionCount
	default:
		return n
	}
}

func (p *InterviewPreparer) GenerateQuestions(ctx context.Context, session *models.Session, n int) ([]models.Question, error) {
	if session.Persona.Empty() {
		return nil, ErrPersonaMissing
	}
	n = ClampQuestionCount(n)

	raw, err := p.llm.Ask(ctx, buildQuestionsPrompt(session, n))
	if err != nil {
		return nil, fmt.Errorf("failed to generate questions: %w", err)
	}

	questions := ParseQuestions(raw, n)
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: no questions in reply", ErrEmptyGeneration)
	}
	slog.Info("Questions generated", "session_id", session.ID, "requested", n, "generated", len(questions))
	return questions, nil
}

// ParseQuestions accepts {"questions":[{"question":...}]}, a bare array of
// such objects, or a bare array of strings. At most limit questions are kept.
func ParseQuestions(raw string, limit int) []models.Question {
	if !gjson.Valid(raw) {
		return nil
	}
	doc := gjson.Parse(raw)
	list := doc
	if !doc.IsArray() {
		list = doc.Get("questions")
	}
	if !list.IsArray() {
		return nil
	}

	var questions []models.Question
	list.ForEach(func(_, item gjson.Result) bool {
		text := item.Get("question").String()
		if item.Type == gjson.String {
			text = item.String()
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return true
		}
		questions = append(questions, models.Question{
			ID:   uuid.NewString(),
			Text: text,
			Type: models.QuestionTypeBasic,
		})
		return limit <= 0 || len(questions) < limit
	})
	return questions
}

func buildQuestionsPrompt(session *models.Session, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "An interviewer with the persona below is interviewing a junior developer for the %s position at %s.\n", session.Position, session.Company)
	fmt.Fprintf(&b, "Write %d interview questions this interviewer would ask, mixing fundamentals, problem solving and implementation.\n\n", n)
	fmt.Fprintf(&b, "Persona: %s\n", session.Persona.Description)
	if session.SelfIntro != "" {
		fmt.Fprintf(&b, "Candidate self introduction: %s\n", session.SelfIntro)
	}
	b.WriteString("\nAlways reply with JSON only, with the list under the questions key:\n")
	b.WriteString(`{"questions":[{"question":"question text"}]}`)
	return b.String()
}

// NewJoinCode returns a random six character code. Ambiguous characters
// (0, O, 1, I) are left out of the alphabet.
func NewJoinCode() (string, error) {
	max := big.NewInt(int64(len(joinCodeAlphabet)))
	code := make([]byte, joinCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate join code: %w", err)
		}
		code[i] = joinCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}
