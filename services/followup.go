package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/krshsl/mockinterview/models"
	"github.com/tidwall/gjson"
)

const (
	// DefaultMaxFollowUps is the hard cap on follow-up rounds per top-level
	// question. Configuration may lower it, never raise it.
	DefaultMaxFollowUps = 2
	// FollowUpThreshold is the mean score below which a follow-up is considered.
	FollowUpThreshold = 3.0
)

// FollowUpDecision is the decision engine's verdict. Question is only
// meaningful when FollowUp is true.
type FollowUpDecision struct {
	FollowUp bool   `json:"follow_up"`
	Question string `json:"question"`
}

// NeedsFollowUp reports whether the mean of all category scores is strictly
// below the threshold. A not-applicable Implementation counts as 0 here; only
// the report leaves it out. An empty evaluation never needs one.
func NeedsFollowUp(eval models.Evaluation) bool {
	mean, ok := eval.MeanScore()
	return ok && mean < FollowUpThreshold
}

// FollowUpEngine asks the model whether the current topic deserves one more question.
type FollowUpEngine struct {
	llm Asker
}

func NewFollowUpEngine(llm Asker) *FollowUpEngine {
	return &FollowUpEngine{llm: llm}
}

// Decide looks only at the current topic's history. Malformed replies mean no follow-up.
func (f *FollowUpEngine) Decide(ctx context.Context, persona string, history []models.Exchange) FollowUpDecision {
	raw, err := f.llm.Ask(ctx, buildFollowUpPrompt(persona, history))
	if err != nil {
		slog.Warn("Follow-up decision request failed", "error", err)
		return FollowUpDecision{}
	}
	return ParseFollowUpDecision(raw)
}

func ParseFollowUpDecision(raw string) FollowUpDecision {
	if !gjson.Valid(raw) {
		return FollowUpDecision{}
	}
	doc := gjson.Parse(raw)
	if !doc.IsObject() {
		return FollowUpDecision{}
	}

	flag := doc.Get("follow_up")
	if !flag.Exists() {
		flag = doc.Get("followup")
	}
	if !isTrue(flag) {
		return FollowUpDecision{}
	}

	question := strings.TrimSpace(doc.Get("question").String())
	if question == "" {
		return FollowUpDecision{}
	}
	return FollowUpDecision{FollowUp: true, Question: question}
}

func isTrue(v gjson.Result) bool {
	switch v.Type {
	case gjson.True:
		return true
	case gjson.String:
		return strings.EqualFold(strings.TrimSpace(v.String()), "true")
	}
	return false
}

func buildFollowUpPrompt(persona string, history []models.Exchange) string {
	var b strings.Builder
	b.WriteString("You are an interviewer with the following persona:\n")
	b.WriteString(persona)
	b.WriteString("\n\nBelow is the question and answer history for the current topic only.\n")
	for i, ex := range history {
		fmt.Fprintf(&b, "Q%d: %s\nA%d: %s\n", i+1, ex.Question, i+1, ex.Answer)
	}
	b.WriteString("\nDecide whether one more clarifying question on this topic is warranted.\n")
	b.WriteString("Do not follow up when the answer is clearly excellent or clearly hopeless, or when the original question was ambiguous.\n")
	b.WriteString("Be conservative: candidates tire of interrogation.\n")
	b.WriteString(`Reply with JSON only: {"follow_up": true or false, "question": "the follow-up question, or an empty string"}`)
	return b.String()
}
