package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/krshsl/mockinterview/models"
	"github.com/tidwall/gjson"
)

// EvaluationEngine scores one question/answer pair against the rubric.
type EvaluationEngine struct {
	llm Asker
}

func NewEvaluationEngine(llm Asker) *EvaluationEngine {
	return &EvaluationEngine{llm: llm}
}

// Evaluate returns the canonical evaluation, or the empty Evaluation when the
// model reply cannot be used. Empty answers are scored like any other.
func (e *EvaluationEngine) Evaluate(ctx context.Context, question, answer string) models.Evaluation {
	raw, err := e.llm.Ask(ctx, buildEvaluationPrompt(question, answer))
	if err != nil {
		slog.Warn("Evaluation request failed", "error", err)
		return models.Evaluation{}
	}

	eval, err := ParseEvaluation(raw)
	if err != nil {
		slog.Warn("Discarding malformed evaluation", "error", err, "response_length", len(raw))
		return models.Evaluation{}
	}
	return eval
}

func buildEvaluationPrompt(question, answer string) string {
	var b strings.Builder
	b.WriteString("You are evaluating a junior developer's answer in a mock technical interview.\n")
	b.WriteString("Score the answer in each of the six categories below with an integer from 1 to 5 and give one or two sentences of feedback per category.\n")
	b.WriteString("Use 0 for implementation only when the question involves no implementation at all.\n")
	b.WriteString("An empty, blank or off-topic answer still gets a score in every category.\n\n")
	b.WriteString("Categories (weight of the 100 point total):\n")
	for _, c := range models.Rubric {
		fmt.Fprintf(&b, "- %s (%s): %d%%\n", c.Key(), c.Label(), c.Weight())
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\nAnswer: ")
	b.WriteString(answer)
	b.WriteString("\n\nReply with JSON only, in this shape:\n")
	b.WriteString(`{"categories":[{"name":"technical_understanding","score":3,"feedback":"..."}],"total":60}`)
	b.WriteString("\nList all six categories. total is the weighted score out of 100.")
	return b.String()
}

// ParseEvaluation normalizes either known reply shape into the canonical form:
// the keyed shape {"categories":[{"name","score","feedback"}]} or the flat shape
// {"score":[six numbers],"feedback":"..."}.
func ParseEvaluation(raw string) (models.Evaluation, error) {
	if !gjson.Valid(raw) {
		return models.Evaluation{}, fmt.Errorf("response is not valid JSON")
	}
	doc := gjson.Parse(raw)
	if !doc.IsObject() {
		return models.Evaluation{}, fmt.Errorf("response is not a JSON object")
	}

	var (
		eval models.Evaluation
		err  error
	)
	switch {
	case doc.Get("categories").IsArray():
		eval, err = parseKeyedEvaluation(doc.Get("categories"))
	case doc.Get("score").IsArray():
		eval, err = parseFlatEvaluation(doc.Get("score"), doc.Get("feedback").String())
	default:
		return models.Evaluation{}, fmt.Errorf("response has no category list")
	}
	if err != nil {
		return models.Evaluation{}, err
	}

	for _, key := range []string{"total", "total_score"} {
		if total := doc.Get(key); total.Type == gjson.Number {
			v := total.Float()
			eval.Total = &v
			break
		}
	}
	return eval, nil
}

func parseKeyedEvaluation(list gjson.Result) (models.Evaluation, error) {
	byCategory := make(map[models.Category]models.CategoryScore, len(models.Rubric))
	for _, item := range list.Array() {
		name := item.Get("name")
		if !name.Exists() {
			name = item.Get("category")
		}
		c, ok := models.ParseCategory(name.String())
		if !ok {
			return models.Evaluation{}, fmt.Errorf("unknown rubric category %q", name.String())
		}
		if _, dup := byCategory[c]; dup {
			return models.Evaluation{}, fmt.Errorf("duplicate rubric category %q", c.Key())
		}
		score, err := parseScore(c, item.Get("score"))
		if err != nil {
			return models.Evaluation{}, err
		}
		byCategory[c] = models.CategoryScore{
			Category: c,
			Score:    score,
			Feedback: strings.TrimSpace(item.Get("feedback").String()),
		}
	}

	if len(byCategory) != len(models.Rubric) {
		return models.Evaluation{}, fmt.Errorf("expected %d categories, got %d", len(models.Rubric), len(byCategory))
	}

	eval := models.Evaluation{Categories: make([]models.CategoryScore, 0, len(models.Rubric))}
	for _, c := range models.Rubric {
		eval.Categories = append(eval.Categories, byCategory[c])
	}
	return eval, nil
}

func parseFlatEvaluation(scores gjson.Result, feedback string) (models.Evaluation, error) {
	values := scores.Array()
	if len(values) != len(models.Rubric) {
		return models.Evaluation{}, fmt.Errorf("expected %d scores, got %d", len(models.Rubric), len(values))
	}

	feedback = strings.TrimSpace(feedback)
	eval := models.Evaluation{Categories: make([]models.CategoryScore, 0, len(models.Rubric))}
	for i, c := range models.Rubric {
		score, err := parseScore(c, values[i])
		if err != nil {
			return models.Evaluation{}, err
		}
		eval.Categories = append(eval.Categories, models.CategoryScore{
			Category: c,
			Score:    score,
			Feedback: feedback,
		})
	}
	return eval, nil
}

// parseScore accepts numbers and numeric strings; fractional scores round half up.
func parseScore(c models.Category, v gjson.Result) (int, error) {
	var f float64
	switch v.Type {
	case gjson.Number:
		f = v.Float()
	case gjson.String:
		parsed := gjson.Parse(strings.TrimSpace(v.String()))
		if parsed.Type != gjson.Number {
			return 0, fmt.Errorf("score for %s is not numeric: %q", c.Key(), v.String())
		}
		f = parsed.Float()
	default:
		return 0, fmt.Errorf("score for %s is missing", c.Key())
	}
	return models.ClampScore(c, int(math.Floor(f+0.5))), nil
}
