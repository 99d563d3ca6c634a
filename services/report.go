package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/krshsl/mockinterview/models"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

// NotEvaluableFeedback is the category summary used when no feedback exists.
const NotEvaluableFeedback = "There was not enough information to evaluate this category."

const summaryConcurrency = 3

// Scores is the numeric part of a report. It depends only on the interaction log.
type Scores struct {
	Total      float64
	Categories map[string]float64
}

// ReportAggregator reduces a session's interaction log into a Report
type ReportAggregator struct {
	llm Asker
	now func() time.Time
}

func NewReportAggregator(llm Asker) *ReportAggregator {
	return &ReportAggregator{llm: llm, now: time.Now}
}

// countsTowardAverages reports whether an interaction carries exactly one
// complete evaluation.
func countsTowardAverages(in models.Interaction) bool {
	return len(in.Evaluations) == 1 && in.Evaluations[0].Complete()
}

func isNotApplicable(cs models.CategoryScore) bool {
	return cs.Category == models.Implementation && cs.Score == models.NotApplicable
}

// ScoreInteractions computes per-category averages and the flat total, each
// rounded to two decimals. Categories without data average 0.
func ScoreInteractions(interactions []models.Interaction) Scores {
	sums := make(map[models.Category]int, len(models.Rubric))
	counts := make(map[models.Category]int, len(models.Rubric))
	total, n := 0, 0

	for _, in := range interactions {
		if !countsTowardAverages(in) {
			continue
		}
		for _, cs := range in.Evaluations[0].Categories {
			if isNotApplicable(cs) {
				continue
			}
			sums[cs.Category] += cs.Score
			counts[cs.Category]++
			total += cs.Score
			n++
		}
	}

	scores := Scores{Categories: make(map[string]float64, len(models.Rubric))}
	for _, c := range models.Rubric {
		scores.Categories[c.Key()] = mean(sums[c], counts[c])
	}
	scores.Total = mean(total, n)
	return scores
}

func mean(sum, n int) float64 {
	if n == 0 {
		return 0
	}
	return round2(float64(sum) / float64(n))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Aggregate builds the full report. Narrative parts degrade to fallbacks when
// the model misbehaves; the numbers never depend on the model.
func (a *ReportAggregator) Aggregate(ctx context.Context, interactions []models.Interaction) *models.Report {
	scores := ScoreInteractions(interactions)

	report := &models.Report{
		TotalScore:        scores.Total,
		QuestionCount:     len(interactions),
		CategoryScores:    scores.Categories,
		CategoryFeedbacks: a.summarizeCategories(ctx, collectFeedback(interactions)),
		Questions:         questionReports(interactions),
		GeneratedAt:       a.now(),
	}
	report.FinalFeedback = a.finalFeedback(ctx, interactions)

	slog.Info("Report aggregated", "total_score", report.TotalScore, "question_count", report.QuestionCount)
	return report
}

func collectFeedback(interactions []models.Interaction) map[models.Category][]string {
	feedback := make(map[models.Category][]string, len(models.Rubric))
	for _, in := range interactions {
		if !countsTowardAverages(in) {
			continue
		}
		for _, cs := range in.Evaluations[0].Categories {
			if isNotApplicable(cs) || strings.TrimSpace(cs.Feedback) == "" {
				continue
			}
			feedback[cs.Category] = append(feedback[cs.Category], cs.Feedback)
		}
	}
	return feedback
}

func questionReports(interactions []models.Interaction) []models.QuestionReport {
	out := make([]models.QuestionReport, 0, len(interactions))
	for _, in := range interactions {
		qr := models.QuestionReport{
			Turn:      in.Turn,
			FollowUp:  in.FollowUp,
			Question:  in.Question,
			Answer:    in.Answer,
			Scores:    map[string]int{},
			Feedbacks: map[string]string{},
		}
		if len(in.Evaluations) > 0 {
			for _, cs := range in.Evaluations[0].Categories {
				qr.Scores[cs.Category.Key()] = cs.Score
				qr.Feedbacks[cs.Category.Key()] = cs.Feedback
			}
		}
		out = append(out, qr)
	}
	return out
}

func (a *ReportAggregator) summarizeCategories(ctx context.Context, feedback map[models.Category][]string) map[string]string {
	summaries := make([]string, len(models.Rubric))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryConcurrency)
	for i, c := range models.Rubric {
		items := feedback[c]
		if len(items) == 0 {
			summaries[i] = NotEvaluableFeedback
			continue
		}
		g.Go(func() error {
			summaries[i] = a.summarizeCategory(gctx, c, items)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]string, len(models.Rubric))
	for i, c := range models.Rubric {
		out[c.Key()] = summaries[i]
	}
	return out
}

func (a *ReportAggregator) summarizeCategory(ctx context.Context, c models.Category, items []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Below is interviewer feedback on a candidate's answers for the category %q.\n", c.Label())
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
	b.WriteString(`Summarize it in one sentence. Reply with JSON only: {"summary": "..."}`)

	raw, err := a.llm.Ask(ctx, b.String())
	if err != nil {
		slog.Warn("Category summary request failed", "category", c.Key(), "error", err)
		return items[0]
	}
	summary := strings.TrimSpace(gjson.Get(raw, "summary").String())
	if !gjson.Valid(raw) || summary == "" {
		return items[0]
	}
	return summary
}

type narrativeEntry struct {
	Turn       int               `json:"turn"`
	FollowUp   bool              `json:"followup,omitempty"`
	Question   string            `json:"question"`
	Answer     string            `json:"answer"`
	Evaluation models.Evaluation `json:"evaluation"`
}

func (a *ReportAggregator) finalFeedback(ctx context.Context, interactions []models.Interaction) string {
	entries := make([]narrativeEntry, 0, len(interactions))
	for _, in := range interactions {
		entry := narrativeEntry{Turn: in.Turn, FollowUp: in.FollowUp, Question: in.Question, Answer: in.Answer}
		if len(in.Evaluations) > 0 {
			entry.Evaluation = in.Evaluations[0]
		}
		entries = append(entries, entry)
	}
	logJSON, err := json.Marshal(entries)
	if err != nil {
		slog.Error("Failed to encode interaction log", "error", err)
		return ""
	}

	prompt := "Below is the question, answer and evaluation log of a junior developer mock interview.\n" +
		string(logJSON) +
		"\nSummarize the whole interview: strengths, areas to improve and an overall assessment, in at most ten lines.\n" +
		`Reply with JSON only: {"final_feedback": "..."}`

	raw, err := a.llm.Ask(ctx, prompt)
	if err != nil {
		slog.Warn("Final feedback request failed", "error", err)
		return ""
	}
	if !gjson.Valid(raw) {
		return ""
	}
	return strings.TrimSpace(gjson.Get(raw, "final_feedback").String())
}
