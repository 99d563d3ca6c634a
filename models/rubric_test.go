package models

import (
	"encoding/json"
	"testing"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		label string
		want  Category
		ok    bool
	}{
		{"technical_understanding", TechnicalUnderstanding, true},
		{"Technical Understanding", TechnicalUnderstanding, true},
		{"기술 이해도", TechnicalUnderstanding, true},
		{"Problem-Solving", ProblemSolving, true},
		{"문제 해결 능력", ProblemSolving, true},
		{"  applied_knowledge ", AppliedKnowledge, true},
		{"기초 지식 응용력", AppliedKnowledge, true},
		{"Implementation Skill", Implementation, true},
		{"코드 구현력", Implementation, true},
		{"COMMUNICATION", Communication, true},
		{"의사소통", Communication, true},
		{"태도", Attitude, true},
		{"creativity", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseCategory(tt.label)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("ParseCategory(%q) = %v, %v; want %v, %v", tt.label, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRubricWeightsSumToHundred(t *testing.T) {
	total := 0
	for _, c := range Rubric {
		total += c.Weight()
	}
	if total != 100 {
		t.Errorf("rubric weights sum to %d, want 100", total)
	}
	if len(Rubric) != 6 {
		t.Errorf("rubric has %d categories, want 6", len(Rubric))
	}
}

func TestClampScore(t *testing.T) {
	tests := []struct {
		category Category
		score    int
		want     int
	}{
		{Communication, 0, MinScore},
		{Communication, -3, MinScore},
		{Communication, 9, MaxScore},
		{Communication, 3, 3},
		{Implementation, NotApplicable, NotApplicable},
		{Implementation, 7, MaxScore},
	}
	for _, tt := range tests {
		if got := ClampScore(tt.category, tt.score); got != tt.want {
			t.Errorf("ClampScore(%v, %d) = %d, want %d", tt.category, tt.score, got, tt.want)
		}
	}
}

func TestCategoryJSON(t *testing.T) {
	data, err := json.Marshal(CategoryScore{Category: ProblemSolving, Score: 4, Feedback: "ok"})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if want := `{"category":"problem_solving","score":4,"feedback":"ok"}`; string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}

	var cs CategoryScore
	if err := json.Unmarshal([]byte(`{"category":"의사소통","score":2}`), &cs); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if cs.Category != Communication {
		t.Errorf("category = %v, want %v", cs.Category, Communication)
	}

	if err := json.Unmarshal([]byte(`{"category":"charisma"}`), &cs); err == nil {
		t.Error("Unmarshal() accepted an unknown category")
	}
}

func evaluationWith(scores ...int) Evaluation {
	var e Evaluation
	for i, s := range scores {
		e.Categories = append(e.Categories, CategoryScore{Category: Rubric[i], Score: s})
	}
	return e
}

func TestEvaluationComplete(t *testing.T) {
	duplicate := evaluationWith(3, 3, 3, 3, 3, 3)
	duplicate.Categories[5].Category = Communication

	tests := []struct {
		name string
		eval Evaluation
		want bool
	}{
		{"all six", evaluationWith(3, 3, 3, 3, 3, 3), true},
		{"five", evaluationWith(3, 3, 3, 3, 3), false},
		{"empty", Evaluation{}, false},
		{"duplicate category", duplicate, false},
	}
	for _, tt := range tests {
		if got := tt.eval.Complete(); got != tt.want {
			t.Errorf("%s: Complete() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestEvaluationMeanScore(t *testing.T) {
	tests := []struct {
		name   string
		eval   Evaluation
		want   float64
		wantOK bool
	}{
		{"uniform", evaluationWith(4, 4, 4, 4, 4, 4), 4, true},
		{"implementation not applicable counts", evaluationWith(3, 3, 3, NotApplicable, 3, 3), 2.5, true},
		{"mixed", evaluationWith(1, 2, 3, 4, 5, 3), 3, true},
		{"empty", Evaluation{}, 0, false},
	}
	for _, tt := range tests {
		got, ok := tt.eval.MeanScore()
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("%s: MeanScore() = %v, %v; want %v, %v", tt.name, got, ok, tt.want, tt.wantOK)
		}
	}
}
