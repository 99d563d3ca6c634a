package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/krshsl/mockinterview/models"
)

func TestMemoryRepositorySessions(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	session := &models.Session{Code: "ABCDEF", Username: "mina", PasswordHash: "hash", Status: models.StatusReady}
	if err := repo.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if session.ID == "" || session.CreatedAt.IsZero() {
		t.Fatalf("CreateSession() did not assign id and timestamps: %+v", session)
	}

	dup := &models.Session{Code: "ABCDEF", Username: "other"}
	if err := repo.CreateSession(ctx, dup); !errors.Is(err, ErrDuplicateCode) {
		t.Errorf("duplicate CreateSession() error = %v, want ErrDuplicateCode", err)
	}

	byCode, err := repo.GetSessionByCode(ctx, "ABCDEF")
	if err != nil || byCode == nil || byCode.ID != session.ID {
		t.Fatalf("GetSessionByCode() = %+v, %v", byCode, err)
	}
	if missing, err := repo.GetSessionByCode(ctx, "ZZZZZZ"); missing != nil || err != nil {
		t.Errorf("GetSessionByCode() missing = %+v, %v; want nil, nil", missing, err)
	}

	questions := []models.Question{{ID: "q1", Text: "What is a slice?", Type: models.QuestionTypeBasic}}
	if err := repo.SaveQuestions(ctx, session.ID, questions, models.StatusQuestionsReady); err != nil {
		t.Fatalf("SaveQuestions() error = %v", err)
	}
	questions[0].Text = "mutated"

	got, _ := repo.GetSession(ctx, session.ID)
	if got.Status != models.StatusQuestionsReady || got.Questions[0].Text != "What is a slice?" {
		t.Errorf("stored session = %+v", got)
	}
	got.Questions[0].Text = "mutated again"
	if again, _ := repo.GetSession(ctx, session.ID); again.Questions[0].Text != "What is a slice?" {
		t.Error("GetSession() returned shared question storage")
	}

	if err := repo.UpdateStatus(ctx, "nope", models.StatusChatEnded); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateStatus() missing error = %v, want ErrNotFound", err)
	}
}

func TestMemoryRepositoryInteractions(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	for i, turn := range []int{1, 1, 2} {
		in := &models.Interaction{SessionID: "s1", Turn: turn, Question: "q", FollowUp: i == 1}
		if err := repo.AppendInteraction(ctx, in); err != nil {
			t.Fatalf("AppendInteraction() error = %v", err)
		}
		if in.ID == 0 {
			t.Fatal("AppendInteraction() did not assign an id")
		}
	}
	if err := repo.AppendInteraction(ctx, &models.Interaction{SessionID: "s2", Turn: 1}); err != nil {
		t.Fatalf("AppendInteraction() error = %v", err)
	}

	list, err := repo.ListInteractions(ctx, "s1")
	if err != nil {
		t.Fatalf("ListInteractions() error = %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("got %d interactions, want 3", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i].ID <= list[i-1].ID {
			t.Errorf("interactions out of order: %d after %d", list[i].ID, list[i-1].ID)
		}
	}
	if !list[1].FollowUp || list[2].Turn != 2 {
		t.Errorf("interactions = %+v", list)
	}

	if empty, err := repo.ListInteractions(ctx, "none"); err != nil || len(empty) != 0 {
		t.Errorf("ListInteractions() unknown = %v, %v", empty, err)
	}
}

func TestMemoryRepositoryReports(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	if report, err := repo.GetReport(ctx, "s1"); report != nil || err != nil {
		t.Errorf("GetReport() before save = %+v, %v", report, err)
	}

	if err := repo.SaveReport(ctx, "s1", &models.Report{TotalScore: 3.5, QuestionCount: 2}); err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}
	if err := repo.SaveReport(ctx, "s1", &models.Report{TotalScore: 4.25, QuestionCount: 3}); err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}

	report, err := repo.GetReport(ctx, "s1")
	if err != nil || report == nil {
		t.Fatalf("GetReport() = %+v, %v", report, err)
	}
	if report.TotalScore != 4.25 || report.QuestionCount != 3 {
		t.Errorf("GetReport() = %+v, want the latest report", report)
	}
}
