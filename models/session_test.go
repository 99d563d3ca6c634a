package models

import "testing"

func TestSessionStatusAdvance(t *testing.T) {
	tests := []struct {
		from, next, want SessionStatus
	}{
		{StatusReady, StatusProfileSaved, StatusProfileSaved},
		{StatusPersonaReady, StatusProfileSaved, StatusPersonaReady},
		{StatusQuestionsReady, StatusPersonaReady, StatusQuestionsReady},
		{StatusQuestionsReady, StatusChatEnded, StatusChatEnded},
		{StatusChatEnded, StatusQuestionsReady, StatusChatEnded},
		{SessionStatus("bogus"), StatusReady, StatusReady},
	}
	for _, tt := range tests {
		if got := tt.from.Advance(tt.next); got != tt.want {
			t.Errorf("%q.Advance(%q) = %q, want %q", tt.from, tt.next, got, tt.want)
		}
	}
}

func TestPersonaEmpty(t *testing.T) {
	if !(Persona{Name: "Kim"}).Empty() {
		t.Error("persona without a description should be empty")
	}
	if (Persona{Description: "Calm and precise."}).Empty() {
		t.Error("persona with a description should not be empty")
	}
}
