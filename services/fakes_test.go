package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/krshsl/mockinterview/models"
	"github.com/krshsl/mockinterview/repository"
	ws "github.com/krshsl/mockinterview/websocket"
)

// scriptedCompleter replays canned replies in order. Once the script runs out
// the last entry repeats.
type scriptedCompleter struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	calls   int
}

func (c *scriptedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.calls
	c.calls++
	if i < len(c.errs) && c.errs[i] != nil {
		return "", c.errs[i]
	}
	if len(c.replies) == 0 {
		return "", errors.New("no scripted reply")
	}
	if i >= len(c.replies) {
		i = len(c.replies) - 1
	}
	return c.replies[i], nil
}

func (c *scriptedCompleter) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// askerFunc adapts a function to Asker.
type askerFunc func(ctx context.Context, prompt string) (string, error)

func (f askerFunc) Ask(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// completerFunc adapts a function to Completer.
type completerFunc func(ctx context.Context, prompt string) (string, error)

func (f completerFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// scriptedChannel feeds replies to the orchestrator and records what it sends.
// With block set, Receive waits for ctx once the replies run out; otherwise it
// reports a disconnect.
type scriptedChannel struct {
	mu        sync.Mutex
	replies   []ws.Frame
	block     bool
	sent      []interface{}
	binary    [][]byte
	closed    bool
	closeCode int
}

func textReplies(answers ...string) []ws.Frame {
	frames := make([]ws.Frame, 0, len(answers))
	for _, a := range answers {
		frames = append(frames, ws.Frame{Kind: ws.TextFrame, Data: []byte(a)})
	}
	return frames
}

func (c *scriptedChannel) Send(ctx context.Context, event interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ws.ErrClosed
	}
	c.sent = append(c.sent, event)
	return nil
}

func (c *scriptedChannel) SendBinary(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ws.ErrClosed
	}
	c.binary = append(c.binary, data)
	return nil
}

func (c *scriptedChannel) Receive(ctx context.Context) (ws.Frame, error) {
	c.mu.Lock()
	if len(c.replies) > 0 {
		frame := c.replies[0]
		c.replies = c.replies[1:]
		c.mu.Unlock()
		return frame, nil
	}
	block := c.block
	c.mu.Unlock()

	if !block {
		return ws.Frame{}, ws.ErrClosed
	}
	<-ctx.Done()
	return ws.Frame{}, ctx.Err()
}

func (c *scriptedChannel) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ws.ErrClosed
	}
	c.closed = true
	c.closeCode = code
	return nil
}

func (c *scriptedChannel) questions() []QuestionEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []QuestionEvent
	for _, e := range c.sent {
		if q, ok := e.(QuestionEvent); ok {
			out = append(out, q)
		}
	}
	return out
}

func (c *scriptedChannel) count(match func(interface{}) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.sent {
		if match(e) {
			n++
		}
	}
	return n
}

func isEnd(e interface{}) bool {
	_, ok := e.(EndEvent)
	return ok
}

func isError(e interface{}) bool {
	_, ok := e.(ErrorEvent)
	return ok
}

// uniformEvaluation scores every category the same.
func uniformEvaluation(score int) models.Evaluation {
	eval := models.Evaluation{}
	for _, c := range models.Rubric {
		eval.Categories = append(eval.Categories, models.CategoryScore{
			Category: c,
			Score:    score,
			Feedback: c.Label() + " feedback",
		})
	}
	return eval
}

type fixedEvaluator struct {
	eval models.Evaluation
}

func (e fixedEvaluator) Evaluate(ctx context.Context, question, answer string) models.Evaluation {
	return e.eval
}

// probingDecider always asks for a follow-up and counts how often it was asked.
type probingDecider struct {
	mu    sync.Mutex
	calls int
}

func (d *probingDecider) Decide(ctx context.Context, persona string, history []models.Exchange) FollowUpDecision {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return FollowUpDecision{FollowUp: true, Question: "Can you go into more detail?"}
}

func (d *probingDecider) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// decliningDecider never asks for a follow-up.
type decliningDecider struct {
	mu    sync.Mutex
	calls int
}

func (d *decliningDecider) Decide(ctx context.Context, persona string, history []models.Exchange) FollowUpDecision {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return FollowUpDecision{}
}

func (d *decliningDecider) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// failingAppendStore rejects every interaction write.
type failingAppendStore struct {
	*repository.MemoryRepository
}

func (s failingAppendStore) AppendInteraction(ctx context.Context, interaction *models.Interaction) error {
	return errors.New("disk full")
}

// seedSession stores a session that is ready to chat with the given questions.
func seedSession(t *testing.T, store repository.Store, code string, questions ...string) *models.Session {
	t.Helper()
	ctx := context.Background()

	session := &models.Session{Code: code, Username: "candidate", PasswordHash: "x", Status: models.StatusReady}
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	persona := models.Persona{Name: "Minji Kim", Department: "Platform", Description: "A patient backend lead."}
	if err := store.SavePersona(ctx, session.ID, persona, models.StatusPersonaReady); err != nil {
		t.Fatalf("SavePersona() error = %v", err)
	}

	if len(questions) > 0 {
		qs := make([]models.Question, 0, len(questions))
		for i, text := range questions {
			qs = append(qs, models.Question{ID: "q" + string(rune('1'+i)), Text: text, Type: models.QuestionTypeBasic})
		}
		if err := store.SaveQuestions(ctx, session.ID, qs, models.StatusQuestionsReady); err != nil {
			t.Fatalf("SaveQuestions() error = %v", err)
		}
	}

	stored, err := store.GetSession(ctx, session.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetSession() = %v, %v", stored, err)
	}
	return stored
}
