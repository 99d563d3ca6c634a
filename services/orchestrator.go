package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/krshsl/mockinterview/models"
	"github.com/krshsl/mockinterview/repository"
	ws "github.com/krshsl/mockinterview/websocket"
	"gorm.io/datatypes"
)

type DialogueMode string

const (
	ModeText  DialogueMode = "text"
	ModeVoice DialogueMode = "voice"
)

var (
	// ErrDisconnected ends a dialogue silently; nothing further is persisted.
	ErrDisconnected       = errors.New("candidate disconnected")
	ErrNoQuestions        = errors.New("session has no generated questions")
	ErrAudioRequired      = errors.New("audio reply required")
	ErrInterviewCompleted = errors.New("interview already completed")
)

const failureWriteTimeout = 5 * time.Second

// Channel is the live connection to the candidate.
type Channel interface {
	Send(ctx context.Context, event interface{}) error
	SendBinary(ctx context.Context, data []byte) error
	Receive(ctx context.Context) (ws.Frame, error)
	Close(code int, reason string) error
}

type Evaluator interface {
	Evaluate(ctx context.Context, question, answer string) models.Evaluation
}

type FollowUpDecider interface {
	Decide(ctx context.Context, persona string, history []models.Exchange) FollowUpDecision
}

// Events sent to the candidate
type QuestionEvent struct {
	Type       string `json:"type"`
	Question   string `json:"question"`
	QuestionID string `json:"question_id"`
	Turn       int    `json:"turn"`
	FollowUp   bool   `json:"followup"`
}

type AudioStartEvent struct {
	Type string `json:"type"`
	SpeechFormat
}

type AudioEndEvent struct {
	Type string `json:"type"`
}

type EndEvent struct {
	Type    string `json:"type"`
	Event   string `json:"event"`
	Message string `json:"message"`
}

type ErrorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// DialogueOrchestrator drives one session's question/answer dialogue: it asks
// each question in order, evaluates and logs every reply, and asks up to
// maxFollowUps follow-ups when a reply scores low.
type DialogueOrchestrator struct {
	store        repository.Store
	evaluator    Evaluator
	followUps    FollowUpDecider
	transcriber  Transcriber
	speaker      Speaker
	registry     *DialogueRegistry
	maxFollowUps int
}

func NewDialogueOrchestrator(
	store repository.Store,
	evaluator Evaluator,
	followUps FollowUpDecider,
	transcriber Transcriber,
	speaker Speaker,
	registry *DialogueRegistry,
	maxFollowUps int,
) *DialogueOrchestrator {
	if maxFollowUps < 0 || maxFollowUps > DefaultMaxFollowUps {
		maxFollowUps = DefaultMaxFollowUps
	}
	return &DialogueOrchestrator{
		store:        store,
		evaluator:    evaluator,
		followUps:    followUps,
		transcriber:  transcriber,
		speaker:      speaker,
		registry:     registry,
		maxFollowUps: maxFollowUps,
	}
}

type dialogue struct {
	ch      Channel
	session *models.Session
	mode    DialogueMode
	voiceID string
}

// Run conducts the dialogue until every question is answered, the candidate
// disconnects or a structural error closes the channel. Already logged turns
// are skipped, so a dropped dialogue resumes where it stopped.
func (o *DialogueOrchestrator) Run(ctx context.Context, ch Channel, session *models.Session, mode DialogueMode) error {
	if len(session.Questions) == 0 {
		o.fail(ctx, ch, ws.CloseNoQuestions, "No interview questions have been generated for this session.")
		return ErrNoQuestions
	}
	if session.Status == models.StatusChatEnded {
		o.fail(ctx, ch, ws.CloseInterviewCompleted, "This interview has already ended.")
		return ErrInterviewCompleted
	}

	logged, err := o.store.ListInteractions(ctx, session.ID)
	if err != nil {
		o.fail(ctx, ch, websocket.CloseInternalServerErr, "Failed to load the interview log.")
		return fmt.Errorf("failed to load interactions: %w", err)
	}
	start := resumeTurn(logged)

	if o.registry != nil {
		var end func()
		ctx, end = o.registry.Register(ctx, session.ID, string(mode))
		defer end()
	}

	d := &dialogue{
		ch:      ch,
		session: session,
		mode:    mode,
		voiceID: PickDeterministicVoice(session.Persona.Name, ""),
	}
	slog.Info("Dialogue started", "session_id", session.ID, "mode", mode, "questions", len(session.Questions), "start_turn", start+1)

	for t := start; t < len(session.Questions); t++ {
		if err := o.runTurn(ctx, d, t); err != nil {
			return o.abort(ctx, d, err)
		}
	}

	if err := o.store.UpdateStatus(ctx, session.ID, models.StatusChatEnded); err != nil {
		return o.abort(ctx, d, fmt.Errorf("failed to mark interview ended: %w", err))
	}
	if err := ch.Send(ctx, EndEvent{Type: "end", Event: "interview ended", Message: "all questions exhausted"}); err != nil {
		slog.Warn("Failed to send end event", "session_id", session.ID, "error", err)
	}
	ch.Close(websocket.CloseNormalClosure, "interview ended")

	slog.Info("Dialogue completed", "session_id", session.ID)
	return nil
}

// resumeTurn returns the 0-based index of the first turn with nothing logged.
func resumeTurn(logged []models.Interaction) int {
	last := 0
	for _, in := range logged {
		if in.Turn > last {
			last = in.Turn
		}
	}
	return last
}

func (o *DialogueOrchestrator) runTurn(ctx context.Context, d *dialogue, t int) error {
	q := d.session.Questions[t]
	turn := t + 1

	answer, err := o.ask(ctx, d, q.Text, q.ID, turn, false)
	if err != nil {
		return err
	}
	eval := o.evaluator.Evaluate(ctx, q.Text, answer)
	if err := o.record(ctx, d, turn, q.ID, q.Text, answer, false, eval); err != nil {
		return err
	}

	history := []models.Exchange{{Question: q.Text, Answer: answer}}
	need := NeedsFollowUp(eval)
	for count := 0; need && count < o.maxFollowUps; count++ {
		decision := o.followUps.Decide(ctx, d.session.Persona.Description, history)
		if !decision.FollowUp {
			break
		}

		answer, err := o.ask(ctx, d, decision.Question, q.ID, turn, true)
		if err != nil {
			return err
		}
		eval := o.evaluator.Evaluate(ctx, decision.Question, answer)
		if err := o.record(ctx, d, turn, q.ID, decision.Question, answer, true, eval); err != nil {
			return err
		}

		history = append(history, models.Exchange{Question: decision.Question, Answer: answer})
		need = NeedsFollowUp(eval)
	}
	return nil
}

// ask sends a question and blocks for the candidate's reply.
func (o *DialogueOrchestrator) ask(ctx context.Context, d *dialogue, text, questionID string, turn int, followUp bool) (string, error) {
	event := QuestionEvent{Type: "question", Question: text, QuestionID: questionID, Turn: turn, FollowUp: followUp}
	if err := d.ch.Send(ctx, event); err != nil {
		return "", o.channelError(ctx, err)
	}
	if d.mode == ModeVoice {
		o.speak(ctx, d, text)
	}

	o.beginWait(d)
	frame, err := d.ch.Receive(ctx)
	o.endWait(d)
	if err != nil {
		return "", o.channelError(ctx, err)
	}

	if d.mode != ModeVoice {
		return string(frame.Data), nil
	}
	if frame.Kind != ws.BinaryFrame || len(frame.Data) == 0 {
		return "", ErrAudioRequired
	}
	if o.transcriber == nil {
		return "", nil
	}
	return o.transcriber.Transcribe(ctx, frame.Data, "mp3"), nil
}

func (o *DialogueOrchestrator) speak(ctx context.Context, d *dialogue, text string) {
	if o.speaker == nil {
		return
	}
	audio, format, err := o.speaker.Speak(ctx, text, d.voiceID)
	if err != nil {
		slog.Warn("Failed to synthesize question audio", "session_id", d.session.ID, "error", err)
		return
	}

	if err := d.ch.Send(ctx, AudioStartEvent{Type: "question_audio_start", SpeechFormat: format}); err != nil {
		return
	}
	if err := d.ch.SendBinary(ctx, audio); err != nil {
		return
	}
	d.ch.Send(ctx, AudioEndEvent{Type: "question_audio_end"})
}

func (o *DialogueOrchestrator) record(ctx context.Context, d *dialogue, turn int, questionID, question, answer string, followUp bool, eval models.Evaluation) error {
	interaction := &models.Interaction{
		SessionID:   d.session.ID,
		Turn:        turn,
		QuestionID:  questionID,
		Question:    question,
		FollowUp:    followUp,
		Answer:      answer,
		Evaluations: datatypes.JSONSlice[models.Evaluation]{},
	}
	if !eval.Empty() {
		interaction.Evaluations = append(interaction.Evaluations, eval)
	}

	if err := o.store.AppendInteraction(ctx, interaction); err != nil {
		return fmt.Errorf("failed to record interaction: %w", err)
	}
	return nil
}

func (o *DialogueOrchestrator) beginWait(d *dialogue) {
	if o.registry != nil {
		o.registry.BeginWait(d.session.ID)
	}
}

func (o *DialogueOrchestrator) endWait(d *dialogue) {
	if o.registry != nil {
		o.registry.EndWait(d.session.ID)
	}
}

// channelError maps transport failures onto dialogue errors.
func (o *DialogueOrchestrator) channelError(ctx context.Context, err error) error {
	if errors.Is(err, ws.ErrClosed) {
		return ErrDisconnected
	}
	if ctx.Err() != nil {
		if cause := context.Cause(ctx); errors.Is(cause, ErrReplyTimeout) {
			return ErrReplyTimeout
		}
		return ctx.Err()
	}
	return err
}

func (o *DialogueOrchestrator) abort(ctx context.Context, d *dialogue, err error) error {
	sessionID := d.session.ID
	switch {
	case errors.Is(err, ErrDisconnected):
		slog.Info("Candidate disconnected, dialogue aborted", "session_id", sessionID)
	case errors.Is(err, ErrAudioRequired):
		slog.Warn("Voice dialogue received a non-audio reply", "session_id", sessionID)
		o.fail(ctx, d.ch, ws.CloseAudioRequired, "An audio reply is required in voice mode.")
	case errors.Is(err, ErrReplyTimeout):
		o.fail(ctx, d.ch, ws.CloseReplyTimeout, "No reply was received in time. Reconnect to resume the interview.")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		slog.Info("Dialogue cancelled", "session_id", sessionID)
		d.ch.Close(websocket.CloseGoingAway, "server shutting down")
	default:
		slog.Error("Dialogue failed", "session_id", sessionID, "error", err)
		o.fail(ctx, d.ch, websocket.CloseInternalServerErr, "The interview could not continue. Reconnect to resume.")
	}
	return err
}

// fail sends an error event and closes the channel with code. It writes even
// when ctx is already cancelled.
func (o *DialogueOrchestrator) fail(ctx context.Context, ch Channel, code int, message string) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()

	if err := ch.Send(wctx, ErrorEvent{Type: "error", Error: message}); err != nil {
		slog.Warn("Failed to send error event", "error", err)
	}
	ch.Close(code, message)
}
