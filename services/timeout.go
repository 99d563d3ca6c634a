package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultReplyTimeout       = 5 * time.Minute
	DefaultTimeoutCheckPeriod = 15 * time.Second
)

// ErrReplyTimeout is the cancellation cause of a dialogue whose candidate
// stopped replying.
var ErrReplyTimeout = errors.New("candidate reply timed out")

// DialogueRegistry tracks live dialogues and cancels those that wait on a
// reply for longer than the idle timeout. A zero timeout disables the check.
type DialogueRegistry struct {
	idleTimeout   time.Duration
	checkInterval time.Duration
	active        map[string]*ActiveDialogue
	mutex         sync.RWMutex
}

type ActiveDialogue struct {
	SessionID     string
	Mode          string
	StartedAt     time.Time
	LastActivity  time.Time
	AwaitingReply bool
	cancel        context.CancelCauseFunc
}

func NewDialogueRegistry(idleTimeout, checkInterval time.Duration) *DialogueRegistry {
	if checkInterval <= 0 {
		checkInterval = DefaultTimeoutCheckPeriod
	}
	return &DialogueRegistry{
		idleTimeout:   idleTimeout,
		checkInterval: checkInterval,
		active:        make(map[string]*ActiveDialogue),
	}
}

// Register starts tracking a dialogue. The returned context is cancelled with
// ErrReplyTimeout when the candidate idles out; end stops tracking.
func (r *DialogueRegistry) Register(ctx context.Context, sessionID, mode string) (context.Context, func()) {
	dctx, cancel := context.WithCancelCause(ctx)
	now := time.Now()
	dialogue := &ActiveDialogue{
		SessionID:    sessionID,
		Mode:         mode,
		StartedAt:    now,
		LastActivity: now,
		cancel:       cancel,
	}

	r.mutex.Lock()
	r.active[sessionID] = dialogue
	r.mutex.Unlock()
	slog.Info("Dialogue registered for timeout tracking", "session_id", sessionID, "mode", mode)

	return dctx, func() {
		r.mutex.Lock()
		if r.active[sessionID] == dialogue {
			delete(r.active, sessionID)
		}
		r.mutex.Unlock()
		cancel(context.Canceled)
		slog.Info("Dialogue removed from timeout tracking", "session_id", sessionID, "duration", time.Since(now))
	}
}

// BeginWait marks the dialogue as blocked on the candidate.
func (r *DialogueRegistry) BeginWait(sessionID string) {
	r.setAwaiting(sessionID, true)
}

// EndWait marks the reply as received.
func (r *DialogueRegistry) EndWait(sessionID string) {
	r.setAwaiting(sessionID, false)
}

func (r *DialogueRegistry) setAwaiting(sessionID string, awaiting bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if dialogue, exists := r.active[sessionID]; exists {
		dialogue.AwaitingReply = awaiting
		dialogue.LastActivity = time.Now()
	}
}

func (r *DialogueRegistry) ActiveCount() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.active)
}

// Run checks for idle dialogues until ctx ends.
func (r *DialogueRegistry) Run(ctx context.Context) {
	if r.idleTimeout <= 0 {
		slog.Info("Reply timeout disabled")
		return
	}

	ticker := time.NewTicker(r.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.checkTimeouts(now)
		}
	}
}

func (r *DialogueRegistry) checkTimeouts(now time.Time) {
	r.mutex.RLock()
	var expired []*ActiveDialogue
	for _, dialogue := range r.active {
		if dialogue.AwaitingReply && now.Sub(dialogue.LastActivity) > r.idleTimeout {
			expired = append(expired, dialogue)
		}
	}
	r.mutex.RUnlock()

	for _, dialogue := range expired {
		slog.Info("Dialogue timed out waiting for reply", "session_id", dialogue.SessionID, "idle_timeout", r.idleTimeout)
		dialogue.cancel(ErrReplyTimeout)
	}
}
