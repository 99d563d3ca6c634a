package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"
)

// Completer sends one prompt to a model and returns its raw text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Asker is the LLM call the engines depend on. Callers treat the result as
// possibly invalid JSON.
type Asker interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// LLMGateway retries a completer until the reply is a JSON object.
type LLMGateway struct {
	completer     Completer
	extraAttempts int
}

func NewLLMGateway(completer Completer, extraAttempts int) *LLMGateway {
	if extraAttempts < 0 {
		extraAttempts = 0
	}
	return &LLMGateway{completer: completer, extraAttempts: extraAttempts}
}

// Ask returns the JSON object found in the reply. A reply that is a JSON array
// yields its first element. When no attempt produces an object the last raw
// text is returned unparsed. An error is returned only when every attempt failed.
func (g *LLMGateway) Ask(ctx context.Context, prompt string) (string, error) {
	var (
		lastText string
		lastErr  error
		answered bool
	)

	for attempt := 1; attempt <= g.extraAttempts+1; attempt++ {
		text, err := g.completer.Complete(ctx, prompt)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			slog.Warn("LLM call failed", "attempt", attempt, "error", err)
			continue
		}

		answered = true
		lastText = text
		if obj, ok := ExtractJSONObject(text); ok {
			return obj, nil
		}
		slog.Warn("LLM response is not a JSON object", "attempt", attempt, "response_length", len(text))
	}

	if !answered {
		if lastErr == nil {
			lastErr = errors.New("no attempts made")
		}
		return "", fmt.Errorf("failed to query llm: %w", lastErr)
	}
	return lastText, nil
}

// ExtractJSONObject finds a JSON object in model output. Markdown fences and
// surrounding prose are ignored.
func ExtractJSONObject(text string) (string, bool) {
	s := stripCodeFence(strings.TrimSpace(text))
	if obj, ok := jsonObjectOrFirstElement(s); ok {
		return obj, true
	}

	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(s, pair[0])
		end := strings.LastIndex(s, pair[1])
		if start < 0 || end <= start {
			continue
		}
		if obj, ok := jsonObjectOrFirstElement(s[start : end+1]); ok {
			return obj, true
		}
	}
	return "", false
}

func jsonObjectOrFirstElement(s string) (string, bool) {
	if !gjson.Valid(s) {
		return "", false
	}
	parsed := gjson.Parse(s)
	if parsed.IsObject() {
		return parsed.Raw, true
	}
	if parsed.IsArray() {
		items := parsed.Array()
		if len(items) > 0 && items[0].IsObject() {
			return items[0].Raw, true
		}
	}
	return "", false
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.Index(s, "\n"); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
