package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	DefaultGeminiModel = "gemini-2.5-flash"
	transcribeTimeout  = 30 * time.Second
)

// GeminiService is the Gemini completer and speech recognizer
type GeminiService struct {
	genaiClient *genai.Client
	model       string
	timeout     time.Duration

	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func NewGeminiService(ctx context.Context, apiKey, model string, timeout time.Duration) (*GeminiService, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	return &GeminiService{
		genaiClient: genaiClient,
		model:       model,
		timeout:     timeout,
		MaxRetries:  2,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
	}, nil
}

// Complete asks the model for a JSON reply to prompt
func (g *GeminiService) Complete(ctx context.Context, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(0.4)),
		ResponseMIMEType: "application/json",
	}

	result, err := g.generate(ctx, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return result.Text(), nil
}

// TranscribeAudioWithPrompt transcribes normalized audio using a custom prompt
func (g *GeminiService) TranscribeAudioWithPrompt(ctx context.Context, audioData []byte, mimeType, prompt string) (string, error) {
	slog.Info("Transcribing audio with Gemini", "size", len(audioData), "mime_type", mimeType)

	ctx, cancel := context.WithTimeout(ctx, transcribeTimeout)
	defer cancel()

	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
		{
			InlineData: &genai.Blob{
				MIMEType: mimeType,
				Data:     audioData,
			},
		},
	}

	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	result, err := g.generate(ctx, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate transcript: %w", err)
	}

	transcript := strings.TrimSpace(result.Text())
	slog.Info("Audio transcribed successfully", "transcript_length", len(transcript))
	return transcript, nil
}

func (g *GeminiService) generate(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if g.genaiClient == nil {
		return nil, fmt.Errorf("genai client not initialized")
	}

	var lastErr error
	for attempt := 0; attempt <= g.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := g.calculateBackoff(attempt)
			slog.Warn("Retrying Gemini request", "attempt", attempt, "max_retries", g.MaxRetries, "delay", delay)
			if !sleepWithContext(ctx, delay) {
				return nil, ctx.Err()
			}
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if g.timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		}
		result, err := g.genaiClient.Models.GenerateContent(callCtx, g.model, contents, config)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return result, nil
		}

		lastErr = err
		if !isRetryableGeminiError(err) {
			break
		}
	}
	return nil, lastErr
}

func (g *GeminiService) calculateBackoff(attempt int) time.Duration {
	delay := g.BaseDelay << (attempt - 1)
	if delay <= 0 || delay > g.MaxDelay {
		delay = g.MaxDelay
	}
	// +/-20% jitter
	return time.Duration(float64(delay) * (0.8 + rand.Float64()*0.4))
}

func isRetryableGeminiError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.Code)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return retryableStatus(apiErrPtr.Code)
	}

	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "EOF")
}

func retryableStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
